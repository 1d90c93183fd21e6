package cmd

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/eduvision/attendance/internal/attendance"
	"github.com/eduvision/attendance/internal/config"
	"github.com/eduvision/attendance/internal/detector"
	"github.com/eduvision/attendance/internal/store"
)

var identitiesCmd = &cobra.Command{
	Use:   "identities",
	Short: "Manage enrolled identities",
}

var identitiesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List enrolled identities",
	RunE:  runIdentitiesList,
}

var identitiesDeleteCmd = &cobra.Command{
	Use:   "delete <identity-id>",
	Short: "Delete an enrolled identity",
	Args:  cobra.ExactArgs(1),
	RunE:  runIdentitiesDelete,
}

var identitiesSimilarCmd = &cobra.Command{
	Use:   "similar <identity-id>",
	Short: "Find enrolled identities with similar faces",
	Args:  cobra.ExactArgs(1),
	RunE:  runIdentitiesSimilar,
}

func init() {
	rootCmd.AddCommand(identitiesCmd)
	identitiesCmd.AddCommand(identitiesListCmd)
	identitiesCmd.AddCommand(identitiesDeleteCmd)
	identitiesCmd.AddCommand(identitiesSimilarCmd)

	identitiesSimilarCmd.Flags().Int("limit", 5, "Maximum number of neighbors to show")
}

func runIdentitiesList(cmd *cobra.Command, args []string) error {
	cfg := config.Load()

	st, err := openStore(cfg, nil)
	if err != nil {
		return err
	}
	defer st.Close()

	identities, err := st.ListIdentities(context.Background())
	if err != nil {
		return fmt.Errorf("listing identities: %w", err)
	}

	if len(identities) == 0 {
		fmt.Println("No identities enrolled.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tSAMPLES\tENROLLED")
	for _, identity := range identities {
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\n",
			identity.ID, identity.Name, identity.SampleCount,
			identity.EnrolledAt.Format(time.DateTime))
	}
	return w.Flush()
}

func runIdentitiesDelete(cmd *cobra.Command, args []string) error {
	cfg := config.Load()

	st, err := openStore(cfg, nil)
	if err != nil {
		return err
	}
	defer st.Close()

	if err := st.DeleteIdentity(context.Background(), args[0]); err != nil {
		return fmt.Errorf("deleting identity %s: %w", args[0], err)
	}
	fmt.Printf("Deleted %s\n", args[0])
	return nil
}

func runIdentitiesSimilar(cmd *cobra.Command, args []string) error {
	limit := mustGetInt(cmd, "limit")

	cfg := config.Load()

	st, err := openStore(cfg, nil)
	if err != nil {
		return err
	}
	defer st.Close()

	det := detector.NewClient(cfg.Detector.URL, cfg.Detector.MaxImageSize)
	svc := attendance.NewService(st, det, cfg.Matcher, store.NewIdentityIndex(), nil)
	if err := svc.RebuildIndex(context.Background()); err != nil {
		return fmt.Errorf("failed to build identity index: %w", err)
	}

	neighbors, err := svc.SimilarIdentities(context.Background(), args[0], limit)
	if err != nil {
		return fmt.Errorf("finding similar identities: %w", err)
	}

	if len(neighbors) == 0 {
		fmt.Println("No similar identities found.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tDISTANCE")
	for _, n := range neighbors {
		fmt.Fprintf(w, "%s\t%s\t%.3f\n", n.IdentityID, n.Name, n.Distance)
	}
	return w.Flush()
}
