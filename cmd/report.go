package cmd

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/eduvision/attendance/internal/config"
	"github.com/eduvision/attendance/internal/store"
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Attendance reports",
}

var reportSummaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Overall attendance summary",
	RunE:  runReportSummary,
}

var reportDailyCmd = &cobra.Command{
	Use:   "daily",
	Short: "Attendance counts per day",
	RunE:  runReportDaily,
}

var reportIdentitiesCmd = &cobra.Command{
	Use:   "identities",
	Short: "Attendance totals per identity",
	RunE:  runReportIdentities,
}

var reportSessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "Attendance totals per session",
	RunE:  runReportSessions,
}

func init() {
	rootCmd.AddCommand(reportCmd)
	reportCmd.AddCommand(reportSummaryCmd)
	reportCmd.AddCommand(reportDailyCmd)
	reportCmd.AddCommand(reportIdentitiesCmd)
	reportCmd.AddCommand(reportSessionsCmd)

	reportDailyCmd.Flags().Int("days", 7, "Number of days to report")
}

func withReportStore(fn func(ctx context.Context, st store.Store) error) error {
	cfg := config.Load()

	st, err := openStore(cfg, nil)
	if err != nil {
		return err
	}
	defer st.Close()

	return fn(context.Background(), st)
}

func runReportSummary(cmd *cobra.Command, args []string) error {
	return withReportStore(func(ctx context.Context, st store.Store) error {
		summary, err := st.AttendanceSummary(ctx, time.Now())
		if err != nil {
			return fmt.Errorf("summary report: %w", err)
		}

		fmt.Printf("Present today:      %d\n", summary.TodayCount)
		fmt.Printf("Enrolled identities: %d\n", summary.TotalIdentities)
		fmt.Printf("Unique this week:   %d\n", summary.WeekUnique)
		return nil
	})
}

func runReportDaily(cmd *cobra.Command, args []string) error {
	days := mustGetInt(cmd, "days")

	return withReportStore(func(ctx context.Context, st store.Store) error {
		counts, err := st.DailyCounts(ctx, time.Now(), days)
		if err != nil {
			return fmt.Errorf("daily report: %w", err)
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "DAY\tPRESENT")
		for _, c := range counts {
			fmt.Fprintf(w, "%s\t%d\n", c.Day, c.Count)
		}
		return w.Flush()
	})
}

func runReportIdentities(cmd *cobra.Command, args []string) error {
	return withReportStore(func(ctx context.Context, st store.Store) error {
		totals, err := st.IdentityTotals(ctx)
		if err != nil {
			return fmt.Errorf("identity report: %w", err)
		}

		if len(totals) == 0 {
			fmt.Println("No attendance recorded.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tNAME\tDAYS PRESENT\tLAST SEEN")
		for _, t := range totals {
			fmt.Fprintf(w, "%s\t%s\t%d\t%s\n", t.IdentityID, t.Name, t.Count, t.LastSeen.Format(time.DateTime))
		}
		return w.Flush()
	})
}

func runReportSessions(cmd *cobra.Command, args []string) error {
	return withReportStore(func(ctx context.Context, st store.Store) error {
		totals, err := st.SessionTotals(ctx)
		if err != nil {
			return fmt.Errorf("session report: %w", err)
		}

		if len(totals) == 0 {
			fmt.Println("No attendance recorded.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "SESSION\tRECORDS")
		for _, t := range totals {
			fmt.Fprintf(w, "%s\t%d\n", t.SessionKey, t.Count)
		}
		return w.Flush()
	})
}
