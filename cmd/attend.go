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
)

var attendCmd = &cobra.Command{
	Use:   "attend <image-file>",
	Short: "Take attendance from a camera frame",
	Long: `Take attendance from a single image. Every detected face is matched
against the enrolled identities; accepted matches are written as attendance
records, at most once per identity, session and calendar day.

Examples:
  attendance attend frame.jpg
  attendance attend frame.jpg --session math-101`,
	Args: cobra.ExactArgs(1),
	RunE: runAttend,
}

func init() {
	rootCmd.AddCommand(attendCmd)

	attendCmd.Flags().String("session", "general", "Session key the attendance belongs to")
}

func runAttend(cmd *cobra.Command, args []string) error {
	sessionKey := mustGetString(cmd, "session")

	image, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("cannot read image %s: %w", args[0], err)
	}

	cfg := config.Load()

	st, err := openStore(cfg, nil)
	if err != nil {
		return err
	}
	defer st.Close()

	det := detector.NewClient(cfg.Detector.URL, cfg.Detector.MaxImageSize)
	svc := attendance.NewService(st, det, cfg.Matcher, nil, nil)

	results, err := svc.TakeAttendance(context.Background(), sessionKey, image, time.Now())
	if err != nil {
		return fmt.Errorf("taking attendance: %w", err)
	}

	if len(results) == 0 {
		fmt.Println("No faces detected.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "FACE\tIDENTITY\tNAME\tCONFIDENCE\tSTATUS")
	for i, res := range results {
		fmt.Fprintf(w, "%d\t%s\t%s\t%.1f\t%s\n",
			i+1,
			orDash(res.Decision.IdentityID),
			orDash(res.IdentityName),
			res.Decision.Confidence,
			attendStatus(res),
		)
	}
	return w.Flush()
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func attendStatus(res attendance.Result) string {
	if !res.Decision.Accepted {
		return "unrecognized"
	}
	if res.Outcome != nil && res.Outcome.AlreadyPresent {
		return "already present"
	}
	return "recorded"
}
