package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/lehigh-university-libraries/biocapture/internal/models"
	"github.com/lehigh-university-libraries/biocapture/internal/notify"
	"github.com/lehigh-university-libraries/biocapture/internal/report"
)

func newReportCmd(opts *rootOptions) *cobra.Command {
	var session string
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Summarize capture quality for a session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ws, store, err := openWorkspace(cmd.Context(), opts.cfg, notify.Log{})
			if err != nil {
				return err
			}
			defer store.Close()

			records, ok := ws.Get(session)
			if !ok {
				return fmt.Errorf("session not found: %s", session)
			}
			summary := report.Aggregate(session, records, models.DefaultSteps())

			if asJSON {
				return summary.WriteJSON(cmd.OutOrStdout())
			}
			printSummary(cmd, summary)
			return nil
		},
	}

	cmd.Flags().StringVarP(&session, "session", "s", "", "Session to summarize")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the report as JSON")
	_ = cmd.MarkFlagRequired("session")

	return cmd
}

func printSummary(cmd *cobra.Command, s *report.Summary) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Session: %s\n", s.Session)
	fmt.Fprintf(out, "Records: %d (%d complete), artifacts: %d\n", s.TotalRecords, s.CompleteRecords, s.TotalImages)
	fmt.Fprintf(out, "Average image quality: %.1f, average NFIQ: %.1f\n\n", s.AverageQuality, s.AverageNFIQ)

	rows := make([][]string, 0, len(s.Steps))
	for _, st := range s.Steps {
		rows = append(rows, []string{
			string(st.StepID),
			string(st.Device),
			strconv.Itoa(st.Captured),
			strconv.Itoa(st.Missing),
			strconv.Itoa(st.Binary),
			strconv.Itoa(st.WithFeedback),
			strconv.Itoa(st.GoodQuality),
			strconv.FormatFloat(st.AverageScore, 'f', 1, 64),
		})
	}
	fmt.Fprintln(out, renderTable(
		[]string{"Step", "Device", "Captured", "Missing", "Binary", "Feedback", "Good", "Avg score"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignRight, alignRight, alignRight, alignRight, alignRight, alignRight},
	))
}
