package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/lehigh-university-libraries/biocapture/internal/models"
	"github.com/lehigh-university-libraries/biocapture/internal/notify"
)

func newSessionsCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "List, inspect, rename and delete saved sessions",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List saved sessions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ws, store, err := openWorkspace(cmd.Context(), opts.cfg, notify.Log{})
			if err != nil {
				return err
			}
			defer store.Close()

			names := ws.Names()
			if len(names) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No saved sessions")
				return nil
			}
			counts := ws.Counts()
			rows := make([][]string, 0, len(names))
			for _, name := range names {
				rows = append(rows, []string{name, strconv.Itoa(counts[name])})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"Session", "Records"}, rows, []columnAlignment{alignLeft, alignRight}))
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "show <name>",
		Short: "Show the records of a session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ws, store, err := openWorkspace(cmd.Context(), opts.cfg, notify.Log{})
			if err != nil {
				return err
			}
			defer store.Close()

			records, ok := ws.Get(args[0])
			if !ok {
				return fmt.Errorf("session not found: %s", args[0])
			}
			fmt.Fprintln(cmd.OutOrStdout(), recordTable(records))
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "delete <name>",
		Short: "Delete a session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ws, store, err := openWorkspace(cmd.Context(), opts.cfg, notify.Log{})
			if err != nil {
				return err
			}
			defer store.Close()
			return ws.Delete(cmd.Context(), args[0])
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "rename <old> <new>",
		Short: "Rename a session",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ws, store, err := openWorkspace(cmd.Context(), opts.cfg, notify.Log{})
			if err != nil {
				return err
			}
			defer store.Close()
			return ws.Rename(cmd.Context(), args[0], args[1])
		},
	})

	return cmd
}

func recordTable(records []models.CapturedDataSet) string {
	steps := models.DefaultSteps()
	headers := []string{"Record", "Timestamp"}
	aligns := []columnAlignment{alignLeft, alignLeft}
	for _, step := range steps {
		headers = append(headers, string(step.ID))
		aligns = append(aligns, alignRight)
	}

	rows := make([][]string, 0, len(records))
	for _, rec := range records {
		row := []string{rec.ID, rec.Timestamp}
		for _, step := range steps {
			row = append(row, artifactCell(rec.Images, step.ID))
		}
		rows = append(rows, row)
	}
	return renderTable(headers, rows, aligns)
}

// artifactCell summarizes one artifact: its score, "bin" for binary files,
// "-" when missing
func artifactCell(images models.ImageSet, id models.StepID) string {
	img, ok := images.Get(id)
	switch {
	case !ok:
		return "-"
	case img.IsBinary:
		return "bin"
	case img.QualityFeedback != nil:
		return strconv.FormatFloat(img.QualityFeedback.QualityScore, 'f', 0, 64)
	case img.NFIQFeedback != nil:
		return strconv.FormatFloat(img.NFIQFeedback.NFIQScore, 'f', 0, 64)
	}
	return "ok"
}
