package cmd

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/lehigh-university-libraries/biocapture/internal/export"
	"github.com/lehigh-university-libraries/biocapture/internal/notify"
)

func newExportCmd(opts *rootOptions) *cobra.Command {
	var session, format, output string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export a session as SQL, CSV, notebook, Parquet or YAML",
		Example: `  # Write clinic-a.sql in the current directory
  biocapture export --session clinic-a --format sql

  # Stream CSV to stdout
  biocapture export --session clinic-a --format csv --output -`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := export.ParseFormat(format)
			if err != nil {
				return err
			}

			ws, store, err := openWorkspace(cmd.Context(), opts.cfg, notify.Log{})
			if err != nil {
				return err
			}
			defer store.Close()

			records, _ := ws.Get(session)
			data, err := export.Render(records, f)
			if errors.Is(err, export.ErrNothingToExport) {
				notify.Error(notify.Log{}, "No Data to Export", "There is no data in the current session to export.")
				return err
			}
			if err != nil {
				return err
			}

			if output == "-" {
				_, err := cmd.OutOrStdout().Write(data)
				return err
			}
			if output == "" {
				output = export.FileName(session, f)
			}
			if err := os.WriteFile(output, data, 0644); err != nil {
				return fmt.Errorf("failed to write export: %w", err)
			}
			slog.Info("Export written", "session", session, "format", f, "records", len(records), "path", output)
			return nil
		},
	}

	cmd.Flags().StringVarP(&session, "session", "s", "", "Session to export")
	cmd.Flags().StringVarP(&format, "format", "f", "csv", "Export format: sql, csv, notebook, parquet, yaml")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output path, - for stdout (default <session>.<ext>)")
	_ = cmd.MarkFlagRequired("session")

	return cmd
}
