package cmd

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/lehigh-university-libraries/biocapture/internal/handlers"
	"github.com/lehigh-university-libraries/biocapture/internal/notify"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	var port string
	var staticDir string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the capture API server",
		Long: `Starts the biocapture JSON API on the specified port.

A browser front end drives the capture workflow through the API: selecting
a session, capturing or uploading each artifact, reviewing AI quality
feedback, saving records and downloading exports.`,
		Example: `  # Start server on the configured port (default 8888)
  biocapture serve

  # Start server on custom port
  biocapture serve --port 3000`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := opts.cfg
			if port == "" {
				port = cfg.Server.Port
			}
			if staticDir == "" {
				staticDir = cfg.Server.StaticDir
			}

			recorder := notify.NewRecorder(0)
			notifier := notify.Multi{notify.Log{}, recorder}

			ws, store, err := openWorkspace(cmd.Context(), cfg, notifier)
			if err != nil {
				return err
			}
			defer store.Close()

			controller, err := newController(cfg, ws, notifier)
			if err != nil {
				return err
			}
			defer controller.Close()
			if err := controller.Init(cmd.Context()); err != nil {
				return err
			}

			handler := handlers.New(controller, ws, recorder, staticDir)

			addr := ":" + port
			server := &http.Server{
				Addr:    addr,
				Handler: handler.Router(),
			}

			// Start server in goroutine
			serverErr := make(chan error, 1)
			go func() {
				slog.Info("biocapture API available", "addr", addr, "url", "http://localhost"+addr)
				if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					serverErr <- err
				}
			}()

			// Wait for context cancellation (Ctrl+C) or server error
			select {
			case <-cmd.Context().Done():
				slog.Info("Shutting down server...")
				// Give server 5 seconds to shut down gracefully
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := server.Shutdown(shutdownCtx); err != nil {
					slog.Error("Server shutdown failed", "err", err)
					return err
				}
				slog.Info("Server stopped")
				return nil
			case err := <-serverErr:
				return err
			}
		},
	}

	cmd.Flags().StringVarP(&port, "port", "p", "", "Port to listen on (default from config, 8888)")
	cmd.Flags().StringVar(&staticDir, "static", "", "Directory holding the browser front end")

	return cmd
}
