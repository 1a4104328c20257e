package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/lehigh-university-libraries/biocapture/internal/capture"
	"github.com/lehigh-university-libraries/biocapture/internal/config"
	"github.com/lehigh-university-libraries/biocapture/internal/devices"
	"github.com/lehigh-university-libraries/biocapture/internal/feedback"
	"github.com/lehigh-university-libraries/biocapture/internal/notify"
	"github.com/lehigh-university-libraries/biocapture/internal/storage"
	"github.com/lehigh-university-libraries/biocapture/internal/workspace"
)

// openWorkspace opens the configured store and loads every saved session
func openWorkspace(ctx context.Context, cfg *config.Config, notifier notify.Notifier) (*workspace.Workspace, storage.Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, nil, err
	}
	store, err := storage.Open(cfg.Storage.Backend, cfg.Storage.Path, cfg.Storage.QuotaBytes)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open %s store: %w", cfg.Storage.Backend, err)
	}

	ws := workspace.New(store, notifier)
	if err := ws.Load(ctx); err != nil {
		_ = store.Close()
		return nil, nil, err
	}
	return ws, store, nil
}

// newController wires the capture controller to feedback, devices and the workspace
func newController(cfg *config.Config, ws *workspace.Workspace, notifier notify.Notifier) (*capture.Controller, error) {
	opts := capture.Options{
		Sink:     ws,
		Scanner:  devices.NewSimulatedScanner(cfg.ScannerWarmup()),
		Notifier: notifier,
	}
	if cfg.Devices.CameraDir != "" {
		opts.Camera = devices.NewDirCamera(cfg.Devices.CameraDir)
	}

	svc, err := feedback.NewService(cfg.FeedbackOptions())
	switch {
	case errors.Is(err, feedback.ErrDisabled):
		slog.Info("AI quality feedback disabled")
	case err != nil:
		return nil, err
	default:
		slog.Info("AI quality feedback enabled", "provider", svc.Provider(), "model", svc.Model())
		opts.Feedback = svc
	}

	return capture.New(opts), nil
}
