package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/lehigh-university-libraries/biocapture/internal/capture"
	"github.com/lehigh-university-libraries/biocapture/internal/models"
	"github.com/lehigh-university-libraries/biocapture/internal/notify"
)

func newCaptureCmd(opts *rootOptions) *cobra.Command {
	var session string
	var files map[string]string
	var discard bool
	var wait time.Duration

	cmd := &cobra.Command{
		Use:   "capture",
		Short: "Capture one subject record headlessly",
		Long: `Runs the capture sequence once without a browser.

Each step takes its artifact from --file STEP=path. Camera steps without a
file grab the newest photo from the configured camera folder. Quality
feedback is awaited before each step is accepted, then the record is saved
to the session (or discarded with --discard).`,
		Example: `  biocapture capture --session clinic-a \
    --file CAMERA_INDEX=index.jpg --file CAMERA_THUMB=thumb.jpg \
    --file SCANNER_INDEX=index.wsq --file SCANNER_THUMB=thumb.wsq`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			notifier := notify.Log{}

			for id := range files {
				if !models.StepID(strings.ToUpper(id)).Valid() {
					return fmt.Errorf("unknown step %q", id)
				}
			}

			ws, store, err := openWorkspace(ctx, opts.cfg, notifier)
			if err != nil {
				return err
			}
			defer store.Close()
			if err := ws.Select(session); err != nil {
				return err
			}

			controller, err := newController(opts.cfg, ws, notifier)
			if err != nil {
				return err
			}
			defer controller.Close()
			if err := controller.Init(ctx); err != nil {
				return err
			}

			rec, err := controller.StartCapture()
			if err != nil {
				return err
			}
			slog.Info("Capturing record", "record_id", rec.ID, "session", session)

			for range controller.Steps() {
				step, err := controller.CurrentStep()
				if err != nil {
					return err
				}
				if err := captureStep(ctx, controller, step, lookupFile(files, step.ID)); err != nil {
					return fmt.Errorf("%s: %w", step.ID, err)
				}

				waitCtx, cancel := context.WithTimeout(ctx, wait)
				err = controller.WaitFeedback(waitCtx)
				cancel()
				if err != nil {
					return fmt.Errorf("%s: waiting for quality feedback: %w", step.ID, err)
				}
				printStepFeedback(cmd, step, controller.Snapshot().CurrentImage)

				if _, err := controller.AcceptArtifact(); err != nil {
					return fmt.Errorf("%s: %w", step.ID, err)
				}
			}

			if discard {
				return controller.DiscardRecord()
			}
			saved, err := controller.SaveRecord(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Saved record %s to session %s\n", saved.ID, session)
			return nil
		},
	}

	cmd.Flags().StringVarP(&session, "session", "s", "", "Session to save the record to")
	cmd.Flags().StringToStringVar(&files, "file", nil, "Artifact per step, STEP=path (repeatable)")
	cmd.Flags().BoolVar(&discard, "discard", false, "Discard the record instead of saving it")
	cmd.Flags().DurationVar(&wait, "feedback-timeout", 2*time.Minute, "How long to wait for quality feedback per step")
	_ = cmd.MarkFlagRequired("session")

	return cmd
}

func lookupFile(files map[string]string, id models.StepID) string {
	for k, v := range files {
		if strings.EqualFold(k, string(id)) {
			return v
		}
	}
	return ""
}

func captureStep(ctx context.Context, c *capture.Controller, step models.CaptureStep, path string) error {
	if path != "" {
		return c.SubmitPath(path)
	}
	if step.Device != models.DeviceCamera {
		return errors.New("no file given for scanner step")
	}
	if err := c.CaptureFrame(ctx); err != nil {
		if errors.Is(err, capture.ErrCameraUnavailable) {
			return fmt.Errorf("no file given and camera unavailable: %w", err)
		}
		return err
	}
	return nil
}

func printStepFeedback(cmd *cobra.Command, step models.CaptureStep, img *models.CapturedImage) {
	out := cmd.OutOrStdout()
	switch {
	case img == nil:
		return
	case img.IsBinary:
		fmt.Fprintf(out, "%-14s %s (binary file, no feedback)\n", step.ID, img.FileName)
	case img.QualityFeedback != nil:
		q := img.QualityFeedback
		verdict := "needs improvement"
		if q.IsGoodQuality() {
			verdict = "good quality"
		}
		fmt.Fprintf(out, "%-14s score %.0f, %s (blur %s, lighting %s): %s\n", step.ID, q.QualityScore, verdict, q.BlurLevel, q.LightingCondition, q.Feedback)
	case img.NFIQFeedback != nil:
		fmt.Fprintf(out, "%-14s NFIQ %.0f: %s\n", step.ID, img.NFIQFeedback.NFIQScore, img.NFIQFeedback.Feedback)
	default:
		fmt.Fprintf(out, "%-14s captured, no feedback\n", step.ID)
	}
}
