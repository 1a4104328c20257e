package capture

import (
	"log/slog"

	"github.com/lehigh-university-libraries/biocapture/internal/models"
	"github.com/lehigh-university-libraries/biocapture/internal/notify"
)

type feedbackJob struct {
	generation uint64
	recordID   string
	stepID     models.StepID
	token      uint64
	device     models.DeviceKind
	dataURI    string
}

func (c *Controller) runFeedback(job feedbackJob) {
	defer c.wg.Done()
	defer c.finishPending()

	var (
		quality *models.ImageQualityReport
		nfiq    *models.FingerprintQualityReport
		err     error
	)
	switch job.device {
	case models.DeviceCamera:
		quality, err = c.feedback.ImageQuality(c.ctx, job.dataURI)
	case models.DeviceScanner:
		nfiq, err = c.feedback.FingerprintQuality(c.ctx, job.dataURI)
	}
	if err != nil && c.ctx.Err() != nil {
		// Close cancelled the call
		slog.Debug("AI feedback cancelled", "record_id", job.recordID, "step", job.stepID)
		return
	}
	if err != nil {
		slog.Error("AI feedback failed", "record_id", job.recordID, "step", job.stepID, "err", err)
		quality, nfiq = nil, nil
	}

	if !c.applyFeedback(job, quality, nfiq) {
		slog.Debug("Discarding stale feedback", "record_id", job.recordID, "step", job.stepID)
		return
	}
	if err != nil {
		notify.Error(c.notifier, "AI Analysis Failed", "Could not get image quality feedback.")
	}
}

// applyFeedback writes the result into the live record if the submission it
// belongs to is still the one stored for the step.
func (c *Controller) applyFeedback(job feedbackJob, quality *models.ImageQualityReport, nfiq *models.FingerprintQualityReport) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.generation != job.generation || c.record == nil || c.record.ID != job.recordID {
		return false
	}
	if c.inflight[job.stepID] != job.token {
		return false
	}
	img, ok := c.record.Images.Get(job.stepID)
	if !ok {
		return false
	}

	img.QualityFeedback = quality
	img.NFIQFeedback = nfiq
	img.FeedbackLoading = false
	delete(c.inflight, job.stepID)
	return true
}

// startPending and finishPending track outstanding calls for WaitFeedback.
// Callers of startPending hold c.mu.
func (c *Controller) startPending() {
	if c.pending == 0 {
		c.drained = make(chan struct{})
	}
	c.pending++
}

func (c *Controller) finishPending() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pending--
	if c.pending == 0 {
		close(c.drained)
	}
}
