package capture

import (
	"github.com/lehigh-university-libraries/biocapture/internal/models"
)

// Snapshot is a point-in-time copy of the controller for rendering
type Snapshot struct {
	Status           Status                  `json:"status"`
	StepIndex        int                     `json:"stepIndex"`
	TotalSteps       int                     `json:"totalSteps"`
	CurrentStep      *models.CaptureStep     `json:"currentStep,omitempty"`
	CurrentImage     *models.CapturedImage   `json:"currentImage,omitempty"`
	Record           *models.CapturedDataSet `json:"record,omitempty"`
	Missing          []models.StepID         `json:"missing,omitempty"`
	Devices          []models.Device         `json:"devices"`
	CameraPermission *bool                   `json:"cameraPermission"`
}

// Snapshot returns a deep copy of the controller state
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	snap := Snapshot{
		Status:     c.status,
		StepIndex:  c.cursor,
		TotalSteps: len(c.steps),
		Devices:    append([]models.Device(nil), c.devices...),
	}
	if c.cameraPermission != nil {
		granted := *c.cameraPermission
		snap.CameraPermission = &granted
	}
	if c.record != nil {
		snap.Record = c.record.Clone()
	}

	switch c.status {
	case StatusCapturing:
		step := c.steps[c.cursor]
		snap.CurrentStep = &step
		if img, ok := snap.Record.Images.Get(step.ID); ok {
			snap.CurrentImage = img
		}
	case StatusValidating:
		snap.Missing = snap.Record.Images.Missing(c.steps)
	}
	return snap
}

// Devices returns the device statuses
func (c *Controller) Devices() []models.Device {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]models.Device(nil), c.devices...)
}
