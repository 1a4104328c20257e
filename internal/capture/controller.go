package capture

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/lehigh-university-libraries/biocapture/internal/artifact"
	"github.com/lehigh-university-libraries/biocapture/internal/devices"
	"github.com/lehigh-university-libraries/biocapture/internal/models"
	"github.com/lehigh-university-libraries/biocapture/internal/notify"
)

// Status is the workflow state of a controller
type Status string

const (
	StatusUninitialized Status = "UNINITIALIZED"
	StatusIdle          Status = "IDLE"
	StatusCapturing     Status = "CAPTURING"
	StatusValidating    Status = "VALIDATING"
)

var (
	ErrNotReady          = errors.New("capture devices not initialized")
	ErrClosed            = errors.New("controller closed")
	ErrInvalidState      = errors.New("operation not valid in current state")
	ErrNoArtifact        = errors.New("current step has no artifact")
	ErrFeedbackPending   = errors.New("quality feedback still pending")
	ErrNoActiveSession   = errors.New("no active session")
	ErrCameraUnavailable = errors.New("camera unavailable")
	ErrWrongDevice       = errors.New("current step does not use this device")
	ErrEmptyArtifact     = errors.New("artifact payload is empty")
)

// FeedbackProvider produces quality reports for captured artifacts
type FeedbackProvider interface {
	ImageQuality(ctx context.Context, dataURI string) (*models.ImageQualityReport, error)
	FingerprintQuality(ctx context.Context, dataURI string) (*models.FingerprintQualityReport, error)
}

// RecordSink receives validated records
type RecordSink interface {
	Active() string
	SaveRecord(ctx context.Context, rec *models.CapturedDataSet) error
}

// Artifact is a payload submitted for the current step
type Artifact struct {
	DataURI  string
	Device   models.DeviceKind
	Binary   bool
	FileName string
}

// Options wires the controller to its collaborators. Feedback, Camera and
// Scanner may be nil.
type Options struct {
	Steps    []models.CaptureStep
	Feedback FeedbackProvider
	Sink     RecordSink
	Camera   devices.Camera
	Scanner  devices.Scanner
	Notifier notify.Notifier
	Now      func() time.Time
}

// Controller runs the capture workflow for one operator. Feedback calls run
// in the background and are applied only if the record, step and submission
// they were issued for are still current.
type Controller struct {
	steps    []models.CaptureStep
	feedback FeedbackProvider
	sink     RecordSink
	camera   devices.Camera
	scanner  devices.Scanner
	notifier notify.Notifier
	now      func() time.Time

	initMu sync.Mutex

	mu               sync.Mutex
	closed           bool
	devices          []models.Device
	cameraPermission *bool
	stream           devices.Stream
	status           Status
	cursor           int
	record           *models.CapturedDataSet
	generation       uint64
	submissions      uint64
	inflight         map[models.StepID]uint64
	pending          int
	drained          chan struct{}

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New returns an uninitialized controller
func New(opts Options) *Controller {
	steps := opts.Steps
	if len(steps) == 0 {
		steps = models.DefaultSteps()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Controller{
		steps:    steps,
		feedback: opts.Feedback,
		sink:     opts.Sink,
		camera:   opts.Camera,
		scanner:  opts.Scanner,
		notifier: opts.Notifier,
		now:      now,
		devices:  models.InitialDevices(),
		status:   StatusUninitialized,
		inflight: make(map[models.StepID]uint64),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Steps returns the capture sequence
func (c *Controller) Steps() []models.CaptureStep {
	out := make([]models.CaptureStep, len(c.steps))
	copy(out, c.steps)
	return out
}

// Init acquires the capture devices and moves the controller to Idle.
// A denied camera degrades the camera path; it does not fail Init.
func (c *Controller) Init(ctx context.Context) error {
	c.initMu.Lock()
	defer c.initMu.Unlock()

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if c.status != StatusUninitialized {
		c.mu.Unlock()
		return nil
	}
	c.mu.Unlock()

	var stream devices.Stream
	cameraStatus := models.DeviceDisconnected
	if c.camera != nil {
		s, err := c.camera.Open(ctx)
		if err != nil {
			slog.Error("Error accessing camera", "err", err)
		} else {
			stream = s
			cameraStatus = models.DeviceConnected
		}
	}
	if stream == nil {
		notify.Error(c.notifier, "Camera Access Denied", "Please enable camera access to capture photos. File upload remains available.")
	}

	scannerStatus := models.DeviceConnected
	if c.scanner != nil {
		if err := c.scanner.Ready(ctx); err != nil {
			if ctx.Err() != nil {
				if stream != nil {
					_ = stream.Close()
				}
				return fmt.Errorf("scanner initialization interrupted: %w", ctx.Err())
			}
			slog.Error("Fingerprint scanner not ready", "err", err)
			notify.Error(c.notifier, "Scanner Unavailable", "The fingerprint scanner did not respond. File upload remains available.")
			scannerStatus = models.DeviceDisconnected
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		if stream != nil {
			_ = stream.Close()
		}
		return ErrClosed
	}
	granted := stream != nil
	c.stream = stream
	c.cameraPermission = &granted
	c.setDeviceStatus(models.DeviceCamera, cameraStatus)
	c.setDeviceStatus(models.DeviceScanner, scannerStatus)
	c.status = StatusIdle
	slog.Info("Capture devices initialized", "camera", cameraStatus, "scanner", scannerStatus)
	return nil
}

func (c *Controller) setDeviceStatus(kind models.DeviceKind, status models.DeviceStatus) {
	for i := range c.devices {
		if c.devices[i].Kind == kind {
			c.devices[i].Status = status
		}
	}
}

// StartCapture begins a new record. Calling it mid-workflow abandons the
// current record.
func (c *Controller) StartCapture() (*models.CapturedDataSet, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.usable(); err != nil {
		return nil, err
	}

	c.generation++
	c.record = models.NewDataSet(c.now())
	c.cursor = 0
	c.status = StatusCapturing
	clear(c.inflight)
	slog.Info("Capture started", "record_id", c.record.ID)
	return c.record.Clone(), nil
}

// SubmitArtifact stores a payload for the current step and, unless it is a
// binary file or feedback is disabled, starts the quality analysis.
func (c *Controller) SubmitArtifact(a Artifact) error {
	if a.DataURI == "" {
		return ErrEmptyArtifact
	}
	if !a.Device.Valid() {
		return fmt.Errorf("unknown device %q", a.Device)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.usable(); err != nil {
		return err
	}
	if c.status != StatusCapturing {
		return fmt.Errorf("%w: submit requires %s, controller is %s", ErrInvalidState, StatusCapturing, c.status)
	}

	step := c.steps[c.cursor]
	wantsFeedback := !a.Binary && c.feedback != nil
	c.record.Images[step.ID] = &models.CapturedImage{
		StepID:          step.ID,
		DataURI:         a.DataURI,
		Device:          a.Device,
		IsBinary:        a.Binary,
		FileName:        a.FileName,
		FeedbackLoading: wantsFeedback,
	}

	c.submissions++
	token := c.submissions
	c.inflight[step.ID] = token
	slog.Info("Artifact captured", "record_id", c.record.ID, "step", step.ID, "device", a.Device, "binary", a.Binary, "feedback", wantsFeedback)

	if !wantsFeedback {
		delete(c.inflight, step.ID)
		return nil
	}

	c.startPending()
	c.wg.Add(1)
	go c.runFeedback(feedbackJob{
		generation: c.generation,
		recordID:   c.record.ID,
		stepID:     step.ID,
		token:      token,
		device:     a.Device,
		dataURI:    a.DataURI,
	})
	return nil
}

// SubmitFile submits an uploaded file for the current step. Files that are
// not images are stored as binary artifacts without feedback.
func (c *Controller) SubmitFile(name string, data []byte) error {
	f, err := artifact.NewFile(name, data)
	if err != nil {
		notify.Error(c.notifier, "File Read Error", "Could not read the selected file.")
		return err
	}
	return c.submitFile(f)
}

// SubmitPath reads a file from disk and submits it for the current step
func (c *Controller) SubmitPath(path string) error {
	f, err := artifact.LoadFile(path)
	if err != nil {
		notify.Error(c.notifier, "File Read Error", "Could not read the selected file.")
		return err
	}
	return c.submitFile(f)
}

func (c *Controller) submitFile(f *artifact.File) error {
	step, err := c.CurrentStep()
	if err != nil {
		return err
	}
	if !f.IsBinary() {
		w, h, err := artifact.Dimensions(f.Data)
		if err != nil {
			notify.Error(c.notifier, "File Read Error", "Could not read the selected file.")
			return err
		}
		slog.Debug("Image file read", "file", f.Name, "mime", f.MIMEType, "width", w, "height", h)
	}
	return c.SubmitArtifact(Artifact{
		DataURI:  f.DataURI(),
		Device:   step.Device,
		Binary:   f.IsBinary(),
		FileName: f.Name,
	})
}

// CaptureFrame grabs a still from the camera stream for the current step
func (c *Controller) CaptureFrame(ctx context.Context) error {
	c.mu.Lock()
	if err := c.usable(); err != nil {
		c.mu.Unlock()
		return err
	}
	if c.status != StatusCapturing {
		c.mu.Unlock()
		return fmt.Errorf("%w: capture requires %s, controller is %s", ErrInvalidState, StatusCapturing, c.status)
	}
	if c.steps[c.cursor].Device != models.DeviceCamera {
		c.mu.Unlock()
		return ErrWrongDevice
	}
	stream := c.stream
	c.mu.Unlock()

	if stream == nil {
		return ErrCameraUnavailable
	}
	frame, err := stream.Frame(ctx)
	if err != nil {
		return fmt.Errorf("failed to grab camera frame: %w", err)
	}
	return c.SubmitArtifact(Artifact{
		DataURI: frame.DataURI(),
		Device:  models.DeviceCamera,
	})
}

// AcceptArtifact keeps the current step's artifact and advances. Accepting
// the last step moves the controller to Validating.
func (c *Controller) AcceptArtifact() (Status, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.usable(); err != nil {
		return c.status, err
	}
	if c.status != StatusCapturing {
		return c.status, fmt.Errorf("%w: accept requires %s, controller is %s", ErrInvalidState, StatusCapturing, c.status)
	}

	step := c.steps[c.cursor]
	img, ok := c.record.Images.Get(step.ID)
	if !ok {
		return c.status, ErrNoArtifact
	}
	if img.FeedbackLoading {
		return c.status, ErrFeedbackPending
	}

	if c.cursor < len(c.steps)-1 {
		c.cursor++
	} else {
		c.status = StatusValidating
		slog.Info("Capture complete, validating", "record_id", c.record.ID, "missing", c.record.Images.Missing(c.steps))
	}
	return c.status, nil
}

// Recapture discards the current step's artifact only
func (c *Controller) Recapture() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.usable(); err != nil {
		return err
	}
	if c.status != StatusCapturing {
		return fmt.Errorf("%w: recapture requires %s, controller is %s", ErrInvalidState, StatusCapturing, c.status)
	}

	stepID := c.steps[c.cursor].ID
	delete(c.record.Images, stepID)
	delete(c.inflight, stepID)
	return nil
}

// SaveRecord hands the validated record to the sink and returns to Idle.
// The workflow resets even when persistence fails; the error is returned.
func (c *Controller) SaveRecord(ctx context.Context) (*models.CapturedDataSet, error) {
	c.mu.Lock()
	if err := c.usable(); err != nil {
		c.mu.Unlock()
		return nil, err
	}
	if c.status != StatusValidating {
		c.mu.Unlock()
		return nil, fmt.Errorf("%w: save requires %s, controller is %s", ErrInvalidState, StatusValidating, c.status)
	}
	if c.sink == nil || c.sink.Active() == "" {
		c.mu.Unlock()
		return nil, ErrNoActiveSession
	}
	rec := c.record.Clone()
	generation := c.generation
	c.mu.Unlock()

	err := c.sink.SaveRecord(ctx, rec)

	c.mu.Lock()
	if c.generation == generation {
		c.resetLocked()
	}
	c.mu.Unlock()

	if err != nil {
		return rec, fmt.Errorf("record %s kept in memory but not persisted: %w", rec.ID, err)
	}
	return rec, nil
}

// DiscardRecord drops the record under validation without saving it
func (c *Controller) DiscardRecord() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.usable(); err != nil {
		return err
	}
	if c.status != StatusValidating {
		return fmt.Errorf("%w: discard requires %s, controller is %s", ErrInvalidState, StatusValidating, c.status)
	}
	slog.Info("Record discarded", "record_id", c.record.ID)
	c.resetLocked()
	return nil
}

// Reset abandons any in-progress record and returns to Idle
func (c *Controller) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.status == StatusUninitialized {
		return
	}
	c.resetLocked()
}

func (c *Controller) resetLocked() {
	c.generation++
	c.status = StatusIdle
	c.cursor = 0
	c.record = nil
	clear(c.inflight)
}

// CurrentStep returns the step the cursor points at while capturing
func (c *Controller) CurrentStep() (models.CaptureStep, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.status != StatusCapturing {
		return models.CaptureStep{}, fmt.Errorf("%w: no current step while %s", ErrInvalidState, c.status)
	}
	return c.steps[c.cursor], nil
}

// Status returns the workflow state
func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

func (c *Controller) usable() error {
	if c.closed {
		return ErrClosed
	}
	if c.status == StatusUninitialized {
		return ErrNotReady
	}
	return nil
}

// WaitFeedback blocks until no feedback call is outstanding
func (c *Controller) WaitFeedback(ctx context.Context) error {
	c.mu.Lock()
	if c.pending == 0 {
		c.mu.Unlock()
		return nil
	}
	ch := c.drained
	c.mu.Unlock()

	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close cancels outstanding feedback calls and releases the camera stream
func (c *Controller) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	stream := c.stream
	c.stream = nil
	c.setDeviceStatus(models.DeviceCamera, models.DeviceDisconnected)
	c.mu.Unlock()

	c.cancel()
	c.wg.Wait()

	if stream != nil {
		if err := stream.Close(); err != nil {
			return fmt.Errorf("failed to release camera stream: %w", err)
		}
	}
	slog.Debug("Capture controller closed")
	return nil
}
