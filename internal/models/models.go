package models

import (
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// StepID identifies one fixed stage of the capture workflow
type StepID string

const (
	StepCameraIndex  StepID = "CAMERA_INDEX"
	StepCameraThumb  StepID = "CAMERA_THUMB"
	StepScannerIndex StepID = "SCANNER_INDEX"
	StepScannerThumb StepID = "SCANNER_THUMB"
)

// Valid reports whether id is one of the known capture steps
func (id StepID) Valid() bool {
	switch id {
	case StepCameraIndex, StepCameraThumb, StepScannerIndex, StepScannerThumb:
		return true
	}
	return false
}

// DeviceKind is the kind of device a step acquires its artifact from
type DeviceKind string

const (
	DeviceCamera  DeviceKind = "camera"
	DeviceScanner DeviceKind = "scanner"
)

func (d DeviceKind) Valid() bool {
	return d == DeviceCamera || d == DeviceScanner
}

// CaptureStep describes one stage of the capture sequence
type CaptureStep struct {
	ID           StepID     `json:"id"`
	Title        string     `json:"title"`
	Instructions string     `json:"instructions"`
	Device       DeviceKind `json:"device"`
}

var defaultSteps = []CaptureStep{
	{
		ID:           StepCameraIndex,
		Title:        "Capture Index Finger Photo",
		Instructions: "Position the subject's RIGHT INDEX finger in front of the phone camera.",
		Device:       DeviceCamera,
	},
	{
		ID:           StepCameraThumb,
		Title:        "Capture Thumb Photo",
		Instructions: "Position the subject's RIGHT THUMB in front of the phone camera.",
		Device:       DeviceCamera,
	},
	{
		ID:           StepScannerIndex,
		Title:        "Scan Index Finger",
		Instructions: "Place the subject's RIGHT INDEX finger on the fingerprint scanner.",
		Device:       DeviceScanner,
	},
	{
		ID:           StepScannerThumb,
		Title:        "Scan Thumb",
		Instructions: "Place the subject's RIGHT THUMB on the fingerprint scanner.",
		Device:       DeviceScanner,
	},
}

// DefaultSteps returns the capture sequence in the order it is performed.
// The returned slice is a copy and may be modified by the caller.
func DefaultSteps() []CaptureStep {
	return slices.Clone(defaultSteps)
}

// FindStep returns the step with the given id
func FindStep(steps []CaptureStep, id StepID) (CaptureStep, bool) {
	for _, s := range steps {
		if s.ID == id {
			return s, true
		}
	}
	return CaptureStep{}, false
}

// GoodQualityThreshold is the image quality score above which a camera
// capture is considered usable.
const GoodQualityThreshold = 70

// ImageQualityReport is the general image-quality assessment for camera photos
type ImageQualityReport struct {
	QualityScore      float64 `json:"qualityScore" yaml:"qualityScore"`
	BlurLevel         string  `json:"blurLevel" yaml:"blurLevel"`
	LightingCondition string  `json:"lightingCondition" yaml:"lightingCondition"`
	Feedback          string  `json:"feedback" yaml:"feedback"`
	Centered          *bool   `json:"centered,omitempty" yaml:"centered,omitempty"`
	GoodContrast      *bool   `json:"goodContrast,omitempty" yaml:"goodContrast,omitempty"`
}

func (r *ImageQualityReport) IsGoodQuality() bool {
	return r != nil && r.QualityScore > GoodQualityThreshold
}

// FingerprintQualityReport is the NFIQ 2.0 style assessment for scanner captures
type FingerprintQualityReport struct {
	NFIQScore float64 `json:"nfiqScore" yaml:"nfiqScore"`
	Feedback  string  `json:"feedback" yaml:"feedback"`
}

// CapturedImage is the artifact stored for a single step
type CapturedImage struct {
	StepID          StepID                    `json:"stepId" yaml:"stepId"`
	DataURI         string                    `json:"dataUri" yaml:"dataUri"`
	Device          DeviceKind                `json:"device" yaml:"device"`
	IsBinary        bool                      `json:"isBinary,omitempty" yaml:"isBinary,omitempty"`
	FileName        string                    `json:"fileName,omitempty" yaml:"fileName,omitempty"`
	QualityFeedback *ImageQualityReport       `json:"qualityFeedback,omitempty" yaml:"qualityFeedback,omitempty"`
	NFIQFeedback    *FingerprintQualityReport `json:"nfiqFeedback,omitempty" yaml:"nfiqFeedback,omitempty"`
	FeedbackLoading bool                      `json:"feedbackLoading,omitempty" yaml:"feedbackLoading,omitempty"`
}

// Clone returns a deep copy of the image
func (img *CapturedImage) Clone() *CapturedImage {
	if img == nil {
		return nil
	}
	c := *img
	if img.QualityFeedback != nil {
		q := *img.QualityFeedback
		if q.Centered != nil {
			v := *q.Centered
			q.Centered = &v
		}
		if q.GoodContrast != nil {
			v := *q.GoodContrast
			q.GoodContrast = &v
		}
		c.QualityFeedback = &q
	}
	if img.NFIQFeedback != nil {
		n := *img.NFIQFeedback
		c.NFIQFeedback = &n
	}
	return &c
}

// ImageSet maps each step to its optional artifact. A step without an entry
// has not been captured.
type ImageSet map[StepID]*CapturedImage

// Get returns the artifact stored for id, if any
func (s ImageSet) Get(id StepID) (*CapturedImage, bool) {
	img, ok := s[id]
	return img, ok && img != nil
}

// Missing lists the steps, in sequence order, that have no artifact
func (s ImageSet) Missing(steps []CaptureStep) []StepID {
	var missing []StepID
	for _, step := range steps {
		if _, ok := s.Get(step.ID); !ok {
			missing = append(missing, step.ID)
		}
	}
	return missing
}

// Ordered returns the stored artifacts in sequence order
func (s ImageSet) Ordered(steps []CaptureStep) []*CapturedImage {
	out := make([]*CapturedImage, 0, len(s))
	for _, step := range steps {
		if img, ok := s.Get(step.ID); ok {
			out = append(out, img)
		}
	}
	return out
}

// CapturedDataSet is one subject's capture record
type CapturedDataSet struct {
	ID        string   `json:"id" yaml:"id"`
	Timestamp string   `json:"timestamp" yaml:"timestamp"`
	Images    ImageSet `json:"images" yaml:"images"`
}

// TimestampLayout is the ISO-8601 layout used for record timestamps
const TimestampLayout = "2006-01-02T15:04:05.000Z"

// NewDataSet allocates an empty record with a fresh id stamped at now
func NewDataSet(now time.Time) *CapturedDataSet {
	return &CapturedDataSet{
		ID:        NewRecordID(now),
		Timestamp: now.UTC().Format(TimestampLayout),
		Images:    ImageSet{},
	}
}

// NewRecordID returns an id of the form FP-<base36 millis>-<5 chars>
func NewRecordID(now time.Time) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:5]
	return "FP-" + strconv.FormatInt(now.UnixMilli(), 36) + "-" + strings.ToUpper(suffix)
}

// Clone returns a deep copy of the record
func (d *CapturedDataSet) Clone() *CapturedDataSet {
	if d == nil {
		return nil
	}
	c := &CapturedDataSet{
		ID:        d.ID,
		Timestamp: d.Timestamp,
		Images:    make(ImageSet, len(d.Images)),
	}
	for k, v := range d.Images {
		c.Images[k] = v.Clone()
	}
	return c
}

// CloneRecords deep-copies a record list
func CloneRecords(records []CapturedDataSet) []CapturedDataSet {
	if records == nil {
		return nil
	}
	out := make([]CapturedDataSet, len(records))
	for i := range records {
		out[i] = *records[i].Clone()
	}
	return out
}

// DeviceStatus is the readiness of a capture device
type DeviceStatus string

const (
	DeviceChecking     DeviceStatus = "checking"
	DeviceConnected    DeviceStatus = "connected"
	DeviceDisconnected DeviceStatus = "disconnected"
)

const (
	PhoneCameraName        = "Phone Camera"
	FingerprintScannerName = "Fingerprint Scanner"
)

// Device reports the status of one capture device
type Device struct {
	Name   string       `json:"name"`
	Kind   DeviceKind   `json:"kind"`
	Status DeviceStatus `json:"status"`
}

// InitialDevices returns the device list before capability checks run
func InitialDevices() []Device {
	return []Device{
		{Name: PhoneCameraName, Kind: DeviceCamera, Status: DeviceChecking},
		{Name: FingerprintScannerName, Kind: DeviceScanner, Status: DeviceChecking},
	}
}
