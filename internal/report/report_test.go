package report

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/lehigh-university-libraries/biocapture/internal/models"
)

func TestAggregate(t *testing.T) {
	records := []models.CapturedDataSet{
		{
			ID: "FP-1",
			Images: models.ImageSet{
				models.StepCameraIndex:  {QualityFeedback: &models.ImageQualityReport{QualityScore: 90}},
				models.StepCameraThumb:  {QualityFeedback: &models.ImageQualityReport{QualityScore: 60}},
				models.StepScannerIndex: {NFIQFeedback: &models.FingerprintQualityReport{NFIQScore: 80}},
				models.StepScannerThumb: {IsBinary: true},
			},
		},
		{
			ID: "FP-2",
			Images: models.ImageSet{
				models.StepCameraIndex: {QualityFeedback: &models.ImageQualityReport{QualityScore: 70}},
			},
		},
	}

	s := Aggregate("clinic", records, models.DefaultSteps())

	if s.TotalRecords != 2 || s.CompleteRecords != 1 || s.TotalImages != 5 {
		t.Errorf("Unexpected totals: %+v", s)
	}

	tests := []struct {
		step         int
		captured     int
		missing      int
		binary       int
		withFeedback int
		good         int
		avg          float64
	}{
		{0, 2, 0, 0, 2, 1, 80},
		{1, 1, 1, 0, 1, 0, 60},
		{2, 1, 1, 0, 1, 1, 80},
		{3, 1, 1, 1, 0, 0, 0},
	}
	for _, tt := range tests {
		got := s.Steps[tt.step]
		if got.Captured != tt.captured || got.Missing != tt.missing || got.Binary != tt.binary ||
			got.WithFeedback != tt.withFeedback || got.GoodQuality != tt.good || got.AverageScore != tt.avg {
			t.Errorf("Step %s: got %+v", got.StepID, got)
		}
	}

	if s.AverageQuality != (90.0+60.0+70.0)/3 {
		t.Errorf("Unexpected average quality %v", s.AverageQuality)
	}
	if s.AverageNFIQ != 80 {
		t.Errorf("Unexpected average NFIQ %v", s.AverageNFIQ)
	}
}

func TestAggregateEmpty(t *testing.T) {
	s := Aggregate("", nil, models.DefaultSteps())
	if s.TotalRecords != 0 || s.AverageQuality != 0 || len(s.Steps) != 4 {
		t.Errorf("Unexpected empty summary %+v", s)
	}
}

func TestWriteJSON(t *testing.T) {
	var buf bytes.Buffer
	if err := Aggregate("x", nil, models.DefaultSteps()).WriteJSON(&buf); err != nil {
		t.Fatalf("WriteJSON: %v", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("Invalid JSON: %v", err)
	}
	if decoded["session"] != "x" {
		t.Errorf("Unexpected session %v", decoded["session"])
	}
}
