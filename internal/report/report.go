package report

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/lehigh-university-libraries/biocapture/internal/models"
)

// StepStats summarizes the artifacts captured for one step across a session
type StepStats struct {
	StepID       models.StepID     `json:"stepId"`
	Title        string            `json:"title"`
	Device       models.DeviceKind `json:"device"`
	Captured     int               `json:"captured"`
	Missing      int               `json:"missing"`
	Binary       int               `json:"binary"`
	WithFeedback int               `json:"withFeedback"`
	GoodQuality  int               `json:"goodQuality"`
	AverageScore float64           `json:"averageScore"`
	Scores       []float64         `json:"-"`
}

// Summary is the quality report for a record collection
type Summary struct {
	Session         string      `json:"session,omitempty"`
	TotalRecords    int         `json:"totalRecords"`
	CompleteRecords int         `json:"completeRecords"`
	TotalImages     int         `json:"totalImages"`
	AverageQuality  float64     `json:"averageQuality"`
	AverageNFIQ     float64     `json:"averageNfiq"`
	Steps           []StepStats `json:"steps"`
}

// Aggregate computes per-step statistics in step order. Camera steps average
// the image quality score, scanner steps the NFIQ score.
func Aggregate(session string, records []models.CapturedDataSet, steps []models.CaptureStep) *Summary {
	summary := &Summary{
		Session:      session,
		TotalRecords: len(records),
		Steps:        make([]StepStats, len(steps)),
	}
	for i, step := range steps {
		summary.Steps[i] = StepStats{StepID: step.ID, Title: step.Title, Device: step.Device, Scores: []float64{}}
	}

	var qualityScores, nfiqScores []float64
	for _, rec := range records {
		if len(rec.Images.Missing(steps)) == 0 {
			summary.CompleteRecords++
		}
		for i, step := range steps {
			stats := &summary.Steps[i]
			img, ok := rec.Images.Get(step.ID)
			if !ok {
				stats.Missing++
				continue
			}
			stats.Captured++
			summary.TotalImages++
			if img.IsBinary {
				stats.Binary++
			}
			aggregateFeedback(stats, img, &qualityScores, &nfiqScores)
		}
	}

	for i := range summary.Steps {
		summary.Steps[i].AverageScore = calculateAverage(summary.Steps[i].Scores)
	}
	summary.AverageQuality = calculateAverage(qualityScores)
	summary.AverageNFIQ = calculateAverage(nfiqScores)
	return summary
}

func aggregateFeedback(stats *StepStats, img *models.CapturedImage, quality, nfiq *[]float64) {
	switch {
	case img.QualityFeedback != nil:
		stats.WithFeedback++
		stats.Scores = append(stats.Scores, img.QualityFeedback.QualityScore)
		*quality = append(*quality, img.QualityFeedback.QualityScore)
		if img.QualityFeedback.IsGoodQuality() {
			stats.GoodQuality++
		}
	case img.NFIQFeedback != nil:
		stats.WithFeedback++
		stats.Scores = append(stats.Scores, img.NFIQFeedback.NFIQScore)
		*nfiq = append(*nfiq, img.NFIQFeedback.NFIQScore)
		if img.NFIQFeedback.NFIQScore > models.GoodQualityThreshold {
			stats.GoodQuality++
		}
	}
}

func calculateAverage(scores []float64) float64 {
	if len(scores) == 0 {
		return 0.0
	}

	sum := 0.0
	for _, score := range scores {
		sum += score
	}

	return sum / float64(len(scores))
}

// WriteJSON encodes the summary as indented JSON
func (s *Summary) WriteJSON(w io.Writer) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")

	if err := encoder.Encode(s); err != nil {
		return fmt.Errorf("failed to encode report to JSON: %w", err)
	}

	return nil
}
