package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strconv"

	"github.com/lehigh-university-libraries/biocapture/internal/models"
)

// CSVHeader is the column order of the CSV export
var CSVHeader = []string{
	"record_id", "timestamp", "step_id", "device", "is_binary", "file_name",
	"quality_score", "blur_level", "lighting_condition", "feedback",
	"nfiq_score", "nfiq_feedback",
}

func renderCSV(records []models.CapturedDataSet) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	if err := writer.Write(CSVHeader); err != nil {
		return nil, fmt.Errorf("failed to write csv header: %w", err)
	}
	for _, row := range Rows(records) {
		line := []string{
			row.RecordID,
			row.Timestamp,
			row.StepID,
			row.Device,
			strconv.FormatBool(row.IsBinary),
			row.FileName,
			optionalFloat(row.QualityScore),
			row.BlurLevel,
			row.LightingCondition,
			row.Feedback,
			optionalFloat(row.NFIQScore),
			row.NFIQFeedback,
		}
		if err := writer.Write(line); err != nil {
			return nil, fmt.Errorf("failed to write csv row: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("failed to flush csv: %w", err)
	}
	return buf.Bytes(), nil
}

func optionalFloat(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}
