package export

import (
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/lehigh-university-libraries/biocapture/internal/models"
)

// ErrNothingToExport is returned for an empty record collection
var ErrNothingToExport = errors.New("no data to export")

// Format names an export encoding
type Format string

const (
	FormatSQL      Format = "sql"
	FormatCSV      Format = "csv"
	FormatNotebook Format = "notebook"
	FormatParquet  Format = "parquet"
	FormatYAML     Format = "yaml"
)

// Formats lists every supported format
var Formats = []Format{FormatSQL, FormatCSV, FormatNotebook, FormatParquet, FormatYAML}

// DefaultFileName is used when no session is active
const DefaultFileName = "biometric-data"

// ParseFormat accepts a format name or its file extension
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimPrefix(strings.TrimSpace(s), ".")) {
	case "sql":
		return FormatSQL, nil
	case "csv":
		return FormatCSV, nil
	case "notebook", "ipynb":
		return FormatNotebook, nil
	case "parquet":
		return FormatParquet, nil
	case "yaml", "yml":
		return FormatYAML, nil
	}
	return "", fmt.Errorf("unsupported export format: %s", s)
}

// Extension returns the file extension without the dot
func (f Format) Extension() string {
	if f == FormatNotebook {
		return "ipynb"
	}
	return string(f)
}

// ContentType returns the MIME type served for downloads
func (f Format) ContentType() string {
	switch f {
	case FormatSQL:
		return "application/sql"
	case FormatCSV:
		return "text/csv"
	case FormatNotebook:
		return "application/x-ipynb+json"
	case FormatParquet:
		return "application/vnd.apache.parquet"
	case FormatYAML:
		return "application/yaml"
	}
	return "application/octet-stream"
}

// FileName returns the download name for a session export
func FileName(session string, f Format) string {
	base := strings.TrimSpace(session)
	if base == "" {
		base = DefaultFileName
	}
	return base + "." + f.Extension()
}

// Render encodes records in the given format. Output depends only on the
// input: images are emitted in step order and no clock values are added.
func Render(records []models.CapturedDataSet, f Format) ([]byte, error) {
	if len(records) == 0 {
		return nil, ErrNothingToExport
	}

	switch f {
	case FormatSQL:
		return renderSQL(records), nil
	case FormatCSV:
		return renderCSV(records)
	case FormatNotebook:
		return renderNotebook(records)
	case FormatParquet:
		return renderParquet(records)
	case FormatYAML:
		return renderYAML(records)
	}
	return nil, fmt.Errorf("unsupported export format: %s", f)
}

// Write renders records and copies the result to w
func Write(w io.Writer, records []models.CapturedDataSet, f Format) error {
	data, err := Render(records, f)
	if err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("failed to write %s export: %w", f, err)
	}
	return nil
}

// Row is the flat per-image shape shared by the CSV and Parquet exports
type Row struct {
	RecordID          string   `parquet:"record_id"`
	Timestamp         string   `parquet:"timestamp"`
	StepID            string   `parquet:"step_id"`
	Device            string   `parquet:"device"`
	IsBinary          bool     `parquet:"is_binary"`
	FileName          string   `parquet:"file_name"`
	QualityScore      *float64 `parquet:"quality_score,optional"`
	BlurLevel         string   `parquet:"blur_level"`
	LightingCondition string   `parquet:"lighting_condition"`
	Feedback          string   `parquet:"feedback"`
	NFIQScore         *float64 `parquet:"nfiq_score,optional"`
	NFIQFeedback      string   `parquet:"nfiq_feedback"`
}

// Rows flattens records into one row per stored image
func Rows(records []models.CapturedDataSet) []Row {
	steps := models.DefaultSteps()
	var rows []Row
	for _, rec := range records {
		for _, img := range orderedImages(rec, steps) {
			row := Row{
				RecordID:  rec.ID,
				Timestamp: rec.Timestamp,
				StepID:    string(img.StepID),
				Device:    string(img.Device),
				IsBinary:  img.IsBinary,
				FileName:  img.FileName,
			}
			if q := img.QualityFeedback; q != nil {
				score := q.QualityScore
				row.QualityScore = &score
				row.BlurLevel = q.BlurLevel
				row.LightingCondition = q.LightingCondition
				row.Feedback = q.Feedback
			}
			if n := img.NFIQFeedback; n != nil {
				score := n.NFIQScore
				row.NFIQScore = &score
				row.NFIQFeedback = n.Feedback
			}
			rows = append(rows, row)
		}
	}
	return rows
}

// orderedImages returns the known steps first, in sequence order, followed
// by any unknown step keys sorted by name.
func orderedImages(rec models.CapturedDataSet, steps []models.CaptureStep) []*models.CapturedImage {
	out := rec.Images.Ordered(steps)
	var extra []string
	for id, img := range rec.Images {
		if img == nil {
			continue
		}
		if _, known := models.FindStep(steps, id); !known {
			extra = append(extra, string(id))
		}
	}
	slices.Sort(extra)
	for _, id := range extra {
		img := rec.Images[models.StepID(id)]
		if img.StepID == "" {
			img = img.Clone()
			img.StepID = models.StepID(id)
		}
		out = append(out, img)
	}
	return out
}
