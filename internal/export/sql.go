package export

import (
	"strconv"
	"strings"

	"github.com/lehigh-university-libraries/biocapture/internal/models"
)

const sqlSchema = `CREATE TABLE records (
  id TEXT PRIMARY KEY,
  timestamp TEXT NOT NULL
);
CREATE TABLE images (
  id INTEGER PRIMARY KEY,
  record_id TEXT NOT NULL REFERENCES records(id),
  step_id TEXT NOT NULL,
  device TEXT NOT NULL,
  is_binary INTEGER NOT NULL,
  file_name TEXT,
  data_uri TEXT NOT NULL,
  quality_score REAL,
  blur_level TEXT,
  lighting_condition TEXT,
  feedback TEXT,
  nfiq_score REAL,
  nfiq_feedback TEXT
);
`

func renderSQL(records []models.CapturedDataSet) []byte {
	steps := models.DefaultSteps()

	var b strings.Builder
	b.WriteString("-- Biometric capture export\n")
	b.WriteString("PRAGMA foreign_keys = ON;\n")
	b.WriteString("BEGIN TRANSACTION;\n")
	b.WriteString(sqlSchema)

	for _, rec := range records {
		b.WriteString("INSERT INTO records (id, timestamp) VALUES (")
		b.WriteString(sqlText(rec.ID))
		b.WriteString(", ")
		b.WriteString(sqlText(rec.Timestamp))
		b.WriteString(");\n")
	}

	imageID := 0
	for _, rec := range records {
		for _, img := range orderedImages(rec, steps) {
			imageID++
			values := []string{
				strconv.Itoa(imageID),
				sqlText(rec.ID),
				sqlText(string(img.StepID)),
				sqlText(string(img.Device)),
				sqlBool(img.IsBinary),
				sqlNullableText(img.FileName),
				sqlText(img.DataURI),
			}
			if q := img.QualityFeedback; q != nil {
				values = append(values,
					sqlReal(q.QualityScore),
					sqlText(q.BlurLevel),
					sqlText(q.LightingCondition),
					sqlText(q.Feedback),
				)
			} else {
				values = append(values, "NULL", "NULL", "NULL", "NULL")
			}
			if n := img.NFIQFeedback; n != nil {
				values = append(values, sqlReal(n.NFIQScore), sqlText(n.Feedback))
			} else {
				values = append(values, "NULL", "NULL")
			}

			b.WriteString("INSERT INTO images (id, record_id, step_id, device, is_binary, file_name, data_uri, quality_score, blur_level, lighting_condition, feedback, nfiq_score, nfiq_feedback) VALUES (")
			b.WriteString(strings.Join(values, ", "))
			b.WriteString(");\n")
		}
	}

	b.WriteString("COMMIT;\n")
	return []byte(b.String())
}

func sqlText(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

func sqlNullableText(s string) string {
	if s == "" {
		return "NULL"
	}
	return sqlText(s)
}

func sqlBool(v bool) string {
	if v {
		return "1"
	}
	return "0"
}

func sqlReal(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
