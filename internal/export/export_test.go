package export

import (
	"bytes"
	"database/sql"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/lehigh-university-libraries/biocapture/internal/models"
	"gopkg.in/yaml.v3"
	_ "modernc.org/sqlite"
)

func fixture() []models.CapturedDataSet {
	good := true
	first := models.CapturedDataSet{
		ID:        "FP-LX1ABC-00A1F",
		Timestamp: "2025-04-02T10:15:00.000Z",
		Images: models.ImageSet{
			models.StepScannerIndex: {
				StepID:       models.StepScannerIndex,
				DataURI:      "data:image/png;base64,iVBORw0KGgo=",
				Device:       models.DeviceScanner,
				NFIQFeedback: &models.FingerprintQualityReport{NFIQScore: 62, Feedback: "Press a little harder"},
			},
			models.StepCameraIndex: {
				StepID:  models.StepCameraIndex,
				DataURI: "data:image/jpeg;base64,/9j/4AAQ",
				Device:  models.DeviceCamera,
				QualityFeedback: &models.ImageQualityReport{
					QualityScore:      88.5,
					BlurLevel:         "low",
					LightingCondition: "good",
					Feedback:          "It's sharp and well lit",
					Centered:          &good,
				},
			},
		},
	}
	second := models.CapturedDataSet{
		ID:        "FP-LX1ABD-7C2E0",
		Timestamp: "2025-04-02T10:20:00.000Z",
		Images: models.ImageSet{
			models.StepScannerThumb: {
				StepID:   models.StepScannerThumb,
				DataURI:  "data:application/octet-stream;base64,AAEC",
				Device:   models.DeviceScanner,
				IsBinary: true,
				FileName: "thumb's.wsq",
			},
		},
	}
	return []models.CapturedDataSet{first, second}
}

func TestRenderEmpty(t *testing.T) {
	for _, f := range Formats {
		if _, err := Render(nil, f); !errors.Is(err, ErrNothingToExport) {
			t.Errorf("%s: expected ErrNothingToExport, got %v", f, err)
		}
	}
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    Format
		wantErr bool
	}{
		{"sql", FormatSQL, false},
		{"CSV", FormatCSV, false},
		{".ipynb", FormatNotebook, false},
		{"notebook", FormatNotebook, false},
		{"yml", FormatYAML, false},
		{"parquet", FormatParquet, false},
		{"xlsx", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseFormat(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseFormat(%q) error = %v", tt.in, err)
			}
			if got != tt.want {
				t.Errorf("ParseFormat(%q) = %s, want %s", tt.in, got, tt.want)
			}
		})
	}
}

func TestFileName(t *testing.T) {
	if got := FileName("clinic-a", FormatNotebook); got != "clinic-a.ipynb" {
		t.Errorf("Unexpected file name %s", got)
	}
	if got := FileName("", FormatCSV); got != "biometric-data.csv" {
		t.Errorf("Unexpected default file name %s", got)
	}
}

func TestSQLLoadsIntoSQLite(t *testing.T) {
	dump, err := Render(fixture(), FormatSQL)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}

	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(string(dump)); err != nil {
		t.Fatalf("Loading dump failed: %v\n%s", err, dump)
	}

	var records, images int
	if err := db.QueryRow("SELECT COUNT(*) FROM records").Scan(&records); err != nil {
		t.Fatal(err)
	}
	if err := db.QueryRow("SELECT COUNT(*) FROM images").Scan(&images); err != nil {
		t.Fatal(err)
	}
	if records != 2 || images != 3 {
		t.Errorf("Expected 2 records and 3 images, got %d and %d", records, images)
	}

	rows, err := db.Query("PRAGMA foreign_key_check")
	if err != nil {
		t.Fatal(err)
	}
	if rows.Next() {
		t.Error("Foreign key violations in dump")
	}
	rows.Close()

	var feedback string
	var score float64
	err = db.QueryRow("SELECT feedback, quality_score FROM images WHERE step_id = 'CAMERA_INDEX'").Scan(&feedback, &score)
	if err != nil {
		t.Fatal(err)
	}
	if feedback != "It's sharp and well lit" || score != 88.5 {
		t.Errorf("Unexpected camera row: %q %v", feedback, score)
	}

	var quality sql.NullFloat64
	var fileName string
	err = db.QueryRow("SELECT quality_score, file_name FROM images WHERE record_id = 'FP-LX1ABD-7C2E0'").Scan(&quality, &fileName)
	if err != nil {
		t.Fatal(err)
	}
	if quality.Valid || fileName != "thumb's.wsq" {
		t.Errorf("Unexpected binary row: %v %q", quality, fileName)
	}

	// Images follow step order within a record
	var firstStep string
	if err := db.QueryRow("SELECT step_id FROM images WHERE id = 1").Scan(&firstStep); err != nil {
		t.Fatal(err)
	}
	if firstStep != string(models.StepCameraIndex) {
		t.Errorf("Expected first image CAMERA_INDEX, got %s", firstStep)
	}
}

func TestCSVOneRowPerImage(t *testing.T) {
	data, err := Render(fixture(), FormatCSV)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	lines, err := csv.NewReader(bytes.NewReader(data)).ReadAll()
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if len(lines) != 4 {
		t.Fatalf("Expected header + 3 rows, got %d", len(lines))
	}
	if !reflect.DeepEqual(lines[0], CSVHeader) {
		t.Errorf("Unexpected header %v", lines[0])
	}

	camera := lines[1]
	if camera[2] != "CAMERA_INDEX" || camera[6] != "88.5" || camera[9] != "It's sharp and well lit" {
		t.Errorf("Unexpected camera row %v", camera)
	}
	scanner := lines[2]
	if scanner[2] != "SCANNER_INDEX" || scanner[6] != "" || scanner[10] != "62" {
		t.Errorf("Unexpected scanner row %v", scanner)
	}
	binary := lines[3]
	if binary[4] != "true" || binary[5] != "thumb's.wsq" {
		t.Errorf("Unexpected binary row %v", binary)
	}
}

func TestNotebookIsValid(t *testing.T) {
	data, err := Render(fixture(), FormatNotebook)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}

	var nb struct {
		NBFormat int `json:"nbformat"`
		Cells    []struct {
			CellType string   `json:"cell_type"`
			Source   []string `json:"source"`
			Outputs  []any    `json:"outputs"`
		} `json:"cells"`
	}
	if err := json.Unmarshal(data, &nb); err != nil {
		t.Fatalf("Notebook is not valid JSON: %v", err)
	}
	if nb.NBFormat != 4 {
		t.Errorf("Expected nbformat 4, got %d", nb.NBFormat)
	}

	var all strings.Builder
	for _, c := range nb.Cells {
		if c.CellType != "code" && c.CellType != "markdown" {
			t.Errorf("Unexpected cell type %s", c.CellType)
		}
		all.WriteString(strings.Join(c.Source, ""))
	}
	src := all.String()
	for _, want := range []string{"def decode_data_uri", "def save_image", "def show_image", "pd.DataFrame", "FP-LX1ABC-00A1F"} {
		if !strings.Contains(src, want) {
			t.Errorf("Notebook missing %q", want)
		}
	}
}

func TestParquetRoundTrip(t *testing.T) {
	records := fixture()
	data, err := Render(records, FormatParquet)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	rows, err := ReadParquet(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatalf("ReadParquet: %v", err)
	}
	if !reflect.DeepEqual(rows, Rows(records)) {
		t.Errorf("Parquet rows differ:\n got %+v\nwant %+v", rows, Rows(records))
	}
}

func TestParquetRoundTripAcrossBatches(t *testing.T) {
	var records []models.CapturedDataSet
	for i := 0; i < 300; i++ {
		img := &models.CapturedImage{
			StepID:  models.StepCameraIndex,
			DataURI: "data:image/jpeg;base64,/9j/",
			Device:  models.DeviceCamera,
		}
		if i%2 == 1 {
			img.QualityFeedback = &models.ImageQualityReport{QualityScore: float64(i % 100), BlurLevel: "low"}
		}
		records = append(records, models.CapturedDataSet{
			ID:        fmt.Sprintf("R%03d", i),
			Timestamp: "2025-04-02T10:15:00.000Z",
			Images:    models.ImageSet{models.StepCameraIndex: img},
		})
	}

	data, err := Render(records, FormatParquet)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	rows, err := ReadParquet(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatalf("ReadParquet: %v", err)
	}
	if len(rows) != len(records) {
		t.Fatalf("Expected %d rows, got %d", len(records), len(rows))
	}
	for i, row := range rows {
		if row.RecordID != records[i].ID {
			t.Fatalf("Row %d: expected record %s, got %s", i, records[i].ID, row.RecordID)
		}
		if i%2 == 0 {
			if row.QualityScore != nil {
				t.Errorf("Row %d (%s): expected no quality score, got %v", i, row.RecordID, *row.QualityScore)
			}
			continue
		}
		if row.QualityScore == nil || *row.QualityScore != float64(i%100) {
			t.Errorf("Row %d (%s): expected quality score %d, got %v", i, row.RecordID, i%100, row.QualityScore)
		}
	}
}

func notebookSource(t *testing.T, data []byte) string {
	t.Helper()
	var nb struct {
		Cells []struct {
			Source []string `json:"source"`
		} `json:"cells"`
	}
	if err := json.Unmarshal(data, &nb); err != nil {
		t.Fatalf("Notebook is not valid JSON: %v", err)
	}
	var all strings.Builder
	for _, c := range nb.Cells {
		all.WriteString(strings.Join(c.Source, ""))
		all.WriteString("\n")
	}
	return all.String()
}

func TestNotebookPreview(t *testing.T) {
	empty := models.CapturedDataSet{ID: "FP-EMPTY-00000", Timestamp: "2025-04-02T10:00:00.000Z", Images: models.ImageSet{}}
	binaryOnly := fixture()[1]

	tests := []struct {
		name    string
		records []models.CapturedDataSet
		want    string
	}{
		{"first record has images", fixture(), `show_image("FP-LX1ABC-00A1F", "CAMERA_INDEX")`},
		{"skips records without images", append([]models.CapturedDataSet{empty}, fixture()...), `show_image("FP-LX1ABC-00A1F", "CAMERA_INDEX")`},
		{"nothing displayable", []models.CapturedDataSet{empty, binaryOnly}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := Render(tt.records, FormatNotebook)
			if err != nil {
				t.Fatalf("Render: %v", err)
			}
			src := notebookSource(t, data)
			if tt.want == "" {
				if strings.Contains(src, "show_image(\"") {
					t.Errorf("Expected no preview cell:\n%s", src)
				}
				return
			}
			if !strings.Contains(src, tt.want) {
				t.Errorf("Expected preview %s", tt.want)
			}
		})
	}
}

func TestYAMLKeepsFullRecords(t *testing.T) {
	data, err := Render(fixture(), FormatYAML)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	var doc yamlDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if !reflect.DeepEqual(doc.Records, fixture()) {
		t.Errorf("YAML round trip mismatch:\n%s", data)
	}
}

func TestRenderIsDeterministic(t *testing.T) {
	for _, f := range Formats {
		a, err := Render(fixture(), f)
		if err != nil {
			t.Fatalf("%s: %v", f, err)
		}
		for i := 0; i < 5; i++ {
			b, err := Render(fixture(), f)
			if err != nil {
				t.Fatal(err)
			}
			if !bytes.Equal(a, b) {
				t.Errorf("%s output changed between runs", f)
				break
			}
		}
	}
}

func TestRowsIncludeUnknownSteps(t *testing.T) {
	rec := models.NewDataSet(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))
	rec.Images["CAMERA_PINKY"] = &models.CapturedImage{DataURI: "data:image/png;base64,AA==", Device: models.DeviceCamera}
	rows := Rows([]models.CapturedDataSet{*rec})
	if len(rows) != 1 || rows[0].StepID != "CAMERA_PINKY" {
		t.Errorf("Expected unknown step to be exported last, got %+v", rows)
	}
}
