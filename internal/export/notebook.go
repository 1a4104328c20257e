package export

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/lehigh-university-libraries/biocapture/internal/models"
)

const notebookHelpers = `import base64
import io
import json

import pandas as pd


def decode_data_uri(data_uri):
    """Return (mime_type, bytes) for a base64 data URI."""
    header, payload = data_uri.split(",", 1)
    mime_type = header[len("data:"):].split(";")[0]
    return mime_type, base64.b64decode(payload)


def save_image(record_id, step_id, path=None):
    """Write one captured artifact to disk and return the path."""
    image = RECORDS_BY_ID[record_id]["images"][step_id]
    mime_type, data = decode_data_uri(image["dataUri"])
    if path is None:
        ext = mime_type.split("/")[-1] if "/" in mime_type else "bin"
        path = image.get("fileName") or f"{record_id}_{step_id}.{ext}"
    with open(path, "wb") as fh:
        fh.write(data)
    return path


def show_image(record_id, step_id):
    """Display a captured image inline. Binary scanner files are skipped."""
    from IPython.display import display
    from PIL import Image

    image = RECORDS_BY_ID[record_id]["images"][step_id]
    if image.get("isBinary"):
        print(f"{step_id} is a binary file ({image.get('fileName')}), nothing to show")
        return
    _, data = decode_data_uri(image["dataUri"])
    display(Image.open(io.BytesIO(data)))
`

const notebookSummary = `rows = []
for record in RECORDS:
    for step_id, image in record["images"].items():
        quality = image.get("qualityFeedback") or {}
        nfiq = image.get("nfiqFeedback") or {}
        rows.append({
            "record_id": record["id"],
            "timestamp": record["timestamp"],
            "step_id": step_id,
            "device": image.get("device"),
            "is_binary": bool(image.get("isBinary")),
            "quality_score": quality.get("qualityScore"),
            "nfiq_score": nfiq.get("nfiqScore"),
        })

df = pd.DataFrame(rows)
df.groupby("step_id")[["quality_score", "nfiq_score"]].describe()
`

// renderNotebook builds an nbformat 4 document with the records inlined as
// JSON and a few helpers for working with the artifacts.
func renderNotebook(records []models.CapturedDataSet) ([]byte, error) {
	payload, err := json.Marshal(records)
	if err != nil {
		return nil, fmt.Errorf("failed to encode records: %w", err)
	}
	// A JSON string literal is also a valid Python string literal
	literal, err := json.Marshal(string(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to encode records: %w", err)
	}

	images := 0
	for _, rec := range records {
		images += len(rec.Images.Ordered(models.DefaultSteps()))
	}

	cells := []map[string]any{
		markdownCell(fmt.Sprintf("# Biometric Capture Data\n\n%d records, %d captured artifacts.", len(records), images)),
		codeCell(notebookHelpers),
		codeCell("RECORDS = json.loads(" + string(literal) + ")\nRECORDS_BY_ID = {r[\"id\"]: r for r in RECORDS}\nlen(RECORDS)"),
		markdownCell("## Quality summary"),
		codeCell(notebookSummary),
	}
	if recordID, stepID, ok := previewImage(records); ok {
		cells = append(cells,
			markdownCell("## Preview"),
			codeCell(fmt.Sprintf("show_image(%q, %q)", recordID, stepID)),
		)
	}

	doc := map[string]any{
		"cells": cells,
		"metadata": map[string]any{
			"kernelspec": map[string]any{
				"display_name": "Python 3",
				"language":     "python",
				"name":         "python3",
			},
			"language_info": map[string]any{
				"name": "python",
			},
		},
		"nbformat":       4,
		"nbformat_minor": 4,
	}

	data, err := json.MarshalIndent(doc, "", " ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode notebook: %w", err)
	}
	return append(data, '\n'), nil
}

// previewImage finds the first displayable artifact, skipping records
// without images and binary scanner files.
func previewImage(records []models.CapturedDataSet) (string, models.StepID, bool) {
	steps := models.DefaultSteps()
	for _, rec := range records {
		for _, img := range orderedImages(rec, steps) {
			if !img.IsBinary {
				return rec.ID, img.StepID, true
			}
		}
	}
	return "", "", false
}

func markdownCell(text string) map[string]any {
	return map[string]any{
		"cell_type": "markdown",
		"metadata":  map[string]any{},
		"source":    sourceLines(text),
	}
}

func codeCell(text string) map[string]any {
	return map[string]any{
		"cell_type":       "code",
		"execution_count": nil,
		"metadata":        map[string]any{},
		"outputs":         []any{},
		"source":          sourceLines(text),
	}
}

// sourceLines splits text the way Jupyter stores cell sources: one string
// per line, each keeping its newline except the last.
func sourceLines(text string) []string {
	text = strings.TrimRight(text, "\n")
	return strings.SplitAfter(text, "\n")
}
