package export

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"

	"github.com/lehigh-university-libraries/biocapture/internal/models"
	"github.com/parquet-go/parquet-go"
)

func renderParquet(records []models.CapturedDataSet) ([]byte, error) {
	rows := Rows(records)

	var buf bytes.Buffer
	writer := parquet.NewGenericWriter[Row](&buf)
	if _, err := writer.Write(rows); err != nil {
		return nil, fmt.Errorf("failed to write parquet rows: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to close parquet writer: %w", err)
	}
	return buf.Bytes(), nil
}

// ReadParquet loads rows from a Parquet export
func ReadParquet(r io.ReaderAt, size int64) ([]Row, error) {
	pf, err := parquet.OpenFile(r, size)
	if err != nil {
		return nil, fmt.Errorf("failed to open parquet: %w", err)
	}

	slog.Debug("Parquet file opened", "num_rows", pf.NumRows(), "num_row_groups", len(pf.RowGroups()))

	reader := parquet.NewGenericReader[Row](pf)
	defer reader.Close()

	// Optional columns decode into pointers the reader reuses between
	// calls, so every batch gets its own backing array.
	var out []Row
	for {
		batch := make([]Row, 128)
		n, err := reader.Read(batch)
		out = append(out, batch[:n]...)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read parquet rows: %w", err)
		}
		if n == 0 {
			break
		}
	}
	return out, nil
}
