package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/lehigh-university-libraries/biocapture/internal/models"
)

// ErrQuotaExceeded is returned when a write would exceed the store capacity
var ErrQuotaExceeded = errors.New("storage quota exceeded")

// Store persists named session collections. Each value is written whole.
type Store interface {
	LoadAll(ctx context.Context) (map[string][]models.CapturedDataSet, error)
	Put(ctx context.Context, name string, records []models.CapturedDataSet) error
	// Delete removes a collection; removing a missing name is not an error.
	Delete(ctx context.Context, name string) error
	// Rename stores records under to and removes from in one write. The
	// quota counts the collection once.
	Rename(ctx context.Context, from, to string, records []models.CapturedDataSet) error
	Close() error
}

// Backend names accepted by Open
const (
	BackendSQLite = "sqlite"
	BackendFile   = "file"
	BackendMemory = "memory"
)

// Open returns the store for the configured backend. A quota of zero or less
// means unlimited.
func Open(backend, path string, quota int64) (Store, error) {
	switch backend {
	case BackendSQLite, "":
		return OpenSQLite(path, quota)
	case BackendFile:
		return OpenFile(path, quota)
	case BackendMemory:
		return NewMemory(quota), nil
	default:
		return nil, fmt.Errorf("unsupported storage backend: %s", backend)
	}
}

func encode(records []models.CapturedDataSet) ([]byte, error) {
	if records == nil {
		records = []models.CapturedDataSet{}
	}
	data, err := json.Marshal(records)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize records: %w", err)
	}
	return data, nil
}

func decode(name string, data []byte) ([]models.CapturedDataSet, error) {
	var records []models.CapturedDataSet
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("failed to decode database %q: %w", name, err)
	}
	return records, nil
}

func quotaError(need, quota int64) error {
	return fmt.Errorf("%w: need %d bytes, capacity %d bytes", ErrQuotaExceeded, need, quota)
}

// SortedNames returns the keys of a loaded collection map in stable order
func SortedNames(dbs map[string][]models.CapturedDataSet) []string {
	names := make([]string, 0, len(dbs))
	for name := range dbs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
