package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
	"github.com/lehigh-university-libraries/biocapture/internal/models"
)

// FileStore keeps every collection in a single JSON document. A sidecar
// lock file serializes access between processes.
type FileStore struct {
	path  string
	quota int64
	lock  *flock.Flock
}

// OpenFile prepares a JSON document store at path
func OpenFile(path string, quota int64) (*FileStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}
	return &FileStore{
		path:  path,
		quota: quota,
		lock:  flock.New(path + ".lock"),
	}, nil
}

func (s *FileStore) LoadAll(ctx context.Context) (map[string][]models.CapturedDataSet, error) {
	if err := s.lock.RLock(); err != nil {
		return nil, fmt.Errorf("failed to lock %s: %w", s.path, err)
	}
	defer func() { _ = s.lock.Unlock() }()

	raw, err := s.read()
	if err != nil {
		return nil, err
	}

	result := make(map[string][]models.CapturedDataSet, len(raw))
	for name, data := range raw {
		records, err := decode(name, data)
		if err != nil {
			return nil, err
		}
		result[name] = records
	}
	return result, nil
}

func (s *FileStore) Put(ctx context.Context, name string, records []models.CapturedDataSet) error {
	data, err := encode(records)
	if err != nil {
		return err
	}
	return s.update(func(raw map[string]json.RawMessage) {
		raw[name] = data
	})
}

func (s *FileStore) Rename(ctx context.Context, from, to string, records []models.CapturedDataSet) error {
	data, err := encode(records)
	if err != nil {
		return err
	}
	return s.update(func(raw map[string]json.RawMessage) {
		delete(raw, from)
		raw[to] = data
	})
}

func (s *FileStore) Delete(ctx context.Context, name string) error {
	return s.update(func(raw map[string]json.RawMessage) {
		delete(raw, name)
	})
}

func (s *FileStore) Close() error {
	return s.lock.Close()
}

func (s *FileStore) update(mutate func(map[string]json.RawMessage)) error {
	if err := s.lock.Lock(); err != nil {
		return fmt.Errorf("failed to lock %s: %w", s.path, err)
	}
	defer func() { _ = s.lock.Unlock() }()

	raw, err := s.read()
	if err != nil {
		return err
	}
	mutate(raw)

	doc, err := json.Marshal(raw)
	if err != nil {
		return fmt.Errorf("failed to serialize databases: %w", err)
	}
	if s.quota > 0 && int64(len(doc)) > s.quota {
		return quotaError(int64(len(doc)), s.quota)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, doc, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("failed to replace %s: %w", s.path, err)
	}
	return nil
}

func (s *FileStore) read() (map[string]json.RawMessage, error) {
	raw := make(map[string]json.RawMessage)
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return raw, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", s.path, err)
	}
	if len(data) == 0 {
		return raw, nil
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", s.path, err)
	}
	return raw, nil
}
