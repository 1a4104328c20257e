package storage

import (
	"context"
	"slices"
	"sync"

	"github.com/lehigh-university-libraries/biocapture/internal/models"
)

// MemoryStore keeps serialized collections in process memory
type MemoryStore struct {
	databases map[string][]byte
	quota     int64
	mu        sync.RWMutex
}

func NewMemory(quota int64) *MemoryStore {
	return &MemoryStore{
		databases: make(map[string][]byte),
		quota:     quota,
	}
}

func (s *MemoryStore) LoadAll(ctx context.Context) (map[string][]models.CapturedDataSet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make(map[string][]models.CapturedDataSet, len(s.databases))
	for name, data := range s.databases {
		records, err := decode(name, data)
		if err != nil {
			return nil, err
		}
		result[name] = records
	}
	return result, nil
}

func (s *MemoryStore) Put(ctx context.Context, name string, records []models.CapturedDataSet) error {
	data, err := encode(records)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkQuota(int64(len(data)), name); err != nil {
		return err
	}
	s.databases[name] = data
	return nil
}

func (s *MemoryStore) Rename(ctx context.Context, from, to string, records []models.CapturedDataSet) error {
	data, err := encode(records)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkQuota(int64(len(data)), from, to); err != nil {
		return err
	}
	delete(s.databases, from)
	s.databases[to] = data
	return nil
}

// checkQuota sums size with every stored collection except the excluded names.
// Callers hold s.mu.
func (s *MemoryStore) checkQuota(size int64, exclude ...string) error {
	if s.quota <= 0 {
		return nil
	}
	total := size
	for k, v := range s.databases {
		if !slices.Contains(exclude, k) {
			total += int64(len(v))
		}
	}
	if total > s.quota {
		return quotaError(total, s.quota)
	}
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.databases, name)
	return nil
}

func (s *MemoryStore) Close() error { return nil }
