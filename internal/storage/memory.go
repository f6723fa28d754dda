package storage

import (
	"context"
	"sync"
	"time"

	"github.com/prasenjit/go-mockserver/internal/models"
)

// MemoryStorage implements Storage in process memory
type MemoryStorage struct {
	mu       sync.RWMutex
	mocks    []models.Mock
	requests []models.RequestRecord
}

// NewMemoryStorage creates a new in-memory storage
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{}
}

// LoadMocks returns a copy of the stored mocks
func (m *MemoryStorage) LoadMocks(_ context.Context) ([]models.Mock, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]models.Mock, len(m.mocks))
	copy(out, m.mocks)
	return out, nil
}

// SaveMocks replaces the stored mocks
func (m *MemoryStorage) SaveMocks(_ context.Context, mocks []models.Mock) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.mocks = make([]models.Mock, len(mocks))
	copy(m.mocks, mocks)
	return nil
}

// AppendRequest stores a captured request
func (m *MemoryStorage) AppendRequest(_ context.Context, rec *models.RequestRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.requests = append(m.requests, *rec)
	return nil
}

// Requests returns the stored request records
func (m *MemoryStorage) Requests() []models.RequestRecord {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]models.RequestRecord, len(m.requests))
	copy(out, m.requests)
	return out
}

// RecentRequests returns up to limit stored records, newest first
func (m *MemoryStorage) RecentRequests(_ context.Context, limit int) ([]models.RequestRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return newestFirst(m.requests, limit), nil
}

// PurgeRequests drops records older than before
func (m *MemoryStorage) PurgeRequests(_ context.Context, before time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	kept, n := keepSince(m.requests, before)
	m.requests = kept
	return n, nil
}

func (m *MemoryStorage) Info() Info {
	return Info{Type: "memory", Initialized: true}
}

func (m *MemoryStorage) Close() error {
	return nil
}

func newestFirst(records []models.RequestRecord, limit int) []models.RequestRecord {
	if limit <= 0 || limit > len(records) {
		limit = len(records)
	}
	out := make([]models.RequestRecord, 0, limit)
	for i := len(records) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, records[i])
	}
	return out
}

// keepSince filters records in place, returning the kept slice and the
// number of dropped records.
func keepSince(records []models.RequestRecord, before time.Time) ([]models.RequestRecord, int64) {
	kept := records[:0]
	var dropped int64
	for _, r := range records {
		if r.Timestamp.Before(before) {
			dropped++
			continue
		}
		kept = append(kept, r)
	}
	return kept, dropped
}
