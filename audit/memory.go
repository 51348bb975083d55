package audit

import (
	"context"
	"maps"
	"sync"
)

// MemoryStore is an in-memory audit store for testing
type MemoryStore struct {
	mu      sync.RWMutex
	records []*Record
	byID    map[string]*Record
}

// NewMemoryStore creates a new in-memory audit store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byID: make(map[string]*Record),
	}
}

// Write stores a copy of rec
func (s *MemoryStore) Write(ctx context.Context, rec *Record) error {
	stored := copyRecord(rec)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, stored)
	s.byID[stored.ID] = stored
	return nil
}

// Get retrieves a single record by ID
func (s *MemoryStore) Get(ctx context.Context, id string) (*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	return copyRecord(rec), nil
}

// List returns records matching the filter, newest first
func (s *MemoryStore) List(ctx context.Context, filter Filter) ([]*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*Record
	for i := len(s.records) - 1; i >= 0; i-- {
		rec := s.records[i]
		if !matches(rec, filter) {
			continue
		}
		result = append(result, copyRecord(rec))
		if filter.Limit > 0 && len(result) == filter.Limit {
			break
		}
	}
	return result, nil
}

// Count returns the number of records matching the filter
func (s *MemoryStore) Count(ctx context.Context, filter Filter) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int64
	for _, rec := range s.records {
		if matches(rec, filter) {
			n++
		}
	}
	if filter.Limit > 0 && n > int64(filter.Limit) {
		n = int64(filter.Limit)
	}
	return n, nil
}

// Len returns the total number of stored records
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

func matches(rec *Record, filter Filter) bool {
	if filter.EventType != "" && rec.EventType != filter.EventType {
		return false
	}
	if !filter.Since.IsZero() && rec.RecordedAt.Before(filter.Since) {
		return false
	}
	return true
}

func copyRecord(rec *Record) *Record {
	c := *rec
	c.Data = maps.Clone(rec.Data)
	return &c
}
