package corpus

import (
	"context"
	"sort"
	"sync"

	"github.com/KaracaDeer/Luminis-AI-Library-Chatbot/pkg/books"
)

// Ensure MemStore implements the Store interface.
var _ Store = (*MemStore)(nil)

// MemStore is an in-memory Store implementation backed by a map. It serves
// tests and the seed-catalog bootstrap path where no database is configured.
//
// All methods are safe for concurrent use.
type MemStore struct {
	mu      sync.RWMutex
	records map[string]books.Record
}

// NewMemStore returns an empty MemStore.
func NewMemStore() *MemStore {
	return &MemStore{records: make(map[string]books.Record)}
}

// Upsert implements Store.
func (s *MemStore) Upsert(_ context.Context, records []books.Record) error {
	for _, r := range records {
		if err := r.Validate(); err != nil {
			return err
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range records {
		s.records[r.ID] = r
	}
	return nil
}

// Get implements Store.
func (s *MemStore) Get(_ context.Context, id string) (books.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.records[id]
	if !ok {
		return books.Record{}, ErrNotFound
	}
	return r, nil
}

// GetBatch implements Store.
func (s *MemStore) GetBatch(_ context.Context, ids []string) ([]books.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]books.Record, 0, len(ids))
	for _, id := range ids {
		if r, ok := s.records[id]; ok {
			result = append(result, r)
		}
	}
	return result, nil
}

// List implements Store.
func (s *MemStore) List(_ context.Context, filter ListFilter) ([]books.Record, error) {
	s.mu.RLock()
	result := []books.Record{}
	for _, r := range s.records {
		if filter.Genre != "" && r.Genre != filter.Genre {
			continue
		}
		if filter.Language != "" && r.Language != filter.Language {
			continue
		}
		if r.Rating < filter.MinRating {
			continue
		}
		result = append(result, r)
	}
	s.mu.RUnlock()

	sort.Slice(result, func(i, j int) bool {
		if result[i].Rating != result[j].Rating {
			return result[i].Rating > result[j].Rating
		}
		return result[i].ID < result[j].ID
	})
	if filter.Limit > 0 && len(result) > filter.Limit {
		result = result[:filter.Limit]
	}
	return result, nil
}

// All implements Store.
func (s *MemStore) All(_ context.Context) ([]books.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]books.Record, 0, len(s.records))
	for _, r := range s.records {
		result = append(result, r)
	}
	return result, nil
}

// Remove implements Store.
func (s *MemStore) Remove(_ context.Context, ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		delete(s.records, id)
	}
	return nil
}

// Count implements Store.
func (s *MemStore) Count(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records), nil
}
