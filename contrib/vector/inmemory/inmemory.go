package inmemory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/triagehq/triage/errors"
	"github.com/triagehq/triage/vector"
)

// Store implements vector.Store using in-memory storage. Reads are safe for
// unsynchronized concurrent use across tickets; ingestion is expected to be
// a separate batch phase.
type Store struct {
	records   map[string]*vector.Record
	dimension int
	mu        sync.RWMutex
}

// New creates an in-memory store with a fixed embedding dimension.
func New(dimension int) *Store {
	return &Store{
		records:   make(map[string]*vector.Record),
		dimension: dimension,
	}
}

// Dimension returns the fixed embedding dimension.
func (s *Store) Dimension() int {
	return s.dimension
}

// Add inserts a record after checking its dimension.
func (s *Store) Add(ctx context.Context, rec *vector.Record) error {
	if rec == nil {
		return fmt.Errorf("record cannot be nil")
	}
	if rec.ID == "" {
		return fmt.Errorf("record ID cannot be empty")
	}
	if len(rec.Vector) != s.dimension {
		return fmt.Errorf("record %s has dimension %d, store expects %d: %w",
			rec.ID, len(rec.Vector), s.dimension, vector.ErrDimensionMismatch)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[rec.ID] = rec.Clone()
	return nil
}

// Search returns the topK most similar records, optionally restricted by a
// metadata filter. Results are ordered by similarity, ties broken by ID so
// identical queries return identical orderings.
func (s *Store) Search(ctx context.Context, query []float32, topK int, filter map[string]string) ([]vector.Match, error) {
	if len(query) == 0 {
		return nil, fmt.Errorf("query vector cannot be empty")
	}
	if len(query) != s.dimension {
		return nil, fmt.Errorf("query has dimension %d, store expects %d: %w",
			len(query), s.dimension, vector.ErrDimensionMismatch)
	}
	if topK <= 0 {
		topK = 10
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	matches := make([]vector.Match, 0, len(s.records))
	for _, rec := range s.records {
		if !matchesFilter(rec.Metadata, filter) {
			continue
		}
		matches = append(matches, vector.Match{
			Record: rec.Clone(),
			Score:  vector.CosineSimilarity(query, rec.Vector),
		})
	}

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		return matches[i].Record.ID < matches[j].Record.ID
	})

	if len(matches) > topK {
		matches = matches[:topK]
	}
	return matches, nil
}

// Delete removes a record by ID.
func (s *Store) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.records[id]; !exists {
		return fmt.Errorf("record %s: %w", id, errors.ErrNotFound)
	}
	delete(s.records, id)
	return nil
}

// Get retrieves a specific record by ID.
func (s *Store) Get(ctx context.Context, id string) (*vector.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, exists := s.records[id]
	if !exists {
		return nil, fmt.Errorf("record %s: %w", id, errors.ErrNotFound)
	}
	return rec.Clone(), nil
}

// Clear removes all records.
func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records = make(map[string]*vector.Record)
	return nil
}

// Count returns the number of records.
func (s *Store) Count(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.records), nil
}

func matchesFilter(metadata, filter map[string]string) bool {
	if len(filter) == 0 {
		return true
	}
	for k, want := range filter {
		if metadata[k] != want {
			return false
		}
	}
	return true
}
