package store

import (
	"context"
	"sort"
	"sync"

	"keyserve/internal/license"
)

// MemoryStore implements Store on a mutex-guarded map. It mirrors the
// compare-and-update semantics of the Mongo store and backs the dev profile
// and tests.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]license.Record
}

// NewMemoryStore creates an empty in-memory record store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]license.Record)}
}

func (s *MemoryStore) Get(ctx context.Context, key string) (*license.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[key]
	if !ok {
		return nil, ErrNotFound
	}
	return &rec, nil
}

func (s *MemoryStore) Create(ctx context.Context, rec *license.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.records[rec.Key]; exists {
		return ErrAlreadyExists
	}
	rec.Revision = 1
	s.records[rec.Key] = *rec
	return nil
}

func (s *MemoryStore) UpdateIf(ctx context.Context, rec *license.Record, expectedRevision int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.records[rec.Key]
	if !ok {
		return ErrNotFound
	}
	if current.Revision != expectedRevision {
		return ErrConflict
	}
	next := *rec
	next.Revision = expectedRevision + 1
	s.records[rec.Key] = next
	rec.Revision = next.Revision
	return nil
}

func (s *MemoryStore) BumpCheckCount(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[key]
	if !ok {
		return ErrNotFound
	}
	rec.CheckCount++
	s.records[key] = rec
	return nil
}

func (s *MemoryStore) List(ctx context.Context) ([]license.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	recs := make([]license.Record, 0, len(s.records))
	for _, rec := range s.records {
		recs = append(recs, rec)
	}
	sort.Slice(recs, func(i, j int) bool {
		if recs[i].CreatedAt.Equal(recs[j].CreatedAt) {
			return recs[i].Key < recs[j].Key
		}
		return recs[i].CreatedAt.Before(recs[j].CreatedAt)
	})
	return recs, nil
}

func (s *MemoryStore) Ping(ctx context.Context) error {
	return ctx.Err()
}

func (s *MemoryStore) Close(ctx context.Context) error {
	return nil
}
