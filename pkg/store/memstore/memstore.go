// Package memstore is an in-process RecordStore used by the CLI when no
// database is configured, and by tests.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/nstogner/cortex/pkg/domain"
	"github.com/nstogner/cortex/pkg/store"
)

// Store keeps records in nested maps keyed by collection and ID.
type Store struct {
	mu   sync.RWMutex
	recs map[string]map[string]domain.Record
}

var _ store.RecordStore = (*Store)(nil)

func New() *Store {
	return &Store{recs: map[string]map[string]domain.Record{}}
}

func (s *Store) Put(_ context.Context, rec *domain.Record) error {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	coll, ok := s.recs[rec.Collection]
	if !ok {
		coll = map[string]domain.Record{}
		s.recs[rec.Collection] = coll
	}
	cp := *rec
	cp.Data = append([]byte(nil), rec.Data...)
	if prev, ok := coll[rec.ID]; ok {
		cp.CreatedAt = prev.CreatedAt
	}
	coll[rec.ID] = cp
	return nil
}

func (s *Store) Get(_ context.Context, collection, id string) (*domain.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.recs[collection][id]
	if !ok {
		return nil, fmt.Errorf("%s/%s: %w", collection, id, store.ErrNotFound)
	}
	rec.Data = append([]byte(nil), rec.Data...)
	return &rec, nil
}

func (s *Store) All(_ context.Context, collection string) ([]domain.Record, error) {
	return s.filter(collection, func(domain.Record) bool { return true }), nil
}

func (s *Store) AllByIndex(_ context.Context, collection, index string) ([]domain.Record, error) {
	return s.filter(collection, func(r domain.Record) bool { return r.Index == index }), nil
}

func (s *Store) Delete(_ context.Context, collection, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.recs[collection][id]; !ok {
		return fmt.Errorf("%s/%s: %w", collection, id, store.ErrNotFound)
	}
	delete(s.recs[collection], id)
	return nil
}

func (s *Store) Clear(_ context.Context, collection string) error {
	s.mu.Lock()
	delete(s.recs, collection)
	s.mu.Unlock()
	return nil
}

func (s *Store) filter(collection string, keep func(domain.Record) bool) []domain.Record {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.Record
	for _, r := range s.recs[collection] {
		if !keep(r) {
			continue
		}
		r.Data = append([]byte(nil), r.Data...)
		out = append(out, r)
	}
	// Same ordering as the SQLite store.
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}
