// Package vector provides cosine similarity and a brute-force in-memory
// nearest-neighbour index over embedding vectors.
package vector

import (
	"math"
	"sort"
	"sync"

	"github.com/viterin/vek/vek32"

	"github.com/nstogner/cortex/pkg/domain"
)

// CosineSimilarity returns dot(a,b)/(|a||b|) clamped into [-1, 1].
// Empty, zero-magnitude or mismatched vectors score 0.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	na := float64(vek32.Dot(a, a))
	nb := float64(vek32.Dot(b, b))
	if na == 0 || nb == 0 {
		return 0
	}
	sim := float64(vek32.Dot(a, b)) / (math.Sqrt(na) * math.Sqrt(nb))
	switch {
	case math.IsNaN(sim):
		return 0
	case sim > 1:
		return 1
	case sim < -1:
		return -1
	}
	return sim
}

// Match is one search hit.
type Match struct {
	ID    string
	Score float64
}

// Index stores vector records in memory. There is no eviction.
type Index struct {
	mu   sync.RWMutex
	recs map[string]domain.VectorRecord
}

func NewIndex() *Index {
	return &Index{recs: map[string]domain.VectorRecord{}}
}

// Upsert inserts rec or replaces the record with the same ID.
func (i *Index) Upsert(rec domain.VectorRecord) {
	rec.Embedding = append([]float32(nil), rec.Embedding...)
	if rec.Metadata != nil {
		md := make(map[string]string, len(rec.Metadata))
		for k, v := range rec.Metadata {
			md[k] = v
		}
		rec.Metadata = md
	}
	i.mu.Lock()
	i.recs[rec.ID] = rec
	i.mu.Unlock()
}

// Search scores every record against query and returns the best limit
// matches by descending score. limit <= 0 returns all.
func (i *Index) Search(query []float32, limit int) []Match {
	i.mu.RLock()
	matches := make([]Match, 0, len(i.recs))
	for id, rec := range i.recs {
		matches = append(matches, Match{ID: id, Score: CosineSimilarity(query, rec.Embedding)})
	}
	i.mu.RUnlock()

	sort.Slice(matches, func(a, b int) bool {
		if matches[a].Score != matches[b].Score {
			return matches[a].Score > matches[b].Score
		}
		return matches[a].ID < matches[b].ID
	})
	if limit > 0 && len(matches) > limit {
		matches = matches[:limit]
	}
	return matches
}

func (i *Index) Get(id string) (domain.VectorRecord, bool) {
	i.mu.RLock()
	defer i.mu.RUnlock()
	rec, ok := i.recs[id]
	return rec, ok
}

func (i *Index) Delete(id string) {
	i.mu.Lock()
	delete(i.recs, id)
	i.mu.Unlock()
}

func (i *Index) Len() int {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return len(i.recs)
}

// Reset drops every record.
func (i *Index) Reset() {
	i.mu.Lock()
	i.recs = map[string]domain.VectorRecord{}
	i.mu.Unlock()
}
