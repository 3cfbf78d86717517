// Package memory implements the long-term memory vault: keyed text fragments
// persisted in the record store, retrieved by a keyword relevance scan or, when
// an embedder is configured, by vector similarity.
package memory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/nstogner/cortex/pkg/domain"
	"github.com/nstogner/cortex/pkg/store"
	"github.com/nstogner/cortex/pkg/vector"
)

var (
	ErrKeyExists           = errors.New("memory key already exists")
	ErrInvalidRecord       = errors.New("memory key and text are required")
	ErrSemanticUnavailable = errors.New("semantic query requires an embedder")
)

const (
	untaggedIndex = "untagged"

	DefaultCacheSize = 256

	scoreKeyMatch   = 10
	scoreTagMatch   = 5
	scoreSummaryHit = 2
	scoreWeakMatch  = 1
)

// Embedder turns text into an embedding vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Memory is the long-term memory vault.
type Memory struct {
	records store.RecordStore
	index   *vector.Index

	embedder Embedder
	cache    *lru.Cache[string, []float32]

	// mu serializes Store so the duplicate-key check and the write are atomic.
	mu sync.Mutex
}

type Option func(*Memory) error

// WithEmbedder enables semantic storage and retrieval. Query embeddings are
// cached by query text in an LRU of the given size.
func WithEmbedder(e Embedder, cacheSize int) Option {
	return func(m *Memory) error {
		if cacheSize <= 0 {
			cacheSize = DefaultCacheSize
		}
		c, err := lru.New[string, []float32](cacheSize)
		if err != nil {
			return fmt.Errorf("creating embedding cache: %w", err)
		}
		m.embedder = e
		m.cache = c
		return nil
	}
}

func New(records store.RecordStore, opts ...Option) (*Memory, error) {
	m := &Memory{records: records, index: vector.NewIndex()}
	for _, o := range opts {
		if err := o(m); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// StoreOption adjusts a record before it is persisted.
type StoreOption func(*domain.MemoryRecord)

// WithTags attaches explicit tags in addition to the #hashtags of the text.
func WithTags(tags ...string) StoreOption {
	return func(r *domain.MemoryRecord) {
		r.Tags = append(r.Tags, tags...)
	}
}

// Store persists a new fragment. Records are never overwritten.
func (m *Memory) Store(ctx context.Context, key, text string, opts ...StoreOption) (*domain.MemoryRecord, error) {
	key = strings.TrimSpace(key)
	if key == "" || strings.TrimSpace(text) == "" {
		return nil, ErrInvalidRecord
	}

	rec := &domain.MemoryRecord{
		Key:       key,
		Text:      text,
		Summary:   summarize(text),
		CreatedAt: time.Now().UTC(),
	}
	for _, o := range opts {
		o(rec)
	}
	rec.Tags = normalizeTags(append(rec.Tags, hashtags(text)...))

	m.mu.Lock()
	defer m.mu.Unlock()

	_, err := m.records.Get(ctx, store.CollectionMemory, key)
	if err == nil {
		return nil, fmt.Errorf("%w: %s", ErrKeyExists, key)
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("checking key %s: %w", key, err)
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return nil, err
	}
	idx := untaggedIndex
	if len(rec.Tags) > 0 {
		idx = rec.Tags[0]
	}
	if err := m.records.Put(ctx, &domain.Record{
		Collection: store.CollectionMemory,
		ID:         key,
		Index:      idx,
		Data:       data,
		CreatedAt:  rec.CreatedAt,
	}); err != nil {
		return nil, fmt.Errorf("storing memory %s: %w", key, err)
	}

	if m.embedder != nil {
		if err := m.embed(ctx, rec); err != nil {
			// The fragment stays reachable through keyword queries.
			slog.Warn("Failed to embed memory", "key", key, "error", err)
		}
	}

	slog.Debug("Stored memory", "key", key, "tags", rec.Tags)
	return rec, nil
}

func (m *Memory) embed(ctx context.Context, rec *domain.MemoryRecord) error {
	emb, err := m.embedder.Embed(ctx, rec.Text)
	if err != nil {
		return err
	}
	vr := domain.VectorRecord{
		ID:        rec.Key,
		Embedding: emb,
		Metadata:  map[string]string{"key": rec.Key},
	}
	data, err := json.Marshal(vr)
	if err != nil {
		return err
	}
	if err := m.records.Put(ctx, &domain.Record{
		Collection: store.CollectionVectors,
		ID:         rec.Key,
		Data:       data,
	}); err != nil {
		return err
	}
	m.index.Upsert(vr)
	return nil
}

type scored struct {
	rec   domain.MemoryRecord
	score int
}

// Query performs a naive relevance scan over every fragment and returns the
// best limit matches formatted for the working context. limit <= 0 returns
// every match.
func (m *Memory) Query(ctx context.Context, text string, limit int) ([]string, error) {
	recs, err := m.Records(ctx)
	if err != nil {
		return nil, err
	}

	needle := strings.ToLower(strings.TrimSpace(text))
	tokens := tokenize(text)
	tokenSet := make(map[string]bool, len(tokens))
	for _, t := range tokens {
		tokenSet[t] = true
	}

	var hits []scored
	for _, rec := range recs {
		if s := score(rec, needle, tokens, tokenSet); s > 0 {
			hits = append(hits, scored{rec: rec, score: s})
		}
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].score > hits[j].score })
	if limit > 0 && len(hits) > limit {
		hits = hits[:limit]
	}

	out := make([]string, len(hits))
	for i, h := range hits {
		out[i] = Format(h.rec)
	}
	return out, nil
}

func score(rec domain.MemoryRecord, needle string, tokens []string, tokenSet map[string]bool) int {
	s := 0
	key := strings.ToLower(rec.Key)
	if needle != "" && strings.Contains(key, needle) {
		s += scoreKeyMatch
	}
	for _, tag := range rec.Tags {
		if tokenSet[tag] {
			s += scoreTagMatch
		}
	}
	if rec.Summary != "" {
		summary := strings.ToLower(rec.Summary)
		for _, t := range tokens {
			if strings.Contains(summary, t) {
				s += scoreSummaryHit
			}
		}
	} else {
		body := strings.ToLower(rec.Text)
		for _, t := range tokens {
			if strings.Contains(body, t) {
				s += scoreWeakMatch
				break
			}
		}
	}
	return s
}

// SemanticQuery embeds text and returns the nearest fragments by cosine
// similarity. Non-positive similarities are not returned.
func (m *Memory) SemanticQuery(ctx context.Context, text string, limit int) ([]string, error) {
	if m.embedder == nil {
		return nil, ErrSemanticUnavailable
	}

	emb, ok := m.cache.Get(text)
	if !ok {
		var err error
		emb, err = m.embedder.Embed(ctx, text)
		if err != nil {
			return nil, fmt.Errorf("embedding query: %w", err)
		}
		m.cache.Add(text, emb)
	}

	var out []string
	for _, match := range m.index.Search(emb, limit) {
		if match.Score <= 0 {
			break
		}
		rec, err := m.Get(ctx, match.ID)
		if err != nil {
			slog.Warn("Vector without memory record", "key", match.ID, "error", err)
			continue
		}
		out = append(out, Format(*rec))
	}
	return out, nil
}

// Records returns every fragment in storage order.
func (m *Memory) Records(ctx context.Context) ([]domain.MemoryRecord, error) {
	raw, err := m.records.All(ctx, store.CollectionMemory)
	if err != nil {
		return nil, fmt.Errorf("listing memory: %w", err)
	}
	recs := make([]domain.MemoryRecord, 0, len(raw))
	for _, r := range raw {
		var rec domain.MemoryRecord
		if err := json.Unmarshal(r.Data, &rec); err != nil {
			slog.Warn("Skipping undecodable memory", "key", r.ID, "error", err)
			continue
		}
		recs = append(recs, rec)
	}
	return recs, nil
}

func (m *Memory) Get(ctx context.Context, key string) (*domain.MemoryRecord, error) {
	r, err := m.records.Get(ctx, store.CollectionMemory, key)
	if err != nil {
		return nil, err
	}
	var rec domain.MemoryRecord
	if err := json.Unmarshal(r.Data, &rec); err != nil {
		return nil, fmt.Errorf("decoding memory %s: %w", key, err)
	}
	return &rec, nil
}

// Wipe deletes every fragment and embedding.
func (m *Memory) Wipe(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.records.Clear(ctx, store.CollectionMemory); err != nil {
		return fmt.Errorf("clearing memory: %w", err)
	}
	if err := m.records.Clear(ctx, store.CollectionVectors); err != nil {
		return fmt.Errorf("clearing vectors: %w", err)
	}
	m.index.Reset()
	if m.cache != nil {
		m.cache.Purge()
	}
	slog.Info("Wiped memory vault")
	return nil
}

// Load rebuilds the in-memory vector index from persisted embeddings.
func (m *Memory) Load(ctx context.Context) error {
	raw, err := m.records.All(ctx, store.CollectionVectors)
	if err != nil {
		return fmt.Errorf("listing vectors: %w", err)
	}
	m.index.Reset()
	for _, r := range raw {
		var vr domain.VectorRecord
		if err := json.Unmarshal(r.Data, &vr); err != nil {
			slog.Warn("Skipping undecodable vector", "id", r.ID, "error", err)
			continue
		}
		m.index.Upsert(vr)
	}
	slog.Debug("Loaded memory vectors", "count", m.index.Len())
	return nil
}

// Format renders a fragment the way it appears in the working context.
func Format(rec domain.MemoryRecord) string {
	return fmt.Sprintf("[ARTIFACT: %s] Summary: %s", rec.Key, rec.Summary)
}

func normalizeTags(tags []string) []string {
	seen := map[string]bool{}
	var out []string
	for _, t := range tags {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}
