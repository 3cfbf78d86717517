// Package layer holds the catalog of knowledge layers: named instruction
// overlays that can be engaged per session and may unlock extra tools.
package layer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/nstogner/cortex/pkg/domain"
	"github.com/nstogner/cortex/pkg/store"
)

var (
	ErrInvalidLayer = errors.New("layer requires an id and an instruction")
	ErrStaticLayer  = errors.New("static layers cannot be changed")
)

// Built-in layer IDs.
const (
	Archivist = "ARCHIVIST"
	Analyst   = "ANALYST"
)

// Defaults returns the built-in static layers.
func Defaults() []domain.Layer {
	return []domain.Layer{
		{
			ID:    Archivist,
			Label: "ARCHIVIST",
			Instruction: "You maintain the user's long-term memory vault. When the user shares " +
				"durable knowledge, store it with memory_store under a short descriptive key. " +
				"Cite stored fragments by key when you rely on them.",
			Tools: []string{"memory_store"},
		},
		{
			ID:    Analyst,
			Label: "ANALYST",
			Instruction: "Answer with numbers where possible. Prefer task_stats and task_chart " +
				"over prose when the user asks about progress.",
			Tools: []string{"task_chart"},
		},
	}
}

// Catalog holds static layers in declaration order followed by dynamic layers
// ordered by ID. Dynamic layers are persisted in the record store.
type Catalog struct {
	records store.RecordStore

	mu      sync.RWMutex
	static  []domain.Layer
	dynamic map[string]domain.Layer
}

func NewCatalog(records store.RecordStore, static ...domain.Layer) *Catalog {
	c := &Catalog{records: records, dynamic: map[string]domain.Layer{}}
	for _, l := range static {
		l.Static = true
		c.static = append(c.static, l)
	}
	return c
}

// Load restores dynamic layers from the record store.
func (c *Catalog) Load(ctx context.Context) error {
	recs, err := c.records.All(ctx, store.CollectionLayers)
	if err != nil {
		return fmt.Errorf("listing layers: %w", err)
	}
	dynamic := make(map[string]domain.Layer, len(recs))
	for _, r := range recs {
		var l domain.Layer
		if err := json.Unmarshal(r.Data, &l); err != nil {
			slog.Warn("Skipping undecodable layer", "id", r.ID, "error", err)
			continue
		}
		dynamic[l.ID] = l
	}
	c.mu.Lock()
	c.dynamic = dynamic
	c.mu.Unlock()
	slog.Debug("Loaded layers", "static", len(c.static), "dynamic", len(dynamic))
	return nil
}

// Define creates or replaces a dynamic layer.
func (c *Catalog) Define(ctx context.Context, l domain.Layer) error {
	l.ID = strings.TrimSpace(l.ID)
	if l.ID == "" || strings.TrimSpace(l.Instruction) == "" {
		return ErrInvalidLayer
	}
	if l.Label == "" {
		l.Label = strings.ToUpper(l.ID)
	}
	l.Static = false
	if c.isStatic(l.ID) {
		return fmt.Errorf("%w: %s", ErrStaticLayer, l.ID)
	}

	data, err := json.Marshal(l)
	if err != nil {
		return err
	}
	if err := c.records.Put(ctx, &domain.Record{
		Collection: store.CollectionLayers,
		ID:         l.ID,
		Data:       data,
	}); err != nil {
		return fmt.Errorf("storing layer %s: %w", l.ID, err)
	}

	c.mu.Lock()
	c.dynamic[l.ID] = l
	c.mu.Unlock()
	slog.Info("Defined layer", "id", l.ID, "tools", l.Tools)
	return nil
}

// Remove deletes a dynamic layer.
func (c *Catalog) Remove(ctx context.Context, id string) error {
	if c.isStatic(id) {
		return fmt.Errorf("%w: %s", ErrStaticLayer, id)
	}
	if err := c.records.Delete(ctx, store.CollectionLayers, id); err != nil {
		return err
	}
	c.mu.Lock()
	delete(c.dynamic, id)
	c.mu.Unlock()
	return nil
}

func (c *Catalog) isStatic(id string) bool {
	for _, l := range c.static {
		if l.ID == id {
			return true
		}
	}
	return false
}

// All returns every layer in catalog order.
func (c *Catalog) All() []domain.Layer {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]domain.Layer, 0, len(c.static)+len(c.dynamic))
	out = append(out, c.static...)
	ids := make([]string, 0, len(c.dynamic))
	for id := range c.dynamic {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		out = append(out, c.dynamic[id])
	}
	return out
}

func (c *Catalog) Get(id string) (domain.Layer, bool) {
	for _, l := range c.All() {
		if l.ID == id {
			return l, true
		}
	}
	return domain.Layer{}, false
}

// Active returns the known layers among ids in catalog order. Unknown ids
// are ignored.
func (c *Catalog) Active(ids []string) []domain.Layer {
	if len(ids) == 0 {
		return nil
	}
	want := make(map[string]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	var out []domain.Layer
	for _, l := range c.All() {
		if want[l.ID] {
			out = append(out, l)
		}
	}
	return out
}

// Tools returns the union of tools unlocked by the given layers, in first
// appearance order.
func (c *Catalog) Tools(ids []string) []string {
	seen := map[string]bool{}
	var out []string
	for _, l := range c.Active(ids) {
		for _, t := range l.Tools {
			if !seen[t] {
				seen[t] = true
				out = append(out, t)
			}
		}
	}
	return out
}
