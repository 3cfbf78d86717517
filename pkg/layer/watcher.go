package layer

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"

	"github.com/nstogner/cortex/pkg/domain"
)

// Watcher keeps the catalog in sync with the *.yaml layer definitions in a
// directory. Each file holds one layer.
type Watcher struct {
	catalog *Catalog
	dir     string
	fsw     *fsnotify.Watcher

	mu    sync.Mutex
	files map[string]string // path -> layer ID
}

func NewWatcher(catalog *Catalog, dir string) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating fsnotify watcher: %w", err)
	}
	if err := fsw.Add(dir); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("watching %s: %w", dir, err)
	}
	return &Watcher{
		catalog: catalog,
		dir:     dir,
		fsw:     fsw,
		files:   map[string]string{},
	}, nil
}

// LoadAll defines a layer for every definition file currently in the directory.
func (w *Watcher) LoadAll(ctx context.Context) error {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		return fmt.Errorf("reading layers dir: %w", err)
	}
	for _, e := range entries {
		if e.IsDir() || !isLayerFile(e.Name()) {
			continue
		}
		if err := w.load(ctx, filepath.Join(w.dir, e.Name())); err != nil {
			slog.Warn("Failed to load layer file", "file", e.Name(), "error", err)
		}
	}
	return nil
}

// Run applies file changes to the catalog until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.fsw.Close()
	slog.Info("Watching layer definitions", "dir", w.dir)

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			w.handle(ctx, event)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			slog.Error("Layer watcher error", "error", err)
		}
	}
}

func (w *Watcher) handle(ctx context.Context, event fsnotify.Event) {
	if !isLayerFile(event.Name) {
		return
	}
	switch {
	case event.Has(fsnotify.Create), event.Has(fsnotify.Write):
		if err := w.load(ctx, event.Name); err != nil {
			slog.Warn("Failed to reload layer file", "file", event.Name, "error", err)
		}
	case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
		w.mu.Lock()
		id, ok := w.files[event.Name]
		delete(w.files, event.Name)
		w.mu.Unlock()
		if !ok {
			return
		}
		if err := w.catalog.Remove(ctx, id); err != nil {
			slog.Warn("Failed to remove layer", "id", id, "error", err)
			return
		}
		slog.Info("Removed layer", "id", id, "file", event.Name)
	}
}

func (w *Watcher) load(ctx context.Context, path string) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	l, err := ParseLayer(b)
	if err != nil {
		return err
	}
	if err := w.catalog.Define(ctx, l); err != nil {
		return err
	}

	w.mu.Lock()
	prev, had := w.files[path]
	w.files[path] = l.ID
	w.mu.Unlock()

	// The file was edited to carry a different ID.
	if had && prev != l.ID {
		if err := w.catalog.Remove(ctx, prev); err != nil {
			slog.Warn("Failed to remove renamed layer", "id", prev, "error", err)
		}
	}
	return nil
}

// ParseLayer decodes one YAML layer definition.
func ParseLayer(b []byte) (domain.Layer, error) {
	var l domain.Layer
	if err := yaml.Unmarshal(b, &l); err != nil {
		return domain.Layer{}, fmt.Errorf("parsing layer: %w", err)
	}
	if l.ID == "" || strings.TrimSpace(l.Instruction) == "" {
		return domain.Layer{}, ErrInvalidLayer
	}
	return l, nil
}

func isLayerFile(name string) bool {
	ext := filepath.Ext(name)
	return ext == ".yaml" || ext == ".yml"
}
