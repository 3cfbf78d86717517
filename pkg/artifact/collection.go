// Package artifact manages user-supplied files attached to a session and
// exposes them, with tool schemas, to the context compiler.
package artifact

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nstogner/cortex/pkg/domain"
	"github.com/nstogner/cortex/pkg/store"
)

var ErrInvalidArtifact = errors.New("artifact requires a session and a name")

// SchemaSource resolves tool schemas by name.
type SchemaSource interface {
	Schema(name string) (domain.ToolSchema, error)
}

// Collection stores artifacts in the record store, indexed by session.
type Collection struct {
	records store.RecordStore
	schemas SchemaSource
}

func NewCollection(records store.RecordStore, schemas SchemaSource) *Collection {
	return &Collection{records: records, schemas: schemas}
}

// Attach makes an artifact visible to future turns of its session.
func (c *Collection) Attach(ctx context.Context, a *domain.Artifact) error {
	if a.SessionID == "" || a.Name == "" {
		return ErrInvalidArtifact
	}
	if a.ID == "" {
		a.ID = store.NewID()
	}
	if a.MimeType == "" {
		a.MimeType = "text/plain"
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	data, err := json.Marshal(a)
	if err != nil {
		return err
	}
	if err := c.records.Put(ctx, &domain.Record{
		Collection: store.CollectionArtifacts,
		ID:         a.ID,
		Index:      a.SessionID,
		Data:       data,
		CreatedAt:  a.CreatedAt,
	}); err != nil {
		return fmt.Errorf("attaching artifact %s: %w", a.Name, err)
	}
	slog.Info("Attached artifact", "sessionID", a.SessionID, "name", a.Name, "bytes", len(a.Data))
	return nil
}

// Detach removes an artifact from its session.
func (c *Collection) Detach(ctx context.Context, sessionID, id string) error {
	rec, err := c.records.Get(ctx, store.CollectionArtifacts, id)
	if err != nil {
		return err
	}
	if rec.Index != sessionID {
		return fmt.Errorf("artifact %s in session %s: %w", id, sessionID, store.ErrNotFound)
	}
	return c.records.Delete(ctx, store.CollectionArtifacts, id)
}

// Active returns the artifacts attached to a session in attach order.
func (c *Collection) Active(ctx context.Context, sessionID string) ([]domain.Artifact, error) {
	recs, err := c.records.AllByIndex(ctx, store.CollectionArtifacts, sessionID)
	if err != nil {
		return nil, fmt.Errorf("listing artifacts: %w", err)
	}
	out := make([]domain.Artifact, 0, len(recs))
	for _, r := range recs {
		var a domain.Artifact
		if err := json.Unmarshal(r.Data, &a); err != nil {
			slog.Warn("Skipping undecodable artifact", "id", r.ID, "error", err)
			continue
		}
		out = append(out, a)
	}
	return out, nil
}

// Session returns the artifact view of one session.
func (c *Collection) Session(sessionID string) *View {
	return &View{c: c, sessionID: sessionID}
}

// View is what the context compiler sees of a session's artifacts.
type View struct {
	c         *Collection
	sessionID string
}

// ActiveArtifacts returns the session's artifacts; empty when none are attached.
func (v *View) ActiveArtifacts(ctx context.Context) ([]domain.Artifact, error) {
	if v == nil || v.c == nil || v.sessionID == "" {
		return nil, nil
	}
	return v.c.Active(ctx, v.sessionID)
}

// Schema returns the registered schema for a tool, or the zero schema when the
// tool is unknown.
func (v *View) Schema(name string) domain.ToolSchema {
	if v == nil || v.c == nil || v.c.schemas == nil {
		return domain.ToolSchema{}
	}
	s, err := v.c.schemas.Schema(name)
	if err != nil {
		slog.Warn("Schema lookup failed", "tool", name, "error", err)
		return domain.ToolSchema{}
	}
	return s
}
