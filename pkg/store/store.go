package store

import (
	"context"
	"errors"

	"github.com/nstogner/cortex/pkg/domain"
)

// ErrNotFound is returned when a record, session or event does not exist.
var ErrNotFound = errors.New("not found")

// ErrStaleCompaction is returned by Compact when events were appended after the
// view that was summarized.
var ErrStaleCompaction = errors.New("session changed during compaction")

// Record collections used across the system.
const (
	CollectionMemory    = "memory"
	CollectionVectors   = "vectors"
	CollectionArtifacts = "artifacts"
	CollectionLayers    = "layers"
	CollectionFacts     = "facts"
	CollectionTasks     = "tasks"
	CollectionWorkflows = "workflows"
	CollectionNav       = "navigation"
)

// RecordStore is the key-addressable blob store behind long-term memory,
// artifacts, knowledge-layer definitions and application state.
type RecordStore interface {
	// Put creates or replaces the record with the given collection and ID.
	Put(ctx context.Context, rec *domain.Record) error

	// Get returns a record by ID. Returns ErrNotFound if it does not exist.
	Get(ctx context.Context, collection, id string) (*domain.Record, error)

	// All returns every record in a collection ordered by creation time.
	All(ctx context.Context, collection string) ([]domain.Record, error)

	// AllByIndex returns the records whose secondary key equals index,
	// ordered by creation time.
	AllByIndex(ctx context.Context, collection, index string) ([]domain.Record, error)

	// Delete removes a record by ID. Returns ErrNotFound if it does not exist.
	Delete(ctx context.Context, collection, id string) error

	// Clear removes every record in a collection.
	Clear(ctx context.Context, collection string) error
}

// SessionStore manages sessions and their append-only event logs.
// Events are immutable; compaction appends a summary note instead of deleting
// history. Query methods return the "compacted view" (events from the most
// recent compaction note onward).
type SessionStore interface {
	// CreateSession persists a new session. The ID field must be set by the caller.
	CreateSession(ctx context.Context, s *domain.Session) error

	// GetSession retrieves a session by ID. Returns ErrNotFound if missing.
	GetSession(ctx context.Context, id string) (*domain.Session, error)

	// ListSessions returns all sessions, newest first.
	ListSessions(ctx context.Context) ([]domain.Session, error)

	// UpdateSession persists changes to an existing session.
	UpdateSession(ctx context.Context, s *domain.Session) error

	// DeleteSession removes a session and its events.
	DeleteSession(ctx context.Context, id string) error

	// Append adds an event to the end of the session's log. The event's ID and
	// Timestamp are filled in when empty.
	Append(ctx context.Context, ev *domain.Event) error

	// Events returns the compacted view of a session in chronological order.
	// If limit > 0, only the last limit events are returned.
	Events(ctx context.Context, sessionID string, limit int) ([]domain.Event, error)

	// EventsAfter returns events appended after the given event ID.
	EventsAfter(ctx context.Context, sessionID, afterID string) ([]domain.Event, error)

	// Compact appends a compaction summary note. Older events remain stored but
	// are excluded from Events/EventsAfter. When lastID is set and is no longer
	// the session's newest event, nothing is written and ErrStaleCompaction is
	// returned.
	Compact(ctx context.Context, sessionID, lastID, summary string) error

	// Subscribe returns a channel that emits session IDs whenever an event is
	// appended to any session.
	Subscribe() <-chan string
}
