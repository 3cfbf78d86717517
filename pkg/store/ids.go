package store

import (
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"

	"github.com/nstogner/cortex/pkg/domain"
)

// NewID returns a random identifier for sessions, artifacts and tasks.
func NewID() string {
	return uuid.New().String()
}

// NewEventID returns a lexicographically time-ordered event identifier.
func NewEventID() string {
	return ulid.Make().String()
}

// PrepareEvent fills in the event ID and timestamp when they are unset.
func PrepareEvent(ev *domain.Event) {
	if ev.ID == "" {
		ev.ID = NewEventID()
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now().UTC()
	}
}
