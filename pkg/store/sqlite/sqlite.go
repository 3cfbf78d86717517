package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/nstogner/cortex/pkg/domain"
	"github.com/nstogner/cortex/pkg/store"
)

// Store implements SessionStore and RecordStore using SQLite.
type Store struct {
	db          *sql.DB
	subscribers []chan string
	mu          sync.RWMutex

	// appendMu serializes sequence allocation for Append and Compact.
	appendMu sync.Mutex
}

// Verify interface compliance at compile time.
var _ store.SessionStore = (*Store)(nil)
var _ store.RecordStore = (*Store)(nil)

// New opens (or creates) a SQLite database at the given path and runs migrations.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS sessions (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL DEFAULT '',
		mode TEXT NOT NULL DEFAULT '',
		active_layers TEXT NOT NULL DEFAULT '[]',
		active_tools TEXT NOT NULL DEFAULT '[]',
		model TEXT NOT NULL DEFAULT '',
		compaction_threshold REAL NOT NULL DEFAULT 0.6,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS events (
		id TEXT PRIMARY KEY,
		session_id TEXT NOT NULL,
		kind TEXT NOT NULL,
		content TEXT NOT NULL DEFAULT '',
		tool_name TEXT NOT NULL DEFAULT '',
		metadata TEXT NOT NULL DEFAULT '{}',
		compaction INTEGER NOT NULL DEFAULT 0,
		timestamp DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		seq INTEGER NOT NULL,
		FOREIGN KEY (session_id) REFERENCES sessions(id) ON DELETE CASCADE
	);
	CREATE INDEX IF NOT EXISTS idx_events_session_seq ON events(session_id, seq);

	CREATE TABLE IF NOT EXISTS records (
		collection TEXT NOT NULL,
		id TEXT NOT NULL,
		idx TEXT NOT NULL DEFAULT '',
		data BLOB,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (collection, id)
	);
	CREATE INDEX IF NOT EXISTS idx_records_collection_idx ON records(collection, idx);
	`
	_, err := s.db.Exec(schema)
	return err
}

// --- SessionStore: sessions ---

func (s *Store) CreateSession(ctx context.Context, sess *domain.Session) error {
	now := time.Now().UTC()
	sess.CreatedAt = now
	sess.UpdatedAt = now
	layers, tools, err := encodeLists(sess)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO sessions (id, name, mode, active_layers, active_tools, model, compaction_threshold, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sess.ID, sess.Name, sess.Mode, layers, tools,
		sess.Model, sess.CompactionThreshold,
		sess.CreatedAt, sess.UpdatedAt,
	)
	return err
}

func (s *Store) GetSession(ctx context.Context, id string) (*domain.Session, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, mode, active_layers, active_tools, model, compaction_threshold, created_at, updated_at
		 FROM sessions WHERE id = ?`, id)
	sess, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("session %s: %w", id, store.ErrNotFound)
	}
	return sess, err
}

func (s *Store) ListSessions(ctx context.Context) ([]domain.Session, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, mode, active_layers, active_tools, model, compaction_threshold, created_at, updated_at
		 FROM sessions ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []domain.Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, *sess)
	}
	return sessions, rows.Err()
}

func (s *Store) UpdateSession(ctx context.Context, sess *domain.Session) error {
	sess.UpdatedAt = time.Now().UTC()
	layers, tools, err := encodeLists(sess)
	if err != nil {
		return err
	}
	result, err := s.db.ExecContext(ctx,
		`UPDATE sessions SET name=?, mode=?, active_layers=?, active_tools=?, model=?, compaction_threshold=?, updated_at=?
		 WHERE id=?`,
		sess.Name, sess.Mode, layers, tools,
		sess.Model, sess.CompactionThreshold,
		sess.UpdatedAt, sess.ID,
	)
	if err != nil {
		return err
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return fmt.Errorf("session %s: %w", sess.ID, store.ErrNotFound)
	}
	return nil
}

func (s *Store) DeleteSession(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE id=?`, id)
	if err != nil {
		return err
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return fmt.Errorf("session %s: %w", id, store.ErrNotFound)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSession(row scanner) (*domain.Session, error) {
	var sess domain.Session
	var layers, tools string
	if err := row.Scan(&sess.ID, &sess.Name, &sess.Mode, &layers, &tools,
		&sess.Model, &sess.CompactionThreshold,
		&sess.CreatedAt, &sess.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(layers), &sess.ActiveLayers); err != nil {
		return nil, fmt.Errorf("decoding active layers: %w", err)
	}
	if err := json.Unmarshal([]byte(tools), &sess.ActiveTools); err != nil {
		return nil, fmt.Errorf("decoding active tools: %w", err)
	}
	return &sess, nil
}

func encodeLists(sess *domain.Session) (string, string, error) {
	layers := sess.ActiveLayers
	if layers == nil {
		layers = []string{}
	}
	tools := sess.ActiveTools
	if tools == nil {
		tools = []string{}
	}
	l, err := json.Marshal(layers)
	if err != nil {
		return "", "", err
	}
	t, err := json.Marshal(tools)
	if err != nil {
		return "", "", err
	}
	return string(l), string(t), nil
}

// --- SessionStore: events ---

func (s *Store) Append(ctx context.Context, ev *domain.Event) error {
	s.appendMu.Lock()
	err := s.appendLocked(ctx, ev)
	s.appendMu.Unlock()
	if err != nil {
		return err
	}

	// Notify subscribers.
	s.notifySubscribers(ev.SessionID)
	return nil
}

// appendLocked writes ev with the next sequence number. appendMu must be held.
func (s *Store) appendLocked(ctx context.Context, ev *domain.Event) error {
	store.PrepareEvent(ev)
	meta, err := json.Marshal(ev.Metadata)
	if err != nil {
		return fmt.Errorf("encoding metadata: %w", err)
	}
	compaction := 0
	if ev.Metadata[domain.MetaCompaction] == "true" {
		compaction = 1
	}

	// Get next sequence number.
	var maxSeq int
	if err := s.db.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(seq), 0) FROM events WHERE session_id=?`,
		ev.SessionID,
	).Scan(&maxSeq); err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO events (id, session_id, kind, content, tool_name, metadata, compaction, timestamp, seq)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		ev.ID, ev.SessionID, ev.Kind, ev.Content, ev.ToolName,
		string(meta), compaction, ev.Timestamp, maxSeq+1,
	)
	return err
}

const eventColumns = `id, session_id, kind, content, tool_name, metadata, timestamp`

func (s *Store) Events(ctx context.Context, sessionID string, limit int) ([]domain.Event, error) {
	compactionSeq, err := s.compactionSeq(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	query := `SELECT ` + eventColumns + `
		FROM events WHERE session_id=? AND seq >= ? ORDER BY seq ASC`
	args := []any{sessionID, compactionSeq}

	if limit > 0 {
		// Subquery to get only the last N events (from the compacted view) in ASC order.
		query = `SELECT ` + eventColumns + ` FROM (
			SELECT ` + eventColumns + `, seq
			FROM events WHERE session_id=? AND seq >= ? ORDER BY seq DESC LIMIT ?
		) sub ORDER BY seq ASC`
		args = append(args, limit)
	}

	return s.queryEvents(ctx, query, args...)
}

func (s *Store) EventsAfter(ctx context.Context, sessionID, afterID string) ([]domain.Event, error) {
	var afterSeq int
	err := s.db.QueryRowContext(ctx,
		`SELECT seq FROM events WHERE id=? AND session_id=?`, afterID, sessionID,
	).Scan(&afterSeq)
	if errors.Is(err, sql.ErrNoRows) {
		// If the afterID doesn't exist, return all events.
		return s.Events(ctx, sessionID, 0)
	}
	if err != nil {
		return nil, err
	}

	compactionSeq, err := s.compactionSeq(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if compactionSeq > afterSeq+1 {
		afterSeq = compactionSeq - 1
	}

	return s.queryEvents(ctx,
		`SELECT `+eventColumns+`
		 FROM events WHERE session_id=? AND seq > ? ORDER BY seq ASC`,
		sessionID, afterSeq,
	)
}

func (s *Store) Compact(ctx context.Context, sessionID, lastID, summary string) error {
	s.appendMu.Lock()
	defer s.appendMu.Unlock()

	if lastID != "" {
		var newest string
		err := s.db.QueryRowContext(ctx,
			`SELECT id FROM events WHERE session_id=? ORDER BY seq DESC LIMIT 1`,
			sessionID,
		).Scan(&newest)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return err
		}
		if newest != lastID {
			return store.ErrStaleCompaction
		}
	}

	// Events uses this note as the new starting point, hiding older events.
	ev := &domain.Event{
		SessionID: sessionID,
		Kind:      domain.EventSystemNote,
		Content:   summary,
		Metadata:  map[string]string{domain.MetaCompaction: "true"},
	}
	if err := s.appendLocked(ctx, ev); err != nil {
		return err
	}
	s.notifySubscribers(sessionID)
	return nil
}

func (s *Store) compactionSeq(ctx context.Context, sessionID string) (int, error) {
	var seq int
	err := s.db.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(seq), 0) FROM events WHERE session_id=? AND compaction=1`,
		sessionID,
	).Scan(&seq)
	return seq, err
}

func (s *Store) queryEvents(ctx context.Context, query string, args ...any) ([]domain.Event, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []domain.Event
	for rows.Next() {
		var e domain.Event
		var meta string
		if err := rows.Scan(&e.ID, &e.SessionID, &e.Kind, &e.Content, &e.ToolName, &meta, &e.Timestamp); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(meta), &e.Metadata); err != nil {
			return nil, fmt.Errorf("decoding metadata of event %s: %w", e.ID, err)
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

func (s *Store) Subscribe() <-chan string {
	ch := make(chan string, 64)
	s.mu.Lock()
	s.subscribers = append(s.subscribers, ch)
	s.mu.Unlock()
	return ch
}

func (s *Store) notifySubscribers(sessionID string) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, ch := range s.subscribers {
		select {
		case ch <- sessionID:
		default:
			// Drop if subscriber is not consuming fast enough.
		}
	}
}

// --- RecordStore ---

func (s *Store) Put(ctx context.Context, rec *domain.Record) error {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO records (collection, id, idx, data, created_at) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(collection, id) DO UPDATE SET idx=excluded.idx, data=excluded.data`,
		rec.Collection, rec.ID, rec.Index, rec.Data, rec.CreatedAt,
	)
	return err
}

func (s *Store) Get(ctx context.Context, collection, id string) (*domain.Record, error) {
	rec := &domain.Record{}
	err := s.db.QueryRowContext(ctx,
		`SELECT collection, id, idx, data, created_at FROM records WHERE collection=? AND id=?`,
		collection, id,
	).Scan(&rec.Collection, &rec.ID, &rec.Index, &rec.Data, &rec.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s/%s: %w", collection, id, store.ErrNotFound)
	}
	return rec, err
}

func (s *Store) All(ctx context.Context, collection string) ([]domain.Record, error) {
	return s.queryRecords(ctx,
		`SELECT collection, id, idx, data, created_at FROM records
		 WHERE collection=? ORDER BY created_at ASC, id ASC`, collection)
}

func (s *Store) AllByIndex(ctx context.Context, collection, index string) ([]domain.Record, error) {
	return s.queryRecords(ctx,
		`SELECT collection, id, idx, data, created_at FROM records
		 WHERE collection=? AND idx=? ORDER BY created_at ASC, id ASC`, collection, index)
}

func (s *Store) Delete(ctx context.Context, collection, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM records WHERE collection=? AND id=?`, collection, id)
	if err != nil {
		return err
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return fmt.Errorf("%s/%s: %w", collection, id, store.ErrNotFound)
	}
	return nil
}

func (s *Store) Clear(ctx context.Context, collection string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM records WHERE collection=?`, collection)
	return err
}

func (s *Store) queryRecords(ctx context.Context, query string, args ...any) ([]domain.Record, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var recs []domain.Record
	for rows.Next() {
		var r domain.Record
		if err := rows.Scan(&r.Collection, &r.ID, &r.Index, &r.Data, &r.CreatedAt); err != nil {
			return nil, err
		}
		recs = append(recs, r)
	}
	return recs, rows.Err()
}
