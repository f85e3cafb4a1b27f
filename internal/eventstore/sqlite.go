package eventstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"git.home.luguber.info/inful/releaser/internal/foundation/errors"
)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
	mu sync.RWMutex
}

// NewSQLiteStore opens (and creates) the journal at dbPath.
// Use ":memory:" for an in-memory journal.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if dbPath != ":memory:" {
		if dir := filepath.Dir(dbPath); dir != "." {
			if err := os.MkdirAll(dir, 0o750); err != nil {
				return nil, errors.JournalError("could not create journal directory").
					WithCause(err).
					WithContext("path", dir).
					Build()
			}
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, errors.JournalError(ErrDatabaseOpenFailed.Message()).
			WithCause(err).
			WithContext("path", dbPath).
			Build()
	}
	// One connection keeps ":memory:" databases shared and serializes writers.
	db.SetMaxOpenConns(1)

	store := &SQLiteStore{db: db}
	if err := store.initialize(); err != nil {
		_ = db.Close() // Best effort cleanup on initialization error
		return nil, errors.JournalError(ErrInitializeSchemaFailed.Message()).
			WithCause(err).
			WithContext("path", dbPath).
			Build()
	}

	return store, nil
}

func (s *SQLiteStore) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		version TEXT NOT NULL,
		event_type TEXT NOT NULL,
		timestamp INTEGER NOT NULL,
		payload BLOB NOT NULL,
		metadata TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_run_id ON events(run_id);
	CREATE INDEX IF NOT EXISTS idx_version ON events(version);
	CREATE INDEX IF NOT EXISTS idx_timestamp ON events(timestamp);
	CREATE TABLE IF NOT EXISTS run_locks (
		version TEXT PRIMARY KEY,
		run_id TEXT NOT NULL,
		acquired_at INTEGER NOT NULL
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Append adds a new event to the store. A zero timestamp is stamped with now.
func (s *SQLiteStore) Append(ctx context.Context, e Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var metadataJSON []byte
	if md := e.Metadata(); md != nil {
		var err error
		metadataJSON, err = json.Marshal(md)
		if err != nil {
			return errors.JournalError(ErrMarshalPayloadFailed.Message()).WithCause(err).Build()
		}
	}

	ts := e.Timestamp()
	if ts.IsZero() {
		ts = time.Now()
	}
	payload := e.Payload()
	if payload == nil {
		payload = []byte("{}")
	}
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO events (run_id, version, event_type, timestamp, payload, metadata) VALUES (?, ?, ?, ?, ?, ?)",
		e.RunID(), e.Version(), e.Type(), ts.UnixNano(), payload, metadataJSON,
	)
	if err != nil {
		return errors.JournalError(ErrEventAppendFailed.Message()).
			WithCause(err).
			WithContext("run_id", e.RunID()).
			WithContext("type", e.Type()).
			Build()
	}

	return nil
}

const selectEvents = "SELECT id, run_id, version, event_type, timestamp, payload, metadata FROM events"

// ByRun retrieves all events for a specific run.
func (s *SQLiteStore) ByRun(ctx context.Context, runID string) ([]Event, error) {
	return s.query(ctx, selectEvents+" WHERE run_id = ? ORDER BY id", runID)
}

// ByVersion retrieves all events for a version.
func (s *SQLiteStore) ByVersion(ctx context.Context, version string) ([]Event, error) {
	return s.query(ctx, selectEvents+" WHERE version = ? ORDER BY id", version)
}

// GetRange retrieves events within a time range.
func (s *SQLiteStore) GetRange(ctx context.Context, start, end time.Time) ([]Event, error) {
	return s.query(ctx, selectEvents+" WHERE timestamp >= ? AND timestamp <= ? ORDER BY id", start.UnixNano(), end.UnixNano())
}

func (s *SQLiteStore) query(ctx context.Context, q string, args ...any) ([]Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, errors.JournalError(ErrEventQueryFailed.Message()).WithCause(err).Build()
	}
	defer func() { _ = rows.Close() }()

	return s.scanEvents(rows)
}

func (s *SQLiteStore) scanEvents(rows *sql.Rows) ([]Event, error) {
	var events []Event
	for rows.Next() {
		var e BaseEvent
		var ts int64
		var metadataJSON []byte

		err := rows.Scan(&e.EventID, &e.EventRunID, &e.EventVersion, &e.EventType, &ts, &e.EventPayload, &metadataJSON)
		if err != nil {
			return nil, errors.JournalError("failed to scan event rows").WithCause(err).Build()
		}

		e.EventTimestamp = time.Unix(0, ts)

		if len(metadataJSON) > 0 {
			if err := json.Unmarshal(metadataJSON, &e.EventMetadata); err != nil {
				return nil, errors.JournalError("failed to unmarshal event metadata").WithCause(err).Build()
			}
		}

		events = append(events, &e)
	}

	if err := rows.Err(); err != nil {
		return nil, errors.JournalError("failed to iterate event rows").WithCause(err).Build()
	}

	return events, nil
}

// AcquireLock implements Store.
func (s *SQLiteStore) AcquireLock(ctx context.Context, version, runID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		"INSERT OR IGNORE INTO run_locks (version, run_id, acquired_at) VALUES (?, ?, ?)",
		version, runID, time.Now().UnixNano(),
	)
	if err != nil {
		return errors.JournalError("failed to acquire run lock").WithCause(err).WithContext("version", version).Build()
	}
	if n, _ := res.RowsAffected(); n == 1 {
		return nil
	}

	var owner string
	var since int64
	row := s.db.QueryRowContext(ctx, "SELECT run_id, acquired_at FROM run_locks WHERE version = ?", version)
	if err := row.Scan(&owner, &since); err != nil {
		return errors.JournalError("failed to read run lock").WithCause(err).WithContext("version", version).Build()
	}
	if owner == runID {
		return nil
	}
	return &LockedError{Version: version, RunID: owner, Since: time.Unix(0, since)}
}

// ReleaseLock implements Store.
func (s *SQLiteStore) ReleaseLock(ctx context.Context, version, runID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.ExecContext(ctx, "DELETE FROM run_locks WHERE version = ? AND run_id = ?", version, runID); err != nil {
		return errors.JournalError("failed to release run lock").WithCause(err).WithContext("version", version).Build()
	}
	return nil
}

// ForceUnlock implements Store.
func (s *SQLiteStore) ForceUnlock(ctx context.Context, version string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.ExecContext(ctx, "DELETE FROM run_locks WHERE version = ?", version); err != nil {
		return errors.JournalError("failed to remove run lock").WithCause(err).WithContext("version", version).Build()
	}
	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}
