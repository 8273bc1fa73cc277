// Package store persists emitted tracks in SQLite, one run per replayed or
// live sequence.
package store

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	_ "modernc.org/sqlite"

	"github.com/nvr-ai/go-mot/images"
	"github.com/nvr-ai/go-mot/tracking"
)

//go:embed schema.sql
var schemaSQL string

// schemaVersion is bumped whenever schema.sql changes.
const schemaVersion = 1

// ErrSchemaMismatch indicates a database written by another schema version.
var ErrSchemaMismatch = errors.New("schema version mismatch")

// ErrRunNotFound is returned when a run ID is unknown.
var ErrRunNotFound = errors.New("run not found")

const (
	sqliteBusyCode          = 5
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond
)

// Store is a track database backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// RunInfo describes one recorded run.
type RunInfo struct {
	ID        uuid.UUID
	Name      string
	Config    tracking.Config
	CreatedAt time.Time
	Frames    int
	Tracks    int
}

// Observation is one stored track box.
type Observation struct {
	Frame int
	tracking.TrackedBbox
}

// Open initializes or connects to the database at path. Use ":memory:" for
// a throwaway database.
//
// Arguments:
//   - ctx: Bounds schema creation.
//   - path: SQLite file path.
//
// Returns:
//   - *Store: The open store.
//   - error: An error if the database cannot be opened or has another schema
//     version.
func Open(ctx context.Context, path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrap(err, "open sqlite db")
	}
	// A single connection keeps ":memory:" databases alive and serializes
	// writers.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			_ = db.Close()
			return nil, errors.Wrapf(err, "apply pragma %q", pragma)
		}
	}

	s := &Store{db: db, path: path}
	if err := s.initSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// Path returns the database path.
func (s *Store) Path() string {
	return s.path
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) initSchema(ctx context.Context) error {
	var tableExists int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	).Scan(&tableExists)
	if err != nil {
		return errors.Wrap(err, "check schema_version table")
	}

	if tableExists == 0 {
		return s.createSchema(ctx)
	}

	var version int
	if err := s.db.QueryRowContext(ctx, "SELECT version FROM schema_version LIMIT 1").Scan(&version); err != nil {
		return errors.Wrap(err, "read schema version")
	}
	if version != schemaVersion {
		return errors.Wrapf(ErrSchemaMismatch, "database has version %d, expected %d", version, schemaVersion)
	}
	return nil
}

func (s *Store) createSchema(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "begin schema tx")
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, schemaSQL); err != nil {
		return errors.Wrap(err, "create schema")
	}
	if _, err := tx.ExecContext(ctx, "INSERT INTO schema_version (version) VALUES (?)", schemaVersion); err != nil {
		return errors.Wrap(err, "record schema version")
	}
	return errors.Wrap(tx.Commit(), "commit schema")
}

// BeginRun registers a new run and returns a handle that records its frames.
//
// Arguments:
//   - ctx: Bounds the insert.
//   - name: A label for the run, e.g. the input file name.
//   - cfg: The tracker parameters of the run.
//
// Returns:
//   - *Run: The run handle. It implements the controller's sink.
//   - error: An error if the run cannot be recorded.
func (s *Store) BeginRun(ctx context.Context, name string, cfg tracking.Config) (*Run, error) {
	encoded, err := json.Marshal(cfg)
	if err != nil {
		return nil, errors.Wrap(err, "encode tracker config")
	}

	id := uuid.New()
	err = retryOnBusy(ctx, func() error {
		_, err := s.db.ExecContext(ctx,
			"INSERT INTO runs (id, name, config, created_at) VALUES (?, ?, ?, ?)",
			id.String(), name, string(encoded), time.Now().UTC().Format(time.RFC3339Nano),
		)
		return err
	})
	if err != nil {
		return nil, errors.Wrapf(err, "insert run %q", name)
	}
	return &Run{ID: id, store: s}, nil
}

// Runs lists every recorded run, oldest first.
func (s *Store) Runs(ctx context.Context) ([]RunInfo, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT r.id, r.name, r.config, r.created_at,
		       COUNT(DISTINCT o.frame), COUNT(DISTINCT o.track_id)
		FROM runs r
		LEFT JOIN observations o ON o.run_id = r.id
		GROUP BY r.id
		ORDER BY r.rowid`)
	if err != nil {
		return nil, errors.Wrap(err, "query runs")
	}
	defer rows.Close()

	var runs []RunInfo
	for rows.Next() {
		var (
			info             RunInfo
			id, cfg, created string
		)
		if err := rows.Scan(&id, &info.Name, &cfg, &created, &info.Frames, &info.Tracks); err != nil {
			return nil, errors.Wrap(err, "scan run")
		}
		if info.ID, err = uuid.Parse(id); err != nil {
			return nil, errors.Wrapf(err, "parse run id %q", id)
		}
		if err := json.Unmarshal([]byte(cfg), &info.Config); err != nil {
			return nil, errors.Wrapf(err, "decode config of run %s", id)
		}
		if info.CreatedAt, err = time.Parse(time.RFC3339Nano, created); err != nil {
			return nil, errors.Wrapf(err, "parse created_at of run %s", id)
		}
		runs = append(runs, info)
	}
	return runs, errors.Wrap(rows.Err(), "iterate runs")
}

// Tracks returns the stored boxes of one identity in frame order.
//
// Arguments:
//   - ctx: Bounds the query.
//   - runID: The run to read.
//   - trackID: The track identity.
//
// Returns:
//   - []Observation: The track's history. Empty when the track is unknown.
//   - error: ErrRunNotFound for an unknown run, or a query error.
func (s *Store) Tracks(ctx context.Context, runID uuid.UUID, trackID int) ([]Observation, error) {
	var exists int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(1) FROM runs WHERE id = ?", runID.String()).Scan(&exists)
	if err != nil {
		return nil, errors.Wrap(err, "look up run")
	}
	if exists == 0 {
		return nil, errors.Wrapf(ErrRunNotFound, "run %s", runID)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT frame, track_id, x0, y0, x1, y1, confidence, velocity_u, velocity_v, freshly_observed
		FROM observations
		WHERE run_id = ? AND track_id = ?
		ORDER BY frame`, runID.String(), trackID)
	if err != nil {
		return nil, errors.Wrap(err, "query observations")
	}
	defer rows.Close()

	var out []Observation
	for rows.Next() {
		var (
			o     Observation
			b     images.BboxXyxy
			fresh int
		)
		if err := rows.Scan(&o.Frame, &o.ID, &b.X0, &b.Y0, &b.X1, &b.Y1, &b.Confidence,
			&o.Velocity.U, &o.Velocity.V, &fresh); err != nil {
			return nil, errors.Wrap(err, "scan observation")
		}
		o.Box = b
		o.FreshlyObserved = fresh != 0
		out = append(out, o)
	}
	return out, errors.Wrap(rows.Err(), "iterate observations")
}

// Run records the frames of one run.
type Run struct {
	ID    uuid.UUID
	store *Store
}

// WriteFrame stores the tracks emitted for frame in one transaction.
//
// Arguments:
//   - ctx: Bounds the transaction.
//   - frame: The tracker frame number.
//   - tracks: The emitted tracks. An empty slice writes nothing.
//
// Returns:
//   - error: An error if the insert fails.
func (r *Run) WriteFrame(ctx context.Context, frame int, tracks []tracking.TrackedBbox) error {
	if len(tracks) == 0 {
		return nil
	}
	return retryOnBusy(ctx, func() error {
		return r.writeFrame(ctx, frame, tracks)
	})
}

func (r *Run) writeFrame(ctx context.Context, frame int, tracks []tracking.TrackedBbox) error {
	tx, err := r.store.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "begin frame tx")
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR REPLACE INTO observations
		(run_id, frame, track_id, x0, y0, x1, y1, confidence, velocity_u, velocity_v, freshly_observed)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return errors.Wrap(err, "prepare observation insert")
	}
	defer stmt.Close()

	for _, t := range tracks {
		fresh := 0
		if t.FreshlyObserved {
			fresh = 1
		}
		_, err := stmt.ExecContext(ctx, r.ID.String(), frame, t.ID,
			t.Box.X0, t.Box.Y0, t.Box.X1, t.Box.Y1, t.Box.Confidence,
			t.Velocity.U, t.Velocity.V, fresh)
		if err != nil {
			return errors.Wrapf(err, "insert track %d at frame %d", t.ID, frame)
		}
	}
	return errors.Wrap(tx.Commit(), "commit frame")
}

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) && coder.Code() == sqliteBusyCode {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

func retryOnBusy(ctx context.Context, op func() error) error {
	delay := busyRetryInitialBackoff
	var lastErr error
	for attempt := 0; attempt < busyRetryAttempts; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if !isSQLiteBusy(lastErr) || attempt == busyRetryAttempts-1 {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		if next := delay * 2; next <= busyRetryMaxBackoff {
			delay = next
		}
	}
	return lastErr
}
