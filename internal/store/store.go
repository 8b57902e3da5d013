// ============================================================================
// meinBOT (mBOT) - Chat Command Bot
// ============================================================================
//
// Package:     store
// Description: SQLite invocation log fed by the dispatch observer
// Author:      Mike Stoffels
// Created:     2026-09-23
// License:     MIT
// ============================================================================

package store

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	mboterror "github.com/msto63/mBOT/foundation/core/error"
	"github.com/msto63/mBOT/foundation/core/log"
	"github.com/msto63/mBOT/pkg/dispatch"
)

// writeTimeout bounds a single observer insert
const writeTimeout = 5 * time.Second

// Config holds configuration for the SQLite store
type Config struct {
	Path string
	// Now replaces time.Now, for tests
	Now func() time.Time
}

// DefaultConfig returns default configuration
func DefaultConfig() Config {
	return Config{
		Path: "./data/mbot.db",
	}
}

// CommandCount is one row of the top-commands statistic
type CommandCount struct {
	Key   string
	Count int64
}

// Filter defines criteria for Recent
type Filter struct {
	Key      string
	UserID   string
	Platform string
	Outcome  dispatch.Outcome
	Since    time.Time
	Limit    int
}

// Store persists dispatch records in SQLite
type Store struct {
	db     *sql.DB
	mu     sync.RWMutex
	logger *log.Logger
	now    func() time.Time
}

// Open creates the database file if needed and prepares the schema
func Open(cfg Config, logger *log.Logger) (*Store, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		cfg.Path = DefaultConfig().Path
	}
	if logger == nil {
		logger = log.GetDefault()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	if cfg.Path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(cfg.Path), 0755); err != nil {
			return nil, storageError(err, "failed to create directory", "store.Open").WithDetail("path", cfg.Path)
		}
	}

	// Open database with WAL mode
	db, err := sql.Open("sqlite3", cfg.Path+"?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000")
	if err != nil {
		return nil, storageError(err, "failed to open database", "store.Open").WithDetail("path", cfg.Path)
	}
	if cfg.Path == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	s := &Store{
		db:     db,
		logger: logger.WithField("component", "store"),
		now:    cfg.Now,
	}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, storageError(err, "failed to initialize schema", "store.Open")
	}
	return s, nil
}

// initSchema creates the necessary tables
func (s *Store) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS invocations (
		event_id TEXT NOT NULL,
		started_ns INTEGER NOT NULL,
		duration_ns INTEGER NOT NULL,
		platform TEXT NOT NULL,
		user_id TEXT NOT NULL,
		channel_id TEXT NOT NULL,
		command_key TEXT NOT NULL,
		pattern TEXT NOT NULL,
		args TEXT NOT NULL,
		resumed INTEGER NOT NULL,
		outcome TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_invocations_started ON invocations(started_ns DESC);
	CREATE INDEX IF NOT EXISTS idx_invocations_key ON invocations(command_key);
	CREATE INDEX IF NOT EXISTS idx_invocations_user ON invocations(user_id);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Observe implements dispatch.Observer. Write failures are logged, never
// surfaced to the dispatch path.
func (s *Store) Observe(ctx context.Context, rec dispatch.Record) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), writeTimeout)
	defer cancel()

	if err := s.Record(ctx, rec); err != nil {
		s.logger.WarnWithErr("failed to record invocation", err, log.Fields{"key": rec.Key, "event_id": rec.EventID})
	}
}

// Record inserts one dispatch record
func (s *Store) Record(ctx context.Context, rec dispatch.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if rec.Started.IsZero() {
		rec.Started = s.now()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO invocations (event_id, started_ns, duration_ns, platform, user_id, channel_id,
			command_key, pattern, args, resumed, outcome)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, rec.EventID, rec.Started.UnixNano(), int64(rec.Duration), rec.Platform, rec.UserID, rec.ChannelID,
		rec.Key, rec.Pattern, rec.Args, rec.Resumed, string(rec.Outcome))
	if err != nil {
		return storageError(err, "failed to insert invocation", "store.Record")
	}
	return nil
}

// TopCommands returns the most used command keys since the given time,
// ordered by count and then key. Denied dispatches are not counted.
func (s *Store) TopCommands(ctx context.Context, since time.Time, limit int) ([]CommandCount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 10
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT command_key, COUNT(*) AS n FROM invocations
		WHERE started_ns >= ? AND outcome != ?
		GROUP BY command_key
		ORDER BY n DESC, command_key ASC
		LIMIT ?
	`, since.UnixNano(), string(dispatch.OutcomeDenied), limit)
	if err != nil {
		return nil, storageError(err, "failed to query top commands", "store.TopCommands")
	}
	defer rows.Close()

	var counts []CommandCount
	for rows.Next() {
		var c CommandCount
		if err := rows.Scan(&c.Key, &c.Count); err != nil {
			return nil, storageError(err, "failed to scan top commands", "store.TopCommands")
		}
		counts = append(counts, c)
	}
	return counts, rows.Err()
}

// Recent retrieves records matching the filter, newest first
func (s *Store) Recent(ctx context.Context, filter Filter) ([]dispatch.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `SELECT event_id, started_ns, duration_ns, platform, user_id, channel_id,
		command_key, pattern, args, resumed, outcome FROM invocations WHERE 1=1`
	var args []interface{}

	if filter.Key != "" {
		query += " AND command_key = ?"
		args = append(args, filter.Key)
	}
	if filter.UserID != "" {
		query += " AND user_id = ?"
		args = append(args, filter.UserID)
	}
	if filter.Platform != "" {
		query += " AND platform = ?"
		args = append(args, filter.Platform)
	}
	if filter.Outcome != "" {
		query += " AND outcome = ?"
		args = append(args, string(filter.Outcome))
	}
	if !filter.Since.IsZero() {
		query += " AND started_ns >= ?"
		args = append(args, filter.Since.UnixNano())
	}

	query += " ORDER BY started_ns DESC, rowid DESC"

	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, storageError(err, "failed to query invocations", "store.Recent")
	}
	defer rows.Close()

	var records []dispatch.Record
	for rows.Next() {
		var rec dispatch.Record
		var startedNs, durationNs int64
		var outcome string
		if err := rows.Scan(&rec.EventID, &startedNs, &durationNs, &rec.Platform, &rec.UserID, &rec.ChannelID,
			&rec.Key, &rec.Pattern, &rec.Args, &rec.Resumed, &outcome); err != nil {
			return nil, storageError(err, "failed to scan invocation", "store.Recent")
		}
		rec.Started = time.Unix(0, startedNs)
		rec.Duration = time.Duration(durationNs)
		rec.Outcome = dispatch.Outcome(outcome)
		records = append(records, rec)
	}
	return records, rows.Err()
}

// Count returns the number of stored records
func (s *Store) Count(ctx context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM invocations`).Scan(&n); err != nil {
		return 0, storageError(err, "failed to count invocations", "store.Count")
	}
	return n, nil
}

// Prune removes records older than the given age
func (s *Store) Prune(ctx context.Context, olderThan time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := s.now().Add(-olderThan)
	result, err := s.db.ExecContext(ctx, `DELETE FROM invocations WHERE started_ns < ?`, cutoff.UnixNano())
	if err != nil {
		return 0, storageError(err, "failed to prune invocations", "store.Prune")
	}
	deleted, _ := result.RowsAffected()
	if deleted > 0 {
		s.logger.Info("pruned invocations", log.Fields{"deleted": deleted, "cutoff": cutoff.Format(time.RFC3339)})
	}
	return deleted, nil
}

// Vacuum reclaims space after large prunes
func (s *Store) Vacuum(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.ExecContext(ctx, "VACUUM"); err != nil {
		return storageError(err, "failed to vacuum", "store.Vacuum")
	}
	return nil
}

// Ping checks the database connection
func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return storageError(err, "database unreachable", "store.Ping")
	}
	return nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

func storageError(err error, message, operation string) *mboterror.Error {
	return mboterror.Wrap(err, message).WithCode(mboterror.CodeStorage).WithOperation(operation)
}
