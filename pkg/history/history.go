// Package history persists completed selections to SQLite for later
// inspection. Writes go through a buffered channel and a single writer
// goroutine so the selection hot path never touches disk; when the queue is
// full records are dropped and counted rather than blocking a request.
package history

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	_ "modernc.org/sqlite"

	"github.com/opus67/skillctx/pkg/logger"
	"github.com/opus67/skillctx/pkg/types/selection"
)

const defaultQueueSize = 256

const schema = `
CREATE TABLE IF NOT EXISTS selections (
	id TEXT PRIMARY KEY,
	created_at TIMESTAMP NOT NULL,
	fingerprint TEXT NOT NULL,
	query_text TEXT NOT NULL,
	budget INTEGER NOT NULL,
	total_cost INTEGER NOT NULL,
	skill_ids TEXT NOT NULL,
	cache_hit INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_selections_created_at ON selections(created_at DESC);
`

// DefaultDBPath returns the default location of the history database.
func DefaultDBPath() (string, error) {
	if basePath := os.Getenv("SKILLCTX_BASE_PATH"); basePath != "" {
		return filepath.Join(basePath, "history.db"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", errors.Wrap(err, "failed to get home directory")
	}
	return filepath.Join(home, ".skillctx", "history.db"), nil
}

// Store is a SQLite-backed selection history with an asynchronous writer.
type Store struct {
	db        *sqlx.DB
	queue     chan selection.AuditRecord
	dropped   atomic.Uint64
	enqueued  atomic.Uint64
	written   atomic.Uint64
	done      chan struct{}
	closeOnce sync.Once
}

// Open opens or creates the history database and starts the writer.
func Open(ctx context.Context, dbPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, errors.Wrap(err, "failed to create database directory")
	}

	db, err := sqlx.Open("sqlite", dbPath)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open database")
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "failed to ping database")
	}
	if err := configure(ctx, db); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "failed to configure database")
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "failed to apply schema")
	}

	s := &Store{
		db:    db,
		queue: make(chan selection.AuditRecord, defaultQueueSize),
		done:  make(chan struct{}),
	}
	go s.writeLoop()
	return s, nil
}

// configure sets up SQLite pragmas for WAL-mode single-writer use.
func configure(ctx context.Context, db *sqlx.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			return errors.Wrapf(err, "failed to execute pragma: %s", pragma)
		}
	}

	db.SetMaxIdleConns(1)
	db.SetMaxOpenConns(1)

	var journalMode string
	if err := db.QueryRowContext(ctx, "PRAGMA journal_mode").Scan(&journalMode); err != nil {
		return errors.Wrap(err, "failed to query journal mode")
	}
	if strings.ToLower(journalMode) != "wal" {
		return errors.Errorf("WAL mode not enabled, current mode: %s", journalMode)
	}
	return nil
}

// Record implements engine.Recorder. It never blocks: a full queue drops
// the record and bumps the drop counter.
func (s *Store) Record(_ context.Context, rec selection.AuditRecord) {
	select {
	case s.queue <- rec:
		s.enqueued.Add(1)
	default:
		s.dropped.Add(1)
	}
}

// Dropped reports how many records were discarded due to a full queue.
func (s *Store) Dropped() uint64 {
	return s.dropped.Load()
}

func (s *Store) writeLoop() {
	defer close(s.done)
	ctx := context.Background()
	for rec := range s.queue {
		if err := s.insert(ctx, rec); err != nil {
			logger.G(ctx).WithError(err).WithField("selection_id", rec.ID).
				Warn("failed to persist selection record")
		}
		s.written.Add(1)
	}
}

func (s *Store) insert(ctx context.Context, rec selection.AuditRecord) error {
	ids, err := json.Marshal(rec.SkillIDs)
	if err != nil {
		return errors.Wrap(err, "failed to marshal skill ids")
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO selections
		(id, created_at, fingerprint, query_text, budget, total_cost, skill_ids, cache_hit)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.CreatedAt, rec.Fingerprint, rec.QueryText,
		rec.Budget, rec.TotalCost, string(ids), rec.CacheHit,
	)
	return errors.Wrap(err, "failed to insert selection record")
}

type selectionRow struct {
	selection.AuditRecord
	SkillIDsJSON string `db:"skill_ids"`
}

// Recent returns the latest n recorded selections, newest first.
func (s *Store) Recent(ctx context.Context, n int) ([]selection.AuditRecord, error) {
	if n <= 0 {
		n = 20
	}
	var rows []selectionRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT id, created_at, fingerprint, query_text, budget, total_cost, skill_ids, cache_hit
		FROM selections ORDER BY created_at DESC, id LIMIT ?`, n)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query selection history")
	}

	records := make([]selection.AuditRecord, 0, len(rows))
	for _, row := range rows {
		rec := row.AuditRecord
		if err := json.Unmarshal([]byte(row.SkillIDsJSON), &rec.SkillIDs); err != nil {
			return nil, errors.Wrapf(err, "corrupt skill id list for record %s", rec.ID)
		}
		records = append(records, rec)
	}
	return records, nil
}

// Flush waits until the writer has drained everything queued so far.
// Intended for tests and shutdown paths.
func (s *Store) Flush(ctx context.Context) error {
	target := s.enqueued.Load()
	for {
		if s.written.Load() >= target {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Millisecond):
		}
	}
}

// Close stops the writer, drains the queue, and closes the database.
func (s *Store) Close() error {
	s.closeOnce.Do(func() {
		close(s.queue)
	})
	<-s.done
	return s.db.Close()
}
