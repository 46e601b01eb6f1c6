package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/njchilds90/gonewton"
)

// SQLite keeps sessions in a database file so they survive a server restart
// for as long as the idle TTL allows.
type SQLite struct {
	db     *sql.DB
	mu     sync.Mutex
	path   string
	now    func() time.Time
	logger *zap.Logger
}

// NewSQLite opens (or creates) the database at path. ":memory:" is accepted.
func NewSQLite(path string, logger *zap.Logger) (*SQLite, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One connection: an in-memory database is per connection, and writes
	// are serialized by s.mu anyway.
	db.SetMaxOpenConns(1)

	s := &SQLite{db: db, path: path, now: time.Now, logger: logger.Named("store.sqlite")}
	if err := s.initialize(); err != nil {
		db.Close()
		return nil, err
	}
	s.logger.Info("session store opened", zap.String("path", path))
	return s, nil
}

func (s *SQLite) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS sessions (
		id TEXT PRIMARY KEY,
		iterations INTEGER NOT NULL DEFAULT 0,
		history TEXT NOT NULL DEFAULT '[]',
		function TEXT NOT NULL DEFAULT '',
		derivative TEXT NOT NULL DEFAULT '',
		updated_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_sessions_updated_at ON sessions(updated_at);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create sessions table: %w", err)
	}
	return s.migrate()
}

// Columns added after the first release; older database files lack them.
var sessionColumns = []struct{ name, def string }{
	{"function", "TEXT NOT NULL DEFAULT ''"},
	{"derivative", "TEXT NOT NULL DEFAULT ''"},
}

func (s *SQLite) migrate() error {
	existing := map[string]bool{}
	rows, err := s.db.Query("PRAGMA table_info(sessions)")
	if err != nil {
		return fmt.Errorf("failed to inspect sessions table: %w", err)
	}
	for rows.Next() {
		var (
			cid, notnull, pk int
			name, ctype      string
			dflt             interface{}
		)
		if err := rows.Scan(&cid, &name, &ctype, &notnull, &dflt, &pk); err != nil {
			rows.Close()
			return fmt.Errorf("failed to inspect sessions table: %w", err)
		}
		existing[name] = true
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to inspect sessions table: %w", err)
	}

	for _, col := range sessionColumns {
		if existing[col.name] {
			continue
		}
		if _, err := s.db.Exec(fmt.Sprintf("ALTER TABLE sessions ADD COLUMN %s %s", col.name, col.def)); err != nil {
			return fmt.Errorf("failed to add column %s: %w", col.name, err)
		}
		s.logger.Info("migration applied", zap.String("column", col.name))
	}
	return nil
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

func load(ctx context.Context, q queryer, id string) (*gonewton.Session, error) {
	var (
		iterations int
		history    string
		function   string
		derivative string
	)
	err := q.QueryRowContext(ctx, "SELECT iterations, history, function, derivative FROM sessions WHERE id = ?", id).
		Scan(&iterations, &history, &function, &derivative)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", gonewton.ErrSessionNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session %s: %w", id, err)
	}
	sess := gonewton.NewSession(id)
	sess.Iterations = iterations
	sess.Function, sess.Derivative = function, derivative
	if err := json.Unmarshal([]byte(history), &sess.History); err != nil {
		return nil, fmt.Errorf("session %s: corrupt history: %w", id, err)
	}
	if len(sess.History) == 0 {
		sess.History = nil
	}
	return sess, nil
}

func (s *SQLite) Get(ctx context.Context, id string) (*gonewton.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := load(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if _, err := s.db.ExecContext(ctx, "UPDATE sessions SET updated_at = ? WHERE id = ?", s.now().UnixNano(), id); err != nil {
		s.logger.Warn("failed to touch session", zap.String("session", id), zap.Error(err))
	}
	return sess, nil
}

func (s *SQLite) Update(ctx context.Context, id string, fn func(*gonewton.Session) error) (*gonewton.Session, error) {
	if id == "" {
		return nil, fmt.Errorf("session id is empty")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	sess, err := load(ctx, tx, id)
	if errors.Is(err, gonewton.ErrSessionNotFound) {
		sess = gonewton.NewSession(id)
		s.logger.Debug("session created", zap.String("session", id))
	} else if err != nil {
		return nil, err
	}
	if err := fn(sess); err != nil {
		return nil, err
	}

	history := sess.History
	if history == nil {
		history = []gonewton.Point{}
	}
	raw, err := json.Marshal(history)
	if err != nil {
		return nil, fmt.Errorf("failed to encode history: %w", err)
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO sessions (id, iterations, history, function, derivative, updated_at) VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET iterations = excluded.iterations, history = excluded.history,
		   function = excluded.function, derivative = excluded.derivative, updated_at = excluded.updated_at`,
		id, sess.Iterations, string(raw), sess.Function, sess.Derivative, s.now().UnixNano(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to store session %s: %w", id, err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit session %s: %w", id, err)
	}
	return sess.Clone(), nil
}

func (s *SQLite) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.ExecContext(ctx, "DELETE FROM sessions WHERE id = ?", id)
	return err
}

func (s *SQLite) Sweep(ctx context.Context, idleSince time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	res, err := s.db.ExecContext(ctx, "DELETE FROM sessions WHERE updated_at < ?", idleSince.UnixNano())
	if err != nil {
		return 0, fmt.Errorf("failed to sweep sessions: %w", err)
	}
	n, err := res.RowsAffected()
	return int(n), err
}

func (s *SQLite) Len(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM sessions").Scan(&n)
	return n, err
}

func (s *SQLite) Close() error { return s.db.Close() }
