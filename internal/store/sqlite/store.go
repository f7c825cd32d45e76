// Package sqlite implements the record store on an embedded SQLite database.
//
// SQLite has no row locks. Every write transaction starts with
// BEGIN IMMEDIATE, which takes the database write lock up front and waits
// at most the configured busy timeout for it. A wait that runs out is
// reported as core.ErrLockTimeout, so the kid lock taken when adding a gift
// behaves like the Postgres row lock, only coarser.
package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/JonMunkholm/giftapi/internal/core"
)

//go:embed schema.sql
var schema string

var (
	_ core.Store = (*Store)(nil)
	_ core.Tx    = (*tx)(nil)
)

// Options configures Open.
type Options struct {
	// LockTimeout is the busy timeout applied to every connection.
	LockTimeout time.Duration

	// MaxConns caps the connection pool. Zero leaves database/sql's default.
	MaxConns int
}

// Store is a core.Store backed by a SQLite file.
type Store struct {
	queries
	db *sql.DB
}

// Open opens or creates the database file at path.
func Open(ctx context.Context, path string, opts Options) (*Store, error) {
	path = strings.TrimPrefix(path, "sqlite://")
	if path == "" {
		return nil, fmt.Errorf("open sqlite: path is required")
	}
	if dir := filepath.Dir(path); dir != "." && !strings.HasPrefix(path, "file:") {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("create dirs: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dsn(path, opts.LockTimeout))
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if opts.MaxConns > 0 {
		db.SetMaxOpenConns(opts.MaxConns)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	return &Store{queries: queries{q: db}, db: db}, nil
}

func dsn(path string, lockTimeout time.Duration) string {
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return fmt.Sprintf("%s%s_pragma=busy_timeout(%d)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)",
		path, sep, lockTimeout.Milliseconds())
}

// Migrate creates the kid and gift tables if they do not exist.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("migrate sqlite: %w", err)
	}
	return nil
}

// Ping checks the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes every pooled connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// InTx runs fn on a dedicated connection inside BEGIN IMMEDIATE.
// The transaction commits when fn returns nil and rolls back otherwise,
// including when fn panics.
func (s *Store) InTx(ctx context.Context, fn func(core.Tx) error) error {
	conn, err := s.db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Close()

	if _, err := conn.ExecContext(ctx, "BEGIN IMMEDIATE"); err != nil {
		return mapErr(err, "begin transaction")
	}

	committed := false
	defer func() {
		if !committed {
			_, _ = conn.ExecContext(context.WithoutCancel(ctx), "ROLLBACK")
		}
	}()

	if err := fn(&tx{queries: queries{q: conn}, conn: conn}); err != nil {
		return err
	}

	if _, err := conn.ExecContext(ctx, "COMMIT"); err != nil {
		return mapErr(err, "commit")
	}
	committed = true
	return nil
}

// isBusy reports whether err means the write lock could not be taken in time.
func isBusy(err error) bool {
	var se *sqlite.Error
	if errors.As(err, &se) {
		code := se.Code() & 0xff
		return code == sqlite3.SQLITE_BUSY || code == sqlite3.SQLITE_LOCKED
	}
	return strings.Contains(err.Error(), "database is locked")
}

// mapErr wraps err with op, translating busy errors to core.ErrLockTimeout.
func mapErr(err error, op string) error {
	if isBusy(err) {
		return fmt.Errorf("%s: %w: %v", op, core.ErrLockTimeout, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}
