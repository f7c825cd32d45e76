// Package postgres implements the record store on PostgreSQL through pgx.
//
// The kid lock taken when adding a gift is a SELECT ... FOR UPDATE row lock.
// Its wait is bounded by setting lock_timeout for the current transaction;
// a wait that runs out fails with SQLSTATE 55P03 and is reported as
// core.ErrLockTimeout.
package postgres

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JonMunkholm/giftapi/internal/config"
	"github.com/JonMunkholm/giftapi/internal/core"
)

//go:embed schema.sql
var schema string

// codeLockNotAvailable is the SQLSTATE raised when lock_timeout expires.
const codeLockNotAvailable = "55P03"

var (
	_ core.Store = (*Store)(nil)
	_ core.Tx    = (*tx)(nil)
)

// DBTX is satisfied by *pgxpool.Pool and pgx.Tx.
type DBTX interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

// Store is a core.Store backed by a pgx connection pool.
type Store struct {
	queries
	pool        *pgxpool.Pool
	lockTimeout time.Duration
}

// Open connects a pool configured from cfg and verifies it with a ping.
func Open(ctx context.Context, cfg config.DatabaseConfig) (*Store, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse database URL: %w", err)
	}

	poolConfig.MaxConns = int32(cfg.MaxConns)
	poolConfig.MinConns = int32(cfg.MinConns)
	poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	poolConfig.MaxConnIdleTime = cfg.MaxConnIdleTime

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return New(pool, cfg.LockTimeout), nil
}

// New wraps an existing pool.
func New(pool *pgxpool.Pool, lockTimeout time.Duration) *Store {
	return &Store{
		queries:     queries{db: pool},
		pool:        pool,
		lockTimeout: lockTimeout,
	}
}

// Migrate creates the kid and gift tables if they do not exist.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("migrate postgres: %w", err)
	}
	return nil
}

// Ping checks the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close closes the pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

// InTx runs fn in a read-committed transaction. The transaction commits
// when fn returns nil and rolls back otherwise, including when fn panics.
func (s *Store) InTx(ctx context.Context, fn func(core.Tx) error) error {
	pgTx, err := s.pool.Begin(ctx)
	if err != nil {
		return mapErr(err, "begin transaction")
	}
	defer pgTx.Rollback(ctx) // No-op if already committed

	if err := fn(&tx{queries: queries{db: pgTx}, tx: pgTx, lockTimeout: s.lockTimeout}); err != nil {
		return err
	}

	if err := pgTx.Commit(ctx); err != nil {
		return mapErr(err, "commit")
	}
	return nil
}

// mapErr wraps err with op, translating lock waits that ran out to
// core.ErrLockTimeout.
func mapErr(err error, op string) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == codeLockNotAvailable {
		return fmt.Errorf("%s: %w: %v", op, core.ErrLockTimeout, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}
