// Package store owns the Postgres connection pool and the unit-of-work helpers
// every repository goes through. The raw pool never leaves this package.
package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wolfman30/doctor-booking/pkg/logging"
)

// Querier is the statement surface shared by the pool and by transactions.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Pool is what the store needs from a pgx pool. pgxmock pools satisfy it.
type Pool interface {
	Querier
	Begin(ctx context.Context) (pgx.Tx, error)
	Ping(ctx context.Context) error
	Close()
}

// Config sizes the pool and its deadlines.
type Config struct {
	DatabaseURL    string
	MaxConns       int32
	MinConns       int32
	ConnectTimeout time.Duration
	IdleTimeout    time.Duration
	QueryTimeout   time.Duration
	HealthTimeout  time.Duration
}

func (c Config) withDefaults() Config {
	if c.MaxConns <= 0 {
		c.MaxConns = 15
	}
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = 5 * time.Second
	}
	if c.IdleTimeout <= 0 {
		c.IdleTimeout = 30 * time.Second
	}
	if c.QueryTimeout <= 0 {
		c.QueryTimeout = 8 * time.Second
	}
	if c.HealthTimeout <= 0 {
		c.HealthTimeout = 2500 * time.Millisecond
	}
	return c
}

// Store is the scoped owner of the connection pool.
type Store struct {
	pool          Pool
	stat          func() PoolStats
	queryTimeout  time.Duration
	healthTimeout time.Duration
	logger        *logging.Logger
}

// Open creates the pool, verifies connectivity and returns the store.
func Open(ctx context.Context, cfg Config, logger *logging.Logger) (*Store, error) {
	cfg = cfg.withDefaults()
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("store: database url required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("store: parse database url: %w", err)
	}
	poolCfg.MaxConns = cfg.MaxConns
	poolCfg.MinConns = cfg.MinConns
	poolCfg.MaxConnIdleTime = cfg.IdleTimeout
	poolCfg.ConnConfig.ConnectTimeout = cfg.ConnectTimeout

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("store: create connection pool: %w", err)
	}

	s := newStore(pool, cfg, logger)
	s.stat = func() PoolStats { return statsFromPool(pool) }
	if err := s.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("store: ping database: %w", err)
	}
	s.logger.Info("database pool ready", "max_conns", cfg.MaxConns, "min_conns", cfg.MinConns)
	return s, nil
}

// New wraps an existing pool, typically a pgxmock pool in tests.
func New(pool Pool, cfg Config, logger *logging.Logger) *Store {
	if pool == nil {
		panic("store: pool required")
	}
	return newStore(pool, cfg.withDefaults(), logger)
}

func newStore(pool Pool, cfg Config, logger *logging.Logger) *Store {
	if logger == nil {
		logger = logging.Default()
	}
	return &Store{
		pool:          pool,
		queryTimeout:  cfg.QueryTimeout,
		healthTimeout: cfg.HealthTimeout,
		logger:        logger.With("component", "store"),
	}
}

// Close drains and closes the pool.
func (s *Store) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.logger.Info("closing database pool")
	s.pool.Close()
}

// Ping checks connectivity within the health timeout.
func (s *Store) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.healthTimeout)
	defer cancel()
	if err := s.pool.Ping(ctx); err != nil {
		return s.classify(fmt.Errorf("store: ping: %w", err))
	}
	return nil
}

// Stats reports pool usage; zero when the pool is not a pgxpool.
func (s *Store) Stats() PoolStats {
	if s.stat == nil {
		return PoolStats{}
	}
	return s.stat()
}

// Do runs fn against the pool under the per-call query deadline. Connections
// used by fn are returned to the pool when its rows are closed.
func (s *Store) Do(ctx context.Context, fn func(ctx context.Context, q Querier) error) error {
	ctx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()
	if err := fn(ctx, s.pool); err != nil {
		return s.classify(err)
	}
	return nil
}

// InTx runs fn inside one transaction. Any error from fn, or a failed commit,
// rolls the whole transaction back; the connection is released on every path.
func (s *Store) InTx(ctx context.Context, fn func(ctx context.Context, tx pgx.Tx) error) error {
	ctx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return s.classify(fmt.Errorf("store: begin tx: %w", err))
	}
	defer tx.Rollback(ctx)

	if err := fn(ctx, tx); err != nil {
		return s.classify(err)
	}
	if err := tx.Commit(ctx); err != nil {
		return s.classify(fmt.Errorf("store: commit tx: %w", err))
	}
	return nil
}

// PoolStats mirrors pgxpool.Stat for health output.
type PoolStats struct {
	TotalConns      int32  `json:"total_conns"`
	IdleConns       int32  `json:"idle_conns"`
	AcquiredConns   int32  `json:"acquired_conns"`
	MaxConns        int32  `json:"max_conns"`
	AcquireCount    int64  `json:"acquire_count"`
	AcquireDuration string `json:"acquire_duration"`
}

// Saturated reports whether every connection is checked out.
func (p PoolStats) Saturated() bool {
	return p.MaxConns > 0 && p.AcquiredConns >= p.MaxConns
}

func statsFromPool(pool *pgxpool.Pool) PoolStats {
	stat := pool.Stat()
	return PoolStats{
		TotalConns:      stat.TotalConns(),
		IdleConns:       stat.IdleConns(),
		AcquiredConns:   stat.AcquiredConns(),
		MaxConns:        stat.MaxConns(),
		AcquireCount:    stat.AcquireCount(),
		AcquireDuration: stat.AcquireDuration().String(),
	}
}
