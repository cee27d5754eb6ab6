package db

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Pool bounds. Fixed on purpose: the service does not resize its pool.
const (
	MinConns = 5
	MaxConns = 20
)

// ErrNotInitialized is returned when the pool is used before Initialize.
// It signals a wiring bug, not a connectivity problem.
var ErrNotInitialized = errors.New("db: connection pool not initialized")

// Pool owns the pgxpool lifecycle: Initialize once at startup, Acquire per
// operation, Shutdown after the servers have drained.
type Pool struct {
	dsn string

	mu   sync.RWMutex
	pool *pgxpool.Pool
}

// New returns an uninitialized Pool for dsn.
func New(dsn string) *Pool {
	return &Pool{dsn: dsn}
}

// Initialize opens the pool and pings it. Connection errors are returned as-is.
func (p *Pool) Initialize(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.pool != nil {
		return errors.New("db: pool already initialized")
	}

	cfg, err := pgxpool.ParseConfig(p.dsn)
	if err != nil {
		return fmt.Errorf("db: parse dsn: %w", err)
	}
	cfg.MinConns = MinConns
	cfg.MaxConns = MaxConns
	cfg.MaxConnIdleTime = 5 * time.Minute
	cfg.HealthCheckPeriod = 30 * time.Second

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return err
	}
	p.pool = pool
	return nil
}

// Acquire checks out one connection, hands it to fn and always releases it,
// including when fn panics or ctx is cancelled mid-query. pgx aborts the
// running statement on cancellation and the pool destroys a connection that
// was left busy.
func (p *Pool) Acquire(ctx context.Context, fn func(Querier) error) error {
	pool, err := p.get()
	if err != nil {
		return err
	}
	conn, err := pool.Acquire(ctx)
	if err != nil {
		return err
	}
	defer conn.Release()
	return fn(conn)
}

// Ping checks that a connection can be acquired and used.
func (p *Pool) Ping(ctx context.Context) error {
	pool, err := p.get()
	if err != nil {
		return err
	}
	return pool.Ping(ctx)
}

// Stat returns pool statistics, or nil before Initialize.
func (p *Pool) Stat() *pgxpool.Stat {
	pool, err := p.get()
	if err != nil {
		return nil
	}
	return pool.Stat()
}

// Shutdown closes the pool. Safe to call on a pool that was never
// initialized, and safe to call twice.
func (p *Pool) Shutdown() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.pool == nil {
		return
	}
	p.pool.Close()
	p.pool = nil
}

func (p *Pool) get() (*pgxpool.Pool, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.pool == nil {
		return nil, ErrNotInitialized
	}
	return p.pool, nil
}
