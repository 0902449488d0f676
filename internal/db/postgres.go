package db

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lalith-99/echoforum/internal/config"
	"go.uber.org/zap"
)

//go:embed schema.sql
var schema string

// ErrSchemaMissing is reported by Health when the forum tables are absent,
// typically because AUTO_MIGRATE is off and nobody applied the schema.
var ErrSchemaMissing = errors.New("forum schema not applied")

// PoolOptions sizes the connection pool. Zero values keep pgx defaults.
type PoolOptions struct {
	URL             string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

func PoolOptionsFromConfig(cfg *config.Config) PoolOptions {
	return PoolOptions{
		URL:             cfg.DatabaseURL,
		MaxConns:        int32(cfg.DBMaxConns),
		MinConns:        int32(cfg.DBMinConns),
		MaxConnLifetime: cfg.DBMaxConnLifetime,
		MaxConnIdleTime: cfg.DBMaxConnIdleTime,
	}
}

func (o PoolOptions) apply(pc *pgxpool.Config) {
	if o.MaxConns > 0 {
		pc.MaxConns = o.MaxConns
	}
	if o.MinConns > 0 {
		pc.MinConns = o.MinConns
	}
	if o.MaxConnLifetime > 0 {
		pc.MaxConnLifetime = o.MaxConnLifetime
	}
	if o.MaxConnIdleTime > 0 {
		pc.MaxConnIdleTime = o.MaxConnIdleTime
	}
}

type DB struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// Open builds the pool and fails fast if Postgres is unreachable.
func Open(ctx context.Context, opts PoolOptions, logger *zap.Logger) (*DB, error) {
	pc, err := pgxpool.ParseConfig(opts.URL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	opts.apply(pc)

	pool, err := pgxpool.NewWithConfig(ctx, pc)
	if err != nil {
		return nil, fmt.Errorf("open pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("reach database: %w", err)
	}

	// The URL carries the password; log only where we connected.
	logger.Info("database ready",
		zap.String("host", pc.ConnConfig.Host),
		zap.String("database", pc.ConnConfig.Database),
		zap.Int32("max_conns", pc.MaxConns),
		zap.Int32("min_conns", pc.MinConns),
	)
	return &DB{pool: pool, logger: logger}, nil
}

// Migrate applies the embedded schema. Every statement is idempotent.
func (db *DB) Migrate(ctx context.Context) error {
	if err := ApplySchema(ctx, db.pool); err != nil {
		return err
	}
	db.logger.Info("database schema up to date")
	return nil
}

// ApplySchema runs the embedded DDL against any pool; integration tests
// use it directly against a throwaway container.
func ApplySchema(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// Pool is shared by every store.
func (db *DB) Pool() *pgxpool.Pool { return db.pool }

// Health reports whether the database answers and holds the forum schema.
func (db *DB) Health(ctx context.Context) error {
	var ready bool
	if err := db.pool.QueryRow(ctx, `SELECT to_regclass('public.posts') IS NOT NULL`).Scan(&ready); err != nil {
		return fmt.Errorf("query database: %w", err)
	}
	if !ready {
		return ErrSchemaMissing
	}
	return nil
}

// Close drains the pool, logging how busy it was over its lifetime.
func (db *DB) Close() {
	st := db.pool.Stat()
	db.logger.Info("closing database pool",
		zap.Int64("acquires", st.AcquireCount()),
		zap.Int64("empty_acquires", st.EmptyAcquireCount()),
		zap.Duration("acquire_wait", st.AcquireDuration()),
	)
	db.pool.Close()
}
