// Package postgres stores character documents in PostgreSQL using pgx v5.
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/tracelog"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/cory-johannsen/d20sheet/internal/config"
)

// Pool owns the pgx connection pool shared by the document store.
type Pool struct {
	pool *pgxpool.Pool
}

// PoolOption configures NewPool.
type PoolOption func(*pgxpool.Config)

// WithQueryLogger routes pgx query tracing to logger. Queries are logged
// only when logger has debug enabled; failures are always logged at warn.
func WithQueryLogger(logger *zap.Logger) PoolOption {
	return func(c *pgxpool.Config) {
		level := tracelog.LogLevelWarn
		if logger.Core().Enabled(zapcore.DebugLevel) {
			level = tracelog.LogLevelDebug
		}
		c.ConnConfig.Tracer = &tracelog.TraceLog{
			Logger:   zapQueryLogger(logger.Named("pgx")),
			LogLevel: level,
		}
	}
}

func zapQueryLogger(logger *zap.Logger) tracelog.LoggerFunc {
	return func(_ context.Context, level tracelog.LogLevel, msg string, data map[string]any) {
		fields := make([]zap.Field, 0, len(data))
		for k, v := range data {
			fields = append(fields, zap.Any(k, v))
		}
		switch {
		case level >= tracelog.LogLevelDebug:
			logger.Debug(msg, fields...)
		case level == tracelog.LogLevelInfo:
			logger.Info(msg, fields...)
		case level == tracelog.LogLevelWarn:
			logger.Warn(msg, fields...)
		default:
			logger.Error(msg, fields...)
		}
	}
}

// NewPool connects to the database described by cfg.
//
// Precondition: cfg must contain valid database connection parameters.
// Postcondition: Returns a pinged Pool or a non-nil error.
func NewPool(ctx context.Context, cfg config.DatabaseConfig, opts ...PoolOption) (*Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("parsing database config: %w", err)
	}
	poolCfg.MaxConns = cfg.MaxConns
	poolCfg.MinConns = cfg.MinConns
	poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	for _, opt := range opts {
		opt(poolCfg)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database %s:%d: %w", cfg.Host, cfg.Port, err)
	}
	return &Pool{pool: pool}, nil
}

// Close releases all pool resources.
func (p *Pool) Close() {
	p.pool.Close()
}

// DB returns the underlying pgxpool.Pool for NewDocumentStore.
func (p *Pool) DB() *pgxpool.Pool {
	return p.pool
}
