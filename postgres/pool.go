package postgres

import (
	"context"
	"fmt"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	apperrors "github.com/leeforge/moneykeeper/errors"
	"github.com/leeforge/moneykeeper/registry"
	"go.uber.org/zap"
)

// Key is the registry entry holding the shared relational pool.
var Key = registry.NewKey[*Pool]("postgres")

// Querier is the read/write surface services need from the pool.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Pool is the shared relational connection pool.
type Pool struct {
	pool   *pgxpool.Pool
	logger *zap.Logger

	closeOnce sync.Once
}

var _ Querier = (*Pool)(nil)

// Open creates the pool and pings the server. A pool that cannot reach the
// server is closed before returning the connectivity error.
func Open(ctx context.Context, cfg Config, logger *zap.Logger) (*Pool, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	poolConfig, err := pgxpool.ParseConfig(cfg.ConnectionString())
	if err != nil {
		return nil, apperrors.WrapWithType(err, apperrors.ErrorTypeConfiguration, "invalid postgres configuration")
	}
	if cfg.MaxConns > 0 {
		poolConfig.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolConfig.MinConns = cfg.MinConns
	}
	if cfg.StatementTimeout > 0 {
		poolConfig.ConnConfig.RuntimeParams["statement_timeout"] = fmt.Sprintf("%dms", cfg.StatementTimeout.Milliseconds())
	}

	logger.Info("postgres.connecting",
		zap.String("host", cfg.Host),
		zap.Int("port", cfg.Port),
		zap.String("database", cfg.Database),
		zap.String("user", cfg.User),
		zap.Int32("max_conns", poolConfig.MaxConns),
	)

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, apperrors.NewConnectivity("postgres", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, apperrors.NewConnectivity("postgres", err).
			WithDetail("host", cfg.Host).
			WithDetail("database", cfg.Database)
	}

	return &Pool{pool: pool, logger: logger}, nil
}

func (p *Pool) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	rows, err := p.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, apperrors.NewQuery(sql, err)
	}
	return rows, nil
}

func (p *Pool) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	return p.pool.QueryRow(ctx, sql, args...)
}

func (p *Pool) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	tag, err := p.pool.Exec(ctx, sql, args...)
	if err != nil {
		return tag, apperrors.NewQuery(sql, err)
	}
	return tag, nil
}

// Ping checks that a connection can be acquired and used.
func (p *Pool) Ping(ctx context.Context) error {
	if err := p.pool.Ping(ctx); err != nil {
		return apperrors.NewConnectivity("postgres", err)
	}
	return nil
}

// Close waits for acquired connections to be released and closes the pool.
// Safe to call more than once.
func (p *Pool) Close() error {
	p.closeOnce.Do(func() {
		p.pool.Close()
		p.logger.Debug("postgres.closed")
	})
	return nil
}
