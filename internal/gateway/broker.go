// AngelaMos | 2026
// broker.go

package gateway

import (
	"context"
	"database/sql"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"

	"github.com/bpa-library/library/internal/config"
	"github.com/bpa-library/library/internal/core"
)

// Broker owns the connection pool for one dialect and hands out scoped
// connections. Every acquisition returns a release func that must run
// on all exit paths; the Executor defers it.
type Broker struct {
	db      *sqlx.DB
	dialect Dialect
	timeout time.Duration
}

func NewBroker(
	ctx context.Context,
	dialect Dialect,
	cfg config.DatabaseConfig,
) (*Broker, error) {
	if _, err := ParseDialect(dialect.String()); err != nil {
		return nil, err
	}

	creds, err := ResolveCredentials(dialect, cfg)
	if err != nil {
		return nil, err
	}

	db, err := open(dialect, creds)
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(jitteredDuration(cfg.ConnMaxLifetime))
	db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close() //nolint:errcheck // cleanup on connection failure
		return nil, &Error{
			Op:   "connect",
			Kind: core.ErrConnectionUnavailable,
			Err:  err,
		}
	}

	return &Broker{db: db, dialect: dialect, timeout: cfg.QueryTimeout}, nil
}

// NewBrokerWithDB wraps an already opened pool.
func NewBrokerWithDB(
	db *sqlx.DB,
	dialect Dialect,
	timeout time.Duration,
) *Broker {
	return &Broker{db: db, dialect: dialect, timeout: timeout}
}

func open(dialect Dialect, creds Credentials) (*sqlx.DB, error) {
	switch dialect {
	case MySQL:
		connector, err := mysql.NewConnector(creds.MySQLConfig())
		if err != nil {
			return nil, fmt.Errorf(
				"invalid mysql credentials: %w",
				core.ErrConfiguration,
			)
		}
		return sqlx.NewDb(sql.OpenDB(connector), dialect.DriverName()), nil
	case Postgres:
		pc, err := creds.PostgresConfig()
		if err != nil {
			return nil, err
		}
		return sqlx.NewDb(stdlib.OpenDB(*pc), dialect.DriverName()), nil
	default:
		return nil, fmt.Errorf(
			"unknown dialect %q: %w",
			dialect,
			core.ErrConfiguration,
		)
	}
}

func (b *Broker) Dialect() Dialect {
	return b.dialect
}

// Acquire checks one connection out of the pool. The returned context
// carries the per-call deadline and must be used for all work on conn.
func (b *Broker) Acquire(
	ctx context.Context,
) (context.Context, *sqlx.Conn, func(), error) {
	callCtx, cancel := b.withDeadline(ctx)

	conn, err := b.db.Connx(callCtx)
	if err != nil {
		cancel()
		return ctx, nil, func() {}, &Error{
			Op:   "acquire",
			Kind: core.ErrConnectionUnavailable,
			Err:  err,
		}
	}

	release := func() {
		_ = conn.Close() //nolint:errcheck // returns the conn to the pool
		cancel()
	}

	return callCtx, conn, release, nil
}

func (b *Broker) withDeadline(
	ctx context.Context,
) (context.Context, context.CancelFunc) {
	if b.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, b.timeout)
}

func (b *Broker) Close() error {
	if b.db != nil {
		return b.db.Close()
	}
	return nil
}

func (b *Broker) Ping(ctx context.Context) error {
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := b.db.PingContext(pingCtx); err != nil {
		return fmt.Errorf("database ping failed: %w", classify("ping", err))
	}

	return nil
}

func (b *Broker) Stats() sql.DBStats {
	return b.db.Stats()
}

// DB exposes the pool for tooling that needs a *sql.DB (migrations).
func (b *Broker) DB() *sql.DB {
	return b.db.DB
}

func jitteredDuration(base time.Duration) time.Duration {
	if base < 7 {
		return base
	}
	//nolint:gosec // G404: non-security-sensitive jitter for connection pool
	jitter := time.Duration(rand.Int64N(int64(base / 7)))
	return base + jitter
}
