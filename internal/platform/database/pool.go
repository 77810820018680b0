package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"credex/internal/platform/config"
)

const pingTimeout = 5 * time.Second

// Pool is the postgres handle shared by the credential and trust stores.
type Pool struct {
	db *sql.DB
}

type Option func(*options)

type options struct {
	registerer prometheus.Registerer
	migrations fs.FS
}

// WithStats exports database/sql pool statistics on reg.
func WithStats(reg prometheus.Registerer) Option {
	return func(o *options) {
		o.registerer = reg
	}
}

// WithMigrations applies the *.up.sql files in fsys once the pool is up.
func WithMigrations(fsys fs.FS) Option {
	return func(o *options) {
		o.migrations = fsys
	}
}

// New opens a pgx-backed pool and pings it. An empty URL means postgres is
// not configured and yields nil, nil.
func New(ctx context.Context, cfg config.DatabaseConfig, opts ...Option) (*Pool, error) {
	if cfg.URL == "" {
		return nil, nil
	}
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	db, err := sql.Open("pgx", cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close() //nolint:errcheck // best-effort cleanup on init failure
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if o.migrations != nil {
		if err := Migrate(ctx, db, o.migrations); err != nil {
			db.Close() //nolint:errcheck // best-effort cleanup on init failure
			return nil, fmt.Errorf("migrate: %w", err)
		}
	}
	if o.registerer != nil {
		if err := o.registerer.Register(collectors.NewDBStatsCollector(db, "credex")); err != nil {
			var already prometheus.AlreadyRegisteredError
			if !errors.As(err, &already) {
				db.Close() //nolint:errcheck // best-effort cleanup on init failure
				return nil, fmt.Errorf("register db stats: %w", err)
			}
		}
	}

	return &Pool{db: db}, nil
}

// DB returns the underlying *sql.DB the stores query through.
func (p *Pool) DB() *sql.DB {
	return p.db
}

// Health is the readiness check for postgres.
func (p *Pool) Health(ctx context.Context) error {
	if p == nil || p.db == nil {
		return errors.New("database not configured")
	}
	return p.db.PingContext(ctx)
}

func (p *Pool) Close() error {
	if p == nil || p.db == nil {
		return nil
	}
	return p.db.Close()
}
