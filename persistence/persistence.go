// Package persistence opens the bun database for a DSN and applies the
// embedded admin migrations through go-persistence-bun.
package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"strings"
	"sync"
	"time"

	admin "github.com/goliatone/go-admin"
	persistence "github.com/goliatone/go-persistence-bun"
	_ "github.com/lib/pq"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
	"github.com/uptrace/bun/schema"
)

// DefaultDSN is an in-memory SQLite database. cache=shared makes every
// connection in the process see the same data.
const DefaultDSN = "file::memory:?cache=shared"

// DefaultPingTimeout bounds the connectivity check done on open
const DefaultPingTimeout = 5 * time.Second

const (
	driverPostgres = "postgres"
	driverSQLite   = "sqlite"
)

var registerModels sync.Once

// Config describes the connection handed to go-persistence-bun
type Config struct {
	DSN            string
	Debug          bool
	PingTimeout    time.Duration
	OtelIdentifier string
}

func (c Config) GetDebug() bool { return c.Debug }

func (c Config) GetDriver() string {
	if isPostgres(c.GetServer()) {
		return driverPostgres
	}
	return driverSQLite
}

func (c Config) GetServer() string {
	dsn := strings.TrimSpace(c.DSN)
	if dsn == "" {
		return DefaultDSN
	}
	return dsn
}

func (c Config) GetPingTimeout() time.Duration {
	if c.PingTimeout <= 0 {
		return DefaultPingTimeout
	}
	return c.PingTimeout
}

func (c Config) GetOtelIdentifier() string {
	if c.OtelIdentifier == "" {
		return "admin"
	}
	return c.OtelIdentifier
}

// Option customizes Open
type Option func(*options)

type options struct {
	logger admin.Logger
}

// WithLogger sets the logger used by the persistence client
func WithLogger(logger admin.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// Open connects to the configured DSN and registers the admin models and
// migrations. postgres:// and postgresql:// DSNs use lib/pq and the postgres
// dialect, anything else is handed to the SQLite driver.
func Open(cfg Config, opts ...Option) (*persistence.Client, error) {
	o := &options{}
	for _, opt := range opts {
		if opt != nil {
			opt(o)
		}
	}
	if o.logger == nil {
		_, o.logger = admin.ResolveLogger("admin.persistence", nil, nil)
	}

	sqldb, dialect, err := openSQL(cfg)
	if err != nil {
		return nil, err
	}

	registerModels.Do(func() {
		persistence.RegisterModel((*admin.User)(nil))
		persistence.RegisterModel((*admin.Session)(nil))
		persistence.RegisterModel((*admin.AuditEntry)(nil))
	})

	client, err := persistence.New(cfg, sqldb, dialect)
	if err != nil {
		sqldb.Close()
		return nil, fmt.Errorf("failed to create persistence client: %w", err)
	}

	client.SetLogger(o.logger)

	migrationsFS, err := fs.Sub(admin.GetMigrationsFS(), admin.MigrationsDir)
	if err != nil {
		sqldb.Close()
		return nil, err
	}

	client.RegisterDialectMigrations(
		migrationsFS,
		persistence.WithDialectSourceLabel(admin.MigrationsDir),
		persistence.WithValidationTargets(driverPostgres, driverSQLite),
	)

	return client, nil
}

// Migrate checks both dialect trees and applies pending migrations for the
// dialect of the client's database.
func Migrate(ctx context.Context, client *persistence.Client) error {
	if err := client.ValidateDialects(ctx); err != nil {
		return fmt.Errorf("invalid migrations: %w", err)
	}

	if err := client.Migrate(ctx); err != nil {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}

	return nil
}

// OpenAndMigrate opens dsn and brings its schema up to date
func OpenAndMigrate(ctx context.Context, dsn string, opts ...Option) (*bun.DB, error) {
	client, err := Open(Config{DSN: dsn}, opts...)
	if err != nil {
		return nil, err
	}

	db := client.DB()

	if err := Migrate(ctx, client); err != nil {
		db.Close()
		return nil, err
	}

	return db, nil
}

func openSQL(cfg Config) (*sql.DB, schema.Dialect, error) {
	dsn := cfg.GetServer()

	if cfg.GetDriver() == driverPostgres {
		sqldb, err := sql.Open("postgres", dsn)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open postgres db: %w", err)
		}
		return sqldb, pgdialect.New(), nil
	}

	dsn = strings.TrimPrefix(dsn, "sqlite://")
	sqldb, err := sql.Open(sqliteshim.ShimName, dsn)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open sqlite db: %w", err)
	}

	// without cache=shared every :memory: connection is a separate database
	if strings.Contains(dsn, ":memory:") {
		sqldb.SetMaxOpenConns(1)
	}

	return sqldb, sqlitedialect.New(), nil
}

func isPostgres(dsn string) bool {
	lower := strings.ToLower(dsn)
	return strings.HasPrefix(lower, "postgres://") || strings.HasPrefix(lower, "postgresql://")
}
