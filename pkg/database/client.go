// Package database provides the PostgreSQL connection pool and migration
// runner shared by every storage package (timestore, commandlog,
// triggerlog, availability, tracestore): golang-migrate against embedded
// SQL files, run once at startup over a dedicated database/sql connection
// obtained through the pgx stdlib driver. This domain has no ORM layer, so
// runtime queries go straight through a pgxpool.Pool instead.
package database

import (
	"context"
	stdsql "database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" database/sql driver, used only for migrations
)

//go:embed migrations
var migrationsFS embed.FS

// Config holds database connection parameters.
type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string

	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

func (c Config) dsn() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// NewPool runs pending migrations and returns a ready connection pool for
// runtime queries.
func NewPool(ctx context.Context, cfg Config) (*pgxpool.Pool, error) {
	if err := runMigrations(cfg.Database, cfg.dsn()); err != nil {
		return nil, fmt.Errorf("database: migrate: %w", err)
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.dsn())
	if err != nil {
		return nil, fmt.Errorf("database: parse pool config: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	if cfg.MaxConnIdleTime > 0 {
		poolCfg.MaxConnIdleTime = cfg.MaxConnIdleTime
	}

	return newPoolWithConfig(ctx, poolCfg)
}

// NewPoolFromDSN runs pending migrations against an arbitrary connection
// string (e.g. one with a test schema's search_path already applied) and
// returns a ready pool. schemaLabel is only used as golang-migrate's
// internal database name for its schema_migrations bookkeeping; it need
// not match the real database name.
func NewPoolFromDSN(ctx context.Context, schemaLabel, dsn string) (*pgxpool.Pool, error) {
	if err := runMigrations(schemaLabel, dsn); err != nil {
		return nil, fmt.Errorf("database: migrate: %w", err)
	}

	poolCfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("database: parse pool config: %w", err)
	}
	return newPoolWithConfig(ctx, poolCfg)
}

func newPoolWithConfig(ctx context.Context, poolCfg *pgxpool.Config) (*pgxpool.Pool, error) {
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("database: open pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("database: ping pool: %w", err)
	}

	if err := CreateJSONBIndexes(ctx, pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("database: create JSONB indexes: %w", err)
	}

	return pool, nil
}

// runMigrations applies every pending embedded migration over a dedicated
// database/sql connection, opened and closed for this purpose only — the
// long-lived pgxpool.Pool handles all runtime traffic. label identifies
// the target to golang-migrate (its internal schema_migrations bookkeeping
// database name); it is cosmetic, not a connection parameter.
func runMigrations(label, dsn string) error {
	hasMigrations, err := hasEmbeddedMigrations()
	if err != nil {
		return fmt.Errorf("check embedded migrations: %w", err)
	}
	if !hasMigrations {
		return fmt.Errorf("no embedded migration files found — binary may be built incorrectly")
	}

	db, err := stdsql.Open("pgx", dsn)
	if err != nil {
		return fmt.Errorf("open migration connection: %w", err)
	}
	defer func() { _ = db.Close() }()

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("create postgres driver: %w", err)
	}

	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("create migration source: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, label, driver)
	if err != nil {
		return fmt.Errorf("create migrate instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", err)
	}

	// Close only the source driver. Calling m.Close() would also close db
	// through the postgres driver it wraps.
	return sourceDriver.Close()
}

func hasEmbeddedMigrations() (bool, error) {
	entries, err := fs.ReadDir(migrationsFS, "migrations")
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("read embedded migrations: %w", err)
	}
	for _, entry := range entries {
		if !entry.IsDir() && len(entry.Name()) > 4 && entry.Name()[len(entry.Name())-4:] == ".sql" {
			return true, nil
		}
	}
	return false, nil
}
