// Package db holds the optional Postgres pool used for the durable audit trail.
package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/avatarctic/clauseguard/configs"
)

const (
	pingTimeout     = 5 * time.Second
	migrationsTable = "clauseguard_schema_migrations"
)

type Database struct {
	DB *sqlx.DB
}

// NewDatabase connects with the configured pool limits. A zero limit keeps
// the database/sql default.
func NewDatabase(ctx context.Context, cfg *configs.DatabaseConfig) (*Database, error) {
	if cfg == nil || cfg.DSN == "" {
		return nil, errors.New("database dsn is not configured")
	}

	connectCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	dbx, err := sqlx.ConnectContext(connectCtx, "postgres", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to audit database: %w", err)
	}
	applyPoolLimits(dbx, cfg)
	return &Database{DB: dbx}, nil
}

func applyPoolLimits(dbx *sqlx.DB, cfg *configs.DatabaseConfig) {
	if n := cfg.MaxOpenConns; n > 0 {
		dbx.SetMaxOpenConns(n)
	}
	if n := cfg.MaxIdleConns; n > 0 {
		dbx.SetMaxIdleConns(n)
	}
	if d := cfg.ConnMaxLifetime; d > 0 {
		dbx.SetConnMaxLifetime(d)
	}
	if d := cfg.ConnMaxIdleTime; d > 0 {
		dbx.SetConnMaxIdleTime(d)
	}
}

func (d *Database) Close() error { return d.DB.Close() }

func (d *Database) Ping(ctx context.Context) error { return d.DB.PingContext(ctx) }

// Migrate brings the audit schema up to date from the files in dir. A schema
// left dirty by an interrupted run is reported rather than retried.
func (d *Database) Migrate(dir string) error {
	driver, err := postgres.WithInstance(d.DB.DB, &postgres.Config{MigrationsTable: migrationsTable})
	if err != nil {
		return fmt.Errorf("failed to prepare migration driver: %w", err)
	}
	m, err := migrate.NewWithDatabaseInstance("file://"+dir, "postgres", driver)
	if err != nil {
		return fmt.Errorf("failed to load migrations from %s: %w", dir, err)
	}

	version, dirty, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return fmt.Errorf("failed to read schema version: %w", err)
	}
	if dirty {
		return fmt.Errorf("audit schema is dirty at version %d; fix it by hand and force the version", version)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}
	return nil
}
