// Package database provides the PostgreSQL connection pool and migration
// runner shared by the broker, job store, and content store.
package database

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" driver with database/sql
)

//go:embed migrations
var migrationsFS embed.FS

// Config holds database connection configuration.
type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string

	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

// Client wraps the shared *sql.DB handle. Every repository (broker,
// jobstore, store) is constructed from the same Client so all schemas
// share one connection pool.
type Client struct {
	db *sql.DB
}

// DB returns the underlying database connection for health checks,
// repositories, and direct queries.
func (c *Client) DB() *sql.DB {
	return c.db
}

// Close releases the connection pool.
func (c *Client) Close() error {
	return c.db.Close()
}

// NewClientFromDB wraps an existing *sql.DB (useful for testing against a
// testcontainers-managed Postgres).
func NewClientFromDB(db *sql.DB) *Client {
	return &Client{db: db}
}

// NewClient opens a pooled connection and applies any pending migrations
// for every schema the core owns (core, jobstore, events, vectors).
func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	dsn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Database, cfg.SSLMode,
	)

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if err := runMigrations(db, cfg); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	if err := CreateGINIndexes(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create search indexes: %w", err)
	}

	return &Client{db: db}, nil
}

// RunMigrations applies every embedded schema's migrations against db.
// Exported so integration tests can migrate a testcontainers-managed
// Postgres without going through NewClient's DSN-based connection setup.
func RunMigrations(db *sql.DB, databaseName string) error {
	return runMigrations(db, Config{Database: databaseName})
}

// coreSchemas lists the schemas the core itself owns, each independently
// versioned (its own schema_migrations table).
// Extensions migrate their own schema separately through the extension host.
var coreSchemas = []string{"core", "jobstore", "events", "vectors"}

// runMigrations applies every embedded *.sql migration using golang-migrate,
// one schema at a time so each schema tracks its own migration version.
//
// Migration workflow:
//  1. Add a schema change under pkg/database/migrations/<schema>/*.sql
//  2. Files are embedded into the binary at compile time (go:embed)
//  3. The binary applies pending migrations for every schema on startup
func runMigrations(db *sql.DB, cfg Config) error {
	hasMigrations, err := hasEmbeddedMigrations()
	if err != nil {
		return fmt.Errorf("failed to check embedded migrations: %w", err)
	}
	if !hasMigrations {
		return fmt.Errorf("no embedded migration files found — binary may be built incorrectly")
	}

	for _, schema := range coreSchemas {
		if err := migrateSchema(db, cfg, schema); err != nil {
			return fmt.Errorf("schema %q: %w", schema, err)
		}
	}

	return nil
}

func migrateSchema(db *sql.DB, cfg Config, schema string) error {
	driver, err := postgres.WithInstance(db, &postgres.Config{
		MigrationsTable: "schema_migrations_" + schema,
	})
	if err != nil {
		return fmt.Errorf("failed to create postgres driver: %w", err)
	}

	sourceDriver, err := iofs.New(migrationsFS, "migrations/"+schema)
	if err != nil {
		return fmt.Errorf("failed to create migration source: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, cfg.Database, driver)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}

	// Close only the migration source driver. We must NOT call m.Close()
	// because that also closes the database driver, which calls
	// db.Close() on the shared *sql.DB — breaking every repository built
	// on top of this Client.
	if err := sourceDriver.Close(); err != nil {
		return fmt.Errorf("failed to close migration source: %w", err)
	}

	return nil
}

// hasEmbeddedMigrations checks if the embedded FS contains any .sql migration files.
func hasEmbeddedMigrations() (bool, error) {
	var found bool
	err := fs.WalkDir(migrationsFS, "migrations", func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		if !d.IsDir() && len(path) > 4 && path[len(path)-4:] == ".sql" {
			found = true
		}
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("failed to read embedded migrations: %w", err)
	}
	return found, nil
}
