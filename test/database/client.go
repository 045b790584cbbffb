// Package database provides a testcontainers-backed Postgres for
// integration tests across the broker, jobstore, and store packages.
package database

import (
	"context"
	"database/sql"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	_ "github.com/jackc/pgx/v5/stdlib"

	docintelDB "github.com/arkhamforge/docintel/pkg/database"
)

// NewTestClient returns a *database.Client backed by a real Postgres with
// every core schema migrated. In CI (CI_DATABASE_URL set) it connects to an
// external Postgres service container; otherwise it spins up a
// testcontainers instance that is torn down when the test ends.
func NewTestClient(t *testing.T) *docintelDB.Client {
	t.Helper()
	ctx := context.Background()

	connStr := os.Getenv("CI_DATABASE_URL")
	if connStr == "" {
		t.Log("Using testcontainers for PostgreSQL")
		pgContainer, err := postgres.Run(ctx,
			"postgres:16-alpine",
			postgres.WithDatabase("test"),
			postgres.WithUsername("test"),
			postgres.WithPassword("test"),
			testcontainers.WithWaitStrategy(
				wait.ForLog("database system is ready to accept connections").
					WithOccurrence(2).
					WithStartupTimeout(30*time.Second)),
		)
		require.NoError(t, err)

		t.Cleanup(func() {
			if err := testcontainers.TerminateContainer(pgContainer); err != nil {
				t.Logf("failed to terminate container: %v", err)
			}
		})

		connStr, err = pgContainer.ConnectionString(ctx, "sslmode=disable")
		require.NoError(t, err)
	} else {
		t.Log("Using external PostgreSQL from CI_DATABASE_URL")
	}

	db, err := sql.Open("pgx", connStr)
	require.NoError(t, err)
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)

	require.NoError(t, docintelDB.RunMigrations(db, "test"))
	require.NoError(t, docintelDB.CreateGINIndexes(ctx, db))

	client := docintelDB.NewClientFromDB(db)

	t.Cleanup(func() {
		_ = client.Close()
	})

	return client
}
