// Package database provides shared test helpers for spinning up an
// isolated, migrated PostgreSQL schema backed by a *pgxpool.Pool.
package database

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/hausbrain/core/pkg/database"
	"github.com/hausbrain/core/test/util"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// NewTestPool creates a migrated pool in its own schema, backed either by
// CI_DATABASE_URL or a fresh per-test testcontainer.
// The pool and its schema are automatically cleaned up when the test ends.
func NewTestPool(t *testing.T) *pgxpool.Pool {
	ctx := context.Background()

	ciDatabaseURL := os.Getenv("CI_DATABASE_URL")
	var baseConnStr string

	if ciDatabaseURL != "" {
		t.Log("Using external PostgreSQL from CI_DATABASE_URL")
		baseConnStr = ciDatabaseURL
	} else {
		t.Log("Using testcontainers for PostgreSQL")
		pgContainer, err := postgres.Run(ctx,
			"postgres:17-alpine",
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

		var err2 error
		baseConnStr, err2 = pgContainer.ConnectionString(ctx, "sslmode=disable")
		require.NoError(t, err2)
	}

	schemaName := util.GenerateSchemaName(t)
	util.CreateSchema(t, baseConnStr, schemaName)
	connStrWithSchema := util.AddSearchPathToConnString(baseConnStr, schemaName)

	pool, err := database.NewPoolFromDSN(ctx, fmt.Sprintf("test_%s", schemaName), connStrWithSchema)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	return pool
}
