package database

import (
	"context"
	"fmt"
	"testing"

	"github.com/hausbrain/core/pkg/database"
	"github.com/hausbrain/core/test/util"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
)

// SharedTestDB creates a single PostgreSQL schema that can be shared by
// multiple test replicas. Each replica gets its own pool via NewClient, all
// pointed at the same schema, so tests can simulate two process instances
// of the engine sharing one database.
type SharedTestDB struct {
	connStrWithSchema string
	baseConnStr       string
	schemaName        string
}

// NewSharedTestDB creates a shared test schema and runs migrations once.
// Call NewClient to create independent pools for each replica.
func NewSharedTestDB(t *testing.T) *SharedTestDB {
	t.Helper()
	ctx := context.Background()

	baseConnStr := util.GetBaseConnectionString(t)
	schemaName := util.GenerateSchemaName(t)
	util.CreateSchema(t, baseConnStr, schemaName)

	connStrWithSchema := util.AddSearchPathToConnString(baseConnStr, schemaName)

	// Migrate once, through a throwaway pool, then close it — each
	// replica opens its own pool against the now-migrated schema.
	migratePool, err := database.NewPoolFromDSN(ctx, fmt.Sprintf("test_%s", schemaName), connStrWithSchema)
	require.NoError(t, err)
	migratePool.Close()

	return &SharedTestDB{
		connStrWithSchema: connStrWithSchema,
		baseConnStr:       baseConnStr,
		schemaName:        schemaName,
	}
}

// NewClient creates an independent *pgxpool.Pool backed by a fresh
// connection pool to the shared schema. Each replica has its own pool so
// they can be shut down independently without races. Closed via
// t.Cleanup.
func (s *SharedTestDB) NewClient(t *testing.T) *pgxpool.Pool {
	t.Helper()
	ctx := context.Background()

	poolCfg, err := pgxpool.ParseConfig(s.connStrWithSchema)
	require.NoError(t, err)

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	require.NoError(t, err)

	t.Cleanup(pool.Close)
	return pool
}
