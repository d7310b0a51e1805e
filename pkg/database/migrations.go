package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// CreateJSONBIndexes creates the GIN indexes backing the JSON containment
// (@>) queries commandlog and triggerlog use for target-prefix matching.
// The embedded migration already declares these; this is kept idempotent
// (IF NOT EXISTS) so it is also safe to call directly against a pool that
// migrated through some other path (e.g. a shared test schema).
func CreateJSONBIndexes(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx,
		`CREATE INDEX IF NOT EXISTS idx_thing_command_command_gin ON thing_command USING gin (command)`)
	if err != nil {
		return fmt.Errorf("create thing_command GIN index: %w", err)
	}

	_, err = pool.Exec(ctx,
		`CREATE INDEX IF NOT EXISTS idx_user_trigger_trigger_gin ON user_trigger USING gin (trigger)`)
	if err != nil {
		return fmt.Errorf("create user_trigger GIN index: %w", err)
	}

	return nil
}
