// Package commandlog is the persistent queue of commands with lifecycle
// states and correlation, backed by thing_command. ClaimOne is a single
// `FOR UPDATE SKIP LOCKED` row selection under one transaction: claim one
// pending command, then supersede any sibling rows still pending against
// the same device.
package commandlog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hausbrain/core/pkg/model"
)

var ErrNotFound = errors.New("commandlog: not found")

type Store struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Insert persists a new Pending command.
func (s *Store) Insert(ctx context.Context, cmd model.Command, source model.Source, userTriggerID *int64, correlationID string) (model.CommandExecution, error) {
	payload, err := json.Marshal(cmd)
	if err != nil {
		return model.CommandExecution{}, fmt.Errorf("commandlog: marshal command: %w", err)
	}

	var id int64
	var created time.Time
	err = s.pool.QueryRow(ctx, `
		INSERT INTO thing_command
			(command, created, status, source_type, source_id, correlation_id, user_trigger_id)
		VALUES ($1, now(), $2, $3, $4, $5, $6)
		RETURNING id, created`,
		payload, model.StatePending, string(source.Kind), source.Identifier, correlationID, userTriggerID,
	).Scan(&id, &created)
	if err != nil {
		return model.CommandExecution{}, fmt.Errorf("commandlog: insert: %w", err)
	}

	return model.CommandExecution{
		ID:            id,
		Command:       cmd,
		State:         model.StatePending,
		CreatedAt:     created,
		Source:        source,
		CorrelationID: correlationID,
		UserTriggerID: userTriggerID,
	}, nil
}

// ClaimOne selects the most recently created Pending row under
// FOR UPDATE SKIP LOCKED so concurrent claimers take disjoint commands,
// transitions it to InProgress, and marks every other Pending command
// sharing its (kind, device) target as Error("superseded by <id>"). Returns
// (zero, false, nil) if no Pending command exists.
func (s *Store) ClaimOne(ctx context.Context) (model.CommandExecution, bool, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return model.CommandExecution{}, false, fmt.Errorf("commandlog: begin claim: %w", err)
	}
	defer tx.Rollback(ctx)

	var id int64
	err = tx.QueryRow(ctx, `
		SELECT id FROM thing_command
		WHERE status = $1
		ORDER BY created DESC
		LIMIT 1
		FOR UPDATE SKIP LOCKED`,
		model.StatePending,
	).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.CommandExecution{}, false, nil
	}
	if err != nil {
		return model.CommandExecution{}, false, fmt.Errorf("commandlog: select claim candidate: %w", err)
	}

	var payload []byte
	var created time.Time
	var sourceType, sourceID, correlationID string
	var userTriggerID *int64
	err = tx.QueryRow(ctx, `
		UPDATE thing_command SET status = $2
		WHERE id = $1
		RETURNING command, created, source_type, source_id, correlation_id, user_trigger_id`,
		id, model.StateInProgress,
	).Scan(&payload, &created, &sourceType, &sourceID, &correlationID, &userTriggerID)
	if err != nil {
		return model.CommandExecution{}, false, fmt.Errorf("commandlog: claim transition: %w", err)
	}

	var cmd model.Command
	if err := json.Unmarshal(payload, &cmd); err != nil {
		return model.CommandExecution{}, false, fmt.Errorf("commandlog: unmarshal claimed command: %w", err)
	}

	targetJSON, err := json.Marshal(cmd.Target)
	if err != nil {
		return model.CommandExecution{}, false, fmt.Errorf("commandlog: marshal target: %w", err)
	}

	supersedeMsg := fmt.Sprintf("Command was superseded by %d", id)
	if _, err := tx.Exec(ctx, `
		UPDATE thing_command SET status = $1, error = $2
		WHERE status = $3 AND command @> $4::jsonb AND id <> $5`,
		model.StateError, supersedeMsg, model.StatePending, targetJSON, id,
	); err != nil {
		return model.CommandExecution{}, false, fmt.Errorf("commandlog: supersede siblings: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return model.CommandExecution{}, false, fmt.Errorf("commandlog: commit claim: %w", err)
	}

	return model.CommandExecution{
		ID:            id,
		Command:       cmd,
		State:         model.StateInProgress,
		CreatedAt:     created,
		Source:        model.Source{Kind: model.SourceKind(sourceType), Identifier: sourceID},
		CorrelationID: correlationID,
		UserTriggerID: userTriggerID,
	}, true, nil
}

// SetState transitions id to a terminal state. errMsg is stored only for
// StateError.
func (s *Store) SetState(ctx context.Context, id int64, state model.ExecutionState, errMsg string) error {
	var errArg *string
	if state == model.StateError && errMsg != "" {
		errArg = &errMsg
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE thing_command SET status = $2, error = $3 WHERE id = $1`,
		id, state, errArg)
	if err != nil {
		return fmt.Errorf("commandlog: set state %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// MostRecent returns the newest command execution for target created at or
// after since, or ErrNotFound.
func (s *Store) MostRecent(ctx context.Context, target model.CommandTarget, since time.Time) (model.CommandExecution, error) {
	targetJSON, err := json.Marshal(target)
	if err != nil {
		return model.CommandExecution{}, fmt.Errorf("commandlog: marshal target: %w", err)
	}
	row := s.pool.QueryRow(ctx, `
		SELECT id, command, created, status, error, source_type, source_id, correlation_id, user_trigger_id
		FROM thing_command
		WHERE command @> $1::jsonb AND created >= $2
		ORDER BY created DESC
		LIMIT 1`,
		targetJSON, since)
	exec, err := scanExecution(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.CommandExecution{}, ErrNotFound
	}
	return exec, err
}

// Query returns executions for target (or every target, if nil) within
// [t0,t1], plus the nearest execution before t0 and after t1 as anchors,
// mirroring the time store's frame semantics.
func (s *Store) Query(ctx context.Context, target *model.CommandTarget, t0, t1 time.Time) ([]model.CommandExecution, error) {
	var targetJSON []byte
	if target != nil {
		var err error
		targetJSON, err = json.Marshal(*target)
		if err != nil {
			return nil, fmt.Errorf("commandlog: marshal target: %w", err)
		}
	}

	const cols = `id, command, created, status, error, source_type, source_id, correlation_id, user_trigger_id`
	var rows pgx.Rows
	var err error
	if target != nil {
		rows, err = s.pool.Query(ctx, `
			(SELECT `+cols+`, 0 AS bucket FROM thing_command
			 WHERE command @> $1::jsonb AND created >= $2 AND created <= $3
			 ORDER BY created ASC)
			UNION ALL
			(SELECT `+cols+`, 1 AS bucket FROM thing_command
			 WHERE command @> $1::jsonb AND created < $2
			 ORDER BY created DESC LIMIT 1)
			UNION ALL
			(SELECT `+cols+`, 2 AS bucket FROM thing_command
			 WHERE command @> $1::jsonb AND created > $3
			 ORDER BY created ASC LIMIT 1)`,
			targetJSON, t0, t1)
	} else {
		rows, err = s.pool.Query(ctx, `
			SELECT `+cols+`, 0 AS bucket FROM thing_command
			WHERE created >= $1 AND created <= $2
			ORDER BY created ASC`,
			t0, t1)
	}
	if err != nil {
		return nil, fmt.Errorf("commandlog: query: %w", err)
	}
	defer rows.Close()

	var out []model.CommandExecution
	for rows.Next() {
		var id int64
		var payload []byte
		var created time.Time
		var status, sourceType, sourceID, correlationID string
		var errMsg *string
		var userTriggerID *int64
		var bucket int
		if err := rows.Scan(&id, &payload, &created, &status, &errMsg, &sourceType, &sourceID, &correlationID, &userTriggerID, &bucket); err != nil {
			return nil, fmt.Errorf("commandlog: scan: %w", err)
		}
		var cmd model.Command
		if err := json.Unmarshal(payload, &cmd); err != nil {
			return nil, fmt.Errorf("commandlog: unmarshal: %w", err)
		}
		exec := model.CommandExecution{
			ID: id, Command: cmd, State: model.ExecutionState(status), CreatedAt: created,
			Source: model.Source{Kind: model.SourceKind(sourceType), Identifier: sourceID},
			CorrelationID: correlationID, UserTriggerID: userTriggerID,
		}
		if errMsg != nil {
			exec.ErrorMessage = *errMsg
		}
		out = append(out, exec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("commandlog: query rows: %w", err)
	}
	return out, nil
}

func scanExecution(row pgx.Row) (model.CommandExecution, error) {
	var id int64
	var payload []byte
	var created time.Time
	var status, sourceType, sourceID, correlationID string
	var errMsg *string
	var userTriggerID *int64
	if err := row.Scan(&id, &payload, &created, &status, &errMsg, &sourceType, &sourceID, &correlationID, &userTriggerID); err != nil {
		return model.CommandExecution{}, err
	}
	var cmd model.Command
	if err := json.Unmarshal(payload, &cmd); err != nil {
		return model.CommandExecution{}, fmt.Errorf("commandlog: unmarshal: %w", err)
	}
	exec := model.CommandExecution{
		ID: id, Command: cmd, State: model.ExecutionState(status), CreatedAt: created,
		Source: model.Source{Kind: model.SourceKind(sourceType), Identifier: sourceID},
		CorrelationID: correlationID, UserTriggerID: userTriggerID,
	}
	if errMsg != nil {
		exec.ErrorMessage = *errMsg
	}
	return exec, nil
}
