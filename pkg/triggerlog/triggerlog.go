// Package triggerlog is the persistent log of user-originated intent
// events, backed by user_trigger. Query shape mirrors pkg/timestore's
// anchor-point frame semantics.
package triggerlog

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

var ErrNotFound = errors.New("triggerlog: not found")

type Store struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Add persists a new trigger event.
func (s *Store) Add(ctx context.Context, trigger model.UserTrigger, now time.Time, correlationID string) (model.TriggerRecord, error) {
	payload, err := json.Marshal(trigger)
	if err != nil {
		return model.TriggerRecord{}, fmt.Errorf("triggerlog: marshal: %w", err)
	}
	var id int64
	err = s.pool.QueryRow(ctx, `
		INSERT INTO user_trigger (trigger, timestamp, correlation_id, active_until)
		VALUES ($1, $2, $3, NULL)
		RETURNING id`,
		payload, now, correlationID).Scan(&id)
	if err != nil {
		return model.TriggerRecord{}, fmt.Errorf("triggerlog: add: %w", err)
	}
	return model.TriggerRecord{ID: id, Trigger: trigger, Timestamp: now, CorrelationID: correlationID}, nil
}

// Latest returns the most recent active-or-not trigger for target at or
// after since.
func (s *Store) Latest(ctx context.Context, target model.TriggerTarget, since time.Time) (model.TriggerRecord, error) {
	targetJSON, err := json.Marshal(target)
	if err != nil {
		return model.TriggerRecord{}, fmt.Errorf("triggerlog: marshal target: %w", err)
	}
	row := s.pool.QueryRow(ctx, `
		SELECT id, trigger, timestamp, correlation_id, active_until
		FROM user_trigger
		WHERE trigger @> $1::jsonb AND timestamp >= $2
		ORDER BY timestamp DESC
		LIMIT 1`,
		targetJSON, since)
	rec, err := scanTrigger(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.TriggerRecord{}, ErrNotFound
	}
	return rec, err
}

// Query returns trigger records for target within [t0,t1], plus anchors
// strictly outside the range.
func (s *Store) Query(ctx context.Context, target model.TriggerTarget, t0, t1 time.Time) ([]model.TriggerRecord, error) {
	targetJSON, err := json.Marshal(target)
	if err != nil {
		return nil, fmt.Errorf("triggerlog: marshal target: %w", err)
	}
	const cols = `id, trigger, timestamp, correlation_id, active_until`
	rows, err := s.pool.Query(ctx, `
		(SELECT `+cols+`, 0 AS bucket FROM user_trigger
		 WHERE trigger @> $1::jsonb AND timestamp >= $2 AND timestamp <= $3
		 ORDER BY timestamp ASC)
		UNION ALL
		(SELECT `+cols+`, 1 AS bucket FROM user_trigger
		 WHERE trigger @> $1::jsonb AND timestamp < $2
		 ORDER BY timestamp DESC LIMIT 1)
		UNION ALL
		(SELECT `+cols+`, 2 AS bucket FROM user_trigger
		 WHERE trigger @> $1::jsonb AND timestamp > $3
		 ORDER BY timestamp ASC LIMIT 1)`,
		targetJSON, t0, t1)
	if err != nil {
		return nil, fmt.Errorf("triggerlog: query: %w", err)
	}
	defer rows.Close()

	var out []model.TriggerRecord
	for rows.Next() {
		var id int64
		var payload []byte
		var ts time.Time
		var correlationID string
		var activeUntil *time.Time
		var bucket int
		if err := rows.Scan(&id, &payload, &ts, &correlationID, &activeUntil, &bucket); err != nil {
			return nil, fmt.Errorf("triggerlog: scan: %w", err)
		}
		var trig model.UserTrigger
		if err := json.Unmarshal(payload, &trig); err != nil {
			return nil, fmt.Errorf("triggerlog: unmarshal: %w", err)
		}
		out = append(out, model.TriggerRecord{
			ID: id, Trigger: trig, Timestamp: ts, CorrelationID: correlationID, ActiveUntil: activeUntil,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("triggerlog: query rows: %w", err)
	}
	return out, nil
}

// DisableBeforeExcept sets active_until = cycleStart on every trigger
// created before cycleStart whose id is not in usedIDs and which is not
// already disabled. Called once per planning cycle so triggers not claimed
// by any ExecuteTrigger result stop being eligible for future cycles.
func (s *Store) DisableBeforeExcept(ctx context.Context, cycleStart time.Time, usedIDs []int64) error {
	// A nil slice is sent as SQL NULL, and NOT (id = ANY(NULL)) matches no
	// row; an empty array excludes nothing.
	if usedIDs == nil {
		usedIDs = []int64{}
	}
	_, err := s.pool.Exec(ctx, `
		UPDATE user_trigger
		SET active_until = $1
		WHERE timestamp < $1 AND active_until IS NULL AND NOT (id = ANY($2))`,
		cycleStart, usedIDs)
	if err != nil {
		return fmt.Errorf("triggerlog: disable before except: %w", err)
	}
	return nil
}

func scanTrigger(row pgx.Row) (model.TriggerRecord, error) {
	var id int64
	var payload []byte
	var ts time.Time
	var correlationID string
	var activeUntil *time.Time
	if err := row.Scan(&id, &payload, &ts, &correlationID, &activeUntil); err != nil {
		return model.TriggerRecord{}, err
	}
	var trig model.UserTrigger
	if err := json.Unmarshal(payload, &trig); err != nil {
		return model.TriggerRecord{}, fmt.Errorf("triggerlog: unmarshal: %w", err)
	}
	return model.TriggerRecord{ID: id, Trigger: trig, Timestamp: ts, CorrelationID: correlationID, ActiveUntil: activeUntil}, nil
}
