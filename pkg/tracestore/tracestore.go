// Package tracestore is the append-only record of planning cycles, backed
// by planning_trace: one steps column holding the marshaled
// []model.PlanningTraceStep, queried by trace-id, by latest-before, or by
// range — the same three access patterns commandlog and timestore use for
// their own rows.
package tracestore

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

var ErrNotFound = errors.New("tracestore: not found")

type Store struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Insert persists one completed planning cycle and returns it with its
// assigned row id.
func (s *Store) Insert(ctx context.Context, trace model.PlanningTrace) (model.PlanningTrace, error) {
	steps, err := json.Marshal(trace.Steps)
	if err != nil {
		return model.PlanningTrace{}, fmt.Errorf("tracestore: marshal steps: %w", err)
	}

	var id int64
	err = s.pool.QueryRow(ctx, `
		INSERT INTO planning_trace (trace_id, timestamp, steps)
		VALUES ($1, $2, $3)
		RETURNING id`,
		trace.TraceID, trace.Timestamp, steps,
	).Scan(&id)
	if err != nil {
		return model.PlanningTrace{}, fmt.Errorf("tracestore: insert: %w", err)
	}

	trace.ID = id
	return trace, nil
}

// ByTraceID returns the trace with the given trace-id, or ErrNotFound.
func (s *Store) ByTraceID(ctx context.Context, traceID string) (model.PlanningTrace, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, trace_id, timestamp, steps FROM planning_trace
		WHERE trace_id = $1`,
		traceID)
	return scanTrace(row)
}

// LatestBefore returns the most recent trace timestamped at or before t, or
// ErrNotFound if the table holds nothing that old.
func (s *Store) LatestBefore(ctx context.Context, t time.Time) (model.PlanningTrace, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, trace_id, timestamp, steps FROM planning_trace
		WHERE timestamp <= $1
		ORDER BY timestamp DESC
		LIMIT 1`,
		t)
	return scanTrace(row)
}

// Latest returns the trace with the newest timestamp, or ErrNotFound if the
// table is empty.
func (s *Store) Latest(ctx context.Context) (model.PlanningTrace, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, trace_id, timestamp, steps FROM planning_trace
		ORDER BY timestamp DESC
		LIMIT 1`)
	return scanTrace(row)
}

// InRange returns every trace timestamped within [t0,t1], oldest first.
func (s *Store) InRange(ctx context.Context, t0, t1 time.Time) ([]model.PlanningTrace, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, trace_id, timestamp, steps FROM planning_trace
		WHERE timestamp >= $1 AND timestamp <= $2
		ORDER BY timestamp ASC`,
		t0, t1)
	if err != nil {
		return nil, fmt.Errorf("tracestore: in-range query: %w", err)
	}
	defer rows.Close()

	var out []model.PlanningTrace
	for rows.Next() {
		trace, err := scanTraceRows(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, trace)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("tracestore: in-range rows: %w", err)
	}
	return out, nil
}

func scanTrace(row pgx.Row) (model.PlanningTrace, error) {
	var trace model.PlanningTrace
	var stepsJSON []byte
	if err := row.Scan(&trace.ID, &trace.TraceID, &trace.Timestamp, &stepsJSON); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.PlanningTrace{}, ErrNotFound
		}
		return model.PlanningTrace{}, fmt.Errorf("tracestore: scan: %w", err)
	}
	if err := json.Unmarshal(stepsJSON, &trace.Steps); err != nil {
		return model.PlanningTrace{}, fmt.Errorf("tracestore: unmarshal steps: %w", err)
	}
	return trace, nil
}

func scanTraceRows(rows pgx.Rows) (model.PlanningTrace, error) {
	var trace model.PlanningTrace
	var stepsJSON []byte
	if err := rows.Scan(&trace.ID, &trace.TraceID, &trace.Timestamp, &stepsJSON); err != nil {
		return model.PlanningTrace{}, fmt.Errorf("tracestore: scan: %w", err)
	}
	if err := json.Unmarshal(stepsJSON, &trace.Steps); err != nil {
		return model.PlanningTrace{}, fmt.Errorf("tracestore: unmarshal steps: %w", err)
	}
	return trace, nil
}
