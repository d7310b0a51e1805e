// Package availability persists per-item online/offline bookkeeping
// (item_availability): the last heartbeat seen from each adapter source
// plus an explicit offline override, upserted as inbound availability
// updates arrive. Plain SQL over one *pgxpool.Pool, no ORM, matching
// commandlog's query style.
package availability

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hausbrain/core/pkg/model"
)

var ErrNotFound = errors.New("availability: not found")

type Store struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Upsert records a heartbeat (or explicit offline mark) for (source, item),
// creating the row on first sight with considerOfflineAfter as its default
// threshold.
func (s *Store) Upsert(ctx context.Context, source, item string, lastSeen time.Time, markedOffline bool, considerOfflineAfter time.Duration, now time.Time) (model.Availability, error) {
	row := s.pool.QueryRow(ctx, `
		INSERT INTO item_availability (source, item, last_seen, marked_offline, considered_offline_after, entry_updated)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (source, item) DO UPDATE SET
			last_seen = EXCLUDED.last_seen,
			marked_offline = EXCLUDED.marked_offline,
			entry_updated = EXCLUDED.entry_updated
		RETURNING source, item, last_seen, marked_offline, considered_offline_after, entry_updated
	`, source, item, lastSeen, markedOffline, considerOfflineAfter, now)
	return scanAvailability(row)
}

// Get returns the current availability record for (source, item).
func (s *Store) Get(ctx context.Context, source, item string) (model.Availability, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT source, item, last_seen, marked_offline, considered_offline_after, entry_updated
		FROM item_availability
		WHERE source = $1 AND item = $2
	`, source, item)
	return scanAvailability(row)
}

// All returns every tracked item, for offline-sweep style diagnostics.
func (s *Store) All(ctx context.Context) ([]model.Availability, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT source, item, last_seen, marked_offline, considered_offline_after, entry_updated
		FROM item_availability
		ORDER BY source, item
	`)
	if err != nil {
		return nil, fmt.Errorf("availability: query all: %w", err)
	}
	defer rows.Close()

	var out []model.Availability
	for rows.Next() {
		a, err := scanAvailabilityRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func scanAvailability(row pgx.Row) (model.Availability, error) {
	var a model.Availability
	var offlineAfter time.Duration
	err := row.Scan(&a.Source, &a.Item, &a.LastSeen, &a.MarkedOffline, &offlineAfter, &a.EntryUpdated)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Availability{}, ErrNotFound
	}
	if err != nil {
		return model.Availability{}, fmt.Errorf("availability: scan: %w", err)
	}
	a.ConsideredOfflineAfter = offlineAfter
	return a, nil
}

func scanAvailabilityRow(rows pgx.Rows) (model.Availability, error) {
	var a model.Availability
	var offlineAfter time.Duration
	if err := rows.Scan(&a.Source, &a.Item, &a.LastSeen, &a.MarkedOffline, &offlineAfter, &a.EntryUpdated); err != nil {
		return model.Availability{}, fmt.Errorf("availability: scan row: %w", err)
	}
	a.ConsideredOfflineAfter = offlineAfter
	return a, nil
}
