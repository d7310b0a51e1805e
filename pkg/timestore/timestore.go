// Package timestore is the persistent append-only store for tagged numeric
// samples: the tag registry, range queries with anchor points, and the
// append-time dedup invariant. Queries go straight through pgx rather than
// an ORM, and a range query returns not just in-range samples but the
// nearest sample strictly before and after the range so callers can
// interpolate at the window's edges.
package timestore

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hausbrain/core/pkg/model"
)

// Store is the time store. It is safe for concurrent use.
type Store struct {
	pool *pgxpool.Pool
	log  *slog.Logger

	// tagCache memoizes Channel -> tag-id lookups. The Rust original
	// relies on a #[cached] attribute macro on get_tag_id; Go has no
	// equivalent, so this is the explicit memoizing wrapper around it.
	tagCache sync.Map // model.Channel -> int64
}

func New(pool *pgxpool.Pool, log *slog.Logger) *Store {
	if log == nil {
		log = slog.Default()
	}
	return &Store{pool: pool, log: log}
}

// TagID resolves a channel to its tag-id, optionally creating the row if it
// doesn't exist. Creation is atomic: concurrent callers racing to create the
// same channel's tag converge on one row via ON CONFLICT DO NOTHING followed
// by a re-select.
func (s *Store) TagID(ctx context.Context, ch model.Channel, createIfMissing bool) (int64, error) {
	if id, ok := s.tagCache.Load(ch); ok {
		return id.(int64), nil
	}

	id, err := s.lookupTagID(ctx, ch)
	if err == nil {
		s.tagCache.Store(ch, id)
		return id, nil
	}
	if err != pgx.ErrNoRows {
		return 0, fmt.Errorf("timestore: lookup tag %s: %w", ch, err)
	}
	if !createIfMissing {
		return 0, fmt.Errorf("timestore: unknown channel %s", ch)
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO thing_value_tag (channel_type, variant) VALUES ($1, $2)
		 ON CONFLICT (channel_type, variant) DO NOTHING`,
		ch.Type, ch.Variant)
	if err != nil {
		return 0, fmt.Errorf("timestore: create tag %s: %w", ch, err)
	}

	id, err = s.lookupTagID(ctx, ch)
	if err != nil {
		return 0, fmt.Errorf("timestore: re-lookup tag %s after create: %w", ch, err)
	}
	s.tagCache.Store(ch, id)
	return id, nil
}

func (s *Store) lookupTagID(ctx context.Context, ch model.Channel) (int64, error) {
	var id int64
	err := s.pool.QueryRow(ctx,
		`SELECT id FROM thing_value_tag WHERE channel_type = $1 AND variant = $2`,
		ch.Type, ch.Variant,
	).Scan(&id)
	return id, err
}

// Append inserts a new sample, subject to the dedup invariant: the insert
// happens only if the most recent existing sample for this tag-id has a
// different value (or none exists). Equal-value appends are silently
// dropped to prevent flapping amplification.
func (s *Store) Append(ctx context.Context, tagID int64, value float64, ts time.Time) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO thing_value (tag_id, value, timestamp)
		SELECT $1, $2, $3
		WHERE NOT EXISTS (
			SELECT 1 FROM (
				SELECT value FROM thing_value
				WHERE tag_id = $1
				ORDER BY timestamp DESC
				LIMIT 1
			) latest
			WHERE latest.value = $2
		)`,
		tagID, value, ts)
	if err != nil {
		return fmt.Errorf("timestore: append tag %d: %w", tagID, err)
	}
	return nil
}

// Frame returns all samples for tagID within [t0,t1] inclusive, plus the
// most recent sample strictly before t0 and the earliest strictly after t1
// if they exist.
func (s *Store) Frame(ctx context.Context, tagID int64, t0, t1 time.Time) (model.Frame, error) {
	rows, err := s.pool.Query(ctx, `
		(SELECT value, timestamp, 0 AS bucket FROM thing_value
		 WHERE tag_id = $1 AND timestamp >= $2 AND timestamp <= $3
		 ORDER BY timestamp ASC)
		UNION ALL
		(SELECT value, timestamp, 1 AS bucket FROM thing_value
		 WHERE tag_id = $1 AND timestamp < $2
		 ORDER BY timestamp DESC LIMIT 1)
		UNION ALL
		(SELECT value, timestamp, 2 AS bucket FROM thing_value
		 WHERE tag_id = $1 AND timestamp > $3
		 ORDER BY timestamp ASC LIMIT 1)`,
		tagID, t0, t1)
	if err != nil {
		return model.Frame{}, fmt.Errorf("timestore: frame tag %d: %w", tagID, err)
	}
	defer rows.Close()

	frame := model.Frame{TagID: tagID}
	for rows.Next() {
		var value float64
		var ts time.Time
		var bucket int
		if err := rows.Scan(&value, &ts, &bucket); err != nil {
			return model.Frame{}, fmt.Errorf("timestore: scan frame row: %w", err)
		}
		sample := model.Sample{TagID: tagID, Value: value, Timestamp: ts}
		switch bucket {
		case 0:
			frame.Samples = append(frame.Samples, sample)
		case 1:
			frame.AnchorBefore = &sample
		case 2:
			frame.AnchorAfter = &sample
		}
	}
	if err := rows.Err(); err != nil {
		return model.Frame{}, fmt.Errorf("timestore: frame tag %d rows: %w", tagID, err)
	}
	return frame, nil
}

// AllSamplesInRange is the diagnostics query over every channel at once.
// Rows whose tag no longer resolves to a known channel kind are logged and
// skipped rather than failing the whole query, per the "malformed stored
// value" error-kind contract.
func (s *Store) AllSamplesInRange(ctx context.Context, t0, t1 time.Time) ([]model.ChannelDataPoint, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT t.channel_type, t.variant, v.value, v.timestamp
		FROM thing_value v
		JOIN thing_value_tag t ON t.id = v.tag_id
		WHERE v.timestamp >= $1 AND v.timestamp <= $2
		ORDER BY v.timestamp ASC`,
		t0, t1)
	if err != nil {
		return nil, fmt.Errorf("timestore: all samples in range: %w", err)
	}
	defer rows.Close()

	var out []model.ChannelDataPoint
	for rows.Next() {
		var channelType, variant string
		var value float64
		var ts time.Time
		if err := rows.Scan(&channelType, &variant, &value, &ts); err != nil {
			return nil, fmt.Errorf("timestore: scan diagnostics row: %w", err)
		}
		kind, ok := model.ValueKind(channelType)
		if !ok {
			s.log.Warn("timestore: skipping sample for unmapped channel type",
				"channel_type", channelType, "variant", variant)
			continue
		}
		decoded, err := model.DecodeValue(kind, value)
		if err != nil {
			s.log.Warn("timestore: skipping malformed sample",
				"channel_type", channelType, "variant", variant, "error", err)
			continue
		}
		out = append(out, model.ChannelDataPoint{
			Channel:   model.Channel{Type: channelType, Variant: variant},
			DataPoint: model.DataPoint{Value: decoded, Timestamp: ts},
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("timestore: diagnostics rows: %w", err)
	}
	return out, nil
}
