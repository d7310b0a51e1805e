package tracestore_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hausbrain/core/pkg/model"
	"github.com/hausbrain/core/pkg/tracestore"
	testdb "github.com/hausbrain/core/test/database"
)

func newTrace(t time.Time, goal string) model.PlanningTrace {
	return model.PlanningTrace{
		TraceID:   uuid.NewString(),
		Timestamp: t,
		Steps: []model.PlanningTraceStep{
			{ActionID: model.ExtID{Type: "SimpleRule", Variant: "Dehumidify"}, GoalID: goal, GoalActive: true, Fulfilled: true},
		},
	}
}

func TestInsertAndByTraceID(t *testing.T) {
	pool := testdb.NewTestPool(t)
	store := tracestore.New(pool)
	ctx := context.Background()
	now := time.Now().UTC()

	trace := newTrace(now, "PreventMouldInBathroom")
	inserted, err := store.Insert(ctx, trace)
	require.NoError(t, err)
	assert.NotZero(t, inserted.ID)

	got, err := store.ByTraceID(ctx, trace.TraceID)
	require.NoError(t, err)
	assert.Equal(t, inserted.ID, got.ID)
	require.Len(t, got.Steps, 1)
	assert.Equal(t, "PreventMouldInBathroom", got.Steps[0].GoalID)
}

func TestByTraceIDNotFound(t *testing.T) {
	pool := testdb.NewTestPool(t)
	store := tracestore.New(pool)

	_, err := store.ByTraceID(context.Background(), uuid.NewString())
	assert.ErrorIs(t, err, tracestore.ErrNotFound)
}

func TestLatestAndLatestBefore(t *testing.T) {
	pool := testdb.NewTestPool(t)
	store := tracestore.New(pool)
	ctx := context.Background()
	now := time.Now().UTC()

	older, err := store.Insert(ctx, newTrace(now.Add(-time.Hour), "StayInformed"))
	require.NoError(t, err)
	newer, err := store.Insert(ctx, newTrace(now, "StayInformed"))
	require.NoError(t, err)

	latest, err := store.Latest(ctx)
	require.NoError(t, err)
	assert.Equal(t, newer.ID, latest.ID)

	before, err := store.LatestBefore(ctx, now.Add(-30*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, older.ID, before.ID)
}

func TestInRange(t *testing.T) {
	pool := testdb.NewTestPool(t)
	store := tracestore.New(pool)
	ctx := context.Background()
	now := time.Now().UTC()

	inRange, err := store.Insert(ctx, newTrace(now, "TvControl"))
	require.NoError(t, err)
	_, err = store.Insert(ctx, newTrace(now.Add(-3*time.Hour), "TvControl"))
	require.NoError(t, err)

	traces, err := store.InRange(ctx, now.Add(-time.Hour), now.Add(time.Hour))
	require.NoError(t, err)
	require.Len(t, traces, 1)
	assert.Equal(t, inRange.ID, traces[0].ID)
}
