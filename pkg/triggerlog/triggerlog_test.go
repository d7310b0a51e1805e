package triggerlog_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hausbrain/core/pkg/model"
	"github.com/hausbrain/core/pkg/triggerlog"
	testdb "github.com/hausbrain/core/test/database"
)

func TestAddAndLatest(t *testing.T) {
	pool := testdb.NewTestPool(t)
	store := triggerlog.New(pool)
	ctx := context.Background()
	now := time.Now().UTC()

	trig := model.NewUserTrigger("LivingRoomCeilingFanSpeed", "press", map[string]any{"speed": "high"})
	rec, err := store.Add(ctx, trig, now, "corr-1")
	require.NoError(t, err)
	assert.NotZero(t, rec.ID)
	assert.True(t, rec.IsActive(now))

	got, err := store.Latest(ctx, trig.Target, now.Add(-time.Hour))
	require.NoError(t, err)
	assert.Equal(t, rec.ID, got.ID)
	assert.Equal(t, "high", got.Trigger.Payload["speed"])
}

func TestLatestNotFound(t *testing.T) {
	pool := testdb.NewTestPool(t)
	store := triggerlog.New(pool)

	_, err := store.Latest(context.Background(), model.TriggerTarget{Group: "Nobody", Name: "Nothing"}, time.Now().Add(-time.Hour))
	assert.ErrorIs(t, err, triggerlog.ErrNotFound)
}

func TestDisableBeforeExceptLeavesUsedTriggersActive(t *testing.T) {
	pool := testdb.NewTestPool(t)
	store := triggerlog.New(pool)
	ctx := context.Background()
	now := time.Now().UTC()

	kept, err := store.Add(ctx, model.NewUserTrigger("DehumidifierPower", "press", nil), now.Add(-time.Minute), "corr-keep")
	require.NoError(t, err)
	superseded, err := store.Add(ctx, model.NewUserTrigger("LivingRoomTvEnergySaving", "press", nil), now.Add(-time.Minute), "corr-drop")
	require.NoError(t, err)

	require.NoError(t, store.DisableBeforeExcept(ctx, now, []int64{kept.ID}))

	keptRec, err := store.Latest(ctx, kept.Trigger.Target, now.Add(-time.Hour))
	require.NoError(t, err)
	assert.True(t, keptRec.IsActive(now))

	droppedRec, err := store.Latest(ctx, superseded.Trigger.Target, now.Add(-time.Hour))
	require.NoError(t, err)
	assert.False(t, droppedRec.IsActive(now))
}
