package events_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/hausbrain/core/pkg/events"
	"github.com/hausbrain/core/pkg/model"
)

func TestSubscribeStateChangedReceivesPublished(t *testing.T) {
	mgr := events.NewManager()
	ch, unsubscribe := mgr.SubscribeStateChanged()
	defer unsubscribe()

	want := events.StateChanged{
		Channel:   model.Channel{Type: "Temperature", Variant: "LivingRoom"},
		Latest:    model.DataPoint{Value: model.Quantity(21.5), Timestamp: time.Now()},
		Timestamp: time.Now(),
	}
	mgr.PublishStateChanged(want)

	select {
	case got := <-ch:
		assert.Equal(t, want.Channel, got.Channel)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for published event")
	}
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	mgr := events.NewManager()
	ch, unsubscribe := mgr.SubscribeCommandAdded()
	unsubscribe()

	mgr.PublishCommandAdded(model.CommandExecution{ID: 1})

	select {
	case _, ok := <-ch:
		assert.False(t, ok, "channel should not deliver after unsubscribe, and is never closed either")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestCommandLifecycleEventsPublish(t *testing.T) {
	mgr := events.NewManager()
	startedCh, unsubStarted := mgr.SubscribeCommandStarted()
	defer unsubStarted()
	finishedCh, unsubFinished := mgr.SubscribeCommandFinished()
	defer unsubFinished()

	exec := model.CommandExecution{ID: 7}
	mgr.PublishCommandStarted(exec)
	mgr.PublishCommandFinished(exec, model.StateSuccess, "")

	select {
	case got := <-startedCh:
		assert.Equal(t, exec.ID, got.Execution.ID)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for command-started event")
	}

	select {
	case got := <-finishedCh:
		assert.Equal(t, model.StateSuccess, got.State)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for command-finished event")
	}
}
