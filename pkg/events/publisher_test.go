package events_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/hausbrain/core/pkg/events"
	"github.com/hausbrain/core/pkg/model"
)

func TestPublisherDebouncesBurstIntoOneSignal(t *testing.T) {
	mgr := events.NewManager()
	pub := events.NewPublisher(mgr, 20*time.Millisecond)
	defer pub.Close()

	ch, unsubscribe := mgr.SubscribeStateChanged()
	defer unsubscribe()

	channel := model.Channel{Type: "Temperature", Variant: "LivingRoom"}
	pub.NotifyStateChanged(channel, model.DataPoint{Value: model.Quantity(18.0), Timestamp: time.Now()})
	pub.NotifyStateChanged(channel, model.DataPoint{Value: model.Quantity(19.0), Timestamp: time.Now()})
	pub.NotifyStateChanged(channel, model.DataPoint{Value: model.Quantity(20.0), Timestamp: time.Now()})

	select {
	case got := <-ch:
		assert.Equal(t, model.Quantity(20.0), got.Latest.Value)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for debounced signal")
	}

	select {
	case <-ch:
		t.Fatal("a burst of notifications should collapse into a single signal")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestPublisherDebouncesIndependentlyPerChannel(t *testing.T) {
	mgr := events.NewManager()
	pub := events.NewPublisher(mgr, 10*time.Millisecond)
	defer pub.Close()

	ch, unsubscribe := mgr.SubscribeStateChanged()
	defer unsubscribe()

	livingRoom := model.Channel{Type: "Temperature", Variant: "LivingRoom"}
	bedroom := model.Channel{Type: "Temperature", Variant: "Bedroom"}
	pub.NotifyStateChanged(livingRoom, model.DataPoint{Value: model.Quantity(18.0), Timestamp: time.Now()})
	pub.NotifyStateChanged(bedroom, model.DataPoint{Value: model.Quantity(16.0), Timestamp: time.Now()})

	seen := map[model.Channel]bool{}
	for i := 0; i < 2; i++ {
		select {
		case got := <-ch:
			seen[got.Channel] = true
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for per-channel signal")
		}
	}
	assert.True(t, seen[livingRoom])
	assert.True(t, seen[bedroom])
}

func TestPublisherCloseStopsPendingTimers(t *testing.T) {
	mgr := events.NewManager()
	pub := events.NewPublisher(mgr, 10*time.Millisecond)

	ch, unsubscribe := mgr.SubscribeStateChanged()
	defer unsubscribe()

	channel := model.Channel{Type: "Humidity", Variant: "Bathroom"}
	pub.NotifyStateChanged(channel, model.DataPoint{Value: model.Quantity(55.0), Timestamp: time.Now()})
	pub.Close()

	select {
	case <-ch:
		t.Fatal("closed publisher should not flush pending debounces")
	case <-time.After(50 * time.Millisecond):
	}

	pub.NotifyStateChanged(channel, model.DataPoint{Value: model.Quantity(60.0), Timestamp: time.Now()})
	select {
	case <-ch:
		t.Fatal("a closed publisher must ignore further notifications")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestPublisherForwardsUserTriggerUntouched(t *testing.T) {
	mgr := events.NewManager()
	pub := events.NewPublisher(mgr, events.DefaultDebounce)
	defer pub.Close()

	ch, unsubscribe := mgr.SubscribeUserTriggerAdded()
	defer unsubscribe()

	rec := model.TriggerRecord{ID: 9, Trigger: model.NewUserTrigger("SetPower", "Dehumidifier", nil)}
	pub.NotifyUserTriggerAdded(rec)

	select {
	case got := <-ch:
		assert.Equal(t, int64(9), got.Trigger.ID)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for forwarded user-trigger event")
	}
}
