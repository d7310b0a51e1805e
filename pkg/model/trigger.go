package model

import (
	"encoding/json"
	"time"
)

// TriggerTarget is the intent analogue of CommandTarget: the group/name pair
// a UserTrigger is about, stripped of its payload.
type TriggerTarget struct {
	Group string `json:"group"`
	Name  string `json:"name"`
}

// UserTrigger captures external intent: a smart-home button press, a HomeKit
// control change. Like Command it serializes with target fields and payload
// flattened into one JSON object.
type UserTrigger struct {
	Target  TriggerTarget
	Payload map[string]any
}

func NewUserTrigger(group, name string, payload map[string]any) UserTrigger {
	return UserTrigger{Target: TriggerTarget{Group: group, Name: name}, Payload: payload}
}

func (t UserTrigger) MarshalJSON() ([]byte, error) {
	flat := make(map[string]any, len(t.Payload)+2)
	for k, v := range t.Payload {
		flat[k] = v
	}
	flat["group"] = t.Target.Group
	flat["name"] = t.Target.Name
	return json.Marshal(flat)
}

func (t *UserTrigger) UnmarshalJSON(data []byte) error {
	var flat map[string]any
	if err := json.Unmarshal(data, &flat); err != nil {
		return err
	}
	group, _ := flat["group"].(string)
	name, _ := flat["name"].(string)
	delete(flat, "group")
	delete(flat, "name")
	t.Target = TriggerTarget{Group: group, Name: name}
	if len(flat) == 0 {
		t.Payload = nil
	} else {
		t.Payload = flat
	}
	return nil
}

// TriggerRecord is a persisted UserTrigger with its log metadata.
type TriggerRecord struct {
	ID            int64
	Trigger       UserTrigger
	Timestamp     time.Time
	CorrelationID string
	// ActiveUntil is nil while the trigger is still eligible to be acted
	// on; the planner sets it to the cycle-start timestamp once a cycle
	// completes without the trigger being referenced by an ExecuteTrigger
	// result, cancelling it for future cycles.
	ActiveUntil *time.Time
}

func (r TriggerRecord) Target() TriggerTarget { return r.Trigger.Target }

// IsActive reports whether the trigger is still eligible for use as of now.
func (r TriggerRecord) IsActive(now time.Time) bool {
	return r.ActiveUntil == nil || r.ActiveUntil.After(now)
}
