package model

import (
	"encoding/json"
	"fmt"
	"time"
)

// CommandKind enumerates the closed set of actuator commands the engine can
// issue. SetThermostatLoadMean and SetThermostatValveOpeningPosition are not
// in the distilled command table but are exercised by the reflection-check
// table in package pipeline.
type CommandKind string

const (
	KindSetPower                          CommandKind = "SetPower"
	KindSetHeating                         CommandKind = "SetHeating"
	KindSetThermostatAmbientTemperature    CommandKind = "SetThermostatAmbientTemperature"
	KindPushNotify                         CommandKind = "PushNotify"
	KindSetEnergySaving                    CommandKind = "SetEnergySaving"
	KindControlFan                         CommandKind = "ControlFan"
	KindSetThermostatLoadMean              CommandKind = "SetThermostatLoadMean"
	KindSetThermostatValveOpeningPosition  CommandKind = "SetThermostatValveOpeningPosition"
)

// CommandTarget is a Command stripped of its payload: the (kind, device)
// pair used for locking, deduplication and supersede grouping. Because a
// Command is serialized with target and payload fields flattened into one
// JSON object, CommandTarget's JSON form is always a subset of the object a
// matching Command serializes to, which is what lets Postgres' `@>`
// containment operator do target matching directly against stored rows.
type CommandTarget struct {
	Kind   CommandKind `json:"kind"`
	Device string      `json:"device"`
}

func (t CommandTarget) String() string {
	return fmt.Sprintf("%s(%s)", t.Kind, t.Device)
}

// NotifyAction is PushNotify's action payload: show or dismiss a
// notification.
type NotifyAction string

const (
	NotifyShow    NotifyAction = "notify"
	NotifyDismiss NotifyAction = "dismiss"
)

// Command is a tagged value: a CommandTarget plus whatever extra fields its
// kind requires. Payload holds only the kind-specific fields (never "kind"
// or "device", which live on Target); it is nil for payload-less commands.
type Command struct {
	Target  CommandTarget
	Payload map[string]any
}

func newCommand(kind CommandKind, device string, payload map[string]any) Command {
	return Command{Target: CommandTarget{Kind: kind, Device: device}, Payload: payload}
}

func NewSetPower(device string, on bool) Command {
	return newCommand(KindSetPower, device, map[string]any{"on": on})
}

func NewSetHeating(device string, target HeatingTarget) Command {
	return NewSetHeatingUntil(device, target, nil)
}

// NewSetHeatingUntil is NewSetHeating with an optional validity deadline,
// stored as epoch seconds under "until". NewSetHeating calls it with nil.
func NewSetHeatingUntil(device string, target HeatingTarget, until *time.Time) Command {
	payload := map[string]any{
		"heating_kind": int(target.Mode),
		"temperature":  target.Temperature,
		"low_priority": target.LowPriority,
	}
	if until != nil {
		payload["until"] = until.Unix()
	}
	return newCommand(KindSetHeating, device, payload)
}

// UntilPayload returns the SetHeating command's optional validity deadline.
func (c Command) UntilPayload() (time.Time, bool) {
	raw, ok := c.Payload["until"]
	if !ok {
		return time.Time{}, false
	}
	return time.Unix(int64(asFloat(raw)), 0).UTC(), true
}

func NewSetThermostatAmbientTemperature(device string, temp float64) Command {
	return newCommand(KindSetThermostatAmbientTemperature, device, map[string]any{"temperature": temp})
}

func NewPushNotify(recipient, notification string, action NotifyAction) Command {
	return newCommand(KindPushNotify, recipient, map[string]any{
		"notification": notification,
		"action":       string(action),
	})
}

func NewSetEnergySaving(device string, on bool) Command {
	return newCommand(KindSetEnergySaving, device, map[string]any{"on": on})
}

func NewControlFan(device string, airflow FanAirflow) Command {
	return newCommand(KindControlFan, device, map[string]any{"airflow": airflow.EncodeF64()})
}

func NewSetThermostatLoadMean(device string, value float64) Command {
	return newCommand(KindSetThermostatLoadMean, device, map[string]any{"value": value})
}

func NewSetThermostatValveOpeningPosition(device string, percent float64) Command {
	return newCommand(KindSetThermostatValveOpeningPosition, device, map[string]any{"percent": percent})
}

// HeatingTargetPayload reconstructs the HeatingTarget carried by a SetHeating
// command's payload.
func (c Command) HeatingTargetPayload() (HeatingTarget, error) {
	kindRaw, ok := c.Payload["heating_kind"]
	if !ok {
		return HeatingTarget{}, fmt.Errorf("model: command %s missing heating_kind payload", c.Target)
	}
	mode := HeatingTargetKind(int(asFloat(kindRaw)))
	temp := asFloat(c.Payload["temperature"])
	low, _ := c.Payload["low_priority"].(bool)
	return HeatingTarget{Mode: mode, Temperature: temp, LowPriority: low}, nil
}

func (c Command) Bool(key string) bool {
	b, _ := c.Payload[key].(bool)
	return b
}

func (c Command) Float(key string) float64 {
	return asFloat(c.Payload[key])
}

func (c Command) Str(key string) string {
	s, _ := c.Payload[key].(string)
	return s
}

func asFloat(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	case int64:
		return float64(n)
	case json.Number:
		f, _ := n.Float64()
		return f
	default:
		return 0
	}
}

// MarshalJSON flattens target and payload fields into one object, e.g.
// {"kind":"SetPower","device":"Dehumidifier","on":true}.
func (c Command) MarshalJSON() ([]byte, error) {
	flat := make(map[string]any, len(c.Payload)+2)
	for k, v := range c.Payload {
		flat[k] = v
	}
	flat["kind"] = c.Target.Kind
	flat["device"] = c.Target.Device
	return json.Marshal(flat)
}

// UnmarshalJSON is the inverse of MarshalJSON: it splits "kind"/"device"
// back into Target and leaves everything else in Payload.
func (c *Command) UnmarshalJSON(data []byte) error {
	var flat map[string]any
	if err := json.Unmarshal(data, &flat); err != nil {
		return err
	}
	kind, _ := flat["kind"].(string)
	device, _ := flat["device"].(string)
	delete(flat, "kind")
	delete(flat, "device")
	c.Target = CommandTarget{Kind: CommandKind(kind), Device: device}
	if len(flat) == 0 {
		c.Payload = nil
	} else {
		c.Payload = flat
	}
	return nil
}

// MarshalJSON marshals just the target form, the payload-less subset used
// for containment queries and locking/dedup keys.
func (t CommandTarget) MarshalJSON() ([]byte, error) {
	type alias CommandTarget
	return json.Marshal(alias(t))
}
