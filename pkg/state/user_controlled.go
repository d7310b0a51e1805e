package state

import (
	"context"
	"math"
	"time"

	"github.com/hausbrain/core/pkg/commandlog"
	"github.com/hausbrain/core/pkg/model"
)

// UserControlledThermostat derives whether a thermostat is currently under
// user control, the most intricate derivation in the engine. Inputs:
// whether the thermostat's own
// auto-mode is on (A), its current setpoint (S), and the latest SetHeating
// command in the trailing 24h with its source, timestamp, and target-state
// (C).
func (e *Engine) UserControlledThermostat(ctx context.Context, thermostat string) (model.DataPoint, error) {
	now := e.Now()

	autoSample, hasAuto, err := e.rawLatest(ctx, model.Channel{Type: "ThermostatAutoMode", Variant: thermostat}, 7*24*time.Hour)
	if err != nil {
		return model.DataPoint{}, err
	}
	setpointSample, hasSetpoint, err := e.rawLatest(ctx, model.Channel{Type: "ThermostatSetpoint", Variant: thermostat}, 7*24*time.Hour)
	if err != nil {
		return model.DataPoint{}, err
	}
	if !hasAuto || !hasSetpoint {
		return model.DataPoint{}, nil
	}
	autoMode := autoSample.Value != 0
	setpoint := setpointSample.Value

	target := model.CommandTarget{Kind: model.KindSetHeating, Device: thermostat}
	cmd, err := e.cl.MostRecent(ctx, target, now.Add(-24*time.Hour))
	noCommand := err == commandlog.ErrNotFound
	if err != nil && !noCommand {
		return model.DataPoint{}, err
	}

	m := autoSample.Timestamp
	if setpointSample.Timestamp.After(m) {
		m = setpointSample.Timestamp
	}

	if noCommand {
		return model.DataPoint{Value: model.Boolean(!autoMode), Timestamp: m}, nil
	}

	if cmd.CreatedAt.After(m) {
		// The physical device has not yet reflected the command.
		return model.DataPoint{Value: model.Boolean(cmd.Source.IsUser()), Timestamp: cmd.CreatedAt}, nil
	}

	heatingTarget, err := cmd.Command.HeatingTargetPayload()
	if err != nil {
		return model.DataPoint{}, err
	}

	expired := false
	if until, ok := cmd.Command.UntilPayload(); ok {
		expired = until.Before(now)
	}

	matches := false
	switch heatingTarget.Mode {
	case model.HeatingAuto:
		matches = autoMode
	case model.HeatingHeat:
		matches = !autoMode && math.Abs(setpoint-heatingTarget.Temperature) < 1e-2
	case model.HeatingOff:
		matches = !autoMode && setpoint == 0
	}

	switch {
	case expired:
		return model.DataPoint{Value: model.Boolean(!autoMode), Timestamp: m}, nil
	case matches:
		return model.DataPoint{Value: model.Boolean(cmd.Source.IsUser()), Timestamp: m}, nil
	default:
		// Someone overrode the device outside of the command's terms.
		return model.DataPoint{Value: model.Boolean(true), Timestamp: m}, nil
	}
}

// UserControlledPowerDevice is the simpler power-device variant: if the
// powered flag changed more than 30s after the most recent SetPower command
// and not more than 15 minutes ago, the device is considered user-controlled.
// That command is the latest one of any source; user-sourced commands are
// not skipped over.
func (e *Engine) UserControlledPowerDevice(ctx context.Context, device string) (model.DataPoint, error) {
	now := e.Now()

	powerSample, hasPower, err := e.rawLatest(ctx, model.Channel{Type: "Powered", Variant: device}, 24*time.Hour)
	if err != nil || !hasPower {
		return model.DataPoint{}, err
	}

	target := model.CommandTarget{Kind: model.KindSetPower, Device: device}
	cmd, err := e.cl.MostRecent(ctx, target, now.Add(-24*time.Hour))
	noCommand := err == commandlog.ErrNotFound
	if err != nil && !noCommand {
		return model.DataPoint{}, err
	}
	if noCommand {
		return model.DataPoint{Value: model.Boolean(false), Timestamp: powerSample.Timestamp}, nil
	}

	changedAfterCommand := powerSample.Timestamp.Sub(cmd.CreatedAt) > 30*time.Second
	recentChange := now.Sub(powerSample.Timestamp) <= 15*time.Minute
	userControlled := changedAfterCommand && recentChange
	return model.DataPoint{Value: model.Boolean(userControlled), Timestamp: powerSample.Timestamp}, nil
}
