package model

import "fmt"

// Channel names one physical or derived quantity: a (type-name, variant-name)
// pair, e.g. Temperature/LivingRoom or HeatingDemand/Bedroom. It is the
// identity half of a Sample; the tag registry maps a Channel to a numeric
// tag-id.
type Channel struct {
	Type    string
	Variant string
}

func (c Channel) String() string {
	return fmt.Sprintf("%s::%s", c.Type, c.Variant)
}

// ValueKind looks up the declared value-semantics type for a channel's
// type-name, reporting false for an unknown one. timestore.AllSamplesInRange
// uses it on rows read back from the database and skips any row whose
// type-name is unknown.
func ValueKind(channelType string) (ValueKind, bool) {
	k, ok := channelKinds[channelType]
	return k, ok
}

// RegisterChannelKind declares the value-semantics type for a channel
// type-name. Called from package config at startup so the static goal/action
// registry and the channel vocabulary stay in one place.
func RegisterChannelKind(channelType string, kind ValueKind) {
	channelKinds[channelType] = kind
}

var channelKinds = map[string]ValueKind{
	"Temperature":                KindTemperature,
	"Humidity":                    KindPercent,
	"Dewpoint":                    KindTemperature,
	"AbsoluteHumidity":            KindQuantity,
	"RiskOfMould":                 KindBoolean,
	"Opened":                      KindBoolean,
	"Occupancy":                   KindQuantity,
	"Presence":                    KindBoolean,
	"Powered":                     KindBoolean,
	"EnergySaving":                KindBoolean,
	"Energy":                      KindEnergy,
	"FanActivity":                 KindFanAirflow,
	"HeatingDemand":               KindHeatingTarget,
	"RadiatorWindowOpen":          KindBoolean,
	"ThermostatAutoMode":          KindBoolean,
	"ThermostatSetpoint":          KindTemperature,
	"ThermostatValveOpening":      KindPercent,
	"ThermostatLoadMean":          KindQuantity,
	"UserControlled":              KindBoolean,
	"AutomaticTemperatureIncrease": KindBoolean,
	"WindowOpenDuration":          KindQuantity,
	"ContinuouslyPoweredSince":    KindQuantity,
}
