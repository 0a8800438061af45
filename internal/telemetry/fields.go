package telemetry

import (
	"errors"
	"sort"
)

var ErrUnknownField = errors.New("unknown field")

// Field names a metric recorded alongside a sample position.
type Field string

const (
	FieldEngineSpeed               Field = "engine-speed"
	FieldVehicleSpeed              Field = "vehicle-speed"
	FieldIntakeManifoldPressure    Field = "intake-manifold-absolute-pressure"
	FieldRelativeThrottlePosition  Field = "relative-throttle-position"
	FieldCommandedThrottleActuator Field = "commanded-throttle-actuator"
	FieldEngineCoolantTemperature  Field = "engine-coolant-temperature"
	FieldAcceleratorPedalPosition  Field = "accelerator-pedal-position"
	FieldDriversDemandedTorque     Field = "drivers-demanded-torque"
	FieldActualEngineTorque        Field = "actual-engine-torque"

	// FieldDistanceTraveled is derived by the aggregator, never stored on a sample.
	FieldDistanceTraveled Field = "distance-traveled"
)

var fieldLabels = map[Field]string{
	FieldEngineSpeed:               "Engine Speed (RPM)",
	FieldVehicleSpeed:              "Vehicle Speed (km/h)",
	FieldIntakeManifoldPressure:    "Intake Manifold Pressure (kPa)",
	FieldRelativeThrottlePosition:  "Relative Throttle Position (%)",
	FieldCommandedThrottleActuator: "Commanded Throttle Actuator (%)",
	FieldEngineCoolantTemperature:  "Engine Coolant Temperature (%)",
	FieldAcceleratorPedalPosition:  "Accelerator Pedal Position (%)",
	FieldDriversDemandedTorque:     "Driver's Demanded Torque (%)",
	FieldActualEngineTorque:        "Actual Engine Torque (%)",
	FieldDistanceTraveled:          "Distance Traveled (km)",
}

// ParseField maps a field name to its Field, rejecting names outside the
// known set.
func ParseField(name string) (Field, error) {
	f := Field(name)
	if _, ok := fieldLabels[f]; !ok {
		return "", ErrUnknownField
	}
	return f, nil
}

func (f Field) Label() string {
	if label, ok := fieldLabels[f]; ok {
		return label
	}
	return string(f)
}

// Sampled reports whether the field is read straight off samples.
func (f Field) Sampled() bool {
	_, ok := fieldLabels[f]
	return ok && f != FieldDistanceTraveled
}

// Fields returns every known field in name order.
func Fields() []Field {
	out := make([]Field, 0, len(fieldLabels))
	for f := range fieldLabels {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// FieldLabels returns a copy of the field name to display label table.
func FieldLabels() map[string]string {
	out := make(map[string]string, len(fieldLabels))
	for f, label := range fieldLabels {
		out[string(f)] = label
	}
	return out
}
