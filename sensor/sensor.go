package sensor

import "time"

// Kind identifies a physical sensor type.
type Kind string

const (
	KindHeartRate Kind = "heart_rate"
	KindLight     Kind = "light"
)

// Delay is the requested sampling rate for a listener registration.
type Delay int

const (
	// DelayUI suits values shown live to the operator.
	DelayUI Delay = iota
	// DelayNormal suits slowly changing values.
	DelayNormal
)

// Duration returns the nominal sampling period of d.
func (d Delay) Duration() time.Duration {
	switch d {
	case DelayUI:
		return 66 * time.Millisecond
	default:
		return 200 * time.Millisecond
	}
}

func (d Delay) String() string {
	switch d {
	case DelayUI:
		return "ui"
	case DelayNormal:
		return "normal"
	default:
		return "unknown"
	}
}

// Sample is one reading pushed by the sensor platform.
type Sample struct {
	Kind      Kind
	Values    []float32
	Timestamp time.Time
}

// Sensor is a handle to one physical sensor.
type Sensor interface {
	Kind() Kind
	Name() string
}

// Listener receives samples for the sensors it is registered on.
type Listener interface {
	OnSensorChanged(sample Sample)
}

// Manager is the platform sensor subscription API.
type Manager interface {
	DefaultSensor(kind Kind) (Sensor, bool)
	RegisterListener(listener Listener, sensor Sensor, delay Delay) bool
	UnregisterListener(listener Listener)
}
