package sensor

import (
	"errors"
	"fmt"

	"wristrelay/models"
)

// ErrReadingIncomplete is returned when a reading lacks either value.
var ErrReadingIncomplete = errors.New("sensor: reading incomplete")

// FormatMessage renders the wire text for a complete reading. The handheld
// relays it verbatim, so the spacing is part of the format.
func FormatMessage(reading models.SensorReading) (string, error) {
	if !reading.Complete() {
		return "", ErrReadingIncomplete
	}
	return fmt.Sprintf(" Ritmo: %d bpm |  Luz: %d lx", *reading.HeartRateBPM, *reading.LightLevelLux), nil
}
