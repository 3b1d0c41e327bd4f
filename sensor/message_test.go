package sensor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wristrelay/models"
)

func intPtr(v int) *int { return &v }

func TestFormatMessage(t *testing.T) {
	text, err := FormatMessage(models.SensorReading{HeartRateBPM: intPtr(72), LightLevelLux: intPtr(300)})
	require.NoError(t, err)
	assert.Equal(t, " Ritmo: 72 bpm |  Luz: 300 lx", text)

	text, err = FormatMessage(models.SensorReading{HeartRateBPM: intPtr(1), LightLevelLux: intPtr(0)})
	require.NoError(t, err)
	assert.Equal(t, " Ritmo: 1 bpm |  Luz: 0 lx", text)
}

func TestFormatMessageRequiresBothValues(t *testing.T) {
	_, err := FormatMessage(models.SensorReading{HeartRateBPM: intPtr(72)})
	assert.ErrorIs(t, err, ErrReadingIncomplete)

	_, err = FormatMessage(models.SensorReading{LightLevelLux: intPtr(300)})
	assert.ErrorIs(t, err, ErrReadingIncomplete)
}
