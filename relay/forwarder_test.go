package relay

import (
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wristrelay/models"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestForwarderRoutesByExactPath(t *testing.T) {
	forwarder := NewForwarder(quietLogger())

	var got []models.MessageEvent
	forwarder.Handle(models.PathSensorData, func(event models.MessageEvent) {
		got = append(got, event)
	})

	forwarder.OnMessageReceived(models.MessageEvent{SourceNodeID: "w", Path: models.PathSensorData, Data: []byte("a")})
	forwarder.OnMessageReceived(models.MessageEvent{SourceNodeID: "w", Path: "/sensor_data", Data: []byte("b")})
	forwarder.OnMessageReceived(models.MessageEvent{SourceNodeID: "w", Path: "/OTHER", Data: []byte("c")})

	require.Len(t, got, 1)
	assert.Equal(t, "a", string(got[0].Data))
}

func TestForwarderWithoutHandlers(t *testing.T) {
	forwarder := NewForwarder(quietLogger())
	assert.NotPanics(t, func() {
		forwarder.OnMessageReceived(models.MessageEvent{Path: models.PathSensorData})
	})
}
