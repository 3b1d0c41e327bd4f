package ui

import (
	"context"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wristrelay/models"
	"wristrelay/relay"
	"wristrelay/sensor"
)

type stubWearable struct {
	connect models.Notice
	send    models.Notice
	reading models.SensorReading
}

func (s *stubWearable) Connect(context.Context) models.Notice { return s.connect }
func (s *stubWearable) Send(context.Context) models.Notice    { return s.send }
func (s *stubWearable) Reading() models.SensorReading         { return s.reading }

type stubHandheld struct {
	notice models.Notice
}

func (s *stubHandheld) Connect(context.Context) models.Notice { return s.notice }

type capturingSender struct {
	msgs []tea.Msg
}

func (c *capturingSender) Send(msg tea.Msg) { c.msgs = append(c.msgs, msg) }

func key(r rune) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}}
}

func intPtr(v int) *int { return &v }

func TestWearableQuit(t *testing.T) {
	model := NewWearableModel(context.Background(), &stubWearable{}, "Watch", sensor.Availability{HeartRate: true, Light: true})

	_, cmd := model.Update(key('q'))
	require.NotNil(t, cmd)
	_, isQuit := cmd().(tea.QuitMsg)
	assert.True(t, isQuit)
}

func TestWearableSendShowsNotice(t *testing.T) {
	app := &stubWearable{send: models.WarningNotice("Connect to the phone first")}
	model := NewWearableModel(context.Background(), app, "Watch", sensor.Availability{HeartRate: true, Light: true})

	next, cmd := model.Update(key('s'))
	require.NotNil(t, cmd)
	assert.Contains(t, next.View(), "Sending...")

	next, _ = next.Update(cmd())
	assert.Contains(t, next.View(), "Connect to the phone first")
}

func TestWearableConnectRunsController(t *testing.T) {
	app := &stubWearable{connect: models.InfoNotice("Connected to the phone")}
	model := NewWearableModel(context.Background(), app, "Watch", sensor.Availability{HeartRate: true, Light: true})

	_, cmd := model.Update(key('c'))
	require.NotNil(t, cmd)
	msg, ok := cmd().(NoticeMsg)
	require.True(t, ok)
	assert.Equal(t, "Connected to the phone", msg.Notice.Text)
}

func TestWearableReadingLines(t *testing.T) {
	model := NewWearableModel(context.Background(), &stubWearable{}, "Watch", sensor.Availability{HeartRate: true, Light: true})
	view := model.View()
	assert.Contains(t, view, "Heart rate: -- bpm")
	assert.Contains(t, view, "Light: -- lx")

	next, _ := model.Update(ReadingMsg{Reading: models.SensorReading{HeartRateBPM: intPtr(72), LightLevelLux: intPtr(300)}})
	view = next.View()
	assert.Contains(t, view, "Heart rate: 72 bpm")
	assert.Contains(t, view, "Ambient light: 300 lx")
}

func TestWearableMissingSensor(t *testing.T) {
	model := NewWearableModel(context.Background(), &stubWearable{}, "Watch", sensor.Availability{HeartRate: true})
	assert.Contains(t, model.View(), "Light sensor not available")
}

func TestHandheldConnectDetails(t *testing.T) {
	app := &stubHandheld{notice: models.Notice{Level: models.NoticeInfo, Text: "Connected to the watch", Detail: "Watch: Pixel\n ID: w-1"}}
	model := NewHandheldModel(context.Background(), app, "Phone")

	_, cmd := model.Update(key('c'))
	require.NotNil(t, cmd)
	next, _ := model.Update(cmd())
	view := next.View()
	assert.Contains(t, view, "Connected to the watch")
	assert.Contains(t, view, "Watch: Pixel")

	next, _ = next.Update(NoticeMsg{Notice: models.InfoNotice("Already connected to the watch")})
	assert.Contains(t, next.View(), "Watch: Pixel")

	next, _ = next.Update(NoticeMsg{Notice: models.WarningNotice("No watch found")})
	assert.NotContains(t, next.View(), "Watch: Pixel")
}

func TestHandheldDataAndRelay(t *testing.T) {
	model := NewHandheldModel(context.Background(), &stubHandheld{}, "Phone")

	next, _ := model.Update(DataMsg{Text: " Ritmo: 72 bpm |  Luz: 300 lx"})
	assert.Contains(t, next.View(), "Ritmo: 72 bpm")

	next, _ = next.Update(RelayMsg{Result: relay.Result{State: relay.StateDelivered, Text: "saved"}})
	assert.Contains(t, next.View(), "Sent to the server:")
	assert.Contains(t, next.View(), "saved")

	next, _ = next.Update(RelayMsg{Result: relay.Result{State: relay.StateFailed, Text: relay.SendFailedText}})
	assert.Contains(t, next.View(), relay.SendFailedText)
}

func TestBridgeDropsUntilProgramSet(t *testing.T) {
	var bridge Bridge
	sender := &capturingSender{}

	bridge.OnSensorData("early")
	bridge.SetProgram(sender)
	bridge.OnSensorData("late")
	bridge.OnRelayResult(relay.Result{State: relay.StateDelivered})
	bridge.OnReading(models.SensorReading{})

	require.Len(t, sender.msgs, 3)
	assert.Equal(t, DataMsg{Text: "late"}, sender.msgs[0])
	_, ok := sender.msgs[1].(RelayMsg)
	assert.True(t, ok)
	_, ok = sender.msgs[2].(ReadingMsg)
	assert.True(t, ok)
}

func TestViewsRenderHelp(t *testing.T) {
	w := NewWearableModel(context.Background(), &stubWearable{}, "Watch", sensor.Availability{})
	h := NewHandheldModel(context.Background(), &stubHandheld{}, "Phone")
	assert.True(t, strings.Contains(w.View(), "s send"))
	assert.True(t, strings.Contains(h.View(), "c connect"))
}
