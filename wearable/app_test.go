package wearable

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wristrelay/models"
	"wristrelay/session"
)

type fakeLister struct {
	nodes []models.PeerNode
	err   error
	calls int
}

func (f *fakeLister) ConnectedNodes(context.Context) ([]models.PeerNode, error) {
	f.calls++
	return f.nodes, f.err
}

type sentMessage struct {
	nodeID string
	path   string
	data   string
}

type fakeSender struct {
	sent []sentMessage
	err  error
}

func (f *fakeSender) SendMessage(_ context.Context, nodeID, path string, data []byte) error {
	f.sent = append(f.sent, sentMessage{nodeID: nodeID, path: path, data: string(data)})
	return f.err
}

type fakeSensors struct {
	reading models.SensorReading
	resumed int
	paused  int
}

func (f *fakeSensors) Reading() models.SensorReading { return f.reading.Clone() }
func (f *fakeSensors) Resume()                       { f.resumed++ }
func (f *fakeSensors) Pause()                        { f.paused++ }

func intPtr(v int) *int { return &v }

func completeReading() models.SensorReading {
	return models.SensorReading{HeartRateBPM: intPtr(72), LightLevelLux: intPtr(300)}
}

type fixture struct {
	app     *App
	lister  *fakeLister
	sender  *fakeSender
	sensors *fakeSensors
}

func newFixture() fixture {
	f := fixture{
		lister:  &fakeLister{},
		sender:  &fakeSender{},
		sensors: &fakeSensors{},
	}
	f.app = New(Options{
		Nodes:   f.lister,
		Sender:  f.sender,
		Sensors: f.sensors,
		Logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	return f
}

func TestConnectAdoptsFirstNode(t *testing.T) {
	f := newFixture()
	f.lister.nodes = []models.PeerNode{{ID: "phone-1", DisplayName: "Pixel"}, {ID: "phone-2"}}

	notice := f.app.Connect(context.Background())

	assert.Equal(t, models.InfoNotice(TextConnected), notice)
	assert.True(t, f.app.Session().Connected())
	peer, ok := f.app.Session().Peer()
	require.True(t, ok)
	assert.Equal(t, "phone-1", peer.ID)
}

func TestConnectWithNoNodesLeavesSessionUnset(t *testing.T) {
	f := newFixture()

	notice := f.app.Connect(context.Background())

	assert.Equal(t, TextNoPhones, notice.Text)
	assert.False(t, f.app.Session().Connected())
	_, ok := f.app.Session().Peer()
	assert.False(t, ok)
}

func TestConnectFailure(t *testing.T) {
	f := newFixture()
	f.lister.err = errors.New("mdns down")

	notice := f.app.Connect(context.Background())

	assert.Equal(t, models.ErrorNotice(TextConnectFailed), notice)
	assert.False(t, f.app.Session().Connected())
}

func TestSendRequiresConnection(t *testing.T) {
	f := newFixture()
	f.sensors.reading = completeReading()

	notice := f.app.Send(context.Background())

	assert.Equal(t, TextConnectFirst, notice.Text)
	assert.Empty(t, f.sender.sent)
}

func TestSendRequiresBothReadings(t *testing.T) {
	f := newFixture()
	f.app.Session().Adopt(models.PeerNode{ID: "phone-1"})

	for _, reading := range []models.SensorReading{
		{},
		{HeartRateBPM: intPtr(72)},
		{LightLevelLux: intPtr(300)},
	} {
		f.sensors.reading = reading
		assert.Equal(t, TextWaitingForSensor, f.app.Send(context.Background()).Text)
	}
	assert.Empty(t, f.sender.sent)
}

func TestSendChecksConnectionBeforeReadings(t *testing.T) {
	f := newFixture()

	assert.Equal(t, TextConnectFirst, f.app.Send(context.Background()).Text)
}

func TestSendRequiresPeerID(t *testing.T) {
	f := newFixture()
	f.sensors.reading = completeReading()
	f.app.Session().Adopt(models.PeerNode{DisplayName: "anonymous"})

	assert.Equal(t, TextNoConnection, f.app.Send(context.Background()).Text)
	assert.Empty(t, f.sender.sent)
}

func TestSendDeliversFormattedReading(t *testing.T) {
	f := newFixture()
	f.sensors.reading = completeReading()
	f.app.Session().Adopt(models.PeerNode{ID: "phone-1"})

	notice := f.app.Send(context.Background())

	assert.Equal(t, models.InfoNotice(TextSent), notice)
	require.Len(t, f.sender.sent, 1)
	assert.Equal(t, sentMessage{
		nodeID: "phone-1",
		path:   "/SENSOR_DATA",
		data:   " Ritmo: 72 bpm |  Luz: 300 lx",
	}, f.sender.sent[0])
}

func TestSendFailure(t *testing.T) {
	f := newFixture()
	f.sensors.reading = completeReading()
	f.sender.err = errors.New("ack timeout")
	f.app.Session().Adopt(models.PeerNode{ID: "phone-1"})

	notice := f.app.Send(context.Background())

	assert.Equal(t, models.ErrorNotice(TextSendFailed), notice)
	assert.True(t, f.app.Session().Connected(), "a failed send does not disconnect")
}

func TestLifecycleForwardsToSensors(t *testing.T) {
	f := newFixture()
	f.app.Resume()
	f.app.Pause()
	assert.Equal(t, 1, f.sensors.resumed)
	assert.Equal(t, 1, f.sensors.paused)
}

func TestNewCreatesSession(t *testing.T) {
	s := session.New()
	app := New(Options{Session: s, Sensors: &fakeSensors{}})
	assert.Same(t, s, app.Session())
}
