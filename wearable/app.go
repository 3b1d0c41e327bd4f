package wearable

import (
	"context"
	"errors"
	"log/slog"

	"wristrelay/discovery"
	"wristrelay/models"
	"wristrelay/sensor"
	"wristrelay/session"
)

// Operator-facing texts.
const (
	TextConnected        = "Connected to the phone"
	TextNoPhones         = "No phones connected"
	TextConnectFailed    = "Error connecting to the phone"
	TextConnectFirst     = "Connect to the phone first"
	TextWaitingForSensor = "Waiting for sensor data..."
	TextNoConnection     = "No connection with the phone"
	TextSent             = "Data sent to the phone"
	TextSendFailed       = "Error sending"
)

// MessageSender delivers one message to a peer node.
type MessageSender interface {
	SendMessage(ctx context.Context, nodeID, path string, data []byte) error
}

// ReadingSource exposes the latest sensor values and the sensor lifecycle.
type ReadingSource interface {
	Reading() models.SensorReading
	Resume()
	Pause()
}

// Options wires an App.
type Options struct {
	Nodes   discovery.NodeLister
	Sender  MessageSender
	Sensors ReadingSource
	Session *session.Session
	Logger  *slog.Logger
}

// App is the wearable controller: it connects to a handheld and sends it the
// current reading on request.
type App struct {
	nodes   discovery.NodeLister
	sender  MessageSender
	sensors ReadingSource
	session *session.Session
	logger  *slog.Logger
}

// New returns an App. A nil Session gets a fresh one.
func New(opts Options) *App {
	if opts.Session == nil {
		opts.Session = session.New()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &App{
		nodes:   opts.Nodes,
		sender:  opts.Sender,
		sensors: opts.Sensors,
		session: opts.Session,
		logger:  opts.Logger.With("component", "wearable"),
	}
}

// Session returns the connection state shared with the operator surface.
func (a *App) Session() *session.Session {
	return a.session
}

// Resume starts sensor updates.
func (a *App) Resume() {
	a.sensors.Resume()
}

// Pause stops sensor updates.
func (a *App) Pause() {
	a.sensors.Pause()
}

// Reading returns the latest sensor values.
func (a *App) Reading() models.SensorReading {
	return a.sensors.Reading()
}

// Connect looks for a handheld and adopts the first one found. An empty
// result leaves the session as it was.
func (a *App) Connect(ctx context.Context) models.Notice {
	a.logger.Debug("looking for a phone")

	peer, err := discovery.FirstConnected(ctx, a.nodes)
	switch {
	case errors.Is(err, discovery.ErrNoPeerFound):
		return models.WarningNotice(TextNoPhones)
	case err != nil:
		a.logger.Error("connect failed", "error", err)
		return models.ErrorNotice(TextConnectFailed)
	}

	a.session.Adopt(peer)
	a.logger.Info("connected to phone", "node_id", peer.ID, "name", peer.DisplayName)
	return models.InfoNotice(TextConnected)
}

// Send delivers the current reading to the adopted handheld.
func (a *App) Send(ctx context.Context) models.Notice {
	if !a.session.Connected() {
		return models.WarningNotice(TextConnectFirst)
	}

	message, err := sensor.FormatMessage(a.sensors.Reading())
	if err != nil {
		return models.WarningNotice(TextWaitingForSensor)
	}

	peer, _ := a.session.Peer()
	if peer.ID == "" {
		return models.WarningNotice(TextNoConnection)
	}

	a.logger.Info("sending reading", "node_id", peer.ID, "path", models.PathSensorData, "message", message)
	if err := a.sender.SendMessage(ctx, peer.ID, models.PathSensorData, []byte(message)); err != nil {
		a.logger.Error("send failed", "node_id", peer.ID, "error", err)
		return models.ErrorNotice(TextSendFailed)
	}
	return models.InfoNotice(TextSent)
}
