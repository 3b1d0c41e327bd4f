package handheld

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"wristrelay/discovery"
	"wristrelay/models"
	"wristrelay/network"
	"wristrelay/relay"
	"wristrelay/session"
)

// Operator-facing texts.
const (
	TextAlreadyConnected = "Already connected to the watch"
	TextConnected        = "Connected to the watch"
	TextNoWatch          = "No watch found"
	TextConnectFailed    = "Error connecting to the watch"
)

// Subscriber registers transport listeners.
type Subscriber interface {
	AddListener(listener network.MessageListener) func()
}

// MessageHandler consumes one inbound message.
type MessageHandler interface {
	HandleMessage(event models.MessageEvent)
}

// Options wires an App.
type Options struct {
	Nodes     discovery.NodeLister
	Messages  Subscriber
	Forwarder *relay.Forwarder
	Relay     MessageHandler
	Session   *session.Session
	Logger    *slog.Logger
	// OnSensorData, if set, sees every sensor message before it is relayed.
	OnSensorData func(text string)
}

// App is the handheld controller: it finds the watch and relays what it sends.
type App struct {
	nodes     discovery.NodeLister
	messages  Subscriber
	forwarder *relay.Forwarder
	relay     MessageHandler
	session   *session.Session
	logger    *slog.Logger
	onData    func(text string)

	mu          sync.Mutex
	unsubscribe func()
}

// New returns an App and routes sensor messages on the forwarder to the relay.
func New(opts Options) *App {
	if opts.Session == nil {
		opts.Session = session.New()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Forwarder == nil {
		opts.Forwarder = relay.NewForwarder(opts.Logger)
	}

	a := &App{
		nodes:     opts.Nodes,
		messages:  opts.Messages,
		forwarder: opts.Forwarder,
		relay:     opts.Relay,
		session:   opts.Session,
		logger:    opts.Logger.With("component", "handheld"),
		onData:    opts.OnSensorData,
	}
	a.forwarder.Handle(models.PathSensorData, a.handleSensorData)
	return a
}

// Session returns the connection state shared with the operator surface.
func (a *App) Session() *session.Session {
	return a.session
}

// Resume subscribes to inbound messages.
func (a *App) Resume() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.unsubscribe != nil || a.messages == nil {
		return
	}
	a.unsubscribe = a.messages.AddListener(a)
	a.logger.Debug("message listener registered")
}

// Pause unsubscribes from inbound messages.
func (a *App) Pause() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.unsubscribe == nil {
		return
	}
	a.unsubscribe()
	a.unsubscribe = nil
	a.logger.Debug("message listener removed")
}

// Connect looks for a watch unless one is already adopted.
func (a *App) Connect(ctx context.Context) models.Notice {
	if a.session.Connected() {
		return models.InfoNotice(TextAlreadyConnected)
	}

	peer, err := discovery.FirstConnected(ctx, a.nodes)
	switch {
	case errors.Is(err, discovery.ErrNoPeerFound):
		a.session.MarkDisconnected()
		return models.WarningNotice(TextNoWatch)
	case err != nil:
		a.logger.Error("connect failed", "error", err)
		return models.ErrorNotice(TextConnectFailed)
	}

	a.session.Adopt(peer)
	a.logger.Info("connected to watch", "node_id", peer.ID, "name", peer.DisplayName)
	notice := models.InfoNotice(TextConnected)
	notice.Detail = fmt.Sprintf("Watch: %s\n ID: %s", peer.DisplayName, peer.ID)
	return notice
}

// OnMessageReceived logs the message and hands it to the forwarder.
func (a *App) OnMessageReceived(event models.MessageEvent) {
	a.logger.Debug("message received", "node_id", event.SourceNodeID, "path", event.Path)
	a.forwarder.OnMessageReceived(event)
}

func (a *App) handleSensorData(event models.MessageEvent) {
	text := string(event.Data)
	a.logger.Info("sensor data", "node_id", event.SourceNodeID, "message", text)
	if a.onData != nil {
		a.onData(text)
	}
	if a.relay != nil {
		a.relay.HandleMessage(event)
	}
}
