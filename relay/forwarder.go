package relay

import (
	"log/slog"
	"sync"

	"wristrelay/models"
)

// HandlerFunc processes a message arriving on one path.
type HandlerFunc func(event models.MessageEvent)

// Forwarder routes inbound messages to the handler registered for their exact path.
type Forwarder struct {
	logger *slog.Logger

	mu       sync.RWMutex
	handlers map[string]HandlerFunc
}

// NewForwarder returns a Forwarder with no routes.
func NewForwarder(logger *slog.Logger) *Forwarder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Forwarder{
		logger:   logger.With("component", "forwarder"),
		handlers: make(map[string]HandlerFunc),
	}
}

// Handle registers h for path, replacing any earlier handler.
func (f *Forwarder) Handle(path string, h HandlerFunc) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handlers[path] = h
}

// OnMessageReceived dispatches event. Messages on unregistered paths are dropped.
func (f *Forwarder) OnMessageReceived(event models.MessageEvent) {
	f.mu.RLock()
	h, ok := f.handlers[event.Path]
	f.mu.RUnlock()

	if !ok {
		f.logger.Warn("no handler for path", "path", event.Path, "node_id", event.SourceNodeID)
		return
	}
	h(event)
}
