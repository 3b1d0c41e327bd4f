package network

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"

	"wristrelay/crypto"
	"wristrelay/models"
)

var (
	// ErrNoActivePeer is returned when a send targets an empty node ID.
	ErrNoActivePeer = errors.New("network: no active peer")
	// ErrUnknownNode is returned when no dial address is known for a node.
	ErrUnknownNode = errors.New("network: unknown node")
	// ErrPeerMismatch is returned when the dialed endpoint answers with another device ID.
	ErrPeerMismatch = errors.New("network: peer identity mismatch")
	// ErrClientStopped is returned for operations after Stop.
	ErrClientStopped = errors.New("network: message client stopped")
	// ErrAckTimeout is returned when the peer never confirms a message.
	ErrAckTimeout = errors.New("network: ack timeout")
)

// AddressResolver maps a node ID to its current host:port.
type AddressResolver interface {
	AddressOf(nodeID string) (string, bool)
}

// AddressResolverFunc adapts a function to AddressResolver.
type AddressResolverFunc func(nodeID string) (string, bool)

// AddressOf calls f(nodeID).
func (f AddressResolverFunc) AddressOf(nodeID string) (string, bool) {
	return f(nodeID)
}

// Resolvers tries each resolver in order and returns the first address found.
type Resolvers []AddressResolver

// AddressOf implements AddressResolver.
func (rs Resolvers) AddressOf(nodeID string) (string, bool) {
	for _, r := range rs {
		if r == nil {
			continue
		}
		if address, ok := r.AddressOf(nodeID); ok {
			return address, true
		}
	}
	return "", false
}

// MessageListener receives inbound messages.
type MessageListener interface {
	OnMessageReceived(event models.MessageEvent)
}

// MessageListenerFunc adapts a function to MessageListener.
type MessageListenerFunc func(event models.MessageEvent)

// OnMessageReceived calls f(event).
func (f MessageListenerFunc) OnMessageReceived(event models.MessageEvent) {
	f(event)
}

// MessageClientOptions configures a MessageClient.
type MessageClientOptions struct {
	Identity      LocalIdentity
	ListenAddress string
	Resolver      AddressResolver
	Logger        *slog.Logger
	AckTimeout    time.Duration
	Handshake     HandshakeOptions
}

// MessageClient sends path-tagged messages to peer nodes and dispatches the
// ones it receives to registered listeners.
type MessageClient struct {
	opts      MessageClientOptions
	handshake HandshakeOptions
	logger    *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	server *Server
	wg     sync.WaitGroup

	dialMu  sync.Mutex
	connsMu sync.Mutex
	conns   map[string]*PeerConnection

	listenersMu    sync.RWMutex
	listeners      map[uint64]MessageListener
	nextListenerID uint64

	pendingMu sync.Mutex
	pending   map[string]chan error
}

// NewMessageClient validates options and returns a stopped client.
func NewMessageClient(options MessageClientOptions) (*MessageClient, error) {
	handshake := options.Handshake
	handshake.Identity = options.Identity
	handshake = handshake.withDefaults()
	if err := handshake.validateIdentity(); err != nil {
		return nil, err
	}
	if options.Resolver == nil {
		return nil, errors.New("address resolver is required")
	}
	if options.AckTimeout <= 0 {
		options.AckTimeout = DefaultAckTimeout
	}
	logger := options.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &MessageClient{
		opts:      options,
		handshake: handshake,
		logger:    logger.With("component", "transport"),
		conns:     make(map[string]*PeerConnection),
		listeners: make(map[uint64]MessageListener),
		pending:   make(map[string]chan error),
	}, nil
}

// Start opens the listening socket and begins accepting peer sessions.
func (c *MessageClient) Start(ctx context.Context) error {
	server, err := Listen(c.opts.ListenAddress, c.handshake)
	if err != nil {
		return err
	}

	c.ctx, c.cancel = context.WithCancel(ctx)
	c.server = server

	c.wg.Add(2)
	go c.acceptLoop()
	go c.serverErrorLoop()

	c.logger.Info("transport listening", "addr", server.Addr().String())
	return nil
}

// Stop closes the listener and every open peer session.
func (c *MessageClient) Stop() {
	if c.cancel == nil {
		return
	}
	c.connsMu.Lock()
	conns := make([]*PeerConnection, 0, len(c.conns))
	for _, conn := range c.conns {
		conns = append(conns, conn)
	}
	c.connsMu.Unlock()

	for _, conn := range conns {
		_ = conn.Disconnect()
	}

	c.cancel()
	_ = c.server.Close()
	c.wg.Wait()
}

// Addr returns the listening address, or nil before Start.
func (c *MessageClient) Addr() net.Addr {
	if c.server == nil {
		return nil
	}
	return c.server.Addr()
}

// AddListener registers a listener and returns a function that removes it.
func (c *MessageClient) AddListener(listener MessageListener) func() {
	c.listenersMu.Lock()
	id := c.nextListenerID
	c.nextListenerID++
	c.listeners[id] = listener
	c.listenersMu.Unlock()

	return func() {
		c.listenersMu.Lock()
		delete(c.listeners, id)
		c.listenersMu.Unlock()
	}
}

// SendMessage delivers data on path to nodeID and waits for the peer's ack.
func (c *MessageClient) SendMessage(ctx context.Context, nodeID, path string, data []byte) error {
	if nodeID == "" {
		return ErrNoActivePeer
	}
	if c.ctx == nil || c.ctx.Err() != nil {
		return ErrClientStopped
	}

	conn, err := c.connectionFor(ctx, nodeID)
	if err != nil {
		return err
	}

	ciphertext, nonce, err := crypto.Encrypt(conn.SessionKey(), data, []byte(path))
	if err != nil {
		return err
	}

	messageID := uuid.NewString()
	waiter := c.registerPending(messageID)
	defer c.dropPending(messageID)

	if err := conn.SendMessage(DataMessage{
		Type:          TypeMessage,
		MessageID:     messageID,
		FromDeviceID:  c.opts.Identity.DeviceID,
		Path:          path,
		EncryptedData: base64.StdEncoding.EncodeToString(ciphertext),
		Nonce:         base64.StdEncoding.EncodeToString(nonce),
		Timestamp:     time.Now().UnixMilli(),
	}); err != nil {
		return fmt.Errorf("send message to %s: %w", nodeID, err)
	}

	timer := time.NewTimer(c.opts.AckTimeout)
	defer timer.Stop()

	select {
	case err := <-waiter:
		return err
	case <-conn.Done():
		if err := conn.LastError(); err != nil {
			return fmt.Errorf("connection to %s closed: %w", nodeID, err)
		}
		return fmt.Errorf("connection to %s closed: %w", nodeID, io.EOF)
	case <-timer.C:
		return ErrAckTimeout
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *MessageClient) connectionFor(ctx context.Context, nodeID string) (*PeerConnection, error) {
	if conn := c.liveConnection(nodeID); conn != nil {
		return conn, nil
	}

	c.dialMu.Lock()
	defer c.dialMu.Unlock()

	if conn := c.liveConnection(nodeID); conn != nil {
		return conn, nil
	}

	address, ok := c.opts.Resolver.AddressOf(nodeID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownNode, nodeID)
	}

	conn, err := Dial(ctx, address, c.handshake)
	if err != nil {
		return nil, err
	}
	if conn.PeerDeviceID() != nodeID {
		_ = conn.Close()
		return nil, fmt.Errorf("%w: dialed %s, answered as %s", ErrPeerMismatch, nodeID, conn.PeerDeviceID())
	}

	c.logger.Info("peer session opened", "node_id", nodeID, "addr", address, "direction", "outbound")
	c.track(conn)
	return conn, nil
}

func (c *MessageClient) liveConnection(nodeID string) *PeerConnection {
	c.connsMu.Lock()
	defer c.connsMu.Unlock()
	conn := c.conns[nodeID]
	if conn == nil || conn.State() == StateDisconnected {
		return nil
	}
	return conn
}

func (c *MessageClient) track(conn *PeerConnection) {
	c.connsMu.Lock()
	previous := c.conns[conn.PeerDeviceID()]
	c.conns[conn.PeerDeviceID()] = conn
	c.connsMu.Unlock()

	if previous != nil && previous != conn {
		_ = previous.Close()
	}

	c.wg.Add(1)
	go c.connectionLoop(conn)
}

func (c *MessageClient) untrack(conn *PeerConnection) {
	c.connsMu.Lock()
	defer c.connsMu.Unlock()
	if c.conns[conn.PeerDeviceID()] == conn {
		delete(c.conns, conn.PeerDeviceID())
	}
}

func (c *MessageClient) acceptLoop() {
	defer c.wg.Done()
	for conn := range c.server.Incoming() {
		c.logger.Info("peer session opened", "node_id", conn.PeerDeviceID(), "addr", conn.RemoteAddr().String(), "direction", "inbound")
		c.track(conn)
	}
}

func (c *MessageClient) serverErrorLoop() {
	defer c.wg.Done()
	for err := range c.server.Errors() {
		c.logger.Warn("inbound session failed", "error", err)
	}
}

func (c *MessageClient) connectionLoop(conn *PeerConnection) {
	defer c.wg.Done()
	defer c.untrack(conn)
	defer conn.Close()

	for {
		payload, err := conn.ReceiveMessage(c.ctx)
		if err != nil {
			if c.ctx.Err() == nil && !errors.Is(err, io.EOF) {
				c.logger.Warn("peer session closed", "node_id", conn.PeerDeviceID(), "error", err)
			} else {
				c.logger.Debug("peer session closed", "node_id", conn.PeerDeviceID())
			}
			return
		}

		msgType, err := DecodeMessageType(payload)
		if err != nil {
			c.logger.Debug("dropping undecodable frame", "node_id", conn.PeerDeviceID(), "error", err)
			continue
		}

		switch msgType {
		case TypeMessage:
			c.handleDataMessage(conn, payload)
		case TypeAck:
			var ack AckMessage
			if err := json.Unmarshal(payload, &ack); err != nil {
				continue
			}
			c.resolvePending(ack.MessageID, nil)
		case TypeError:
			var msg ErrorMessage
			if err := json.Unmarshal(payload, &msg); err != nil {
				continue
			}
			c.resolvePending(msg.RelatedMessageID, &RemoteError{Code: msg.Code, Message: msg.Message})
		default:
			c.logger.Debug("ignoring frame", "node_id", conn.PeerDeviceID(), "type", msgType)
		}
	}
}

func (c *MessageClient) handleDataMessage(conn *PeerConnection, payload []byte) {
	var msg DataMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		c.logger.Warn("decode message frame", "node_id", conn.PeerDeviceID(), "error", err)
		return
	}

	data, err := openDataMessage(conn.SessionKey(), msg)
	if err != nil {
		c.logger.Warn("message rejected", "node_id", conn.PeerDeviceID(), "message_id", msg.MessageID, "error", err)
		_ = conn.SendMessage(ErrorMessage{
			Type:             TypeError,
			Code:             "decryption_failed",
			Message:          err.Error(),
			RelatedMessageID: msg.MessageID,
			Timestamp:        time.Now().UnixMilli(),
		})
		return
	}

	if err := conn.SendMessage(AckMessage{
		Type:         TypeAck,
		MessageID:    msg.MessageID,
		FromDeviceID: c.opts.Identity.DeviceID,
		Status:       AckStatusDelivered,
		Timestamp:    time.Now().UnixMilli(),
	}); err != nil {
		c.logger.Warn("ack failed", "node_id", conn.PeerDeviceID(), "message_id", msg.MessageID, "error", err)
	}

	event := models.MessageEvent{
		SourceNodeID: conn.PeerDeviceID(),
		Path:         msg.Path,
		Data:         data,
	}

	c.listenersMu.RLock()
	listeners := make([]MessageListener, 0, len(c.listeners))
	for _, listener := range c.listeners {
		listeners = append(listeners, listener)
	}
	c.listenersMu.RUnlock()

	for _, listener := range listeners {
		listener.OnMessageReceived(event)
	}
}

func openDataMessage(sessionKey []byte, msg DataMessage) ([]byte, error) {
	ciphertext, err := base64.StdEncoding.DecodeString(msg.EncryptedData)
	if err != nil {
		return nil, fmt.Errorf("decode encrypted data: %w", err)
	}
	nonce, err := base64.StdEncoding.DecodeString(msg.Nonce)
	if err != nil {
		return nil, fmt.Errorf("decode nonce: %w", err)
	}
	return crypto.Decrypt(sessionKey, nonce, ciphertext, []byte(msg.Path))
}

func (c *MessageClient) registerPending(messageID string) <-chan error {
	waiter := make(chan error, 1)
	c.pendingMu.Lock()
	c.pending[messageID] = waiter
	c.pendingMu.Unlock()
	return waiter
}

func (c *MessageClient) dropPending(messageID string) {
	c.pendingMu.Lock()
	delete(c.pending, messageID)
	c.pendingMu.Unlock()
}

func (c *MessageClient) resolvePending(messageID string, err error) {
	if messageID == "" {
		return
	}
	c.pendingMu.Lock()
	waiter, ok := c.pending[messageID]
	delete(c.pending, messageID)
	c.pendingMu.Unlock()

	if ok {
		waiter <- err
	}
}
