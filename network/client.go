package network

import (
	"context"
	"fmt"
	"net"
	"time"

	"wristrelay/crypto"
)

// Dial connects to a peer, performs the handshake, and returns a ready PeerConnection.
func Dial(ctx context.Context, address string, options HandshakeOptions) (*PeerConnection, error) {
	opts := options.withDefaults()
	if err := opts.validateIdentity(); err != nil {
		return nil, err
	}

	dialer := net.Dialer{Timeout: opts.ConnectionTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", address)
	if err != nil {
		return nil, fmt.Errorf("dial %q: %w", address, err)
	}

	pc, err := clientHandshake(conn, opts)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	return pc, nil
}

func clientHandshake(conn net.Conn, opts HandshakeOptions) (*PeerConnection, error) {
	if err := conn.SetDeadline(time.Now().Add(opts.ConnectionTimeout)); err != nil {
		return nil, fmt.Errorf("set handshake deadline: %w", err)
	}

	localEphemeralPrivateKey, localEphemeralPublicKey, err := crypto.GenerateEphemeralX25519KeyPair()
	if err != nil {
		return nil, err
	}

	handshake, err := buildHandshakeMessage(opts.Identity, localEphemeralPublicKey.Bytes())
	if err != nil {
		return nil, err
	}
	payload, err := EncodeJSON(handshake)
	if err != nil {
		return nil, err
	}
	if err := WriteFrame(conn, payload); err != nil {
		return nil, fmt.Errorf("send handshake: %w", err)
	}

	responsePayload, err := ReadFrameWithTimeout(conn, opts.ConnectionTimeout)
	if err != nil {
		return nil, fmt.Errorf("read handshake response: %w", err)
	}

	msgType, err := DecodeMessageType(responsePayload)
	if err != nil {
		return nil, err
	}
	if msgType == TypeError {
		return nil, decodeRemoteError(responsePayload)
	}
	if msgType != TypeHandshakeResponse {
		return nil, fmt.Errorf("expected %q, got %q", TypeHandshakeResponse, msgType)
	}

	response, err := decodeHandshakeResponse(responsePayload)
	if err != nil {
		return nil, err
	}
	if response.ProtocolVersion != ProtocolVersion {
		return nil, ErrUnsupportedVersion
	}
	if response.DeviceID == "" {
		return nil, fmt.Errorf("handshake response is missing device_id")
	}

	sessionKey, err := deriveSessionKey(localEphemeralPrivateKey, response.X25519PublicKey, opts.Identity.DeviceID, response.DeviceID, handshake.Salt)
	if err != nil {
		return nil, err
	}

	if err := conn.SetDeadline(time.Time{}); err != nil {
		return nil, fmt.Errorf("clear handshake deadline: %w", err)
	}

	return newPeerConnection(conn, sessionKey, opts.connectionOptions(response.DeviceID, response.DeviceName)), nil
}
