package network

import (
	"crypto/ecdh"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"wristrelay/crypto"
)

const handshakeSaltSize = 32

// HandshakeOptions configures the link handshake and connection behavior.
type HandshakeOptions struct {
	Identity LocalIdentity

	ConnectionTimeout time.Duration
	KeepAliveInterval time.Duration
	KeepAliveTimeout  time.Duration
	FrameReadTimeout  time.Duration
	AutoRespondPing   *bool
}

func (o HandshakeOptions) withDefaults() HandshakeOptions {
	out := o
	if out.ConnectionTimeout <= 0 {
		out.ConnectionTimeout = DefaultConnectionTimeout
	}
	if out.KeepAliveInterval <= 0 {
		out.KeepAliveInterval = DefaultKeepAliveInterval
	}
	if out.KeepAliveTimeout <= 0 {
		out.KeepAliveTimeout = DefaultKeepAliveTimeout
	}
	if out.FrameReadTimeout <= 0 {
		out.FrameReadTimeout = DefaultFrameReadTimeout
	}
	return out
}

func (o HandshakeOptions) validateIdentity() error {
	if o.Identity.DeviceID == "" {
		return errors.New("local device ID is required")
	}
	if o.Identity.DeviceName == "" {
		return errors.New("local device name is required")
	}
	return nil
}

func (o HandshakeOptions) autoRespondPingEnabled() bool {
	if o.AutoRespondPing == nil {
		return true
	}
	return *o.AutoRespondPing
}

func (o HandshakeOptions) connectionOptions(peerDeviceID, peerDeviceName string) ConnectionOptions {
	return ConnectionOptions{
		LocalDeviceID:     o.Identity.DeviceID,
		PeerDeviceID:      peerDeviceID,
		PeerDeviceName:    peerDeviceName,
		KeepAliveInterval: o.KeepAliveInterval,
		KeepAliveTimeout:  o.KeepAliveTimeout,
		FrameReadTimeout:  o.FrameReadTimeout,
		AutoRespondPing:   o.autoRespondPingEnabled(),
	}
}

func buildHandshakeMessage(identity LocalIdentity, ephemeralPublicKey []byte) (HandshakeMessage, error) {
	salt := make([]byte, handshakeSaltSize)
	if _, err := rand.Read(salt); err != nil {
		return HandshakeMessage{}, fmt.Errorf("generate handshake salt: %w", err)
	}

	return HandshakeMessage{
		Type:            TypeHandshake,
		DeviceID:        identity.DeviceID,
		DeviceName:      identity.DeviceName,
		X25519PublicKey: base64.StdEncoding.EncodeToString(ephemeralPublicKey),
		Salt:            base64.StdEncoding.EncodeToString(salt),
		ProtocolVersion: ProtocolVersion,
		Timestamp:       time.Now().UnixMilli(),
	}, nil
}

func buildHandshakeResponse(identity LocalIdentity, ephemeralPublicKey []byte) HandshakeResponse {
	return HandshakeResponse{
		Type:            TypeHandshakeResponse,
		DeviceID:        identity.DeviceID,
		DeviceName:      identity.DeviceName,
		X25519PublicKey: base64.StdEncoding.EncodeToString(ephemeralPublicKey),
		ProtocolVersion: ProtocolVersion,
		Timestamp:       time.Now().UnixMilli(),
	}
}

func deriveSessionKey(localEphemeralPrivateKey *ecdh.PrivateKey, peerX25519PublicKeyBase64, localDeviceID, peerDeviceID, saltBase64 string) ([]byte, error) {
	peerPublicRaw, err := base64.StdEncoding.DecodeString(peerX25519PublicKeyBase64)
	if err != nil {
		return nil, fmt.Errorf("decode peer ephemeral public key: %w", err)
	}
	peerPublicKey, err := crypto.ParseX25519PublicKey(peerPublicRaw)
	if err != nil {
		return nil, err
	}

	sharedSecret, err := crypto.ComputeX25519SharedSecret(localEphemeralPrivateKey, peerPublicKey)
	if err != nil {
		return nil, err
	}

	salt, err := base64.StdEncoding.DecodeString(saltBase64)
	if err != nil {
		return nil, fmt.Errorf("decode handshake salt: %w", err)
	}
	if len(salt) != handshakeSaltSize {
		return nil, fmt.Errorf("invalid handshake salt length: got %d want %d", len(salt), handshakeSaltSize)
	}

	return crypto.DeriveSessionKey(sharedSecret, localDeviceID, peerDeviceID, salt)
}

func decodeHandshake(payload []byte) (HandshakeMessage, error) {
	var msg HandshakeMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		return HandshakeMessage{}, fmt.Errorf("decode handshake: %w", err)
	}
	return msg, nil
}

func decodeHandshakeResponse(payload []byte) (HandshakeResponse, error) {
	var msg HandshakeResponse
	if err := json.Unmarshal(payload, &msg); err != nil {
		return HandshakeResponse{}, fmt.Errorf("decode handshake response: %w", err)
	}
	return msg, nil
}

func makeVersionMismatchError(got int) ErrorMessage {
	return ErrorMessage{
		Type:              TypeError,
		Code:              "version_mismatch",
		Message:           fmt.Sprintf("Unsupported protocol version. Expected %d, got %d.", ProtocolVersion, got),
		SupportedVersions: []int{ProtocolVersion},
		Timestamp:         time.Now().UnixMilli(),
	}
}
