package session

import (
	"sync"

	"wristrelay/models"
)

// Session holds the peer a process has adopted and whether it counts as connected.
type Session struct {
	mu        sync.RWMutex
	peer      models.PeerNode
	hasPeer   bool
	connected bool
}

// New returns an empty, disconnected session.
func New() *Session {
	return &Session{}
}

// Adopt records peer as the active counterpart and marks the session connected.
func (s *Session) Adopt(peer models.PeerNode) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.peer = peer
	s.hasPeer = true
	s.connected = true
}

// MarkDisconnected resets the connected flag and keeps the last adopted peer.
func (s *Session) MarkDisconnected() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connected = false
}

// Clear forgets the peer and resets the connected flag.
func (s *Session) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.peer = models.PeerNode{}
	s.hasPeer = false
	s.connected = false
}

// Peer returns the adopted peer, if any.
func (s *Session) Peer() (models.PeerNode, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.peer, s.hasPeer
}

// Connected reports the connected flag.
func (s *Session) Connected() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.connected
}

// AddressOf returns the address saved when nodeID was adopted.
func (s *Session) AddressOf(nodeID string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.hasPeer || nodeID == "" || s.peer.ID != nodeID || s.peer.Address == "" {
		return "", false
	}
	return s.peer.Address, true
}
