package session

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"wristrelay/models"
)

func TestSessionLifecycle(t *testing.T) {
	s := New()
	_, ok := s.Peer()
	assert.False(t, ok)
	assert.False(t, s.Connected())

	peer := models.PeerNode{ID: "n1", DisplayName: "Phone", Address: "10.0.0.2:9797"}
	s.Adopt(peer)
	got, ok := s.Peer()
	assert.True(t, ok)
	assert.Equal(t, peer, got)
	assert.True(t, s.Connected())

	s.MarkDisconnected()
	assert.False(t, s.Connected())
	_, ok = s.Peer()
	assert.True(t, ok, "peer survives a disconnect")

	s.Clear()
	_, ok = s.Peer()
	assert.False(t, ok)
	assert.False(t, s.Connected())
}

func TestSessionConcurrentAccess(t *testing.T) {
	s := New()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			s.Adopt(models.PeerNode{ID: "n"})
		}()
		go func() {
			defer wg.Done()
			_ = s.Connected()
			_, _ = s.Peer()
		}()
	}
	wg.Wait()
	assert.True(t, s.Connected())
}

func TestSessionAddressOfAdoptedPeer(t *testing.T) {
	s := New()
	_, ok := s.AddressOf("n1")
	assert.False(t, ok)

	s.Adopt(models.PeerNode{ID: "n1", DisplayName: "Phone", Address: "10.0.0.2:9797"})
	address, ok := s.AddressOf("n1")
	assert.True(t, ok)
	assert.Equal(t, "10.0.0.2:9797", address)

	_, ok = s.AddressOf("n2")
	assert.False(t, ok)
	_, ok = s.AddressOf("")
	assert.False(t, ok)

	s.MarkDisconnected()
	_, ok = s.AddressOf("n1")
	assert.True(t, ok, "address survives a disconnect")

	s.Clear()
	_, ok = s.AddressOf("n1")
	assert.False(t, ok)
}
