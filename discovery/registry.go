package discovery

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"

	"wristrelay/models"
)

// ErrNoPeerFound is returned when a discovery query finds no connected node.
var ErrNoPeerFound = errors.New("discovery: no peer found")

// NodeLister answers "which peer nodes are connected right now".
type NodeLister interface {
	ConnectedNodes(ctx context.Context) ([]models.PeerNode, error)
}

type peerSource interface {
	Refresh(ctx context.Context) error
	ListPeers() []DiscoveredPeer
	Lookup(deviceID string) (DiscoveredPeer, bool)
}

// Registry exposes scanner results as peer nodes and resolves their dial addresses.
type Registry struct {
	peers peerSource
}

// NewRegistry wraps a started scanner.
func NewRegistry(scanner *PeerScanner) *Registry {
	return &Registry{peers: scanner}
}

// ConnectedNodes runs one scan and returns the nodes visible afterwards.
func (r *Registry) ConnectedNodes(ctx context.Context) ([]models.PeerNode, error) {
	if err := r.peers.Refresh(ctx); err != nil {
		return nil, fmt.Errorf("refresh peers: %w", err)
	}

	discovered := r.peers.ListPeers()
	nodes := make([]models.PeerNode, 0, len(discovered))
	for _, peer := range discovered {
		address, ok := dialAddress(peer)
		if !ok {
			continue
		}
		nodes = append(nodes, models.PeerNode{
			ID:          peer.DeviceID,
			DisplayName: peer.DeviceName,
			Address:     address,
		})
	}
	return nodes, nil
}

// AddressOf returns the host:port last advertised by a node.
func (r *Registry) AddressOf(nodeID string) (string, bool) {
	peer, ok := r.peers.Lookup(nodeID)
	if !ok {
		return "", false
	}
	return dialAddress(peer)
}

// FirstConnected queries the lister once and adopts the first node returned.
// The choice among several nodes carries no ordering guarantee.
func FirstConnected(ctx context.Context, lister NodeLister) (models.PeerNode, error) {
	nodes, err := lister.ConnectedNodes(ctx)
	if err != nil {
		return models.PeerNode{}, err
	}
	if len(nodes) == 0 {
		return models.PeerNode{}, ErrNoPeerFound
	}
	return nodes[0], nil
}

func dialAddress(peer DiscoveredPeer) (string, bool) {
	if peer.Port <= 0 || len(peer.Addresses) == 0 {
		return "", false
	}

	host := peer.Addresses[0]
	for _, candidate := range peer.Addresses {
		if ip := net.ParseIP(candidate); ip != nil && ip.To4() != nil {
			host = candidate
			break
		}
	}
	return net.JoinHostPort(host, strconv.Itoa(peer.Port)), true
}
