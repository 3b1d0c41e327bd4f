package discovery

import (
	"context"
	"net"
	"sync/atomic"
	"testing"
	"time"

	"github.com/grandcat/zeroconf"
)

func TestPeerScannerFiltersSelfAndManualRefresh(t *testing.T) {
	var browseCalls int32
	cfg := Config{
		SelfDeviceID: "self-device",
		ScanTimeout:  35 * time.Millisecond,
		browseFn: func(ctx context.Context, service, domain string, entries chan<- *zeroconf.ServiceEntry) error {
			call := atomic.AddInt32(&browseCalls, 1)
			entries <- testServiceEntry("self-device", "Self", 9999, "10.0.0.1")
			entries <- testServiceEntry("peer-1", "Bob", 9998, "10.0.0.2")
			if call >= 2 {
				entries <- testServiceEntry("peer-2", "Carol", 9997, "10.0.0.3")
			}
			<-ctx.Done()
			return nil
		},
	}

	scanner, err := NewPeerScanner(cfg)
	if err != nil {
		t.Fatalf("NewPeerScanner failed: %v", err)
	}
	if err := scanner.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer scanner.Stop()

	if err := scanner.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}
	peers := scanner.ListPeers()
	if len(peers) != 1 || peers[0].DeviceID != "peer-1" {
		t.Fatalf("expected only peer-1 after first scan, got %+v", peers)
	}

	if err := scanner.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}
	if peers := scanner.ListPeers(); len(peers) != 2 {
		t.Fatalf("expected two peers after second scan, got %+v", peers)
	}
}

func TestPeerScannerScansOnlyOnRefresh(t *testing.T) {
	var browseCalls int32
	cfg := Config{
		SelfDeviceID: "self-device",
		ScanTimeout:  25 * time.Millisecond,
		browseFn: func(ctx context.Context, service, domain string, entries chan<- *zeroconf.ServiceEntry) error {
			if atomic.AddInt32(&browseCalls, 1) == 1 {
				entries <- testServiceEntry("phone", "Phone", 9797, "10.0.0.2")
			}
			<-ctx.Done()
			return nil
		},
	}

	scanner, err := NewPeerScanner(cfg)
	if err != nil {
		t.Fatalf("NewPeerScanner failed: %v", err)
	}
	if err := scanner.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer scanner.Stop()

	registry := NewRegistry(scanner)
	node, err := FirstConnected(context.Background(), registry)
	if err != nil {
		t.Fatalf("FirstConnected failed: %v", err)
	}

	time.Sleep(250 * time.Millisecond)

	if calls := atomic.LoadInt32(&browseCalls); calls != 1 {
		t.Fatalf("expected a single browse without Refresh, got %d", calls)
	}
	address, ok := registry.AddressOf(node.ID)
	if !ok || address != "10.0.0.2:9797" {
		t.Fatalf("expected adopted peer to stay resolvable, got %q %v", address, ok)
	}
}

func TestPeerScannerRefreshDropsVanishedPeers(t *testing.T) {
	var browseCalls int32
	cfg := Config{
		SelfDeviceID: "self-device",
		ScanTimeout:  25 * time.Millisecond,
		browseFn: func(ctx context.Context, service, domain string, entries chan<- *zeroconf.ServiceEntry) error {
			if atomic.AddInt32(&browseCalls, 1) == 1 {
				entries <- testServiceEntry("peer-1", "Bob", 9998, "10.0.0.2")
			}
			entries <- testServiceEntry("peer-2", "Carol", 9997, "10.0.0.3")
			<-ctx.Done()
			return nil
		},
	}

	scanner, err := NewPeerScanner(cfg)
	if err != nil {
		t.Fatalf("NewPeerScanner failed: %v", err)
	}
	if err := scanner.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer scanner.Stop()

	if err := scanner.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}
	if peers := scanner.ListPeers(); len(peers) != 2 {
		t.Fatalf("expected two peers after first scan, got %+v", peers)
	}

	if err := scanner.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}
	peers := scanner.ListPeers()
	if len(peers) != 1 || peers[0].DeviceID != "peer-2" {
		t.Fatalf("expected only peer-2 after second scan, got %+v", peers)
	}
	if _, ok := scanner.Lookup("peer-1"); ok {
		t.Fatalf("expected vanished peer to be absent from lookup")
	}
}

func TestPeerScannerRefreshIgnoresDeadlineExceededFromBrowse(t *testing.T) {
	cfg := Config{
		SelfDeviceID: "self-device",
		ScanTimeout:  35 * time.Millisecond,
		browseFn: func(ctx context.Context, service, domain string, entries chan<- *zeroconf.ServiceEntry) error {
			entries <- testServiceEntry("peer-1", "Bob", 9998, "10.0.0.2")
			<-ctx.Done()
			return ctx.Err()
		},
	}

	scanner, err := NewPeerScanner(cfg)
	if err != nil {
		t.Fatalf("NewPeerScanner failed: %v", err)
	}
	if err := scanner.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer scanner.Stop()

	if err := scanner.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}

	waitForCondition(t, time.Second, func() bool {
		peers := scanner.ListPeers()
		return len(peers) == 1 && peers[0].DeviceID == "peer-1"
	})
}

func TestPeerScannerFiltersByPeerRole(t *testing.T) {
	cfg := Config{
		SelfDeviceID: "watch",
		PeerRole:     "handheld",
		ScanTimeout:  35 * time.Millisecond,
		browseFn: func(ctx context.Context, service, domain string, entries chan<- *zeroconf.ServiceEntry) error {
			other := testServiceEntry("other-watch", "Other Watch", 9998, "10.0.0.2")
			other.Text = append(other.Text, "role=wearable")
			phone := testServiceEntry("phone", "Phone", 9997, "10.0.0.3")
			phone.Text = append(phone.Text, "role=handheld")
			entries <- other
			entries <- phone
			<-ctx.Done()
			return nil
		},
	}

	scanner, err := NewPeerScanner(cfg)
	if err != nil {
		t.Fatalf("NewPeerScanner failed: %v", err)
	}
	if err := scanner.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer scanner.Stop()

	if err := scanner.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}

	peers := scanner.ListPeers()
	if len(peers) != 1 || peers[0].DeviceID != "phone" || peers[0].Role != "handheld" {
		t.Fatalf("expected only the handheld peer, got %+v", peers)
	}
	if _, ok := scanner.Lookup("other-watch"); ok {
		t.Fatalf("expected filtered peer to be absent from lookup")
	}
}

func testServiceEntry(deviceID, instance string, port int, ip string) *zeroconf.ServiceEntry {
	return &zeroconf.ServiceEntry{
		ServiceRecord: zeroconf.ServiceRecord{
			Instance: instance,
			Service:  DefaultService,
			Domain:   DefaultDomain,
		},
		HostName: instance + ".local",
		Port:     port,
		Text: []string{
			"device_id=" + deviceID,
			"version=1",
		},
		AddrIPv4: []net.IP{net.ParseIP(ip)},
	}
}

func waitForCondition(t *testing.T, timeout time.Duration, condition func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if condition() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("condition not met before timeout %s", timeout)
}
