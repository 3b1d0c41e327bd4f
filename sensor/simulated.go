package sensor

import (
	"context"
	"math/rand"
	"sync"
	"time"
)

// SimulatedOptions configures a SimulatedManager.
type SimulatedOptions struct {
	DisableHeartRate bool
	DisableLight     bool
	// WarmupSamples is the number of zero heart-rate samples emitted before
	// real values, like an optical sensor that has not locked on yet.
	WarmupSamples int
	// Period overrides every delay's nominal period when positive.
	Period time.Duration
}

type simulatedStream struct {
	cancel context.CancelFunc
	done   chan struct{}
}

type simulatedSensor struct {
	kind Kind
	name string
}

func (s simulatedSensor) Kind() Kind   { return s.kind }
func (s simulatedSensor) Name() string { return s.name }

// SimulatedManager is a Manager backed by tickers producing random values.
type SimulatedManager struct {
	opts SimulatedOptions

	mu      sync.Mutex
	streams map[Listener][]simulatedStream
	wg      sync.WaitGroup
}

// NewSimulatedManager returns a manager exposing the sensors enabled in opts.
func NewSimulatedManager(opts SimulatedOptions) *SimulatedManager {
	return &SimulatedManager{
		opts:    opts,
		streams: make(map[Listener][]simulatedStream),
	}
}

// DefaultSensor returns the simulated sensor for kind unless it is disabled.
func (m *SimulatedManager) DefaultSensor(kind Kind) (Sensor, bool) {
	switch kind {
	case KindHeartRate:
		if m.opts.DisableHeartRate {
			return nil, false
		}
		return simulatedSensor{kind: kind, name: "simulated heart rate"}, true
	case KindLight:
		if m.opts.DisableLight {
			return nil, false
		}
		return simulatedSensor{kind: kind, name: "simulated light"}, true
	default:
		return nil, false
	}
}

// RegisterListener starts a sample stream for sensor at the given delay.
func (m *SimulatedManager) RegisterListener(listener Listener, sensor Sensor, delay Delay) bool {
	if listener == nil || sensor == nil {
		return false
	}
	if _, ok := m.DefaultSensor(sensor.Kind()); !ok {
		return false
	}

	period := delay.Duration()
	if m.opts.Period > 0 {
		period = m.opts.Period
	}

	ctx, cancel := context.WithCancel(context.Background())
	st := simulatedStream{cancel: cancel, done: make(chan struct{})}
	m.mu.Lock()
	m.streams[listener] = append(m.streams[listener], st)
	m.mu.Unlock()

	m.wg.Add(1)
	go m.stream(ctx, st.done, listener, sensor.Kind(), period)
	return true
}

// UnregisterListener stops every stream feeding listener. No sample reaches
// listener once it returns.
func (m *SimulatedManager) UnregisterListener(listener Listener) {
	m.mu.Lock()
	streams := m.streams[listener]
	delete(m.streams, listener)
	m.mu.Unlock()

	for _, st := range streams {
		st.cancel()
	}
	for _, st := range streams {
		<-st.done
	}
}

// Close stops all streams and waits for them to exit.
func (m *SimulatedManager) Close() {
	m.mu.Lock()
	var streams []simulatedStream
	for listener, fns := range m.streams {
		streams = append(streams, fns...)
		delete(m.streams, listener)
	}
	m.mu.Unlock()

	for _, st := range streams {
		st.cancel()
	}
	m.wg.Wait()
}

func (m *SimulatedManager) stream(ctx context.Context, done chan<- struct{}, listener Listener, kind Kind, period time.Duration) {
	defer m.wg.Done()
	defer close(done)

	ticker := time.NewTicker(period)
	defer ticker.Stop()

	emitted := 0
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			var value float32
			switch kind {
			case KindHeartRate:
				value = m.heartRateValue(emitted)
			case KindLight:
				value = float32(rand.Intn(1000)) + rand.Float32()
			}
			emitted++
			listener.OnSensorChanged(Sample{Kind: kind, Values: []float32{value}, Timestamp: now})
		}
	}
}

func (m *SimulatedManager) heartRateValue(emitted int) float32 {
	if emitted < m.opts.WarmupSamples {
		return 0
	}
	// Contact is lost now and then.
	if rand.Intn(20) == 0 {
		return 0
	}
	return float32(55+rand.Intn(50)) + rand.Float32()
}
