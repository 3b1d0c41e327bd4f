package sensor

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type collectingListener struct {
	mu      sync.Mutex
	samples []Sample
}

func (c *collectingListener) OnSensorChanged(sample Sample) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.samples = append(c.samples, sample)
}

func (c *collectingListener) count(kind Kind) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, s := range c.samples {
		if s.Kind == kind {
			n++
		}
	}
	return n
}

func TestSimulatedManagerDisabledSensor(t *testing.T) {
	manager := NewSimulatedManager(SimulatedOptions{DisableLight: true})
	defer manager.Close()

	_, ok := manager.DefaultSensor(KindLight)
	assert.False(t, ok)
	_, ok = manager.DefaultSensor(KindHeartRate)
	assert.True(t, ok)
}

func TestSimulatedManagerStreamsUntilUnregistered(t *testing.T) {
	manager := NewSimulatedManager(SimulatedOptions{Period: 5 * time.Millisecond, WarmupSamples: 2})
	defer manager.Close()

	heartRate, ok := manager.DefaultSensor(KindHeartRate)
	require.True(t, ok)
	light, ok := manager.DefaultSensor(KindLight)
	require.True(t, ok)

	listener := &collectingListener{}
	require.True(t, manager.RegisterListener(listener, heartRate, DelayUI))
	require.True(t, manager.RegisterListener(listener, light, DelayNormal))

	require.Eventually(t, func() bool {
		return listener.count(KindHeartRate) >= 3 && listener.count(KindLight) >= 3
	}, 2*time.Second, 5*time.Millisecond)

	manager.UnregisterListener(listener)
	settled := listener.count(KindHeartRate) + listener.count(KindLight)
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, settled, listener.count(KindHeartRate)+listener.count(KindLight), "no sample after UnregisterListener returns")

	listener.mu.Lock()
	defer listener.mu.Unlock()
	var heartRates []float32
	for _, s := range listener.samples {
		if s.Kind == KindHeartRate {
			heartRates = append(heartRates, s.Values[0])
		}
	}
	assert.Equal(t, float32(0), heartRates[0])
	assert.Equal(t, float32(0), heartRates[1])
}

func TestSimulatedManagerFeedsSource(t *testing.T) {
	manager := NewSimulatedManager(SimulatedOptions{Period: 5 * time.Millisecond})
	defer manager.Close()

	source := NewSource(manager, quietLogger())
	source.Resume()
	defer source.Pause()

	require.Eventually(t, func() bool {
		return source.Reading().Complete()
	}, 2*time.Second, 5*time.Millisecond)
	assert.Greater(t, *source.Reading().HeartRateBPM, 0)
}
