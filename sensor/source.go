package sensor

import (
	"log/slog"
	"sync"

	"wristrelay/models"
)

// Availability reports which sensors exist on the device.
type Availability struct {
	HeartRate bool
	Light     bool
}

// Source keeps the latest accepted heart-rate and light values.
type Source struct {
	manager Manager
	logger  *slog.Logger

	heartRate Sensor
	light     Sensor

	lifecycleMu sync.Mutex
	registered  bool

	mu        sync.Mutex
	listening bool
	reading   models.SensorReading
	onChange  func(models.SensorReading)
}

// NewSource looks up the default sensors once. Missing sensors stay nil and
// are reported through Availability.
func NewSource(manager Manager, logger *slog.Logger) *Source {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Source{
		manager: manager,
		logger:  logger.With("component", "sensor"),
	}
	if sensor, ok := manager.DefaultSensor(KindHeartRate); ok {
		s.heartRate = sensor
	}
	if sensor, ok := manager.DefaultSensor(KindLight); ok {
		s.light = sensor
	}
	return s
}

// OnChange sets a callback invoked with a copy of the reading after every accepted sample.
func (s *Source) OnChange(fn func(models.SensorReading)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onChange = fn
}

// Availability reports which sensors were found.
func (s *Source) Availability() Availability {
	return Availability{HeartRate: s.heartRate != nil, Light: s.light != nil}
}

// Resume registers for updates on every available sensor. When the manager
// refuses every registration the source stays paused and a later Resume retries.
func (s *Source) Resume() {
	s.lifecycleMu.Lock()
	defer s.lifecycleMu.Unlock()
	if s.registered {
		return
	}

	s.setListening(true)
	registered := false
	if s.heartRate != nil {
		if s.manager.RegisterListener(s, s.heartRate, DelayUI) {
			registered = true
		} else {
			s.logger.Warn("heart rate registration refused", "sensor", s.heartRate.Name())
		}
	}
	if s.light != nil {
		if s.manager.RegisterListener(s, s.light, DelayNormal) {
			registered = true
		} else {
			s.logger.Warn("light registration refused", "sensor", s.light.Name())
		}
	}
	if !registered {
		s.setListening(false)
		return
	}
	s.registered = true
}

// Pause stops all sensor updates. Samples delivered after Pause are ignored.
func (s *Source) Pause() {
	s.lifecycleMu.Lock()
	defer s.lifecycleMu.Unlock()
	if !s.registered {
		return
	}
	s.setListening(false)
	s.manager.UnregisterListener(s)
	s.registered = false
}

func (s *Source) setListening(v bool) {
	s.mu.Lock()
	s.listening = v
	s.mu.Unlock()
}

// OnSensorChanged applies one platform sample. A heart rate that truncates to
// zero or less is discarded; light is always accepted.
func (s *Source) OnSensorChanged(sample Sample) {
	if len(sample.Values) == 0 {
		return
	}
	value := int(sample.Values[0])

	s.mu.Lock()
	if !s.listening {
		s.mu.Unlock()
		return
	}
	switch sample.Kind {
	case KindHeartRate:
		if value <= 0 {
			s.mu.Unlock()
			return
		}
		s.reading.HeartRateBPM = &value
	case KindLight:
		s.reading.LightLevelLux = &value
	default:
		s.mu.Unlock()
		return
	}
	snapshot := s.reading.Clone()
	onChange := s.onChange
	s.mu.Unlock()

	if onChange != nil {
		onChange(snapshot)
	}
}

// Reading returns a copy of the latest accepted values.
func (s *Source) Reading() models.SensorReading {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reading.Clone()
}
