package models

// SensorReading holds the latest accepted sensor values. A nil field means no
// sample has been accepted yet.
type SensorReading struct {
	HeartRateBPM  *int `json:"heart_rate_bpm,omitempty"`
	LightLevelLux *int `json:"light_level_lux,omitempty"`
}

// Complete reports whether both readings are present.
func (r SensorReading) Complete() bool {
	return r.HeartRateBPM != nil && r.LightLevelLux != nil
}

// Clone returns a copy that shares no pointers with r.
func (r SensorReading) Clone() SensorReading {
	var out SensorReading
	if r.HeartRateBPM != nil {
		v := *r.HeartRateBPM
		out.HeartRateBPM = &v
	}
	if r.LightLevelLux != nil {
		v := *r.LightLevelLux
		out.LightLevelLux = &v
	}
	return out
}
