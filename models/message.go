package models

// PathSensorData is the logical channel carrying sensor readings.
const PathSensorData = "/SENSOR_DATA"

// MessageEvent is one inbound message delivered by the transport.
type MessageEvent struct {
	SourceNodeID string `json:"source_node_id"`
	Path         string `json:"path"`
	Data         []byte `json:"data"`
}
