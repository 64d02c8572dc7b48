package domain

// EngineEvent is a plaintext notification emitted by the engine. Events carry
// operational metadata only, never anything derived from an encrypted value.
type EngineEvent struct {
	Type   EventType `json:"type"`             // which entry point emitted the event
	PoolID string    `json:"pool_id"`          // engine pool identifier (hashed pool key)
	Trader string    `json:"trader,omitempty"` // trader identity, analysis events only
	Level  uint8     `json:"level,omitempty"`  // sensitivity level, calibration events only
	At     int64     `json:"at"`               // Unix timestamp in milliseconds
}

// EventType identifies a notification kind.
type EventType string

const (
	EventCalibrationChanged EventType = "calibration_changed"
	EventMetricsUpdated     EventType = "metrics_updated"
	EventAnalysisCompleted  EventType = "analysis_completed"
)
