package constants

import "time"

const (
	// StatusAlive is reported in every heartbeat while the agent runs.
	StatusAlive = "alive"

	// DefaultReportInterval is how often the worker position is sent to the backend.
	DefaultReportInterval = 5 * time.Minute

	// DefaultHeartbeatInterval is how often presence is published over MQTT.
	DefaultHeartbeatInterval = time.Minute
)
