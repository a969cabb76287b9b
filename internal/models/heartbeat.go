package models

import "time"

// Heartbeat represents the worker presence published over MQTT.
type Heartbeat struct {
	AgentID    string    `json:"agent_id"`
	UserID     string    `json:"user_id,omitempty"`
	ClockedIn  bool      `json:"clocked_in"`
	Timestamp  time.Time `json:"timestamp"`
	Status     string    `json:"status"`
	LastFixAge *float64  `json:"last_fix_age_seconds,omitempty"` // nil when no position is cached
}
