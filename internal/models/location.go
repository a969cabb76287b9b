package models

import (
	"time"
)

// LocationFix is the worker position published over MQTT.
type LocationFix struct {
	AgentID   string    `json:"agent_id"`
	UserID    string    `json:"user_id"`
	Timestamp time.Time `json:"timestamp"`
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	Altitude  float64   `json:"altitude"`
	Accuracy  float64   `json:"accuracy,omitempty"`
	Source    string    `json:"source"`
}
