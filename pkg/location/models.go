package location

import "time"

// Source identifies where a Position came from.
type Source string

const (
	SourceGPS     Source = "gps"
	SourceNetwork Source = "network"
	SourceCached  Source = "cached"
	SourceUnknown Source = "unknown"
)

// Position represents a single location reading of the device.
type Position struct {
	Latitude    float64   `json:"latitude"`
	Longitude   float64   `json:"longitude"`
	Altitude    float64   `json:"altitude"`
	Timestamp   time.Time `json:"timestamp"`
	Accuracy    float64   `json:"accuracy,omitempty"` // meters, only meaningful when HasAccuracy is set
	HasAccuracy bool      `json:"has_accuracy"`
	Source      Source    `json:"source"`
	Simulated   bool      `json:"simulated,omitempty"` // flagged as simulated by the receiver
}

// Age returns how old the reading is relative to now. Readings stamped in the future have age zero.
func (p Position) Age(now time.Time) time.Duration {
	if age := now.Sub(p.Timestamp); age > 0 {
		return age
	}
	return 0
}

// IsZero reports whether the position carries no coordinates.
func (p Position) IsZero() bool {
	return p.Latitude == 0 && p.Longitude == 0
}

// moreAccurateThan reports whether p should replace other as the best reading seen so far.
// A reading with a known accuracy always beats one without.
func (p Position) moreAccurateThan(other Position) bool {
	switch {
	case p.HasAccuracy && !other.HasAccuracy:
		return true
	case !p.HasAccuracy:
		return false
	default:
		return p.Accuracy < other.Accuracy
	}
}

// Freshness is the caller's requirement on how recent a cached reading must be.
type Freshness int

const (
	// FreshnessNormal accepts a cached reading up to Config.MaxCacheAge old.
	FreshnessNormal Freshness = iota
	// FreshnessForce accepts a cached reading up to Config.ForceFreshMaxAge old.
	FreshnessForce
)

// Request describes a call for the current position.
type Request struct {
	Freshness Freshness
}
