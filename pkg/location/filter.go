package location

import (
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog"
)

// Coordinate is a latitude/longitude pair in degrees.
type Coordinate struct {
	Latitude  float64 `yaml:"latitude"`
	Longitude float64 `yaml:"longitude"`
}

// FilterConfig holds the implausibility thresholds.
type FilterConfig struct {
	MinAccuracy        float64       // accuracy below this is treated as mock (meters)
	SuspiciousAccuracy float64       // accuracy at or below this is suspicious (meters)
	Tolerance          float64       // degrees around a known default coordinate
	MaxAge             time.Duration // readings older than this are suspicious
	KnownDefaults      []Coordinate  // emulator and mock-app default coordinates
}

// DefaultFilterConfig returns the thresholds observed on emulators and mock-location apps.
func DefaultFilterConfig() FilterConfig {
	return FilterConfig{
		MinAccuracy:        0.1,
		SuspiciousAccuracy: 1.0,
		Tolerance:          0.01,
		MaxAge:             24 * time.Hour,
		KnownDefaults: []Coordinate{
			{Latitude: 38.907, Longitude: -77.036},    // Washington DC
			{Latitude: 37.7749, Longitude: -122.4194}, // San Francisco
			{Latitude: 40.7128, Longitude: -74.0060},  // New York
		},
	}
}

// Filter rejects simulated or spoofed readings.
type Filter struct {
	cfg    FilterConfig
	logger zerolog.Logger
}

// NewFilter creates a Filter with the given thresholds.
func NewFilter(cfg FilterConfig, logger zerolog.Logger) *Filter {
	return &Filter{cfg: cfg, logger: logger}
}

// Check returns nil for a plausible reading, otherwise an error wrapping ErrImplausibleReading
// that names the rule which fired.
func (f *Filter) Check(p Position, now time.Time) error {
	if p.Simulated {
		return f.reject(p, "flagged as simulated by the receiver")
	}

	if p.HasAccuracy && p.Accuracy < f.cfg.MinAccuracy {
		return f.reject(p, fmt.Sprintf("accuracy %.2fm is implausibly precise", p.Accuracy))
	}

	suspiciousAccuracy := p.HasAccuracy && p.Accuracy <= f.cfg.SuspiciousAccuracy
	stale := f.cfg.MaxAge > 0 && p.Age(now) > f.cfg.MaxAge

	if f.MatchesKnownDefault(p) {
		if suspiciousAccuracy {
			return f.reject(p, fmt.Sprintf("known default coordinates with suspicious accuracy %.2fm", p.Accuracy))
		}
		if stale {
			return f.reject(p, fmt.Sprintf("known default coordinates %s old", p.Age(now).Round(time.Second)))
		}
	}

	if stale && suspiciousAccuracy {
		return f.reject(p, fmt.Sprintf("%s old reading with suspicious accuracy %.2fm", p.Age(now).Round(time.Second), p.Accuracy))
	}

	return nil
}

// MatchesKnownDefault reports whether the reading sits on one of the configured default coordinates.
func (f *Filter) MatchesKnownDefault(p Position) bool {
	for _, c := range f.cfg.KnownDefaults {
		if math.Abs(p.Latitude-c.Latitude) < f.cfg.Tolerance && math.Abs(p.Longitude-c.Longitude) < f.cfg.Tolerance {
			return true
		}
	}
	return false
}

func (f *Filter) reject(p Position, reason string) error {
	f.logger.Warn().
		Float64("latitude", p.Latitude).
		Float64("longitude", p.Longitude).
		Str("source", string(p.Source)).
		Str("reason", reason).
		Msg("Rejected implausible location reading")
	return fmt.Errorf("%w: %s", ErrImplausibleReading, reason)
}
