package location

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestFilter_Check(t *testing.T) {
	now := fixedNow
	filter := NewFilter(DefaultFilterConfig(), zerolog.Nop())

	noAccuracy := reading(SourceGPS, testLat, testLng, 0, now)
	noAccuracy.HasAccuracy = false

	simulated := reading(SourceGPS, testLat, testLng, 15, now)
	simulated.Simulated = true

	tests := []struct {
		name      string
		pos       Position
		plausible bool
	}{
		{"ordinary fix", reading(SourceGPS, testLat, testLng, 15, now), true},
		{"no accuracy", noAccuracy, true},
		{"simulated", simulated, false},
		{"accuracy below minimum", reading(SourceGPS, testLat, testLng, 0.05, now), false},
		{"accuracy at minimum", reading(SourceGPS, testLat, testLng, 0.1, now), true},
		{"washington dc exact", reading(SourceGPS, 38.907, -77.036, 1.0, now), false},
		{"washington dc within tolerance", reading(SourceGPS, 38.912, -77.030, 0.8, now), false},
		{"washington dc coarse and recent", reading(SourceGPS, 38.907, -77.036, 20, now), true},
		{"washington dc coarse and stale", reading(SourceGPS, 38.907, -77.036, 20, now.Add(-25*time.Hour)), false},
		{"san francisco precise", reading(SourceNetwork, 37.7749, -122.4194, 0.5, now), false},
		{"new york precise", reading(SourceNetwork, 40.7128, -74.0060, 1.0, now), false},
		{"outside tolerance", reading(SourceGPS, 38.930, -77.036, 0.5, now), true},
		{"stale and precise", reading(SourceGPS, testLat, testLng, 0.9, now.Add(-25*time.Hour)), false},
		{"stale and coarse", reading(SourceGPS, testLat, testLng, 30, now.Add(-25*time.Hour)), true},
		{"recent and precise", reading(SourceGPS, testLat, testLng, 0.9, now.Add(-time.Hour)), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := filter.Check(tt.pos, now)
			if tt.plausible {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ErrImplausibleReading)
			}
		})
	}
}

func TestFilter_CustomKnownDefaults(t *testing.T) {
	cfg := DefaultFilterConfig()
	cfg.KnownDefaults = []Coordinate{{Latitude: testLat, Longitude: testLng}}
	filter := NewFilter(cfg, zerolog.Nop())

	assert.True(t, filter.MatchesKnownDefault(reading(SourceGPS, testLat, testLng, 1, fixedNow)))
	assert.False(t, filter.MatchesKnownDefault(reading(SourceGPS, 38.907, -77.036, 1, fixedNow)))
	assert.ErrorIs(t, filter.Check(reading(SourceGPS, testLat, testLng, 1, fixedNow), fixedNow), ErrImplausibleReading)
}
