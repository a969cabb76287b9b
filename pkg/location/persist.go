package location

import (
	"time"

	"github.com/benmeehan/field-agent/pkg/prefs"
)

// PreferenceStore persists the cached position in the preferences file.
type PreferenceStore struct {
	prefs *prefs.Preferences
}

// NewPreferenceStore creates a Store on top of the given preferences.
func NewPreferenceStore(p *prefs.Preferences) *PreferenceStore {
	return &PreferenceStore{prefs: p}
}

// Load implements Store.
func (s *PreferenceStore) Load() (Position, bool, error) {
	if !s.prefs.Has(prefs.KeyLatitude) || !s.prefs.Has(prefs.KeyLongitude) {
		return Position{}, false, nil
	}

	p := Position{
		Latitude:    s.prefs.Float(prefs.KeyLatitude, 0),
		Longitude:   s.prefs.Float(prefs.KeyLongitude, 0),
		Altitude:    s.prefs.Float(prefs.KeyAltitude, 0),
		Timestamp:   time.UnixMilli(s.prefs.Int64(prefs.KeyLocationTimestamp, 0)),
		HasAccuracy: s.prefs.Has(prefs.KeyLocationAccuracy),
		Accuracy:    s.prefs.Float(prefs.KeyLocationAccuracy, 0),
		Source:      Source(s.prefs.String(prefs.KeyLocationSource, string(SourceUnknown))),
	}
	return p, true, nil
}

// Save implements Store.
func (s *PreferenceStore) Save(p Position) error {
	values := map[string]any{
		prefs.KeyLatitude:          p.Latitude,
		prefs.KeyLongitude:         p.Longitude,
		prefs.KeyAltitude:          p.Altitude,
		prefs.KeyLocationTimestamp: p.Timestamp.UnixMilli(),
		prefs.KeyLocationSource:    string(p.Source),
	}
	if !p.HasAccuracy {
		return s.prefs.Update(values, prefs.KeyLocationAccuracy)
	}
	values[prefs.KeyLocationAccuracy] = p.Accuracy
	return s.prefs.Set(values)
}

// Clear implements Store.
func (s *PreferenceStore) Clear() error {
	return s.prefs.Remove(
		prefs.KeyLatitude,
		prefs.KeyLongitude,
		prefs.KeyAltitude,
		prefs.KeyLocationTimestamp,
		prefs.KeyLocationAccuracy,
		prefs.KeyLocationSource,
	)
}

// ConsentPermission is granted while the worker's location consent preference is set.
// A device without the preference is treated as consenting.
func ConsentPermission(p *prefs.Preferences) Permission {
	return PermissionFunc(func() bool {
		return p.Bool(prefs.KeyLocationConsent, true)
	})
}
