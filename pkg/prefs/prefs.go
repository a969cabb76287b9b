package prefs

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
)

// Preferences is a small persisted key-value store backed by a JSON file.
// Every mutation is written atomically (temp file + rename).
type Preferences struct {
	path   string
	mu     sync.RWMutex
	values map[string]any
}

// Open loads the preferences file at path. A missing file yields an empty store.
func Open(path string) (*Preferences, error) {
	p := &Preferences{
		path:   path,
		values: make(map[string]any),
	}

	file, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return p, nil
	}
	if err != nil {
		return nil, err
	}
	defer file.Close()

	decoder := json.NewDecoder(file)
	decoder.UseNumber()
	if err := decoder.Decode(&p.values); err != nil {
		return nil, fmt.Errorf("failed to decode preferences %s: %w", path, err)
	}
	if p.values == nil {
		p.values = make(map[string]any)
	}
	return p, nil
}

// String returns the string stored under key, or def.
func (p *Preferences) String(key, def string) string {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if s, ok := p.values[key].(string); ok {
		return s
	}
	return def
}

// Float returns the number stored under key, or def.
func (p *Preferences) Float(key string, def float64) float64 {
	p.mu.RLock()
	defer p.mu.RUnlock()

	switch v := p.values[key].(type) {
	case json.Number:
		if f, err := v.Float64(); err == nil {
			return f
		}
	case float64:
		return v
	case float32:
		return float64(v)
	case int64:
		return float64(v)
	case int:
		return float64(v)
	}
	return def
}

// Int64 returns the integer stored under key, or def.
func (p *Preferences) Int64(key string, def int64) int64 {
	p.mu.RLock()
	defer p.mu.RUnlock()

	switch v := p.values[key].(type) {
	case json.Number:
		if i, err := v.Int64(); err == nil {
			return i
		}
	case int64:
		return v
	case int:
		return int64(v)
	case float64:
		return int64(v)
	}
	return def
}

// Bool returns the boolean stored under key, or def.
func (p *Preferences) Bool(key string, def bool) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if b, ok := p.values[key].(bool); ok {
		return b
	}
	return def
}

// Has reports whether key is present.
func (p *Preferences) Has(key string) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()

	_, ok := p.values[key]
	return ok
}

// Set stores all values and persists the file.
func (p *Preferences) Set(values map[string]any) error {
	return p.Update(values)
}

// Remove deletes the keys and persists the file.
func (p *Preferences) Remove(keys ...string) error {
	return p.Update(nil, keys...)
}

// Update stores values and deletes the remove keys in a single write.
func (p *Preferences) Update(values map[string]any, remove ...string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, k := range remove {
		delete(p.values, k)
	}
	for k, v := range values {
		p.values[k] = v
	}
	return p.writeLocked()
}

func (p *Preferences) writeLocked() error {
	if dir := filepath.Dir(p.path); dir != "" {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return fmt.Errorf("failed to create preferences directory %s: %w", dir, err)
		}
	}

	tempFile := p.path + ".tmp"
	file, err := os.OpenFile(tempFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return err
	}

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(p.values); err != nil {
		file.Close()
		os.Remove(tempFile) // Clean up partial file
		return err
	}
	if err := file.Close(); err != nil {
		os.Remove(tempFile)
		return err
	}

	return os.Rename(tempFile, p.path) // Atomic file update
}
