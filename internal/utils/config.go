package utils

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/benmeehan/field-agent/internal/constants"
	"github.com/benmeehan/field-agent/pkg/backend"
	"github.com/benmeehan/field-agent/pkg/location"
	"gopkg.in/yaml.v3"
)

// Config represents the structure of the configuration file.
type Config struct {
	Logging struct {
		Level  string `yaml:"level"`  // zerolog level name
		Pretty bool   `yaml:"pretty"` // human readable console output
	} `yaml:"logging"`

	Agent struct {
		ID        string `yaml:"id"`         // identifies this device in telemetry
		PrefsFile string `yaml:"prefs_file"` // Path to the persisted preferences file
	} `yaml:"agent"`

	MQTT struct {
		Enabled        bool          `yaml:"enabled"`         // Enable/disable MQTT telemetry
		Broker         string        `yaml:"broker"`          // MQTT broker address
		ClientID       string        `yaml:"client_id"`       // MQTT client ID prefix
		Username       string        `yaml:"username"`        // Optional broker username
		Password       string        `yaml:"password"`        // Optional broker password
		CACertificate  string        `yaml:"ca_certificate"`  // Path to the CA certificate, enables TLS
		ConnectTimeout time.Duration `yaml:"connect_timeout"` // Time allowed for the initial connection
	} `yaml:"mqtt"`

	Backend struct {
		BaseURL string        `yaml:"base_url"` // REST API base URL
		Timeout time.Duration `yaml:"timeout"`  // Per-request timeout
	} `yaml:"backend"`

	ObjectStorage struct {
		Enabled         bool          `yaml:"enabled"`           // Archive proof-of-delivery images
		Endpoint        string        `yaml:"endpoint"`          // S3-compatible endpoint host:port
		AccessKeyID     string        `yaml:"access_key_id"`     // Access key
		SecretAccessKey string        `yaml:"secret_access_key"` // Secret key
		UseSSL          bool          `yaml:"use_ssl"`           // Use HTTPS
		Bucket          string        `yaml:"bucket"`            // Bucket holding the archive
		Region          string        `yaml:"region"`            // Bucket region
		PresignExpiry   time.Duration `yaml:"presign_expiry"`    // Lifetime of logged download links
	} `yaml:"object_storage"`

	Location struct {
		MaxCacheAge              time.Duration `yaml:"max_cache_age"`              // Cached reading accepted for normal requests
		ForceFreshMaxAge         time.Duration `yaml:"force_fresh_max_age"`        // Cached reading accepted for forced requests
		AcquisitionWindow        time.Duration `yaml:"acquisition_window"`         // Wait for a good fix
		PrimaryTimeout           time.Duration `yaml:"primary_timeout"`            // Silence before switching to network
		AccuracyThreshold        float64       `yaml:"accuracy_threshold"`         // Meters, accepted immediately
		MaxConsecutiveRejections int           `yaml:"max_consecutive_rejections"` // Implausible GPS readings before switching
		SingleShotTimeout        time.Duration `yaml:"single_shot_timeout"`        // Final single-shot request cap
		MaxReadingAge            time.Duration `yaml:"max_reading_age"`            // Older live readings are ignored

		GPS struct {
			Enabled    bool   `yaml:"enabled"`     // Use the serial GPS receiver
			DevicePort string `yaml:"device_port"` // UNIX Port where the GPS sensor is mounted
			BaudRate   int    `yaml:"baud_rate"`   // The Baud rate for GPS sensor
		} `yaml:"gps"`

		Network struct {
			Enabled      bool          `yaml:"enabled"`       // Use Google geolocation as secondary source
			MapsAPIKey   string        `yaml:"maps_api_key"`  // Google maps API Key
			ModemIndex   int           `yaml:"modem_index"`   // ModemManager modem for cell towers
			PollInterval time.Duration `yaml:"poll_interval"` // Interval between geolocation polls while streaming
		} `yaml:"network"`

		MockDetection struct {
			MinAccuracy        float64               `yaml:"min_accuracy"`        // Below this accuracy a reading is mock
			SuspiciousAccuracy float64               `yaml:"suspicious_accuracy"` // At or below this accuracy a reading is suspicious
			Tolerance          float64               `yaml:"tolerance"`           // Degrees around a known default coordinate
			MaxAge             time.Duration         `yaml:"max_age"`             // Older readings are suspicious
			KnownDefaults      []location.Coordinate `yaml:"known_defaults"`      // Emulator default coordinates
		} `yaml:"mock_detection"`
	} `yaml:"location"`

	Services struct {
		Location struct {
			Enabled  bool          `yaml:"enabled"`  // Enable/disable periodic location reports
			Topic    string        `yaml:"topic"`    // MQTT topic for location fixes
			QOS      int           `yaml:"qos"`      // MQTT QoS level for location messages
			Interval time.Duration `yaml:"interval"` // Interval between reports
		} `yaml:"location"`

		Heartbeat struct {
			Enabled  bool          `yaml:"enabled"`  // Enable/disable heartbeat service
			Topic    string        `yaml:"topic"`    // MQTT topic for heartbeat service
			QOS      int           `yaml:"qos"`      // MQTT QoS level for heartbeat messages
			Interval time.Duration `yaml:"interval"` // Interval between heartbeats
		} `yaml:"heartbeat"`

		Web struct {
			Enabled         bool          `yaml:"enabled"`          // Enable/disable the local API
			ListenAddress   string        `yaml:"listen_address"`   // host:port for the local API
			ShutdownTimeout time.Duration `yaml:"shutdown_timeout"` // Graceful shutdown allowance
		} `yaml:"web"`
	} `yaml:"services"`
}

// LoadConfig loads the YAML configuration from the specified file and fills in defaults.
func LoadConfig(filename string) (*Config, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var config Config
	decoder := yaml.NewDecoder(file)
	decoder.KnownFields(true)
	if err := decoder.Decode(&config); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse %s: %w", filename, err)
	}

	config.ApplyDefaults()
	return &config, nil
}

// ApplyDefaults fills every unset field with the field-tested default.
func (c *Config) ApplyDefaults() {
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Agent.PrefsFile == "" {
		c.Agent.PrefsFile = "data/prefs.json"
	}
	if c.MQTT.ClientID == "" {
		c.MQTT.ClientID = "field-agent"
	}
	if c.Backend.BaseURL == "" {
		c.Backend.BaseURL = backend.DefaultBaseURL
	}
	if c.Backend.Timeout == 0 {
		c.Backend.Timeout = 30 * time.Second
	}
	if c.ObjectStorage.Bucket == "" {
		c.ObjectStorage.Bucket = "delivery-proofs"
	}

	defaults := location.DefaultConfig()
	l := &c.Location
	setDuration(&l.MaxCacheAge, defaults.MaxCacheAge)
	setDuration(&l.ForceFreshMaxAge, defaults.ForceFreshMaxAge)
	setDuration(&l.AcquisitionWindow, defaults.AcquisitionWindow)
	setDuration(&l.PrimaryTimeout, defaults.PrimaryTimeout)
	setDuration(&l.SingleShotTimeout, defaults.SingleShotTimeout)
	setDuration(&l.MaxReadingAge, defaults.MaxReadingAge)
	if l.AccuracyThreshold == 0 {
		l.AccuracyThreshold = defaults.AccuracyThreshold
	}
	if l.MaxConsecutiveRejections == 0 {
		l.MaxConsecutiveRejections = defaults.MaxConsecutiveRejections
	}
	if l.GPS.BaudRate == 0 {
		l.GPS.BaudRate = 9600
	}
	setDuration(&l.Network.PollInterval, 15*time.Second)

	filter := location.DefaultFilterConfig()
	m := &l.MockDetection
	if m.MinAccuracy == 0 {
		m.MinAccuracy = filter.MinAccuracy
	}
	if m.SuspiciousAccuracy == 0 {
		m.SuspiciousAccuracy = filter.SuspiciousAccuracy
	}
	if m.Tolerance == 0 {
		m.Tolerance = filter.Tolerance
	}
	setDuration(&m.MaxAge, filter.MaxAge)
	if m.KnownDefaults == nil {
		m.KnownDefaults = filter.KnownDefaults
	}

	setDuration(&c.Services.Location.Interval, constants.DefaultReportInterval)
	setDuration(&c.Services.Heartbeat.Interval, constants.DefaultHeartbeatInterval)
	if c.Services.Web.ListenAddress == "" {
		c.Services.Web.ListenAddress = "127.0.0.1:8080"
	}
	setDuration(&c.Services.Web.ShutdownTimeout, 5*time.Second)
}

// LocatorConfig converts the location section for the locator.
func (c *Config) LocatorConfig() location.Config {
	l := c.Location
	return location.Config{
		MaxCacheAge:              l.MaxCacheAge,
		ForceFreshMaxAge:         l.ForceFreshMaxAge,
		AcquisitionWindow:        l.AcquisitionWindow,
		PrimaryTimeout:           l.PrimaryTimeout,
		AccuracyThreshold:        l.AccuracyThreshold,
		MaxConsecutiveRejections: l.MaxConsecutiveRejections,
		SingleShotTimeout:        l.SingleShotTimeout,
		MaxReadingAge:            l.MaxReadingAge,
	}
}

// FilterConfig converts the mock detection section for the filter.
func (c *Config) FilterConfig() location.FilterConfig {
	m := c.Location.MockDetection
	return location.FilterConfig{
		MinAccuracy:        m.MinAccuracy,
		SuspiciousAccuracy: m.SuspiciousAccuracy,
		Tolerance:          m.Tolerance,
		MaxAge:             m.MaxAge,
		KnownDefaults:      m.KnownDefaults,
	}
}

func setDuration(d *time.Duration, def time.Duration) {
	if *d == 0 {
		*d = def
	}
}
