package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/benmeehan/field-agent/internal/models"
	"github.com/benmeehan/field-agent/pkg/backend"
	"github.com/benmeehan/field-agent/pkg/location"
	"github.com/benmeehan/field-agent/pkg/mqtt"
	"github.com/benmeehan/field-agent/pkg/session"
	"github.com/rs/zerolog"
)

// LocationService periodically reports the worker position to the backend and, when configured, over MQTT.
type LocationService struct {
	// Configuration fields
	agentID  string
	topic    string
	interval time.Duration
	qos      int

	// Dependencies
	locator    LocationSource
	backend    backend.ClientInterface
	session    session.SessionInterface
	mqttClient mqtt.MQTTClient // optional
	logger     zerolog.Logger

	// Internal state management
	mu      sync.Mutex
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool
}

// NewLocationService creates a new LocationService instance with the provided configuration.
// mqttClient may be nil to report to the backend only.
func NewLocationService(agentID, topic string, interval time.Duration, qos int, locator LocationSource,
	backendClient backend.ClientInterface, sess session.SessionInterface, mqttClient mqtt.MQTTClient,
	logger zerolog.Logger) *LocationService {
	return &LocationService{
		agentID:    agentID,
		topic:      topic,
		interval:   interval,
		qos:        qos,
		locator:    locator,
		backend:    backendClient,
		session:    sess,
		mqttClient: mqttClient,
		logger:     logger,
	}
}

// Start resets the locator and begins reporting, immediately and then every interval.
func (l *LocationService) Start() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.running {
		l.logger.Warn().Msg("LocationService is already running")
		return errors.New("location service is already running")
	}

	l.locator.Reset()

	ctx, cancel := context.WithCancel(context.Background())
	l.cancel = cancel
	l.running = true

	l.wg.Add(1)
	go func() {
		defer l.wg.Done()

		ticker := time.NewTicker(l.interval)
		defer ticker.Stop()

		for {
			l.reportAndLog(ctx)

			select {
			case <-ticker.C:
			case <-ctx.Done():
				l.logger.Info().Msg("LocationService is stopping")
				return
			}
		}
	}()

	l.logger.Info().
		Str("topic", l.topic).
		Dur("interval_ms", l.interval).
		Int("qos", l.qos).
		Bool("mqtt", l.mqttClient != nil).
		Msg("LocationService started")
	return nil
}

// Stop gracefully stops the LocationService, ensuring all goroutines are terminated.
func (l *LocationService) Stop() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.running {
		l.logger.Warn().Msg("LocationService is not running")
		return errors.New("location service is not running")
	}

	l.cancel()
	l.wg.Wait()
	l.running = false

	l.logger.Info().Msg("LocationService stopped")
	return nil
}

func (l *LocationService) reportAndLog(ctx context.Context) {
	err := l.Report(ctx)
	switch {
	case err == nil:
	case errors.Is(err, session.ErrNotLoggedIn):
		l.logger.Debug().Msg("Nobody logged in, skipping location report")
	case ctx.Err() != nil:
	default:
		l.logger.Error().Err(err).Msg("Failed to report current location")
	}
}

// Report sends one position report for the logged-in worker.
func (l *LocationService) Report(ctx context.Context) error {
	userID := l.session.UserID()
	if userID == "" {
		return session.ErrNotLoggedIn
	}

	pos, err := l.locator.Locate(ctx, location.Request{Freshness: location.FreshnessNormal})
	if err != nil {
		cached, ok := l.locator.Cached()
		if !ok || cached.IsZero() {
			return fmt.Errorf("no position to report: %w", err)
		}
		l.logger.Warn().Err(err).Msg("Reporting last known position")
		pos = cached
	}

	err = l.backend.ReportLocation(ctx, backend.LocationReport{
		UserID:    userID,
		Latitude:  pos.Latitude,
		Longitude: pos.Longitude,
		Altitude:  pos.Altitude,
	})
	if err != nil {
		return fmt.Errorf("failed to report location to backend: %w", err)
	}

	if l.mqttClient != nil {
		if err := l.publish(userID, pos); err != nil {
			return err
		}
	}

	l.logger.Info().
		Str("user_id", userID).
		Str("source", string(pos.Source)).
		Float64("accuracy", pos.Accuracy).
		Msg("Location reported successfully")
	return nil
}

// publish sends the fix to the MQTT topic.
func (l *LocationService) publish(userID string, pos location.Position) error {
	fix := models.LocationFix{
		AgentID:   l.agentID,
		UserID:    userID,
		Timestamp: pos.Timestamp,
		Latitude:  pos.Latitude,
		Longitude: pos.Longitude,
		Altitude:  pos.Altitude,
		Accuracy:  pos.Accuracy,
		Source:    string(pos.Source),
	}

	payload, err := json.Marshal(fix)
	if err != nil {
		return fmt.Errorf("failed to serialize location message: %w", err)
	}

	token := l.mqttClient.Publish(l.topic, byte(l.qos), false, payload)
	token.Wait()
	if err := token.Error(); err != nil {
		return fmt.Errorf("failed to publish location message to %s: %w", l.topic, err)
	}
	return nil
}
