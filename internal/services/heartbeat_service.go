package services

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/benmeehan/field-agent/internal/constants"
	"github.com/benmeehan/field-agent/internal/models"
	"github.com/benmeehan/field-agent/pkg/mqtt"
	"github.com/benmeehan/field-agent/pkg/session"
	"github.com/rs/zerolog"
)

// HeartbeatService manages periodic presence messages.
type HeartbeatService struct {
	AgentID    string
	PubTopic   string
	Interval   time.Duration
	QOS        int
	Session    session.SessionInterface
	Locator    LocationSource
	MqttClient mqtt.MQTTClient
	Logger     zerolog.Logger

	now    func() time.Time
	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewHeartbeatService initializes a new HeartbeatService.
func NewHeartbeatService(agentID, pubTopic string, interval time.Duration, qos int, sess session.SessionInterface,
	locator LocationSource, mqttClient mqtt.MQTTClient, logger zerolog.Logger) *HeartbeatService {

	return &HeartbeatService{
		AgentID:    agentID,
		PubTopic:   pubTopic,
		Interval:   interval,
		QOS:        qos,
		Session:    sess,
		Locator:    locator,
		MqttClient: mqttClient,
		Logger:     logger,
		now:        time.Now,
	}
}

// Start launches the heartbeat loop in a separate goroutine.
func (h *HeartbeatService) Start() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.cancel != nil {
		h.Logger.Warn().Msg("HeartbeatService is already running")
		return errors.New("heartbeat service is already running")
	}
	if h.MqttClient == nil {
		return errors.New("heartbeat service requires an MQTT client")
	}

	ctx, cancel := context.WithCancel(context.Background())
	h.cancel = cancel

	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		h.runHeartbeatLoop(ctx)
	}()

	h.Logger.Info().Str("topic", h.PubTopic).Msg("HeartbeatService started successfully")
	return nil
}

// Stop gracefully stops the heartbeat service.
func (h *HeartbeatService) Stop() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.cancel == nil {
		h.Logger.Warn().Msg("HeartbeatService is not running")
		return errors.New("heartbeat service is not running")
	}

	h.cancel()
	h.wg.Wait()
	h.cancel = nil

	h.Logger.Info().Msg("HeartbeatService stopped successfully")
	return nil
}

// runHeartbeatLoop continuously sends heartbeat messages at the specified interval.
func (h *HeartbeatService) runHeartbeatLoop(ctx context.Context) {
	ticker := time.NewTicker(h.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			payload, err := json.Marshal(h.heartbeat())
			if err != nil {
				h.Logger.Error().Err(err).Msg("Failed to serialize heartbeat message")
				continue
			}

			token := h.MqttClient.Publish(h.PubTopic, byte(h.QOS), false, payload)
			token.Wait()

			if err := token.Error(); err != nil {
				h.Logger.Error().Err(err).Msg("Failed to publish heartbeat message")
			} else {
				h.Logger.Debug().Msg("Heartbeat published successfully")
			}

		case <-ctx.Done():
			h.Logger.Info().Msg("HeartbeatService stopping gracefully")
			return
		}
	}
}

func (h *HeartbeatService) heartbeat() models.Heartbeat {
	now := h.now()
	userID := h.Session.UserID()

	msg := models.Heartbeat{
		AgentID:   h.AgentID,
		UserID:    userID,
		ClockedIn: userID != "",
		Timestamp: now,
		Status:    constants.StatusAlive,
	}
	if pos, ok := h.Locator.Cached(); ok {
		age := pos.Age(now).Seconds()
		msg.LastFixAge = &age
	}
	return msg
}
