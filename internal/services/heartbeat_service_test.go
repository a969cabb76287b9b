package services_test

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/benmeehan/field-agent/internal/models"
	"github.com/benmeehan/field-agent/internal/services"
	"github.com/benmeehan/field-agent/pkg/location"
	"github.com/benmeehan/field-agent/tests/mocks"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// TestHeartbeatService_Start_Success tests the successful start of the HeartbeatService.
func TestHeartbeatService_Start_Success(t *testing.T) {
	// Setup
	mockSession := new(mocks.MockSession)
	mockLocator := new(mocks.MockLocator)
	mockMQTT := new(mocks.MockMQTTClient)

	h := services.NewHeartbeatService("van-01", "agents/heartbeat", time.Second, 0,
		mockSession, mockLocator, mockMQTT, zerolog.Nop())

	// Execute
	err := h.Start()

	// Assert
	assert.NoError(t, err)

	// Try to start again (should fail)
	err = h.Start()
	assert.Error(t, err)
	assert.Equal(t, "heartbeat service is already running", err.Error())

	// Cleanup
	err = h.Stop()
	assert.NoError(t, err)

	// Try to stop again (should fail)
	err = h.Stop()
	assert.Equal(t, "heartbeat service is not running", err.Error())
}

// TestHeartbeatService_Start_NoMQTT tests that the service refuses to start without a broker connection.
func TestHeartbeatService_Start_NoMQTT(t *testing.T) {
	h := services.NewHeartbeatService("van-01", "agents/heartbeat", time.Second, 0,
		new(mocks.MockSession), new(mocks.MockLocator), nil, zerolog.Nop())

	assert.Error(t, h.Start())
}

// TestHeartbeatService_Publish tests the heartbeat loop and the presence payload.
func TestHeartbeatService_Publish(t *testing.T) {
	// Setup
	mockSession := new(mocks.MockSession)
	mockLocator := new(mocks.MockLocator)
	mockMQTT := new(mocks.MockMQTTClient)

	mockSession.On("UserID").Return("17")
	mockLocator.On("Cached").Return(location.Position{Latitude: 1, Longitude: 2, Timestamp: time.Now()}, true)

	payloads := make(chan []byte, 10)
	mockMQTT.On("Publish", "agents/heartbeat", byte(0), false, mock.Anything).
		Run(func(args mock.Arguments) { payloads <- args.Get(3).([]byte) }).
		Return(mocks.NewCompletedToken(nil))

	h := services.NewHeartbeatService("van-01", "agents/heartbeat", 20*time.Millisecond, 0,
		mockSession, mockLocator, mockMQTT, zerolog.Nop())

	// Execute
	require.NoError(t, h.Start())
	defer h.Stop()

	// Assert
	var payload []byte
	select {
	case payload = <-payloads:
	case <-time.After(time.Second):
		t.Fatal("no heartbeat published")
	}

	var msg models.Heartbeat
	require.NoError(t, json.Unmarshal(payload, &msg))
	assert.Equal(t, "van-01", msg.AgentID)
	assert.Equal(t, "17", msg.UserID)
	assert.True(t, msg.ClockedIn)
	assert.Equal(t, "alive", msg.Status)
	require.NotNil(t, msg.LastFixAge)
	assert.Less(t, *msg.LastFixAge, 5.0)
}

// TestHeartbeatService_PublishError tests that a publishing error does not stop the loop.
func TestHeartbeatService_PublishError(t *testing.T) {
	// Setup
	mockSession := new(mocks.MockSession)
	mockLocator := new(mocks.MockLocator)
	mockMQTT := new(mocks.MockMQTTClient)

	mockSession.On("UserID").Return("")
	mockLocator.On("Cached").Return(location.Position{}, false)

	calls := make(chan struct{}, 10)
	mockMQTT.On("Publish", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Run(func(mock.Arguments) { calls <- struct{}{} }).
		Return(mocks.NewCompletedToken(errors.New("publish error")))

	h := services.NewHeartbeatService("van-01", "agents/heartbeat", 10*time.Millisecond, 0,
		mockSession, mockLocator, mockMQTT, zerolog.Nop())

	// Execute
	require.NoError(t, h.Start())

	// Assert
	for i := 0; i < 2; i++ {
		select {
		case <-calls:
		case <-time.After(time.Second):
			t.Fatal("heartbeat loop stopped after an error")
		}
	}
	assert.NoError(t, h.Stop())
}
