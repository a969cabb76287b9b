package web_test

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/benmeehan/field-agent/internal/models"
	"github.com/benmeehan/field-agent/internal/services"
	"github.com/benmeehan/field-agent/internal/web"
	"github.com/benmeehan/field-agent/pkg/backend"
	"github.com/benmeehan/field-agent/pkg/location"
	"github.com/benmeehan/field-agent/pkg/session"
	"github.com/benmeehan/field-agent/tests/mocks"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type testServer struct {
	locator    *mocks.MockLocator
	attendance *mocks.MockAttendance
	deliveries *mocks.MockDeliveries
	http       *httptest.Server
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	ts := &testServer{
		locator:    new(mocks.MockLocator),
		attendance: new(mocks.MockAttendance),
		deliveries: new(mocks.MockDeliveries),
	}
	s := web.NewServer("127.0.0.1:0", time.Second, ts.locator, ts.attendance, ts.deliveries, zerolog.Nop())
	ts.http = httptest.NewServer(s.Router())
	t.Cleanup(ts.http.Close)
	return ts
}

func (ts *testServer) do(t *testing.T, method, path, body string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, ts.http.URL+path, strings.NewReader(body))
	require.NoError(t, err)
	resp, err := ts.http.Client().Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

// TestServer_Location tests the location endpoint and the fresh query parameter.
func TestServer_Location(t *testing.T) {
	// Setup
	ts := newTestServer(t)
	pos := location.Position{Latitude: -22.2758, Longitude: 166.458, Accuracy: 8, HasAccuracy: true, Source: location.SourceGPS}
	ts.locator.On("Locate", mock.Anything, location.Request{Freshness: location.FreshnessForce}).Return(pos, nil)

	// Execute
	resp := ts.do(t, http.MethodGet, "/location?fresh=1", "")

	// Assert
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var got location.Position
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	assert.Equal(t, -22.2758, got.Latitude)
	assert.Equal(t, location.SourceGPS, got.Source)
}

// TestServer_Location_Errors tests the mapping of acquisition errors to status codes.
func TestServer_Location_Errors(t *testing.T) {
	tests := []struct {
		err    error
		status int
	}{
		{location.ErrPermissionDenied, http.StatusForbidden},
		{location.ErrTimeout, http.StatusGatewayTimeout},
		{fmt.Errorf("3 readings rejected: %w", location.ErrImplausibleReading), http.StatusGatewayTimeout},
		{location.ErrServiceUnavailable, http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			ts := newTestServer(t)
			ts.locator.On("Locate", mock.Anything, location.Request{Freshness: location.FreshnessNormal}).
				Return(location.Position{}, tt.err)

			resp := ts.do(t, http.MethodGet, "/location", "")

			assert.Equal(t, tt.status, resp.StatusCode)
			var body map[string]string
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
			assert.Equal(t, tt.err.Error(), body["error"])
		})
	}
}

// TestServer_Login tests a successful login and a rejected code.
func TestServer_Login(t *testing.T) {
	// Setup
	ts := newTestServer(t)
	ts.attendance.On("Login", mock.Anything, "12345").Return(session.User{ID: "17", Name: "Marie"}, nil)
	ts.attendance.On("Login", mock.Anything, "99999").
		Return(session.User{}, fmt.Errorf("login failed: %w", &backend.StatusError{Path: "/app/login", StatusCode: 401}))
	ts.attendance.On("Login", mock.Anything, "12").
		Return(session.User{}, fmt.Errorf("%w: access code must be 5 digits", services.ErrInvalidRequest))

	// Execute
	ok := ts.do(t, http.MethodPost, "/login", `{"code":"12345"}`)
	rejected := ts.do(t, http.MethodPost, "/login", `{"code":"99999"}`)
	invalid := ts.do(t, http.MethodPost, "/login", `{"code":"12"}`)
	malformed := ts.do(t, http.MethodPost, "/login", `{"code":`)

	// Assert
	require.Equal(t, http.StatusOK, ok.StatusCode)
	var info models.SessionInfo
	require.NoError(t, json.NewDecoder(ok.Body).Decode(&info))
	assert.Equal(t, models.SessionInfo{LoggedIn: true, UserID: "17", UserName: "Marie"}, info)

	assert.Equal(t, http.StatusUnauthorized, rejected.StatusCode)
	assert.Equal(t, http.StatusBadRequest, invalid.StatusCode)
	assert.Equal(t, http.StatusBadRequest, malformed.StatusCode)
}

// TestServer_LogoutAndSession tests the session endpoints.
func TestServer_LogoutAndSession(t *testing.T) {
	// Setup
	ts := newTestServer(t)
	ts.attendance.On("Logout", mock.Anything).Return(session.ErrNotLoggedIn)
	ts.attendance.On("Current").Return(session.User{}, false)

	// Execute
	logout := ts.do(t, http.MethodPost, "/logout", "")
	current := ts.do(t, http.MethodGet, "/session", "")

	// Assert
	assert.Equal(t, http.StatusUnauthorized, logout.StatusCode)
	require.Equal(t, http.StatusOK, current.StatusCode)
	var info models.SessionInfo
	require.NoError(t, json.NewDecoder(current.Body).Decode(&info))
	assert.False(t, info.LoggedIn)
}

// TestServer_Deliveries tests listing, cancelling and signing deliveries.
func TestServer_Deliveries(t *testing.T) {
	// Setup
	ts := newTestServer(t)
	ts.deliveries.On("List", mock.Anything).Return([]models.Delivery{{ID: "42", Time: "08:15", Status: "in_progress"}}, nil)
	ts.deliveries.On("Cancel", mock.Anything, "42").Return(nil)
	ts.deliveries.On("Sign", mock.Anything, models.DeliveryProof{
		DeliveryID:   "42",
		Signature:    []byte("png"),
		Comment:      "ok",
		Satisfaction: "happy",
	}).Return(nil)

	// Execute
	list := ts.do(t, http.MethodGet, "/deliveries", "")
	cancel := ts.do(t, http.MethodPost, "/deliveries/42/cancel", "")
	sign := ts.do(t, http.MethodPost, "/deliveries/42/sign", `{"signature":"cG5n","comment":"ok","satisfaction":"happy"}`)
	wrongMethod := ts.do(t, http.MethodGet, "/deliveries/42/cancel", "")

	// Assert
	require.Equal(t, http.StatusOK, list.StatusCode)
	var deliveries []models.Delivery
	require.NoError(t, json.NewDecoder(list.Body).Decode(&deliveries))
	require.Len(t, deliveries, 1)
	assert.Equal(t, "08:15", deliveries[0].Time)

	assert.Equal(t, http.StatusNoContent, cancel.StatusCode)
	assert.Equal(t, http.StatusNoContent, sign.StatusCode)
	assert.Equal(t, http.StatusMethodNotAllowed, wrongMethod.StatusCode)
	ts.deliveries.AssertExpectations(t)
}

// TestServer_StartStop tests the server lifecycle on a real listener.
func TestServer_StartStop(t *testing.T) {
	// Setup
	s := web.NewServer("127.0.0.1:0", time.Second, new(mocks.MockLocator), new(mocks.MockAttendance),
		new(mocks.MockDeliveries), zerolog.Nop())

	// Execute & Assert
	require.NoError(t, s.Start())
	assert.EqualError(t, s.Start(), "web server is already running")
	require.NoError(t, s.Stop())
	assert.EqualError(t, s.Stop(), "web server is not running")
}
