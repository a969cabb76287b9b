package backend

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordedRequest struct {
	path string
	body map[string]any
}

func newTestServer(t *testing.T, status int, response string) (*Client, *recordedRequest) {
	t.Helper()
	recorded := &recordedRequest{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Contains(t, r.Header.Get("Content-Type"), "application/json")
		recorded.path = r.URL.Path
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&recorded.body))

		w.WriteHeader(status)
		_, _ = w.Write([]byte(response))
	}))
	t.Cleanup(server.Close)
	return NewClient(server.URL+"/api/", 5*time.Second, zerolog.Nop()), recorded
}

func TestLogin(t *testing.T) {
	tests := []struct {
		name     string
		response string
		want     LoginResult
	}{
		{"flat fields", `{"user_id":"17","name":"Marie"}`, LoginResult{UserID: "17", UserName: "Marie"}},
		{"camel case id", `{"userId":"18","user_name":"Paul"}`, LoginResult{UserID: "18", UserName: "Paul"}},
		{"numeric id", `{"id":19,"username":"Léa"}`, LoginResult{UserID: "19", UserName: "Léa"}},
		{"nested user", `{"user":{"id":20,"name":"Jean"}}`, LoginResult{UserID: "20", UserName: "Jean"}},
		{"nested user_id", `{"user":{"user_id":"21","username":"Ana"}}`, LoginResult{UserID: "21", UserName: "Ana"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, recorded := newTestServer(t, http.StatusOK, tt.response)

			got, err := client.Login(context.Background(), "12345")

			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, "/api/app/login", recorded.path)
			assert.Equal(t, "12345", recorded.body["code"])
		})
	}
}

func TestLogin_NoUserID(t *testing.T) {
	client, _ := newTestServer(t, http.StatusOK, `{"name":"Marie"}`)

	_, err := client.Login(context.Background(), "12345")

	assert.Error(t, err)
}

func TestLogin_Rejected(t *testing.T) {
	client, _ := newTestServer(t, http.StatusUnauthorized, `{"message":"invalid code"}`)

	_, err := client.Login(context.Background(), "00000")

	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusUnauthorized, statusErr.StatusCode)
	assert.Equal(t, "/app/login", statusErr.Path)
}

func TestPunch(t *testing.T) {
	// Setup
	client, recorded := newTestServer(t, http.StatusOK, ``)

	// Execute
	err := client.Punch(context.Background(), AttendancePunch{
		Time:      "2026-03-14 09:30:00",
		Latitude:  -22.2758,
		Longitude: 166.458,
		Altitude:  12,
		Type:      PunchIn,
		UserID:    "17",
	})

	// Assert
	require.NoError(t, err)
	assert.Equal(t, "/api/app/excel/pointer", recorded.path)
	assert.Equal(t, map[string]any{
		"time":    "2026-03-14 09:30:00",
		"lati":    -22.2758,
		"longi":   166.458,
		"alti":    12.0,
		"type":    1.0,
		"user_id": "17",
	}, recorded.body)
}

func TestDeliveries(t *testing.T) {
	tests := []struct {
		name     string
		response string
		count    int
	}{
		{"bare array", `[{"id":1},{"id":2}]`, 2},
		{"deliveries key", `{"deliveries":[{"id":1}]}`, 1},
		{"data key", `{"data":[{"id":1},{"id":2},{"id":3}]}`, 3},
		{"items key", `{"items":[]}`, 0},
		{"non-object entries skipped", `[{"id":1},"oops",null]`, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, recorded := newTestServer(t, http.StatusOK, tt.response)

			records, err := client.Deliveries(context.Background(), "17")

			require.NoError(t, err)
			assert.Len(t, records, tt.count)
			assert.Equal(t, "/api/app/delivery", recorded.path)
			assert.Equal(t, "17", recorded.body["user_id"])
		})
	}
}

func TestDeliveries_UnknownShape(t *testing.T) {
	client, _ := newTestServer(t, http.StatusOK, `{"status":"ok"}`)

	_, err := client.Deliveries(context.Background(), "17")

	assert.Error(t, err)
}

func TestEndpoints(t *testing.T) {
	tests := []struct {
		name string
		call func(c *Client) error
		path string
		key  string
		want any
	}{
		{
			name: "cancel delivery",
			call: func(c *Client) error { return c.CancelDelivery(context.Background(), "42") },
			path: "/api/app/delivery_cancel",
			key:  "id",
			want: "42",
		},
		{
			name: "sign delivery",
			call: func(c *Client) error {
				return c.SignDelivery(context.Background(), DeliverySignature{DeliveryID: "42", Satisfaction: 2, Weight: "12.5"})
			},
			path: "/api/app/sign_delivery",
			key:  "satisfaction",
			want: 2.0,
		},
		{
			name: "sign coordinate",
			call: func(c *Client) error {
				return c.SignCoordinate(context.Background(), SignCoordinate{DeliveryID: "42", UserID: "17", Latitude: -22.27})
			},
			path: "/api/app/sign_coordinate",
			key:  "latitude",
			want: -22.27,
		},
		{
			name: "report location",
			call: func(c *Client) error {
				return c.ReportLocation(context.Background(), LocationReport{UserID: "17", Longitude: 166.45})
			},
			path: "/api/app/current_location",
			key:  "longitude",
			want: 166.45,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, recorded := newTestServer(t, http.StatusOK, `{"success":true}`)

			err := tt.call(client)

			require.NoError(t, err)
			assert.Equal(t, tt.path, recorded.path)
			assert.Equal(t, tt.want, recorded.body[tt.key])
		})
	}
}

func TestNewClient_DefaultBaseURL(t *testing.T) {
	c := NewClient("", time.Second, zerolog.Nop())

	assert.Equal(t, DefaultBaseURL, c.baseURL)
}

func TestStringValue(t *testing.T) {
	assert.Equal(t, "17", StringValue(json.Number("17")))
	assert.Equal(t, "abc", StringValue("abc"))
	assert.Equal(t, "1.5", StringValue(1.5))
	assert.Equal(t, "", StringValue(nil))
	assert.Equal(t, "", StringValue(map[string]any{}))
	assert.Equal(t, "b", FirstString(map[string]any{"x": "", "y": "b"}, "x", "y"))
}
