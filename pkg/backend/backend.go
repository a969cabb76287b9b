package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// DefaultBaseURL is the production backend.
const DefaultBaseURL = "https://2ts.myrfid.nc/api"

const maxResponseSize = 4 << 20

// StatusError is returned for non-2xx responses.
type StatusError struct {
	Path       string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s returned status %d: %s", e.Path, e.StatusCode, e.Body)
}

// ClientInterface defines the backend endpoints used by the agent.
type ClientInterface interface {
	Login(ctx context.Context, code string) (LoginResult, error)
	Punch(ctx context.Context, punch AttendancePunch) error
	Deliveries(ctx context.Context, userID string) ([]map[string]any, error)
	CancelDelivery(ctx context.Context, id string) error
	SignDelivery(ctx context.Context, req DeliverySignature) error
	SignCoordinate(ctx context.Context, req SignCoordinate) error
	ReportLocation(ctx context.Context, req LocationReport) error
}

// Client posts JSON to the backend REST API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     zerolog.Logger
}

// NewClient creates a backend client. An empty baseURL selects DefaultBaseURL.
func NewClient(baseURL string, timeout time.Duration, logger zerolog.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

// Login exchanges a worker access code for the worker identity.
func (c *Client) Login(ctx context.Context, code string) (LoginResult, error) {
	var resp map[string]any
	if err := c.post(ctx, "/app/login", map[string]string{"code": code}, &resp); err != nil {
		return LoginResult{}, err
	}

	result := parseLogin(resp)
	if result.UserID == "" {
		return LoginResult{}, errors.New("login response carries no user id")
	}
	return result, nil
}

// Punch records a clock-in or clock-out.
func (c *Client) Punch(ctx context.Context, punch AttendancePunch) error {
	return c.post(ctx, "/app/excel/pointer", punch, nil)
}

// Deliveries returns the raw delivery records assigned to the worker.
func (c *Client) Deliveries(ctx context.Context, userID string) ([]map[string]any, error) {
	var resp any
	if err := c.post(ctx, "/app/delivery", map[string]string{"user_id": userID}, &resp); err != nil {
		return nil, err
	}
	return deliveryRecords(resp)
}

// CancelDelivery marks a delivery as cancelled.
func (c *Client) CancelDelivery(ctx context.Context, id string) error {
	return c.post(ctx, "/app/delivery_cancel", map[string]string{"id": id}, nil)
}

// SignDelivery submits the proof of delivery.
func (c *Client) SignDelivery(ctx context.Context, req DeliverySignature) error {
	return c.post(ctx, "/app/sign_delivery", req, nil)
}

// SignCoordinate records where a delivery was signed.
func (c *Client) SignCoordinate(ctx context.Context, req SignCoordinate) error {
	return c.post(ctx, "/app/sign_coordinate", req, nil)
}

// ReportLocation sends the worker's periodic position.
func (c *Client) ReportLocation(ctx context.Context, req LocationReport) error {
	return c.post(ctx, "/app/current_location", req, nil)
}

func (c *Client) post(ctx context.Context, path string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to serialize %s request: %w", path, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json; charset=utf-8")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s request failed: %w", path, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return fmt.Errorf("failed to read %s response: %w", path, err)
	}

	c.logger.Debug().Str("path", path).Int("status", resp.StatusCode).Msg("Backend request completed")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &StatusError{Path: path, StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(respBody))}
	}

	if out == nil || len(bytes.TrimSpace(respBody)) == 0 {
		return nil
	}

	decoder := json.NewDecoder(bytes.NewReader(respBody))
	decoder.UseNumber()
	if err := decoder.Decode(out); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", path, err)
	}
	return nil
}
