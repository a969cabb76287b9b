package backend

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// Punch types accepted by the attendance endpoint.
const (
	PunchIn  = 1
	PunchOut = 2
)

// PunchTimeLayout is the server's attendance timestamp format.
const PunchTimeLayout = "2006-01-02 15:04:05"

// LoginResult is the worker identity returned by a successful login.
type LoginResult struct {
	UserID   string
	UserName string
}

// AttendancePunch is a clock-in or clock-out record.
type AttendancePunch struct {
	Time      string  `json:"time"`
	Latitude  float64 `json:"lati"`
	Longitude float64 `json:"longi"`
	Altitude  float64 `json:"alti"`
	Type      int     `json:"type"`
	UserID    string  `json:"user_id"`
}

// DeliverySignature is the proof of delivery. Images are base64 encoded.
type DeliverySignature struct {
	DeliveryID   string `json:"delivery_id"`
	Signature    string `json:"signature"`
	InvoicePhoto string `json:"invoice_photo"`
	Comment      string `json:"comment"`
	Weight       string `json:"weight"`
	Satisfaction int    `json:"satisfaction"`
}

// SignCoordinate is the position where a delivery was signed.
type SignCoordinate struct {
	DeliveryID string  `json:"delivery_id"`
	UserID     string  `json:"user_id"`
	Latitude   float64 `json:"latitude"`
	Longitude  float64 `json:"longitude"`
	Altitude   float64 `json:"altitude"`
}

// LocationReport is the periodic worker position.
type LocationReport struct {
	UserID    string  `json:"user_id"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Altitude  float64 `json:"altitude"`
}

// parseLogin accepts the field spellings the backend has used over time.
func parseLogin(resp map[string]any) LoginResult {
	var result LoginResult
	user, _ := resp["user"].(map[string]any)

	switch {
	case has(resp, "user_id"):
		result.UserID = StringValue(resp["user_id"])
	case has(resp, "userId"):
		result.UserID = StringValue(resp["userId"])
	case has(resp, "id"):
		result.UserID = StringValue(resp["id"])
	case user != nil:
		result.UserID = FirstString(user, "id", "user_id")
	}

	switch {
	case has(resp, "name"):
		result.UserName = StringValue(resp["name"])
	case has(resp, "user_name"):
		result.UserName = StringValue(resp["user_name"])
	case has(resp, "username"):
		result.UserName = StringValue(resp["username"])
	case user != nil:
		result.UserName = FirstString(user, "name", "user_name", "username")
	}

	return result
}

// deliveryRecords accepts either a bare array or an object wrapping it.
func deliveryRecords(resp any) ([]map[string]any, error) {
	var items []any
	switch v := resp.(type) {
	case nil:
		return nil, nil
	case []any:
		items = v
	case map[string]any:
		for _, key := range []string{"deliveries", "data", "items"} {
			if list, ok := v[key].([]any); ok {
				items = list
				break
			}
		}
		if items == nil {
			return nil, fmt.Errorf("delivery response has no delivery list")
		}
	default:
		return nil, fmt.Errorf("unexpected delivery response of type %T", resp)
	}

	records := make([]map[string]any, 0, len(items))
	for _, item := range items {
		if record, ok := item.(map[string]any); ok {
			records = append(records, record)
		}
	}
	return records, nil
}

func has(m map[string]any, key string) bool {
	v, ok := m[key]
	return ok && v != nil
}

// StringValue renders a decoded JSON scalar as a string. Null and objects yield "".
func StringValue(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case json.Number:
		return t.String()
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		return ""
	}
}

// FirstString returns the first non-empty value among keys.
func FirstString(m map[string]any, keys ...string) string {
	for _, key := range keys {
		if s := StringValue(m[key]); s != "" {
			return s
		}
	}
	return ""
}
