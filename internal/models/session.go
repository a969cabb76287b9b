package models

// SessionInfo describes the logged-in worker to the local UI.
type SessionInfo struct {
	LoggedIn bool   `json:"logged_in"`
	UserID   string `json:"user_id,omitempty"`
	UserName string `json:"user_name,omitempty"`
}

// LoginRequest carries the access code typed on the PIN pad.
type LoginRequest struct {
	Code string `json:"code"`
}
