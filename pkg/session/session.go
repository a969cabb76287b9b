package session

import (
	"errors"

	"github.com/benmeehan/field-agent/pkg/prefs"
)

// ErrNotLoggedIn is returned when an operation needs a logged-in worker.
var ErrNotLoggedIn = errors.New("no worker is logged in")

// User holds the identity of the logged-in delivery worker.
type User struct {
	ID   string `json:"user_id"`
	Name string `json:"user_name"`
}

// SessionInterface defines methods for managing the worker session.
type SessionInterface interface {
	Current() (User, bool)
	UserID() string
	Save(user User) error
	Clear() error
}

// Session keeps the worker identity in the preferences file so it survives restarts.
type Session struct {
	prefs *prefs.Preferences
}

// NewSession initializes a new Session on top of the preferences store.
func NewSession(p *prefs.Preferences) SessionInterface {
	return &Session{prefs: p}
}

// Current returns the logged-in worker, if any.
func (s *Session) Current() (User, bool) {
	id := s.prefs.String(prefs.KeyUserID, "")
	if id == "" {
		return User{}, false
	}
	return User{ID: id, Name: s.prefs.String(prefs.KeyUserName, "")}, true
}

// UserID returns the logged-in worker id, or an empty string.
func (s *Session) UserID() string {
	return s.prefs.String(prefs.KeyUserID, "")
}

// Save stores the worker identity.
func (s *Session) Save(user User) error {
	if user.ID == "" {
		return errors.New("user id is required")
	}
	return s.prefs.Set(map[string]any{
		prefs.KeyUserID:   user.ID,
		prefs.KeyUserName: user.Name,
	})
}

// Clear forgets the worker identity.
func (s *Session) Clear() error {
	return s.prefs.Remove(prefs.KeyUserID, prefs.KeyUserName)
}
