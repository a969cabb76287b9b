package services

import (
	"context"
	"fmt"
	"time"

	"github.com/benmeehan/field-agent/internal/constants"
	"github.com/benmeehan/field-agent/pkg/backend"
	"github.com/benmeehan/field-agent/pkg/location"
	"github.com/benmeehan/field-agent/pkg/session"
	"github.com/rs/zerolog"
)

// AttendanceService logs workers in and out and records the matching clock-in and clock-out punches.
type AttendanceService struct {
	backend backend.ClientInterface
	session session.SessionInterface
	locator LocationSource
	logger  zerolog.Logger
	now     func() time.Time
}

// NewAttendanceService creates a new AttendanceService.
func NewAttendanceService(backendClient backend.ClientInterface, sess session.SessionInterface, locator LocationSource,
	logger zerolog.Logger) *AttendanceService {
	return &AttendanceService{
		backend: backendClient,
		session: sess,
		locator: locator,
		logger:  logger,
		now:     time.Now,
	}
}

// Login validates the access code with the backend, stores the session and clocks the worker in.
// A failed punch is logged and does not undo the login.
func (a *AttendanceService) Login(ctx context.Context, code string) (session.User, error) {
	if !validAccessCode(code) {
		return session.User{}, fmt.Errorf("%w: access code must be %d digits", ErrInvalidRequest, constants.AccessCodeLength)
	}

	result, err := a.backend.Login(ctx, code)
	if err != nil {
		a.logger.Warn().Err(err).Msg("Login rejected")
		return session.User{}, fmt.Errorf("login failed: %w", err)
	}

	user := session.User{ID: result.UserID, Name: result.UserName}
	if err := a.session.Save(user); err != nil {
		return session.User{}, fmt.Errorf("failed to store session: %w", err)
	}
	a.logger.Info().Str("user_id", user.ID).Str("user_name", user.Name).Msg("Worker logged in")

	if err := a.punch(ctx, user.ID, backend.PunchIn); err != nil {
		a.logger.Error().Err(err).Str("user_id", user.ID).Msg("Failed to record clock-in")
	}
	return user, nil
}

// Logout clocks the worker out and clears the session. The session is cleared even if the punch fails.
func (a *AttendanceService) Logout(ctx context.Context) error {
	userID := a.session.UserID()
	if userID == "" {
		return session.ErrNotLoggedIn
	}

	if err := a.punch(ctx, userID, backend.PunchOut); err != nil {
		a.logger.Error().Err(err).Str("user_id", userID).Msg("Failed to record clock-out")
	}

	if err := a.session.Clear(); err != nil {
		return fmt.Errorf("failed to clear session: %w", err)
	}
	a.logger.Info().Str("user_id", userID).Msg("Worker logged out")
	return nil
}

// Current returns the logged-in worker.
func (a *AttendanceService) Current() (session.User, bool) {
	return a.session.Current()
}

func (a *AttendanceService) punch(ctx context.Context, userID string, punchType int) error {
	pos := bestEffortPosition(ctx, a.locator, location.FreshnessForce, a.logger)

	return a.backend.Punch(ctx, backend.AttendancePunch{
		Time:      a.now().Format(backend.PunchTimeLayout),
		Latitude:  pos.Latitude,
		Longitude: pos.Longitude,
		Altitude:  pos.Altitude,
		Type:      punchType,
		UserID:    userID,
	})
}

func validAccessCode(code string) bool {
	if len(code) != constants.AccessCodeLength {
		return false
	}
	for _, c := range code {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}
