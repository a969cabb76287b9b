package services

import (
	"context"
	"errors"

	"github.com/benmeehan/field-agent/pkg/location"
	"github.com/rs/zerolog"
)

// ErrInvalidRequest marks caller mistakes such as a malformed access code or a missing delivery id.
var ErrInvalidRequest = errors.New("invalid request")

// LocationSource is the part of the locator the services depend on.
type LocationSource interface {
	Locate(ctx context.Context, req location.Request) (location.Position, error)
	Cached() (location.Position, bool)
	Reset()
}

// bestEffortPosition asks for a position and degrades to the cached reading, then to zero coordinates.
// Punches and signatures are still sent without a position.
func bestEffortPosition(ctx context.Context, locator LocationSource, freshness location.Freshness,
	logger zerolog.Logger) location.Position {
	pos, err := locator.Locate(ctx, location.Request{Freshness: freshness})
	if err == nil {
		return pos
	}

	if cached, ok := locator.Cached(); ok && !cached.IsZero() {
		logger.Warn().Err(err).Msg("Location unavailable, using last known position")
		return cached
	}

	logger.Warn().Err(err).Msg("Location unavailable and nothing cached, sending zero coordinates")
	return location.Position{}
}
