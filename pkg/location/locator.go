package location

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/rs/zerolog"
)

// Config tunes the acquisition heuristic.
type Config struct {
	MaxCacheAge              time.Duration // freshness threshold for FreshnessNormal
	ForceFreshMaxAge         time.Duration // freshness threshold for FreshnessForce
	AcquisitionWindow        time.Duration // how long a live acquisition waits for a good fix
	PrimaryTimeout           time.Duration // switch to the secondary source when the primary stays silent this long
	AccuracyThreshold        float64       // readings at or below this accuracy (meters) are accepted immediately
	MaxConsecutiveRejections int           // implausible primary readings before switching sources
	SingleShotTimeout        time.Duration // cap on the final single-shot request
	MaxReadingAge            time.Duration // live readings older than this are ignored
}

// DefaultConfig returns the thresholds used in the field.
func DefaultConfig() Config {
	return Config{
		MaxCacheAge:              300 * time.Second,
		ForceFreshMaxAge:         10 * time.Second,
		AcquisitionWindow:        60 * time.Second,
		PrimaryTimeout:           30 * time.Second,
		AccuracyThreshold:        50,
		MaxConsecutiveRejections: 3,
		SingleShotTimeout:        10 * time.Second,
		MaxReadingAge:            120 * time.Second,
	}
}

// Locator produces a best-effort current position from the cache, a primary (GPS)
// and an optional secondary (network) provider.
type Locator struct {
	cfg        Config
	cache      *Cache
	filter     *Filter
	permission Permission
	primary    Provider
	secondary  Provider
	clock      clock.Clock
	logger     zerolog.Logger

	mu           sync.Mutex
	useSecondary bool
	rejections   int
	liveSeq      uint64
	liveCancel   context.CancelCauseFunc
}

// NewLocator wires the acquisition heuristic. secondary, permission and clk may be nil.
func NewLocator(cfg Config, cache *Cache, filter *Filter, permission Permission, primary, secondary Provider,
	clk clock.Clock, logger zerolog.Logger) *Locator {
	if primary == nil {
		primary, secondary = secondary, nil
	}
	if clk == nil {
		clk = clock.New()
	}
	return &Locator{
		cfg:        cfg,
		cache:      cache,
		filter:     filter,
		permission: permission,
		primary:    primary,
		secondary:  secondary,
		clock:      clk,
		logger:     logger,
	}
}

// Locate returns the current position, blocking until it is known, ctx is done or every fallback failed.
func (l *Locator) Locate(ctx context.Context, req Request) (Position, error) {
	if l.permission != nil && !l.permission.Granted() {
		l.logger.Error().Msg("Location permission not granted")
		return Position{}, ErrPermissionDenied
	}

	now := l.clock.Now()
	if cached, ok := l.cache.Get(); ok {
		if err := l.filter.Check(cached, now); err != nil {
			if cerr := l.cache.Clear(); cerr != nil {
				l.logger.Error().Err(cerr).Msg("Failed to clear implausible cached position")
			}
		} else if age := cached.Age(now); age <= l.maxAge(req.Freshness) {
			l.logger.Debug().Dur("age_ms", age).Msg("Using cached position")
			cached.Source = SourceCached
			return cached, nil
		}
	}

	if l.primary == nil {
		return Position{}, fmt.Errorf("%w: no location provider configured", ErrServiceUnavailable)
	}
	return l.acquire(ctx)
}

// Cached returns the last accepted position without any freshness check.
func (l *Locator) Cached() (Position, bool) {
	return l.cache.Get()
}

// Reset returns to the primary source and clears the rejection counter.
func (l *Locator) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.useSecondary = false
	l.rejections = 0
}

// UsingSecondary reports whether requests currently go to the secondary source.
func (l *Locator) UsingSecondary() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.useSecondary
}

func (l *Locator) maxAge(f Freshness) time.Duration {
	if f == FreshnessForce {
		return l.cfg.ForceFreshMaxAge
	}
	return l.cfg.MaxCacheAge
}

// acquire runs one live acquisition: wait for a good fix, then fall back to the best
// reading seen, then to a single-shot request.
func (l *Locator) acquire(ctx context.Context) (Position, error) {
	liveCtx, finish := l.beginLive(ctx)
	defer finish()

	provider, stream, stopStream, err := l.subscribe(liveCtx)
	if err != nil {
		return Position{}, err
	}
	defer func() { stopStream() }()

	window := l.clock.Timer(l.cfg.AcquisitionWindow)
	defer window.Stop()

	var primaryTimeout <-chan time.Time
	if provider == l.primary && l.secondary != nil && l.cfg.PrimaryTimeout > 0 {
		t := l.clock.Timer(l.cfg.PrimaryTimeout)
		defer t.Stop()
		primaryTimeout = t.C
	}

	switchProvider := func(reason string) error {
		l.switchToSecondary(reason)
		stopStream()
		primaryTimeout = nil
		next, nextStream, nextStop, err := l.subscribe(liveCtx)
		if err != nil {
			return err
		}
		provider, stream, stopStream = next, nextStream, nextStop
		return nil
	}

	var best *Position
	rejected := 0

wait:
	for {
		select {
		case <-liveCtx.Done():
			return Position{}, liveErr(ctx, liveCtx)

		case <-window.C:
			break wait

		case <-primaryTimeout:
			primaryTimeout = nil
			if best == nil {
				if err := switchProvider(fmt.Sprintf("no fix within %s", l.cfg.PrimaryTimeout)); err != nil {
					return Position{}, err
				}
			}

		case p, ok := <-stream:
			if !ok {
				l.logger.Warn().Str("source", string(provider.Source())).Msg("Location stream ended early")
				break wait
			}

			now := l.clock.Now()
			if err := l.filter.Check(p, now); err != nil {
				rejected++
				if l.noteRejection(p.Source) {
					if err := switchProvider("consecutive implausible readings"); err != nil {
						return Position{}, err
					}
				}
				continue
			}

			if age := p.Age(now); l.cfg.MaxReadingAge > 0 && age > l.cfg.MaxReadingAge {
				l.logger.Debug().Dur("age_ms", age).Msg("Ignoring stale reading")
				continue
			}

			l.resetRejections()
			primaryTimeout = nil
			if best == nil || p.moreAccurateThan(*best) {
				candidate := p
				best = &candidate
			}

			if p.HasAccuracy && p.Accuracy <= l.cfg.AccuracyThreshold {
				return l.accept(p), nil
			}
		}
	}

	if best != nil {
		l.logger.Warn().
			Float64("accuracy", best.Accuracy).
			Bool("has_accuracy", best.HasAccuracy).
			Msg("Using best available position after acquisition window")
		return l.accept(*best), nil
	}
	stopStream()

	l.logger.Warn().Str("source", string(provider.Source())).Msg("No fix within acquisition window, trying single-shot request")
	shotCtx, cancel := l.clock.WithTimeout(liveCtx, l.cfg.SingleShotTimeout)
	defer cancel()

	p, err := provider.GetLocation(shotCtx)
	switch {
	case liveCtx.Err() != nil:
		return Position{}, liveErr(ctx, liveCtx)
	case err == nil:
		if ferr := l.filter.Check(p, l.clock.Now()); ferr == nil {
			return l.accept(p), nil
		}
		rejected++
		if l.noteRejection(p.Source) {
			l.switchToSecondary("consecutive implausible readings")
		}
	default:
		l.logger.Warn().Err(err).Msg("Single-shot location request failed")
	}

	if rejected > 0 {
		return Position{}, fmt.Errorf("%w: %d readings rejected and no plausible fix within %s",
			ErrImplausibleReading, rejected, l.cfg.AcquisitionWindow)
	}
	return Position{}, fmt.Errorf("%w within %s", ErrTimeout, l.cfg.AcquisitionWindow)
}

// beginLive registers a new live acquisition, cancelling any outstanding one.
func (l *Locator) beginLive(ctx context.Context) (context.Context, func()) {
	liveCtx, cancel := context.WithCancelCause(ctx)

	l.mu.Lock()
	if l.liveCancel != nil {
		l.logger.Debug().Msg("Cancelling outstanding location request")
		l.liveCancel(ErrSuperseded)
	}
	l.liveSeq++
	seq := l.liveSeq
	l.liveCancel = cancel
	l.mu.Unlock()

	return liveCtx, func() {
		l.mu.Lock()
		if l.liveSeq == seq {
			l.liveCancel = nil
		}
		l.mu.Unlock()
		cancel(context.Canceled)
	}
}

func liveErr(ctx, liveCtx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if cause := context.Cause(liveCtx); errors.Is(cause, ErrSuperseded) {
		return ErrSuperseded
	}
	return liveCtx.Err()
}

// subscribe opens the active provider's stream, selecting the secondary when the primary cannot be opened.
func (l *Locator) subscribe(ctx context.Context) (Provider, <-chan Position, context.CancelFunc, error) {
	provider := l.activeProvider()

	streamCtx, cancel := context.WithCancel(ctx)
	stream, err := provider.Stream(streamCtx)
	if err == nil {
		l.logger.Debug().Str("source", string(provider.Source())).Msg("Listening for location updates")
		return provider, stream, cancel, nil
	}
	cancel()

	if errors.Is(err, ErrServiceUnavailable) && provider == l.primary && l.secondary != nil {
		l.logger.Warn().Err(err).Msg("Primary location source unavailable")
		l.switchToSecondary("primary unavailable")
		return l.subscribe(ctx)
	}
	return nil, nil, nil, err
}

func (l *Locator) activeProvider() Provider {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.useSecondary && l.secondary != nil {
		return l.secondary
	}
	return l.primary
}

// noteRejection counts an implausible primary reading and reports whether the
// locator should switch to the secondary source.
func (l *Locator) noteRejection(src Source) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.useSecondary || l.secondary == nil || src != l.primary.Source() {
		return false
	}
	l.rejections++
	l.logger.Warn().
		Int("rejections", l.rejections).
		Int("max_rejections", l.cfg.MaxConsecutiveRejections).
		Msg("Primary source returned an implausible reading")
	return l.rejections >= l.cfg.MaxConsecutiveRejections
}

func (l *Locator) resetRejections() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.rejections = 0
}

func (l *Locator) switchToSecondary(reason string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.useSecondary || l.secondary == nil {
		return
	}
	l.useSecondary = true
	l.rejections = 0
	l.logger.Warn().
		Str("from", string(l.primary.Source())).
		Str("to", string(l.secondary.Source())).
		Str("reason", reason).
		Msg("Switched location source")
}

func (l *Locator) accept(p Position) Position {
	if err := l.cache.Put(p); err != nil {
		l.logger.Error().Err(err).Msg("Failed to cache position")
	}
	l.logger.Info().
		Float64("latitude", p.Latitude).
		Float64("longitude", p.Longitude).
		Float64("accuracy", p.Accuracy).
		Str("source", string(p.Source)).
		Msg("Location accepted")
	return p
}
