package location

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"googlemaps.github.io/maps"
)

const defaultGeolocateTimeout = 10 * time.Second

// GoogleGeolocationProvider uses the Google Maps API to get location data.
type GoogleGeolocationProvider struct {
	client       *maps.Client // Maps API client for making geolocation requests
	httpClient   *http.Client // transport shared with client, released by Close
	modemIndex   int          // ModemManager index used for cell tower lookups
	pollInterval time.Duration
	logger       zerolog.Logger

	scanWiFi  func(ctx context.Context) ([]maps.WiFiAccessPoint, error)
	scanCells func(ctx context.Context, modemIndex int) ([]maps.CellTower, error)
	now       func() time.Time
}

// NewGoogleGeolocationProvider creates a new GoogleGeolocationProvider instance.
// Extra client options are passed through to the Maps client.
func NewGoogleGeolocationProvider(apiKey string, modemIndex int, pollInterval time.Duration, logger zerolog.Logger,
	opts ...maps.ClientOption) (*GoogleGeolocationProvider, error) {
	httpClient := &http.Client{}
	c, err := maps.NewClient(append([]maps.ClientOption{maps.WithAPIKey(apiKey), maps.WithHTTPClient(httpClient)}, opts...)...)
	if err != nil {
		return nil, err
	}

	if pollInterval <= 0 {
		pollInterval = 15 * time.Second
	}

	return &GoogleGeolocationProvider{
		client:       c,
		httpClient:   httpClient,
		modemIndex:   modemIndex,
		pollInterval: pollInterval,
		logger:       logger,
		scanWiFi:     getWiFiAccessPoints,
		scanCells:    getCellTowers,
		now:          time.Now,
	}, nil
}

// Source implements Provider.
func (g *GoogleGeolocationProvider) Source() Source {
	return SourceNetwork
}

// GetLocation retrieves the device's location using Google Maps Geolocation API.
func (g *GoogleGeolocationProvider) GetLocation(ctx context.Context) (Position, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultGeolocateTimeout)
	defer cancel()

	// Radio scans are best effort; the API falls back to IP geolocation without them.
	wifiAPs, err := g.scanWiFi(ctx)
	if err != nil {
		g.logger.Debug().Err(err).Msg("WiFi scan unavailable for geolocation")
	}

	cellTowers, err := g.scanCells(ctx, g.modemIndex)
	if err != nil {
		g.logger.Debug().Err(err).Int("modem", g.modemIndex).Msg("Cell tower scan unavailable for geolocation")
	}

	req := &maps.GeolocationRequest{
		ConsiderIP:       true,
		WiFiAccessPoints: wifiAPs,
		CellTowers:       cellTowers,
	}

	resp, err := g.client.Geolocate(ctx, req)
	if err != nil {
		return Position{}, fmt.Errorf("%w: geolocate: %v", ErrServiceUnavailable, err)
	}

	return Position{
		Latitude:    resp.Location.Lat,
		Longitude:   resp.Location.Lng,
		Timestamp:   g.now(),
		Accuracy:    resp.Accuracy,
		HasAccuracy: resp.Accuracy > 0,
		Source:      SourceNetwork,
	}, nil
}

// Stream polls the Geolocation API every poll interval, starting immediately.
// Failed polls are logged and skipped.
func (g *GoogleGeolocationProvider) Stream(ctx context.Context) (<-chan Position, error) {
	out := make(chan Position)

	go func() {
		defer close(out)

		ticker := time.NewTicker(g.pollInterval)
		defer ticker.Stop()

		for {
			pos, err := g.GetLocation(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				g.logger.Warn().Err(err).Msg("Network geolocation poll failed")
			} else {
				select {
				case out <- pos:
				case <-ctx.Done():
					return
				}
			}

			select {
			case <-ticker.C:
			case <-ctx.Done():
				return
			}
		}
	}()

	return out, nil
}

// Close implements Provider. It drops the idle keep-alive connections to the Geolocation API.
func (g *GoogleGeolocationProvider) Close() error {
	g.httpClient.CloseIdleConnections()
	return nil
}
