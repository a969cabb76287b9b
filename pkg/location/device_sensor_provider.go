package location

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/adrianmo/go-nmea"
	"github.com/rs/zerolog"
	"github.com/tarm/serial"
)

const (
	// nominalUERE converts HDOP into an estimated horizontal error in meters.
	nominalUERE = 5.0

	fixQualityInvalid    = "0"
	fixQualitySimulation = "8"
)

// DeviceSensorProvider is responsible for retrieving location data from a GPS device connected via serial port.
type DeviceSensorProvider struct {
	port     string // Serial port to which the GPS device is connected
	baudRate int    // Baud rate for the serial communication
	logger   zerolog.Logger

	open func() (io.ReadCloser, error)
	now  func() time.Time

	mu     sync.Mutex
	nextID int
	ports  map[int]func() // open streams by id, value closes the port
}

// NewDeviceSensorProvider creates a new instance of DeviceSensorProvider with the specified port and baud rate.
func NewDeviceSensorProvider(port string, baudRate int, logger zerolog.Logger) *DeviceSensorProvider {
	d := &DeviceSensorProvider{
		port:     port,
		baudRate: baudRate,
		logger:   logger,
		now:      time.Now,
		ports:    make(map[int]func()),
	}
	d.open = func() (io.ReadCloser, error) {
		return serial.OpenPort(&serial.Config{Name: d.port, Baud: d.baudRate})
	}
	return d
}

// Source implements Provider.
func (d *DeviceSensorProvider) Source() Source {
	return SourceGPS
}

// Stream reads NMEA sentences from the device and emits a Position for every GGA fix.
func (d *DeviceSensorProvider) Stream(ctx context.Context) (<-chan Position, error) {
	port, err := d.open()
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", ErrServiceUnavailable, d.port, err)
	}

	out := make(chan Position)
	var closeOnce sync.Once
	closePort := func() { closeOnce.Do(func() { _ = port.Close() }) }
	id := d.track(closePort)

	// Closing the port is the only way to unblock a pending read.
	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			closePort()
		case <-done:
		}
	}()

	go func() {
		defer close(out)
		defer close(done)
		defer d.untrack(id)
		defer closePort()

		scanner := bufio.NewScanner(port)
		for scanner.Scan() {
			pos, ok := d.parseLine(scanner.Text())
			if !ok {
				continue
			}
			select {
			case out <- pos:
			case <-ctx.Done():
				return
			}
		}

		if err := scanner.Err(); err != nil && ctx.Err() == nil {
			d.logger.Warn().Err(err).Str("port", d.port).Msg("GPS read stopped")
		}
	}()

	return out, nil
}

// GetLocation reads GPS data from the device and returns the first fix.
func (d *DeviceSensorProvider) GetLocation(ctx context.Context) (Position, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	stream, err := d.Stream(ctx)
	if err != nil {
		return Position{}, err
	}

	select {
	case pos, ok := <-stream:
		if !ok {
			return Position{}, fmt.Errorf("%w: no valid GPS data found", ErrTimeout)
		}
		return pos, nil
	case <-ctx.Done():
		return Position{}, ctx.Err()
	}
}

// Close implements Provider. It closes the serial port of every active stream, which ends those streams.
func (d *DeviceSensorProvider) Close() error {
	d.mu.Lock()
	closers := make([]func(), 0, len(d.ports))
	for _, closePort := range d.ports {
		closers = append(closers, closePort)
	}
	d.mu.Unlock()

	for _, closePort := range closers {
		closePort()
	}
	return nil
}

func (d *DeviceSensorProvider) track(closePort func()) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.nextID++
	d.ports[d.nextID] = closePort
	return d.nextID
}

func (d *DeviceSensorProvider) untrack(id int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.ports, id)
}

// parseLine converts a GGA sentence into a Position. Other sentences, checksum failures
// and fixes without a position are skipped.
func (d *DeviceSensorProvider) parseLine(line string) (Position, bool) {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, "$") {
		return Position{}, false
	}

	sentence, err := nmea.Parse(line)
	if err != nil {
		d.logger.Debug().Err(err).Str("line", line).Msg("Skipping malformed NMEA sentence")
		return Position{}, false
	}

	gga, ok := sentence.(nmea.GGA)
	if !ok {
		return Position{}, false
	}
	if gga.FixQuality == fixQualityInvalid || gga.FixQuality == "" {
		return Position{}, false
	}

	return Position{
		Latitude:    gga.Latitude,
		Longitude:   gga.Longitude,
		Altitude:    gga.Altitude,
		Timestamp:   d.now(),
		Accuracy:    gga.HDOP * nominalUERE,
		HasAccuracy: gga.HDOP > 0,
		Source:      SourceGPS,
		Simulated:   gga.FixQuality == fixQualitySimulation,
	}, true
}
