package location

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	ggaMunich     = "$GPGGA,123519,4807.038,N,01131.000,E,1,08,0.9,545.4,M,46.9,M,,*47"
	ggaNoFix      = "$GPGGA,123520,4807.038,N,01131.000,E,0,00,,,M,,M,,*58"
	ggaNoumea     = "$GPGGA,123521,2216.500,S,16627.000,E,1,09,2.0,12.0,M,0.0,M,,*57"
	ggaSimulation = "$GPGGA,123522,3854.420,N,07702.160,W,8,12,0.1,20.0,M,0.0,M,,*55"
	rmcMunich     = "$GPRMC,123519,A,4807.038,N,01131.000,E,022.4,084.4,230394,003.1,W*6A"
)

var fixedNow = time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)

func newTestDeviceProvider(lines ...string) *DeviceSensorProvider {
	d := NewDeviceSensorProvider("/dev/ttyTEST", 9600, zerolog.Nop())
	d.open = func() (io.ReadCloser, error) {
		return io.NopCloser(strings.NewReader(strings.Join(lines, "\r\n") + "\r\n")), nil
	}
	d.now = func() time.Time { return fixedNow }
	return d
}

func collect(t *testing.T, stream <-chan Position) []Position {
	t.Helper()
	var out []Position
	timeout := time.After(time.Second)
	for {
		select {
		case p, ok := <-stream:
			if !ok {
				return out
			}
			out = append(out, p)
		case <-timeout:
			t.Fatal("stream did not close")
		}
	}
}

// TestDeviceSensorProvider_Stream tests that only GGA fixes with a position are emitted.
func TestDeviceSensorProvider_Stream(t *testing.T) {
	// Setup
	d := newTestDeviceProvider(
		"garbage",
		rmcMunich,
		ggaNoFix,
		ggaMunich,
		"$GPGGA,123519,4807.038,N,01131.000,E,1,08,0.9,545.4,M,46.9,M,,*00", // bad checksum
		ggaNoumea,
	)

	// Execute
	stream, err := d.Stream(context.Background())
	require.NoError(t, err)
	positions := collect(t, stream)

	// Assert
	require.Len(t, positions, 2)

	munich := positions[0]
	assert.InDelta(t, 48.1173, munich.Latitude, 1e-4)
	assert.InDelta(t, 11.5167, munich.Longitude, 1e-4)
	assert.InDelta(t, 545.4, munich.Altitude, 1e-9)
	assert.InDelta(t, 4.5, munich.Accuracy, 1e-9)
	assert.True(t, munich.HasAccuracy)
	assert.Equal(t, SourceGPS, munich.Source)
	assert.Equal(t, fixedNow, munich.Timestamp)
	assert.False(t, munich.Simulated)

	noumea := positions[1]
	assert.InDelta(t, -22.275, noumea.Latitude, 1e-4)
	assert.InDelta(t, 166.45, noumea.Longitude, 1e-4)
	assert.InDelta(t, 10.0, noumea.Accuracy, 1e-9)
}

// TestDeviceSensorProvider_SimulationFix tests that fix quality 8 marks the reading as simulated.
func TestDeviceSensorProvider_SimulationFix(t *testing.T) {
	d := newTestDeviceProvider(ggaSimulation)

	pos, ok := d.parseLine(ggaSimulation)

	require.True(t, ok)
	assert.True(t, pos.Simulated)
	assert.InDelta(t, 38.907, pos.Latitude, 1e-4)
	assert.InDelta(t, -77.036, pos.Longitude, 1e-4)
}

// TestDeviceSensorProvider_GetLocation tests that the first fix is returned.
func TestDeviceSensorProvider_GetLocation(t *testing.T) {
	// Setup
	d := newTestDeviceProvider(ggaNoFix, ggaNoumea, ggaMunich)

	// Execute
	pos, err := d.GetLocation(context.Background())

	// Assert
	require.NoError(t, err)
	assert.InDelta(t, -22.275, pos.Latitude, 1e-4)
}

// TestDeviceSensorProvider_GetLocation_NoFix tests that a stream without a fix reports a timeout.
func TestDeviceSensorProvider_GetLocation_NoFix(t *testing.T) {
	d := newTestDeviceProvider(ggaNoFix, rmcMunich)

	_, err := d.GetLocation(context.Background())

	assert.ErrorIs(t, err, ErrTimeout)
}

// TestDeviceSensorProvider_OpenError tests that an unopenable port is reported as unavailable.
func TestDeviceSensorProvider_OpenError(t *testing.T) {
	// Setup
	d := NewDeviceSensorProvider("/dev/ttyMISSING", 9600, zerolog.Nop())
	d.open = func() (io.ReadCloser, error) {
		return nil, errors.New("no such file or directory")
	}

	// Execute
	_, err := d.Stream(context.Background())

	// Assert
	assert.ErrorIs(t, err, ErrServiceUnavailable)
	assert.Contains(t, err.Error(), "/dev/ttyMISSING")
	assert.Equal(t, SourceGPS, d.Source())
	assert.NoError(t, d.Close())
}

// blockingPort never returns data until it is closed.
type blockingPort struct {
	closed chan struct{}
}

func (b *blockingPort) Read(p []byte) (int, error) {
	<-b.closed
	return 0, io.EOF
}

func (b *blockingPort) Close() error {
	close(b.closed)
	return nil
}

// TestDeviceSensorProvider_CancelClosesPort tests that cancelling the stream releases the serial port.
func TestDeviceSensorProvider_CancelClosesPort(t *testing.T) {
	// Setup
	port := &blockingPort{closed: make(chan struct{})}
	d := NewDeviceSensorProvider("/dev/ttyTEST", 9600, zerolog.Nop())
	d.open = func() (io.ReadCloser, error) { return port, nil }

	ctx, cancel := context.WithCancel(context.Background())
	stream, err := d.Stream(ctx)
	require.NoError(t, err)

	// Execute
	cancel()

	// Assert
	assert.Empty(t, collect(t, stream))
	select {
	case <-port.closed:
	default:
		t.Fatal("port was not closed")
	}
}

// TestDeviceSensorProvider_CloseEndsStreams tests that closing the provider releases the port of an active stream.
func TestDeviceSensorProvider_CloseEndsStreams(t *testing.T) {
	// Setup
	port := &blockingPort{closed: make(chan struct{})}
	d := NewDeviceSensorProvider("/dev/ttyTEST", 9600, zerolog.Nop())
	d.open = func() (io.ReadCloser, error) { return port, nil }

	stream, err := d.Stream(context.Background())
	require.NoError(t, err)

	// Execute
	require.NoError(t, d.Close())

	// Assert
	assert.Empty(t, collect(t, stream))
	select {
	case <-port.closed:
	default:
		t.Fatal("port was not closed")
	}
	d.mu.Lock()
	assert.Empty(t, d.ports)
	d.mu.Unlock()
}
