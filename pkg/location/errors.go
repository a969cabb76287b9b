package location

import "errors"

var (
	// ErrPermissionDenied is returned before any provider is touched when location access is not granted.
	ErrPermissionDenied = errors.New("location permission not granted")
	// ErrServiceUnavailable is returned when a positioning source cannot be opened.
	ErrServiceUnavailable = errors.New("location service unavailable")
	// ErrTimeout is returned when the acquisition window and every fallback expired without a fix.
	ErrTimeout = errors.New("no location fix obtained")
	// ErrImplausibleReading marks readings rejected as mock or simulated.
	ErrImplausibleReading = errors.New("implausible location reading")
	// ErrSuperseded is returned to a live acquisition cancelled by a newer one.
	ErrSuperseded = errors.New("location request superseded")
)
