package location

import (
	"errors"

	"golang.org/x/sys/unix"
)

// Permission reports whether the agent may access location data.
type Permission interface {
	Granted() bool
}

// PermissionFunc adapts a function to the Permission interface.
type PermissionFunc func() bool

// Granted implements Permission.
func (f PermissionFunc) Granted() bool { return f() }

// DevicePermission is denied only when the OS refuses the agent read and write access to the
// GPS device node. A missing or unplugged receiver is granted; opening it then fails with
// ErrServiceUnavailable and the locator can fall back to the secondary source.
type DevicePermission struct {
	Path string
}

// Granted implements Permission.
func (d DevicePermission) Granted() bool {
	err := unix.Access(d.Path, unix.R_OK|unix.W_OK)
	return !errors.Is(err, unix.EACCES) && !errors.Is(err, unix.EPERM)
}

// AllPermissions is granted only when every member is granted.
type AllPermissions []Permission

// Granted implements Permission.
func (a AllPermissions) Granted() bool {
	for _, p := range a {
		if !p.Granted() {
			return false
		}
	}
	return true
}
