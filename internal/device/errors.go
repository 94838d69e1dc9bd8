package device

import "errors"

// Domain-specific errors for device operations.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrDeviceNotFound is returned when a device does not exist.
	ErrDeviceNotFound = errors.New("device: not found")

	// ErrDeviceExists is returned when creating a device whose id is taken.
	ErrDeviceExists = errors.New("device: already exists")

	// ErrStatusNotFound is returned when a device has no stored status.
	ErrStatusNotFound = errors.New("device: status not found")
)
