package device

import "errors"

// Domain errors for the device package.
//
// These errors can be checked using errors.Is() for error handling:
//
//	if errors.Is(err, device.ErrDeviceNotFound) {
//	    // handle not found case
//	}
var (
	// ErrDeviceNotFound is returned when an address is not in the store.
	ErrDeviceNotFound = errors.New("device: not found")

	// ErrInvalidAddress is returned when an address is empty or malformed.
	ErrInvalidAddress = errors.New("device: invalid address")

	// ErrInvalidName is returned when a device name is too long.
	ErrInvalidName = errors.New("device: invalid name")

	// ErrInvalidConfig is returned when a config update is too large or
	// holds unsupported values.
	ErrInvalidConfig = errors.New("device: invalid config")

	// ErrNoRepository is returned by Load and Flush when no repository is set.
	ErrNoRepository = errors.New("device: no repository configured")
)
