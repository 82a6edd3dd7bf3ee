package iot

import "errors"

// Domain errors for the iot package.
//
// These errors can be checked using errors.Is():
//
//	if errors.Is(err, iot.ErrDeviceNotTracked) {
//	    // respond 404
//	}
var (
	// ErrInvalidID is returned when a group or device ID is empty or malformed.
	ErrInvalidID = errors.New("iot: invalid id")

	// ErrDeviceNotTracked is returned when a device lookup finds no tracked device.
	ErrDeviceNotTracked = errors.New("iot: device not tracked")

	// ErrUnavailable is returned when the core did not answer a request.
	ErrUnavailable = errors.New("iot: core unavailable")
)
