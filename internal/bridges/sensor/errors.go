package sensor

import "errors"

// Domain errors for the sensor bridge.
var (
	// ErrInvalidTopic is returned for a message on a topic the bridge cannot parse.
	ErrInvalidTopic = errors.New("sensor: invalid topic")

	// ErrInvalidPayload is returned for a payload that is not a valid message.
	ErrInvalidPayload = errors.New("sensor: invalid payload")

	// ErrStopped is returned for messages that arrive after Stop.
	ErrStopped = errors.New("sensor: bridge stopped")
)
