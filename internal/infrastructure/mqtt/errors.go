package mqtt

import "errors"

var (
	// ErrNotConnected is returned while the broker connection is down.
	ErrNotConnected = errors.New("mqtt: not connected to broker")

	// ErrConnect is returned by Connect when no attempt reached the broker.
	ErrConnect = errors.New("mqtt: cannot reach broker")

	// ErrTimeout is returned when the broker does not acknowledge in time.
	ErrTimeout = errors.New("mqtt: broker did not acknowledge in time")

	// ErrInvalidTopic is returned for an empty topic or filter.
	ErrInvalidTopic = errors.New("mqtt: empty topic")

	// ErrInvalidQoS is returned for a QoS above 2.
	ErrInvalidQoS = errors.New("mqtt: QoS must be 0, 1 or 2")

	// ErrPayloadTooLarge is returned for payloads above 1 MiB.
	ErrPayloadTooLarge = errors.New("mqtt: payload too large")

	// ErrNilHandler is returned by Subscribe without a handler.
	ErrNilHandler = errors.New("mqtt: nil message handler")
)
