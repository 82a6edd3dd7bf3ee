package influxdb

import "errors"

var (
	// ErrDisabled is returned by Open when the influxdb section is switched off.
	ErrDisabled = errors.New("influxdb: disabled in configuration")

	// ErrUnreachable is returned by Open and HealthCheck when the server does
	// not answer its ping or reports itself unhealthy.
	ErrUnreachable = errors.New("influxdb: server unreachable")

	// ErrClosed is returned by HealthCheck after Close.
	ErrClosed = errors.New("influxdb: history closed")
)
