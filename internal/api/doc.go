// Package api implements the HTTP REST API and WebSocket event stream of the
// telemetry core.
//
// This package provides:
//   - REST endpoints to track, read, record and passivate devices
//   - Aggregate group queries with a caller-supplied timeout
//   - A WebSocket hub that relays core lifecycle and query events
//   - Audit log listing when the database is enabled
//   - Middleware stack (request ID, logging, recovery, CORS, body limit)
//
// # Architecture
//
// Handlers call the device registry through a blocking client (Core); every
// call is bounded by a context so a stalled actor never pins a request.
// Events flow the other way: the device manager publishes into the Hub,
// which fans them out to subscribed WebSocket clients.
//
// # Error Mapping
//
//	iot.ErrInvalidID        → 400
//	iot.ErrDeviceNotTracked → 404
//	iot.ErrUnavailable      → 503
//
// A group query that runs into its timeout is not an error: devices that did
// not answer are reported with the timed_out kind.
package api
