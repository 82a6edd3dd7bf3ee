// Package sensor bridges MQTT temperature sensors into the telemetry core.
//
// The bridge subscribes to two topic families:
//
//	graylogic/sensor/{group}/{device}/temperature   {"value":21.5}
//	graylogic/request/temperatures/{group}          {"request_id":7,"timeout_ms":2000}
//
// A sensor reading tracks the device (creating group and device on first
// sight) and hands it the value without waiting for an acknowledgement.
// Readings therefore behave like the core's fire-and-forget records: the
// latest one a device processes wins.
//
// An aggregate request runs RequestAllTemperatures on the group and
// publishes the result on graylogic/response/temperatures/{group}, echoing
// the caller's request_id so that concurrent requesters can tell their
// answers apart.
//
// Requests run on their own goroutine; a slow query never stalls sensor
// ingest. Stop waits for requests in flight.
package sensor
