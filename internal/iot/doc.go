// Package iot implements the telemetry core of Gray Logic: a hierarchical
// registry of temperature sensors grouped by owner, and a scatter-gather query
// that collects the current reading of every sensor in a group within a
// bounded time window.
//
// Every entity is an actor from package actor. State is owned by exactly one
// goroutine and changed only by messages, so the registries need no locks.
//
// # Architecture
//
//	┌────────────────────────────────────────────────────────────────────┐
//	│                         Manager (manager.go)                        │
//	│   groupID → *Ref[GroupCommand]      created lazily on TrackDevice   │
//	└───────────────┬────────────────────────────────────────────────────┘
//	                │ forwards by groupID
//	                ▼
//	┌────────────────────────────────────────────────────────────────────┐
//	│                       Group (group.go), one per group               │
//	│   deviceID → *Ref[DeviceCommand]    removed on device termination   │
//	└───────┬──────────────────────────────────────────┬─────────────────┘
//	        │ spawns / watches                         │ spawns per request
//	        ▼                                          ▼
//	┌──────────────────────┐                 ┌──────────────────────────────┐
//	│  Device (device.go)  │ ◀── Read ────── │  Group query (query.go)      │
//	│  optional reading    │ ── Respond ───▶ │  snapshot, deadline, collect │
//	└──────────────────────┘   via adapter   └──────────────────────────────┘
//
// # Query Semantics
//
// A query takes an immutable snapshot of the group's devices, watches each
// of them, asks each for its reading and arms a deadline. Every device gets
// exactly one Reading in the result:
//
//   - Value: the device answered with a stored temperature
//   - NotAvailable: the device answered but has never recorded a value
//   - DeviceTerminated: the device stopped before answering
//   - TimedOut: the deadline passed before an answer arrived
//
// Devices tracked after the query started are not part of its result. An
// empty group is answered immediately.
//
// # Usage
//
//	sys := actor.NewSystem("telemetry", log)
//	manager := iot.SpawnManager(sys, iot.ManagerConfig{Events: sink})
//	client := iot.NewClient(manager)
//
//	if err := client.RecordTemperature(ctx, "kitchen", "sensor-1", 21.5); err != nil {
//	    return err
//	}
//	readings, err := client.RequestAllTemperatures(ctx, "kitchen", 2*time.Second)
//
// # Thread Safety
//
// Message types are immutable values. Client is safe for concurrent use.
package iot
