package iot

import "time"

// EventType names a lifecycle or telemetry event of the core.
type EventType string

// Event types published by the core.
const (
	EventGroupStarted        EventType = "group_started"
	EventGroupStopped        EventType = "group_stopped"
	EventDeviceStarted       EventType = "device_started"
	EventDeviceStopped       EventType = "device_stopped"
	EventTemperatureRecorded EventType = "temperature_recorded"
	EventQueryCompleted      EventType = "query_completed"
)

// Event describes something that happened inside the core. Fields not
// relevant to the type are left at their zero value.
type Event struct {
	Type         EventType          `json:"type"`
	GroupID      string             `json:"group_id"`
	DeviceID     string             `json:"device_id,omitempty"`
	RequestID    int64              `json:"request_id,omitempty"`
	Temperature  Temperature        `json:"temperature,omitzero"`
	Temperatures map[string]Reading `json:"temperatures,omitempty"`
	Duration     time.Duration      `json:"duration_ns,omitempty"`
	Timestamp    time.Time          `json:"timestamp"`
}

// EventSink receives core events. Publish is called from actor goroutines and
// must not block.
type EventSink interface {
	Publish(event Event)
}

// EventSinkFunc adapts a function to EventSink.
type EventSinkFunc func(event Event)

// Publish implements EventSink.
func (f EventSinkFunc) Publish(event Event) {
	f(event)
}

// MultiSink publishes every event to each of its sinks in order.
type MultiSink []EventSink

// Publish implements EventSink.
func (m MultiSink) Publish(event Event) {
	for _, s := range m {
		if s != nil {
			s.Publish(event)
		}
	}
}

type noopSink struct{}

func (noopSink) Publish(Event) {}

func newEvent(t EventType, groupID, deviceID string) Event {
	return Event{
		Type:      t,
		GroupID:   groupID,
		DeviceID:  deviceID,
		Timestamp: time.Now().UTC(),
	}
}
