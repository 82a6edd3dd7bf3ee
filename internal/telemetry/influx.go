package telemetry

import (
	"time"

	"github.com/nerrad567/gray-logic-telemetry/internal/infrastructure/influxdb"
	"github.com/nerrad567/gray-logic-telemetry/internal/iot"
)

// PointWriter is the part of influxdb.History used by InfluxSink.
type PointWriter interface {
	WriteTemperature(groupID, deviceID string, celsius float64, at time.Time)
	WriteQueryResult(outcome influxdb.QueryOutcome, at time.Time)
}

// InfluxSink writes temperature_recorded and query_completed events to
// InfluxDB. Other events are ignored.
//
// influxdb.History batches in the background, so Publish returns
// without waiting for the network.
type InfluxSink struct {
	writer PointWriter
}

// NewInfluxSink creates a sink over a point writer.
func NewInfluxSink(writer PointWriter) *InfluxSink {
	return &InfluxSink{writer: writer}
}

// Publish implements iot.EventSink.
func (s *InfluxSink) Publish(event iot.Event) {
	switch event.Type {
	case iot.EventTemperatureRecorded:
		celsius, ok := event.Temperature.Get()
		if !ok {
			return
		}
		s.writer.WriteTemperature(event.GroupID, event.DeviceID, celsius, event.Timestamp)

	case iot.EventQueryCompleted:
		counts := make(map[string]int, 4)
		for kind, n := range iot.CountByKind(event.Temperatures) {
			counts[string(kind)] = n
		}
		s.writer.WriteQueryResult(influxdb.QueryOutcome{
			GroupID:   event.GroupID,
			RequestID: event.RequestID,
			Duration:  event.Duration,
			Counts:    counts,
		}, event.Timestamp)
	}
}
