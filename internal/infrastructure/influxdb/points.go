package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// Measurement names.
const (
	MeasurementTemperature = "temperature"
	MeasurementQuery       = "temperature_query"
)

// queryKinds are the reading kinds counted in every query point.
var queryKinds = []string{"value", "not_available", "device_terminated", "timed_out"}

// QueryOutcome summarises one aggregate query.
type QueryOutcome struct {
	GroupID   string
	RequestID int64
	Duration  time.Duration

	// Counts per reading kind. Missing kinds are written as zero.
	Counts map[string]int
}

// TemperaturePoint builds the point of one device reading.
func TemperaturePoint(groupID, deviceID string, celsius float64, at time.Time) *write.Point {
	return write.NewPointWithMeasurement(MeasurementTemperature).
		AddTag("group_id", groupID).
		AddTag("device_id", deviceID).
		AddField("celsius", celsius).
		SetTime(at).
		SortTags()
}

// QueryPoint builds the point of one aggregate query.
func QueryPoint(outcome QueryOutcome, at time.Time) *write.Point {
	total := 0
	for _, n := range outcome.Counts {
		total += n
	}
	p := write.NewPointWithMeasurement(MeasurementQuery).
		AddTag("group_id", outcome.GroupID).
		AddField("devices", total).
		AddField("duration_ms", outcome.Duration.Milliseconds()).
		AddField("request_id", outcome.RequestID).
		SetTime(at)
	for _, kind := range queryKinds {
		p.AddField(kind, outcome.Counts[kind])
	}
	return p.SortFields()
}
