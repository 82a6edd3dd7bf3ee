// Package telemetry exports core events to the outside world.
//
// Both exporters implement iot.EventSink and are combined with the audit
// recorder through iot.MultiSink:
//
//   - InfluxSink writes recorded temperatures and query outcomes as
//     InfluxDB points.
//   - MQTTPublisher publishes every completed aggregate as a retained JSON
//     snapshot on graylogic/core/group/{group}/temperatures.
//
// Neither exporter blocks the publishing actor.
package telemetry
