package iot

import "github.com/nerrad567/gray-logic-telemetry/internal/actor"

// device owns one optional temperature reading.
type device struct {
	key    DeviceKey
	value  Temperature
	events EventSink
}

// newDevice returns the factory of a device actor.
func newDevice(key DeviceKey, events EventSink) actor.Factory[DeviceCommand] {
	return func(ctx *actor.Context[DeviceCommand]) actor.Behavior[DeviceCommand] {
		ctx.Log().Info("device started", "group", key.GroupID, "device", key.DeviceID)
		events.Publish(newEvent(EventDeviceStarted, key.GroupID, key.DeviceID))
		return &device{key: key, events: events}
	}
}

// Receive implements actor.Behavior.
func (d *device) Receive(ctx *actor.Context[DeviceCommand], msg DeviceCommand) {
	switch m := msg.(type) {
	case ReadTemperature:
		m.ReplyTo.Tell(RespondTemperature{
			RequestID: m.RequestID,
			DeviceID:  d.key.DeviceID,
			Value:     d.value,
		})

	case RecordTemperature:
		d.value = Celsius(m.Value)
		ctx.Log().Debug("temperature recorded", "device", d.key.DeviceID, "value", m.Value, "request_id", m.RequestID)

		ev := newEvent(EventTemperatureRecorded, d.key.GroupID, d.key.DeviceID)
		ev.RequestID = m.RequestID
		ev.Temperature = d.value
		d.events.Publish(ev)

		m.ReplyTo.Tell(TemperatureRecorded{RequestID: m.RequestID})

	case Passivate:
		ctx.Stop()
	}
}

// PostStop implements actor.PostStopper.
func (d *device) PostStop(ctx *actor.Context[DeviceCommand]) {
	ctx.Log().Info("device stopped", "group", d.key.GroupID, "device", d.key.DeviceID)
	d.events.Publish(newEvent(EventDeviceStopped, d.key.GroupID, d.key.DeviceID))
}
