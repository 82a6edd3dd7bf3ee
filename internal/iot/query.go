package iot

import (
	"time"

	"github.com/nerrad567/gray-logic-telemetry/internal/actor"
)

const queryTimerKey = "query-timeout"

// queryCommand is the private protocol of a group query.
type queryCommand interface {
	queryCommand()
}

// queryTimeout fires when the deadline passes.
type queryTimeout struct{}

// deviceReply is a device's answer tagged, by its adapter, with the device it came from.
type deviceReply struct {
	deviceID string
	reply    RespondTemperature
}

// queryDeviceTerminated is delivered when a snapshot device stops.
type queryDeviceTerminated struct {
	deviceID string
}

func (queryTimeout) queryCommand()          {}
func (deviceReply) queryCommand()           {}
func (queryDeviceTerminated) queryCommand() {}

// queryRequest holds everything a group query needs at construction.
type queryRequest struct {
	requestID int64
	groupID   string
	snapshot  map[string]*actor.Ref[DeviceCommand]
	replyTo   *actor.Ref[RespondAllTemperatures]
	timeout   time.Duration
	events    EventSink
}

// groupQuery collects one Reading per snapshot device and answers once.
//
// stillWaiting and the keys of collected partition the snapshot at all times.
type groupQuery struct {
	req          queryRequest
	started      time.Time
	stillWaiting map[string]struct{}
	collected    map[string]Reading
}

// newGroupQuery returns the factory of a query actor over req.snapshot.
func newGroupQuery(req queryRequest) actor.Factory[queryCommand] {
	return func(ctx *actor.Context[queryCommand]) actor.Behavior[queryCommand] {
		q := &groupQuery{
			req:          req,
			started:      time.Now(),
			stillWaiting: make(map[string]struct{}, len(req.snapshot)),
			collected:    make(map[string]Reading, len(req.snapshot)),
		}

		ctx.StartSingleTimer(queryTimerKey, req.timeout, queryTimeout{})

		for deviceID, dev := range req.snapshot {
			q.stillWaiting[deviceID] = struct{}{}
			ctx.Watch(dev, queryDeviceTerminated{deviceID: deviceID})

			id := deviceID
			replyTo := actor.Adapt(ctx, func(r RespondTemperature) queryCommand {
				return deviceReply{deviceID: id, reply: r}
			})
			dev.Tell(ReadTemperature{RequestID: 0, ReplyTo: replyTo})
		}

		q.respondWhenAllCollected(ctx)
		return q
	}
}

// Receive implements actor.Behavior.
func (q *groupQuery) Receive(ctx *actor.Context[queryCommand], msg queryCommand) {
	switch m := msg.(type) {
	case deviceReply:
		q.resolve(m.deviceID, readingOf(m.reply.Value))

	case queryDeviceTerminated:
		q.resolve(m.deviceID, DeviceTerminated())

	case queryTimeout:
		for deviceID := range q.stillWaiting {
			q.resolve(deviceID, TimedOut())
		}
	}

	q.respondWhenAllCollected(ctx)
}

// resolve records r for deviceID unless it was already resolved.
func (q *groupQuery) resolve(deviceID string, r Reading) {
	if _, waiting := q.stillWaiting[deviceID]; !waiting {
		return
	}
	delete(q.stillWaiting, deviceID)
	q.collected[deviceID] = r
}

func (q *groupQuery) respondWhenAllCollected(ctx *actor.Context[queryCommand]) {
	if len(q.stillWaiting) > 0 {
		return
	}

	q.req.replyTo.Tell(RespondAllTemperatures{
		RequestID:    q.req.requestID,
		Temperatures: q.collected,
	})

	elapsed := time.Since(q.started)
	ctx.Log().Debug("group query completed",
		"group", q.req.groupID,
		"request_id", q.req.requestID,
		"devices", len(q.collected),
		"duration", elapsed,
	)

	ev := newEvent(EventQueryCompleted, q.req.groupID, "")
	ev.RequestID = q.req.requestID
	ev.Temperatures = q.collected
	ev.Duration = elapsed
	q.req.events.Publish(ev)

	ctx.CancelTimer(queryTimerKey)
	ctx.Stop()
}
