package iot

import (
	"maps"
	"slices"
	"time"

	"github.com/nerrad567/gray-logic-telemetry/internal/actor"
)

// deviceTerminated is delivered to a group when one of its devices stops.
type deviceTerminated struct {
	deviceID string
}

func (deviceTerminated) groupCommand() {}

// queryLimits carries the manager's timeout policy down to its groups.
type queryLimits struct {
	defaultTimeout time.Duration
	maxTimeout     time.Duration
}

// effective returns the timeout a query should run with.
func (l queryLimits) effective(requested time.Duration) time.Duration {
	d := requested
	if d <= 0 {
		d = l.defaultTimeout
	}
	if d <= 0 {
		d = DefaultQueryTimeout
	}
	if l.maxTimeout > 0 && d > l.maxTimeout {
		d = l.maxTimeout
	}
	return d
}

// group supervises the devices of one group.
type group struct {
	groupID string
	devices map[string]*actor.Ref[DeviceCommand]
	limits  queryLimits
	events  EventSink
}

// newGroup returns the factory of a group actor.
func newGroup(groupID string, limits queryLimits, events EventSink) actor.Factory[GroupCommand] {
	return func(ctx *actor.Context[GroupCommand]) actor.Behavior[GroupCommand] {
		ctx.Log().Info("device group started", "group", groupID)
		events.Publish(newEvent(EventGroupStarted, groupID, ""))
		return &group{
			groupID: groupID,
			devices: make(map[string]*actor.Ref[DeviceCommand]),
			limits:  limits,
			events:  events,
		}
	}
}

// Receive implements actor.Behavior.
func (g *group) Receive(ctx *actor.Context[GroupCommand], msg GroupCommand) {
	switch m := msg.(type) {
	case TrackDevice:
		if !g.owns(ctx, m.GroupID, "TrackDevice") {
			return
		}
		dev, ok := g.devices[m.DeviceID]
		if !ok {
			ctx.Log().Info("creating device actor", "device", m.DeviceID)
			dev = actor.SpawnChild[DeviceCommand](ctx, "device-"+m.DeviceID,
				newDevice(DeviceKey{GroupID: g.groupID, DeviceID: m.DeviceID}, g.events))
			ctx.Watch(dev, deviceTerminated{deviceID: m.DeviceID})
			g.devices[m.DeviceID] = dev
		}
		m.ReplyTo.Tell(DeviceRegistered{Device: dev})

	case FindDevice:
		if !g.owns(ctx, m.GroupID, "FindDevice") {
			return
		}
		m.ReplyTo.Tell(DeviceFound{Device: g.devices[m.DeviceID]})

	case ListDevices:
		if !g.owns(ctx, m.GroupID, "ListDevices") {
			return
		}
		m.ReplyTo.Tell(ReplyDeviceList{RequestID: m.RequestID, IDs: g.deviceIDs()})

	case RequestAllTemperatures:
		if !g.owns(ctx, m.GroupID, "RequestAllTemperatures") {
			return
		}
		actor.SpawnChild[queryCommand](ctx, "", newGroupQuery(queryRequest{
			requestID: m.RequestID,
			groupID:   g.groupID,
			snapshot:  maps.Clone(g.devices),
			replyTo:   m.ReplyTo,
			timeout:   g.limits.effective(m.Timeout),
			events:    g.events,
		}))

	case PassivateDevice:
		if !g.owns(ctx, m.GroupID, "PassivateDevice") {
			return
		}
		dev, ok := g.devices[m.DeviceID]
		if !ok {
			ctx.Log().Debug("passivate for untracked device ignored", "device", m.DeviceID)
			return
		}
		dev.Tell(Passivate{})

	case PassivateGroup:
		if !g.owns(ctx, m.GroupID, "PassivateGroup") {
			return
		}
		ctx.Stop()

	case deviceTerminated:
		ctx.Log().Info("device actor has been terminated", "device", m.deviceID)
		delete(g.devices, m.deviceID)
	}
}

// PostStop implements actor.PostStopper.
func (g *group) PostStop(ctx *actor.Context[GroupCommand]) {
	ctx.Log().Info("device group stopped", "group", g.groupID)
	g.events.Publish(newEvent(EventGroupStopped, g.groupID, ""))
}

// owns reports whether a group-scoped request is addressed to this group and
// logs a mismatch.
func (g *group) owns(ctx *actor.Context[GroupCommand], groupID, request string) bool {
	if groupID == g.groupID {
		return true
	}
	ctx.Log().Warn("ignoring request for another group",
		"request", request,
		"requested_group", groupID,
		"group", g.groupID,
	)
	return false
}

func (g *group) deviceIDs() []string {
	ids := slices.Collect(maps.Keys(g.devices))
	slices.Sort(ids)
	if ids == nil {
		ids = []string{}
	}
	return ids
}
