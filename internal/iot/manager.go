package iot

import (
	"time"

	"github.com/nerrad567/gray-logic-telemetry/internal/actor"
)

// ManagerName is the actor name of the manager spawned by SpawnManager.
const ManagerName = "device-manager"

// ManagerConfig configures the manager and the groups it creates.
type ManagerConfig struct {
	// DefaultQueryTimeout applies when a query carries no timeout.
	// Zero uses DefaultQueryTimeout.
	DefaultQueryTimeout time.Duration

	// MaxQueryTimeout caps caller-supplied timeouts. Zero disables the cap.
	MaxQueryTimeout time.Duration

	// Events receives lifecycle and telemetry events. Nil discards them.
	Events EventSink
}

// groupTerminated is delivered to the manager when a group stops.
type groupTerminated struct {
	groupID string
	group   *actor.Ref[GroupCommand]
}

func (groupTerminated) managerCommand() {}

// manager routes requests to groups by groupID.
type manager struct {
	groups map[string]*actor.Ref[GroupCommand]
	limits queryLimits
	events EventSink
}

// SpawnManager starts the top-level directory of groups.
//
// Parameters:
//   - sys: Actor system owning the tree
//   - cfg: Timeout policy and event sink
//
// Returns:
//   - *actor.Ref[ManagerCommand]: Handle that accepts every group-scoped request
func SpawnManager(sys *actor.System, cfg ManagerConfig) *actor.Ref[ManagerCommand] {
	return actor.Spawn(sys, ManagerName, NewManager(cfg))
}

// NewManager returns the factory of a manager actor, for callers that spawn it
// themselves.
func NewManager(cfg ManagerConfig) actor.Factory[ManagerCommand] {
	events := cfg.Events
	if events == nil {
		events = noopSink{}
	}
	limits := queryLimits{
		defaultTimeout: cfg.DefaultQueryTimeout,
		maxTimeout:     cfg.MaxQueryTimeout,
	}
	return func(ctx *actor.Context[ManagerCommand]) actor.Behavior[ManagerCommand] {
		ctx.Log().Info("device manager started")
		return &manager{
			groups: make(map[string]*actor.Ref[GroupCommand]),
			limits: limits,
			events: events,
		}
	}
}

// Receive implements actor.Behavior.
func (m *manager) Receive(ctx *actor.Context[ManagerCommand], msg ManagerCommand) {
	switch r := msg.(type) {
	case TrackDevice:
		g, ok := m.groups[r.GroupID]
		if !ok {
			ctx.Log().Info("creating device group actor", "group", r.GroupID)
			g = actor.SpawnChild[GroupCommand](ctx, "group-"+r.GroupID, newGroup(r.GroupID, m.limits, m.events))
			ctx.Watch(g, groupTerminated{groupID: r.GroupID, group: g})
			m.groups[r.GroupID] = g
		}
		g.Tell(r)

	case FindDevice:
		if g, ok := m.groups[r.GroupID]; ok {
			g.Tell(r)
			return
		}
		r.ReplyTo.Tell(DeviceFound{})

	case ListDevices:
		if g, ok := m.groups[r.GroupID]; ok {
			g.Tell(r)
			return
		}
		r.ReplyTo.Tell(ReplyDeviceList{RequestID: r.RequestID, IDs: []string{}})

	case RequestAllTemperatures:
		if g, ok := m.groups[r.GroupID]; ok {
			g.Tell(r)
			return
		}
		r.ReplyTo.Tell(RespondAllTemperatures{RequestID: r.RequestID, Temperatures: map[string]Reading{}})

	case PassivateDevice:
		if g, ok := m.groups[r.GroupID]; ok {
			g.Tell(r)
		}

	case PassivateGroup:
		g, ok := m.groups[r.GroupID]
		if !ok {
			return
		}
		// Forgotten before it terminates: a TrackDevice arriving in between
		// creates a fresh group.
		delete(m.groups, r.GroupID)
		g.Tell(r)

	case groupTerminated:
		ctx.Log().Info("device group actor has been terminated", "group", r.groupID)
		if cur, ok := m.groups[r.groupID]; ok && cur == r.group {
			delete(m.groups, r.groupID)
		}
	}
}

// PostStop implements actor.PostStopper.
func (m *manager) PostStop(ctx *actor.Context[ManagerCommand]) {
	ctx.Log().Info("device manager stopped")
}
