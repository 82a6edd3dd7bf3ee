package iot

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nerrad567/gray-logic-telemetry/internal/actor"
)

func spawnGroup(t *testing.T, sink EventSink) *actor.Ref[GroupCommand] {
	t.Helper()
	sys := newTestSystem(t)
	return actor.Spawn(sys, "group", newGroup("group", queryLimits{}, sink))
}

func listGroupDevices(t *testing.T, g *actor.Ref[GroupCommand]) []string {
	t.Helper()
	replies := actor.NewInbox[ReplyDeviceList]("list", 1)
	g.Tell(ListDevices{RequestID: 9, GroupID: "group", ReplyTo: replies.Ref()})
	got := receive(t, replies)
	require.Equal(t, int64(9), got.RequestID)
	return got.IDs
}

func TestGroup_TrackingIsIdempotent(t *testing.T) {
	g := spawnGroup(t, noopSink{})

	first := trackDevice(t, g, asGroupCommand, "group", "device")
	second := trackDevice(t, g, asGroupCommand, "group", "device")

	assert.Same(t, first, second)
	assert.Equal(t, []string{"device"}, listGroupDevices(t, g))
}

func TestGroup_DistinctDevicesGetDistinctHandles(t *testing.T) {
	g := spawnGroup(t, noopSink{})

	a := trackDevice(t, g, asGroupCommand, "group", "device1")
	b := trackDevice(t, g, asGroupCommand, "group", "device2")

	assert.NotSame(t, a, b)
	assert.NotEqual(t, a.ID(), b.ID())
}

func TestGroup_IgnoresRequestsForOtherGroups(t *testing.T) {
	g := spawnGroup(t, noopSink{})

	tracked := actor.NewInbox[DeviceRegistered]("track", 1)
	g.Tell(TrackDevice{GroupID: "wrong", DeviceID: "device", ReplyTo: tracked.Ref()})
	expectNoMessage(t, tracked)

	listed := actor.NewInbox[ReplyDeviceList]("list", 1)
	g.Tell(ListDevices{RequestID: 1, GroupID: "wrong", ReplyTo: listed.Ref()})
	expectNoMessage(t, listed)

	queried := actor.NewInbox[RespondAllTemperatures]("query", 1)
	g.Tell(RequestAllTemperatures{RequestID: 1, GroupID: "wrong", ReplyTo: queried.Ref()})
	expectNoMessage(t, queried)

	g.Tell(PassivateGroup{GroupID: "wrong"})
	assert.True(t, g.Alive())
}

func TestGroup_ListsSortedDeviceIDs(t *testing.T) {
	g := spawnGroup(t, noopSink{})

	assert.Equal(t, []string{}, listGroupDevices(t, g))

	trackDevice(t, g, asGroupCommand, "group", "device3")
	trackDevice(t, g, asGroupCommand, "group", "device1")
	trackDevice(t, g, asGroupCommand, "group", "device2")

	assert.Equal(t, []string{"device1", "device2", "device3"}, listGroupDevices(t, g))
}

func TestGroup_PassivatedDeviceIsRemovedAndRecreated(t *testing.T) {
	g := spawnGroup(t, noopSink{})

	old := trackDevice(t, g, asGroupCommand, "group", "device1")
	trackDevice(t, g, asGroupCommand, "group", "device2")

	g.Tell(PassivateDevice{GroupID: "group", DeviceID: "device1"})
	awaitStopped(t, old)

	assert.Equal(t, []string{"device2"}, listGroupDevices(t, g))

	renewed := trackDevice(t, g, asGroupCommand, "group", "device1")
	assert.NotSame(t, old, renewed)
	assert.True(t, renewed.Alive())
}

func TestGroup_FindDeviceNeverCreates(t *testing.T) {
	g := spawnGroup(t, noopSink{})
	dev := trackDevice(t, g, asGroupCommand, "group", "device1")
	replies := actor.NewInbox[DeviceFound]("find", 2)

	g.Tell(FindDevice{GroupID: "group", DeviceID: "device1", ReplyTo: replies.Ref()})
	assert.Same(t, dev, receive(t, replies).Device)

	g.Tell(FindDevice{GroupID: "group", DeviceID: "missing", ReplyTo: replies.Ref()})
	assert.Nil(t, receive(t, replies).Device)

	assert.Equal(t, []string{"device1"}, listGroupDevices(t, g))
}

func TestGroup_PassivateUnknownDeviceIsNoop(t *testing.T) {
	g := spawnGroup(t, noopSink{})
	trackDevice(t, g, asGroupCommand, "group", "device1")

	g.Tell(PassivateDevice{GroupID: "group", DeviceID: "missing"})

	assert.Equal(t, []string{"device1"}, listGroupDevices(t, g))
}

func TestGroup_QueryCollectsEveryDevice(t *testing.T) {
	g := spawnGroup(t, noopSink{})

	d1 := trackDevice(t, g, asGroupCommand, "group", "device1")
	d2 := trackDevice(t, g, asGroupCommand, "group", "device2")
	trackDevice(t, g, asGroupCommand, "group", "device3")
	recordTemperature(t, d1, 1, 1.0)
	recordTemperature(t, d2, 2, 2.0)

	replies := actor.NewInbox[RespondAllTemperatures]("query", 1)
	g.Tell(RequestAllTemperatures{RequestID: 5, GroupID: "group", ReplyTo: replies.Ref()})

	got := receive(t, replies)
	assert.Equal(t, int64(5), got.RequestID)
	assert.Equal(t, map[string]Reading{
		"device1": ValueReading(1.0),
		"device2": ValueReading(2.0),
		"device3": NotAvailable(),
	}, got.Temperatures)
}

func TestGroup_PassivateGroupStopsDevices(t *testing.T) {
	sink := &recordingSink{}
	g := spawnGroup(t, sink)

	d1 := trackDevice(t, g, asGroupCommand, "group", "device1")
	d2 := trackDevice(t, g, asGroupCommand, "group", "device2")

	g.Tell(PassivateGroup{GroupID: "group"})
	awaitStopped(t, g)

	assert.False(t, d1.Alive())
	assert.False(t, d2.Alive())
	assert.Len(t, sink.ofType(EventGroupStarted), 1)
	assert.Len(t, sink.ofType(EventGroupStopped), 1)
	assert.Len(t, sink.ofType(EventDeviceStopped), 2)
}
