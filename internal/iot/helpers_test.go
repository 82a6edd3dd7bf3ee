package iot

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/nerrad567/gray-logic-telemetry/internal/actor"
)

const (
	waitTimeout = 2 * time.Second
	quietPeriod = 100 * time.Millisecond
)

func newTestSystem(t *testing.T) *actor.System {
	t.Helper()
	sys := actor.NewSystem(t.Name(), nil)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), waitTimeout)
		defer cancel()
		require.NoError(t, sys.Shutdown(ctx))
	})
	return sys
}

func receive[M any](t *testing.T, inbox *actor.Inbox[M]) M {
	t.Helper()
	msg, err := inbox.ReceiveWithin(waitTimeout)
	require.NoError(t, err)
	return msg
}

func expectNoMessage[M any](t *testing.T, inbox *actor.Inbox[M]) {
	t.Helper()
	_, err := inbox.ReceiveWithin(quietPeriod)
	require.ErrorIs(t, err, actor.ErrNoMessage)
}

func awaitStopped(t *testing.T, ref interface{ Done() <-chan struct{} }) {
	t.Helper()
	select {
	case <-ref.Done():
	case <-time.After(waitTimeout):
		t.Fatal("actor did not stop")
	}
}

// recordingSink collects published events.
type recordingSink struct {
	mu     sync.Mutex
	events []Event
}

func (s *recordingSink) Publish(e Event) {
	s.mu.Lock()
	s.events = append(s.events, e)
	s.mu.Unlock()
}

func (s *recordingSink) ofType(t EventType) []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Event
	for _, e := range s.events {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

// trackDevice sends TrackDevice to target and waits for the handle.
func trackDevice[M any](t *testing.T, target *actor.Ref[M], msg func(TrackDevice) M, groupID, deviceID string) *actor.Ref[DeviceCommand] {
	t.Helper()
	replies := actor.NewInbox[DeviceRegistered]("track", 1)
	target.Tell(msg(TrackDevice{GroupID: groupID, DeviceID: deviceID, ReplyTo: replies.Ref()}))
	return receive(t, replies).Device
}

func asGroupCommand(m TrackDevice) GroupCommand     { return m }
func asManagerCommand(m TrackDevice) ManagerCommand { return m }

// recordTemperature writes value to dev and waits for the acknowledgement.
func recordTemperature(t *testing.T, dev *actor.Ref[DeviceCommand], requestID int64, value float64) {
	t.Helper()
	acks := actor.NewInbox[TemperatureRecorded]("ack", 1)
	dev.Tell(RecordTemperature{RequestID: requestID, Value: value, ReplyTo: acks.Ref()})
	require.Equal(t, TemperatureRecorded{RequestID: requestID}, receive(t, acks))
}
