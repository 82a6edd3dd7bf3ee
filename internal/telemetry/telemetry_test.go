package telemetry

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nerrad567/gray-logic-telemetry/internal/infrastructure/influxdb"
	"github.com/nerrad567/gray-logic-telemetry/internal/iot"
)

type temperatureWrite struct {
	group, device string
	celsius       float64
	at            time.Time
}

type fakePointWriter struct {
	temperatures []temperatureWrite
	outcomes     []influxdb.QueryOutcome
}

func (f *fakePointWriter) WriteTemperature(groupID, deviceID string, celsius float64, at time.Time) {
	f.temperatures = append(f.temperatures, temperatureWrite{groupID, deviceID, celsius, at})
}

func (f *fakePointWriter) WriteQueryResult(outcome influxdb.QueryOutcome, _ time.Time) {
	f.outcomes = append(f.outcomes, outcome)
}

func TestInfluxSink(t *testing.T) {
	w := &fakePointWriter{}
	sink := NewInfluxSink(w)
	at := time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)

	sink.Publish(iot.Event{Type: iot.EventDeviceStarted, GroupID: "g", DeviceID: "d"})
	sink.Publish(iot.Event{
		Type:        iot.EventTemperatureRecorded,
		GroupID:     "g",
		DeviceID:    "d",
		Temperature: iot.Celsius(21.5),
		Timestamp:   at,
	})
	sink.Publish(iot.Event{Type: iot.EventTemperatureRecorded, GroupID: "g", DeviceID: "d"})
	sink.Publish(iot.Event{
		Type:      iot.EventQueryCompleted,
		GroupID:   "g",
		RequestID: 5,
		Duration:  time.Second,
		Temperatures: map[string]iot.Reading{
			"d": iot.ValueReading(21.5),
			"e": iot.DeviceTerminated(),
		},
	})

	assert.Equal(t, []temperatureWrite{{"g", "d", 21.5, at}}, w.temperatures)
	require.Len(t, w.outcomes, 1)
	assert.Equal(t, influxdb.QueryOutcome{
		GroupID:   "g",
		RequestID: 5,
		Duration:  time.Second,
		Counts:    map[string]int{"value": 1, "device_terminated": 1},
	}, w.outcomes[0])
}

type published struct {
	topic   string
	payload []byte
}

type fakeRetainedPublisher struct {
	mu    sync.Mutex
	msgs  []published
	fail  bool
	block chan struct{}
}

func (f *fakeRetainedPublisher) PublishRetained(topic string, payload []byte) error {
	if f.block != nil {
		<-f.block
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return errors.New("not connected")
	}
	f.msgs = append(f.msgs, published{topic, payload})
	return nil
}

func (f *fakeRetainedPublisher) snapshot() []published {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]published(nil), f.msgs...)
}

func closePublisher(t *testing.T, p *MQTTPublisher) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, p.Close(ctx))
}

func TestMQTTPublisher_PublishesQueryResults(t *testing.T) {
	client := &fakeRetainedPublisher{}
	p := NewMQTTPublisher(client, 8, nil)
	p.Start()

	p.Publish(iot.Event{Type: iot.EventGroupStarted, GroupID: "kitchen"})
	p.Publish(iot.Event{
		Type:      iot.EventQueryCompleted,
		GroupID:   "kitchen",
		RequestID: 12,
		Duration:  250 * time.Millisecond,
		Temperatures: map[string]iot.Reading{
			"t1": iot.ValueReading(20.5),
			"t2": iot.TimedOut(),
		},
	})
	closePublisher(t, p)

	msgs := client.snapshot()
	require.Len(t, msgs, 1)
	assert.Equal(t, "graylogic/core/group/kitchen/temperatures", msgs[0].topic)

	var got GroupTemperatures
	require.NoError(t, json.Unmarshal(msgs[0].payload, &got))
	assert.Equal(t, "kitchen", got.GroupID)
	assert.Equal(t, int64(12), got.RequestID)
	assert.Equal(t, int64(250), got.DurationMS)
	assert.Equal(t, map[string]iot.Reading{
		"t1": iot.ValueReading(20.5),
		"t2": iot.TimedOut(),
	}, got.Temperatures)
}

func TestMQTTPublisher_EmptyGroupPublishesEmptyObject(t *testing.T) {
	client := &fakeRetainedPublisher{}
	p := NewMQTTPublisher(client, 8, nil)
	p.Start()

	p.Publish(iot.Event{Type: iot.EventQueryCompleted, GroupID: "empty"})
	closePublisher(t, p)

	msgs := client.snapshot()
	require.Len(t, msgs, 1)
	assert.Contains(t, string(msgs[0].payload), `"temperatures":{}`)
}

func TestMQTTPublisher_DropsWhenQueueFull(t *testing.T) {
	client := &fakeRetainedPublisher{block: make(chan struct{})}
	p := NewMQTTPublisher(client, 1, nil)

	event := iot.Event{Type: iot.EventQueryCompleted, GroupID: "g"}
	p.Publish(event)
	p.Publish(event)
	assert.Equal(t, uint64(1), p.Dropped())

	close(client.block)
	p.Start()
	closePublisher(t, p)
	assert.Len(t, client.snapshot(), 1)
}

func TestMQTTPublisher_FailuresDoNotStopPublishing(t *testing.T) {
	client := &fakeRetainedPublisher{fail: true}
	p := NewMQTTPublisher(client, 4, nil)
	p.Start()

	p.Publish(iot.Event{Type: iot.EventQueryCompleted, GroupID: "g"})
	p.Publish(iot.Event{Type: iot.EventQueryCompleted, GroupID: "h"})
	closePublisher(t, p)

	assert.Empty(t, client.snapshot())
	assert.NotPanics(t, func() {
		p.Publish(iot.Event{Type: iot.EventQueryCompleted, GroupID: "late"})
	})
}
