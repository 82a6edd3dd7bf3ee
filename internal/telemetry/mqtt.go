package telemetry

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nerrad567/gray-logic-telemetry/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-telemetry/internal/iot"
)

const defaultQueueSize = 64

// RetainedPublisher is the part of mqtt.Client used by MQTTPublisher.
type RetainedPublisher interface {
	PublishRetained(topic string, payload []byte) error
}

// Logger defines the logging interface used by the exporters.
type Logger interface {
	Debug(msg string, args ...any)
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Warn(string, ...any)  {}

// GroupTemperatures is the retained snapshot of a group's latest aggregate.
type GroupTemperatures struct {
	GroupID      string                 `json:"group_id"`
	RequestID    int64                  `json:"request_id"`
	Temperatures map[string]iot.Reading `json:"temperatures"`
	DurationMS   int64                  `json:"duration_ms"`
	Timestamp    time.Time              `json:"timestamp"`
}

// MQTTPublisher publishes query_completed events as retained snapshots.
//
// Publishing waits for the broker, so events are queued and published
// from a background goroutine. A full queue drops the event.
//
// Thread Safety:
//   - Publish is safe for concurrent use. Start and Close are called once.
type MQTTPublisher struct {
	client RetainedPublisher
	logger Logger
	queue  chan iot.Event
	done   chan struct{}

	mu      sync.RWMutex
	closed  bool
	dropped atomic.Uint64
}

// NewMQTTPublisher creates a publisher. Call Start to begin publishing.
//
// Parameters:
//   - client: Connected MQTT client
//   - queueSize: Events held while publishing (non-positive uses a default)
//   - logger: Logger for publish failures (nil disables logging)
func NewMQTTPublisher(client RetainedPublisher, queueSize int, logger Logger) *MQTTPublisher {
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}
	if logger == nil {
		logger = noopLogger{}
	}
	return &MQTTPublisher{
		client: client,
		logger: logger,
		queue:  make(chan iot.Event, queueSize),
		done:   make(chan struct{}),
	}
}

// Start launches the publishing goroutine.
func (p *MQTTPublisher) Start() {
	go p.run()
}

// Publish implements iot.EventSink.
func (p *MQTTPublisher) Publish(event iot.Event) {
	if event.Type != iot.EventQueryCompleted {
		return
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return
	}
	select {
	case p.queue <- event:
	default:
		p.dropped.Add(1)
	}
}

// Dropped returns how many snapshots were discarded because the queue was full.
func (p *MQTTPublisher) Dropped() uint64 {
	return p.dropped.Load()
}

// Close stops accepting events and waits for queued ones to be published.
func (p *MQTTPublisher) Close(ctx context.Context) error {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		close(p.queue)
	}
	p.mu.Unlock()

	select {
	case <-p.done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("draining mqtt publisher: %w", ctx.Err())
	}
}

func (p *MQTTPublisher) run() {
	defer close(p.done)
	for event := range p.queue {
		topic := mqtt.Topics{}.GroupTemperatures(event.GroupID)
		payload, err := json.Marshal(snapshotOf(event))
		if err != nil {
			p.logger.Warn("encoding group temperatures failed", "group", event.GroupID, "error", err)
			continue
		}
		if err := p.client.PublishRetained(topic, payload); err != nil {
			p.logger.Warn("publishing group temperatures failed", "topic", topic, "error", err)
			continue
		}
		p.logger.Debug("group temperatures published", "topic", topic, "devices", len(event.Temperatures))
	}
}

func snapshotOf(event iot.Event) GroupTemperatures {
	temps := event.Temperatures
	if temps == nil {
		temps = map[string]iot.Reading{}
	}
	return GroupTemperatures{
		GroupID:      event.GroupID,
		RequestID:    event.RequestID,
		Temperatures: temps,
		DurationMS:   event.Duration.Milliseconds(),
		Timestamp:    event.Timestamp,
	}
}
