package audit

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nerrad567/gray-logic-telemetry/internal/iot"
)

const (
	defaultBufferSize = 256
	writeTimeout      = 5 * time.Second
)

// Logger defines the logging interface used by the Recorder.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Recorder is an iot.EventSink that writes lifecycle events to a Repository
// from a background goroutine. Publish never blocks: when the buffer is
// full the event is counted as dropped.
//
// Recorded types are group and device start/stop plus query completion.
// Temperature recordings are not audited.
//
// Thread Safety:
//   - Publish is safe for concurrent use. Start and Close are called once.
type Recorder struct {
	repo   Repository
	logger Logger
	events chan iot.Event
	done   chan struct{}

	mu      sync.RWMutex
	closed  bool
	dropped atomic.Uint64
}

// NewRecorder creates a Recorder. Call Start to begin writing.
//
// Parameters:
//   - repo: Destination repository
//   - bufferSize: Events held while the writer is busy (non-positive uses a default)
//   - logger: Logger for write failures (nil disables logging)
func NewRecorder(repo Repository, bufferSize int, logger Logger) *Recorder {
	if bufferSize <= 0 {
		bufferSize = defaultBufferSize
	}
	if logger == nil {
		logger = noopLogger{}
	}
	return &Recorder{
		repo:   repo,
		logger: logger,
		events: make(chan iot.Event, bufferSize),
		done:   make(chan struct{}),
	}
}

// Start launches the writer goroutine.
func (r *Recorder) Start() {
	go r.run()
}

// Publish implements iot.EventSink.
func (r *Recorder) Publish(event iot.Event) {
	if !audited(event.Type) {
		return
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		return
	}
	select {
	case r.events <- event:
	default:
		r.dropped.Add(1)
	}
}

// Dropped returns how many events were discarded because the buffer was full.
func (r *Recorder) Dropped() uint64 {
	return r.dropped.Load()
}

// Close stops accepting events and waits for buffered ones to be written.
//
// Returns:
//   - error: ctx.Err() if the writer did not drain in time
func (r *Recorder) Close(ctx context.Context) error {
	r.mu.Lock()
	if !r.closed {
		r.closed = true
		close(r.events)
	}
	r.mu.Unlock()

	select {
	case <-r.done:
		if n := r.Dropped(); n > 0 {
			r.logger.Warn("audit events dropped", "count", n)
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("draining audit recorder: %w", ctx.Err())
	}
}

func (r *Recorder) run() {
	defer close(r.done)
	for event := range r.events {
		ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
		if err := r.repo.Create(ctx, entryFor(event)); err != nil {
			r.logger.Error("writing audit entry failed",
				"event_type", event.Type,
				"group", event.GroupID,
				"error", err,
			)
		}
		cancel()
	}
}

func audited(t iot.EventType) bool {
	switch t {
	case iot.EventGroupStarted, iot.EventGroupStopped,
		iot.EventDeviceStarted, iot.EventDeviceStopped,
		iot.EventQueryCompleted:
		return true
	default:
		return false
	}
}

// entryFor converts an event into an audit entry. Query completions keep a
// summary per reading kind rather than the readings themselves.
func entryFor(event iot.Event) *Entry {
	entry := &Entry{
		EventType: string(event.Type),
		GroupID:   event.GroupID,
		DeviceID:  event.DeviceID,
		RequestID: event.RequestID,
		CreatedAt: event.Timestamp,
	}

	if event.Type == iot.EventQueryCompleted {
		counts := make(map[string]any)
		for kind, n := range iot.CountByKind(event.Temperatures) {
			counts[string(kind)] = n
		}
		entry.Details = map[string]any{
			"devices":     len(event.Temperatures),
			"duration_ms": event.Duration.Milliseconds(),
			"readings":    counts,
		}
	}
	return entry
}
