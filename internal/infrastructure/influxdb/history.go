package influxdb

import (
	"context"
	"fmt"
	"sync"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"

	"github.com/nerrad567/gray-logic-telemetry/internal/infrastructure/config"
)

const (
	openTimeout = 10 * time.Second
	pingTimeout = 5 * time.Second

	defaultBatchSize     = 100
	defaultFlushInterval = 10 * time.Second
)

// History is the temperature history in one InfluxDB bucket.
//
// Points go through the batched, non-blocking write API. The history is
// never queried back.
//
// Thread Safety:
//   - All methods are safe for concurrent use.
type History struct {
	client influxdb2.Client
	writes api.WriteAPI

	mu     sync.RWMutex
	closed bool
}

// Open connects to InfluxDB and prepares the write API of the configured bucket.
//
// Parameters:
//   - cfg: InfluxDB section of the configuration
//   - onError: Receives asynchronous batch write failures (may be nil)
//
// Returns:
//   - *History: Ready for writes
//   - error: ErrDisabled, or ErrUnreachable if the ping fails
func Open(cfg config.InfluxDBConfig, onError func(error)) (*History, error) {
	if !cfg.Enabled {
		return nil, ErrDisabled
	}

	client := influxdb2.NewClientWithOptions(cfg.URL, cfg.Token, clientOptions(cfg))

	ctx, cancel := context.WithTimeout(context.Background(), openTimeout)
	defer cancel()
	if err := ping(ctx, client); err != nil {
		client.Close()
		return nil, err
	}

	h := &History{
		client: client,
		writes: client.WriteAPI(cfg.Org, cfg.Bucket),
	}
	go h.forwardErrors(h.writes.Errors(), onError)
	return h, nil
}

// clientOptions maps the configured batching onto the client options.
func clientOptions(cfg config.InfluxDBConfig) *influxdb2.Options {
	batch := defaultBatchSize
	if cfg.BatchSize > 0 {
		batch = cfg.BatchSize
	}
	flush := defaultFlushInterval
	if cfg.FlushInterval > 0 {
		flush = time.Duration(cfg.FlushInterval) * time.Second
	}
	return influxdb2.DefaultOptions().
		SetApplicationName("graylogic-telemetry").
		SetBatchSize(uint(batch)).                  // #nosec G115 -- positive
		SetFlushInterval(uint(flush.Milliseconds())) // #nosec G115 -- positive
}

func ping(ctx context.Context, client influxdb2.Client) error {
	healthy, err := client.Ping(ctx)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUnreachable, err)
	}
	if !healthy {
		return fmt.Errorf("%w: server reports unhealthy", ErrUnreachable)
	}
	return nil
}

// forwardErrors drains the write API error channel. It ends when Close
// closes the channel.
func (h *History) forwardErrors(errs <-chan error, onError func(error)) {
	for err := range errs {
		if onError != nil {
			onError(err)
		}
	}
}

// WriteTemperature queues one device reading. Dropped after Close.
func (h *History) WriteTemperature(groupID, deviceID string, celsius float64, at time.Time) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.closed {
		return
	}
	h.writes.WritePoint(TemperaturePoint(groupID, deviceID, celsius, at))
}

// WriteQueryResult queues the outcome of one aggregate query. Dropped after Close.
func (h *History) WriteQueryResult(outcome QueryOutcome, at time.Time) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.closed {
		return
	}
	h.writes.WritePoint(QueryPoint(outcome, at))
}

// HealthCheck pings the server.
func (h *History) HealthCheck(ctx context.Context) error {
	h.mu.RLock()
	closed := h.closed
	h.mu.RUnlock()
	if closed {
		return ErrClosed
	}
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	return ping(ctx, h.client)
}

// Close sends every queued point and releases the client. Later calls are no-ops.
func (h *History) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.client == nil || h.closed {
		return nil
	}
	h.closed = true
	h.writes.Flush()
	h.client.Close()
	return nil
}
