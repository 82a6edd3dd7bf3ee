package sensor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nerrad567/gray-logic-telemetry/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-telemetry/internal/iot"
)

const (
	// submitTimeout bounds tracking a device for one reading.
	submitTimeout = 5 * time.Second

	// replyGrace is added to a query's timeout before the bridge gives up
	// waiting for the core's answer.
	replyGrace = time.Second
)

// MQTTClient is the part of mqtt.Client used by the bridge.
type MQTTClient interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
	Unsubscribe(topic string) error
}

// Core is the part of iot.Client used by the bridge.
type Core interface {
	SubmitTemperature(ctx context.Context, groupID, deviceID string, value float64) error
	RequestAllTemperatures(ctx context.Context, groupID string, timeout time.Duration) (map[string]iot.Reading, error)
}

// Logger defines the logging interface used by the bridge.
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

// BridgeOptions holds configuration for creating a bridge.
type BridgeOptions struct {
	// MQTTClient is the connected broker client.
	MQTTClient MQTTClient

	// Core receives readings and runs aggregate queries.
	Core Core

	// QoS for subscriptions and responses.
	QoS byte

	// DefaultQueryTimeout is the core's default, used to bound the wait
	// for requests without timeout_ms. Zero means iot.DefaultQueryTimeout.
	DefaultQueryTimeout time.Duration

	// MaxQueryTimeout caps timeout_ms so a request cannot pin a goroutine
	// indefinitely. Zero leaves it uncapped.
	MaxQueryTimeout time.Duration

	// Logger is optional.
	Logger Logger
}

// Metrics counts messages handled by the bridge.
type Metrics struct {
	ReadingsAccepted uint64 `json:"readings_accepted"`
	ReadingsRejected uint64 `json:"readings_rejected"`
	RequestsServed   uint64 `json:"requests_served"`
	RequestsFailed   uint64 `json:"requests_failed"`
}

// Bridge translates sensor MQTT traffic into core operations.
//
// Thread Safety: All methods are safe for concurrent use.
type Bridge struct {
	mqtt           MQTTClient
	core           Core
	qos            byte
	defaultTimeout time.Duration
	maxTimeout     time.Duration
	logger         Logger

	// mu guards subscribed and stopped; wg.Add only happens while !stopped.
	mu         sync.Mutex
	subscribed []string
	stopped    bool

	// Shutdown coordination
	ctx       context.Context
	ctxCancel context.CancelFunc
	wg        sync.WaitGroup
	stopOnce  sync.Once

	readingsAccepted atomic.Uint64
	readingsRejected atomic.Uint64
	requestsServed   atomic.Uint64
	requestsFailed   atomic.Uint64
}

// NewBridge creates a bridge. Call Start to subscribe.
func NewBridge(opts BridgeOptions) (*Bridge, error) {
	if opts.MQTTClient == nil {
		return nil, errors.New("sensor: MQTT client is required")
	}
	if opts.Core == nil {
		return nil, errors.New("sensor: core client is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = noopLogger{}
	}

	defaultTimeout := opts.DefaultQueryTimeout
	if defaultTimeout <= 0 {
		defaultTimeout = iot.DefaultQueryTimeout
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Bridge{
		mqtt:           opts.MQTTClient,
		core:           opts.Core,
		qos:            opts.QoS,
		defaultTimeout: defaultTimeout,
		maxTimeout:     opts.MaxQueryTimeout,
		logger:         logger,
		ctx:            ctx,
		ctxCancel:      cancel,
	}, nil
}

// Start subscribes to sensor readings and aggregate requests.
func (b *Bridge) Start() error {
	topics := mqtt.Topics{}
	subs := []struct {
		topic   string
		handler mqtt.MessageHandler
	}{
		{topics.AllSensorTemperatures(), b.handleReading},
		{topics.AllTemperatureRequests(), b.handleRequest},
	}

	for _, s := range subs {
		if err := b.mqtt.Subscribe(s.topic, b.qos, s.handler); err != nil {
			return fmt.Errorf("subscribe to %s: %w", s.topic, err)
		}
		b.mu.Lock()
		b.subscribed = append(b.subscribed, s.topic)
		b.mu.Unlock()
		b.logger.Info("subscribed", "topic", s.topic)
	}

	b.logger.Info("sensor bridge started")
	return nil
}

// Stop unsubscribes, cancels requests in flight and waits for them.
func (b *Bridge) Stop() {
	b.stopOnce.Do(func() {
		b.mu.Lock()
		topics := b.subscribed
		b.subscribed = nil
		b.stopped = true
		b.mu.Unlock()

		for _, topic := range topics {
			if err := b.mqtt.Unsubscribe(topic); err != nil {
				b.logger.Debug("unsubscribe failed", "topic", topic, "error", err)
			}
		}

		b.ctxCancel()
		b.wg.Wait()
		b.logger.Info("sensor bridge stopped")
	})
}

// Metrics returns a snapshot of the message counters.
func (b *Bridge) Metrics() Metrics {
	return Metrics{
		ReadingsAccepted: b.readingsAccepted.Load(),
		ReadingsRejected: b.readingsRejected.Load(),
		RequestsServed:   b.requestsServed.Load(),
		RequestsFailed:   b.requestsFailed.Load(),
	}
}

// handleReading processes one sensor reading.
func (b *Bridge) handleReading(topic string, payload []byte) error {
	if b.ctx.Err() != nil {
		return ErrStopped
	}

	groupID, deviceID, ok := mqtt.ParseSensorTopic(topic)
	if !ok {
		b.readingsRejected.Add(1)
		return fmt.Errorf("%w: %s", ErrInvalidTopic, topic)
	}
	value, err := parseReading(payload)
	if err != nil {
		b.readingsRejected.Add(1)
		return fmt.Errorf("reading on %s: %w", topic, err)
	}

	ctx, cancel := context.WithTimeout(b.ctx, submitTimeout)
	defer cancel()
	if err := b.core.SubmitTemperature(ctx, groupID, deviceID, value); err != nil {
		b.readingsRejected.Add(1)
		return fmt.Errorf("submitting reading %s/%s: %w", groupID, deviceID, err)
	}

	b.readingsAccepted.Add(1)
	b.logger.Debug("reading accepted", "group", groupID, "device", deviceID, "value", value)
	return nil
}

// handleRequest validates an aggregate request and answers it asynchronously.
func (b *Bridge) handleRequest(topic string, payload []byte) error {
	if b.ctx.Err() != nil {
		return ErrStopped
	}

	groupID, ok := mqtt.ParseTemperatureRequestTopic(topic)
	if !ok {
		b.requestsFailed.Add(1)
		return fmt.Errorf("%w: %s", ErrInvalidTopic, topic)
	}
	req, err := parseRequest(payload)
	if err != nil {
		b.requestsFailed.Add(1)
		return fmt.Errorf("request on %s: %w", topic, err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.stopped {
		return ErrStopped
	}
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		b.answer(groupID, req)
	}()
	return nil
}

func (b *Bridge) answer(groupID string, req RequestMessage) {
	timeout := time.Duration(req.TimeoutMS) * time.Millisecond
	if b.maxTimeout > 0 && timeout > b.maxTimeout {
		timeout = b.maxTimeout
	}
	wait := timeout
	if wait == 0 {
		wait = b.defaultTimeout
	}

	ctx, cancel := context.WithTimeout(b.ctx, wait+replyGrace)
	defer cancel()

	resp := ResponseMessage{RequestID: req.RequestID, GroupID: groupID}
	temps, err := b.core.RequestAllTemperatures(ctx, groupID, timeout)
	if err != nil {
		b.requestsFailed.Add(1)
		resp.Error = err.Error()
		b.logger.Warn("aggregate request failed", "group", groupID, "request_id", req.RequestID, "error", err)
	} else {
		b.requestsServed.Add(1)
		resp.Success = true
		resp.Temperatures = temps
	}
	resp.Timestamp = time.Now().UTC()

	data, err := json.Marshal(resp)
	if err != nil {
		b.logger.Error("encoding aggregate response failed", "group", groupID, "error", err)
		return
	}
	topic := mqtt.Topics{}.TemperatureResponse(groupID)
	if err := b.mqtt.Publish(topic, data, b.qos, false); err != nil {
		b.logger.Warn("publishing aggregate response failed", "topic", topic, "error", err)
	}
}
