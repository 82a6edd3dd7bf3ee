package mqtt

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/nerrad567/gray-logic-telemetry/internal/infrastructure/config"
)

// Logger receives handler failures and reconnect notices.
// Compatible with logging.Logger and slog.Logger.
type Logger interface {
	Error(msg string, args ...any)
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Error(string, ...any) {}
func (noopLogger) Warn(string, ...any)  {}

// Hooks are optional callbacks fixed at Connect.
type Hooks struct {
	// Logger receives handler errors, recovered panics and reconnects.
	Logger Logger

	// OnConnect runs after every (re)connect, once subscriptions are restored.
	OnConnect func()

	// OnDisconnect runs when an established connection is lost.
	OnDisconnect func(err error)
}

// Client is the broker connection shared by the sensor bridge and the result
// publisher.
//
// It announces the service on the retained status topic, registers a will
// for unexpected disconnects and resubscribes the bridge's topic filters
// after every reconnect.
//
// Thread Safety:
//   - All methods are safe for concurrent use.
type Client struct {
	paho     pahomqtt.Client
	clientID string
	qos      byte
	hooks    Hooks
	log      Logger
	online   atomic.Bool
	filters  filterSet
}

// Connect dials the broker, retrying with exponential backoff.
//
// Parameters:
//   - ctx: Bounds the initial connection attempts
//   - cfg: MQTT section of the configuration; reconnect.max_attempts
//     limits the initial attempts (0 retries until ctx ends)
//   - hooks: Optional callbacks
//
// Returns:
//   - *Client: Connected and announced online
//   - error: ErrConnect wrapping the last failure
func Connect(ctx context.Context, cfg config.MQTTConfig, hooks Hooks) (*Client, error) {
	c := &Client{
		clientID: cfg.Broker.ClientID,
		qos:      byte(cfg.QoS), //nolint:gosec // validated to 0..2
		hooks:    hooks,
		log:      hooks.Logger,
		filters:  filterSet{byTopic: make(map[string]byte)},
	}
	if c.log == nil {
		c.log = noopLogger{}
	}

	opts := clientOptions(cfg).
		SetOnConnectHandler(func(pahomqtt.Client) { c.connected() }).
		SetConnectionLostHandler(func(_ pahomqtt.Client, err error) { c.lost(err) }).
		SetReconnectingHandler(func(pahomqtt.Client, *pahomqtt.ClientOptions) {
			c.log.Warn("MQTT reconnecting", "broker", brokerURL(cfg.Broker))
		})
	c.paho = pahomqtt.NewClient(opts)

	delay := seconds(cfg.Reconnect.InitialDelay, time.Second)
	maxDelay := seconds(cfg.Reconnect.MaxDelay, time.Minute)
	for attempt := 1; ; attempt++ {
		err := await(c.paho.Connect(), dialTimeout)
		if err == nil {
			c.online.Store(true)
			return c, nil
		}
		if cfg.Reconnect.MaxAttempts > 0 && attempt >= cfg.Reconnect.MaxAttempts {
			return nil, fmt.Errorf("%w: %s after %d attempts: %w", ErrConnect, brokerURL(cfg.Broker), attempt, err)
		}
		c.log.Warn("MQTT connect failed, retrying", "attempt", attempt, "delay", delay, "error", err)
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %s: %w", ErrConnect, brokerURL(cfg.Broker), ctx.Err())
		case <-time.After(delay):
		}
		delay = min(2*delay, maxDelay)
	}
}

// connected runs on every successful (re)connect.
func (c *Client) connected() {
	c.online.Store(true)
	if err := c.filters.resubscribe(c.paho); err != nil {
		c.log.Error("MQTT resubscribe failed", "error", err)
	}
	if err := c.announce(statusOnline, ""); err != nil {
		c.log.Warn("MQTT status publish failed", "error", err)
	}
	if c.hooks.OnConnect != nil {
		c.hooks.OnConnect()
	}
}

func (c *Client) lost(err error) {
	c.online.Store(false)
	if c.hooks.OnDisconnect != nil {
		c.hooks.OnDisconnect(err)
	}
}

// IsConnected reports whether the broker connection is up.
func (c *Client) IsConnected() bool {
	return c.paho != nil && c.online.Load() && c.paho.IsConnectionOpen()
}

// HealthCheck fails when the connection is down or ctx has ended.
func (c *Client) HealthCheck(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("mqtt health check: %w", err)
	}
	if !c.IsConnected() {
		return ErrNotConnected
	}
	return nil
}

// Close announces a graceful shutdown, which replaces the will, and
// disconnects after in-flight messages are sent.
func (c *Client) Close() error {
	if c.paho == nil {
		return nil
	}
	if c.IsConnected() {
		if err := c.announce(statusOffline, "graceful_shutdown"); err != nil {
			c.log.Warn("MQTT status publish failed", "error", err)
		}
	}
	c.online.Store(false)
	c.paho.Disconnect(quiesceMillis)
	return nil
}

// await waits for a paho token and maps its outcome onto package errors.
func await(token pahomqtt.Token, timeout time.Duration) error {
	if !token.WaitTimeout(timeout) {
		return fmt.Errorf("%w after %v", ErrTimeout, timeout)
	}
	return token.Error()
}
