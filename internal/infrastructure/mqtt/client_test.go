package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/nerrad567/gray-logic-telemetry/internal/infrastructure/config"
)

func testConfig() config.MQTTConfig {
	return config.MQTTConfig{
		Enabled: true,
		Broker: config.MQTTBrokerConfig{
			Host:     "broker.local",
			Port:     8883,
			TLS:      true,
			ClientID: "graylogic-telemetry-test",
		},
		Auth: config.MQTTAuthConfig{
			Username: "telemetry",
			Password: "secret",
		},
		QoS: 1,
		Reconnect: config.MQTTReconnectConfig{
			InitialDelay: 2,
			MaxDelay:     30,
		},
	}
}

// offlineClient has never dialled the broker.
func offlineClient(log Logger) *Client {
	if log == nil {
		log = noopLogger{}
	}
	return &Client{
		clientID: "graylogic-telemetry-test",
		qos:      1,
		log:      log,
		filters:  filterSet{byTopic: make(map[string]byte)},
	}
}

func TestClientOptions(t *testing.T) {
	opts := clientOptions(testConfig())

	if len(opts.Servers) != 1 || opts.Servers[0].String() != "ssl://broker.local:8883" {
		t.Errorf("Servers = %v, want [ssl://broker.local:8883]", opts.Servers)
	}
	if opts.ClientID != "graylogic-telemetry-test" {
		t.Errorf("ClientID = %q", opts.ClientID)
	}
	if opts.Username != "telemetry" || opts.Password != "secret" {
		t.Errorf("credentials = %q/%q", opts.Username, opts.Password)
	}
	if !opts.AutoReconnect || opts.ConnectRetry {
		t.Errorf("AutoReconnect = %v, ConnectRetry = %v; want true, false", opts.AutoReconnect, opts.ConnectRetry)
	}
	if opts.MaxReconnectInterval != 30*time.Second {
		t.Errorf("MaxReconnectInterval = %v, want 30s", opts.MaxReconnectInterval)
	}
	if opts.TLSConfig == nil || opts.TLSConfig.MinVersion < 0x0303 {
		t.Error("TLS 1.2+ config expected when TLS is enabled")
	}
}

func TestClientOptions_PlainTCP(t *testing.T) {
	cfg := testConfig()
	cfg.Broker.TLS = false
	cfg.Broker.Port = 1883
	cfg.Auth = config.MQTTAuthConfig{}
	cfg.Reconnect.MaxDelay = 0

	opts := clientOptions(cfg)
	if opts.Servers[0].String() != "tcp://broker.local:1883" {
		t.Errorf("Servers[0] = %v", opts.Servers[0])
	}
	if opts.Username != "" {
		t.Errorf("Username = %q, want empty", opts.Username)
	}
	if opts.MaxReconnectInterval != time.Minute {
		t.Errorf("MaxReconnectInterval = %v, want the 1m fallback", opts.MaxReconnectInterval)
	}
}

func TestClientOptions_Will(t *testing.T) {
	opts := clientOptions(testConfig())

	if !opts.WillEnabled || !opts.WillRetained || opts.WillQos != 1 {
		t.Errorf("will enabled=%v retained=%v qos=%d", opts.WillEnabled, opts.WillRetained, opts.WillQos)
	}
	if opts.WillTopic != "graylogic/system/telemetry/status" {
		t.Errorf("WillTopic = %q", opts.WillTopic)
	}

	var status serviceStatus
	if err := json.Unmarshal(opts.WillPayload, &status); err != nil {
		t.Fatalf("will payload is not JSON: %v", err)
	}
	if status.Status != statusOffline || status.Reason != "unexpected_disconnect" || status.ClientID != "graylogic-telemetry-test" {
		t.Errorf("will status = %+v", status)
	}
}

func TestStatusPayload_OmitsEmptyReason(t *testing.T) {
	payload := statusPayload("c1", statusOnline, "")
	if strings.Contains(string(payload), "reason") {
		t.Errorf("payload %s should omit reason", payload)
	}
}

func TestConnect_GivesUpAfterMaxAttempts(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	port := ln.Addr().(*net.TCPAddr).Port
	ln.Close()

	cfg := testConfig()
	cfg.Broker = config.MQTTBrokerConfig{Host: "127.0.0.1", Port: port, ClientID: "unreachable"}
	cfg.Auth = config.MQTTAuthConfig{}
	cfg.Reconnect = config.MQTTReconnectConfig{InitialDelay: 1, MaxDelay: 1, MaxAttempts: 2}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	start := time.Now()
	_, err = Connect(ctx, cfg, Hooks{})
	if !errors.Is(err, ErrConnect) {
		t.Fatalf("Connect() error = %v, want ErrConnect", err)
	}
	if !strings.Contains(err.Error(), "after 2 attempts") {
		t.Errorf("Connect() error = %v, want the attempt count", err)
	}
	if elapsed := time.Since(start); elapsed < time.Second {
		t.Errorf("Connect() returned after %v, want one backoff delay between attempts", elapsed)
	}
}

func TestConnect_StopsWithContext(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	port := ln.Addr().(*net.TCPAddr).Port
	ln.Close()

	cfg := testConfig()
	cfg.Broker = config.MQTTBrokerConfig{Host: "127.0.0.1", Port: port, ClientID: "unreachable"}
	cfg.Auth = config.MQTTAuthConfig{}
	cfg.Reconnect = config.MQTTReconnectConfig{InitialDelay: 30, MaxDelay: 60}

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	_, err = Connect(ctx, cfg, Hooks{})
	if !errors.Is(err, ErrConnect) || !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Connect() error = %v, want ErrConnect wrapping the deadline", err)
	}
}

func TestOfflineClient(t *testing.T) {
	c := offlineClient(nil)

	if c.IsConnected() {
		t.Error("IsConnected() = true for a client that never connected")
	}
	if err := c.HealthCheck(context.Background()); !errors.Is(err, ErrNotConnected) {
		t.Errorf("HealthCheck() error = %v, want ErrNotConnected", err)
	}
	if err := c.Publish("graylogic/x", nil, 1, false); !errors.Is(err, ErrNotConnected) {
		t.Errorf("Publish() error = %v, want ErrNotConnected", err)
	}
	if err := c.PublishRetained("graylogic/x", nil); !errors.Is(err, ErrNotConnected) {
		t.Errorf("PublishRetained() error = %v, want ErrNotConnected", err)
	}
	noop := func(string, []byte) error { return nil }
	if err := c.Subscribe("graylogic/x", 1, noop); !errors.Is(err, ErrNotConnected) {
		t.Errorf("Subscribe() error = %v, want ErrNotConnected", err)
	}
	if len(c.filters.byTopic) != 0 {
		t.Errorf("filters = %v after failed subscribe", c.filters.byTopic)
	}
	if err := c.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
}

func TestHealthCheckCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := offlineClient(nil).HealthCheck(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("HealthCheck() error = %v, want context.Canceled", err)
	}
}

func TestPublishValidation(t *testing.T) {
	c := offlineClient(nil)

	tests := []struct {
		name    string
		topic   string
		payload []byte
		qos     byte
		want    error
	}{
		{"empty topic", "", nil, 1, ErrInvalidTopic},
		{"qos too high", "graylogic/x", nil, 3, ErrInvalidQoS},
		{"payload too large", "graylogic/x", make([]byte, maxPayloadSize+1), 1, ErrPayloadTooLarge},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := c.Publish(tt.topic, tt.payload, tt.qos, false); !errors.Is(err, tt.want) {
				t.Errorf("Publish() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestSubscribeValidation(t *testing.T) {
	c := offlineClient(nil)
	noop := func(string, []byte) error { return nil }

	if err := c.Subscribe("", 1, noop); !errors.Is(err, ErrInvalidTopic) {
		t.Errorf("empty filter: error = %v", err)
	}
	if err := c.Subscribe("graylogic/x", 3, noop); !errors.Is(err, ErrInvalidQoS) {
		t.Errorf("bad qos: error = %v", err)
	}
	if err := c.Subscribe("graylogic/x", 1, nil); !errors.Is(err, ErrNilHandler) {
		t.Errorf("nil handler: error = %v", err)
	}
	if err := c.Unsubscribe(""); !errors.Is(err, ErrInvalidTopic) {
		t.Errorf("Unsubscribe empty: error = %v", err)
	}
}

func TestUnsubscribeForgetsFilterWhileOffline(t *testing.T) {
	c := offlineClient(nil)
	c.filters.add(Topics{}.AllSensorTemperatures(), 1)

	if err := c.Unsubscribe(Topics{}.AllSensorTemperatures()); !errors.Is(err, ErrNotConnected) {
		t.Errorf("Unsubscribe() error = %v, want ErrNotConnected", err)
	}
	if len(c.filters.byTopic) != 0 {
		t.Errorf("filters = %v, want the filter forgotten", c.filters.byTopic)
	}
}

// resubscribeRecorder captures SubscribeMultiple calls.
type resubscribeRecorder struct {
	pahomqtt.Client
	got map[string]byte
}

func (r *resubscribeRecorder) SubscribeMultiple(filters map[string]byte, callback pahomqtt.MessageHandler) pahomqtt.Token {
	r.got = filters
	if callback != nil {
		panic("resubscribe must keep the routed handlers")
	}
	return doneToken{}
}

type doneToken struct{ pahomqtt.Token }

func (doneToken) WaitTimeout(time.Duration) bool { return true }
func (doneToken) Error() error                   { return nil }

func TestFilterSet_Resubscribe(t *testing.T) {
	f := filterSet{byTopic: make(map[string]byte)}
	rec := &resubscribeRecorder{}

	if err := f.resubscribe(rec); err != nil || rec.got != nil {
		t.Fatalf("empty set: err = %v, subscribed %v", err, rec.got)
	}

	f.add(Topics{}.AllSensorTemperatures(), 1)
	f.add(Topics{}.AllTemperatureRequests(), 2)
	f.remove(Topics{}.AllSensorTemperatures())
	f.add(Topics{}.AllSensorTemperatures(), 0)

	if err := f.resubscribe(rec); err != nil {
		t.Fatalf("resubscribe() error = %v", err)
	}
	want := map[string]byte{
		"graylogic/sensor/+/+/temperature": 0,
		"graylogic/request/temperatures/+": 2,
	}
	if len(rec.got) != len(want) {
		t.Fatalf("resubscribed %v, want %v", rec.got, want)
	}
	for filter, qos := range want {
		if rec.got[filter] != qos {
			t.Errorf("filter %s qos = %d, want %d", filter, rec.got[filter], qos)
		}
	}
}

func TestCloseZero(t *testing.T) {
	c := &Client{}
	if err := c.Close(); err != nil {
		t.Errorf("Close() on zero client error = %v", err)
	}
}

// fakeMessage satisfies pahomqtt.Message for handler tests.
type fakeMessage struct {
	topic   string
	payload []byte
}

func (m fakeMessage) Duplicate() bool   { return false }
func (m fakeMessage) Qos() byte         { return 1 }
func (m fakeMessage) Retained() bool    { return false }
func (m fakeMessage) Topic() string     { return m.topic }
func (m fakeMessage) MessageID() uint16 { return 1 }
func (m fakeMessage) Payload() []byte   { return m.payload }
func (m fakeMessage) Ack()              {}

type recordingLogger struct {
	mu     sync.Mutex
	errors []string
	warns  []string
}

func (l *recordingLogger) Error(msg string, _ ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.errors = append(l.errors, msg)
}

func (l *recordingLogger) Warn(msg string, _ ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.warns = append(l.warns, msg)
}

func TestDispatch(t *testing.T) {
	logger := &recordingLogger{}
	c := offlineClient(logger)

	var gotTopic, gotPayload string
	handle := c.dispatch(func(topic string, payload []byte) error {
		gotTopic, gotPayload = topic, string(payload)
		return nil
	})
	handle(nil, fakeMessage{topic: "graylogic/sensor/g/d/temperature", payload: []byte(`{"value":1}`)})

	if gotTopic != "graylogic/sensor/g/d/temperature" || gotPayload != `{"value":1}` {
		t.Errorf("handler got %q %q", gotTopic, gotPayload)
	}
	if len(logger.errors)+len(logger.warns) != 0 {
		t.Errorf("unexpected log lines: %v %v", logger.errors, logger.warns)
	}
}

func TestDispatch_ErrorsAndPanics(t *testing.T) {
	logger := &recordingLogger{}
	c := offlineClient(logger)

	c.dispatch(func(string, []byte) error {
		return errors.New("bad payload")
	})(nil, fakeMessage{topic: "t"})

	c.dispatch(func(string, []byte) error {
		panic("boom")
	})(nil, fakeMessage{topic: "t"})

	if len(logger.warns) != 1 || logger.warns[0] != "MQTT handler returned error" {
		t.Errorf("warns = %v", logger.warns)
	}
	if len(logger.errors) != 1 || logger.errors[0] != "MQTT handler panic recovered" {
		t.Errorf("errors = %v", logger.errors)
	}
}
