package mqtt

import (
	"crypto/tls"
	"fmt"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/nerrad567/gray-logic-telemetry/internal/infrastructure/config"
)

const (
	ackTimeout     = 5 * time.Second
	dialTimeout    = 10 * time.Second
	keepAlive      = 60 * time.Second
	quiesceMillis  = 1000
	maxQoS         = 2
	maxPayloadSize = 1 << 20
)

// brokerURL returns tcp:// or ssl:// depending on cfg.Broker.TLS.
func brokerURL(cfg config.MQTTBrokerConfig) string {
	scheme := "tcp"
	if cfg.TLS {
		scheme = "ssl"
	}
	return fmt.Sprintf("%s://%s:%d", scheme, cfg.Host, cfg.Port)
}

// clientOptions builds the paho options of the telemetry connection.
//
// The session is clean; subscriptions are restored by the client itself
// after every reconnect. Initial connection attempts are driven by Connect,
// so paho only retries connections that were lost later.
func clientOptions(cfg config.MQTTConfig) *pahomqtt.ClientOptions {
	opts := pahomqtt.NewClientOptions().
		AddBroker(brokerURL(cfg.Broker)).
		SetClientID(cfg.Broker.ClientID).
		SetCleanSession(true).
		SetAutoReconnect(true).
		SetConnectRetry(false).
		SetMaxReconnectInterval(seconds(cfg.Reconnect.MaxDelay, time.Minute)).
		SetConnectTimeout(dialTimeout).
		SetKeepAlive(keepAlive).
		SetWill(Topics{}.Status(), string(statusPayload(cfg.Broker.ClientID, statusOffline, "unexpected_disconnect")), 1, true)

	if cfg.Auth.Username != "" {
		opts.SetUsername(cfg.Auth.Username).SetPassword(cfg.Auth.Password)
	}
	if cfg.Broker.TLS {
		opts.SetTLSConfig(&tls.Config{MinVersion: tls.VersionTLS12})
	}
	return opts
}

// seconds converts a config value in seconds, using fallback when unset.
func seconds(n int, fallback time.Duration) time.Duration {
	if n <= 0 {
		return fallback
	}
	return time.Duration(n) * time.Second
}
