// Package mqtt provides MQTT client connectivity for the telemetry core.
//
// This package manages:
//   - The broker connection, with backoff on the first dial and paho's
//     auto-reconnect afterwards
//   - The retained service status and its will
//   - The bridge's subscriptions, restored after every reconnect
//
// # Architecture
//
// Temperature sensors do not talk to the core directly. They publish readings
// to the broker, the sensor bridge turns them into device commands, and the
// core publishes aggregate results back:
//
//	sensors ──► graylogic/sensor/{group}/{device}/temperature ──► core
//	clients ──► graylogic/request/temperatures/{group}        ──► core
//	core    ──► graylogic/response/temperatures/{group}
//	core    ──► graylogic/core/group/{group}/temperatures (retained)
//
// # Security Considerations
//
//   - TLS should be enabled outside the lab (cfg.Broker.TLS=true)
//   - Anonymous access is only for local development
//
// # Usage
//
//	client, err := mqtt.Connect(ctx, cfg.MQTT, mqtt.Hooks{Logger: log})
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	err = client.Subscribe(mqtt.Topics{}.AllSensorTemperatures(), 1, handler)
package mqtt
