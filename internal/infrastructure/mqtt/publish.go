package mqtt

import "fmt"

// Publish sends payload to topic and waits for the broker acknowledgement
// (QoS 1 and 2).
//
// Retain state topics (service status, group aggregates). Never retain
// request/response traffic.
func (c *Client) Publish(topic string, payload []byte, qos byte, retained bool) error {
	switch {
	case topic == "":
		return ErrInvalidTopic
	case qos > maxQoS:
		return ErrInvalidQoS
	case len(payload) > maxPayloadSize:
		return fmt.Errorf("%w: %d bytes", ErrPayloadTooLarge, len(payload))
	case !c.IsConnected():
		return ErrNotConnected
	}
	if err := await(c.paho.Publish(topic, qos, retained, payload), ackTimeout); err != nil {
		return fmt.Errorf("mqtt: publish %s: %w", topic, err)
	}
	return nil
}

// PublishRetained publishes a retained message with the configured QoS.
func (c *Client) PublishRetained(topic string, payload []byte) error {
	return c.Publish(topic, payload, c.qos, true)
}
