package mqtt

import (
	"fmt"
	"maps"
	"sync"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
)

// MessageHandler handles one message. paho calls it on its own goroutine.
// A returned error is logged and does not affect acknowledgement.
type MessageHandler func(topic string, payload []byte) error

// filterSet remembers the subscribed filters and their QoS. The handlers
// live in paho's router, which survives reconnects, so only the SUBSCRIBE
// has to be repeated.
type filterSet struct {
	mu      sync.Mutex
	byTopic map[string]byte
}

func (f *filterSet) add(filter string, qos byte) {
	f.mu.Lock()
	f.byTopic[filter] = qos
	f.mu.Unlock()
}

func (f *filterSet) remove(filter string) {
	f.mu.Lock()
	delete(f.byTopic, filter)
	f.mu.Unlock()
}

// resubscribe repeats every remembered SUBSCRIBE in one packet.
func (f *filterSet) resubscribe(client pahomqtt.Client) error {
	f.mu.Lock()
	filters := maps.Clone(f.byTopic)
	f.mu.Unlock()
	if len(filters) == 0 {
		return nil
	}
	return await(client.SubscribeMultiple(filters, nil), ackTimeout)
}

// Subscribe routes messages matching filter to handler and keeps the
// subscription across reconnects.
//
// The bridge subscribes two filters:
//
//	graylogic/sensor/+/+/temperature
//	graylogic/request/temperatures/+
func (c *Client) Subscribe(filter string, qos byte, handler MessageHandler) error {
	switch {
	case filter == "":
		return ErrInvalidTopic
	case qos > maxQoS:
		return ErrInvalidQoS
	case handler == nil:
		return ErrNilHandler
	case !c.IsConnected():
		return ErrNotConnected
	}
	if err := await(c.paho.Subscribe(filter, qos, c.dispatch(handler)), ackTimeout); err != nil {
		return fmt.Errorf("mqtt: subscribe %s: %w", filter, err)
	}
	c.filters.add(filter, qos)
	return nil
}

// Unsubscribe drops filter. Messages already in flight may still arrive.
func (c *Client) Unsubscribe(filter string) error {
	if filter == "" {
		return ErrInvalidTopic
	}
	c.filters.remove(filter)
	if !c.IsConnected() {
		return ErrNotConnected
	}
	if err := await(c.paho.Unsubscribe(filter), ackTimeout); err != nil {
		return fmt.Errorf("mqtt: unsubscribe %s: %w", filter, err)
	}
	return nil
}

// dispatch adapts handler to paho, logging its errors and recovering panics.
func (c *Client) dispatch(handler MessageHandler) pahomqtt.MessageHandler {
	return func(_ pahomqtt.Client, msg pahomqtt.Message) {
		defer func() {
			if r := recover(); r != nil {
				c.log.Error("MQTT handler panic recovered", "topic", msg.Topic(), "panic", r)
			}
		}()
		if err := handler(msg.Topic(), msg.Payload()); err != nil {
			c.log.Warn("MQTT handler returned error", "topic", msg.Topic(), "error", err)
		}
	}
}
