package iot

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/nerrad567/gray-logic-telemetry/internal/actor"
)

// maxIDLength bounds group and device IDs accepted by Client.
const maxIDLength = 128

// Client is a blocking facade over the manager for callers outside the actor
// tree (HTTP handlers, MQTT bridges). Every call sends one or two messages and
// waits for the reply within ctx.
//
// Thread Safety:
//   - All methods are safe for concurrent use.
type Client struct {
	manager *actor.Ref[ManagerCommand]
	nextID  atomic.Int64
}

// NewClient wraps a manager handle.
func NewClient(manager *actor.Ref[ManagerCommand]) *Client {
	return &Client{manager: manager}
}

// NextRequestID returns a process-unique request ID.
func (c *Client) NextRequestID() int64 {
	return c.nextID.Add(1)
}

// ValidateID checks a group or device ID.
func ValidateID(id string) error {
	if id == "" {
		return fmt.Errorf("%w: empty", ErrInvalidID)
	}
	if len(id) > maxIDLength {
		return fmt.Errorf("%w: longer than %d characters", ErrInvalidID, maxIDLength)
	}
	if strings.ContainsAny(id, "/+#") {
		return fmt.Errorf("%w: %q contains a reserved character", ErrInvalidID, id)
	}
	return nil
}

// TrackDevice registers a device and returns its handle.
//
// Parameters:
//   - ctx: Bounds the wait
//   - groupID: Owning group (created when missing)
//   - deviceID: Device within the group (created when missing)
//
// Returns:
//   - *actor.Ref[DeviceCommand]: Handle to the live device
//   - error: ErrInvalidID, or ErrUnavailable if the manager did not answer
func (c *Client) TrackDevice(ctx context.Context, groupID, deviceID string) (*actor.Ref[DeviceCommand], error) {
	if err := validateKey(groupID, deviceID); err != nil {
		return nil, err
	}
	reply, err := actor.Ask(ctx, c.manager, func(replyTo *actor.Ref[DeviceRegistered]) ManagerCommand {
		return TrackDevice{GroupID: groupID, DeviceID: deviceID, ReplyTo: replyTo}
	})
	if err != nil {
		return nil, fmt.Errorf("%w: track device %s/%s: %w", ErrUnavailable, groupID, deviceID, err)
	}
	return reply.Device, nil
}

// ListDevices returns the sorted IDs of the devices tracked in a group.
// An unknown group yields an empty list.
func (c *Client) ListDevices(ctx context.Context, groupID string) ([]string, error) {
	if err := ValidateID(groupID); err != nil {
		return nil, err
	}
	requestID := c.NextRequestID()
	reply, err := actor.Ask(ctx, c.manager, func(replyTo *actor.Ref[ReplyDeviceList]) ManagerCommand {
		return ListDevices{RequestID: requestID, GroupID: groupID, ReplyTo: replyTo}
	})
	if err != nil {
		return nil, fmt.Errorf("%w: list devices of %s: %w", ErrUnavailable, groupID, err)
	}
	return reply.IDs, nil
}

// RecordTemperature tracks the device and overwrites its reading.
//
// A device being passivated can still be returned by TrackDevice until its
// group processes the termination. If the record then hits a stopped device it
// is retried once against a freshly tracked one.
func (c *Client) RecordTemperature(ctx context.Context, groupID, deviceID string, value float64) error {
	for attempt := 0; ; attempt++ {
		dev, err := c.TrackDevice(ctx, groupID, deviceID)
		if err != nil {
			return err
		}
		requestID := c.NextRequestID()
		_, err = actor.Ask(ctx, dev, func(replyTo *actor.Ref[TemperatureRecorded]) DeviceCommand {
			return RecordTemperature{RequestID: requestID, Value: value, ReplyTo: replyTo}
		})
		if err == nil {
			return nil
		}
		if errors.Is(err, actor.ErrTerminated) && attempt == 0 {
			continue
		}
		return fmt.Errorf("%w: record temperature %s/%s: %w", ErrUnavailable, groupID, deviceID, err)
	}
}

// SubmitTemperature tracks the device and hands it the reading without
// waiting for the acknowledgement. A reading sent to a device that stops
// in between is lost.
func (c *Client) SubmitTemperature(ctx context.Context, groupID, deviceID string, value float64) error {
	dev, err := c.TrackDevice(ctx, groupID, deviceID)
	if err != nil {
		return err
	}
	dev.Tell(RecordTemperature{RequestID: c.NextRequestID(), Value: value})
	return nil
}

// ReadTemperature returns the reading of a tracked device without creating it.
//
// Returns:
//   - Temperature: Current reading (possibly absent)
//   - error: ErrDeviceNotTracked if the device is unknown or stops while being read
func (c *Client) ReadTemperature(ctx context.Context, groupID, deviceID string) (Temperature, error) {
	if err := validateKey(groupID, deviceID); err != nil {
		return Temperature{}, err
	}
	found, err := actor.Ask(ctx, c.manager, func(replyTo *actor.Ref[DeviceFound]) ManagerCommand {
		return FindDevice{GroupID: groupID, DeviceID: deviceID, ReplyTo: replyTo}
	})
	if err != nil {
		return Temperature{}, fmt.Errorf("%w: find device %s/%s: %w", ErrUnavailable, groupID, deviceID, err)
	}
	dev := found.Device
	if dev == nil {
		return Temperature{}, fmt.Errorf("%w: %s/%s", ErrDeviceNotTracked, groupID, deviceID)
	}

	requestID := c.NextRequestID()
	reply, err := actor.Ask(ctx, dev, func(replyTo *actor.Ref[RespondTemperature]) DeviceCommand {
		return ReadTemperature{RequestID: requestID, ReplyTo: replyTo}
	})
	if errors.Is(err, actor.ErrTerminated) {
		return Temperature{}, fmt.Errorf("%w: %s/%s", ErrDeviceNotTracked, groupID, deviceID)
	}
	if err != nil {
		return Temperature{}, fmt.Errorf("%w: read temperature %s/%s: %w", ErrUnavailable, groupID, deviceID, err)
	}
	return reply.Value, nil
}

// RequestAllTemperatures runs an aggregate query over a group.
//
// Parameters:
//   - ctx: Bounds the wait; should outlive timeout
//   - groupID: Group to query (unknown groups yield an empty map)
//   - timeout: Query deadline (zero uses the manager's default)
//
// Returns:
//   - map[string]Reading: One reading per device of the query snapshot
//   - error: ErrUnavailable if no answer arrived within ctx
func (c *Client) RequestAllTemperatures(ctx context.Context, groupID string, timeout time.Duration) (map[string]Reading, error) {
	if err := ValidateID(groupID); err != nil {
		return nil, err
	}
	requestID := c.NextRequestID()
	reply, err := actor.Ask(ctx, c.manager, func(replyTo *actor.Ref[RespondAllTemperatures]) ManagerCommand {
		return RequestAllTemperatures{RequestID: requestID, GroupID: groupID, Timeout: timeout, ReplyTo: replyTo}
	})
	if err != nil {
		return nil, fmt.Errorf("%w: query temperatures of %s: %w", ErrUnavailable, groupID, err)
	}
	return reply.Temperatures, nil
}

// PassivateDevice asks the owning group to stop a device. It does not wait.
func (c *Client) PassivateDevice(groupID, deviceID string) error {
	if err := validateKey(groupID, deviceID); err != nil {
		return err
	}
	c.manager.Tell(PassivateDevice{GroupID: groupID, DeviceID: deviceID})
	return nil
}

// PassivateGroup stops a group and its devices. It does not wait.
func (c *Client) PassivateGroup(groupID string) error {
	if err := ValidateID(groupID); err != nil {
		return err
	}
	c.manager.Tell(PassivateGroup{GroupID: groupID})
	return nil
}

func validateKey(groupID, deviceID string) error {
	if err := ValidateID(groupID); err != nil {
		return fmt.Errorf("group: %w", err)
	}
	if err := ValidateID(deviceID); err != nil {
		return fmt.Errorf("device: %w", err)
	}
	return nil
}
