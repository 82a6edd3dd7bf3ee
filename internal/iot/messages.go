package iot

import (
	"time"

	"github.com/nerrad567/gray-logic-telemetry/internal/actor"
)

// DefaultQueryTimeout bounds RequestAllTemperatures when the caller passes no timeout.
const DefaultQueryTimeout = 3 * time.Second

// DeviceKey uniquely identifies a device across the whole system.
type DeviceKey struct {
	GroupID  string `json:"group_id"`
	DeviceID string `json:"device_id"`
}

// String implements fmt.Stringer.
func (k DeviceKey) String() string {
	return k.GroupID + "/" + k.DeviceID
}

// DeviceCommand is the protocol of a device actor.
type DeviceCommand interface {
	deviceCommand()
}

// GroupCommand is the protocol of a group actor.
type GroupCommand interface {
	groupCommand()
}

// ManagerCommand is the protocol of the manager actor.
type ManagerCommand interface {
	managerCommand()
}

// ReadTemperature asks a device for its current reading.
type ReadTemperature struct {
	RequestID int64
	ReplyTo   *actor.Ref[RespondTemperature]
}

// RespondTemperature answers ReadTemperature.
type RespondTemperature struct {
	RequestID int64
	DeviceID  string
	Value     Temperature
}

// RecordTemperature overwrites a device's reading. A nil ReplyTo means no
// acknowledgement is sent.
type RecordTemperature struct {
	RequestID int64
	Value     float64
	ReplyTo   *actor.Ref[TemperatureRecorded]
}

// TemperatureRecorded acknowledges RecordTemperature.
type TemperatureRecorded struct {
	RequestID int64
}

// Passivate stops a device. Only the owning group sends it.
type Passivate struct{}

func (ReadTemperature) deviceCommand()   {}
func (RecordTemperature) deviceCommand() {}
func (Passivate) deviceCommand()         {}

// TrackDevice registers a device, creating it (and its group) when missing.
type TrackDevice struct {
	GroupID  string
	DeviceID string
	ReplyTo  *actor.Ref[DeviceRegistered]
}

// DeviceRegistered answers TrackDevice with the device handle.
type DeviceRegistered struct {
	Device *actor.Ref[DeviceCommand]
}

// FindDevice looks up a tracked device without creating it.
type FindDevice struct {
	GroupID  string
	DeviceID string
	ReplyTo  *actor.Ref[DeviceFound]
}

// DeviceFound answers FindDevice. Device is nil when the device is not tracked.
type DeviceFound struct {
	Device *actor.Ref[DeviceCommand]
}

// ListDevices asks for the IDs of the devices tracked in a group.
type ListDevices struct {
	RequestID int64
	GroupID   string
	ReplyTo   *actor.Ref[ReplyDeviceList]
}

// ReplyDeviceList answers ListDevices. IDs are sorted and never nil.
type ReplyDeviceList struct {
	RequestID int64
	IDs       []string
}

// RequestAllTemperatures starts an aggregate query over a group. A zero
// Timeout uses the manager's default.
type RequestAllTemperatures struct {
	RequestID int64
	GroupID   string
	Timeout   time.Duration
	ReplyTo   *actor.Ref[RespondAllTemperatures]
}

// RespondAllTemperatures answers RequestAllTemperatures with one Reading per
// device of the query snapshot.
type RespondAllTemperatures struct {
	RequestID    int64
	Temperatures map[string]Reading
}

// PassivateDevice asks the owning group to stop a device. Unknown devices are ignored.
type PassivateDevice struct {
	GroupID  string
	DeviceID string
}

// PassivateGroup stops a group and every device in it.
type PassivateGroup struct {
	GroupID string
}

func (TrackDevice) groupCommand()            {}
func (FindDevice) groupCommand()             {}
func (ListDevices) groupCommand()            {}
func (RequestAllTemperatures) groupCommand() {}
func (PassivateDevice) groupCommand()        {}
func (PassivateGroup) groupCommand()         {}

func (TrackDevice) managerCommand()            {}
func (FindDevice) managerCommand()             {}
func (ListDevices) managerCommand()            {}
func (RequestAllTemperatures) managerCommand() {}
func (PassivateDevice) managerCommand()        {}
func (PassivateGroup) managerCommand()         {}
