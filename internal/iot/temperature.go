package iot

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// Temperature is an optional reading in degrees Celsius. The zero value holds
// no reading; use Get to find out which case applies.
type Temperature struct {
	value float64
	ok    bool
}

// Celsius returns a Temperature holding v.
func Celsius(v float64) Temperature {
	return Temperature{value: v, ok: true}
}

// Get returns the value and whether one is present.
func (t Temperature) Get() (float64, bool) {
	return t.value, t.ok
}

// IsZero reports whether no reading is present.
func (t Temperature) IsZero() bool {
	return !t.ok
}

// String implements fmt.Stringer.
func (t Temperature) String() string {
	if !t.ok {
		return "n/a"
	}
	return strconv.FormatFloat(t.value, 'f', -1, 64) + "°C"
}

// MarshalJSON encodes the value as a number, or null when absent.
func (t Temperature) MarshalJSON() ([]byte, error) {
	if !t.ok {
		return []byte("null"), nil
	}
	return json.Marshal(t.value)
}

// UnmarshalJSON accepts a number or null.
func (t *Temperature) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*t = Temperature{}
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("temperature: %w", err)
	}
	*t = Celsius(v)
	return nil
}

// ReadingKind identifies which case of Reading applies.
type ReadingKind string

// Reading kinds.
const (
	ReadingValue            ReadingKind = "value"
	ReadingNotAvailable     ReadingKind = "not_available"
	ReadingDeviceTerminated ReadingKind = "device_terminated"
	ReadingTimedOut         ReadingKind = "timed_out"
)

// Reading is one device's contribution to an aggregate query. Value is only
// meaningful when Kind is ReadingValue.
type Reading struct {
	Kind  ReadingKind
	Value float64
}

// ValueReading returns a reading carrying v.
func ValueReading(v float64) Reading {
	return Reading{Kind: ReadingValue, Value: v}
}

// NotAvailable is returned by devices that answered without a stored value.
func NotAvailable() Reading {
	return Reading{Kind: ReadingNotAvailable}
}

// DeviceTerminated marks a device that stopped before answering.
func DeviceTerminated() Reading {
	return Reading{Kind: ReadingDeviceTerminated}
}

// TimedOut marks a device that did not answer before the deadline.
func TimedOut() Reading {
	return Reading{Kind: ReadingTimedOut}
}

// readingOf classifies a device's optional temperature.
func readingOf(t Temperature) Reading {
	if v, ok := t.Get(); ok {
		return ValueReading(v)
	}
	return NotAvailable()
}

// String implements fmt.Stringer.
func (r Reading) String() string {
	if r.Kind == ReadingValue {
		return strconv.FormatFloat(r.Value, 'f', -1, 64)
	}
	return string(r.Kind)
}

// CountByKind tallies readings per kind. Kinds with no readings are absent.
func CountByKind(readings map[string]Reading) map[ReadingKind]int {
	counts := make(map[ReadingKind]int)
	for _, r := range readings {
		counts[r.Kind]++
	}
	return counts
}

type readingJSON struct {
	Kind  ReadingKind `json:"kind"`
	Value *float64    `json:"value,omitempty"`
}

// MarshalJSON encodes {"kind":"value","value":21.5} or {"kind":"timed_out"}.
func (r Reading) MarshalJSON() ([]byte, error) {
	out := readingJSON{Kind: r.Kind}
	if r.Kind == ReadingValue {
		v := r.Value
		out.Value = &v
	}
	return json.Marshal(out)
}

// UnmarshalJSON decodes the form written by MarshalJSON.
func (r *Reading) UnmarshalJSON(data []byte) error {
	var in readingJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return fmt.Errorf("reading: %w", err)
	}
	switch in.Kind {
	case ReadingValue:
		if in.Value == nil {
			return fmt.Errorf("reading: kind %q without value", in.Kind)
		}
		*r = ValueReading(*in.Value)
	case ReadingNotAvailable, ReadingDeviceTerminated, ReadingTimedOut:
		*r = Reading{Kind: in.Kind}
	default:
		return fmt.Errorf("reading: unknown kind %q", in.Kind)
	}
	return nil
}
