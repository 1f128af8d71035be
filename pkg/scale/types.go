package scale

import (
	"fmt"
	"time"
)

// Unit denotes the unit of a weight measurement
type Unit string

const (

	// UnitUnknown denotes an unknown / invalid unit
	UnitUnknown Unit = "--"

	// UnitGrams denotes metric units (canonical unit of this package)
	UnitGrams Unit = "g"

	// UnitOz denotes imperial ounces
	UnitOz Unit = "oz"

	// UnitLb denotes imperial pounds
	UnitLb Unit = "lb"

	// UnitKg denotes kilograms
	UnitKg Unit = "kg"

	// UnitMl denotes milliliters (water equivalent)
	UnitMl Unit = "ml"

	// UnitFlOz denotes fluid ounces (water equivalent)
	UnitFlOz Unit = "floz"
)

// Conversion constants to grams
const (
	gramsPerOz   = 28.3495
	gramsPerLb   = 453.592
	gramsPerKg   = 1000.
	gramsPerFlOz = 29.5735
	gramsPerMl   = 1.
)

// Capture sanity window in grams
const (
	MinCaptureWeight = 0.
	MaxCaptureWeight = 10000.
)

// ToGrams converts a value in the given unit to grams. Unknown units are
// passed through unchanged.
func ToGrams(v float64, u Unit) float64 {
	switch u {
	case UnitOz:
		return v * gramsPerOz
	case UnitLb:
		return v * gramsPerLb
	case UnitKg:
		return v * gramsPerKg
	case UnitFlOz:
		return v * gramsPerFlOz
	case UnitMl:
		return v * gramsPerMl
	default:
		return v
	}
}

// FromGrams converts a value in grams to the given unit. Unknown units are
// passed through unchanged.
func FromGrams(g float64, u Unit) float64 {
	switch u {
	case UnitOz:
		return g / gramsPerOz
	case UnitLb:
		return g / gramsPerLb
	case UnitKg:
		return g / gramsPerKg
	case UnitFlOz:
		return g / gramsPerFlOz
	case UnitMl:
		return g / gramsPerMl
	default:
		return g
	}
}

// IsExpected returns if the unit is the one expected for capture. Grams is
// currently the only unit considered valid.
func (u Unit) IsExpected() bool {
	return u == UnitGrams
}

// State denotes a connection state
type State int

const (

	// StateDisconnected is active while no connection attempt is in progress
	StateDisconnected State = iota

	// StateConnecting is active while a connection attempt is in progress
	StateConnecting

	// StateConnected is active once the underlying stack reports a link
	StateConnected

	// StateServicesDiscovered is active once the expected characteristic
	// has been resolved
	StateServicesDiscovered

	// StateReading is active while continuous notifications are enabled
	StateReading

	// StateError is a terminal state for a failed attempt
	StateError
)

// String returns a human-readable representation of the state
func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateServicesDiscovered:
		return "services_discovered"
	case StateReading:
		return "reading"
	case StateError:
		return "error"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// ConnectionStatus denotes the current status of the bluetooth device
type ConnectionStatus struct {
	Error error
	State
}

// DecodeMethod identifies the decoder that produced a reading
type DecodeMethod string

const (

	// DecodeNone denotes a reading that could not be decoded at all
	DecodeNone DecodeMethod = "none"

	// DecodeLegacy24 denotes the vendor 24-bit little-endian format
	DecodeLegacy24 DecodeMethod = "vendor-24bit"

	// DecodeSignMagnitude denotes the vendor sign-magnitude frame format
	DecodeSignMagnitude DecodeMethod = "vendor-signmag"

	// DecodeHeuristic denotes the multi-candidate guess decoder. Specific
	// candidates append their own suffix (e.g. "heuristic:u16le@2").
	DecodeHeuristic DecodeMethod = "heuristic"
)

// Reading denotes a single weight measurement at a certain point in time.
// Weight is always carried in grams. Raw retains the notification frame for
// diagnostics; Method identifies the decoder that produced the value.
type Reading struct {
	TimeStamp time.Time
	Weight    float64
	Stable    bool
	Unit      Unit
	Battery   *int
	RSSI      *int
	Raw       []byte
	Method    DecodeMethod
}

// Value provides a method to retrieve the current weight (for interface use)
func (r Reading) Value() float64 {
	return r.Weight
}

// IsValidForCapture returns if the reading is suitable to update remaining
// filament mass: it must be stable and within the sanity window.
func (r Reading) IsValidForCapture() bool {
	return r.Stable && r.Weight >= MinCaptureWeight && r.Weight <= MaxCaptureWeight
}

// Format returns a display representation of the weight, varying precision
// with magnitude.
func (r Reading) Format() string {
	abs := r.Weight
	if abs < 0 {
		abs = -abs
	}

	switch {
	case abs < 10:
		return fmt.Sprintf("%.2f %s", r.Weight, r.Unit)
	case abs < 100:
		return fmt.Sprintf("%.1f %s", r.Weight, r.Unit)
	default:
		return fmt.Sprintf("%.0f %s", r.Weight, r.Unit)
	}
}

// Readings denotes a set of readings (usually a capture session)
type Readings []Reading
