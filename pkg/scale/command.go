package scale

import "fmt"

// Command denotes an operation that may be issued against a connected scale
type Command int

const (

	// CommandTare zeroes the current weight as a new baseline
	CommandTare Command = iota

	// CommandSetUnit changes the reporting unit of the device
	CommandSetUnit

	// CommandEnterCalibration puts the device into calibration mode
	CommandEnterCalibration

	// CommandGetBatteryLevel reads the battery level characteristic
	CommandGetBatteryLevel
)

// String returns a human-readable representation of the command
func (c Command) String() string {
	switch c {
	case CommandTare:
		return "tare"
	case CommandSetUnit:
		return "set_unit"
	case CommandEnterCalibration:
		return "enter_calibration"
	case CommandGetBatteryLevel:
		return "get_battery_level"
	default:
		return "unknown"
	}
}

// ResultKind denotes the outcome class of a command
type ResultKind int

const (

	// ResultSuccess denotes an accepted command
	ResultSuccess ResultKind = iota

	// ResultError denotes a rejected / failed command
	ResultError

	// ResultTimeout denotes a command that was not answered in time
	ResultTimeout

	// ResultNotSupported denotes a command the device cannot perform
	ResultNotSupported
)

// CommandResult denotes the outcome of a command issued against a scale.
// A tare Success means the write was accepted by the peripheral, not that
// the scale confirmed a zeroed weight.
type CommandResult struct {
	Kind    ResultKind
	Message string
}

// Success constructs a successful result
func Success() CommandResult {
	return CommandResult{Kind: ResultSuccess}
}

// Errorf constructs an error result with a message
func Errorf(format string, args ...interface{}) CommandResult {
	return CommandResult{Kind: ResultError, Message: fmt.Sprintf(format, args...)}
}

// Timeout constructs a timeout result
func Timeout() CommandResult {
	return CommandResult{Kind: ResultTimeout}
}

// NotSupported constructs a not-supported result
func NotSupported() CommandResult {
	return CommandResult{Kind: ResultNotSupported}
}

// OK returns if the result denotes success
func (r CommandResult) OK() bool {
	return r.Kind == ResultSuccess
}
