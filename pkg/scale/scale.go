package scale

import (
	"context"
	"time"
)

// DeviceInfo denotes static and session information about a scale device
type DeviceInfo struct {
	Name      string
	Addr      string
	Protocol  string
	Connected bool
	Uptime    time.Duration
	Battery   *int
}

// Controller denotes the capability surface of a connected scale
type Controller interface {

	// Connect establishes a connection to the device, bounded by the
	// configured connect timeout
	Connect(ctx context.Context) error

	// Disconnect tears down the current connection (idempotent)
	Disconnect() error

	// StartContinuousReading enables weight notifications
	StartContinuousReading() error

	// StopContinuousReading disables weight notifications
	StopContinuousReading() error

	// Tare zeroes the scale's current reading as a new baseline
	Tare(ctx context.Context) CommandResult

	// SetUnit requests the device to switch its reporting unit
	SetUnit(ctx context.Context, unit Unit) CommandResult

	// SingleReading retrieves one reading, either the latest published value
	// or an on-demand characteristic read
	SingleReading(ctx context.Context) (Reading, error)

	// CurrentReading returns the latest published reading, if any
	CurrentReading() (Reading, bool)

	// Supports reports whether the device can perform the given command
	Supports(cmd Command) bool

	// ConnectionStatus returns the current connection status of the device
	ConnectionStatus() ConnectionStatus

	// DeviceInfo returns device and session information
	DeviceInfo() DeviceInfo

	// SetStateChangeHandler defines a handler function that is called upon state change
	SetStateChangeHandler(fn func(status ConnectionStatus))

	// SetStateChangeChannel defines a channel that state changes are published on
	SetStateChangeChannel(ch chan ConnectionStatus)

	// SetReadingHandler defines a handler function that is called upon retrieval of a reading
	SetReadingHandler(fn func(r Reading))

	// SetReadingChannel defines a channel that readings are published on
	SetReadingChannel(ch chan Reading)

	// Close unconditionally disconnects, cancels pending operations and
	// releases the underlying handle (idempotent, safe from any state)
	Close() error
}
