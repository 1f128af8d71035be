// Package wss implements the controller for the official BLE Weight Scale
// Service profile (0x181D). The binding is currently a stub: it satisfies
// the controller surface but reports NotSupported for every operation except
// disconnect and cleanup, pending verification against real hardware.
package wss

import (
	"context"
	"time"

	"github.com/spooltrack/blescale/pkg/bt"
	"github.com/spooltrack/blescale/pkg/config"
	"github.com/spooltrack/blescale/pkg/scale"
)

// Scale denotes a standard Weight Scale Service device
type Scale struct {
	mgr        *bt.SessionManager
	peripheral bt.Peripheral
	cfg        config.ScaleConfig

	stateChangeHandler func(status scale.ConnectionStatus)
	stateChangeChan    chan scale.ConnectionStatus
	readingHandler     func(r scale.Reading)
	readingChan        chan scale.Reading

	logger scale.Logger
}

// New instantiates a stub controller for the given peripheral
func New(mgr *bt.SessionManager, p bt.Peripheral, cfg config.ScaleConfig, options ...func(*Scale)) *Scale {
	s := &Scale{
		mgr:        mgr,
		peripheral: p,
		cfg:        cfg,
		logger:     &scale.NullLogger{},
	}

	for _, option := range options {
		option(s)
	}

	return s
}

// WithLogger sets the logger used by the controller
func WithLogger(l scale.Logger) func(*Scale) {
	return func(s *Scale) {
		s.logger = l
	}
}

// HandleConnected routes the stack's connected callback into the session
// manager
func (s *Scale) HandleConnected(p bt.Peripheral, err error) {
	s.mgr.HandleConnected(p, s.cfg, err)
}

// HandleDisconnected routes the stack's disconnected callback into the
// session manager
func (s *Scale) HandleDisconnected(p bt.Peripheral, err error) {
	s.mgr.HandleDisconnected(p, err)
}

// Connect is not bound yet for the standard profile
func (s *Scale) Connect(_ context.Context) error {
	return scale.ErrNotSupported
}

// Disconnect tears down any session the manager may hold (idempotent)
func (s *Scale) Disconnect() error {
	return s.mgr.Disconnect()
}

// StartContinuousReading is not bound yet for the standard profile
func (s *Scale) StartContinuousReading() error {
	return scale.ErrNotSupported
}

// StopContinuousReading is not bound yet for the standard profile
func (s *Scale) StopContinuousReading() error {
	return scale.ErrNotSupported
}

// Tare is not bound yet for the standard profile
func (s *Scale) Tare(_ context.Context) scale.CommandResult {
	return scale.NotSupported()
}

// SetUnit is not bound yet for the standard profile
func (s *Scale) SetUnit(_ context.Context, _ scale.Unit) scale.CommandResult {
	return scale.NotSupported()
}

// SingleReading is not bound yet for the standard profile
func (s *Scale) SingleReading(_ context.Context) (scale.Reading, error) {
	return scale.Reading{}, scale.ErrNotSupported
}

// CurrentReading never yields a value for the stub
func (s *Scale) CurrentReading() (scale.Reading, bool) {
	return scale.Reading{}, false
}

// Supports reports false for every command
func (s *Scale) Supports(_ scale.Command) bool {
	return false
}

// ConnectionStatus returns the manager's current state
func (s *Scale) ConnectionStatus() scale.ConnectionStatus {
	return scale.ConnectionStatus{State: s.mgr.State()}
}

// DeviceInfo returns device information
func (s *Scale) DeviceInfo() scale.DeviceInfo {
	return scale.DeviceInfo{
		Name:     s.peripheral.Name(),
		Addr:     s.peripheral.ID(),
		Protocol: s.cfg.ID,
		Uptime:   time.Duration(0),
	}
}

// SetStateChangeHandler defines a handler function that is called upon state change
func (s *Scale) SetStateChangeHandler(fn func(status scale.ConnectionStatus)) {
	s.stateChangeHandler = fn
}

// SetStateChangeChannel defines a channel that state changes are published on
func (s *Scale) SetStateChangeChannel(ch chan scale.ConnectionStatus) {
	s.stateChangeChan = ch
}

// SetReadingHandler defines a handler function that is called upon retrieval of a reading
func (s *Scale) SetReadingHandler(fn func(r scale.Reading)) {
	s.readingHandler = fn
}

// SetReadingChannel defines a channel that readings are published on
func (s *Scale) SetReadingChannel(ch chan scale.Reading) {
	s.readingChan = ch
}

// Close unconditionally releases any session (idempotent)
func (s *Scale) Close() error {
	return s.mgr.Disconnect()
}
