// Package generic implements the full-featured controller for scales
// speaking the reverse-engineered vendor protocol (FFE0/FFE1), which is also
// the explicit fallback for devices without a matched configuration.
package generic

import (
	"context"
	"sync"
	"time"

	"github.com/spooltrack/blescale/pkg/bt"
	"github.com/spooltrack/blescale/pkg/config"
	"github.com/spooltrack/blescale/pkg/protocol"
	"github.com/spooltrack/blescale/pkg/scale"
)

// Scale denotes a connected vendor-protocol scale
type Scale struct {
	mgr        *bt.SessionManager
	peripheral bt.Peripheral
	cfg        config.ScaleConfig
	decoder    protocol.Decoder

	mu      sync.Mutex
	status  scale.ConnectionStatus
	current *scale.Reading
	battery *int
	rssi    *int
	reading bool

	// serializes tare / unit / battery commands against the session
	cmdMu sync.Mutex

	stateChangeHandler func(status scale.ConnectionStatus)
	stateChangeChan    chan scale.ConnectionStatus

	readingHandler func(r scale.Reading)
	readingChan    chan scale.Reading

	dispatcherOptions []func(*bt.Dispatcher)

	logger scale.Logger
}

// New instantiates a controller for the given peripheral and configuration,
// executing functional options, if any. The session manager is shared and
// enforces the single-session invariant across controllers.
func New(mgr *bt.SessionManager, p bt.Peripheral, cfg config.ScaleConfig, options ...func(*Scale)) *Scale {
	s := &Scale{
		mgr:        mgr,
		peripheral: p,
		cfg:        cfg,
		decoder:    cfg.Decoder,
		status:     scale.ConnectionStatus{State: scale.StateDisconnected},
		logger:     &scale.NullLogger{},
	}

	for _, option := range options {
		option(s)
	}

	mgr.SetStateChangeHandler(s.onStatus)

	return s
}

// HandleConnected routes the stack's connected callback into the session
// manager with this controller's configuration
func (s *Scale) HandleConnected(p bt.Peripheral, err error) {
	s.mgr.HandleConnected(p, s.cfg, err)
}

// HandleDisconnected routes the stack's disconnected callback into the
// session manager
func (s *Scale) HandleDisconnected(p bt.Peripheral, err error) {
	s.mgr.HandleDisconnected(p, err)
}

// Connect establishes the session and caches the battery level when the
// device exposes one
func (s *Scale) Connect(ctx context.Context) error {
	if err := s.mgr.Connect(ctx, s.peripheral); err != nil {
		return err
	}

	if session := s.mgr.Session(); session != nil && session.BatteryChar != nil {
		if level, err := s.mgr.ReadBatteryLevel(); err != nil {
			s.logger.Warnf("initial battery read failed: %s", err)
		} else {
			s.mu.Lock()
			s.battery = &level
			s.mu.Unlock()
		}
	}

	return nil
}

// Disconnect tears down the current session (idempotent)
func (s *Scale) Disconnect() error {
	s.mu.Lock()
	s.reading = false
	s.mu.Unlock()

	return s.mgr.Disconnect()
}

// StartContinuousReading enables weight notifications, routing every frame
// through the protocol decoder
func (s *Scale) StartContinuousReading() error {
	if err := s.mgr.EnableNotifications(s.receiveFrame); err != nil {
		return err
	}

	s.mu.Lock()
	s.reading = true
	s.mu.Unlock()

	return nil
}

// StopContinuousReading disables weight notifications
func (s *Scale) StopContinuousReading() error {
	s.mu.Lock()
	s.reading = false
	s.mu.Unlock()

	return s.mgr.DisableNotifications()
}

// Tare zeroes the scale via the command dispatcher's candidate sequences
func (s *Scale) Tare(ctx context.Context) scale.CommandResult {
	s.cmdMu.Lock()
	defer s.cmdMu.Unlock()

	session := s.mgr.Session()
	if session == nil {
		return scale.Errorf("not connected")
	}

	options := append([]func(*bt.Dispatcher){bt.WithDispatcherLogger(s.logger)}, s.dispatcherOptions...)
	dispatcher := bt.NewDispatcher(session.Peripheral, session.WeightChar, options...)

	return dispatcher.Tare(ctx)
}

// SetUnit is not bound for the vendor protocol; readings are normalized to
// grams by the decoders
func (s *Scale) SetUnit(_ context.Context, _ scale.Unit) scale.CommandResult {
	return scale.NotSupported()
}

// SingleReading returns the latest published reading while notifications are
// active, falling back to a one-shot characteristic read
func (s *Scale) SingleReading(ctx context.Context) (scale.Reading, error) {
	s.mu.Lock()
	if s.reading && s.current != nil {
		r := *s.current
		s.mu.Unlock()
		return r, nil
	}
	s.mu.Unlock()

	s.cmdMu.Lock()
	defer s.cmdMu.Unlock()

	if err := ctx.Err(); err != nil {
		return scale.Reading{}, err
	}

	b, err := s.mgr.ReadWeight()
	if err != nil {
		return scale.Reading{}, err
	}

	return s.decodeFrame(b), nil
}

// CurrentReading returns the latest published reading, if any
func (s *Scale) CurrentReading() (scale.Reading, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current == nil {
		return scale.Reading{}, false
	}

	return *s.current, true
}

// Supports reports the command set of the vendor protocol
func (s *Scale) Supports(cmd scale.Command) bool {
	switch cmd {
	case scale.CommandTare:
		return true
	case scale.CommandGetBatteryLevel:
		session := s.mgr.Session()
		return session != nil && session.BatteryChar != nil
	default:
		return false
	}
}

// ConnectionStatus returns the current connection status
func (s *Scale) ConnectionStatus() scale.ConnectionStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.status
}

// DeviceInfo returns device and session information
func (s *Scale) DeviceInfo() scale.DeviceInfo {
	s.mu.Lock()
	battery := s.battery
	s.mu.Unlock()

	session := s.mgr.Session()
	var uptime time.Duration
	if session != nil {
		uptime = session.Uptime()
	}

	return scale.DeviceInfo{
		Name:      s.peripheral.Name(),
		Addr:      s.peripheral.ID(),
		Protocol:  s.cfg.ID,
		Connected: session != nil,
		Uptime:    uptime,
		Battery:   battery,
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

// Close unconditionally disconnects and releases the session (idempotent)
func (s *Scale) Close() error {
	return s.Disconnect()
}

////////////////////////////////////////////////////////////////////////////////

// receiveFrame decodes one notification frame and supersedes the current
// reading slot. Decode failures never propagate: they publish an invalid
// zero reading distinguishable by its method tag and raw bytes.
func (s *Scale) receiveFrame(b []byte) {
	r := s.decodeFrame(b)

	s.mu.Lock()
	s.current = &r
	s.mu.Unlock()

	s.publish(r)
}

func (s *Scale) decodeFrame(b []byte) scale.Reading {
	res := protocol.Decode(s.decoder, b)
	bt.CountDecodedFrame(res.Valid)

	s.mu.Lock()
	battery := s.battery
	rssi := s.rssi
	s.mu.Unlock()

	raw := make([]byte, len(b))
	copy(raw, b)

	r := scale.Reading{
		TimeStamp: time.Now(),
		Unit:      scale.UnitGrams,
		Battery:   battery,
		RSSI:      rssi,
		Raw:       raw,
		Method:    res.Method,
	}

	if !res.Valid {
		s.logger.Debugf("frame rejected by decoder %q: % x", s.decoder, b)
		return r
	}

	r.Weight = res.Weight
	r.Stable = res.Stable

	return r
}

func (s *Scale) onStatus(status scale.ConnectionStatus) {
	s.mu.Lock()
	s.status = status
	if status.State == scale.StateDisconnected || status.State == scale.StateError {
		s.reading = false
	}
	s.mu.Unlock()

	// Call handler function, if any
	if s.stateChangeHandler != nil {
		s.stateChangeHandler(status)
	}

	// Put state change on channel, if any
	if s.stateChangeChan != nil {
		select {
		case s.stateChangeChan <- status:
		default:
		}
	}
}

func (s *Scale) publish(r scale.Reading) {

	// Call handler function, if any
	if s.readingHandler != nil {
		s.readingHandler(r)
	}

	// Put reading on channel, if any
	if s.readingChan != nil {
		select {
		case s.readingChan <- r:
		default:
		}
	}
}
