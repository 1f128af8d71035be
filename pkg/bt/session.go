package bt

import (
	"context"
	"sync"
	"time"

	"github.com/fako1024/gatt"
	"github.com/fatih/stopwatch"
	"github.com/pkg/errors"
	"github.com/spooltrack/blescale/pkg/config"
	"github.com/spooltrack/blescale/pkg/scale"
)

const (

	// DefaultConnectTimeout bounds a single connection attempt
	DefaultConnectTimeout = 10 * time.Second

	// connection MTU requested after link establishment
	connMTU = 247
)

// Session wraps exclusive ownership of one connected peripheral and the
// characteristics resolved for it
type Session struct {
	Peripheral  Peripheral
	Config      config.ScaleConfig
	WeightChar  *gatt.Characteristic
	BatteryChar *gatt.Characteristic

	cccd  *gatt.Descriptor
	timer *stopwatch.Stopwatch
}

// Uptime returns how long the session has been established
func (s *Session) Uptime() time.Duration {
	if s == nil || s.timer == nil {
		return 0
	}

	return s.timer.ElapsedTime()
}

// SessionManager drives the GATT connection state machine. At most one live
// session exists per manager; starting a new connection first tears down any
// existing one. There is no automatic reconnect: a failed or dropped session
// settles in Disconnected and retrying is the caller's responsibility.
type SessionManager struct {
	dev Device

	mu      sync.Mutex
	state   scale.State
	session *Session
	pending chan error

	connectTimeout time.Duration

	stateChangeHandler func(status scale.ConnectionStatus)
	stateChangeChan    chan scale.ConnectionStatus

	logger scale.Logger
}

// NewSessionManager instantiates a session manager on top of the given
// device, executing functional options, if any
func NewSessionManager(dev Device, options ...func(*SessionManager)) *SessionManager {
	m := &SessionManager{
		dev:            dev,
		state:          scale.StateDisconnected,
		connectTimeout: DefaultConnectTimeout,
		logger:         &scale.NullLogger{},
	}

	for _, option := range options {
		option(m)
	}

	return m
}

// WithConnectTimeout overrides the connection attempt timeout
func WithConnectTimeout(d time.Duration) func(*SessionManager) {
	return func(m *SessionManager) {
		m.connectTimeout = d
	}
}

// WithLogger sets the logger used by the session manager
func WithLogger(l scale.Logger) func(*SessionManager) {
	return func(m *SessionManager) {
		m.logger = l
	}
}

// SetStateChangeHandler defines a handler function that is called upon state change
func (m *SessionManager) SetStateChangeHandler(fn func(status scale.ConnectionStatus)) {
	m.stateChangeHandler = fn
}

// SetStateChangeChannel defines a channel that state changes are published on
func (m *SessionManager) SetStateChangeChannel(ch chan scale.ConnectionStatus) {
	m.stateChangeChan = ch
}

// State returns the current connection state
func (m *SessionManager) State() scale.State {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.state
}

// Session returns the current session, if any
func (m *SessionManager) Session() *Session {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.session
}

// Connect establishes a session with the given peripheral, waiting until
// service discovery has resolved the expected weight characteristic or the
// attempt times out. A previously active session is torn down first.
func (m *SessionManager) Connect(ctx context.Context, p Peripheral) error {
	m.mu.Lock()
	if m.state == scale.StateConnecting {
		m.mu.Unlock()
		return scale.ErrAlreadyInProgress
	}
	if m.session != nil {
		m.teardownLocked(true)
	}

	done := make(chan error, 1)
	m.pending = done
	m.state = scale.StateConnecting
	m.mu.Unlock()

	m.setStatus(scale.StateConnecting, nil)
	m.logger.Debugf("connecting peripheral `%s/%s`", p.Name(), p.ID())

	if err := m.dev.Connect(p); err != nil {
		m.failConnect(errors.Wrap(err, "connect request rejected"))
		return errors.Wrap(err, "connect request rejected")
	}

	select {
	case err := <-done:
		if err != nil {
			failedConnectionsCounter.Inc()
			return err
		}
		successfulConnectionsCounter.Inc()
		return nil
	case <-time.After(m.connectTimeout):
		m.failConnect(scale.ErrConnectTimeout)
		_ = m.dev.CancelConnection(p)
		failedConnectionsCounter.Inc()
		return scale.ErrConnectTimeout
	case <-ctx.Done():
		m.failConnect(ctx.Err())
		_ = m.dev.CancelConnection(p)
		failedConnectionsCounter.Inc()
		return ctx.Err()
	}
}

// HandleConnected is invoked by the stack's connected callback. It performs
// service discovery, resolves the weight (and, when present, battery)
// characteristic and completes the pending connect attempt.
func (m *SessionManager) HandleConnected(p Peripheral, cfg config.ScaleConfig, connErr error) {
	m.mu.Lock()
	if m.state != scale.StateConnecting {
		m.mu.Unlock()
		// late callback after a timeout or cancellation
		_ = m.dev.CancelConnection(p)
		return
	}
	m.mu.Unlock()

	if connErr != nil {
		m.failConnect(errors.Wrap(connErr, "link establishment failed"))
		return
	}

	m.setStatus(scale.StateConnected, nil)
	m.logger.Debugf("connected peripheral `%s/%s`, discovering services", p.Name(), p.ID())

	session, err := m.resolve(p, cfg)
	if err != nil {
		_ = m.dev.CancelConnection(p)
		m.failConnect(err)
		return
	}

	m.mu.Lock()
	if m.state != scale.StateConnecting || m.pending == nil {
		m.mu.Unlock()
		// attempt settled (timeout or cancellation) while discovery was
		// still running; the resolved session must not be installed over
		// a link that has already been released
		_ = m.dev.CancelConnection(p)
		return
	}
	m.session = session
	m.state = scale.StateServicesDiscovered
	pending := m.pending
	m.pending = nil
	m.mu.Unlock()

	m.setStatus(scale.StateServicesDiscovered, nil)

	if pending != nil {
		pending <- nil
	}
}

// HandleDisconnected is invoked by the stack's disconnected callback. The
// session is reset unconditionally; no reconnect is attempted.
func (m *SessionManager) HandleDisconnected(p Peripheral, err error) {
	m.mu.Lock()
	if m.session == nil || m.session.Peripheral.ID() != p.ID() {
		m.mu.Unlock()
		return
	}
	m.teardownLocked(false)
	m.mu.Unlock()

	m.logger.Debugf("disconnected peripheral `%s/%s`", p.Name(), p.ID())
	m.setStatus(scale.StateDisconnected, err)
}

// resolve discovers services and binds the configured weight characteristic,
// its client configuration descriptor and an optional battery level
// characteristic.
func (m *SessionManager) resolve(p Peripheral, cfg config.ScaleConfig) (*Session, error) {
	if err := p.SetMTU(connMTU); err != nil {
		m.logger.Warnf("failed to set MTU on `%s`: %s", p.ID(), err)
	}

	ss, err := p.DiscoverServices(nil)
	if err != nil {
		return nil, errors.Wrap(scale.ErrServiceDiscovery, err.Error())
	}

	session := &Session{
		Peripheral: p,
		Config:     cfg,
	}

	for _, s := range ss {
		switch {
		case config.UUIDEqual(s.UUID().String(), cfg.ServiceUUID):
			cs, err := p.DiscoverCharacteristics(nil, s)
			if err != nil {
				return nil, errors.Wrap(scale.ErrServiceDiscovery, err.Error())
			}
			for _, c := range cs {
				if !config.UUIDEqual(c.UUID().String(), cfg.WeightCharUUID) {
					continue
				}
				session.WeightChar = c

				dd, err := p.DiscoverDescriptors(nil, c)
				if err != nil {
					m.logger.Warnf("descriptor discovery failed on `%s`: %s", p.ID(), err)
					continue
				}
				for _, d := range dd {
					if config.UUIDEqual(d.UUID().String(), config.ClientCharConfigUUID) {
						session.cccd = d
					}
				}
			}

		case config.UUIDEqual(s.UUID().String(), config.BatteryServiceUUID):
			cs, err := p.DiscoverCharacteristics(nil, s)
			if err != nil {
				m.logger.Warnf("battery characteristic discovery failed on `%s`: %s", p.ID(), err)
				continue
			}
			for _, c := range cs {
				if config.UUIDEqual(c.UUID().String(), config.BatteryLevelUUID) {
					session.BatteryChar = c
				}
			}
		}
	}

	if session.WeightChar == nil {
		return nil, scale.ErrCharacteristicNotFound
	}

	session.timer = stopwatch.Start(0)

	return session, nil
}

// EnableNotifications writes the notification-enable value to the client
// configuration descriptor and installs the notification callback.
func (m *SessionManager) EnableNotifications(f func(b []byte)) error {
	m.mu.Lock()
	session := m.session
	m.mu.Unlock()

	if session == nil {
		return scale.ErrNotConnected
	}

	if session.cccd != nil {
		if err := session.Peripheral.WriteDescriptor(session.cccd, cccdEnableNotify); err != nil {
			m.logger.Warnf("CCCD write failed on `%s`: %s", session.Peripheral.ID(), err)
		}
	}

	err := session.Peripheral.SetNotifyValue(session.WeightChar, func(_ *gatt.Characteristic, b []byte, err error) {
		if err != nil {
			m.logger.Warnf("notification error: %s", err)
			return
		}
		f(b)
	})
	if err != nil {
		return errors.Wrap(scale.ErrWriteFailed, err.Error())
	}

	m.mu.Lock()
	m.state = scale.StateReading
	m.mu.Unlock()
	m.setStatus(scale.StateReading, nil)

	return nil
}

// DisableNotifications removes the notification callback and writes the
// disable value to the client configuration descriptor.
func (m *SessionManager) DisableNotifications() error {
	m.mu.Lock()
	session := m.session
	m.mu.Unlock()

	if session == nil {
		return scale.ErrNotConnected
	}

	if err := session.Peripheral.SetNotifyValue(session.WeightChar, nil); err != nil {
		m.logger.Warnf("failed to unsubscribe from notifications: %s", err)
	}
	if session.cccd != nil {
		if err := session.Peripheral.WriteDescriptor(session.cccd, cccdDisableNotify); err != nil {
			m.logger.Warnf("CCCD disable write failed: %s", err)
		}
	}

	m.mu.Lock()
	if m.state == scale.StateReading {
		m.state = scale.StateServicesDiscovered
	}
	m.mu.Unlock()
	m.setStatus(scale.StateServicesDiscovered, nil)

	return nil
}

// ReadWeight performs a one-shot read of the weight characteristic
func (m *SessionManager) ReadWeight() ([]byte, error) {
	m.mu.Lock()
	session := m.session
	m.mu.Unlock()

	if session == nil {
		return nil, scale.ErrNotConnected
	}

	return session.Peripheral.ReadCharacteristic(session.WeightChar)
}

// ReadBatteryLevel reads the battery level characteristic as a percentage
func (m *SessionManager) ReadBatteryLevel() (int, error) {
	m.mu.Lock()
	session := m.session
	m.mu.Unlock()

	if session == nil {
		return 0, scale.ErrNotConnected
	}
	if session.BatteryChar == nil {
		return 0, scale.ErrNotSupported
	}

	b, err := session.Peripheral.ReadCharacteristic(session.BatteryChar)
	if err != nil {
		return 0, errors.Wrap(err, "battery level read failed")
	}
	if len(b) == 0 {
		return 0, errors.New("empty battery level value")
	}

	return int(b[0]), nil
}

// Disconnect stops any active reading and releases the link unconditionally.
// It is idempotent and resets session state even if the underlying calls
// fail.
func (m *SessionManager) Disconnect() error {
	m.mu.Lock()
	had := m.session != nil
	m.teardownLocked(true)
	m.mu.Unlock()

	if had {
		m.setStatus(scale.StateDisconnected, nil)
	}

	return nil
}

// failConnect completes a pending connect attempt with an error and resets
// the state machine to Disconnected via the Error state.
func (m *SessionManager) failConnect(err error) {
	m.mu.Lock()
	pending := m.pending
	m.pending = nil
	m.teardownLocked(true)
	m.mu.Unlock()

	m.setStatus(scale.StateError, err)
	m.setStatus(scale.StateDisconnected, err)

	if pending != nil {
		select {
		case pending <- err:
		default:
		}
	}
}

// teardownLocked resets the session slot, optionally releasing the link.
// Stops notifications and cancels the connection best-effort; state is reset
// even if the underlying calls fail. Callers hold m.mu.
func (m *SessionManager) teardownLocked(cancelLink bool) {
	session := m.session
	m.session = nil
	m.state = scale.StateDisconnected

	if session == nil {
		return
	}

	disconnectsCounter.Inc()

	if cancelLink {
		if session.cccd != nil {
			_ = session.Peripheral.WriteDescriptor(session.cccd, cccdDisableNotify)
		}
		if session.WeightChar != nil {
			_ = session.Peripheral.SetNotifyValue(session.WeightChar, nil)
		}
		_ = m.dev.CancelConnection(session.Peripheral)
	}
}

func (m *SessionManager) setStatus(state scale.State, err error) {
	status := scale.ConnectionStatus{
		State: state,
		Error: err,
	}

	// Call handler function, if any
	if m.stateChangeHandler != nil {
		m.stateChangeHandler(status)
	}

	// Put state change on channel, if any
	if m.stateChangeChan != nil {
		select {
		case m.stateChangeChan <- status:
		default:
		}
	}
}
