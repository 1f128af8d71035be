// Package mock provides an in-memory controller emitting scripted readings,
// used for development without hardware and as a stand-in in tests.
package mock

import (
	"context"
	"sync"
	"time"

	"github.com/fatih/stopwatch"
	"github.com/spooltrack/blescale/pkg/bt"
	"github.com/spooltrack/blescale/pkg/scale"
)

const (
	defaultDeviceName = "Mock Scale"
	defaultDeviceAddr = "00:11:22:33:44:55"
	defaultInterval   = 200 * time.Millisecond
)

// Mock denotes a simulated scale
type Mock struct {
	mu           sync.Mutex
	status       scale.ConnectionStatus
	current      *scale.Reading
	script       []scale.Reading
	pos          int
	tareOffset   float64
	batteryLevel int
	reading      bool

	timer *stopwatch.Stopwatch

	deviceName string
	deviceAddr string
	interval   time.Duration

	stateChangeHandler func(status scale.ConnectionStatus)
	stateChangeChan    chan scale.ConnectionStatus

	readingHandler func(r scale.Reading)
	readingChan    chan scale.Reading

	doneChan chan struct{}
}

// New instantiates a simulated scale, executing functional options, if any
func New(options ...func(*Mock)) *Mock {
	m := &Mock{
		status:       scale.ConnectionStatus{State: scale.StateDisconnected},
		batteryLevel: 100,
		deviceName:   defaultDeviceName,
		deviceAddr:   defaultDeviceAddr,
		interval:     defaultInterval,
	}

	for _, option := range options {
		option(m)
	}

	return m
}

// WithScript sets the sequence of readings replayed while continuous reading
// is active. The script wraps around when exhausted.
func WithScript(readings []scale.Reading) func(*Mock) {
	return func(m *Mock) {
		m.script = readings
	}
}

// WithInterval sets the replay interval for scripted readings
func WithInterval(d time.Duration) func(*Mock) {
	return func(m *Mock) {
		m.interval = d
	}
}

// WithBatteryLevel sets the reported battery level
func WithBatteryLevel(level int) func(*Mock) {
	return func(m *Mock) {
		m.batteryLevel = level
	}
}

// HandleConnected is a no-op for the simulated scale
func (m *Mock) HandleConnected(_ bt.Peripheral, _ error) {}

// HandleDisconnected is a no-op for the simulated scale
func (m *Mock) HandleDisconnected(_ bt.Peripheral, _ error) {}

// Connect transitions straight through the connection states
func (m *Mock) Connect(_ context.Context) error {
	m.setStatus(scale.StateConnecting, nil)
	m.setStatus(scale.StateConnected, nil)
	m.setStatus(scale.StateServicesDiscovered, nil)

	m.mu.Lock()
	m.timer = stopwatch.Start(0)
	m.doneChan = make(chan struct{})
	m.mu.Unlock()

	return nil
}

// Disconnect ends the simulated session (idempotent)
func (m *Mock) Disconnect() error {
	m.mu.Lock()
	if m.doneChan != nil {
		close(m.doneChan)
		m.doneChan = nil
	}
	m.reading = false
	if m.timer != nil {
		m.timer.Stop()
	}
	hadSession := m.status.State != scale.StateDisconnected
	m.mu.Unlock()

	if hadSession {
		m.setStatus(scale.StateDisconnected, nil)
	}

	return nil
}

// StartContinuousReading begins replaying the scripted readings
func (m *Mock) StartContinuousReading() error {
	m.mu.Lock()
	if m.doneChan == nil {
		m.mu.Unlock()
		return scale.ErrNotConnected
	}
	if m.reading {
		m.mu.Unlock()
		return nil
	}
	m.reading = true
	done := m.doneChan
	interval := m.interval
	m.mu.Unlock()

	m.setStatus(scale.StateReading, nil)

	go m.replay(done, interval)

	return nil
}

// StopContinuousReading stops the replay
func (m *Mock) StopContinuousReading() error {
	m.mu.Lock()
	m.reading = false
	m.mu.Unlock()

	m.setStatus(scale.StateServicesDiscovered, nil)

	return nil
}

// Tare zeroes the simulated scale at its current weight
func (m *Mock) Tare(_ context.Context) scale.CommandResult {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.doneChan == nil {
		return scale.Errorf("not connected")
	}
	if m.current != nil {
		m.tareOffset += m.current.Weight
	}

	return scale.Success()
}

// SetUnit is accepted but has no effect, readings are emitted as scripted
func (m *Mock) SetUnit(_ context.Context, _ scale.Unit) scale.CommandResult {
	return scale.NotSupported()
}

// SingleReading returns the latest replayed reading
func (m *Mock) SingleReading(_ context.Context) (scale.Reading, error) {
	if r, ok := m.CurrentReading(); ok {
		return r, nil
	}

	return scale.Reading{}, scale.ErrNotConnected
}

// CurrentReading returns the latest replayed reading, if any
func (m *Mock) CurrentReading() (scale.Reading, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current == nil {
		return scale.Reading{}, false
	}

	return *m.current, true
}

// Supports reports tare and battery level as available
func (m *Mock) Supports(cmd scale.Command) bool {
	switch cmd {
	case scale.CommandTare, scale.CommandGetBatteryLevel:
		return true
	default:
		return false
	}
}

// ConnectionStatus returns the current simulated status
func (m *Mock) ConnectionStatus() scale.ConnectionStatus {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.status
}

// DeviceInfo returns simulated device information
func (m *Mock) DeviceInfo() scale.DeviceInfo {
	m.mu.Lock()
	defer m.mu.Unlock()

	var uptime time.Duration
	if m.timer != nil {
		uptime = m.timer.ElapsedTime()
	}
	battery := m.batteryLevel

	return scale.DeviceInfo{
		Name:      m.deviceName,
		Addr:      m.deviceAddr,
		Protocol:  "mock",
		Connected: m.doneChan != nil,
		Uptime:    uptime,
		Battery:   &battery,
	}
}

// SetStateChangeHandler defines a handler function that is called upon state change
func (m *Mock) SetStateChangeHandler(fn func(status scale.ConnectionStatus)) {
	m.stateChangeHandler = fn
}

// SetStateChangeChannel defines a channel that state changes are published on
func (m *Mock) SetStateChangeChannel(ch chan scale.ConnectionStatus) {
	m.stateChangeChan = ch
}

// SetReadingHandler defines a handler function that is called upon retrieval of a reading
func (m *Mock) SetReadingHandler(fn func(r scale.Reading)) {
	m.readingHandler = fn
}

// SetReadingChannel defines a channel that readings are published on
func (m *Mock) SetReadingChannel(ch chan scale.Reading) {
	m.readingChan = ch
}

// Close terminates the simulated session (idempotent)
func (m *Mock) Close() error {
	return m.Disconnect()
}

////////////////////////////////////////////////////////////////////////////////

func (m *Mock) replay(done chan struct{}, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			m.mu.Lock()
			if !m.reading || len(m.script) == 0 {
				m.mu.Unlock()
				continue
			}

			r := m.script[m.pos%len(m.script)]
			m.pos++

			r.TimeStamp = time.Now()
			r.Weight -= m.tareOffset
			battery := m.batteryLevel
			r.Battery = &battery

			m.current = &r
			m.mu.Unlock()

			m.publish(r)
		}
	}
}

func (m *Mock) setStatus(state scale.State, err error) {
	m.mu.Lock()
	m.status = scale.ConnectionStatus{
		State: state,
		Error: err,
	}
	status := m.status
	m.mu.Unlock()

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

func (m *Mock) publish(r scale.Reading) {

	// Call handler function, if any
	if m.readingHandler != nil {
		m.readingHandler(r)
	}

	// Put reading on channel, if any
	if m.readingChan != nil {
		select {
		case m.readingChan <- r:
		default:
		}
	}
}
