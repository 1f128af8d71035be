// Package scanner implements permission-gated BLE advertisement scanning
// with service filters derived from the known scale configurations.
package scanner

import (
	"sort"
	"sync"
	"time"

	"github.com/fako1024/gatt"
	"github.com/fatih/stopwatch"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spooltrack/blescale/pkg/bt"
	"github.com/spooltrack/blescale/pkg/config"
	"github.com/spooltrack/blescale/pkg/permission"
	"github.com/spooltrack/blescale/pkg/scale"
	"golang.org/x/exp/maps"
)

// DefaultScanWindow bounds a scan session
const DefaultScanWindow = 20 * time.Second

var (
	scanSessionsCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "blescale_scan_sessions_total",
		Help: "Number of scan sessions started",
	})
	advertisementsCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "blescale_advertisements_total",
		Help: "Number of advertisements processed during scans",
	})
)

// RegisterMetrics registers the scanner counters with the given registry
func RegisterMetrics(reg prometheus.Registerer) {
	reg.MustRegister(scanSessionsCounter, advertisementsCounter)
}

// Radio is the subset of gatt.Device used for scanning
type Radio interface {
	Scan(ss []gatt.UUID, allowDup bool) error
	StopScanning() error
}

// DiscoveredDevice denotes one device seen during the current scan session.
// Entries are upserted by address; Config is the matched scale
// configuration, if any advertised service equals a known one.
type DiscoveredDevice struct {
	Addr     string
	Name     string
	RSSI     int
	Services []string
	Config   *config.ScaleConfig
	LastSeen time.Time
}

// Scanner performs timeout-bounded advertisement scans and maintains the
// deduplicated, signal-strength ranked device list
type Scanner struct {
	radio    Radio
	gate     *permission.Gate
	registry *config.Registry

	mu          sync.Mutex
	scanning    bool
	poweredOn   bool
	gen         uint64
	devices     map[string]*DiscoveredDevice
	peripherals map[string]bt.Peripheral
	timer       *time.Timer
	session     *stopwatch.Stopwatch

	window time.Duration

	devicesHandler func(devices []DiscoveredDevice)
	devicesChan    chan []DiscoveredDevice

	logger scale.Logger
}

// New instantiates a scanner over the given radio, permission gate and
// configuration registry, executing functional options, if any
func New(radio Radio, gate *permission.Gate, registry *config.Registry, options ...func(*Scanner)) *Scanner {
	s := &Scanner{
		radio:       radio,
		gate:        gate,
		registry:    registry,
		devices:     make(map[string]*DiscoveredDevice),
		peripherals: make(map[string]bt.Peripheral),
		window:      DefaultScanWindow,
		logger:      &scale.NullLogger{},
	}

	for _, option := range options {
		option(s)
	}

	return s
}

// WithScanWindow overrides the scan session timeout
func WithScanWindow(d time.Duration) func(*Scanner) {
	return func(s *Scanner) {
		s.window = d
	}
}

// WithLogger sets the logger used by the scanner
func WithLogger(l scale.Logger) func(*Scanner) {
	return func(s *Scanner) {
		s.logger = l
	}
}

// SetDevicesHandler defines a handler function that is called with a fresh
// snapshot whenever the discovered list changes
func (s *Scanner) SetDevicesHandler(fn func(devices []DiscoveredDevice)) {
	s.devicesHandler = fn
}

// SetDevicesChannel defines a channel that device list snapshots are
// published on
func (s *Scanner) SetDevicesChannel(ch chan []DiscoveredDevice) {
	s.devicesChan = ch
}

// HandleRadioState is invoked by the stack's state callback and tracks
// whether the radio is powered
func (s *Scanner) HandleRadioState(state gatt.State) {
	s.mu.Lock()
	s.poweredOn = state == gatt.StatePoweredOn
	wasScanning := s.scanning
	if !s.poweredOn {
		s.scanning = false
	}
	s.mu.Unlock()

	if !s.poweredOn && wasScanning {
		s.logger.Warnf("radio powered off during scan")
	}
}

// PoweredOn returns if the radio is currently powered
func (s *Scanner) PoweredOn() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.poweredOn
}

// Start begins a new scan session. Precondition violations (missing
// permissions, radio off, scan already running) log and return nil without
// side effects; only a radio-reported failure surfaces as an error.
func (s *Scanner) Start() error {
	if !s.gate.HasAll() {
		s.logger.Warnf("not scanning: bluetooth permissions missing: %v", s.gate.Missing())
		return nil
	}

	s.mu.Lock()
	if !s.poweredOn {
		s.mu.Unlock()
		s.logger.Warnf("not scanning: radio is not powered on")
		return nil
	}
	if s.scanning {
		s.mu.Unlock()
		s.logger.Warnf("not scanning: scan already in progress")
		return nil
	}

	// A new session starts from an empty discovered set
	s.devices = make(map[string]*DiscoveredDevice)
	s.peripherals = make(map[string]bt.Peripheral)
	s.scanning = true
	s.gen++
	s.session = stopwatch.Start(0)

	filters := s.registry.ServiceFilters()
	window := s.window
	gen := s.gen
	s.timer = time.AfterFunc(window, func() {
		s.logger.Debugf("scan window of %v elapsed, stopping", window)
		s.stop(gen, false)
	})
	s.mu.Unlock()

	scanSessionsCounter.Inc()

	if len(filters) == 0 {
		s.logger.Debugf("no resolvable service filters, scanning unfiltered")
	}
	s.logger.Debugf("starting scan session (window %v, %d filters)", window, len(filters))

	if err := s.radio.Scan(filters, true); err != nil {
		s.mu.Lock()
		s.scanning = false
		if s.timer != nil {
			s.timer.Stop()
			s.timer = nil
		}
		s.mu.Unlock()

		return errors.Wrap(scale.ErrScanFailure, err.Error())
	}

	return nil
}

// Stop ends the current scan session and cancels its pending timeout. It is
// idempotent and never fails: a stop request on an idle scanner is a no-op.
func (s *Scanner) Stop() {
	s.stop(0, true)
}

// stop ends the session identified by gen (or unconditionally if force is
// set). A window timer that fired after its session ended carries a stale
// generation and must not stop a newer session.
func (s *Scanner) stop(gen uint64, force bool) {
	s.mu.Lock()
	if !s.scanning || (!force && gen != s.gen) {
		s.mu.Unlock()
		return
	}
	s.scanning = false
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	var elapsed time.Duration
	if s.session != nil {
		s.session.Stop()
		elapsed = s.session.ElapsedTime()
	}
	found := len(s.devices)
	s.mu.Unlock()

	if err := s.radio.StopScanning(); err != nil {
		s.logger.Warnf("failed to stop scanning: %s", err)
	}

	s.logger.Infof("scan session finished after %v, %d device(s) found", elapsed, found)
}

// Scanning returns if a scan session is currently active
func (s *Scanner) Scanning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.scanning
}

// HandleDiscovery is invoked by the stack's discovery callback. The device
// entry is upserted by address and the snapshot re-published; the matched
// scale configuration is computed once per device.
func (s *Scanner) HandleDiscovery(p bt.Peripheral, a *gatt.Advertisement, rssi int) {
	advertisementsCounter.Inc()

	s.mu.Lock()
	if !s.scanning {
		s.mu.Unlock()
		return
	}

	addr := p.ID()
	services := advertisedServices(a)

	dev, ok := s.devices[addr]
	if !ok {
		dev = &DiscoveredDevice{Addr: addr}
		s.devices[addr] = dev
	}

	name := a.LocalName
	if name == "" {
		name = p.Name()
	}
	if name != "" {
		dev.Name = name
	}
	dev.RSSI = rssi
	if len(services) > 0 {
		dev.Services = services
	}
	dev.LastSeen = time.Now()

	if dev.Config == nil {
		dev.Config = s.matchConfig(dev.Services)
	}

	s.peripherals[addr] = p
	snapshot := s.snapshotLocked()
	s.mu.Unlock()

	s.logger.Debugf("discovered device `%s/%s` (RSSI %d, %d services)", dev.Name, addr, rssi, len(services))

	s.publish(snapshot)
}

// Devices returns the current discovered list, sorted by descending signal
// strength
func (s *Scanner) Devices() []DiscoveredDevice {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.snapshotLocked()
}

// Peripheral returns the live peripheral handle for a discovered address
func (s *Scanner) Peripheral(addr string) (bt.Peripheral, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.peripherals[addr]
	return p, ok
}

// matchConfig returns the first known configuration whose service UUID
// appears among the advertised ones
func (s *Scanner) matchConfig(services []string) *config.ScaleConfig {
	for _, svc := range services {
		if cfg, ok := s.registry.MatchService(svc); ok {
			return &cfg
		}
	}

	return nil
}

// snapshotLocked copies the device map into a slice sorted by descending
// RSSI; callers hold s.mu
func (s *Scanner) snapshotLocked() []DiscoveredDevice {
	out := make([]DiscoveredDevice, 0, len(s.devices))
	for _, dev := range maps.Values(s.devices) {
		out = append(out, *dev)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].RSSI > out[j].RSSI
	})

	return out
}

func (s *Scanner) publish(snapshot []DiscoveredDevice) {

	// Call handler function, if any
	if s.devicesHandler != nil {
		s.devicesHandler(snapshot)
	}

	// Put snapshot on channel, if any
	if s.devicesChan != nil {
		select {
		case s.devicesChan <- snapshot:
		default:
		}
	}
}

func advertisedServices(a *gatt.Advertisement) []string {
	if a == nil {
		return nil
	}

	out := make([]string, 0, len(a.Services))
	for _, u := range a.Services {
		out = append(out, u.String())
	}

	return out
}
