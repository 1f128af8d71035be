package driver

import (
	"context"
	"sync"

	"github.com/fako1024/gatt"
	"github.com/pkg/errors"
	"github.com/spooltrack/blescale/pkg/bt"
	"github.com/spooltrack/blescale/pkg/config"
	"github.com/spooltrack/blescale/pkg/permission"
	"github.com/spooltrack/blescale/pkg/scale"
	"github.com/spooltrack/blescale/pkg/scanner"
)

// Hub owns the BLE stack handle and routes its callbacks to the scanner and
// the currently active controller. At most one controller is active at a
// time, enforced by the shared session manager.
type Hub struct {
	dev      gatt.Device
	gate     *permission.Gate
	registry *config.Registry
	scanner  *scanner.Scanner
	mgr      *bt.SessionManager

	mu     sync.Mutex
	active Controller

	scannerOptions []func(*scanner.Scanner)

	logger scale.Logger
}

// NewHub instantiates a hub over a fresh stack handle, executing functional
// options, if any
func NewHub(gate *permission.Gate, registry *config.Registry, options ...func(*Hub)) (*Hub, error) {
	dev, err := gatt.NewDevice(defaultBTClientOptions...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to initialize BLE stack")
	}

	return NewHubWithDevice(dev, gate, registry, options...), nil
}

// NewHubWithDevice instantiates a hub over an existing stack handle
func NewHubWithDevice(dev gatt.Device, gate *permission.Gate, registry *config.Registry, options ...func(*Hub)) *Hub {
	h := &Hub{
		dev:      dev,
		gate:     gate,
		registry: registry,
		logger:   &scale.NullLogger{},
	}

	for _, option := range options {
		option(h)
	}

	h.mgr = bt.NewSessionManager(bt.WrapDevice(dev), bt.WithLogger(h.logger))

	scannerOptions := append([]func(*scanner.Scanner){scanner.WithLogger(h.logger)}, h.scannerOptions...)
	h.scanner = scanner.New(dev, gate, registry, scannerOptions...)

	return h
}

// WithLogger sets the logger used by the hub and its components
func WithLogger(l scale.Logger) func(*Hub) {
	return func(h *Hub) {
		h.logger = l
	}
}

// WithScannerOptions forwards options to the scan component
func WithScannerOptions(options ...func(*scanner.Scanner)) func(*Hub) {
	return func(h *Hub) {
		h.scannerOptions = append(h.scannerOptions, options...)
	}
}

// Init registers the stack callbacks and initializes the radio. It must be
// called exactly once before scanning or connecting.
func (h *Hub) Init() error {

	// Register handlers
	h.dev.Handle(
		gatt.AddPeripheralDiscovered(h.onPeriphDiscovered),
		gatt.AddPeripheralConnected(h.onPeriphConnected),
		gatt.AddPeripheralDisconnected(h.onPeriphDisconnected),
	)

	// Initialize the device
	return h.dev.Init(h.onStateChanged)
}

// Scanner returns the scan component
func (h *Hub) Scanner() *scanner.Scanner {
	return h.scanner
}

// SessionManager returns the shared session manager
func (h *Hub) SessionManager() *bt.SessionManager {
	return h.mgr
}

// Controller returns the currently active controller, if any
func (h *Hub) Controller() (Controller, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	return h.active, h.active != nil
}

// Connect instantiates the controller for a previously discovered device and
// establishes the session. Any prior controller is closed first.
func (h *Hub) Connect(ctx context.Context, addr string) (Controller, error) {
	p, ok := h.scanner.Peripheral(addr)
	if !ok {
		return nil, errors.Errorf("device `%s` has not been discovered", addr)
	}

	var cfg *config.ScaleConfig
	for _, dev := range h.scanner.Devices() {
		if dev.Addr == addr {
			cfg = dev.Config
			break
		}
	}

	// Scanning and an active link are mutually exclusive on most adapters
	h.scanner.Stop()

	h.mu.Lock()
	if h.active != nil {
		if err := h.active.Close(); err != nil {
			h.logger.Warnf("failed to close previous controller: %s", err)
		}
	}
	ctrl := NewController(h.mgr, p, cfg, h.logger)
	h.active = ctrl
	h.mu.Unlock()

	if err := ctrl.Connect(ctx); err != nil {
		h.mu.Lock()
		if h.active == ctrl {
			h.active = nil
		}
		h.mu.Unlock()

		return nil, err
	}

	return ctrl, nil
}

// Disconnect closes the active controller, if any (idempotent)
func (h *Hub) Disconnect() error {
	h.mu.Lock()
	ctrl := h.active
	h.active = nil
	h.mu.Unlock()

	if ctrl == nil {
		return nil
	}

	return ctrl.Close()
}

// Close releases the active controller and shuts down scanning
func (h *Hub) Close() error {
	h.scanner.Stop()

	return h.Disconnect()
}

////////////////////////////////////////////////////////////////////////////////

func (h *Hub) onStateChanged(d gatt.Device, s gatt.State) {
	h.logger.Debugf("radio state changed to %v", s)

	h.scanner.HandleRadioState(s)
}

func (h *Hub) onPeriphDiscovered(p gatt.Peripheral, a *gatt.Advertisement, rssi int) {
	h.scanner.HandleDiscovery(p, a, rssi)
}

func (h *Hub) onPeriphConnected(p gatt.Peripheral, connErr error) {
	h.mu.Lock()
	ctrl := h.active
	h.mu.Unlock()

	if ctrl == nil {

		// Connection completed without an owner, drop the link
		h.logger.Warnf("connection callback for `%s` without active controller", p.ID())
		_ = h.dev.CancelConnection(p)
		return
	}

	ctrl.HandleConnected(p, connErr)
}

func (h *Hub) onPeriphDisconnected(p gatt.Peripheral, err error) {
	h.mu.Lock()
	ctrl := h.active
	h.mu.Unlock()

	if ctrl == nil {
		return
	}

	ctrl.HandleDisconnected(p, err)
}
