package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spooltrack/blescale/pkg/config"
	"github.com/spooltrack/blescale/pkg/driver"
	"github.com/spooltrack/blescale/pkg/mock"
	"github.com/spooltrack/blescale/pkg/permission"
	"github.com/spooltrack/blescale/pkg/scale"
	"github.com/spooltrack/blescale/pkg/scanner"
)

type cliConfig struct {
	addr       string
	scanWindow time.Duration
	debug      bool
	useMock    bool
}

var log = logrus.New()

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {

	// Parse command line options
	var cfg cliConfig

	flag.StringVar(&cfg.addr, "addr", "", "address of remote peripheral (strongest discovered device if empty)")
	flag.DurationVar(&cfg.scanWindow, "w", 10*time.Second, "scan session window")
	flag.BoolVar(&cfg.debug, "debug", false, "enable debug logging")
	flag.BoolVar(&cfg.useMock, "mock", false, "stream from a simulated scale instead of real hardware")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var (
		ctrl scale.Controller
		err  error
	)
	if cfg.useMock {
		m := mock.New(mock.WithScript([]scale.Reading{
			{Weight: 0, Stable: true, Unit: scale.UnitGrams},
			{Weight: 41.6, Stable: false, Unit: scale.UnitGrams},
			{Weight: 92, Stable: true, Unit: scale.UnitGrams},
		}))

		connectCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		defer cancel()
		if err = m.Connect(connectCtx); err != nil {
			return fmt.Errorf("failed to connect: %s", err)
		}
		ctrl = m
	} else {
		if ctrl, err = discoverAndConnect(ctx, cfg); err != nil {
			return err
		}
	}
	defer func() {
		if cerr := ctrl.Close(); cerr != nil {
			log.Warnf("Failed to close controller: %s", cerr)
		}
	}()

	ctrl.SetStateChangeHandler(func(status scale.ConnectionStatus) {
		log.Infof("State change: %v", status.State)
	})

	readingChan := make(chan scale.Reading, 256)
	ctrl.SetReadingChannel(readingChan)

	if err := ctrl.StartContinuousReading(); err != nil {
		return fmt.Errorf("failed to start continuous reading: %s", err)
	}

	info := ctrl.DeviceInfo()
	log.Infof("Streaming readings from `%s` (%s, protocol %s)", info.Name, info.Addr, info.Protocol)

	for {
		select {
		case <-ctx.Done():
			log.Infof("Got signal, terminating connection to device")
			return nil
		case r := <-readingChan:
			log.Infof("%s (stable: %v, capture: %v, method: %s)", r.Format(), r.Stable, r.IsValidForCapture(), r.Method)
		}
	}
}

// discoverAndConnect runs one scan session and connects to the requested (or
// strongest discovered) device
func discoverAndConnect(ctx context.Context, cfg cliConfig) (scale.Controller, error) {
	logger := scale.NewDefaultLogger(cfg.debug)
	gate := permission.NewGate(&permission.StaticAuthorizer{}, permission.WithLogger(logger))

	hub, err := driver.NewHub(gate, config.Defaults(),
		driver.WithLogger(logger),
		driver.WithScannerOptions(scanner.WithScanWindow(cfg.scanWindow)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize hub: %s", err)
	}
	if err := hub.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize BLE stack: %s", err)
	}

	// The radio state callback is asynchronous, give it a moment to power on
	time.Sleep(time.Second)

	if err := hub.Scanner().Start(); err != nil {
		return nil, fmt.Errorf("failed to start scanning: %s", err)
	}

	log.Infof("Scanning for %v ...", cfg.scanWindow)
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(cfg.scanWindow):
	}

	addr := cfg.addr
	if addr == "" {
		devices := hub.Scanner().Devices()
		if len(devices) == 0 {
			return nil, fmt.Errorf("no devices discovered")
		}
		addr = devices[0].Addr
		log.Infof("Using strongest discovered device `%s` (%s)", devices[0].Name, addr)
	}

	connectCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	return hub.Connect(connectCtx, addr)
}
