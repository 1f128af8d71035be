package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"github.com/spooltrack/blescale/pkg/api"
	"github.com/spooltrack/blescale/pkg/bt"
	"github.com/spooltrack/blescale/pkg/config"
	"github.com/spooltrack/blescale/pkg/driver"
	"github.com/spooltrack/blescale/pkg/permission"
	"github.com/spooltrack/blescale/pkg/scale"
	"github.com/spooltrack/blescale/pkg/scanner"
	"golang.org/x/sync/errgroup"
)

type cliConfig struct {
	bindAddr    string
	metricsAddr string
	configFile  string
	scanWindow  time.Duration
	debug       bool
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

	flag.StringVar(&cfg.bindAddr, "b", ":8080", "bind address of the REST API")
	flag.StringVar(&cfg.metricsAddr, "m", ":9090", "bind address of the metrics endpoint")
	flag.StringVar(&cfg.configFile, "c", "", "path to a YAML file with additional scale configurations")
	flag.DurationVar(&cfg.scanWindow, "w", scanner.DefaultScanWindow, "scan session window")
	flag.BoolVar(&cfg.debug, "debug", false, "enable debug logging")
	flag.Parse()

	registry := config.Defaults()
	if cfg.configFile != "" {
		var err error
		if registry, err = config.LoadFile(cfg.configFile); err != nil {
			return fmt.Errorf("failed to load scale configurations from `%s`: %s", cfg.configFile, err)
		}
	}

	logger := scale.NewDefaultLogger(cfg.debug)
	gate := permission.NewGate(&permission.StaticAuthorizer{}, permission.WithLogger(logger))

	hub, err := driver.NewHub(gate, registry,
		driver.WithLogger(logger),
		driver.WithScannerOptions(scanner.WithScanWindow(cfg.scanWindow)),
	)
	if err != nil {
		return fmt.Errorf("failed to initialize hub: %s", err)
	}
	if err := hub.Init(); err != nil {
		return fmt.Errorf("failed to initialize BLE stack: %s", err)
	}

	promRegistry := prometheus.NewRegistry()
	bt.RegisterMetrics(promRegistry)
	scanner.RegisterMetrics(promRegistry)

	restAPI := api.New(hub)

	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", promhttp.HandlerFor(promRegistry, promhttp.HandlerOpts{}))
	metricsServer := &http.Server{
		Addr:    cfg.metricsAddr,
		Handler: metricsMux,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Infof("Serving REST API on %s", cfg.bindAddr)
		return restAPI.Serve(cfg.bindAddr)
	})
	g.Go(func() error {
		log.Infof("Serving metrics on %s", cfg.metricsAddr)
		if err := metricsServer.ListenAndServe(); err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		log.Infof("Got signal, shutting down")

		if err := restAPI.Shutdown(); err != nil {
			log.Warnf("Failed to shut down REST API: %s", err)
		}
		if err := metricsServer.Shutdown(context.Background()); err != nil {
			log.Warnf("Failed to shut down metrics server: %s", err)
		}

		return hub.Close()
	})

	return g.Wait()
}
