// Package driver selects and instantiates the controller for a discovered
// device and composes the radio, scanner and session management into a
// single hub with one set of stack callbacks.
package driver

import (
	"github.com/spooltrack/blescale/pkg/bt"
	"github.com/spooltrack/blescale/pkg/config"
	"github.com/spooltrack/blescale/pkg/generic"
	"github.com/spooltrack/blescale/pkg/protocol"
	"github.com/spooltrack/blescale/pkg/scale"
	"github.com/spooltrack/blescale/pkg/wss"
)

// Controller extends the generic controller surface by the stack callback
// routing required by the hub
type Controller interface {
	scale.Controller

	HandleConnected(p bt.Peripheral, err error)
	HandleDisconnected(p bt.Peripheral, err error)
}

// NewController instantiates the controller matching the given
// configuration. A nil or unknown configuration falls back to the vendor
// controller with the heuristic decoder, so unmatched devices remain usable.
func NewController(mgr *bt.SessionManager, p bt.Peripheral, cfg *config.ScaleConfig, logger scale.Logger) Controller {
	if cfg == nil {
		fallback := fallbackConfig()
		logger.Warnf("no configuration matched for device `%s`, falling back to heuristic decoding", p.ID())
		return generic.New(mgr, p, fallback, generic.WithLogger(logger))
	}

	switch cfg.ID {
	case config.IDVendorScale:
		return generic.New(mgr, p, *cfg, generic.WithLogger(logger))
	case config.IDStandardScale:
		return wss.New(mgr, p, *cfg, wss.WithLogger(logger))
	default:
		custom := *cfg
		if custom.Decoder == "" {
			custom.Decoder = protocol.DecoderHeuristic
		}
		return generic.New(mgr, p, custom, generic.WithLogger(logger))
	}
}

// fallbackConfig returns the vendor configuration with the heuristic decoder
// substituted, used for devices without a matched configuration
func fallbackConfig() config.ScaleConfig {
	cfg, _ := config.Defaults().ByID(config.IDVendorScale)
	cfg.Decoder = protocol.DecoderHeuristic

	return cfg
}
