package generic

import (
	"github.com/spooltrack/blescale/pkg/bt"
	"github.com/spooltrack/blescale/pkg/protocol"
	"github.com/spooltrack/blescale/pkg/scale"
)

// WithLogger sets the logger used by the controller
func WithLogger(l scale.Logger) func(*Scale) {
	return func(s *Scale) {
		s.logger = l
	}
}

// WithDecoder overrides the decoder bound by the configuration
func WithDecoder(d protocol.Decoder) func(*Scale) {
	return func(s *Scale) {
		s.decoder = d
	}
}

// WithRSSI attaches the discovery-time signal strength to published readings
func WithRSSI(rssi int) func(*Scale) {
	return func(s *Scale) {
		v := rssi
		s.rssi = &v
	}
}

// WithDispatcherOptions passes options through to the tare command
// dispatcher
func WithDispatcherOptions(options ...func(*bt.Dispatcher)) func(*Scale) {
	return func(s *Scale) {
		s.dispatcherOptions = options
	}
}
