package bt

import "github.com/prometheus/client_golang/prometheus"

var (
	successfulConnectionsCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "blescale_successful_connections_total",
		Help: "Number of successfully established scale sessions",
	})
	failedConnectionsCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "blescale_failed_connections_total",
		Help: "Number of failed or timed out connection attempts",
	})
	disconnectsCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "blescale_disconnections_total",
		Help: "Number of session teardowns (requested or device-initiated)",
	})
	framesDecodedCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "blescale_frames_decoded_total",
		Help: "Number of weight notification frames decoded successfully",
	})
	framesRejectedCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "blescale_frames_rejected_total",
		Help: "Number of weight notification frames rejected by the decoders",
	})
	tareWritesCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "blescale_tare_writes_total",
		Help: "Number of tare candidate writes attempted",
	})
)

// RegisterMetrics registers the session-layer counters with the given
// registry
func RegisterMetrics(reg prometheus.Registerer) {
	reg.MustRegister(
		successfulConnectionsCounter,
		failedConnectionsCounter,
		disconnectsCounter,
		framesDecodedCounter,
		framesRejectedCounter,
		tareWritesCounter,
	)
}

// CountDecodedFrame increments the decode outcome counters; called by the
// controllers after running a frame through the protocol decoders.
func CountDecodedFrame(valid bool) {
	if valid {
		framesDecodedCounter.Inc()
		return
	}
	framesRejectedCounter.Inc()
}
