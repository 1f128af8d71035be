package bt

import (
	"context"
	"time"

	"github.com/fako1024/gatt"
	"github.com/spooltrack/blescale/pkg/scale"
)

// DefaultSettleDelay is how long the dispatcher waits after an accepted tare
// write to let the device settle on the new baseline
const DefaultSettleDelay = time.Second

// Candidate tare byte sequences, tried in order against the weight
// characteristic. The set covers single command bytes, short ASCII command
// words and vendor multi-byte prefixes observed across scale models.
var defaultTareCandidates = [][]byte{
	{0x54},         // 'T'
	{0x5A},         // 'Z'
	[]byte("TARE"),
	[]byte("ZERO"),
	{0xEF, 0xDD, 0x04, 0x00, 0x00, 0x00},
	{0x08, 0x07, 0x04, 0x00, 0x00, 0x00},
}

// Dispatcher retries an ordered list of candidate command byte sequences
// against a bound characteristic. The first write the stack accepts counts
// as success; this asserts the write was accepted by the peripheral, not
// that the scale confirmed a zeroed weight.
type Dispatcher struct {
	writer     CharacteristicWriter
	char       *gatt.Characteristic
	candidates [][]byte
	settle     time.Duration
	logger     scale.Logger
}

// NewDispatcher instantiates a command dispatcher for the given
// characteristic, executing functional options, if any
func NewDispatcher(w CharacteristicWriter, c *gatt.Characteristic, options ...func(*Dispatcher)) *Dispatcher {
	d := &Dispatcher{
		writer:     w,
		char:       c,
		candidates: defaultTareCandidates,
		settle:     DefaultSettleDelay,
		logger:     &scale.NullLogger{},
	}

	for _, option := range options {
		option(d)
	}

	return d
}

// WithTareCandidates overrides the ordered candidate list
func WithTareCandidates(candidates [][]byte) func(*Dispatcher) {
	return func(d *Dispatcher) {
		d.candidates = candidates
	}
}

// WithSettleDelay overrides the post-write settle delay
func WithSettleDelay(delay time.Duration) func(*Dispatcher) {
	return func(d *Dispatcher) {
		d.settle = delay
	}
}

// WithDispatcherLogger sets the logger used by the dispatcher
func WithDispatcherLogger(l scale.Logger) func(*Dispatcher) {
	return func(d *Dispatcher) {
		d.logger = l
	}
}

// Tare writes the candidate sequences in order until one is accepted, then
// pauses to let the device settle. If every candidate is rejected an error
// result carrying the last failure is returned.
func (d *Dispatcher) Tare(ctx context.Context) scale.CommandResult {
	if d.char == nil {
		return scale.Errorf("no weight characteristic bound")
	}
	if len(d.candidates) == 0 {
		return scale.Errorf("no tare candidates configured")
	}

	var lastErr error
	for i, candidate := range d.candidates {
		select {
		case <-ctx.Done():
			return scale.Timeout()
		default:
		}

		tareWritesCounter.Inc()
		if err := d.writer.WriteCharacteristic(d.char, candidate, false); err != nil {
			d.logger.Debugf("tare candidate %d (% x) rejected: %s", i, candidate, err)
			lastErr = err
			continue
		}

		d.logger.Debugf("tare candidate %d (% x) accepted", i, candidate)

		select {
		case <-time.After(d.settle):
			return scale.Success()
		case <-ctx.Done():
			return scale.Timeout()
		}
	}

	return scale.Errorf("all tare candidates rejected: %s", lastErr)
}
