package protocol

import (
	"encoding/binary"
	"fmt"
	"math"
	"strconv"

	"github.com/spooltrack/blescale/pkg/scale"
)

// candidate denotes one interpretation of a frame produced by the heuristic
// decoder
type candidate struct {
	weight float64
	method scale.DecodeMethod
}

// DecodeHeuristic attempts to extract a weight from a frame of unknown
// format. It generates candidates by interpreting the bytes as 16-bit
// little/big-endian integers at every offset, as 32-bit floats in both byte
// orders and as an embedded ASCII number, keeps only plausible values and
// deterministically selects the smallest plausible candidate below the
// preferred band, falling back to the first plausible one. A frame with no
// plausible interpretation yields an invalid zero result.
func DecodeHeuristic(b []byte) Result {
	best, ok := selectCandidate(heuristicCandidates(b))
	if !ok {
		return Result{Method: scale.DecodeNone}
	}

	return Result{
		Weight: best.weight,
		Stable: false,
		Valid:  true,
		Method: best.method,
	}
}

// selectCandidate ranks an ordered candidate list: the smallest candidate
// below the preferred band wins, else the first one.
func selectCandidate(candidates []candidate) (candidate, bool) {
	if len(candidates) == 0 {
		return candidate{}, false
	}

	best := candidates[0]
	found := false
	for _, c := range candidates {
		if c.weight >= preferredMax {
			continue
		}
		if !found || c.weight < best.weight {
			best = c
			found = true
		}
	}
	if !found {
		best = candidates[0]
	}

	return best, true
}

// heuristicCandidates generates the ordered, plausibility-filtered candidate
// list for a frame. Generation order is fixed so selection stays
// deterministic: 16-bit integers by ascending offset (LE before BE), then
// 32-bit floats, then ASCII extraction.
func heuristicCandidates(b []byte) (out []candidate) {
	for off := 0; off+2 <= len(b); off++ {
		le := float64(binary.LittleEndian.Uint16(b[off:]))
		if plausible(le) {
			out = append(out, candidate{
				weight: le,
				method: heuristicMethod("u16le", off),
			})
		}

		be := float64(binary.BigEndian.Uint16(b[off:]))
		if plausible(be) {
			out = append(out, candidate{
				weight: be,
				method: heuristicMethod("u16be", off),
			})
		}
	}

	if len(b) >= 4 {
		fle := float64(math.Float32frombits(binary.LittleEndian.Uint32(b)))
		if plausible(fle) {
			out = append(out, candidate{
				weight: fle,
				method: heuristicMethod("f32le", 0),
			})
		}

		fbe := float64(math.Float32frombits(binary.BigEndian.Uint32(b)))
		if plausible(fbe) {
			out = append(out, candidate{
				weight: fbe,
				method: heuristicMethod("f32be", 0),
			})
		}
	}

	if v, ok := extractASCIINumber(b); ok && plausible(v) {
		out = append(out, candidate{
			weight: v,
			method: scale.DecodeHeuristic + ":ascii",
		})
	}

	return out
}

func heuristicMethod(kind string, offset int) scale.DecodeMethod {
	return scale.DecodeMethod(fmt.Sprintf("%s:%s@%d", scale.DecodeHeuristic, kind, offset))
}

// plausible reports whether a candidate weight falls into the band a
// filament spool (plus spool holder) could actually produce.
func plausible(w float64) bool {
	return !math.IsNaN(w) && !math.IsInf(w, 0) && w >= 0 && w < plausibleMax
}

// extractASCIINumber scans the frame for a contiguous run of ASCII digits
// (with an optional decimal point) and parses it as a weight. Some scales
// ship the display value verbatim.
func extractASCIINumber(b []byte) (float64, bool) {
	start := -1
	best := ""

	flush := func(end int) {
		if start < 0 {
			return
		}
		run := string(b[start:end])
		if len(run) > len(best) {
			best = run
		}
		start = -1
	}

	for i, c := range b {
		if (c >= '0' && c <= '9') || c == '.' || c == '-' {
			if start < 0 {
				start = i
			}
			continue
		}
		flush(i)
	}
	flush(len(b))

	if best == "" {
		return 0, false
	}

	v, err := strconv.ParseFloat(best, 64)
	if err != nil {
		return 0, false
	}

	return v, true
}
