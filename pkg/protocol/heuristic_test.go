package protocol

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSelectCandidate(t *testing.T) {

	// 50000 is outside the plausible band and never reaches selection;
	// between the remaining candidates the smallest one below the preferred
	// band wins
	candidates := []candidate{
		{weight: 1500, method: "heuristic:u16le@0"},
		{weight: 92, method: "heuristic:u16le@2"},
	}

	best, ok := selectCandidate(candidates)
	require.True(t, ok)
	assert.Equal(t, 92.0, best.weight)

	// All candidates above the preferred band: the first one wins
	best, ok = selectCandidate([]candidate{
		{weight: 4200},
		{weight: 2100},
	})
	require.True(t, ok)
	assert.Equal(t, 4200.0, best.weight)

	_, ok = selectCandidate(nil)
	assert.False(t, ok)
}

func TestHeuristicCandidatesPlausibility(t *testing.T) {
	frame := make([]byte, 2)
	binary.LittleEndian.PutUint16(frame, 50001)

	assert.Empty(t, filterWeights(heuristicCandidates(frame), 50001))

	binary.LittleEndian.PutUint16(frame, 50000)
	assert.Empty(t, filterWeights(heuristicCandidates(frame), 50000), "the plausible band excludes its upper bound")
}

func filterWeights(candidates []candidate, w float64) (out []candidate) {
	for _, c := range candidates {
		if c.weight == w {
			out = append(out, c)
		}
	}

	return out
}

func TestDecodeHeuristicFallsBackToFirstPlausible(t *testing.T) {

	// 0x1068: both 16-bit interpretations (4200 LE, 26640 BE) sit above the
	// preferred band, so the first plausible candidate is selected
	frame := make([]byte, 2)
	binary.LittleEndian.PutUint16(frame, 4200)

	res := DecodeHeuristic(frame)

	require.True(t, res.Valid)
	assert.False(t, res.Stable, "heuristic results must never report stability")
	assert.Equal(t, 4200.0, res.Weight)
	assert.Contains(t, string(res.Method), "u16le")
}

func TestDecodeHeuristicFloat(t *testing.T) {
	frame := make([]byte, 4)
	binary.LittleEndian.PutUint32(frame, math.Float32bits(41.6))

	res := DecodeHeuristic(frame)

	require.True(t, res.Valid)

	// All 16-bit interpretations of these bytes exceed the preferred band
	// while the float lands within it
	assert.InDelta(t, 41.6, res.Weight, 0.01)
	assert.Contains(t, string(res.Method), "f32le")
}

func TestDecodeHeuristicASCII(t *testing.T) {

	// Short enough that no float interpretation exists and both 16-bit
	// interpretations exceed the preferred band
	res := DecodeHeuristic([]byte("92g"))

	require.True(t, res.Valid)
	assert.InDelta(t, 92.0, res.Weight, 0.001)
	assert.Contains(t, string(res.Method), "ascii")
}

func TestExtractASCIINumber(t *testing.T) {
	v, ok := extractASCIINumber([]byte("ST,+92.0 g"))
	require.True(t, ok)
	assert.InDelta(t, 92.0, v, 0.001)

	v, ok = extractASCIINumber([]byte("w -5.5 end"))
	require.True(t, ok)
	assert.InDelta(t, -5.5, v, 0.001)

	_, ok = extractASCIINumber([]byte{0x08, 0x07, 0x03})
	assert.False(t, ok)

	_, ok = extractASCIINumber(nil)
	assert.False(t, ok)
}

func TestDecodeHeuristicNoCandidates(t *testing.T) {
	res := DecodeHeuristic(nil)
	assert.False(t, res.Valid)
	assert.Zero(t, res.Weight)

	// A single byte offers no 16-bit, float or ASCII interpretation
	res = DecodeHeuristic([]byte{0xFF})
	assert.False(t, res.Valid)
}
