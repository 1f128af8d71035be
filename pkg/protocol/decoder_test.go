package protocol

import (
	"testing"

	"github.com/spooltrack/blescale/pkg/scale"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeSignMagnitude(t *testing.T) {
	cases := []struct {
		name   string
		frame  []byte
		weight float64
		stable bool
		valid  bool
	}{
		{
			name:   "positive stable",
			frame:  []byte{0x08, 0x07, 0x03, 0x01, 0x00, 0x5C, 0x00},
			weight: 92.0,
			stable: true,
			valid:  true,
		},
		{
			name:   "positive unstable",
			frame:  []byte{0x08, 0x07, 0x03, 0x00, 0x00, 0x5C, 0x00},
			weight: 92.0,
			stable: false,
			valid:  true,
		},
		{
			name:   "negative via sign bit",
			frame:  []byte{0x08, 0x07, 0x03, 0x01, 0x80, 0x0A},
			weight: -10.0,
			stable: true,
			valid:  true,
		},
		{
			name:   "overflow byte contributes high part",
			frame:  []byte{0x08, 0x07, 0x03, 0x01, 0x02, 0x00},
			weight: 512.0,
			stable: true,
			valid:  true,
		},
		{
			name:  "short frame",
			frame: []byte{0x08, 0x07, 0x03, 0x01},
			valid: false,
		},
		{
			name:  "below window",
			frame: []byte{0x08, 0x07, 0x03, 0x01, 0x94, 0x02}, // -(0x14*256+2) = -5122
			valid: false,
		},
		{
			name:  "above window",
			frame: []byte{0x08, 0x07, 0x03, 0x01, 0x28, 0x00}, // 0x28*256 = 10240
			valid: false,
		},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			res := DecodeSignMagnitude(c.frame)

			assert.Equal(t, c.valid, res.Valid)
			if !c.valid {
				assert.Zero(t, res.Weight)
				return
			}
			assert.Equal(t, c.weight, res.Weight)
			assert.Equal(t, c.stable, res.Stable)
			assert.Equal(t, scale.DecodeSignMagnitude, res.Method)
		})
	}
}

func TestDecodeLegacy24Bit(t *testing.T) {
	cases := []struct {
		name   string
		frame  []byte
		weight float64
		valid  bool
	}{
		{
			name:   "low byte only",
			frame:  []byte{0x00, 0x00, 0x00, 0x00, 0x10, 0x00, 0x00},
			weight: 16.0,
			valid:  true,
		},
		{
			name:   "all three bytes within window",
			frame:  []byte{0xAA, 0xBB, 0xCC, 0xDD, 0x10, 0x27, 0x00}, // 10000
			weight: 10000.0,
			valid:  true,
		},
		{
			name:  "above window",
			frame: []byte{0x00, 0x00, 0x00, 0x00, 0x11, 0x27, 0x00}, // 10001
			valid: false,
		},
		{
			name:  "high byte set",
			frame: []byte{0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x01}, // 65536
			valid: false,
		},
		{
			name:  "short frame",
			frame: []byte{0x00, 0x00, 0x00, 0x00, 0x10, 0x00},
			valid: false,
		},
		{
			name:  "empty frame",
			frame: nil,
			valid: false,
		},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			res := DecodeLegacy24Bit(c.frame)

			assert.Equal(t, c.valid, res.Valid)
			if !c.valid {
				assert.Zero(t, res.Weight)
				return
			}
			assert.Equal(t, c.weight, res.Weight)
			assert.True(t, res.Stable)
			assert.Equal(t, scale.DecodeLegacy24, res.Method)
		})
	}
}

func TestDecodeVendorDispatch(t *testing.T) {

	// Frames carrying the sign-magnitude signature must never fall through
	// to the legacy decoder
	res := DecodeVendor([]byte{0x08, 0x07, 0x03, 0x01, 0x00, 0x5C, 0x00})
	require.True(t, res.Valid)
	assert.Equal(t, scale.DecodeSignMagnitude, res.Method)
	assert.Equal(t, 92.0, res.Weight)

	res = DecodeVendor([]byte{0x00, 0x00, 0x00, 0x00, 0x10, 0x00, 0x00})
	require.True(t, res.Valid)
	assert.Equal(t, scale.DecodeLegacy24, res.Method)
	assert.Equal(t, 16.0, res.Weight)
}

func TestIsSignMagnitudeFrame(t *testing.T) {
	assert.True(t, IsSignMagnitudeFrame([]byte{0x08, 0x07, 0x03, 0x01, 0x00, 0x5C}))
	assert.False(t, IsSignMagnitudeFrame([]byte{0x08, 0x07, 0x04, 0x01, 0x00, 0x5C}))
	assert.False(t, IsSignMagnitudeFrame([]byte{0x08, 0x07}))
	assert.False(t, IsSignMagnitudeFrame(nil))
}

func TestDecodeWSS(t *testing.T) {
	cases := []struct {
		name   string
		frame  []byte
		weight float64
		valid  bool
	}{
		{
			name:   "si units",
			frame:  []byte{0x00, 0x14, 0x00}, // 20 counts of 5g
			weight: 100.0,
			valid:  true,
		},
		{
			name:  "imperial flag set",
			frame: []byte{0x01, 0x14, 0x00},
			valid: false,
		},
		{
			name:  "above window",
			frame: []byte{0x00, 0xD1, 0x07}, // 2001 counts = 10005g
			valid: false,
		},
		{
			name:  "short frame",
			frame: []byte{0x00, 0x14},
			valid: false,
		},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			res := DecodeWSS(c.frame)

			assert.Equal(t, c.valid, res.Valid)
			if c.valid {
				assert.Equal(t, c.weight, res.Weight)
				assert.True(t, res.Stable)
			}
		})
	}
}

func TestDecodeSelectsConfiguredDecoder(t *testing.T) {
	frame := []byte{0x08, 0x07, 0x03, 0x01, 0x00, 0x5C, 0x00}

	res := Decode(DecoderVendor, frame)
	require.True(t, res.Valid)
	assert.Equal(t, scale.DecodeSignMagnitude, res.Method)

	// The heuristic decoder never reports stability
	res = Decode(DecoderHeuristic, frame)
	require.True(t, res.Valid)
	assert.False(t, res.Stable)

	// An unknown decoder tag falls through to the heuristic decoder
	res = Decode(Decoder("bogus"), frame)
	require.True(t, res.Valid)
	assert.False(t, res.Stable)
}
