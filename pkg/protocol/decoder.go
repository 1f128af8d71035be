// Package protocol contains the pure byte-level weight decoders. All
// functions are side-effect free: they take a raw notification frame and
// return a Result, never panicking on short or malformed input. Malformed
// frames yield an invalid zero result rather than an error.
package protocol

import (
	"github.com/spooltrack/blescale/pkg/scale"
)

// Decoder selects the frame format bound to a scale configuration
type Decoder string

const (

	// DecoderVendor denotes the reverse-engineered vendor protocol
	// (legacy 24-bit and sign-magnitude sub-formats)
	DecoderVendor Decoder = "vendor"

	// DecoderWSS denotes the official BLE Weight Scale Service profile
	DecoderWSS Decoder = "wss"

	// DecoderHeuristic denotes the multi-candidate guess decoder
	DecoderHeuristic Decoder = "heuristic"
)

// Result denotes the outcome of decoding a single frame
type Result struct {
	Weight float64
	Stable bool
	Valid  bool
	Method scale.DecodeMethod
}

// Sign-magnitude frames start with this 3-byte signature
var signMagnitudeSignature = [3]byte{0x08, 0x07, 0x03}

// Weight sanity windows in grams
const (
	legacyMaxWeight = 10000.
	signMagMin      = -5000.
	signMagMax      = 10000.
	plausibleMax    = 50000.
	preferredMax    = 2000.
)

// DecodeLegacy24Bit decodes the legacy vendor format: an unsigned 24-bit
// little-endian weight at bytes 4..6. Values outside 0..10000 are treated as
// no reading.
func DecodeLegacy24Bit(b []byte) Result {
	if len(b) < 7 {
		return Result{Method: scale.DecodeNone}
	}

	raw := uint32(b[4]) | uint32(b[5])<<8 | uint32(b[6])<<16
	w := float64(raw)
	if w > legacyMaxWeight {
		return Result{Method: scale.DecodeLegacy24}
	}

	return Result{
		Weight: w,
		Stable: true,
		Valid:  true,
		Method: scale.DecodeLegacy24,
	}
}

// DecodeSignMagnitude decodes the newer vendor frame: byte 3 carries the
// stability flag, bit 7 of byte 4 the sign, the remaining 7 bits the overflow
// and byte 5 the low magnitude byte. This is sign-magnitude, not
// two's-complement: sign and overflow bits are decoded independently.
func DecodeSignMagnitude(b []byte) Result {
	if len(b) < 6 {
		return Result{Method: scale.DecodeNone}
	}

	stable := b[3] == 1
	negative := b[4]&0x80 != 0
	overflow := float64(b[4] & 0x7F)

	w := overflow*256 + float64(b[5])
	if negative {
		w = -w
	}

	if w < signMagMin || w > signMagMax {
		return Result{Method: scale.DecodeSignMagnitude}
	}

	return Result{
		Weight: w,
		Stable: stable,
		Valid:  true,
		Method: scale.DecodeSignMagnitude,
	}
}

// IsSignMagnitudeFrame reports whether the frame carries the sign-magnitude
// signature.
func IsSignMagnitudeFrame(b []byte) bool {
	return len(b) >= 3 &&
		b[0] == signMagnitudeSignature[0] &&
		b[1] == signMagnitudeSignature[1] &&
		b[2] == signMagnitudeSignature[2]
}

// DecodeVendor decodes a vendor frame, dispatching on the 3-byte signature
// between the sign-magnitude and the legacy 24-bit sub-format.
func DecodeVendor(b []byte) Result {
	if IsSignMagnitudeFrame(b) {
		return DecodeSignMagnitude(b)
	}
	return DecodeLegacy24Bit(b)
}

// Decode runs the decoder selected by the given tag against the frame.
// Unknown tags fall through to the heuristic decoder.
func Decode(d Decoder, b []byte) Result {
	switch d {
	case DecoderVendor:
		return DecodeVendor(b)
	case DecoderWSS:
		return DecodeWSS(b)
	default:
		return DecodeHeuristic(b)
	}
}

// DecodeWSS decodes an official Weight Measurement characteristic frame
// (flags byte followed by a uint16 weight in units of 5g resolution when the
// SI flag is clear). Only the minimal SI path is bound; anything else is
// reported as no reading.
func DecodeWSS(b []byte) Result {
	if len(b) < 3 {
		return Result{Method: scale.DecodeNone}
	}

	// Bit 0 of the flags byte set means imperial units, which the stub does
	// not bind yet.
	if b[0]&0x01 != 0 {
		return Result{Method: scale.DecodeNone}
	}

	raw := uint16(b[1]) | uint16(b[2])<<8
	w := float64(raw) * 5 // resolution is 0.005 kg, i.e. 5 g per count

	if w < 0 || w > legacyMaxWeight {
		return Result{Method: scale.DecodeNone}
	}

	return Result{
		Weight: w,
		Stable: true,
		Valid:  true,
		Method: scale.DecodeMethod("wss"),
	}
}
