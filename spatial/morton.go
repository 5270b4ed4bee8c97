// Package spatial computes the deterministic 63-bit Morton (Z-order) index
// every exported row is physically sorted by.  The encoding is a pure
// function of the coordinates plus two build-wide constants, so identical
// inputs always produce identical indices across runs and machines.
package spatial

import (
	"fmt"
	"math"
)

const (
	// BitsPerAxis is fixed for the v1 export schema; 3*21 = 63 bits keeps
	// the index inside a signed 64-bit integer with the sign bit clear.
	BitsPerAxis = 21

	// DefaultDomainHalfWidthLy is the default half-width of the cubic
	// encoding domain, in light-years.
	DefaultDomainHalfWidthLy = 1000.0

	maxAxisValue = (1 << BitsPerAxis) - 1
)

// QuantizationRule is persisted into build metadata verbatim so historical
// builds remain interpretable.
const QuantizationRule = "q = clamp(round((coord + D) * (2^21-1)/(2D)), 0, 2^21-1); morton = interleave(qx, qy, qz)"

// DomainError signals a coordinate outside the configured domain.  This is
// build-fatal: silently clamping an out-of-domain point would corrupt
// spatial locality for every row sorted after it.
type DomainError struct {
	X, Y, Z   float64
	HalfWidth float64
}

func (e *DomainError) Error() string {
	return fmt.Sprintf("coordinate (%v, %v, %v) exceeds spatial domain half-width %v ly", e.X, e.Y, e.Z, e.HalfWidth)
}

// Encoder maps heliocentric coordinates onto Morton codes for one build.
type Encoder struct {
	halfWidth float64
	scale     float64
}

// NewEncoder constructs an encoder for the given domain half-width.  A
// non-positive half-width falls back to the default.
func NewEncoder(domainHalfWidthLy float64) *Encoder {
	if domainHalfWidthLy <= 0 {
		domainHalfWidthLy = DefaultDomainHalfWidthLy
	}
	enc := &Encoder{
		halfWidth: domainHalfWidthLy,
		scale:     float64(maxAxisValue) / (2 * domainHalfWidthLy),
	}
	return enc
}

// HalfWidth returns the configured domain half-width in light-years.
func (enc *Encoder) HalfWidth() float64 { return enc.halfWidth }

// Scale returns the per-axis quantization scale.
func (enc *Encoder) Scale() float64 { return enc.scale }

// Encode computes the 63-bit Morton code for a point.  Points with any axis
// magnitude strictly greater than the domain half-width return a
// *DomainError; the exact boundary is inside the domain.
func (enc *Encoder) Encode(x, y, z float64) (int64, error) {
	if math.Abs(x) > enc.halfWidth || math.Abs(y) > enc.halfWidth || math.Abs(z) > enc.halfWidth {
		return 0, &DomainError{X: x, Y: y, Z: z, HalfWidth: enc.halfWidth}
	}
	qx := enc.quantize(x)
	qy := enc.quantize(y)
	qz := enc.quantize(z)
	code := interleave3(qx) | interleave3(qy)<<1 | interleave3(qz)<<2
	return int64(code), nil
}

// Decode recovers the quantized cell center of a Morton code, for report
// rendering and locality tests.  It is lossy to within one quantization
// step by construction.
func (enc *Encoder) Decode(code int64) (x, y, z float64) {
	qx := deinterleave3(uint64(code))
	qy := deinterleave3(uint64(code) >> 1)
	qz := deinterleave3(uint64(code) >> 2)
	x = float64(qx)/enc.scale - enc.halfWidth
	y = float64(qy)/enc.scale - enc.halfWidth
	z = float64(qz)/enc.scale - enc.halfWidth
	return
}

// quantize maps a coordinate into [0, 2^21-1].  The clamp only absorbs
// round-off at the exact domain boundary; out-of-domain points were already
// rejected.
func (enc *Encoder) quantize(coord float64) uint64 {
	q := math.Round((coord + enc.halfWidth) * enc.scale)
	if q < 0 {
		q = 0
	}
	if q > maxAxisValue {
		q = maxAxisValue
	}
	return uint64(q)
}

// interleave3 spreads the low 21 bits of v so that consecutive bits land 3
// positions apart.  Standard mask-and-shift bit smearing.
func interleave3(v uint64) uint64 {
	v &= 0x1fffff
	v = (v | v<<32) & 0x1f00000000ffff
	v = (v | v<<16) & 0x1f0000ff0000ff
	v = (v | v<<8) & 0x100f00f00f00f00f
	v = (v | v<<4) & 0x10c30c30c30c30c3
	v = (v | v<<2) & 0x1249249249249249
	return v
}

// deinterleave3 inverts interleave3.
func deinterleave3(v uint64) uint64 {
	v &= 0x1249249249249249
	v = (v ^ v>>2) & 0x10c30c30c30c30c3
	v = (v ^ v>>4) & 0x100f00f00f00f00f
	v = (v ^ v>>8) & 0x1f0000ff0000ff
	v = (v ^ v>>16) & 0x1f00000000ffff
	v = (v ^ v>>32) & 0x1fffff
	return v
}
