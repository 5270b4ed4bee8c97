package spatial

import (
	"errors"
	"math"
	"testing"
)

func TestEncodeDeterminism(t *testing.T) {
	enc := NewEncoder(DefaultDomainHalfWidthLy)
	points := [][3]float64{
		{0, 0, 0},
		{8.6, -1.2, 2.4},
		{-999.999, 999.999, 0.001},
		{1000, -1000, 1000},
	}
	for _, p := range points {
		a, err := enc.Encode(p[0], p[1], p[2])
		if err != nil {
			t.Fatalf("[p=%v] %s", p, err)
		}
		b, err := enc.Encode(p[0], p[1], p[2])
		if err != nil {
			t.Fatalf("[p=%v] %s", p, err)
		}
		if a != b {
			t.Errorf("[p=%v] encoding not deterministic: %v vs %v", p, a, b)
		}
		if a < 0 {
			t.Errorf("[p=%v] sign bit set on morton code %v", p, a)
		}
	}
}

func TestEncodeDomainBoundary(t *testing.T) {
	enc := NewEncoder(1000)

	if _, err := enc.Encode(1000, 0, 0); err != nil {
		t.Errorf("exact boundary must encode, got error: %s", err)
	}

	_, err := enc.Encode(1000.0001, 0, 0)
	if err == nil {
		t.Fatal("expected domain violation error for coordinate beyond half-width")
	}
	var de *DomainError
	if !errors.As(err, &de) {
		t.Fatalf("expected *DomainError, got %T: %s", err, err)
	}
	if expected, actual := 1000.0, de.HalfWidth; actual != expected {
		t.Errorf("expected half-width=%v but actual=%v", expected, actual)
	}

	if _, err := enc.Encode(0, -1000.5, 0); err == nil {
		t.Error("expected domain violation error for negative out-of-domain coordinate")
	}
}

func TestEncodeZOrderLocality(t *testing.T) {
	// Walking one axis upward while the others stay fixed must produce
	// strictly increasing codes whenever only that axis's bits change
	// within a shared cell prefix; verify with a direct axis-aligned
	// vector near the origin cell.
	enc := NewEncoder(1000)
	var prev int64 = -1
	step := 2 * 1000.0 / float64(1<<21) // One quantization cell along x.
	for i := 0; i < 8; i++ {
		code, err := enc.Encode(-1000+float64(i)*step, -1000, -1000)
		if err != nil {
			t.Fatalf("[i=%v] %s", i, err)
		}
		if code <= prev {
			t.Errorf("[i=%v] expected strictly increasing codes, got %v after %v", i, code, prev)
		}
		prev = code
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	enc := NewEncoder(1000)
	cell := 2 * 1000.0 / float64(1<<21)
	points := [][3]float64{
		{8.6, -1.2, 2.4},
		{-472.3, 11.09, 863.2},
		{0, 0, 0},
	}
	for _, p := range points {
		code, err := enc.Encode(p[0], p[1], p[2])
		if err != nil {
			t.Fatalf("[p=%v] %s", p, err)
		}
		x, y, z := enc.Decode(code)
		if math.Abs(x-p[0]) > cell || math.Abs(y-p[1]) > cell || math.Abs(z-p[2]) > cell {
			t.Errorf("[p=%v] decode drifted more than one cell: (%v, %v, %v)", p, x, y, z)
		}
	}
}

func TestInterleaveRoundTrip(t *testing.T) {
	for _, v := range []uint64{0, 1, 2, 0x1fffff, 0x15555, 123456} {
		if expected, actual := v, deinterleave3(interleave3(v)); actual != expected {
			t.Errorf("[v=%v] expected round-trip=%v but actual=%v", v, expected, actual)
		}
	}
}
