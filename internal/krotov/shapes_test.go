package krotov

import (
	"math"
	"testing"
)

func TestFlatTop(t *testing.T) {
	shape := FlatTop(0, 10, 2, 2)

	if got := shape(-1); got != 0 {
		t.Errorf("S(-1) = %v, want 0", got)
	}
	if got := shape(0); got != 0 {
		t.Errorf("S(0) = %v, want 0", got)
	}
	if got := shape(5); got != 1 {
		t.Errorf("S(5) = %v, want 1", got)
	}
	if got := shape(10); got != 0 {
		t.Errorf("S(10) = %v, want 0", got)
	}
	if got := shape(11); got != 0 {
		t.Errorf("S(11) = %v, want 0", got)
	}
	// Halfway up the sin² ramp.
	if got := shape(1); math.Abs(got-0.5) > 1e-12 {
		t.Errorf("S(1) = %v, want 0.5", got)
	}
	// The ramp is monotonically increasing.
	prev := -1.0
	for x := 0.0; x <= 2.0; x += 0.1 {
		v := shape(x)
		if v < prev {
			t.Fatalf("ramp not monotone at t=%v: %v < %v", x, v, prev)
		}
		prev = v
	}
}

func TestBlackman(t *testing.T) {
	shape := Blackman(0, 10)

	if got := shape(0); math.Abs(got) > 1e-12 {
		t.Errorf("S(0) = %v, want 0", got)
	}
	if got := shape(10); math.Abs(got) > 1e-12 {
		t.Errorf("S(10) = %v, want 0", got)
	}
	if got := shape(5); math.Abs(got-1) > 1e-12 {
		t.Errorf("S(5) = %v, want 1", got)
	}
	if got := shape(-0.1); got != 0 {
		t.Errorf("S(-0.1) = %v, want 0", got)
	}
	// The window never exceeds its peak.
	for x := 0.0; x <= 10.0; x += 0.05 {
		if v := shape(x); v < 0 || v > 1 {
			t.Fatalf("S(%v) = %v outside [0, 1]", x, v)
		}
	}
}

func TestConstantShapes(t *testing.T) {
	if OneShape(3.7) != 1 {
		t.Error("OneShape should always be 1")
	}
	if ZeroShape(3.7) != 0 {
		t.Error("ZeroShape should always be 0")
	}
}
