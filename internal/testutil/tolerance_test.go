package testutil

import (
	"math"
	"testing"
)

func TestRandComplexReproducible(t *testing.T) {
	a := RandComplex(7, 64)
	b := RandComplex(7, 64)
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("non-deterministic at index %d", i)
		}
	}
	for i, v := range a {
		if real(v) < -1 || real(v) >= 1 || imag(v) < -1 || imag(v) >= 1 {
			t.Fatalf("index %d: %v out of range", i, v)
		}
	}
}

func TestMaxAbsDiff(t *testing.T) {
	a := []complex128{1, 2i, 3}
	b := []complex128{1, 2i, complex(3, 4)}
	got, err := MaxAbsDiff(a, b)
	if err != nil {
		t.Fatalf("MaxAbsDiff: %v", err)
	}
	if got != 4 {
		t.Fatalf("got %v, want 4", got)
	}
	if _, err := MaxAbsDiff(a, b[:2]); err == nil {
		t.Fatal("expected length mismatch error")
	}
}

func TestInnerProductConjugatesSecondArgument(t *testing.T) {
	a := []complex128{1i}
	b := []complex128{1i}
	if got := InnerProduct(a, b); got != 1 {
		t.Fatalf("got %v, want 1", got)
	}
}

func TestRelTolGuardsZeroReference(t *testing.T) {
	if got := RelTol([]complex128{0, 0}, 1e-6); got != 1e-6 {
		t.Fatalf("got %v, want 1e-6", got)
	}
	if got := RelTol([]complex128{complex(0, 2)}, 0.5); math.Abs(got-1) > 1e-15 {
		t.Fatalf("got %v, want 1", got)
	}
}
