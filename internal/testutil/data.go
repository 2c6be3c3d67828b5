// Package testutil provides deterministic test data and tolerance helpers
// shared by the package tests.
package testutil

import (
	"math/rand"
)

// RandComplex generates reproducible complex values with real and imaginary
// parts uniform in [-1, 1).
func RandComplex(seed int64, n int) []complex128 {
	rng := rand.New(rand.NewSource(seed))
	out := make([]complex128, n)
	for i := range out {
		out[i] = complex(rng.Float64()*2-1, rng.Float64()*2-1)
	}
	return out
}

// Impulse generates a unit impulse at the given position.
func Impulse(length, pos int) []complex128 {
	out := make([]complex128, length)
	if pos >= 0 && pos < length {
		out[pos] = 1
	}
	return out
}

// InnerProduct returns <a, b> with the conjugate on the second argument.
func InnerProduct(a, b []complex128) complex128 {
	var sum complex128
	for i := range a {
		sum += a[i] * complex(real(b[i]), -imag(b[i]))
	}
	return sum
}
