// Package venc implements the vessel-encoding mixing step of VEASL
// acquisition: a small dense complex matrix H (Nenc x Nvc) combines vessel
// components into encoded measurements, broadcast over space and time.
// Encode applies H, Decode applies its conjugate transpose.
//
// The matrix is deliberately tiny; what matters is its position in the
// pipeline — before the spatial/coil stages on the forward pass, after them
// on the adjoint pass — which the composite operator in mri/veasl enforces.
package venc

import (
	"errors"
	"math/cmplx"

	"gonum.org/v1/gonum/mat"
)

// Errors returned by vessel-encoding operations.
var (
	ErrEmptyMatrix    = errors.New("venc: empty encoding matrix")
	ErrLengthMismatch = errors.New("venc: buffer length mismatch")
	ErrNotPowerOfTwo  = errors.New("venc: Hadamard order must be a positive power of two")
)

// Matrix is an immutable Nenc x Nvc complex encoding scheme.
type Matrix struct {
	h    *mat.CDense
	nenc int
	nvc  int
}

// New wraps row-major entries (nenc rows, nvc columns) as an encoding
// matrix. Entries are copied.
func New(entries []complex128, nenc, nvc int) (*Matrix, error) {
	if nenc < 1 || nvc < 1 || nvc > nenc || len(entries) != nenc*nvc {
		return nil, ErrEmptyMatrix
	}
	return &Matrix{
		h:    mat.NewCDense(nenc, nvc, append([]complex128(nil), entries...)),
		nenc: nenc,
		nvc:  nvc,
	}, nil
}

// Hadamard builds the order-n Sylvester-Hadamard encoding, the standard
// VEASL scheme. Hadamard(2) is the 2-point tag/control pair.
func Hadamard(n int) (*Matrix, error) {
	if n < 1 || n&(n-1) != 0 {
		return nil, ErrNotPowerOfTwo
	}
	entries := make([]complex128, n*n)
	for r := 0; r < n; r++ {
		for c := 0; c < n; c++ {
			// Sign is parity of the AND of row and column indices.
			if popcount(r&c)%2 == 0 {
				entries[r*n+c] = 1
			} else {
				entries[r*n+c] = -1
			}
		}
	}
	return New(entries, n, n)
}

// NumEncodings returns Nenc.
func (m *Matrix) NumEncodings() int { return m.nenc }

// NumComponents returns Nvc.
func (m *Matrix) NumComponents() int { return m.nvc }

// At returns H[e, v].
func (m *Matrix) At(e, v int) complex128 { return m.h.At(e, v) }

// Encode mixes Nvc stacked component blocks of length n into Nenc encoded
// blocks: dst_e = sum_v H[e,v] * src_v. The block length n carries whatever
// axes the caller wants the mix broadcast over.
func (m *Matrix) Encode(dst, src []complex128, n int) error {
	if n < 1 || len(src) != m.nvc*n || len(dst) != m.nenc*n {
		return ErrLengthMismatch
	}
	for e := 0; e < m.nenc; e++ {
		out := dst[e*n : (e+1)*n]
		for i := range out {
			out[i] = 0
		}
		for v := 0; v < m.nvc; v++ {
			h := m.h.At(e, v)
			if h == 0 {
				continue
			}
			in := src[v*n : (v+1)*n]
			for i := range out {
				out[i] += h * in[i]
			}
		}
	}
	return nil
}

// Decode applies the conjugate transpose: dst_v = sum_e conj(H[e,v]) * src_e.
func (m *Matrix) Decode(dst, src []complex128, n int) error {
	if n < 1 || len(src) != m.nenc*n || len(dst) != m.nvc*n {
		return ErrLengthMismatch
	}
	for v := 0; v < m.nvc; v++ {
		out := dst[v*n : (v+1)*n]
		for i := range out {
			out[i] = 0
		}
		for e := 0; e < m.nenc; e++ {
			h := cmplx.Conj(m.h.At(e, v))
			if h == 0 {
				continue
			}
			in := src[e*n : (e+1)*n]
			for i := range out {
				out[i] += h * in[i]
			}
		}
	}
	return nil
}

func popcount(x int) int {
	n := 0
	for x != 0 {
		x &= x - 1
		n++
	}
	return n
}
