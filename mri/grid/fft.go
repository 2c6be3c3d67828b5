package grid

import (
	"fmt"

	algofft "github.com/MeKo-Christian/algo-fft"
)

// FFT performs in-place multi-dimensional complex transforms over a fixed
// grid shape. It holds one algo-fft plan per distinct axis length.
//
// The forward transform is unnormalized; the inverse carries the full 1/N
// normalization (N = number of voxels), matching the algo-fft 1-D
// convention, so Inverse(Forward(x)) == x.
//
// An FFT is not safe for concurrent use: the strided transform path shares
// per-plan scratch storage.
type FFT struct {
	shape Shape
	plans [3]*algofft.Plan[complex128]
}

// fftLengthOK reports whether the pinned algo-fft release transforms length
// n correctly. Its v0.6.6 mixed-radix path returns wrong results for lengths
// of the form 5*2^k with k >= 3 (40, 80, 160, ...); nearby lengths such as
// 20, 24, 48 and 60 are fine.
func fftLengthOK(n int) bool {
	if n%5 != 0 {
		return true
	}
	m := n / 5
	return m < 8 || m&(m-1) != 0
}

// FFTLength returns a length >= n that NewFFT accepts: n itself when it is
// fine, otherwise the next size whose factors are only 2 and 3, keeping the
// replacement on the backend's plain mixed-radix path. Grid planners that
// are free to choose their own transform size route around the broken
// lengths with it.
func FFTLength(n int) int {
	if fftLengthOK(n) {
		return n
	}
	for !smooth3(n) {
		n++
	}
	return n
}

func smooth3(n int) bool {
	for n%2 == 0 {
		n /= 2
	}
	for n%3 == 0 {
		n /= 3
	}
	return n == 1
}

// FFTShape rounds every axis of s up to the next length NewFFT accepts.
func FFTShape(s Shape) Shape {
	return Shape{Nx: FFTLength(s.Nx), Ny: FFTLength(s.Ny), Nz: FFTLength(s.Nz)}
}

// NewFFT creates the plan set for the given shape. Degenerate axes
// (size 1) get no plan and are skipped during transforms. Axis lengths the
// FFT backend is known to miscompute are rejected with ErrUnsupportedLength.
func NewFFT(shape Shape) (*FFT, error) {
	if !shape.Valid() {
		return nil, ErrInvalidShape
	}
	f := &FFT{shape: shape}
	for a := 0; a < 3; a++ {
		n := shape.Size(a)
		if n == 1 {
			continue
		}
		if !fftLengthOK(n) {
			return nil, fmt.Errorf("%w: %d", ErrUnsupportedLength, n)
		}
		// Reuse a previous axis plan when lengths coincide.
		reused := false
		for b := 0; b < a; b++ {
			if shape.Size(b) == n {
				f.plans[a] = f.plans[b]
				reused = true
				break
			}
		}
		if reused {
			continue
		}
		p, err := algofft.NewPlan64(n)
		if err != nil {
			return nil, fmt.Errorf("grid: failed to create FFT plan for size %d: %w", n, err)
		}
		f.plans[a] = p
	}
	return f, nil
}

// Shape returns the grid shape the plans were built for.
func (f *FFT) Shape() Shape {
	return f.shape
}

// Forward computes the in-place forward transform along every used axis.
func (f *FFT) Forward(data []complex128) error {
	return f.transform(data, false)
}

// Inverse computes the in-place inverse transform along every used axis.
func (f *FFT) Inverse(data []complex128) error {
	return f.transform(data, true)
}

func (f *FFT) transform(data []complex128, inverse bool) error {
	if len(data) != f.shape.NumVoxels() {
		return ErrLengthMismatch
	}
	for a := 0; a < 3; a++ {
		if f.plans[a] == nil {
			continue
		}
		if err := f.transformAxis(data, a, inverse); err != nil {
			return err
		}
	}
	return nil
}

// transformAxis applies the 1-D plan for axis a to every line of the grid
// along that axis.
func (f *FFT) transformAxis(data []complex128, a int, inverse bool) error {
	var (
		s      = f.shape
		p      = f.plans[a]
		stride = s.Stride(a)
	)
	var err error
	switch a {
	case 0:
		for z := 0; z < s.Nz; z++ {
			for y := 0; y < s.Ny; y++ {
				off := s.Index(0, y, z)
				line := data[off : off+s.Nx]
				if inverse {
					err = p.Inverse(line, line)
				} else {
					err = p.Forward(line, line)
				}
				if err != nil {
					return fmt.Errorf("grid: axis 0 transform: %w", err)
				}
			}
		}
	case 1:
		for z := 0; z < s.Nz; z++ {
			for x := 0; x < s.Nx; x++ {
				off := s.Index(x, 0, z)
				if err = p.TransformStrided(data[off:], data[off:], stride, inverse); err != nil {
					return fmt.Errorf("grid: axis 1 transform: %w", err)
				}
			}
		}
	default:
		for y := 0; y < s.Ny; y++ {
			for x := 0; x < s.Nx; x++ {
				off := s.Index(x, y, 0)
				if err = p.TransformStrided(data[off:], data[off:], stride, inverse); err != nil {
					return fmt.Errorf("grid: axis 2 transform: %w", err)
				}
			}
		}
	}
	return nil
}
