// Package density estimates sample-density compensation weights for
// non-uniform trajectories with the classic fixed-point iteration:
// weights are repeatedly divided by the real part of a forward-after-adjoint
// NUFFT round trip of themselves, starting from uniform weights.
//
// The iteration count is fixed rather than tolerance-checked; five passes is
// the conventional budget and convergence is not guaranteed for arbitrary
// trajectories, so callers wanting different behavior pass their own count.
package density

import (
	"errors"

	"github.com/cwbudde/algo-vecmath"

	"github.com/cwbudde/algo-mri/mri/nufft"
)

// DefaultIters is the conventional fixed-point iteration budget.
const DefaultIters = 5

// ErrNilPlan is returned when no NUFFT plan is supplied.
var ErrNilPlan = errors.New("density: nil plan")

// The round trip can come back tiny or negative for samples the grid
// barely sees. Flooring the denominator at a fixed fraction of the pass's
// largest value keeps those weights finite and bounds how far a single
// pass can scale any weight relative to the well-covered samples.
const denomFloorRatio = 1e-3

// FixedPoint runs iters fixed-point passes for the plan's trajectory and
// returns the per-sample weights. iters <= 0 selects DefaultIters.
func FixedPoint(p *nufft.Plan, iters int) ([]float64, error) {
	if p == nil {
		return nil, ErrNilPlan
	}
	if iters <= 0 {
		iters = DefaultIters
	}
	w := make([]float64, p.NumSamples())
	for i := range w {
		w[i] = 1
	}
	if err := Refine(p, w, iters); err != nil {
		return nil, err
	}
	return w, nil
}

// Refine runs iters fixed-point passes on the supplied weights in place.
// Splitting this out lets tests observe the convergence trend pass by pass.
func Refine(p *nufft.Plan, w []float64, iters int) error {
	if p == nil {
		return ErrNilPlan
	}
	var (
		samples = make([]complex128, p.NumSamples())
		img     = make([]complex128, p.Shape().NumVoxels())
		inv     = make([]float64, p.NumSamples())
	)
	for it := 0; it < iters; it++ {
		for i, v := range w {
			samples[i] = complex(v, 0)
		}
		if err := p.Adjoint(img, samples); err != nil {
			return err
		}
		if err := p.Apply(samples, img); err != nil {
			return err
		}
		var maxd float64
		for i := range samples {
			if d := real(samples[i]); d > maxd {
				maxd = d
			}
		}
		if maxd == 0 {
			// All-zero weights are already a fixed point.
			return nil
		}
		floor := denomFloorRatio * maxd
		for i := range inv {
			d := real(samples[i])
			if d < floor {
				d = floor
			}
			inv[i] = 1 / d
		}
		vecmath.MulBlockInPlace(w, inv)
	}
	return nil
}
