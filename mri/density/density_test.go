package density

import (
	"math"
	"math/rand"
	"testing"

	"github.com/cwbudde/algo-mri/mri/grid"
	"github.com/cwbudde/algo-mri/mri/nufft"
)

// radialTrajectory builds a well-conditioned 2-D radial sampling pattern.
func radialTrajectory(spokes, perSpoke int) []nufft.Coord {
	out := make([]nufft.Coord, 0, spokes*perSpoke)
	for s := 0; s < spokes; s++ {
		phi := math.Pi * float64(s) / float64(spokes)
		for r := 0; r < perSpoke; r++ {
			rad := math.Pi * (2*float64(r)/float64(perSpoke-1) - 1)
			out = append(out, nufft.Coord{rad * math.Cos(phi), rad * math.Sin(phi), 0})
		}
	}
	return out
}

func TestFixedPointConvergenceTrend(t *testing.T) {
	shape := grid.Shape{Nx: 16, Ny: 16, Nz: 1}
	k := radialTrajectory(12, 17)
	p, err := nufft.New(k, shape)
	if err != nil {
		t.Fatalf("nufft.New: %v", err)
	}

	w, err := FixedPoint(p, DefaultIters)
	if err != nil {
		t.Fatalf("FixedPoint: %v", err)
	}
	for i, v := range w {
		if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			t.Fatalf("weight %d = %v, want finite nonnegative", i, v)
		}
	}

	// Each additional pass should move the weights by less than the one
	// before it for a well-conditioned trajectory.
	prev := append([]float64(nil), w...)
	var deltas []float64
	for pass := 0; pass < 3; pass++ {
		next := append([]float64(nil), prev...)
		if err := Refine(p, next, 1); err != nil {
			t.Fatalf("Refine: %v", err)
		}
		var d float64
		for i := range next {
			d += (next[i] - prev[i]) * (next[i] - prev[i])
		}
		deltas = append(deltas, math.Sqrt(d))
		prev = next
	}
	for i := 1; i < len(deltas); i++ {
		if deltas[i] > deltas[i-1]*1.001 {
			t.Fatalf("pass %d moved weights by %v, more than previous %v", i, deltas[i], deltas[i-1])
		}
	}
}

// TestFixedPointUndersampledStaysBounded runs the iteration on a heavily
// undersampled trajectory where some round-trip denominators come back tiny
// or negative. The relative clamp must keep the weights positive and within
// a usable dynamic range instead of letting single samples explode.
func TestFixedPointUndersampledStaysBounded(t *testing.T) {
	shape := grid.Shape{Nx: 16, Ny: 16, Nz: 1}
	k := radialTrajectory(4, 16)
	p, err := nufft.New(k, shape)
	if err != nil {
		t.Fatalf("nufft.New: %v", err)
	}

	w, err := FixedPoint(p, DefaultIters)
	if err != nil {
		t.Fatalf("FixedPoint: %v", err)
	}
	minW, maxW := math.Inf(1), 0.0
	for i, v := range w {
		if v <= 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			t.Fatalf("weight %d = %v, want finite positive", i, v)
		}
		minW = math.Min(minW, v)
		maxW = math.Max(maxW, v)
	}
	if maxW/minW > 1e6 {
		t.Fatalf("weight dynamic range %.3g (min %.3g, max %.3g)", maxW/minW, minW, maxW)
	}
}

func TestFixedPointDefaultIters(t *testing.T) {
	shape := grid.Shape{Nx: 8, Ny: 8, Nz: 1}
	rng := rand.New(rand.NewSource(21))
	k := make([]nufft.Coord, 30)
	for i := range k {
		k[i] = nufft.Coord{(rng.Float64()*2 - 1) * math.Pi, (rng.Float64()*2 - 1) * math.Pi, 0}
	}
	p, err := nufft.New(k, shape)
	if err != nil {
		t.Fatalf("nufft.New: %v", err)
	}
	a, err := FixedPoint(p, 0)
	if err != nil {
		t.Fatalf("FixedPoint(0): %v", err)
	}
	b, err := FixedPoint(p, DefaultIters)
	if err != nil {
		t.Fatalf("FixedPoint(DefaultIters): %v", err)
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("iters=0 should mean the default budget; weight %d differs", i)
		}
	}
}

func TestNilPlan(t *testing.T) {
	if _, err := FixedPoint(nil, 5); err != ErrNilPlan {
		t.Fatalf("err = %v, want ErrNilPlan", err)
	}
}
