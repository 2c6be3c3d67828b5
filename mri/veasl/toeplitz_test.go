package veasl

import (
	"testing"

	"github.com/cwbudde/algo-mri/internal/testutil"
	"github.com/cwbudde/algo-mri/mri/grid"
	"github.com/cwbudde/algo-mri/mri/nufft"
	"github.com/cwbudde/algo-mri/mri/venc"
)

// TestNormalApplyMatchesAdjointForward is the contract of the embedding:
// the FFT-only normal evaluation must agree with running the gridded
// forward and adjoint back to back, up to the interpolation error of the
// gridding itself.
func TestNormalApplyMatchesAdjointForward(t *testing.T) {
	cases := []struct {
		name  string
		shape grid.Shape
		dims  int
	}{
		{"2d", grid.Shape{Nx: 16, Ny: 16, Nz: 1}, 2},
		{"3d", grid.Shape{Nx: 8, Ny: 8, Nz: 4}, 3},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			op := newTestOperator(t, tc.shape, 2, 2, 2, tc.dims)

			x := testutil.RandComplex(51, op.InputLen())
			y := make([]complex128, op.OutputLen())
			want := make([]complex128, op.InputLen())
			if err := op.Forward(y, x); err != nil {
				t.Fatalf("Forward: %v", err)
			}
			if err := op.Adjoint(want, y); err != nil {
				t.Fatalf("Adjoint: %v", err)
			}

			got := make([]complex128, op.InputLen())
			if err := op.NormalApply(got, x); err != nil {
				t.Fatalf("NormalApply: %v", err)
			}

			testutil.RequireNearlyEqual(t, got, want, testutil.RelTol(want, 1e-3))
		})
	}
}

// TestNormalApplyNonPowerOfTwoGrid pins the doubled-grid routing: image
// axes of 20 double to 40, a length the FFT backend cannot transform, so
// the kernels move to a rounded-up grid with a wider zero band between the
// lag halves. The embedding must still reproduce adjoint-after-forward.
func TestNormalApplyNonPowerOfTwoGrid(t *testing.T) {
	shape := grid.Shape{Nx: 12, Ny: 20, Nz: 1}
	op := newTestOperator(t, shape, 2, 2, 2, 2, WithUniformDensity(1))

	tz, err := op.Toeplitz()
	if err != nil {
		t.Fatalf("Toeplitz: %v", err)
	}
	if got, want := tz.Shape(), grid.FFTShape(shape.Doubled()); got != want {
		t.Fatalf("doubled grid: got %+v, want %+v", got, want)
	}
	testutil.RequireFinite(t, tz.Kernel(0, 0))

	x := testutil.RandComplex(53, op.InputLen())
	y := make([]complex128, op.OutputLen())
	want := make([]complex128, op.InputLen())
	if err := op.Forward(y, x); err != nil {
		t.Fatalf("Forward: %v", err)
	}
	if err := op.Adjoint(want, y); err != nil {
		t.Fatalf("Adjoint: %v", err)
	}

	got := make([]complex128, op.InputLen())
	if err := op.NormalApply(got, x); err != nil {
		t.Fatalf("NormalApply: %v", err)
	}
	testutil.RequireNearlyEqual(t, got, want, testutil.RelTol(want, 1e-3))
}

// TestNormalApply2DMatchesHandChain checks the 2-D normal evaluation
// against the stages chained by hand on a single-pair operator with a
// trivial encoding: coil weighting, gridded forward, density and norm
// scaling, gridded adjoint, coil combination.
func TestNormalApply2DMatchesHandChain(t *testing.T) {
	shape := grid.Shape{Nx: 16, Ny: 16, Nz: 1}
	ident, err := venc.New([]complex128{1}, 1, 1)
	if err != nil {
		t.Fatalf("venc.New: %v", err)
	}
	maps := newTestMaps(t, shape, 2, 3)
	k := radialTrajectory(1, 4, 16, 2)
	op, err := New(k, shape, maps, 1, 1, WithEncoding(ident), WithUniformDensity(4))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	x := testutil.RandComplex(54, op.InputLen())
	got := make([]complex128, op.InputLen())
	if err := op.NormalApply(got, x); err != nil {
		t.Fatalf("NormalApply: %v", err)
	}

	plan, err := nufft.New(k, shape)
	if err != nil {
		t.Fatalf("nufft.New: %v", err)
	}
	nvox := shape.NumVoxels()
	coils := make([]complex128, maps.NumCoils()*nvox)
	if err := maps.Apply(coils, x, nil); err != nil {
		t.Fatalf("maps.Apply: %v", err)
	}
	samp := make([]complex128, len(k))
	// Forward and adjoint each carry sqrt(w)*norm, so the chained normal
	// operator carries w*norm^2.
	wscale := complex(4*op.Norm()*op.Norm(), 0)
	for c := 0; c < maps.NumCoils(); c++ {
		img := coils[c*nvox : (c+1)*nvox]
		if err := plan.Apply(samp, img); err != nil {
			t.Fatalf("plan.Apply: %v", err)
		}
		for i := range samp {
			samp[i] *= wscale
		}
		if err := plan.Adjoint(img, samp); err != nil {
			t.Fatalf("plan.Adjoint: %v", err)
		}
	}
	want := make([]complex128, op.InputLen())
	if err := maps.Adjoint(want, coils, nil); err != nil {
		t.Fatalf("maps.Adjoint: %v", err)
	}

	testutil.RequireNearlyEqual(t, got, want, testutil.RelTol(want, 1e-3))
}

func TestNormalApplyInPlace(t *testing.T) {
	op := newTestOperator(t, grid.Shape{Nx: 16, Ny: 16, Nz: 1}, 1, 2, 1, 2,
		WithUniformDensity(1))

	x := testutil.RandComplex(52, op.InputLen())
	want := make([]complex128, op.InputLen())
	if err := op.NormalApply(want, x); err != nil {
		t.Fatalf("NormalApply: %v", err)
	}
	if err := op.NormalApply(x, x); err != nil {
		t.Fatalf("NormalApply in place: %v", err)
	}
	testutil.RequireEqual(t, x, want)
}

func TestToeplitzCachedAcrossCalls(t *testing.T) {
	op := newTestOperator(t, grid.Shape{Nx: 16, Ny: 16, Nz: 1}, 1, 2, 1, 2,
		WithUniformDensity(1))

	first, err := op.Toeplitz()
	if err != nil {
		t.Fatalf("Toeplitz: %v", err)
	}
	second, err := op.Toeplitz()
	if err != nil {
		t.Fatalf("Toeplitz: %v", err)
	}
	if first != second {
		t.Fatal("embedding rebuilt instead of cached")
	}
	if got, want := first.Shape(), grid.FFTShape(op.Shape().Doubled()); got != want {
		t.Fatalf("embedding shape: got %+v, want %+v", got, want)
	}
	if got, want := len(first.Kernel(0, 1)), first.Shape().NumVoxels(); got != want {
		t.Fatalf("kernel length: got %d, want %d", got, want)
	}
}
