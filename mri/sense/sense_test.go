package sense

import (
	"math/cmplx"
	"testing"

	"github.com/cwbudde/algo-mri/internal/testutil"
	"github.com/cwbudde/algo-mri/mri/grid"
)

func newTestMaps(t *testing.T, shape grid.Shape, ncoils int, seed int64) *Maps {
	t.Helper()
	m, err := NewMaps(testutil.RandComplex(seed, shape.NumVoxels()*ncoils), shape, ncoils)
	if err != nil {
		t.Fatalf("NewMaps: %v", err)
	}
	return m
}

func TestApplyWeightsEachCoil(t *testing.T) {
	shape := grid.Shape{Nx: 4, Ny: 3, Nz: 1}
	m := newTestMaps(t, shape, 3, 30)
	nvox := shape.NumVoxels()

	src := testutil.RandComplex(31, nvox)
	dst := make([]complex128, 3*nvox)
	if err := m.Apply(dst, src, nil); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	for c := 0; c < 3; c++ {
		s := m.Coil(c)
		for i := 0; i < nvox; i++ {
			want := s[i] * src[i]
			if dst[c*nvox+i] != want {
				t.Fatalf("coil %d voxel %d: got %v, want %v", c, i, dst[c*nvox+i], want)
			}
		}
	}
}

func TestAdjointness(t *testing.T) {
	shape := grid.Shape{Nx: 4, Ny: 4, Nz: 2}
	m := newTestMaps(t, shape, 4, 32)
	nvox := shape.NumVoxels()

	x := testutil.RandComplex(33, nvox)
	y := testutil.RandComplex(34, 4*nvox)

	fx := make([]complex128, 4*nvox)
	if err := m.Apply(fx, x, nil); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	ay := make([]complex128, nvox)
	if err := m.Adjoint(ay, y, nil); err != nil {
		t.Fatalf("Adjoint: %v", err)
	}

	var lhs, rhs complex128
	for i := range fx {
		lhs += fx[i] * cmplx.Conj(y[i])
	}
	for i := range x {
		rhs += x[i] * cmplx.Conj(ay[i])
	}
	if cmplx.Abs(lhs-rhs) > 1e-12*cmplx.Abs(lhs) {
		t.Fatalf("<Sx,y> = %v but <x,S'y> = %v", lhs, rhs)
	}
}

func TestCoilSubset(t *testing.T) {
	shape := grid.Shape{Nx: 4, Ny: 2, Nz: 1}
	m := newTestMaps(t, shape, 4, 35)
	nvox := shape.NumVoxels()
	src := testutil.RandComplex(36, nvox)

	subset := []int{3, 1}
	dst := make([]complex128, len(subset)*nvox)
	if err := m.Apply(dst, src, subset); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	for ci, c := range subset {
		s := m.Coil(c)
		for i := 0; i < nvox; i++ {
			if dst[ci*nvox+i] != s[i]*src[i] {
				t.Fatalf("subset entry %d (coil %d), voxel %d mismatch", ci, c, i)
			}
		}
	}

	// Incremental coil-by-coil adjoint must agree with the all-coil one.
	full := make([]complex128, 4*nvox)
	if err := m.Apply(full, src, nil); err != nil {
		t.Fatalf("Apply(all): %v", err)
	}
	combined := make([]complex128, nvox)
	if err := m.Adjoint(combined, full, nil); err != nil {
		t.Fatalf("Adjoint(all): %v", err)
	}
	incr := make([]complex128, nvox)
	one := make([]complex128, nvox)
	for c := 0; c < 4; c++ {
		if err := m.Adjoint(one, full[c*nvox:(c+1)*nvox], []int{c}); err != nil {
			t.Fatalf("Adjoint(coil %d): %v", c, err)
		}
		for i := range incr {
			incr[i] += one[i]
		}
	}
	for i := range combined {
		if cmplx.Abs(combined[i]-incr[i]) > 1e-12 {
			t.Fatalf("voxel %d: incremental %v, combined %v", i, incr[i], combined[i])
		}
	}
}

func TestBatchStacking(t *testing.T) {
	shape := grid.Shape{Nx: 2, Ny: 2, Nz: 1}
	m := newTestMaps(t, shape, 2, 37)
	nvox := shape.NumVoxels()

	batch := testutil.RandComplex(38, 3*nvox)
	dst := make([]complex128, 3*2*nvox)
	if err := m.Apply(dst, batch, nil); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	for b := 0; b < 3; b++ {
		single := make([]complex128, 2*nvox)
		if err := m.Apply(single, batch[b*nvox:(b+1)*nvox], nil); err != nil {
			t.Fatalf("Apply(single %d): %v", b, err)
		}
		for i := range single {
			if dst[b*2*nvox+i] != single[i] {
				t.Fatalf("batch %d entry %d mismatch", b, i)
			}
		}
	}
}

func TestValidation(t *testing.T) {
	shape := grid.Shape{Nx: 2, Ny: 2, Nz: 1}
	if _, err := NewMaps(make([]complex128, 5), shape, 2); err != ErrShapeMismatch {
		t.Fatalf("bad data length: err = %v", err)
	}
	m := newTestMaps(t, shape, 2, 39)
	err := m.Apply(make([]complex128, 8), make([]complex128, 4), []int{2})
	if err != ErrBadCoil {
		t.Fatalf("out-of-range coil: err = %v", err)
	}
	err = m.Apply(make([]complex128, 5), make([]complex128, 4), nil)
	if err != ErrLengthMismatch {
		t.Fatalf("short dst: err = %v", err)
	}
}
