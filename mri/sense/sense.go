// Package sense applies receive-coil sensitivity profiles: the forward map
// replicates a spatial image into one copy per coil weighted by that coil's
// complex sensitivity, and the adjoint coil-combines with the conjugate
// weights. Both directions accept an arbitrary coil subset so composite
// operators can process coils incrementally.
package sense

import (
	"errors"

	"github.com/cwbudde/algo-mri/mri/grid"
)

// Errors returned by the sensitivity operator.
var (
	ErrShapeMismatch  = errors.New("sense: map data does not match grid shape")
	ErrLengthMismatch = errors.New("sense: buffer length mismatch")
	ErrBadCoil        = errors.New("sense: coil index out of range")
)

// Maps holds the per-voxel, per-coil complex sensitivities, coil-major:
// coil c occupies data[c*nvox : (c+1)*nvox] in grid order. Read-only after
// construction; Apply and Adjoint are pure functions of (maps, subset).
type Maps struct {
	shape  grid.Shape
	ncoils int
	data   []complex128
}

// NewMaps validates and wraps sensitivity data for ncoils coils.
// The data slice is copied so later caller mutation cannot alias the maps.
func NewMaps(data []complex128, shape grid.Shape, ncoils int) (*Maps, error) {
	if !shape.Valid() || ncoils < 1 {
		return nil, ErrShapeMismatch
	}
	if len(data) != shape.NumVoxels()*ncoils {
		return nil, ErrShapeMismatch
	}
	return &Maps{
		shape:  shape,
		ncoils: ncoils,
		data:   append([]complex128(nil), data...),
	}, nil
}

// Shape returns the spatial grid.
func (m *Maps) Shape() grid.Shape { return m.shape }

// NumCoils returns the coil count.
func (m *Maps) NumCoils() int { return m.ncoils }

// Coil returns the sensitivity profile of one coil as a read-only view.
func (m *Maps) Coil(c int) []complex128 {
	nvox := m.shape.NumVoxels()
	return m.data[c*nvox : (c+1)*nvox]
}

// checkSubset validates coil indices; nil means all coils.
func (m *Maps) checkSubset(coils []int) ([]int, error) {
	if coils == nil {
		all := make([]int, m.ncoils)
		for i := range all {
			all[i] = i
		}
		return all, nil
	}
	for _, c := range coils {
		if c < 0 || c >= m.ncoils {
			return nil, ErrBadCoil
		}
	}
	return coils, nil
}

// Apply weights src by each requested coil's sensitivity. src may stack
// several images along a trailing batch axis (len(src) a multiple of the
// voxel count); the output is ordered batch-major, then coil:
// dst[(b*len(coils)+ci)*nvox : ...] holds batch b seen by coils[ci].
func (m *Maps) Apply(dst, src []complex128, coils []int) error {
	subset, err := m.checkSubset(coils)
	if err != nil {
		return err
	}
	nvox := m.shape.NumVoxels()
	if len(src) == 0 || len(src)%nvox != 0 {
		return ErrLengthMismatch
	}
	nbatch := len(src) / nvox
	if len(dst) != nbatch*len(subset)*nvox {
		return ErrLengthMismatch
	}
	for b := 0; b < nbatch; b++ {
		img := src[b*nvox : (b+1)*nvox]
		for ci, c := range subset {
			s := m.Coil(c)
			out := dst[(b*len(subset)+ci)*nvox:]
			for i := 0; i < nvox; i++ {
				out[i] = s[i] * img[i]
			}
		}
	}
	return nil
}

// Adjoint contracts the coil axis: dst[v] accumulates
// conj(S_c[v]) * src_c[v] over the requested coils, per batch. Input layout
// matches the output of Apply.
func (m *Maps) Adjoint(dst, src []complex128, coils []int) error {
	subset, err := m.checkSubset(coils)
	if err != nil {
		return err
	}
	nvox := m.shape.NumVoxels()
	block := len(subset) * nvox
	if len(src) == 0 || len(src)%block != 0 {
		return ErrLengthMismatch
	}
	nbatch := len(src) / block
	if len(dst) != nbatch*nvox {
		return ErrLengthMismatch
	}
	for i := range dst {
		dst[i] = 0
	}
	for b := 0; b < nbatch; b++ {
		out := dst[b*nvox : (b+1)*nvox]
		for ci, c := range subset {
			s := m.Coil(c)
			in := src[(b*len(subset)+ci)*nvox:]
			for i := 0; i < nvox; i++ {
				out[i] += complex(real(s[i]), -imag(s[i])) * in[i]
			}
		}
	}
	return nil
}
