// Package grid provides the spatial grid descriptor shared by the MRI
// operators, together with zero-pad/crop helpers and an in-place
// multi-dimensional complex FFT built on algo-fft plans.
//
// Arrays over a grid are flat []complex128 slices in x-fastest order:
//
//	idx = (z*Ny + y)*Nx + x
//
// A grid with Nz == 1 is a 2-D problem; all routines skip the degenerate
// third axis in that case.
package grid

import "errors"

// Errors returned by grid operations.
var (
	ErrInvalidShape      = errors.New("grid: invalid shape")
	ErrLengthMismatch    = errors.New("grid: buffer length mismatch")
	ErrUnsupportedLength = errors.New("grid: unsupported FFT length")
)

// Shape describes a rectilinear image grid. Nz == 1 signals a 2-D grid.
type Shape struct {
	Nx, Ny, Nz int
}

// Valid reports whether all dimensions are positive.
func (s Shape) Valid() bool {
	return s.Nx > 0 && s.Ny > 0 && s.Nz > 0
}

// Dims returns the spatial dimensionality: 2 if Nz == 1, else 3.
func (s Shape) Dims() int {
	if s.Nz > 1 {
		return 3
	}
	return 2
}

// NumVoxels returns Nx*Ny*Nz.
func (s Shape) NumVoxels() int {
	return s.Nx * s.Ny * s.Nz
}

// Size returns the extent along axis a (0 = x, 1 = y, 2 = z).
func (s Shape) Size(a int) int {
	switch a {
	case 0:
		return s.Nx
	case 1:
		return s.Ny
	default:
		return s.Nz
	}
}

// Stride returns the linear stride along axis a.
func (s Shape) Stride(a int) int {
	switch a {
	case 0:
		return 1
	case 1:
		return s.Nx
	default:
		return s.Nx * s.Ny
	}
}

// Index returns the linear index of voxel (x, y, z).
func (s Shape) Index(x, y, z int) int {
	return (z*s.Ny+y)*s.Nx + x
}

// Doubled returns the shape with every used axis doubled. The degenerate
// third axis of a 2-D grid stays at 1.
func (s Shape) Doubled() Shape {
	d := Shape{Nx: 2 * s.Nx, Ny: 2 * s.Ny, Nz: 2 * s.Nz}
	if s.Nz == 1 {
		d.Nz = 1
	}
	return d
}

// Scaled returns the shape with every used axis multiplied by f, rounded
// down. The degenerate third axis of a 2-D grid stays at 1.
func (s Shape) Scaled(f float64) Shape {
	d := Shape{Nx: int(f * float64(s.Nx)), Ny: int(f * float64(s.Ny)), Nz: int(f * float64(s.Nz))}
	if s.Nz == 1 {
		d.Nz = 1
	}
	return d
}

// EmbedTo writes src (shape ss) into the corner of dst (shape ds), zeroing
// the rest. Every axis of ds must be at least as large as the matching axis
// of ss.
func EmbedTo(dst []complex128, ds Shape, src []complex128, ss Shape) error {
	if ds.Nx < ss.Nx || ds.Ny < ss.Ny || ds.Nz < ss.Nz {
		return ErrInvalidShape
	}
	if len(dst) != ds.NumVoxels() || len(src) != ss.NumVoxels() {
		return ErrLengthMismatch
	}
	for i := range dst {
		dst[i] = 0
	}
	for z := 0; z < ss.Nz; z++ {
		for y := 0; y < ss.Ny; y++ {
			si := ss.Index(0, y, z)
			di := ds.Index(0, y, z)
			copy(dst[di:di+ss.Nx], src[si:si+ss.Nx])
		}
	}
	return nil
}

// CropTo extracts the corner region of src (shape ss) into dst (shape ds).
func CropTo(dst []complex128, ds Shape, src []complex128, ss Shape) error {
	if ss.Nx < ds.Nx || ss.Ny < ds.Ny || ss.Nz < ds.Nz {
		return ErrInvalidShape
	}
	if len(dst) != ds.NumVoxels() || len(src) != ss.NumVoxels() {
		return ErrLengthMismatch
	}
	for z := 0; z < ds.Nz; z++ {
		for y := 0; y < ds.Ny; y++ {
			si := ss.Index(0, y, z)
			di := ds.Index(0, y, z)
			copy(dst[di:di+ds.Nx], src[si:si+ds.Nx])
		}
	}
	return nil
}

// EmbedShifted places src (shape ss) onto the larger grid dst (shape ds)
// with a per-axis circular shift: voxel (x, y, z) lands at
// ((x-sx) mod Kx, (y-sy) mod Ky, (z-sz) mod Kz). The rest of dst is zeroed.
// This realizes the image-domain origin shift of the NUFFT without
// per-sample phase ramps.
func EmbedShifted(dst []complex128, ds Shape, src []complex128, ss Shape, sx, sy, sz int) error {
	if ds.Nx < ss.Nx || ds.Ny < ss.Ny || ds.Nz < ss.Nz {
		return ErrInvalidShape
	}
	if len(dst) != ds.NumVoxels() || len(src) != ss.NumVoxels() {
		return ErrLengthMismatch
	}
	for i := range dst {
		dst[i] = 0
	}
	for z := 0; z < ss.Nz; z++ {
		gz := mod(z-sz, ds.Nz)
		for y := 0; y < ss.Ny; y++ {
			gy := mod(y-sy, ds.Ny)
			for x := 0; x < ss.Nx; x++ {
				dst[ds.Index(mod(x-sx, ds.Nx), gy, gz)] = src[ss.Index(x, y, z)]
			}
		}
	}
	return nil
}

// ExtractShifted is the transpose of EmbedShifted: it reads the circularly
// shifted positions of src (shape ss) back into dst (shape ds).
func ExtractShifted(dst []complex128, ds Shape, src []complex128, ss Shape, sx, sy, sz int) error {
	if ss.Nx < ds.Nx || ss.Ny < ds.Ny || ss.Nz < ds.Nz {
		return ErrInvalidShape
	}
	if len(dst) != ds.NumVoxels() || len(src) != ss.NumVoxels() {
		return ErrLengthMismatch
	}
	for z := 0; z < ds.Nz; z++ {
		gz := mod(z-sz, ss.Nz)
		for y := 0; y < ds.Ny; y++ {
			gy := mod(y-sy, ss.Ny)
			for x := 0; x < ds.Nx; x++ {
				dst[ds.Index(x, y, z)] = src[ss.Index(mod(x-sx, ss.Nx), gy, gz)]
			}
		}
	}
	return nil
}

func mod(a, n int) int {
	a %= n
	if a < 0 {
		a += n
	}
	return a
}
