// Package nufft implements a Kaiser-Bessel gridding NUFFT: forward
// evaluation of Fourier samples at arbitrary (non-grid) frequency locations
// from a regular-grid image, and the exact adjoint (gridding) map.
//
// A Plan is built once per trajectory and is immutable afterwards. The
// forward model approximated by Apply is
//
//	X(w_m) = sum_n x[n] * exp(-i * w_m . (n - shift))
//
// with w in radians per sample and the sum over image grid voxels. Adjoint
// is the conjugate transpose of the exact discrete map realized by Apply,
// so <Apply(x), y> == <x, Adjoint(y)> holds to rounding error.
//
// Two execution modes share one numerical contract: the default mode caches
// the sparse interpolation entries at plan time, the low-memory mode
// recomputes the same weights on every application. Results are identical.
//
// Apply and Adjoint must not be called concurrently on the same Plan (the
// underlying strided FFT path shares scratch); distinct Plans are
// independent.
package nufft

import (
	"errors"
	"fmt"
	"math"

	"github.com/cwbudde/algo-mri/mri/grid"
)

// Defaults for plan construction.
const (
	DefaultKernelWidth = 6
)

// Errors returned by plan construction and application.
var (
	ErrEmptyTrajectory = errors.New("nufft: empty trajectory")
	ErrInvalidGrid     = errors.New("nufft: invalid grid configuration")
	ErrLengthMismatch  = errors.New("nufft: buffer length mismatch")
)

// Coord is one non-uniform frequency location in radians per axis.
// The third component is ignored on 2-D grids.
type Coord [3]float64

// Plan holds the precomputed state for one trajectory: deapodization
// factors, oversampled-grid FFT plans, and (unless in low-memory mode) the
// sparse interpolation table.
type Plan struct {
	shape grid.Shape
	over  grid.Shape
	width int
	shift [3]int
	dims  int
	k     []Coord

	kernel kbKernel
	sn     []float64
	norm   float64
	fft    *grid.FFT

	lowMem bool
	taps   int
	idx    []int32
	wt     []float64
}

// New builds a plan for the given trajectory and image grid.
func New(k []Coord, shape grid.Shape, opts ...Option) (*Plan, error) {
	if len(k) == 0 {
		return nil, ErrEmptyTrajectory
	}
	if !shape.Valid() {
		return nil, ErrInvalidGrid
	}
	s := defaultSettings(shape)
	for _, opt := range opts {
		if opt != nil {
			opt(&s)
		}
	}
	if shape.Nz == 1 && s.over.Nz != 1 {
		return nil, fmt.Errorf("%w: 2-D grid with oversampled third axis", ErrInvalidGrid)
	}
	for a := 0; a < 3; a++ {
		if s.over.Size(a) < shape.Size(a) {
			return nil, fmt.Errorf("%w: oversampled grid smaller than image grid", ErrInvalidGrid)
		}
	}
	dims := shape.Dims()
	for a := 0; a < dims; a++ {
		if s.width < 1 || s.width > s.over.Size(a) {
			return nil, fmt.Errorf("%w: kernel width %d for oversampled size %d",
				ErrInvalidGrid, s.width, s.over.Size(a))
		}
	}

	fft, err := grid.NewFFT(s.over)
	if err != nil {
		return nil, err
	}

	p := &Plan{
		shape:  shape,
		over:   s.over,
		width:  s.width,
		shift:  s.shift,
		dims:   dims,
		k:      append([]Coord(nil), k...),
		kernel: newKBKernel(s.width),
		fft:    fft,
		lowMem: s.lowMem,
	}
	if dims == 2 {
		p.shift[2] = 0
	}
	p.taps = 1
	for a := 0; a < dims; a++ {
		p.taps *= p.width
	}

	p.buildScaling()
	if !p.lowMem {
		p.buildTable()
	}
	return p, nil
}

// Shape returns the image grid.
func (p *Plan) Shape() grid.Shape { return p.shape }

// NumSamples returns the trajectory length.
func (p *Plan) NumSamples() int { return len(p.k) }

// Norm returns the global normalization scalar: the reciprocal of the
// deapodization factor at the grid center. Applying it uniformly to
// forward/adjoint results pins the operator gain independently of the
// oversampling factor.
func (p *Plan) Norm() float64 { return p.norm }

// buildScaling fills the per-voxel deapodization factors sn from the
// kernel's analytic Fourier transform, and derives the norm scalar.
func (p *Plan) buildScaling() {
	axis := make([][]float64, 3)
	for a := 0; a < 3; a++ {
		n := p.shape.Size(a)
		axis[a] = make([]float64, n)
		if a >= p.dims {
			for i := range axis[a] {
				axis[a][i] = 1
			}
			continue
		}
		ka := float64(p.over.Size(a))
		for i := 0; i < n; i++ {
			nu := float64(i-p.shift[a]) / ka
			axis[a][i] = 1 / p.kernel.Transform(nu)
		}
	}
	p.sn = make([]float64, p.shape.NumVoxels())
	for z := 0; z < p.shape.Nz; z++ {
		for y := 0; y < p.shape.Ny; y++ {
			for x := 0; x < p.shape.Nx; x++ {
				p.sn[p.shape.Index(x, y, z)] = axis[0][x] * axis[1][y] * axis[2][z]
			}
		}
	}
	center := p.shape.Index(p.shape.Nx/2, p.shape.Ny/2, p.shape.Nz/2)
	p.norm = 1 / p.sn[center]
}

// buildTable precomputes the sparse interpolation entries: taps
// contiguous (grid index, weight) pairs per trajectory sample.
func (p *Plan) buildTable() {
	p.idx = make([]int32, len(p.k)*p.taps)
	p.wt = make([]float64, len(p.k)*p.taps)
	tp := p.newTapper()
	pos := 0
	for _, c := range p.k {
		tp.visit(c, func(gi int, w float64) {
			p.idx[pos] = int32(gi)
			p.wt[pos] = w
			pos++
		})
	}
}

// tapper iterates the separable kernel taps of one sample. The per-axis
// buffers are reused across samples; a tapper is single-goroutine state.
type tapper struct {
	p  *Plan
	gi [3][]int
	w  [3][]float64
}

func (p *Plan) newTapper() *tapper {
	tp := &tapper{p: p}
	for a := 0; a < p.dims; a++ {
		tp.gi[a] = make([]int, p.width)
		tp.w[a] = make([]float64, p.width)
	}
	return tp
}

// visit calls fn once per tap with the linear oversampled-grid index and
// the separable kernel weight. Tap order is fixed (z slowest, x fastest),
// which keeps the cached and low-memory paths bit-identical.
func (tp *tapper) visit(c Coord, fn func(gi int, w float64)) {
	p := tp.p
	for a := 0; a < p.dims; a++ {
		ka := p.over.Size(a)
		stride := p.over.Stride(a)
		t := c[a] * float64(ka) / (2 * math.Pi)
		base := int(math.Floor(t)) - p.width/2 + 1
		for j := 0; j < p.width; j++ {
			g := base + j
			tp.w[a][j] = p.kernel.At(t - float64(g))
			tp.gi[a][j] = modInt(g, ka) * stride
		}
	}
	if p.dims == 2 {
		for jy := 0; jy < p.width; jy++ {
			oy, wy := tp.gi[1][jy], tp.w[1][jy]
			for jx := 0; jx < p.width; jx++ {
				fn(oy+tp.gi[0][jx], wy*tp.w[0][jx])
			}
		}
		return
	}
	for jz := 0; jz < p.width; jz++ {
		oz, wz := tp.gi[2][jz], tp.w[2][jz]
		for jy := 0; jy < p.width; jy++ {
			oyz, wyz := oz+tp.gi[1][jy], wz*tp.w[1][jy]
			for jx := 0; jx < p.width; jx++ {
				fn(oyz+tp.gi[0][jx], wyz*tp.w[0][jx])
			}
		}
	}
}

// Apply evaluates the forward NUFFT: image src (one value per grid voxel)
// to one complex sample per trajectory point.
func (p *Plan) Apply(dst, src []complex128) error {
	if len(src) != p.shape.NumVoxels() || len(dst) != len(p.k) {
		return ErrLengthMismatch
	}
	scaled := make([]complex128, p.shape.NumVoxels())
	for i := range scaled {
		scaled[i] = src[i] * complex(p.sn[i], 0)
	}
	work := make([]complex128, p.over.NumVoxels())
	if err := grid.EmbedShifted(work, p.over, scaled, p.shape, p.shift[0], p.shift[1], p.shift[2]); err != nil {
		return err
	}
	if err := p.fft.Forward(work); err != nil {
		return err
	}
	if p.lowMem {
		tp := p.newTapper()
		for s, c := range p.k {
			var sum complex128
			tp.visit(c, func(gi int, w float64) {
				sum += complex(w, 0) * work[gi]
			})
			dst[s] = sum
		}
		return nil
	}
	for s := range p.k {
		var sum complex128
		base := s * p.taps
		for t := 0; t < p.taps; t++ {
			sum += complex(p.wt[base+t], 0) * work[p.idx[base+t]]
		}
		dst[s] = sum
	}
	return nil
}

// Adjoint applies the conjugate transpose of Apply: trajectory samples src
// back to a gridded image in dst.
func (p *Plan) Adjoint(dst, src []complex128) error {
	if len(dst) != p.shape.NumVoxels() || len(src) != len(p.k) {
		return ErrLengthMismatch
	}
	work := make([]complex128, p.over.NumVoxels())
	if p.lowMem {
		tp := p.newTapper()
		for s, c := range p.k {
			v := src[s]
			tp.visit(c, func(gi int, w float64) {
				work[gi] += complex(w, 0) * v
			})
		}
	} else {
		for s := range p.k {
			v := src[s]
			base := s * p.taps
			for t := 0; t < p.taps; t++ {
				work[p.idx[base+t]] += complex(p.wt[base+t], 0) * v
			}
		}
	}
	if err := p.fft.Inverse(work); err != nil {
		return err
	}
	if err := grid.ExtractShifted(dst, p.shape, work, p.over, p.shift[0], p.shift[1], p.shift[2]); err != nil {
		return err
	}
	// The inverse FFT is 1/N-normalized; the adjoint of the unnormalized
	// forward transform needs the factor back.
	scale := float64(p.over.NumVoxels())
	for i := range dst {
		dst[i] *= complex(p.sn[i]*scale, 0)
	}
	return nil
}

func modInt(a, n int) int {
	a %= n
	if a < 0 {
		a += n
	}
	return a
}
