package veasl

import (
	"errors"
	"math"
	"sync"

	"github.com/cwbudde/algo-mri/mri/density"
	"github.com/cwbudde/algo-mri/mri/grid"
	"github.com/cwbudde/algo-mri/mri/nufft"
	"github.com/cwbudde/algo-mri/mri/sense"
	"github.com/cwbudde/algo-mri/mri/venc"
)

var (
	ErrShapeMismatch    = errors.New("veasl: shape mismatch")
	ErrNilMaps          = errors.New("veasl: nil sensitivity maps")
	ErrEncodingMismatch = errors.New("veasl: encoding matrix does not match encoding count")
	ErrNegativeWeight   = errors.New("veasl: negative density weight")
)

// Operator is the composite encoding operator. It maps vessel-component
// images to weighted multi-coil k-space data and back; see the package
// documentation for the pipeline and the array layouts.
type Operator struct {
	shape grid.Shape
	nvox  int
	nsamp int
	nt    int
	nenc  int
	nvc   int
	nc    int

	enc   *venc.Matrix
	maps  *sense.Maps
	plans []*nufft.Plan // pair-major, q = enc*nt + t
	sqw   [][]float64   // sqrt of the compensation weights, per pair
	norm  float64

	workers int

	tzOnce sync.Once
	tz     *Toeplitz
	tzErr  error
}

// New builds the operator for a grid shape, coil sensitivity maps and a
// per-pair trajectory in the [enc][t][sample] layout. The sample count is
// derived from len(k); it must divide evenly across the nenc*nt pairs.
// Unless overridden by a density option, compensation weights are estimated
// per pair with density.FixedPoint.
func New(k []nufft.Coord, shape grid.Shape, maps *sense.Maps, nt, nenc int, opts ...Option) (*Operator, error) {
	s := defaultSettings()
	for _, opt := range opts {
		opt(&s)
	}
	if s.enc == nil {
		h, err := venc.Hadamard(2)
		if err != nil {
			return nil, err
		}
		s.enc = h
	}
	if maps == nil {
		return nil, ErrNilMaps
	}
	if !shape.Valid() || maps.Shape() != shape {
		return nil, ErrShapeMismatch
	}
	if nt < 1 || nenc < 1 {
		return nil, ErrShapeMismatch
	}
	if s.enc.NumEncodings() != nenc {
		return nil, ErrEncodingMismatch
	}
	npairs := nenc * nt
	if len(k) == 0 || len(k)%npairs != 0 {
		return nil, ErrShapeMismatch
	}
	nsamp := len(k) / npairs

	op := &Operator{
		shape:   shape,
		nvox:    shape.NumVoxels(),
		nsamp:   nsamp,
		nt:      nt,
		nenc:    nenc,
		nvc:     s.enc.NumComponents(),
		nc:      maps.NumCoils(),
		enc:     s.enc,
		maps:    maps,
		plans:   make([]*nufft.Plan, npairs),
		sqw:     make([][]float64, npairs),
		workers: s.workers,
	}
	for q := 0; q < npairs; q++ {
		p, err := nufft.New(k[q*nsamp:(q+1)*nsamp], shape, s.nopts...)
		if err != nil {
			return nil, err
		}
		op.plans[q] = p
	}
	op.norm = op.plans[0].Norm()

	if err := op.buildWeights(&s); err != nil {
		return nil, err
	}
	return op, nil
}

func (op *Operator) buildWeights(s *settings) error {
	npairs := len(op.plans)
	switch s.mode {
	case densityGiven:
		if len(s.weights) != npairs*op.nsamp {
			return ErrShapeMismatch
		}
		for q := 0; q < npairs; q++ {
			sq := make([]float64, op.nsamp)
			for i, w := range s.weights[q*op.nsamp : (q+1)*op.nsamp] {
				if w < 0 {
					return ErrNegativeWeight
				}
				sq[i] = math.Sqrt(w)
			}
			op.sqw[q] = sq
		}
	case densityUniform:
		if s.uniform < 0 {
			return ErrNegativeWeight
		}
		sq := make([]float64, op.nsamp)
		for i := range sq {
			sq[i] = math.Sqrt(s.uniform)
		}
		for q := 0; q < npairs; q++ {
			op.sqw[q] = sq
		}
	case densityShared:
		w, err := density.FixedPoint(op.plans[0], 0)
		if err != nil {
			return err
		}
		sq := make([]float64, op.nsamp)
		for i := range sq {
			sq[i] = math.Sqrt(w[i])
		}
		for q := 0; q < npairs; q++ {
			op.sqw[q] = sq
		}
	default:
		for q := 0; q < npairs; q++ {
			w, err := density.FixedPoint(op.plans[q], 0)
			if err != nil {
				return err
			}
			sq := make([]float64, op.nsamp)
			for i := range sq {
				sq[i] = math.Sqrt(w[i])
			}
			op.sqw[q] = sq
		}
	}
	return nil
}

// Shape returns the image grid shape.
func (op *Operator) Shape() grid.Shape { return op.shape }

// NumComponents returns the vessel-component count.
func (op *Operator) NumComponents() int { return op.nvc }

// NumTimepoints returns the timepoint count.
func (op *Operator) NumTimepoints() int { return op.nt }

// NumEncodings returns the encoding count.
func (op *Operator) NumEncodings() int { return op.nenc }

// NumCoils returns the coil count.
func (op *Operator) NumCoils() int { return op.nc }

// NumSamples returns the per-pair trajectory sample count.
func (op *Operator) NumSamples() int { return op.nsamp }

// Norm returns the global normalisation scalar shared by all pairs. It
// depends only on the interpolation kernel, not on the oversampling factor.
func (op *Operator) Norm() float64 { return op.norm }

// InputLen returns the component-image length Nvc*Nt*NumVoxels.
func (op *Operator) InputLen() int { return op.nvc * op.nt * op.nvox }

// OutputLen returns the k-space length Nc*Nenc*Nt*NumSamples.
func (op *Operator) OutputLen() int { return op.nc * op.nenc * op.nt * op.nsamp }

// Forward evaluates the composite operator: vessel-encoding mix, coil
// weighting, NUFFT and sqrt-density weighting, per (timepoint, encoding)
// pair. src is a component image in the [vc][t][voxel] layout; dst receives
// k-space data in the [coil][enc][t][sample] layout.
func (op *Operator) Forward(dst, src []complex128) error {
	if len(src) != op.InputLen() || len(dst) != op.OutputLen() {
		return ErrShapeMismatch
	}
	mixed, err := op.encodeAll(src)
	if err != nil {
		return err
	}
	return op.forEachPair(func(q int) error {
		e, t := q/op.nt, q%op.nt
		coils := make([]complex128, op.nc*op.nvox)
		if err := op.maps.Apply(coils, mixed[q*op.nvox:(q+1)*op.nvox], nil); err != nil {
			return err
		}
		samp := make([]complex128, op.nsamp)
		for c := 0; c < op.nc; c++ {
			if err := op.plans[q].Apply(samp, coils[c*op.nvox:(c+1)*op.nvox]); err != nil {
				return err
			}
			out := dst[(((c*op.nenc+e)*op.nt)+t)*op.nsamp:]
			for i := 0; i < op.nsamp; i++ {
				out[i] = samp[i] * complex(op.sqw[q][i]*op.norm, 0)
			}
		}
		return nil
	})
}

// Adjoint evaluates the exact adjoint of Forward: sqrt-density weighting,
// adjoint NUFFT, coil combination and vessel decoding. src is k-space data
// in the [coil][enc][t][sample] layout; dst receives a component image in
// the [vc][t][voxel] layout.
func (op *Operator) Adjoint(dst, src []complex128) error {
	if len(src) != op.OutputLen() || len(dst) != op.InputLen() {
		return ErrShapeMismatch
	}
	acc := make([]complex128, op.nenc*op.nt*op.nvox)
	err := op.forEachPair(func(q int) error {
		e, t := q/op.nt, q%op.nt
		weighted := make([]complex128, op.nsamp)
		coils := make([]complex128, op.nc*op.nvox)
		for c := 0; c < op.nc; c++ {
			in := src[(((c*op.nenc+e)*op.nt)+t)*op.nsamp:]
			for i := 0; i < op.nsamp; i++ {
				weighted[i] = in[i] * complex(op.sqw[q][i], 0)
			}
			if err := op.plans[q].Adjoint(coils[c*op.nvox:(c+1)*op.nvox], weighted); err != nil {
				return err
			}
		}
		out := acc[q*op.nvox : (q+1)*op.nvox]
		if err := op.maps.Adjoint(out, coils, nil); err != nil {
			return err
		}
		for i := range out {
			out[i] *= complex(op.norm, 0)
		}
		return nil
	})
	if err != nil {
		return err
	}
	return op.decodeAll(dst, acc)
}

// encodeAll mixes component images into per-pair encoded images, returning
// them pair-major (index q = enc*nt + t).
func (op *Operator) encodeAll(src []complex128) ([]complex128, error) {
	mixed := make([]complex128, op.nenc*op.nt*op.nvox)
	comp := make([]complex128, op.nvc*op.nvox)
	encs := make([]complex128, op.nenc*op.nvox)
	for t := 0; t < op.nt; t++ {
		for v := 0; v < op.nvc; v++ {
			copy(comp[v*op.nvox:(v+1)*op.nvox], src[((v*op.nt)+t)*op.nvox:])
		}
		if err := op.enc.Encode(encs, comp, op.nvox); err != nil {
			return nil, err
		}
		for e := 0; e < op.nenc; e++ {
			copy(mixed[((e*op.nt)+t)*op.nvox:((e*op.nt)+t+1)*op.nvox], encs[e*op.nvox:])
		}
	}
	return mixed, nil
}

// decodeAll is the adjoint of encodeAll: it contracts pair-major encoded
// images back onto the component axis.
func (op *Operator) decodeAll(dst, acc []complex128) error {
	comp := make([]complex128, op.nvc*op.nvox)
	encs := make([]complex128, op.nenc*op.nvox)
	for t := 0; t < op.nt; t++ {
		for e := 0; e < op.nenc; e++ {
			copy(encs[e*op.nvox:(e+1)*op.nvox], acc[((e*op.nt)+t)*op.nvox:])
		}
		if err := op.enc.Decode(comp, encs, op.nvox); err != nil {
			return err
		}
		for v := 0; v < op.nvc; v++ {
			copy(dst[((v*op.nt)+t)*op.nvox:((v*op.nt)+t+1)*op.nvox], comp[v*op.nvox:])
		}
	}
	return nil
}

// forEachPair runs fn for every pair index, fanning out over the configured
// worker count. Per-pair results are independent, so the outcome does not
// depend on scheduling.
func (op *Operator) forEachPair(fn func(q int) error) error {
	npairs := op.nenc * op.nt
	workers := op.workers
	if workers > npairs {
		workers = npairs
	}
	if workers <= 1 {
		for q := 0; q < npairs; q++ {
			if err := fn(q); err != nil {
				return err
			}
		}
		return nil
	}
	errs := make([]error, npairs)
	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for q := range jobs {
				errs[q] = fn(q)
			}
		}()
	}
	for q := 0; q < npairs; q++ {
		jobs <- q
	}
	close(jobs)
	wg.Wait()
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}
