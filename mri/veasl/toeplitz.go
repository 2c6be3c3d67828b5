package veasl

import (
	"github.com/cwbudde/algo-mri/mri/grid"
)

// Toeplitz holds the Fourier-domain point-spread kernels of the operator's
// normal form on the doubled grid, one kernel per (timepoint, encoding)
// pair. Applying adjoint(forward(x)) then reduces to zero-padding, an FFT,
// a pointwise multiply and an inverse FFT per pair and coil, with no
// gridding interpolation at all.
//
// The kernels bake in the trajectory, the density weights and the squared
// norm scalar. They stay valid for the Operator's lifetime because all
// three are fixed at construction.
type Toeplitz struct {
	shape grid.Shape // doubled image grid, rounded up to FFT-supported lengths
	mvox  int
	fft   *grid.FFT
	data  []complex128 // pair-major kernel blocks
	nt    int
}

// Shape returns the doubled grid the kernels live on.
func (tz *Toeplitz) Shape() grid.Shape { return tz.shape }

// Kernel returns the Fourier-domain kernel for one (timepoint, encoding)
// pair. The slice aliases internal storage and must not be modified.
func (tz *Toeplitz) Kernel(t, e int) []complex128 {
	q := e*tz.nt + t
	return tz.data[q*tz.mvox : (q+1)*tz.mvox]
}

// Toeplitz builds the embedding on first use and returns the cached value
// afterwards.
func (op *Operator) Toeplitz() (*Toeplitz, error) {
	op.tzOnce.Do(func() {
		op.tz, op.tzErr = op.buildToeplitz()
	})
	return op.tz, op.tzErr
}

// buildToeplitz probes each pair's weighted normal operator with delta
// images at the corner voxels, reassembles the resulting columns into the
// autocorrelation tensor on the doubled grid, and transforms that to the
// Fourier domain.
//
// A single column A'WA(delta at p) only reaches lags n-p, so one corner
// cannot cover all sign combinations; using the corner whose offset matches
// the lag's sign pattern on the non-leading axes does, and negative leading
// lags follow from conjugate symmetry of the autocorrelation.
func (op *Operator) buildToeplitz() (*Toeplitz, error) {
	shape := op.shape
	dims := shape.Dims()
	double := grid.FFTShape(shape.Doubled())
	fft, err := grid.NewFFT(double)
	if err != nil {
		return nil, err
	}
	npairs := op.nenc * op.nt
	tz := &Toeplitz{
		shape: double,
		mvox:  double.NumVoxels(),
		fft:   fft,
		data:  make([]complex128, npairs*double.NumVoxels()),
		nt:    op.nt,
	}

	ncorners := 1 << (dims - 1)
	cols := make([][]complex128, ncorners)
	for ci := range cols {
		cols[ci] = make([]complex128, op.nvox)
	}
	delta := make([]complex128, op.nvox)
	samp := make([]complex128, op.nsamp)
	scale := complex(op.norm*op.norm, 0)

	for q := 0; q < npairs; q++ {
		plan := op.plans[q]
		for ci := 0; ci < ncorners; ci++ {
			cy, cz := cornerOffset(shape, ci)
			for i := range delta {
				delta[i] = 0
			}
			delta[shape.Index(0, cy, cz)] = 1
			if err := plan.Apply(samp, delta); err != nil {
				return nil, err
			}
			for i := range samp {
				w := op.sqw[q][i]
				samp[i] *= complex(w*w, 0)
			}
			if err := plan.Adjoint(cols[ci], samp); err != nil {
				return nil, err
			}
		}

		rr := tz.data[q*tz.mvox : (q+1)*tz.mvox]
		for mz := 0; mz < double.Nz; mz++ {
			for my := 0; my < double.Ny; my++ {
				for mx := 0; mx < double.Nx; mx++ {
					rr[double.Index(mx, my, mz)] = op.lagValue(cols, double, mx, my, mz)
				}
			}
		}
		if err := fft.Forward(rr); err != nil {
			return nil, err
		}
		for i := range rr {
			rr[i] *= scale
		}
	}
	return tz, nil
}

// cornerOffset maps a corner index to its (y, z) offset on the image grid.
// Bit 0 selects the far y corner, bit 1 the far z corner.
func cornerOffset(s grid.Shape, ci int) (cy, cz int) {
	if ci&1 != 0 {
		cy = s.Ny - 1
	}
	if ci&2 != 0 {
		cz = s.Nz - 1
	}
	return cy, cz
}

// lagValue reads the autocorrelation at the lag encoded by doubled-grid
// index (mx, my, mz) out of the probed corner columns. Positive lags fill
// the low end of each doubled axis and negative lags wrap in from the high
// end; the band between the two carries no lag and is zero. The band is one
// voxel wide on an exactly doubled axis and wider where the doubled grid was
// rounded up to an FFT-supported length.
func (op *Operator) lagValue(cols [][]complex128, double grid.Shape, mx, my, mz int) complex128 {
	s := op.shape
	lx, okx := lagAt(mx, s.Nx, double.Nx)
	ly, oky := lagAt(my, s.Ny, double.Ny)
	lz, okz := lagAt(mz, s.Nz, double.Nz)
	if !okx || !oky || !okz {
		return 0
	}
	conjugate := lx < 0
	if conjugate {
		lx, ly, lz = -lx, -ly, -lz
	}
	ci, cy, cz := 0, 0, 0
	if ly < 0 {
		ci |= 1
		cy = s.Ny - 1
	}
	if lz < 0 {
		ci |= 2
		cz = s.Nz - 1
	}
	v := cols[ci][s.Index(lx, ly+cy, lz+cz)]
	if conjugate {
		v = complex(real(v), -imag(v))
	}
	return v
}

// lagAt maps a doubled-grid coordinate to its signed lag for an axis of
// image size n and doubled size mdim. The second result is false inside the
// zero band separating the positive and negative lags.
func lagAt(m, n, mdim int) (int, bool) {
	if m < n {
		return m, true
	}
	if m > mdim-n {
		return m - mdim, true
	}
	return 0, false
}

// NormalApply evaluates adjoint(Forward(src)) through the Toeplitz
// embedding, building it on first call. src and dst are component images in
// the [vc][t][voxel] layout; dst may equal src.
//
// Per pair the pipeline is: encode, coil weighting, corner zero-padding to
// the doubled grid, FFT, kernel multiply, inverse FFT, corner crop, coil
// combination, decode. It shares one doubled-grid FFT across pairs and so
// always runs the pair loop serially.
func (op *Operator) NormalApply(dst, src []complex128) error {
	if len(src) != op.InputLen() || len(dst) != op.InputLen() {
		return ErrShapeMismatch
	}
	tz, err := op.Toeplitz()
	if err != nil {
		return err
	}
	mixed, err := op.encodeAll(src)
	if err != nil {
		return err
	}

	acc := make([]complex128, op.nenc*op.nt*op.nvox)
	coils := make([]complex128, op.nc*op.nvox)
	pad := make([]complex128, tz.mvox)
	npairs := op.nenc * op.nt
	for q := 0; q < npairs; q++ {
		e, t := q/op.nt, q%op.nt
		if err := op.maps.Apply(coils, mixed[q*op.nvox:(q+1)*op.nvox], nil); err != nil {
			return err
		}
		kern := tz.Kernel(t, e)
		for c := 0; c < op.nc; c++ {
			img := coils[c*op.nvox : (c+1)*op.nvox]
			if err := grid.EmbedTo(pad, tz.shape, img, op.shape); err != nil {
				return err
			}
			if err := tz.fft.Forward(pad); err != nil {
				return err
			}
			for i := range pad {
				pad[i] *= kern[i]
			}
			if err := tz.fft.Inverse(pad); err != nil {
				return err
			}
			if err := grid.CropTo(img, op.shape, pad, tz.shape); err != nil {
				return err
			}
		}
		if err := op.maps.Adjoint(acc[q*op.nvox:(q+1)*op.nvox], coils, nil); err != nil {
			return err
		}
	}
	return op.decodeAll(dst, acc)
}
