package nufft

import "github.com/cwbudde/algo-mri/mri/grid"

// settings collects the tunable plan parameters.
type settings struct {
	width  int
	over   grid.Shape
	shift  [3]int
	lowMem bool
}

// Option mutates plan settings.
type Option func(*settings)

func defaultSettings(shape grid.Shape) settings {
	return settings{
		width: DefaultKernelWidth,
		// Rounded up past axis lengths the FFT backend cannot handle;
		// an explicit WithOversampledGrid is taken literally instead.
		over:  grid.FFTShape(shape.Doubled()),
		shift: [3]int{shape.Nx / 2, shape.Ny / 2, shape.Nz / 2},
	}
}

// WithKernelWidth sets the interpolation kernel width in grid samples per
// axis (default 6).
func WithKernelWidth(width int) Option {
	return func(s *settings) {
		if width > 0 {
			s.width = width
		}
	}
}

// WithOversampledGrid sets the oversampled grid size (default twice the
// image grid along every used axis, rounded up past FFT lengths the
// backend rejects). An explicitly requested size is used as-is and fails
// plan construction if the backend cannot transform it.
func WithOversampledGrid(over grid.Shape) Option {
	return func(s *settings) {
		s.over = over
	}
}

// WithShift sets the image-domain origin shift per axis (default half the
// image grid).
func WithShift(sx, sy, sz int) Option {
	return func(s *settings) {
		s.shift = [3]int{sx, sy, sz}
	}
}

// WithLowMemory selects the low-memory execution mode: interpolation
// weights are recomputed on every application instead of being cached at
// plan time. Output is numerically identical to the precomputed mode.
func WithLowMemory(enabled bool) Option {
	return func(s *settings) {
		s.lowMem = enabled
	}
}
