package veasl

import (
	"github.com/cwbudde/algo-mri/mri/grid"
	"github.com/cwbudde/algo-mri/mri/nufft"
	"github.com/cwbudde/algo-mri/mri/venc"
)

// densityMode selects how per-sample compensation weights are obtained.
type densityMode int

const (
	densityAuto densityMode = iota // fixed-point estimate per pair
	densityShared
	densityUniform
	densityGiven
)

type settings struct {
	enc     *venc.Matrix
	mode    densityMode
	weights []float64
	uniform float64
	workers int
	nopts   []nufft.Option
}

func defaultSettings() settings {
	return settings{
		mode:    densityAuto,
		workers: 1,
	}
}

// Option configures an Operator.
type Option func(*settings)

// WithEncoding replaces the default two-point Hadamard vessel-encoding
// matrix (venc.Hadamard(2)). The matrix row count must match the operator's
// encoding count.
func WithEncoding(m *venc.Matrix) Option {
	return func(s *settings) { s.enc = m }
}

// WithKernelWidth forwards the interpolation kernel width to every
// per-pair NUFFT plan.
func WithKernelWidth(w int) Option {
	return func(s *settings) { s.nopts = append(s.nopts, nufft.WithKernelWidth(w)) }
}

// WithOversampledGrid forwards an explicit oversampled grid shape to every
// per-pair NUFFT plan.
func WithOversampledGrid(over grid.Shape) Option {
	return func(s *settings) { s.nopts = append(s.nopts, nufft.WithOversampledGrid(over)) }
}

// WithShift forwards an explicit image-domain shift to every per-pair
// NUFFT plan.
func WithShift(sx, sy, sz int) Option {
	return func(s *settings) { s.nopts = append(s.nopts, nufft.WithShift(sx, sy, sz)) }
}

// WithLowMemory forwards the low-memory interpolation mode to every
// per-pair NUFFT plan.
func WithLowMemory(enabled bool) Option {
	return func(s *settings) { s.nopts = append(s.nopts, nufft.WithLowMemory(enabled)) }
}

// WithWorkers sets the number of goroutines used for the per-pair loops in
// Forward and Adjoint. Values below one fall back to serial execution.
// Results never depend on the worker count.
func WithWorkers(n int) Option {
	return func(s *settings) { s.workers = n }
}

// WithDensityWeights supplies explicit compensation weights in the
// [enc][t][sample] layout, bypassing the fixed-point estimate. Weights must
// be non-negative.
func WithDensityWeights(w []float64) Option {
	return func(s *settings) {
		s.mode = densityGiven
		s.weights = w
	}
}

// WithUniformDensity applies one non-negative weight to every sample of
// every pair.
func WithUniformDensity(v float64) Option {
	return func(s *settings) {
		s.mode = densityUniform
		s.uniform = v
	}
}

// WithSharedDensity estimates compensation weights once, on the first
// (timepoint, encoding) pair, and reuses them for all pairs. Cheaper than
// the default per-pair estimate when all trajectories coincide.
func WithSharedDensity() Option {
	return func(s *settings) { s.mode = densityShared }
}
