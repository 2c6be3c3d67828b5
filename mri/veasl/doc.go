// Package veasl provides the composite forward/adjoint operator for
// vessel-encoded arterial spin labelling reconstruction, mapping between
// vessel-component images and multi-coil non-Cartesian k-space data, plus a
// block-circulant (Toeplitz) embedding that applies the operator's normal
// form with FFTs only.
//
// # Pipeline
//
// The forward map chains, per (timepoint, encoding) pair:
//
//  1. vessel-encoding mix (venc.Matrix row over the component axis)
//  2. coil-sensitivity weighting (sense.Maps)
//  3. NUFFT to the pair's trajectory (nufft.Plan)
//  4. square-root density-compensation weighting and the global norm scalar
//
// The adjoint runs the conjugate-transposed stages in reverse order. The two
// tensor axes (time, encoding) are never collapsed: every pair owns its own
// trajectory, NUFFT plan, and weights.
//
// # Data layouts
//
// All arrays are flat complex slices:
//
//	components  [vc][t][voxel]     len = Nvc * Nt * Nx*Ny*Nz
//	k-space     [coil][enc][t][s]  len = Nc * Nenc * Nt * Nsamp
//	trajectory  [enc][t][s]        len = Nenc * Nt * Nsamp
//	weights     [enc][t][s]        len = Nenc * Nt * Nsamp
//
// with voxels in grid order (x fastest) and the sample axis fastest within a
// pair block. The pair index used throughout is q = enc*Nt + t.
//
// # Normal operator
//
// Toeplitz precomputes, per pair, the Fourier-domain point-spread function
// on the doubled grid; NormalApply then evaluates adjoint(forward(x))
// without touching the NUFFT plans. See the Toeplitz type.
//
// An Operator is immutable after construction apart from the lazily built,
// cached embedding. Forward and Adjoint may run concurrently with each
// other only on distinct Operators; within one call the per-pair work is
// spread over the configured worker count.
package veasl
