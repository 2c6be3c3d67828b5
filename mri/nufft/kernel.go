package nufft

import "math"

// kbKernel is the Kaiser-Bessel interpolation kernel used for gridding.
// The shape parameter alpha follows the standard choice 2.34*J, which keeps
// aliasing sidelobes below ~1e-6 at 2x oversampling for J = 6.
type kbKernel struct {
	width   int
	alpha   float64
	i0Alpha float64
}

func newKBKernel(width int) kbKernel {
	alpha := 2.34 * float64(width)
	return kbKernel{width: width, alpha: alpha, i0Alpha: besselI0(alpha)}
}

// At evaluates the kernel at offset u grid units from its center.
// Zero outside the support |u| <= width/2.
func (k kbKernel) At(u float64) float64 {
	half := float64(k.width) / 2
	if u < -half || u > half {
		return 0
	}
	r := 2 * u / float64(k.width)
	return besselI0(k.alpha*math.Sqrt(1-r*r)) / k.i0Alpha
}

// Transform evaluates the kernel's continuous Fourier transform at spatial
// frequency nu (cycles per grid unit). Used for deapodization; real and even.
func (k kbKernel) Transform(nu float64) float64 {
	j := float64(k.width)
	z2 := k.alpha*k.alpha - math.Pi*math.Pi*j*j*nu*nu
	var s float64
	switch {
	case z2 > 0:
		z := math.Sqrt(z2)
		s = math.Sinh(z) / z
	case z2 < 0:
		z := math.Sqrt(-z2)
		s = math.Sin(z) / z
	default:
		s = 1
	}
	return j * s / k.i0Alpha
}

// besselI0 is the modified Bessel function of the first kind, order zero.
// Polynomial approximations from Abramowitz & Stegun 9.8.1 and 9.8.2,
// accurate to ~1e-7 relative which is far below the gridding kernel's own
// approximation error.
func besselI0(x float64) float64 {
	ax := math.Abs(x)
	if ax < 3.75 {
		t := x / 3.75
		t *= t
		return 1 + t*(3.5156229+t*(3.0899424+t*(1.2067492+
			t*(0.2659732+t*(0.0360768+t*0.0045813)))))
	}
	t := 3.75 / ax
	return math.Exp(ax) / math.Sqrt(ax) *
		(0.39894228 + t*(0.01328592+t*(0.00225319+t*(-0.00157565+
			t*(0.00916281+t*(-0.02057706+t*(0.02635537+
				t*(-0.01647633+t*0.00392377))))))))
}
