package prism

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/phil-mansfield/gravmag/geom"
)

// cornerOrder is the order in which the eight corners of a prism are
// visited. Corner c uses the bit layout of geom.Corner.
type cornerOrder [8]int

var naturalOrder = cornerOrder{0, 1, 2, 3, 4, 5, 6, 7}

// parity returns the summation sign of corner c: the product over the axes
// of +1 for the upper bound and -1 for the lower bound.
func parity(c int) float64 {
	s := 1.0
	for axis := 0; axis < 3; axis++ {
		if c&(1<<uint(axis)) == 0 {
			s = -s
		}
	}
	return s
}

// offset returns the corner-to-observation offset with components smaller
// than tol set to exactly zero.
func offset(b r3.Box, c int, p r3.Vec, tol float64) (u, v, w float64) {
	d := r3.Sub(geom.Corner(b, c), p)
	return snap(d.X, tol), snap(d.Y, tol), snap(d.Z, tol)
}

func snap(x, tol float64) float64 {
	if math.Abs(x) <= tol {
		return 0
	}
	return x
}

func gravitySum(b r3.Box, p r3.Vec, contrast, tol float64, order *cornerOrder) float64 {
	sum := 0.0
	for _, c := range order {
		u, v, w := offset(b, c, p, tol)
		sum += parity(c) * gravityKernel(u, v, w)
	}
	return -G * contrast * sum * SI2mGal
}

// gravityKernel is the triple antiderivative of w/r^3. Every term whose
// coefficient is zero is dropped, which removes all of its singularities.
func gravityKernel(u, v, w float64) float64 {
	r := math.Sqrt(u*u + v*v + w*w)
	f := 0.0
	if w != 0 && u != 0 && v != 0 {
		f += w * math.Atan(u*v/(w*r))
	}
	if u != 0 {
		f -= u * logSum(v, u*u+w*w, r)
	}
	if v != 0 {
		f -= v * logSum(u, v*v+w*w, r)
	}
	return f
}

func tensorSum(b r3.Box, p r3.Vec, tol float64, order *cornerOrder) Tensor {
	t := Tensor{}
	for _, c := range order {
		u, v, w := offset(b, c, p, tol)
		mu := parity(c)
		r := math.Sqrt(u*u + v*v + w*w)

		t.XX -= mu * atanRatio(v*w, u*r)
		t.YY -= mu * atanRatio(u*w, v*r)
		t.ZZ -= mu * atanRatio(u*v, w*r)
		t.XY += mu * logSum(w, u*u+v*v, r)
		t.XZ += mu * logSum(v, u*u+w*w, r)
		t.YZ += mu * logSum(u, v*v+w*w, r)
	}
	return t
}

// atanRatio returns atan(num/den), or zero when either is zero. A zero
// denominator only arises on a face plane, which callers perturb away from.
func atanRatio(num, den float64) float64 {
	if num == 0 || den == 0 {
		return 0
	}
	return math.Atan(num / den)
}

// logSum returns ln(a + r), where rest = r^2 - a^2. For negative a the
// equivalent ln(rest) - ln(r - a) avoids cancellation. It returns zero if
// a + r vanishes, which only happens on an edge line.
func logSum(a, rest, r float64) float64 {
	if a >= 0 {
		if r == 0 {
			return 0
		}
		return math.Log(a + r)
	}
	if rest == 0 {
		return 0
	}
	return math.Log(rest) - math.Log(r-a)
}
