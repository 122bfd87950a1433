/*package prism computes the gravity and magnetic fields of uniform
rectangular prisms in closed form.

Fields are evaluated by the eight-corner summation of Nagy (1966) for gravity
and of Bhattacharyya (1964) for magnetics: each corner of the prism
contributes a combination of arctangent and logarithm terms of its offset
from the observation point, weighted by +1 or -1 according to which bounds
the corner sits on.

Coordinates are in metres with x east, y north and z up. Gravity is returned
in mGal, positive downwards. Magnetization is in A/m and magnetic fields are
in nT.

Every function in this package is pure and safe to call concurrently.
*/
package prism

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

const (
	// G is the gravitational constant in m^3 kg^-1 s^-2.
	G = 6.6743e-11
	// SI2mGal converts m/s^2 to mGal.
	SI2mGal = 1e5
	// Cm is mu_0 / 4pi in T m / A.
	Cm = 1e-7
	// T2nT converts Tesla to nT.
	T2nT = 1e9
)

// Options controls how the solver treats observation points which lie on
// the planes of a prism's faces.
type Options struct {
	// Tolerance is the distance below which a corner offset is taken to be
	// exactly zero.
	Tolerance float64
	// Perturbation is the distance an observation point is moved, along
	// each axis where it is coplanar with a face, before evaluating the
	// magnetic kernels. It should be several orders of magnitude smaller
	// than the cell size.
	Perturbation float64
}

// DefaultOptions returns Options suitable for models with metre-scale cells
// or larger.
func DefaultOptions() Options {
	return Options{Tolerance: 1e-9, Perturbation: 1e-3}
}

// Tensor holds the second derivatives of the shape potential
// U(p) = integral of 1/|p - q| over the prism, taken with respect to the
// observation point.
type Tensor struct {
	XX, XY, XZ, YY, YZ, ZZ float64
}

// Apply returns the product of the tensor with v.
func (t Tensor) Apply(v r3.Vec) r3.Vec {
	return r3.Vec{
		X: t.XX*v.X + t.XY*v.Y + t.XZ*v.Z,
		Y: t.XY*v.X + t.YY*v.Y + t.YZ*v.Z,
		Z: t.XZ*v.X + t.YZ*v.Y + t.ZZ*v.Z,
	}
}

// Trace returns XX + YY + ZZ. It is zero outside the prism and -4pi inside.
func (t Tensor) Trace() float64 { return t.XX + t.YY + t.ZZ }

// Result is the combined field of a prism at one observation point.
type Result struct {
	// Gz is the vertical attraction in mGal, positive downwards.
	Gz float64
	// B is the magnetic field in nT.
	B r3.Vec
	// Perturbed is set if the observation point had to be moved off a face
	// plane for the magnetic kernels.
	Perturbed bool
}

// Gravity returns the vertical attraction in mGal, positive downwards, of a
// prism with the given density contrast in kg/m^3.
func Gravity(b r3.Box, p r3.Vec, contrast float64, opt Options) float64 {
	if contrast == 0 || b.Empty() {
		return 0
	}
	return gravitySum(b, p, contrast, opt.Tolerance, &naturalOrder)
}

// Magnetic returns the magnetic field in nT of a prism with uniform
// magnetization m in A/m.
func Magnetic(b r3.Box, p r3.Vec, m r3.Vec, opt Options) r3.Vec {
	if m == (r3.Vec{}) || b.Empty() {
		return r3.Vec{}
	}
	t, _ := TensorAt(b, p, opt)
	return r3.Scale(Cm*T2nT, t.Apply(m))
}

// Field returns both the gravity and the magnetic field of a prism. The
// gravity kernel needs no perturbation, so only the magnetic part is
// evaluated at the moved point when the observation is coplanar with a face.
func Field(b r3.Box, p r3.Vec, contrast float64, m r3.Vec, opt Options) Result {
	res := Result{}
	if b.Empty() {
		return res
	}
	if contrast != 0 {
		res.Gz = gravitySum(b, p, contrast, opt.Tolerance, &naturalOrder)
	}
	if m != (r3.Vec{}) {
		var t Tensor
		t, res.Perturbed = TensorAt(b, p, opt)
		res.B = r3.Scale(Cm*T2nT, t.Apply(m))
	}
	return res
}

// TensorAt returns the shape-potential tensor of a prism at p. If p lies on
// the plane of any face, within opt.Tolerance, it is first moved by
// opt.Perturbation along the offending axes and the second return value is
// true.
func TensorAt(b r3.Box, p r3.Vec, opt Options) (Tensor, bool) {
	q, moved := perturb(b, p, opt)
	return tensorSum(b, q, opt.Tolerance, &naturalOrder), moved
}

// perturb moves p off the face planes of b. Points are moved towards +x,
// +y and +z (upwards, away from the subsurface).
func perturb(b r3.Box, p r3.Vec, opt Options) (r3.Vec, bool) {
	moved := false
	if onPlane(p.X, b.Min.X, b.Max.X, opt.Tolerance) {
		p.X += opt.Perturbation
		moved = true
	}
	if onPlane(p.Y, b.Min.Y, b.Max.Y, opt.Tolerance) {
		p.Y += opt.Perturbation
		moved = true
	}
	if onPlane(p.Z, b.Min.Z, b.Max.Z, opt.Tolerance) {
		p.Z += opt.Perturbation
		moved = true
	}
	return p, moved
}

func onPlane(x, lo, hi, tol float64) bool {
	return math.Abs(x-lo) <= tol || math.Abs(x-hi) <= tol
}
