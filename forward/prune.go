package forward

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/phil-mansfield/gravmag/geom"
	"github.com/phil-mansfield/gravmag/prism"
)

// pruneBound bounds the field of a prism whose closest point is a distance
// d from the observer. Every mass element is at least d away, so the
// attraction is at most G |contrast| V / d^2, and every dipole element
// contributes at most 2 Cm |m| dV / d^3.
func pruneBound(b r3.Box, d, contrast float64, m r3.Vec) Bound {
	v := geom.Volume(b)
	return Bound{
		G: prism.G * math.Abs(contrast) * v / (d * d) * prism.SI2mGal,
		B: 2 * prism.Cm * r3.Norm(m) * v / (d * d * d) * prism.T2nT,
	}
}
