package geom

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// Volume returns the volume of a box. Boxes with inverted sides have zero
// volume.
func Volume(b r3.Box) float64 {
	if b.Empty() {
		return 0
	}
	s := b.Size()
	return s.X * s.Y * s.Z
}

// Degenerate returns true if a box has zero volume.
func Degenerate(b r3.Box) bool { return b.Empty() }

// Dist returns the distance from p to the closest point of b. It is zero
// if p is inside b.
func Dist(b r3.Box, p r3.Vec) float64 {
	dx := axisDist(b.Min.X, b.Max.X, p.X)
	dy := axisDist(b.Min.Y, b.Max.Y, p.Y)
	dz := axisDist(b.Min.Z, b.Max.Z, p.Z)
	return math.Sqrt(dx*dx + dy*dy + dz*dz)
}

func axisDist(lo, hi, x float64) float64 {
	if x < lo {
		return lo - x
	} else if x > hi {
		return x - hi
	}
	return 0
}

// Corners returns the eight corners of b. Corner c has the upper bound
// along x if bit 0 of c is set, along y for bit 1 and along z for bit 2.
func Corners(b r3.Box) [8]r3.Vec {
	var out [8]r3.Vec
	for c := range out {
		out[c] = Corner(b, c)
	}
	return out
}

// Corner returns corner c of b, using the bit layout of Corners.
func Corner(b r3.Box, c int) r3.Vec {
	v := b.Min
	if c&1 != 0 {
		v.X = b.Max.X
	}
	if c&2 != 0 {
		v.Y = b.Max.Y
	}
	if c&4 != 0 {
		v.Z = b.Max.Z
	}
	return v
}
