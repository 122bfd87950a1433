package lith

import (
	"gonum.org/v1/gonum/spatial/r3"
)

// Props is the fixed-shape record a forward computation uses for one
// lithology. A table of Props is resolved once per computation so that the
// inner loops never go through the registry.
type Props struct {
	Valid bool
	// Contrast is the density minus the registry's background density.
	Contrast       float64
	Susceptibility float64
	// Remanent is the remanent magnetization in A/m. If QRatio is positive,
	// RemanentDir is a unit vector and the magnitude depends on the ambient
	// field.
	Remanent    r3.Vec
	RemanentDir r3.Vec
	QRatio      float64
}

// Magnetic returns true if the lithology can produce a magnetic field.
func (p *Props) Magnetic() bool {
	return p.Susceptibility != 0 || p.QRatio > 0 ||
		p.Remanent != (r3.Vec{})
}

// Null returns true if the lithology contributes nothing at all.
func (p *Props) Null() bool {
	return !p.Valid || (p.Contrast == 0 && !p.Magnetic())
}

// Magnetization returns the total magnetization in A/m of a lithology in an
// ambient field h, given in A/m in model coordinates.
func (p *Props) Magnetization(h r3.Vec) r3.Vec {
	induced := r3.Scale(p.Susceptibility, h)
	rem := p.Remanent
	if p.QRatio > 0 && rem == (r3.Vec{}) {
		rem = r3.Scale(p.QRatio*r3.Norm(induced), p.RemanentDir)
	}
	return r3.Add(induced, rem)
}

// Resolve returns a table of Props indexed by ID. Entry 0 and unregistered
// IDs are left invalid.
func (reg *Registry) Resolve() []Props {
	max := ID(0)
	for _, id := range reg.ids {
		if id > max {
			max = id
		}
	}
	out := make([]Props, int(max)+1)
	for _, id := range reg.ids {
		l := reg.liths[id]
		p := &out[id]
		p.Valid = true
		p.Contrast = l.Density - reg.background
		p.Susceptibility = l.Susceptibility
		p.QRatio = l.QRatio
		p.RemanentDir = l.Remanence.Vec(1)
		if l.Remanence.Magnitude > 0 {
			p.Remanent = l.Remanence.Vec(l.Remanence.Magnitude)
		}
	}
	return out
}
