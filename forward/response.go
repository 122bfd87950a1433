package forward

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// Response is the forward response of one model version. Every slice is
// indexed like the Assembler's points. Slices for a disabled response are
// nil.
type Response struct {
	Version uint64
	Points  []Point

	// Gravity is the vertical attraction in mGal, including the regional
	// offset.
	Gravity []float64
	// Magnetic is the total-field anomaly in nT: the projection of the
	// anomalous field onto the ambient field direction. It is NaN at points
	// where the ambient field could not be evaluated.
	Magnetic []float64
	// Field is the anomalous magnetic field vector in nT.
	Field []r3.Vec
	// MagErr holds the error which disabled magnetics at each point, if any.
	MagErr []error

	// PrunedGravity and PrunedMagnetic bound the magnitude of the
	// contributions skipped by pruning at each point. They are nil if
	// pruning is disabled.
	PrunedGravity, PrunedMagnetic []float64
}

func (a *Assembler) response(c *cache) *Response {
	n := len(a.points)
	r := &Response{Version: c.snap.Version(), Points: a.points}

	if a.opt.Gravity {
		r.Gravity = make([]float64, n)
		for i := range r.Gravity {
			r.Gravity[i] = c.sums[i].G + a.opt.Regional
		}
	}

	if a.magnetic {
		r.Magnetic = make([]float64, n)
		r.Field = make([]r3.Vec, n)
		r.MagErr = make([]error, n)
		for i := range r.Magnetic {
			amb := &a.ambient[i]
			if amb.err != nil {
				r.Magnetic[i] = math.NaN()
				r.Field[i] = r3.Vec{X: math.NaN(), Y: math.NaN(), Z: math.NaN()}
				r.MagErr[i] = amb.err
				continue
			}
			r.Field[i] = c.sums[i].B
			r.Magnetic[i] = r3.Dot(c.sums[i].B, amb.dir)
		}
	}

	if c.bounds != nil {
		r.PrunedGravity = make([]float64, n)
		r.PrunedMagnetic = make([]float64, n)
		for i, b := range c.bounds {
			r.PrunedGravity[i], r.PrunedMagnetic[i] = b.G, b.B
		}
	}

	return r
}

// Profile is the ordered set of points on one line.
type Profile struct {
	Line string
	// Index lists the points on the line in input order.
	Index []int
	// Distance is the horizontal distance of each point along the line from
	// its first point, accumulated point to point.
	Distance []float64
}

// Profiles groups the points by line, in order of each line's first
// appearance.
func (r *Response) Profiles() []Profile {
	out := []Profile{}
	lines := map[string]int{}
	for i, p := range r.Points {
		n, ok := lines[p.Line]
		if !ok {
			n = len(out)
			lines[p.Line] = n
			out = append(out, Profile{Line: p.Line})
		}

		prof := &out[n]
		d := 0.0
		if m := len(prof.Index); m > 0 {
			prev := r.Points[prof.Index[m-1]]
			d = prof.Distance[m-1] + math.Hypot(p.X-prev.X, p.Y-prev.Y)
		}
		prof.Index = append(prof.Index, i)
		prof.Distance = append(prof.Distance, d)
	}
	return out
}

// Values returns the entries of vals belonging to the profile.
func (p *Profile) Values(vals []float64) []float64 {
	if vals == nil {
		return nil
	}
	out := make([]float64, len(p.Index))
	for n, i := range p.Index {
		out[n] = vals[i]
	}
	return out
}
