package igrf

import (
	"math"
)

// Legendre holds Schmidt quasi-normalized associated Legendre functions
// P_n^m(cos theta) and their derivatives with respect to theta, up to some
// maximum degree.
type Legendre struct {
	Nmax  int
	P, DP []float64
}

// NewLegendre allocates storage for functions up to degree nmax.
func NewLegendre(nmax int) *Legendre {
	size := idx(nmax+1, 0)
	return &Legendre{Nmax: nmax, P: make([]float64, size), DP: make([]float64, size)}
}

// At returns P_n^m and dP_n^m/dtheta.
func (l *Legendre) At(n, m int) (p, dp float64) {
	i := idx(n, m)
	return l.P[i], l.DP[i]
}

// Compute evaluates the functions at colatitude theta, in radians, using
// the standard three-term recurrence in degree and the diagonal recurrence
// for n = m.
func (l *Legendre) Compute(theta float64) {
	x, s := math.Cos(theta), math.Sin(theta)
	P, DP := l.P, l.DP

	P[0], DP[0] = 1, 0
	if l.Nmax == 0 {
		return
	}
	P[idx(1, 1)], DP[idx(1, 1)] = s, x

	for n := 1; n <= l.Nmax; n++ {
		fn := float64(n)
		if n >= 2 {
			nn, prev := idx(n, n), idx(n-1, n-1)
			k := math.Sqrt((2*fn - 1) / (2 * fn))
			P[nn] = k * s * P[prev]
			DP[nn] = k * (s*DP[prev] + x*P[prev])
		}

		for m := 0; m < n; m++ {
			fm := float64(m)
			a := 2*fn - 1
			b := math.Sqrt((fn-1)*(fn-1) - fm*fm)
			c := math.Sqrt(fn*fn - fm*fm)

			p1, dp1 := P[idx(n-1, m)], DP[idx(n-1, m)]
			p2, dp2 := 0.0, 0.0
			if n-2 >= m {
				p2, dp2 = P[idx(n-2, m)], DP[idx(n-2, m)]
			}

			P[idx(n, m)] = (a*x*p1 - b*p2) / c
			DP[idx(n, m)] = (a*(x*dp1-s*p1) - b*dp2) / c
		}
	}
}
