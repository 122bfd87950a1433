/*package interpolate contains piecewise-linear interpolation over tabulated
knots, for tables whose entries are whole vectors of values.
*/
package interpolate

import (
	"fmt"

	"gonum.org/v1/gonum/floats"
)

// Bracket finds the interval of the strictly increasing knots xs which
// contains x. It returns the index i of the lower knot and the fractional
// position t of x between xs[i] and xs[i+1]. The last knot is included in
// the final interval. ok is false if x lies outside [xs[0], xs[len(xs)-1]].
//
// A single knot brackets only itself, with i = 0 and t = 0.
func Bracket(xs []float64, x float64) (i int, t float64, ok bool) {
	switch {
	case len(xs) == 0:
		return 0, 0, false
	case len(xs) == 1:
		return 0, 0, x == xs[0]
	case x == xs[len(xs)-1]:
		return len(xs) - 2, 1, true
	}

	i = floats.Within(xs, x)
	if i < 0 {
		return 0, 0, false
	}
	return i, (x - xs[i]) / (xs[i+1] - xs[i]), true
}

// Lerp writes lo + t (hi - lo) into dst element-wise and returns it. If dst
// is nil a new slice is allocated.
func Lerp(dst, lo, hi []float64, t float64) []float64 {
	if len(lo) != len(hi) {
		panic(fmt.Sprintf(
			"Length of lo, %d, is not equal to length of hi, %d.",
			len(lo), len(hi),
		))
	}
	if dst == nil {
		dst = make([]float64, len(lo))
	}
	diff := floats.SubTo(make([]float64, len(lo)), hi, lo)
	return floats.AddScaledTo(dst, lo, t, diff)
}

// Extend writes base + dt rate into dst element-wise and returns it. If dst
// is nil a new slice is allocated.
func Extend(dst, base, rate []float64, dt float64) []float64 {
	if dst == nil {
		dst = make([]float64, len(base))
	}
	return floats.AddScaledTo(dst, base, dt, rate)
}

// Table is a sequence of vectors tabulated at strictly increasing knots.
type Table struct {
	xs   []float64
	vals [][]float64
}

// NewTable creates a table whose vals[i] is tabulated at xs[i]. Every
// vector must have the same length.
func NewTable(xs []float64, vals [][]float64) (*Table, error) {
	if len(xs) != len(vals) {
		return nil, fmt.Errorf(
			"Length of xs, %d, is not equal to length of vals, %d.",
			len(xs), len(vals),
		)
	} else if len(xs) == 0 {
		return nil, fmt.Errorf("Table needs at least one knot.")
	}
	for i := 1; i < len(xs); i++ {
		if xs[i] <= xs[i-1] {
			return nil, fmt.Errorf("Knots are not strictly increasing at index %d.", i)
		} else if len(vals[i]) != len(vals[0]) {
			return nil, fmt.Errorf(
				"Vector %d has length %d, not %d.", i, len(vals[i]), len(vals[0]),
			)
		}
	}
	return &Table{xs: xs, vals: vals}, nil
}

// EvalTo writes the interpolated vector at x into dst and returns it. ok is
// false, and dst is untouched, if x is outside the knots.
func (tab *Table) EvalTo(dst []float64, x float64) (out []float64, ok bool) {
	i, t, ok := Bracket(tab.xs, x)
	if !ok {
		return dst, false
	}
	if len(tab.xs) == 1 {
		if dst == nil {
			dst = make([]float64, len(tab.vals[0]))
		}
		copy(dst, tab.vals[0])
		return dst, true
	}
	return Lerp(dst, tab.vals[i], tab.vals[i+1], t), true
}

// Range returns the first and last knots.
func (tab *Table) Range() (lo, hi float64) {
	return tab.xs[0], tab.xs[len(tab.xs)-1]
}
