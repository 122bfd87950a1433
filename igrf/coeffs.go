/*package igrf evaluates spherical-harmonic models of the main geomagnetic
field, such as the International Geomagnetic Reference Field.

A Model holds Gauss coefficients tabulated at a series of epochs, optionally
with secular-variation rates for extrapolating past the last epoch. Models
are read from text tables by Load, or the bundled IGRF-13 model is
returned by Bundled.

Coefficient tables are whitespace-separated text. Lines beginning with '#'
are ignored. The first line gives the minimum degree (which must be 1), the
maximum degree and the number of epochs, K. The second line lists the K
epochs as decimal years in increasing order. Every following line has the
form

    n m c_1 ... c_K [sv]

where c_i is the coefficient at epoch i, and sv is an optional
secular-variation rate in nT/yr. Non-negative m gives g_n^m and negative m
gives h_n^|m|. Either every line carries an sv column or none do, and every
coefficient of every degree must be present exactly once.
*/
package igrf

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/phil-mansfield/gravmag/math/interpolate"
)

const (
	// MaxDegree is the largest spherical-harmonic degree a model may have.
	MaxDegree = 13
	// DefaultMaxExtrapolationYears is the default length of the window after
	// the last epoch within which secular variation is applied.
	DefaultMaxExtrapolationYears = 5.0
)

// Options controls the time range over which a model may be evaluated.
type Options struct {
	// MaxExtrapolationYears is the number of years past the last epoch for
	// which the secular-variation terms are used. Dates later than this fail
	// with a RangeError.
	MaxExtrapolationYears float64
}

// DefaultOptions returns the Options used by Load.
func DefaultOptions() Options {
	return Options{MaxExtrapolationYears: DefaultMaxExtrapolationYears}
}

// Model is a tabulated geomagnetic field model. It is immutable and safe for
// concurrent use.
type Model struct {
	nmax   int
	epochs []float64
	// g[e][idx(n, m)] and h[e][idx(n, m)] are the coefficients at epoch e.
	g, h   [][]float64
	sg, sh []float64
	hasSV  bool
	opt    Options

	// tg and th interpolate g and h between epochs.
	tg, th *interpolate.Table
}

// Coeffs is a set of Gauss coefficients at a single date.
type Coeffs struct {
	Year float64
	Nmax int
	G, H []float64
}

// At returns g_n^m and h_n^m.
func (c *Coeffs) At(n, m int) (g, h float64) {
	i := idx(n, m)
	return c.G[i], c.H[i]
}

// idx is the packed index of degree n and order m.
func idx(n, m int) int { return n*(n+1)/2 + m }

// FormatError is returned when a coefficient table cannot be parsed.
type FormatError struct {
	Line int
	Msg  string
}

func (e *FormatError) Error() string {
	if e.Line <= 0 {
		return fmt.Sprintf("igrf: %s", e.Msg)
	}
	return fmt.Sprintf("igrf: line %d: %s", e.Line, e.Msg)
}

func formatErr(line int, format string, args ...interface{}) *FormatError {
	return &FormatError{Line: line, Msg: fmt.Sprintf(format, args...)}
}

// LoadFile reads a coefficient table from a file.
func LoadFile(fname string) (*Model, error) {
	f, err := os.Open(fname)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	m, err := Load(f)
	if err != nil {
		return nil, fmt.Errorf("Could not load coefficient file %s: %w", fname, err)
	}
	return m, nil
}

// Load reads a coefficient table. Any error in the table is reported as a
// *FormatError.
func Load(r io.Reader) (*Model, error) {
	lines, err := readLines(r)
	if err != nil {
		return nil, err
	}
	if len(lines) < 2 {
		return nil, formatErr(0, "table needs a header and an epoch line")
	}

	m := &Model{opt: DefaultOptions()}
	nEpochs, err := m.parseHeader(lines[0])
	if err != nil {
		return nil, err
	}
	if err = m.parseEpochs(lines[1], nEpochs); err != nil {
		return nil, err
	}

	size := idx(m.nmax+1, 0)
	m.g, m.h = make([][]float64, nEpochs), make([][]float64, nEpochs)
	for e := range m.g {
		m.g[e], m.h[e] = make([]float64, size), make([]float64, size)
	}
	m.sg, m.sh = make([]float64, size), make([]float64, size)

	seenG, seenH := make([]bool, size), make([]bool, size)
	for n, l := range lines[2:] {
		if err = m.parseRow(l, n == 0, seenG, seenH); err != nil {
			return nil, err
		}
	}

	for n := 1; n <= m.nmax; n++ {
		for k := 0; k <= n; k++ {
			if !seenG[idx(n, k)] {
				return nil, formatErr(0, "missing coefficient g(%d, %d)", n, k)
			} else if k > 0 && !seenH[idx(n, k)] {
				return nil, formatErr(0, "missing coefficient h(%d, %d)", n, k)
			}
		}
	}

	if m.tg, err = interpolate.NewTable(m.epochs, m.g); err != nil {
		return nil, formatErr(0, "%s", err.Error())
	}
	if m.th, err = interpolate.NewTable(m.epochs, m.h); err != nil {
		return nil, formatErr(0, "%s", err.Error())
	}

	return m, nil
}

type line struct {
	num    int
	fields []string
}

func readLines(r io.Reader) ([]line, error) {
	lines := []line{}
	sc := bufio.NewScanner(r)
	for num := 1; sc.Scan(); num++ {
		text := strings.TrimSpace(sc.Text())
		if text == "" || text[0] == '#' {
			continue
		}
		lines = append(lines, line{num, strings.Fields(text)})
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return lines, nil
}

func (m *Model) parseHeader(l line) (int, error) {
	if len(l.fields) < 3 {
		return 0, formatErr(l.num, "header needs nmin, nmax and the epoch count")
	}
	vals := make([]int, 3)
	for i := range vals {
		v, err := strconv.Atoi(l.fields[i])
		if err != nil {
			return 0, formatErr(l.num, "header field '%s' is not an integer", l.fields[i])
		}
		vals[i] = v
	}

	nmin, nmax, nEpochs := vals[0], vals[1], vals[2]
	switch {
	case nmin != 1:
		return 0, formatErr(l.num, "minimum degree is %d, not 1", nmin)
	case nmax < 1 || nmax > MaxDegree:
		return 0, formatErr(l.num, "maximum degree %d is outside [1, %d]", nmax, MaxDegree)
	case nEpochs < 1:
		return 0, formatErr(l.num, "table has %d epochs", nEpochs)
	}
	m.nmax = nmax
	return nEpochs, nil
}

func (m *Model) parseEpochs(l line, nEpochs int) error {
	if len(l.fields) != nEpochs {
		return formatErr(l.num, "expected %d epochs, found %d", nEpochs, len(l.fields))
	}
	m.epochs = make([]float64, nEpochs)
	for i, f := range l.fields {
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return formatErr(l.num, "epoch '%s' is not a number", f)
		}
		if i > 0 && v <= m.epochs[i-1] {
			return formatErr(l.num, "epochs are not strictly increasing")
		}
		m.epochs[i] = v
	}
	return nil
}

func (m *Model) parseRow(l line, first bool, seenG, seenH []bool) error {
	nEpochs := len(m.epochs)
	switch len(l.fields) - 2 {
	case nEpochs:
		if first {
			m.hasSV = false
		} else if m.hasSV {
			return formatErr(l.num, "row is missing its secular-variation column")
		}
	case nEpochs + 1:
		if first {
			m.hasSV = true
		} else if !m.hasSV {
			return formatErr(l.num, "row has an unexpected secular-variation column")
		}
	default:
		return formatErr(l.num, "expected %d or %d fields, found %d",
			nEpochs+2, nEpochs+3, len(l.fields))
	}

	n, err := strconv.Atoi(l.fields[0])
	if err != nil {
		return formatErr(l.num, "degree '%s' is not an integer", l.fields[0])
	}
	k, err := strconv.Atoi(l.fields[1])
	if err != nil {
		return formatErr(l.num, "order '%s' is not an integer", l.fields[1])
	}
	if n < 1 || n > m.nmax || k > n || k < -n || (k == 0 && l.fields[1][0] == '-') {
		return formatErr(l.num, "(n, m) = (%d, %s) is outside the model", n, l.fields[1])
	}

	vals := make([]float64, len(l.fields)-2)
	for i, f := range l.fields[2:] {
		if vals[i], err = strconv.ParseFloat(f, 64); err != nil {
			return formatErr(l.num, "coefficient '%s' is not a number", f)
		}
	}

	i, coeffs, sv, seen := idx(n, k), m.g, m.sg, seenG
	if k < 0 {
		i, coeffs, sv, seen = idx(n, -k), m.h, m.sh, seenH
	}
	if seen[i] {
		return formatErr(l.num, "coefficient (%d, %d) is repeated", n, k)
	}
	seen[i] = true

	for e := range coeffs {
		coeffs[e][i] = vals[e]
	}
	if m.hasSV {
		sv[i] = vals[nEpochs]
	}
	return nil
}

// WithOptions returns a copy of the model which uses opt. The coefficient
// storage is shared.
func (m *Model) WithOptions(opt Options) *Model {
	out := *m
	out.opt = opt
	return &out
}

// Options returns the model's options.
func (m *Model) Options() Options { return m.opt }

// Nmax returns the maximum degree of the model.
func (m *Model) Nmax() int { return m.nmax }

// Epochs returns the tabulated epochs. It must not be modified.
func (m *Model) Epochs() []float64 { return m.epochs }

// Span returns the range of dates at which the model can be evaluated.
func (m *Model) Span() (lo, hi float64) {
	lo, hi = m.epochs[0], m.epochs[len(m.epochs)-1]
	if m.hasSV && m.opt.MaxExtrapolationYears > 0 {
		hi += m.opt.MaxExtrapolationYears
	}
	return lo, hi
}

// RangeError is returned when a model is evaluated at a date outside its
// span.
type RangeError struct {
	Year, Min, Max float64
}

func (e *RangeError) Error() string {
	return fmt.Sprintf(
		"igrf: date %.3f is outside the model's span [%.3f, %.3f]",
		e.Year, e.Min, e.Max,
	)
}

// Coefficients returns the coefficients at a decimal year. Dates between
// two epochs are interpolated linearly, and dates within the extrapolation
// window past the last epoch use the secular-variation rates.
func (m *Model) Coefficients(year float64) (*Coeffs, error) {
	lo, hi := m.Span()
	if !(year >= lo && year <= hi) {
		return nil, &RangeError{Year: year, Min: lo, Max: hi}
	}

	size := idx(m.nmax+1, 0)
	c := &Coeffs{
		Year: year, Nmax: m.nmax,
		G: make([]float64, size), H: make([]float64, size),
	}

	last := len(m.epochs) - 1
	if year > m.epochs[last] {
		dt := year - m.epochs[last]
		interpolate.Extend(c.G, m.g[last], m.sg, dt)
		interpolate.Extend(c.H, m.h[last], m.sh, dt)
		return c, nil
	}

	m.tg.EvalTo(c.G, year)
	m.th.EvalTo(c.H, year)
	return c, nil
}
