/*package forward assembles the gravity and magnetic response of a voxel
model at a set of observation points.

An Assembler owns one set of observation points and a cache holding the
contribution of every assigned prism to every point. The first computation
for a model fills the cache; later computations diff the new snapshot
against the cached one and only re-evaluate prisms whose lithology changed,
subtracting their old contribution from each point's sum and adding the new
one.

Computations run as cancellable Tasks. Starting a task for a newer snapshot
cancels the one in flight, and a task which is cancelled or superseded never
touches the cache: all solver work happens on private staging data, and the
cache is swapped in a short critical section only if the task is still
live.
*/
package forward

import (
	"fmt"
	"math"
	"runtime"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/phil-mansfield/gravmag/igrf"
	"github.com/phil-mansfield/gravmag/lith"
	"github.com/phil-mansfield/gravmag/prism"
)

// mu0 is the vacuum permeability in T m / A.
const mu0 = 4 * math.Pi * 1e-7

// FieldSource supplies the ambient geomagnetic field. *igrf.Model
// satisfies it.
type FieldSource interface {
	Evaluate(lat, lon, alt, year float64) (igrf.Field, error)
}

// Site is the geographic location of a survey. The model's local
// coordinates are small enough that the ambient field is taken to be
// uniform over them.
type Site struct {
	// Latitude and Longitude are geodetic, in degrees.
	Latitude, Longitude float64
	// Altitude is the height above the WGS84 ellipsoid in km.
	Altitude float64
	// Year is the default observation date as a decimal year.
	Year float64
}

// Point is an observation point in model coordinates (metres, x east, y
// north, z up).
type Point struct {
	X, Y, Z float64
	// Line groups points into profiles. Order within a line is the order of
	// the points passed to New.
	Line string
	// Year is the observation date. Zero means Site.Year.
	Year float64
}

// Vec returns the position of the point.
func (p Point) Vec() r3.Vec { return r3.Vec{X: p.X, Y: p.Y, Z: p.Z} }

// Options configures an Assembler.
type Options struct {
	// Gravity and Magnetics select which responses are computed.
	Gravity, Magnetics bool
	// Field supplies the ambient field. Magnetics are disabled if it is
	// nil.
	Field FieldSource
	Site  Site
	// PruneDistance is the distance beyond which a prism's contribution to
	// a point is skipped. Zero disables pruning.
	PruneDistance float64
	// Workers bounds the number of goroutines evaluating the solver. Zero
	// means runtime.NumCPU().
	Workers int
	// ResumEvery is the number of incremental updates after which every
	// point's sum is rebuilt from the cached rows, which stops rounding
	// error accumulating across long editing sessions. Zero or negative
	// disables the rebuild.
	ResumEvery int
	// Regional is a constant gravity offset in mGal.
	Regional float64
	Solver   prism.Options
	// Logger receives task events. Nil means no logging.
	Logger *zap.Logger
}

// DefaultOptions returns Options computing both responses with exact
// summation.
func DefaultOptions() Options {
	return Options{
		Gravity:    true,
		Magnetics:  true,
		ResumEvery: 64,
		Solver:     prism.DefaultOptions(),
	}
}

// ambient is the resolved reference field at one point.
type ambient struct {
	field igrf.Field
	// dir is the unit vector along the field in model coordinates.
	dir r3.Vec
	// h is the field strength in A/m in model coordinates.
	h   r3.Vec
	err error
}

// State is the lifecycle state of an Assembler.
type State int

const (
	Idle State = iota
	Computing
	Ready
)

func (s State) String() string {
	switch s {
	case Idle:
		return "Idle"
	case Computing:
		return "Computing"
	case Ready:
		return "Ready"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Assembler computes forward responses for a fixed set of observation
// points. It is safe for concurrent use.
type Assembler struct {
	reg      *lith.Registry
	props    []lith.Props
	points   []Point
	pos      []r3.Vec
	ambient  []ambient
	magnetic bool
	opt      Options
	log      *zap.Logger

	mu    sync.Mutex
	cache *cache
	state State
	// newest is the latest version requested of the model newestModel.
	newest      uint64
	newestModel uuid.UUID
	task        *Task

	// applyHook, if set, runs before a task's results are applied. Tests
	// use it to hold a task at that point.
	applyHook func()
}

// New creates an Assembler for the given points. The lithology properties
// are resolved once here, and the ambient field is evaluated once for each
// distinct observation date. A date outside the field model's span only
// disables magnetics at the affected points.
func New(reg *lith.Registry, points []Point, opt Options) (*Assembler, error) {
	if len(points) == 0 {
		return nil, fmt.Errorf("No observation points given.")
	} else if opt.PruneDistance < 0 {
		return nil, fmt.Errorf("PruneDistance = %g is negative.", opt.PruneDistance)
	}
	if opt.Workers <= 0 {
		opt.Workers = runtime.NumCPU()
	}
	if opt.Logger == nil {
		opt.Logger = zap.NewNop()
	}

	a := &Assembler{
		reg:    reg,
		props:  reg.Resolve(),
		points: append([]Point{}, points...),
		pos:    make([]r3.Vec, len(points)),
		opt:    opt,
		log:    opt.Logger,
	}
	for i, p := range a.points {
		a.pos[i] = p.Vec()
	}

	a.magnetic = opt.Magnetics && opt.Field != nil
	if a.magnetic {
		a.resolveAmbient()
	}
	return a, nil
}

// resolveAmbient evaluates the reference field once per distinct date.
func (a *Assembler) resolveAmbient() {
	site := a.opt.Site
	byYear := map[float64]ambient{}
	a.ambient = make([]ambient, len(a.points))

	for i, p := range a.points {
		year := p.Year
		if year == 0 {
			year = site.Year
		}

		amb, ok := byYear[year]
		if !ok {
			f, err := a.opt.Field.Evaluate(site.Latitude, site.Longitude, site.Altitude, year)
			amb = newAmbient(f, err)
			byYear[year] = amb
			if err != nil {
				a.log.Warn("magnetics disabled for observation date",
					zap.Float64("year", year), zap.Error(err))
			}
		}
		a.ambient[i] = amb
	}
}

func newAmbient(f igrf.Field, err error) ambient {
	if err != nil {
		return ambient{err: err}
	}
	dec, inc := f.D*math.Pi/180, f.I*math.Pi/180
	dir := r3.Vec{
		X: math.Cos(inc) * math.Sin(dec),
		Y: math.Cos(inc) * math.Cos(dec),
		Z: -math.Sin(inc),
	}
	return ambient{field: f, dir: dir, h: r3.Scale(f.F*1e-9/mu0, dir)}
}

// Points returns the observation points. The slice must not be modified.
func (a *Assembler) Points() []Point { return a.points }

// Registry returns the lithologies the Assembler resolved.
func (a *Assembler) Registry() *lith.Registry { return a.reg }

// Ambient returns the reference field at point i, or the error which
// disabled magnetics there.
func (a *Assembler) Ambient(i int) (igrf.Field, error) {
	if !a.magnetic {
		return igrf.Field{}, fmt.Errorf("Magnetics are disabled.")
	}
	return a.ambient[i].field, a.ambient[i].err
}

// State returns the current lifecycle state.
func (a *Assembler) State() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// Version returns the model version backing the cached contributions, or
// zero if nothing is cached.
func (a *Assembler) Version() uint64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.cache == nil {
		return 0
	}
	return a.cache.snap.Version()
}

// propsOf returns the properties of a lithology, or nil if it contributes
// nothing.
func (a *Assembler) propsOf(id lith.ID) *lith.Props {
	if int(id) >= len(a.props) {
		return nil
	}
	p := &a.props[id]
	if !p.Valid {
		return nil
	}
	if !(a.opt.Gravity && p.Contrast != 0) && !(a.magnetic && p.Magnetic()) {
		return nil
	}
	return p
}
