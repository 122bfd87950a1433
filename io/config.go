package io

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"gopkg.in/gcfg.v1"

	"github.com/phil-mansfield/gravmag/forward"
	"github.com/phil-mansfield/gravmag/geom"
	"github.com/phil-mansfield/gravmag/igrf"
	"github.com/phil-mansfield/gravmag/lith"
	"github.com/phil-mansfield/gravmag/prism"
	"github.com/phil-mansfield/gravmag/voxel"
)

const (
	ExampleConfigFile = `[Run]

#######################
# Required Parameters #
#######################

# Response table written after the computation. "-" writes to stdout.
Output = response.txt

#######################
# Optional Parameters #
#######################

# Mode is either development or production and selects the log format.
# Mode = production
# LogFile = log.out
# ProfileFile = prof.out
# Threads = 4

[Model]

#######################
# Required Parameters #
#######################

Nx = 40
Ny = 40
Nz = 10

# West and south edges of the grid and the elevation of its top surface, in
# metres.
X0 = 0
Y0 = 0
Top = 0

Dx = 25
Dy = 25

# Either a single uniform layer thickness, Dz, or one Layer line per layer,
# listed from the top down.
Dz = 20
# Layer = 10
# Layer = 20
# Layer = 50

# YAML table of lithology properties.
Lithologies = lithologies.yaml

#######################
# Optional Parameters #
#######################

# Overrides background_density in the lithology table, in kg/m^3.
# BackgroundDensity = 2670

# Lithology initially assigned to every cell. Empty leaves cells unassigned.
# Fill = Granite

# Each Body is a block of cells assigned one lithology. Index ranges are
# half-open, so I0 = 10, I1 = 20 covers columns 10 through 19. Bodies are
# applied in order of their names.
[Body "a-dyke"]
I0 = 18
I1 = 22
J0 = 0
J1 = 40
K0 = 1
K1 = 10
Lithology = Dolerite

# Each Profile is either a straight line sampled every Spacing metres at a
# fixed Height above the model top, or a Stations file with x, y and z columns.
[Profile "line1"]
X0 = 0
Y0 = 500
X1 = 1000
Y1 = 500
Spacing = 25
Height = 1

# [Profile "ground"]
# Stations = stations.txt

[Field]

#######################
# Required Parameters #
#######################

# Survey site, geodetic degrees and km above the ellipsoid.
Latitude = -31.9
Longitude = 115.9
Altitude = 0
Year = 2021.5

#######################
# Optional Parameters #
#######################

# Coefficient table for the reference field. Empty uses the bundled model.
# Coefficients = igrf13.txt
# MaxExtrapolationYears = 5

[Forward]

#######################
# Optional Parameters #
#######################

# Gravity = true
# Magnetics = true

# Prisms farther than PruneDistance metres from a point are skipped. Zero
# disables pruning.
# PruneDistance = 0

# Regional gravity offset in mGal.
# Regional = 0

# Distance in metres that a point coplanar with a prism face is moved. It
# must be no more than a thousandth of the smallest cell width.
# Perturbation = 0.001
# SingularTolerance = 1e-9
# ResumEvery = 64`
)

type RunConfig struct {
	// Required
	Output string

	// Optional
	Mode                 string
	LogFile, ProfileFile string
	Threads              int
}

func (con *RunConfig) ValidOutput() bool {
	return con.Output != ""
}
func (con *RunConfig) ValidMode() bool {
	return con.Mode == "development" || con.Mode == "production"
}
func (con *RunConfig) ValidLogFile() bool {
	return con.LogFile != ""
}
func (con *RunConfig) ValidProfileFile() bool {
	return con.ProfileFile != ""
}
func (con *RunConfig) ValidThreads() bool {
	return con.Threads >= 0
}

type ModelConfig struct {
	// Required
	Nx, Ny, Nz  int
	X0, Y0, Top float64
	Dx, Dy, Dz  float64
	Layer       []float64
	Lithologies string

	// Optional
	BackgroundDensity float64
	Fill              string
}

func (con *ModelConfig) ValidDims() bool {
	return con.Nx > 0 && con.Ny > 0 &&
		((len(con.Layer) == 0 && con.Nz > 0) ||
			(len(con.Layer) > 0 && (con.Nz == 0 || con.Nz == len(con.Layer))))
}
func (con *ModelConfig) ValidWidths() bool {
	if !(con.Dx > 0) || !(con.Dy > 0) {
		return false
	}
	if len(con.Layer) == 0 {
		return con.Dz > 0
	}
	for _, dz := range con.Layer {
		if !(dz > 0) {
			return false
		}
	}
	return true
}
func (con *ModelConfig) ValidLithologies() bool {
	return con.Lithologies != ""
}
func (con *ModelConfig) ValidBackgroundDensity() bool {
	return !math.IsNaN(con.BackgroundDensity)
}

// Grid returns the grid described by the configuration.
func (con *ModelConfig) Grid() (*geom.Grid, error) {
	if len(con.Layer) > 0 {
		return geom.NewGrid(
			con.Nx, con.Ny, con.X0, con.Y0, con.Top, con.Dx, con.Dy, con.Layer,
		)
	}
	return geom.NewUniformGrid(
		con.Nx, con.Ny, con.Nz, con.X0, con.Y0, con.Top, con.Dx, con.Dy, con.Dz,
	)
}

// Registry loads the lithology table, replacing its background density if
// BackgroundDensity was set.
func (con *ModelConfig) Registry() (*lith.Registry, error) {
	reg, err := lith.LoadYAML(con.Lithologies)
	if err != nil {
		return nil, err
	}
	if !con.ValidBackgroundDensity() {
		return reg, nil
	}
	return OverrideBackground(reg, con.BackgroundDensity)
}

// OverrideBackground returns a copy of reg with a different background
// density.
func OverrideBackground(reg *lith.Registry, bg float64) (*lith.Registry, error) {
	ids := reg.IDs()
	liths := make([]lith.Lithology, len(ids))
	for i, id := range ids {
		liths[i], _ = reg.Get(id)
	}
	return lith.NewRegistry(bg, liths...)
}

// FillID returns the ID of the Fill lithology.
func (con *ModelConfig) FillID(reg *lith.Registry) (lith.ID, error) {
	return lithologyID(reg, con.Fill)
}

func lithologyID(reg *lith.Registry, name string) (lith.ID, error) {
	name = strings.TrimSpace(name)
	if name == "" || strings.EqualFold(name, "none") {
		return lith.None, nil
	}
	l, err := reg.ByName(name)
	if err != nil {
		return lith.None, err
	}
	return l.ID, nil
}

type BodyConfig struct {
	// Required
	I0, I1, J0, J1, K0, K1 int
	Lithology              string

	// Optional, "undocumented"
	Name string
}

func (body *BodyConfig) CheckInit(name string, g *geom.Grid) error {
	body.Name = name
	switch {
	case body.I1 <= body.I0 || body.J1 <= body.J0 || body.K1 <= body.K0:
		return fmt.Errorf(
			"Body '%s' has an empty index range [%d, %d) x [%d, %d) x [%d, %d).",
			name, body.I0, body.I1, body.J0, body.J1, body.K0, body.K1,
		)
	case !g.BoundsCheck(body.I0, body.J0, body.K0) ||
		!g.BoundsCheck(body.I1-1, body.J1-1, body.K1-1):
		return fmt.Errorf(
			"Body '%s' must lie inside the %d x %d x %d grid.",
			name, g.Nx, g.Ny, g.Nz,
		)
	}
	return nil
}

type ProfileConfig struct {
	// Either
	X0, Y0, X1, Y1 float64
	Spacing        float64
	Height         float64
	// Or
	Stations string

	// Optional, "undocumented"
	Name string
}

func (prof *ProfileConfig) CheckInit(name string) error {
	prof.Name = name
	if prof.Stations != "" {
		return nil
	}

	if !(prof.Spacing > 0) {
		return fmt.Errorf(
			"Need to specify a positive Spacing or a Stations file for "+
				"Profile '%s'.", name,
		)
	} else if prof.X0 == prof.X1 && prof.Y0 == prof.Y1 {
		return fmt.Errorf("Profile '%s' has zero length.", name)
	}
	return nil
}

// Points returns the observation points of the profile. Generated lines
// are sampled from (X0, Y0) towards (X1, Y1) every Spacing metres, always
// including both ends, at Height metres above top.
func (prof *ProfileConfig) Points(top float64) ([]forward.Point, error) {
	if prof.Stations != "" {
		return ReadStations(prof.Stations, prof.Name)
	}

	dx, dy := prof.X1-prof.X0, prof.Y1-prof.Y0
	length := math.Hypot(dx, dy)
	n := int(math.Ceil(length/prof.Spacing - 1e-9))

	pts := make([]forward.Point, n+1)
	for i := range pts {
		t := math.Min(float64(i)*prof.Spacing/length, 1)
		pts[i] = forward.Point{
			X:    prof.X0 + t*dx,
			Y:    prof.Y0 + t*dy,
			Z:    top + prof.Height,
			Line: prof.Name,
		}
	}
	return pts, nil
}

type FieldConfig struct {
	// Required
	Latitude, Longitude, Altitude, Year float64

	// Optional
	Coefficients          string
	MaxExtrapolationYears float64
}

func (con *FieldConfig) ValidLatitude() bool {
	return con.Latitude >= -90 && con.Latitude <= 90
}
func (con *FieldConfig) ValidLongitude() bool {
	return con.Longitude >= -360 && con.Longitude <= 360
}
func (con *FieldConfig) ValidYear() bool {
	return con.Year > 0
}
func (con *FieldConfig) ValidCoefficients() bool {
	return con.Coefficients != ""
}
func (con *FieldConfig) ValidMaxExtrapolationYears() bool {
	return con.MaxExtrapolationYears >= 0
}

// Model loads the reference field model.
func (con *FieldConfig) Model() (*igrf.Model, error) {
	var (
		m   *igrf.Model
		err error
	)
	if con.ValidCoefficients() {
		m, err = igrf.LoadFile(con.Coefficients)
	} else {
		m, err = igrf.Bundled()
	}
	if err != nil {
		return nil, err
	}
	opt := m.Options()
	opt.MaxExtrapolationYears = con.MaxExtrapolationYears
	return m.WithOptions(opt), nil
}

// Site returns the survey site.
func (con *FieldConfig) Site() forward.Site {
	return forward.Site{
		Latitude:  con.Latitude,
		Longitude: con.Longitude,
		Altitude:  con.Altitude,
		Year:      con.Year,
	}
}

// MaxPerturbationFraction is the largest allowed ratio of Perturbation to
// the smallest cell width.
const MaxPerturbationFraction = 1e-3

type ForwardConfig struct {
	// Optional
	Gravity, Magnetics bool
	PruneDistance      float64
	Regional           float64
	Perturbation       float64
	SingularTolerance  float64
	ResumEvery         int
}

func (con *ForwardConfig) ValidPruneDistance() bool {
	return con.PruneDistance >= 0
}
func (con *ForwardConfig) ValidPerturbation() bool {
	return con.Perturbation > 0 && con.Perturbation > con.SingularTolerance
}

// ValidPerturbationScale requires Perturbation to be small next to every
// cell of g.
func (con *ForwardConfig) ValidPerturbationScale(g *geom.Grid) bool {
	return con.Perturbation <= MaxPerturbationFraction*g.MinWidth()
}
func (con *ForwardConfig) ValidSingularTolerance() bool {
	return con.SingularTolerance >= 0
}
func (con *ForwardConfig) ValidResumEvery() bool {
	return con.ResumEvery >= 0
}

// Options returns the assembler options for the configuration. The caller
// sets Field, Site and Logger.
func (con *ForwardConfig) Options() forward.Options {
	opt := forward.DefaultOptions()
	opt.Gravity, opt.Magnetics = con.Gravity, con.Magnetics
	opt.PruneDistance = con.PruneDistance
	opt.Regional = con.Regional
	opt.ResumEvery = con.ResumEvery
	opt.Solver = prism.Options{
		Tolerance:    con.SingularTolerance,
		Perturbation: con.Perturbation,
	}
	return opt
}

type GravmagWrapper struct {
	Run     RunConfig
	Model   ModelConfig
	Body    map[string]*BodyConfig
	Profile map[string]*ProfileConfig
	Field   FieldConfig
	Forward ForwardConfig
}

func DefaultGravmagWrapper() *GravmagWrapper {
	wrap := &GravmagWrapper{}
	wrap.Run.Mode = "production"
	wrap.Model.BackgroundDensity = math.NaN()
	wrap.Field.MaxExtrapolationYears = igrf.DefaultMaxExtrapolationYears

	fopt := forward.DefaultOptions()
	sopt := prism.DefaultOptions()
	wrap.Forward.Gravity, wrap.Forward.Magnetics = fopt.Gravity, fopt.Magnetics
	wrap.Forward.ResumEvery = fopt.ResumEvery
	wrap.Forward.Perturbation = sopt.Perturbation
	wrap.Forward.SingularTolerance = sopt.Tolerance
	return wrap
}

// ReadConfig reads a configuration file on top of the defaults.
func ReadConfig(fname string) (*GravmagWrapper, error) {
	wrap := DefaultGravmagWrapper()
	if err := gcfg.ReadFileInto(wrap, fname); err != nil {
		return nil, err
	}
	return wrap, nil
}

// ReadConfigString reads a configuration from a string on top of the
// defaults.
func ReadConfigString(s string) (*GravmagWrapper, error) {
	wrap := DefaultGravmagWrapper()
	if err := gcfg.ReadStringInto(wrap, s); err != nil {
		return nil, err
	}
	return wrap, nil
}

// Validate checks every section of the configuration and returns a
// description of the first problem found.
func (wrap *GravmagWrapper) Validate() error {
	run, mod, fld, fwd := &wrap.Run, &wrap.Model, &wrap.Field, &wrap.Forward

	switch {
	case !run.ValidOutput():
		return fmt.Errorf("Need to specify an Output file in [Run].")
	case !run.ValidMode():
		return fmt.Errorf(
			"Mode must be one of [development | production], not '%s'.",
			run.Mode,
		)
	case !run.ValidThreads():
		return fmt.Errorf("Threads = %d is negative.", run.Threads)
	case !mod.ValidDims():
		return fmt.Errorf(
			"Need positive Nx, Ny and either Nz or one Layer per layer, got "+
				"Nx = %d, Ny = %d, Nz = %d with %d Layer values.",
			mod.Nx, mod.Ny, mod.Nz, len(mod.Layer),
		)
	case !mod.ValidWidths():
		return fmt.Errorf("Need positive Dx, Dy and layer thicknesses.")
	case !mod.ValidLithologies():
		return fmt.Errorf("Need to specify a Lithologies table in [Model].")
	case !fwd.Gravity && !fwd.Magnetics:
		return fmt.Errorf("At least one of Gravity and Magnetics must be set.")
	case !fwd.ValidPruneDistance():
		return fmt.Errorf("PruneDistance = %g is negative.", fwd.PruneDistance)
	case !fwd.ValidSingularTolerance():
		return fmt.Errorf(
			"SingularTolerance = %g is negative.", fwd.SingularTolerance,
		)
	case !fwd.ValidPerturbation():
		return fmt.Errorf(
			"Perturbation = %g must be positive and larger than "+
				"SingularTolerance.", fwd.Perturbation,
		)
	case !fwd.ValidResumEvery():
		return fmt.Errorf("ResumEvery = %d is negative.", fwd.ResumEvery)
	case len(wrap.Profile) == 0:
		return fmt.Errorf("Need to specify at least one Profile.")
	}

	if fwd.Magnetics {
		switch {
		case !fld.ValidLatitude():
			return fmt.Errorf(
				"Latitude = %g must be in range [-90, 90].", fld.Latitude,
			)
		case !fld.ValidLongitude():
			return fmt.Errorf(
				"Longitude = %g must be in range [-360, 360].", fld.Longitude,
			)
		case !fld.ValidYear():
			return fmt.Errorf("Need to specify a survey Year in [Field].")
		case !fld.ValidMaxExtrapolationYears():
			return fmt.Errorf(
				"MaxExtrapolationYears = %g is negative.",
				fld.MaxExtrapolationYears,
			)
		}
	}

	g, err := mod.Grid()
	if err != nil {
		return err
	}
	if !fwd.ValidPerturbationScale(g) {
		return fmt.Errorf(
			"Perturbation = %g must be much smaller than the smallest cell "+
				"width, %g.", fwd.Perturbation, g.MinWidth(),
		)
	}
	for _, name := range wrap.BodyNames() {
		if err := wrap.Body[name].CheckInit(name, g); err != nil {
			return err
		}
	}
	for _, name := range wrap.ProfileNames() {
		if err := wrap.Profile[name].CheckInit(name); err != nil {
			return err
		}
	}
	return nil
}

// ForwardOptions returns the assembler options with the reference field
// loaded. If magnetics are requested but the field cannot be loaded,
// magnetics are switched off in the returned options and the load error is
// returned with them. The caller sets Logger and Workers.
func (wrap *GravmagWrapper) ForwardOptions() (forward.Options, error) {
	opt := wrap.Forward.Options()
	if !opt.Magnetics {
		return opt, nil
	}

	field, err := wrap.Field.Model()
	if err != nil {
		opt.Magnetics = false
		return opt, err
	}
	opt.Field = field
	opt.Site = wrap.Field.Site()
	return opt, nil
}

// BodyNames returns the names of the Body sections in the order they are
// applied.
func (wrap *GravmagWrapper) BodyNames() []string {
	return sortedKeys(wrap.Body)
}

// ProfileNames returns the names of the Profile sections in output order.
func (wrap *GravmagWrapper) ProfileNames() []string {
	return sortedKeys(wrap.Profile)
}

func sortedKeys[T any](m map[string]T) []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ApplyBodies draws every Body into m, in name order.
func (wrap *GravmagWrapper) ApplyBodies(m *voxel.Model) error {
	for _, name := range wrap.BodyNames() {
		body := wrap.Body[name]
		id, err := lithologyID(m.Registry(), body.Lithology)
		if err != nil {
			return fmt.Errorf("Body '%s': %w", name, err)
		}
		_, err = m.SetRegion(
			body.I0, body.I1, body.J0, body.J1, body.K0, body.K1, id,
		)
		if err != nil {
			return fmt.Errorf("Body '%s': %w", name, err)
		}
	}
	return nil
}

// Points returns the observation points of every Profile, in name order.
func (wrap *GravmagWrapper) Points() ([]forward.Point, error) {
	pts := []forward.Point{}
	for _, name := range wrap.ProfileNames() {
		prof := wrap.Profile[name]
		prof.Name = name
		p, err := prof.Points(wrap.Model.Top)
		if err != nil {
			return nil, fmt.Errorf("Profile '%s': %w", name, err)
		}
		pts = append(pts, p...)
	}
	return pts, nil
}
