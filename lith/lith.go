/*package lith holds the physical properties of the rock classes assigned to
voxels.

Densities are in kg/m^3, susceptibilities are dimensionless SI values and
remanent magnetizations are in A/m. Declinations and inclinations are in
degrees, with inclination positive downwards.
*/
package lith

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"gonum.org/v1/gonum/spatial/r3"
)

// ID identifies a lithology. The zero ID means "no lithology" and marks
// voxels which contribute nothing to a forward model.
type ID uint16

// None is the ID of unassigned voxels.
const None ID = 0

// Remanence is a permanent magnetization vector.
type Remanence struct {
	Magnitude   float64 `yaml:"magnitude"`
	Declination float64 `yaml:"declination"`
	Inclination float64 `yaml:"inclination"`
}

// Vec returns the remanence in model coordinates (x east, y north, z up)
// scaled to the given magnitude.
func (rem Remanence) Vec(magnitude float64) r3.Vec {
	return Direction(rem.Declination, rem.Inclination, magnitude)
}

// Direction converts a magnitude, a declination and an inclination into a
// vector with x east, y north and z up.
func Direction(dec, inc, magnitude float64) r3.Vec {
	d, i := dec*math.Pi/180, inc*math.Pi/180
	return r3.Vec{
		X: magnitude * math.Cos(i) * math.Sin(d),
		Y: magnitude * math.Cos(i) * math.Cos(d),
		Z: -magnitude * math.Sin(i),
	}
}

// Lithology is a rock class.
type Lithology struct {
	ID             ID        `yaml:"id"`
	Name           string    `yaml:"name"`
	Density        float64   `yaml:"density"`
	Susceptibility float64   `yaml:"susceptibility"`
	Remanence      Remanence `yaml:"remanence"`
	// QRatio is the Koenigsberger ratio. If it is positive and the
	// remanence magnitude is zero, the remanent magnitude is QRatio times
	// the induced magnetization at the observation's ambient field.
	QRatio float64 `yaml:"q_ratio"`

	Code  string `yaml:"code"`
	Notes string `yaml:"notes"`
}

func (l *Lithology) check() error {
	switch {
	case l.ID == None:
		return fmt.Errorf("Lithology '%s' uses the reserved ID 0.", l.Name)
	case strings.TrimSpace(l.Name) == "":
		return fmt.Errorf("Lithology %d has no name.", l.ID)
	case l.Density < 0 || math.IsNaN(l.Density):
		return fmt.Errorf(
			"Lithology '%s' has invalid density %g.", l.Name, l.Density,
		)
	case l.Susceptibility < 0 || math.IsNaN(l.Susceptibility):
		return fmt.Errorf(
			"Lithology '%s' has invalid susceptibility %g.",
			l.Name, l.Susceptibility,
		)
	case l.Remanence.Magnitude < 0 || l.QRatio < 0:
		return fmt.Errorf(
			"Lithology '%s' has a negative remanence or Q ratio.", l.Name,
		)
	}
	return nil
}

// ReferenceError is returned when an unknown lithology ID is used.
type ReferenceError struct {
	ID   ID
	Name string
}

func (e *ReferenceError) Error() string {
	if e.Name != "" {
		return fmt.Sprintf("Unknown lithology '%s'.", e.Name)
	}
	return fmt.Sprintf("Unknown lithology ID %d.", e.ID)
}

// Registry is an immutable table of lithologies. It is safe for concurrent
// use.
type Registry struct {
	background float64
	liths      map[ID]Lithology
	names      map[string]ID
	ids        []ID
}

// NewRegistry creates a registry from a background density and a set of
// lithologies. IDs and names must be unique.
func NewRegistry(background float64, liths ...Lithology) (*Registry, error) {
	if background < 0 || math.IsNaN(background) {
		return nil, fmt.Errorf("Invalid background density %g.", background)
	}

	reg := &Registry{
		background: background,
		liths:      make(map[ID]Lithology, len(liths)),
		names:      make(map[string]ID, len(liths)),
	}
	for i := range liths {
		l := liths[i]
		if err := l.check(); err != nil {
			return nil, err
		}
		if _, ok := reg.liths[l.ID]; ok {
			return nil, fmt.Errorf("Lithology ID %d is used twice.", l.ID)
		}
		if _, ok := reg.names[l.Name]; ok {
			return nil, fmt.Errorf("Lithology name '%s' is used twice.", l.Name)
		}
		reg.liths[l.ID] = l
		reg.names[l.Name] = l.ID
		reg.ids = append(reg.ids, l.ID)
	}
	sort.Slice(reg.ids, func(i, j int) bool { return reg.ids[i] < reg.ids[j] })

	return reg, nil
}

// Background returns the density the model's contrasts are relative to.
func (reg *Registry) Background() float64 { return reg.background }

// Len returns the number of lithologies.
func (reg *Registry) Len() int { return len(reg.ids) }

// IDs returns the registered IDs in increasing order.
func (reg *Registry) IDs() []ID {
	out := make([]ID, len(reg.ids))
	copy(out, reg.ids)
	return out
}

// Get returns the lithology with the given ID.
func (reg *Registry) Get(id ID) (Lithology, error) {
	l, ok := reg.liths[id]
	if !ok {
		return Lithology{}, &ReferenceError{ID: id}
	}
	return l, nil
}

// Check returns a ReferenceError unless id is None or registered.
func (reg *Registry) Check(id ID) error {
	if id == None {
		return nil
	}
	if _, ok := reg.liths[id]; !ok {
		return &ReferenceError{ID: id}
	}
	return nil
}

// ByName returns the lithology with the given name.
func (reg *Registry) ByName(name string) (Lithology, error) {
	id, ok := reg.names[name]
	if !ok {
		return Lithology{}, &ReferenceError{Name: name}
	}
	return reg.liths[id], nil
}
