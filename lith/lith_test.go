package lith

import (
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"
)

func TestRegistryLookup(t *testing.T) {
	reg, err := NewRegistry(2670,
		Lithology{ID: 3, Name: "Dyke", Density: 2900, Susceptibility: 0.02},
		Lithology{ID: 1, Name: "Host", Density: 2670},
	)
	require.NoError(t, err)

	assert.Equal(t, 2, reg.Len())
	assert.Equal(t, []ID{1, 3}, reg.IDs())

	l, err := reg.Get(3)
	require.NoError(t, err)
	assert.Equal(t, "Dyke", l.Name)

	l, err = reg.ByName("Host")
	require.NoError(t, err)
	assert.Equal(t, ID(1), l.ID)

	_, err = reg.Get(2)
	var refErr *ReferenceError
	require.True(t, errors.As(err, &refErr))
	assert.Equal(t, ID(2), refErr.ID)

	_, err = reg.ByName("Shale")
	require.True(t, errors.As(err, &refErr))
	assert.Equal(t, "Shale", refErr.Name)

	assert.NoError(t, reg.Check(None))
	assert.NoError(t, reg.Check(1))
	assert.Error(t, reg.Check(7))
}

func TestRegistryRejects(t *testing.T) {
	table := []struct {
		name  string
		liths []Lithology
	}{
		{"reserved id", []Lithology{{ID: 0, Name: "Air"}}},
		{"blank name", []Lithology{{ID: 1, Name: " "}}},
		{"negative susceptibility",
			[]Lithology{{ID: 1, Name: "A", Susceptibility: -1}}},
		{"duplicate id",
			[]Lithology{{ID: 1, Name: "A"}, {ID: 1, Name: "B"}}},
		{"duplicate name",
			[]Lithology{{ID: 1, Name: "A"}, {ID: 2, Name: "A"}}},
	}

	for _, test := range table {
		_, err := NewRegistry(2670, test.liths...)
		assert.Error(t, err, test.name)
	}

	_, err := NewRegistry(math.NaN())
	assert.Error(t, err)
}

func TestResolve(t *testing.T) {
	reg, err := NewRegistry(2670,
		Lithology{ID: 1, Name: "Host", Density: 2670},
		Lithology{
			ID: 4, Name: "Magnetite", Density: 3170, Susceptibility: 0.1,
			Remanence: Remanence{Magnitude: 2, Declination: 90, Inclination: 0},
		},
	)
	require.NoError(t, err)

	props := reg.Resolve()
	require.Len(t, props, 5)

	assert.False(t, props[0].Valid)
	assert.False(t, props[2].Valid)
	assert.True(t, props[1].Null())
	assert.False(t, props[4].Null())

	assert.Equal(t, 500.0, props[4].Contrast)
	assert.InDelta(t, 2.0, props[4].Remanent.X, 1e-12)
	assert.InDelta(t, 0.0, props[4].Remanent.Y, 1e-12)
	assert.InDelta(t, 0.0, props[4].Remanent.Z, 1e-12)
}

func TestDirection(t *testing.T) {
	v := Direction(0, 90, 3)
	assert.InDelta(t, 0, v.X, 1e-12)
	assert.InDelta(t, 0, v.Y, 1e-12)
	assert.InDelta(t, -3, v.Z, 1e-12)

	v = Direction(0, 0, 1)
	assert.InDelta(t, 1, v.Y, 1e-12)
}

func TestMagnetization(t *testing.T) {
	h := r3.Vec{X: 0, Y: 30, Z: -40}

	p := Props{Valid: true, Susceptibility: 0.01}
	m := p.Magnetization(h)
	assert.InDelta(t, 0.3, m.Y, 1e-12)
	assert.InDelta(t, -0.4, m.Z, 1e-12)

	// Q ratio of 2 with the remanence antiparallel to the induced part
	// reverses the net magnetization.
	p.QRatio = 2
	p.RemanentDir = r3.Unit(r3.Scale(-1, h))
	m = p.Magnetization(h)
	assert.InDelta(t, -0.3, m.Y, 1e-12)
	assert.InDelta(t, 0.4, m.Z, 1e-12)

	// An explicit remanence takes precedence over the Q ratio.
	p.Remanent = r3.Vec{X: 1}
	m = p.Magnetization(h)
	assert.InDelta(t, 1, m.X, 1e-12)
	assert.InDelta(t, 0.3, m.Y, 1e-12)
}

func TestReadYAML(t *testing.T) {
	reg, err := ReadYAML(strings.NewReader(ExampleTable))
	require.NoError(t, err)

	assert.Equal(t, 2670.0, reg.Background())
	assert.Equal(t, 3, reg.Len())

	bif, err := reg.ByName("Banded Iron")
	require.NoError(t, err)
	assert.Equal(t, 0.8, bif.QRatio)
	assert.Equal(t, -60.0, bif.Remanence.Inclination)

	_, err = ReadYAML(strings.NewReader("background_density: 1\n"))
	assert.Error(t, err)

	_, err = ReadYAML(strings.NewReader(
		"lithologies:\n  - id: 1\n    name: A\n    colour: red\n",
	))
	assert.Error(t, err, "unknown fields are rejected")
}

func TestErrorMessages(t *testing.T) {
	_, err := ReadYAML(strings.NewReader(
		"lithologies:\n  - id: 1\n    name: A\n  - id: 1\n    name: B\n",
	))
	require.Error(t, err)
	assert.Equal(t, "Lithology ID 1 is used twice.", err.Error())

	_, err = ReadYAML(strings.NewReader("background_density: 1\n"))
	require.Error(t, err)
	assert.Equal(t, "Property table has no lithologies.", err.Error())

	_, err = ReadYAML(strings.NewReader("lithologies: 7\n"))
	require.Error(t, err)
	assert.True(t, strings.HasPrefix(err.Error(), "Could not decode property table: "))

	reg, err := NewRegistry(2670, Lithology{ID: 1, Name: "A"})
	require.NoError(t, err)
	assert.Equal(t, "Unknown lithology ID 4.", reg.Check(4).Error())
	_, err = reg.ByName("Shale")
	assert.Equal(t, "Unknown lithology 'Shale'.", err.Error())
}
