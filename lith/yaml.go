package lith

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// ExampleTable is a property table in the format read by ReadYAML.
const ExampleTable = `# Densities in kg/m^3, susceptibilities in SI, remanence in A/m.
background_density: 2670
lithologies:
  - id: 1
    name: Granite
    code: GRN
    density: 2640
    susceptibility: 0.001
  - id: 2
    name: Dolerite
    code: DOL
    density: 2950
    susceptibility: 0.03
    remanence:
      magnitude: 1.5
      declination: 150
      inclination: 40
  - id: 3
    name: Banded Iron
    density: 3300
    susceptibility: 0.5
    q_ratio: 0.8
    remanence:
      declination: 0
      inclination: -60
    notes: remanent magnitude follows the Q ratio
`

type propertyTable struct {
	BackgroundDensity float64     `yaml:"background_density"`
	Lithologies       []Lithology `yaml:"lithologies"`
}

// ReadYAML reads a lithology property table.
func ReadYAML(r io.Reader) (*Registry, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	tab := propertyTable{}
	if err := dec.Decode(&tab); err != nil {
		return nil, fmt.Errorf("Could not decode property table: %w", err)
	}
	if len(tab.Lithologies) == 0 {
		return nil, fmt.Errorf("Property table has no lithologies.")
	}

	return NewRegistry(tab.BackgroundDensity, tab.Lithologies...)
}

// LoadYAML reads the property table stored in the given file.
func LoadYAML(fname string) (*Registry, error) {
	f, err := os.Open(fname)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadYAML(f)
}
