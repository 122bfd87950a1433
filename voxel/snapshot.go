/*package voxel implements versioned voxel models.

A Model is edited through SetVoxel, SetLayer and SetRegion. Every edit
produces a new immutable Snapshot; snapshots handed out earlier stay valid
and unchanged, so a forward computation can read one while the model keeps
being edited. Snapshots share the storage of layers which an edit did not
touch.
*/
package voxel

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/phil-mansfield/gravmag/geom"
	"github.com/phil-mansfield/gravmag/lith"
)

// Key identifies a prism by the grid index of its voxel.
type Key int

// Snapshot is an immutable version of a voxel model.
type Snapshot struct {
	model   uuid.UUID
	version uint64
	grid    *geom.Grid
	// layers[k][i + j*Nx] is the lithology of cell (i, j, k).
	layers [][]lith.ID
}

// ModelID identifies the model the snapshot was taken from. Versions are
// only ordered between snapshots with the same ModelID.
func (s *Snapshot) ModelID() uuid.UUID { return s.model }

// Version returns the model version this snapshot was taken at.
func (s *Snapshot) Version() uint64 { return s.version }

// Grid returns the geometry of the model. It must not be modified.
func (s *Snapshot) Grid() *geom.Grid { return s.grid }

// At returns the lithology of cell (i, j, k).
func (s *Snapshot) At(i, j, k int) (lith.ID, error) {
	if !s.grid.BoundsCheck(i, j, k) {
		return lith.None, newIndexError(s.grid, i, j, k)
	}
	return s.layers[k][i+j*s.grid.Nx], nil
}

// AtKey returns the lithology of the prism with the given key. The key is
// not checked.
func (s *Snapshot) AtKey(key Key) lith.ID {
	idx := int(key)
	return s.layers[idx/s.grid.Area][idx%s.grid.Area]
}

// Prism returns the geometry and lithology of a prism.
func (s *Snapshot) Prism(key Key) Prism {
	return Prism{Key: key, Box: s.grid.PrismAt(int(key)), ID: s.AtKey(key)}
}

// Each calls fn for every assigned cell in increasing key order.
func (s *Snapshot) Each(fn func(key Key, id lith.ID)) {
	for k, layer := range s.layers {
		offset := k * s.grid.Area
		for idx, id := range layer {
			if id != lith.None {
				fn(Key(offset+idx), id)
			}
		}
	}
}

// Keys returns the keys of all assigned cells in increasing order.
func (s *Snapshot) Keys() []Key {
	keys := []Key{}
	s.Each(func(key Key, _ lith.ID) { keys = append(keys, key) })
	return keys
}

// Count returns the number of cells with lithology id.
func (s *Snapshot) Count(id lith.ID) int {
	n := 0
	for _, layer := range s.layers {
		for _, v := range layer {
			if v == id {
				n++
			}
		}
	}
	return n
}

// ErrGeometry is returned by Diff when two snapshots do not share a grid.
var ErrGeometry = fmt.Errorf("voxel: snapshots have different geometry")

// Diff returns, in increasing order, the keys of cells whose lithology
// differs between two snapshots of the same grid. Layers which share
// storage are skipped without being compared.
func Diff(old, s *Snapshot) ([]Key, error) {
	if !old.grid.Equal(s.grid) {
		return nil, ErrGeometry
	}

	keys := []Key{}
	for k := range s.layers {
		a, b := old.layers[k], s.layers[k]
		if &a[0] == &b[0] {
			continue
		}
		offset := k * s.grid.Area
		for idx := range b {
			if a[idx] != b[idx] {
				keys = append(keys, Key(offset+idx))
			}
		}
	}
	return keys, nil
}

// IndexError is returned when a cell address is outside the grid.
type IndexError struct {
	I, J, K    int
	Nx, Ny, Nz int
}

func newIndexError(g *geom.Grid, i, j, k int) *IndexError {
	return &IndexError{I: i, J: j, K: k, Nx: g.Nx, Ny: g.Ny, Nz: g.Nz}
}

func (e *IndexError) Error() string {
	return fmt.Sprintf(
		"voxel: cell (%d, %d, %d) is outside the %d x %d x %d grid",
		e.I, e.J, e.K, e.Nx, e.Ny, e.Nz,
	)
}

// RangeError is returned when an index range selects no cells.
type RangeError struct {
	I0, I1, J0, J1, K0, K1 int
}

func (e *RangeError) Error() string {
	return fmt.Sprintf(
		"voxel: index range [%d, %d) x [%d, %d) x [%d, %d) is empty",
		e.I0, e.I1, e.J0, e.J1, e.K0, e.K1,
	)
}
