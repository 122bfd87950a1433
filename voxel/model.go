package voxel

import (
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/phil-mansfield/gravmag/geom"
	"github.com/phil-mansfield/gravmag/lith"
)

// Prism is the geometric unit of integration.
type Prism struct {
	Key Key
	Box r3.Box
	ID  lith.ID
}

// Dirty lists the prisms changed by an edit.
type Dirty struct {
	// Version is the model version produced by the edit.
	Version uint64
	Keys    []Key
}

// Empty returns true if the edit changed nothing.
func (d Dirty) Empty() bool { return len(d.Keys) == 0 }

// Model is an editable voxel model. Edits are serialized; Snapshot may be
// called concurrently with them.
type Model struct {
	reg *lith.Registry

	mu  sync.Mutex
	cur atomic.Pointer[Snapshot]
}

// New creates a model over grid with every cell set to fill, which may be
// lith.None.
func New(grid *geom.Grid, reg *lith.Registry, fill lith.ID) (*Model, error) {
	if err := reg.Check(fill); err != nil {
		return nil, err
	}

	layers := make([][]lith.ID, grid.Nz)
	for k := range layers {
		layers[k] = make([]lith.ID, grid.Area)
		if fill != lith.None {
			for idx := range layers[k] {
				layers[k][idx] = fill
			}
		}
	}

	m := &Model{reg: reg}
	m.cur.Store(&Snapshot{
		model: uuid.New(), version: 1, grid: grid, layers: layers,
	})
	return m, nil
}

// Registry returns the lithologies the model may be assigned.
func (m *Model) Registry() *lith.Registry { return m.reg }

// Grid returns the model geometry.
func (m *Model) Grid() *geom.Grid { return m.cur.Load().grid }

// Snapshot returns the current version of the model. The snapshot is never
// modified by later edits.
func (m *Model) Snapshot() *Snapshot { return m.cur.Load() }

// Version returns the current version number.
func (m *Model) Version() uint64 { return m.cur.Load().version }

// Lithology returns the lithology of cell (i, j, k) in the current version.
func (m *Model) Lithology(i, j, k int) (lith.ID, error) {
	return m.cur.Load().At(i, j, k)
}

// SetVoxel assigns a lithology to a single cell.
func (m *Model) SetVoxel(i, j, k int, id lith.ID) (Dirty, error) {
	return m.SetRegion(i, i+1, j, j+1, k, k+1, id)
}

// SetLayer assigns a lithology to every cell of layer k.
func (m *Model) SetLayer(k int, id lith.ID) (Dirty, error) {
	g := m.Grid()
	return m.SetRegion(0, g.Nx, 0, g.Ny, k, k+1, id)
}

// SetRegion assigns a lithology to the cells in the half-open index ranges
// [i0, i1) x [j0, j1) x [k0, k1). The model is left unchanged if the region
// is empty, if it leaves the grid or if id is not registered. Every
// successful call produces a new version, even if no cell changed.
func (m *Model) SetRegion(i0, i1, j0, j1, k0, k1 int, id lith.ID) (Dirty, error) {
	if err := m.reg.Check(id); err != nil {
		return Dirty{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	old := m.cur.Load()
	g := old.grid
	if i1 <= i0 || j1 <= j0 || k1 <= k0 {
		return Dirty{}, &RangeError{i0, i1, j0, j1, k0, k1}
	}
	if !g.BoundsCheck(i0, j0, k0) {
		return Dirty{}, newIndexError(g, i0, j0, k0)
	} else if !g.BoundsCheck(i1-1, j1-1, k1-1) {
		return Dirty{}, newIndexError(g, i1-1, j1-1, k1-1)
	}

	layers := make([][]lith.ID, len(old.layers))
	copy(layers, old.layers)
	keys := []Key{}

	for k := k0; k < k1; k++ {
		var layer []lith.ID
		for j := j0; j < j1; j++ {
			for i := i0; i < i1; i++ {
				idx := i + j*g.Nx
				if old.layers[k][idx] == id {
					continue
				}
				if layer == nil {
					layer = make([]lith.ID, g.Area)
					copy(layer, old.layers[k])
					layers[k] = layer
				}
				layer[idx] = id
				keys = append(keys, Key(k*g.Area+idx))
			}
		}
	}

	s := &Snapshot{
		model: old.model, version: old.version + 1, grid: g, layers: layers,
	}
	m.cur.Store(s)
	return Dirty{Version: s.version, Keys: keys}, nil
}
