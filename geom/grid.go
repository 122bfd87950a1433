/*package geom contains the geometry of voxel models: the mapping between
cell indices and the rectangular prisms that make up a model.

All coordinates are in metres. x increases to the east, y to the north and
z upwards, so depths below the model top are negative elevations. Layer 0
is the top layer and layers are stacked downwards from Grid.Top.
*/
package geom

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// Grid provides an interface for reasoning over a 1D slice of voxels as if
// it were a 3D grid with physical extents.
type Grid struct {
	Nx, Ny, Nz int
	// X0 and Y0 are the west and south edges of the grid. Top is the
	// elevation of the upper surface of layer 0.
	X0, Y0, Top float64
	Dx, Dy      float64

	Area, Volume int

	dz      []float64
	bottoms []float64
}

// NewGrid returns a Grid with nx by ny columns and one layer per entry of
// dz, which gives layer thicknesses from the top down.
func NewGrid(
	nx, ny int, x0, y0, top, dx, dy float64, dz []float64,
) (*Grid, error) {
	g := &Grid{}
	if err := g.Init(nx, ny, x0, y0, top, dx, dy, dz); err != nil {
		return nil, err
	}
	return g, nil
}

// NewUniformGrid returns a Grid whose nz layers all have thickness dz.
func NewUniformGrid(
	nx, ny, nz int, x0, y0, top, dx, dy, dz float64,
) (*Grid, error) {
	if nz <= 0 {
		return nil, fmt.Errorf("Grid needs a positive layer count, got %d.", nz)
	}
	dzs := make([]float64, nz)
	for k := range dzs {
		dzs[k] = dz
	}
	return NewGrid(nx, ny, x0, y0, top, dx, dy, dzs)
}

// Init initializes a Grid instance.
func (g *Grid) Init(
	nx, ny int, x0, y0, top, dx, dy float64, dz []float64,
) error {
	switch {
	case nx <= 0 || ny <= 0:
		return fmt.Errorf(
			"Grid needs positive column counts, got nx = %d, ny = %d.", nx, ny,
		)
	case len(dz) == 0:
		return fmt.Errorf("Grid needs at least one layer.")
	case !(dx > 0) || !(dy > 0):
		return fmt.Errorf(
			"Grid needs positive cell widths, got dx = %g, dy = %g.", dx, dy,
		)
	}
	for _, v := range []float64{x0, y0, top} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("Grid origin (%g, %g, %g) is not finite.",
				x0, y0, top)
		}
	}

	g.Nx, g.Ny, g.Nz = nx, ny, len(dz)
	g.X0, g.Y0, g.Top = x0, y0, top
	g.Dx, g.Dy = dx, dy
	g.Area = nx * ny
	g.Volume = g.Area * g.Nz

	g.dz = make([]float64, len(dz))
	g.bottoms = make([]float64, len(dz))
	z := top
	for k, t := range dz {
		if !(t > 0) {
			return fmt.Errorf(
				"Layer %d has non-positive thickness %g.", k, t,
			)
		}
		g.dz[k] = t
		z -= t
		g.bottoms[k] = z
	}
	return nil
}

// Dz returns the thickness of layer k.
func (g *Grid) Dz(k int) float64 { return g.dz[k] }

// LayerTop returns the elevation of the upper surface of layer k.
func (g *Grid) LayerTop(k int) float64 {
	if k == 0 {
		return g.Top
	}
	return g.bottoms[k-1]
}

// LayerBottom returns the elevation of the lower surface of layer k.
func (g *Grid) LayerBottom(k int) float64 { return g.bottoms[k] }

// Uniform returns true if every layer has the same thickness.
func (g *Grid) Uniform() bool {
	for _, t := range g.dz {
		if t != g.dz[0] {
			return false
		}
	}
	return true
}

// Idx returns the grid index corresponding to a set of cell coordinates.
// x varies fastest, then y, then the layer.
func (g *Grid) Idx(i, j, k int) int {
	return i + j*g.Nx + k*g.Area
}

// IdxCheck returns an index and true if the given coordinates are valid and
// false otherwise.
func (g *Grid) IdxCheck(i, j, k int) (idx int, ok bool) {
	if !g.BoundsCheck(i, j, k) {
		return -1, false
	}
	return g.Idx(i, j, k), true
}

// BoundsCheck returns true if the given coordinates are within the Grid and
// false otherwise.
func (g *Grid) BoundsCheck(i, j, k int) bool {
	return i >= 0 && j >= 0 && k >= 0 && i < g.Nx && j < g.Ny && k < g.Nz
}

// Coords returns the cell coordinates of a voxel from its grid index.
func (g *Grid) Coords(idx int) (i, j, k int) {
	i = idx % g.Nx
	j = (idx % g.Area) / g.Nx
	k = idx / g.Area
	return i, j, k
}

// Prism returns the bounding box of cell (i, j, k). Coordinates are not
// checked.
func (g *Grid) Prism(i, j, k int) r3.Box {
	x1 := g.X0 + float64(i)*g.Dx
	y1 := g.Y0 + float64(j)*g.Dy
	return r3.Box{
		Min: r3.Vec{X: x1, Y: y1, Z: g.bottoms[k]},
		Max: r3.Vec{X: x1 + g.Dx, Y: y1 + g.Dy, Z: g.LayerTop(k)},
	}
}

// PrismAt is Prism for a grid index.
func (g *Grid) PrismAt(idx int) r3.Box {
	i, j, k := g.Coords(idx)
	return g.Prism(i, j, k)
}

// Extent returns the bounding box of the whole grid.
func (g *Grid) Extent() r3.Box {
	return r3.Box{
		Min: r3.Vec{X: g.X0, Y: g.Y0, Z: g.bottoms[g.Nz-1]},
		Max: r3.Vec{
			X: g.X0 + float64(g.Nx)*g.Dx,
			Y: g.Y0 + float64(g.Ny)*g.Dy,
			Z: g.Top,
		},
	}
}

// Cell returns the coordinates of the cell containing the point (x, y, z)
// and false if the point is outside the grid. Points on a shared face
// belong to the cell with the larger index along x and y and to the upper
// layer along z.
func (g *Grid) Cell(x, y, z float64) (i, j, k int, ok bool) {
	i = int(math.Floor((x - g.X0) / g.Dx))
	j = int(math.Floor((y - g.Y0) / g.Dy))
	if i < 0 || j < 0 || i >= g.Nx || j >= g.Ny {
		return -1, -1, -1, false
	}
	if z > g.Top || z < g.bottoms[g.Nz-1] {
		return -1, -1, -1, false
	}
	for k = 0; k < g.Nz-1; k++ {
		if z >= g.bottoms[k] {
			break
		}
	}
	return i, j, k, true
}

// Equal returns true if two grids describe the same cells.
func (g *Grid) Equal(g2 *Grid) bool {
	if g == g2 {
		return true
	}
	if g == nil || g2 == nil {
		return false
	}
	if g.Nx != g2.Nx || g.Ny != g2.Ny || g.Nz != g2.Nz ||
		g.X0 != g2.X0 || g.Y0 != g2.Y0 || g.Top != g2.Top ||
		g.Dx != g2.Dx || g.Dy != g2.Dy {
		return false
	}
	for k := range g.dz {
		if g.dz[k] != g2.dz[k] {
			return false
		}
	}
	return true
}

// MinWidth returns the smallest cell dimension in the grid.
func (g *Grid) MinWidth() float64 {
	w := math.Min(g.Dx, g.Dy)
	for _, t := range g.dz {
		w = math.Min(w, t)
	}
	return w
}
