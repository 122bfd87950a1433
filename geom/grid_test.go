package geom

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"
)

func TestGridIdx(t *testing.T) {
	g, err := NewUniformGrid(4, 3, 5, 0, 0, 0, 10, 10, 10)
	require.NoError(t, err)

	assert.Equal(t, 12, g.Area)
	assert.Equal(t, 60, g.Volume)

	for idx := 0; idx < g.Volume; idx++ {
		i, j, k := g.Coords(idx)
		assert.Equal(t, idx, g.Idx(i, j, k), "round trip of %d", idx)
	}

	_, ok := g.IdxCheck(4, 0, 0)
	assert.False(t, ok)
	_, ok = g.IdxCheck(0, -1, 0)
	assert.False(t, ok)
	idx, ok := g.IdxCheck(3, 2, 4)
	assert.True(t, ok)
	assert.Equal(t, g.Volume-1, idx)
}

func TestGridLayers(t *testing.T) {
	g, err := NewGrid(2, 2, 100, 200, 50, 25, 25, []float64{10, 20, 40})
	require.NoError(t, err)

	assert.False(t, g.Uniform())
	assert.Equal(t, 50.0, g.LayerTop(0))
	assert.Equal(t, 40.0, g.LayerBottom(0))
	assert.Equal(t, 40.0, g.LayerTop(1))
	assert.Equal(t, 20.0, g.LayerBottom(1))
	assert.Equal(t, -20.0, g.LayerBottom(2))

	b := g.Prism(1, 0, 2)
	assert.Equal(t, r3.Vec{X: 125, Y: 200, Z: -20}, b.Min)
	assert.Equal(t, r3.Vec{X: 150, Y: 225, Z: 20}, b.Max)

	ext := g.Extent()
	assert.Equal(t, r3.Vec{X: 100, Y: 200, Z: -20}, ext.Min)
	assert.Equal(t, r3.Vec{X: 150, Y: 250, Z: 50}, ext.Max)
	assert.Equal(t, 10.0, g.MinWidth())
}

func TestGridCell(t *testing.T) {
	g, err := NewGrid(2, 2, 0, 0, 0, 10, 10, []float64{10, 20})
	require.NoError(t, err)

	table := []struct {
		x, y, z float64
		i, j, k int
		ok      bool
	}{
		{5, 5, -5, 0, 0, 0, true},
		{15, 5, -15, 1, 0, 1, true},
		{10, 10, -10, 1, 1, 0, true},
		{5, 5, -30, 0, 0, 1, true},
		{5, 5, 1, -1, -1, -1, false},
		{20, 5, -5, -1, -1, -1, false},
		{5, 5, -31, -1, -1, -1, false},
	}

	for n, test := range table {
		i, j, k, ok := g.Cell(test.x, test.y, test.z)
		assert.Equal(t, test.ok, ok, "%d) ok", n)
		if ok {
			assert.Equal(t, [3]int{test.i, test.j, test.k}, [3]int{i, j, k},
				"%d) cell", n)
		}
	}
}

func TestGridInitErrors(t *testing.T) {
	_, err := NewGrid(0, 1, 0, 0, 0, 1, 1, []float64{1})
	assert.Error(t, err)
	_, err = NewGrid(1, 1, 0, 0, 0, 0, 1, []float64{1})
	assert.Error(t, err)
	_, err = NewGrid(1, 1, 0, 0, 0, 1, 1, nil)
	assert.Error(t, err)
	_, err = NewGrid(1, 1, 0, 0, 0, 1, 1, []float64{1, 0})
	assert.Error(t, err)
	_, err = NewUniformGrid(1, 1, 0, 0, 0, 0, 1, 1, 1)
	assert.Error(t, err)
}

func TestGridEqual(t *testing.T) {
	g1, _ := NewUniformGrid(3, 3, 3, 0, 0, 0, 1, 1, 1)
	g2, _ := NewGrid(3, 3, 0, 0, 0, 1, 1, []float64{1, 1, 1})
	g3, _ := NewGrid(3, 3, 0, 0, 0, 1, 1, []float64{1, 1, 2})

	assert.True(t, g1.Equal(g2))
	assert.False(t, g1.Equal(g3))
	assert.False(t, g1.Equal(nil))
}

func TestBoxHelpers(t *testing.T) {
	b := r3.NewBox(0, 0, 0, 1, 2, 3)
	assert.Equal(t, 6.0, Volume(b))
	assert.False(t, Degenerate(b))
	assert.True(t, Degenerate(r3.NewBox(0, 0, 0, 1, 0, 3)))

	assert.Equal(t, 0.0, Dist(b, r3.Vec{X: 0.5, Y: 1, Z: 1}))
	assert.InDelta(t, 5.0, Dist(b, r3.Vec{X: 4, Y: 6, Z: 1}), 1e-12)

	cs := Corners(b)
	assert.Equal(t, b.Min, cs[0])
	assert.Equal(t, b.Max, cs[7])
	assert.Equal(t, r3.Vec{X: 1, Y: 0, Z: 3}, cs[5])
}
