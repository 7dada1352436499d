package lasrender

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sqExtent(size float64) Extent {
	return Extent{MinX: 0, MinY: 0, MinZ: 0, MaxX: size, MaxY: size, MaxZ: 10}
}

func TestTilePlannerGrid(t *testing.T) {
	testfunc := func(w, h, tileSize, overlap float64, rows, cols int) {
		t.Helper()
		extent := Extent{MaxX: w, MaxY: h, MaxZ: 1}
		p, err := NewTilePlanner(extent, TileSize(tileSize), Overlap(overlap))
		require.NoError(t, err)
		gr, gc := p.Grid()
		assert.Equal(t, rows, gr)
		assert.Equal(t, cols, gc)
	}
	type tc struct {
		w, h, tileSize, overlap float64
		rows, cols              int
	}
	cases := []tc{
		{1000, 1000, 100, 0.3, 15, 15}, // step 70
		{1000, 1000, 100, 0, 10, 10},
		{700, 1000, 100, 0.3, 15, 10},
		{100, 100, 100, 0.3, 2, 2},
		{50, 50, 50, 0, 1, 1},
	}
	for _, c := range cases {
		testfunc(c.w, c.h, c.tileSize, c.overlap, c.rows, c.cols)
	}
}

func TestTilePlannerRowMajorIndexing(t *testing.T) {
	p, err := NewTilePlanner(sqExtent(1000), TileSize(100), Overlap(0.3))
	require.NoError(t, err)

	tiles := p.Tiles()
	_, cols := p.Grid()
	for _, tile := range tiles {
		assert.Equal(t, tile.Row*cols+tile.Col, tile.Index)
	}
	// row-major: indices strictly increase in emitted order
	for i := 1; i < len(tiles); i++ {
		assert.Greater(t, tiles[i].Index, tiles[i-1].Index)
	}
}

func TestTilePlannerClampsEdgeTiles(t *testing.T) {
	extent := sqExtent(1000)
	p, err := NewTilePlanner(extent, TileSize(100), Overlap(0.3))
	require.NoError(t, err)

	for _, tile := range p.Tiles() {
		assert.False(t, tile.Crop.Empty())
		assert.GreaterOrEqual(t, tile.Crop.MinX, extent.MinX)
		assert.GreaterOrEqual(t, tile.Crop.MinY, extent.MinY)
		assert.LessOrEqual(t, tile.Crop.MaxX, extent.MaxX)
		assert.LessOrEqual(t, tile.Crop.MaxY, extent.MaxY)
	}
}

func TestTilePlannerAutoShrink(t *testing.T) {
	// 50x50 cloud with 100-unit tiles: tile size shrinks to 0.4*50=20
	p, err := NewTilePlanner(sqExtent(50), TileSize(100), Overlap(0.3))
	require.NoError(t, err)
	assert.InDelta(t, 20.0, p.TileSize(), 1e-9)
	require.Len(t, p.Adjustments(), 1)
	assert.Contains(t, p.Adjustments()[0], "shrinking")
}

func TestTilePlannerTargetImageCount(t *testing.T) {
	testfunc := func(size float64, target int) {
		t.Helper()
		p, err := NewTilePlanner(sqExtent(size), Overlap(0.3), TargetImageCount(target))
		require.NoError(t, err)
		got := len(p.Tiles())
		assert.InDelta(t, float64(target), float64(got), 0.3*float64(target),
			"size %g target %d got %d", size, target, got)
	}
	testfunc(1000, 25)
	testfunc(1000, 100)
	testfunc(500, 16)

	// more requested images never yields fewer tiles
	prev := 0
	for _, target := range []int{4, 16, 64, 144} {
		p, err := NewTilePlanner(sqExtent(2000), Overlap(0.3), TargetImageCount(target))
		require.NoError(t, err)
		assert.GreaterOrEqual(t, len(p.Tiles()), prev)
		prev = len(p.Tiles())
	}
}

func TestTilePlannerTargetCountClamp(t *testing.T) {
	// absurd target on a small cloud: solved size clamps to 10 units
	p, err := NewTilePlanner(sqExtent(100), Overlap(0.3), TargetImageCount(100000))
	require.NoError(t, err)
	assert.InDelta(t, 10.0, p.TileSize(), 1e-9)

	// target of 1 clamps to 0.9*maxdim
	p, err = NewTilePlanner(sqExtent(100), TileSize(50), Overlap(0.3), TargetImageCount(1))
	require.NoError(t, err)
	assert.InDelta(t, 90.0, p.TileSize(), 1e-9)
}

func TestTilePlannerInvalidOptions(t *testing.T) {
	_, err := NewTilePlanner(sqExtent(100), Overlap(1))
	assert.ErrorAs(t, err, &ErrInvalidParameter{})

	_, err = NewTilePlanner(sqExtent(100), Overlap(-0.1))
	assert.ErrorAs(t, err, &ErrInvalidParameter{})

	_, err = NewTilePlanner(sqExtent(100), TileSize(0))
	assert.ErrorAs(t, err, &ErrInvalidParameter{})

	_, err = NewTilePlanner(sqExtent(100), TargetImageCount(-1))
	assert.ErrorAs(t, err, &ErrInvalidParameter{})

	_, err = NewTilePlanner(Extent{})
	assert.ErrorAs(t, err, &ErrInvalidParameter{})
}

func TestTilePlannerDeterministic(t *testing.T) {
	a, err := NewTilePlanner(sqExtent(1234), TileSize(80), Overlap(0.25))
	require.NoError(t, err)
	b, err := NewTilePlanner(sqExtent(1234), TileSize(80), Overlap(0.25))
	require.NoError(t, err)
	assert.Equal(t, a.Tiles(), b.Tiles())
}
