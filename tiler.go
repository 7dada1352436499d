package lasrender

import (
	"fmt"
	"math"
)

// A TilePlanner partitions an extent into a regular grid of overlapping crop
// windows, one per output image. Adjacent tiles share a configurable
// fraction of their area so downstream feature matching has enough common
// texture to work with.
//
// The grid is computed once in NewTilePlanner and is deterministic: windows
// are ordered row-major and indexed accordingly, which the output naming
// relies on.
type TilePlanner struct {
	extent      Extent
	tileSize    float64
	overlap     float64
	targetCount int
	rows, cols  int
	views       []ViewSpec
	adjustments []string
}

type TilePlannerOption func(p *TilePlanner) error

// TileSize sets the tile edge length in extent units. If the requested size
// exceeds the extent it is shrunk to 40% of the largest dimension; that is
// an adjustment, not an error.
func TileSize(size float64) TilePlannerOption {
	return func(p *TilePlanner) error {
		if size <= 0 {
			return invalidParameter("tile size must be > 0, got %g", size)
		}
		p.tileSize = size
		return nil
	}
}

// Overlap sets the fractional shared area between adjacent tiles. Must be in
// [0,1): at 1 or above the grid step would collapse to zero.
func Overlap(overlap float64) TilePlannerOption {
	return func(p *TilePlanner) error {
		if overlap < 0 || overlap >= 1 {
			return invalidParameter("overlap must be in [0,1), got %g", overlap)
		}
		p.overlap = overlap
		return nil
	}
}

// TargetImageCount asks the planner to solve for the tile size that yields
// approximately count tiles, accounting for overlap. The solved size is
// clamped to [10, 0.9*maxdim] and only applied when it differs from the
// configured size by more than one unit.
func TargetImageCount(count int) TilePlannerOption {
	return func(p *TilePlanner) error {
		if count < 0 {
			return invalidParameter("target image count must be >= 0, got %d", count)
		}
		p.targetCount = count
		return nil
	}
}

// NewTilePlanner plans the tile grid for the given extent. Defaults are
// 100-unit tiles with 30% overlap and no target count.
func NewTilePlanner(extent Extent, options ...TilePlannerOption) (TilePlanner, error) {
	p := TilePlanner{
		extent:   extent,
		tileSize: 100,
		overlap:  0.3,
	}
	for _, o := range options {
		if err := o(&p); err != nil {
			return p, err
		}
	}
	if extent.Width() <= 0 || extent.Height() <= 0 {
		return p, invalidParameter("cannot tile degenerate extent %gx%g", extent.Width(), extent.Height())
	}
	p.plan()
	return p, nil
}

func (p *TilePlanner) plan() {
	width, height := p.extent.Width(), p.extent.Height()

	if p.tileSize > p.extent.MaxDim() {
		shrunk := p.extent.MaxDim() * 0.4
		p.note("tile size %.2f larger than point cloud (%.2f), shrinking to %.2f", p.tileSize, p.extent.MaxDim(), shrunk)
		p.tileSize = shrunk
	}

	if p.targetCount > 0 {
		area := width * height
		effective := (1 - p.overlap) * (1 - p.overlap)
		solved := math.Sqrt(area / (float64(p.targetCount) * effective))
		solved = math.Max(10, math.Min(solved, p.extent.MaxDim()*0.9))
		if math.Abs(solved-p.tileSize) > 1 {
			p.note("adjusting tile size from %.2f to %.2f to target %d images", p.tileSize, solved, p.targetCount)
			p.tileSize = solved
		}
	}

	step := p.tileSize * (1 - p.overlap)
	p.cols = int(math.Ceil(width / step))
	p.rows = int(math.Ceil(height / step))
	if p.cols < 1 {
		p.cols = 1
	}
	if p.rows < 1 {
		p.rows = 1
	}

	for row := 0; row < p.rows; row++ {
		for col := 0; col < p.cols; col++ {
			w := CropWindow{
				MinX: p.extent.MinX + float64(col)*step,
				MinY: p.extent.MinY + float64(row)*step,
			}
			w.MaxX = w.MinX + p.tileSize
			w.MaxY = w.MinY + p.tileSize
			w = w.Clamp(p.extent)
			if w.Empty() {
				continue
			}
			p.views = append(p.views, ViewSpec{
				Index: row*p.cols + col,
				Row:   row,
				Col:   col,
				Crop:  w,
			})
		}
	}
}

func (p *TilePlanner) note(format string, args ...interface{}) {
	p.adjustments = append(p.adjustments, fmt.Sprintf(format, args...))
}

// Tiles returns the planned crop windows in row-major order.
func (p TilePlanner) Tiles() []ViewSpec {
	return p.views
}

// Grid returns the grid dimensions; every planned window sits at one
// (row, col) cell of this grid.
func (p TilePlanner) Grid() (rows, cols int) {
	return p.rows, p.cols
}

// TileSize returns the tile edge length actually used, after any
// auto-shrink or target-count adjustment.
func (p TilePlanner) TileSize() float64 {
	return p.tileSize
}

// Adjustments returns the human-readable parameter adjustments that were
// applied while planning. Callers log these; they are never errors.
func (p TilePlanner) Adjustments() []string {
	return p.adjustments
}
