package lasrender

import (
	"math"
	"math/rand"
	"time"
)

// viewCropFraction is the share of each extent axis covered by a single
// perspective sample.
const viewCropFraction = 0.6

// A ViewSampler plans synthetic viewpoints across a point cloud. Each sample
// is an overlapping crop window tiled across a grid_size x grid_size logical
// grid, decorated with azimuth/elevation labels and a slightly scattered
// resolution for sampling diversity.
//
// The azimuth/elevation labels do not change what is rendered: the output is
// always an orthographic top-down crop. The labels only feed the output
// filenames, mirroring what downstream collectors already expect.
type ViewSampler struct {
	count      int
	resolution float64
	rng        *rand.Rand
}

type ViewSamplerOption func(s *ViewSampler) error

// Seed fixes the jitter source so a plan can be reproduced. Without it the
// sampler seeds from the wall clock.
func Seed(seed int64) ViewSamplerOption {
	return func(s *ViewSampler) error {
		s.rng = rand.New(rand.NewSource(seed))
		return nil
	}
}

// NewViewSampler validates the sampling parameters. count and resolution
// must both be positive.
func NewViewSampler(count int, resolution float64, options ...ViewSamplerOption) (*ViewSampler, error) {
	if count <= 0 {
		return nil, invalidParameter("view count must be > 0, got %d", count)
	}
	if resolution <= 0 {
		return nil, invalidParameter("resolution must be > 0, got %g", resolution)
	}
	s := &ViewSampler{
		count:      count,
		resolution: resolution,
	}
	for _, o := range options {
		if err := o(s); err != nil {
			return nil, err
		}
	}
	if s.rng == nil {
		s.rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return s, nil
}

// Views plans exactly count ViewSpecs over the extent, indices 0..count-1.
// Degenerate crops (possible on a degenerate extent) are still counted; they
// fail at dispatch time instead.
func (s *ViewSampler) Views(extent Extent) []ViewSpec {
	gridSize := int(math.Ceil(math.Sqrt(float64(s.count))))
	width, height := extent.Width(), extent.Height()

	views := make([]ViewSpec, 0, s.count)
	for i := 0; i < s.count; i++ {
		azimuth := math.Mod(float64(i)*360/float64(s.count), 360)
		elevation := 10 + float64(i%8)*(75.0/7)

		// Bounded jitter spreads the labels when many views are requested.
		if s.count > 10 {
			azimuth += s.uniform(-5, 5)
			azimuth = math.Mod(azimuth+360, 360)
			elevation += s.uniform(-3, 3)
			elevation = math.Max(10, math.Min(85, elevation))
		}

		// Some grid cells repeat and some stay empty when count is not a
		// perfect square; that matches the row-major cell walk.
		row := i / gridSize
		col := i % gridSize

		crop := CropWindow{
			MinX: extent.MinX + float64(col)/float64(gridSize)*width*(1-viewCropFraction),
			MinY: extent.MinY + float64(row)/float64(gridSize)*height*(1-viewCropFraction),
		}
		crop.MaxX = crop.MinX + width*viewCropFraction
		crop.MaxY = crop.MinY + height*viewCropFraction

		resolution := s.resolution * s.uniform(0.9, 1.1)
		if resolution <= 0 {
			resolution = math.SmallestNonzeroFloat64
		}

		views = append(views, ViewSpec{
			Index:        i,
			Crop:         crop,
			Resolution:   resolution,
			AzimuthDeg:   azimuth,
			ElevationDeg: elevation,
		})
	}
	return views
}

func (s *ViewSampler) uniform(lo, hi float64) float64 {
	return lo + s.rng.Float64()*(hi-lo)
}
