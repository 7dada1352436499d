package lasrender

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestViewSamplerExactCount(t *testing.T) {
	extent := sqExtent(500)
	for _, count := range []int{1, 7, 30, 100} {
		sampler, err := NewViewSampler(count, 0.1, Seed(1))
		require.NoError(t, err)
		views := sampler.Views(extent)
		require.Len(t, views, count)
		for i, v := range views {
			assert.Equal(t, i, v.Index)
		}
	}
}

func TestViewSamplerAngleRanges(t *testing.T) {
	sampler, err := NewViewSampler(50, 0.1, Seed(42))
	require.NoError(t, err)
	for _, v := range sampler.Views(sqExtent(500)) {
		assert.GreaterOrEqual(t, v.AzimuthDeg, 0.0)
		assert.Less(t, v.AzimuthDeg, 360.0)
		assert.GreaterOrEqual(t, v.ElevationDeg, 10.0)
		assert.LessOrEqual(t, v.ElevationDeg, 85.0)
	}
}

func TestViewSamplerNoJitterAtLowCount(t *testing.T) {
	// 10 views or fewer get deterministic angle labels without a seed
	sampler, err := NewViewSampler(4, 0.1)
	require.NoError(t, err)
	views := sampler.Views(sqExtent(100))
	require.Len(t, views, 4)
	assert.Equal(t, 0.0, views[0].AzimuthDeg)
	assert.Equal(t, 90.0, views[1].AzimuthDeg)
	assert.Equal(t, 180.0, views[2].AzimuthDeg)
	assert.Equal(t, 270.0, views[3].AzimuthDeg)
	assert.Equal(t, 10.0, views[0].ElevationDeg)
	assert.InDelta(t, 10+75.0/7, views[1].ElevationDeg, 1e-9)
}

func TestViewSamplerCropsInsideExtent(t *testing.T) {
	extent := Extent{MinX: 100, MinY: 200, MaxX: 600, MaxY: 900, MaxZ: 50}
	sampler, err := NewViewSampler(30, 0.1, Seed(7))
	require.NoError(t, err)
	for _, v := range sampler.Views(extent) {
		assert.False(t, v.Crop.Empty())
		assert.GreaterOrEqual(t, v.Crop.MinX, extent.MinX)
		assert.GreaterOrEqual(t, v.Crop.MinY, extent.MinY)
		assert.LessOrEqual(t, v.Crop.MaxX, extent.MaxX+1e-9)
		assert.LessOrEqual(t, v.Crop.MaxY, extent.MaxY+1e-9)
		// each crop spans 60% of the extent on both axes
		assert.InDelta(t, extent.Width()*0.6, v.Crop.MaxX-v.Crop.MinX, 1e-9)
		assert.InDelta(t, extent.Height()*0.6, v.Crop.MaxY-v.Crop.MinY, 1e-9)
	}
}

func TestViewSamplerResolutionScatter(t *testing.T) {
	sampler, err := NewViewSampler(30, 0.2, Seed(3))
	require.NoError(t, err)
	for _, v := range sampler.Views(sqExtent(500)) {
		assert.GreaterOrEqual(t, v.Resolution, 0.2*0.9)
		assert.LessOrEqual(t, v.Resolution, 0.2*1.1)
	}
}

func TestViewSamplerSeedReproducible(t *testing.T) {
	extent := sqExtent(500)
	a, err := NewViewSampler(30, 0.1, Seed(99))
	require.NoError(t, err)
	b, err := NewViewSampler(30, 0.1, Seed(99))
	require.NoError(t, err)
	assert.Equal(t, a.Views(extent), b.Views(extent))
}

func TestViewSamplerInvalidParameters(t *testing.T) {
	_, err := NewViewSampler(0, 0.1)
	assert.ErrorAs(t, err, &ErrInvalidParameter{})
	_, err = NewViewSampler(-5, 0.1)
	assert.ErrorAs(t, err, &ErrInvalidParameter{})
	_, err = NewViewSampler(10, 0)
	assert.ErrorAs(t, err, &ErrInvalidParameter{})
	_, err = NewViewSampler(10, -1)
	assert.ErrorAs(t, err, &ErrInvalidParameter{})
}
