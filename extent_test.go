package lasrender

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCropWindowEmpty(t *testing.T) {
	assert.True(t, CropWindow{}.Empty())
	assert.True(t, CropWindow{MinX: 5, MaxX: 5, MinY: 0, MaxY: 10}.Empty())
	assert.True(t, CropWindow{MinX: 0, MaxX: 10, MinY: 8, MaxY: 3}.Empty())
	assert.False(t, CropWindow{MinX: 0, MaxX: 1, MinY: 0, MaxY: 1}.Empty())
}

func TestCropWindowClamp(t *testing.T) {
	extent := Extent{MinX: 10, MinY: 20, MaxX: 110, MaxY: 220}
	w := CropWindow{MinX: -50, MinY: 0, MaxX: 500, MaxY: 100}.Clamp(extent)
	assert.Equal(t, CropWindow{MinX: 10, MinY: 20, MaxX: 110, MaxY: 100}, w)

	// fully outside clamps to a degenerate window
	w = CropWindow{MinX: 300, MinY: 300, MaxX: 400, MaxY: 400}.Clamp(extent)
	assert.True(t, w.Empty())
}

func TestExtentDims(t *testing.T) {
	e := Extent{MinX: 10, MinY: 20, MinZ: 5, MaxX: 110, MaxY: 240, MaxZ: 30}
	assert.Equal(t, 100.0, e.Width())
	assert.Equal(t, 220.0, e.Height())
	assert.Equal(t, 25.0, e.Depth())
	assert.Equal(t, 22000.0, e.Area())
	assert.Equal(t, 220.0, e.MaxDim())
}
