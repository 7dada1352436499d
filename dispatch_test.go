package lasrender

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeEngine writes a tiny non-empty file for every dimension not listed in
// failDims, standing in for the external rasterizer.
type fakeEngine struct {
	failDims map[string]bool
	calls    []RasterRequest
}

func (e *fakeEngine) HasDimensions(_ context.Context, _ string, dims ...string) (bool, error) {
	for _, d := range dims {
		if e.failDims[d] {
			return false, nil
		}
	}
	return true, nil
}

func (e *fakeEngine) Describe(_ context.Context, _ string) (PointCloudSummary, error) {
	return PointCloudSummary{Extent: sqExtent(100), PointCount: 1000}, nil
}

func (e *fakeEngine) Rasterize(_ context.Context, req RasterRequest) error {
	e.calls = append(e.calls, req)
	if e.failDims[req.Dimension.Dimension] {
		return ErrEngine{Op: "pdal pipeline", Err: fmt.Errorf("exit status 1")}
	}
	return os.WriteFile(req.Output, []byte("raster"), 0o644)
}

type fakeCompositor struct {
	fail  bool
	calls int
}

func (c *fakeCompositor) StackAndScale(_ context.Context, bands []string, output string, _, _ [2]float64) error {
	c.calls++
	if c.fail {
		return ErrConversion{Path: output, Err: fmt.Errorf("vrt failed")}
	}
	for _, b := range bands {
		if st, err := os.Stat(b); err != nil || st.Size() == 0 {
			return fmt.Errorf("band %s missing", b)
		}
	}
	return os.WriteFile(output, []byte("stacked"), 0o644)
}

func testView() ViewSpec {
	return ViewSpec{
		Index:        3,
		Crop:         CropWindow{MinX: 0, MaxX: 50, MinY: 0, MaxY: 50},
		Resolution:   0.1,
		AzimuthDeg:   120,
		ElevationDeg: 35,
	}
}

func TestDispatchSingleDimension(t *testing.T) {
	dir := t.TempDir()
	engine := &fakeEngine{}
	d := &Dispatcher{Engine: engine, Compositor: &fakeCompositor{}, WorkDir: dir}

	output := filepath.Join(dir, "out.tif")
	outcome := d.Dispatch(context.Background(), "in.las", testView(), Intensity.Request(), output)

	require.NoError(t, outcome.Err)
	assert.Equal(t, StateComposited, outcome.State)
	assert.False(t, outcome.FellBack)
	assert.Equal(t, Intensity, outcome.Mode)
	require.NotNil(t, outcome.Artifact)
	assert.Equal(t, output, outcome.Artifact.Path)
	assert.Equal(t, 1, outcome.Artifact.BandCount)
	assert.Positive(t, outcome.Artifact.ByteSize)

	require.Len(t, engine.calls, 1)
	require.NotNil(t, engine.calls[0].Crop)
	assert.Equal(t, 50.0, engine.calls[0].Crop.MaxX)
}

func TestDispatchComposite(t *testing.T) {
	dir := t.TempDir()
	engine := &fakeEngine{}
	comp := &fakeCompositor{}
	d := &Dispatcher{Engine: engine, Compositor: comp, WorkDir: dir}

	output := filepath.Join(dir, "out.tif")
	outcome := d.Dispatch(context.Background(), "in.las", testView(), TrueColor.Request(), output)

	require.NoError(t, outcome.Err)
	assert.Equal(t, TrueColor, outcome.Mode)
	assert.Equal(t, 3, outcome.Artifact.BandCount)
	assert.Equal(t, 1, comp.calls)
	assert.Len(t, engine.calls, 3)

	// band scratch files never survive a dispatch
	leftovers, err := filepath.Glob(filepath.Join(dir, "view*_*.tif"))
	require.NoError(t, err)
	assert.Empty(t, leftovers)
}

func TestDispatchFallbackOnBandFailure(t *testing.T) {
	dir := t.TempDir()
	engine := &fakeEngine{failDims: map[string]bool{"Red": true}}
	d := &Dispatcher{Engine: engine, Compositor: &fakeCompositor{}, WorkDir: dir}

	output := filepath.Join(dir, "out.tif")
	outcome := d.Dispatch(context.Background(), "in.las", testView(), TrueColor.Request(), output)

	require.NoError(t, outcome.Err)
	assert.True(t, outcome.FellBack)
	assert.Equal(t, Intensity, outcome.Mode)
	assert.Equal(t, 1, outcome.Artifact.BandCount)

	leftovers, err := filepath.Glob(filepath.Join(dir, "view*_*.tif"))
	require.NoError(t, err)
	assert.Empty(t, leftovers)
}

func TestDispatchFallbackOnStackFailure(t *testing.T) {
	dir := t.TempDir()
	engine := &fakeEngine{}
	d := &Dispatcher{Engine: engine, Compositor: &fakeCompositor{fail: true}, WorkDir: dir}

	output := filepath.Join(dir, "out.tif")
	outcome := d.Dispatch(context.Background(), "in.las", testView(), TrueColor.Request(), output)

	require.NoError(t, outcome.Err)
	assert.True(t, outcome.FellBack)
	assert.Equal(t, Intensity, outcome.Mode)
}

func TestDispatchSingleDimensionFailureIsTerminal(t *testing.T) {
	dir := t.TempDir()
	engine := &fakeEngine{failDims: map[string]bool{"Intensity": true}}
	d := &Dispatcher{Engine: engine, Compositor: &fakeCompositor{}, WorkDir: dir}

	output := filepath.Join(dir, "out.tif")
	outcome := d.Dispatch(context.Background(), "in.las", testView(), Intensity.Request(), output)

	require.Error(t, outcome.Err)
	assert.Equal(t, StateFailed, outcome.State)
	assert.False(t, outcome.FellBack)
	assert.Nil(t, outcome.Artifact)
	// exactly one engine call: no fallback below intensity
	assert.Len(t, engine.calls, 1)
}

func TestDispatchEmptyCropRendersWholeExtent(t *testing.T) {
	dir := t.TempDir()
	engine := &fakeEngine{}
	d := &Dispatcher{Engine: engine, Compositor: &fakeCompositor{}, WorkDir: dir}

	view := ViewSpec{Index: 0, Resolution: 0.1}
	outcome := d.Dispatch(context.Background(), "in.las", view, Elevation.Request(), filepath.Join(dir, "out.tif"))

	require.NoError(t, outcome.Err)
	require.Len(t, engine.calls, 1)
	assert.Nil(t, engine.calls[0].Crop)
}
