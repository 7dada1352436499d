package lasrender

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.airbusds-geo.com/log"
)

// DispatchState tracks one view through the dispatcher.
type DispatchState int

const (
	StatePlanned DispatchState = iota
	StateRasterizing
	StateFallbackRasterizing
	StateComposited
	StateFailed
)

// An Outcome is the terminal record of one dispatched view. Exactly one of
// Artifact or Err is set.
type Outcome struct {
	View     ViewSpec
	Mode     RenderMode // mode actually produced, after any fallback
	State    DispatchState
	FellBack bool
	Artifact *RasterArtifact
	Err      error
}

// A Dispatcher turns one planned view into a raster file. Composite
// (TrueColor) requests fan out into per-dimension band rasters in WorkDir,
// get stacked and rescaled, and degrade to an Intensity render of the same
// view when any band or the stacking fails: a single fallback hop, never
// chained. Single-dimension failures are terminal for the view.
//
// Band scratch files are removed on every exit path; only the final output
// file survives a dispatch.
type Dispatcher struct {
	Engine     Rasterizer
	Compositor Compositor
	// WorkDir holds per-view band scratch files. Owned by the job, not by
	// the dispatcher.
	WorkDir string
}

// Dispatch runs the per-view state machine and writes the result to output.
// Every outcome is logged under the view's (index, azimuth, elevation) key.
func (d *Dispatcher) Dispatch(ctx context.Context, source string, view ViewSpec, req ChannelRequest, output string) Outcome {
	sugar := log.Logger(ctx).Sugar()
	key := fmt.Sprintf("view %d az%d el%d", view.Index, int(view.AzimuthDeg), int(view.ElevationDeg))

	out := Outcome{View: view, Mode: req.Mode, State: StateRasterizing}
	err := d.attempt(ctx, source, view, req, output)
	if err != nil {
		if fallback, ok := req.Fallback(); ok {
			sugar.Warnf("%s: %s render failed (%v), falling back to %s", key, req.Mode, err, fallback.Mode)
			out.State = StateFallbackRasterizing
			out.FellBack = true
			out.Mode = fallback.Mode
			req = fallback
			err = d.attempt(ctx, source, view, req, output)
		}
	}
	if err != nil {
		out.State = StateFailed
		out.Err = err
		sugar.Warnf("%s: failed: %v", key, err)
		return out
	}

	st, statErr := os.Stat(output)
	if statErr != nil || st.Size() == 0 {
		out.State = StateFailed
		out.Err = ErrEngine{Op: "verify " + output, Err: fmt.Errorf("output missing or empty")}
		sugar.Warnf("%s: %v", key, out.Err)
		return out
	}
	out.State = StateComposited
	out.Artifact = &RasterArtifact{
		Path:      output,
		BandCount: len(req.Dimensions),
		ByteSize:  st.Size(),
	}
	sugar.Infof("%s: created %s (%d bytes)", key, filepath.Base(output), st.Size())
	return out
}

func (d *Dispatcher) attempt(ctx context.Context, source string, view ViewSpec, req ChannelRequest, output string) error {
	var crop *CropWindow
	if !view.Crop.Empty() {
		c := view.Crop
		crop = &c
	}

	if !req.Composite() {
		return d.Engine.Rasterize(ctx, RasterRequest{
			Source:     source,
			Output:     output,
			Crop:       crop,
			Resolution: view.Resolution,
			Dimension:  req.Dimensions[0],
		})
	}

	bands := make([]string, 0, len(req.Dimensions))
	defer func() {
		// Leaked band files are a disk-space and naming-collision hazard
		// across retries, so they go away no matter how we exit.
		for _, band := range bands {
			os.Remove(band)
		}
	}()
	for _, dim := range req.Dimensions {
		band := filepath.Join(d.WorkDir, fmt.Sprintf("view%04d_%s.tif", view.Index, strings.ToLower(dim.Dimension)))
		bands = append(bands, band)
		if err := d.Engine.Rasterize(ctx, RasterRequest{
			Source:     source,
			Output:     band,
			Crop:       crop,
			Resolution: view.Resolution,
			Dimension:  dim,
		}); err != nil {
			return fmt.Errorf("band %s: %w", dim.Dimension, err)
		}
	}
	if err := d.Compositor.StackAndScale(ctx, bands, output, trueColorInputRange, trueColorOutputRange); err != nil {
		return fmt.Errorf("stack %d bands: %w", len(bands), err)
	}
	return nil
}
