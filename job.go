package lasrender

import (
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/tbonfort/gobs"
	"go.airbusds-geo.com/log"
)

// A Job is one complete point-cloud to image-set conversion. Exactly one of
// three sampling strategies applies: the default single whole-extent image,
// a tile grid (Multiview), or perspective samples (Perspective).
type Job struct {
	// ID identifies the job in logs and scratch paths. Assigned from a
	// random UUID when empty.
	ID string

	Source    string
	OutputDir string

	Mode RenderMode
	// Resolution in extent units per pixel. Non-positive means derive it
	// from point density.
	Resolution float64

	Multiview   bool
	Perspective bool
	// TileSize in extent units; non-positive keeps the planner default.
	TileSize float64
	// Overlap is the fractional shared area between adjacent tiles, in
	// [0,1). Zero means adjacent tiles share nothing.
	Overlap float64
	// Count is the exact view count for perspective sampling and the target
	// image count for tiling. Zero keeps the planner defaults.
	Count int
	// Seed fixes perspective jitter; zero seeds from the wall clock.
	Seed int64

	// Parallelism bounds concurrent dispatches. The default of 1 keeps
	// dispatch strictly sequential; per-view output names make higher
	// values safe.
	Parallelism int

	ConvertJPEG bool
	Quality     int

	Engine     Rasterizer
	Compositor Compositor
	Converter  Converter
}

// A Result is the reconciled outcome of a job. A non-empty artifact set with
// warnings is a partial success; Run only returns an error when nothing was
// produced at all.
type Result struct {
	Artifacts  []RasterArtifact
	Warnings   []string
	Planned    int
	Downgraded bool
}

// Run executes the job: describe, plan, dispatch, collect, convert.
func (j *Job) Run(ctx context.Context) (Result, error) {
	res := Result{}
	if j.ID == "" {
		j.ID = uuid.New().String()
	}
	sugar := log.Logger(ctx).Sugar()

	if err := j.validate(); err != nil {
		return res, err
	}
	if err := os.MkdirAll(j.OutputDir, 0o755); err != nil {
		return res, fmt.Errorf("create output dir %s: %w", j.OutputDir, err)
	}

	summary, err := j.Engine.Describe(ctx, j.Source)
	if err != nil {
		return res, fmt.Errorf("describe %s: %w", j.Source, err)
	}
	sugar.Infof("job %s: %s bounds %.2fx%.2f, %d points", j.ID, j.Source,
		summary.Extent.Width(), summary.Extent.Height(), summary.PointCount)

	resolution := j.Resolution
	if resolution <= 0 {
		resolution = AutoResolution(summary)
		sugar.Infof("job %s: auto-calculated resolution %gm", j.ID, resolution)
	}

	req, downgraded, err := ResolveChannel(ctx, j.Engine, j.Source, j.Mode)
	if err != nil {
		return res, err
	}
	res.Downgraded = downgraded
	if downgraded {
		res.Warnings = append(res.Warnings, "point cloud has no color dimensions, rendered intensity instead of rgb")
	}
	mode := req.Mode

	views, pattern, err := j.planViews(ctx, summary.Extent, resolution, mode)
	if err != nil {
		return res, err
	}
	res.Planned = len(views)

	workDir, err := os.MkdirTemp("", "lasrender-bands-*")
	if err != nil {
		return res, fmt.Errorf("create scratch dir: %w", err)
	}
	defer os.RemoveAll(workDir)

	dispatcher := &Dispatcher{Engine: j.Engine, Compositor: j.Compositor, WorkDir: workDir}
	base := Stem(j.Source)

	parallelism := j.Parallelism
	if parallelism < 1 {
		parallelism = 1
	}
	outcomes := make([]Outcome, len(views))
	pool := gobs.NewPool(parallelism)
	batch := pool.Batch()
	for i, view := range views {
		i, view := i, view
		output := filepath.Join(j.OutputDir, j.outputName(base, mode, view, resolution))
		batch.Submit(func() error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
			outcomes[i] = dispatcher.Dispatch(ctx, j.Source, view, req, output)
			return nil
		})
	}
	if err := batch.Wait(); err != nil {
		return res, err
	}
	for _, outcome := range outcomes {
		if outcome.Err != nil {
			res.Warnings = append(res.Warnings, fmt.Sprintf("view %d: %v", outcome.View.Index, outcome.Err))
		}
	}

	collector := Collector{Dir: j.OutputDir, Pattern: pattern}
	artifacts, warnings, err := collector.Collect(ctx, len(views))
	if err != nil {
		return res, err
	}
	res.Warnings = append(res.Warnings, warnings...)

	if j.ConvertJPEG {
		artifacts = j.convertArtifacts(ctx, artifacts, &res)
	}
	res.Artifacts = artifacts

	if len(res.Artifacts) == 0 {
		return res, fmt.Errorf("job %s: no output images were produced", j.ID)
	}
	sugar.Infof("job %s: %d of %d images produced", j.ID, len(res.Artifacts), res.Planned)
	return res, nil
}

func (j *Job) validate() error {
	if j.Engine == nil {
		return invalidParameter("job needs a rasterization engine")
	}
	if _, err := os.Stat(j.Source); err != nil {
		return ErrNotFound{Path: j.Source}
	}
	switch strings.ToLower(filepath.Ext(j.Source)) {
	case ".las", ".laz":
	default:
		return invalidParameter("input must be a .las or .laz file, got %s", filepath.Base(j.Source))
	}
	if j.Multiview && j.Perspective {
		return invalidParameter("multiview tiling and perspective sampling are mutually exclusive")
	}
	return nil
}

func (j *Job) planViews(ctx context.Context, extent Extent, resolution float64, mode RenderMode) ([]ViewSpec, string, error) {
	base := Stem(j.Source)
	switch {
	case j.Perspective:
		count := j.Count
		if count <= 0 {
			count = 30
		}
		var opts []ViewSamplerOption
		if j.Seed != 0 {
			opts = append(opts, Seed(j.Seed))
		}
		sampler, err := NewViewSampler(count, resolution, opts...)
		if err != nil {
			return nil, "", err
		}
		return sampler.Views(extent), ViewPattern(base), nil

	case j.Multiview:
		// Overlap 0 is a valid choice, so it is always passed through;
		// out-of-range values fail in the option itself.
		opts := []TilePlannerOption{Overlap(j.Overlap)}
		if j.TileSize > 0 {
			opts = append(opts, TileSize(j.TileSize))
		}
		if j.Count > 0 {
			opts = append(opts, TargetImageCount(j.Count))
		}
		planner, err := NewTilePlanner(extent, opts...)
		if err != nil {
			return nil, "", err
		}
		for _, note := range planner.Adjustments() {
			log.Logger(ctx).Sugar().Infof("job %s: %s", j.ID, note)
		}
		views := planner.Tiles()
		for i := range views {
			views[i].Resolution = resolution
		}
		rows, cols := planner.Grid()
		log.Logger(ctx).Sugar().Infof("job %s: grid %d cols x %d rows = %d tiles of %.2f", j.ID, cols, rows, len(views), planner.TileSize())
		return views, TilePattern(base, mode), nil

	default:
		return []ViewSpec{{Index: 0, Resolution: resolution}}, SinglePattern(base, mode), nil
	}
}

func (j *Job) outputName(base string, mode RenderMode, view ViewSpec, resolution float64) string {
	switch {
	case j.Perspective:
		return ViewFilename(base, view.Index, view.AzimuthDeg, view.ElevationDeg)
	case j.Multiview:
		return TileFilename(base, mode, view.Row, view.Col)
	default:
		return SingleFilename(base, mode, resolution)
	}
}

func (j *Job) convertArtifacts(ctx context.Context, artifacts []RasterArtifact, res *Result) []RasterArtifact {
	if j.Converter == nil {
		return artifacts
	}
	converted := make([]RasterArtifact, 0, len(artifacts))
	for _, a := range artifacts {
		jpg := strings.TrimSuffix(a.Path, filepath.Ext(a.Path)) + ".jpg"
		if err := j.Converter.ToJPEG(ctx, a.Path, jpg, j.Quality); err != nil {
			// Keep the raster itself when conversion fails.
			res.Warnings = append(res.Warnings, err.Error())
			converted = append(converted, a)
			continue
		}
		st, err := os.Stat(jpg)
		if err != nil || st.Size() == 0 {
			res.Warnings = append(res.Warnings, fmt.Sprintf("converted %s is missing or empty", filepath.Base(jpg)))
			converted = append(converted, a)
			continue
		}
		converted = append(converted, RasterArtifact{Path: jpg, BandCount: a.BandCount, ByteSize: st.Size()})
	}
	return converted
}

// AutoResolution derives a pixel size from point density, aiming at about
// four points per pixel, clamped to [0.01, 1.0]. Falls back to 0.1 when the
// summary carries no usable density.
func AutoResolution(s PointCloudSummary) float64 {
	const fallback = 0.1
	area := s.Extent.Area()
	if s.PointCount == 0 || area <= 0 {
		return fallback
	}
	density := float64(s.PointCount) / area
	res := math.Sqrt(4.0 / density)
	return math.Max(0.01, math.Min(res, 1.0))
}
