package lasrender

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/alessio/shellescape"
	"go.airbusds-geo.com/log"
)

// PDAL drives the external rasterization engine through the pdal binary.
// Every invocation writes a pipeline document to a scratch file, runs
// `pdal pipeline` on it and removes it again. Calls are bounded by Timeout;
// an expired deadline is reported as an engine failure like any other
// non-zero exit.
type PDAL struct {
	// Path is the pdal binary, "pdal" by default.
	Path string
	// Timeout bounds each engine call. Zero means no bound.
	Timeout time.Duration
	// WriterOpts are extra writers.gdal creation options appended to every
	// band, e.g. from a --gdalopts flag.
	WriterOpts []string
}

func (p PDAL) binary() string {
	if p.Path == "" {
		return "pdal"
	}
	return p.Path
}

// Available checks that the engine binary can be executed at all. Jobs call
// this once before planning anything.
func (p PDAL) Available(ctx context.Context) error {
	if _, err := p.run(ctx, "--version"); err != nil {
		return fmt.Errorf("pdal is not installed or not in PATH: %w", err)
	}
	return nil
}

type pdalBounds struct {
	MinX float64 `json:"minx"`
	MinY float64 `json:"miny"`
	MaxX float64 `json:"maxx"`
	MaxY float64 `json:"maxy"`
	MinZ float64 `json:"minz"`
	MaxZ float64 `json:"maxz"`
}

type pdalInfo struct {
	Summary struct {
		Bounds    pdalBounds `json:"bounds"`
		NumPoints uint64     `json:"num_points"`
		Count     uint64     `json:"count"`
	} `json:"summary"`
}

// Describe queries the point cloud summary. Missing bound fields decode to
// zero, which downstream planners reject as a degenerate extent rather than
// this call failing.
func (p PDAL) Describe(ctx context.Context, pointcloud string) (PointCloudSummary, error) {
	if _, err := os.Stat(pointcloud); err != nil {
		return PointCloudSummary{}, ErrNotFound{Path: pointcloud}
	}
	out, err := p.run(ctx, "info", "--summary", pointcloud)
	if err != nil {
		return PointCloudSummary{}, err
	}
	info := pdalInfo{}
	if err := json.Unmarshal(out, &info); err != nil {
		return PointCloudSummary{}, ErrNotFound{Path: pointcloud, msg: fmt.Sprintf("unreadable metadata: %v", err)}
	}
	b := info.Summary.Bounds
	count := info.Summary.NumPoints
	if count == 0 {
		count = info.Summary.Count
	}
	return PointCloudSummary{
		Extent: Extent{
			MinX: b.MinX, MinY: b.MinY,
			MaxX: b.MaxX, MaxY: b.MaxY,
			MinZ: b.MinZ, MaxZ: b.MaxZ,
		},
		PointCount: count,
	}, nil
}

// HasDimensions reports whether the cloud's metadata mentions every named
// dimension. The metadata dump is matched textually, same as the engine's
// own tooling does; a dimension name appearing anywhere counts.
func (p PDAL) HasDimensions(ctx context.Context, pointcloud string, dims ...string) (bool, error) {
	out, err := p.run(ctx, "info", "--metadata", pointcloud)
	if err != nil {
		return false, err
	}
	meta := string(out)
	for _, dim := range dims {
		if !strings.Contains(meta, dim) {
			return false, nil
		}
	}
	return true, nil
}

type pipelineStage map[string]interface{}

type pipelineDoc struct {
	Pipeline []pipelineStage `json:"pipeline"`
}

// Rasterize runs one reader -> (crop) -> writers.gdal pipeline. The call
// fails if the engine exits non-zero or the output file is missing or empty.
func (p PDAL) Rasterize(ctx context.Context, req RasterRequest) error {
	writer := pipelineStage{
		"type":        "writers.gdal",
		"filename":    req.Output,
		"resolution":  req.Resolution,
		"radius":      req.Resolution,
		"output_type": req.Dimension.Encoding.OutputType,
		"data_type":   req.Dimension.Encoding.DataType,
		"gdalopts":    p.gdalopts(req.Dimension.Encoding.GDALOpts),
	}
	if req.Dimension.Dimension != "" {
		writer["dimension"] = req.Dimension.Dimension
	}

	stages := []pipelineStage{
		{"type": "readers.las", "filename": req.Source},
	}
	if req.Crop != nil && !req.Crop.Empty() {
		stages = append(stages, pipelineStage{
			"type":   "filters.crop",
			"bounds": fmt.Sprintf("([%.6f, %.6f], [%.6f, %.6f])", req.Crop.MinX, req.Crop.MaxX, req.Crop.MinY, req.Crop.MaxY),
		})
	}
	stages = append(stages, writer)

	pf, err := os.CreateTemp(filepath.Dir(req.Output), "pipeline-*.json")
	if err != nil {
		return fmt.Errorf("create pipeline file: %w", err)
	}
	defer os.Remove(pf.Name())
	if err := json.NewEncoder(pf).Encode(pipelineDoc{Pipeline: stages}); err != nil {
		pf.Close()
		return fmt.Errorf("encode pipeline: %w", err)
	}
	if err := pf.Close(); err != nil {
		return fmt.Errorf("close pipeline file: %w", err)
	}

	if _, err := p.run(ctx, "pipeline", pf.Name()); err != nil {
		return err
	}

	st, err := os.Stat(req.Output)
	if err != nil {
		return ErrEngine{Op: "rasterize " + req.Dimension.Dimension, Err: fmt.Errorf("output %s was not created", req.Output)}
	}
	if st.Size() == 0 {
		return ErrEngine{Op: "rasterize " + req.Dimension.Dimension, Err: fmt.Errorf("output %s is empty", req.Output)}
	}
	return nil
}

func (p PDAL) gdalopts(base string) string {
	if len(p.WriterOpts) == 0 {
		return base
	}
	return base + "," + strings.Join(p.WriterOpts, ",")
}

func (p PDAL) run(ctx context.Context, args ...string) ([]byte, error) {
	if p.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.Timeout)
		defer cancel()
	}
	cmd := exec.CommandContext(ctx, p.binary(), args...)
	stdout, stderr := bytes.Buffer{}, bytes.Buffer{}
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	log.Logger(ctx).Sugar().Debugf("exec %s", shellescape.QuoteCommand(append([]string{p.binary()}, args...)))
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			err = ctx.Err()
		}
		return nil, ErrEngine{
			Op:     "pdal " + args[0],
			Stderr: strings.TrimSpace(stderr.String()),
			Err:    err,
		}
	}
	return stdout.Bytes(), nil
}
