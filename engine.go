package lasrender

import "context"

// A RasterRequest asks for one single-band raster of a point cloud. A nil
// Crop renders the whole extent.
type RasterRequest struct {
	Source     string
	Output     string
	Crop       *CropWindow
	Resolution float64
	Dimension  DimensionRequest
}

// A Rasterizer is the external rasterization engine. Implementations shell
// out to a heavyweight process; every call must honor the context and treat
// a timeout as a plain failure.
type Rasterizer interface {
	CapabilityProbe

	// Describe returns the spatial bounds and point count of a point cloud.
	Describe(ctx context.Context, pointcloud string) (PointCloudSummary, error)

	// Rasterize produces one single-band raster file. The call fails if the
	// engine errors out or leaves the output missing or empty.
	Rasterize(ctx context.Context, req RasterRequest) error
}

// A Compositor stacks single-band rasters into one multi-band raster and
// rescales the value domain.
type Compositor interface {
	StackAndScale(ctx context.Context, bands []string, output string, inputRange, outputRange [2]float64) error
}

// A Converter turns a raster into a photographic format for pipelines that
// cannot ingest GeoTIFF.
type Converter interface {
	ToJPEG(ctx context.Context, raster, output string, quality int) error
}
