package lasrender

import (
	"context"
	"fmt"

	"go.airbusds-geo.com/log"
)

// RenderMode selects the value dimension(s) a raster is built from.
type RenderMode int

const (
	// Intensity renders the mean per-cell return intensity (16 bit).
	Intensity RenderMode = iota
	// TrueColor renders a 3-band RGB composite from the Red/Green/Blue
	// dimensions, rescaled to 8 bit.
	TrueColor
	// Elevation renders the mean per-cell Z value (32 bit float).
	Elevation
	// Density renders the per-cell point count (32 bit unsigned).
	Density
)

// String returns the mode token used in output filenames. These tokens are
// a compatibility surface for downstream collectors and must not change.
func (m RenderMode) String() string {
	switch m {
	case TrueColor:
		return "rgb"
	case Elevation:
		return "elevation"
	case Density:
		return "count"
	default:
		return "intensity"
	}
}

// ParseRenderMode accepts the filename tokens plus a couple of spelled-out
// aliases.
func ParseRenderMode(s string) (RenderMode, error) {
	switch s {
	case "intensity":
		return Intensity, nil
	case "rgb", "true-color", "truecolor":
		return TrueColor, nil
	case "elevation":
		return Elevation, nil
	case "count", "density":
		return Density, nil
	}
	return Intensity, invalidParameter("unknown render mode %q (want intensity, rgb, elevation or count)", s)
}

// An Encoding fixes the numeric type, aggregation statistic and compression
// policy of one rasterized band.
type Encoding struct {
	DataType   string // writers.gdal data_type
	OutputType string // aggregation statistic: mean or count
	GDALOpts   string // creation options for the band file
}

var (
	// Intensity and color bands come out of 16-bit LAS attributes; the
	// horizontal predictor is valid for integer data.
	encodingUint16Mean = Encoding{
		DataType:   "uint16_t",
		OutputType: "mean",
		GDALOpts:   "COMPRESS=DEFLATE,PREDICTOR=2,BIGTIFF=YES",
	}
	// Elevation needs float32 and must not use PREDICTOR=2: lossless float
	// compression needs different codec settings than integer data.
	encodingFloat32Mean = Encoding{
		DataType:   "float32",
		OutputType: "mean",
		GDALOpts:   "COMPRESS=DEFLATE,BIGTIFF=YES",
	}
	encodingUint32Count = Encoding{
		DataType:   "uint32_t",
		OutputType: "count",
		GDALOpts:   "COMPRESS=DEFLATE,PREDICTOR=2,BIGTIFF=YES",
	}
)

// A DimensionRequest asks the engine for one single-band raster of the named
// point dimension. An empty Dimension means the statistic needs no source
// dimension (point counting).
type DimensionRequest struct {
	Dimension string
	Encoding  Encoding
}

// A ChannelRequest is the total mapping of a RenderMode to the engine calls
// that produce it. TrueColor maps to three dimension requests that must be
// stacked; every other mode maps to exactly one.
type ChannelRequest struct {
	Mode       RenderMode
	Dimensions []DimensionRequest
}

func (r ChannelRequest) Composite() bool {
	return len(r.Dimensions) > 1
}

// Fallback returns the request substituted when a composite request cannot
// be satisfied. There is a single fallback hop: TrueColor degrades to
// Intensity, nothing else degrades.
func (r ChannelRequest) Fallback() (ChannelRequest, bool) {
	if r.Mode == TrueColor {
		return Intensity.Request(), true
	}
	return ChannelRequest{}, false
}

// Request maps the mode to its dimension requests.
func (m RenderMode) Request() ChannelRequest {
	switch m {
	case TrueColor:
		return ChannelRequest{Mode: TrueColor, Dimensions: []DimensionRequest{
			{Dimension: "Red", Encoding: encodingUint16Mean},
			{Dimension: "Green", Encoding: encodingUint16Mean},
			{Dimension: "Blue", Encoding: encodingUint16Mean},
		}}
	case Elevation:
		return ChannelRequest{Mode: Elevation, Dimensions: []DimensionRequest{
			{Dimension: "Z", Encoding: encodingFloat32Mean},
		}}
	case Density:
		return ChannelRequest{Mode: Density, Dimensions: []DimensionRequest{
			{Encoding: encodingUint32Count},
		}}
	default:
		return ChannelRequest{Mode: Intensity, Dimensions: []DimensionRequest{
			{Dimension: "Intensity", Encoding: encodingUint16Mean},
		}}
	}
}

// TrueColor composites are stacked then globally rescaled with a fixed
// linear ramp so colors stay visually comparable across tiles. Not a
// percentile stretch.
var (
	trueColorInputRange  = [2]float64{0, 65535}
	trueColorOutputRange = [2]float64{0, 255}
)

// A CapabilityProbe reports whether a point cloud exposes the named value
// dimensions.
type CapabilityProbe interface {
	HasDimensions(ctx context.Context, pointcloud string, dims ...string) (bool, error)
}

// ResolveChannel maps a requested mode to a ChannelRequest against the
// capabilities of the given point cloud. A TrueColor request against a cloud
// without Red/Green/Blue resolves to Intensity; the downgrade is reported
// through the returned flag and logged, it is not an error.
func ResolveChannel(ctx context.Context, probe CapabilityProbe, pointcloud string, mode RenderMode) (ChannelRequest, bool, error) {
	if mode != TrueColor {
		return mode.Request(), false, nil
	}
	hasRGB, err := probe.HasDimensions(ctx, pointcloud, "Red", "Green", "Blue")
	if err != nil {
		return ChannelRequest{}, false, fmt.Errorf("probe color dimensions: %w", err)
	}
	if !hasRGB {
		log.Logger(ctx).Sugar().Warnf("%s has no Red/Green/Blue dimensions, downgrading rgb to intensity", pointcloud)
		return Intensity.Request(), true, nil
	}
	return TrueColor.Request(), false, nil
}
