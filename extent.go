package lasrender

// An Extent is the axis-aligned bounding box of a point cloud in its native
// coordinate system. It is resolved once per conversion job and never
// mutated afterwards.
type Extent struct {
	MinX, MinY float64
	MaxX, MaxY float64
	MinZ, MaxZ float64
}

func (e Extent) Width() float64 {
	return e.MaxX - e.MinX
}

func (e Extent) Height() float64 {
	return e.MaxY - e.MinY
}

func (e Extent) Depth() float64 {
	return e.MaxZ - e.MinZ
}

func (e Extent) Area() float64 {
	return e.Width() * e.Height()
}

// MaxDim returns the largest of the planar dimensions.
func (e Extent) MaxDim() float64 {
	if e.Width() > e.Height() {
		return e.Width()
	}
	return e.Height()
}

// A PointCloudSummary is the result of describing a point cloud through the
// metadata engine. Read-only input to the planners.
type PointCloudSummary struct {
	Extent     Extent
	PointCount uint64
}

// A CropWindow is a rectangular planar sub-region of an Extent. Windows
// handed to the dispatcher always satisfy MinX < MaxX and MinY < MaxY;
// degenerate windows are dropped at planning time. The zero value means "no
// crop" (render the whole extent).
type CropWindow struct {
	MinX, MaxX float64
	MinY, MaxY float64
}

func (w CropWindow) Empty() bool {
	return w.MaxX <= w.MinX || w.MaxY <= w.MinY
}

// Clamp restricts the window to the given extent.
func (w CropWindow) Clamp(e Extent) CropWindow {
	if w.MinX < e.MinX {
		w.MinX = e.MinX
	}
	if w.MinY < e.MinY {
		w.MinY = e.MinY
	}
	if w.MaxX > e.MaxX {
		w.MaxX = e.MaxX
	}
	if w.MaxY > e.MaxY {
		w.MaxY = e.MaxY
	}
	return w
}

// A ViewSpec is one planned sampling unit: either a grid tile or a
// perspective sample. AzimuthDeg and ElevationDeg are label metadata only:
// the render is always an orthographic top-down crop, the angles are
// embedded in output filenames for downstream provenance. Row and Col are
// populated for grid tiles.
type ViewSpec struct {
	Index        int
	Row, Col     int
	Crop         CropWindow
	Resolution   float64
	AzimuthDeg   float64
	ElevationDeg float64
}

// A RasterArtifact is one produced raster file. Artifacts with a zero
// ByteSize or an unreadable header never make it into the final output set.
type RasterArtifact struct {
	Path      string
	BandCount int
	ByteSize  int64
}
