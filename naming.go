package lasrender

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
)

// Output filenames are a compatibility surface: downstream collectors match
// on them, so every format below must be reproduced exactly.

// TileFilename names one grid tile output.
func TileFilename(base string, mode RenderMode, row, col int) string {
	return fmt.Sprintf("%s_%s_tile_r%02d_c%02d.tif", base, mode, row, col)
}

// ViewFilename names one perspective sample output. The embedded view number
// is 1-based even though ViewSpec indices start at 0; existing collectors
// expect view_001 to be the first view.
func ViewFilename(base string, index int, azimuthDeg, elevationDeg float64) string {
	return fmt.Sprintf("%s_view_%03d_az%d_el%d.tif", base, index+1, int(azimuthDeg), int(elevationDeg))
}

// SingleFilename names the whole-extent single-image output.
func SingleFilename(base string, mode RenderMode, resolution float64) string {
	return fmt.Sprintf("%s_%s_%sm.tif", base, mode, strconv.FormatFloat(resolution, 'g', -1, 64))
}

// TilePattern returns the glob matching all tile outputs of a conversion.
// Indices are zero-padded to two digits but widen past row or column 99, so
// the pattern must not fix their width.
func TilePattern(base string, mode RenderMode) string {
	return fmt.Sprintf("%s_%s_tile_r*_c*.tif", base, mode)
}

// ViewPattern returns the glob matching all perspective outputs of a
// conversion.
func ViewPattern(base string) string {
	return fmt.Sprintf("%s_view_*_az*_el*.tif", base)
}

// SinglePattern returns the glob matching the single-image output.
func SinglePattern(base string, mode RenderMode) string {
	return fmt.Sprintf("%s_%s_*m.tif", base, mode)
}

// Stem returns the filename without directory and extension, the {base} used
// throughout the naming convention.
func Stem(path string) string {
	name := filepath.Base(path)
	return strings.TrimSuffix(name, filepath.Ext(name))
}
