package lasrender

import (
	"context"
	"fmt"
	"os"

	"github.com/airbusgeo/godal"
)

// GDAL implements band stacking and photographic conversion on top of the
// godal bindings. Callers must have registered the GDAL drivers
// (godal.RegisterAll or equivalent) before use.
type GDAL struct{}

// StackAndScale builds a band-separate VRT over the inputs and translates it
// to a single multi-band raster, linearly rescaling inputRange to
// outputRange. The output is photometrically tagged RGB when three bands are
// stacked, which is the only composite this system produces.
func (GDAL) StackAndScale(ctx context.Context, bands []string, output string, inputRange, outputRange [2]float64) error {
	if len(bands) == 0 {
		return invalidParameter("no bands to stack")
	}
	vrtName := output + ".vrt"
	vrt, err := godal.BuildVRT(vrtName, bands, []string{"-separate"})
	if err != nil {
		return ErrEngine{Op: "buildvrt " + vrtName, Err: err}
	}
	defer os.Remove(vrtName)
	if err := vrt.Close(); err != nil {
		return ErrEngine{Op: "close vrt " + vrtName, Err: err}
	}

	src, err := godal.Open(vrtName, godal.RasterOnly())
	if err != nil {
		return ErrEngine{Op: "open vrt " + vrtName, Err: err}
	}
	defer src.Close()

	switches := []string{
		"-ot", "Byte",
		"-scale",
		fmt.Sprintf("%g", inputRange[0]), fmt.Sprintf("%g", inputRange[1]),
		fmt.Sprintf("%g", outputRange[0]), fmt.Sprintf("%g", outputRange[1]),
	}
	copts := []string{"COMPRESS=DEFLATE", "PREDICTOR=2", "BIGTIFF=YES"}
	if len(bands) == 3 {
		copts = append(copts, "PHOTOMETRIC=RGB")
	}
	dst, err := src.Translate(output, switches, godal.CreationOption(copts...), godal.GTiff)
	if err != nil {
		return ErrEngine{Op: "stack " + output, Err: err}
	}
	if err := dst.Close(); err != nil {
		return ErrEngine{Op: "close " + output, Err: err}
	}
	return nil
}

// ToJPEG converts a raster to an 8-bit JPEG, stretching each band to its own
// value range so sparse 16/32-bit rasters stay visible.
func (GDAL) ToJPEG(ctx context.Context, raster, output string, quality int) error {
	if quality <= 0 || quality > 100 {
		quality = 95
	}
	src, err := godal.Open(raster, godal.RasterOnly())
	if err != nil {
		return ErrConversion{Path: raster, Err: err}
	}
	defer src.Close()

	switches := []string{"-of", "JPEG", "-ot", "Byte", "-scale"}
	dst, err := src.Translate(output, switches,
		godal.CreationOption(fmt.Sprintf("QUALITY=%d", quality)))
	if err != nil {
		return ErrConversion{Path: raster, Err: err}
	}
	if err := dst.Close(); err != nil {
		return ErrConversion{Path: output, Err: err}
	}
	return nil
}
