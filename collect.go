package lasrender

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/tiff"
	_ "github.com/google/tiff/bigtiff"
	"go.airbusds-geo.com/log"
)

// A Collector reconciles the files actually present in an output directory
// against what a job planned. Zero-byte files and files failing a minimal
// format check are discarded with a warning; a non-empty subset of the
// expected count is a partial result, not a failure.
type Collector struct {
	Dir string
	// Pattern is the naming-convention glob, relative to Dir.
	Pattern string
}

// Collect scans Dir for valid artifacts matching Pattern. The returned
// warnings describe discarded files and any shortfall against expected; the
// error is only set when the directory itself cannot be scanned.
func (c Collector) Collect(ctx context.Context, expected int) ([]RasterArtifact, []string, error) {
	matches, err := filepath.Glob(filepath.Join(c.Dir, c.Pattern))
	if err != nil {
		return nil, nil, fmt.Errorf("scan %s: %w", c.Dir, err)
	}

	var artifacts []RasterArtifact
	var warnings []string
	for _, path := range matches {
		st, err := os.Stat(path)
		if err != nil || st.IsDir() {
			continue
		}
		if st.Size() == 0 {
			warnings = append(warnings, fmt.Sprintf("%s is empty (0 bytes)", filepath.Base(path)))
			continue
		}
		bands, err := inspect(path)
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("%s: %v", filepath.Base(path), err))
			continue
		}
		artifacts = append(artifacts, RasterArtifact{
			Path:      path,
			BandCount: bands,
			ByteSize:  st.Size(),
		})
	}

	if expected > 0 && len(artifacts) > 0 && len(artifacts) < expected {
		warnings = append(warnings, fmt.Sprintf("partial result: %d of %d planned images produced", len(artifacts), expected))
	}
	for _, w := range warnings {
		log.Logger(ctx).Sugar().Warnf("collect %s: %s", c.Dir, w)
	}
	return artifacts, warnings, nil
}

// tag 277
type samplesIFD struct {
	SamplesPerPixel uint16 `tiff:"field,tag=277"`
}

// inspect runs the minimal per-format validity check and returns the band
// count where the format exposes it.
func inspect(path string) (int, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jpg", ".jpeg":
		return inspectJPEG(path)
	default:
		return inspectTIFF(path)
	}
}

func inspectTIFF(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()
	t, err := tiff.Parse(f, nil, nil)
	if err != nil {
		return 0, fmt.Errorf("not a valid tiff: %w", err)
	}
	ifds := t.IFDs()
	if len(ifds) == 0 {
		return 0, fmt.Errorf("tiff has no image directory")
	}
	s := samplesIFD{}
	if err := tiff.UnmarshalIFD(ifds[0], &s); err != nil {
		return 0, fmt.Errorf("unreadable tiff directory: %w", err)
	}
	if s.SamplesPerPixel == 0 {
		return 1, nil
	}
	return int(s.SamplesPerPixel), nil
}

func inspectJPEG(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()
	marker := make([]byte, 2)
	if _, err := io.ReadFull(f, marker); err != nil {
		return 0, fmt.Errorf("unreadable header: %w", err)
	}
	if marker[0] != 0xFF || marker[1] != 0xD8 {
		return 0, fmt.Errorf("not a valid jpeg: missing SOI marker")
	}
	// A marker check cannot tell the band count.
	return 0, nil
}
