package lasrender

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubPDAL writes a shell script standing in for the pdal binary.
func stubPDAL(t *testing.T, script string) PDAL {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("stub engine scripts need a unix shell")
	}
	path := filepath.Join(t.TempDir(), "pdal")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+script), 0o755))
	return PDAL{Path: path}
}

func TestPDALDescribe(t *testing.T) {
	engine := stubPDAL(t, `cat <<EOF
{"summary": {"bounds": {"minx": 1, "miny": 2, "minz": 3, "maxx": 101, "maxy": 202, "maxz": 53}, "num_points": 123456}}
EOF`)
	src := testSource(t)

	summary, err := engine.Describe(context.Background(), src)
	require.NoError(t, err)
	assert.Equal(t, uint64(123456), summary.PointCount)
	assert.Equal(t, 100.0, summary.Extent.Width())
	assert.Equal(t, 200.0, summary.Extent.Height())
	assert.Equal(t, 50.0, summary.Extent.Depth())
}

func TestPDALDescribeCountFallback(t *testing.T) {
	// older engine versions report "count" instead of "num_points"
	engine := stubPDAL(t, `echo '{"summary": {"bounds": {"maxx": 10, "maxy": 10}, "count": 42}}'`)

	summary, err := engine.Describe(context.Background(), testSource(t))
	require.NoError(t, err)
	assert.Equal(t, uint64(42), summary.PointCount)
}

func TestPDALDescribeMissingFile(t *testing.T) {
	engine := stubPDAL(t, `echo '{}'`)
	_, err := engine.Describe(context.Background(), filepath.Join(t.TempDir(), "missing.las"))
	assert.ErrorAs(t, err, &ErrNotFound{})
}

func TestPDALHasDimensions(t *testing.T) {
	engine := stubPDAL(t, `echo '{"metadata": {"dimensions": "X, Y, Z, Intensity, Red, Green, Blue"}}'`)
	src := testSource(t)

	ok, err := engine.HasDimensions(context.Background(), src, "Red", "Green", "Blue")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = engine.HasDimensions(context.Background(), src, "Classification")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestPDALFailureCarriesStderr(t *testing.T) {
	engine := stubPDAL(t, `echo "PDAL: readers.las: no such file" >&2; exit 1`)

	_, err := engine.Describe(context.Background(), testSource(t))
	require.Error(t, err)
	var engErr ErrEngine
	require.ErrorAs(t, err, &engErr)
	assert.Equal(t, "pdal info", engErr.Op)
	assert.Contains(t, engErr.Stderr, "no such file")
}

func TestPDALGDALOpts(t *testing.T) {
	p := PDAL{}
	assert.Equal(t, "COMPRESS=DEFLATE", p.gdalopts("COMPRESS=DEFLATE"))

	p.WriterOpts = []string{"TILED=YES", "NUM_THREADS=4"}
	assert.Equal(t, "COMPRESS=DEFLATE,TILED=YES,NUM_THREADS=4", p.gdalopts("COMPRESS=DEFLATE"))
}
