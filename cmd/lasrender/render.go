package main

import (
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pointlab/lasrender"
)

var renderMinX, renderMaxX, renderMinY, renderMaxY float64
var renderResolution float64
var renderMode string
var renderIndex int
var renderAz, renderEl float64

func init() {
	renderCmd.Flags().Float64Var(&renderMinX, "minx", 0, "crop window min x")
	renderCmd.Flags().Float64Var(&renderMaxX, "maxx", 0, "crop window max x")
	renderCmd.Flags().Float64Var(&renderMinY, "miny", 0, "crop window min y")
	renderCmd.Flags().Float64Var(&renderMaxY, "maxy", 0, "crop window max y")
	renderCmd.Flags().Float64Var(&renderResolution, "resolution", 0, "pixel resolution in meters")
	renderCmd.MarkFlagRequired("resolution")
	renderCmd.Flags().StringVar(&renderMode, "mode", "intensity", "rasterization mode")
	renderCmd.Flags().IntVar(&renderIndex, "index", 0, "view index")
	renderCmd.Flags().Float64Var(&renderAz, "az", 0, "azimuth label in degrees")
	renderCmd.Flags().Float64Var(&renderEl, "el", 0, "elevation label in degrees")
}

// renderCmd is the workflow worker: it renders exactly one planned view and
// drops the result at a local path or gs:// destination.
var renderCmd = &cobra.Command{
	Use:   "render dstfile input.las",
	Short: "render a single planned view (workflow worker)",
	Args:  cobra.ExactArgs(2),
	PreRunE: func(cmd *cobra.Command, args []string) error {
		if strings.HasPrefix(args[0], "gs://") {
			return initRemote(cmd.Context())
		}
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		dst := args[0]
		src := args[1]

		mode, err := lasrender.ParseRenderMode(renderMode)
		if err != nil {
			return err
		}
		view := lasrender.ViewSpec{
			Index: renderIndex,
			Crop: lasrender.CropWindow{
				MinX: renderMinX, MaxX: renderMaxX,
				MinY: renderMinY, MaxY: renderMaxY,
			},
			Resolution:   renderResolution,
			AzimuthDeg:   renderAz,
			ElevationDeg: renderEl,
		}

		tdir, err := os.MkdirTemp(".", "render-*")
		if err != nil {
			return fmt.Errorf("create scratch dir: %w", err)
		}
		defer os.RemoveAll(tdir)

		local := filepath.Join(tdir, path.Base(dst))
		dispatcher := &lasrender.Dispatcher{
			Engine:     engine,
			Compositor: lasrender.GDAL{},
			WorkDir:    tdir,
		}
		outcome := dispatcher.Dispatch(ctx, src, view, mode.Request(), local)
		if outcome.Err != nil {
			return fmt.Errorf("render view %d: %w", view.Index, outcome.Err)
		}

		if strings.HasPrefix(dst, "gs://") {
			if err := adstcl.UploadFromFile(ctx, dst, local); err != nil {
				return fmt.Errorf("upload %s: %w", dst, err)
			}
			return nil
		}
		if err := os.Rename(local, dst); err != nil {
			return fmt.Errorf("rename %s->%s: %w", local, dst, err)
		}
		return nil
	},
}
