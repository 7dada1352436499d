package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pointlab/lasrender"
)

var modeName string
var resolution float64
var multiview bool
var perspective bool
var tileSize float64
var overlap float64
var count int
var seed int64
var parallelism int
var toJPEG bool
var quality int

func init() {
	convertCmd.Flags().StringVar(&modeName, "mode", "intensity", "rasterization mode: intensity, rgb, elevation or count")
	convertCmd.Flags().Float64Var(&resolution, "resolution", 0.1, "pixel resolution in meters (0 = derive from point density)")
	convertCmd.Flags().BoolVar(&multiview, "multiview", false, "create a grid of overlapping tiles instead of a single image")
	convertCmd.Flags().BoolVar(&perspective, "perspective", false, "create synthetic viewpoint samples instead of a single image")
	convertCmd.Flags().Float64Var(&tileSize, "tile-size", 100, "tile size in meters for multiview mode")
	convertCmd.Flags().Float64Var(&overlap, "overlap", 0.3, "fractional overlap between tiles, 0.0-1.0")
	convertCmd.Flags().IntVar(&count, "count", 0, "target image count (tiles) or exact view count (perspective, default 30)")
	convertCmd.Flags().Int64Var(&seed, "seed", 0, "(advanced) fixed seed for perspective jitter")
	convertCmd.Flags().IntVar(&parallelism, "parallelism", 1, "number of concurrent engine dispatches")
	convertCmd.Flags().BoolVar(&toJPEG, "jpeg", false, "convert produced rasters to jpeg")
	convertCmd.Flags().IntVar(&quality, "quality", 95, "jpeg quality 1-100")

	jpegCmd.Flags().IntVar(&quality, "quality", 95, "jpeg quality 1-100")
	jpegCmd.Flags().StringVar(&jpegPattern, "pattern", "*.tif", "file pattern to convert")
}

var convertCmd = &cobra.Command{
	Use:   "convert input.las outputdir",
	Short: "convert a point cloud to one or many images",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if err := engine.Available(ctx); err != nil {
			return err
		}
		mode, err := lasrender.ParseRenderMode(modeName)
		if err != nil {
			return err
		}
		job := lasrender.Job{
			Source:      args[0],
			OutputDir:   args[1],
			Mode:        mode,
			Resolution:  resolution,
			Multiview:   multiview,
			Perspective: perspective,
			TileSize:    tileSize,
			Overlap:     overlap,
			Count:       count,
			Seed:        seed,
			Parallelism: parallelism,
			ConvertJPEG: toJPEG,
			Quality:     quality,
			Engine:      engine,
			Compositor:  lasrender.GDAL{},
			Converter:   lasrender.GDAL{},
		}
		res, err := job.Run(ctx)
		if err != nil {
			return err
		}
		for _, w := range res.Warnings {
			fmt.Fprintf(os.Stderr, "warning: %s\n", w)
		}
		fmt.Printf("created %d of %d images in %s\n", len(res.Artifacts), res.Planned, args[1])
		for _, a := range res.Artifacts {
			fmt.Println(a.Path)
		}
		return nil
	},
}

var infoCmd = &cobra.Command{
	Use:   "info input.las",
	Short: "print the spatial bounds and point count of a point cloud",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		summary, err := engine.Describe(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(summary)
	},
}

var jpegPattern string

var jpegCmd = &cobra.Command{
	Use:   "jpeg inputdir outputdir",
	Short: "convert rasters in a directory to jpeg",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		matches, err := filepath.Glob(filepath.Join(args[0], jpegPattern))
		if err != nil {
			return fmt.Errorf("scan %s: %w", args[0], err)
		}
		if len(matches) == 0 {
			return fmt.Errorf("no files matching %s in %s", jpegPattern, args[0])
		}
		if err := os.MkdirAll(args[1], 0o755); err != nil {
			return fmt.Errorf("create %s: %w", args[1], err)
		}
		converter := lasrender.GDAL{}
		converted := 0
		for _, src := range matches {
			dst := filepath.Join(args[1], lasrender.Stem(src)+".jpg")
			if err := converter.ToJPEG(ctx, src, dst, quality); err != nil {
				fmt.Fprintf(os.Stderr, "warning: %v\n", err)
				continue
			}
			converted++
			fmt.Println(dst)
		}
		if converted == 0 {
			return fmt.Errorf("no files converted")
		}
		return nil
	},
}

var alignCmd = &cobra.Command{
	Use:   "align input.las [outputdir]",
	Short: "copy a point cloud to align.las/align.laz for downstream georeferencing",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		input := args[0]
		ext := strings.ToLower(filepath.Ext(input))
		if ext != ".las" && ext != ".laz" {
			return fmt.Errorf("input must be a .las or .laz file, got %s", filepath.Base(input))
		}
		outDir := filepath.Dir(input)
		if len(args) == 2 {
			outDir = args[1]
			if err := os.MkdirAll(outDir, 0o755); err != nil {
				return fmt.Errorf("create %s: %w", outDir, err)
			}
		}
		src, err := os.Open(input)
		if err != nil {
			return fmt.Errorf("open %s: %w", input, err)
		}
		defer src.Close()
		alignPath := filepath.Join(outDir, "align"+ext)
		dst, err := os.Create(alignPath)
		if err != nil {
			return fmt.Errorf("create %s: %w", alignPath, err)
		}
		if _, err := io.Copy(dst, src); err != nil {
			dst.Close()
			return fmt.Errorf("copy to %s: %w", alignPath, err)
		}
		if err := dst.Close(); err != nil {
			return fmt.Errorf("close %s: %w", alignPath, err)
		}
		fmt.Println(alignPath)
		return nil
	},
}
