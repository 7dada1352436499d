package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cloud.google.com/go/storage"
	"github.com/airbusgeo/godal"
	"github.com/airbusgeo/osio"
	"github.com/airbusgeo/osio/gcs"
	shellwords "github.com/mattn/go-shellwords"
	"github.com/spf13/cobra"
	adst "go.airbusds-geo.com/gcp/storage"
	"go.airbusds-geo.com/log"

	"github.com/pointlab/lasrender"
)

var stcl *storage.Client
var adstcl *adst.Client

var verbose bool
var pdalPath string
var engineTimeout time.Duration
var gdalOpts string
var startTime time.Time

var engine lasrender.PDAL

var rootCmd = &cobra.Command{
	Use:   "lasrender",
	Short: "point cloud to photogrammetry imagery cli",
	CompletionOptions: cobra.CompletionOptions{
		DisableDefaultCmd: true,
	},
	SilenceUsage: true,

	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		startTime = time.Now()
		if !verbose {
			os.Setenv("LOGLEVEL", "info")
			log.Structured()
		}
		writerOpts, err := shellwords.Parse(gdalOpts)
		if err != nil {
			return fmt.Errorf("invalid gdalopts: %w", err)
		}
		engine = lasrender.PDAL{
			Path:       pdalPath,
			Timeout:    engineTimeout,
			WriterOpts: writerOpts,
		}
		godal.RegisterAll()
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, _ []string) {
		log.Logger(cmd.Context()).Sugar().Debugf("command %s took %.1fs",
			cmd.Name(), time.Since(startTime).Seconds())
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&verbose, "verbose", false, "verbose output")
	rootCmd.PersistentFlags().StringVar(&pdalPath, "pdal", "pdal", "pdal binary")
	rootCmd.PersistentFlags().DurationVar(&engineTimeout, "engineTimeout", 10*time.Minute, "timeout per external engine call")
	rootCmd.PersistentFlags().StringVar(&gdalOpts, "gdalopts", "", "extra writers.gdal creation options, e.g. \"NUM_THREADS=4 SPARSE_OK=TRUE\"")
	rootCmd.AddCommand(convertCmd, infoCmd, jpegCmd, alignCmd, renderCmd, workflowCmd, collectCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

// initRemote wires the gs:// plumbing: a storage client for uploads and an
// osio adapter so godal can read gs:// rasters directly.
func initRemote(ctx context.Context) error {
	var err error
	if stcl, err = storage.NewClient(ctx); err != nil {
		return fmt.Errorf("storage.newclient: %w", err)
	}
	if adstcl, err = adst.New(ctx, adst.WithStorageClient(stcl)); err != nil {
		return fmt.Errorf("ads storage.new: %w", err)
	}
	gcsh, err := gcs.Handle(ctx, gcs.GCSClient(stcl))
	if err != nil {
		return fmt.Errorf("gcs.handle: %w", err)
	}
	gcsa, err := osio.NewAdapter(gcsh)
	if err != nil {
		return fmt.Errorf("osio.new: %w", err)
	}
	if err := godal.RegisterVSIHandler("gs://", gcsa); err != nil {
		return fmt.Errorf("register osio: %w", err)
	}
	return nil
}
