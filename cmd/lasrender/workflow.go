package main

import (
	"fmt"
	"path"
	"strings"

	"cloud.google.com/go/storage"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	adst "go.airbusds-geo.com/gcp/storage"
	"go.airbusds-geo.com/log"
	"google.golang.org/api/iterator"
	k8sv1 "k8s.io/api/core/v1"
	"k8s.io/apimachinery/pkg/api/resource"
	k8smeta "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/util/intstr"

	wfv1 "github.com/argoproj/argo-workflows/v3/pkg/apis/workflow/v1alpha1"
	"sigs.k8s.io/yaml"

	"github.com/pointlab/lasrender"
)

var defaultImage string = "build-error-this-variable-should-have-been-set-on-build"
var dockerImage string
var jobid string
var shell bool
var expected int

func init() {
	workflowCmd.Flags().StringVar(&modeName, "mode", "intensity", "rasterization mode: intensity, rgb, elevation or count")
	workflowCmd.Flags().Float64Var(&resolution, "resolution", 0, "pixel resolution in meters (0 = derive from point density)")
	workflowCmd.Flags().BoolVar(&multiview, "multiview", false, "fan out a grid of overlapping tiles")
	workflowCmd.Flags().BoolVar(&perspective, "perspective", false, "fan out synthetic viewpoint samples")
	workflowCmd.Flags().Float64Var(&tileSize, "tile-size", 100, "tile size in meters for multiview mode")
	workflowCmd.Flags().Float64Var(&overlap, "overlap", 0.3, "fractional overlap between tiles, 0.0-1.0")
	workflowCmd.Flags().IntVar(&count, "count", 0, "target image count (tiles) or exact view count (perspective, default 30)")
	workflowCmd.Flags().Int64Var(&seed, "seed", 0, "(advanced) fixed seed for perspective jitter")
	workflowCmd.Flags().StringVar(&jobid, "jobID", "", "(advanced) use predefined job identifier")
	workflowCmd.Flags().StringVar(&dockerImage, "dockerImage", defaultImage, "docker image for workers")
	workflowCmd.Flags().BoolVar(&shell, "shell", false, "output shell script instead of argo workflow")

	collectCmd.Flags().IntVar(&expected, "expected", 0, "number of rasters the plan should have produced")
}

func int32Ptr(val int32) *int32 {
	a := val
	return &a
}

func intOrStringPtr(val int) *intstr.IntOrString {
	a := intstr.FromInt(val)
	return &a
}

func resourcePtr(val string) *resource.Quantity {
	res := resource.MustParse(val)
	return &res
}

func printCommand(cmd []string) string {
	sb := strings.Builder{}
	for i, c := range cmd {
		if i != 0 {
			fmt.Fprintf(&sb, " ")
		}
		fmt.Fprintf(&sb, "%q", c)
	}
	return sb.String()
}

// workflowCmd plans the views locally and emits an argo workflow running one
// render worker per view, followed by a collect step over the destination
// prefix.
var workflowCmd = &cobra.Command{
	Use:   "workflow gs://bucket/prefix input.las",
	Short: "create workflow rendering input.las to rasters under gs://",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		dstPrefix := strings.TrimSuffix(args[0], "/")
		input := args[1]

		if jobid == "" {
			jobid = uuid.New().String()
		}
		if err := engine.Available(ctx); err != nil {
			return err
		}
		mode, err := lasrender.ParseRenderMode(modeName)
		if err != nil {
			return err
		}
		summary, err := engine.Describe(ctx, input)
		if err != nil {
			return fmt.Errorf("describe %s: %w", input, err)
		}
		if resolution <= 0 {
			resolution = lasrender.AutoResolution(summary)
		}
		req, downgraded, err := lasrender.ResolveChannel(ctx, engine, input, mode)
		if err != nil {
			return fmt.Errorf("resolve mode %s: %w", mode, err)
		}
		if downgraded {
			log.Logger(ctx).Sugar().Warnf("mode %s downgraded to %s", mode, req.Mode)
		}

		views, err := planWorkflowViews(summary.Extent)
		if err != nil {
			return err
		}
		base := lasrender.Stem(input)

		wf := &wfv1.Workflow{
			ObjectMeta: k8smeta.ObjectMeta{
				GenerateName: "lasrender-",
			},
			TypeMeta: k8smeta.TypeMeta{
				APIVersion: "argoproj.io/v1alpha1",
				Kind:       "Workflow",
			},
			Spec: wfv1.WorkflowSpec{
				TTLStrategy: &wfv1.TTLStrategy{
					SecondsAfterSuccess: int32Ptr(3600),
				},
				Entrypoint: "lasrender",
				TemplateDefaults: &wfv1.Template{
					Volumes: []k8sv1.Volume{
						{
							Name: "scratch",
							VolumeSource: k8sv1.VolumeSource{
								EmptyDir: &k8sv1.EmptyDirVolumeSource{
									SizeLimit: resourcePtr("2G"),
								},
							},
						},
					},
					Container: &k8sv1.Container{
						ImagePullPolicy: k8sv1.PullAlways,
						Resources: k8sv1.ResourceRequirements{
							Requests: k8sv1.ResourceList{
								k8sv1.ResourceCPU:    resource.MustParse("2"),
								k8sv1.ResourceMemory: resource.MustParse("4G"),
							},
						},
						WorkingDir: "/scratch",
						VolumeMounts: []k8sv1.VolumeMount{
							{
								Name:      "scratch",
								MountPath: "/scratch",
							},
						},
					},
				},
				Templates: []wfv1.Template{
					{Name: "lasrender"},
				},
			},
		}

		ps := wfv1.ParallelSteps{}
		for _, view := range views {
			var name string
			switch {
			case perspective:
				name = lasrender.ViewFilename(base, view.Index, view.AzimuthDeg, view.ElevationDeg)
			case multiview:
				name = lasrender.TileFilename(base, req.Mode, view.Row, view.Col)
			default:
				name = lasrender.SingleFilename(base, req.Mode, view.Resolution)
			}
			dst := fmt.Sprintf("%s/%s/%s", dstPrefix, jobid, name)
			command := []string{"lasrender", "render", dst, input,
				"--mode", req.Mode.String(),
				"--index", fmt.Sprintf("%d", view.Index),
				"--resolution", fmt.Sprintf("%g", view.Resolution),
				"--az", fmt.Sprintf("%g", view.AzimuthDeg),
				"--el", fmt.Sprintf("%g", view.ElevationDeg),
			}
			if !view.Crop.Empty() {
				command = append(command,
					"--minx", fmt.Sprintf("%g", view.Crop.MinX),
					"--maxx", fmt.Sprintf("%g", view.Crop.MaxX),
					"--miny", fmt.Sprintf("%g", view.Crop.MinY),
					"--maxy", fmt.Sprintf("%g", view.Crop.MaxY))
			}
			if shell {
				fmt.Println(printCommand(command))
			}
			ps.Steps = append(ps.Steps, wfv1.WorkflowStep{
				Name: fmt.Sprintf("render-%03d", view.Index),
				Inline: &wfv1.Template{
					RetryStrategy: &wfv1.RetryStrategy{
						Limit: intOrStringPtr(5),
					},
					Container: &k8sv1.Container{
						Name:    "render",
						Image:   dockerImage,
						Command: command,
					},
				},
			})
		}
		wf.Spec.Templates[0].Steps = append(wf.Spec.Templates[0].Steps, ps)

		collect := []string{"lasrender", "collect",
			fmt.Sprintf("%s/%s", dstPrefix, jobid),
			"--expected", fmt.Sprintf("%d", len(views))}
		if shell {
			fmt.Println(printCommand(collect))
		}
		wf.Spec.Templates[0].Steps = append(wf.Spec.Templates[0].Steps,
			wfv1.ParallelSteps{
				Steps: []wfv1.WorkflowStep{
					{
						Name: "collect",
						Inline: &wfv1.Template{
							RetryStrategy: &wfv1.RetryStrategy{
								Limit: intOrStringPtr(5),
							},
							Metadata: wfv1.Metadata{
								Annotations: map[string]string{
									"cluster-autoscaler.kubernetes.io/safe-to-evict": "false",
								},
							},
							Container: &k8sv1.Container{
								Name:    "collect",
								Image:   dockerImage,
								Command: collect,
							},
						},
					},
				},
			})

		if !shell {
			yb, err := yaml.Marshal(wf)
			if err != nil {
				panic(err)
			}
			fmt.Println(string(yb))
		}
		return nil
	},
}

func planWorkflowViews(extent lasrender.Extent) ([]lasrender.ViewSpec, error) {
	switch {
	case perspective:
		n := count
		if n <= 0 {
			n = 30
		}
		opts := []lasrender.ViewSamplerOption{}
		if seed != 0 {
			opts = append(opts, lasrender.Seed(seed))
		}
		sampler, err := lasrender.NewViewSampler(n, resolution, opts...)
		if err != nil {
			return nil, err
		}
		return sampler.Views(extent), nil
	case multiview:
		opts := []lasrender.TilePlannerOption{
			lasrender.TileSize(tileSize),
			lasrender.Overlap(overlap),
		}
		if count > 0 {
			opts = append(opts, lasrender.TargetImageCount(count))
		}
		planner, err := lasrender.NewTilePlanner(extent, opts...)
		if err != nil {
			return nil, err
		}
		views := planner.Tiles()
		for i := range views {
			views[i].Resolution = resolution
		}
		return views, nil
	default:
		return []lasrender.ViewSpec{{Index: 0, Resolution: resolution}}, nil
	}
}

// collectCmd reconciles the rasters a workflow run left under a gs:// prefix.
var collectCmd = &cobra.Command{
	Use:   "collect gs://bucket/prefix",
	Short: "list and verify rasters produced under gs://",
	Args:  cobra.ExactArgs(1),
	PreRunE: func(cmd *cobra.Command, args []string) error {
		return initRemote(cmd.Context())
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		bucket, prefix, err := adst.Parse(args[0])
		if err != nil {
			return fmt.Errorf("invalid prefix %s: %w", args[0], err)
		}
		it := stcl.Bucket(bucket).Objects(ctx, &storage.Query{Prefix: prefix})
		collected := 0
		for {
			attrs, err := it.Next()
			if err == iterator.Done {
				break
			}
			if err != nil {
				return fmt.Errorf("list %s: %w", args[0], err)
			}
			ext := strings.ToLower(path.Ext(attrs.Name))
			if ext != ".tif" && ext != ".jpg" {
				continue
			}
			if attrs.Size == 0 {
				log.Logger(ctx).Sugar().Warnf("skipping empty raster gs://%s/%s", bucket, attrs.Name)
				continue
			}
			fmt.Printf("gs://%s/%s\n", bucket, attrs.Name)
			collected++
		}
		if collected == 0 {
			return fmt.Errorf("no rasters found under %s", args[0])
		}
		if expected > 0 && collected < expected {
			log.Logger(ctx).Sugar().Warnf("partial result: %d of %d rasters present", collected, expected)
		}
		return nil
	},
}
