package cli

import (
	"context"
	"fmt"
	"image"
	"os"
	"strings"
	"sync/atomic"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	frameright "github.com/menta2k/img-frameright"
	"github.com/menta2k/img-frameright/internal/config"
	"github.com/menta2k/img-frameright/internal/utils"
	"github.com/menta2k/img-frameright/pkg/geometry"
	"github.com/menta2k/img-frameright/pkg/processing"
	"github.com/menta2k/img-frameright/pkg/regions"
)

// renderOpts holds the command-line flags for the render command. Unset
// flags fall back to the render section of the configuration.
type renderOpts struct {
	in       string   // image file, directory or URL
	regions  string   // image-regions JSON or a file holding it
	boxes    []string // box sizes, WxH
	regionID string   // image-region-id override
	out      string   // output directory
	prefix   string   // output filename prefix
	ext      string   // output format: jpg, png, webp
	quality  int      // jpg/webp quality
	lossless bool     // lossless webp
	debug    bool     // also write region overlays
	workers  int      // images rendered concurrently
}

func newRenderCmd() *cobra.Command {
	var opts renderOpts

	cmd := &cobra.Command{
		Use:   "render",
		Short: "Write preview images of how the image fits each box",
		Example: `  frameright render --in photo.jpg --regions regions.json --box 400x300,300x400 --out previews
  frameright render --in ./photos --regions regions.json --box 1200x630 --ext webp --debug`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			applyRenderConfig(cmd, &opts, configFromContext(cmd.Context()).Render)
			return runRender(cmd.Context(), &opts)
		},
	}

	cmd.Flags().StringVarP(&opts.in, "in", "i", "", "input image, directory or URL (required)")
	cmd.Flags().StringVarP(&opts.regions, "regions", "r", "", "image-regions JSON or file")
	cmd.Flags().StringSliceVarP(&opts.boxes, "box", "b", nil, "box size(s), WxH (repeatable or comma-separated)")
	cmd.Flags().StringVar(&opts.regionID, "region-id", "", "force a region by id")
	cmd.Flags().StringVarP(&opts.out, "out", "o", "", "output directory")
	cmd.Flags().StringVar(&opts.prefix, "prefix", "", "output filename prefix")
	cmd.Flags().StringVar(&opts.ext, "ext", "", "output format: jpg, png, webp")
	cmd.Flags().IntVar(&opts.quality, "quality", 0, "jpg/webp quality (1-100)")
	cmd.Flags().BoolVar(&opts.lossless, "lossless", false, "lossless webp")
	cmd.Flags().BoolVar(&opts.debug, "debug", false, "also write region overlays")
	cmd.Flags().IntVarP(&opts.workers, "workers", "w", 0, "images rendered concurrently")
	cmd.MarkFlagRequired("in")
	cmd.MarkFlagRequired("box")

	return cmd
}

// applyRenderConfig fills the flags the user didn't set from the config
func applyRenderConfig(cmd *cobra.Command, opts *renderOpts, cfg config.RenderConfig) {
	changed := cmd.Flags().Changed
	if !changed("out") {
		opts.out = cfg.OutputDir
	}
	if !changed("prefix") {
		opts.prefix = cfg.Prefix
	}
	if !changed("ext") {
		opts.ext = cfg.Format
	}
	if !changed("quality") {
		opts.quality = cfg.Quality
	}
	if !changed("lossless") {
		opts.lossless = cfg.Lossless
	}
	if !changed("workers") {
		opts.workers = cfg.Workers
	}
}

// renderJob is one image rendered into one box
type renderJob struct {
	input string
	img   image.Image
	box   geometry.Size
}

func runRender(ctx context.Context, opts *renderOpts) error {
	logger := loggerFromContext(ctx)
	cfg := configFromContext(ctx)

	boxes, err := parseBoxes(opts.boxes)
	if err != nil {
		return err
	}
	_, descs, err := readRegions(opts.regions)
	if err != nil {
		return err
	}
	inputs, err := listInputs(opts.in)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(opts.out, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	// Anonymous regions get ids from their position so that every box
	// names them alike
	for i := range descs {
		if descs[i].ID == "" {
			descs[i].ID = fmt.Sprintf("region-%d", i+1)
		}
	}

	processor := processing.NewProcessor()
	fitOpts := frameright.Options{
		OverrideID: opts.regionID,
		Threshold:  cfg.Frame.Threshold,
	}
	logger.Info("Rendering", "images", len(inputs), "boxes", boxList(boxes), "workers", opts.workers)

	prog := newProgress(logger)
	var written atomic.Int64

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(max(opts.workers, 1))

	// Inputs are decoded by their worker, at most one decoded image per worker
	for _, input := range inputs {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			img, err := processor.LoadImageSmart(input)
			if err != nil {
				return fmt.Errorf("failed to load %s: %w", input, err)
			}
			logger.Debug("Loaded image", "path", input, "size", fmt.Sprintf("%dx%d", img.Bounds().Dx(), img.Bounds().Dy()))

			bg, bctx := errgroup.WithContext(ctx)
			for _, box := range boxes {
				job := renderJob{input: input, img: img, box: box}
				bg.Go(func() error {
					if err := bctx.Err(); err != nil {
						return err
					}
					paths, err := renderOne(processor, job, descs, fitOpts, opts, cfg.Render.DebugFormat)
					if err != nil {
						return err
					}
					for _, path := range paths {
						written.Add(1)
						logger.Info("Wrote", "path", path, "size", fileSize(path))
					}
					return nil
				})
			}
			return bg.Wait()
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}
	prog.done(fmt.Sprintf("Wrote %d images", written.Load()))
	return nil
}

// renderOne writes the preview, and the region overlay when asked, and
// returns the written paths
func renderOne(processor *processing.Processor, job renderJob, descs []regions.Descriptor, fitOpts frameright.Options, opts *renderOpts, debugFormat string) ([]string, error) {
	out, fit, err := frameright.Preview(job.img, descs, job.box, fitOpts)
	if err != nil {
		return nil, fmt.Errorf("%s at %s: %w", job.input, job.box, err)
	}

	suffix := fmt.Sprintf("_%s_%s", job.box, utils.SanitizeFilename(fit.Region.ID))
	path := utils.GenerateOutputFilename(job.input, opts.out, opts.prefix, suffix, opts.ext)
	if err := processor.SaveImage(out, path, opts.ext, opts.quality, opts.lossless); err != nil {
		return nil, fmt.Errorf("failed to save %s: %w", path, err)
	}
	paths := []string{path}

	if opts.debug {
		overlay := processor.CreateDebugOverlay(job.img, fit.Regions, fit.Region.ID)
		dbgPath := utils.GenerateOutputFilename(job.input, opts.out, opts.prefix, fmt.Sprintf("_%s_debug", job.box), debugFormat)
		if err := processor.SaveImage(overlay, dbgPath, debugFormat, opts.quality, opts.lossless); err != nil {
			return nil, fmt.Errorf("failed to save %s: %w", dbgPath, err)
		}
		paths = append(paths, dbgPath)
	}
	return paths, nil
}

func fileSize(path string) string {
	info, err := os.Stat(path)
	if err != nil {
		return "?"
	}
	return utils.FormatFileSize(info.Size())
}

// boxList formats boxes for logs
func boxList(boxes []geometry.Size) string {
	parts := make([]string, len(boxes))
	for i, b := range boxes {
		parts[i] = b.String()
	}
	return strings.Join(parts, ", ")
}
