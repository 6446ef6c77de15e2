package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/menta2k/img-frameright/pkg/frame"
	"github.com/menta2k/img-frameright/pkg/geometry"
	"github.com/menta2k/img-frameright/pkg/observer"
)

// styleOpts holds the command-line flags for the style command
type styleOpts struct {
	natural  string // natural image size, WxH
	box      string // displayed box size, WxH
	regions  string // image-regions JSON or a file holding it
	regionID string // image-region-id override
	srcset   bool   // image has a responsive source
	debug    bool   // element debug logging
	attrs    map[string]string
}

func newStyleCmd() *cobra.Command {
	var opts styleOpts

	cmd := &cobra.Command{
		Use:   "style",
		Short: "Print the region and <img> style chosen for a box",
		Example: `  frameright style --natural 1000x2000 --box 400x300 --regions regions.json
  frameright style --natural 4000x3000 --box 300x300 --regions '[{"shape":"rectangle","absolute":false,"x":0.4,"y":0.1,"width":0.2,"height":0.3}]'`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStyle(cmd.Context(), cmd.OutOrStdout(), cmd.ErrOrStderr(), &opts)
		},
	}

	cmd.Flags().StringVar(&opts.natural, "natural", "", "natural image size, WxH (required)")
	cmd.Flags().StringVar(&opts.box, "box", "", "displayed box size, WxH (required)")
	cmd.Flags().StringVarP(&opts.regions, "regions", "r", "", "image-regions JSON or file")
	cmd.Flags().StringVar(&opts.regionID, "region-id", "", "force a region by id")
	cmd.Flags().BoolVar(&opts.srcset, "srcset", false, "the image uses srcset=")
	cmd.Flags().BoolVar(&opts.debug, "debug", false, "print element debug logs")
	cmd.Flags().StringToStringVarP(&opts.attrs, "attr", "a", nil, "extra <img> attributes, name=value")
	cmd.MarkFlagRequired("natural")
	cmd.MarkFlagRequired("box")

	return cmd
}

func runStyle(ctx context.Context, out, logOut io.Writer, opts *styleOpts) error {
	logger := loggerFromContext(ctx)
	cfg := configFromContext(ctx)

	natural, err := geometry.ParseSize(opts.natural)
	if err != nil {
		return err
	}
	box, err := geometry.ParseSize(opts.box)
	if err != nil {
		return err
	}
	raw, descs, err := readRegions(opts.regions)
	if err != nil {
		return err
	}
	logger.Debug("Regions parsed", "count", len(descs))

	attrs := map[string]string{frame.AttrImageRegions: raw}
	for k, v := range opts.attrs {
		attrs[k] = v
	}
	if opts.regionID != "" {
		attrs[frame.AttrImageRegionID] = opts.regionID
	}
	if opts.srcset {
		attrs[frame.AttrSrcset] = "responsive"
	}
	if opts.debug {
		attrs[frame.AttrDebug] = ""
	}

	sched := observer.NewManualScheduler()
	el := frame.NewWithConfig(observer.ProbeFunc{
		Natural: func() geometry.Size { return natural },
		Box:     func() geometry.Size { return box },
	}, sched, frame.Config{
		Period:    cfg.Frame.Period(),
		Threshold: cfg.Frame.Threshold,
		LogOutput: logOut,
	})

	el.SetAttributes(attrs)
	el.Attach()
	sched.Tick()
	el.Detach()

	sel, ok := el.Selection()
	if !ok {
		return fmt.Errorf("no style computed for natural size %s", natural)
	}

	render := el.Render()
	fmt.Fprintf(out, "region: %s (%s, divergence %.3f)\n", sel.Region, sel.Reason, sel.Divergence)
	fmt.Fprintf(out, "style: %s\n", render.ImgStyle)
	if host := render.HostStyleString(); host != "" {
		fmt.Fprintf(out, "host: %s\n", host)
	}
	fmt.Fprintln(out, render.ImgTag())
	return nil
}
