package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/menta2k/img-frameright/internal/config"
	"github.com/menta2k/img-frameright/pkg/client"
	"github.com/menta2k/img-frameright/pkg/llamacpp"
	"github.com/menta2k/img-frameright/pkg/ollama"
	"github.com/menta2k/img-frameright/pkg/processing"
	"github.com/menta2k/img-frameright/pkg/regions"
	"github.com/menta2k/img-frameright/pkg/suggest"
	"github.com/menta2k/img-frameright/pkg/vision"
)

// DefaultOllamaURL is where a local ollama listens
const DefaultOllamaURL = "http://localhost:11434"

// suggestOpts holds the command-line flags for the suggest command. Unset
// flags fall back to the suggest section of the configuration.
type suggestOpts struct {
	in      string   // image file or URL
	backend string   // ollama or llamacpp
	url     string   // backend server URL
	model   string   // model name
	aspects []string // crops proposed around the subject, W:H
	zoom    float64  // crop shrink factor
	check   bool     // only check whether the model sees the image
	save    string   // write the raw analysis JSON here
}

func newSuggestCmd() *cobra.Command {
	var opts suggestOpts

	cmd := &cobra.Command{
		Use:   "suggest",
		Short: "Ask a vision model for image-regions",
		Example: `  frameright suggest --in photo.jpg
  frameright suggest --in photo.jpg --backend llamacpp --url http://localhost:8080 --aspect 1:1,16:9`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := configFromContext(cmd.Context())
			applySuggestConfig(cmd, &opts, cfg.Suggest)
			return runSuggest(cmd.Context(), cmd.OutOrStdout(), &opts, cfg.Suggest)
		},
	}

	cmd.Flags().StringVarP(&opts.in, "in", "i", "", "input image or URL (required)")
	cmd.Flags().StringVar(&opts.backend, "backend", "", "backend: ollama, llamacpp, saliency (offline)")
	cmd.Flags().StringVar(&opts.url, "url", "", "backend server URL")
	cmd.Flags().StringVarP(&opts.model, "model", "m", "", "model name")
	cmd.Flags().StringSliceVar(&opts.aspects, "aspect", nil, "crops to propose around the subject, W:H")
	cmd.Flags().Float64Var(&opts.zoom, "zoom", 0, "shrink factor for the proposed crops (0.01..1)")
	cmd.Flags().BoolVar(&opts.check, "check", false, "only ask the model to describe the image")
	cmd.Flags().StringVar(&opts.save, "save", "", "write the model analysis as JSON to this file")
	cmd.MarkFlagRequired("in")

	return cmd
}

func applySuggestConfig(cmd *cobra.Command, opts *suggestOpts, cfg config.SuggestConfig) {
	changed := cmd.Flags().Changed
	if !changed("backend") {
		opts.backend = cfg.Backend
	}
	if !changed("url") {
		opts.url = cfg.URL
	}
	if !changed("model") {
		opts.model = cfg.Model
	}
	if !changed("aspect") {
		opts.aspects = cfg.Aspects
	}
	if !changed("zoom") {
		opts.zoom = cfg.Zoom
	}
}

// newVisionClient creates the client for a backend, with its default URL
// when none is given
func newVisionClient(backend, url string) (client.VisionClient, error) {
	switch strings.ToLower(backend) {
	case "ollama":
		if url == "" {
			url = DefaultOllamaURL
		}
		return ollama.NewClient(url)
	case "llamacpp":
		return llamacpp.NewClient(url)
	case "saliency":
		return vision.New(), nil
	default:
		return nil, fmt.Errorf("unknown backend %q (use ollama, llamacpp or saliency)", backend)
	}
}

func runSuggest(ctx context.Context, out io.Writer, opts *suggestOpts, cfg config.SuggestConfig) error {
	logger := loggerFromContext(ctx)

	aspects := make([]suggest.Aspect, 0, len(opts.aspects))
	for _, a := range opts.aspects {
		aspect, err := suggest.ParseAspect(a)
		if err != nil {
			return err
		}
		aspects = append(aspects, aspect)
	}

	vc, err := newVisionClient(opts.backend, opts.url)
	if err != nil {
		return err
	}

	img, err := processing.NewProcessor().LoadImageSmart(opts.in)
	if err != nil {
		return err
	}

	s := suggest.NewWithOptions(vc, suggest.Options{
		Model:       opts.model,
		SendFormat:  cfg.SendFormat,
		SendSize:    cfg.SendSize,
		SendQuality: cfg.SendQuality,
		Aspects:     aspects,
		Zoom:        opts.zoom,
	})

	prog := newProgress(logger)
	if opts.check {
		answer, err := s.CheckVision(ctx, img)
		if err != nil {
			return err
		}
		prog.done("Model answered")
		fmt.Fprintln(out, answer)
		return nil
	}

	logger.Info("Asking model", "backend", opts.backend, "model", opts.model)
	suggestion, err := s.Suggest(ctx, img)
	if err != nil {
		return err
	}
	prog.done("Subject detected")

	p := suggestion.Analysis.Primary
	logger.Info("Primary subject", "label", p.Label, "confidence", fmt.Sprintf("%.2f", p.Confidence),
		"box", fmt.Sprintf("%.3fx%.3f@%.3f,%.3f", p.Box.W, p.Box.H, p.Box.X, p.Box.Y))
	logger.Debug("Analysis", "description", suggestion.Analysis.Description, "tags", suggestion.Analysis.Tags)

	if opts.save != "" {
		data, err := json.MarshalIndent(suggestion.Analysis, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal analysis: %w", err)
		}
		if err := os.WriteFile(opts.save, data, 0o644); err != nil {
			return fmt.Errorf("failed to write analysis: %w", err)
		}
		logger.Info("Wrote analysis", "path", opts.save)
	}

	value, err := regions.MarshalDescriptors(suggestion.Descriptors)
	if err != nil {
		return err
	}
	fmt.Fprintln(out, value)
	return nil
}
