// Package cli implements the frameright command-line interface.
//
// The commands exercise the engine outside a browser:
//   - style: print the region and <img> style chosen for a box
//   - render: write preview images for one or more box sizes
//   - suggest: ask a vision model for image-regions
//
// All commands support --verbose (-v) for debug-level logging and --config
// to load settings from a JSON, YAML or TOML file. Loggers and configuration
// are passed through context.Context.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	charmlog "github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	frameright "github.com/menta2k/img-frameright"
	"github.com/menta2k/img-frameright/internal/config"
)

// Execute runs the frameright CLI and returns an error if any command fails
func Execute(ctx context.Context) error {
	return NewRootCommand(os.Stdout, os.Stderr).ExecuteContext(ctx)
}

// NewRootCommand builds the command tree. Results go to stdout, logs to
// stderr.
func NewRootCommand(stdout, stderr io.Writer) *cobra.Command {
	var verbose bool
	var configPath string

	root := &cobra.Command{
		Use:           "frameright",
		Short:         "Frameright fits images to their box by zooming into regions",
		Long:          `Frameright picks, for a given display box, the image region whose aspect ratio fits best and computes the CSS transform that zooms the image onto it.`,
		Version:       frameright.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			level := charmlog.InfoLevel
			if verbose {
				level = charmlog.DebugLevel
			}
			logger := newLogger(cmd.ErrOrStderr(), level)

			cfg, err := loadConfig(configPath, cmd.Flags().Changed("config"))
			if err != nil {
				return err
			}
			logger.Debug("Configuration loaded", "path", configPath, "backend", cfg.Suggest.Backend, "format", cfg.Render.Format)

			ctx := withLogger(cmd.Context(), logger)
			cmd.SetContext(withConfig(ctx, cfg))
			return nil
		},
	}

	root.SetOut(stdout)
	root.SetErr(stderr)
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose logging")
	root.PersistentFlags().StringVarP(&configPath, "config", "c", config.GetConfigPath(), "config file (json, yaml or toml)")

	root.AddCommand(newStyleCmd())
	root.AddCommand(newRenderCmd())
	root.AddCommand(newSuggestCmd())

	return root
}

// loadConfig reads the config file. The default path may be missing, an
// explicit one may not.
func loadConfig(path string, explicit bool) (*config.Config, error) {
	if _, err := os.Stat(path); err != nil && !explicit {
		return config.Default(), nil
	}

	cfg, err := config.LoadFromFile(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}
