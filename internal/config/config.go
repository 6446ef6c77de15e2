package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Config holds the application configuration
type Config struct {
	Frame   FrameConfig   `json:"frame" yaml:"frame" toml:"frame"`
	Render  RenderConfig  `json:"render" yaml:"render" toml:"render"`
	Suggest SuggestConfig `json:"suggest" yaml:"suggest" toml:"suggest"`
}

// FrameConfig holds the knobs of the frame element
type FrameConfig struct {
	PeriodMS  int     `json:"period_ms" yaml:"period_ms" toml:"period_ms"`
	Threshold float64 `json:"threshold" yaml:"threshold" toml:"threshold"`
}

// Period returns the observation period as a duration
func (f FrameConfig) Period() time.Duration {
	return time.Duration(f.PeriodMS) * time.Millisecond
}

// RenderConfig holds configuration for preview generation
type RenderConfig struct {
	Format      string `json:"format" yaml:"format" toml:"format"`
	Quality     int    `json:"quality" yaml:"quality" toml:"quality"`
	Lossless    bool   `json:"lossless" yaml:"lossless" toml:"lossless"`
	OutputDir   string `json:"output_dir" yaml:"output_dir" toml:"output_dir"`
	Prefix      string `json:"prefix" yaml:"prefix" toml:"prefix"`
	DebugFormat string `json:"debug_format" yaml:"debug_format" toml:"debug_format"`
	Workers     int    `json:"workers" yaml:"workers" toml:"workers"`
}

// SuggestConfig holds configuration for vision model backends
type SuggestConfig struct {
	Backend     string   `json:"backend" yaml:"backend" toml:"backend"`
	URL         string   `json:"url" yaml:"url" toml:"url"`
	Model       string   `json:"model" yaml:"model" toml:"model"`
	SendFormat  string   `json:"send_format" yaml:"send_format" toml:"send_format"`
	SendSize    int      `json:"send_size" yaml:"send_size" toml:"send_size"`
	SendQuality int      `json:"send_quality" yaml:"send_quality" toml:"send_quality"`
	Zoom        float64  `json:"zoom" yaml:"zoom" toml:"zoom"`
	Aspects     []string `json:"aspects" yaml:"aspects" toml:"aspects"`
}

// Default returns a configuration with default values
func Default() *Config {
	return &Config{
		Frame: FrameConfig{
			PeriodMS:  200,
			Threshold: 1.1,
		},
		Render: RenderConfig{
			Format:      "jpg",
			Quality:     90,
			Lossless:    false,
			OutputDir:   "./out",
			Prefix:      "",
			DebugFormat: "png",
			Workers:     4,
		},
		Suggest: SuggestConfig{
			Backend:     "ollama",
			URL:         "",
			Model:       "openbmb/minicpm-v4.5",
			SendFormat:  "jpg",
			SendSize:    1536,
			SendQuality: 85,
			Zoom:        1.0,
			Aspects:     []string{"1:1", "3:4", "4:3"},
		},
	}
}

// LoadFromFile loads configuration from a JSON, YAML or TOML file, picked by
// extension. Missing keys keep their default value.
func LoadFromFile(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := Default()
	switch ext := strings.ToLower(filepath.Ext(filename)); ext {
	case ".json":
		err = json.Unmarshal(data, config)
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, config)
	case ".toml":
		_, err = toml.Decode(string(data), config)
	default:
		return nil, fmt.Errorf("unsupported config format %q", ext)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return config, nil
}

// SaveToFile saves configuration in the format matching the extension
func (c *Config) SaveToFile(filename string) error {
	dir := filepath.Dir(filename)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	var data []byte
	var err error
	switch ext := strings.ToLower(filepath.Ext(filename)); ext {
	case ".json":
		data, err = json.MarshalIndent(c, "", "  ")
	case ".yaml", ".yml":
		data, err = yaml.Marshal(c)
	case ".toml":
		var buf bytes.Buffer
		err = toml.NewEncoder(&buf).Encode(c)
		data = buf.Bytes()
	default:
		return fmt.Errorf("unsupported config format %q", ext)
	}
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Frame.PeriodMS < 1 {
		return fmt.Errorf("frame.period_ms must be positive")
	}
	if c.Frame.Threshold < 1 {
		return fmt.Errorf("frame.threshold must be at least 1")
	}

	if !oneOf(c.Render.Format, "jpg", "jpeg", "png", "webp") {
		return fmt.Errorf("render.format must be jpg, png or webp")
	}
	if !oneOf(c.Render.DebugFormat, "jpg", "jpeg", "png", "webp") {
		return fmt.Errorf("render.debug_format must be jpg, png or webp")
	}
	if c.Render.Quality < 1 || c.Render.Quality > 100 {
		return fmt.Errorf("render.quality must be between 1 and 100")
	}
	if c.Render.Workers < 1 {
		return fmt.Errorf("render.workers must be positive")
	}

	if !oneOf(c.Suggest.Backend, "ollama", "llamacpp", "saliency") {
		return fmt.Errorf("suggest.backend must be ollama, llamacpp or saliency")
	}
	if !oneOf(c.Suggest.SendFormat, "jpg", "png") {
		return fmt.Errorf("suggest.send_format must be jpg or png")
	}
	if c.Suggest.SendSize < 0 {
		return fmt.Errorf("suggest.send_size cannot be negative")
	}
	if c.Suggest.SendQuality < 1 || c.Suggest.SendQuality > 100 {
		return fmt.Errorf("suggest.send_quality must be between 1 and 100")
	}
	if c.Suggest.Zoom <= 0 || c.Suggest.Zoom > 1 {
		return fmt.Errorf("suggest.zoom must be in (0, 1]")
	}

	return nil
}

// GetConfigPath returns the default configuration file path
func GetConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "./frameright.yaml"
	}
	return filepath.Join(home, ".config", "frameright", "config.yaml")
}

func oneOf(v string, options ...string) bool {
	v = strings.ToLower(v)
	for _, o := range options {
		if v == o {
			return true
		}
	}
	return false
}
