// Package config loads stepview settings from an optional YAML file layered
// over compiled-in defaults.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"time"

	"github.com/goccy/go-yaml"

	"github.com/chazu/stepview/pkg/approx"
	"github.com/chazu/stepview/pkg/kernel"
	"github.com/chazu/stepview/pkg/logger"
	"github.com/chazu/stepview/pkg/tessellate"
	"github.com/chazu/stepview/pkg/view"
)

// DefaultFile is read when no path is given and it exists.
const DefaultFile = "stepview.yaml"

// EnvAPIURL overrides API.BaseURL.
const EnvAPIURL = "STEPVIEW_API_URL"

// API configures the chat backend.
type API struct {
	BaseURL      string        `yaml:"base_url"`
	ChatPath     string        `yaml:"chat_path"`
	HealthPath   string        `yaml:"health_path"`
	ModelsPath   string        `yaml:"models_path"`
	Timeout      time.Duration `yaml:"timeout"`
	RetryMax     int           `yaml:"retry_max"`
	MaxBodyBytes int64         `yaml:"max_body_bytes"`
}

// Render configures tessellation.
type Render struct {
	Quality       string  `yaml:"quality"`
	EdgeThreshold float64 `yaml:"edge_threshold"` // degrees
}

// Log configures the global logger.
type Log struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	File   string `yaml:"file"`
}

// Server configures the HTTP viewer API.
type Server struct {
	Addr string `yaml:"addr"`
}

// Config is the full application configuration.
type Config struct {
	API    API               `yaml:"api"`
	Approx approx.Thresholds `yaml:"approx"`
	View   view.Settings     `yaml:"view"`
	Render Render            `yaml:"render"`
	Log    Log               `yaml:"log"`
	Server Server            `yaml:"server"`
}

// Default returns the compiled-in configuration.
func Default() *Config {
	return &Config{
		API: API{
			BaseURL:      "http://localhost:8000",
			ChatPath:     "/graph_chat",
			HealthPath:   "/health",
			ModelsPath:   "/list_generated_models",
			Timeout:      30 * time.Second,
			RetryMax:     2,
			MaxBodyBytes: 64 << 20,
		},
		Approx: approx.DefaultThresholds(),
		View:   view.DefaultSettings(),
		Render: Render{
			Quality:       tessellate.QualityMedium.String(),
			EdgeThreshold: kernel.DefaultEdgeThreshold,
		},
		Log:    Log{Level: "info", Format: "text"},
		Server: Server{Addr: ":8080"},
	}
}

// Load reads path over the defaults. An empty path reads DefaultFile if it
// exists; an explicit path must exist.
func Load(path string) (*Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = DefaultFile
	}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
		logger.Log.WithField("path", path).Debug("config: loaded")
	case !explicit && errors.Is(err, fs.ErrNotExist):
	default:
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	if v := os.Getenv(EnvAPIURL); v != "" {
		cfg.API.BaseURL = v
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks values that would otherwise fail later at use.
func (c *Config) Validate() error {
	u, err := url.Parse(c.API.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("config: api.base_url %q is not an absolute URL", c.API.BaseURL)
	}
	if _, err := tessellate.ParseQuality(c.Render.Quality); err != nil {
		return fmt.Errorf("config: render.quality: %w", err)
	}
	if c.View.Padding <= 0 {
		return fmt.Errorf("config: view.padding must be positive")
	}
	if c.View.ZoomInFactor <= 0 || c.View.ZoomInFactor >= 1 {
		return fmt.Errorf("config: view.zoom_in_factor must be in (0, 1)")
	}
	if c.View.ZoomOutFactor <= 1 {
		return fmt.Errorf("config: view.zoom_out_factor must be greater than 1")
	}
	if c.API.RetryMax < 0 {
		return fmt.Errorf("config: api.retry_max must not be negative")
	}
	if c.API.MaxBodyBytes < 0 {
		return fmt.Errorf("config: api.max_body_bytes must not be negative")
	}
	return nil
}

// Quality returns the parsed tessellation quality.
func (c *Config) Quality() tessellate.Quality {
	q, err := tessellate.ParseQuality(c.Render.Quality)
	if err != nil {
		return tessellate.QualityMedium
	}
	return q
}

// TessellateOptions returns the tessellation options.
func (c *Config) TessellateOptions() tessellate.Options {
	return tessellate.Options{Quality: c.Quality(), EdgeThreshold: c.Render.EdgeThreshold}
}

// LoggerOptions returns the logger options.
func (c *Config) LoggerOptions() logger.Options {
	return logger.Options{Level: c.Log.Level, Format: c.Log.Format, File: c.Log.File}
}
