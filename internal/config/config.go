// Package config holds the application configuration: every tunable of the
// detector, the fitting loop, the renderers, and the ambient services, bound
// through viper from defaults, an optional YAML file, and SVGFIT_ environment
// variables.
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"

	"github.com/svgfit/svgfit/internal/calibration"
	"github.com/svgfit/svgfit/internal/detect"
	"github.com/svgfit/svgfit/internal/optimize"
	"github.com/svgfit/svgfit/internal/render"
)

// EnvPrefix is the environment variable prefix; keys replace "." with "_",
// so optimizer.max_iterations becomes SVGFIT_OPTIMIZER_MAX_ITERATIONS.
const EnvPrefix = "SVGFIT"

// Config is the root of all settings.
type Config struct {
	Logging     Logging     `mapstructure:"logging"`
	Optimizer   Optimizer   `mapstructure:"optimizer"`
	Renderer    Renderer    `mapstructure:"renderer"`
	Detector    Detector    `mapstructure:"detector"`
	Calibration Calibration `mapstructure:"calibration"`
	Archive     Archive     `mapstructure:"archive"`
}

// Logging configures the zap setup. File rotation fields follow lumberjack's
// units: megabytes for size, days for age.
type Logging struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	File       string `mapstructure:"file"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"`
	Compress   bool   `mapstructure:"compress"`
	AddSource  bool   `mapstructure:"add_source"`
}

// Optimizer bounds fitting runs.
type Optimizer struct {
	SimilarityThreshold float64       `mapstructure:"similarity_threshold"`
	MaxIterations       int           `mapstructure:"max_iterations"`
	RenderTimeout       time.Duration `mapstructure:"render_timeout"`

	// Workers caps concurrent runs in batch mode; zero means GOMAXPROCS.
	Workers int `mapstructure:"workers"`
}

// LoopConfig converts the section into the fitting loop's own config type.
func (o Optimizer) LoopConfig() optimize.Config {
	return optimize.Config{
		SimilarityThreshold: o.SimilarityThreshold,
		MaxIterations:       o.MaxIterations,
		RenderTimeout:       o.RenderTimeout,
	}
}

// Renderer selects the rasterization backend and canvas background. Canvas
// dimensions are not configured here: they follow each image's padded crop.
type Renderer struct {
	Backend    string `mapstructure:"backend"`
	Background string `mapstructure:"background"`
}

// Detector mirrors the detection pipeline knobs that are worth tuning from
// the outside. Zero values defer to the pipeline defaults.
type Detector struct {
	BlurRadius      float64 `mapstructure:"blur_radius"`
	CloseKernel     int     `mapstructure:"close_kernel"`
	OpenKernel      int     `mapstructure:"open_kernel"`
	MinAreaRatio    float64 `mapstructure:"min_area_ratio"`
	MaxAreaRatio    float64 `mapstructure:"max_area_ratio"`
	Padding         int     `mapstructure:"padding"`
	GradientSamples int     `mapstructure:"gradient_samples"`
	MaxFeatures     int     `mapstructure:"max_features"`
	LabelConfidence float64 `mapstructure:"label_confidence"`
	SkipLabels      bool    `mapstructure:"skip_labels"`
}

// Options converts the section into detector options.
func (d Detector) Options() detect.Options {
	return detect.Options{
		BlurRadius:      d.BlurRadius,
		CloseKernel:     d.CloseKernel,
		OpenKernel:      d.OpenKernel,
		MinAreaRatio:    d.MinAreaRatio,
		MaxAreaRatio:    d.MaxAreaRatio,
		Padding:         d.Padding,
		GradientSamples: d.GradientSamples,
		MaxFeatures:     d.MaxFeatures,
		LabelConfidence: d.LabelConfidence,
		SkipLabels:      d.SkipLabels,
	}
}

// Calibration configures the marker file and the outlier treatment applied
// when deriving the mean offset.
type Calibration struct {
	// File is an optional YAML marker-pair file loaded at startup.
	File string `mapstructure:"file"`

	OutlierThreshold float64 `mapstructure:"outlier_threshold"`
	ExcludeOutliers  bool    `mapstructure:"exclude_outliers"`
}

// Policy converts the section into an outlier policy.
func (c Calibration) Policy() calibration.OutlierPolicy {
	return calibration.OutlierPolicy{
		Threshold: c.OutlierThreshold,
		Exclude:   c.ExcludeOutliers,
	}
}

// Archive configures run persistence.
type Archive struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// SetDefaults seeds a viper instance with the standard values.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
	v.SetDefault("logging.file", "")
	v.SetDefault("logging.max_size", 20)
	v.SetDefault("logging.max_backups", 3)
	v.SetDefault("logging.max_age", 14)
	v.SetDefault("logging.compress", true)
	v.SetDefault("logging.add_source", false)

	v.SetDefault("optimizer.similarity_threshold", 0.95)
	v.SetDefault("optimizer.max_iterations", 10)
	v.SetDefault("optimizer.render_timeout", "30s")
	v.SetDefault("optimizer.workers", 0)

	v.SetDefault("renderer.backend", render.BackendRaster)
	v.SetDefault("renderer.background", render.DefaultBackground)

	defaults := detect.DefaultOptions()
	v.SetDefault("detector.blur_radius", defaults.BlurRadius)
	v.SetDefault("detector.close_kernel", defaults.CloseKernel)
	v.SetDefault("detector.open_kernel", defaults.OpenKernel)
	v.SetDefault("detector.min_area_ratio", defaults.MinAreaRatio)
	v.SetDefault("detector.max_area_ratio", defaults.MaxAreaRatio)
	v.SetDefault("detector.padding", defaults.Padding)
	v.SetDefault("detector.gradient_samples", defaults.GradientSamples)
	v.SetDefault("detector.max_features", defaults.MaxFeatures)
	v.SetDefault("detector.label_confidence", defaults.LabelConfidence)
	v.SetDefault("detector.skip_labels", false)

	v.SetDefault("calibration.file", "")
	v.SetDefault("calibration.outlier_threshold", calibration.DefaultOutlierThreshold)
	v.SetDefault("calibration.exclude_outliers", false)

	v.SetDefault("archive.enabled", true)
	v.SetDefault("archive.path", "svgfit-runs.db")
}

// New unmarshals and validates a configuration from the viper instance.
func New(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Default returns the configuration built purely from defaults.
func Default() *Config {
	v := viper.New()
	SetDefaults(v)
	cfg, err := New(v)
	if err != nil {
		panic(fmt.Sprintf("default config is invalid: %v", err))
	}
	return cfg
}

// Validate checks cross-field constraints. Sections consumed by other
// packages only repeat the checks that would otherwise surface too late.
func (c *Config) Validate() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format)
	}

	if err := c.Optimizer.LoopConfig().Validate(); err != nil {
		return fmt.Errorf("optimizer: %w", err)
	}
	if c.Optimizer.Workers < 0 {
		return fmt.Errorf("optimizer.workers must not be negative, got %d", c.Optimizer.Workers)
	}

	switch c.Renderer.Backend {
	case render.BackendRaster, render.BackendChrome:
	default:
		return fmt.Errorf("renderer.backend must be %q or %q, got %q",
			render.BackendRaster, render.BackendChrome, c.Renderer.Backend)
	}

	if c.Detector.MinAreaRatio < 0 || c.Detector.MaxAreaRatio < 0 || c.Detector.MaxAreaRatio > 1 {
		return fmt.Errorf("detector area ratios must lie in [0, 1], got [%g, %g]",
			c.Detector.MinAreaRatio, c.Detector.MaxAreaRatio)
	}
	if c.Detector.MaxAreaRatio > 0 && c.Detector.MinAreaRatio >= c.Detector.MaxAreaRatio {
		return fmt.Errorf("detector.min_area_ratio must be below detector.max_area_ratio, got [%g, %g]",
			c.Detector.MinAreaRatio, c.Detector.MaxAreaRatio)
	}

	if c.Calibration.OutlierThreshold < 0 {
		return fmt.Errorf("calibration.outlier_threshold must not be negative, got %g", c.Calibration.OutlierThreshold)
	}

	if c.Archive.Enabled && c.Archive.Path == "" {
		return fmt.Errorf("archive.path is required when the archive is enabled")
	}
	return nil
}
