// Package config provides configuration loading and validation for the
// canopy forest-change analysis tool.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/Sumatoshi-tech/canopy/pkg/geo"
	"github.com/Sumatoshi-tech/canopy/pkg/hansen"
)

// Sentinel validation errors.
var (
	ErrMissingTileDir     = errors.New("tiles.directory is required")
	ErrInvalidThreshold   = errors.New("analysis.canopy_threshold_percent must be in [0, 100]")
	ErrInvalidCutoffYear  = errors.New("analysis.cutoff_year must be between 2001 and 2099")
	ErrInvalidWorkers     = errors.New("analysis.workers must not be negative")
	ErrInvalidTileSource  = errors.New("tiles.source must be local or remote")
	ErrInvalidProjection  = errors.New("analysis.projected_crs is not a known CRS")
	ErrInvalidLogLevel    = errors.New("logging.level must be debug, info, warn, or error")
	ErrMissingURLTemplate = errors.New("tiles.url_template is required for the remote source")
)

// Config is the top-level configuration struct for canopy.
// Field tags use mapstructure for viper unmarshalling.
type Config struct {
	Tiles       TilesConfig       `mapstructure:"tiles"`
	Analysis    AnalysisConfig    `mapstructure:"analysis"`
	Output      OutputConfig      `mapstructure:"output"`
	Logging     LoggingConfig     `mapstructure:"logging"`
	Diagnostics DiagnosticsConfig `mapstructure:"diagnostics"`
}

// TilesConfig describes where Hansen tiles come from. The remote
// source downloads the listed tile IDs through the URL template before
// an analysis runs.
type TilesConfig struct {
	Directory      string   `mapstructure:"directory"`
	Source         string   `mapstructure:"source"`
	URLTemplate    string   `mapstructure:"url_template"`
	DatasetVersion string   `mapstructure:"dataset_version"`
	TileIDs        []string `mapstructure:"tile_ids"`
}

// AnalysisConfig holds the forest-change analysis parameters.
type AnalysisConfig struct {
	CanopyThresholdPercent int    `mapstructure:"canopy_threshold_percent"`
	CutoffYear             int    `mapstructure:"cutoff_year"`
	Workers                int    `mapstructure:"workers"`
	ReprojectToProjected   bool   `mapstructure:"reproject_to_projected"`
	ProjectedCRS           string `mapstructure:"projected_crs"`
}

// OutputConfig controls the evidence artifacts.
type OutputConfig struct {
	Directory    string `mapstructure:"directory"`
	WriteMasks   bool   `mapstructure:"write_masks"`
	MaskCacheDir string `mapstructure:"mask_cache_dir"`
}

// LoggingConfig holds logging-specific configuration.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// DiagnosticsConfig controls the optional metrics endpoint.
type DiagnosticsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Addr    string `mapstructure:"addr"`
}

// Validate checks the configuration for consistency.
func (c *Config) Validate() error {
	if c.Tiles.Directory == "" {
		return ErrMissingTileDir
	}

	switch c.Tiles.Source {
	case "local", "remote":
	default:
		return fmt.Errorf("%w: %q", ErrInvalidTileSource, c.Tiles.Source)
	}

	if c.Tiles.Source == "remote" && c.Tiles.URLTemplate == "" {
		return ErrMissingURLTemplate
	}

	threshold := c.Analysis.CanopyThresholdPercent
	if threshold < 0 || threshold > 100 {
		return fmt.Errorf("%w: %d", ErrInvalidThreshold, threshold)
	}

	if c.Analysis.CutoffYear <= 2000 || c.Analysis.CutoffYear >= 2100 {
		return fmt.Errorf("%w: %d", ErrInvalidCutoffYear, c.Analysis.CutoffYear)
	}

	if c.Analysis.Workers < 0 {
		return fmt.Errorf("%w: %d", ErrInvalidWorkers, c.Analysis.Workers)
	}

	_, crsErr := geo.ResolveCRS(c.Analysis.ProjectedCRS)
	if crsErr != nil {
		return fmt.Errorf("%w: %q", ErrInvalidProjection, c.Analysis.ProjectedCRS)
	}

	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("%w: %q", ErrInvalidLogLevel, c.Logging.Level)
	}

	return nil
}

// EngineConfig converts the loaded configuration into the analysis
// engine's parameter struct.
func (c *Config) EngineConfig() hansen.Config {
	return hansen.Config{
		TileDir:                c.Tiles.Directory,
		CanopyThresholdPercent: c.Analysis.CanopyThresholdPercent,
		CutoffYear:             c.Analysis.CutoffYear,
		WriteMasks:             c.Output.WriteMasks,
		MaskCacheDir:           c.Output.MaskCacheDir,
		DatasetVersion:         c.Tiles.DatasetVersion,
		TileSource:             c.Tiles.Source,
		TileIDs:                c.Tiles.TileIDs,
		URLTemplate:            c.Tiles.URLTemplate,
		ReprojectToProjected:   c.Analysis.ReprojectToProjected,
		ProjectedCRS:           c.Analysis.ProjectedCRS,
	}
}

// Summer builds the area accumulation strategy for the configured
// worker count. Fewer than two workers means sequential accumulation.
func (c *Config) Summer() hansen.AreaSummer {
	if c.Analysis.Workers > 1 {
		return hansen.ParallelSummer{Workers: c.Analysis.Workers}
	}

	return hansen.SequentialSummer{}
}
