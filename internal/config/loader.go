package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"

	"github.com/Sumatoshi-tech/canopy/pkg/geo"
	"github.com/Sumatoshi-tech/canopy/pkg/hansen"
)

// configName is the config file name without extension.
const configName = ".canopy"

// configType is the config file format.
const configType = "yaml"

// envPrefix is the environment variable prefix for canopy settings.
const envPrefix = "CANOPY"

// envKeySeparator is the nested key separator in environment variable names.
const envKeySeparator = "_"

// Default analysis parameters.
const (
	defaultThreshold       = 10
	defaultCutoffYear      = 2020
	defaultDiagnosticsAddr = "127.0.0.1:9090"
)

// Load reads configuration from file, env vars, and defaults.
// If configPath is non-empty, it is used as the explicit config file path.
// Otherwise, the config file is searched in CWD and $HOME.
// Missing config file is not an error; defaults are used.
func Load(configPath string) (*Config, error) {
	viperCfg := viper.New()

	applyDefaults(viperCfg)

	viperCfg.SetConfigType(configType)
	viperCfg.SetEnvPrefix(envPrefix)
	viperCfg.SetEnvKeyReplacer(strings.NewReplacer(".", envKeySeparator))
	viperCfg.AutomaticEnv()

	if configPath != "" {
		viperCfg.SetConfigFile(configPath)
	} else {
		viperCfg.SetConfigName(configName)
		viperCfg.AddConfigPath(".")

		home, homeErr := os.UserHomeDir()
		if homeErr == nil {
			viperCfg.AddConfigPath(home)
		}
	}

	readErr := viperCfg.ReadInConfig()
	if readErr != nil {
		var notFoundErr viper.ConfigFileNotFoundError
		if !errors.As(readErr, &notFoundErr) && !os.IsNotExist(readErr) {
			return nil, fmt.Errorf("read config: %w", readErr)
		}
	}

	var config Config

	unmarshalErr := viperCfg.Unmarshal(&config)
	if unmarshalErr != nil {
		return nil, fmt.Errorf("unmarshal config: %w", unmarshalErr)
	}

	validateErr := config.Validate()
	if validateErr != nil {
		return nil, fmt.Errorf("invalid configuration: %w", validateErr)
	}

	return &config, nil
}

func applyDefaults(viperCfg *viper.Viper) {
	viperCfg.SetDefault("tiles.directory", "tiles")
	viperCfg.SetDefault("tiles.source", "local")
	viperCfg.SetDefault("tiles.dataset_version", hansen.DatasetVersionDefault)
	viperCfg.SetDefault("tiles.url_template", "")
	viperCfg.SetDefault("tiles.tile_ids", []string{})

	viperCfg.SetDefault("analysis.canopy_threshold_percent", defaultThreshold)
	viperCfg.SetDefault("analysis.cutoff_year", defaultCutoffYear)
	viperCfg.SetDefault("analysis.workers", 0)
	viperCfg.SetDefault("analysis.reproject_to_projected", false)
	viperCfg.SetDefault("analysis.projected_crs", geo.CRSEqualArea)

	viperCfg.SetDefault("output.directory", "output")
	viperCfg.SetDefault("output.write_masks", true)
	viperCfg.SetDefault("output.mask_cache_dir", "")

	viperCfg.SetDefault("logging.level", "info")
	viperCfg.SetDefault("logging.format", "text")

	viperCfg.SetDefault("diagnostics.enabled", false)
	viperCfg.SetDefault("diagnostics.addr", defaultDiagnosticsAddr)
}
