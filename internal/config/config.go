package config

import (
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"

	"bankpanel/internal/errors"
)

// Config represents the complete pipeline configuration
type Config struct {
	Logging  LoggingConfig  `yaml:"logging" envconfig:"LOGGING"`
	Paths    PathsConfig    `yaml:"paths" envconfig:"PATHS"`
	Pipeline PipelineConfig `yaml:"pipeline" envconfig:"PIPELINE"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level    string `yaml:"level" envconfig:"LEVEL" default:"info" validate:"oneof=debug info warn error"`
	Output   string `yaml:"output" envconfig:"OUTPUT" default:"both" validate:"oneof=console file both"`
	FilePath string `yaml:"file_path" envconfig:"FILE_PATH" default:"logs/pipeline.log" validate:"required"`
}

// PathsConfig contains the directory layout; relative entries are resolved
// against DataDir by the Paths helper
type PathsConfig struct {
	DataDir      string `yaml:"data_dir" envconfig:"DATA_DIR" default:"data" validate:"required"`
	RawDir       string `yaml:"raw_dir" envconfig:"RAW_DIR" default:"raw" validate:"required"`
	ProcessedDir string `yaml:"processed_dir" envconfig:"PROCESSED_DIR" default:"processed" validate:"required"`
	TablesDir    string `yaml:"tables_dir" envconfig:"TABLES_DIR" default:"tables" validate:"required"`
	FinalDir     string `yaml:"final_dir" envconfig:"FINAL_DIR" default:"final" validate:"required"`
	LogsDir      string `yaml:"logs_dir" envconfig:"LOGS_DIR" default:"logs" validate:"required"`
}

// PipelineConfig contains the sample-construction constants.
// The trim window is narrower than the load window so that within-bank
// differences at the window edge are computed from real predecessors.
type PipelineConfig struct {
	LoadStartYear   int     `yaml:"load_start_year" envconfig:"LOAD_START_YEAR" default:"1993" validate:"gt=1900"`
	LoadEndYear     int     `yaml:"load_end_year" envconfig:"LOAD_END_YEAR" default:"2014" validate:"gtefield=LoadStartYear"`
	TrimStartYear   int     `yaml:"trim_start_year" envconfig:"TRIM_START_YEAR" default:"1994" validate:"gtefield=LoadStartYear"`
	TrimEndYear     int     `yaml:"trim_end_year" envconfig:"TRIM_END_YEAR" default:"2013" validate:"gtefield=TrimStartYear"`
	PostCutoffYear  int     `yaml:"post_cutoff_year" envconfig:"POST_CUTOFF_YEAR" default:"2009" validate:"gt=1900"`
	CharterType     float64 `yaml:"charter_type" envconfig:"CHARTER_TYPE" default:"200"`
	GrowthThreshold float64 `yaml:"growth_threshold" envconfig:"GROWTH_THRESHOLD" default:"1.0" validate:"gt=0"`
	WinsorLower     float64 `yaml:"winsor_lower" envconfig:"WINSOR_LOWER" default:"0.01" validate:"gte=0,lt=0.5"`
	WinsorUpper     float64 `yaml:"winsor_upper" envconfig:"WINSOR_UPPER" default:"0.99" validate:"gt=0.5,lte=1"`
	Top25Quantile   float64 `yaml:"top25_quantile" envconfig:"TOP25_QUANTILE" default:"0.75" validate:"gt=0,lt=1"`
	Top10Quantile   float64 `yaml:"top10_quantile" envconfig:"TOP10_QUANTILE" default:"0.90" validate:"gt=0,lt=1"`
}

// Load loads configuration from environment variables and config file.
// Environment variables (BANKPANEL_ prefix) take precedence over the file.
func Load() (*Config, error) {
	var cfg Config

	if err := envconfig.Process("BANKPANEL", &cfg); err != nil {
		return nil, errors.NewConfigError("failed to load configuration from environment", err)
	}

	configFile := getConfigFilePath()
	if configFile != "" {
		fileCfg, err := loadFromFile(configFile)
		if err != nil {
			return nil, errors.NewConfigError(fmt.Sprintf("failed to load %s", configFile), err)
		}
		cfg = mergeConfigs(*fileCfg, cfg)
	}

	if err := cfg.Validate(); err != nil {
		return nil, errors.NewConfigError("configuration validation failed", err)
	}

	return &cfg, nil
}

// loadFromFile loads configuration from a YAML file
func loadFromFile(filePath string) (*Config, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// mergeConfigs merges file config with env config (env takes precedence)
func mergeConfigs(fileConfig, envConfig Config) Config {
	out := envConfig
	def := Default()

	if out.Logging.Level == def.Logging.Level && fileConfig.Logging.Level != "" {
		out.Logging.Level = fileConfig.Logging.Level
	}
	if out.Logging.Output == def.Logging.Output && fileConfig.Logging.Output != "" {
		out.Logging.Output = fileConfig.Logging.Output
	}
	if out.Logging.FilePath == def.Logging.FilePath && fileConfig.Logging.FilePath != "" {
		out.Logging.FilePath = fileConfig.Logging.FilePath
	}
	if out.Paths.DataDir == def.Paths.DataDir && fileConfig.Paths.DataDir != "" {
		out.Paths.DataDir = fileConfig.Paths.DataDir
	}
	if fileConfig.Pipeline.TrimStartYear != 0 && out.Pipeline.TrimStartYear == def.Pipeline.TrimStartYear {
		out.Pipeline.TrimStartYear = fileConfig.Pipeline.TrimStartYear
	}
	if fileConfig.Pipeline.TrimEndYear != 0 && out.Pipeline.TrimEndYear == def.Pipeline.TrimEndYear {
		out.Pipeline.TrimEndYear = fileConfig.Pipeline.TrimEndYear
	}

	return out
}

// Validate validates the configuration using struct tags
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return err
	}
	if c.Pipeline.WinsorLower >= c.Pipeline.WinsorUpper {
		return fmt.Errorf("winsor bounds inverted: lower %v >= upper %v",
			c.Pipeline.WinsorLower, c.Pipeline.WinsorUpper)
	}
	return nil
}

// getConfigFilePath returns the path to the config file, if one exists
func getConfigFilePath() string {
	locations := []string{
		"config.yaml",
		"configs/config.yaml",
	}

	for _, location := range locations {
		if _, err := os.Stat(location); err == nil {
			return location
		}
	}

	return ""
}

// Default returns the default configuration
func Default() *Config {
	return &Config{
		Logging: LoggingConfig{
			Level:    "info",
			Output:   "both",
			FilePath: "logs/pipeline.log",
		},
		Paths: PathsConfig{
			DataDir:      "data",
			RawDir:       "raw",
			ProcessedDir: "processed",
			TablesDir:    "tables",
			FinalDir:     "final",
			LogsDir:      "logs",
		},
		Pipeline: PipelineConfig{
			LoadStartYear:   1993,
			LoadEndYear:     2014,
			TrimStartYear:   1994,
			TrimEndYear:     2013,
			PostCutoffYear:  2009,
			CharterType:     200,
			GrowthThreshold: 1.0,
			WinsorLower:     0.01,
			WinsorUpper:     0.99,
			Top25Quantile:   0.75,
			Top10Quantile:   0.90,
		},
	}
}
