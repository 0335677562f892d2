// Package config defines the dashboard configuration and loads it from a
// YAML file with environment overrides.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/iwvelando/sire-dashboard/internal/dataset"
	"github.com/iwvelando/sire-dashboard/pkg/constants"
)

// Configuration holds all configuration for sire-dashboard.
type Configuration struct {
	Datasets DatasetsConfig `yaml:"datasets"`
	Controls ControlsConfig `yaml:"controls"`
	Logging  LoggingConfig  `yaml:"logging,omitempty"`
	Output   OutputConfig   `yaml:"output,omitempty"`
}

// DatasetsConfig locates the sale and sire tables.
type DatasetsConfig struct {
	Source string           `yaml:"source"` // file, s3
	Sales  string           `yaml:"sales"`
	Sires  string           `yaml:"sires"`
	S3     dataset.S3Config `yaml:"s3,omitempty" mapstructure:"s3"`
}

// ControlsConfig seeds the initial control state.
type ControlsConfig struct {
	MinFoals        int     `yaml:"minFoals"`
	OutlierQuantile float64 `yaml:"outlierQuantile"`
	DefaultView     string  `yaml:"defaultView,omitempty"`
}

// LoggingConfig holds logging configuration options
type LoggingConfig struct {
	Level      string `yaml:"level,omitempty"`      // debug, info, warn, error
	Format     string `yaml:"format,omitempty"`     // json, console
	OutputFile string `yaml:"outputFile,omitempty"` // optional file output
}

// OutputConfig holds output format configuration options
type OutputConfig struct {
	Format string `yaml:"format,omitempty"` // pretty, csv, yaml, svg, png
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("datasets.source", constants.SourceFile)
	v.SetDefault("datasets.sales", constants.DefaultSalesFile)
	v.SetDefault("datasets.sires", constants.DefaultSiresFile)
	v.SetDefault("datasets.s3.bucket", "")
	v.SetDefault("datasets.s3.region", constants.DefaultS3Region)
	v.SetDefault("datasets.s3.endpoint", "")
	v.SetDefault("datasets.s3.pathStyle", false)
	v.SetDefault("controls.defaultView", "")
	v.SetDefault("controls.minFoals", constants.DefaultMinFoals)
	v.SetDefault("controls.outlierQuantile", constants.DefaultOutlierQuantile)
	v.SetDefault("output.format", constants.OutputFormatPretty)
}

// Defaults returns the configuration used when no file is given.
func Defaults() *Configuration {
	v := viper.New()
	setDefaults(v)
	var configuration Configuration
	// Defaults always decode.
	_ = v.Unmarshal(&configuration)
	return &configuration
}

// LoadConfiguration takes a file path as input and loads the YAML-formatted
// configuration there. Environment variables prefixed SIRE_DASHBOARD_
// override file values, e.g. SIRE_DASHBOARD_DATASETS_S3_BUCKET.
func LoadConfiguration(configPath string) (*Configuration, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigFile(configPath)
	v.SetEnvPrefix("SIRE_DASHBOARD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetConfigType("yml")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reading config file, %s", err)
	}

	var configuration Configuration
	err := v.Unmarshal(&configuration)
	if err != nil {
		return nil, fmt.Errorf("unable to decode into struct, %s", err)
	}

	if err := configuration.Validate(); err != nil {
		return nil, err
	}
	return &configuration, nil
}

// Validate checks values viper cannot type-check.
func (c *Configuration) Validate() error {
	switch c.Datasets.Source {
	case constants.SourceFile:
	case constants.SourceS3:
		if strings.TrimSpace(c.Datasets.S3.Bucket) == "" {
			return fmt.Errorf("datasets.s3.bucket is required when datasets.source is %q", constants.SourceS3)
		}
	default:
		return fmt.Errorf("datasets.source must be %q or %q, got %q", constants.SourceFile, constants.SourceS3, c.Datasets.Source)
	}
	if strings.TrimSpace(c.Datasets.Sales) == "" || strings.TrimSpace(c.Datasets.Sires) == "" {
		return fmt.Errorf("datasets.sales and datasets.sires must both be set")
	}
	if c.Controls.OutlierQuantile <= 0 || c.Controls.OutlierQuantile > 1 {
		return fmt.Errorf("controls.outlierQuantile must be in (0, 1], got %v", c.Controls.OutlierQuantile)
	}
	return nil
}
