// Package config provides configuration management for the options analyzer.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/spf13/viper"

	"options-lab/internal/errors"
	"options-lab/internal/logging"
	"options-lab/internal/validation"
)

// FileName is the main config file inside the config directory.
const FileName = "config.toml"

// Config holds all application configuration.
type Config struct {
	Pricing  PricingConfig  `mapstructure:"pricing" json:"pricing"`
	Analysis AnalysisConfig `mapstructure:"analysis" json:"analysis"`
	Server   ServerConfig   `mapstructure:"server" json:"server"`
	UI       UIConfig       `mapstructure:"ui" json:"ui"`
	Logging  LoggingConfig  `mapstructure:"logging" json:"logging"`

	Dir     string `mapstructure:"-" json:"dir"`
	Created bool   `mapstructure:"-" json:"-"` // config.toml was written from the template by this Load
}

// PricingConfig holds pricing model inputs.
type PricingConfig struct {
	RiskFreeRate      float64 `mapstructure:"risk_free_rate" json:"risk_free_rate" validate:"finite,gte=-0.2,lte=1"`
	DefaultVolatility float64 `mapstructure:"default_volatility" json:"default_volatility" validate:"finite,gt=0,lte=10"`
}

// AnalysisConfig holds defaults for curves, metrics and template sizing.
type AnalysisConfig struct {
	PayoffRange  float64 `mapstructure:"payoff_range" json:"payoff_range" validate:"finite,gt=0,lt=1"`
	SearchRange  float64 `mapstructure:"search_range" json:"search_range" validate:"finite,gt=0,lt=1"`
	StrikeWidth  float64 `mapstructure:"strike_width" json:"strike_width" validate:"finite,gt=0"`
	DaysToExpiry int     `mapstructure:"days_to_expiry" json:"days_to_expiry" validate:"gte=1,lte=3650"`
	FarDays      int     `mapstructure:"far_days" json:"far_days" validate:"gtfield=DaysToExpiry,lte=3650"`
	ScanWorkers  int     `mapstructure:"scan_workers" json:"scan_workers" validate:"gte=0,lte=256"` // 0 = GOMAXPROCS
}

// ServerConfig holds HTTP API configuration.
type ServerConfig struct {
	Addr           string        `mapstructure:"addr" json:"addr" validate:"required"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout" json:"read_timeout" validate:"gt=0"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout" json:"write_timeout" validate:"gt=0"`
	RequestTimeout time.Duration `mapstructure:"request_timeout" json:"request_timeout" validate:"gt=0"`
}

// UIConfig holds UI-related configuration.
type UIConfig struct {
	ColorEnabled bool   `mapstructure:"color_enabled" json:"color_enabled"`
	DateFormat   string `mapstructure:"date_format" json:"date_format" validate:"required"`
}

// LoggingConfig holds log level and file rotation settings.
type LoggingConfig struct {
	Level      string `mapstructure:"level" json:"level" validate:"oneof=trace debug info warn warning error"`
	File       bool   `mapstructure:"file" json:"file"`
	FilePath   string `mapstructure:"file_path" json:"file_path"` // empty = <config dir>/logs/optlab.log
	MaxSizeMB  int    `mapstructure:"max_size_mb" json:"max_size_mb" validate:"gte=1"`
	MaxBackups int    `mapstructure:"max_backups" json:"max_backups" validate:"gte=0"`
	MaxAgeDays int    `mapstructure:"max_age_days" json:"max_age_days" validate:"gte=0"`
}

// DefaultConfigDir returns the default configuration directory.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".config/options-lab"
	}
	return filepath.Join(home, ".config", "options-lab")
}

// Load loads configuration from the specified directory.
// If configDir is empty, uses the default config directory. A missing
// config.toml is created from the commented template and the defaults apply.
func Load(configDir string) (*Config, error) {
	if configDir == "" {
		configDir = DefaultConfigDir()
	}

	v := viper.New()
	setDefaults(v)
	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(configDir)

	created := false
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, errors.Wrapf(errors.ErrConfigInvalid, "reading %s: %v", FileName, err)
		}
		if err := createTemplateConfig(configDir); err != nil {
			return nil, err
		}
		created = true
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, errors.Wrapf(errors.ErrConfigInvalid, "decoding %s: %v", FileName, err)
	}
	cfg.Dir = configDir
	cfg.Created = created

	// Apply environment variable overrides
	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// Default returns the built-in configuration without touching the disk.
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	cfg := &Config{Dir: DefaultConfigDir()}
	_ = v.Unmarshal(cfg)
	return cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("pricing.risk_free_rate", 0.05)
	v.SetDefault("pricing.default_volatility", 0.25)

	v.SetDefault("analysis.payoff_range", 0.30)
	v.SetDefault("analysis.search_range", 0.5)
	v.SetDefault("analysis.strike_width", 5.0)
	v.SetDefault("analysis.days_to_expiry", 30)
	v.SetDefault("analysis.far_days", 60)
	v.SetDefault("analysis.scan_workers", 0)

	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.read_timeout", "10s")
	v.SetDefault("server.write_timeout", "10s")
	v.SetDefault("server.request_timeout", "5s")

	v.SetDefault("ui.color_enabled", true)
	v.SetDefault("ui.date_format", "2006-01-02")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.file", false)
	v.SetDefault("logging.file_path", "")
	v.SetDefault("logging.max_size_mb", 50)
	v.SetDefault("logging.max_backups", 5)
	v.SetDefault("logging.max_age_days", 30)
}

func applyEnvOverrides(cfg *Config) error {
	if v := os.Getenv("OPTLAB_RISK_FREE_RATE"); v != "" {
		rate, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return errors.Wrapf(errors.ErrConfigInvalid, "OPTLAB_RISK_FREE_RATE=%q", v)
		}
		cfg.Pricing.RiskFreeRate = rate
	}
	if v := os.Getenv("OPTLAB_SERVER_ADDR"); v != "" {
		cfg.Server.Addr = v
	}
	if v := os.Getenv("OPTLAB_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	return nil
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := validation.FromValidator(configValidator.Struct(c), ""); err != nil {
		return errors.Join(errors.ErrConfigInvalid, err)
	}
	return nil
}

var configValidator = validation.New()

// LogConfig converts the logging section for logging.NewLoggerWithConfig.
func (c *Config) LogConfig() logging.LogConfig {
	path := c.Logging.FilePath
	if path == "" {
		path = filepath.Join(c.Dir, "logs", "optlab.log")
	}
	return logging.LogConfig{
		Level:      c.Logging.Level,
		Console:    true,
		File:       c.Logging.File,
		FilePath:   path,
		MaxSize:    c.Logging.MaxSizeMB,
		MaxBackups: c.Logging.MaxBackups,
		MaxAge:     c.Logging.MaxAgeDays,
	}
}

// Path is the full path of config.toml.
func (c *Config) Path() string {
	return filepath.Join(c.Dir, FileName)
}
