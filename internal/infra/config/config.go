// Package config provides configuration loading from YAML files.
package config

import (
	"os"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Config represents the application configuration.
type Config struct {
	Hardware    HardwareConfig    `yaml:"hardware"`
	Association AssociationConfig `yaml:"association"`
	Store       StoreConfig       `yaml:"store"`
}

// HardwareConfig selects and configures the NFC reader driver.
type HardwareConfig struct {
	Driver   string         `yaml:"driver" default:"mock" validate:"required"`
	Settings map[string]any `yaml:"settings,omitempty"`
}

// AssociationConfig tunes the association engine.
type AssociationConfig struct {
	DefaultTimeoutSec  int `yaml:"default_timeout_sec" default:"60" validate:"gte=5,lte=600"`
	CleanupIntervalSec int `yaml:"cleanup_interval_sec" default:"30" validate:"gte=1,lte=300"`
	TagCooldownSec     int `yaml:"tag_cooldown_sec" default:"2" validate:"gte=0,lte=60"`
	QueueSize          int `yaml:"queue_size" default:"64" validate:"gte=1,lte=1024"`
}

// StoreConfig configures the persistence layer.
type StoreConfig struct {
	Path string `yaml:"path" default:"data/klangbox.db" validate:"required"`
}

// Load loads configuration from a YAML file. A missing file is not an
// error: the device ships with defaults and an optional config.
// Environment variables take precedence over file values.
func Load(path string) (*Config, error) {
	var cfg Config

	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
		// Defaults only.
	case err != nil:
		return nil, errors.Wrap(err, "failed to read config file")
	default:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, errors.Wrap(err, "failed to parse config file")
		}
	}

	cfg.overrideFromEnv()

	if err := defaults.Set(&cfg); err != nil {
		return nil, errors.Wrap(err, "failed to set defaults")
	}

	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "config validation failed")
	}

	return &cfg, nil
}

// overrideFromEnv overrides config values with environment variables.
func (c *Config) overrideFromEnv() {
	if v := os.Getenv("KLANGBOX_DB_PATH"); v != "" {
		c.Store.Path = v
	}
	if v := os.Getenv("KLANGBOX_HARDWARE_DRIVER"); v != "" {
		c.Hardware.Driver = v
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return errors.Wrap(err, "struct validation failed")
	}
	return nil
}

// DefaultTimeout returns the default association session window.
func (c *Config) DefaultTimeout() time.Duration {
	return time.Duration(c.Association.DefaultTimeoutSec) * time.Second
}

// CleanupInterval returns the sweep loop interval.
func (c *Config) CleanupInterval() time.Duration {
	return time.Duration(c.Association.CleanupIntervalSec) * time.Second
}

// TagCooldown returns the per-tag detection cooldown window.
func (c *Config) TagCooldown() time.Duration {
	return time.Duration(c.Association.TagCooldownSec) * time.Second
}
