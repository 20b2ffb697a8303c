// Package config provides YAML-based configuration loading for the timetable core.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

// Supported storage drivers.
const (
	DriverMySQL    = "mysql"
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Config is the top-level configuration, loaded from coreplanx.yaml.
type Config struct {
	Storage     StorageConfig     `yaml:"storage"`
	Timeouts    TimeoutConfig     `yaml:"timeouts"`
	Variants    VariantConfig     `yaml:"variants"`
	API         APIConfig         `yaml:"api"`
	Maintenance MaintenanceConfig `yaml:"maintenance"`
}

// StorageConfig holds connection settings for the timetable database.
type StorageConfig struct {
	// Enabled is a pointer so that an omitted key defaults to true.
	Enabled   *bool  `yaml:"enabled"`
	Driver    string `yaml:"driver"`
	DSN       string `yaml:"dsn"`
	Host      string `yaml:"host"`
	Port      int    `yaml:"port"`
	Database  string `yaml:"database"`
	User      string `yaml:"user"`
	Password  string `yaml:"password"`
	LogLevel  string `yaml:"log_level"`
	BatchSize int    `yaml:"batch_size"`
}

// IsEnabled reports whether variant storage is configured.
func (s StorageConfig) IsEnabled() bool {
	return s.Enabled == nil || *s.Enabled
}

// TimeoutConfig bounds transaction durations.
type TimeoutConfig struct {
	Default time.Duration `yaml:"default"`
	Replace time.Duration `yaml:"replace"`
}

// VariantConfig classifies variants. Productive variants get a revision on
// every snapshot replacement.
type VariantConfig struct {
	Productive         []string `yaml:"productive"`
	ProductivePrefixes []string `yaml:"productive_prefixes"`
}

// IsProductive reports whether variantID names a productive variant.
func (v VariantConfig) IsProductive(variantID string) bool {
	for _, id := range v.Productive {
		if id == variantID {
			return true
		}
	}
	lower := strings.ToLower(variantID)
	for _, p := range v.ProductivePrefixes {
		if p != "" && strings.HasPrefix(lower, strings.ToLower(p)) {
			return true
		}
	}
	return false
}

// APIConfig configures the HTTP adapter started by `tt serve`.
type APIConfig struct {
	Port int `yaml:"port"`
}

// MaintenanceConfig schedules the lazy cleanup jobs run by `tt serve`.
type MaintenanceConfig struct {
	// PruneLinksCron is a 5-field cron expression; empty disables pruning.
	PruneLinksCron string `yaml:"prune_links_cron"`
	// LinkGrace keeps dangling links younger than this; a link may be
	// recorded before its target part exists.
	LinkGrace time.Duration `yaml:"link_grace"`
}

// Load reads a YAML config file from path and returns a validated Config.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse unmarshals YAML bytes into a validated Config.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns the configuration used when no config file exists.
func Default() *Config {
	var cfg Config
	cfg.applyDefaults()
	return &cfg
}

// applyDefaults fills in derived and default values.
func (c *Config) applyDefaults() {
	if c.Storage.Driver == "" {
		c.Storage.Driver = DriverMySQL
	}
	c.Storage.Driver = strings.ToLower(c.Storage.Driver)
	if c.Storage.Host == "" {
		c.Storage.Host = "127.0.0.1"
	}
	if c.Storage.Port == 0 {
		switch c.Storage.Driver {
		case DriverPostgres:
			c.Storage.Port = 5432
		default:
			c.Storage.Port = 3306
		}
	}
	if c.Storage.Database == "" {
		c.Storage.Database = "coreplanx"
	}
	if c.Storage.User == "" {
		if c.Storage.Driver == DriverPostgres {
			c.Storage.User = "postgres"
		} else {
			c.Storage.User = "root"
		}
	}
	if c.Storage.Driver == DriverSQLite && c.Storage.DSN == "" {
		c.Storage.DSN = "coreplanx.db"
	}
	if c.Storage.LogLevel == "" {
		c.Storage.LogLevel = "silent"
	}
	if c.Storage.BatchSize == 0 {
		c.Storage.BatchSize = 500
	}
	if c.Timeouts.Default == 0 {
		c.Timeouts.Default = 30 * time.Second
	}
	if c.Timeouts.Replace == 0 {
		c.Timeouts.Replace = 5 * time.Minute
	}
	if c.Variants.Productive == nil {
		c.Variants.Productive = []string{"default"}
	}
	if c.Variants.ProductivePrefixes == nil {
		c.Variants.ProductivePrefixes = []string{"prod"}
	}
	if c.API.Port == 0 {
		c.API.Port = 8080
	}
	if c.Maintenance.LinkGrace == 0 {
		c.Maintenance.LinkGrace = 24 * time.Hour
	}
}

// cronParser accepts standard 5-field cron expressions.
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// validate checks that all required fields are present and consistent.
func (c *Config) validate() error {
	var errs []string
	switch c.Storage.Driver {
	case DriverMySQL, DriverPostgres, DriverSQLite:
	default:
		errs = append(errs, fmt.Sprintf("storage.driver %q is not one of mysql, postgres, sqlite", c.Storage.Driver))
	}
	switch c.Storage.LogLevel {
	case "silent", "error", "warn", "info":
	default:
		errs = append(errs, fmt.Sprintf("storage.log_level %q is not one of silent, error, warn, info", c.Storage.LogLevel))
	}
	if c.Storage.BatchSize < 0 {
		errs = append(errs, "storage.batch_size must be positive")
	}
	if c.Timeouts.Default < 0 || c.Timeouts.Replace < 0 {
		errs = append(errs, "timeouts must be positive")
	}
	if c.Maintenance.LinkGrace < 0 {
		errs = append(errs, "maintenance.link_grace must be positive")
	}
	if c.API.Port < 0 || c.API.Port > 65535 {
		errs = append(errs, fmt.Sprintf("api.port %d out of range", c.API.Port))
	}
	if c.Maintenance.PruneLinksCron != "" {
		if _, err := cronParser.Parse(c.Maintenance.PruneLinksCron); err != nil {
			errs = append(errs, fmt.Sprintf("maintenance.prune_links_cron: %v", err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}
