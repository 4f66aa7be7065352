// Package config loads the bridge configuration from a YAML file with
// sensible defaults when the file is absent.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Config holds application configuration.
type Config struct {
	// Server settings for the JSON front end.
	Host string `mapstructure:"host"`
	Port string `mapstructure:"port"`

	// Interpreter is the script interpreter binary fed generated script
	// text on stdin.
	Interpreter string `mapstructure:"interpreter"`

	// TimeoutSec bounds each script run.
	TimeoutSec int `mapstructure:"timeout_sec"`

	// MaxAttachmentBytes is the per-file limit for outgoing attachments.
	MaxAttachmentBytes int64 `mapstructure:"max_attachment_bytes"`

	// BulkLimit caps bulk operations unless the caller forces past it.
	BulkLimit int `mapstructure:"bulk_limit"`

	// Audit settings for the invocation log.
	AuditEnabled bool   `mapstructure:"audit_enabled"`
	AuditPath    string `mapstructure:"audit_path"`
}

// DefaultConfigPath returns ~/.mailbridge/config.yaml.
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", "config.yaml")
	}
	return filepath.Join(home, ".mailbridge", "config.yaml")
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return filepath.Join(home, ".mailbridge")
}

// Load reads configuration from the given YAML file. A missing file yields
// the defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.SetDefault("host", "localhost")
	v.SetDefault("port", "8765")
	v.SetDefault("interpreter", "/usr/bin/osascript")
	v.SetDefault("timeout_sec", 60)
	v.SetDefault("max_attachment_bytes", 25*1024*1024)
	v.SetDefault("bulk_limit", 100)
	v.SetDefault("audit_enabled", true)
	v.SetDefault("audit_path", filepath.Join(defaultDataDir(), "audit.db"))

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(*os.PathError); ok {
			return unmarshal(v, path)
		}
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return unmarshal(v, path)
		}
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}
	return unmarshal(v, path)
}

func unmarshal(v *viper.Viper, path string) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	return &cfg, nil
}

// Timeout returns the script timeout as a duration.
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.TimeoutSec) * time.Second
}

// Address returns the full server address.
func (c *Config) Address() string {
	return c.Host + ":" + c.Port
}
