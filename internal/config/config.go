package config

import (
	"fmt"
	"time"
)

// Config represents the main configuration structure
type Config struct {
	DataDir string `json:"data_dir" mapstructure:"data-dir"`

	// Sync settings
	SyncMaxAge   time.Duration `json:"sync_max_age" mapstructure:"sync-max-age"`
	SyncPageSize int           `json:"sync_page_size" mapstructure:"sync-page-size"`

	// Upstream registry endpoints; overridable for testing
	OfficialRegistryURL string `json:"official_registry_url,omitempty" mapstructure:"official-registry-url"`
	GlamaURL            string `json:"glama_url,omitempty" mapstructure:"glama-url"`
	SmitheryURL         string `json:"smithery_url,omitempty" mapstructure:"smithery-url"`

	// Logging configuration
	Logging *LogConfig `json:"logging,omitempty" mapstructure:"logging"`
}

// LogConfig represents logging configuration
type LogConfig struct {
	Level         string `json:"level" mapstructure:"level"`
	EnableFile    bool   `json:"enable_file" mapstructure:"enable-file"`
	EnableConsole bool   `json:"enable_console" mapstructure:"enable-console"`
	Filename      string `json:"filename" mapstructure:"filename"`
	LogDir        string `json:"log_dir,omitempty" mapstructure:"log-dir"`
	MaxSize       int    `json:"max_size" mapstructure:"max-size"`       // MB
	MaxBackups    int    `json:"max_backups" mapstructure:"max-backups"` // number of backup files
	MaxAge        int    `json:"max_age" mapstructure:"max-age"`         // days
	Compress      bool   `json:"compress" mapstructure:"compress"`
	JSONFormat    bool   `json:"json_format" mapstructure:"json-format"`
}

// Default upstream endpoints
const (
	DefaultOfficialRegistryURL = "https://registry.modelcontextprotocol.io"
	DefaultGlamaURL            = "https://glama.ai/api/mcp"
	DefaultSmitheryURL         = "https://registry.smithery.ai"
)

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	return &Config{
		SyncMaxAge:          15 * time.Minute,
		SyncPageSize:        100,
		OfficialRegistryURL: DefaultOfficialRegistryURL,
		GlamaURL:            DefaultGlamaURL,
		SmitheryURL:         DefaultSmitheryURL,
		Logging: &LogConfig{
			Level:         "info",
			EnableFile:    false,
			EnableConsole: true,
			Filename:      "main.log",
			MaxSize:       10,
			MaxBackups:    5,
			MaxAge:        30,
			Compress:      true,
			JSONFormat:    false,
		},
	}
}

// Validate checks the configuration for invalid values
func (c *Config) Validate() error {
	if c.SyncMaxAge < 0 {
		return fmt.Errorf("sync_max_age cannot be negative")
	}
	if c.SyncPageSize < 1 || c.SyncPageSize > 100 {
		return fmt.Errorf("sync_page_size must be between 1 and 100, got %d", c.SyncPageSize)
	}
	return nil
}
