package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

const (
	// DefaultDataDir is the directory under $HOME used when no data dir is configured
	DefaultDataDir = ".mcpfinder"

	// ConfigFileName is the optional config file looked up inside the data directory
	ConfigFileName = "mcpfinder.json"

	// DataDirEnvVar overrides the data directory location
	DataDirEnvVar = "MCPFINDER_DATA_DIR"
)

// Load loads configuration from file, environment, and defaults.
// Precedence: explicit configPath > <dataDir>/mcpfinder.json > defaults,
// with MCPFINDER_DATA_DIR overriding the data directory.
func Load(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	if configPath != "" {
		if err := loadConfigFile(configPath, cfg); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	// Environment override for the data directory
	if envDir := os.Getenv(DataDirEnvVar); envDir != "" {
		cfg.DataDir = envDir
	}

	if cfg.DataDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get user home directory: %w", err)
		}
		cfg.DataDir = filepath.Join(homeDir, DefaultDataDir)
	}

	// Auto-load a config file from the data directory when none was given
	if configPath == "" {
		autoPath := filepath.Join(cfg.DataDir, ConfigFileName)
		if _, err := os.Stat(autoPath); err == nil {
			if err := loadConfigFile(autoPath, cfg); err != nil {
				return nil, fmt.Errorf("failed to load config file %s: %w", autoPath, err)
			}
			// The file may not carry a data_dir; keep the resolved one
			if cfg.DataDir == "" {
				cfg.DataDir = filepath.Dir(autoPath)
			}
		}
	}

	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory %s: %w", cfg.DataDir, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// loadConfigFile reads a JSON config file into cfg using viper
func loadConfigFile(path string, cfg *Config) error {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("json")

	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("failed to read config: %w", err)
	}

	if err := v.Unmarshal(cfg); err != nil {
		return fmt.Errorf("failed to parse config: %w", err)
	}

	return nil
}

// SaveConfig writes the configuration to the given path as indented JSON
func SaveConfig(cfg *Config, path string) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
