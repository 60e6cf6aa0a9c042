package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"starlift/pkg/models"
)

// GetConfigPath returns the directory holding the starlift config file.
func GetConfigPath() string {
	if configPath := os.Getenv("STARLIFT_CONFIG"); configPath != "" {
		return filepath.Dir(configPath)
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".starlift")
}

// GetConfigFile returns the full path of the config file.
func GetConfigFile() string {
	if configFile := os.Getenv("STARLIFT_CONFIG"); configFile != "" {
		return filepath.Clean(configFile)
	}
	return filepath.Join(GetConfigPath(), "config.yaml")
}

// Load reads the config file; a missing file yields an empty config.
func Load() (*models.Config, error) {
	configFile := GetConfigFile()

	if _, err := os.Stat(configFile); os.IsNotExist(err) {
		return &models.Config{}, nil
	}

	data, err := os.ReadFile(configFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config models.Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	applyDefaults(&config)
	return &config, nil
}

// Save writes the config file, creating the config directory if needed.
func Save(config *models.Config) error {
	configPath := GetConfigPath()
	if err := os.MkdirAll(configPath, 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(GetConfigFile(), data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Exists reports whether a config file is present.
func Exists() bool {
	_, err := os.Stat(GetConfigFile())
	return err == nil
}

func applyDefaults(c *models.Config) {
	if c.Gateway.PageSize <= 0 {
		c.Gateway.PageSize = 200
	}
	if c.Gateway.Timeout == "" {
		c.Gateway.Timeout = "30s"
	}
	if c.Warehouse.Port == 0 {
		c.Warehouse.Port = 5432
	}
	if c.Warehouse.SSLMode == "" {
		c.Warehouse.SSLMode = "disable"
	}
	if c.Warehouse.Timeout == "" {
		c.Warehouse.Timeout = "30s"
	}
	if c.Pipeline.ChecksumFile == "" {
		c.Pipeline.ChecksumFile = filepath.Join(GetConfigPath(), "checksums.json")
	}
	if c.Pipeline.LowStock <= 0 {
		c.Pipeline.LowStock = 10
	}
}
