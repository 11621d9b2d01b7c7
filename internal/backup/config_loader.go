package backup

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// ConfigLoader handles loading and parsing backup configuration
type ConfigLoader struct {
	configPath string
}

// NewConfigLoader creates a new configuration loader
func NewConfigLoader(configPath string) *ConfigLoader {
	return &ConfigLoader{
		configPath: configPath,
	}
}

// LoadConfig loads defaults, then the YAML file if present, then environment
// overrides, and validates the result.
func (cl *ConfigLoader) LoadConfig() (*Config, error) {
	config := &Config{}

	if cl.configPath != "" {
		if err := cl.loadFromFile(config); err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
	}

	config.SetDefaults()
	config.LoadFromEnvironment()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}

func (cl *ConfigLoader) loadFromFile(config *Config) error {
	data, err := os.ReadFile(cl.configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read config file %s: %w", cl.configPath, err)
	}

	if err := yaml.Unmarshal(data, config); err != nil {
		return fmt.Errorf("failed to parse YAML config: %w", err)
	}

	return nil
}

// SaveConfig saves the backup configuration to a YAML file
func (cl *ConfigLoader) SaveConfig(config *Config) error {
	if err := config.Validate(); err != nil {
		return fmt.Errorf("cannot save invalid configuration: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(cl.configPath), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal config to YAML: %w", err)
	}

	if err := writeFileAtomic(cl.configPath, data, 0644, os.Rename); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// LoadConfigFromBytes loads configuration from YAML bytes
func LoadConfigFromBytes(data []byte) (*Config, error) {
	config := &Config{}

	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse YAML config: %w", err)
	}

	config.SetDefaults()
	config.LoadFromEnvironment()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}

// GenerateDefaultConfigYAML generates a default configuration as YAML with comments
func GenerateDefaultConfigYAML() []byte {
	return []byte(`# Results backup configuration

# Directory holding the backup files
directory: "./backups"

# Backup files are named <file_prefix>_<YYYYMMDD>_<HHMMSS>.json
file_prefix: results_backup

# Time between two scheduled backups
interval: 5m

# Permissions for backup files and the backup directory
file_mode: 0644
dir_mode: 0755

retention:
  # Number of most recent backups to keep
  max_backups: 10

# Defaults for "backup export"
export:
  # Compression algorithm: gzip, lz4, zstd, none
  compression: gzip

  # Compression level, 0 picks the algorithm default
  # (1-9 for gzip, 1-9 for lz4, 1-4 for zstd)
  level: 0

# JSON audit trail of every backup operation
audit:
  enabled: false
  # file: "./backups/audit.log"
`)
}
