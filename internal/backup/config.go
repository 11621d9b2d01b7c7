package backup

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

const (
	DefaultDirectory  = "./backups"
	DefaultFilePrefix = "results_backup"
	DefaultInterval   = 5 * time.Minute
	DefaultMaxBackups = 10
	DefaultFileMode   = os.FileMode(0644)
	DefaultDirMode    = os.FileMode(0755)
)

// Config is the complete backup manager configuration
type Config struct {
	Directory  string          `yaml:"directory"`
	FilePrefix string          `yaml:"file_prefix"`
	Interval   time.Duration   `yaml:"interval"`
	Retention  RetentionConfig `yaml:"retention"`
	FileMode   os.FileMode     `yaml:"file_mode"`
	DirMode    os.FileMode     `yaml:"dir_mode"`
	Export     ExportConfig    `yaml:"export"`
	Audit      AuditConfig     `yaml:"audit"`
}

// RetentionConfig defines backup retention policies
type RetentionConfig struct {
	MaxBackups int `yaml:"max_backups"`
}

// ExportConfig defines the defaults for compressed exports
type ExportConfig struct {
	Compression CompressionType `yaml:"compression"`
	Level       int             `yaml:"level"` // 0 picks the algorithm default
}

// AuditConfig enables the JSON audit trail
type AuditConfig struct {
	Enabled bool   `yaml:"enabled"`
	File    string `yaml:"file"`
}

// DefaultConfig returns a configuration with every default applied.
func DefaultConfig() *Config {
	config := &Config{}
	config.SetDefaults()
	return config
}

// BackupDir returns the absolute backup directory.
func (c *Config) BackupDir() string {
	dir, err := filepath.Abs(c.Directory)
	if err != nil {
		return filepath.Clean(c.Directory)
	}
	return dir
}

// Validate validates the Config
func (c *Config) Validate() error {
	var errors ValidationErrors

	if strings.TrimSpace(c.Directory) == "" {
		errors.Add("directory", "backup directory is required", c.Directory)
	}

	if c.FilePrefix == "" {
		errors.Add("file_prefix", "file prefix is required", c.FilePrefix)
	} else if strings.ContainsAny(c.FilePrefix, `/\`) {
		errors.Add("file_prefix", "file prefix cannot contain path separators", c.FilePrefix)
	}

	if c.Interval <= 0 {
		errors.Add("interval", "backup interval must be positive", c.Interval)
	}

	if err := c.Retention.Validate(); err != nil {
		if validationErrs, ok := err.(ValidationErrors); ok {
			errors = append(errors, validationErrs...)
		} else {
			errors.Add("retention", err.Error(), nil)
		}
	}

	if c.FileMode&^os.ModePerm != 0 {
		errors.Add("file_mode", "file mode may only contain permission bits", c.FileMode)
	}
	if c.DirMode&^os.ModePerm != 0 {
		errors.Add("dir_mode", "dir mode may only contain permission bits", c.DirMode)
	}

	if err := c.Export.Validate(); err != nil {
		if validationErrs, ok := err.(ValidationErrors); ok {
			errors = append(errors, validationErrs...)
		} else {
			errors.Add("export", err.Error(), nil)
		}
	}

	if c.Audit.Enabled && c.Audit.File == "" {
		errors.Add("audit.file", "audit file is required when audit logging is enabled", c.Audit.File)
	}

	if errors.HasErrors() {
		return errors
	}

	return nil
}

// SetDefaults fills every zero field with its default
func (c *Config) SetDefaults() {
	if c.Directory == "" {
		c.Directory = DefaultDirectory
	}
	if c.FilePrefix == "" {
		c.FilePrefix = DefaultFilePrefix
	}
	if c.Interval == 0 {
		c.Interval = DefaultInterval
	}
	if c.FileMode == 0 {
		c.FileMode = DefaultFileMode
	}
	if c.DirMode == 0 {
		c.DirMode = DefaultDirMode
	}

	c.Retention.SetDefaults()
	c.Export.SetDefaults()
}

// LoadFromEnvironment loads configuration values from environment variables
func (c *Config) LoadFromEnvironment() {
	if val := os.Getenv("BACKUP_DIR"); val != "" {
		c.Directory = val
	}

	if val := os.Getenv("BACKUP_FILE_PREFIX"); val != "" {
		c.FilePrefix = val
	}

	if val := os.Getenv("BACKUP_INTERVAL"); val != "" {
		if parsed, err := time.ParseDuration(val); err == nil {
			c.Interval = parsed
		}
	}

	c.Retention.LoadFromEnvironment()
	c.Export.LoadFromEnvironment()
}

// Validate validates the RetentionConfig
func (rc *RetentionConfig) Validate() error {
	var errors ValidationErrors

	if rc.MaxBackups < 1 {
		errors.Add("retention.max_backups", "at least one backup must be retained", rc.MaxBackups)
	}

	if errors.HasErrors() {
		return errors
	}

	return nil
}

// SetDefaults sets default values for retention configuration
func (rc *RetentionConfig) SetDefaults() {
	if rc.MaxBackups == 0 {
		rc.MaxBackups = DefaultMaxBackups
	}
}

// LoadFromEnvironment loads retention configuration from environment variables
func (rc *RetentionConfig) LoadFromEnvironment() {
	if val := os.Getenv("BACKUP_MAX_BACKUPS"); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			rc.MaxBackups = parsed
		}
	}
}

// Validate validates the ExportConfig
func (ec *ExportConfig) Validate() error {
	var errors ValidationErrors

	if !isValidCompressionType(ec.Compression) {
		errors.Add("export.compression", "invalid compression algorithm", ec.Compression)
	} else if ec.Level != 0 && ec.Compression != CompressionTypeNone {
		if levels, err := Levels(ec.Compression); err == nil && !levels.Contains(ec.Level) {
			errors.Add("export.level", fmt.Sprintf("%s compression level must be between %d and %d",
				ec.Compression, levels.Min, levels.Max), ec.Level)
		}
	}

	if errors.HasErrors() {
		return errors
	}

	return nil
}

// SetDefaults sets default values for export configuration
func (ec *ExportConfig) SetDefaults() {
	if ec.Compression == "" {
		ec.Compression = CompressionTypeGzip
	}
}

// LoadFromEnvironment loads export configuration from environment variables
func (ec *ExportConfig) LoadFromEnvironment() {
	if val := os.Getenv("BACKUP_EXPORT_COMPRESSION"); val != "" {
		ec.Compression = CompressionType(strings.ToLower(val))
	}

	if val := os.Getenv("BACKUP_EXPORT_LEVEL"); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			ec.Level = parsed
		}
	}
}
