package backup

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigLoader_MissingFileUsesDefaults(t *testing.T) {
	loader := NewConfigLoader(filepath.Join(t.TempDir(), "absent.yaml"))

	config, err := loader.LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), config)
}

func TestConfigLoader_LoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "backup.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
directory: /data/backups
file_prefix: scores
interval: 30s
file_mode: 0600
retention:
  max_backups: 3
export:
  compression: lz4
  level: 4
`), 0644))

	config, err := NewConfigLoader(path).LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "/data/backups", config.Directory)
	assert.Equal(t, "scores", config.FilePrefix)
	assert.Equal(t, 30*time.Second, config.Interval)
	assert.Equal(t, os.FileMode(0600), config.FileMode)
	assert.Equal(t, DefaultDirMode, config.DirMode)
	assert.Equal(t, 3, config.Retention.MaxBackups)
	assert.Equal(t, CompressionTypeLZ4, config.Export.Compression)
	assert.Equal(t, 4, config.Export.Level)
}

func TestConfigLoader_EnvironmentOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "backup.yaml")
	require.NoError(t, os.WriteFile(path, []byte("retention:\n  max_backups: 3\n"), 0644))
	t.Setenv("BACKUP_MAX_BACKUPS", "8")

	config, err := NewConfigLoader(path).LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, 8, config.Retention.MaxBackups)
}

func TestConfigLoader_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantMsg string
	}{
		{"malformed YAML", "retention: [", "failed to parse YAML config"},
		{"invalid values", "retention:\n  max_backups: -1\n", "configuration validation failed"},
		{"bad duration", "interval: often\n", "failed to parse YAML config"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "backup.yaml")
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0644))

			config, err := NewConfigLoader(path).LoadConfig()
			require.Error(t, err)
			assert.Nil(t, config)
			assert.Contains(t, err.Error(), tt.wantMsg)
		})
	}
}

func TestConfigLoader_SaveConfigRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "backup.yaml")
	loader := NewConfigLoader(path)

	original := DefaultConfig()
	original.Directory = "/data/results"
	original.Interval = 45 * time.Second
	original.Retention.MaxBackups = 6
	original.Export.Compression = CompressionTypeZstd

	require.NoError(t, loader.SaveConfig(original))

	loaded, err := loader.LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, original, loaded)
	assert.Equal(t, []string{"backup.yaml"}, dirNames(t, filepath.Dir(path)))
}

func TestConfigLoader_SaveConfigRejectsInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "backup.yaml")
	config := DefaultConfig()
	config.Retention.MaxBackups = 0

	err := NewConfigLoader(path).SaveConfig(config)
	require.Error(t, err)

	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr))
}

func TestGenerateDefaultConfigYAML(t *testing.T) {
	config, err := LoadConfigFromBytes(GenerateDefaultConfigYAML())
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), config)
}

func TestLoadConfigFromBytes_Invalid(t *testing.T) {
	_, err := LoadConfigFromBytes([]byte("file_prefix: a/b\n"))
	assert.Error(t, err)
}
