package backup

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"results-backup/internal/logging"

	"github.com/stretchr/testify/require"
)

var testEpoch = time.Date(2024, time.March, 9, 14, 30, 0, 0, time.UTC)

func newTestConfig(t *testing.T) *Config {
	t.Helper()

	config := DefaultConfig()
	config.Directory = filepath.Join(t.TempDir(), "backups")
	config.Interval = time.Second
	config.Retention.MaxBackups = 3
	return config
}

func newTestBackupLogger(t *testing.T) (*BackupLogger, *bytes.Buffer) {
	t.Helper()

	var buf bytes.Buffer
	logger, err := logging.NewLogger(logging.Config{
		Level:  logging.LogLevelVerbose,
		Output: &buf,
		Format: "json",
	})
	require.NoError(t, err)

	bl, err := NewBackupLogger(BackupLoggerConfig{Logger: logger})
	require.NoError(t, err)
	return bl, &buf
}

// writeBackupFile drops a backup file with a fixed modification time into dir.
func writeBackupFile(t *testing.T, dir, name, content string, modTime time.Time) string {
	t.Helper()

	require.NoError(t, os.MkdirAll(dir, 0755))
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	require.NoError(t, os.Chtimes(path, modTime, modTime))
	return path
}

func dirNames(t *testing.T, dir string) []string {
	t.Helper()

	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil
	}
	require.NoError(t, err)

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		names = append(names, entry.Name())
	}
	return names
}

func recordNames(records []BackupRecord) []string {
	names := make([]string, 0, len(records))
	for _, record := range records {
		names = append(names, record.Name)
	}
	return names
}
