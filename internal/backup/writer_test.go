package backup

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/juju/clock/testclock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestWriter(t *testing.T) (*SnapshotWriter, *ResultStore, *testclock.Clock) {
	t.Helper()

	config := newTestConfig(t)
	store := NewResultStore()
	clk := testclock.NewClock(testEpoch)
	logger, _ := newTestBackupLogger(t)
	return NewSnapshotWriter(store, config, clk, logger), store, clk
}

func TestSnapshotWriter_NothingToBackup(t *testing.T) {
	writer, _, _ := newTestWriter(t)

	record, err := writer.CreateBackup(context.Background(), TriggerForced)
	assert.ErrorIs(t, err, ErrNothingToBackup)
	assert.Nil(t, record)
	assert.Empty(t, dirNames(t, writer.dir))
}

func TestSnapshotWriter_CreateBackup(t *testing.T) {
	writer, store, _ := newTestWriter(t)
	store.Update(Snapshot{"a": 1})

	record, err := writer.CreateBackup(context.Background(), TriggerForced)
	require.NoError(t, err)

	assert.Equal(t, "results_backup_20240309_143000.json", record.Name)
	assert.Equal(t, filepath.Join(writer.dir, record.Name), record.Path)
	assert.True(t, filepath.IsAbs(record.Path))
	assert.Greater(t, record.Size, int64(0))
	assert.Equal(t, []string{record.Name}, dirNames(t, writer.dir))

	data, err := os.ReadFile(record.Path)
	require.NoError(t, err)
	assert.JSONEq(t, `{"a": 1}`, string(data))
	assert.Equal(t, int64(len(data)), record.Size)
}

func TestSnapshotWriter_SameSecondGetsSequenceSuffix(t *testing.T) {
	writer, store, clk := newTestWriter(t)
	store.Update(Snapshot{"a": 1})

	var names []string
	for i := 0; i < 3; i++ {
		record, err := writer.CreateBackup(context.Background(), TriggerForced)
		require.NoError(t, err)
		names = append(names, record.Name)
	}

	clk.Advance(time.Second)
	record, err := writer.CreateBackup(context.Background(), TriggerForced)
	require.NoError(t, err)
	names = append(names, record.Name)

	assert.Equal(t, []string{
		"results_backup_20240309_143000.json",
		"results_backup_20240309_143000_001.json",
		"results_backup_20240309_143000_002.json",
		"results_backup_20240309_143001.json",
	}, names)

	for i := 1; i < len(names); i++ {
		assert.Less(t, names[i-1], names[i], "file name order must follow creation order")
	}
}

func TestSnapshotWriter_SkipsNamesAlreadyOnDisk(t *testing.T) {
	writer, store, _ := newTestWriter(t)
	store.Update(Snapshot{"a": 1})

	writeBackupFile(t, writer.dir, "results_backup_20240309_143000.json", `{"old": true}`, testEpoch)

	record, err := writer.CreateBackup(context.Background(), TriggerScheduled)
	require.NoError(t, err)
	assert.Equal(t, "results_backup_20240309_143000_001.json", record.Name)

	data, err := os.ReadFile(filepath.Join(writer.dir, "results_backup_20240309_143000.json"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"old": true}`, string(data))
}

func TestSnapshotWriter_PreservesTextVerbatim(t *testing.T) {
	writer, store, _ := newTestWriter(t)
	store.Update(Snapshot{"title": "Zürich <résumé> & 東京"})

	record, err := writer.CreateBackup(context.Background(), TriggerForced)
	require.NoError(t, err)

	data, err := os.ReadFile(record.Path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "Zürich <résumé> & 東京")
	assert.Contains(t, string(data), "\n  \"title\"", "output should be indented")
}

func TestSnapshotWriter_RenameFailureLeavesNoFinalFile(t *testing.T) {
	writer, store, _ := newTestWriter(t)
	store.Update(Snapshot{"a": 1})

	var tempSeen, finalSeen bool
	writer.rename = func(oldpath, newpath string) error {
		_, err := os.Stat(oldpath)
		tempSeen = err == nil
		_, err = os.Stat(newpath)
		finalSeen = err == nil
		return errors.New("interrupted")
	}

	record, err := writer.CreateBackup(context.Background(), TriggerForced)
	require.Error(t, err)
	assert.Nil(t, record)

	var backupErr *BackupError
	require.ErrorAs(t, err, &backupErr)
	assert.Equal(t, BackupErrorTypeStorage, backupErr.Type)

	assert.True(t, tempSeen, "temp file should be complete before the rename")
	assert.False(t, finalSeen, "final name must not exist before the rename")
	assert.Empty(t, dirNames(t, writer.dir), "temp file should be removed after a failed rename")
}

func TestSnapshotWriter_StatFailureAfterRenameStillSucceeds(t *testing.T) {
	writer, store, _ := newTestWriter(t)
	store.Update(Snapshot{"a": 1})

	writer.stat = func(name string) (os.FileInfo, error) {
		return nil, &os.PathError{Op: "stat", Path: name, Err: errors.New("i/o error")}
	}

	record, err := writer.CreateBackup(context.Background(), TriggerForced)
	require.NoError(t, err)
	require.NotNil(t, record)
	assert.Equal(t, "results_backup_20240309_143000.json", record.Name)
	assert.Equal(t, filepath.Join(writer.dir, record.Name), record.Path)
	assert.True(t, record.CreatedAt.Equal(testEpoch))

	data, err := os.ReadFile(record.Path)
	require.NoError(t, err)
	assert.Equal(t, int64(len(data)), record.Size)
	assert.Equal(t, []string{record.Name}, dirNames(t, writer.dir))
}

func TestSnapshotWriter_TempNamesAreUnique(t *testing.T) {
	writer, store, _ := newTestWriter(t)
	store.Update(Snapshot{"a": 1})

	var temps []string
	writer.rename = func(oldpath, newpath string) error {
		temps = append(temps, oldpath)
		assert.True(t, strings.HasPrefix(oldpath, newpath+"."))
		assert.True(t, strings.HasSuffix(oldpath, tempExtension))
		return os.Rename(oldpath, newpath)
	}

	for i := 0; i < 2; i++ {
		_, err := writer.CreateBackup(context.Background(), TriggerForced)
		require.NoError(t, err)
	}

	require.Len(t, temps, 2)
	assert.NotEqual(t, temps[0], temps[1])
}

func TestSnapshotWriter_UnencodableSnapshot(t *testing.T) {
	writer, store, _ := newTestWriter(t)
	store.Update(Snapshot{"callback": func() {}})

	_, err := writer.CreateBackup(context.Background(), TriggerForced)
	require.Error(t, err)

	var backupErr *BackupError
	require.ErrorAs(t, err, &backupErr)
	assert.Equal(t, BackupErrorTypeValidation, backupErr.Type)
	assert.Empty(t, dirNames(t, writer.dir))
}

func TestSnapshotWriter_UnwritableDirectory(t *testing.T) {
	writer, store, _ := newTestWriter(t)
	store.Update(Snapshot{"a": 1})

	// a regular file where the directory should be
	require.NoError(t, os.MkdirAll(filepath.Dir(writer.dir), 0755))
	require.NoError(t, os.WriteFile(writer.dir, []byte("not a dir"), 0644))

	record, err := writer.CreateBackup(context.Background(), TriggerForced)
	require.Error(t, err)
	assert.Nil(t, record)
}

func TestSnapshotWriter_CancelledContext(t *testing.T) {
	writer, store, _ := newTestWriter(t)
	store.Update(Snapshot{"a": 1})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := writer.CreateBackup(ctx, TriggerScheduled)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, dirNames(t, writer.dir))
}

func TestBackupFileName(t *testing.T) {
	tests := []struct {
		seq  int
		want string
	}{
		{0, "results_20240101_000000.json"},
		{1, "results_20240101_000000_001.json"},
		{42, "results_20240101_000000_042.json"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, backupFileName("results", "20240101_000000", tt.seq))
	}
}
