package backup

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/juju/clock"
)

const (
	backupExtension = ".json"
	tempExtension   = ".tmp"
	timestampLayout = "20060102_150405"
)

// SnapshotWriter persists the current snapshot of a ResultStore. Files are
// written under a unique temporary name and renamed into place, so a file
// with a final backup name is always complete.
type SnapshotWriter struct {
	store  *ResultStore
	config *Config
	dir    string
	clock  clock.Clock
	logger *BackupLogger

	// rename and stat are os.Rename and os.Stat outside of tests.
	rename func(oldpath, newpath string) error
	stat   func(name string) (os.FileInfo, error)

	mu        sync.Mutex
	lastStamp string
	seq       int
}

// NewSnapshotWriter creates a writer for the given store.
func NewSnapshotWriter(store *ResultStore, config *Config, clk clock.Clock, logger *BackupLogger) *SnapshotWriter {
	if clk == nil {
		clk = clock.WallClock
	}
	if logger == nil {
		logger = defaultBackupLogger()
	}

	return &SnapshotWriter{
		store:  store,
		config: config,
		dir:    config.BackupDir(),
		clock:  clk,
		logger: logger,
		rename: os.Rename,
		stat:   os.Stat,
	}
}

// CreateBackup writes the current snapshot to a new backup file. It returns
// ErrNothingToBackup if the store was never updated.
func (w *SnapshotWriter) CreateBackup(ctx context.Context, trigger Trigger) (record *BackupRecord, err error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	snapshot, ok := w.store.Read()
	if !ok {
		w.logger.Logger().WithField("trigger", string(trigger)).Debug("No results stored yet, skipping backup")
		return nil, ErrNothingToBackup
	}

	finish := w.logger.LogBackupCreate(ctx, trigger, w.dir)
	defer func() { finish(err, record) }()

	data, err := encodeSnapshot(snapshot)
	if err != nil {
		return nil, NewValidationError("snapshot cannot be encoded as JSON", err)
	}

	if err := os.MkdirAll(w.dir, w.config.DirMode); err != nil {
		return nil, newFileError("failed to create backup directory", w.dir, err)
	}

	finalPath := w.nextPath()
	start := time.Now()
	err = writeFileAtomic(finalPath, data, w.config.FileMode, w.rename)
	w.logger.Logger().LogFileWrite(finalPath, int64(len(data)), time.Since(start), err)
	if err != nil {
		return nil, err
	}

	// Once renamed the backup exists. A failed stat is only logged and the
	// record falls back to what was written.
	info, statErr := w.stat(finalPath)
	if statErr != nil {
		w.logger.Logger().WithFields(map[string]interface{}{
			"path":  finalPath,
			"error": statErr.Error(),
		}).Warn("Backup written but could not be inspected")
		now := w.clock.Now()
		return &BackupRecord{
			Name:       filepath.Base(finalPath),
			Path:       finalPath,
			Size:       int64(len(data)),
			CreatedAt:  now,
			ModifiedAt: now,
		}, nil
	}
	return recordFromInfo(finalPath, info), nil
}

// nextPath returns a fresh final path for the current clock second. Backups
// taken within the same second get a _NNN suffix, which keeps filename order
// equal to creation order.
func (w *SnapshotWriter) nextPath() string {
	w.mu.Lock()
	defer w.mu.Unlock()

	stamp := w.clock.Now().Format(timestampLayout)
	if stamp == w.lastStamp {
		w.seq++
	} else {
		w.lastStamp = stamp
		w.seq = 0
	}

	for {
		path := filepath.Join(w.dir, backupFileName(w.config.FilePrefix, stamp, w.seq))
		if _, err := os.Lstat(path); os.IsNotExist(err) {
			return path
		}
		w.seq++
	}
}

func backupFileName(prefix, stamp string, seq int) string {
	if seq == 0 {
		return fmt.Sprintf("%s_%s%s", prefix, stamp, backupExtension)
	}
	return fmt.Sprintf("%s_%s_%03d%s", prefix, stamp, seq, backupExtension)
}

// encodeSnapshot renders indented JSON with non-ASCII and HTML characters
// left as they are.
func encodeSnapshot(snapshot Snapshot) ([]byte, error) {
	var buf bytes.Buffer
	encoder := json.NewEncoder(&buf)
	encoder.SetEscapeHTML(false)
	encoder.SetIndent("", "  ")

	if err := encoder.Encode(snapshot); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// writeFileAtomic writes data next to finalPath under a unique temporary name,
// syncs it and renames it into place. The temporary file is removed on any
// failure.
func writeFileAtomic(finalPath string, data []byte, mode os.FileMode, rename func(oldpath, newpath string) error) (err error) {
	tempPath := fmt.Sprintf("%s.%s%s", finalPath, uuid.New().String(), tempExtension)

	file, err := os.OpenFile(tempPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, mode)
	if err != nil {
		return newFileError("failed to create temporary backup file", tempPath, err)
	}

	defer func() {
		if err != nil {
			_ = os.Remove(tempPath)
		}
	}()

	if _, err := file.Write(data); err != nil {
		file.Close()
		return newFileError("failed to write temporary backup file", tempPath, err)
	}
	if err := file.Sync(); err != nil {
		file.Close()
		return newFileError("failed to sync temporary backup file", tempPath, err)
	}
	if err := file.Close(); err != nil {
		return newFileError("failed to close temporary backup file", tempPath, err)
	}

	if err := rename(tempPath, finalPath); err != nil {
		return newFileError("failed to move backup into place", finalPath, err)
	}

	return nil
}

func recordFromInfo(path string, info os.FileInfo) *BackupRecord {
	return &BackupRecord{
		Name:       info.Name(),
		Path:       path,
		Size:       info.Size(),
		CreatedAt:  info.ModTime(),
		ModifiedAt: info.ModTime(),
	}
}
