package backup

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"os"
)

// RestoreLoader reads backups and compressed exports back into snapshots.
type RestoreLoader struct {
	compression *CompressionManager
	logger      *BackupLogger
	metrics     *Metrics
}

// NewRestoreLoader creates a loader. A nil compression manager gets the
// default set of codecs.
func NewRestoreLoader(compression *CompressionManager, logger *BackupLogger, metrics *Metrics) *RestoreLoader {
	if compression == nil {
		compression = NewCompressionManager()
	}
	if logger == nil {
		logger = defaultBackupLogger()
	}

	return &RestoreLoader{
		compression: compression,
		logger:      logger,
		metrics:     metrics,
	}
}

// Restore parses the backup at path. It returns either the complete snapshot
// or an error, never a partial result. Files that fail to parse are left on
// disk untouched.
func (rl *RestoreLoader) Restore(ctx context.Context, path string) (snapshot Snapshot, err error) {
	finish := rl.logger.LogRestore(ctx, path)
	defer func() {
		rl.metrics.Restore(err == nil)
		finish(err, snapshot)
	}()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, newFileError("failed to read backup", path, err)
	}

	data, err = rl.compression.Decompress(data, compressionTypeForPath(path))
	if err != nil {
		return nil, NewCorruptionError("failed to decompress backup", err).WithContext("path", path)
	}

	return decodeSnapshot(data, path)
}

// decodeSnapshot keeps numbers as json.Number so that integers beyond the
// float64 range come back with their original digits.
func decodeSnapshot(data []byte, path string) (Snapshot, error) {
	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.UseNumber()

	var decoded interface{}
	if err := decoder.Decode(&decoded); err != nil {
		return nil, NewCorruptionError("backup is not valid JSON", err).WithContext("path", path)
	}
	if _, err := decoder.Token(); err != io.EOF {
		return nil, NewCorruptionError("backup has trailing data after the JSON value", err).WithContext("path", path)
	}

	object, ok := decoded.(map[string]interface{})
	if !ok || object == nil {
		return nil, NewCorruptionError("backup does not hold a JSON object", ErrInvalidSnapshot).WithContext("path", path)
	}

	return Snapshot(object), nil
}
