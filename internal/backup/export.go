package backup

import (
	"context"
	"os"
	"path/filepath"
	"strings"
)

// Exporter writes compressed copies of backups, for example to hand them to
// another machine. Exports are never picked up by listing or retention.
type Exporter struct {
	config      *Config
	compression *CompressionManager
	logger      *BackupLogger
}

// NewExporter creates an exporter using the configured default level.
func NewExporter(config *Config, compression *CompressionManager, logger *BackupLogger) *Exporter {
	if compression == nil {
		compression = NewCompressionManager()
	}
	if logger == nil {
		logger = defaultBackupLogger()
	}

	return &Exporter{
		config:      config,
		compression: compression,
		logger:      logger,
	}
}

// Export verifies that source holds a valid snapshot and writes it, compressed,
// to destination. If destination is an existing directory the source file
// name is used. The compression extension is appended when missing.
func (e *Exporter) Export(ctx context.Context, source, destination string, compression CompressionType) (result *ExportResult, err error) {
	if compression == "" {
		compression = e.config.Export.Compression
	}

	finish := e.logger.LogExport(ctx, source, compression)
	defer func() { finish(err, result) }()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !isValidCompressionType(compression) {
		return nil, NewValidationError("unsupported compression algorithm", nil).WithContext("compression", string(compression))
	}

	data, err := os.ReadFile(source)
	if err != nil {
		return nil, newFileError("failed to read backup", source, err)
	}

	data, err = e.compression.Decompress(data, compressionTypeForPath(source))
	if err != nil {
		return nil, NewCorruptionError("failed to decompress backup", err).WithContext("path", source)
	}
	if _, err := decodeSnapshot(data, source); err != nil {
		return nil, err
	}

	level := e.config.Export.Level
	if compression != e.config.Export.Compression {
		level = 0
	}
	compressed, stats, err := e.compression.Compress(data, compression, level)
	if err != nil {
		return nil, err
	}

	target, err := exportPath(source, destination, compression)
	if err != nil {
		return nil, err
	}
	if sourceAbs, _ := filepath.Abs(source); sourceAbs == target {
		return nil, NewValidationError("export destination is the source backup", nil).WithContext("path", target)
	}
	if err := os.MkdirAll(filepath.Dir(target), e.config.DirMode); err != nil {
		return nil, newFileError("failed to create export directory", filepath.Dir(target), err)
	}
	if err := writeFileAtomic(target, compressed, e.config.FileMode, os.Rename); err != nil {
		return nil, err
	}

	return &ExportResult{
		Source:      source,
		Destination: target,
		Compression: compression,
		Stats:       stats,
	}, nil
}

func exportPath(source, destination string, compression CompressionType) (string, error) {
	if destination == "" {
		return "", NewValidationError("export destination is required", nil)
	}

	target := destination
	if info, err := os.Stat(destination); err == nil && info.IsDir() {
		target = filepath.Join(destination, strings.TrimSuffix(filepath.Base(source), compressionTypeForPath(source).Extension()))
	}

	if ext := compression.Extension(); ext != "" && !strings.HasSuffix(target, ext) {
		target += ext
	}

	abs, err := filepath.Abs(target)
	if err != nil {
		return "", newFileError("failed to resolve export destination", target, err)
	}
	return abs, nil
}
