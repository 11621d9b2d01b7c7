package backup

import (
	"fmt"
	"strings"
	"time"
)

// Snapshot is the full result set known at one point in time. Values are
// whatever encoding/json produces for an object: nested maps, slices and
// scalars.
type Snapshot map[string]interface{}

// BackupRecord describes one persisted backup file. It is derived from the
// filesystem on every listing and never cached.
type BackupRecord struct {
	Name       string    `json:"name" yaml:"name"`
	Path       string    `json:"path" yaml:"path"`
	Size       int64     `json:"size" yaml:"size"`
	CreatedAt  time.Time `json:"created_at" yaml:"created_at"`
	ModifiedAt time.Time `json:"modified_at" yaml:"modified_at"`
}

// CleanupResult summarizes a retention pass.
type CleanupResult struct {
	Retained []BackupRecord `json:"retained"`
	Deleted  []BackupRecord `json:"deleted"`
	Failed   []CleanupError `json:"failed,omitempty"`
}

// CleanupError records a backup that could not be removed.
type CleanupError struct {
	Record BackupRecord `json:"record"`
	Error  string       `json:"error"`
}

// ExportResult describes a finished export.
type ExportResult struct {
	Source      string            `json:"source"`
	Destination string            `json:"destination"`
	Compression CompressionType   `json:"compression"`
	Stats       *CompressionStats `json:"stats"`
}

// SchedulerState is the lifecycle state of a Scheduler.
type SchedulerState string

const (
	SchedulerStopped  SchedulerState = "stopped"
	SchedulerRunning  SchedulerState = "running"
	SchedulerStopping SchedulerState = "stopping"
)

// Trigger tells what caused a backup to be written.
type Trigger string

const (
	TriggerScheduled Trigger = "scheduled"
	TriggerForced    Trigger = "forced"
)

// CompressionType represents the compression algorithm used for exports
type CompressionType string

const (
	CompressionTypeNone CompressionType = "none"
	CompressionTypeGzip CompressionType = "gzip"
	CompressionTypeLZ4  CompressionType = "lz4"
	CompressionTypeZstd CompressionType = "zstd"
)

// Extension returns the file extension used for exports of this type.
func (ct CompressionType) Extension() string {
	switch ct {
	case CompressionTypeGzip:
		return ".gz"
	case CompressionTypeLZ4:
		return ".lz4"
	case CompressionTypeZstd:
		return ".zst"
	default:
		return ""
	}
}

// ParseCompressionType accepts algorithm names in any case.
func ParseCompressionType(name string) (CompressionType, error) {
	ct := CompressionType(strings.ToLower(strings.TrimSpace(name)))
	if ct == "" {
		return CompressionTypeNone, nil
	}
	if !isValidCompressionType(ct) {
		return "", fmt.Errorf("unsupported compression algorithm %q", name)
	}
	return ct, nil
}

// compressionTypeForPath infers the compression of a file from its extension.
func compressionTypeForPath(path string) CompressionType {
	for _, ct := range []CompressionType{CompressionTypeGzip, CompressionTypeLZ4, CompressionTypeZstd} {
		if strings.HasSuffix(path, ct.Extension()) {
			return ct
		}
	}
	return CompressionTypeNone
}

func isValidCompressionType(ct CompressionType) bool {
	switch ct {
	case CompressionTypeNone, CompressionTypeGzip, CompressionTypeLZ4, CompressionTypeZstd:
		return true
	default:
		return false
	}
}
