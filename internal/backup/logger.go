package backup

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"results-backup/internal/logging"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// BackupLogger provides structured logging for backup operations with correlation IDs and audit trails
type BackupLogger struct {
	logger        *logging.Logger
	auditLogger   *logrus.Logger
	auditFile     io.Closer
	correlationID string
}

// BackupLoggerConfig holds configuration for backup logging
type BackupLoggerConfig struct {
	Logger         *logging.Logger
	AuditLogFile   string
	CorrelationID  string
	EnableAuditLog bool
}

// LogEntry represents a structured log entry for backup operations
type LogEntry struct {
	Timestamp     time.Time
	CorrelationID string
	Operation     string
	Path          string
	Status        string
	Duration      string
	Success       bool
	Error         string
	Metadata      map[string]interface{}
}

// NewBackupLogger creates a new backup logger with correlation ID support
func NewBackupLogger(config BackupLoggerConfig) (*BackupLogger, error) {
	correlationID := config.CorrelationID
	if correlationID == "" {
		correlationID = uuid.New().String()
	}

	logger := config.Logger
	if logger == nil {
		logger = logging.NewDefaultLogger()
	}

	bl := &BackupLogger{
		logger:        logger,
		correlationID: correlationID,
	}

	if config.EnableAuditLog && config.AuditLogFile != "" {
		if err := os.MkdirAll(filepath.Dir(config.AuditLogFile), 0755); err != nil {
			return nil, fmt.Errorf("failed to create audit log directory: %w", err)
		}

		auditFile, err := os.OpenFile(config.AuditLogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, fmt.Errorf("failed to open audit log file: %w", err)
		}

		auditLogger := logrus.New()
		auditLogger.SetOutput(auditFile)
		auditLogger.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: time.RFC3339,
		})
		auditLogger.SetLevel(logrus.InfoLevel)

		bl.auditLogger = auditLogger
		bl.auditFile = auditFile
	}

	return bl, nil
}

func defaultBackupLogger() *BackupLogger {
	bl, _ := NewBackupLogger(BackupLoggerConfig{Logger: logging.NewDefaultLogger()})
	return bl
}

// Close releases the audit log file, if any.
func (bl *BackupLogger) Close() error {
	if bl.auditFile == nil {
		return nil
	}
	err := bl.auditFile.Close()
	bl.auditFile = nil
	return err
}

// GetCorrelationID returns the current correlation ID
func (bl *BackupLogger) GetCorrelationID() string {
	return bl.correlationID
}

// Logger returns the underlying application logger.
func (bl *BackupLogger) Logger() *logging.Logger {
	return bl.logger
}

// LogBackupCreate logs a backup write and returns the completion hook.
func (bl *BackupLogger) LogBackupCreate(ctx context.Context, trigger Trigger, directory string) func(error, *BackupRecord) {
	finish := bl.start(ctx, "backup_create", "", map[string]interface{}{
		"trigger":   string(trigger),
		"directory": directory,
	})

	return func(err error, record *BackupRecord) {
		metadata := map[string]interface{}{}
		path := ""
		if record != nil {
			path = record.Path
			metadata["size"] = record.Size
		}
		finish(err, path, metadata)
	}
}

// LogRetentionCleanup logs a retention pass.
func (bl *BackupLogger) LogRetentionCleanup(ctx context.Context, directory string, maxBackups int) func(error, *CleanupResult) {
	finish := bl.start(ctx, "retention_cleanup", "", map[string]interface{}{
		"directory":   directory,
		"max_backups": maxBackups,
	})

	return func(err error, result *CleanupResult) {
		metadata := map[string]interface{}{}
		if result != nil {
			deleted := make([]string, 0, len(result.Deleted))
			for _, record := range result.Deleted {
				deleted = append(deleted, record.Name)
			}
			metadata["deleted_count"] = len(result.Deleted)
			metadata["deleted_backups"] = deleted
			metadata["retained_count"] = len(result.Retained)
			metadata["failed_count"] = len(result.Failed)
		}
		finish(err, "", metadata)
	}
}

// LogRestore logs a restore attempt.
func (bl *BackupLogger) LogRestore(ctx context.Context, path string) func(error, Snapshot) {
	finish := bl.start(ctx, "backup_restore", path, nil)

	return func(err error, snapshot Snapshot) {
		metadata := map[string]interface{}{}
		if snapshot != nil {
			metadata["keys"] = len(snapshot)
		}
		finish(err, path, metadata)
	}
}

// LogExport logs an export of a backup into a compressed copy.
func (bl *BackupLogger) LogExport(ctx context.Context, source string, compression CompressionType) func(error, *ExportResult) {
	finish := bl.start(ctx, "backup_export", source, map[string]interface{}{
		"compression": string(compression),
	})

	return func(err error, result *ExportResult) {
		metadata := map[string]interface{}{}
		if result != nil {
			metadata["destination"] = result.Destination
			if result.Stats != nil {
				metadata["original_size"] = result.Stats.OriginalSize
				metadata["compressed_size"] = result.Stats.CompressedSize
				metadata["compression_ratio"] = fmt.Sprintf("%.2f", result.Stats.CompressionRatio)
			}
		}
		finish(err, source, metadata)
	}
}

// LogSchedulerState records a lifecycle transition.
func (bl *BackupLogger) LogSchedulerState(from, to SchedulerState) {
	bl.logger.WithFields(logrus.Fields{
		"correlation_id": bl.correlationID,
		"operation":      "scheduler_state",
		"from":           string(from),
		"to":             string(to),
	}).Info("Backup scheduler state changed")

	bl.logAudit(context.Background(), "scheduler", string(to), "success", nil)
}

func (bl *BackupLogger) start(ctx context.Context, operation, path string, metadata map[string]interface{}) func(error, string, map[string]interface{}) {
	startTime := time.Now()
	if metadata == nil {
		metadata = map[string]interface{}{}
	}

	entry := LogEntry{
		Timestamp:     startTime,
		CorrelationID: bl.correlationID,
		Operation:     operation,
		Path:          path,
		Status:        "started",
		Success:       true,
		Metadata:      metadata,
	}
	bl.logStructured(ctx, entry)

	return func(err error, path string, extra map[string]interface{}) {
		duration := time.Since(startTime)
		entry.Timestamp = time.Now()
		entry.Status = "completed"
		entry.Duration = duration.String()
		entry.Success = err == nil
		if path != "" {
			entry.Path = path
		}

		if err != nil {
			entry.Error = err.Error()
			entry.Status = "failed"
		}

		for k, v := range extra {
			entry.Metadata[k] = v
		}

		bl.logStructured(ctx, entry)

		result := "success"
		if err != nil {
			result = "failure"
		}

		details := map[string]interface{}{
			"duration": entry.Duration,
		}
		if entry.Path != "" {
			details["path"] = entry.Path
		}
		if entry.Error != "" {
			details["error"] = entry.Error
		}
		bl.logAudit(ctx, "backup", operation, result, details)
	}
}

func (bl *BackupLogger) logStructured(ctx context.Context, entry LogEntry) {
	fields := logrus.Fields{
		"correlation_id": entry.CorrelationID,
		"operation":      entry.Operation,
		"status":         entry.Status,
		"success":        entry.Success,
	}

	if entry.Path != "" {
		fields["path"] = entry.Path
	}
	if entry.Duration != "" {
		fields["duration"] = entry.Duration
	}
	if entry.Error != "" {
		fields["error"] = entry.Error
	}

	for k, v := range entry.Metadata {
		fields[k] = v
	}

	logEntry := bl.logger.WithContext(ctx).WithFields(fields)

	if entry.Success {
		if entry.Status == "started" {
			logEntry.Debug("Backup operation started")
		} else {
			logEntry.Info("Backup operation completed successfully")
		}
	} else {
		logEntry.Error("Backup operation failed")
	}
}

func (bl *BackupLogger) logAudit(ctx context.Context, resource, action, result string, details map[string]interface{}) {
	if bl.auditLogger == nil {
		return
	}

	fields := logrus.Fields{
		"correlation_id": bl.correlationID,
		"resource":       resource,
		"action":         action,
		"result":         result,
	}
	if len(details) > 0 {
		fields["details"] = details
	}
	if requestID := logging.GetRequestIDFromContext(ctx); requestID != "" {
		fields["request_id"] = requestID
	}

	bl.auditLogger.WithFields(fields).Info("Audit log entry")
}
