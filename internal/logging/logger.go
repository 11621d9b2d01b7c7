package logging

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// LogLevel represents the logging level
type LogLevel string

const (
	// LogLevelQuiet only lets errors through
	LogLevelQuiet LogLevel = "quiet"
	// LogLevelNormal shows backups written, files removed and lifecycle changes
	LogLevelNormal LogLevel = "normal"
	// LogLevelVerbose adds per-file and per-reload detail
	LogLevelVerbose LogLevel = "verbose"
	// LogLevelDebug shows everything
	LogLevelDebug LogLevel = "debug"
)

var logrusLevels = map[LogLevel]logrus.Level{
	LogLevelQuiet:   logrus.ErrorLevel,
	LogLevelNormal:  logrus.InfoLevel,
	LogLevelVerbose: logrus.DebugLevel,
	LogLevelDebug:   logrus.TraceLevel,
}

type contextKey string

const requestIDKey contextKey = "request_id"

// Logger provides structured logging capabilities
type Logger struct {
	logger *logrus.Logger
	level  LogLevel
	out    io.Writer
	file   *os.File
}

// Config holds logger configuration
type Config struct {
	Level  LogLevel
	Output io.Writer // defaults to stderr
	Format string    // "text" or "json"
	// LogFile, when set, receives a copy of everything written to Output.
	LogFile string
}

// ParseLogLevel maps a user supplied level name onto a LogLevel.
func ParseLogLevel(name string) (LogLevel, error) {
	switch LogLevel(strings.ToLower(strings.TrimSpace(name))) {
	case "", LogLevelNormal, "info":
		return LogLevelNormal, nil
	case LogLevelQuiet, "error":
		return LogLevelQuiet, nil
	case LogLevelVerbose:
		return LogLevelVerbose, nil
	case LogLevelDebug, "trace":
		return LogLevelDebug, nil
	default:
		return "", fmt.Errorf("unknown log level %q (want quiet, normal, verbose or debug)", name)
	}
}

// NewLogger creates a new logger with the specified configuration
func NewLogger(config Config) (*Logger, error) {
	level := config.Level
	if _, ok := logrusLevels[level]; !ok {
		level = LogLevelNormal
	}

	out := config.Output
	if out == nil {
		out = os.Stderr
	}

	logger := logrus.New()
	logger.SetOutput(out)

	var file *os.File
	if config.LogFile != "" {
		f, err := os.OpenFile(config.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file %s: %w", config.LogFile, err)
		}
		file = f
		logger.SetOutput(io.MultiWriter(out, file))
	}

	logger.SetFormatter(newFormatter(config.Format))
	logger.SetLevel(logrusLevels[level])

	return &Logger{
		logger: logger,
		level:  level,
		out:    out,
		file:   file,
	}, nil
}

func newFormatter(format string) logrus.Formatter {
	if format == "json" {
		return &logrus.JSONFormatter{TimestampFormat: time.RFC3339}
	}
	return &logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	}
}

// NewDefaultLogger creates a text logger at normal level writing to stderr
func NewDefaultLogger() *Logger {
	logger, _ := NewLogger(Config{Level: LogLevelNormal, Format: "text"})
	return logger
}

// NewNopLogger returns a logger that discards everything.
func NewNopLogger() *Logger {
	logger, _ := NewLogger(Config{Level: LogLevelQuiet, Output: io.Discard})
	return logger
}

// Close releases the log file, if any. The logger keeps writing to its
// primary output afterwards.
func (l *Logger) Close() error {
	if l.file == nil {
		return nil
	}
	l.logger.SetOutput(l.out)
	err := l.file.Close()
	l.file = nil
	return err
}

// WithContext returns an entry carrying the request ID stored in ctx
func (l *Logger) WithContext(ctx context.Context) *logrus.Entry {
	entry := l.logger.WithContext(ctx)

	if requestID := GetRequestIDFromContext(ctx); requestID != "" {
		entry = entry.WithField("request_id", requestID)
	}

	return entry
}

// WithFields returns a logger with additional fields
func (l *Logger) WithFields(fields map[string]interface{}) *logrus.Entry {
	return l.logger.WithFields(fields)
}

// WithField returns a logger with a single additional field
func (l *Logger) WithField(key string, value interface{}) *logrus.Entry {
	return l.logger.WithField(key, value)
}

// LogFileWrite records a file write. Successful writes are debug output.
func (l *Logger) LogFileWrite(path string, size int64, duration time.Duration, err error) {
	l.fileEvent(logrus.DebugLevel, "File written", "File write failed", err, logrus.Fields{
		"operation": "file_write",
		"path":      path,
		"size":      size,
		"duration":  duration.String(),
	})
}

// LogFileRemoval records a file deletion attempt.
func (l *Logger) LogFileRemoval(path string, reason string, err error) {
	l.fileEvent(logrus.InfoLevel, "File removed", "File removal failed", err, logrus.Fields{
		"operation": "file_remove",
		"path":      path,
		"reason":    reason,
	})
}

func (l *Logger) fileEvent(okLevel logrus.Level, okMsg, failMsg string, err error, fields logrus.Fields) {
	if err != nil {
		fields["error"] = err.Error()
		l.logger.WithFields(fields).Error(failMsg)
		return
	}
	l.logger.WithFields(fields).Log(okLevel, okMsg)
}

func (l *Logger) Info(msg string)  { l.logger.Info(msg) }
func (l *Logger) Debug(msg string) { l.logger.Debug(msg) }
func (l *Logger) Warn(msg string)  { l.logger.Warn(msg) }
func (l *Logger) Error(msg string) { l.logger.Error(msg) }

// Warnf logs a formatted warning message
func (l *Logger) Warnf(format string, args ...interface{}) {
	l.logger.Warnf(format, args...)
}

// GetLevel returns the current log level
func (l *Logger) GetLevel() LogLevel {
	return l.level
}

// SetLevel sets the log level. Unknown levels are ignored.
func (l *Logger) SetLevel(level LogLevel) {
	lvl, ok := logrusLevels[level]
	if !ok {
		return
	}
	l.level = level
	l.logger.SetLevel(lvl)
}

// IsLevelEnabled reports whether messages of the given level are written
func (l *Logger) IsLevelEnabled(level LogLevel) bool {
	lvl, ok := logrusLevels[level]
	return ok && l.logger.IsLevelEnabled(lvl)
}

// CreateContextWithRequestID creates a context with a request ID for tracing
func CreateContextWithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

// GetRequestIDFromContext extracts request ID from context
func GetRequestIDFromContext(ctx context.Context) string {
	if requestID, ok := ctx.Value(requestIDKey).(string); ok {
		return requestID
	}
	return ""
}
