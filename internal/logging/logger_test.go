package logging

import (
	"bytes"
	"context"
	"errors"
	"os"
	"strings"
	"testing"
	"time"
)

func newBufferLogger(t *testing.T, level LogLevel) (*Logger, *bytes.Buffer) {
	t.Helper()

	var buf bytes.Buffer
	logger, err := NewLogger(Config{
		Level:  level,
		Output: &buf,
		Format: "text",
	})
	if err != nil {
		t.Fatalf("NewLogger() error = %v", err)
	}
	return logger, &buf
}

func TestNewLogger(t *testing.T) {
	tests := []struct {
		name   string
		config Config
		want   LogLevel
	}{
		{
			name:   "default config",
			config: Config{Level: LogLevelNormal, Format: "text"},
			want:   LogLevelNormal,
		},
		{
			name:   "verbose json config",
			config: Config{Level: LogLevelVerbose, Format: "json"},
			want:   LogLevelVerbose,
		},
		{
			name:   "empty level falls back to normal",
			config: Config{Format: "text"},
			want:   LogLevelNormal,
		},
		{
			name:   "unknown level falls back to normal",
			config: Config{Level: "loud"},
			want:   LogLevelNormal,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			tt.config.Output = &buf

			logger, err := NewLogger(tt.config)
			if err != nil {
				t.Fatalf("NewLogger() error = %v", err)
			}
			if logger.GetLevel() != tt.want {
				t.Errorf("NewLogger() level = %v, want %v", logger.GetLevel(), tt.want)
			}
		})
	}
}

func TestNewLoggerWithLogFile(t *testing.T) {
	path := t.TempDir() + "/backup.log"

	var buf bytes.Buffer
	logger, err := NewLogger(Config{Level: LogLevelNormal, Output: &buf, LogFile: path})
	if err != nil {
		t.Fatalf("NewLogger() error = %v", err)
	}
	logger.Info("written twice")

	if !strings.Contains(buf.String(), "written twice") {
		t.Errorf("expected message in buffer, got: %s", buf.String())
	}

	if err := logger.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	logger.Info("after close")

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading log file: %v", err)
	}
	if !strings.Contains(string(data), "written twice") {
		t.Errorf("expected message in log file, got: %s", data)
	}
	if strings.Contains(string(data), "after close") {
		t.Error("log file should not be written after Close")
	}
	if !strings.Contains(buf.String(), "after close") {
		t.Error("primary output should keep working after Close")
	}
}

func TestNewLoggerBadLogFile(t *testing.T) {
	_, err := NewLogger(Config{LogFile: t.TempDir() + "/missing/dir/backup.log"})
	if err == nil {
		t.Fatal("expected error for unwritable log file")
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		input   string
		want    LogLevel
		wantErr bool
	}{
		{"", LogLevelNormal, false},
		{"info", LogLevelNormal, false},
		{"QUIET", LogLevelQuiet, false},
		{" verbose ", LogLevelVerbose, false},
		{"trace", LogLevelDebug, false},
		{"loud", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseLogLevel(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseLogLevel(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseLogLevel(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestLoggerWithFields(t *testing.T) {
	logger, buf := newBufferLogger(t, LogLevelVerbose)

	logger.WithFields(map[string]interface{}{
		"test_field": "test_value",
		"number":     42,
	}).Info("test message")

	output := buf.String()
	for _, want := range []string{"test_field=test_value", "number=42", "test message"} {
		if !strings.Contains(output, want) {
			t.Errorf("expected output to contain %q, got: %s", want, output)
		}
	}
}

func TestLoggerWithContext(t *testing.T) {
	logger, buf := newBufferLogger(t, LogLevelVerbose)

	ctx := CreateContextWithRequestID(context.Background(), "test-request-123")
	logger.WithContext(ctx).Info("test message with context")

	if !strings.Contains(buf.String(), "request_id=test-request-123") {
		t.Errorf("expected request id field, got: %s", buf.String())
	}
}

func TestLogFileWrite(t *testing.T) {
	logger, buf := newBufferLogger(t, LogLevelVerbose)

	logger.LogFileWrite("/tmp/results_backup_20240101_000000.json", 128, 5*time.Millisecond, nil)
	output := buf.String()
	if !strings.Contains(output, "File written") {
		t.Errorf("expected success message, got: %s", output)
	}
	if !strings.Contains(output, "size=128") {
		t.Errorf("expected size=128, got: %s", output)
	}

	buf.Reset()

	logger.LogFileWrite("/tmp/x.json", 0, time.Millisecond, errors.New("disk full"))
	output = buf.String()
	if !strings.Contains(output, "File write failed") {
		t.Errorf("expected failure message, got: %s", output)
	}
	if !strings.Contains(output, "disk full") {
		t.Errorf("expected error text, got: %s", output)
	}
}

func TestLogFileWriteHiddenAtNormalLevel(t *testing.T) {
	logger, buf := newBufferLogger(t, LogLevelNormal)

	logger.LogFileWrite("/tmp/x.json", 10, time.Millisecond, nil)
	if buf.Len() != 0 {
		t.Errorf("expected no output at normal level, got: %s", buf.String())
	}
}

func TestLogFileRemoval(t *testing.T) {
	logger, buf := newBufferLogger(t, LogLevelNormal)

	logger.LogFileRemoval("/tmp/old.json", "retention", nil)
	output := buf.String()
	if !strings.Contains(output, "File removed") || !strings.Contains(output, "reason=retention") {
		t.Errorf("unexpected removal output: %s", output)
	}

	buf.Reset()

	logger.LogFileRemoval("/tmp/old.json", "retention", errors.New("permission denied"))
	output = buf.String()
	if !strings.Contains(output, "File removal failed") {
		t.Errorf("expected failure message, got: %s", output)
	}
}

func TestSetLevel(t *testing.T) {
	logger := NewDefaultLogger()

	logger.SetLevel(LogLevelVerbose)
	if logger.GetLevel() != LogLevelVerbose {
		t.Errorf("SetLevel() failed, got %v, want %v", logger.GetLevel(), LogLevelVerbose)
	}

	logger.SetLevel(LogLevelQuiet)
	if logger.GetLevel() != LogLevelQuiet {
		t.Errorf("SetLevel() failed, got %v, want %v", logger.GetLevel(), LogLevelQuiet)
	}

	logger.SetLevel("loud")
	if logger.GetLevel() != LogLevelQuiet {
		t.Errorf("SetLevel() should ignore unknown levels, got %v", logger.GetLevel())
	}
}

func TestIsLevelEnabled(t *testing.T) {
	tests := []struct {
		name        string
		loggerLevel LogLevel
		testLevel   LogLevel
		want        bool
	}{
		{"quiet logger, error level", LogLevelQuiet, LogLevelQuiet, true},
		{"quiet logger, normal level", LogLevelQuiet, LogLevelNormal, false},
		{"normal logger, normal level", LogLevelNormal, LogLevelNormal, true},
		{"normal logger, verbose level", LogLevelNormal, LogLevelVerbose, false},
		{"verbose logger, verbose level", LogLevelVerbose, LogLevelVerbose, true},
		{"verbose logger, debug level", LogLevelVerbose, LogLevelDebug, false},
		{"debug logger, debug level", LogLevelDebug, LogLevelDebug, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, _ := newBufferLogger(t, tt.loggerLevel)
			if got := logger.IsLevelEnabled(tt.testLevel); got != tt.want {
				t.Errorf("IsLevelEnabled() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestGetRequestIDFromContext(t *testing.T) {
	ctx := context.Background()
	if id := GetRequestIDFromContext(ctx); id != "" {
		t.Errorf("GetRequestIDFromContext() = %v, want empty string", id)
	}

	ctx = CreateContextWithRequestID(ctx, "test-456")
	if id := GetRequestIDFromContext(ctx); id != "test-456" {
		t.Errorf("GetRequestIDFromContext() = %v, want test-456", id)
	}
}
