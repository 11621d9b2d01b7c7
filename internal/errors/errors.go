package errors

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"syscall"
	"time"

	"results-backup/internal/backup"

	"github.com/juju/clock"
)

// ErrorType represents different categories of errors
type ErrorType string

const (
	// ErrorTypeStorage represents filesystem write/read failures
	ErrorTypeStorage ErrorType = "storage"
	// ErrorTypeValidation represents bad user input
	ErrorTypeValidation ErrorType = "validation"
	// ErrorTypeConfiguration represents invalid configuration
	ErrorTypeConfiguration ErrorType = "configuration"
	// ErrorTypeNotFound represents a missing backup or input file
	ErrorTypeNotFound ErrorType = "not_found"
	// ErrorTypeCorruption represents an unreadable backup
	ErrorTypeCorruption ErrorType = "corruption"
	// ErrorTypePermission represents permission/access errors
	ErrorTypePermission ErrorType = "permission"
	// ErrorTypeTimeout represents timeout errors
	ErrorTypeTimeout ErrorType = "timeout"
	// ErrorTypeInterruption represents user interruption
	ErrorTypeInterruption ErrorType = "interruption"
	// ErrorTypeUnknown represents unknown errors
	ErrorTypeUnknown ErrorType = "unknown"
)

// Process exit codes, one per error type.
const (
	ExitOK          = 0
	ExitFailure     = 1
	ExitUsage       = 2
	ExitNotFound    = 3
	ExitPermission  = 4
	ExitCorruption  = 5
	ExitStorage     = 6
	ExitTimeout     = 7
	ExitInterrupted = 130
)

var exitCodes = map[ErrorType]int{
	ErrorTypeStorage:       ExitStorage,
	ErrorTypeValidation:    ExitUsage,
	ErrorTypeConfiguration: ExitUsage,
	ErrorTypeNotFound:      ExitNotFound,
	ErrorTypeCorruption:    ExitCorruption,
	ErrorTypePermission:    ExitPermission,
	ErrorTypeTimeout:       ExitTimeout,
	ErrorTypeInterruption:  ExitInterrupted,
}

// AppError represents an application-specific error with context
type AppError struct {
	Type        ErrorType
	Message     string
	Cause       error
	Context     map[string]interface{}
	Recoverable bool
	UserMessage string
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the underlying error
func (e *AppError) Unwrap() error {
	return e.Cause
}

// GetUserMessage returns a user-friendly error message
func (e *AppError) GetUserMessage() string {
	if e.UserMessage != "" {
		return e.UserMessage
	}
	return e.Message
}

// IsRecoverable returns whether the error is recoverable
func (e *AppError) IsRecoverable() bool {
	return e.Recoverable
}

// ExitCode returns the process exit code for the error type.
func (e *AppError) ExitCode() int {
	if code, ok := exitCodes[e.Type]; ok {
		return code
	}
	return ExitFailure
}

// WithContext adds context information to the error
func (e *AppError) WithContext(key string, value interface{}) *AppError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// WithUserMessage sets the message shown to users
func (e *AppError) WithUserMessage(message string) *AppError {
	e.UserMessage = message
	return e
}

// NewAppError creates a new application error
func NewAppError(errorType ErrorType, message string, cause error) *AppError {
	return &AppError{
		Type:    errorType,
		Message: message,
		Cause:   cause,
		Context: make(map[string]interface{}),
	}
}

// NewRecoverableError creates a new recoverable error
func NewRecoverableError(errorType ErrorType, message string, cause error) *AppError {
	appErr := NewAppError(errorType, message, cause)
	appErr.Recoverable = true
	return appErr
}

// ErrorClassifier provides methods to classify and handle different types of errors
type ErrorClassifier struct{}

// NewErrorClassifier creates a new error classifier
func NewErrorClassifier() *ErrorClassifier {
	return &ErrorClassifier{}
}

// ClassifyError analyzes an error and returns an AppError with appropriate classification
func (ec *ErrorClassifier) ClassifyError(err error) *AppError {
	if err == nil {
		return nil
	}

	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}

	if errors.Is(err, backup.ErrNothingToBackup) {
		return NewAppError(ErrorTypeValidation, "No results have been stored yet, nothing to back up", err)
	}

	if ctxErr := ec.classifyContextError(err); ctxErr != nil {
		return ctxErr
	}

	if backupErr := ec.classifyBackupError(err); backupErr != nil {
		return backupErr
	}

	var validationErrs backup.ValidationErrors
	if errors.As(err, &validationErrs) {
		return NewAppError(ErrorTypeConfiguration, "Invalid configuration", err).
			WithUserMessage(fmt.Sprintf("Invalid configuration: %s", validationErrs.Error()))
	}

	if fsErr := ec.classifyFileSystemError(err); fsErr != nil {
		return fsErr
	}

	return NewAppError(ErrorTypeUnknown, "An unexpected error occurred", err)
}

// classifyBackupError maps a *backup.BackupError onto an application error
func (ec *ErrorClassifier) classifyBackupError(err error) *AppError {
	var backupErr *backup.BackupError
	if !errors.As(err, &backupErr) {
		return nil
	}

	var appErr *AppError
	switch backupErr.Type {
	case backup.BackupErrorTypeStorage:
		appErr = NewRecoverableError(ErrorTypeStorage, backupErr.Message, err)
	case backup.BackupErrorTypeNotFound:
		appErr = NewAppError(ErrorTypeNotFound, backupErr.Message, err)
	case backup.BackupErrorTypePermission:
		appErr = NewAppError(ErrorTypePermission, backupErr.Message, err)
	case backup.BackupErrorTypeCorruption:
		appErr = NewAppError(ErrorTypeCorruption, backupErr.Message, err)
	case backup.BackupErrorTypeConfiguration:
		appErr = NewAppError(ErrorTypeConfiguration, backupErr.Message, err)
	default:
		appErr = NewAppError(ErrorTypeValidation, backupErr.Message, err)
	}

	for k, v := range backupErr.Context {
		appErr.WithContext(k, v)
	}
	if path, ok := backupErr.Context["path"].(string); ok {
		appErr.UserMessage = fmt.Sprintf("%s: %s", backupErr.Message, path)
	}
	return appErr
}

// classifyContextError classifies context-related errors
func (ec *ErrorClassifier) classifyContextError(err error) *AppError {
	if errors.Is(err, context.DeadlineExceeded) {
		return NewRecoverableError(ErrorTypeTimeout, "Operation timed out", err)
	}
	if errors.Is(err, context.Canceled) {
		return NewAppError(ErrorTypeInterruption, "Operation was canceled", err)
	}

	return nil
}

// classifyFileSystemError classifies file system errors
func (ec *ErrorClassifier) classifyFileSystemError(err error) *AppError {
	var pathErr *os.PathError
	if !errors.As(err, &pathErr) {
		return nil
	}

	switch {
	case errors.Is(pathErr.Err, fs.ErrNotExist):
		return NewAppError(ErrorTypeNotFound,
			fmt.Sprintf("File or directory not found: %s", pathErr.Path), err)
	case errors.Is(pathErr.Err, fs.ErrPermission):
		return NewAppError(ErrorTypePermission,
			fmt.Sprintf("Permission denied: %s", pathErr.Path), err)
	case errors.Is(pathErr.Err, syscall.ENOSPC):
		return NewRecoverableError(ErrorTypeStorage,
			"No space left on device", err)
	default:
		return NewRecoverableError(ErrorTypeStorage,
			fmt.Sprintf("File operation %s failed: %s", pathErr.Op, pathErr.Path), err)
	}
}

// RetryConfig holds configuration for retry operations
type RetryConfig struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	Multiplier  float64
}

// DefaultRetryConfig returns a default retry configuration
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts: 3,
		BaseDelay:   500 * time.Millisecond,
		MaxDelay:    10 * time.Second,
		Multiplier:  2.0,
	}
}

// RetryHandler provides retry functionality for operations
type RetryHandler struct {
	config     RetryConfig
	classifier *ErrorClassifier
	clock      clock.Clock
}

// NewRetryHandler creates a new retry handler. A nil clock uses the wall clock.
func NewRetryHandler(config RetryConfig, clk clock.Clock) *RetryHandler {
	if clk == nil {
		clk = clock.WallClock
	}
	return &RetryHandler{
		config:     config,
		classifier: NewErrorClassifier(),
		clock:      clk,
	}
}

// NewDefaultRetryHandler creates a retry handler with default configuration
func NewDefaultRetryHandler() *RetryHandler {
	return NewRetryHandler(DefaultRetryConfig(), nil)
}

// Retry executes a function with retry logic for recoverable errors
func (rh *RetryHandler) Retry(ctx context.Context, operation func() error) error {
	var lastErr error

	for attempt := 1; attempt <= rh.config.MaxAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return NewAppError(ErrorTypeInterruption, "Operation canceled", ctx.Err())
		default:
		}

		err := operation()
		if err == nil {
			return nil
		}

		lastErr = err
		appErr := rh.classifier.ClassifyError(err)
		if !appErr.IsRecoverable() {
			return appErr
		}

		if attempt == rh.config.MaxAttempts {
			break
		}

		select {
		case <-ctx.Done():
			return NewAppError(ErrorTypeInterruption, "Operation canceled during retry", ctx.Err())
		case <-rh.clock.After(rh.calculateDelay(attempt)):
		}
	}

	return rh.classifier.ClassifyError(lastErr).
		WithContext("attempts", rh.config.MaxAttempts)
}

// calculateDelay returns BaseDelay * Multiplier^(attempt-1), capped at MaxDelay
func (rh *RetryHandler) calculateDelay(attempt int) time.Duration {
	multiplier := 1.0
	for i := 1; i < attempt; i++ {
		multiplier *= rh.config.Multiplier
	}

	delay := time.Duration(float64(rh.config.BaseDelay) * multiplier)
	if delay > rh.config.MaxDelay {
		delay = rh.config.MaxDelay
	}

	return delay
}

// IsRecoverableError checks if an error is recoverable
func IsRecoverableError(err error) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.IsRecoverable()
	}
	return false
}

// GetErrorType returns the error type of an error
func GetErrorType(err error) ErrorType {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Type
	}
	return ErrorTypeUnknown
}

// ExitCode classifies err and returns the matching process exit code
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	return NewErrorClassifier().ClassifyError(err).ExitCode()
}

// FormatUserError formats an error for display to users
func FormatUserError(err error) string {
	if err == nil {
		return ""
	}

	appErr := NewErrorClassifier().ClassifyError(err)
	if appErr.Type == ErrorTypeUnknown {
		return err.Error()
	}
	return appErr.GetUserMessage()
}
