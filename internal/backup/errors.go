package backup

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
)

var (
	// ErrNothingToBackup is returned when a backup is requested before any
	// results were ever stored. No file is produced.
	ErrNothingToBackup = errors.New("no results have been stored yet")

	// ErrInvalidSnapshot marks a backup file whose content is not a JSON object.
	ErrInvalidSnapshot = errors.New("invalid snapshot")
)

// BackupErrorType classifies a BackupError.
type BackupErrorType string

const (
	BackupErrorTypeStorage       BackupErrorType = "storage"
	BackupErrorTypeValidation    BackupErrorType = "validation"
	BackupErrorTypeCompression   BackupErrorType = "compression"
	BackupErrorTypeCorruption    BackupErrorType = "corruption"
	BackupErrorTypePermission    BackupErrorType = "permission"
	BackupErrorTypeConfiguration BackupErrorType = "configuration"
	BackupErrorTypeNotFound      BackupErrorType = "not_found"
)

// permanentTypes never succeed on a later attempt without outside help.
var permanentTypes = map[BackupErrorType]bool{
	BackupErrorTypeValidation:    true,
	BackupErrorTypeCorruption:    true,
	BackupErrorTypePermission:    true,
	BackupErrorTypeConfiguration: true,
}

// BackupError is the error returned by every backup operation that touches
// the filesystem or the stored results.
type BackupError struct {
	Type    BackupErrorType        `json:"type"`
	Message string                 `json:"message"`
	Cause   error                  `json:"-"`
	Context map[string]interface{} `json:"context,omitempty"`
}

func (e *BackupError) Error() string {
	msg := fmt.Sprintf("%s error: %s", strings.ReplaceAll(string(e.Type), "_", " "), e.Message)
	if e.Cause == nil {
		return msg
	}
	return msg + ": " + e.Cause.Error()
}

func (e *BackupError) Unwrap() error {
	return e.Cause
}

// WithContext attaches a key/value pair, typically the path involved.
func (e *BackupError) WithContext(key string, value interface{}) *BackupError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// NewBackupError creates a BackupError of the given type.
func NewBackupError(errorType BackupErrorType, message string, cause error) *BackupError {
	return &BackupError{Type: errorType, Message: message, Cause: cause}
}

func NewStorageError(message string, cause error) *BackupError {
	return NewBackupError(BackupErrorTypeStorage, message, cause)
}

func NewValidationError(message string, cause error) *BackupError {
	return NewBackupError(BackupErrorTypeValidation, message, cause)
}

func NewCompressionError(message string, cause error) *BackupError {
	return NewBackupError(BackupErrorTypeCompression, message, cause)
}

func NewCorruptionError(message string, cause error) *BackupError {
	return NewBackupError(BackupErrorTypeCorruption, message, cause)
}

func NewPermissionError(message string, cause error) *BackupError {
	return NewBackupError(BackupErrorTypePermission, message, cause)
}

func NewConfigurationError(message string, cause error) *BackupError {
	return NewBackupError(BackupErrorTypeConfiguration, message, cause)
}

func NewNotFoundError(message string, cause error) *BackupError {
	return NewBackupError(BackupErrorTypeNotFound, message, cause)
}

// newFileError picks the error type that best describes a filesystem failure.
func newFileError(message, path string, cause error) *BackupError {
	errorType := BackupErrorTypeStorage
	switch {
	case errors.Is(cause, fs.ErrNotExist):
		errorType = BackupErrorTypeNotFound
	case errors.Is(cause, fs.ErrPermission):
		errorType = BackupErrorTypePermission
	}
	return NewBackupError(errorType, message, cause).WithContext("path", path)
}

// ValidationError describes one invalid configuration field.
type ValidationError struct {
	Field   string      `json:"field"`
	Message string      `json:"message"`
	Value   interface{} `json:"value,omitempty"`
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Message
}

// ValidationErrors collects every problem found in one validation pass.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	switch len(e) {
	case 0:
		return "no validation errors"
	case 1:
		return e[0].Error()
	}

	parts := make([]string, len(e))
	for i := range e {
		parts[i] = e[i].Error()
	}
	return fmt.Sprintf("%d validation errors: %s", len(e), strings.Join(parts, "; "))
}

// Add appends a field error.
func (e *ValidationErrors) Add(field, message string, value interface{}) {
	*e = append(*e, ValidationError{Field: field, Message: message, Value: value})
}

func (e ValidationErrors) HasErrors() bool {
	return len(e) > 0
}

// errorType returns the type of the first BackupError in err's chain.
func errorType(err error) (BackupErrorType, bool) {
	var backupErr *BackupError
	if !errors.As(err, &backupErr) {
		return "", false
	}
	return backupErr.Type, true
}

// IsRetryable reports whether err is worth retrying on the next tick.
func IsRetryable(err error) bool {
	t, ok := errorType(err)
	return ok && t == BackupErrorTypeStorage
}

// IsPermanent reports whether err will keep failing until something outside
// the process changes.
func IsPermanent(err error) bool {
	t, ok := errorType(err)
	return ok && permanentTypes[t]
}
