// Package errors provides a hierarchical error system for reroot operations.
// It implements typed errors that can be inspected and handled differently
// based on their category, so per-file failures can be tolerated while
// configuration failures stop the run.
package errors

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
)

// ErrorType represents the category of error for classification and handling.
type ErrorType string

// Error type constants define the categories of errors that can occur during a run.
const (
	ErrTypeFile    ErrorType = "file"
	ErrTypeConfig  ErrorType = "config"
	ErrTypeNoMatch ErrorType = "no-match"
	ErrTypeRewrite ErrorType = "rewrite"
	ErrTypeBackup  ErrorType = "backup"
	ErrTypeLog     ErrorType = "log"
)

// RerootError is the base error type that provides structured error information.
// Specific error types embed it so they can be identified with errors.As while
// errors.Is compares categories.
type RerootError struct {
	Type    ErrorType
	Path    string
	Message string
	Cause   error
}

func (e *RerootError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s error for %s: %s", e.Type, e.Path, e.Message)
	}
	return fmt.Sprintf("%s error: %s", e.Type, e.Message)
}

func (e *RerootError) Unwrap() error {
	return e.Cause
}

// Is reports whether target is a RerootError of the same category.
func (e *RerootError) Is(target error) bool {
	t, ok := target.(*RerootError)
	if !ok {
		return false
	}
	return e.Type == t.Type
}

func newError(t ErrorType, path, message string, cause error) *RerootError {
	return &RerootError{Type: t, Path: path, Message: message, Cause: cause}
}

// Category sentinels for use with errors.Is.
var (
	ErrFile    = &RerootError{Type: ErrTypeFile}
	ErrConfig  = &RerootError{Type: ErrTypeConfig}
	ErrNoMatch = &RerootError{Type: ErrTypeNoMatch}
	ErrRewrite = &RerootError{Type: ErrTypeRewrite}
	ErrBackup  = &RerootError{Type: ErrTypeBackup}
	ErrLog     = &RerootError{Type: ErrTypeLog}
)

// FileError represents file system operation errors on a single file.
type FileError struct {
	*RerootError
}

// NewFileError creates a file operation error with context.
func NewFileError(path, message string, cause error) *FileError {
	return &FileError{RerootError: newError(ErrTypeFile, path, message, cause)}
}

// FileNotFoundError represents errors when files cannot be located.
type FileNotFoundError struct {
	*FileError
}

// NewFileNotFoundError creates a file not found error.
func NewFileNotFoundError(path string, cause error) *FileNotFoundError {
	return &FileNotFoundError{FileError: NewFileError(path, "file not found", cause)}
}

// FileNotWritableError represents errors when files cannot be written to.
type FileNotWritableError struct {
	*FileError
}

// NewFileNotWritableError creates a file write error.
func NewFileNotWritableError(path string, cause error) *FileNotWritableError {
	return &FileNotWritableError{FileError: NewFileError(path, "file not writable", cause)}
}

// FileNotReadableError represents errors when files cannot be read from.
// The batch skips the file and continues with the rest.
type FileNotReadableError struct {
	*FileError
}

// NewFileNotReadableError creates a file read error.
func NewFileNotReadableError(path string, cause error) *FileNotReadableError {
	return &FileNotReadableError{FileError: NewFileError(path, "file not readable", cause)}
}

// ConfigError represents configuration validation errors. These are fatal
// to the whole run.
type ConfigError struct {
	*RerootError
}

// NewConfigError creates a configuration error without path context.
func NewConfigError(message string, cause error) *ConfigError {
	return &ConfigError{RerootError: newError(ErrTypeConfig, "", message, cause)}
}

// NewConfigErrorWithPath creates a configuration error with file context.
func NewConfigErrorWithPath(path, message string, cause error) *ConfigError {
	return &ConfigError{RerootError: newError(ErrTypeConfig, path, message, cause)}
}

// NoMatchError is returned when the glob patterns resolve to no files.
type NoMatchError struct {
	*RerootError
	Patterns []string
}

// NewNoMatchError creates a no-match error for the given root and patterns.
func NewNoMatchError(root string, patterns []string) *NoMatchError {
	return &NoMatchError{
		RerootError: newError(ErrTypeNoMatch, root, "no files found matching the specified patterns", nil),
		Patterns:    patterns,
	}
}

// RewriteError represents a failure to re-express an import path for a line.
type RewriteError struct {
	*RerootError
	Line int
}

// NewRewriteError creates a rewrite error for a line of a file.
func NewRewriteError(path string, line int, message string, cause error) *RewriteError {
	return &RewriteError{
		RerootError: newError(ErrTypeRewrite, path, fmt.Sprintf("line %d: %s", line, message), cause),
		Line:        line,
	}
}

// BackupError represents errors during backup, restore, revert and apply.
type BackupError struct {
	*RerootError
}

// NewBackupError creates a backup operation error.
func NewBackupError(path, message string, cause error) *BackupError {
	return &BackupError{RerootError: newError(ErrTypeBackup, path, message, cause)}
}

// LogError represents errors reading or writing report logs.
type LogError struct {
	*RerootError
}

// NewLogError creates a report log error.
func NewLogError(path, message string, cause error) *LogError {
	return &LogError{RerootError: newError(ErrTypeLog, path, message, cause)}
}

// WrapFileError converts standard Go errors into typed file errors.
func WrapFileError(path string, err error) error {
	if err == nil {
		return nil
	}

	absPath, absErr := filepath.Abs(path)
	if absErr != nil {
		absPath = path
	}

	switch {
	case errors.Is(err, fs.ErrNotExist):
		return NewFileNotFoundError(absPath, err)
	case errors.Is(err, fs.ErrPermission):
		return NewFileNotReadableError(absPath, err)
	default:
		return NewFileError(absPath, "file operation failed", err)
	}
}

// IsFatal reports whether err must abort the whole run. Only configuration
// errors are fatal; strict mode also escalates no-match errors.
func IsFatal(err error, strict bool) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrConfig) {
		return true
	}
	return strict && errors.Is(err, ErrNoMatch)
}
