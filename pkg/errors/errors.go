// Package errors defines the fatal error kinds raised by the distance
// matrix loader and the NJ iteration engine.
package errors

import (
	"errors"
	"fmt"
)

// Error codes for the application. These correspond one-to-one with the
// error kinds a distributed run can fail with: all of them are fatal and
// abort the whole collective group (see pkg/errors.AppError.Code).
const (
	CodeUnknown           = "UNKNOWN_ERROR"
	CodeIOError           = "IO_ERROR"
	CodeMalformedInput    = "MALFORMED_INPUT"
	CodeShapeMismatch     = "SHAPE_MISMATCH"
	CodePartitioning      = "PARTITIONING_ERROR"
	CodeCollectiveFailure = "COLLECTIVE_FAILURE"
	CodeConfigError       = "CONFIG_ERROR"
	CodeStorageError      = "STORAGE_ERROR"
	CodeDatabaseError     = "DATABASE_ERROR"
)

// AppError represents a fatal run error with a code, a rank, and a message.
type AppError struct {
	Code    string
	Rank    int
	Message string
	Err     error
}

// Error implements the error interface.
func (e *AppError) Error() string {
	prefix := fmt.Sprintf("[%s][rank %d]", e.Code, e.Rank)
	if e.Err != nil {
		return fmt.Sprintf("%s %s: %v", prefix, e.Message, e.Err)
	}
	return fmt.Sprintf("%s %s", prefix, e.Message)
}

// Unwrap returns the underlying error.
func (e *AppError) Unwrap() error {
	return e.Err
}

// Is checks if the error matches the target by error code.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// New creates a new AppError for rank 0 (use NewRank for a specific rank).
func New(code string, message string) *AppError {
	return &AppError{Code: code, Message: message}
}

// NewRank creates a new AppError tagged with the originating rank.
func NewRank(code string, rank int, message string) *AppError {
	return &AppError{Code: code, Rank: rank, Message: message}
}

// Wrap wraps an existing error with an AppError.
func Wrap(code string, rank int, message string, err error) *AppError {
	return &AppError{Code: code, Rank: rank, Message: message, Err: err}
}

// Common error instances, used with errors.Is against a returned error's
// Code regardless of rank or message.
var (
	ErrIOError           = New(CodeIOError, "input/output error")
	ErrMalformedInput    = New(CodeMalformedInput, "malformed input")
	ErrShapeMismatch     = New(CodeShapeMismatch, "matrix shape mismatch")
	ErrPartitioning      = New(CodePartitioning, "partitioning error")
	ErrCollectiveFailure = New(CodeCollectiveFailure, "collective failure")
	ErrConfigError       = New(CodeConfigError, "configuration error")
	ErrStorageError      = New(CodeStorageError, "storage error")
	ErrDatabaseError     = New(CodeDatabaseError, "database error")
)

// IsIOError reports whether err is an Input/IO error.
func IsIOError(err error) bool { return errors.Is(err, ErrIOError) }

// IsMalformedInput reports whether err is a malformed-input error.
func IsMalformedInput(err error) bool { return errors.Is(err, ErrMalformedInput) }

// IsShapeMismatch reports whether err is a shape-mismatch error.
func IsShapeMismatch(err error) bool { return errors.Is(err, ErrShapeMismatch) }

// IsPartitioning reports whether err is a partitioning error.
func IsPartitioning(err error) bool { return errors.Is(err, ErrPartitioning) }

// IsCollectiveFailure reports whether err is a collective-failure error.
func IsCollectiveFailure(err error) bool { return errors.Is(err, ErrCollectiveFailure) }

// GetErrorCode extracts the error code from an error, or CodeUnknown.
func GetErrorCode(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return CodeUnknown
}

// GetRank extracts the originating rank from an error, or -1 if unknown.
func GetRank(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Rank
	}
	return -1
}
