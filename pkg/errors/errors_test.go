package errors

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAppError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *AppError
		expected string
	}{
		{
			name:     "without underlying error",
			err:      NewRank(CodeShapeMismatch, 2, "distance matrix row length mismatch"),
			expected: "[SHAPE_MISMATCH][rank 2] distance matrix row length mismatch",
		},
		{
			name:     "with underlying error",
			err:      Wrap(CodeIOError, 0, "failed to open matrix file", errors.New("permission denied")),
			expected: "[IO_ERROR][rank 0] failed to open matrix file: permission denied",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.err.Error())
		})
	}
}

func TestAppError_Unwrap(t *testing.T) {
	underlying := errors.New("underlying error")
	err := Wrap(CodeCollectiveFailure, 1, "all-gather failed", underlying)

	unwrapped := err.Unwrap()
	assert.Equal(t, underlying, unwrapped)
}

func TestAppError_Is(t *testing.T) {
	err1 := NewRank(CodeMalformedInput, 0, "error 1")
	err2 := NewRank(CodeMalformedInput, 3, "error 2")
	err3 := NewRank(CodePartitioning, 0, "error 3")

	assert.True(t, errors.Is(err1, err2))
	assert.False(t, errors.Is(err1, err3))
}

func TestIsMalformedInput(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{
			name:     "malformed input sentinel",
			err:      ErrMalformedInput,
			expected: true,
		},
		{
			name:     "wrapped malformed input",
			err:      Wrap(CodeMalformedInput, 0, "bad header", errors.New("expected integer")),
			expected: true,
		},
		{
			name:     "other error",
			err:      ErrShapeMismatch,
			expected: false,
		},
		{
			name:     "nil error",
			err:      nil,
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, IsMalformedInput(tt.err))
		})
	}
}

func TestIsShapeMismatch(t *testing.T) {
	assert.True(t, IsShapeMismatch(ErrShapeMismatch))
	assert.False(t, IsShapeMismatch(ErrMalformedInput))
}

func TestIsPartitioning(t *testing.T) {
	assert.True(t, IsPartitioning(ErrPartitioning))
	assert.False(t, IsPartitioning(ErrMalformedInput))
}

func TestIsCollectiveFailure(t *testing.T) {
	assert.True(t, IsCollectiveFailure(ErrCollectiveFailure))
	assert.False(t, IsCollectiveFailure(ErrMalformedInput))
}

func TestIsIOError(t *testing.T) {
	assert.True(t, IsIOError(ErrIOError))
	assert.False(t, IsIOError(ErrShapeMismatch))
}

func TestGetErrorCode(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected string
	}{
		{
			name:     "app error",
			err:      NewRank(CodePartitioning, 0, "uneven column split"),
			expected: CodePartitioning,
		},
		{
			name:     "wrapped app error",
			err:      Wrap(CodeIOError, 2, "read failed", errors.New("inner")),
			expected: CodeIOError,
		},
		{
			name:     "standard error",
			err:      errors.New("standard error"),
			expected: CodeUnknown,
		},
		{
			name:     "nil error",
			err:      nil,
			expected: CodeUnknown,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, GetErrorCode(tt.err))
		})
	}
}

func TestGetRank(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected int
	}{
		{
			name:     "app error with rank",
			err:      NewRank(CodeCollectiveFailure, 3, "barrier timeout"),
			expected: 3,
		},
		{
			name:     "standard error",
			err:      errors.New("standard error"),
			expected: -1,
		},
		{
			name:     "nil error",
			err:      nil,
			expected: -1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, GetRank(tt.err))
		})
	}
}
