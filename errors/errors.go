package errors

import (
	"errors"
	"fmt"
)

// Category classifies error types for targeted handling and monitoring.
type Category string

const (
	CategoryDecode     Category = "decode"
	CategoryValidation Category = "validation"
	CategoryPayload    Category = "payload"
	CategoryService    Category = "service"
	CategoryPipeline   Category = "pipeline"
	CategoryStorage    Category = "storage"
	CategoryConfig     Category = "config"
)

// StageError is the structured error type used throughout the module.
type StageError struct {
	Category  Category
	Op        string // operation name, e.g. "rembg.remove"
	Err       error
	Retryable bool
}

func (e *StageError) Error() string {
	return fmt.Sprintf("[%s] %s: %v", e.Category, e.Op, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// New creates a non-retryable StageError.
func New(category Category, op string, err error) *StageError {
	return &StageError{Category: category, Op: op, Err: err}
}

// Transient creates a retryable service-category StageError.
func Transient(op string, err error) *StageError {
	return &StageError{Category: CategoryService, Op: op, Err: err, Retryable: true}
}

// Wrap wraps an existing error with context.
func Wrap(category Category, op string, err error) error {
	if err == nil {
		return nil
	}
	return New(category, op, err)
}

// IsRetryable reports whether err represents a transient failure.
func IsRetryable(err error) bool {
	var se *StageError
	if errors.As(err, &se) {
		return se.Retryable
	}
	return false
}

// IsCategory reports whether err belongs to the given category.
func IsCategory(err error, cat Category) bool {
	var se *StageError
	if errors.As(err, &se) {
		return se.Category == cat
	}
	return false
}

// Sentinel errors for common failure modes.
var (
	ErrUnsupportedFormat = errors.New("unsupported image format")
	ErrEmptyInput        = errors.New("empty input")
	ErrEmptyBounds       = errors.New("no opaque pixels found")
	ErrPayloadTooLarge   = errors.New("payload exceeds size ceiling")
	ErrRetriesExhausted  = errors.New("all attempts failed")
	ErrMissingAPIKey     = errors.New("api key not configured")
)
