package errx

import (
	"errors"
	"fmt"
)

// Kind identifies which stage of the workflow a failure belongs to. The
// composer uses it to pick the user-facing wording and suggestion.
type Kind string

const (
	KindClassification Kind = "classification"
	KindIntentParse    Kind = "intent_parse"
	KindSQLGeneration  Kind = "sql_generation"
	KindSQLExecution   Kind = "sql_execution"
	KindExport         Kind = "export"
	KindVisualization  Kind = "visualization"
	KindConversation   Kind = "conversation"
	KindInternal       Kind = "internal"
)

// Execution sub-kinds, carried in Detail for KindSQLExecution errors.
const (
	ExecTableNotFound  = "table_not_found"
	ExecColumnNotFound = "column_not_found"
	ExecSyntaxError    = "syntax_error"
	ExecResourceLocked = "resource_locked"
	ExecUnknown        = "unknown"
)

const (
	// SystemErrorMessage is a user-facing fallback when internal errors occur.
	SystemErrorMessage = "internal error"
	// RedisErrorMessage describes Redis related failures.
	RedisErrorMessage = "redis operation failed"
	// RedisNotFoundMessage describes a missing Redis key.
	RedisNotFoundMessage = "not found"
)

// AppError wraps an underlying error with a failure kind, a user-safe message
// and an optional remediation suggestion.
type AppError struct {
	Err        error
	Kind       Kind
	Detail     string // sub-type, e.g. the execution taxonomy above
	Message    string
	Suggestion string
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return fmt.Sprintf("%s: %v", e.Message, e.Err)
}

// Unwrap exposes the underlying error for errors.Is / errors.As support.
func (e *AppError) Unwrap() error {
	return e.Err
}

// Is reports whether the target matches the underlying error or the AppError itself.
func (e *AppError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// As allows casting to AppError or the wrapped error in a chain.
func (e *AppError) As(target any) bool {
	if errors.As(e.Err, target) {
		return true
	}
	if t, ok := target.(**AppError); ok {
		*t = e
		return true
	}
	return false
}

// New creates a new AppError with the provided information.
func New(err error, kind Kind, message string) *AppError {
	return &AppError{Err: err, Kind: kind, Message: message}
}

// WithSuggestion attaches a remediation hint for the composer.
func (e *AppError) WithSuggestion(s string) *AppError {
	e.Suggestion = s
	return e
}

// WithDetail attaches a sub-type label (e.g. the execution taxonomy).
func (e *AppError) WithDetail(d string) *AppError {
	e.Detail = d
	return e
}

// KindOf extracts the failure kind from an error chain, defaulting to internal.
func KindOf(err error) Kind {
	var app *AppError
	if errors.As(err, &app) {
		return app.Kind
	}
	return KindInternal
}

// DetailOf extracts the failure sub-type from an error chain, if any.
func DetailOf(err error) string {
	var app *AppError
	if errors.As(err, &app) {
		return app.Detail
	}
	return ""
}

// SuggestionOf extracts the remediation suggestion from an error chain, if any.
func SuggestionOf(err error) string {
	var app *AppError
	if errors.As(err, &app) {
		return app.Suggestion
	}
	return ""
}
