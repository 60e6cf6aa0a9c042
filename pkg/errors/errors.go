package errors

import (
	"errors"
	"fmt"
	"runtime"
	"strings"
	"time"
)

// ErrorCode represents a unique error code for categorizing errors
type ErrorCode string

const (
	// Gateway / source errors (1xxx)
	ErrCodeGatewayUnavailable ErrorCode = "STLE1001"
	ErrCodeGatewayTimeout     ErrorCode = "STLE1002"
	ErrCodeAuthFailed         ErrorCode = "STLE1003"
	ErrCodeGatewayResponse    ErrorCode = "STLE1004"

	// Configuration errors (2xxx)
	ErrCodeConfigNotFound ErrorCode = "STLE2001"
	ErrCodeConfigInvalid  ErrorCode = "STLE2002"
	ErrCodeConfigMissing  ErrorCode = "STLE2003"

	// Checksum store errors (3xxx)
	ErrCodeChecksumSave ErrorCode = "STLE3001"
	ErrCodeChecksumLoad ErrorCode = "STLE3002"

	// Warehouse / SQL errors (4xxx)
	ErrCodeConnectionFailed ErrorCode = "STLE4001"
	ErrCodeSQLExecution     ErrorCode = "STLE4002"
	ErrCodeSQLTransaction   ErrorCode = "STLE4003"
	ErrCodeStagingFailed    ErrorCode = "STLE4004"
	ErrCodeTransformFailed  ErrorCode = "STLE4005"
	ErrCodeLoadFailed       ErrorCode = "STLE4006"
	ErrCodeSchemaApply      ErrorCode = "STLE4007"

	// File system errors (5xxx)
	ErrCodeFileNotFound  ErrorCode = "STLE5001"
	ErrCodeFileOperation ErrorCode = "STLE5002"

	// Validation errors (6xxx)
	ErrCodeValidationFailed ErrorCode = "STLE6001"
	ErrCodeRequiredField    ErrorCode = "STLE6002"

	// System errors (9xxx)
	ErrCodeInternal           ErrorCode = "STLE9001"
	ErrCodeTimeout            ErrorCode = "STLE9002"
	ErrCodeResourceExhausted  ErrorCode = "STLE9003"
	ErrCodeServiceUnavailable ErrorCode = "STLE9004"
)

// ErrorSeverity represents the severity level of an error
type ErrorSeverity string

const (
	SeverityCritical ErrorSeverity = "CRITICAL" // System failure, requires immediate attention
	SeverityError    ErrorSeverity = "ERROR"    // Operation failed, but system continues
	SeverityWarning  ErrorSeverity = "WARNING"  // Operation succeeded with issues
	SeverityInfo     ErrorSeverity = "INFO"     // Informational, not an error
)

// AppError represents a structured application error with context
type AppError struct {
	Code        ErrorCode
	Message     string
	Severity    ErrorSeverity
	Context     map[string]interface{}
	Cause       error
	Stack       string
	Timestamp   time.Time
	Recoverable bool
	Suggestions []string
}

// Error implements the error interface
func (e *AppError) Error() string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("[%s] %s: %s", e.Code, e.Severity, e.Message))

	if e.Cause != nil {
		b.WriteString(fmt.Sprintf("\nCaused by: %v", e.Cause))
	}

	if len(e.Suggestions) > 0 {
		b.WriteString("\nSuggestions:")
		for i, suggestion := range e.Suggestions {
			b.WriteString(fmt.Sprintf("\n  %d. %s", i+1, suggestion))
		}
	}

	return b.String()
}

// Unwrap returns the cause of the error
func (e *AppError) Unwrap() error {
	return e.Cause
}

// Is implements error comparison
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// New creates a new AppError
func New(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:        code,
		Message:     message,
		Severity:    SeverityError,
		Context:     make(map[string]interface{}),
		Stack:       captureStack(),
		Timestamp:   time.Now(),
		Recoverable: false,
	}
}

// Wrap wraps an existing error with AppError
func Wrap(err error, code ErrorCode, message string) *AppError {
	if err == nil {
		return nil
	}

	appErr := New(code, message)
	appErr.Cause = err

	// If wrapping another AppError, inherit its context
	if ae, ok := err.(*AppError); ok {
		for k, v := range ae.Context {
			appErr.Context[k] = v
		}
	}

	return appErr
}

// WithContext adds context to the error
func (e *AppError) WithContext(key string, value interface{}) *AppError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// WithSeverity sets the error severity
func (e *AppError) WithSeverity(severity ErrorSeverity) *AppError {
	e.Severity = severity
	return e
}

// WithSuggestions adds recovery suggestions
func (e *AppError) WithSuggestions(suggestions ...string) *AppError {
	e.Suggestions = append(e.Suggestions, suggestions...)
	return e
}

// AsRecoverable marks the error as recoverable
func (e *AppError) AsRecoverable() *AppError {
	e.Recoverable = true
	return e
}

// captureStack captures the current stack trace
func captureStack() string {
	const depth = 32
	var pcs [depth]uintptr
	n := runtime.Callers(3, pcs[:])

	var b strings.Builder
	frames := runtime.CallersFrames(pcs[:n])

	for {
		frame, more := frames.Next()
		if !strings.Contains(frame.File, "runtime/") {
			b.WriteString(fmt.Sprintf("%s:%d %s\n", frame.File, frame.Line, frame.Function))
		}
		if !more {
			break
		}
	}

	return b.String()
}

// Common error constructors

// GatewayError creates an upstream-gateway error
func GatewayError(message string, cause error) *AppError {
	return Wrap(cause, ErrCodeGatewayUnavailable, message).
		WithSeverity(SeverityError).
		WithSuggestions(
			"Check your network connection",
			"Verify the gateway base URL is reachable",
			"Check the gateway service logs",
		).AsRecoverable()
}

// ConnectionError creates a warehouse connection error
func ConnectionError(message string, cause error) *AppError {
	return Wrap(cause, ErrCodeConnectionFailed, message).
		WithSeverity(SeverityError).
		WithSuggestions(
			"Verify the warehouse host and port",
			"Check database credentials",
			"Ensure the warehouse database exists",
		)
}

// ConfigError creates a configuration-related error
func ConfigError(message string, field string) *AppError {
	return New(ErrCodeConfigInvalid, message).
		WithContext("field", field).
		WithSuggestions(
			fmt.Sprintf("Check the '%s' configuration value", field),
			"Run 'starlift setup' to reconfigure",
		)
}

// SQLError creates an SQL execution error
func SQLError(message string, query string, cause error) *AppError {
	err := Wrap(cause, ErrCodeSQLExecution, message).
		WithContext("query", truncateString(query, 200))

	if cause != nil {
		errStr := cause.Error()
		if strings.Contains(errStr, "timeout") {
			err.Code = ErrCodeTimeout
			_ = err.WithSuggestions(
				"Increase the statement timeout setting",
				"Check warehouse load",
			)
		} else if strings.Contains(errStr, "does not exist") {
			err.Code = ErrCodeSchemaApply
			_ = err.WithSuggestions(
				"Run 'starlift run --init-schema' to create the warehouse schema",
				"Check for typos in table names",
			)
		}
	}

	return err
}

// ValidationError creates a validation error
func ValidationError(field string, value interface{}, reason string) *AppError {
	return New(ErrCodeValidationFailed, fmt.Sprintf("Validation failed for %s: %s", field, reason)).
		WithContext("field", field).
		WithContext("value", value).
		WithSeverity(SeverityWarning).
		AsRecoverable()
}

// IsRecoverable checks if an error is recoverable
func IsRecoverable(err error) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Recoverable
	}
	return false
}

// GetErrorCode extracts the error code from an error
func GetErrorCode(err error) ErrorCode {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ErrCodeInternal
}

// truncateString truncates a string to maxLen characters
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
