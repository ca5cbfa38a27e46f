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
	// Connection errors (1xxx)
	ErrCodeConnectionFailed     ErrorCode = "SADM1001"
	ErrCodeConnectionTimeout    ErrorCode = "SADM1002"
	ErrCodeAuthenticationFailed ErrorCode = "SADM1003"

	// Configuration errors (2xxx)
	ErrCodeConfigNotFound ErrorCode = "SADM2001"
	ErrCodeConfigInvalid  ErrorCode = "SADM2002"
	ErrCodeConfigMissing  ErrorCode = "SADM2003"

	// Credential errors (3xxx)
	ErrCodeSecretNotFound   ErrorCode = "SADM3001"
	ErrCodeKeyParse         ErrorCode = "SADM3002"
	ErrCodeVaultUnavailable ErrorCode = "SADM3003"

	// SQL execution errors (4xxx)
	ErrCodeSQLSyntax         ErrorCode = "SADM4001"
	ErrCodeSQLPermission     ErrorCode = "SADM4002"
	ErrCodeSQLTimeout        ErrorCode = "SADM4003"
	ErrCodeSQLTransaction    ErrorCode = "SADM4004"
	ErrCodeSQLObjectNotFound ErrorCode = "SADM4005"
	ErrCodeSQLExecution      ErrorCode = "SADM4006"
	ErrCodeSQLObjectExists   ErrorCode = "SADM4007"
	ErrCodeNoResults         ErrorCode = "SADM4008"

	// File system errors (5xxx)
	ErrCodeFileNotFound  ErrorCode = "SADM5001"
	ErrCodeFileCorrupted ErrorCode = "SADM5003"

	// Validation errors (6xxx)
	ErrCodeValidationFailed ErrorCode = "SADM6001"
	ErrCodeInvalidInput     ErrorCode = "SADM6002"

	// Tenant errors (7xxx)
	ErrCodeTenantNotFound ErrorCode = "SADM7001"

	// Source checkout errors (8xxx)
	ErrCodeRepoSyncFailed ErrorCode = "SADM8001"

	// System errors (9xxx)
	ErrCodeInternal ErrorCode = "SADM9001"
)

// ErrorSeverity represents the severity level of an error
type ErrorSeverity string

const (
	SeverityCritical ErrorSeverity = "CRITICAL" // System failure, requires immediate attention
	SeverityError    ErrorSeverity = "ERROR"    // Operation failed, but system continues
	SeverityWarning  ErrorSeverity = "WARNING"  // Operation succeeded with issues
	SeverityInfo     ErrorSeverity = "INFO"     // Informational, not an error
)

// Sentinels for errors.Is checks; matching is by code.
var (
	ErrSecretNotFound = &AppError{Code: ErrCodeSecretNotFound}
	ErrKeyParse       = &AppError{Code: ErrCodeKeyParse}
	ErrTenantNotFound = &AppError{Code: ErrCodeTenantNotFound}
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
		Code:      code,
		Message:   message,
		Severity:  SeverityError,
		Context:   make(map[string]interface{}),
		Stack:     captureStack(),
		Timestamp: time.Now(),
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
	var ae *AppError
	if errors.As(err, &ae) {
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

// SecretNotFound reports a vault lookup that produced no usable value.
// The cause is kept unmodified so callers can still inspect provider errors.
func SecretNotFound(name string, cause error) *AppError {
	msg := fmt.Sprintf("Secret %q could not be read from the vault", name)
	var err *AppError
	if cause != nil {
		err = Wrap(cause, ErrCodeSecretNotFound, msg)
	} else {
		err = New(ErrCodeSecretNotFound, msg)
	}
	return err.WithContext("secret", name).
		WithSuggestions(
			"Check the secret name in the secrets section of the configuration",
			"Verify your identity has get access on the vault",
			"Confirm the vault endpoint is reachable",
		)
}

// KeyParseError reports private key material that could not be decoded.
func KeyParseError(message string, cause error) *AppError {
	var err *AppError
	if cause != nil {
		err = Wrap(cause, ErrCodeKeyParse, message)
	} else {
		err = New(ErrCodeKeyParse, message)
	}
	return err.WithSuggestions(
		"Verify the stored key is an unencrypted PKCS#8 or PKCS#1 private key",
		"Re-upload the key secret from the original .p8 file",
	)
}

// ConnectionError creates a connection-related error
func ConnectionError(message string, cause error) *AppError {
	return Wrap(cause, ErrCodeConnectionFailed, message).
		WithSeverity(SeverityError).
		WithSuggestions(
			"Check your network connection",
			"Verify Snowflake endpoint is accessible",
			"Check firewall settings",
		)
}

// ConfigError creates a configuration-related error
func ConfigError(message string, field string) *AppError {
	return New(ErrCodeConfigInvalid, message).
		WithContext("field", field).
		WithSuggestions(
			fmt.Sprintf("Check the '%s' configuration value", field),
			"Run 'snowadmin config show' to inspect the effective configuration",
		)
}

// SQLError creates an SQL execution error
func SQLError(message string, query string, cause error) *AppError {
	err := Wrap(cause, ErrCodeSQLSyntax, message).
		WithContext("query", truncateString(query, 200))

	lower := strings.ToLower(message)
	if cause != nil {
		lower += " " + strings.ToLower(cause.Error())
	}

	switch {
	case strings.Contains(lower, "already exists"):
		err.Code = ErrCodeSQLObjectExists
		_ = err.WithSeverity(SeverityWarning).AsRecoverable()
	case strings.Contains(lower, "insufficient privileges") || strings.Contains(lower, "access denied"):
		err.Code = ErrCodeSQLPermission
		_ = err.WithSuggestions(
			"Check user permissions in Snowflake",
			"Verify the role has required privileges",
		)
	case strings.Contains(lower, "does not exist") || strings.Contains(lower, "not found"):
		err.Code = ErrCodeSQLObjectNotFound
		_ = err.WithSuggestions(
			"Verify the object exists in the target database/schema",
			"Run the setup scripts before loading data",
		)
	case strings.Contains(lower, "timeout"):
		err.Code = ErrCodeSQLTimeout
		_ = err.WithSuggestions(
			"Increase the request timeout setting",
			"Check Snowflake warehouse size",
		)
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

func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
