package errors

import (
	"bytes"
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppError(t *testing.T) {
	tests := []struct {
		name     string
		err      *AppError
		expected string
	}{
		{
			name:     "basic error",
			err:      New(ErrCodeConnectionFailed, "Connection failed"),
			expected: "[SADM1001] ERROR: Connection failed",
		},
		{
			name: "error with suggestions",
			err: New(ErrCodeConnectionFailed, "Connection failed").
				WithSuggestions("Check network", "Verify credentials"),
			expected: "[SADM1001] ERROR: Connection failed\nSuggestions:\n  1. Check network\n  2. Verify credentials",
		},
		{
			name: "error with context",
			err: New(ErrCodeConnectionFailed, "Connection failed").
				WithContext("host", "example.com").
				WithContext("port", 443),
			expected: "[SADM1001] ERROR: Connection failed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.err.Error())
		})
	}
}

func TestErrorWrapping(t *testing.T) {
	baseErr := fmt.Errorf("database connection refused")

	appErr := Wrap(baseErr, ErrCodeConnectionFailed, "Failed to connect to Snowflake")

	assert.Equal(t, baseErr, appErr.Cause)
	assert.Equal(t, ErrCodeConnectionFailed, appErr.Code)
	assert.True(t, stderrors.Is(appErr, baseErr))
	assert.Nil(t, Wrap(nil, ErrCodeInternal, "nothing"))
}

func TestWrapInheritsContext(t *testing.T) {
	inner := New(ErrCodeSQLExecution, "inner").WithContext("statement", 3)
	outer := Wrap(fmt.Errorf("file failed: %w", inner), ErrCodeSQLExecution, "outer")

	assert.Equal(t, 3, outer.Context["statement"])
}

func TestSentinelsMatchByCode(t *testing.T) {
	cause := fmt.Errorf("SecretNotFound: (404)")
	err := fmt.Errorf("resolve: %w", SecretNotFound("snowflake-user", cause))

	assert.True(t, stderrors.Is(err, ErrSecretNotFound))
	assert.False(t, stderrors.Is(err, ErrKeyParse))
	assert.True(t, stderrors.Is(err, cause), "provider error must stay reachable")
	assert.Equal(t, ErrCodeSecretNotFound, GetErrorCode(err))

	keyErr := KeyParseError("bad key", nil)
	assert.True(t, stderrors.Is(keyErr, ErrKeyParse))
	assert.Nil(t, keyErr.Cause)
}

func TestSQLErrorClassification(t *testing.T) {
	tests := []struct {
		name  string
		cause error
		code  ErrorCode
	}{
		{"syntax", fmt.Errorf("SQL compilation error: syntax error line 1"), ErrCodeSQLSyntax},
		{"missing object", fmt.Errorf("Object 'X' does not exist or not authorized."), ErrCodeSQLObjectNotFound},
		{"privileges", fmt.Errorf("Insufficient privileges to operate on schema"), ErrCodeSQLPermission},
		{"timeout", fmt.Errorf("request timeout"), ErrCodeSQLTimeout},
		{"already exists", fmt.Errorf("Object 'TENANT_MANAGEMENT' already exists."), ErrCodeSQLObjectExists},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := SQLError("Failed to execute statement", "SELECT 1", tt.cause)
			assert.Equal(t, tt.code, err.Code)
			assert.Equal(t, "SELECT 1", err.Context["query"])
		})
	}
}

func TestIsRecoverable(t *testing.T) {
	assert.True(t, IsRecoverable(ValidationError("batch_size", 0, "must be positive")))
	assert.False(t, IsRecoverable(New(ErrCodeInternal, "boom")))
	assert.False(t, IsRecoverable(fmt.Errorf("plain")))
	assert.Equal(t, ErrCodeInternal, GetErrorCode(fmt.Errorf("plain")))
}

func TestSQLErrorAlreadyExistsIsRecoverable(t *testing.T) {
	err := SQLError("Failed to execute query", "CREATE SCHEMA X", fmt.Errorf("Object 'X' already exists."))
	assert.True(t, IsRecoverable(err))
	assert.Equal(t, SeverityWarning, err.Severity)
	assert.Equal(t, ErrCodeSQLObjectExists, GetErrorCode(fmt.Errorf("script: %w", err)))

	assert.False(t, IsRecoverable(SQLError("Failed to execute query", "GRANT X", fmt.Errorf("syntax error"))))
}

func TestErrorHandlerHandle(t *testing.T) {
	t.Run("validation error is a recoverable warning", func(t *testing.T) {
		var buf bytes.Buffer
		handler := NewErrorHandler(slog.New(slog.NewTextHandler(&buf, nil)))

		handler.Handle(context.Background(), fmt.Errorf("load: %w", ValidationError("batch_size", 0, "must be positive")))

		out := buf.String()
		assert.Contains(t, out, "level=WARN")
		assert.Contains(t, out, "code=SADM6001")
		assert.Contains(t, out, "recoverable=true")
		assert.Contains(t, out, "field=batch_size")
	})

	t.Run("plain error is logged as internal", func(t *testing.T) {
		var buf bytes.Buffer
		handler := NewErrorHandler(slog.New(slog.NewTextHandler(&buf, nil)))

		handler.Handle(context.Background(), fmt.Errorf("boom"))

		out := buf.String()
		assert.Contains(t, out, "level=ERROR")
		assert.Contains(t, out, "code="+string(ErrCodeInternal))
		assert.Contains(t, out, "recoverable=false")
		assert.Contains(t, out, "cause=boom")
	})

	t.Run("nil error logs nothing", func(t *testing.T) {
		var buf bytes.Buffer
		NewErrorHandler(slog.New(slog.NewTextHandler(&buf, nil))).Handle(context.Background(), nil)
		assert.Empty(t, buf.String())
	})
}

func TestTransactionHandler(t *testing.T) {
	var buf bytes.Buffer
	handler := NewErrorHandler(slog.New(slog.NewTextHandler(&buf, nil)))

	t.Run("rolls back on failure", func(t *testing.T) {
		rolledBack := false
		th := handler.NewTransactionHandler(func() error {
			rolledBack = true
			return nil
		})

		failure := New(ErrCodeSQLExecution, "insert failed")
		err := th.Execute(context.Background(), func() error { return failure })

		require.Error(t, err)
		assert.Same(t, failure, err)
		assert.True(t, rolledBack)
		assert.Contains(t, buf.String(), "insert failed")
		assert.Contains(t, buf.String(), "transaction rolled back")
	})

	t.Run("no rollback on success", func(t *testing.T) {
		rolledBack := false
		th := handler.NewTransactionHandler(func() error {
			rolledBack = true
			return nil
		})

		err := th.Execute(context.Background(), func() error { return nil })

		assert.NoError(t, err)
		assert.False(t, rolledBack)
	})
}
