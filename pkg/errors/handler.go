package errors

import (
	"context"
	"errors"
	"log/slog"
)

// ErrorHandler records AppErrors as structured log entries.
type ErrorHandler struct {
	logger *slog.Logger
}

// NewErrorHandler creates a handler writing to logger. A nil logger
// falls back to slog.Default().
func NewErrorHandler(logger *slog.Logger) *ErrorHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ErrorHandler{logger: logger}
}

// Handle logs err with its code, severity, and context. Non-AppErrors are
// logged as internal errors.
func (h *ErrorHandler) Handle(ctx context.Context, err error) {
	if err == nil {
		return
	}

	var appErr *AppError
	if !errors.As(err, &appErr) {
		appErr = Wrap(err, ErrCodeInternal, err.Error())
		err = appErr
	}

	attrs := []any{
		slog.String("code", string(GetErrorCode(err))),
		slog.String("severity", string(appErr.Severity)),
		slog.Bool("recoverable", IsRecoverable(err)),
	}
	for k, v := range appErr.Context {
		attrs = append(attrs, slog.Any(k, v))
	}
	if appErr.Cause != nil {
		attrs = append(attrs, slog.String("cause", appErr.Cause.Error()))
	}

	level := slog.LevelError
	switch appErr.Severity {
	case SeverityWarning:
		level = slog.LevelWarn
	case SeverityInfo:
		level = slog.LevelInfo
	}
	h.logger.Log(ctx, level, appErr.Message, attrs...)
}

// TransactionHandler manages error handling for transactions
type TransactionHandler struct {
	handler      *ErrorHandler
	rollbackFunc func() error
	committed    bool
}

// NewTransactionHandler creates a new transaction handler
func (h *ErrorHandler) NewTransactionHandler(rollbackFunc func() error) *TransactionHandler {
	return &TransactionHandler{
		handler:      h,
		rollbackFunc: rollbackFunc,
	}
}

// Execute runs fn and rolls back when it fails. The error from fn is
// returned unchanged; a rollback failure is only logged.
func (th *TransactionHandler) Execute(ctx context.Context, fn func() error) error {
	err := fn()
	if err != nil {
		th.handler.Handle(ctx, err)

		if th.rollbackFunc != nil && !th.committed {
			if rollbackErr := th.rollbackFunc(); rollbackErr != nil {
				th.handler.Handle(ctx, Wrap(rollbackErr, ErrCodeSQLTransaction, "Failed to rollback transaction"))
			} else {
				th.handler.logger.WarnContext(ctx, "transaction rolled back")
			}
		}

		return err
	}

	th.committed = true
	return nil
}
