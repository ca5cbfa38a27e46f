package snowflake

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/snowflakedb/gosnowflake"

	"snowadmin/pkg/errors"
)

// Snowflake error numbers returned when the login itself is rejected.
var authErrorNumbers = map[int]bool{
	390100: true, // incorrect username or password
	390144: true, // JWT token is invalid
	390186: true, // role not granted to user
}

// Service runs statements over a single Snowflake session.
type Service struct {
	db           *sql.DB
	config       Config
	connected    bool
	logger       *slog.Logger
	errorHandler *errors.ErrorHandler
	open         func(driverName, dsn string) (*sql.DB, error)
}

// ResultSet holds query output rendered as strings.
type ResultSet struct {
	Columns []string
	Rows    [][]string
}

// NewService creates a new Snowflake service
func NewService(config Config, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		config:       config,
		logger:       logger,
		errorHandler: errors.NewErrorHandler(logger),
		open:         sql.Open,
	}
}

// NewServiceWithDB wraps an already open database.
func NewServiceWithDB(db *sql.DB, config Config, logger *slog.Logger) *Service {
	s := NewService(config, logger)
	s.db = db
	s.connected = true
	return s
}

// Connect opens the session with key-pair (JWT) authentication. The pool is
// pinned to one connection so USE ROLE and USE DATABASE persist between
// calls.
func (s *Service) Connect(ctx context.Context) error {
	if s.connected {
		return nil
	}
	if err := ValidateConfig(s.config); err != nil {
		return errors.ConfigError(err.Error(), "snowflake")
	}

	dsn, err := DSN(s.config)
	if err != nil {
		return errors.ConnectionError("Failed to build Snowflake connection string", err).
			WithContext("account", s.config.Account)
	}

	s.logger.InfoContext(ctx, "connecting to snowflake",
		slog.String("account", s.config.Account),
		slog.String("user", s.config.User),
		slog.String("role", s.config.Role),
		slog.String("warehouse", s.config.Warehouse))

	db, err := s.open("snowflake", dsn)
	if err != nil {
		return errors.ConnectionError("Failed to open Snowflake connection", err).
			WithContext("account", s.config.Account).
			WithContext("warehouse", s.config.Warehouse)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	pingCtx, cancel := context.WithTimeout(ctx, s.loginTimeout())
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		db.Close()

		if isAuthError(err) {
			return errors.Wrap(err, errors.ErrCodeAuthenticationFailed, "Authentication failed").
				WithContext("user", s.config.User).
				WithContext("role", s.config.Role).
				WithSuggestions(
					"Verify the public key registered for the user matches the vault private key",
					"Run 'snowadmin credentials' to print the key fingerprint",
					"Check that the role is granted to the user",
				)
		}
		if stderrors.Is(err, context.DeadlineExceeded) {
			return errors.Wrap(err, errors.ErrCodeConnectionTimeout, "Timed out connecting to Snowflake").
				WithContext("account", s.config.Account).
				WithContext("login_timeout", s.loginTimeout().String())
		}
		return errors.ConnectionError("Failed to connect to Snowflake", err).
			WithContext("account", s.config.Account)
	}

	s.db = db
	s.connected = true
	s.logger.InfoContext(ctx, "connected to snowflake")
	return nil
}

// Close closes the database connection
func (s *Service) Close() error {
	if !s.connected {
		return nil
	}
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("failed to close connection: %w", err)
	}
	s.connected = false
	return nil
}

// DB returns the underlying database connection
func (s *Service) DB() *sql.DB {
	return s.db
}

// Config returns the connection configuration.
func (s *Service) Config() Config {
	return s.config
}

// Exec runs a statement that returns no rows.
func (s *Service) Exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	if err := s.ensureConnected(); err != nil {
		return nil, err
	}

	ctx, cancel := s.requestContext(ctx)
	defer cancel()

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, errors.SQLError("Failed to execute statement", query, err)
	}
	return res, nil
}

// Query runs a statement and returns every row as strings. NULL is rendered
// as "NULL".
func (s *Service) Query(ctx context.Context, query string, args ...any) (*ResultSet, error) {
	if err := s.ensureConnected(); err != nil {
		return nil, err
	}

	ctx, cancel := s.requestContext(ctx)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.SQLError("Failed to execute query", query, err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, errors.SQLError("Failed to read result columns", query, err)
	}

	result := &ResultSet{Columns: cols}
	for rows.Next() {
		values := make([]interface{}, len(cols))
		valuePtrs := make([]interface{}, len(cols))
		for i := range values {
			valuePtrs[i] = &values[i]
		}
		if err := rows.Scan(valuePtrs...); err != nil {
			return nil, errors.SQLError("Failed to scan row", query, err)
		}

		row := make([]string, len(cols))
		for i, v := range values {
			row[i] = formatValue(v)
		}
		result.Rows = append(result.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.SQLError("Failed to read rows", query, err)
	}
	return result, nil
}

// QueryColumn returns column idx of every row. SHOW commands put the object
// name in column 1.
func (s *Service) QueryColumn(ctx context.Context, idx int, query string, args ...any) ([]string, error) {
	rs, err := s.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	if len(rs.Rows) > 0 && (idx < 0 || idx >= len(rs.Columns)) {
		return nil, errors.New(errors.ErrCodeInvalidInput,
			fmt.Sprintf("column %d out of range for %d columns", idx, len(rs.Columns))).
			WithContext("query", query)
	}

	values := make([]string, 0, len(rs.Rows))
	for _, row := range rs.Rows {
		values = append(values, row[idx])
	}
	return values, nil
}

// QueryString returns the first column of the first row.
func (s *Service) QueryString(ctx context.Context, query string, args ...any) (string, error) {
	if err := s.ensureConnected(); err != nil {
		return "", err
	}

	ctx, cancel := s.requestContext(ctx)
	defer cancel()

	var value sql.NullString
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&value); err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return "", errors.Wrap(err, errors.ErrCodeNoResults, "Query returned no rows").
				WithContext("query", query)
		}
		return "", errors.SQLError("Failed to execute query", query, err)
	}
	if !value.Valid {
		return "NULL", nil
	}
	return value.String, nil
}

// QueryInt returns the first column of the first row as an integer.
func (s *Service) QueryInt(ctx context.Context, query string, args ...any) (int64, error) {
	if err := s.ensureConnected(); err != nil {
		return 0, err
	}

	ctx, cancel := s.requestContext(ctx)
	defer cancel()

	var value sql.NullInt64
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&value); err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return 0, errors.Wrap(err, errors.ErrCodeNoResults, "Query returned no rows").
				WithContext("query", query)
		}
		return 0, errors.SQLError("Failed to execute query", query, err)
	}
	return value.Int64, nil
}

// BeginTx starts a transaction on the session.
func (s *Service) BeginTx(ctx context.Context) (*sql.Tx, error) {
	if err := s.ensureConnected(); err != nil {
		return nil, err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSQLTransaction, "Failed to begin transaction")
	}
	return tx, nil
}

// ErrorHandler returns the handler used to log and roll back failures.
func (s *Service) ErrorHandler() *errors.ErrorHandler {
	return s.errorHandler
}

// StatementResult is the outcome of one statement of a script.
type StatementResult struct {
	Index     int
	Statement string
	Result    *ResultSet
	Err       error
}

// ExecuteScript splits script and runs each statement in order. Statement
// errors are recorded in the result and do not stop the script; only a
// cancelled context does.
func (s *Service) ExecuteScript(ctx context.Context, script string) ([]StatementResult, error) {
	if err := s.ensureConnected(); err != nil {
		return nil, err
	}

	statements := SplitStatements(script)
	results := make([]StatementResult, 0, len(statements))
	for i, stmt := range statements {
		if err := ctx.Err(); err != nil {
			return results, err
		}

		s.logger.DebugContext(ctx, "executing statement",
			slog.Int("index", i+1),
			slog.Int("total", len(statements)),
			slog.String("sql", truncate(stmt, 100)))

		rs, err := s.Query(ctx, stmt)
		if appErr, ok := err.(*errors.AppError); ok {
			appErr.WithContext("statement_index", i+1).
				WithContext("total_statements", len(statements))
		}
		results = append(results, StatementResult{Index: i + 1, Statement: stmt, Result: rs, Err: err})
	}
	return results, nil
}

// ExecuteMulti sends script as one request in multi-statement mode. The
// server stops at the first failing statement.
func (s *Service) ExecuteMulti(ctx context.Context, script string) error {
	if err := s.ensureConnected(); err != nil {
		return err
	}

	multiCtx, err := gosnowflake.WithMultiStatement(ctx, 0)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeInternal, "Failed to enable multi-statement mode")
	}
	multiCtx, cancel := s.requestContext(multiCtx)
	defer cancel()

	if _, err := s.db.ExecContext(multiCtx, script); err != nil {
		return errors.SQLError("Failed to execute script", script, err)
	}
	return nil
}

// Use switches the session role, warehouse, or database. Object names are
// validated before they are placed in the statement.
func (s *Service) Use(ctx context.Context, kind, name string) error {
	switch kind {
	case "ROLE", "WAREHOUSE", "DATABASE", "SCHEMA":
	default:
		return errors.New(errors.ErrCodeInvalidInput, fmt.Sprintf("cannot USE %s", kind))
	}
	if err := ValidateIdentifier(name); err != nil {
		return errors.ValidationError(strings.ToLower(kind), name, err.Error())
	}
	_, err := s.Exec(ctx, fmt.Sprintf("USE %s %s", kind, name))
	return err
}

func (s *Service) ensureConnected() error {
	if !s.connected {
		return errors.New(errors.ErrCodeConnectionFailed, "Not connected to database").
			WithSuggestions("Call Connect() before executing SQL")
	}
	return nil
}

func (s *Service) loginTimeout() time.Duration {
	if s.config.LoginTimeout == 0 {
		return DefaultLoginTimeout
	}
	return s.config.LoginTimeout
}

func (s *Service) requestContext(ctx context.Context) (context.Context, context.CancelFunc) {
	timeout := s.config.RequestTimeout
	if timeout == 0 {
		timeout = DefaultRequestTimeout
	}
	return context.WithTimeout(ctx, timeout)
}

func isAuthError(err error) bool {
	var sfErr *gosnowflake.SnowflakeError
	if stderrors.As(err, &sfErr) {
		return authErrorNumbers[sfErr.Number]
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "jwt token is invalid") || strings.Contains(msg, "authentication")
}

func formatValue(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return "NULL"
	case []byte:
		return string(val)
	case time.Time:
		return val.Format(time.RFC3339)
	default:
		return fmt.Sprint(val)
	}
}

func truncate(s string, maxLen int) string {
	s = strings.Join(strings.Fields(s), " ")
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
