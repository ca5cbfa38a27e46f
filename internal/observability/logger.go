package observability

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/google/uuid"
)

// LoggerConfig contains logger configuration
type LoggerConfig struct {
	Level   string // debug, info, warn, error
	Format  string // text or json
	Output  io.Writer
	Service string
	Version string
	RunID   string
}

// NewLogger builds the process logger. Every record carries service,
// version, and run_id so one invocation can be traced across its log lines.
func NewLogger(config LoggerConfig) (*slog.Logger, error) {
	level, err := ParseLevel(config.Level)
	if err != nil {
		return nil, err
	}
	if config.Output == nil {
		config.Output = os.Stderr
	}
	if config.RunID == "" {
		config.RunID = NewRunID()
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	switch strings.ToLower(config.Format) {
	case "", "text":
		handler = slog.NewTextHandler(config.Output, opts)
	case "json":
		handler = slog.NewJSONHandler(config.Output, opts)
	default:
		return nil, fmt.Errorf("unknown log format %q", config.Format)
	}

	return slog.New(handler).With(
		slog.String("service", config.Service),
		slog.String("version", config.Version),
		slog.String("run_id", config.RunID),
	), nil
}

// ParseLevel maps a configured level name to a slog level.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level %q", s)
	}
}

// NewRunID returns an identifier for one CLI invocation.
func NewRunID() string {
	return uuid.NewString()
}

type loggerKey struct{}

// WithLogger stores logger in ctx.
func WithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, logger)
}

// FromContext returns the logger stored by WithLogger, or slog.Default.
func FromContext(ctx context.Context) *slog.Logger {
	if logger, ok := ctx.Value(loggerKey{}).(*slog.Logger); ok && logger != nil {
		return logger
	}
	return slog.Default()
}
