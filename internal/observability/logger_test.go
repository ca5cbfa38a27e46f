package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLoggerJSON(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewLogger(LoggerConfig{
		Level:   "debug",
		Format:  "json",
		Output:  &buf,
		Service: "snowadmin",
		Version: "1.0.0",
		RunID:   "run-1",
	})
	require.NoError(t, err)

	logger.Debug("connected", slog.String("account", "xy12345"))

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.Equal(t, "connected", record["msg"])
	assert.Equal(t, "DEBUG", record["level"])
	assert.Equal(t, "snowadmin", record["service"])
	assert.Equal(t, "1.0.0", record["version"])
	assert.Equal(t, "run-1", record["run_id"])
	assert.Equal(t, "xy12345", record["account"])
}

func TestNewLoggerText(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewLogger(LoggerConfig{Level: "warn", Output: &buf, Service: "snowadmin"})
	require.NoError(t, err)

	logger.Info("hidden")
	assert.Empty(t, buf.String())

	logger.Warn("statement skipped", slog.String("reason", "already exists"))
	assert.Contains(t, buf.String(), `msg="statement skipped"`)
	assert.Contains(t, buf.String(), `reason="already exists"`)
	assert.Contains(t, buf.String(), "run_id=")
}

func TestNewLoggerGeneratesRunID(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewLogger(LoggerConfig{Format: "json", Output: &buf})
	require.NoError(t, err)
	logger.Info("start")

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	_, err = uuid.Parse(record["run_id"].(string))
	assert.NoError(t, err)
}

func TestNewLoggerRejectsBadConfig(t *testing.T) {
	_, err := NewLogger(LoggerConfig{Level: "verbose"})
	assert.Error(t, err)

	_, err = NewLogger(LoggerConfig{Format: "xml"})
	assert.Error(t, err)
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"", slog.LevelInfo},
		{"warning", slog.LevelWarn},
		{" error ", slog.LevelError},
	}
	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestContextLogger(t *testing.T) {
	assert.Equal(t, slog.Default(), FromContext(context.Background()))

	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	ctx := WithLogger(context.Background(), logger)
	assert.Same(t, logger, FromContext(ctx))
}
