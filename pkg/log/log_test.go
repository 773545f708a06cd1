package log_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/dukex/runnr/pkg/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input    string
		expected slog.Level
	}{
		{input: "debug", expected: slog.LevelDebug},
		{input: "info", expected: slog.LevelInfo},
		{input: "warn", expected: slog.LevelWarn},
		{input: "error", expected: slog.LevelError},
		{input: "verbose", expected: slog.LevelInfo},
		{input: "", expected: slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tt.expected, log.ParseLevel(tt.input))
		})
	}
}

func TestNewHandler_Formats(t *testing.T) {
	t.Parallel()

	tests := []struct {
		format string
		check  func(t *testing.T, out string)
	}{
		{
			format: "json",
			check: func(t *testing.T, out string) {
				t.Helper()

				var record map[string]any
				require.NoError(t, json.Unmarshal([]byte(out), &record))
				assert.Equal(t, "saved", record["msg"])
				assert.Equal(t, "build", record["job_id"])
			},
		},
		{
			format: "text",
			check: func(t *testing.T, out string) {
				t.Helper()

				assert.Contains(t, out, "msg=saved")
				assert.Contains(t, out, "job_id=build")
			},
		},
		{
			format: "pretty",
			check: func(t *testing.T, out string) {
				t.Helper()

				assert.Contains(t, out, "saved")
				assert.Contains(t, out, "build")
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			t.Parallel()

			var buf bytes.Buffer

			logger := slog.New(log.NewHandler(&buf, "info", tt.format))
			logger.Info("saved", "job_id", "build")

			tt.check(t, buf.String())
		})
	}
}

func TestNewHandler_RespectsLevel(t *testing.T) {
	t.Parallel()

	handler := log.NewHandler(&bytes.Buffer{}, "warn", "text")

	assert.False(t, handler.Enabled(context.Background(), slog.LevelInfo))
	assert.True(t, handler.Enabled(context.Background(), slog.LevelError))
}
