package log

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	rferrors "github.com/estatelab/rentfold/pkg/errors"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]interface{} {
	t.Helper()
	var out []map[string]interface{}
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var m map[string]interface{}
		require.NoError(t, json.Unmarshal([]byte(line), &m))
		out = append(out, m)
	}
	return out
}

func TestZerologLogger(t *testing.T) {
	t.Run("writes structured fields", func(t *testing.T) {
		var buf bytes.Buffer
		logger := NewZerologLogger(&buf, LevelDebug, false)

		logger.Info("fold finished", FoldKey, 2, MAPEKey, 11.5)

		lines := decodeLines(t, &buf)
		require.Len(t, lines, 1)
		assert.Equal(t, "fold finished", lines[0]["message"])
		assert.Equal(t, "info", lines[0]["level"])
		assert.Equal(t, 2.0, lines[0][FoldKey])
		assert.Equal(t, 11.5, lines[0][MAPEKey])
	})

	t.Run("filters below level", func(t *testing.T) {
		var buf bytes.Buffer
		logger := NewZerologLogger(&buf, LevelWarn, false)

		logger.Debug("hidden")
		logger.Info("hidden")
		logger.Warn("shown")

		lines := decodeLines(t, &buf)
		require.Len(t, lines, 1)
		assert.Equal(t, "shown", lines[0]["message"])
		assert.False(t, logger.Enabled(context.Background(), LevelInfo))
		assert.True(t, logger.Enabled(context.Background(), LevelError))
	})

	t.Run("With carries context fields", func(t *testing.T) {
		var buf bytes.Buffer
		logger := NewZerologLogger(&buf, LevelInfo, false).With(RunIDKey, "run-1")

		logger.Info("start")

		lines := decodeLines(t, &buf)
		require.Len(t, lines, 1)
		assert.Equal(t, "run-1", lines[0][RunIDKey])
	})

	t.Run("error as first field", func(t *testing.T) {
		var buf bytes.Buffer
		logger := NewZerologLogger(&buf, LevelInfo, false)

		err := rferrors.NewColumnNotFoundError("Preprocessor.Fit", "money_room")
		logger.Error("fit failed", err, ColumnKey, "money_room")

		lines := decodeLines(t, &buf)
		require.Len(t, lines, 1)
		assert.Contains(t, lines[0]["error"], "money_room")
		detail, ok := lines[0]["error.detail"].(map[string]interface{})
		require.True(t, ok, "structured error detail should be attached")
		assert.Equal(t, "ColumnNotFoundError", detail["type"])
	})
}

func TestProviderLevel(t *testing.T) {
	var buf bytes.Buffer
	p := NewZerologProvider(&buf, LevelInfo, false)
	named := p.GetLoggerWithName("gbdt")

	named.Debug("not yet")
	p.SetLevel(LevelDebug)
	named.Debug("now visible")

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "now visible", lines[0]["message"])
	assert.Equal(t, "gbdt", lines[0][ComponentKey])
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want Level
		ok   bool
	}{
		{"debug", LevelDebug, true},
		{"info", LevelInfo, true},
		{"", LevelInfo, true},
		{"warn", LevelWarn, true},
		{"error", LevelError, true},
		{"verbose", LevelInfo, false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := ParseLevel(tt.in)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.ok, ok)
		})
	}
}

func TestSetProviderRoutesWarnings(t *testing.T) {
	provider, buf := NewTestLoggerProvider(LevelDebug)
	SetProvider(provider)
	defer SetProvider(NewZerologProvider(&bytes.Buffer{}, LevelInfo, false))

	rferrors.Warn(rferrors.NewNegativePredictionWarning(4, -10))

	assert.Contains(t, buf.String(), "4 predictions are negative")
	assert.True(t, provider.GetLogger().(*TestLogger).ContainsField(ComponentKey, "warnings"))
}

func TestTestLogger(t *testing.T) {
	logger, _ := NewTestLogger(LevelInfo)
	logger.With(ModelNameKey, "Preprocessor").Info("fitted", SamplesKey, 10)

	assert.True(t, logger.ContainsMessage("fitted"))
	assert.True(t, logger.ContainsField(ModelNameKey, "Preprocessor"))
	assert.True(t, logger.ContainsField(SamplesKey, 10.0))

	logger.Clear()
	entries, err := logger.Entries()
	require.NoError(t, err)
	assert.Empty(t, entries)
}
