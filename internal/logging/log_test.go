package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewJSON(t *testing.T) {
	var buf bytes.Buffer
	l := Component(New("debug", "json", &buf), "poller")
	l.Debug().Int64("cursor", 42).Msg("advanced")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "debug", line["level"])
	assert.Equal(t, "poller", line["component"])
	assert.Equal(t, float64(42), line["cursor"])
	assert.Equal(t, "advanced", line["message"])
	assert.Contains(t, line, "time")
}

func TestNewLevelFallback(t *testing.T) {
	var buf bytes.Buffer
	l := New("nonsense", "json", &buf)
	l.Debug().Msg("hidden")
	assert.Zero(t, buf.Len())
	l.Info().Msg("shown")
	assert.NotZero(t, buf.Len())
}

func TestConsoleFormat(t *testing.T) {
	var buf bytes.Buffer
	l := New("info", "console", &buf)
	l.Info().Str("symbol", "EURUSD").Msg("order placed")
	assert.Contains(t, buf.String(), "order placed")
	assert.Contains(t, buf.String(), "EURUSD")
}
