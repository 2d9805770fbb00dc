package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJSONOutputCarriesKeyValues(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter("debug", "json", &buf)

	log.Error("batch write failed", "count", 10, "error", errors.New("disk full"))

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "batch write failed", entry["msg"])
	assert.Equal(t, "error", entry["level"])
	assert.EqualValues(t, 10, entry["count"])
	assert.Equal(t, "disk full", entry["error"])
}

func TestLevelFiltersDebug(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter("info", "text", &buf)

	log.Debug("hidden")
	assert.Empty(t, buf.String())

	log.Info("shown", "component", "sampler")
	assert.Contains(t, buf.String(), "shown")
	assert.Contains(t, buf.String(), "component=sampler")
}

func TestUnknownLevelFallsBackToInfo(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter("loud", "text", &buf)

	log.Debug("hidden")
	log.Info("shown")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")
}

func TestWithAddsFields(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter("info", "json", &buf).With("component", "store")

	log.Warn("slow query", "odd")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "store", entry["component"])
	assert.Equal(t, "odd", entry["!BADKEY"])
}
