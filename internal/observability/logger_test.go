package observability

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeEntries(t *testing.T, buf *bytes.Buffer) []LogEntry {
	t.Helper()
	var entries []LogEntry
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var entry LogEntry
		require.NoError(t, json.Unmarshal([]byte(line), &entry))
		entries = append(entries, entry)
	}
	return entries
}

func TestLoggerLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(WarnLevel, &buf)

	logger.Debug("hidden")
	logger.Info("hidden too")
	logger.Warn("shown")
	logger.Error("also shown")

	entries := decodeEntries(t, &buf)
	require.Len(t, entries, 2)
	assert.Equal(t, "WARN", entries[0].Level)
	assert.Equal(t, "ERROR", entries[1].Level)
}

func TestLoggerWithRunID(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(InfoLevel, &buf).WithRunID("run_20250601_000000")

	logger.Info("staging complete")

	entries := decodeEntries(t, &buf)
	require.Len(t, entries, 1)
	assert.Equal(t, "run_20250601_000000", entries[0].RunID)
	assert.Equal(t, "starlift", entries[0].Service)
}

func TestLoggerFieldsMerge(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(InfoLevel, &buf).WithField("phase", "load")

	logger.Info("done", map[string]interface{}{"rows": 42})

	entries := decodeEntries(t, &buf)
	require.Len(t, entries, 1)
	assert.Equal(t, "load", entries[0].Fields["phase"])
	assert.Equal(t, float64(42), entries[0].Fields["rows"])
}

func TestChildLoggerDoesNotMutateParent(t *testing.T) {
	var buf bytes.Buffer
	parent := NewLogger(InfoLevel, &buf)
	parent.WithField("phase", "stage")

	parent.Info("plain")

	entries := decodeEntries(t, &buf)
	require.Len(t, entries, 1)
	assert.Empty(t, entries[0].Fields)
}
