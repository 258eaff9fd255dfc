package logging

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestNew_WritesJSONFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "ragnb.log")
	logger, err := New(path, "info")
	require.NoError(t, err)

	logger.Debug("hidden")
	logger.Info("visible", zap.String("notebook_id", "nb-1"))
	require.NoError(t, logger.Sync())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := bytes.Split(bytes.TrimSpace(data), []byte("\n"))
	require.Len(t, lines, 1)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(lines[0], &entry))
	assert.Equal(t, "visible", entry["message"])
	assert.Equal(t, "INFO", entry["level"])
	assert.Equal(t, "nb-1", entry["notebook_id"])
	assert.Contains(t, entry, "timestamp")
}

func TestNew_BadLevel(t *testing.T) {
	_, err := New(filepath.Join(t.TempDir(), "x.log"), "loud")
	assert.Error(t, err)
}

func TestNewWithSyncer(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithSyncer(zapcore.AddSync(&buf), zapcore.WarnLevel)
	logger.Info("skip")
	logger.Warn("keep")
	assert.Contains(t, buf.String(), `"message":"keep"`)
	assert.NotContains(t, buf.String(), "skip")
}
