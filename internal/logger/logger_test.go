package logger

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNewConsoleAndFile(t *testing.T) {
	var console bytes.Buffer
	logFile := filepath.Join(t.TempDir(), "cook.log")

	opts := DefaultOptions()
	opts.Console = &console
	opts.File = logFile
	opts.Compress = false

	log, err := New(opts)
	require.NoError(t, err)

	log.Info("Quote computed", zap.Float64("tokens", 1500))
	log.Debug("hidden at info level")
	require.NoError(t, Sync(log))

	out := console.String()
	assert.Contains(t, out, "[INFO]")
	assert.Contains(t, out, "Quote computed")
	assert.NotContains(t, out, "hidden at info level")

	data, err := os.ReadFile(logFile)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"Quote computed"`)
	assert.Contains(t, string(data), `"tokens":1500`)
}

func TestNewDebugLevel(t *testing.T) {
	var console bytes.Buffer
	log, err := New(Options{Debug: true, Console: &console})
	require.NoError(t, err)

	log.Named("curve").Debug("Curve parameters resolved")
	log.Warn("degenerate input")

	out := console.String()
	assert.Contains(t, out, "[DEBUG]")
	assert.Contains(t, out, "curve")
	assert.Contains(t, out, "[WARN]")
}

func TestNewWithoutOutputs(t *testing.T) {
	_, err := New(Options{Console: io.Discard})
	assert.Error(t, err)
}
