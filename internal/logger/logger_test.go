package logger

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rpattn/sparkify/internal/config"
)

func TestNewJSONRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	l, err := New(config.LoggerConfig{Level: "warn", Format: "json"}, &buf)
	require.NoError(t, err)

	l.Info("hidden")
	l.Warn("shown", "file", "a.json")

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	require.Len(t, lines, 1)

	var record map[string]any
	require.NoError(t, json.Unmarshal(lines[0], &record))
	assert.Equal(t, "shown", record["msg"])
	assert.Equal(t, "a.json", record["file"])
}

func TestNewTextHasNoColourOffTerminal(t *testing.T) {
	var buf bytes.Buffer
	l, err := New(config.LoggerConfig{Format: "text"}, &buf)
	require.NoError(t, err)

	l.Info("1/2 files processed.", "processed", 1, "total", 2)
	assert.Contains(t, buf.String(), "1/2 files processed.")
	assert.NotContains(t, buf.String(), "\x1b[")
}

func TestNewRejectsUnknownSettings(t *testing.T) {
	_, err := New(config.LoggerConfig{Level: "loud"}, &bytes.Buffer{})
	assert.Error(t, err)

	_, err = New(config.LoggerConfig{Format: "xml"}, &bytes.Buffer{})
	assert.Error(t, err)
}

func TestInitWritesToFile(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	path := filepath.Join(t.TempDir(), "etl.log")
	l, closeFn, err := Init(config.LoggerConfig{Format: "json", Output: path})
	require.NoError(t, err)

	l.Info("hello")
	WithComponent("test").Info("tagged")
	require.NoError(t, closeFn())

	body, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(body), `"msg":"hello"`)
	assert.Contains(t, string(body), `"component":"test"`)
}
