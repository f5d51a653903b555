package logger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, LevelWarn, ParseLevel("warn"))
	assert.Equal(t, LevelError, ParseLevel("error"))
	assert.Equal(t, LevelInfo, ParseLevel("anything-else"))
}

func TestNew_FiltersBelowLevel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "levelkeep.log")

	log, err := New(path, LevelInfo, false)
	require.NoError(t, err)

	log.Debug("hidden %d", 1)
	log.Info("visible %s", "line")
	log.With("fileops").Warn("tagged")

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	out := string(data)
	assert.NotContains(t, out, "hidden 1")
	assert.Contains(t, out, "visible line")
	assert.Contains(t, out, `"component":"fileops"`)
}

func TestWrite_TrimsAndSkipsBlank(t *testing.T) {
	path := filepath.Join(t.TempDir(), "echo.log")
	log, err := New(path, LevelInfo, false)
	require.NoError(t, err)

	n, err := log.Write([]byte("GET /levels 200\n"))
	require.NoError(t, err)
	assert.Equal(t, 16, n)

	_, err = log.Write([]byte("   \n"))
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "GET /levels 200")
}
