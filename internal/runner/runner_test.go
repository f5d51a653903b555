package runner

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/datallboy/levelkeep/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeWine records its argument, working directory and WINEPREFIX
func fakeWine(t *testing.T, out string) string {
	t.Helper()
	script := filepath.Join(t.TempDir(), "wine")
	body := "#!/bin/sh\necho \"$1|$(pwd)|$WINEPREFIX\" > " + out + ".tmp\nmv " + out + ".tmp " + out + "\n"
	require.NoError(t, os.WriteFile(script, []byte(body), 0755))
	return script
}

func TestWineLaunch(t *testing.T) {
	game := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(game, "tomb4.exe"), []byte("MZ"), 0644))
	out := filepath.Join(t.TempDir(), "ran")

	w := NewWine(fakeWine(t, out), "/tmp/prefix", nil)
	require.NoError(t, w.Launch(context.Background(), game, "tomb4.exe"))

	var line string
	require.Eventually(t, func() bool {
		b, err := os.ReadFile(out)
		line = strings.TrimSpace(string(b))
		return err == nil && line != ""
	}, 5*time.Second, 20*time.Millisecond)

	parts := strings.Split(line, "|")
	require.Len(t, parts, 3)
	assert.Equal(t, filepath.Join(game, "tomb4.exe"), parts[0])
	resolved, err := filepath.EvalSymlinks(game)
	require.NoError(t, err)
	assert.Equal(t, resolved, parts[1])
	assert.Equal(t, "/tmp/prefix", parts[2])
}

func TestWineLaunch_MissingExecutable(t *testing.T) {
	w := NewWine("wine", "", nil)
	err := w.Launch(context.Background(), t.TempDir(), "tomb4.exe")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestWineLaunch_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := NewWine("wine", "", nil).Launch(ctx, t.TempDir(), "tomb4.exe")
	assert.ErrorIs(t, err, context.Canceled)
}
