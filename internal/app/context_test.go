package app

import (
	"archive/zip"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/datallboy/levelkeep/internal/domain"
	"github.com/datallboy/levelkeep/internal/infra/config"
	"github.com/datallboy/levelkeep/internal/infra/logger"
	"github.com/datallboy/levelkeep/internal/level"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const catalogYAML = `levels:
  - id: 3
    display_name: Catacombs
    archive_url: http://levels.test/3.zip
    install_path: lvl3
    game_path: TRLE
    executable: tomb4.exe
`

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	base := t.TempDir()
	catalog := filepath.Join(base, "catalog.yaml")
	require.NoError(t, os.WriteFile(catalog, []byte(catalogYAML), 0644))

	return &config.Config{
		LevelRoot: filepath.Join(base, "levels"),
		GameRoot:  filepath.Join(base, "game"),
		Workers:   2,
		Catalog:   config.CatalogConfig{Driver: "file", File: catalog},
		Runner:    config.RunnerConfig{WineBinary: "levelkeep-test-no-such-wine"},
	}
}

func TestInitWiresLevelsFromCatalog(t *testing.T) {
	cfg := testConfig(t)
	a := NewContext(cfg, logger.Nop())

	require.NoError(t, a.Init(context.Background()))
	t.Cleanup(func() { a.Close() })

	assert.False(t, a.WineAvailable)
	assert.DirExists(t, cfg.LevelRoot)
	assert.DirExists(t, cfg.GameRoot)
	assert.Equal(t, []int{3}, a.Levels.IDs())

	rec, err := a.Levels.Refresh(3)
	require.NoError(t, err)
	assert.Equal(t, domain.StateNeedsDownload, rec.State)
}

func TestInitUsesConfiguredTickBudget(t *testing.T) {
	cfg := testConfig(t)
	cfg.Extract.TickBudget = 10
	a := NewContext(cfg, logger.Nop())
	require.NoError(t, a.Init(context.Background()))
	t.Cleanup(func() { a.Close() })

	writeLevelArchive(t, filepath.Join(cfg.LevelRoot, "lvl3.zip"))

	var ticks []int
	unsubscribe := a.Levels.OnProgress(func(p level.Progress) {
		if p.IsTick() {
			ticks = append(ticks, p.Tick)
		}
	})
	defer unsubscribe()

	rec, err := a.Levels.Advance(context.Background(), 3)
	require.NoError(t, err)
	assert.Equal(t, domain.StateExtracted, rec.State)
	require.Len(t, ticks, 10)
	assert.Equal(t, 10, ticks[len(ticks)-1])
}

func writeLevelArchive(t *testing.T, path string) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	zw := zip.NewWriter(f)
	for _, name := range []string{"tomb4.exe", "data/title.tr4"} {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(name))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())
}

func TestInitRejectsBadCatalog(t *testing.T) {
	cfg := testConfig(t)
	require.NoError(t, os.WriteFile(cfg.Catalog.File, []byte("levels:\n  - id: 1\n    install_path: ../escape\n    game_path: TRLE\n"), 0644))

	a := NewContext(cfg, logger.Nop())
	err := a.Init(context.Background())
	assert.ErrorIs(t, err, domain.ErrInvalidDescriptor)
}

func TestOpenCatalog(t *testing.T) {
	dir := t.TempDir()

	c, err := OpenCatalog(context.Background(), config.CatalogConfig{Driver: "sqlite", SQLitePath: filepath.Join(dir, "catalog.db")})
	require.NoError(t, err)
	descs, err := c.Descriptors(context.Background())
	require.NoError(t, err)
	assert.Empty(t, descs)
	require.NoError(t, c.Close())

	_, err = OpenCatalog(context.Background(), config.CatalogConfig{Driver: "mongo"})
	assert.Error(t, err)
}
