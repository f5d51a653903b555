package catalogfile

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/datallboy/levelkeep/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sample = `
levels:
  - id: 3123
    display_name: Catacombs of Lost Souls
    archive_url: https://levels.test/3123.zip
    archive_md5: 0cc175b9c0f1b6a831c399e269772661
    install_path: "3123"
    game_path: TRLE
    executable: tomb4.exe
    flatten_dir: TRLE
    aliases:
      - from: data
        to: DATA
  - id: 12
    display_name: Vanilla Tutorial
    install_path: "12"
    game_path: TR1
    mode: copy
    copy_conflict: existing-fails
    expected_files:
      - path: TR1/data/gym.phd
        md5: 5d41402abc4b2a76b9719d911017c592
`

func TestParse(t *testing.T) {
	levels, err := Parse([]byte(sample))
	require.NoError(t, err)
	require.Len(t, levels, 2)

	assert.Equal(t, 3123, levels[0].ID)
	assert.Equal(t, domain.ModeLink, levels[0].Mode)
	assert.Equal(t, 1, levels[0].FlattenLevels)
	assert.Equal(t, []domain.Alias{{From: "data", To: "DATA"}}, levels[0].Aliases)

	assert.Equal(t, domain.ModeCopy, levels[1].Mode)
	assert.Equal(t, domain.CopyExistingFails, levels[1].CopyConflict)
	require.Len(t, levels[1].ExpectedFiles, 1)
	assert.Equal(t, "TR1/data/gym.phd", levels[1].ExpectedFiles[0].Path)
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"unknown field", "levels:\n  - id: 1\n    install_path: a\n    game_path: b\n    colour: red\n"},
		{"escaping path", "levels:\n  - id: 1\n    install_path: ../a\n    game_path: b\n"},
		{"duplicate id", "levels:\n  - {id: 1, install_path: a, game_path: b}\n  - {id: 1, install_path: c, game_path: d}\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.doc))
			assert.Error(t, err)
		})
	}

	levels, err := Parse(nil)
	require.NoError(t, err)
	assert.Empty(t, levels)
}

func TestFile_SaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog", "levels.yaml")

	f, err := Open(path)
	require.NoError(t, err)
	descs, err := f.Descriptors(context.Background())
	require.NoError(t, err)
	assert.Empty(t, descs)

	ctx := context.Background()
	require.NoError(t, f.SaveDescriptor(ctx, domain.Descriptor{ID: 9, InstallPath: "9", GamePath: "TRLE"}))
	require.NoError(t, f.SaveDescriptor(ctx, domain.Descriptor{ID: 2, InstallPath: "2", GamePath: "TRLE"}))
	require.NoError(t, f.SaveDescriptor(ctx, domain.Descriptor{ID: 9, DisplayName: "Nine", InstallPath: "9", GamePath: "TRLE"}))
	assert.Error(t, f.SaveDescriptor(ctx, domain.Descriptor{ID: 3, InstallPath: "/abs", GamePath: "TRLE"}))

	reopened, err := Open(path)
	require.NoError(t, err)
	descs, err = reopened.Descriptors(ctx)
	require.NoError(t, err)
	require.Len(t, descs, 2)
	assert.Equal(t, 2, descs[0].ID)
	assert.Equal(t, "Nine", descs[1].DisplayName)

	_, err = os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err))
}
