package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/datallboy/levelkeep/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *PersistentStore {
	t.Helper()
	s, err := NewPersistentStore(filepath.Join(t.TempDir(), "db", "levelkeep.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleDescriptor(id int) domain.Descriptor {
	return domain.Descriptor{
		ID:          id,
		DisplayName: "Catacombs of Lost Souls",
		ArchiveURL:  "https://levels.test/3123.zip",
		ArchiveMD5:  "0cc175b9c0f1b6a831c399e269772661",
		InstallPath: "3123",
		GamePath:    "TRLE",
		Executable:  "tomb4.exe",
		FlattenDir:  "TRLE",
		ExpectedFiles: []domain.ExpectedFile{
			{Path: "TRLE/data/title.tr4", MD5: "5d41402abc4b2a76b9719d911017c592"},
		},
		Aliases: []domain.Alias{{From: "data", To: "DATA"}},
	}
}

func TestSaveAndLoadDescriptors(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.SaveDescriptor(ctx, sampleDescriptor(2)))
	one := sampleDescriptor(1)
	one.Mode = domain.ModeCopy
	one.ExpectedFiles = nil
	one.Aliases = nil
	require.NoError(t, s.SaveDescriptor(ctx, one))

	descs, err := s.Descriptors(ctx)
	require.NoError(t, err)
	require.Len(t, descs, 2)

	assert.Equal(t, 1, descs[0].ID)
	assert.Equal(t, domain.ModeCopy, descs[0].Mode)
	assert.Empty(t, descs[0].ExpectedFiles)

	want := sampleDescriptor(2)
	want.ApplyDefaults()
	assert.Equal(t, want, descs[1])
}

func TestSaveDescriptor_ReplacesChildren(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.SaveDescriptor(ctx, sampleDescriptor(1)))

	updated := sampleDescriptor(1)
	updated.DisplayName = "Renamed"
	updated.ExpectedFiles = []domain.ExpectedFile{{Path: "TRLE/data/other.tr4", MD5: "abc"}}
	updated.Aliases = nil
	require.NoError(t, s.SaveDescriptor(ctx, updated))

	got, err := s.Descriptor(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "Renamed", got.DisplayName)
	assert.Equal(t, updated.ExpectedFiles, got.ExpectedFiles)
	assert.Empty(t, got.Aliases)
}

func TestSaveDescriptor_KeepsExpectedFileOrder(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	d := sampleDescriptor(1)
	d.ExpectedFiles = []domain.ExpectedFile{
		{Path: "TRLE/data/zoo.tr4", MD5: "z"},
		{Path: "TRLE/audio/101.wav", MD5: "w"},
		{Path: "TRLE/data/alpha.tr4", MD5: "a"},
	}
	require.NoError(t, s.SaveDescriptor(ctx, d))

	got, err := s.Descriptor(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, d.ExpectedFiles, got.ExpectedFiles)

	descs, err := s.Descriptors(ctx)
	require.NoError(t, err)
	require.Len(t, descs, 1)
	assert.Equal(t, d.ExpectedFiles, descs[0].ExpectedFiles)
}

func TestSaveDescriptor_RejectsInvalid(t *testing.T) {
	s := newTestStore(t)
	bad := sampleDescriptor(1)
	bad.InstallPath = "/abs/path"
	assert.ErrorIs(t, s.SaveDescriptor(context.Background(), bad), domain.ErrInvalidDescriptor)
}

func TestDescriptor_NotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.Descriptor(context.Background(), 404)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.ErrorIs(t, s.DeleteDescriptor(context.Background(), 404), domain.ErrNotFound)
}

func TestDeleteDescriptor(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.SaveDescriptor(ctx, sampleDescriptor(1)))

	require.NoError(t, s.DeleteDescriptor(ctx, 1))
	descs, err := s.Descriptors(ctx)
	require.NoError(t, err)
	assert.Empty(t, descs)
}

func TestMigrationsAreIdempotent(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "levelkeep.db")
	s, err := NewPersistentStore(dbPath)
	require.NoError(t, err)
	require.NoError(t, s.SaveDescriptor(context.Background(), sampleDescriptor(1)))
	require.NoError(t, s.Close())

	s, err = NewPersistentStore(dbPath)
	require.NoError(t, err)
	defer s.Close()
	descs, err := s.Descriptors(context.Background())
	require.NoError(t, err)
	assert.Len(t, descs, 1)
}
