package postgres

import (
	"context"
	"os"
	"testing"

	"github.com/datallboy/levelkeep/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Runs only against a disposable database named by LEVELKEEP_TEST_POSTGRES_DSN.
func TestStore_RoundTrip(t *testing.T) {
	dsn := os.Getenv("LEVELKEEP_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("LEVELKEEP_TEST_POSTGRES_DSN not set")
	}

	ctx := context.Background()
	s, err := New(ctx, dsn)
	require.NoError(t, err)
	defer s.Close()

	_, err = s.pool.Exec(ctx, `TRUNCATE levels CASCADE`)
	require.NoError(t, err)

	d := domain.Descriptor{
		ID:            7,
		DisplayName:   "Tomb of Ramses",
		ArchiveURL:    "https://levels.test/7.zip",
		InstallPath:   "7",
		GamePath:      "TRLE",
		ExpectedFiles: []domain.ExpectedFile{{Path: "TRLE/data/z.tr4", MD5: "def"}, {Path: "TRLE/data/a.tr4", MD5: "abc"}},
		Aliases:       []domain.Alias{{From: "data", To: "DATA"}},
	}
	require.NoError(t, s.SaveDescriptor(ctx, d))
	require.NoError(t, s.SaveDescriptor(ctx, d))

	descs, err := s.Descriptors(ctx)
	require.NoError(t, err)
	require.Len(t, descs, 1)

	d.ApplyDefaults()
	assert.Equal(t, d, descs[0])
}
