package platform

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFindWine(t *testing.T) {
	dir := t.TempDir()
	fake := filepath.Join(dir, "wine-staging")
	require.NoError(t, os.WriteFile(fake, []byte("#!/bin/sh\nexit 0\n"), 0755))

	path, err := FindWine(fake)
	require.NoError(t, err)
	assert.Equal(t, fake, path)

	_, err = FindWine(filepath.Join(dir, "no-such-wine"))
	assert.Error(t, err)
	assert.Error(t, ValidateDependencies(filepath.Join(dir, "no-such-wine"), nil))
}
