package main

import (
	"testing"

	"github.com/datallboy/levelkeep/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseIDs(t *testing.T) {
	ids, err := parseIDs([]string{"12", "31"})
	require.NoError(t, err)
	assert.Equal(t, []int{12, 31}, ids)

	for _, bad := range []string{"abc", "0", "-4", ""} {
		_, err := parseIDs([]string{bad})
		assert.Error(t, err, bad)
	}
}

func TestStateLabelPlainWhenNotATerminal(t *testing.T) {
	if interactive() {
		t.Skip("stdout is a terminal")
	}
	assert.Equal(t, "installed", stateLabel(domain.StateInstalled, false))
	assert.Equal(t, "needs_download (downloading)", stateLabel(domain.StateNeedsDownload, true))
}

func TestCommandsRegistered(t *testing.T) {
	names := map[string]bool{}
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"status", "install", "play", "retry", "clear", "serve", "catalog"} {
		assert.True(t, names[want], want)
	}
}
