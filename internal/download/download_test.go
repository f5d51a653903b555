package download

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFetch(t *testing.T) {
	body := strings.Repeat("level-archive-bytes ", 5000)
	var gotUA string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		w.Write([]byte(body))
	}))
	defer srv.Close()

	dest := filepath.Join(t.TempDir(), "nested", "lvl.zip")
	h := NewHTTP(Options{Timeout: 5 * time.Second, UserAgent: "levelkeep-test"}, nil)

	require.NoError(t, h.Fetch(context.Background(), srv.URL+"/lvl.zip", dest))

	content, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, body, string(content))
	assert.NoFileExists(t, dest+partSuffix)
	assert.Equal(t, "levelkeep-test", gotUA)
}

func TestFetch_Throttled(t *testing.T) {
	body := strings.Repeat("x", 4096)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(body))
	}))
	defer srv.Close()

	dest := filepath.Join(t.TempDir(), "lvl.zip")
	h := NewHTTP(Options{Timeout: 5 * time.Second, RateLimit: 1 << 20}, nil)

	require.NoError(t, h.Fetch(context.Background(), srv.URL, dest))
	info, err := os.Stat(dest)
	require.NoError(t, err)
	assert.EqualValues(t, len(body), info.Size())
}

func TestFetch_BadStatusLeavesNothing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	dest := filepath.Join(t.TempDir(), "lvl.zip")
	err := NewHTTP(Options{Timeout: time.Second}, nil).Fetch(context.Background(), srv.URL, dest)

	require.Error(t, err)
	assert.True(t, IsStatus(err, http.StatusNotFound))
	assert.NoFileExists(t, dest)
	assert.NoFileExists(t, dest+partSuffix)
}

func TestFetch_TruncatedBodyLeavesNothing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", "1000")
		w.Write([]byte("short"))
	}))
	defer srv.Close()

	dest := filepath.Join(t.TempDir(), "lvl.zip")
	err := NewHTTP(Options{Timeout: time.Second}, nil).Fetch(context.Background(), srv.URL, dest)

	require.Error(t, err)
	assert.NoFileExists(t, dest)
	assert.NoFileExists(t, dest+partSuffix)
}

func TestFetch_Cancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	dest := filepath.Join(t.TempDir(), "lvl.zip")
	err := NewHTTP(Options{Timeout: time.Second}, nil).Fetch(ctx, srv.URL, dest)

	assert.ErrorIs(t, err, context.Canceled)
	assert.NoFileExists(t, dest)
}
