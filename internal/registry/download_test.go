package registry_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"whisperd/internal/registry"
)

func TestHTTPDownloaderFetch(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		assert.Equal(t, "/ggml-base.bin", r.URL.Path)
		w.Write([]byte("checkpoint-bytes"))
	}))
	defer srv.Close()

	cacheDir := t.TempDir()
	dl := registry.NewHTTPDownloader(cacheDir, srv.URL, 5*time.Second)

	require.NoError(t, dl.Fetch(context.Background(), "base"))

	data, err := os.ReadFile(filepath.Join(cacheDir, "ggml-base.bin"))
	require.NoError(t, err)
	assert.Equal(t, "checkpoint-bytes", string(data))

	// Cached checkpoint short-circuits the second fetch.
	require.NoError(t, dl.Fetch(context.Background(), "base"))
	assert.EqualValues(t, 1, atomic.LoadInt32(&hits))
}

func TestHTTPDownloaderFetchNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	cacheDir := t.TempDir()
	dl := registry.NewHTTPDownloader(cacheDir, srv.URL, 5*time.Second)

	err := dl.Fetch(context.Background(), "missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unexpected status")

	// No torn checkpoint left behind.
	entries, err := os.ReadDir(cacheDir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}
