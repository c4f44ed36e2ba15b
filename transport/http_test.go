package transport

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPDownload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		w.Write([]byte("payload"))
	}))
	t.Cleanup(srv.Close)

	dest := filepath.Join(t.TempDir(), "out.bin")
	require.NoError(t, NewHTTP().Download(context.Background(), srv.URL, dest))

	contents, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, "payload", string(contents))
}

func TestHTTPDownloadStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	t.Cleanup(srv.Close)

	dest := filepath.Join(t.TempDir(), "out.bin")
	err := NewHTTP().Download(context.Background(), srv.URL, dest)
	var dlErr *ErrDownload
	require.ErrorAs(t, err, &dlErr)
	assert.Equal(t, http.StatusNotFound, dlErr.Status)

	_, statErr := os.Stat(dest)
	assert.True(t, os.IsNotExist(statErr), "no partial artifact may remain")
}

func TestHTTPDownloadConnectionError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	err := NewHTTP().Download(context.Background(), url, filepath.Join(t.TempDir(), "out.bin"))
	var dlErr *ErrDownload
	require.ErrorAs(t, err, &dlErr)
	assert.Zero(t, dlErr.Status)
}

func TestHTTPHeadersAndAuth(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "user", user)
		assert.Equal(t, "secret", pass)
		assert.Equal(t, "pooch-test", r.Header.Get("User-Agent"))
	}))
	t.Cleanup(srv.Close)

	h := NewHTTP(
		WithAuth("user", "secret"),
		WithHeaders(http.Header{"User-Agent": []string{"pooch-test"}}),
	)
	require.NoError(t, h.Download(context.Background(), srv.URL, filepath.Join(t.TempDir(), "out")))
}

func TestHTTPFollowsRedirects(t *testing.T) {
	target := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("moved payload"))
	}))
	t.Cleanup(target.Close)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, target.URL, http.StatusFound)
	}))
	t.Cleanup(srv.Close)

	dest := filepath.Join(t.TempDir(), "out.bin")
	require.NoError(t, NewHTTP().Download(context.Background(), srv.URL, dest))
	contents, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, "moved payload", string(contents))
}

func TestHTTPAvailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodHead, r.Method, "availability must not transfer the body")
		if r.URL.Path != "/present" {
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(srv.Close)

	h := NewHTTP()
	ok, err := h.Available(context.Background(), srv.URL+"/present")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = h.Available(context.Background(), srv.URL+"/absent")
	require.NoError(t, err)
	assert.False(t, ok)
}

// countingProgress records the byte totals it is told about.
type countingProgress struct {
	total int64
	done  int64
}

func (c *countingProgress) SetTotal(n int64) { c.total = n }
func (c *countingProgress) Add(n int64)      { c.done += n }
func (c *countingProgress) Reset()           { c.done = 0 }
func (c *countingProgress) Close() error     { return nil }

func TestHTTPProgress(t *testing.T) {
	payload := make([]byte, 128*1024)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Announce the length; a large write is otherwise sent chunked and
		// the client learns no total.
		w.Header().Set("Content-Length", strconv.Itoa(len(payload)))
		w.Write(payload)
	}))
	t.Cleanup(srv.Close)

	prog := &countingProgress{}
	h := NewHTTP(WithProgress(prog))
	require.NoError(t, h.Download(context.Background(), srv.URL, filepath.Join(t.TempDir(), "out")))
	assert.Equal(t, int64(len(payload)), prog.total)
	assert.Equal(t, int64(len(payload)), prog.done)
}
