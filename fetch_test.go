package pooch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fatiando/pooch/transport"
)

const (
	tinyContents = "tiny data\n"
	tinySHA256   = "sha256:81599c5ef67d8c96a1a4bef0d57c1fe38408a12791f4606d2c13d8ca3de7b590"
)

// dataServer serves tinyContents for every path and counts GET requests.
func dataServer(t *testing.T) (*httptest.Server, *atomic.Int64) {
	t.Helper()
	var gets atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			gets.Add(1)
		}
		w.Write([]byte(tinyContents))
	}))
	t.Cleanup(srv.Close)
	return srv, &gets
}

func newTestPooch(t *testing.T, baseURL, name, spec string, opts ...Option) *Pooch {
	t.Helper()
	reg := NewRegistry()
	require.NoError(t, reg.Add(name, spec, ""))
	opts = append(opts, WithRegistry(reg))
	p, err := New(t.TempDir(), baseURL, opts...)
	require.NoError(t, err)
	return p
}

// noTempFiles asserts the cache holds no leftover temporary downloads.
func noTempFiles(t *testing.T, p *Pooch) {
	t.Helper()
	root, err := p.CachePath()
	require.NoError(t, err)
	matches, err := filepath.Glob(filepath.Join(root, "*.tmp"))
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestFetchDownloadsOnce(t *testing.T) {
	srv, gets := dataServer(t)
	p := newTestPooch(t, srv.URL, "tiny-data.txt", tinySHA256)

	paths, err := p.Fetch(context.Background(), "tiny-data.txt")
	require.NoError(t, err)
	require.Len(t, paths, 1)

	contents, err := os.ReadFile(paths[0])
	require.NoError(t, err)
	assert.Equal(t, tinyContents, string(contents))
	assert.Equal(t, int64(1), gets.Load())

	// A cached, verifying file costs no network traffic.
	again, err := p.Fetch(context.Background(), "tiny-data.txt")
	require.NoError(t, err)
	assert.Equal(t, paths, again)
	assert.Equal(t, int64(1), gets.Load())
	noTempFiles(t, p)
}

func TestFetchCreatesSubdirectories(t *testing.T) {
	srv, _ := dataServer(t)
	p := newTestPooch(t, srv.URL, "store/deep/tiny.txt", tinySHA256)

	paths, err := p.Fetch(context.Background(), "store/deep/tiny.txt")
	require.NoError(t, err)
	root, err := p.CachePath()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "store", "deep", "tiny.txt"), paths[0])
}

func TestFetchUpdatesStaleFile(t *testing.T) {
	srv, gets := dataServer(t)
	p := newTestPooch(t, srv.URL, "tiny-data.txt", tinySHA256)

	root, err := p.CachePath()
	require.NoError(t, err)
	require.NoError(t, os.MkdirAll(root, 0o755))
	local := filepath.Join(root, "tiny-data.txt")
	require.NoError(t, os.WriteFile(local, []byte("stale\n"), 0o644))

	paths, err := p.Fetch(context.Background(), "tiny-data.txt")
	require.NoError(t, err)
	assert.Equal(t, []string{local}, paths)
	assert.Equal(t, int64(1), gets.Load())

	contents, err := os.ReadFile(local)
	require.NoError(t, err)
	assert.Equal(t, tinyContents, string(contents))
}

func TestFetchWithoutUpdates(t *testing.T) {
	srv, gets := dataServer(t)
	p := newTestPooch(t, srv.URL, "tiny-data.txt", tinySHA256, WithoutUpdates())

	root, err := p.CachePath()
	require.NoError(t, err)
	require.NoError(t, os.MkdirAll(root, 0o755))
	local := filepath.Join(root, "tiny-data.txt")
	require.NoError(t, os.WriteFile(local, []byte("stale\n"), 0o644))

	_, err = p.Fetch(context.Background(), "tiny-data.txt")
	var mismatch ErrLocalHashMismatch
	require.ErrorAs(t, err, &mismatch)
	assert.Equal(t, local, mismatch.Path)
	assert.Equal(t, tinySHA256, mismatch.Expected.String())
	assert.Equal(t, int64(0), gets.Load())

	// The stale file is left untouched.
	contents, err := os.ReadFile(local)
	require.NoError(t, err)
	assert.Equal(t, "stale\n", string(contents))
}

func TestFetchUnknownSentinelSkipsVerification(t *testing.T) {
	srv, gets := dataServer(t)
	p := newTestPooch(t, srv.URL, "tiny-data.txt", "unknown", WithoutUpdates())

	_, err := p.Fetch(context.Background(), "tiny-data.txt")
	require.NoError(t, err)
	assert.Equal(t, int64(1), gets.Load())

	// An existing file is trusted outright, even with updates disabled.
	_, err = p.Fetch(context.Background(), "tiny-data.txt")
	require.NoError(t, err)
	assert.Equal(t, int64(1), gets.Load())
}

func TestFetchRetriesTransportFailures(t *testing.T) {
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte(tinyContents))
	}))
	t.Cleanup(srv.Close)

	p := newTestPooch(t, srv.URL, "tiny-data.txt", tinySHA256, WithRetries(2))
	paths, err := p.Fetch(context.Background(), "tiny-data.txt")
	require.NoError(t, err)
	assert.Equal(t, int64(2), calls.Load())

	contents, err := os.ReadFile(paths[0])
	require.NoError(t, err)
	assert.Equal(t, tinyContents, string(contents))
	noTempFiles(t, p)
}

func TestFetchNoRetriesSurfacesFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	t.Cleanup(srv.Close)

	p := newTestPooch(t, srv.URL, "tiny-data.txt", tinySHA256)
	_, err := p.Fetch(context.Background(), "tiny-data.txt")
	var dlErr *transport.ErrDownload
	require.ErrorAs(t, err, &dlErr)
	assert.Equal(t, http.StatusInternalServerError, dlErr.Status)
	noTempFiles(t, p)
}

func TestFetchHashMismatchExhaustsRetries(t *testing.T) {
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Write([]byte("not the expected bytes\n"))
	}))
	t.Cleanup(srv.Close)

	p := newTestPooch(t, srv.URL, "tiny-data.txt", tinySHA256, WithRetries(1))
	_, err := p.Fetch(context.Background(), "tiny-data.txt")
	var mismatch ErrHashMismatch
	require.ErrorAs(t, err, &mismatch)
	assert.Equal(t, tinySHA256, mismatch.Expected.String())
	assert.Equal(t, int64(2), calls.Load(), "a fresh-download mismatch is retried")

	// Neither the final path nor any temporary survives.
	root, err := p.CachePath()
	require.NoError(t, err)
	_, err = os.Stat(filepath.Join(root, "tiny-data.txt"))
	assert.True(t, os.IsNotExist(err))
	noTempFiles(t, p)
}

func TestFetchUnknownFile(t *testing.T) {
	p := newTestPooch(t, "https://example.org/", "tiny-data.txt", tinySHA256)
	_, err := p.Fetch(context.Background(), "missing.txt")
	var unknown ErrUnknownFile
	require.ErrorAs(t, err, &unknown)
	assert.Equal(t, "missing.txt", unknown.Name)
}

func TestFetchUnsupportedScheme(t *testing.T) {
	p := newTestPooch(t, "gopher://example.org/", "tiny-data.txt", tinySHA256)
	_, err := p.Fetch(context.Background(), "tiny-data.txt")
	var unsupported *transport.ErrUnsupportedScheme
	require.ErrorAs(t, err, &unsupported)
	assert.Equal(t, "gopher", unsupported.Scheme)
}

// recordingProcessor captures the actions it sees and substitutes a
// derived path.
type recordingProcessor struct {
	actions []Action
	err     error
}

func (r *recordingProcessor) Process(ctx context.Context, path string, action Action) ([]string, error) {
	r.actions = append(r.actions, action)
	if r.err != nil {
		return nil, r.err
	}
	return []string{path + ".derived"}, nil
}

func TestFetchProcessorActions(t *testing.T) {
	srv, _ := dataServer(t)
	p := newTestPooch(t, srv.URL, "tiny-data.txt", tinySHA256)

	proc := &recordingProcessor{}
	paths, err := p.Fetch(context.Background(), "tiny-data.txt", WithProcessor(proc))
	require.NoError(t, err)
	require.Len(t, paths, 1)
	assert.Equal(t, ".derived", filepath.Ext(paths[0]))

	_, err = p.Fetch(context.Background(), "tiny-data.txt", WithProcessor(proc))
	require.NoError(t, err)
	assert.Equal(t, []Action{Downloaded, Fetched}, proc.actions)
}

func TestFetchCustomDownloaderOverridesScheme(t *testing.T) {
	srv, gets := dataServer(t)
	// The registry claims an unsupported scheme; the injected downloader
	// must win before scheme selection happens.
	p := newTestPooch(t, "gopher://example.org/", "tiny-data.txt", tinySHA256)

	dl := transport.NewHTTP()
	_, err := p.Fetch(context.Background(), "tiny-data.txt", WithDownloader(&rewriteDownloader{inner: dl, to: srv.URL + "/tiny-data.txt"}))
	require.NoError(t, err)
	assert.Equal(t, int64(1), gets.Load())
}

// rewriteDownloader sends every request to a fixed URL.
type rewriteDownloader struct {
	inner transport.Downloader
	to    string
}

func (r *rewriteDownloader) Download(ctx context.Context, url, dest string) error {
	return r.inner.Download(ctx, r.to, dest)
}

func (r *rewriteDownloader) Available(ctx context.Context, url string) (bool, error) {
	return r.inner.Available(ctx, r.to)
}

func TestIsAvailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/tiny-data.txt" {
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(srv.Close)

	p := newTestPooch(t, srv.URL, "tiny-data.txt", tinySHA256)
	ok, err := p.IsAvailable(context.Background(), "tiny-data.txt")
	require.NoError(t, err)
	assert.True(t, ok)

	reg := NewRegistry()
	require.NoError(t, reg.Add("other.txt", tinySHA256, ""))
	p2, err := New(t.TempDir(), srv.URL, WithRegistry(reg))
	require.NoError(t, err)
	ok, err = p2.IsAvailable(context.Background(), "other.txt")
	require.NoError(t, err)
	assert.False(t, ok)
}
