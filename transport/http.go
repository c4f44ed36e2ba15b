package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"time"
)

const defaultConnectTimeout = 30 * time.Second

// HTTP downloads http and https URLs. The zero value is not usable;
// construct with NewHTTP. Body streaming has no time limit, only the
// connection attempt is bounded.
type HTTP struct {
	// Client performs the requests. Defaults to a client with a bounded
	// connection timeout and no overall deadline.
	Client *http.Client
	// Headers are added to every request.
	Headers http.Header
	// Auth, when set, is sent as basic auth.
	Auth *Credentials
	// Progress, when set, receives byte counts during downloads.
	Progress Progress
}

// HTTPOption configures an HTTP downloader.
type HTTPOption func(*HTTP)

// WithClient replaces the underlying http.Client.
func WithClient(c *http.Client) HTTPOption {
	return func(h *HTTP) { h.Client = c }
}

// WithHeaders adds request headers.
func WithHeaders(hdr http.Header) HTTPOption {
	return func(h *HTTP) { h.Headers = hdr }
}

// WithAuth sends the credentials as basic auth.
func WithAuth(username, password string) HTTPOption {
	return func(h *HTTP) { h.Auth = &Credentials{Username: username, Password: password} }
}

// WithProgress reports download progress to p.
func WithProgress(p Progress) HTTPOption {
	return func(h *HTTP) { h.Progress = p }
}

// NewHTTP returns an HTTP downloader with default settings. Redirects are
// followed.
func NewHTTP(opts ...HTTPOption) *HTTP {
	h := &HTTP{
		Client: &http.Client{
			Transport: &http.Transport{
				Proxy: http.ProxyFromEnvironment,
				DialContext: (&net.Dialer{
					Timeout: defaultConnectTimeout,
				}).DialContext,
			},
		},
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func init() {
	Register("http", func() Downloader { return NewHTTP() })
	Register("https", func() Downloader { return NewHTTP() })
}

// Download streams the response body for url into dest.
func (h *HTTP) Download(ctx context.Context, url, dest string) error {
	resp, err := h.get(ctx, http.MethodGet, url)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	f, err := os.OpenFile(dest, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}

	w := reportTo(f, h.Progress, resp.ContentLength)
	_, err = io.Copy(w, resp.Body)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(dest)
		return &ErrDownload{URL: url, Err: err}
	}
	return nil
}

// Available probes url with a HEAD request; no body is transferred.
func (h *HTTP) Available(ctx context.Context, url string) (bool, error) {
	resp, err := h.get(ctx, http.MethodHead, url)
	if err != nil {
		var dlErr *ErrDownload
		if errors.As(err, &dlErr) && dlErr.Status != 0 {
			return false, nil
		}
		return false, err
	}
	resp.Body.Close()
	return true, nil
}

// get issues a request and turns non-success statuses into ErrDownload
// carrying the status code.
func (h *HTTP) get(ctx context.Context, method, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, nil)
	if err != nil {
		return nil, fmt.Errorf("building request for %s: %w", url, err)
	}
	for k, vs := range h.Headers {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	if h.Auth != nil {
		req.SetBasicAuth(h.Auth.Username, h.Auth.Password)
	}

	resp, err := h.Client.Do(req)
	if err != nil {
		return nil, &ErrDownload{URL: url, Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		resp.Body.Close()
		return nil, &ErrDownload{URL: url, Status: resp.StatusCode, Err: errors.New(resp.Status)}
	}
	return resp, nil
}
