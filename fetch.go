package pooch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/fatiando/pooch/digest"
	"github.com/fatiando/pooch/internal/uuid"
	"github.com/fatiando/pooch/transport"
)

// FetchOption configures a single Fetch or IsAvailable call.
type FetchOption func(*fetchOptions)

type fetchOptions struct {
	downloader transport.Downloader
	processor  Processor
}

// WithDownloader overrides the scheme-selected transport for this call.
func WithDownloader(d transport.Downloader) FetchOption {
	return func(o *fetchOptions) {
		o.downloader = d
	}
}

// WithProcessor post-processes the fetched file; the processor's return
// value replaces the fetched path in the result.
func WithProcessor(pr Processor) FetchOption {
	return func(o *fetchOptions) {
		o.processor = pr
	}
}

// Fetch ensures the file registered under name is present and verified in
// the local cache, downloading it if needed, and returns the absolute
// path(s) the caller should use. Without a processor the result is a
// single path; a processor may substitute one or more derived paths.
//
// A cached file that verifies against the registry is returned without any
// network traffic. A missing file is downloaded; a stale one is downloaded
// again unless the Pooch was built WithoutUpdates, in which case
// ErrLocalHashMismatch surfaces and the cached file is left untouched.
// Downloads stream into a uniquely named sibling of the destination,
// verify there, and are published with an atomic rename, so the final path
// never holds unverified bytes.
func (p *Pooch) Fetch(ctx context.Context, name string, opts ...FetchOption) ([]string, error) {
	var o fetchOptions
	for _, opt := range opts {
		opt(&o)
	}

	entry, ok := p.registry.Get(name)
	if !ok {
		return nil, ErrUnknownFile{Name: name}
	}
	url, err := p.urlFor(name, entry)
	if err != nil {
		return nil, err
	}

	local, err := p.localPath(name)
	if err != nil {
		return nil, err
	}

	action, err := p.classify(local, entry.Digest)
	if err != nil {
		return nil, err
	}

	if action != Fetched {
		dl := o.downloader
		if dl == nil {
			dl, err = transport.ForURL(url)
			if err != nil {
				return nil, err
			}
		}
		p.logger.Infof("%s %q from %s to %s", action, name, url, filepath.Dir(local))

		if err := p.download(ctx, dl, url, local, entry.Digest); err != nil {
			return nil, err
		}
	}

	if o.processor != nil {
		paths, err := o.processor.Process(ctx, local, action)
		if err != nil {
			return nil, fmt.Errorf("processing %s: %w", local, err)
		}
		return paths, nil
	}
	return []string{local}, nil
}

// IsAvailable probes whether the file registered under name can be
// downloaded from its remote source, without transferring it.
func (p *Pooch) IsAvailable(ctx context.Context, name string, opts ...FetchOption) (bool, error) {
	var o fetchOptions
	for _, opt := range opts {
		opt(&o)
	}

	entry, ok := p.registry.Get(name)
	if !ok {
		return false, ErrUnknownFile{Name: name}
	}
	url, err := p.urlFor(name, entry)
	if err != nil {
		return false, err
	}
	dl := o.downloader
	if dl == nil {
		dl, err = transport.ForURL(url)
		if err != nil {
			return false, err
		}
	}
	return dl.Available(ctx, url)
}

// localPath resolves the on-disk destination for name and creates the
// directories above it. Creation tolerates pre-existing directories and
// concurrent creators.
func (p *Pooch) localPath(name string) (string, error) {
	root, err := p.CachePath()
	if err != nil {
		return "", err
	}
	local := filepath.Join(root, filepath.FromSlash(name))
	if err := os.MkdirAll(filepath.Dir(local), 0o755); err != nil {
		return "", fmt.Errorf("creating cache directory: %w", err)
	}
	return local, nil
}

// classify decides the fetch action for the local file against the
// expected digest.
func (p *Pooch) classify(local string, expected digest.Digest) (Action, error) {
	_, err := os.Stat(local)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return Downloaded, nil
	case err != nil:
		return 0, err
	}
	if expected == digest.Unknown {
		return Fetched, nil
	}
	actual, err := digest.FromFile(expected.Algorithm(), local)
	if err != nil {
		return 0, err
	}
	if actual == expected {
		return Fetched, nil
	}
	if !p.allowUpdate {
		return 0, ErrLocalHashMismatch{Path: local, Expected: expected, Actual: actual}
	}
	return Updated, nil
}

// download runs the retry loop: stream into a sibling temporary file,
// verify, and publish with a rename. Transport failures and integrity
// failures of the fresh bytes are retried with growing delays; everything
// else surfaces immediately. The temporary file is removed on every
// failure path.
func (p *Pooch) download(ctx context.Context, dl transport.Downloader, url, local string, expected digest.Digest) error {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = time.Second
	bo.RandomizationFactor = 0
	bo.Multiplier = 2
	bo.MaxInterval = 10 * time.Second
	bo.MaxElapsedTime = 0
	bo.Reset()

	var lastErr error
	for attempt := 0; attempt <= p.retries; attempt++ {
		if attempt > 0 {
			p.logger.WithField("url", url).Warnf("download failed, retrying (%d of %d): %v", attempt, p.retries, lastErr)
			select {
			case <-time.After(bo.NextBackOff()):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		tmp := fmt.Sprintf("%s.%s.tmp", local, uuid.NewString())
		err := p.attempt(ctx, dl, url, tmp, expected)
		if err == nil {
			if err := os.Rename(tmp, local); err != nil {
				os.Remove(tmp)
				return fmt.Errorf("publishing %s: %w", local, err)
			}
			return nil
		}
		os.Remove(tmp)
		if !retryable(err) {
			return err
		}
		lastErr = err
	}
	return lastErr
}

// attempt performs one download into tmp and verifies it there.
func (p *Pooch) attempt(ctx context.Context, dl transport.Downloader, url, tmp string, expected digest.Digest) error {
	if err := dl.Download(ctx, url, tmp); err != nil {
		return err
	}
	if expected == digest.Unknown {
		return nil
	}
	actual, err := digest.FromFile(expected.Algorithm(), tmp)
	if err != nil {
		return err
	}
	if actual != expected {
		return ErrHashMismatch{Path: tmp, Expected: expected, Actual: actual}
	}
	return nil
}

// retryable reports whether err is a transient download or integrity
// failure. Local filesystem errors, unsupported schemes and registry
// misses are terminal.
func retryable(err error) bool {
	var (
		dlErr       *transport.ErrDownload
		mismatchErr ErrHashMismatch
	)
	return errors.As(err, &dlErr) || errors.As(err, &mismatchErr)
}
