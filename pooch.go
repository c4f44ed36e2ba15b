package pooch

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/fatiando/pooch/digest"
	"github.com/fatiando/pooch/transport"
)

// Pooch bundles a cache location with a registry of known files and the
// policy knobs for fetching them. Construct with New; the zero value is
// not usable.
//
// A Pooch holds no open resources and construction never touches the
// filesystem, so it is safe to build at program startup. Concurrent
// fetches of distinct files are independent; concurrent fetches of the
// same file are safe but may download redundantly (each publishes
// bit-identical content via its own atomic rename).
type Pooch struct {
	path        string
	baseURL     string
	version     string
	versionDev  string
	envOverride string
	retries     int
	allowUpdate bool
	registry    *Registry
	logger      logrus.FieldLogger
}

// Option configures a Pooch.
type Option func(*Pooch) error

// WithRegistry supplies the registry of known files. The registry is used
// as given, not copied.
func WithRegistry(r *Registry) Option {
	return func(p *Pooch) error {
		p.registry = r
		return nil
	}
}

// WithVersion pins the cache path and base URL to a project version.
// The version segment replaces {version} in the base URL and is appended
// to the cache path. devLabel is substituted for development versions
// (those containing +); it defaults to "main".
func WithVersion(version, devLabel string) Option {
	return func(p *Pooch) error {
		if devLabel == "" {
			devLabel = "main"
		}
		p.version = version
		p.versionDev = devLabel
		return nil
	}
}

// WithEnvOverride names an environment variable that, when set and
// non-empty at fetch time, replaces the cache path.
func WithEnvOverride(name string) Option {
	return func(p *Pooch) error {
		p.envOverride = name
		return nil
	}
}

// WithRetries sets how many times a failed download is retried before the
// error surfaces. Only transport failures and integrity failures of fresh
// downloads are retried.
func WithRetries(n int) Option {
	return func(p *Pooch) error {
		if n < 0 {
			return fmt.Errorf("retry count must not be negative, got %d", n)
		}
		p.retries = n
		return nil
	}
}

// WithoutUpdates makes Fetch fail instead of re-downloading when a cached
// file no longer matches the registry. Useful on CI, where a silently
// changed upstream file should break the build. Entries with the unknown
// hash sentinel are never verified and are unaffected.
func WithoutUpdates() Option {
	return func(p *Pooch) error {
		p.allowUpdate = false
		return nil
	}
}

// WithLogger injects the advisory message sink. Messages describe
// downloads, updates and retries; nothing depends on them.
func WithLogger(l logrus.FieldLogger) Option {
	return func(p *Pooch) error {
		p.logger = l
		return nil
	}
}

// New returns a Pooch rooted at path, fetching relative to baseURL. path
// may start with ~ and may be overridden per-call by the environment
// variable named with WithEnvOverride. baseURL may contain a {version}
// placeholder when WithVersion is used.
func New(path, baseURL string, opts ...Option) (*Pooch, error) {
	if path == "" {
		return nil, fmt.Errorf("cache path must not be empty")
	}
	p := &Pooch{
		path:        path,
		baseURL:     baseURL,
		allowUpdate: true,
		registry:    NewRegistry(),
	}
	for _, opt := range opts {
		if err := opt(p); err != nil {
			return nil, err
		}
	}
	if p.version == "" && strings.Contains(baseURL, versionPlaceholder) {
		return nil, fmt.Errorf("base URL %q has a {version} placeholder but no version is set", baseURL)
	}
	if p.logger == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		p.logger = l
	}
	return p, nil
}

// Registry returns the registry backing p.
func (p *Pooch) Registry() *Registry {
	return p.registry
}

// LoadRegistry reads registry lines from rd into p's registry. source
// names the stream in parse errors.
func (p *Pooch) LoadRegistry(rd io.Reader, source string) error {
	return p.registry.Load(rd, source)
}

// LoadRegistryFromDOI populates the registry from the file listing of the
// DOI archive named by the base URL. File hashes are taken as reported by
// the repository; files whose hash the repository does not report get the
// unknown sentinel.
func (p *Pooch) LoadRegistryFromDOI(ctx context.Context) error {
	if !strings.HasPrefix(p.baseURL, "doi:") {
		return fmt.Errorf("base URL %q is not a DOI", p.baseURL)
	}
	doi := strings.TrimSuffix(strings.TrimPrefix(p.baseURL, "doi:"), "/")
	files, err := transport.NewDOI().Listing(ctx, doi)
	if err != nil {
		return err
	}
	for _, f := range files {
		if p.registry.Contains(f.Name) {
			continue
		}
		if err := p.registry.Add(f.Name, normalizeChecksum(f.Checksum), ""); err != nil {
			return err
		}
	}
	return nil
}

// normalizeChecksum maps a repository-reported checksum to a hash
// specifier. Repositories report either a prefixed specifier, a bare md5
// hex (figshare, Dataverse), or nothing.
func normalizeChecksum(c string) string {
	if c == "" {
		return string(digest.Unknown)
	}
	if d, err := digest.Parse(c); err == nil {
		return string(d)
	}
	if d, err := digest.Parse("md5:" + c); err == nil {
		return string(d)
	}
	return string(digest.Unknown)
}
