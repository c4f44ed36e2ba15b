package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"sort"
	"strings"
	"sync"
)

// defaultResolver is the public DOI resolution endpoint.
const defaultResolver = "https://doi.org/"

// DOI downloads doi:<DOI>/<filename> URLs. The DOI is resolved through
// doi.org to a landing page, the data repository behind the landing page
// is recognized, its public metadata API yields the file listing for the
// exact version the DOI names, and the matching entry's download URL is
// handed to the HTTP downloader. Supported repositories: figshare, Zenodo
// and Dataverse installations.
type DOI struct {
	// HTTP performs the resolution, metadata and byte-transfer requests.
	HTTP *HTTP
	// Resolver is the DOI resolution endpoint, ending in a slash.
	Resolver string

	// listings caches resolved file listings per DOI for the life of this
	// downloader. Never persisted.
	mu       sync.Mutex
	listings map[string][]RemoteFile
}

// RemoteFile is one file of a DOI archive's listing.
type RemoteFile struct {
	Name        string
	DownloadURL string
	Size        int64
	// Checksum as reported by the repository: a hash specifier, a bare
	// md5 hex, or empty when unreported.
	Checksum string
}

// NewDOI returns a DOI downloader with default settings.
func NewDOI(opts ...DOIOption) *DOI {
	d := &DOI{
		HTTP:     NewHTTP(),
		Resolver: defaultResolver,
		listings: make(map[string][]RemoteFile),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// DOIOption configures a DOI downloader.
type DOIOption func(*DOI)

// WithDOIHTTP replaces the HTTP downloader used for all requests.
func WithDOIHTTP(h *HTTP) DOIOption {
	return func(d *DOI) { d.HTTP = h }
}

// WithResolver points DOI resolution at a different endpoint.
func WithResolver(resolver string) DOIOption {
	return func(d *DOI) { d.Resolver = resolver }
}

func init() {
	Register("doi", func() Downloader { return NewDOI() })
}

// ErrDOIUnsupported records a DOI that resolves to a repository the
// downloader does not know, or to an object that is not a dataset.
type ErrDOIUnsupported struct {
	DOI    string
	Host   string
	Reason string
}

func (err *ErrDOIUnsupported) Error() string {
	if err.Host != "" {
		return fmt.Sprintf("doi %s: %s (landing host %s)", err.DOI, err.Reason, err.Host)
	}
	return fmt.Sprintf("doi %s: %s", err.DOI, err.Reason)
}

// ErrDOIFileNotFound records a requested file name missing from a DOI
// archive's listing.
type ErrDOIFileNotFound struct {
	DOI       string
	Name      string
	Available []string
}

func (err *ErrDOIFileNotFound) Error() string {
	return fmt.Sprintf("doi %s has no file %q, available: %s",
		err.DOI, err.Name, strings.Join(err.Available, ", "))
}

// splitDOIURL splits doi:<DOI>/<filename> into its DOI and file name. The
// DOI itself contains slashes; the file name is everything after the last
// one.
func splitDOIURL(rawurl string) (doi, filename string, err error) {
	spec := strings.TrimPrefix(rawurl, "doi:")
	i := strings.LastIndex(spec, "/")
	if i <= 0 || i == len(spec)-1 {
		return "", "", fmt.Errorf("malformed DOI url %q, want doi:<DOI>/<filename>", rawurl)
	}
	return spec[:i], spec[i+1:], nil
}

// Download resolves the DOI and delegates the byte transfer to HTTP.
func (d *DOI) Download(ctx context.Context, rawurl, dest string) error {
	f, err := d.find(ctx, rawurl)
	if err != nil {
		return err
	}
	return d.HTTP.Download(ctx, f.DownloadURL, dest)
}

// Available reports whether the named file appears in the DOI's listing.
func (d *DOI) Available(ctx context.Context, rawurl string) (bool, error) {
	_, err := d.find(ctx, rawurl)
	var notFound *ErrDOIFileNotFound
	switch {
	case err == nil:
		return true, nil
	case errors.As(err, &notFound):
		return false, nil
	}
	return false, err
}

func (d *DOI) find(ctx context.Context, rawurl string) (RemoteFile, error) {
	doi, filename, err := splitDOIURL(rawurl)
	if err != nil {
		return RemoteFile{}, err
	}
	files, err := d.Listing(ctx, doi)
	if err != nil {
		return RemoteFile{}, err
	}
	for _, f := range files {
		if f.Name == filename {
			return f, nil
		}
	}
	available := make([]string, 0, len(files))
	for _, f := range files {
		available = append(available, f.Name)
	}
	sort.Strings(available)
	return RemoteFile{}, &ErrDOIFileNotFound{DOI: doi, Name: filename, Available: available}
}

// Listing returns the file listing of the archive the DOI names,
// resolving it on first use and caching it for the life of d.
func (d *DOI) Listing(ctx context.Context, doi string) ([]RemoteFile, error) {
	d.mu.Lock()
	files, ok := d.listings[doi]
	d.mu.Unlock()
	if ok {
		return files, nil
	}

	repo, err := d.recognize(ctx, doi)
	if err != nil {
		return nil, err
	}
	files, err = repo.files(ctx)
	if err != nil {
		return nil, err
	}

	d.mu.Lock()
	if d.listings == nil {
		d.listings = make(map[string][]RemoteFile)
	}
	d.listings[doi] = files
	d.mu.Unlock()
	return files, nil
}

// repository is a data repository that can list the files of one archive
// version.
type repository interface {
	files(ctx context.Context) ([]RemoteFile, error)
}

// recognize resolves the DOI to its landing page and picks the repository
// implementation from the landing host.
func (d *DOI) recognize(ctx context.Context, doi string) (repository, error) {
	resp, err := d.get(ctx, d.Resolver+doi)
	if err != nil {
		return nil, err
	}
	resp.Body.Close()
	landing := resp.Request.URL
	host := landing.Hostname()

	switch {
	case strings.Contains(host, "figshare"):
		return newFigshare(d, doi, host)
	case strings.Contains(host, "zenodo"):
		return newZenodo(d, doi, landing)
	}
	if dv, ok := d.probeDataverse(ctx, doi, landing); ok {
		return dv, nil
	}
	return nil, &ErrDOIUnsupported{DOI: doi, Host: host, Reason: "repository is not supported"}
}

func (d *DOI) get(ctx context.Context, url string) (*http.Response, error) {
	return d.HTTP.get(ctx, http.MethodGet, url)
}

func (d *DOI) getJSON(ctx context.Context, url string, v interface{}) error {
	resp, err := d.get(ctx, url)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return &ErrDownload{URL: url, Err: fmt.Errorf("decoding repository metadata: %w", err)}
	}
	return nil
}

// figshare

var figshareDOI = regexp.MustCompile(`figshare\.(\d+)(?:\.v(\d+))?$`)

type figshare struct {
	doi     *DOI
	id      string
	version string
}

func newFigshare(d *DOI, doi, host string) (*figshare, error) {
	// Collection DOIs carry a .c. marker and hold articles, not files.
	if strings.Contains(doi, ".c.") {
		return nil, &ErrDOIUnsupported{DOI: doi, Host: host, Reason: "figshare collections are not datasets"}
	}
	m := figshareDOI.FindStringSubmatch(doi)
	if m == nil {
		return nil, &ErrDOIUnsupported{DOI: doi, Host: host, Reason: "cannot extract the figshare article id from the DOI"}
	}
	return &figshare{doi: d, id: m[1], version: m[2]}, nil
}

func (f *figshare) files(ctx context.Context) ([]RemoteFile, error) {
	// Without a version suffix the DOI names the latest state of the
	// article; with one, exactly that version.
	url := fmt.Sprintf("https://api.figshare.com/v2/articles/%s", f.id)
	if f.version != "" {
		url = fmt.Sprintf("https://api.figshare.com/v2/articles/%s/versions/%s", f.id, f.version)
	}
	var article struct {
		Files []struct {
			Name        string `json:"name"`
			DownloadURL string `json:"download_url"`
			Size        int64  `json:"size"`
			ComputedMD5 string `json:"computed_md5"`
		} `json:"files"`
	}
	if err := f.doi.getJSON(ctx, url, &article); err != nil {
		return nil, err
	}
	files := make([]RemoteFile, 0, len(article.Files))
	for _, af := range article.Files {
		files = append(files, RemoteFile{
			Name:        af.Name,
			DownloadURL: af.DownloadURL,
			Size:        af.Size,
			Checksum:    af.ComputedMD5,
		})
	}
	return files, nil
}

// Zenodo

type zenodo struct {
	doi    *DOI
	apiURL string
}

func newZenodo(d *DOI, doi string, landing *url.URL) (*zenodo, error) {
	// Landing pages look like https://zenodo.org/records/<id>; versioned
	// DOIs land on their own record, so the id already pins the version.
	id := strings.Trim(landing.Path, "/")
	if i := strings.LastIndex(id, "/"); i >= 0 {
		id = id[i+1:]
	}
	if id == "" {
		return nil, &ErrDOIUnsupported{DOI: doi, Host: landing.Hostname(), Reason: "cannot extract the zenodo record id from the landing page"}
	}
	api := fmt.Sprintf("%s://%s/api/records/%s", landing.Scheme, landing.Host, id)
	return &zenodo{doi: d, apiURL: api}, nil
}

func (z *zenodo) files(ctx context.Context) ([]RemoteFile, error) {
	var record struct {
		Files []struct {
			Key      string `json:"key"`
			Size     int64  `json:"size"`
			Checksum string `json:"checksum"`
			Links    struct {
				Self string `json:"self"`
			} `json:"links"`
		} `json:"files"`
	}
	if err := z.doi.getJSON(ctx, z.apiURL, &record); err != nil {
		return nil, err
	}
	files := make([]RemoteFile, 0, len(record.Files))
	for _, rf := range record.Files {
		files = append(files, RemoteFile{
			Name:        rf.Key,
			DownloadURL: rf.Links.Self,
			Size:        rf.Size,
			Checksum:    rf.Checksum,
		})
	}
	return files, nil
}

// Dataverse

type dataverse struct {
	doi     *DOI
	base    string
	spec    string
	listing dataverseListing
}

type dataverseListing struct {
	Data struct {
		LatestVersion struct {
			Files []struct {
				DataFile struct {
					ID       int64  `json:"id"`
					Filename string `json:"filename"`
					Filesize int64  `json:"filesize"`
					MD5      string `json:"md5"`
				} `json:"dataFile"`
			} `json:"files"`
		} `json:"latestVersion"`
	} `json:"data"`
}

// probeDataverse asks the landing host's dataset API about the DOI; a
// well-formed answer identifies a Dataverse installation.
func (d *DOI) probeDataverse(ctx context.Context, doi string, landing *url.URL) (*dataverse, bool) {
	base := fmt.Sprintf("%s://%s", landing.Scheme, landing.Host)
	dv := &dataverse{doi: d, base: base, spec: doi}
	if err := d.getJSON(ctx, dv.datasetURL(), &dv.listing); err != nil {
		return nil, false
	}
	return dv, true
}

func (dv *dataverse) datasetURL() string {
	return fmt.Sprintf("%s/api/datasets/:persistentId?persistentId=doi:%s", dv.base, dv.spec)
}

func (dv *dataverse) files(ctx context.Context) ([]RemoteFile, error) {
	entries := dv.listing.Data.LatestVersion.Files
	files := make([]RemoteFile, 0, len(entries))
	for _, e := range entries {
		files = append(files, RemoteFile{
			Name:        e.DataFile.Filename,
			DownloadURL: fmt.Sprintf("%s/api/access/datafile/%d", dv.base, e.DataFile.ID),
			Size:        e.DataFile.Filesize,
			Checksum:    e.DataFile.MD5,
		})
	}
	return files, nil
}
