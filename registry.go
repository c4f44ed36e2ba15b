package pooch

import (
	"bufio"
	"fmt"
	"io"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"

	"github.com/fatiando/pooch/digest"
)

// RegistryEntry is the declared expectation for one file: its hash
// specifier and, optionally, a URL that overrides the base URL. An
// override URL is used verbatim, with no version substitution.
type RegistryEntry struct {
	Digest digest.Digest
	URL    string
}

// Registry maps logical file names to registry entries. Names are
// slash-separated relative paths regardless of the host's separator and
// are unique. Iteration order is insertion order, so a loaded registry
// serializes back deterministically.
type Registry struct {
	names   []string
	entries map[string]RegistryEntry
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]RegistryEntry)}
}

// RegistryFromMap builds a registry from a name → hash specifier map.
// Names are added in sorted order.
func RegistryFromMap(m map[string]string) (*Registry, error) {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)

	r := NewRegistry()
	for _, name := range names {
		if err := r.Add(name, m[name], ""); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Add registers a file under name with the given hash specifier and
// optional override URL. Adding a name twice is an error.
func (r *Registry) Add(name, spec, url string) error {
	if name == "" {
		return fmt.Errorf("registry entry needs a name")
	}
	if _, ok := r.entries[name]; ok {
		return fmt.Errorf("duplicate registry entry %q", name)
	}
	d, err := digest.Parse(spec)
	if err != nil {
		return fmt.Errorf("registry entry %q: %w", name, err)
	}
	r.names = append(r.names, name)
	r.entries[name] = RegistryEntry{Digest: d, URL: url}
	return nil
}

// Contains reports whether name is registered.
func (r *Registry) Contains(name string) bool {
	_, ok := r.entries[name]
	return ok
}

// Get returns the entry for name.
func (r *Registry) Get(name string) (RegistryEntry, bool) {
	e, ok := r.entries[name]
	return e, ok
}

// Names returns the registered names in registration order.
func (r *Registry) Names() []string {
	out := make([]string, len(r.names))
	copy(out, r.names)
	return out
}

// Len returns the number of registered files.
func (r *Registry) Len() int {
	return len(r.names)
}

// Load reads registry lines from rd and adds them to r. The format is one
// entry per line: a name, a hash specifier, and an optional URL, separated
// by spaces. Blank lines are skipped and lines starting with # are
// comments. Because names may contain spaces, the hash token is located
// positionally: it is the last whitespace-separated token that parses as a
// hash specifier; tokens before it form the name and tokens after it form
// the URL. source names the stream in errors.
func (r *Registry) Load(rd io.Reader, source string) error {
	scanner := bufio.NewScanner(rd)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	lineno := 0
	for scanner.Scan() {
		lineno++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		name, spec, url, reason := splitRegistryLine(line)
		if reason != "" {
			return ErrMalformedRegistry{Source: source, Line: lineno, Content: line, Reason: reason}
		}
		if err := r.Add(name, spec, url); err != nil {
			return ErrMalformedRegistry{Source: source, Line: lineno, Content: line, Reason: err.Error()}
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading %s: %w", source, err)
	}
	return nil
}

// splitRegistryLine splits a non-empty registry line into name, hash
// specifier and URL. A non-empty reason signals a malformed line.
func splitRegistryLine(line string) (name, spec, url, reason string) {
	fields := strings.Fields(line)

	hashAt := -1
	for i := len(fields) - 1; i >= 0; i-- {
		if digest.IsSpec(fields[i]) {
			hashAt = i
			break
		}
	}
	switch {
	case hashAt < 0:
		return "", "", "", "no hash specifier"
	case hashAt == 0:
		return "", "", "", "missing file name before hash"
	}

	name = strings.Join(fields[:hashAt], " ")
	spec = fields[hashAt]
	url = strings.Join(fields[hashAt+1:], " ")
	if url != "" && !hasURLScheme(url) {
		// Trailing tokens that do not form a URL would silently change
		// which token is the hash; refuse to guess.
		return "", "", "", "ambiguous hash token: trailing fields are not a URL"
	}
	return name, spec, url, ""
}

func hasURLScheme(s string) bool {
	return strings.Contains(s, "://") || strings.HasPrefix(s, "doi:")
}

// Dump writes the registry to w in the text format read by Load, one entry
// per line with LF line endings, in registration order.
func (r *Registry) Dump(w io.Writer) error {
	bw := bufio.NewWriter(w)
	for _, name := range r.names {
		e := r.entries[name]
		if e.URL != "" {
			fmt.Fprintf(bw, "%s %s %s\n", name, e.Digest, e.URL)
		} else {
			fmt.Fprintf(bw, "%s %s\n", name, e.Digest)
		}
	}
	return bw.Flush()
}

// MakeRegistry walks the data files under dir and writes a registry for
// them to w, one line per file with canonical digests, sorted by name.
// Names are recorded relative to dir with forward slashes.
func MakeRegistry(dir string, w io.Writer) error {
	var names []string
	err := filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(dir, p)
		if err != nil {
			return err
		}
		names = append(names, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return err
	}
	sort.Strings(names)

	bw := bufio.NewWriter(w)
	for _, name := range names {
		d, err := digest.FromFile(digest.Canonical, filepath.Join(dir, filepath.FromSlash(name)))
		if err != nil {
			return err
		}
		fmt.Fprintf(bw, "%s %s\n", name, d)
	}
	return bw.Flush()
}
