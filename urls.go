package pooch

import "strings"

// versionPlaceholder is replaced in base URLs by the effective version
// segment.
const versionPlaceholder = "{version}"

// GetURL returns the remote URL that a fetch of name would download. An
// entry's own URL wins and is used verbatim; otherwise the base URL gets
// the version placeholder substituted, a trailing slash ensured, and the
// name appended.
func (p *Pooch) GetURL(name string) (string, error) {
	entry, ok := p.registry.Get(name)
	if !ok {
		return "", ErrUnknownFile{Name: name}
	}
	return p.urlFor(name, entry)
}

func (p *Pooch) urlFor(name string, entry RegistryEntry) (string, error) {
	if entry.URL != "" {
		return entry.URL, nil
	}
	if p.baseURL == "" {
		return "", ErrNoBaseURL{Name: name}
	}
	base := p.baseURL
	if p.version != "" {
		base = strings.ReplaceAll(base, versionPlaceholder, versionSegment(p.version, p.versionDev))
	}
	if !strings.HasSuffix(base, "/") {
		base += "/"
	}
	return base + name, nil
}
