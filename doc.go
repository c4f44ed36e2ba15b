// Package pooch caches remote data files on the local filesystem and hands
// callers the absolute path to a verified, up-to-date copy of any file they
// request, downloading only when necessary.
//
// A Pooch bundles a cache location with a registry of known files. Each
// registry entry maps a logical, slash-separated file name to a hash
// specifier and, optionally, a URL that overrides the shared base URL:
//
//	reg := pooch.NewRegistry()
//	reg.Add("tiny-data.txt", "sha256:baee0894dba14b12085eacb204284b97e362f4f3e5a5807693cc90ef415c1b2d", "")
//
//	p, err := pooch.New("~/.cache/myproject", "https://example.org/v1/",
//		pooch.WithRegistry(reg))
//	if err != nil {
//		...
//	}
//	paths, err := p.Fetch(ctx, "tiny-data.txt")
//
// Fetch verifies any cached copy against the registry digest, downloads
// through a scheme-selected transport when the copy is absent or stale,
// verifies the fresh bytes, and publishes them with an atomic rename. An
// optional post-processor can decompress the file or extract archive
// members; see the processor package.
//
// For one-shot downloads that do not warrant a registry, Retrieve fetches a
// single (url, hash) pair into an OS-appropriate cache directory.
package pooch
