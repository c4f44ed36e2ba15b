// Package testutil builds the on-disk fixtures the tests fetch, extract
// and verify: small data files, hash specifiers, and compressed or
// archived payloads.
package testutil

import (
	"archive/tar"
	"archive/zip"
	"bytes"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/klauspost/compress/gzip"

	"github.com/fatiando/pooch/digest"
)

// WriteFile writes contents under dir, creating parents, and returns the
// full path.
func WriteFile(t *testing.T, dir, name, contents string) string {
	t.Helper()
	path := filepath.Join(dir, filepath.FromSlash(name))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("creating %s: %v", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("writing %s: %v", path, err)
	}
	return path
}

// Digest returns the hash specifier of literal contents under alg.
func Digest(t *testing.T, alg digest.Algorithm, contents string) digest.Digest {
	t.Helper()
	d, err := digest.FromReader(alg, bytes.NewReader([]byte(contents)))
	if err != nil {
		t.Fatalf("digesting %d bytes: %v", len(contents), err)
	}
	return d
}

// Zip writes a zip archive at path holding the given name → contents
// files, in sorted name order.
func Zip(t *testing.T, path string, files map[string]string) {
	t.Helper()
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for _, name := range sortedNames(files) {
		f, err := w.Create(name)
		if err != nil {
			t.Fatalf("adding %s to zip: %v", name, err)
		}
		if _, err := f.Write([]byte(files[name])); err != nil {
			t.Fatalf("adding %s to zip: %v", name, err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("closing zip: %v", err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatalf("writing %s: %v", path, err)
	}
}

// Tar writes a tar archive at path holding the given name → contents
// files, in sorted name order.
func Tar(t *testing.T, path string, files map[string]string) {
	t.Helper()
	var buf bytes.Buffer
	w := tar.NewWriter(&buf)
	for _, name := range sortedNames(files) {
		hdr := &tar.Header{
			Name: name,
			Mode: 0o644,
			Size: int64(len(files[name])),
		}
		if err := w.WriteHeader(hdr); err != nil {
			t.Fatalf("adding %s to tar: %v", name, err)
		}
		if _, err := w.Write([]byte(files[name])); err != nil {
			t.Fatalf("adding %s to tar: %v", name, err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("closing tar: %v", err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatalf("writing %s: %v", path, err)
	}
}

// Gzip writes contents gzip-compressed to path.
func Gzip(t *testing.T, path, contents string) {
	t.Helper()
	var buf bytes.Buffer
	w := gzip.NewWriter(&buf)
	if _, err := w.Write([]byte(contents)); err != nil {
		t.Fatalf("compressing: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("compressing: %v", err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatalf("writing %s: %v", path, err)
	}
}

func sortedNames(files map[string]string) []string {
	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
