// Package processor implements post-processors that turn a fetched file
// into derived artifacts: decompressed copies and extracted archive
// members. Processors are idempotent — when the fetch machinery reports
// that the source file was already cached and verified, existing artifacts
// are reused and only the returned paths are recomputed.
//
// All processors satisfy the pooch.Processor interface.
package processor

import (
	"fmt"
	"os"
	"path/filepath"
)

// ErrInsecureArchivePath records an archive member that would be written
// outside the extraction directory.
type ErrInsecureArchivePath struct {
	Member string
}

func (err *ErrInsecureArchivePath) Error() string {
	return fmt.Sprintf("archive member %q would be extracted outside the extraction directory", err.Member)
}

// exists reports whether path exists, in any form.
func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// ensureDir creates dir if absent, tolerating concurrent creators.
func ensureDir(dir string) error {
	return os.MkdirAll(dir, 0o755)
}

// writeFileAtomic streams from write() into path via a uniquely named
// sibling and an atomic rename.
func writeFileAtomic(path string, write func(f *os.File) error) error {
	if err := ensureDir(filepath.Dir(path)); err != nil {
		return err
	}
	f, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	tmp := f.Name()
	if err := write(f); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return err
	}
	return nil
}
