package processor

import (
	"archive/tar"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatiando/pooch"
)

// Untar extracts members of a fetched tar archive into a sibling
// directory and returns the extracted file paths in place of the archive.
// Archives compressed with gzip, bzip2, xz or lzma are decompressed on the
// fly based on the file suffix.
type Untar struct {
	// ExtractDir is the directory members are extracted into. Defaults to
	// the archive path plus ".untar".
	ExtractDir string
	// Members lists the archive members to extract; a member naming a
	// directory brings its whole subtree. Empty means every member.
	Members []string
}

// tarCompression maps archive suffixes to the compression applied on top
// of the tar stream.
var tarCompression = map[string]Method{
	".tar.gz":   Gzip,
	".tgz":      Gzip,
	".tar.bz2":  Bzip2,
	".tbz2":     Bzip2,
	".tar.xz":   XZ,
	".txz":      XZ,
	".tar.lzma": LZMA,
}

// Process implements pooch.Processor with the same re-extraction rule as
// Unzip.
func (u *Untar) Process(ctx context.Context, archive string, action pooch.Action) ([]string, error) {
	dir := u.ExtractDir
	if dir == "" {
		dir = archive + ".untar"
	}

	in, err := os.Open(archive)
	if err != nil {
		return nil, err
	}
	defer in.Close()

	var src io.Reader = in
	for suffix, method := range tarCompression {
		if strings.HasSuffix(strings.ToLower(archive), suffix) {
			src, err = newReader(method, in)
			if err != nil {
				return nil, fmt.Errorf("opening tar archive %s: %w", archive, err)
			}
			break
		}
	}

	fresh := action != pooch.Fetched
	matched := make(map[string]bool)
	var out []string
	tr := tar.NewReader(src)
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading tar archive %s: %w", archive, err)
		}
		name := strings.TrimSuffix(hdr.Name, "/")
		member, ok := matchMember(name, u.Members)
		if !ok {
			continue
		}
		if member != "" {
			matched[member] = true
		}
		target, err := securePath(dir, hdr.Name)
		if err != nil {
			return nil, err
		}
		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := ensureDir(target); err != nil {
				return nil, err
			}
		case tar.TypeReg:
			out = append(out, target)
			if !fresh && exists(target) {
				continue
			}
			err := writeFileAtomic(target, func(f *os.File) error {
				_, err := io.Copy(f, tr)
				return err
			})
			if err != nil {
				return nil, fmt.Errorf("extracting %q from %s: %w", hdr.Name, archive, err)
			}
		}
	}
	if err := checkRequested(u.Members, matched); err != nil {
		return nil, err
	}
	return out, nil
}
