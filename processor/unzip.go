package processor

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatiando/pooch"
)

// Unzip extracts members of a fetched zip archive into a sibling
// directory and returns the extracted file paths in place of the archive.
type Unzip struct {
	// ExtractDir is the directory members are extracted into. Defaults to
	// the archive path plus ".unzip".
	ExtractDir string
	// Members lists the archive members to extract; a member naming a
	// directory brings its whole subtree. Empty means every member.
	Members []string
}

// Process implements pooch.Processor. Members are (re)extracted when the
// archive was just downloaded or updated, and individually whenever their
// extracted copy is missing — a previous call with a narrower member list
// is never trusted to have covered today's request.
func (u *Unzip) Process(ctx context.Context, archive string, action pooch.Action) ([]string, error) {
	dir := u.ExtractDir
	if dir == "" {
		dir = archive + ".unzip"
	}

	r, err := zip.OpenReader(archive)
	if err != nil {
		return nil, fmt.Errorf("opening zip archive %s: %w", archive, err)
	}
	defer r.Close()

	fresh := action != pooch.Fetched
	matched := make(map[string]bool)
	var out []string
	for _, f := range r.File {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		member, ok := matchMember(strings.TrimSuffix(f.Name, "/"), u.Members)
		if !ok {
			continue
		}
		if member != "" {
			matched[member] = true
		}
		target, err := securePath(dir, f.Name)
		if err != nil {
			return nil, err
		}
		if f.FileInfo().IsDir() {
			if err := ensureDir(target); err != nil {
				return nil, err
			}
			continue
		}
		out = append(out, target)
		if !fresh && exists(target) {
			continue
		}
		if err := extractZipFile(f, target); err != nil {
			return nil, fmt.Errorf("extracting %q from %s: %w", f.Name, archive, err)
		}
	}
	if err := checkRequested(u.Members, matched); err != nil {
		return nil, err
	}
	return out, nil
}

func extractZipFile(f *zip.File, target string) error {
	rc, err := f.Open()
	if err != nil {
		return err
	}
	defer rc.Close()
	return writeFileAtomic(target, func(out *os.File) error {
		_, err := io.Copy(out, rc)
		return err
	})
}
