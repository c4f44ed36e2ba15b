package processor

import (
	"fmt"
	"path"
	"path/filepath"
	"strings"
)

// matchMember reports whether an archive entry named name (slash
// separated, as stored in the archive) is wanted, and which requested
// member selected it. A nil or empty members list selects everything; a
// member naming a directory selects its whole subtree.
func matchMember(name string, members []string) (member string, ok bool) {
	if len(members) == 0 {
		return "", true
	}
	for _, m := range members {
		m = strings.TrimSuffix(m, "/")
		if name == m || name == m+"/" || strings.HasPrefix(name, m+"/") {
			return m, true
		}
	}
	return "", false
}

// securePath resolves an archive entry name under dir, refusing members
// that would land outside it through absolute paths or .. traversal.
func securePath(dir, name string) (string, error) {
	clean := path.Clean(name)
	if path.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, "../") {
		return "", &ErrInsecureArchivePath{Member: name}
	}
	return filepath.Join(dir, filepath.FromSlash(clean)), nil
}

// checkRequested verifies every requested member matched at least one
// archive entry.
func checkRequested(members []string, matched map[string]bool) error {
	for _, m := range members {
		if !matched[strings.TrimSuffix(m, "/")] {
			return fmt.Errorf("archive has no member %q", m)
		}
	}
	return nil
}
