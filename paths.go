package pooch

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// OSCache returns the conventional per-OS cache directory for an
// application name, e.g. ~/.cache/<app> on Linux.
func OSCache(app string) (string, error) {
	dir, err := os.UserCacheDir()
	if err != nil {
		return "", fmt.Errorf("locating the user cache directory: %w", err)
	}
	return filepath.Join(dir, app), nil
}

// CachePath returns the effective cache root: the environment override (if
// the configured variable is set and non-empty) or the configured path,
// with a leading ~ expanded and the version segment appended. The path is
// resolved at fetch time, never at construction, and this never creates
// directories.
func (p *Pooch) CachePath() (string, error) {
	base := p.path
	if p.envOverride != "" {
		if v := os.Getenv(p.envOverride); v != "" {
			base = v
		}
	}
	base, err := expandUser(base)
	if err != nil {
		return "", err
	}
	if p.version != "" {
		base = filepath.Join(base, versionSegment(p.version, p.versionDev))
	}
	return filepath.Abs(base)
}

// expandUser replaces a leading ~ with the user's home directory.
func expandUser(p string) (string, error) {
	if p != "~" && !strings.HasPrefix(p, "~/") && !strings.HasPrefix(p, `~\`) {
		return p, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("expanding ~ in %q: %w", p, err)
	}
	if p == "~" {
		return home, nil
	}
	return filepath.Join(home, p[2:]), nil
}

// versionSegment returns the path and URL segment for a project version.
// Versions carrying a + are development builds and map to the development
// label instead of a literal version directory.
func versionSegment(version, devLabel string) string {
	if isDevVersion(version) {
		return devLabel
	}
	return version
}

// isDevVersion reports whether version is a development version, marked by
// a + build suffix.
func isDevVersion(version string) bool {
	return strings.Contains(version, "+")
}
