package pooch

import (
	"fmt"

	"github.com/fatiando/pooch/digest"
)

// ErrUnknownFile is returned when a requested name is not in the registry.
type ErrUnknownFile struct {
	Name string
}

func (err ErrUnknownFile) Error() string {
	return fmt.Sprintf("file %q is not in the registry", err.Name)
}

// ErrNoBaseURL is returned when a registry entry has no URL of its own and
// the Pooch was built without a base URL.
type ErrNoBaseURL struct {
	Name string
}

func (err ErrNoBaseURL) Error() string {
	return fmt.Sprintf("no URL for %q: entry has no url and no base URL is configured", err.Name)
}

// ErrMalformedRegistry is returned when a registry text stream has a
// syntactically invalid line. Source is the stream's displayable name and
// Line is 1-based.
type ErrMalformedRegistry struct {
	Source  string
	Line    int
	Content string
	Reason  string
}

func (err ErrMalformedRegistry) Error() string {
	return fmt.Sprintf("%s:%d: %s: %q", err.Source, err.Line, err.Reason, err.Content)
}

// ErrHashMismatch is returned when freshly downloaded content does not
// digest to the registry's expectation after all retries. Path names the
// temporary file that held the offending bytes; it has been removed.
type ErrHashMismatch struct {
	Path     string
	Expected digest.Digest
	Actual   digest.Digest
}

func (err ErrHashMismatch) Error() string {
	return fmt.Sprintf("downloaded file %s has hash %s, expected %s", err.Path, err.Actual, err.Expected)
}

// ErrLocalHashMismatch is returned when an existing local file does not
// match the registry and updating is disabled. The local file is left
// untouched.
type ErrLocalHashMismatch struct {
	Path     string
	Expected digest.Digest
	Actual   digest.Digest
}

func (err ErrLocalHashMismatch) Error() string {
	return fmt.Sprintf("cached file %s has hash %s, expected %s, and updates are disabled", err.Path, err.Actual, err.Expected)
}
