// Package digest provides hash specifiers of the form "algorithm:hex" used
// to verify the integrity of fetched data files.
//
// The following is an example of the contents of Digest types:
//
//	sha256:baee0894dba14b12085eacb204284b97e362f4f3e5a5807693cc90ef415c1b2d
//
// A bare hex digest is accepted on parsing and normalized to the canonical
// sha256 algorithm. The special value Unknown opts a file out of
// verification entirely.
package digest

import (
	"bufio"
	"errors"
	"fmt"
	"hash"
	"io"
	"os"
	"strings"
)

// Digest holds a hex formatted digest string prefixed by its algorithm.
// Values of type Digest produced by this package are always lowercase.
type Digest string

// Unknown is the sentinel digest that is never checked: it matches any file.
const Unknown Digest = "unknown"

var (
	// ErrDigestInvalidFormat is returned when the digest format is invalid.
	ErrDigestInvalidFormat = errors.New("invalid hash specifier format")

	// ErrAlgorithmUnsupported is returned when a specifier names an
	// algorithm this package does not implement.
	ErrAlgorithmUnsupported = errors.New("unsupported hash algorithm")
)

// readBufferSize bounds the memory used when digesting arbitrarily large
// files.
const readBufferSize = 64 * 1024

// NewDigest returns a Digest from alg and the current state of h.
func NewDigest(alg Algorithm, h hash.Hash) Digest {
	return Digest(fmt.Sprintf("%s:%x", alg, h.Sum(nil)))
}

// Parse parses s and returns a validated, lowercase Digest. A specifier
// without an "algorithm:" prefix is interpreted as a canonical (sha256)
// digest and must carry the matching hex length. The sentinel "unknown"
// parses to Unknown.
func Parse(s string) (Digest, error) {
	s = strings.ToLower(s)
	if Digest(s) == Unknown {
		return Unknown, nil
	}

	alg := Canonical
	hex := s
	if i := strings.IndexByte(s, ':'); i >= 0 {
		var err error
		alg, err = ParseAlgorithm(s[:i])
		if err != nil {
			return "", err
		}
		hex = s[i+1:]
	}

	if len(hex) != alg.HexSize() || !isHex(hex) {
		return "", fmt.Errorf("%w: %q", ErrDigestInvalidFormat, s)
	}
	return Digest(string(alg) + ":" + hex), nil
}

// IsSpec reports whether s parses as a hash specifier. Registry parsing
// uses this to locate the hash token on a line.
func IsSpec(s string) bool {
	_, err := Parse(s)
	return err == nil
}

func isHex(s string) bool {
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return len(s) > 0
}

// Algorithm returns the algorithm portion of the digest. The result is the
// empty string for the Unknown sentinel.
func (d Digest) Algorithm() Algorithm {
	if i := strings.IndexByte(string(d), ':'); i >= 0 {
		return Algorithm(d[:i])
	}
	return ""
}

// Hex returns the hex portion of the digest.
func (d Digest) Hex() string {
	if i := strings.IndexByte(string(d), ':'); i >= 0 {
		return string(d[i+1:])
	}
	return string(d)
}

func (d Digest) String() string { return string(d) }

// FromReader digests rd under alg, streaming through a bounded buffer.
func FromReader(alg Algorithm, rd io.Reader) (Digest, error) {
	h := alg.Hash()
	buf := make([]byte, readBufferSize)
	if _, err := io.CopyBuffer(h, rd, buf); err != nil {
		return "", err
	}
	return NewDigest(alg, h), nil
}

// FromFile digests the file at path under alg.
func FromFile(alg Algorithm, path string) (Digest, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	return FromReader(alg, bufio.NewReaderSize(f, readBufferSize))
}

// MatchesFile reports whether the file at path digests to d under d's own
// algorithm. The Unknown sentinel matches any file, including a missing
// one.
func (d Digest) MatchesFile(path string) (bool, error) {
	if d == Unknown {
		return true, nil
	}
	actual, err := FromFile(d.Algorithm(), path)
	if err != nil {
		return false, err
	}
	return actual == d, nil
}
