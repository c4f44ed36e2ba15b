package digest

import (
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"fmt"
	"hash"

	"github.com/cespare/xxhash/v2"
	"github.com/zeebo/xxh3"
)

// Algorithm identifies a supported hashing algorithm. The zero value is not
// a valid algorithm; obtain values through ParseAlgorithm or the package
// constants.
type Algorithm string

const (
	SHA256 Algorithm = "sha256"
	SHA1   Algorithm = "sha1"
	MD5    Algorithm = "md5"
	SHA512 Algorithm = "sha512"
	XXH64  Algorithm = "xxh64"
	XXH128 Algorithm = "xxh128"

	// Canonical is the algorithm assumed for bare hex digests.
	Canonical = SHA256
)

// hexSizes maps each algorithm to the length of its lowercase hex digest.
var hexSizes = map[Algorithm]int{
	SHA256: sha256.Size * 2,
	SHA1:   sha1.Size * 2,
	MD5:    md5.Size * 2,
	SHA512: sha512.Size * 2,
	XXH64:  16,
	XXH128: 32,
}

// ParseAlgorithm returns the Algorithm named by s. Unknown names fail here,
// at construction, rather than at hashing time.
func ParseAlgorithm(s string) (Algorithm, error) {
	a := Algorithm(s)
	if _, ok := hexSizes[a]; !ok {
		return "", fmt.Errorf("%w: %q", ErrAlgorithmUnsupported, s)
	}
	return a, nil
}

// Available reports whether a is a supported algorithm.
func (a Algorithm) Available() bool {
	_, ok := hexSizes[a]
	return ok
}

// HexSize returns the length of a's hex encoded digest.
func (a Algorithm) HexSize() int {
	return hexSizes[a]
}

// Hash returns a new hash.Hash for the algorithm. It panics for unsupported
// algorithms; ParseAlgorithm gates all externally supplied names.
func (a Algorithm) Hash() hash.Hash {
	switch a {
	case SHA256:
		return sha256.New()
	case SHA1:
		return sha1.New()
	case MD5:
		return md5.New()
	case SHA512:
		return sha512.New()
	case XXH64:
		return xxhash.New()
	case XXH128:
		return &xxh128{h: xxh3.New()}
	}
	panic(fmt.Sprintf("digest: unsupported algorithm %q", string(a)))
}

// xxh128 adapts xxh3's 128-bit hasher to hash.Hash, summing to the
// canonical big-endian byte order.
type xxh128 struct {
	h *xxh3.Hasher
}

func (x *xxh128) Write(p []byte) (int, error) { return x.h.Write(p) }

func (x *xxh128) Sum(b []byte) []byte {
	s := x.h.Sum128().Bytes()
	return append(b, s[:]...)
}

func (x *xxh128) Reset()         { x.h.Reset() }
func (x *xxh128) Size() int      { return 16 }
func (x *xxh128) BlockSize() int { return x.h.BlockSize() }
