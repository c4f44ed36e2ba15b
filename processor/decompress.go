package processor

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/dsnet/compress/bzip2"
	"github.com/klauspost/compress/gzip"
	"github.com/ulikunitz/xz"
	"github.com/ulikunitz/xz/lzma"

	"github.com/fatiando/pooch"
)

// Method names a compression format handled by Decompress.
type Method string

const (
	// Auto picks the method from the file suffix.
	Auto  Method = "auto"
	Gzip  Method = "gzip"
	Bzip2 Method = "bzip2"
	XZ    Method = "xz"
	LZMA  Method = "lzma"
)

// methodBySuffix maps file suffixes to their methods for Auto detection.
var methodBySuffix = map[string]Method{
	".gz":   Gzip,
	".bz2":  Bzip2,
	".xz":   XZ,
	".lzma": LZMA,
}

// Decompress writes a decompressed copy of the fetched file next to it and
// returns the copy's path in place of the original. The original is never
// modified.
type Decompress struct {
	// Method selects the compression format. Empty or Auto detects it
	// from the file suffix.
	Method Method
	// Name, when set, is the output file name, relative to the fetched
	// file's directory. Defaults to the fetched name plus ".decomp".
	Name string
}

// NewDecompress returns a Decompress with suffix auto-detection.
func NewDecompress() *Decompress {
	return &Decompress{Method: Auto}
}

// Process implements pooch.Processor.
func (d *Decompress) Process(ctx context.Context, path string, action pooch.Action) ([]string, error) {
	out := path + ".decomp"
	if d.Name != "" {
		out = filepath.Join(filepath.Dir(path), d.Name)
	}
	if action == pooch.Fetched && exists(out) {
		return []string{out}, nil
	}

	method := d.Method
	if method == "" {
		method = Auto
	}
	if method == Auto {
		m, ok := methodBySuffix[strings.ToLower(filepath.Ext(path))]
		if !ok {
			return nil, fmt.Errorf("cannot detect the compression method from %q", filepath.Base(path))
		}
		method = m
	}

	in, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer in.Close()

	r, err := newReader(method, in)
	if err != nil {
		return nil, fmt.Errorf("decompressing %s as %s: %w", path, method, err)
	}

	err = writeFileAtomic(out, func(f *os.File) error {
		_, err := io.Copy(f, r)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("decompressing %s as %s: %w", path, method, err)
	}
	return []string{out}, nil
}

func newReader(method Method, in io.Reader) (io.Reader, error) {
	switch method {
	case Gzip:
		return gzip.NewReader(in)
	case Bzip2:
		return bzip2.NewReader(in, nil)
	case XZ:
		return xz.NewReader(in)
	case LZMA:
		return lzma.NewReader(in)
	}
	return nil, fmt.Errorf("unknown compression method %q", method)
}
