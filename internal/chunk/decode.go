// Package chunk stages catalogue chunks on local disk and decodes their
// compression so the ingestion loop can stream plain CSV from a file.
package chunk

import (
	"compress/bzip2"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/ulikunitz/xz"
)

// Codec identifies the compression of a chunk file.
type Codec uint8

const (
	Plain Codec = iota
	Gzip
	Zstd
	Xz
	Bzip2
)

func (c Codec) String() string {
	switch c {
	case Gzip:
		return "gzip"
	case Zstd:
		return "zstd"
	case Xz:
		return "xz"
	case Bzip2:
		return "bzip2"
	default:
		return "plain"
	}
}

// CodecFor picks the codec from the extension of name, which may be a path
// or a URL (its query and fragment are ignored).
func CodecFor(name string) Codec {
	if u, err := url.Parse(name); err == nil && u.Path != "" {
		name = u.Path
	}
	name = strings.ToLower(name)
	switch {
	case strings.HasSuffix(name, ".gz"), strings.HasSuffix(name, ".gzip"):
		return Gzip
	case strings.HasSuffix(name, ".zst"), strings.HasSuffix(name, ".zstd"):
		return Zstd
	case strings.HasSuffix(name, ".xz"):
		return Xz
	case strings.HasSuffix(name, ".bz2"):
		return Bzip2
	default:
		return Plain
	}
}

// Decode wraps r with the decompressor matching name's extension. Closing
// the result releases the decoder only; r stays open.
func Decode(name string, r io.Reader) (io.ReadCloser, error) {
	switch CodecFor(name) {
	case Gzip:
		gz, err := gzip.NewReader(r)
		if err != nil {
			return nil, fmt.Errorf("create gzip reader: %w", err)
		}
		return gz, nil
	case Zstd:
		dec, err := zstd.NewReader(r)
		if err != nil {
			return nil, fmt.Errorf("create zstd reader: %w", err)
		}
		return closerFunc{Reader: dec, close: func() error { dec.Close(); return nil }}, nil
	case Xz:
		xr, err := xz.NewReader(r)
		if err != nil {
			return nil, fmt.Errorf("create xz reader: %w", err)
		}
		return io.NopCloser(xr), nil
	case Bzip2:
		return io.NopCloser(bzip2.NewReader(r)), nil
	default:
		return io.NopCloser(r), nil
	}
}

type closerFunc struct {
	io.Reader
	close func() error
}

func (c closerFunc) Close() error { return c.close() }
