// Package datasource defines how chunk bytes and chunk locations are
// obtained. Concrete implementations live in the file, httpds and listing
// subpackages.
package datasource

import (
	"context"
	"io"
	"net/url"
	"strings"
)

// Source opens one chunk for reading.
type Source interface {
	Open(ctx context.Context) (io.ReadCloser, error)
}

// Lister enumerates chunk locations in the order they must be processed.
type Lister interface {
	List(ctx context.Context) ([]string, error)
}

// ListerFunc adapts a function to Lister.
type ListerFunc func(ctx context.Context) ([]string, error)

// List calls f(ctx).
func (f ListerFunc) List(ctx context.Context) ([]string, error) { return f(ctx) }

// IsRemote reports whether loc is an http(s) URL rather than a local path.
func IsRemote(loc string) bool {
	u, err := url.Parse(loc)
	if err != nil {
		return false
	}
	s := strings.ToLower(u.Scheme)
	return s == "http" || s == "https"
}
