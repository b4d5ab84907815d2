// Package listing enumerates catalogue chunks published as an HTML
// directory index (Apache/nginx autoindex style).
package listing

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/cosmoscout/gaia-stars/internal/datasource/httpds"
)

// DefaultExt is the suffix of the Gaia DR3 gaia_source chunk files.
const DefaultExt = ".csv.gz"

// Getter is the slice of *httpds.Client the listing needs.
type Getter interface {
	Get(ctx context.Context, url string, headers http.Header) (*http.Response, error)
}

// HTTP lists the chunk files linked from the index page at URL.
type HTTP struct {
	client Getter
	url    string
	ext    string
}

// New returns a lister for the index at indexURL keeping links that end in
// ext. An empty ext means DefaultExt.
func New(client Getter, indexURL, ext string) *HTTP {
	if ext == "" {
		ext = DefaultExt
	}
	return &HTTP{client: client, url: indexURL, ext: ext}
}

var _ Getter = (*httpds.Client)(nil)

// List fetches the index page and returns absolute chunk URLs in document
// order, without duplicates.
func (h *HTTP) List(ctx context.Context) ([]string, error) {
	resp, err := h.client.Get(ctx, h.url, http.Header{"Accept": []string{"text/html"}})
	if err != nil {
		return nil, fmt.Errorf("listing: fetch %s: %w", h.url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("listing: %s returned %s", h.url, resp.Status)
	}
	return Parse(resp.Body, h.url, h.ext)
}

// Parse extracts the links ending in ext from the HTML in r and resolves
// them against indexURL, which is treated as a directory even without a
// trailing slash. Query strings and fragments are ignored when matching the
// suffix; links pointing at a parent directory are skipped.
func Parse(r io.Reader, indexURL, ext string) ([]string, error) {
	base, err := url.Parse(indexURL)
	if err != nil {
		return nil, fmt.Errorf("listing: bad index url %q: %w", indexURL, err)
	}
	if !strings.HasSuffix(base.Path, "/") {
		base.Path += "/"
	}

	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("listing: parse document: %w", err)
	}

	var out []string
	seen := map[string]struct{}{}
	doc.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		href = strings.TrimSpace(href)
		if href == "" || strings.HasPrefix(href, "../") {
			return
		}
		ref, err := url.Parse(href)
		if err != nil || !strings.HasSuffix(ref.Path, ext) {
			return
		}
		abs := base.ResolveReference(ref)
		abs.RawQuery, abs.Fragment = "", ""
		if !strings.HasPrefix(abs.Path, base.Path) {
			return
		}
		s := abs.String()
		if _, dup := seen[s]; dup {
			return
		}
		seen[s] = struct{}{}
		out = append(out, s)
	})
	return out, nil
}
