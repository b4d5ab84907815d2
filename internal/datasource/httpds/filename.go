package httpds

import (
	"net/url"
	"path"
	"regexp"
	"strconv"
	"strings"

	"github.com/zeebo/xxh3"
)

// filenameCleaner replaces sequences of characters outside [A-Za-z0-9._-]
// with "_".
var filenameCleaner = regexp.MustCompile(`[^a-zA-Z0-9._-]+`)

// HashString returns a stable 16-character xxh3 hex digest of s.
func HashString(s string) string {
	h := strconv.FormatUint(xxh3.HashString(s), 16)
	return strings.Repeat("0", 16-len(h)) + h
}

// SafeFilenameFromURL derives a filesystem-safe staging name from a chunk
// location. The last path segment is kept so staged files stay recognisable
// ("GaiaSource_000000-003111.csv.gz"), and an 8-character hash of the full
// location is prepended so two mirrors serving the same file name never
// collide. Locations without a usable base name fall back to the full hash.
func SafeFilenameFromURL(rawURL string) string {
	base := ""
	if u, err := url.Parse(rawURL); err == nil {
		base = path.Base(u.Path)
	}
	if base == "." || base == "/" {
		base = ""
	}
	clean := strings.Trim(filenameCleaner.ReplaceAllString(base, "_"), "._")
	if clean == "" {
		return HashString(rawURL)
	}
	return HashString(rawURL)[:8] + "_" + clean
}
