// Package file contains helpers for reading local files as datasources:
// chunk files on disk, line-based lists of chunk locations and directories
// of chunk files.
package file

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// ReadList reads a text file line by line and returns a slice of strings
// containing non-empty, non-comment lines.
//
// Lines that are empty or start with '#' (after trimming leading/trailing
// whitespace) are skipped. This makes it convenient to maintain list files
// with comments and blank separators.
//
// The order of lines is preserved. On I/O error, a non-nil error is returned.
func ReadList(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var out []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		out = append(out, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// ListDir returns the regular files directly inside dir whose names end in
// suffix, as paths joined with dir and sorted by file name. An empty suffix
// matches every file. Subdirectories are not descended into.
func ListDir(dir, suffix string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", dir, err)
	}
	var out []string
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		if !strings.HasSuffix(e.Name(), suffix) {
			continue
		}
		out = append(out, filepath.Join(dir, e.Name()))
	}
	sort.Strings(out)
	return out, nil
}

// ListFile is a datasource.Lister over a list file read with ReadList.
type ListFile struct{ Path string }

// List implements datasource.Lister.
func (l ListFile) List(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return ReadList(l.Path)
}

// Dir is a datasource.Lister over a directory read with ListDir.
type Dir struct {
	Path   string
	Suffix string
}

// List implements datasource.Lister.
func (d Dir) List(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return ListDir(d.Path, d.Suffix)
}
