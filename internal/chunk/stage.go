package chunk

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/google/renameio/v2"
	"github.com/zeebo/xxh3"

	"github.com/cosmoscout/gaia-stars/internal/datasource"
	"github.com/cosmoscout/gaia-stars/internal/datasource/file"
	"github.com/cosmoscout/gaia-stars/internal/datasource/httpds"
)

// Downloader fetches a remote location into w. *httpds.Client implements it.
type Downloader interface {
	Download(ctx context.Context, url string, w io.Writer) (int64, error)
}

var _ Downloader = (*httpds.Client)(nil)

// Stager turns a chunk location into a fully decoded CSV file on disk.
//
// Decoding happens completely before Acquire returns, so a corrupt or
// truncated archive fails Acquire (and is retried by the caller) instead of
// failing halfway through the rows.
type Stager struct {
	dl     Downloader
	dir    string
	logger *slog.Logger
}

// NewStager returns a Stager writing into dir. dl may be nil when only local
// locations are used.
func NewStager(dl Downloader, dir string, logger *slog.Logger) *Stager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Stager{dl: dl, dir: dir, logger: logger}
}

// Dir is the staging directory.
func (s *Stager) Dir() string { return s.dir }

// Prepare creates the staging directory.
func (s *Stager) Prepare() error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("chunk: create staging dir: %w", err)
	}
	return nil
}

// Cleanup removes the staging directory and everything in it.
func (s *Stager) Cleanup() error {
	if err := os.RemoveAll(s.dir); err != nil {
		return fmt.Errorf("chunk: remove staging dir: %w", err)
	}
	return nil
}

// Staged is a decoded chunk ready for streaming.
type Staged struct {
	Location string // where the chunk came from
	Path     string // decoded CSV on local disk
	Codec    Codec
	RawBytes int64  // bytes downloaded (0 for local files)
	Size     int64  // bytes of decoded CSV
	Digest   uint64 // xxh3 of the decoded CSV, 0 when read in place

	owned bool
}

// Open opens the decoded CSV with sequential-read hints.
func (st *Staged) Open(ctx context.Context) (io.ReadCloser, error) {
	return file.NewLocal(st.Path).Open(ctx)
}

// Remove deletes the staged file. Files read in place are left alone.
func (st *Staged) Remove() error {
	if st == nil || !st.owned {
		return nil
	}
	if err := os.Remove(st.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("chunk: remove %s: %w", st.Path, err)
	}
	return nil
}

// Acquire stages loc. Remote locations are downloaded, then decoded; local
// compressed files are decoded; local plain files are used in place.
// Partial files are removed on failure.
func (s *Stager) Acquire(ctx context.Context, loc string) (*Staged, error) {
	codec := CodecFor(loc)
	remote := datasource.IsRemote(loc)

	if !remote && codec == Plain {
		fi, err := os.Stat(loc)
		if err != nil {
			return nil, fmt.Errorf("chunk: %w", err)
		}
		return &Staged{Location: loc, Path: loc, Codec: Plain, Size: fi.Size()}, nil
	}

	name := httpds.SafeFilenameFromURL(loc)
	st := &Staged{
		Location: loc,
		Path:     filepath.Join(s.dir, name+".csv"),
		Codec:    codec,
		owned:    true,
	}

	src := loc
	if remote {
		if s.dl == nil {
			return nil, fmt.Errorf("chunk: no downloader configured for %s", loc)
		}
		raw := filepath.Join(s.dir, name+".part")
		n, err := s.download(ctx, loc, raw)
		if err != nil {
			return nil, err
		}
		st.RawBytes = n
		defer os.Remove(raw)
		src = raw
	}

	in, err := file.NewLocal(src).Open(ctx)
	if err != nil {
		return nil, fmt.Errorf("chunk: %w", err)
	}
	defer in.Close()

	dec, err := Decode(loc, in)
	if err != nil {
		return nil, fmt.Errorf("chunk %s: %w", loc, err)
	}
	defer dec.Close()

	size, digest, err := writeFile(ctx, st.Path, dec)
	if err != nil {
		return nil, fmt.Errorf("chunk %s: decode %s: %w", loc, codec, err)
	}
	st.Size, st.Digest = size, digest

	s.logger.Debug("chunk staged",
		"location", loc, "codec", codec.String(),
		"raw_bytes", st.RawBytes, "csv_bytes", st.Size,
		"xxh3", fmt.Sprintf("%016x", st.Digest))
	return st, nil
}

func (s *Stager) download(ctx context.Context, url, path string) (int64, error) {
	f, err := os.Create(path)
	if err != nil {
		return 0, fmt.Errorf("chunk: create %s: %w", path, err)
	}
	n, err := s.dl.Download(ctx, url, f)
	if cerr := f.Close(); err == nil && cerr != nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(path)
		return n, fmt.Errorf("chunk: download %s: %w", url, err)
	}
	return n, nil
}

// writeFile copies r into path through a pending file, hashing as it goes,
// and replaces path only when the whole stream decoded cleanly.
func writeFile(ctx context.Context, path string, r io.Reader) (int64, uint64, error) {
	pf, err := renameio.NewPendingFile(path, renameio.WithTempDir(filepath.Dir(path)))
	if err != nil {
		return 0, 0, err
	}
	defer pf.Cleanup()

	h := xxh3.New()
	n, err := io.Copy(io.MultiWriter(pf, h), ctxReader{ctx: ctx, r: r})
	if err != nil {
		return n, 0, err
	}
	if err := pf.CloseAtomicallyReplace(); err != nil {
		return n, 0, err
	}
	return n, h.Sum64(), nil
}

// ctxReader stops a long copy once ctx is done.
type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
