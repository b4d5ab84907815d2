package chunk

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ulikunitz/xz"
	"github.com/zeebo/xxh3"
)

const payload = "source_id,ra,dec\n1,10.5,-3.2\n2,11.0,4.4\n"

func compress(t *testing.T, codec Codec, data string) []byte {
	t.Helper()
	var buf bytes.Buffer
	var w io.WriteCloser
	var err error
	switch codec {
	case Gzip:
		w = gzip.NewWriter(&buf)
	case Zstd:
		w, err = zstd.NewWriter(&buf)
	case Xz:
		w, err = xz.NewWriter(&buf)
	default:
		return []byte(data)
	}
	require.NoError(t, err)
	_, err = io.WriteString(w, data)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func TestCodecFor(t *testing.T) {
	t.Parallel()

	cases := map[string]Codec{
		"GaiaSource_000000-003111.csv.gz":                    Gzip,
		"http://cdn.example/x/GaiaSource.csv.gz?download=1": Gzip,
		"/data/chunk.CSV.ZST":                                Zstd,
		"chunk.csv.xz":                                       Xz,
		"chunk.csv.bz2":                                      Bzip2,
		"chunk.csv":                                          Plain,
		"Hipparcos2BestNeighbour.csv":                        Plain,
	}
	for name, want := range cases {
		assert.Equal(t, want, CodecFor(name), name)
	}
	assert.Equal(t, "zstd", Zstd.String())
	assert.Equal(t, "plain", Plain.String())
}

func TestDecode_RoundTrip(t *testing.T) {
	t.Parallel()

	for name, codec := range map[string]Codec{
		"c.csv.gz": Gzip, "c.csv.zst": Zstd, "c.csv.xz": Xz, "c.csv": Plain,
	} {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			rc, err := Decode(name, bytes.NewReader(compress(t, codec, payload)))
			require.NoError(t, err)
			defer rc.Close()
			got, err := io.ReadAll(rc)
			require.NoError(t, err)
			assert.Equal(t, payload, string(got))
		})
	}
}

func TestDecode_BadHeader(t *testing.T) {
	t.Parallel()

	_, err := Decode("c.csv.gz", bytes.NewReader([]byte("not gzip at all")))
	require.Error(t, err)
}

type fakeDownloader struct {
	bodies map[string][]byte
	err    error
	calls  int
}

func (f *fakeDownloader) Download(_ context.Context, url string, w io.Writer) (int64, error) {
	f.calls++
	if f.err != nil {
		_, _ = w.Write([]byte("partial"))
		return 7, f.err
	}
	n, err := w.Write(f.bodies[url])
	return int64(n), err
}

func TestAcquire_RemoteGzip(t *testing.T) {
	t.Parallel()

	const url = "http://cdn.example/gaia_source/GaiaSource_000000-003111.csv.gz"
	body := compress(t, Gzip, payload)
	dl := &fakeDownloader{bodies: map[string][]byte{url: body}}
	s := NewStager(dl, filepath.Join(t.TempDir(), "staging"), nil)
	require.NoError(t, s.Prepare())

	st, err := s.Acquire(context.Background(), url)
	require.NoError(t, err)
	assert.Equal(t, Gzip, st.Codec)
	assert.Equal(t, int64(len(body)), st.RawBytes)
	assert.Equal(t, int64(len(payload)), st.Size)
	assert.Equal(t, xxh3.HashString(payload), st.Digest)

	rc, err := st.Open(context.Background())
	require.NoError(t, err)
	got, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	assert.Equal(t, payload, string(got))

	// only the decoded file remains in staging
	entries, err := os.ReadDir(s.Dir())
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, filepath.Base(st.Path), entries[0].Name())

	require.NoError(t, st.Remove())
	_, err = os.Stat(st.Path)
	assert.True(t, errors.Is(err, os.ErrNotExist))

	require.NoError(t, s.Cleanup())
	_, err = os.Stat(s.Dir())
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestAcquire_TruncatedArchiveLeavesNothing(t *testing.T) {
	t.Parallel()

	const url = "http://cdn.example/GaiaSource_1.csv.gz"
	body := compress(t, Gzip, payload)
	dl := &fakeDownloader{bodies: map[string][]byte{url: body[:len(body)/2]}}
	s := NewStager(dl, t.TempDir(), nil)

	_, err := s.Acquire(context.Background(), url)
	require.Error(t, err)

	entries, err := os.ReadDir(s.Dir())
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestAcquire_FailedRestageKeepsPreviousFile(t *testing.T) {
	t.Parallel()

	src := filepath.Join(t.TempDir(), "GaiaSource_2.csv.gz")
	good := compress(t, Gzip, payload)
	require.NoError(t, os.WriteFile(src, good, 0o644))

	s := NewStager(nil, t.TempDir(), nil)
	st, err := s.Acquire(context.Background(), src)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(src, good[:len(good)/2], 0o644))
	_, err = s.Acquire(context.Background(), src)
	require.Error(t, err)

	got, err := os.ReadFile(st.Path)
	require.NoError(t, err)
	assert.Equal(t, payload, string(got))

	entries, err := os.ReadDir(s.Dir())
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, filepath.Base(st.Path), entries[0].Name())
}

func TestAcquire_DownloadError(t *testing.T) {
	t.Parallel()

	boom := errors.New("connection reset by peer")
	s := NewStager(&fakeDownloader{err: boom}, t.TempDir(), nil)

	_, err := s.Acquire(context.Background(), "https://cdn.example/x.csv.gz")
	require.ErrorIs(t, err, boom)

	entries, err := os.ReadDir(s.Dir())
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestAcquire_RemoteWithoutDownloader(t *testing.T) {
	t.Parallel()

	s := NewStager(nil, t.TempDir(), nil)
	_, err := s.Acquire(context.Background(), "https://cdn.example/x.csv.gz")
	require.Error(t, err)
}

func TestAcquire_LocalFiles(t *testing.T) {
	t.Parallel()

	src := t.TempDir()
	plain := filepath.Join(src, "chunk.csv")
	require.NoError(t, os.WriteFile(plain, []byte(payload), 0o644))
	zst := filepath.Join(src, "chunk.csv.zst")
	require.NoError(t, os.WriteFile(zst, compress(t, Zstd, payload), 0o644))

	s := NewStager(nil, filepath.Join(t.TempDir(), "staging"), nil)
	require.NoError(t, s.Prepare())

	st, err := s.Acquire(context.Background(), plain)
	require.NoError(t, err)
	assert.Equal(t, plain, st.Path, "plain local files are read in place")
	require.NoError(t, st.Remove())
	_, err = os.Stat(plain)
	require.NoError(t, err, "Remove must not delete a file read in place")

	st, err = s.Acquire(context.Background(), zst)
	require.NoError(t, err)
	assert.Equal(t, s.Dir(), filepath.Dir(st.Path))
	got, err := os.ReadFile(st.Path)
	require.NoError(t, err)
	assert.Equal(t, payload, string(got))
	assert.Zero(t, st.RawBytes)

	_, err = s.Acquire(context.Background(), filepath.Join(src, "missing.csv"))
	require.Error(t, err)
}

func TestAcquire_Canceled(t *testing.T) {
	t.Parallel()

	src := filepath.Join(t.TempDir(), "chunk.csv.gz")
	require.NoError(t, os.WriteFile(src, compress(t, Gzip, payload), 0o644))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewStager(nil, t.TempDir(), nil).Acquire(ctx, src)
	require.ErrorIs(t, err, context.Canceled)
}
