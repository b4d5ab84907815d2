package crossmatch

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cosmoscout/gaia-stars/internal/catalog"
)

const table = `source_id,original_ext_source_id,angular_distance,number_of_neighbours
7632157690368,1,0.0013,1
4295806720,2,0.0101,1
short
7632157690368,3,0.0200,2
`

func TestRead(t *testing.T) {
	t.Parallel()

	x, err := Read(strings.NewReader(table))
	require.NoError(t, err)
	assert.Equal(t, 2, x.Len())
	assert.Equal(t, 1, x.Skipped())

	id, ok := x.Lookup("4295806720")
	require.True(t, ok)
	assert.Equal(t, "2", id)

	id, ok = x.Lookup("7632157690368")
	require.True(t, ok)
	assert.Equal(t, "3", id, "later duplicates win")

	_, ok = x.Lookup("source_id")
	assert.False(t, ok, "header line must not be indexed")
}

func TestNilIndex(t *testing.T) {
	t.Parallel()

	var x *Index
	_, ok := x.Lookup("1")
	assert.False(t, ok)
	assert.Zero(t, x.Len())

	var l catalog.Lookup = x
	rec, reason := catalog.NewParser(l).Parse(
		catalog.Resolve(catalog.DefaultColumns.Names(), catalog.DefaultColumns),
		[]string{"1", "2", "3", "4", "5", "6"},
	)
	require.Equal(t, catalog.Accepted, reason)
	assert.Equal(t, catalog.NoMatch, rec.SecondaryID())
}

func TestLoad_MissingFileIsNotAnError(t *testing.T) {
	t.Parallel()

	x, err := Load(context.Background(), filepath.Join(t.TempDir(), "Hipparcos2BestNeighbour.csv"))
	require.NoError(t, err)
	assert.Nil(t, x)

	x, err = Load(context.Background(), "")
	require.NoError(t, err)
	assert.Nil(t, x)
}

func TestLoad_PlainAndGzip(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	plain := filepath.Join(dir, "xm.csv")
	require.NoError(t, os.WriteFile(plain, []byte(table), 0o600))

	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	_, err := zw.Write([]byte(table))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	gz := filepath.Join(dir, "xm.csv.gz")
	require.NoError(t, os.WriteFile(gz, buf.Bytes(), 0o600))

	for _, p := range []string{plain, gz} {
		x, err := Load(context.Background(), p)
		require.NoError(t, err, p)
		assert.Equal(t, 2, x.Len(), p)
	}
}

func TestNew_CopiesInput(t *testing.T) {
	t.Parallel()

	m := map[string]string{"a": "1"}
	x := New(m)
	m["a"] = "2"

	id, _ := x.Lookup("a")
	assert.Equal(t, "1", id)
}
