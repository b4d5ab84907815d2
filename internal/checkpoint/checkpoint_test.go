package checkpoint

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cosmoscout/gaia-stars/internal/catalog"
	"github.com/cosmoscout/gaia-stars/internal/reservoir"
)

func star(t *testing.T, id, mag, hip string) catalog.StarRecord {
	t.Helper()
	rec, err := catalog.NewStarRecord(catalog.Values{id, "45.1", "-12.3", "3.2", mag, "0.81"}, hip)
	require.NoError(t, err)
	return rec
}

func sampleState(t *testing.T) *State {
	recs := []catalog.StarRecord{star(t, "42", "3.125", "7"), star(t, "43", "4.50", "")}
	return &State{
		Version:       Version,
		Job:           "dr3",
		CreatedAt:     time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
		NextChunk:     3,
		LocationsHash: HashLocations([]string{"a.csv.gz", "b.csv.gz", "c.csv.gz", "d.csv.gz"}),
		TargetCount:   2,
		CapacityRatio: 2,
		Counters: Counters{
			Chunks: 3, Rows: 10, Accepted: 6, ParseErrors: 1, Retries: 2, Headerless: 1,
			Rejected: map[string]int64{"null_field": 3},
		},
		Reservoir: reservoir.Stats{Inserted: 6, Compactions: 1, Evicted: 4},
		Records:   FromRecords(recs),
	}
}

func TestSaveLoad_RoundTrip(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "nested", "run.ckpt.lz4")
	want := sampleState(t)
	require.NoError(t, Save(path, want))

	got, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	recs, err := got.StarRecords()
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "7", recs[0].SecondaryID())
	assert.Equal(t, catalog.NoMatch, recs[1].SecondaryID())
	assert.Equal(t, "3.125", recs[0].MagnitudeKey().String())

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp files must not be left behind")
}

func TestSave_ReplacesPrevious(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "run.ckpt")
	s := sampleState(t)
	require.NoError(t, Save(path, s))
	s.NextChunk = 4
	require.NoError(t, Save(path, s))

	got, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 4, got.NextChunk)
}

func TestLoad_NotFound(t *testing.T) {
	t.Parallel()

	_, err := Load(filepath.Join(t.TempDir(), "none"))
	require.ErrorIs(t, err, ErrNotFound)
}

func TestLoad_Corrupt(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "bad.ckpt")
	require.NoError(t, os.WriteFile(path, []byte("definitely not lz4"), 0o644))
	_, err := Load(path)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)
}

func TestCheck(t *testing.T) {
	t.Parallel()

	s := sampleState(t)
	hash := s.LocationsHash
	require.NoError(t, s.Check(hash, 2, 2))

	require.ErrorIs(t, s.Check(HashLocations([]string{"a.csv.gz"}), 2, 2), ErrMismatch)
	require.ErrorIs(t, s.Check(hash, 3, 2), ErrMismatch)
	require.ErrorIs(t, s.Check(hash, 2, 1.5), ErrMismatch)

	s.Version = 99
	require.ErrorIs(t, s.Check(hash, 2, 2), ErrMismatch)
}

func TestHashLocations(t *testing.T) {
	t.Parallel()

	a := HashLocations([]string{"x", "y"})
	assert.Equal(t, a, HashLocations([]string{"x", "y"}))
	assert.NotEqual(t, a, HashLocations([]string{"y", "x"}))
	assert.NotEqual(t, a, HashLocations([]string{"xy"}))
	assert.NotEqual(t, HashLocations(nil), HashLocations([]string{""}))
}

func TestStarRecords_RejectsTamperedRecord(t *testing.T) {
	t.Parallel()

	s := sampleState(t)
	s.Records[1].Values[catalog.Magnitude] = "bright"
	_, err := s.StarRecords()
	require.ErrorIs(t, err, catalog.ErrBadMagnitude)
}

func TestRemove(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "run.ckpt")
	require.NoError(t, Save(path, sampleState(t)))
	require.NoError(t, Remove(path))
	require.NoError(t, Remove(path))
	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestDescribe(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "next_chunk=3 records=2 rows=10 saved=2024-05-01T12:00:00Z", sampleState(t).Describe())
}
