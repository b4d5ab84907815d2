package listing

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cosmoscout/gaia-stars/internal/datasource/httpds"
)

const index = `<html><head><title>Index of /Gaia/gdr3/gaia_source</title></head>
<body><h1>Index of /Gaia/gdr3/gaia_source</h1>
<pre><a href="?C=N;O=D">Name</a> <a href="?C=M;O=A">Last modified</a>
<a href="../">Parent Directory</a>
<a href="_MD5SUM.txt">_MD5SUM.txt</a>
<a href="GaiaSource_000000-003111.csv.gz">GaiaSource_000000-003111.csv.gz</a>
<a href="GaiaSource_003112-005263.csv.gz">GaiaSource_003112-005263.csv.gz</a>
<a href="GaiaSource_000000-003111.csv.gz">duplicate</a>
<a href="/elsewhere/GaiaSource_999999-999999.csv.gz">outside</a>
<a href="GaiaSource_005264-006601.csv.gz?download=1">GaiaSource_005264-006601.csv.gz</a>
</pre></body></html>`

func TestParse_FiltersResolvesDedups(t *testing.T) {
	t.Parallel()

	got, err := Parse(strings.NewReader(index), "http://cdn.example/Gaia/gdr3/gaia_source", DefaultExt)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"http://cdn.example/Gaia/gdr3/gaia_source/GaiaSource_000000-003111.csv.gz",
		"http://cdn.example/Gaia/gdr3/gaia_source/GaiaSource_003112-005263.csv.gz",
		"http://cdn.example/Gaia/gdr3/gaia_source/GaiaSource_005264-006601.csv.gz",
	}, got)
}

func TestParse_OtherExtension(t *testing.T) {
	t.Parallel()

	got, err := Parse(strings.NewReader(index), "http://cdn.example/g/", ".txt")
	require.NoError(t, err)
	assert.Equal(t, []string{"http://cdn.example/g/_MD5SUM.txt"}, got)
}

func TestParse_NoLinks(t *testing.T) {
	t.Parallel()

	got, err := Parse(strings.NewReader("<html><body>empty</body></html>"), "http://x/", DefaultExt)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestHTTP_List(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/gaia_source/" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(index))
	}))
	defer srv.Close()

	client := httpds.NewClient(httpds.Config{Timeout: 2 * time.Second})
	got, err := New(client, srv.URL+"/gaia_source/", "").List(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, srv.URL+"/gaia_source/GaiaSource_000000-003111.csv.gz", got[0])

	_, err = New(client, srv.URL+"/missing/", "").List(context.Background())
	require.Error(t, err)
}
