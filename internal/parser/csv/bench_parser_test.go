package csv

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"
)

func buildChunk(n int) []byte {
	var sb strings.Builder
	sb.Grow(n * 96)
	for i := 0; i < DefaultPreambleLines; i++ {
		sb.WriteString("# {\"name\": \"meta\", \"datatype\": \"float64\"}\n")
	}
	sb.WriteString("solution_id,source_id,ra,dec,parallax,phot_g_mean_mag,bp_rp\n")
	for i := 0; i < n; i++ {
		sb.WriteString("1636148068921376768,4295806720,44.99615537864534,0.005615226341865997,null,17.64131,1.2153606\n")
	}
	return []byte(sb.String())
}

func BenchmarkStreamRows(b *testing.B) {
	b.ReportAllocs()
	data := buildChunk(50_000)
	b.SetBytes(int64(len(data)))

	for i := 0; i < b.N; i++ {
		n := 0
		_, err := StreamRows(context.Background(), io.NopCloser(bytes.NewReader(data)),
			Options{PreambleLines: DefaultPreambleLines}, nil,
			func(int, []string) error { n++; return nil }, nil)
		if err != nil {
			b.Fatal(err)
		}
		if n == 0 {
			b.Fatalf("no rows parsed")
		}
	}
}
