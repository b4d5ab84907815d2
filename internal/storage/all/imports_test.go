package all

import (
	"slices"
	"testing"

	"github.com/cosmoscout/gaia-stars/internal/storage"
)

func TestBackendsRegistered(t *testing.T) {
	kinds := storage.ListKinds()
	for _, want := range []string{"mssql", "mysql", "postgres", "sqlite"} {
		if !slices.Contains(kinds, want) {
			t.Errorf("kind %q not registered (have %v)", want, kinds)
		}
	}
}
