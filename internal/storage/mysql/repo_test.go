package mysql

import (
	"context"
	"os"
	"strings"
	"testing"

	"github.com/cosmoscout/gaia-stars/internal/storage"
)

// TestMyIdent verifies that myIdent backtick-quotes identifiers and escapes
// backticks by doubling them.
func TestMyIdent(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"simple", "`simple`"},
		{"tick`name", "`tick``name`"},
		{"weird``x", "`weird````x`"},
	}
	for _, tc := range cases {
		if got := myIdent(tc.in); got != tc.want {
			t.Fatalf("myIdent(%q) = %q; want %q", tc.in, got, tc.want)
		}
	}
	if got := myFQN("gaia.brightest_stars"); got != "`gaia`.`brightest_stars`" {
		t.Fatalf("myFQN = %q", got)
	}
}

func TestInsertStatements_SplitsAtPlaceholderLimit(t *testing.T) {
	cols := make([]string, 40000)
	for i := range cols {
		cols[i] = "c"
	}
	row := make([]any, len(cols))
	stmts, args, err := insertStatements("t", cols, [][]any{row, row, row})
	if err != nil {
		t.Fatalf("insertStatements: %v", err)
	}
	// 65535/40000 = 1 row per statement.
	if len(stmts) != 3 || len(args) != 3 || len(args[0]) != 40000 {
		t.Fatalf("got %d statements, %d arg sets", len(stmts), len(args))
	}
}

func TestInsertStatements_MultiRow(t *testing.T) {
	stmts, args, err := insertStatements("stars", []string{"rank", "mag"}, [][]any{{int64(1), "0.5"}, {int64(2), "1.5"}})
	if err != nil {
		t.Fatalf("insertStatements: %v", err)
	}
	if len(stmts) != 1 {
		t.Fatalf("got %d statements, want 1", len(stmts))
	}
	if stmts[0] != "INSERT INTO `stars` (`rank`,`mag`) VALUES (?,?),(?,?)" {
		t.Fatalf("stmt = %q", stmts[0])
	}
	if len(args[0]) != 4 {
		t.Fatalf("args = %v", args[0])
	}

	if _, _, err := insertStatements("stars", []string{"rank", "mag"}, [][]any{{1}}); err == nil {
		t.Fatal("expected row width error")
	}
}

func TestBuildCreateTableSQL(t *testing.T) {
	got, err := BuildCreateTableSQL(storage.ExtractTable("brightest_stars", []string{"source_id"}))
	if err != nil {
		t.Fatalf("BuildCreateTableSQL: %v", err)
	}
	want := "CREATE TABLE IF NOT EXISTS `brightest_stars` (\n" +
		"  `rank` BIGINT NOT NULL,\n" +
		"  `source_id` VARCHAR(255) NOT NULL,\n" +
		"  PRIMARY KEY (`rank`)\n) CHARACTER SET ascii;"
	if got != want {
		t.Fatalf("DDL:\n%s\nwant:\n%s", got, want)
	}
	if _, err := BuildCreateTableSQL(storage.TableDef{}); err == nil {
		t.Fatal("expected error for empty table definition")
	}
}

func TestNewRepository_BadDSN(t *testing.T) {
	_, _, err := NewRepository(context.Background(), Config{DSN: "no-slash-here"})
	if err == nil || !strings.Contains(err.Error(), "mysql dsn") {
		t.Fatalf("expected DSN error, got %v", err)
	}
}

func TestAdapterRegistration(t *testing.T) {
	orig := newRepository
	defer func() { newRepository = orig }()

	var got Config
	newRepository = func(_ context.Context, cfg Config) (*Repository, func(), error) {
		got = cfg
		return &Repository{cfg: cfg}, func() {}, nil
	}
	repo, err := storage.New(context.Background(), storage.Config{
		Kind: "mysql", DSN: "u:p@tcp(db:3306)/gaia", Table: "brightest_stars", Columns: []string{"rank"},
	})
	if err != nil {
		t.Fatalf("storage.New: %v", err)
	}
	defer repo.Close()
	if got.DSN != "u:p@tcp(db:3306)/gaia" || got.Table != "brightest_stars" {
		t.Fatalf("adapter passed %+v", got)
	}
}

// TestRepository_Integration needs a reachable MySQL server:
//
//	TEST_MYSQL_DSN='root:secret@tcp(localhost:3306)/test' go test ./internal/storage/mysql -run Integration
func TestRepository_Integration(t *testing.T) {
	dsn := os.Getenv("TEST_MYSQL_DSN")
	if dsn == "" {
		t.Skip("skipping integration test: set TEST_MYSQL_DSN to run")
	}
	ctx := context.Background()
	def := storage.ExtractTable("__gaiastars_test", []string{"source_id", "mag"})
	repo, err := storage.New(ctx, storage.Config{Kind: "mysql", DSN: dsn, Table: def.FQN, Columns: def.Names()})
	if err != nil {
		t.Fatalf("storage.New: %v", err)
	}
	defer repo.Close()

	_ = repo.Exec(ctx, "DROP TABLE IF EXISTS `__gaiastars_test`")
	if err := storage.EnsureTable(ctx, "mysql", repo, def); err != nil {
		t.Fatalf("EnsureTable: %v", err)
	}
	n, err := storage.LoadExtract(ctx, repo, def, [][]string{{"1", "0.5"}, {"2", "1.5"}}, 10)
	if err != nil || n != 2 {
		t.Fatalf("LoadExtract = %d, %v", n, err)
	}
	// Rank 1 already exists; the replace must delete it in the same tx.
	if n, err := storage.ReplaceExtract(ctx, repo, def, [][]string{{"3", "0.1"}}, 10); err != nil || n != 1 {
		t.Fatalf("ReplaceExtract = %d, %v", n, err)
	}
	if err := repo.Reset(ctx); err != nil {
		t.Fatalf("Reset: %v", err)
	}
}
