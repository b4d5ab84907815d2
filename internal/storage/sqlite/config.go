// Package sqlite implements a SQLite-backed storage.Repository.
package sqlite

// Config holds SQLite repository configuration derived from storage.Config.
type Config struct {
	// DSN is a SQLite connection string or file path, e.g.:
	//   "file:stars.db?_pragma=journal_mode(WAL)"
	//   "stars.db" (interpreted by the driver)
	DSN string

	// Table is the target table name, e.g. "brightest_stars". Dotted values
	// such as "main.brightest_stars" are quoted per segment.
	Table string

	// Columns is the ordered list of destination columns.
	Columns []string
}
