// Package config defines the configuration model of an extraction run and
// loads it from a YAML/JSON file, GAIASTARS_* environment variables and
// built-in defaults (in that order of precedence, highest first: env, file,
// defaults).
//
// Example (trimmed):
//
//	job: gaia-dr3
//	source:
//	  kind: http
//	  url: http://cdn.gea.esac.esa.int/Gaia/gdr3/gaia_source/
//	selection:
//	  target_count: 5000000
//	crossmatch:
//	  path: Hipparcos2BestNeighbour.csv
//	storage:
//	  kind: sqlite
//	  dsn: file:stars.db
//	  table: brightest_stars
package config

import (
	"time"

	"github.com/cosmoscout/gaia-stars/internal/catalog"
)

// Config is the top-level configuration object.
type Config struct {
	// Job names the run in logs and metrics.
	Job string `mapstructure:"job" yaml:"job" json:"job"`

	Source     Source     `mapstructure:"source" yaml:"source" json:"source"`
	HTTP       HTTP       `mapstructure:"http" yaml:"http" json:"http"`
	Retry      Retry      `mapstructure:"retry" yaml:"retry" json:"retry"`
	Parser     Parser     `mapstructure:"parser" yaml:"parser" json:"parser"`
	Selection  Selection  `mapstructure:"selection" yaml:"selection" json:"selection"`
	Crossmatch Crossmatch `mapstructure:"crossmatch" yaml:"crossmatch" json:"crossmatch"`
	Staging    Staging    `mapstructure:"staging" yaml:"staging" json:"staging"`
	Output     Output     `mapstructure:"output" yaml:"output" json:"output"`
	Storage    Storage    `mapstructure:"storage" yaml:"storage" json:"storage"`
	Checkpoint Checkpoint `mapstructure:"checkpoint" yaml:"checkpoint" json:"checkpoint"`
	Metrics    Metrics    `mapstructure:"metrics" yaml:"metrics" json:"metrics"`
	Log        Log        `mapstructure:"log" yaml:"log" json:"log"`
}

// Source selects how chunk locations are enumerated.
type Source struct {
	// Kind is one of "http" (directory listing at URL), "list" (text file of
	// locations at Path), "dir" (files in directory Path) or "static"
	// (Locations).
	Kind string `mapstructure:"kind" yaml:"kind" json:"kind"`

	URL       string   `mapstructure:"url" yaml:"url,omitempty" json:"url,omitempty"`
	Path      string   `mapstructure:"path" yaml:"path,omitempty" json:"path,omitempty"`
	Locations []string `mapstructure:"locations" yaml:"locations,omitempty" json:"locations,omitempty"`

	// Ext filters listing links and directory entries by suffix.
	Ext string `mapstructure:"ext" yaml:"ext" json:"ext"`

	// MaxChunks, when > 0, stops after that many chunks.
	MaxChunks int `mapstructure:"max_chunks" yaml:"max_chunks" json:"max_chunks"`
}

// HTTP configures the per-request HTTP client.
type HTTP struct {
	Timeout            time.Duration `mapstructure:"timeout" yaml:"timeout" json:"timeout"`
	MaxRetries         int           `mapstructure:"max_retries" yaml:"max_retries" json:"max_retries"`
	InitialBackoff     time.Duration `mapstructure:"initial_backoff" yaml:"initial_backoff" json:"initial_backoff"`
	MaxBackoff         time.Duration `mapstructure:"max_backoff" yaml:"max_backoff" json:"max_backoff"`
	InsecureSkipVerify bool          `mapstructure:"insecure_skip_verify" yaml:"insecure_skip_verify" json:"insecure_skip_verify"`
	UserAgent          string        `mapstructure:"user_agent" yaml:"user_agent" json:"user_agent"`
}

// Retry configures how a failed chunk acquisition is retried as a whole.
type Retry struct {
	// MaxAttempts bounds attempts per chunk; 0 retries until success or abort.
	// A missing local file or an HTTP 404/410 is permanent and fails the run
	// on that chunk regardless of MaxAttempts.
	MaxAttempts    int           `mapstructure:"max_attempts" yaml:"max_attempts" json:"max_attempts"`
	InitialBackoff time.Duration `mapstructure:"initial_backoff" yaml:"initial_backoff" json:"initial_backoff"`
	MaxBackoff     time.Duration `mapstructure:"max_backoff" yaml:"max_backoff" json:"max_backoff"`
}

// Parser configures chunk reading and the source column names.
type Parser struct {
	PreambleLines int     `mapstructure:"preamble_lines" yaml:"preamble_lines" json:"preamble_lines"`
	Comma         string  `mapstructure:"comma" yaml:"comma" json:"comma"`
	LazyQuotes    bool    `mapstructure:"lazy_quotes" yaml:"lazy_quotes" json:"lazy_quotes"`
	Columns       Columns `mapstructure:"columns" yaml:"columns" json:"columns"`
}

// Columns names the header columns holding each required field.
type Columns struct {
	SourceID   string `mapstructure:"source_id" yaml:"source_id" json:"source_id"`
	RA         string `mapstructure:"ra" yaml:"ra" json:"ra"`
	Dec        string `mapstructure:"dec" yaml:"dec" json:"dec"`
	Parallax   string `mapstructure:"parallax" yaml:"parallax" json:"parallax"`
	Magnitude  string `mapstructure:"magnitude" yaml:"magnitude" json:"magnitude"`
	ColorIndex string `mapstructure:"color_index" yaml:"color_index" json:"color_index"`
}

// Catalog converts the names into the resolver's column set.
func (c Columns) Catalog() catalog.Columns {
	var out catalog.Columns
	out[catalog.PrimaryID] = c.SourceID
	out[catalog.RA] = c.RA
	out[catalog.Dec] = c.Dec
	out[catalog.Parallax] = c.Parallax
	out[catalog.Magnitude] = c.Magnitude
	out[catalog.ColorIndex] = c.ColorIndex
	return out
}

// Selection configures the bounded top-K reservoir.
type Selection struct {
	TargetCount   int     `mapstructure:"target_count" yaml:"target_count" json:"target_count"`
	CapacityRatio float64 `mapstructure:"capacity_ratio" yaml:"capacity_ratio" json:"capacity_ratio"`
}

// Crossmatch locates the secondary-catalogue table.
type Crossmatch struct {
	// Path to the table; a missing file is allowed and means "no cross-match".
	Path string `mapstructure:"path" yaml:"path" json:"path"`
	// Column is the output header name of the secondary id.
	Column string `mapstructure:"column" yaml:"column" json:"column"`
}

// Staging configures where chunks are downloaded and decoded.
type Staging struct {
	Dir string `mapstructure:"dir" yaml:"dir" json:"dir"`
	// Prefetch acquires chunk N+1 while chunk N is streamed.
	Prefetch bool `mapstructure:"prefetch" yaml:"prefetch" json:"prefetch"`
	// Keep leaves the staging directory in place after the run.
	Keep bool `mapstructure:"keep" yaml:"keep" json:"keep"`
}

// Output configures the extract file.
type Output struct {
	Path string `mapstructure:"path" yaml:"path" json:"path"`
}

// Storage optionally loads the extract into a database table.
type Storage struct {
	// Kind is "" (disabled), "postgres", "sqlite", "mssql" or "mysql".
	Kind            string `mapstructure:"kind" yaml:"kind" json:"kind"`
	DSN             string `mapstructure:"dsn" yaml:"dsn,omitempty" json:"dsn,omitempty"`
	Table           string `mapstructure:"table" yaml:"table" json:"table"`
	AutoCreateTable bool   `mapstructure:"auto_create_table" yaml:"auto_create_table" json:"auto_create_table"`
	BatchSize       int    `mapstructure:"batch_size" yaml:"batch_size" json:"batch_size"`
}

// Checkpoint configures resumable runs.
type Checkpoint struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled" json:"enabled"`
	Resume  bool   `mapstructure:"resume" yaml:"resume" json:"resume"`
	Path    string `mapstructure:"path" yaml:"path" json:"path"`
}

// Metrics selects an optional metrics backend.
type Metrics struct {
	// Backend is "" (disabled), "prompush" or "datadog".
	Backend        string   `mapstructure:"backend" yaml:"backend" json:"backend"`
	PushgatewayURL string   `mapstructure:"pushgateway_url" yaml:"pushgateway_url,omitempty" json:"pushgateway_url,omitempty"`
	DatadogAddr    string   `mapstructure:"datadog_addr" yaml:"datadog_addr,omitempty" json:"datadog_addr,omitempty"`
	Namespace      string   `mapstructure:"namespace" yaml:"namespace,omitempty" json:"namespace,omitempty"`
	Tags           []string `mapstructure:"tags" yaml:"tags,omitempty" json:"tags,omitempty"`
}

// Log configures logging and progress reporting.
type Log struct {
	Level  string `mapstructure:"level" yaml:"level" json:"level"`
	Format string `mapstructure:"format" yaml:"format" json:"format"`
	// ProgressEvery logs a progress line every N data rows; 0 disables.
	ProgressEvery int `mapstructure:"progress_every" yaml:"progress_every" json:"progress_every"`
}
