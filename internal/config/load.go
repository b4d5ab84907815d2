package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// envPrefix is the environment variable prefix, e.g. GAIASTARS_SELECTION_TARGET_COUNT.
const envPrefix = "GAIASTARS"

// Defaults. The Gaia-specific values reproduce the layout of the DR3
// gaia_source release and the Hipparcos best-neighbour table.
const (
	DefaultJob           = "gaia-brightest-stars"
	DefaultSourceURL     = "http://cdn.gea.esac.esa.int/Gaia/gdr3/gaia_source/"
	DefaultExt           = ".csv.gz"
	DefaultPreambleLines = 1000
	DefaultTargetCount   = 5_000_000
	DefaultCapacityRatio = 2.0
	DefaultCrossmatch    = "Hipparcos2BestNeighbour.csv"
	DefaultSecondaryCol  = "hipparcos_id"
	DefaultStagingDir    = "staging"
	DefaultOutputPath    = "output_brightest_stars/gaia_brightest_stars__phot_g_mean_mag__bp_rp.csv"
	DefaultTable         = "brightest_stars"
	DefaultBatchSize     = 5000
	DefaultCheckpoint    = "gaiastars.ckpt.lz4"
	DefaultProgressEvery = 10_000
)

// Load reads configuration from path (YAML or JSON by extension), overlays
// GAIASTARS_* environment variables and fills defaults. An empty path uses
// defaults and environment only. Load does not validate; call Validate.
func Load(path string) (*Config, error) {
	v := viper.New()
	applyDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if errors.As(err, &notFound) || errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("config file %s not found: %w", path, err)
			}
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return &cfg, nil
}

// Default returns the configuration used when nothing is overridden.
func Default() *Config {
	cfg, err := Load("")
	if err != nil {
		// Defaults are static; an error here is a programming mistake.
		panic(err)
	}
	return cfg
}

func applyDefaults(v *viper.Viper) {
	v.SetDefault("job", DefaultJob)

	v.SetDefault("source.kind", "http")
	v.SetDefault("source.url", DefaultSourceURL)
	v.SetDefault("source.path", "")
	v.SetDefault("source.locations", []string{})
	v.SetDefault("source.ext", DefaultExt)
	v.SetDefault("source.max_chunks", 0)

	v.SetDefault("http.timeout", 10*time.Minute)
	v.SetDefault("http.max_retries", 3)
	v.SetDefault("http.initial_backoff", 500*time.Millisecond)
	v.SetDefault("http.max_backoff", 10*time.Second)
	v.SetDefault("http.insecure_skip_verify", false)
	v.SetDefault("http.user_agent", "gaiastars/1.0")

	v.SetDefault("retry.max_attempts", 0)
	v.SetDefault("retry.initial_backoff", time.Second)
	v.SetDefault("retry.max_backoff", time.Minute)

	v.SetDefault("parser.preamble_lines", DefaultPreambleLines)
	v.SetDefault("parser.comma", ",")
	v.SetDefault("parser.lazy_quotes", false)
	v.SetDefault("parser.columns.source_id", "source_id")
	v.SetDefault("parser.columns.ra", "ra")
	v.SetDefault("parser.columns.dec", "dec")
	v.SetDefault("parser.columns.parallax", "parallax")
	v.SetDefault("parser.columns.magnitude", "phot_g_mean_mag")
	v.SetDefault("parser.columns.color_index", "bp_rp")

	v.SetDefault("selection.target_count", DefaultTargetCount)
	v.SetDefault("selection.capacity_ratio", DefaultCapacityRatio)

	v.SetDefault("crossmatch.path", DefaultCrossmatch)
	v.SetDefault("crossmatch.column", DefaultSecondaryCol)

	v.SetDefault("staging.dir", DefaultStagingDir)
	v.SetDefault("staging.prefetch", false)
	v.SetDefault("staging.keep", false)

	v.SetDefault("output.path", DefaultOutputPath)

	v.SetDefault("storage.kind", "")
	v.SetDefault("storage.dsn", "")
	v.SetDefault("storage.table", DefaultTable)
	v.SetDefault("storage.auto_create_table", true)
	v.SetDefault("storage.batch_size", DefaultBatchSize)

	v.SetDefault("checkpoint.enabled", false)
	v.SetDefault("checkpoint.resume", false)
	v.SetDefault("checkpoint.path", DefaultCheckpoint)

	v.SetDefault("metrics.backend", "")
	v.SetDefault("metrics.pushgateway_url", "")
	v.SetDefault("metrics.datadog_addr", "")
	v.SetDefault("metrics.namespace", "")
	v.SetDefault("metrics.tags", []string{})

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("log.progress_every", DefaultProgressEvery)
}

// LoadDotEnv loads KEY=VALUE pairs from the given .env files into the
// process environment without overriding variables that are already set.
// Missing files are ignored.
func LoadDotEnv(paths ...string) error {
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("load %s: %w", p, err)
		}
	}
	return nil
}

// Dump renders cfg as YAML. Credentials in storage.dsn are masked.
func Dump(cfg *Config) ([]byte, error) {
	c := *cfg
	if c.Storage.DSN != "" {
		c.Storage.DSN = maskDSN(c.Storage.DSN)
	}
	out, err := yaml.Marshal(&c)
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}
	return out, nil
}

// maskDSN hides a password in URL-style DSNs and key=value DSNs.
func maskDSN(dsn string) string {
	if i := strings.Index(dsn, "://"); i >= 0 {
		rest := dsn[i+3:]
		if at := strings.LastIndex(rest, "@"); at >= 0 {
			userinfo := rest[:at]
			if c := strings.Index(userinfo, ":"); c >= 0 {
				return dsn[:i+3] + userinfo[:c] + ":****" + rest[at:]
			}
		}
		return dsn
	}
	fields := strings.Fields(dsn)
	for i, f := range fields {
		if k, _, ok := strings.Cut(f, "="); ok && strings.EqualFold(k, "password") {
			fields[i] = k + "=****"
		}
	}
	return strings.Join(fields, " ")
}
