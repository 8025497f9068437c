// Package config loads rtx's runtime configuration: a TOML document plus
// RTX_-prefixed environment overrides. Grounded on
// original_source/src/rtx/config.py's _int_env/_float_env/_non_negative_int_env
// helpers (env override precedence, silently falling back to the default on
// a malformed value) and the teacher's pkg/config struct-of-sections shape
// (internal/pkg/config/types/config.go), translated from per-host overrides
// to per-provider sections.
package config

import (
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/pelletier/go-toml/v2"
	"github.com/pkg/errors"

	"github.com/afadesigns/rtx/internal/advisory/github"
	"github.com/afadesigns/rtx/internal/advisory/osv"
	"github.com/afadesigns/rtx/internal/cache"
	"github.com/afadesigns/rtx/internal/retry"
	"github.com/afadesigns/rtx/internal/signal"
)

// knownConfigKeys lists every top-level key Config understands, i.e.
// every toml tag on Config itself. Used to warn on (rather than silently
// drop) anything else a config document sets.
var knownConfigKeys = map[string]bool{
	"global_concurrency":           true,
	"http_timeout_seconds":         true,
	"http_retries":                 true,
	"cache_backend":                true,
	"cache_path":                   true,
	"cache_max_entries_per_source": true,
	"compromised_path":             true,
	"popular_paths":                true,
	"thresholds":                   true,
	"osv":                          true,
	"github":                       true,
	"managers":                     true,
}

// ManagerDef names one ecosystem manager's recognized manifest filenames,
// mirroring original_source's SUPPORTED_MANAGERS table.
type ManagerDef struct {
	Manifests []string `toml:"manifests"`
	Ecosystem []string `toml:"ecosystem"`
}

// DefaultManagers is the built-in ecosystem → manifest-glob table.
func DefaultManagers() map[string]ManagerDef {
	return map[string]ManagerDef{
		"npm": {
			Manifests: []string{"package.json", "package-lock.json", "yarn.lock", "pnpm-lock.yaml"},
			Ecosystem: []string{"npm"},
		},
		"pypi": {
			Manifests: []string{"pyproject.toml", "poetry.lock", "requirements.txt", "requirements.in", "constraints.txt", "Pipfile", "Pipfile.lock", "uv.lock"},
			Ecosystem: []string{"pypi"},
		},
		"maven": {
			Manifests: []string{"pom.xml", "build.gradle", "build.gradle.kts"},
			Ecosystem: []string{"maven"},
		},
		"cargo": {
			Manifests: []string{"Cargo.toml", "Cargo.lock"},
			Ecosystem: []string{"crates"},
		},
		"go": {
			Manifests: []string{"go.mod", "go.sum"},
			Ecosystem: []string{"go"},
		},
		"composer": {
			Manifests: []string{"composer.json", "composer.lock"},
			Ecosystem: []string{"packagist"},
		},
		"nuget": {
			Manifests: []string{"packages.lock.json"},
			Ecosystem: []string{"nuget"},
		},
		"rubygems": {
			Manifests: []string{"Gemfile", "Gemfile.lock"},
			Ecosystem: []string{"rubygems"},
		},
	}
}

// Config is the fully resolved runtime configuration.
type Config struct {
	GlobalConcurrency int64             `toml:"global_concurrency"`
	HTTPTimeout       time.Duration     `toml:"-"`
	HTTPTimeoutSec    float64           `toml:"http_timeout_seconds"`
	HTTPRetries       int               `toml:"http_retries"`
	CacheBackend      string            `toml:"cache_backend"`
	CachePath         string            `toml:"cache_path"`
	CacheMaxPerSource int               `toml:"cache_max_entries_per_source"`
	CompromisedPath   string            `toml:"compromised_path"`
	PopularPath       map[string]string `toml:"popular_paths"`

	Thresholds signal.Thresholds      `toml:"thresholds"`
	OSV        OSVConfig              `toml:"osv"`
	GitHub     GitHubConfig           `toml:"github"`
	Managers   map[string]ManagerDef  `toml:"managers"`
}

// OSVConfig configures the osv.dev provider.
type OSVConfig struct {
	BatchSize      int `toml:"batch_size"`
	MaxConcurrency int `toml:"max_concurrency"`
}

// GitHubConfig configures the GitHub Security Advisories provider.
type GitHubConfig struct {
	MaxConcurrency int    `toml:"max_concurrency"`
	TokenEnv       string `toml:"token_env"`
}

// Default returns the built-in configuration (spec §4.5/§4.6 defaults,
// original_source's config.py module-level defaults).
func Default() Config {
	return Config{
		GlobalConcurrency: 16,
		HTTPTimeoutSec:    5.0,
		HTTPTimeout:       5 * time.Second,
		HTTPRetries:       2,
		CacheBackend:      "boltdb",
		CacheMaxPerSource: 512,
		Thresholds:        signal.DefaultThresholds,
		OSV:               OSVConfig{BatchSize: 100, MaxConcurrency: 4},
		GitHub:            GitHubConfig{MaxConcurrency: 6, TokenEnv: "GITHUB_TOKEN"},
		Managers:          DefaultManagers(),
	}
}

// Load reads a TOML config document (if path is non-empty) layered over
// Default(), then applies RTX_-prefixed environment overrides on top —
// matching original_source's precedence (env wins, malformed values fall
// back silently rather than erroring).
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, errors.Wrapf(err, "config: read %s", path)
		}
		if err := toml.Unmarshal(raw, &cfg); err != nil {
			return Config{}, errors.Wrapf(err, "config: decode %s", path)
		}
		warnUnknownKeys(raw, path)
		if cfg.Managers == nil {
			cfg.Managers = DefaultManagers()
		}
	}

	applyEnvOverrides(&cfg)
	cfg.HTTPTimeout = time.Duration(cfg.HTTPTimeoutSec * float64(time.Second))
	return cfg, nil
}

// warnUnknownKeys logs a warning for every top-level key raw sets that
// Config doesn't recognize (spec §6: "Unknown keys are ignored with a
// warning"). toml.Unmarshal already ignores them; this only adds the
// logging toml.Unmarshal itself doesn't do.
func warnUnknownKeys(raw []byte, path string) {
	var generic map[string]any
	if err := toml.Unmarshal(raw, &generic); err != nil {
		return
	}
	for key := range generic {
		if !knownConfigKeys[key] {
			slog.Warn("config: ignoring unrecognized key", "key", key, "path", path)
		}
	}
}

// applyEnvOverrides mirrors original_source/src/rtx/config.py's
// _int_env/_float_env/_non_negative_int_env: missing or unparsable values
// are ignored, keeping whatever Default()/the TOML document already set.
func applyEnvOverrides(cfg *Config) {
	cfg.GlobalConcurrency = intEnv("RTX_POLICY_CONCURRENCY", cfg.GlobalConcurrency)
	cfg.HTTPTimeoutSec = floatEnv("RTX_HTTP_TIMEOUT", cfg.HTTPTimeoutSec)
	cfg.HTTPRetries = nonNegativeIntEnv("RTX_HTTP_RETRIES", cfg.HTTPRetries)
	cfg.OSV.BatchSize = int(intEnv("RTX_OSV_BATCH_SIZE", int64(cfg.OSV.BatchSize)))
	cfg.OSV.MaxConcurrency = int(intEnv("RTX_OSV_MAX_CONCURRENCY", int64(cfg.OSV.MaxConcurrency)))
	cfg.GitHub.MaxConcurrency = int(intEnv("RTX_GITHUB_MAX_CONCURRENCY", int64(cfg.GitHub.MaxConcurrency)))
	if v := os.Getenv("RTX_GITHUB_TOKEN_ENV"); v != "" {
		cfg.GitHub.TokenEnv = v
	}
	if v := os.Getenv("RTX_CACHE_BACKEND"); v != "" {
		cfg.CacheBackend = v
	}
	if v := os.Getenv("RTX_CACHE_PATH"); v != "" {
		cfg.CachePath = v
	}
	if v := os.Getenv("RTX_COMPROMISED_PATH"); v != "" {
		cfg.CompromisedPath = v
	}
}

// intEnv returns a positive integer from the named env var, or fallback
// if unset/unparsable/non-positive.
func intEnv(name string, fallback int64) int64 {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || v < 1 {
		return fallback
	}
	return v
}

// nonNegativeIntEnv returns a >=0 integer from the named env var, or
// fallback if unset/unparsable/negative.
func nonNegativeIntEnv(name string, fallback int) int {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return fallback
	}
	return v
}

// floatEnv returns a positive float from the named env var, or fallback
// if unset/unparsable/non-positive.
func floatEnv(name string, fallback float64) float64 {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || v <= 0 {
		return fallback
	}
	return v
}

// OSVProviderConfig adapts Config into the osv.Config shape consumed by
// internal/advisory/osv.New.
func (c Config) OSVProviderConfig() osv.Config {
	return osv.Config{
		BatchSize:      c.OSV.BatchSize,
		MaxConcurrency: c.OSV.MaxConcurrency,
		Retry:          retry.Policy{Attempts: c.HTTPRetries + 1, Base: retry.DefaultPolicy.Base, Max: retry.DefaultPolicy.Max},
	}
}

// GitHubProviderConfig adapts Config into the github.Config shape
// consumed by internal/advisory/github.New.
func (c Config) GitHubProviderConfig() github.Config {
	return github.Config{
		Token:          os.Getenv(c.GitHub.TokenEnv),
		MaxConcurrency: c.GitHub.MaxConcurrency,
		Retry:          retry.Policy{Attempts: c.HTTPRetries + 1, Base: retry.DefaultPolicy.Base, Max: retry.DefaultPolicy.Max},
	}
}

// CacheConfig adapts Config into internal/cache.Config's tunables (the
// Backend itself is constructed by the caller, since it is one of three
// concrete types selected by CacheBackend).
func (c Config) CacheConfig(backend cache.Backend) cache.Config {
	return cache.Config{Backend: backend, MaxEntriesPerSource: c.CacheMaxPerSource}
}
