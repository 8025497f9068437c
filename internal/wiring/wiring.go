// Package wiring assembles a runnable Orchestrator from a config.Config:
// it selects and opens a cache backend, wraps the advisory and metadata
// providers with the shared Cache Layer, loads the compromised-package
// and typosquat corpora, and wires every scanner this build supports.
// Grounded on the teacher's pkg/db/common.Config.New() backend-selection
// factory (internal/cache's own package doc already cites it for the
// Store itself; this is the one remaining place that selection needs to
// happen for real, at process start).
package wiring

import (
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/rueidis"

	"github.com/afadesigns/rtx/internal/advisory"
	"github.com/afadesigns/rtx/internal/advisory/cached"
	advgithub "github.com/afadesigns/rtx/internal/advisory/github"
	"github.com/afadesigns/rtx/internal/advisory/osv"
	"github.com/afadesigns/rtx/internal/cache"
	"github.com/afadesigns/rtx/internal/cache/boltdb"
	"github.com/afadesigns/rtx/internal/cache/pebblestore"
	"github.com/afadesigns/rtx/internal/cache/rediscache"
	"github.com/afadesigns/rtx/internal/config"
	"github.com/afadesigns/rtx/internal/metadata"
	metacached "github.com/afadesigns/rtx/internal/metadata/cached"
	"github.com/afadesigns/rtx/internal/metrics"
	"github.com/afadesigns/rtx/internal/orchestrator"
	"github.com/afadesigns/rtx/internal/policy/compromised"
	"github.com/afadesigns/rtx/internal/scanio"
	"github.com/afadesigns/rtx/internal/scanio/gomod"
	"github.com/afadesigns/rtx/internal/scanio/npm"
	utilos "github.com/afadesigns/rtx/pkg/util/os"
)

// advisoryCacheTTL and metadataCacheTTL bound how long a cached provider
// result is trusted before a scan will re-query upstream for it (spec
// §4.4 default TTLs are provider-specific; these are rtx's own choices,
// not a value the spec pins down).
const (
	advisoryCacheTTL = 6 * time.Hour
	metadataCacheTTL = 24 * time.Hour
)

// Pipeline holds every long-lived resource a CLI command needs: the
// assembled Orchestrator plus the cache Store it was built on (Store must
// be Closed when the command exits).
type Pipeline struct {
	Orchestrator *orchestrator.Orchestrator
	Cache        *cache.Store
	Scanners     map[string]scanio.Scanner
}

// Build assembles a Pipeline from cfg. rec, if non-nil, receives
// provider-call and run-duration observations; pass nil to disable
// instrumentation entirely.
func Build(cfg config.Config, rec *metrics.Registry) (*Pipeline, error) {
	backend, err := openCacheBackend(cfg)
	if err != nil {
		return nil, errors.Wrap(err, "wiring: open cache backend")
	}

	store, err := cache.New(cfg.CacheConfig(backend))
	if err != nil {
		_ = backend.Close()
		return nil, errors.Wrap(err, "wiring: construct cache store")
	}

	providers := advisoryProviders(cfg, store)

	metaProvider := metadata.New(metadata.Config{})
	cachedMeta := metacached.New(metaProvider, store, metadataCacheTTL)
	popularMeta := metadata.NewPopularAugmentedFetcher(cachedMeta, cfg.PopularPath)

	compromisedIdx, err := compromised.Load(cfg.CompromisedPath)
	if err != nil {
		_ = store.Close()
		return nil, errors.Wrap(err, "wiring: load compromised index")
	}

	var metricsRecorder orchestrator.Recorder
	if rec != nil {
		metricsRecorder = rec
	}

	orc := orchestrator.New(orchestrator.Config{
		AdvisoryProviders: providers,
		Metadata:          popularMeta,
		Compromised:       compromisedIdx,
		Thresholds:        cfg.Thresholds,
		GlobalConcurrency: cfg.GlobalConcurrency,
		Metrics:           metricsRecorder,
	})

	return &Pipeline{
		Orchestrator: orc,
		Cache:        store,
		Scanners:     scanners(),
	}, nil
}

// Close releases every resource Build opened.
func (p *Pipeline) Close() error {
	return p.Cache.Close()
}

func openCacheBackend(cfg config.Config) (cache.Backend, error) {
	path := cfg.CachePath
	switch cfg.CacheBackend {
	case "", "boltdb":
		if path == "" {
			path = filepath.Join(utilos.UserCacheDir(), "cache.db")
		}
		return boltdb.Open(path)
	case "pebble":
		if path == "" {
			path = filepath.Join(utilos.UserCacheDir(), "cache-pebble")
		}
		return pebblestore.Open(path)
	case "redis":
		addr := path
		if addr == "" {
			addr = "127.0.0.1:6379"
		}
		return rediscache.Open(rueidis.ClientOption{InitAddress: []string{addr}})
	default:
		return nil, errors.Errorf("wiring: unsupported cache backend %q", cfg.CacheBackend)
	}
}

func advisoryProviders(cfg config.Config, store *cache.Store) []advisory.Provider {
	providers := make([]advisory.Provider, 0, 2)

	osvProvider := osv.New(cfg.OSVProviderConfig())
	providers = append(providers, cached.New(osvProvider, store, advisoryCacheTTL))

	if ghProvider, ok := advgithub.New(cfg.GitHubProviderConfig()); ok {
		providers = append(providers, cached.New(ghProvider, store, advisoryCacheTTL))
	}

	return providers
}

func scanners() map[string]scanio.Scanner {
	return map[string]scanio.Scanner{
		"npm": npm.New(),
		"go":  gomod.New(),
	}
}
