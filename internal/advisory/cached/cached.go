// Package cached decorates an advisory.Provider with the shared Cache
// Layer (spec §4.4: "the cache layer shared by every provider"), keyed
// per dependency so a cache hit for one package never forces a refetch of
// its whole batch. Grounded on internal/cache.Store's existing
// Fetch(ctx, key, ttl, fn)-with-singleflight contract; no new Store
// method was needed since this decorator supplies per-dependency fn
// closures over the wrapped provider's own Fetch.
package cached

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pkg/errors"

	"github.com/afadesigns/rtx/internal/advisory"
	"github.com/afadesigns/rtx/internal/cache"
	"github.com/afadesigns/rtx/internal/trust"
)

// Provider wraps an advisory.Provider so each dependency's advisories are
// served from the cache when fresh, falling back to a single-dependency
// call into inner.Fetch on a miss.
type Provider struct {
	inner advisory.Provider
	store *cache.Store
	ttl   time.Duration
}

// New wraps inner with store, caching results for ttl (spec §4.4 default
// TTL is provider-specific; callers pass whatever their config specifies).
func New(inner advisory.Provider, store *cache.Store, ttl time.Duration) *Provider {
	return &Provider{inner: inner, store: store, ttl: ttl}
}

func (p *Provider) Name() string { return p.inner.Name() }

// Fetch resolves each dependency's advisories from the cache, querying
// the wrapped provider one dependency at a time for whatever misses. A
// dependency whose cache fetch fails is marked ProviderResult.Unavailable
// rather than aborting the whole call, so one bad cache entry or one
// failed miss can never discard advisories already resolved for every
// other dependency in the batch (spec §4.2/§4.7 partial-failure
// tolerance, same rule internal/advisory/osv.Fetch and
// internal/advisory/github.Fetch apply to their own batches).
func (p *Provider) Fetch(ctx context.Context, deps []trust.Dependency) (map[trust.Key]advisory.ProviderResult, error) {
	out := make(map[trust.Key]advisory.ProviderResult, len(deps))

	var firstErr error
	for _, dep := range deps {
		key := trust.CacheKey{Source: p.inner.Name(), Ecosystem: dep.Ecosystem, Name: dep.NormalizedName()}

		payload, _, err := p.store.Fetch(ctx, key, p.ttl, func(ctx context.Context) ([]byte, error) {
			result, fetchErr := p.inner.Fetch(ctx, []trust.Dependency{dep})
			if fetchErr != nil {
				return nil, fetchErr
			}
			return json.Marshal(result[dep.Key()].Advisories)
		})
		if err != nil {
			if errors.Is(err, cache.ErrNegative) {
				// A remembered prior failure, not a fresh one: still
				// unavailable for this dependency, but not worth
				// surfacing as this call's own error.
				out[dep.Key()] = advisory.ProviderResult{Unavailable: true}
				continue
			}
			if firstErr == nil {
				firstErr = errors.Wrapf(err, "cached: fetch %s", dep.Coordinate())
			}
			out[dep.Key()] = advisory.ProviderResult{Unavailable: true}
			continue
		}

		var advisories []trust.Advisory
		if err := json.Unmarshal(payload, &advisories); err != nil {
			if firstErr == nil {
				firstErr = errors.Wrapf(err, "cached: decode %s", dep.Coordinate())
			}
			out[dep.Key()] = advisory.ProviderResult{Unavailable: true}
			continue
		}
		out[dep.Key()] = advisory.ProviderResult{Advisories: advisories}
	}

	return out, firstErr
}
