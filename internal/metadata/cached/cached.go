// Package cached decorates a metadata.Source with the shared Cache
// Layer, the same way internal/advisory/cached does for advisory
// providers, so repeated scans of overlapping dependency sets don't
// re-hit every package registry on every run. Grounded on
// internal/cache.Store's existing Fetch(ctx, key, ttl, fn) contract;
// no new Store method was needed.
package cached

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/afadesigns/rtx/internal/cache"
	"github.com/afadesigns/rtx/internal/trust"
)

// errUnknown marks a fetch that resolved but found nothing usable
// (unsupported ecosystem, exhausted retry; a registry 404 is not one of
// these, since the per-ecosystem fetchers return it as zero-valued
// metadata with Unknown false). It is never
// returned to callers; Fetcher folds it back into an Unknown result the
// same way metadata.Provider.fetchOne does internally.
var errUnknown = errors.New("cached: unknown metadata")

// Source resolves a single dependency's release metadata without an
// error return, matching metadata.Provider.FetchOne and
// metadata.PopularAugmentedFetcher.FetchOne.
type Source interface {
	FetchOne(ctx context.Context, dep trust.Dependency) trust.ReleaseMetadata
}

// Fetcher wraps a Source, serving repeat lookups for the same
// dependency from store when fresh.
type Fetcher struct {
	inner Source
	store *cache.Store
	ttl   time.Duration
}

// New wraps inner with store, caching resolved metadata for ttl.
func New(inner Source, store *cache.Store, ttl time.Duration) *Fetcher {
	return &Fetcher{inner: inner, store: store, ttl: ttl}
}

// FetchOne resolves dep's metadata from the cache, falling back to
// inner.FetchOne on a miss. A result with Unknown:true is never
// persisted in the positive cache; it relies on the Store's own
// negative-cache TTL so a registry outage doesn't get remembered
// forever once the registry recovers.
func (f *Fetcher) FetchOne(ctx context.Context, dep trust.Dependency) trust.ReleaseMetadata {
	key := trust.CacheKey{Source: "metadata", Ecosystem: dep.Ecosystem, Name: dep.NormalizedName()}

	payload, _, err := f.store.Fetch(ctx, key, f.ttl, func(ctx context.Context) ([]byte, error) {
		meta := f.inner.FetchOne(ctx, dep)
		if meta.Unknown {
			return nil, errUnknown
		}
		return json.Marshal(meta)
	})
	if err != nil {
		return trust.ReleaseMetadata{Ecosystem: dep.Ecosystem, Unknown: true}
	}

	var meta trust.ReleaseMetadata
	if err := json.Unmarshal(payload, &meta); err != nil {
		return trust.ReleaseMetadata{Ecosystem: dep.Ecosystem, Unknown: true}
	}
	return meta
}
