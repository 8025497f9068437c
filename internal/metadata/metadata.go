// Package metadata fetches per-ecosystem registry metadata (release
// cadence, maintainer count) used by the Signal Deriver (spec §4.3),
// grounded on original_source/src/rtx/metadata.py's MetadataClient and
// its per-ecosystem fetchers.
package metadata

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/afadesigns/rtx/internal/metadata/popular"
	"github.com/afadesigns/rtx/internal/retry"
	"github.com/afadesigns/rtx/internal/trust"
)

// Fetcher resolves release metadata for a single dependency.
type Fetcher func(ctx context.Context, client *http.Client, dep trust.Dependency) (trust.ReleaseMetadata, error)

// Registry maps ecosystem name to its Fetcher, mirroring MetadataClient's
// `_fetchers` dispatch table.
type Registry map[string]Fetcher

// DefaultRegistry wires every ecosystem fetcher this package implements.
func DefaultRegistry() Registry {
	return Registry{
		"pypi":      fetchPyPI,
		"npm":       fetchNPM,
		"crates":    fetchCrates,
		"go":        fetchGoProxy,
		"rubygems":  fetchRubyGems,
		"maven":     fetchMaven,
		"nuget":     fetchNuGet,
		"packagist": fetchPackagist,
	}
}

// Provider wraps a Registry plus shared HTTP client/retry config into an
// advisory-provider-shaped fetch (spec §4.3: unresolvable metadata marks
// Unknown, never asserted as "not abandoned").
type Provider struct {
	registry Registry
	client   *http.Client
	retry    retry.Policy
}

// Config configures a Provider.
type Config struct {
	Registry   Registry
	HTTPClient *http.Client
	Retry      retry.Policy
}

// New constructs a Provider, defaulting to DefaultRegistry.
func New(cfg Config) *Provider {
	p := &Provider{registry: cfg.Registry, client: cfg.HTTPClient, retry: cfg.Retry}
	if p.registry == nil {
		p.registry = DefaultRegistry()
	}
	if p.client == nil {
		p.client = &http.Client{Timeout: 15 * time.Second}
	}
	if p.retry == (retry.Policy{}) {
		p.retry = retry.DefaultPolicy
	}
	return p
}

// Fetch resolves metadata for every dependency, ecosystem by ecosystem.
// An unsupported ecosystem or an exhausted retry both yield Unknown:true
// rather than an error, since a single unresolvable dependency must not
// abort the whole run (spec §7).
func (p *Provider) Fetch(ctx context.Context, deps []trust.Dependency) map[trust.Key]trust.ReleaseMetadata {
	out := make(map[trust.Key]trust.ReleaseMetadata, len(deps))
	for _, dep := range deps {
		out[dep.Key()] = p.fetchOne(ctx, dep)
	}
	return out
}

// FetchOne resolves metadata for a single dependency. Exported so the
// Orchestrator can fan requests out under its own concurrency ceiling
// rather than only through the bulk Fetch helper.
func (p *Provider) FetchOne(ctx context.Context, dep trust.Dependency) trust.ReleaseMetadata {
	return p.fetchOne(ctx, dep)
}

func (p *Provider) fetchOne(ctx context.Context, dep trust.Dependency) trust.ReleaseMetadata {
	fetcher, ok := p.registry[strings.ToLower(dep.Ecosystem)]
	if !ok {
		return trust.ReleaseMetadata{Ecosystem: dep.Ecosystem, Unknown: true}
	}

	var result trust.ReleaseMetadata
	err := retry.Do(ctx, p.retry, isRetryable, func(ctx context.Context) error {
		var err error
		result, err = fetcher(ctx, p.client, dep)
		return err
	})
	if err != nil {
		return trust.ReleaseMetadata{Ecosystem: dep.Ecosystem, Unknown: true}
	}
	return result
}

func isRetryable(err error) bool {
	return err != nil
}

// PopularAugmentedFetcher wraps a Source (a *Provider, or a cache-wrapped
// one) so every returned
// ReleaseMetadata carries its ecosystem's typosquat comparison corpus
// (spec §4.5's typosquat check needs PopularCandidates, which the
// per-ecosystem registry fetchers above don't know how to build). Corpora
// are loaded once per ecosystem and cached, since popular.Load reads an
// embedded/override file on every call otherwise.
type PopularAugmentedFetcher struct {
	inner        Source
	overridePath map[string]string

	mu      sync.Mutex
	corpora map[string][]trust.PopularCandidate
}

// Source resolves a single dependency's release metadata. *Provider
// satisfies it directly; so does internal/metadata/cached.Fetcher, so a
// cache-wrapped source can sit between Provider and
// PopularAugmentedFetcher without either side knowing about the other.
type Source interface {
	FetchOne(ctx context.Context, dep trust.Dependency) trust.ReleaseMetadata
}

// NewPopularAugmentedFetcher wraps inner, loading each ecosystem's corpus
// from overridePath[ecosystem] if set, else the embedded default.
func NewPopularAugmentedFetcher(inner Source, overridePath map[string]string) *PopularAugmentedFetcher {
	return &PopularAugmentedFetcher{inner: inner, overridePath: overridePath, corpora: make(map[string][]trust.PopularCandidate)}
}

// FetchOne resolves dep's metadata via the wrapped Provider, then attaches
// the cached popular-name corpus for dep.Ecosystem.
func (f *PopularAugmentedFetcher) FetchOne(ctx context.Context, dep trust.Dependency) trust.ReleaseMetadata {
	meta := f.inner.FetchOne(ctx, dep)
	if meta.Unknown {
		return meta
	}
	meta.PopularCandidates = f.corpusFor(dep.Ecosystem)
	return meta
}

func (f *PopularAugmentedFetcher) corpusFor(ecosystem string) []trust.PopularCandidate {
	key := strings.ToLower(ecosystem)

	f.mu.Lock()
	defer f.mu.Unlock()
	if corpus, ok := f.corpora[key]; ok {
		return corpus
	}

	corpus, err := popular.Load(key, f.overridePath[key])
	if err != nil {
		corpus = nil
	}
	f.corpora[key] = corpus
	return corpus
}

// getJSON performs a GET and decodes a JSON body into out. notFound is
// true on a 404, which every fetcher treats as "package has no
// metadata" rather than an error.
func getJSON(ctx context.Context, client *http.Client, url string, out any) (notFound bool, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return false, errors.Wrap(err, "build request")
	}
	resp, err := client.Do(req)
	if err != nil {
		return false, errors.Wrap(err, "request")
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return true, nil
	}
	if resp.StatusCode >= 300 {
		return false, errors.Errorf("unexpected status %d for %s", resp.StatusCode, url)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return false, errors.Wrapf(err, "decode %s", url)
	}
	return false, nil
}

func getText(ctx context.Context, client *http.Client, url string) (notFound bool, body string, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return false, "", errors.Wrap(err, "build request")
	}
	resp, err := client.Do(req)
	if err != nil {
		return false, "", errors.Wrap(err, "request")
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return true, "", nil
	}
	if resp.StatusCode >= 300 {
		return false, "", errors.Errorf("unexpected status %d for %s", resp.StatusCode, url)
	}
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return false, "", errors.Wrap(err, "read body")
	}
	return false, string(raw), nil
}

// parseDate accepts RFC3339(-ish) timestamps the way original_source's
// _parse_date tries a list of layouts, falling back nil on failure.
func parseDate(value string) *time.Time {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	layouts := []string{
		time.RFC3339Nano,
		time.RFC3339,
		"2006-01-02T15:04:05",
		"2006-01-02",
	}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, value); err == nil {
			utc := t.UTC()
			return &utc
		}
	}
	return nil
}

func uniqueNonEmpty(values []string) []string {
	seen := make(map[string]bool, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		lower := strings.ToLower(v)
		if seen[lower] {
			continue
		}
		seen[lower] = true
		out = append(out, v)
	}
	return out
}

func countWithin30Days(timestamps []time.Time, now time.Time) int {
	count := 0
	for _, t := range timestamps {
		if now.Sub(t) <= 30*24*time.Hour {
			count++
		}
	}
	return count
}

func latestOf(timestamps []time.Time) *time.Time {
	var latest *time.Time
	for i := range timestamps {
		if latest == nil || timestamps[i].After(*latest) {
			t := timestamps[i]
			latest = &t
		}
	}
	return latest
}
