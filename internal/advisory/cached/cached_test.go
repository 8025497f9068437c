package cached

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/afadesigns/rtx/internal/advisory"
	"github.com/afadesigns/rtx/internal/cache"
	"github.com/afadesigns/rtx/internal/trust"
)

type memBackend struct {
	records map[string]cache.Record
}

func newMemBackend() *memBackend { return &memBackend{records: make(map[string]cache.Record)} }

func (m *memBackend) Get(_ context.Context, key string) (cache.Record, bool, error) {
	r, ok := m.records[key]
	return r, ok, nil
}

func (m *memBackend) Put(_ context.Context, key string, record cache.Record) error {
	m.records[key] = record
	return nil
}

func (m *memBackend) Delete(_ context.Context, key string) error {
	delete(m.records, key)
	return nil
}

func (m *memBackend) Close() error { return nil }

type countingProvider struct {
	calls int32
	data  map[trust.Key][]trust.Advisory
}

func (p *countingProvider) Name() string { return "test-source" }

func (p *countingProvider) Fetch(_ context.Context, deps []trust.Dependency) (map[trust.Key]advisory.ProviderResult, error) {
	atomic.AddInt32(&p.calls, 1)
	out := make(map[trust.Key]advisory.ProviderResult)
	for _, dep := range deps {
		out[dep.Key()] = advisory.ProviderResult{Advisories: p.data[dep.Key()]}
	}
	return out, nil
}

func newTestStore(t *testing.T) *cache.Store {
	t.Helper()
	store, err := cache.New(cache.Config{Backend: newMemBackend()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestFetchCallsInnerOnceThenServesFromCache(t *testing.T) {
	dep := trust.Dependency{Ecosystem: "npm", Name: "left-pad", Version: "1.3.0"}
	inner := &countingProvider{data: map[trust.Key][]trust.Advisory{
		dep.Key(): {{ID: "OSV-1", Source: "test-source", Severity: trust.SeverityHigh}},
	}}
	store := newTestStore(t)
	p := New(inner, store, time.Minute)

	result, err := p.Fetch(context.Background(), []trust.Dependency{dep})
	require.NoError(t, err)
	assert.Len(t, result[dep.Key()].Advisories, 1)

	result, err = p.Fetch(context.Background(), []trust.Dependency{dep})
	require.NoError(t, err)
	assert.Len(t, result[dep.Key()].Advisories, 1)
	assert.Equal(t, int32(1), inner.calls)
}

func TestFetchResolvesDependenciesWithNoAdvisoriesAsAvailable(t *testing.T) {
	dep := trust.Dependency{Ecosystem: "npm", Name: "clean-pkg", Version: "1.0.0"}
	inner := &countingProvider{data: map[trust.Key][]trust.Advisory{}}
	store := newTestStore(t)
	p := New(inner, store, time.Minute)

	result, err := p.Fetch(context.Background(), []trust.Dependency{dep})
	require.NoError(t, err)
	assert.Empty(t, result[dep.Key()].Advisories)
	assert.False(t, result[dep.Key()].Unavailable)
}

func TestNamePassesThroughToInnerProvider(t *testing.T) {
	inner := &countingProvider{}
	store := newTestStore(t)
	p := New(inner, store, time.Minute)
	assert.Equal(t, "test-source", p.Name())
}

type failingProvider struct{}

func (failingProvider) Name() string { return "test-source" }

func (failingProvider) Fetch(context.Context, []trust.Dependency) (map[trust.Key]advisory.ProviderResult, error) {
	return nil, assertError{}
}

type assertError struct{}

func (assertError) Error() string { return "inner provider failure" }

func TestFetchMarksDependencyUnavailableOnInnerError(t *testing.T) {
	good := trust.Dependency{Ecosystem: "npm", Name: "left-pad", Version: "1.0.0"}
	bad := trust.Dependency{Ecosystem: "npm", Name: "bad-pkg", Version: "1.0.0"}

	okInner := &countingProvider{data: map[trust.Key][]trust.Advisory{
		good.Key(): {{ID: "OSV-1", Source: "test-source", Severity: trust.SeverityHigh}},
	}}
	store := newTestStore(t)
	ok := New(okInner, store, time.Minute)

	result, err := ok.Fetch(context.Background(), []trust.Dependency{good})
	require.NoError(t, err)
	assert.False(t, result[good.Key()].Unavailable)

	failStore := newTestStore(t)
	p := New(failingProvider{}, failStore, time.Minute)

	result, err = p.Fetch(context.Background(), []trust.Dependency{bad})
	require.Error(t, err)
	assert.True(t, result[bad.Key()].Unavailable)
}
