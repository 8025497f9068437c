package cached

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

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

type countingSource struct {
	calls int
	meta  trust.ReleaseMetadata
}

func (s *countingSource) FetchOne(_ context.Context, dep trust.Dependency) trust.ReleaseMetadata {
	s.calls++
	return s.meta
}

func newTestStore(t *testing.T) *cache.Store {
	t.Helper()
	store, err := cache.New(cache.Config{Backend: newMemBackend()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestFetchOneCallsInnerOnceThenServesFromCache(t *testing.T) {
	dep := trust.Dependency{Ecosystem: "npm", Name: "left-pad", Version: "1.3.0"}
	inner := &countingSource{meta: trust.ReleaseMetadata{Ecosystem: "npm", TotalReleases: 9, MaintainerCount: 2}}
	store := newTestStore(t)
	f := New(inner, store, time.Minute)

	first := f.FetchOne(context.Background(), dep)
	second := f.FetchOne(context.Background(), dep)

	assert.Equal(t, 9, first.TotalReleases)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, inner.calls)
}

func TestFetchOneDoesNotCacheUnknownResults(t *testing.T) {
	dep := trust.Dependency{Ecosystem: "npm", Name: "mystery-pkg", Version: "1.0.0"}
	inner := &countingSource{meta: trust.ReleaseMetadata{Ecosystem: "npm", Unknown: true}}
	store := newTestStore(t)
	f := New(inner, store, time.Minute)

	first := f.FetchOne(context.Background(), dep)
	second := f.FetchOne(context.Background(), dep)

	assert.True(t, first.Unknown)
	assert.True(t, second.Unknown)
	assert.Equal(t, 2, inner.calls)
}

func TestFetchOneKeyIsVersionIndependent(t *testing.T) {
	inner := &countingSource{meta: trust.ReleaseMetadata{Ecosystem: "npm", TotalReleases: 3}}
	store := newTestStore(t)
	f := New(inner, store, time.Minute)

	depV1 := trust.Dependency{Ecosystem: "npm", Name: "left-pad", Version: "1.0.0"}
	depV2 := trust.Dependency{Ecosystem: "npm", Name: "left-pad", Version: "2.0.0"}

	_ = f.FetchOne(context.Background(), depV1)
	_ = f.FetchOne(context.Background(), depV2)

	assert.Equal(t, 1, inner.calls)
}
