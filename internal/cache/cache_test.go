package cache

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/afadesigns/rtx/internal/trust"
)

// memBackend is an in-memory Backend used only by this package's tests.
type memBackend struct {
	records map[string]Record
}

func newMemBackend() *memBackend {
	return &memBackend{records: make(map[string]Record)}
}

func (m *memBackend) Get(_ context.Context, key string) (Record, bool, error) {
	r, ok := m.records[key]
	return r, ok, nil
}

func (m *memBackend) Put(_ context.Context, key string, record Record) error {
	m.records[key] = record
	return nil
}

func (m *memBackend) Delete(_ context.Context, key string) error {
	delete(m.records, key)
	return nil
}

func (m *memBackend) Close() error { return nil }

func TestFetchCachesWithinTTL(t *testing.T) {
	backend := newMemBackend()
	store, err := New(Config{Backend: backend})
	require.NoError(t, err)
	defer store.Close()

	var calls int32
	key := trust.CacheKey{Source: "osv", Ecosystem: "pypi", Name: "requests", Version: "2.0.0"}
	fn := func(context.Context) ([]byte, error) {
		atomic.AddInt32(&calls, 1)
		return []byte("payload"), nil
	}

	payload, hit, err := store.Fetch(context.Background(), key, time.Minute, fn)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, []byte("payload"), payload)

	payload, hit, err = store.Fetch(context.Background(), key, time.Minute, fn)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, []byte("payload"), payload)
	assert.EqualValues(t, 1, atomic.LoadInt32(&calls), "second fetch within TTL must not call fn again")
}

func TestFetchNeverReturnsExpiredEntry(t *testing.T) {
	backend := newMemBackend()
	store, err := New(Config{Backend: backend})
	require.NoError(t, err)
	defer store.Close()

	key := trust.CacheKey{Source: "osv", Ecosystem: "npm", Name: "left-pad", Version: "1.0.0"}
	_, _, err = store.Fetch(context.Background(), key, time.Nanosecond, func(context.Context) ([]byte, error) {
		return []byte("payload"), nil
	})
	require.NoError(t, err)

	time.Sleep(time.Millisecond)

	var calls int32
	_, hit, err := store.Fetch(context.Background(), key, time.Minute, func(context.Context) ([]byte, error) {
		atomic.AddInt32(&calls, 1)
		return []byte("fresh"), nil
	})
	require.NoError(t, err)
	assert.False(t, hit, "an expired entry must be treated as a miss")
	assert.EqualValues(t, 1, atomic.LoadInt32(&calls))
}

func TestFetchCoalescesConcurrentMisses(t *testing.T) {
	backend := newMemBackend()
	store, err := New(Config{Backend: backend})
	require.NoError(t, err)
	defer store.Close()

	key := trust.CacheKey{Source: "deps.dev", Ecosystem: "npm", Name: "lodash", Version: ""}
	var calls int32
	release := make(chan struct{})

	fn := func(context.Context) ([]byte, error) {
		atomic.AddInt32(&calls, 1)
		<-release
		return []byte("payload"), nil
	}

	const n = 10
	results := make(chan []byte, n)
	for i := 0; i < n; i++ {
		go func() {
			payload, _, _ := store.Fetch(context.Background(), key, time.Minute, fn)
			results <- payload
		}()
	}

	time.Sleep(10 * time.Millisecond)
	close(release)

	for i := 0; i < n; i++ {
		assert.Equal(t, []byte("payload"), <-results)
	}
	assert.EqualValues(t, 1, atomic.LoadInt32(&calls), "concurrent misses for the same key must share one upstream fetch")
}

func TestFetchEvictsOldestBeyondPerSourceBound(t *testing.T) {
	backend := newMemBackend()
	store, err := New(Config{Backend: backend, MaxEntriesPerSource: 2})
	require.NoError(t, err)
	defer store.Close()

	fetch := func(name string) {
		key := trust.CacheKey{Source: "osv", Ecosystem: "npm", Name: name, Version: "1.0.0"}
		_, _, err := store.Fetch(context.Background(), key, time.Minute, func(context.Context) ([]byte, error) {
			return []byte(name), nil
		})
		require.NoError(t, err)
	}

	fetch("a")
	fetch("b")
	fetch("c")

	assert.Len(t, backend.records, 2, "bound of 2 entries per source must be enforced")

	aKey := trust.CacheKey{Source: "osv", Ecosystem: "npm", Name: "a", Version: "1.0.0"}.String()
	_, stillPresent := backend.records[aKey]
	assert.False(t, stillPresent, "the oldest entry must be evicted first")
}

func TestFetchReturnsNegativeHitWithoutRecallingFnWhenConfigured(t *testing.T) {
	backend := newMemBackend()
	store, err := New(Config{Backend: backend, NegativeCacheTTL: time.Minute})
	require.NoError(t, err)
	defer store.Close()

	key := trust.CacheKey{Source: "github", Ecosystem: "go", Name: "example.com/gone", Version: ""}
	var calls int32
	fn := func(context.Context) ([]byte, error) {
		atomic.AddInt32(&calls, 1)
		return nil, assert.AnError
	}

	_, _, err = store.Fetch(context.Background(), key, time.Minute, fn)
	require.Error(t, err)

	_, hit, err := store.Fetch(context.Background(), key, time.Minute, fn)
	assert.ErrorIs(t, err, ErrNegative)
	assert.True(t, hit)
	assert.EqualValues(t, 1, atomic.LoadInt32(&calls), "a configured negative cache must suppress the second upstream call")
}
