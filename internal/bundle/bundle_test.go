package bundle

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/afadesigns/rtx/internal/cache"
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

func newTestStore(t *testing.T) *cache.Store {
	t.Helper()
	store, err := cache.New(cache.Config{Backend: newMemBackend()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func ndjson(t *testing.T, records ...record) *bytes.Buffer {
	t.Helper()
	buf := &bytes.Buffer{}
	enc := json.NewEncoder(buf)
	for _, r := range records {
		require.NoError(t, enc.Encode(r))
	}
	return buf
}

func TestSeedWritesEveryRecordIntoStore(t *testing.T) {
	store := newTestStore(t)
	now := time.Date(2026, 8, 3, 0, 0, 0, 0, time.UTC)

	buf := ndjson(t,
		record{Source: "osv", Ecosystem: "npm", Name: "left-pad", Version: "1.3.0", Payload: []byte("a"), FetchedAt: now, ExpiresAt: now.Add(time.Hour)},
		record{Source: "github", Ecosystem: "pypi", Name: "requests", Version: "", Payload: []byte("b"), FetchedAt: now, ExpiresAt: now.Add(time.Hour)},
	)

	count, err := seed(context.Background(), store, buf)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestSeedReturnsPartialCountOnDecodeError(t *testing.T) {
	store := newTestStore(t)
	buf := bytes.NewBufferString(`{"source":"osv","ecosystem":"npm","name":"a","version":"1.0.0"}` + "\nnot-json\n")

	count, err := seed(context.Background(), store, buf)
	assert.Error(t, err)
	assert.Equal(t, 1, count)
}

func TestWithRepositoryOptionOverridesDefault(t *testing.T) {
	o := &options{repository: "default:latest"}
	WithRepository("ghcr.io/example/bundle:v2").apply(o)
	assert.Equal(t, "ghcr.io/example/bundle:v2", o.repository)
}

func TestWithNoProgressOptionDisablesBar(t *testing.T) {
	o := &options{}
	WithNoProgress(true).apply(o)
	assert.True(t, o.noProgress)
}
