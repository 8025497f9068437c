// Package cache implements the content-addressed, LRU-bounded,
// single-flight-coalescing cache layer shared by every provider (spec
// §4.4). The LRU + single-flight shape is grounded on
// jinterlante1206-AleutianLocal's BlastRadiusCache (container/list LRU
// fronting golang.org/x/sync/singleflight); the pluggable persistent
// backend (boltdb/redis/pebble) is grounded on vuls2's
// pkg/db/common.Config.New() backend-selection factory.
package cache

import (
	"container/list"
	"context"
	"hash/crc32"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"
	"github.com/pkg/errors"
	"golang.org/x/sync/singleflight"

	"github.com/afadesigns/rtx/internal/trust"
)

// ErrNegative is returned by Fetch when the key is a cached negative
// result (spec §9: negative caching, default off).
var ErrNegative = errors.New("cache: negative entry")

// Record is the on-backend representation of one cache entry: a
// CRC32-checked, zstd-compressed payload plus its lifecycle timestamps.
type Record struct {
	Payload   []byte
	FetchedAt time.Time
	ExpiresAt time.Time
	Checksum  uint32
	Negative  bool
}

// Backend is the persistence contract a cache backend must satisfy.
// Implementations never evict on their own; eviction is the Store's job.
type Backend interface {
	Get(ctx context.Context, key string) (Record, bool, error)
	Put(ctx context.Context, key string, record Record) error
	Delete(ctx context.Context, key string) error
	Close() error
}

// Config configures a Store.
type Config struct {
	Backend             Backend
	MaxEntriesPerSource  int           // default 512, spec §4.4
	NegativeCacheTTL     time.Duration // 0 disables negative caching
}

// Store is the shared cache layer: one LRU index per source, backed by a
// single persistent Backend, with single-flight coalescing of concurrent
// misses for the same key (spec §4.4, §5: "at most one upstream request
// in flight per key").
type Store struct {
	backend      Backend
	maxPerSource int
	negativeTTL  time.Duration

	flight singleflight.Group

	mu    sync.Mutex
	lru   map[string]*list.List
	elems map[string]map[string]*list.Element

	encoder *zstd.Encoder
	decoder *zstd.Decoder
}

// New constructs a Store. The zstd encoder/decoder are created once and
// reused across all Fetch calls (they are safe for concurrent use).
func New(cfg Config) (*Store, error) {
	if cfg.Backend == nil {
		return nil, errors.New("cache: backend is required")
	}
	if cfg.MaxEntriesPerSource <= 0 {
		cfg.MaxEntriesPerSource = 512
	}

	enc, err := zstd.NewWriter(nil)
	if err != nil {
		return nil, errors.Wrap(err, "cache: new zstd encoder")
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, errors.Wrap(err, "cache: new zstd decoder")
	}

	return &Store{
		backend:      cfg.Backend,
		maxPerSource: cfg.MaxEntriesPerSource,
		negativeTTL:  cfg.NegativeCacheTTL,
		lru:          make(map[string]*list.List),
		elems:        make(map[string]map[string]*list.Element),
		encoder:      enc,
		decoder:      dec,
	}, nil
}

// Close releases the zstd resources and the backend.
func (s *Store) Close() error {
	s.encoder.Close()
	s.decoder.Close()
	return s.backend.Close()
}

// Fetch returns the cached payload for key if present and unexpired;
// otherwise it calls fn exactly once even under concurrent callers for
// the same key (single-flight), stores the successful result, and
// returns it. A cache hit never returns an entry whose ExpiresAt is in
// the past (spec §3 invariant).
func (s *Store) Fetch(ctx context.Context, key trust.CacheKey, ttl time.Duration, fn func(context.Context) ([]byte, error)) ([]byte, bool, error) {
	keyStr := key.String()
	now := time.Now()

	if record, ok, err := s.backend.Get(ctx, keyStr); err == nil && ok {
		if !record.Expired(now) {
			if record.Negative {
				s.touch(key.Source, keyStr)
				return nil, true, ErrNegative
			}
			payload, decErr := s.decompress(record.Payload)
			if decErr == nil && crc32.ChecksumIEEE(payload) == record.Checksum {
				s.touch(key.Source, keyStr)
				return payload, true, nil
			}
			// Corrupt entry: evict and fall through to a miss (spec §7).
			_ = s.backend.Delete(ctx, keyStr)
		}
	}

	result, err, _ := s.flight.Do(keyStr, func() (interface{}, error) {
		payload, fetchErr := fn(ctx)
		if fetchErr != nil {
			if s.negativeTTL > 0 {
				_ = s.backend.Put(ctx, keyStr, Record{
					FetchedAt: now,
					ExpiresAt: now.Add(s.negativeTTL),
					Negative:  true,
				})
				s.insert(key.Source, keyStr)
			}
			return nil, fetchErr
		}

		compressed := s.encoder.EncodeAll(payload, nil)
		record := Record{
			Payload:   compressed,
			FetchedAt: now,
			ExpiresAt: now.Add(ttl),
			Checksum:  crc32.ChecksumIEEE(payload),
		}
		if putErr := s.backend.Put(ctx, keyStr, record); putErr != nil {
			return nil, errors.Wrap(putErr, "cache: put")
		}
		s.insert(key.Source, keyStr)
		return payload, nil
	})

	if err != nil {
		return nil, false, err
	}
	return result.([]byte), false, nil
}

// Seed writes payload for key directly into the backend, as if it had
// been fetched and cached at fetchedAt with the given expiry. Used by
// internal/bundle to prime the cache from an offline snapshot without
// going through a provider's fn callback.
func (s *Store) Seed(ctx context.Context, key trust.CacheKey, payload []byte, fetchedAt, expiresAt time.Time) error {
	compressed := s.encoder.EncodeAll(payload, nil)
	record := Record{
		Payload:   compressed,
		FetchedAt: fetchedAt,
		ExpiresAt: expiresAt,
		Checksum:  crc32.ChecksumIEEE(payload),
	}
	if err := s.backend.Put(ctx, key.String(), record); err != nil {
		return errors.Wrap(err, "cache: seed put")
	}
	s.insert(key.Source, key.String())
	return nil
}

func (s *Store) decompress(payload []byte) ([]byte, error) {
	return s.decoder.DecodeAll(payload, nil)
}

// touch marks key as most-recently-used within its source's LRU list.
func (s *Store) touch(source, key string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	elems, ok := s.elems[source]
	if !ok {
		return
	}
	if el, ok := elems[key]; ok {
		s.lru[source].MoveToFront(el)
	}
}

// insert records key as most-recently-used, evicting the oldest entry in
// its source once the configured bound is exceeded.
func (s *Store) insert(source, key string) {
	s.mu.Lock()

	if _, ok := s.lru[source]; !ok {
		s.lru[source] = list.New()
		s.elems[source] = make(map[string]*list.Element)
	}
	l := s.lru[source]
	elems := s.elems[source]

	if el, ok := elems[key]; ok {
		l.MoveToFront(el)
		s.mu.Unlock()
		return
	}
	elems[key] = l.PushFront(key)

	var evicted []string
	for l.Len() > s.maxPerSource {
		back := l.Back()
		if back == nil {
			break
		}
		evictedKey := back.Value.(string)
		l.Remove(back)
		delete(elems, evictedKey)
		evicted = append(evicted, evictedKey)
	}
	s.mu.Unlock()

	for _, k := range evicted {
		_ = s.backend.Delete(context.Background(), k)
	}
}

// Expired reports whether r is no longer valid at the given instant
// (zero ExpiresAt means "never expires", used only by negative-cache-off
// configurations that shouldn't reach this path in practice).
func (r Record) Expired(now time.Time) bool {
	return !r.ExpiresAt.IsZero() && now.After(r.ExpiresAt)
}
