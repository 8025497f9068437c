// Package rediscache adapts vuls2's rueidis command-builder idiom
// (pkg/db/common/redis/redis.go) into a cache.Backend.
//
// redis: STRING KEY: "<cache key>" VALUE: json-encoded cache.Record, PX
// set to the record's remaining TTL so Redis itself reclaims expired
// entries between runs.
package rediscache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/rueidis"

	"github.com/afadesigns/rtx/internal/cache"
)

// Backend is a rueidis-backed cache.Backend.
type Backend struct {
	conn rueidis.Client
}

// Open connects to redis using opt.
func Open(opt rueidis.ClientOption) (*Backend, error) {
	client, err := rueidis.NewClient(opt)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return &Backend{conn: client}, nil
}

func (b *Backend) Get(ctx context.Context, key string) (cache.Record, bool, error) {
	raw, err := b.conn.Do(ctx, b.conn.B().Get().Key(key).Build()).AsBytes()
	if err != nil {
		if rueidis.IsRedisNil(err) {
			return cache.Record{}, false, nil
		}
		return cache.Record{}, false, errors.Wrapf(err, "GET %s", key)
	}

	var record cache.Record
	if err := json.Unmarshal(raw, &record); err != nil {
		return cache.Record{}, false, errors.Wrapf(err, "unmarshal cache:%s", key)
	}
	return record, true, nil
}

func (b *Backend) Put(ctx context.Context, key string, record cache.Record) error {
	raw, err := json.Marshal(record)
	if err != nil {
		return errors.Wrap(err, "marshal cache record")
	}

	ttl := time.Until(record.ExpiresAt)
	if ttl <= 0 {
		ttl = time.Minute
	}

	if err := b.conn.Do(ctx, b.conn.B().Set().Key(key).Value(string(raw)).Px(ttl).Build()).Error(); err != nil {
		return errors.Wrapf(err, "SET %s", key)
	}
	return nil
}

func (b *Backend) Delete(ctx context.Context, key string) error {
	if err := b.conn.Do(ctx, b.conn.B().Del().Key(key).Build()).Error(); err != nil {
		return errors.Wrapf(err, "DEL %s", key)
	}
	return nil
}

func (b *Backend) Close() error {
	b.conn.Close()
	return nil
}
