// Package boltdb adapts vuls2's bolt.Open/View/Update connection idiom
// (pkg/db/common/boltdb/boltdb.go) into a cache.Backend backed by a
// single bbolt file with one bucket per source.
package boltdb

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	bolt "go.etcd.io/bbolt"

	"github.com/afadesigns/rtx/internal/cache"
)

// Backend is a bbolt-backed cache.Backend. One bucket holds every key;
// the key already embeds the source (trust.CacheKey.String()).
type Backend struct {
	conn *bolt.DB
}

const bucketName = "cache"

// Open creates or opens the bbolt file at path.
func Open(path string) (*Backend, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, errors.WithStack(err)
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bucketName))
		return errors.Wrapf(err, "create bucket:%q if not exists", bucketName)
	}); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Backend{conn: db}, nil
}

func (b *Backend) Get(_ context.Context, key string) (cache.Record, bool, error) {
	var record cache.Record
	var found bool
	if err := b.conn.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(bucketName))
		if bucket == nil {
			return errors.Errorf("bucket:%q is not exists", bucketName)
		}
		raw := bucket.Get([]byte(key))
		if raw == nil {
			return nil
		}
		found = true
		return errors.Wrapf(json.Unmarshal(raw, &record), "unmarshal cache:%s", key)
	}); err != nil {
		return cache.Record{}, false, err
	}
	return record, found, nil
}

func (b *Backend) Put(_ context.Context, key string, record cache.Record) error {
	raw, err := json.Marshal(record)
	if err != nil {
		return errors.Wrap(err, "marshal cache record")
	}
	return b.conn.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(bucketName))
		if bucket == nil {
			return errors.Errorf("bucket:%q is not exists", bucketName)
		}
		return errors.Wrapf(bucket.Put([]byte(key), raw), "put cache:%s", key)
	})
}

func (b *Backend) Delete(_ context.Context, key string) error {
	return b.conn.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(bucketName))
		if bucket == nil {
			return nil
		}
		return errors.Wrapf(bucket.Delete([]byte(key)), "delete cache:%s", key)
	})
}

func (b *Backend) Close() error {
	return b.conn.Close()
}
