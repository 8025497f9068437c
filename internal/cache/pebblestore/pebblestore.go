// Package pebblestore is a cache.Backend over github.com/cockroachdb/pebble/v2,
// an LSM key-value store. vuls2's go.mod carries pebble/v2 as a transitive
// dependency of its boltdb stack without ever opening one directly; this
// package gives it a first-class home as a selectable cache backend
// alongside boltdb and redis (spec §4.4 backend factory).
package pebblestore

import (
	"context"
	"encoding/json"

	"github.com/cockroachdb/pebble/v2"
	"github.com/pkg/errors"

	"github.com/afadesigns/rtx/internal/cache"
)

// Backend is a pebble-backed cache.Backend.
type Backend struct {
	db *pebble.DB
}

// Open opens (or creates) a pebble store at dir.
func Open(dir string) (*Backend, error) {
	db, err := pebble.Open(dir, &pebble.Options{})
	if err != nil {
		return nil, errors.Wrapf(err, "open pebble store at %s", dir)
	}
	return &Backend{db: db}, nil
}

func (b *Backend) Get(_ context.Context, key string) (cache.Record, bool, error) {
	raw, closer, err := b.db.Get([]byte(key))
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return cache.Record{}, false, nil
		}
		return cache.Record{}, false, errors.Wrapf(err, "get %s", key)
	}
	defer closer.Close()

	var record cache.Record
	if err := json.Unmarshal(raw, &record); err != nil {
		return cache.Record{}, false, errors.Wrapf(err, "unmarshal cache:%s", key)
	}
	return record, true, nil
}

func (b *Backend) Put(_ context.Context, key string, record cache.Record) error {
	raw, err := json.Marshal(record)
	if err != nil {
		return errors.Wrap(err, "marshal cache record")
	}
	return errors.Wrapf(b.db.Set([]byte(key), raw, pebble.Sync), "set %s", key)
}

func (b *Backend) Delete(_ context.Context, key string) error {
	return errors.Wrapf(b.db.Delete([]byte(key), pebble.Sync), "delete %s", key)
}

func (b *Backend) Close() error {
	return b.db.Close()
}
