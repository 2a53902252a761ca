// Package pebble is a kstore.Store backed by a Pebble database.
package pebble

import (
	"context"
	"errors"
	"fmt"

	"github.com/cockroachdb/pebble"

	"github.com/birdayz/kflow/kstore"
)

var keyPrefix = []byte("snapshot/")

type pebbleStore struct {
	db   *pebble.DB
	sync bool
}

type Option func(*pebbleStore)

// WithSync fsyncs the WAL on every write.
var WithSync = func(sync bool) Option {
	return func(s *pebbleStore) {
		s.sync = sync
	}
}

// Open opens or creates the database in dir.
func Open(dir string, opts ...Option) (kstore.Store, error) {
	db, err := pebble.Open(dir, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", dir, err)
	}
	s := &pebbleStore{db: db, sync: true}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func key(id string) []byte {
	k := make([]byte, 0, len(keyPrefix)+len(id))
	k = append(k, keyPrefix...)
	return append(k, id...)
}

func (s *pebbleStore) writeOptions() *pebble.WriteOptions {
	if s.sync {
		return pebble.Sync
	}
	return pebble.NoSync
}

func (s *pebbleStore) Put(ctx context.Context, id string, snapshot []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.Set(key(id), snapshot, s.writeOptions())
}

func (s *pebbleStore) Get(ctx context.Context, id string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	v, closer, err := s.db.Get(key(id))
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", kstore.ErrSnapshotNotFound, id)
		}
		return nil, err
	}
	defer closer.Close()

	res := make([]byte, len(v))
	copy(res, v)

	return res, nil
}

func (s *pebbleStore) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.Delete(key(id), s.writeOptions())
}

func (s *pebbleStore) List(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	upper := make([]byte, len(keyPrefix))
	copy(upper, keyPrefix)
	upper[len(upper)-1]++

	iter := s.db.NewIter(&pebble.IterOptions{
		LowerBound: keyPrefix,
		UpperBound: upper,
	})
	var ids []string
	for valid := iter.First(); valid; valid = iter.Next() {
		ids = append(ids, string(iter.Key()[len(keyPrefix):]))
	}
	if err := iter.Error(); err != nil {
		_ = iter.Close()
		return nil, err
	}
	// Keys are ordered bytewise, which is the order of the ids.
	return ids, iter.Close()
}

func (s *pebbleStore) Close() error {
	if err := s.db.Flush(); err != nil {
		return err
	}
	return s.db.Close()
}

var _ kstore.Store = (*pebbleStore)(nil)
