// Package kstoretest checks kstore.Store implementations against the
// contract of the interface.
package kstoretest

import (
	"context"
	"errors"
	"testing"

	"github.com/alecthomas/assert/v2"

	"github.com/birdayz/kflow/kstore"
)

// Run exercises a store built by newStore. Every subtest gets a fresh store.
func Run(t *testing.T, newStore func(t *testing.T) kstore.Store) {
	ctx := context.Background()

	t.Run("put and get", func(t *testing.T) {
		s := newStore(t)
		assert.NoError(t, s.Put(ctx, "p1", []byte{0, 1, 2, 3}))

		got, err := s.Get(ctx, "p1")
		assert.NoError(t, err)
		assert.Equal(t, []byte{0, 1, 2, 3}, got)
	})

	t.Run("put replaces", func(t *testing.T) {
		s := newStore(t)
		assert.NoError(t, s.Put(ctx, "p1", []byte("old")))
		assert.NoError(t, s.Put(ctx, "p1", []byte("new")))

		got, err := s.Get(ctx, "p1")
		assert.NoError(t, err)
		assert.Equal(t, []byte("new"), got)
	})

	t.Run("get missing", func(t *testing.T) {
		s := newStore(t)
		_, err := s.Get(ctx, "missing")
		assert.True(t, errors.Is(err, kstore.ErrSnapshotNotFound))
	})

	t.Run("returned snapshot is a copy", func(t *testing.T) {
		s := newStore(t)
		in := []byte("abc")
		assert.NoError(t, s.Put(ctx, "p1", in))
		in[0] = 'x'

		got, err := s.Get(ctx, "p1")
		assert.NoError(t, err)
		assert.Equal(t, []byte("abc"), got)
		got[1] = 'x'

		again, err := s.Get(ctx, "p1")
		assert.NoError(t, err)
		assert.Equal(t, []byte("abc"), again)
	})

	t.Run("delete", func(t *testing.T) {
		s := newStore(t)
		assert.NoError(t, s.Put(ctx, "p1", []byte("x")))
		assert.NoError(t, s.Delete(ctx, "p1"))
		_, err := s.Get(ctx, "p1")
		assert.True(t, errors.Is(err, kstore.ErrSnapshotNotFound))

		assert.NoError(t, s.Delete(ctx, "never-stored"))
	})

	t.Run("list is sorted", func(t *testing.T) {
		s := newStore(t)
		for _, id := range []string{"b", "a/b", "c d", "a"} {
			assert.NoError(t, s.Put(ctx, id, []byte(id)))
		}
		ids, err := s.List(ctx)
		assert.NoError(t, err)
		assert.Equal(t, []string{"a", "a/b", "b", "c d"}, ids)
	})

	t.Run("empty store lists nothing", func(t *testing.T) {
		s := newStore(t)
		ids, err := s.List(ctx)
		assert.NoError(t, err)
		assert.Equal(t, 0, len(ids))
	})

	t.Run("canceled context", func(t *testing.T) {
		s := newStore(t)
		canceled, cancel := context.WithCancel(ctx)
		cancel()
		err := s.Put(canceled, "p1", []byte("x"))
		assert.True(t, errors.Is(err, context.Canceled))
	})
}
