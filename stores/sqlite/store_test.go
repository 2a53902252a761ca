package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/alecthomas/assert/v2"

	"github.com/birdayz/kflow/kstore"
	"github.com/birdayz/kflow/kstore/kstoretest"
)

func TestStore(t *testing.T) {
	kstoretest.Run(t, func(t *testing.T) kstore.Store {
		s, err := Open(context.Background(), filepath.Join(t.TempDir(), "snapshots.db"))
		assert.NoError(t, err)
		t.Cleanup(func() { _ = s.Close() })
		return s
	})

	t.Run("in memory", func(t *testing.T) {
		s, err := Open(context.Background(), ":memory:")
		assert.NoError(t, err)
		defer s.Close()

		assert.NoError(t, s.Put(context.Background(), "p1", []byte("x")))
		got, err := s.Get(context.Background(), "p1")
		assert.NoError(t, err)
		assert.Equal(t, []byte("x"), got)
	})

	t.Run("reopen keeps snapshots and schema", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "snapshots.db")
		s, err := Open(context.Background(), path)
		assert.NoError(t, err)
		assert.NoError(t, s.Put(context.Background(), "p1", []byte("state")))
		assert.NoError(t, s.Close())

		s, err = Open(context.Background(), path)
		assert.NoError(t, err)
		defer s.Close()
		got, err := s.Get(context.Background(), "p1")
		assert.NoError(t, err)
		assert.Equal(t, []byte("state"), got)
	})

	t.Run("updated at", func(t *testing.T) {
		s, err := Open(context.Background(), ":memory:")
		assert.NoError(t, err)
		defer s.Close()

		at := time.UnixMilli(1_700_000_000_000)
		s.now = func() time.Time { return at }
		assert.NoError(t, s.Put(context.Background(), "p1", []byte("x")))

		got, err := s.UpdatedAt(context.Background(), "p1")
		assert.NoError(t, err)
		assert.True(t, got.Equal(at))

		_, err = s.UpdatedAt(context.Background(), "missing")
		assert.IsError(t, err, kstore.ErrSnapshotNotFound)
	})
}
