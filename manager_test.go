package kflow

import (
	"context"
	"sync"
	"testing"

	"github.com/alecthomas/assert/v2"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/birdayz/kflow/kstore"
)

func TestManager(t *testing.T) {
	t.Run("create get delete", func(t *testing.T) {
		m := NewManager(registry)

		id, err := m.Create("b", []byte(averageProgram))
		assert.NoError(t, err)
		assert.Equal(t, "b", id)

		generated, err := m.Create("", []byte(averageProgram))
		assert.NoError(t, err)
		_, err = uuid.Parse(generated)
		assert.NoError(t, err)

		_, err = m.Create("b", []byte(averageProgram))
		assert.IsError(t, err, ErrProgramExists)

		assert.Equal(t, 2, len(m.IDs()))
		assert.Equal(t, "b", m.IDs()[0])

		p, err := m.Get("b")
		assert.NoError(t, err)
		assert.Equal(t, "average", p.Description().Title)

		assert.NoError(t, m.Delete("b"))
		_, err = m.Get("b")
		assert.IsError(t, err, ErrProgramNotFound)
		assert.IsError(t, m.Delete("b"), ErrProgramNotFound)
		assert.Equal(t, []string{generated}, m.IDs())
	})

	t.Run("invalid description is not hosted", func(t *testing.T) {
		m := NewManager(registry)
		_, err := m.Create("p", []byte(`{"operators": []}`))
		assert.IsError(t, err, ErrMalformedDescription)
		assert.Equal(t, 0, len(m.IDs()))
	})

	t.Run("enqueue and flush", func(t *testing.T) {
		m := NewManager(registry)
		_, err := m.Create("p", []byte(averageProgram))
		assert.NoError(t, err)

		assert.NoError(t, m.Enqueue("p", Input{Message: number(1, 2)}, Input{Message: number(2, 4)}))
		assert.NoError(t, m.Enqueue("p", Input{Message: number(3, 8)}))

		out, err := m.Flush("p")
		assert.NoError(t, err)
		assert.Equal(t, numbers(2, 3, 3, 6), out.Get("avg", "o1"))

		out, err = m.Flush("p")
		assert.NoError(t, err)
		assert.Equal(t, 0, out.Len())

		assert.NoError(t, m.Enqueue("p", Input{Message: number(4, 10)}))
		out, err = m.FlushDebug("p")
		assert.NoError(t, err)
		assert.Equal(t, numbers(4, 9), out.Get("avg", "o1"))
		assert.Equal(t, numbers(4, 10), out.Get("in", "o1"))

		assert.IsError(t, m.Enqueue("ghost", Input{}), ErrProgramNotFound)
		_, err = m.Flush("ghost")
		assert.IsError(t, err, ErrProgramNotFound)
	})

	t.Run("failed flush empties the buffer", func(t *testing.T) {
		m := NewManager(registry)
		_, err := m.Create("p", []byte(averageProgram))
		assert.NoError(t, err)

		assert.NoError(t, m.Enqueue("p", Input{Port: "bad", Message: number(1, 2)}))
		_, err = m.Flush("p")
		assert.Error(t, err)

		out, err := m.Flush("p")
		assert.NoError(t, err)
		assert.Equal(t, 0, out.Len())
	})

	t.Run("flush all", func(t *testing.T) {
		m := NewManager(registry)
		for _, id := range []string{"a", "b", "c"} {
			_, err := m.Create(id, []byte(averageProgram))
			assert.NoError(t, err)
		}
		assert.NoError(t, m.Enqueue("a", Input{Message: number(1, 2)}, Input{Message: number(2, 4)}))
		assert.NoError(t, m.Enqueue("b", Input{Message: number(1, 10)}, Input{Message: number(2, 20)}))

		res, err := m.FlushAll(context.Background())
		assert.NoError(t, err)
		assert.Equal(t, 3, len(res))
		assert.Equal(t, numbers(2, 3), res["a"].Get("avg", "o1"))
		assert.Equal(t, numbers(2, 15), res["b"].Get("avg", "o1"))
		assert.Equal(t, 0, res["c"].Len())
	})

	t.Run("flush all reports failures", func(t *testing.T) {
		m := NewManager(registry)
		for _, id := range []string{"a", "b"} {
			_, err := m.Create(id, []byte(averageProgram))
			assert.NoError(t, err)
		}
		assert.NoError(t, m.Enqueue("b", Input{Port: "bad", Message: number(1, 2)}))

		_, err := m.FlushAll(context.Background())
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "program b")
	})

	t.Run("concurrent feeding", func(t *testing.T) {
		m := NewManager(registry)
		_, err := m.Create("p", []byte(averageProgram))
		assert.NoError(t, err)

		var wg sync.WaitGroup
		for g := 0; g < 8; g++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for i := 0; i < 50; i++ {
					_ = m.Enqueue("p", Input{Message: number(int64(g*50+i), 1)})
					_, _ = m.Flush("p")
				}
			}()
		}
		wg.Wait()
		_, err = m.Collect("p")
		assert.NoError(t, err)
	})
}

func TestManagerSnapshots(t *testing.T) {
	ctx := context.Background()

	t.Run("save and load", func(t *testing.T) {
		store := kstore.NewMemoryStore()
		m := NewManager(registry)
		_, err := m.Create("p", []byte(averageProgram))
		assert.NoError(t, err)
		assert.NoError(t, m.Enqueue("p", Input{Message: number(1, 2)}))
		_, err = m.Flush("p")
		assert.NoError(t, err)

		assert.NoError(t, m.Save(ctx, store, "p"))

		other := NewManager(registry)
		assert.NoError(t, other.Load(ctx, store, "p"))
		assert.Equal(t, []string{"p"}, other.IDs())

		for _, mgr := range []*Manager{m, other} {
			assert.NoError(t, mgr.Enqueue("p", Input{Message: number(2, 4)}))
			out, err := mgr.Flush("p")
			assert.NoError(t, err)
			assert.Equal(t, numbers(2, 3), out.Get("avg", "o1"))
		}
	})

	t.Run("restore replaces a hosted program", func(t *testing.T) {
		m := NewManager(registry)
		_, err := m.Create("p", []byte(averageProgram))
		assert.NoError(t, err)
		snapshot, err := m.Collect("p")
		assert.NoError(t, err)

		assert.NoError(t, m.Enqueue("p", Input{Message: number(1, 2)}))
		_, err = m.Flush("p")
		assert.NoError(t, err)
		assert.NoError(t, m.Enqueue("p", Input{Message: number(2, 4)}))

		assert.NoError(t, m.Restore("p", snapshot))
		after, err := m.Collect("p")
		assert.NoError(t, err)
		assert.Equal(t, snapshot, after)

		// The pending input was dropped with the old program.
		out, err := m.Flush("p")
		assert.NoError(t, err)
		assert.Equal(t, 0, out.Len())
	})

	t.Run("load missing snapshot", func(t *testing.T) {
		m := NewManager(registry)
		err := m.Load(ctx, kstore.NewMemoryStore(), "p")
		assert.IsError(t, err, kstore.ErrSnapshotNotFound)
	})

	t.Run("save unknown program", func(t *testing.T) {
		m := NewManager(registry)
		err := m.Save(ctx, kstore.NewMemoryStore(), "p")
		assert.IsError(t, err, ErrProgramNotFound)
	})

	t.Run("file store", func(t *testing.T) {
		store, err := kstore.NewFileStore(t.TempDir())
		assert.NoError(t, err)
		m := NewManager(registry)
		_, err = m.Create("p", []byte(divideProgram))
		assert.NoError(t, err)
		assert.NoError(t, m.Save(ctx, store, "p"))

		other := NewManager(registry)
		assert.NoError(t, other.Load(ctx, store, "p"))
		a, _ := m.Collect("p")
		b, _ := other.Collect("p")
		assert.Equal(t, a, b)
	})
}

func TestManagerMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics, err := NewMetrics(reg)
	assert.NoError(t, err)

	m := NewManager(registry, WithMetrics(metrics))
	for _, id := range []string{"a", "b"} {
		_, err := m.Create(id, []byte(averageProgram))
		assert.NoError(t, err)
	}
	assert.NoError(t, m.Enqueue("a", Input{Message: number(1, 2)}, Input{Message: number(2, 4)}))
	_, err = m.Flush("a")
	assert.NoError(t, err)

	n, err := testutil.GatherAndCount(reg, "kflow_messages_received_total")
	assert.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = testutil.GatherAndCount(reg, "kflow_programs")
	assert.NoError(t, err)
	assert.Equal(t, 1, n)

	assert.NoError(t, m.Delete("a"))
	n, err = testutil.GatherAndCount(reg, "kflow_messages_received_total")
	assert.NoError(t, err)
	assert.Equal(t, 0, n)
}
