package koperator

import (
	"errors"
	"testing"

	"github.com/alecthomas/assert/v2"

	"github.com/birdayz/kflow/kmessage"
	"github.com/birdayz/kflow/kserde"
)

func newTestBase(t *testing.T) *Base {
	t.Helper()
	b, err := NewBase("Test", "op",
		DataPort("i1", kmessage.KindNumber, 2),
		DataPort("i2", kmessage.KindBoolean, 0),
		ControlPort("c1", kmessage.KindNumber, 0),
		OutputPort("o1", kmessage.KindNumber),
	)
	assert.NoError(t, err)
	return b
}

func TestNewBase(t *testing.T) {
	t.Run("duplicate port names across classes", func(t *testing.T) {
		_, err := NewBase("Test", "op",
			DataPort("x", kmessage.KindNumber, 0),
			OutputPort("x", kmessage.KindNumber),
		)
		assert.True(t, errors.Is(err, ErrDuplicatePortName))
	})

	t.Run("empty port name", func(t *testing.T) {
		_, err := NewBase("Test", "op", DataPort("", kmessage.KindNumber, 0))
		assert.True(t, errors.Is(err, ErrInvalidParameter))
	})

	t.Run("invalid port type", func(t *testing.T) {
		_, err := NewBase("Test", "op", DataPort("i1", kmessage.Kind(0), 0))
		assert.True(t, errors.Is(err, ErrInvalidParameter))
	})

	t.Run("outputs have no queue", func(t *testing.T) {
		b := newTestBase(t)
		assert.Zero(t, b.Queue("o1"))
		assert.Zero(t, b.Queue("nope"))
		assert.Equal(t, 2, len(b.Queues(DataInput)))
		assert.Equal(t, 1, len(b.Queues(ControlInput)))
	})
}

func TestReceive(t *testing.T) {
	t.Run("buffers a copy", func(t *testing.T) {
		b := newTestBase(t)
		assert.NoError(t, b.ReceiveData("i1", kmessage.NewNumber(1, 5)))
		assert.Equal(t, 1, b.Queue("i1").Len())
		assert.Equal(t, 1, b.Fresh())
		assert.Equal(t, 0, b.Fresh())
	})

	t.Run("unknown port leaves state untouched", func(t *testing.T) {
		b := newTestBase(t)
		assert.NoError(t, b.ReceiveData("i1", kmessage.NewNumber(1, 5)))
		before := kserde.NewEncoder()
		b.Collect(before)

		err := b.ReceiveData("i9", kmessage.NewNumber(2, 5))
		assert.True(t, errors.Is(err, ErrUnknownPort))
		err = b.ReceiveData("c1", kmessage.NewNumber(2, 5))
		assert.True(t, errors.Is(err, ErrUnknownPort))
		err = b.ReceiveControl("i1", kmessage.NewNumber(2, 5))
		assert.True(t, errors.Is(err, ErrUnknownPort))
		err = b.ReceiveData("o1", kmessage.NewNumber(2, 5))
		assert.True(t, errors.Is(err, ErrUnknownPort))

		after := kserde.NewEncoder()
		b.Collect(after)
		assert.Equal(t, before.Data(), after.Data())
	})

	t.Run("payload type mismatch", func(t *testing.T) {
		b := newTestBase(t)
		err := b.ReceiveData("i2", kmessage.NewNumber(1, 1))
		assert.True(t, errors.Is(err, ErrPayloadType))
		assert.Equal(t, 0, b.Queue("i2").Len())
		assert.NoError(t, b.ReceiveData("i2", kmessage.NewBoolean(1, true)))
	})

	t.Run("capacity evicts oldest", func(t *testing.T) {
		b := newTestBase(t)
		for i := int64(1); i <= 3; i++ {
			assert.NoError(t, b.ReceiveData("i1", kmessage.NewNumber(i, float64(i))))
		}
		q := b.Queue("i1")
		assert.Equal(t, 2, q.Len())
		assert.Equal(t, int64(2), q.At(0).Time)
	})
}

func TestBaseCollectRestore(t *testing.T) {
	b := newTestBase(t)
	assert.NoError(t, b.ReceiveData("i1", kmessage.NewNumber(1, 1.5)))
	assert.NoError(t, b.ReceiveData("i2", kmessage.NewBoolean(1, true)))
	assert.NoError(t, b.ReceiveControl("c1", kmessage.NewNumber(2, -3)))
	enc := kserde.NewEncoder()
	b.Collect(enc)

	t.Run("round trip", func(t *testing.T) {
		restored := newTestBase(t)
		dec := kserde.NewDecoder(enc.Data())
		assert.NoError(t, restored.Restore(dec))
		assert.NoError(t, dec.Done())

		again := kserde.NewEncoder()
		restored.Collect(again)
		assert.Equal(t, enc.Data(), again.Data())
	})

	t.Run("kind mismatch", func(t *testing.T) {
		other, err := NewBase("Test", "op",
			DataPort("i1", kmessage.KindNumber, 2),
			DataPort("i2", kmessage.KindNumber, 0),
			ControlPort("c1", kmessage.KindNumber, 0),
		)
		assert.NoError(t, err)
		err = other.Restore(kserde.NewDecoder(enc.Data()))
		assert.True(t, errors.Is(err, kserde.ErrSerializationMismatch))
	})

	t.Run("truncated", func(t *testing.T) {
		restored := newTestBase(t)
		err := restored.Restore(kserde.NewDecoder(enc.Data()[:len(enc.Data())-1]))
		assert.True(t, errors.Is(err, kserde.ErrSerializationMismatch))
	})
}
