package kserde

import (
	"errors"
	"math"
	"testing"

	"github.com/alecthomas/assert/v2"
)

func TestEncoderDecoder(t *testing.T) {
	t.Run("mixed values round trip", func(t *testing.T) {
		enc := NewEncoder()
		enc.WriteUint8(7)
		enc.WriteBool(true)
		enc.WriteInt64(-9)
		enc.WriteFloat64(math.Inf(-1))
		enc.WriteString("ma1")
		enc.WriteBytes([]byte{0xde, 0xad})
		enc.WriteRaw([]byte{1, 2})

		dec := NewDecoder(enc.Data())
		u, err := dec.ReadUint8()
		assert.NoError(t, err)
		assert.Equal(t, uint8(7), u)

		b, err := dec.ReadBool()
		assert.NoError(t, err)
		assert.True(t, b)

		i, err := dec.ReadInt64()
		assert.NoError(t, err)
		assert.Equal(t, int64(-9), i)

		f, err := dec.ReadFloat64()
		assert.NoError(t, err)
		assert.True(t, math.IsInf(f, -1))

		s, err := dec.ReadString()
		assert.NoError(t, err)
		assert.Equal(t, "ma1", s)

		raw, err := dec.ReadBytes()
		assert.NoError(t, err)
		assert.Equal(t, []byte{0xde, 0xad}, raw)

		tail, err := dec.ReadRaw(2)
		assert.NoError(t, err)
		assert.Equal(t, []byte{1, 2}, tail)

		assert.NoError(t, dec.Done())
	})

	t.Run("NaN bits preserved", func(t *testing.T) {
		nan := math.Float64frombits(0x7ff8000000000abc)
		enc := NewEncoder()
		enc.WriteFloat64(nan)
		got, err := NewDecoder(enc.Data()).ReadFloat64()
		assert.NoError(t, err)
		assert.Equal(t, uint64(0x7ff8000000000abc), math.Float64bits(got))
	})

	t.Run("read past end", func(t *testing.T) {
		dec := NewDecoder([]byte{0, 0, 0})
		_, err := dec.ReadUint64()
		assert.Error(t, err)
		assert.True(t, errors.Is(err, ErrSerializationMismatch))
		assert.Equal(t, 0, dec.Offset())
	})

	t.Run("length header larger than input", func(t *testing.T) {
		enc := NewEncoder()
		enc.WriteUint64(1 << 40)
		enc.WriteRaw([]byte("abc"))

		_, err := NewDecoder(enc.Data()).ReadBytes()
		assert.True(t, errors.Is(err, ErrSerializationMismatch))

		_, err = NewDecoder(enc.Data()).ReadLength(9)
		assert.True(t, errors.Is(err, ErrSerializationMismatch))
	})

	t.Run("invalid bool", func(t *testing.T) {
		_, err := NewDecoder([]byte{2}).ReadBool()
		assert.True(t, errors.Is(err, ErrSerializationMismatch))
	})

	t.Run("trailing bytes", func(t *testing.T) {
		dec := NewDecoder([]byte{1, 2})
		_, err := dec.ReadUint8()
		assert.NoError(t, err)
		assert.True(t, errors.Is(dec.Done(), ErrSerializationMismatch))
	})
}
