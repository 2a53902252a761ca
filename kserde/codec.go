// Package kserde holds the binary codec used for state snapshots. All
// fixed-width values are big-endian.
package kserde

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

// ErrSerializationMismatch is returned when encoded state does not match what
// the reader expects, most commonly because the input ends early.
var ErrSerializationMismatch = errors.New("serialization mismatch")

// Encoder appends values to a growing byte slice. It never fails.
type Encoder struct {
	buf []byte
}

func NewEncoder() *Encoder {
	return &Encoder{buf: make([]byte, 0, 256)}
}

// Data returns the encoded bytes. The slice is owned by the encoder until it
// is no longer written to.
func (e *Encoder) Data() []byte {
	return e.buf
}

func (e *Encoder) Len() int {
	return len(e.buf)
}

func (e *Encoder) WriteUint8(v uint8) {
	e.buf = append(e.buf, v)
}

func (e *Encoder) WriteBool(v bool) {
	if v {
		e.buf = append(e.buf, 1)
		return
	}
	e.buf = append(e.buf, 0)
}

func (e *Encoder) WriteUint64(v uint64) {
	e.buf = binary.BigEndian.AppendUint64(e.buf, v)
}

func (e *Encoder) WriteInt64(v int64) {
	e.WriteUint64(uint64(v))
}

// WriteFloat64 writes the IEEE 754 bits, so NaN payloads and signed zeros
// survive a round trip.
func (e *Encoder) WriteFloat64(v float64) {
	e.WriteUint64(math.Float64bits(v))
}

// WriteBytes writes a u64 length header followed by b.
func (e *Encoder) WriteBytes(b []byte) {
	e.WriteUint64(uint64(len(b)))
	e.buf = append(e.buf, b...)
}

func (e *Encoder) WriteString(s string) {
	e.WriteUint64(uint64(len(s)))
	e.buf = append(e.buf, s...)
}

// WriteRaw appends b without a length header.
func (e *Encoder) WriteRaw(b []byte) {
	e.buf = append(e.buf, b...)
}

// Decoder reads values written by Encoder. Every read is bounds checked; a
// read past the end of the input fails with ErrSerializationMismatch and
// leaves the offset unchanged.
type Decoder struct {
	data []byte
	off  int
}

func NewDecoder(data []byte) *Decoder {
	return &Decoder{data: data}
}

// Remaining returns the number of unread bytes.
func (d *Decoder) Remaining() int {
	return len(d.data) - d.off
}

// Offset returns the number of bytes consumed so far.
func (d *Decoder) Offset() int {
	return d.off
}

func (d *Decoder) take(n int, what string) ([]byte, error) {
	if n < 0 || n > d.Remaining() {
		return nil, fmt.Errorf("%w: reading %s needs %d bytes at offset %d, %d left",
			ErrSerializationMismatch, what, n, d.off, d.Remaining())
	}
	b := d.data[d.off : d.off+n]
	d.off += n
	return b, nil
}

func (d *Decoder) ReadUint8() (uint8, error) {
	b, err := d.take(1, "uint8")
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (d *Decoder) ReadBool() (bool, error) {
	b, err := d.take(1, "bool")
	if err != nil {
		return false, err
	}
	switch b[0] {
	case 0:
		return false, nil
	case 1:
		return true, nil
	default:
		d.off--
		return false, fmt.Errorf("%w: invalid bool byte 0x%02x at offset %d", ErrSerializationMismatch, b[0], d.off)
	}
}

func (d *Decoder) ReadUint64() (uint64, error) {
	b, err := d.take(8, "uint64")
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(b), nil
}

func (d *Decoder) ReadInt64() (int64, error) {
	v, err := d.ReadUint64()
	return int64(v), err
}

func (d *Decoder) ReadFloat64() (float64, error) {
	v, err := d.ReadUint64()
	if err != nil {
		return 0, err
	}
	return math.Float64frombits(v), nil
}

// ReadLength reads a u64 count and checks that at least count*minSize bytes
// follow it, so corrupt headers cannot trigger huge allocations.
func (d *Decoder) ReadLength(minSize int) (int, error) {
	start := d.off
	n, err := d.ReadUint64()
	if err != nil {
		return 0, err
	}
	if minSize < 1 {
		minSize = 1
	}
	if n > uint64(d.Remaining()/minSize) {
		d.off = start
		return 0, fmt.Errorf("%w: length %d at offset %d exceeds remaining %d bytes",
			ErrSerializationMismatch, n, start, d.Remaining())
	}
	return int(n), nil
}

// ReadBytes reads a length-prefixed byte string. The result is a copy.
func (d *Decoder) ReadBytes() ([]byte, error) {
	start := d.off
	n, err := d.ReadUint64()
	if err != nil {
		return nil, err
	}
	if n > uint64(d.Remaining()) {
		d.off = start
		return nil, fmt.Errorf("%w: byte string of %d bytes at offset %d, %d left",
			ErrSerializationMismatch, n, start, d.Remaining())
	}
	b, _ := d.take(int(n), "bytes")
	res := make([]byte, len(b))
	copy(res, b)
	return res, nil
}

func (d *Decoder) ReadString() (string, error) {
	b, err := d.ReadBytes()
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// ReadRaw reads exactly n bytes without a length header. The result is a
// copy.
func (d *Decoder) ReadRaw(n int) ([]byte, error) {
	b, err := d.take(n, "raw bytes")
	if err != nil {
		return nil, err
	}
	res := make([]byte, n)
	copy(res, b)
	return res, nil
}

// Done fails if unread bytes remain.
func (d *Decoder) Done() error {
	if d.Remaining() != 0 {
		return fmt.Errorf("%w: %d trailing bytes at offset %d", ErrSerializationMismatch, d.Remaining(), d.off)
	}
	return nil
}
