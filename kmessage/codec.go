package kmessage

import (
	"fmt"

	"github.com/birdayz/kflow/kserde"
)

// Encode writes the message as i64 time followed by the payload.
func Encode(enc *kserde.Encoder, m Message) {
	enc.WriteInt64(m.Time)
	EncodePayload(enc, m.Data)
}

// Decode reads a message written by Encode.
func Decode(dec *kserde.Decoder) (Message, error) {
	t, err := dec.ReadInt64()
	if err != nil {
		return Message{}, err
	}
	p, err := DecodePayload(dec)
	if err != nil {
		return Message{}, err
	}
	return Message{Time: t, Data: p}, nil
}

// EncodePayload writes a kind byte followed by the payload data. Boolean
// vectors are bit-packed, least significant bit first.
func EncodePayload(enc *kserde.Encoder, p Payload) {
	if p == nil {
		enc.WriteUint8(0)
		return
	}
	enc.WriteUint8(uint8(p.Kind()))
	switch d := p.(type) {
	case Number:
		enc.WriteFloat64(float64(d))
	case Boolean:
		enc.WriteBool(bool(d))
	case Vector:
		enc.WriteUint64(uint64(len(d)))
		for _, x := range d {
			enc.WriteFloat64(x)
		}
	case BooleanVector:
		enc.WriteUint64(uint64(len(d)))
		packed := make([]byte, (len(d)+7)/8)
		for i, b := range d {
			if b {
				packed[i/8] |= 1 << (i % 8)
			}
		}
		enc.WriteRaw(packed)
	}
}

// DecodePayload reads a payload written by EncodePayload.
func DecodePayload(dec *kserde.Decoder) (Payload, error) {
	k, err := dec.ReadUint8()
	if err != nil {
		return nil, err
	}
	switch Kind(k) {
	case 0:
		return nil, nil
	case KindNumber:
		v, err := dec.ReadFloat64()
		if err != nil {
			return nil, err
		}
		return Number(v), nil
	case KindBoolean:
		v, err := dec.ReadBool()
		if err != nil {
			return nil, err
		}
		return Boolean(v), nil
	case KindVector:
		n, err := dec.ReadLength(8)
		if err != nil {
			return nil, err
		}
		v := make(Vector, n)
		for i := range v {
			if v[i], err = dec.ReadFloat64(); err != nil {
				return nil, err
			}
		}
		return v, nil
	case KindBooleanVector:
		n, err := dec.ReadUint64()
		if err != nil {
			return nil, err
		}
		if n > uint64(dec.Remaining())*8 {
			return nil, fmt.Errorf("%w: boolean vector of %d elements exceeds input", kserde.ErrSerializationMismatch, n)
		}
		packed, err := dec.ReadRaw(int((n + 7) / 8))
		if err != nil {
			return nil, err
		}
		v := make(BooleanVector, n)
		for i := range v {
			v[i] = packed[i/8]&(1<<(i%8)) != 0
		}
		return v, nil
	default:
		return nil, fmt.Errorf("%w: unknown payload kind %d", kserde.ErrSerializationMismatch, k)
	}
}
