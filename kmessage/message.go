// Package kmessage defines the timestamped messages that flow between
// operators.
package kmessage

import (
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"
)

// Kind identifies a payload variant. The numeric values are part of the
// snapshot format.
type Kind uint8

const (
	KindNumber Kind = iota + 1
	KindBoolean
	KindVector
	KindBooleanVector
)

func (k Kind) String() string {
	switch k {
	case KindNumber:
		return "number"
	case KindBoolean:
		return "boolean"
	case KindVector:
		return "vector_number"
	case KindBooleanVector:
		return "vector_boolean"
	default:
		return "unknown(" + strconv.Itoa(int(k)) + ")"
	}
}

// ParseKind is the inverse of Kind.String.
func ParseKind(s string) (Kind, error) {
	switch s {
	case "number":
		return KindNumber, nil
	case "boolean":
		return KindBoolean, nil
	case "vector_number":
		return KindVector, nil
	case "vector_boolean":
		return KindBooleanVector, nil
	default:
		return 0, fmt.Errorf("unknown payload kind %q", s)
	}
}

// Payload is one of Number, Boolean, Vector or BooleanVector.
type Payload interface {
	Kind() Kind
	// Clone returns a copy that shares no memory with the receiver.
	Clone() Payload
	String() string
}

type Number float64

func (Number) Kind() Kind       { return KindNumber }
func (n Number) Clone() Payload { return n }
func (n Number) String() string { return strconv.FormatFloat(float64(n), 'g', -1, 64) }

type Boolean bool

func (Boolean) Kind() Kind       { return KindBoolean }
func (b Boolean) Clone() Payload { return b }
func (b Boolean) String() string { return strconv.FormatBool(bool(b)) }

type Vector []float64

func (Vector) Kind() Kind       { return KindVector }
func (v Vector) Clone() Payload { return slices.Clone(v) }

func (v Vector) String() string {
	parts := make([]string, len(v))
	for i, x := range v {
		parts[i] = Number(x).String()
	}
	return "[" + strings.Join(parts, " ") + "]"
}

type BooleanVector []bool

func (BooleanVector) Kind() Kind       { return KindBooleanVector }
func (v BooleanVector) Clone() Payload { return slices.Clone(v) }

func (v BooleanVector) String() string {
	parts := make([]string, len(v))
	for i, x := range v {
		parts[i] = strconv.FormatBool(x)
	}
	return "[" + strings.Join(parts, " ") + "]"
}

// Message is an immutable timestamped payload. Use Clone before handing a
// message to another owner.
type Message struct {
	Time int64
	Data Payload
}

func New(t int64, data Payload) Message {
	return Message{Time: t, Data: data}
}

func NewNumber(t int64, v float64) Message {
	return Message{Time: t, Data: Number(v)}
}

func NewBoolean(t int64, v bool) Message {
	return Message{Time: t, Data: Boolean(v)}
}

func NewVector(t int64, v ...float64) Message {
	return Message{Time: t, Data: Vector(slices.Clone(v))}
}

func NewBooleanVector(t int64, v ...bool) Message {
	return Message{Time: t, Data: BooleanVector(slices.Clone(v))}
}

// Kind returns the payload kind, or 0 for a message without payload.
func (m Message) Kind() Kind {
	if m.Data == nil {
		return 0
	}
	return m.Data.Kind()
}

func (m Message) Clone() Message {
	if m.Data == nil {
		return m
	}
	return Message{Time: m.Time, Data: m.Data.Clone()}
}

// Value returns the numeric view of a scalar payload: numbers as is,
// booleans as 0 or 1. Vectors and empty messages yield NaN.
func (m Message) Value() float64 {
	switch d := m.Data.(type) {
	case Number:
		return float64(d)
	case Boolean:
		if d {
			return 1
		}
		return 0
	default:
		return math.NaN()
	}
}

// Bool returns the payload of a Boolean message and false for anything else.
func (m Message) Bool() bool {
	b, ok := m.Data.(Boolean)
	return ok && bool(b)
}

// Equal reports whether both messages have the same time and bit-identical
// payloads.
func (m Message) Equal(o Message) bool {
	if m.Time != o.Time || m.Kind() != o.Kind() {
		return false
	}
	switch d := m.Data.(type) {
	case nil:
		return true
	case Number:
		return math.Float64bits(float64(d)) == math.Float64bits(float64(o.Data.(Number)))
	case Boolean:
		return d == o.Data.(Boolean)
	case Vector:
		ov := o.Data.(Vector)
		return slices.EqualFunc(d, ov, func(a, b float64) bool {
			return math.Float64bits(a) == math.Float64bits(b)
		})
	case BooleanVector:
		return slices.Equal(d, o.Data.(BooleanVector))
	default:
		return false
	}
}

func (m Message) String() string {
	if m.Data == nil {
		return fmt.Sprintf("(%d, <nil>)", m.Time)
	}
	return fmt.Sprintf("(%d, %s)", m.Time, m.Data)
}
