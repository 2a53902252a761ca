package operators

import (
	"fmt"
	"math"

	"github.com/birdayz/kflow/kmessage"
	"github.com/birdayz/kflow/koperator"
	"github.com/birdayz/kflow/kserde"
)

// mapper applies fn to every message arriving on i1, in order. Messages for
// which fn reports false are dropped.
type mapper struct {
	*koperator.Base
	in *koperator.Queue
	fn func(m kmessage.Message) (kmessage.Message, bool)
}

func newMapper(typeName, id string, in, out kmessage.Kind, fn func(kmessage.Message) (kmessage.Message, bool)) (*mapper, error) {
	b, err := koperator.NewBase(typeName, id,
		koperator.DataPort("i1", in, 0),
		koperator.OutputPort("o1", out),
	)
	if err != nil {
		return nil, err
	}
	return &mapper{Base: b, in: b.Queue("i1"), fn: fn}, nil
}

func (m *mapper) Process() ([]koperator.Emission, error) {
	var out []koperator.Emission
	for m.in.Len() > 0 {
		msg, _ := m.in.PopFront()
		if r, ok := m.fn(msg); ok {
			out = append(out, koperator.Emit("o1", r))
		}
	}
	return out, nil
}

type valueParams struct {
	Value float64 `json:"value"`
}

func newNumberMap(typeName string, fn func(x, value float64) float64) koperator.Factory {
	return func(id string, params koperator.Params) (koperator.Operator, error) {
		var p valueParams
		if err := params.Decode(&p); err != nil {
			return nil, err
		}
		return operator(newMapper(typeName, id, kmessage.KindNumber, kmessage.KindNumber,
			func(m kmessage.Message) (kmessage.Message, bool) {
				return kmessage.NewNumber(m.Time, fn(m.Value(), p.Value)), true
			}))
	}
}

var (
	NewAdd   = newNumberMap(TypeAdd, func(x, v float64) float64 { return x + v })
	NewScale = newNumberMap(TypeScale, func(x, v float64) float64 { return x * v })
	// NewPower raises every input to value. Domain errors follow math.Pow.
	NewPower = newNumberMap(TypePower, math.Pow)
	// NewConstant replaces every input value with value, keeping its time.
	NewConstant = newNumberMap(TypeConstant, func(_, v float64) float64 { return v })
)

func newFilter(typeName string, keep func(x, value float64) bool) koperator.Factory {
	return func(id string, params koperator.Params) (koperator.Operator, error) {
		var p valueParams
		if err := params.Decode(&p); err != nil {
			return nil, err
		}
		return operator(newMapper(typeName, id, kmessage.KindNumber, kmessage.KindNumber,
			func(m kmessage.Message) (kmessage.Message, bool) {
				return m, keep(m.Value(), p.Value)
			}))
	}
}

var (
	NewLessThan    = newFilter(TypeLessThan, func(x, v float64) bool { return x < v })
	NewGreaterThan = newFilter(TypeGreaterThan, func(x, v float64) bool { return x > v })
)

type equalToParams struct {
	Value   float64 `json:"value"`
	Epsilon float64 `json:"epsilon" validate:"gte=0"`
}

// NewEqualTo forwards inputs within epsilon of value.
func NewEqualTo(id string, params koperator.Params) (koperator.Operator, error) {
	var p equalToParams
	if err := params.Decode(&p); err != nil {
		return nil, err
	}
	return operator(newMapper(TypeEqualTo, id, kmessage.KindNumber, kmessage.KindNumber,
		func(m kmessage.Message) (kmessage.Message, bool) {
			return m, math.Abs(m.Value()-p.Value) <= p.Epsilon
		}))
}

type timeShiftParams struct {
	DT    int64 `json:"dt"`
	Times int64 `json:"times"`
}

// NewTimeShift moves every message by dt*times.
func NewTimeShift(id string, params koperator.Params) (koperator.Operator, error) {
	p := timeShiftParams{DT: 1, Times: 1}
	if err := params.Decode(&p); err != nil {
		return nil, err
	}
	shift := p.DT * p.Times
	return operator(newMapper(TypeTimeShift, id, kmessage.KindNumber, kmessage.KindNumber,
		func(m kmessage.Message) (kmessage.Message, bool) {
			m.Time += shift
			return m, true
		}))
}

// CumulativeSum emits the running sum of its inputs.
type CumulativeSum struct {
	*mapper
	sum float64
}

func NewCumulativeSum(id string, params koperator.Params) (koperator.Operator, error) {
	if err := params.Decode(&struct{}{}); err != nil {
		return nil, err
	}
	c := &CumulativeSum{}
	m, err := newMapper(TypeCumulativeSum, id, kmessage.KindNumber, kmessage.KindNumber,
		func(m kmessage.Message) (kmessage.Message, bool) {
			c.sum += m.Value()
			return kmessage.NewNumber(m.Time, c.sum), true
		})
	if err != nil {
		return nil, err
	}
	c.mapper = m
	return c, nil
}

func (c *CumulativeSum) Collect(enc *kserde.Encoder) {
	c.Base.Collect(enc)
	enc.WriteFloat64(c.sum)
}

func (c *CumulativeSum) Restore(dec *kserde.Decoder) error {
	if err := c.Base.Restore(dec); err != nil {
		return err
	}
	sum, err := dec.ReadFloat64()
	if err != nil {
		return fmt.Errorf("%s: %w", c.ID(), err)
	}
	c.sum = sum
	return nil
}

type countParams struct {
	PortType string `json:"portType"`
}

// Count emits how many messages it has seen, at the time of the latest.
type Count struct {
	*mapper
	count uint64
}

func NewCount(id string, params koperator.Params) (koperator.Operator, error) {
	var p countParams
	if err := params.Decode(&p); err != nil {
		return nil, err
	}
	in := kmessage.KindNumber
	if p.PortType != "" {
		k, err := kmessage.ParseKind(p.PortType)
		if err != nil {
			return nil, koperator.Invalid("portType", "%v", err)
		}
		in = k
	}
	c := &Count{}
	m, err := newMapper(TypeCount, id, in, kmessage.KindNumber,
		func(m kmessage.Message) (kmessage.Message, bool) {
			c.count++
			return kmessage.NewNumber(m.Time, float64(c.count)), true
		})
	if err != nil {
		return nil, err
	}
	c.mapper = m
	return c, nil
}

func (c *Count) Collect(enc *kserde.Encoder) {
	c.Base.Collect(enc)
	enc.WriteUint64(c.count)
}

func (c *Count) Restore(dec *kserde.Decoder) error {
	if err := c.Base.Restore(dec); err != nil {
		return err
	}
	n, err := dec.ReadUint64()
	if err != nil {
		return fmt.Errorf("%s: %w", c.ID(), err)
	}
	c.count = n
	return nil
}
