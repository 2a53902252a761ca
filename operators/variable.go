package operators

import (
	"fmt"

	"github.com/birdayz/kflow/kmessage"
	"github.com/birdayz/kflow/koperator"
	"github.com/birdayz/kflow/kserde"
)

type variableParams struct {
	DefaultValue float64 `json:"default_value"`
}

// Variable is a sample-and-hold queried through its control port. A control
// message at time t asks for the value held at t:
//
//   - before the first data message, the default value is emitted until the
//     variable has answered a query from data; later queries that old are
//     dropped;
//   - otherwise the latest data message at or before t answers, once a newer
//     data message proves nothing else will arrive in between, or its time
//     is exactly t.
//
// Queries wait while no data has arrived. Data older than the answer is
// discarded. A query older than every held data message after the variable
// has answered from data is out of order; it is dropped without output and
// without an error, and later queries are answered as usual.
type Variable struct {
	*koperator.Base
	data, control *koperator.Queue
	defaultValue  float64
	initialized   bool
}

func NewVariable(id string, params koperator.Params) (koperator.Operator, error) {
	var p variableParams
	if err := params.Decode(&p); err != nil {
		return nil, err
	}
	b, err := koperator.NewBase(TypeVariable, id,
		koperator.DataPort("i1", kmessage.KindNumber, 0),
		koperator.ControlPort("c1", kmessage.KindNumber, 0),
		koperator.OutputPort("o1", kmessage.KindNumber),
	)
	if err != nil {
		return nil, err
	}
	return &Variable{
		Base:         b,
		data:         b.Queue("i1"),
		control:      b.Queue("c1"),
		defaultValue: p.DefaultValue,
	}, nil
}

func (v *Variable) Process() ([]koperator.Emission, error) {
	var out []koperator.Emission
	for v.control.Len() > 0 && v.data.Len() > 0 {
		query, _ := v.control.Front()
		t := query.Time

		if front, _ := v.data.Front(); t < front.Time {
			v.control.PopFront()
			if !v.initialized {
				out = append(out, koperator.Emit("o1", kmessage.NewNumber(t, v.defaultValue)))
			}
			continue
		}

		v.initialized = true
		for v.data.Len() >= 2 && v.data.At(1).Time <= t {
			v.data.PopFront()
		}
		front, _ := v.data.Front()
		if front.Time != t && v.data.Len() < 2 {
			break
		}
		v.control.PopFront()
		out = append(out, koperator.Emit("o1", kmessage.NewNumber(t, front.Value())))
	}
	return out, nil
}

func (v *Variable) Collect(enc *kserde.Encoder) {
	v.Base.Collect(enc)
	enc.WriteBool(v.initialized)
}

func (v *Variable) Restore(dec *kserde.Decoder) error {
	if err := v.Base.Restore(dec); err != nil {
		return err
	}
	initialized, err := dec.ReadBool()
	if err != nil {
		return fmt.Errorf("%s: %w", v.ID(), err)
	}
	v.initialized = initialized
	return nil
}
