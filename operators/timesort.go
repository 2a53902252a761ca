package operators

import (
	"cmp"
	"slices"

	"github.com/birdayz/kflow/kmessage"
	"github.com/birdayz/kflow/koperator"
)

type timeSortParams struct {
	NumPorts   int  `json:"numPorts" validate:"min=2"`
	Increasing bool `json:"increasing"`
}

// TimeSort waits until every input holds a message, orders the fronts by
// time and emits the k-th of them on ok. All fronts are consumed together.
type TimeSort struct {
	*koperator.Base
	inputs     []*koperator.Queue
	increasing bool
}

func NewTimeSort(id string, params koperator.Params) (koperator.Operator, error) {
	p := timeSortParams{NumPorts: 2, Increasing: true}
	if err := params.Decode(&p); err != nil {
		return nil, err
	}
	inputs, err := joinPorts(repeat(kmessage.KindNumber, p.NumPorts), nil)
	if err != nil {
		return nil, err
	}
	b, err := koperator.NewBase(TypeTimeSort, id, slices.Concat(inputs, outputPorts(repeat(kmessage.KindNumber, p.NumPorts)...))...)
	if err != nil {
		return nil, err
	}
	return &TimeSort{Base: b, inputs: b.Queues(koperator.DataInput), increasing: p.Increasing}, nil
}

func (s *TimeSort) ready() bool {
	for _, q := range s.inputs {
		if q.Len() == 0 {
			return false
		}
	}
	return true
}

func (s *TimeSort) Process() ([]koperator.Emission, error) {
	var out []koperator.Emission
	for s.ready() {
		fronts := make([]kmessage.Message, len(s.inputs))
		for i, q := range s.inputs {
			fronts[i], _ = q.PopFront()
		}
		slices.SortStableFunc(fronts, func(a, b kmessage.Message) int {
			if s.increasing {
				return cmp.Compare(a.Time, b.Time)
			}
			return cmp.Compare(b.Time, a.Time)
		})
		for k, m := range fronts {
			out = append(out, koperator.Emit(koperator.OutputPortName(k+1), m))
		}
	}
	return out, nil
}
