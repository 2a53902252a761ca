package operators

import (
	"fmt"

	"github.com/birdayz/kflow/kmessage"
	"github.com/birdayz/kflow/koperator"
	"github.com/birdayz/kflow/kserde"
)

type rsiParams struct {
	N int `json:"n" validate:"min=1"`
}

// RelativeStrengthIndex computes Wilder's RSI over n price changes. The first
// output averages the gains and losses of the first n+1 values; later outputs
// smooth them as avg = (prev*(n-1) + current)/n. With no average loss the
// index is 100.
type RelativeStrengthIndex struct {
	*koperator.Base
	q           *koperator.Queue
	n           int
	initialized bool
	avgGain     float64
	avgLoss     float64
}

func NewRelativeStrengthIndex(id string, params koperator.Params) (koperator.Operator, error) {
	var p rsiParams
	if err := params.Decode(&p); err != nil {
		return nil, err
	}
	b, err := koperator.NewBase(TypeRelativeStrengthIndex, id,
		koperator.DataPort("i1", kmessage.KindNumber, p.N+1),
		koperator.OutputPort("o1", kmessage.KindNumber),
	)
	if err != nil {
		return nil, err
	}
	return &RelativeStrengthIndex{Base: b, q: b.Queue("i1"), n: p.N}, nil
}

func gainLoss(diff float64) (gain, loss float64) {
	switch {
	case diff > 0:
		return diff, 0
	case diff < 0:
		return 0, -diff
	default:
		return 0, 0
	}
}

func (r *RelativeStrengthIndex) Process() ([]koperator.Emission, error) {
	if r.Fresh() == 0 || !r.q.Full() {
		return nil, nil
	}
	n := float64(r.n)
	if !r.initialized {
		var gains, losses float64
		for i := 1; i < r.q.Len(); i++ {
			g, l := gainLoss(r.q.At(i).Value() - r.q.At(i-1).Value())
			gains += g
			losses += l
		}
		r.avgGain, r.avgLoss = gains/n, losses/n
		r.initialized = true
	} else {
		last := r.q.Len() - 1
		g, l := gainLoss(r.q.At(last).Value() - r.q.At(last-1).Value())
		r.avgGain = (r.avgGain*(n-1) + g) / n
		r.avgLoss = (r.avgLoss*(n-1) + l) / n
	}

	rsi := 100.0
	if r.avgLoss > 0 {
		rsi = 100 - 100/(1+r.avgGain/r.avgLoss)
	}
	back, _ := r.q.Back()
	return []koperator.Emission{koperator.Emit("o1", kmessage.NewNumber(back.Time, rsi))}, nil
}

func (r *RelativeStrengthIndex) Collect(enc *kserde.Encoder) {
	r.Base.Collect(enc)
	enc.WriteBool(r.initialized)
	enc.WriteFloat64(r.avgGain)
	enc.WriteFloat64(r.avgLoss)
}

func (r *RelativeStrengthIndex) Restore(dec *kserde.Decoder) error {
	if err := r.Base.Restore(dec); err != nil {
		return err
	}
	var err error
	if r.initialized, err = dec.ReadBool(); err != nil {
		return fmt.Errorf("%s: %w", r.ID(), err)
	}
	if r.avgGain, err = dec.ReadFloat64(); err != nil {
		return fmt.Errorf("%s: %w", r.ID(), err)
	}
	if r.avgLoss, err = dec.ReadFloat64(); err != nil {
		return fmt.Errorf("%s: %w", r.ID(), err)
	}
	return nil
}
