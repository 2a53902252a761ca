package operators

import (
	"fmt"
	"slices"

	"github.com/birdayz/kflow/kmessage"
	"github.com/birdayz/kflow/koperator"
)

// window buffers the last n numbers of i1 and emits one result per input
// once n values are held. The queue slides by eviction; nothing is popped.
//
// The sum, mean and variance windows skip NaN inputs, so a window holding
// [NaN, 2] averages to 2. Infinite inputs propagate as IEEE arithmetic
// would until they slide out.
type window struct {
	*koperator.Base
	q  *koperator.Queue
	fn func(q *koperator.Queue) (kmessage.Message, bool)
}

func newWindow(typeName, id string, n int, fn func(q *koperator.Queue) (kmessage.Message, bool)) (*window, error) {
	b, err := koperator.NewBase(typeName, id,
		koperator.DataPort("i1", kmessage.KindNumber, n),
		koperator.OutputPort("o1", kmessage.KindNumber),
	)
	if err != nil {
		return nil, err
	}
	return &window{Base: b, q: b.Queue("i1"), fn: fn}, nil
}

func (w *window) Process() ([]koperator.Emission, error) {
	if w.Fresh() == 0 || !w.q.Full() {
		return nil, nil
	}
	m, ok := w.fn(w.q)
	if !ok {
		return nil, nil
	}
	return []koperator.Emission{koperator.Emit("o1", m)}, nil
}

func newest(q *koperator.Queue, v float64) (kmessage.Message, bool) {
	back, _ := q.Back()
	return kmessage.NewNumber(back.Time, v), true
}

type windowParams struct {
	WindowSize int `json:"window_size" validate:"min=1"`
}

func newWindowed(typeName string, minSize int, fn func(q *koperator.Queue) (kmessage.Message, bool)) koperator.Factory {
	return func(id string, params koperator.Params) (koperator.Operator, error) {
		var p windowParams
		if err := params.Decode(&p); err != nil {
			return nil, err
		}
		if p.WindowSize < minSize {
			return nil, fmt.Errorf("%w: %s needs window_size >= %d, got %d",
				koperator.ErrNumericDomain, typeName, minSize, p.WindowSize)
		}
		return operator(newWindow(typeName, id, p.WindowSize, fn))
	}
}

var (
	// NewMovingAverage emits the mean of the last window_size values,
	// ignoring NaN values among them.
	NewMovingAverage = newWindowed(TypeMovingAverage, 1, func(q *koperator.Queue) (kmessage.Message, bool) {
		return newest(q, q.Mean())
	})
	NewMovingSum = newWindowed(TypeMovingSum, 1, func(q *koperator.Queue) (kmessage.Message, bool) {
		return newest(q, q.Sum())
	})
	// NewStandardDeviation emits the sample standard deviation. A window
	// of one value has none, so window_size must be at least 2.
	NewStandardDeviation = newWindowed(TypeStandardDeviation, 2, func(q *koperator.Queue) (kmessage.Message, bool) {
		return newest(q, q.StdDev())
	})
	NewMovingVariance = newWindowed(TypeMovingVariance, 2, func(q *koperator.Queue) (kmessage.Message, bool) {
		return newest(q, q.Variance())
	})
	NewMovingMax = newWindowed(TypeMovingMax, 1, func(q *koperator.Queue) (kmessage.Message, bool) {
		return newest(q, extremum(q.Values(), greater[float64]))
	})
	NewMovingMin = newWindowed(TypeMovingMin, 1, func(q *koperator.Queue) (kmessage.Message, bool) {
		return newest(q, extremum(q.Values(), less[float64]))
	})
)

type firParams struct {
	Coefficients []float64 `json:"coefficients" validate:"min=1"`
}

// NewFiniteImpulseResponse emits sum(c[i] * x[n-1-i]): the first
// coefficient weighs the newest value.
func NewFiniteImpulseResponse(id string, params koperator.Params) (koperator.Operator, error) {
	var p firParams
	if err := params.Decode(&p); err != nil {
		return nil, err
	}
	return operator(newWindow(TypeFiniteImpulseResponse, id, len(p.Coefficients), weighted(p.Coefficients)))
}

func weighted(coefficients []float64) func(q *koperator.Queue) (kmessage.Message, bool) {
	coeffs := slices.Clone(coefficients)
	return func(q *koperator.Queue) (kmessage.Message, bool) {
		n := q.Len()
		var sum float64
		for i, c := range coeffs {
			sum += c * q.At(n-1-i).Value()
		}
		return newest(q, sum)
	}
}

// NewAutoRegressive emits sum(c[i] * x[n-1-i]) over the last
// len(coefficients) values, at the time of the newest one.
func NewAutoRegressive(id string, params koperator.Params) (koperator.Operator, error) {
	var p firParams
	if err := params.Decode(&p); err != nil {
		return nil, err
	}
	return operator(newWindow(TypeAutoRegressive, id, len(p.Coefficients), weighted(p.Coefficients)))
}

// NewPeakDetector emits the centre of the window when it is strictly greater
// than every other value in the window. A plateau of equal maxima is not a
// peak. The output carries the centre's time.
func NewPeakDetector(id string, params koperator.Params) (koperator.Operator, error) {
	var p windowParams
	if err := params.Decode(&p); err != nil {
		return nil, err
	}
	if p.WindowSize < 3 || p.WindowSize%2 == 0 {
		return nil, koperator.Invalid("window_size", "must be odd and at least 3, got %d", p.WindowSize)
	}
	return operator(newWindow(TypePeakDetector, id, p.WindowSize, func(q *koperator.Queue) (kmessage.Message, bool) {
		mid := q.Len() / 2
		centre := q.At(mid)
		for i := 0; i < q.Len(); i++ {
			if i != mid && q.At(i).Value() >= centre.Value() {
				return kmessage.Message{}, false
			}
		}
		return centre, true
	}))
}

type differenceParams struct {
	UseOldestTime bool `json:"useOldestTime"`
}

// NewDifference emits the difference between consecutive values, stamped
// with the newer time unless useOldestTime is set.
func NewDifference(id string, params koperator.Params) (koperator.Operator, error) {
	var p differenceParams
	if err := params.Decode(&p); err != nil {
		return nil, err
	}
	oldest := p.UseOldestTime
	return operator(newWindow(TypeDifference, id, 2, func(q *koperator.Queue) (kmessage.Message, bool) {
		prev, cur := q.At(0), q.At(1)
		t := cur.Time
		if oldest {
			t = prev.Time
		}
		return kmessage.NewNumber(t, cur.Value()-prev.Value()), true
	}))
}
