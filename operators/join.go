package operators

import (
	"math"
	"slices"

	"github.com/birdayz/kflow/kmessage"
	"github.com/birdayz/kflow/koperator"
)

// combineFunc turns one sync point into emissions. values holds one message
// per data input in declaration order and must not be retained.
type combineFunc func(t int64, values []kmessage.Message) []koperator.Emission

// syncJoin is the shared shape of every synchronizing operator: data inputs
// aligned by a koperator.Synchronizer and a combine step per sync point.
type syncJoin struct {
	*koperator.Base
	sync    *koperator.Synchronizer
	combine combineFunc
}

func newSyncJoin(typeName, id string, inputs, outputs []koperator.PortSpec, combine combineFunc) (*syncJoin, error) {
	b, err := koperator.NewBase(typeName, id, slices.Concat(inputs, outputs)...)
	if err != nil {
		return nil, err
	}
	s, err := koperator.NewSynchronizer(b)
	if err != nil {
		return nil, err
	}
	return &syncJoin{Base: b, sync: s, combine: combine}, nil
}

func (j *syncJoin) Process() ([]koperator.Emission, error) {
	var out []koperator.Emission
	err := j.sync.Drain(func(t int64, values []kmessage.Message) error {
		out = append(out, j.combine(t, values)...)
		return nil
	})
	return out, err
}

func operator[T koperator.Operator](op T, err error) (koperator.Operator, error) {
	if err != nil {
		return nil, err
	}
	return op, nil
}

type joinParams struct {
	NumPorts  int                   `json:"numPorts" validate:"min=2"`
	PortTypes []string              `json:"portTypes"`
	Policies  map[string]portPolicy `json:"policies"`
}

// NewJoin builds a Join: numPorts inputs of portTypes, each synced value is
// re-emitted at the sync time on the output with the same index.
func NewJoin(id string, params koperator.Params) (koperator.Operator, error) {
	p := joinParams{NumPorts: 2}
	if err := params.Decode(&p); err != nil {
		return nil, err
	}
	kinds, err := portKinds(p.PortTypes, p.NumPorts, kmessage.KindNumber)
	if err != nil {
		return nil, err
	}
	inputs, err := joinPorts(kinds, p.Policies)
	if err != nil {
		return nil, err
	}
	return operator(newSyncJoin(TypeJoin, id, inputs, outputPorts(kinds...),
		func(t int64, values []kmessage.Message) []koperator.Emission {
			out := make([]koperator.Emission, len(values))
			for i, v := range values {
				out[i] = koperator.Emit(koperator.OutputPortName(i+1), kmessage.New(t, v.Data.Clone()))
			}
			return out
		}))
}

type linearParams struct {
	Coefficients []float64            `json:"coefficients" validate:"min=2"`
	Policies     map[string]portPolicy `json:"policies"`
}

// NewLinear builds a Linear join: one input per coefficient, emitting
// sum(c[i] * x[i]) at every sync point.
func NewLinear(id string, params koperator.Params) (koperator.Operator, error) {
	var p linearParams
	if err := params.Decode(&p); err != nil {
		return nil, err
	}
	inputs, err := joinPorts(repeat(kmessage.KindNumber, len(p.Coefficients)), p.Policies)
	if err != nil {
		return nil, err
	}
	coeffs := slices.Clone(p.Coefficients)
	return operator(newSyncJoin(TypeLinear, id, inputs, outputPorts(kmessage.KindNumber),
		func(t int64, values []kmessage.Message) []koperator.Emission {
			var sum float64
			for i, v := range values {
				sum += coeffs[i] * v.Value()
			}
			return []koperator.Emission{koperator.Emit("o1", kmessage.NewNumber(t, sum))}
		}))
}

type binaryParams struct {
	Policies map[string]portPolicy `json:"policies"`
}

func newArithmetic(typeName string, fn func(a, b float64) float64) koperator.Factory {
	return func(id string, params koperator.Params) (koperator.Operator, error) {
		var p binaryParams
		if err := params.Decode(&p); err != nil {
			return nil, err
		}
		inputs, err := joinPorts(repeat(kmessage.KindNumber, 2), p.Policies)
		if err != nil {
			return nil, err
		}
		return operator(newSyncJoin(typeName, id, inputs, outputPorts(kmessage.KindNumber),
			func(t int64, values []kmessage.Message) []koperator.Emission {
				v := fn(values[0].Value(), values[1].Value())
				return []koperator.Emission{koperator.Emit("o1", kmessage.NewNumber(t, v))}
			}))
	}
}

var (
	// NewDivide emits i1 / i2. Division by zero follows IEEE 754 and yields
	// ±Inf or NaN.
	NewDivide = newArithmetic(TypeDivide, func(a, b float64) float64 { return a / b })
	// NewMinus emits i1 - i2.
	NewMinus          = newArithmetic(TypeMinus, func(a, b float64) float64 { return a - b })
	NewPlus           = newArithmetic(TypePlus, func(a, b float64) float64 { return a + b })
	NewMultiplication = newArithmetic(TypeMultiplication, func(a, b float64) float64 { return a * b })
)

// newStreamComparison builds a binary join that re-emits i1 at the sync
// time when keep(i1, i2) holds and emits nothing otherwise.
func newStreamComparison(typeName string, keep func(a, b float64) bool) koperator.Factory {
	return func(id string, params koperator.Params) (koperator.Operator, error) {
		var p binaryParams
		if err := params.Decode(&p); err != nil {
			return nil, err
		}
		inputs, err := joinPorts(repeat(kmessage.KindNumber, 2), p.Policies)
		if err != nil {
			return nil, err
		}
		return operator(newSyncJoin(typeName, id, inputs, outputPorts(kmessage.KindNumber),
			func(t int64, values []kmessage.Message) []koperator.Emission {
				a := values[0].Value()
				if !keep(a, values[1].Value()) {
					return nil
				}
				return []koperator.Emission{koperator.Emit("o1", kmessage.NewNumber(t, a))}
			}))
	}
}

var (
	NewGreaterThanStream = newStreamComparison(TypeGreaterThanStream, greater[float64])
	NewLessThanStream    = newStreamComparison(TypeLessThanStream, less[float64])
)

type logicalParams struct {
	NumPorts int                   `json:"numPorts" validate:"min=2"`
	Policies map[string]portPolicy `json:"policies"`
}

func newLogical(typeName string, fn func(acc, x bool) bool) koperator.Factory {
	return func(id string, params koperator.Params) (koperator.Operator, error) {
		p := logicalParams{NumPorts: 2}
		if err := params.Decode(&p); err != nil {
			return nil, err
		}
		inputs, err := joinPorts(repeat(kmessage.KindBoolean, p.NumPorts), p.Policies)
		if err != nil {
			return nil, err
		}
		return operator(newSyncJoin(typeName, id, inputs, outputPorts(kmessage.KindBoolean),
			func(t int64, values []kmessage.Message) []koperator.Emission {
				acc := values[0].Bool()
				for _, v := range values[1:] {
					acc = fn(acc, v.Bool())
				}
				return []koperator.Emission{koperator.Emit("o1", kmessage.NewBoolean(t, acc))}
			}))
	}
}

var (
	NewLogicalAnd = newLogical(TypeLogicalAnd, func(a, b bool) bool { return a && b })
	NewLogicalOr  = newLogical(TypeLogicalOr, func(a, b bool) bool { return a || b })
	// NewLogicalXor emits the parity of its inputs.
	NewLogicalXor = newLogical(TypeLogicalXor, func(a, b bool) bool { return a != b })
)

type sortParams struct {
	NumPorts   int                   `json:"numPorts" validate:"min=2"`
	NumOutputs int                   `json:"numOutputs" validate:"omitempty,min=1"`
	Ascending  bool                  `json:"ascending"`
	Policies   map[string]portPolicy `json:"policies"`
}

// sortedIndices returns the input indices ordered by value. Equal values keep
// port order; NaN sorts last.
func sortedIndices(values []kmessage.Message, ascending bool) []int {
	idx := make([]int, len(values))
	for i := range idx {
		idx[i] = i
	}
	slices.SortStableFunc(idx, func(a, b int) int {
		x, y := values[a].Value(), values[b].Value()
		switch {
		case math.IsNaN(x) || math.IsNaN(y):
			return boolCmp(math.IsNaN(x), math.IsNaN(y))
		case x == y:
			return 0
		case (x < y) == ascending:
			return -1
		default:
			return 1
		}
	})
	return idx
}

func boolCmp(a, b bool) int {
	switch {
	case a == b:
		return 0
	case a:
		return 1
	default:
		return -1
	}
}

// NewSort builds a Sort join emitting the synced values in order on
// o1..o{numOutputs}.
func NewSort(id string, params koperator.Params) (koperator.Operator, error) {
	p := sortParams{NumPorts: 2, Ascending: true}
	if err := params.Decode(&p); err != nil {
		return nil, err
	}
	if p.NumOutputs == 0 {
		p.NumOutputs = p.NumPorts
	}
	if p.NumOutputs > p.NumPorts {
		return nil, koperator.Invalid("numOutputs", "must be at most numPorts (%d)", p.NumPorts)
	}
	inputs, err := joinPorts(repeat(kmessage.KindNumber, p.NumPorts), p.Policies)
	if err != nil {
		return nil, err
	}
	n, ascending := p.NumOutputs, p.Ascending
	return operator(newSyncJoin(TypeSort, id, inputs, outputPorts(repeat(kmessage.KindNumber, n)...),
		func(t int64, values []kmessage.Message) []koperator.Emission {
			out := make([]koperator.Emission, n)
			for k, i := range sortedIndices(values, ascending)[:n] {
				out[k] = koperator.Emit(koperator.OutputPortName(k+1), kmessage.NewNumber(t, values[i].Value()))
			}
			return out
		}))
}

// NewSortIndex builds a SortIndex join emitting a vector of 1-based input
// indices ordered by value.
func NewSortIndex(id string, params koperator.Params) (koperator.Operator, error) {
	p := sortParams{NumPorts: 2, Ascending: true}
	if err := params.Decode(&p); err != nil {
		return nil, err
	}
	if p.NumOutputs != 0 {
		return nil, koperator.Invalid("numOutputs", "is not supported by %s", TypeSortIndex)
	}
	inputs, err := joinPorts(repeat(kmessage.KindNumber, p.NumPorts), p.Policies)
	if err != nil {
		return nil, err
	}
	ascending := p.Ascending
	return operator(newSyncJoin(TypeSortIndex, id, inputs, outputPorts(kmessage.KindVector),
		func(t int64, values []kmessage.Message) []koperator.Emission {
			idx := sortedIndices(values, ascending)
			vec := make([]float64, len(idx))
			for k, i := range idx {
				vec[k] = float64(i + 1)
			}
			return []koperator.Emission{koperator.Emit("o1", kmessage.NewVector(t, vec...))}
		}))
}
