// Package operators is the built-in operator library. Register adds every
// type to a koperator.Registry; NewRegistry returns a registry holding all
// of them.
package operators

import (
	"go.uber.org/multierr"

	"github.com/birdayz/kflow/koperator"
)

// Type names of the built-in operators.
const (
	TypeInput                 = "Input"
	TypeOutput                = "Output"
	TypeIdentity              = "Identity"
	TypeJoin                  = "Join"
	TypeLinear                = "Linear"
	TypeDivide                = "Divide"
	TypeMinus                 = "Minus"
	TypePlus                  = "Plus"
	TypeMultiplication        = "Multiplication"
	TypeLogicalAnd            = "LogicalAnd"
	TypeLogicalOr             = "LogicalOr"
	TypeLogicalXor            = "LogicalXor"
	TypeSort                  = "Sort"
	TypeSortIndex             = "SortIndex"
	TypeTimeSort              = "TimeSort"
	TypeAdd                   = "Add"
	TypeScale                 = "Scale"
	TypePower                 = "Power"
	TypeConstant              = "Constant"
	TypeTimeShift             = "TimeShift"
	TypeCumulativeSum         = "CumulativeSum"
	TypeCount                 = "Count"
	TypeDifference            = "Difference"
	TypeLessThan              = "LessThan"
	TypeGreaterThan           = "GreaterThan"
	TypeEqualTo               = "EqualTo"
	TypeMovingAverage         = "MovingAverage"
	TypeMovingSum             = "MovingSum"
	TypeMovingMax             = "MovingMax"
	TypeMovingMin             = "MovingMin"
	TypeStandardDeviation     = "StandardDeviation"
	TypeMovingVariance        = "MovingVariance"
	TypeFiniteImpulseResponse = "FiniteImpulseResponse"
	TypePeakDetector          = "PeakDetector"
	TypeCosineResampler       = "CosineResampler"
	TypeHermiteResampler      = "HermiteResampler"
	TypeVariable              = "Variable"
	TypeRelativeStrengthIndex = "RelativeStrengthIndex"
	TypeDemultiplexer         = "Demultiplexer"
	TypeGreaterThanStream     = "GreaterThanStream"
	TypeLessThanStream        = "LessThanStream"
	TypeAutoRegressive        = "AutoRegressive"
)

func factories() map[string]koperator.Factory {
	return map[string]koperator.Factory{
		TypeInput:                 NewInput,
		TypeOutput:                NewOutput,
		TypeIdentity:              NewIdentity,
		TypeJoin:                  NewJoin,
		TypeLinear:                NewLinear,
		TypeDivide:                NewDivide,
		TypeMinus:                 NewMinus,
		TypePlus:                  NewPlus,
		TypeMultiplication:        NewMultiplication,
		TypeLogicalAnd:            NewLogicalAnd,
		TypeLogicalOr:             NewLogicalOr,
		TypeLogicalXor:            NewLogicalXor,
		TypeSort:                  NewSort,
		TypeSortIndex:             NewSortIndex,
		TypeTimeSort:              NewTimeSort,
		TypeAdd:                   NewAdd,
		TypeScale:                 NewScale,
		TypePower:                 NewPower,
		TypeConstant:              NewConstant,
		TypeTimeShift:             NewTimeShift,
		TypeCumulativeSum:         NewCumulativeSum,
		TypeCount:                 NewCount,
		TypeDifference:            NewDifference,
		TypeLessThan:              NewLessThan,
		TypeGreaterThan:           NewGreaterThan,
		TypeEqualTo:               NewEqualTo,
		TypeMovingAverage:         NewMovingAverage,
		TypeMovingSum:             NewMovingSum,
		TypeMovingMax:             NewMovingMax,
		TypeMovingMin:             NewMovingMin,
		TypeStandardDeviation:     NewStandardDeviation,
		TypeMovingVariance:        NewMovingVariance,
		TypeFiniteImpulseResponse: NewFiniteImpulseResponse,
		TypePeakDetector:          NewPeakDetector,
		TypeCosineResampler:       NewCosineResampler,
		TypeHermiteResampler:      NewHermiteResampler,
		TypeVariable:              NewVariable,
		TypeRelativeStrengthIndex: NewRelativeStrengthIndex,
		TypeDemultiplexer:         NewDemultiplexer,
		TypeGreaterThanStream:     NewGreaterThanStream,
		TypeLessThanStream:        NewLessThanStream,
		TypeAutoRegressive:        NewAutoRegressive,
	}
}

// Register adds all built-in operator types to r.
func Register(r *koperator.Registry) error {
	var errs error
	for name, f := range factories() {
		errs = multierr.Append(errs, r.Register(name, f))
	}
	return errs
}

// NewRegistry returns a registry holding every built-in operator type.
func NewRegistry() *koperator.Registry {
	r := koperator.NewRegistry()
	if err := Register(r); err != nil {
		panic(err)
	}
	return r
}
