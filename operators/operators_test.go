package operators

import (
	"errors"
	"strings"
	"testing"

	"github.com/alecthomas/assert/v2"

	"github.com/birdayz/kflow/kmessage"
	"github.com/birdayz/kflow/koperator"
)

func newOp(t *testing.T, typeName, params string) koperator.Operator {
	t.Helper()
	op, err := NewRegistry().Build(typeName, "op", koperator.NewParams([]byte(params)))
	assert.NoError(t, err)
	return op
}

func buildErr(typeName, params string) error {
	_, err := NewRegistry().Build(typeName, "op", koperator.NewParams([]byte(params)))
	return err
}

// send delivers m and runs Process, the way a program does per delivery.
func send(t *testing.T, op koperator.Operator, port string, m kmessage.Message) []koperator.Emission {
	t.Helper()
	var err error
	if strings.HasPrefix(port, "c") {
		err = op.ReceiveControl(port, m)
	} else {
		err = op.ReceiveData(port, m)
	}
	assert.NoError(t, err)
	out, err := op.Process()
	assert.NoError(t, err)
	return out
}

func num(port string, t int64, v float64) koperator.Emission {
	return koperator.Emit(port, kmessage.NewNumber(t, v))
}

func TestRegistry(t *testing.T) {
	t.Run("every type is registered", func(t *testing.T) {
		r := NewRegistry()
		assert.Equal(t, len(factories()), len(r.Types()))
		for name := range factories() {
			_, err := r.Lookup(name)
			assert.NoError(t, err)
		}
	})

	t.Run("registering twice fails", func(t *testing.T) {
		r := NewRegistry()
		err := Register(r)
		assert.True(t, errors.Is(err, koperator.ErrTypeAlreadyRegistered))
	})
}

func TestParameterErrors(t *testing.T) {
	tests := []struct {
		name     string
		typeName string
		params   string
		want     error
	}{
		{"window of zero", TypeMovingAverage, `{"window_size":0}`, koperator.ErrInvalidParameter},
		{"missing window", TypeMovingMax, `{}`, koperator.ErrInvalidParameter},
		{"stddev of one value", TypeStandardDeviation, `{"window_size":1}`, koperator.ErrNumericDomain},
		{"variance of one value", TypeMovingVariance, `{"window_size":1}`, koperator.ErrNumericDomain},
		{"even peak window", TypePeakDetector, `{"window_size":4}`, koperator.ErrInvalidParameter},
		{"zero dt", TypeCosineResampler, `{"dt":0}`, koperator.ErrInvalidParameter},
		{"negative dt", TypeHermiteResampler, `{"dt":-5}`, koperator.ErrInvalidParameter},
		{"unknown member", TypeAdd, `{"value":1,"valeu":2}`, koperator.ErrInvalidParameter},
		{"single coefficient", TypeLinear, `{"coefficients":[1]}`, koperator.ErrInvalidParameter},
		{"one port join", TypeJoin, `{"numPorts":1}`, koperator.ErrInvalidParameter},
		{"port types length", TypeJoin, `{"numPorts":2,"portTypes":["number"]}`, koperator.ErrInvalidParameter},
		{"bad port type", TypeInput, `{"portTypes":["text"]}`, koperator.ErrInvalidParameter},
		{"too many sort outputs", TypeSort, `{"numPorts":2,"numOutputs":3}`, koperator.ErrInvalidParameter},
		{"negative epsilon", TypeEqualTo, `{"value":1,"epsilon":-1}`, koperator.ErrInvalidParameter},
		{"empty autoregression", TypeAutoRegressive, `{"coefficients":[]}`, koperator.ErrInvalidParameter},
		{"rsi without period", TypeRelativeStrengthIndex, `{}`, koperator.ErrInvalidParameter},
		{"policy on unknown port", TypeDivide, `{"policies":{"i3":{"eager":true}}}`, koperator.ErrUnknownPort},
		{"all eager", TypeJoin, `{"policies":{"i1":{"eager":true},"i2":{"eager":true}}}`, koperator.ErrInvalidEagerConfiguration},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := buildErr(tt.typeName, tt.params)
			assert.Error(t, err)
			assert.True(t, errors.Is(err, tt.want), "got %v", err)
		})
	}
}
