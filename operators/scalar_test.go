package operators

import (
	"testing"

	"github.com/alecthomas/assert/v2"

	"github.com/birdayz/kflow/kmessage"
	"github.com/birdayz/kflow/koperator"
)

func TestScalarMaps(t *testing.T) {
	tests := []struct {
		typeName string
		params   string
		in       float64
		want     []koperator.Emission
	}{
		{TypeAdd, `{"value":2}`, 3, []koperator.Emission{num("o1", 5, 5)}},
		{TypeScale, `{"value":-2}`, 3, []koperator.Emission{num("o1", 5, -6)}},
		{TypePower, `{"value":2}`, 3, []koperator.Emission{num("o1", 5, 9)}},
		{TypeConstant, `{"value":42}`, 3, []koperator.Emission{num("o1", 5, 42)}},
		{TypeTimeShift, `{"dt":10,"times":2}`, 3, []koperator.Emission{num("o1", 25, 3)}},
		{TypeTimeShift, ``, 3, []koperator.Emission{num("o1", 6, 3)}},
		{TypeLessThan, `{"value":4}`, 3, []koperator.Emission{num("o1", 5, 3)}},
		{TypeLessThan, `{"value":3}`, 3, nil},
		{TypeGreaterThan, `{"value":2}`, 3, []koperator.Emission{num("o1", 5, 3)}},
		{TypeGreaterThan, `{"value":3}`, 3, nil},
		{TypeEqualTo, `{"value":3}`, 3, []koperator.Emission{num("o1", 5, 3)}},
		{TypeEqualTo, `{"value":3.05,"epsilon":0.1}`, 3, []koperator.Emission{num("o1", 5, 3)}},
		{TypeEqualTo, `{"value":3.5,"epsilon":0.1}`, 3, nil},
		{TypeIdentity, ``, 3, []koperator.Emission{num("o1", 5, 3)}},
	}
	for _, tt := range tests {
		t.Run(tt.typeName, func(t *testing.T) {
			op := newOp(t, tt.typeName, tt.params)
			assert.Equal(t, tt.want, send(t, op, "i1", kmessage.NewNumber(5, tt.in)))
		})
	}
}

func TestCumulativeSum(t *testing.T) {
	op := newOp(t, TypeCumulativeSum, ``)
	var out []koperator.Emission
	for i, v := range []float64{1, 2, 3.5} {
		out = append(out, send(t, op, "i1", kmessage.NewNumber(int64(i), v))...)
	}
	assert.Equal(t, []koperator.Emission{num("o1", 0, 1), num("o1", 1, 3), num("o1", 2, 6.5)}, out)
}

func TestCount(t *testing.T) {
	op := newOp(t, TypeCount, `{"portType":"boolean"}`)
	send(t, op, "i1", kmessage.NewBoolean(4, true))
	assert.Equal(t, []koperator.Emission{num("o1", 9, 2)}, send(t, op, "i1", kmessage.NewBoolean(9, false)))
}

func TestInput(t *testing.T) {
	t.Run("forwards strictly increasing times", func(t *testing.T) {
		op := newOp(t, TypeInput, ``)
		assert.Equal(t, []koperator.Emission{num("o1", 1, 1)}, send(t, op, "i1", kmessage.NewNumber(1, 1)))
		assert.Zero(t, send(t, op, "i1", kmessage.NewNumber(1, 2)))
		assert.Zero(t, send(t, op, "i1", kmessage.NewNumber(0, 3)))
		assert.Equal(t, []koperator.Emission{num("o1", 2, 4)}, send(t, op, "i1", kmessage.NewNumber(2, 4)))
	})

	t.Run("ports are independent", func(t *testing.T) {
		op := newOp(t, TypeInput, `{"numPorts":2,"portTypes":["number","boolean"]}`)
		send(t, op, "i1", kmessage.NewNumber(5, 1))
		out := send(t, op, "i2", kmessage.NewBoolean(3, true))
		assert.Equal(t, []koperator.Emission{koperator.Emit("o2", kmessage.NewBoolean(3, true))}, out)
	})

	t.Run("unknown port leaves state untouched", func(t *testing.T) {
		op := newOp(t, TypeInput, ``)
		err := op.ReceiveData("i2", kmessage.NewNumber(1, 1))
		assert.IsError(t, err, koperator.ErrUnknownPort)
		err = op.ReceiveControl("i1", kmessage.NewNumber(1, 1))
		assert.IsError(t, err, koperator.ErrUnknownPort)
		out, err := op.Process()
		assert.NoError(t, err)
		assert.Zero(t, out)
	})
}

func TestOutput(t *testing.T) {
	op := newOp(t, TypeOutput, `{"numPorts":2}`)
	assert.Equal(t, []koperator.Emission{num("o2", 3, 1)}, send(t, op, "i2", kmessage.NewNumber(3, 1)))
}

func TestVariable(t *testing.T) {
	op := newOp(t, TypeVariable, `{"default_value":7}`)

	steps := []struct {
		port string
		m    kmessage.Message
		want []koperator.Emission
	}{
		{"c1", kmessage.NewNumber(1, 0), nil},
		{"i1", kmessage.NewNumber(5, 50), []koperator.Emission{num("o1", 1, 7)}},
		{"i1", kmessage.NewNumber(10, 100), nil},
		{"c1", kmessage.NewNumber(7, 0), []koperator.Emission{num("o1", 7, 50)}},
		{"c1", kmessage.NewNumber(10, 0), []koperator.Emission{num("o1", 10, 100)}},
		{"c1", kmessage.NewNumber(12, 0), nil},
		{"i1", kmessage.NewNumber(20, 200), []koperator.Emission{num("o1", 12, 100)}},
		{"c1", kmessage.NewNumber(3, 0), nil},
		{"c1", kmessage.NewNumber(20, 0), []koperator.Emission{num("o1", 20, 200)}},
	}
	for i, s := range steps {
		out := send(t, op, s.port, s.m)
		assert.Equal(t, s.want, out, "step %d", i)
	}

	t.Run("out of order query is dropped", func(t *testing.T) {
		op := newOp(t, TypeVariable, `{"default_value":7}`)
		send(t, op, "i1", kmessage.NewNumber(10, 1))
		send(t, op, "i1", kmessage.NewNumber(20, 2))
		assert.Equal(t, []koperator.Emission{num("o1", 15, 1)}, send(t, op, "c1", kmessage.NewNumber(15, 0)))

		assert.NoError(t, op.ReceiveControl("c1", kmessage.NewNumber(5, 0)))
		out, err := op.Process()
		assert.NoError(t, err)
		assert.Zero(t, out)

		assert.Equal(t, []koperator.Emission{num("o1", 20, 2)}, send(t, op, "c1", kmessage.NewNumber(20, 0)))
	})
}
