package operators

import (
	"math"
	"math/rand"
	"slices"
	"testing"

	"github.com/alecthomas/assert/v2"

	"github.com/birdayz/kflow/kmessage"
	"github.com/birdayz/kflow/koperator"
)

func TestMovingAverageScenario(t *testing.T) {
	op := newOp(t, TypeMovingAverage, `{"window_size":5}`)
	for i := int64(0); i < 20; i++ {
		out := send(t, op, "i1", kmessage.NewNumber(100*i, 10))
		if i <= 3 {
			assert.Zero(t, out)
			continue
		}
		assert.Equal(t, []koperator.Emission{num("o1", 100*i, 10)}, out)
	}
}

func TestWindowInvariant(t *testing.T) {
	sampleVariance := func(xs []float64) float64 {
		var mean float64
		for _, x := range xs {
			mean += x
		}
		mean /= float64(len(xs))
		var ss float64
		for _, x := range xs {
			ss += (x - mean) * (x - mean)
		}
		return ss / float64(len(xs)-1)
	}
	sum := func(xs []float64) float64 {
		var s float64
		for _, x := range xs {
			s += x
		}
		return s
	}

	tests := []struct {
		typeName string
		params   string
		n        int
		want     func(window []float64) float64
	}{
		{TypeMovingAverage, `{"window_size":4}`, 4, func(w []float64) float64 { return sum(w) / float64(len(w)) }},
		{TypeMovingSum, `{"window_size":3}`, 3, sum},
		{TypeMovingMax, `{"window_size":5}`, 5, slices.Max[[]float64]},
		{TypeMovingMin, `{"window_size":5}`, 5, slices.Min[[]float64]},
		{TypeStandardDeviation, `{"window_size":6}`, 6, func(w []float64) float64 { return math.Sqrt(sampleVariance(w)) }},
		{TypeMovingVariance, `{"window_size":2}`, 2, sampleVariance},
		{TypeFiniteImpulseResponse, `{"coefficients":[0.5,0.25,0.25]}`, 3, func(w []float64) float64 {
			return 0.5*w[2] + 0.25*w[1] + 0.25*w[0]
		}},
		{TypeAutoRegressive, `{"coefficients":[0.9,-0.2]}`, 2, func(w []float64) float64 {
			return 0.9*w[1] - 0.2*w[0]
		}},
		{TypeDifference, ``, 2, func(w []float64) float64 { return w[1] - w[0] }},
	}
	for _, tt := range tests {
		t.Run(tt.typeName, func(t *testing.T) {
			rng := rand.New(rand.NewSource(42))
			op := newOp(t, tt.typeName, tt.params)
			var seen []float64
			for i := 0; i < 200; i++ {
				v := rng.Float64()*200 - 100
				seen = append(seen, v)
				out := send(t, op, "i1", kmessage.NewNumber(int64(i), v))
				if len(seen) < tt.n {
					assert.Zero(t, out)
					continue
				}
				assert.Equal(t, 1, len(out))
				assert.Equal(t, int64(i), out[0].Message.Time)
				want := tt.want(seen[len(seen)-tt.n:])
				if got := out[0].Message.Value(); math.Abs(got-want) > 1e-9*math.Max(1, math.Abs(want)) {
					t.Fatalf("step %d: got %v, want %v", i, got, want)
				}
			}
		})
	}
}

func TestDifferenceOldestTime(t *testing.T) {
	op := newOp(t, TypeDifference, `{"useOldestTime":true}`)
	send(t, op, "i1", kmessage.NewNumber(10, 4))
	assert.Equal(t, []koperator.Emission{num("o1", 10, 3)}, send(t, op, "i1", kmessage.NewNumber(20, 7)))
}

func TestPeakDetector(t *testing.T) {
	op := newOp(t, TypePeakDetector, `{"window_size":3}`)
	var out []koperator.Emission
	for i, v := range []float64{1, 3, 2, 2, 5, 4, 6} {
		out = append(out, send(t, op, "i1", kmessage.NewNumber(int64(i+1), v))...)
	}
	assert.Equal(t, []koperator.Emission{num("o1", 2, 3), num("o1", 5, 5)}, out)

	t.Run("plateau is not a peak", func(t *testing.T) {
		op := newOp(t, TypePeakDetector, `{"window_size":3}`)
		var out []koperator.Emission
		for i, v := range []float64{1, 2, 2, 2, 1, 3, 3, 0} {
			out = append(out, send(t, op, "i1", kmessage.NewNumber(int64(i+1), v))...)
		}
		assert.Zero(t, out)
	})

	t.Run("wide window plateau", func(t *testing.T) {
		op := newOp(t, TypePeakDetector, `{"window_size":5}`)
		var out []koperator.Emission
		for i, v := range []float64{1, 2, 2, 2, 1} {
			out = append(out, send(t, op, "i1", kmessage.NewNumber(int64(i+1), v))...)
		}
		assert.Zero(t, out)
	})
}

func TestWindowNonFiniteInputs(t *testing.T) {
	t.Run("infinity slides out of a moving average", func(t *testing.T) {
		op := newOp(t, TypeMovingAverage, `{"window_size":2}`)
		send(t, op, "i1", kmessage.NewNumber(1, 1))
		out := send(t, op, "i1", kmessage.NewNumber(2, math.Inf(1)))
		assert.True(t, math.IsInf(out[0].Message.Value(), 1))
		out = send(t, op, "i1", kmessage.NewNumber(3, 4))
		assert.True(t, math.IsInf(out[0].Message.Value(), 1))
		assert.Equal(t, []koperator.Emission{num("o1", 4, 5)}, send(t, op, "i1", kmessage.NewNumber(4, 6)))
	})

	t.Run("moving sum after opposite infinities", func(t *testing.T) {
		op := newOp(t, TypeMovingSum, `{"window_size":2}`)
		send(t, op, "i1", kmessage.NewNumber(1, math.Inf(1)))
		out := send(t, op, "i1", kmessage.NewNumber(2, math.Inf(-1)))
		assert.True(t, math.IsNaN(out[0].Message.Value()))
		send(t, op, "i1", kmessage.NewNumber(3, 1))
		assert.Equal(t, []koperator.Emission{num("o1", 4, 3)}, send(t, op, "i1", kmessage.NewNumber(4, 2)))
	})

	t.Run("standard deviation after overflow", func(t *testing.T) {
		op := newOp(t, TypeStandardDeviation, `{"window_size":2}`)
		send(t, op, "i1", kmessage.NewNumber(1, 1e300))
		out := send(t, op, "i1", kmessage.NewNumber(2, -1e300))
		assert.True(t, math.IsInf(out[0].Message.Value(), 1))
		send(t, op, "i1", kmessage.NewNumber(3, 4))
		assert.Equal(t, []koperator.Emission{num("o1", 4, math.Sqrt2)}, send(t, op, "i1", kmessage.NewNumber(4, 6)))
	})

	t.Run("NaN is skipped", func(t *testing.T) {
		op := newOp(t, TypeMovingAverage, `{"window_size":2}`)
		send(t, op, "i1", kmessage.NewNumber(1, math.NaN()))
		assert.Equal(t, []koperator.Emission{num("o1", 2, 2)}, send(t, op, "i1", kmessage.NewNumber(2, 2)))
	})
}

func TestRelativeStrengthIndex(t *testing.T) {
	t.Run("all gains", func(t *testing.T) {
		op := newOp(t, TypeRelativeStrengthIndex, `{"n":2}`)
		assert.Zero(t, send(t, op, "i1", kmessage.NewNumber(1, 10)))
		assert.Zero(t, send(t, op, "i1", kmessage.NewNumber(2, 12)))
		assert.Equal(t, []koperator.Emission{num("o1", 3, 100)}, send(t, op, "i1", kmessage.NewNumber(3, 14)))
	})

	t.Run("wilder smoothing", func(t *testing.T) {
		op := newOp(t, TypeRelativeStrengthIndex, `{"n":2}`)
		send(t, op, "i1", kmessage.NewNumber(1, 10))
		send(t, op, "i1", kmessage.NewNumber(2, 12))
		send(t, op, "i1", kmessage.NewNumber(3, 14))
		out := send(t, op, "i1", kmessage.NewNumber(4, 13))
		assert.Equal(t, 1, len(out))
		// avgGain = (2*1+0)/2, avgLoss = (0*1+1)/2
		assert.True(t, math.Abs(out[0].Message.Value()-(100-100/3.0)) < 1e-12)
	})
}
