package operators

import (
	"math"
	"math/rand"
	"strconv"
	"testing"

	"github.com/alecthomas/assert/v2"

	"github.com/birdayz/kflow/kmessage"
	"github.com/birdayz/kflow/koperator"
)

func TestResamplerGridAlignment(t *testing.T) {
	for _, typeName := range []string{TypeCosineResampler, TypeHermiteResampler} {
		for _, dt := range []int64{1, 7, 100} {
			t.Run(typeName, func(t *testing.T) {
				rng := rand.New(rand.NewSource(dt))
				op := newOp(t, typeName, `{"dt":`+strconv.FormatInt(dt, 10)+`}`)

				ts := int64(rng.Intn(1000)) - 500
				first := ts
				var out []koperator.Emission
				for i := 0; i < 10000; i++ {
					out = append(out, send(t, op, "i1", kmessage.NewNumber(ts, rng.NormFloat64()))...)
					switch rng.Intn(10) {
					case 0:
						// duplicate timestamp, dropped
					case 1:
						ts += int64(rng.Intn(5 * int(dt)))
					default:
						ts += 1 + int64(rng.ExpFloat64()*float64(dt))
					}
				}
				assert.NotZero(t, out)

				want := first - floorMod(first, dt) + dt
				for i, e := range out {
					if e.Message.Time != want {
						t.Fatalf("output %d at %d, want %d", i, e.Message.Time, want)
					}
					if e.Message.Time%dt != 0 {
						t.Fatalf("output %d at %d is off the grid", i, e.Message.Time)
					}
					want += dt
				}
			})
		}
	}
}

func TestCosineResampler(t *testing.T) {
	t.Run("constant input", func(t *testing.T) {
		op := newOp(t, TypeCosineResampler, `{"dt":3}`)
		var out []koperator.Emission
		for _, ts := range []int64{1, 5, 6, 20} {
			out = append(out, send(t, op, "i1", kmessage.NewNumber(ts, 5))...)
		}
		var times []int64
		for _, e := range out {
			times = append(times, e.Message.Time)
			assert.True(t, math.Abs(e.Message.Value()-5) < 1e-12)
		}
		assert.Equal(t, []int64{3, 6, 9, 12, 15, 18}, times)
	})

	t.Run("midpoint", func(t *testing.T) {
		op := newOp(t, TypeCosineResampler, `{"dt":5}`)
		send(t, op, "i1", kmessage.NewNumber(0, 0))
		out := send(t, op, "i1", kmessage.NewNumber(10, 2))
		assert.Equal(t, 2, len(out))
		assert.True(t, math.Abs(out[0].Message.Value()-1) < 1e-12)
		assert.Equal(t, num("o1", 10, 2), out[1])
	})

	t.Run("out of order input is dropped", func(t *testing.T) {
		op := newOp(t, TypeCosineResampler, `{"dt":5}`)
		send(t, op, "i1", kmessage.NewNumber(10, 0))
		assert.Zero(t, send(t, op, "i1", kmessage.NewNumber(10, 1)))
		assert.Zero(t, send(t, op, "i1", kmessage.NewNumber(3, 1)))
		out := send(t, op, "i1", kmessage.NewNumber(15, 4))
		assert.Equal(t, []koperator.Emission{num("o1", 15, 4)}, out)
	})
}

func TestHermiteResampler(t *testing.T) {
	op := newOp(t, TypeHermiteResampler, `{"dt":3}`)
	var out []koperator.Emission
	for ts := int64(0); ts <= 40; ts += 10 {
		out = append(out, send(t, op, "i1", kmessage.NewNumber(ts, float64(ts)))...)
	}
	var times []int64
	for _, e := range out {
		times = append(times, e.Message.Time)
		if math.Abs(e.Message.Value()-float64(e.Message.Time)) > 1e-9 {
			t.Fatalf("linear input resampled to %v", e.Message)
		}
	}
	assert.Equal(t, []int64{3, 6, 9, 12, 15, 18, 21, 24, 27, 30}, times)
}
