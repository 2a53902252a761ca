package operators

import (
	"fmt"
	"math"

	"github.com/birdayz/kflow/kmessage"
	"github.com/birdayz/kflow/koperator"
	"github.com/birdayz/kflow/kserde"
)

// resampler holds the grid state shared by the interpolating resamplers.
// Grid points are the multiples of dt. carryOver is the distance from the
// last grid point to the end of the last interval, so the grid stays aligned
// across calls.
type resampler struct {
	*koperator.Base
	q         *koperator.Queue
	dt        int64
	carryOver int64
	started   bool
}

type resamplerParams struct {
	DT int64 `json:"dt" validate:"gt=0"`
}

func newResampler(typeName, id string, params koperator.Params, window int) (*resampler, error) {
	var p resamplerParams
	if err := params.Decode(&p); err != nil {
		return nil, err
	}
	b, err := koperator.NewBase(typeName, id,
		koperator.DataPort("i1", kmessage.KindNumber, window),
		koperator.OutputPort("o1", kmessage.KindNumber),
	)
	if err != nil {
		return nil, err
	}
	return &resampler{Base: b, q: b.Queue("i1"), dt: p.DT}, nil
}

// ReceiveData drops messages that are not strictly newer than the last one
// buffered; they would describe an empty or reversed interval.
func (r *resampler) ReceiveData(port string, m kmessage.Message) error {
	if err := r.Check(koperator.DataInput, port, m); err != nil {
		return err
	}
	if back, ok := r.q.Back(); ok && m.Time <= back.Time {
		return nil
	}
	return r.Base.ReceiveData(port, m)
}

// grid returns the grid points in (t0, t1] and advances carryOver.
func (r *resampler) grid(t0, t1 int64) []int64 {
	if !r.started {
		r.carryOver = floorMod(t0, r.dt)
		r.started = true
	}
	var points []int64
	for g := t0 - r.carryOver + r.dt; g <= t1; g += r.dt {
		points = append(points, g)
	}
	if len(points) > 0 {
		r.carryOver = t1 - points[len(points)-1]
	} else {
		r.carryOver += t1 - t0
	}
	return points
}

func floorMod(a, b int64) int64 {
	m := a % b
	if m < 0 {
		m += b
	}
	return m
}

func (r *resampler) Collect(enc *kserde.Encoder) {
	r.Base.Collect(enc)
	enc.WriteInt64(r.carryOver)
	enc.WriteBool(r.started)
}

func (r *resampler) Restore(dec *kserde.Decoder) error {
	if err := r.Base.Restore(dec); err != nil {
		return err
	}
	carry, err := dec.ReadInt64()
	if err != nil {
		return fmt.Errorf("%s: %w", r.ID(), err)
	}
	started, err := dec.ReadBool()
	if err != nil {
		return fmt.Errorf("%s: %w", r.ID(), err)
	}
	r.carryOver, r.started = carry, started
	return nil
}

// CosineResampler interpolates between consecutive inputs with a raised
// cosine.
type CosineResampler struct {
	*resampler
}

func NewCosineResampler(id string, params koperator.Params) (koperator.Operator, error) {
	r, err := newResampler(TypeCosineResampler, id, params, 2)
	if err != nil {
		return nil, err
	}
	return &CosineResampler{resampler: r}, nil
}

func (c *CosineResampler) Process() ([]koperator.Emission, error) {
	if c.Fresh() == 0 || c.q.Len() < 2 {
		return nil, nil
	}
	a, b := c.q.At(0), c.q.At(1)
	var out []koperator.Emission
	for _, g := range c.grid(a.Time, b.Time) {
		mu := float64(g-a.Time) / float64(b.Time-a.Time)
		out = append(out, koperator.Emit("o1", kmessage.NewNumber(g, cosine(a.Value(), b.Value(), mu))))
	}
	return out, nil
}

func cosine(y0, y1, mu float64) float64 {
	mu2 := (1 - math.Cos(mu*math.Pi)) / 2
	return y0*(1-mu2) + y1*mu2
}

// HermiteResampler interpolates the middle interval of a four point window
// with a cubic Hermite spline (tension 0, bias 0). The first interval is
// interpolated as soon as three points exist, using a predecessor
// extrapolated by a least-squares line through them.
type HermiteResampler struct {
	*resampler
}

func NewHermiteResampler(id string, params koperator.Params) (koperator.Operator, error) {
	r, err := newResampler(TypeHermiteResampler, id, params, 4)
	if err != nil {
		return nil, err
	}
	return &HermiteResampler{resampler: r}, nil
}

func (h *HermiteResampler) Process() ([]koperator.Emission, error) {
	if h.Fresh() == 0 {
		return nil, nil
	}
	var p [4]kmessage.Message
	switch h.q.Len() {
	case 3:
		p[1], p[2], p[3] = h.q.At(0), h.q.At(1), h.q.At(2)
		p[0] = extrapolate(p[1:], 2*p[1].Time-p[2].Time)
	case 4:
		for i := range p {
			p[i] = h.q.At(i)
		}
	default:
		return nil, nil
	}

	a, b := p[1], p[2]
	var out []koperator.Emission
	for _, g := range h.grid(a.Time, b.Time) {
		mu := float64(g-a.Time) / float64(b.Time-a.Time)
		y := hermite(p[0].Value(), p[1].Value(), p[2].Value(), p[3].Value(), mu)
		out = append(out, koperator.Emit("o1", kmessage.NewNumber(g, y)))
	}
	return out, nil
}

// extrapolate fits a least-squares line through points and evaluates it at t.
func extrapolate(points []kmessage.Message, t int64) kmessage.Message {
	n := float64(len(points))
	origin := points[0].Time
	var sx, sy, sxx, sxy float64
	for _, p := range points {
		x, y := float64(p.Time-origin), p.Value()
		sx += x
		sy += y
		sxx += x * x
		sxy += x * y
	}
	slope := (n*sxy - sx*sy) / (n*sxx - sx*sx)
	intercept := (sy - slope*sx) / n
	return kmessage.NewNumber(t, intercept+slope*float64(t-origin))
}

func hermite(y0, y1, y2, y3, mu float64) float64 {
	mu2 := mu * mu
	mu3 := mu2 * mu
	m0 := (y1-y0)/2 + (y2-y1)/2
	m1 := (y2-y1)/2 + (y3-y2)/2
	a0 := 2*mu3 - 3*mu2 + 1
	a1 := mu3 - 2*mu2 + mu
	a2 := mu3 - mu2
	a3 := -2*mu3 + 3*mu2
	return a0*y1 + a1*m0 + a2*m1 + a3*y2
}
