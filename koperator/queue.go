package koperator

import (
	"fmt"
	"math"

	"github.com/birdayz/kflow/kmessage"
	"github.com/birdayz/kflow/kserde"
)

// Queue is the FIFO behind an input port. It keeps a running sum and a
// Welford mean/M2 pair over the numeric view of its messages, updated in O(1)
// on every push and pop. Messages without a numeric view (vectors, NaN) are
// left out of the aggregates. Infinite values are counted apart from the
// running sums; while one is held the aggregates report what IEEE arithmetic
// over the window would. When the running sums overflow or lose their
// precision to a large departing value, they are recomputed from the
// contents.
//
// Queue is not safe for concurrent use.
type Queue struct {
	buf      []kmessage.Message
	head     int
	size     int
	capacity int

	// count is the number of finite values in sum, mean and m2.
	count  int
	posInf int
	negInf int
	sum    float64
	mean  float64
	m2    float64
}

// NewQueue creates a queue. capacity 0 means unbounded.
func NewQueue(capacity int) *Queue {
	initial := capacity
	if initial <= 0 || initial > 64 {
		initial = 8
	}
	return &Queue{buf: make([]kmessage.Message, initial), capacity: capacity}
}

func (q *Queue) Len() int { return q.size }

// Cap returns the configured capacity, 0 for unbounded queues.
func (q *Queue) Cap() int { return q.capacity }

// Full reports whether the queue holds capacity messages. Unbounded queues
// are never full.
func (q *Queue) Full() bool {
	return q.capacity > 0 && q.size == q.capacity
}

// Push appends m. When the queue is full the oldest message is evicted first
// and returned.
func (q *Queue) Push(m kmessage.Message) (evicted kmessage.Message, ok bool) {
	if q.Full() {
		evicted, ok = q.PopFront()
	}
	if q.size == len(q.buf) {
		q.grow()
	}
	q.buf[(q.head+q.size)%len(q.buf)] = m
	q.size++
	q.add(m.Value())
	return evicted, ok
}

// PopFront removes and returns the oldest message.
func (q *Queue) PopFront() (kmessage.Message, bool) {
	if q.size == 0 {
		return kmessage.Message{}, false
	}
	m := q.buf[q.head]
	q.buf[q.head] = kmessage.Message{}
	q.head = (q.head + 1) % len(q.buf)
	q.size--
	q.remove(m.Value())
	return m, true
}

// At returns the i-th message, 0 being the oldest. It panics when i is out of
// range, like a slice index.
func (q *Queue) At(i int) kmessage.Message {
	if i < 0 || i >= q.size {
		panic(fmt.Sprintf("koperator: queue index %d out of range [0:%d]", i, q.size))
	}
	return q.buf[(q.head+i)%len(q.buf)]
}

func (q *Queue) Front() (kmessage.Message, bool) {
	if q.size == 0 {
		return kmessage.Message{}, false
	}
	return q.At(0), true
}

func (q *Queue) Back() (kmessage.Message, bool) {
	if q.size == 0 {
		return kmessage.Message{}, false
	}
	return q.At(q.size - 1), true
}

// Messages returns a copy of the contents, oldest first.
func (q *Queue) Messages() []kmessage.Message {
	out := make([]kmessage.Message, q.size)
	for i := range out {
		out[i] = q.At(i)
	}
	return out
}

// Values returns the numeric view of the contents, oldest first.
func (q *Queue) Values() []float64 {
	out := make([]float64, q.size)
	for i := range out {
		out[i] = q.At(i).Value()
	}
	return out
}

func (q *Queue) Clear() {
	for q.size > 0 {
		q.PopFront()
	}
	q.resetStats()
	q.posInf, q.negInf = 0, 0
}

// Sum returns the sum of the numeric values.
func (q *Queue) Sum() float64 {
	if q.infinite() {
		return q.infSum()
	}
	return q.sum
}

func (q *Queue) Mean() float64 {
	if q.infinite() {
		return q.infSum()
	}
	if q.count == 0 {
		return 0
	}
	return q.sum / float64(q.count)
}

// Variance returns the sample variance (divided by N-1), 0 for fewer than two
// values and NaN while an infinite value is held.
func (q *Queue) Variance() float64 {
	if q.count+q.posInf+q.negInf < 2 {
		return 0
	}
	if q.infinite() {
		return math.NaN()
	}
	return q.m2 / float64(q.count-1)
}

// PopulationVariance divides by N.
func (q *Queue) PopulationVariance() float64 {
	if q.count+q.posInf+q.negInf == 0 {
		return 0
	}
	if q.infinite() {
		return math.NaN()
	}
	return q.m2 / float64(q.count)
}

func (q *Queue) StdDev() float64 {
	return math.Sqrt(q.Variance())
}

func (q *Queue) infinite() bool {
	return q.posInf > 0 || q.negInf > 0
}

func (q *Queue) infSum() float64 {
	switch {
	case q.posInf > 0 && q.negInf > 0:
		return math.NaN()
	case q.posInf > 0:
		return math.Inf(1)
	default:
		return math.Inf(-1)
	}
}

// stale reports running sums that can no longer be updated incrementally.
func (q *Queue) stale() bool {
	return math.IsInf(q.sum, 0) || math.IsNaN(q.sum) ||
		math.IsInf(q.m2, 0) || math.IsNaN(q.m2) ||
		math.IsInf(q.mean, 0) || math.IsNaN(q.mean)
}

// cancels is the ratio between a departing value and what remains beyond
// which the remaining running sums are recomputed.
const cancels = 1e6

// add accounts for x, which has already been appended.
func (q *Queue) add(x float64) {
	switch {
	case math.IsNaN(x):
		return
	case math.IsInf(x, 1):
		q.posInf++
		return
	case math.IsInf(x, -1):
		q.negInf++
		return
	}
	q.count++
	if q.stale() {
		q.recompute()
		return
	}
	n := float64(q.count)
	q.sum += x
	delta := x - q.mean
	q.mean += delta / n
	q.m2 += delta * (x - q.mean)
	if q.stale() {
		q.recompute()
	}
}

// remove reverses add for x, which has already been taken out.
func (q *Queue) remove(x float64) {
	switch {
	case math.IsNaN(x):
		return
	case math.IsInf(x, 1):
		q.posInf--
		return
	case math.IsInf(x, -1):
		q.negInf--
		return
	}
	q.count--
	if q.count == 0 {
		q.resetStats()
		return
	}
	if q.stale() {
		q.recompute()
		return
	}
	n := float64(q.count)
	q.sum -= x
	oldMean := q.mean
	q.mean -= (x - oldMean) / n
	d := (x - oldMean) * (x - q.mean)
	q.m2 -= d
	if q.m2 < 0 {
		q.m2 = 0
	}
	if q.stale() ||
		math.Abs(x) > cancels*math.Max(1, math.Abs(q.sum)) ||
		d > cancels*math.Max(1, q.m2) {
		q.recompute()
	}
}

// recompute rebuilds the finite aggregates from the contents in O(N).
func (q *Queue) recompute() {
	q.resetStats()
	for i := 0; i < q.size; i++ {
		x := q.At(i).Value()
		if math.IsNaN(x) || math.IsInf(x, 0) {
			continue
		}
		q.count++
		q.sum += x
	}
	if q.count == 0 {
		return
	}
	q.mean = q.sum / float64(q.count)
	for i := 0; i < q.size; i++ {
		x := q.At(i).Value()
		if math.IsNaN(x) || math.IsInf(x, 0) {
			continue
		}
		q.m2 += (x - q.mean) * (x - q.mean)
	}
}

func (q *Queue) resetStats() {
	q.count = 0
	q.sum, q.mean, q.m2 = 0, 0, 0
}

func (q *Queue) grow() {
	n := len(q.buf) * 2
	if n == 0 {
		n = 8
	}
	if q.capacity > 0 && n > q.capacity {
		n = q.capacity
	}
	buf := make([]kmessage.Message, n)
	for i := 0; i < q.size; i++ {
		buf[i] = q.buf[(q.head+i)%len(q.buf)]
	}
	q.buf = buf
	q.head = 0
}

// Collect writes the message count, the messages and the running aggregates.
func (q *Queue) Collect(enc *kserde.Encoder) {
	enc.WriteUint64(uint64(q.size))
	for i := 0; i < q.size; i++ {
		kmessage.Encode(enc, q.At(i))
	}
	enc.WriteFloat64(q.sum)
	enc.WriteFloat64(q.mean)
	enc.WriteFloat64(q.m2)
}

// Restore replaces the contents with state written by Collect. The
// aggregates are taken from the input rather than recomputed so that a
// restored queue continues bit for bit where the collected one stopped.
func (q *Queue) Restore(dec *kserde.Decoder) error {
	// time + kind + smallest payload
	n, err := dec.ReadLength(10)
	if err != nil {
		return err
	}
	if q.capacity > 0 && n > q.capacity {
		return fmt.Errorf("%w: %d messages exceed queue capacity %d", kserde.ErrSerializationMismatch, n, q.capacity)
	}
	msgs := make([]kmessage.Message, n)
	for i := range msgs {
		if msgs[i], err = kmessage.Decode(dec); err != nil {
			return err
		}
	}
	var stats [3]float64
	for i := range stats {
		if stats[i], err = dec.ReadFloat64(); err != nil {
			return err
		}
	}

	size := len(q.buf)
	if size < n {
		size = n
	}
	q.buf = make([]kmessage.Message, size)
	copy(q.buf, msgs)
	q.head = 0
	q.size = n
	q.count, q.posInf, q.negInf = 0, 0, 0
	for _, m := range msgs {
		switch x := m.Value(); {
		case math.IsNaN(x):
		case math.IsInf(x, 1):
			q.posInf++
		case math.IsInf(x, -1):
			q.negInf++
		default:
			q.count++
		}
	}
	q.sum, q.mean, q.m2 = stats[0], stats[1], stats[2]
	return nil
}
