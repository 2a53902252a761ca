package koperator

import (
	"fmt"

	"github.com/birdayz/kflow/kmessage"
)

// Synchronizer aligns the data inputs of a join.
//
// Non-eager ports gate synchronization: a sync point exists when all of their
// fronts carry the same timestamp. Fronts older than the newest front can
// never be matched and are dropped. Eager ports only supply a value: the most
// recent one with a time at or before the sync point, or the oldest one held
// when all of them are newer. An eager value is never consumed by a sync
// point; it is discarded once a newer eager value qualifies, or, when every
// non-eager port has drained, once a newer eager value arrives.
type Synchronizer struct {
	queues []*Queue
	eager  []bool
	values []kmessage.Message
}

// NewSynchronizer builds a synchronizer over all data inputs of b. It fails
// with ErrInvalidEagerConfiguration unless at least one data input is
// non-eager.
func NewSynchronizer(b *Base) (*Synchronizer, error) {
	s := &Synchronizer{}
	lazy := 0
	for i, p := range b.ports {
		if p.Class != DataInput {
			continue
		}
		s.queues = append(s.queues, b.queues[i])
		s.eager = append(s.eager, p.Eager)
		if !p.Eager {
			lazy++
		}
	}
	if lazy == 0 {
		return nil, fmt.Errorf("%w: %s: at least one data input must be non-eager", ErrInvalidEagerConfiguration, b.id)
	}
	s.values = make([]kmessage.Message, len(s.queues))
	return s, nil
}

// Next looks for the next sync point. On success it returns the sync time and
// one message per data input in declaration order; the slice is reused by the
// following call. Next drops stale non-eager fronts and superseded eager
// values but never consumes the sync point itself; call Consume for that.
func (s *Synchronizer) Next() (int64, []kmessage.Message, bool) {
	for {
		var (
			newest int64
			seen   bool
		)
		for i, q := range s.queues {
			if s.eager[i] {
				continue
			}
			front, ok := q.Front()
			if !ok {
				return 0, nil, false
			}
			if !seen || front.Time > newest {
				newest = front.Time
				seen = true
			}
		}

		aligned := true
		for i, q := range s.queues {
			if s.eager[i] {
				continue
			}
			if front, _ := q.Front(); front.Time < newest {
				q.PopFront()
				aligned = false
			}
		}
		if !aligned {
			continue
		}

		for i, q := range s.queues {
			if !s.eager[i] {
				s.values[i], _ = q.Front()
				continue
			}
			if q.Len() == 0 {
				return 0, nil, false
			}
			for q.Len() >= 2 && q.At(1).Time <= newest {
				q.PopFront()
			}
			s.values[i] = q.At(0)
		}
		return newest, s.values, true
	}
}

// Consume pops the fronts of all non-eager inputs, completing the sync point
// returned by Next.
func (s *Synchronizer) Consume() {
	for i, q := range s.queues {
		if !s.eager[i] {
			q.PopFront()
		}
	}
}

// Prune keeps only the newest value of every eager input once all non-eager
// inputs have drained, so eager queues stay bounded.
func (s *Synchronizer) Prune() {
	for i, q := range s.queues {
		if !s.eager[i] && q.Len() > 0 {
			return
		}
	}
	for i, q := range s.queues {
		if s.eager[i] {
			for q.Len() > 1 {
				q.PopFront()
			}
		}
	}
}

// Drain calls fn for every available sync point, consumes it, and prunes the
// eager inputs afterwards. The values slice passed to fn must not be retained.
func (s *Synchronizer) Drain(fn func(t int64, values []kmessage.Message) error) error {
	defer s.Prune()
	for {
		t, values, ok := s.Next()
		if !ok {
			return nil
		}
		if err := fn(t, values); err != nil {
			return err
		}
		s.Consume()
	}
}
