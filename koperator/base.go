package koperator

import (
	"fmt"

	"github.com/birdayz/kflow/kmessage"
	"github.com/birdayz/kflow/kserde"
)

// Base implements the port bookkeeping shared by all operators. Concrete
// operators embed *Base and add Process plus any scalar state, extending
// Collect and Restore when they have some.
type Base struct {
	id       string
	typeName string
	ports    []PortSpec
	index    map[string]int
	queues   []*Queue // nil for outputs

	received int
}

// NewBase validates the port declarations and allocates a queue per input
// port.
func NewBase(typeName, id string, ports ...PortSpec) (*Base, error) {
	b := &Base{
		id:       id,
		typeName: typeName,
		ports:    make([]PortSpec, 0, len(ports)),
		index:    make(map[string]int, len(ports)),
		queues:   make([]*Queue, 0, len(ports)),
	}
	for _, p := range ports {
		if p.Name == "" {
			return nil, fmt.Errorf("%w: %s: empty port name", ErrInvalidParameter, id)
		}
		if _, exists := b.index[p.Name]; exists {
			return nil, fmt.Errorf("%w: %s: %q", ErrDuplicatePortName, id, p.Name)
		}
		if p.Capacity < 0 {
			return nil, fmt.Errorf("%w: %s: port %q has negative capacity %d", ErrInvalidParameter, id, p.Name, p.Capacity)
		}
		switch p.Type {
		case kmessage.KindNumber, kmessage.KindBoolean, kmessage.KindVector, kmessage.KindBooleanVector:
		default:
			return nil, fmt.Errorf("%w: %s: port %q has invalid type %s", ErrInvalidParameter, id, p.Name, p.Type)
		}

		b.index[p.Name] = len(b.ports)
		b.ports = append(b.ports, p)
		if p.IsInput() {
			b.queues = append(b.queues, NewQueue(p.Capacity))
		} else {
			b.queues = append(b.queues, nil)
		}
	}
	return b, nil
}

func (b *Base) ID() string { return b.id }

func (b *Base) TypeName() string { return b.typeName }

// Ports returns a copy of the port declarations in declaration order.
func (b *Base) Ports() []PortSpec {
	out := make([]PortSpec, len(b.ports))
	copy(out, b.ports)
	return out
}

func (b *Base) Port(name string) (PortSpec, bool) {
	i, ok := b.index[name]
	if !ok {
		return PortSpec{}, false
	}
	return b.ports[i], true
}

// Queue returns the queue of an input port, nil for outputs and unknown
// names.
func (b *Base) Queue(name string) *Queue {
	i, ok := b.index[name]
	if !ok {
		return nil
	}
	return b.queues[i]
}

// Queues returns the queues of all inputs of the given class in declaration
// order.
func (b *Base) Queues(class PortClass) []*Queue {
	var out []*Queue
	for i, p := range b.ports {
		if p.Class == class {
			out = append(out, b.queues[i])
		}
	}
	return out
}

func (b *Base) ReceiveData(port string, m kmessage.Message) error {
	return b.receive(DataInput, port, m)
}

func (b *Base) ReceiveControl(port string, m kmessage.Message) error {
	return b.receive(ControlInput, port, m)
}

// Check validates a message against a port without buffering it.
func (b *Base) Check(class PortClass, port string, m kmessage.Message) error {
	i, ok := b.index[port]
	if !ok || b.ports[i].Class != class {
		return fmt.Errorf("%w: %s has no %s input %q", ErrUnknownPort, b.id, class, port)
	}
	if want := b.ports[i].Type; m.Kind() != want {
		return fmt.Errorf("%w: %s.%s expects %s, got %s", ErrPayloadType, b.id, port, want, m.Kind())
	}
	return nil
}

func (b *Base) receive(class PortClass, port string, m kmessage.Message) error {
	if err := b.Check(class, port, m); err != nil {
		return err
	}
	b.queues[b.index[port]].Push(m.Clone())
	b.received++
	return nil
}

// Fresh returns the number of messages buffered since the previous call and
// resets the count. Operators that emit once per input use it to tell a new
// message apart from a repeated Process call.
func (b *Base) Fresh() int {
	n := b.received
	b.received = 0
	return n
}

// Collect writes every input queue in declaration order.
func (b *Base) Collect(enc *kserde.Encoder) {
	for i, p := range b.ports {
		if p.IsInput() {
			b.queues[i].Collect(enc)
		}
	}
}

// Restore reads the queues written by Collect and checks that every restored
// message matches its port type.
func (b *Base) Restore(dec *kserde.Decoder) error {
	for i, p := range b.ports {
		if !p.IsInput() {
			continue
		}
		q := b.queues[i]
		if err := q.Restore(dec); err != nil {
			return fmt.Errorf("%s.%s: %w", b.id, p.Name, err)
		}
		for j := 0; j < q.Len(); j++ {
			if k := q.At(j).Kind(); k != p.Type {
				return fmt.Errorf("%w: %s.%s holds %s, port carries %s",
					kserde.ErrSerializationMismatch, b.id, p.Name, k, p.Type)
			}
		}
	}
	b.received = 0
	return nil
}
