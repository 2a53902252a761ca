// Package koperator defines the operator contract of the dataflow engine and
// the building blocks concrete operators are made of: port declarations,
// buffered input queues with running statistics, the join synchronizer and
// the type registry.
//
// # Protocol
//
// The engine drives an operator one message at a time:
//
//  1. ReceiveData or ReceiveControl validates the port and payload type, then
//     buffers a copy of the message. A rejected message leaves the operator
//     untouched.
//  2. Process checks the operator's trigger condition, computes zero or more
//     emissions and consumes the inputs it used.
//  3. The engine clones every emission into the connected downstream ports and
//     repeats the cycle there.
//
// Operators are not safe for concurrent use. A program drives all of its
// operators from a single goroutine.
package koperator

import (
	"github.com/birdayz/kflow/kmessage"
	"github.com/birdayz/kflow/kserde"
)

// Operator is a stateful node of a program graph.
type Operator interface {
	ID() string
	TypeName() string
	Ports() []PortSpec

	ReceiveData(port string, m kmessage.Message) error
	ReceiveControl(port string, m kmessage.Message) error

	// Process runs the trigger check and returns the emissions in a
	// deterministic order.
	Process() ([]Emission, error)

	// Collect appends the complete mutable state. It must not modify the
	// operator.
	Collect(enc *kserde.Encoder)

	// Restore consumes exactly the bytes written by Collect of an operator
	// of the same type and parameters.
	Restore(dec *kserde.Decoder) error
}

// Emission is a message produced on an output port.
type Emission struct {
	Port    string
	Message kmessage.Message
}

func Emit(port string, m kmessage.Message) Emission {
	return Emission{Port: port, Message: m}
}
