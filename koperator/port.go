package koperator

import (
	"strconv"

	"github.com/birdayz/kflow/kmessage"
)

// PortClass tells data inputs, control inputs and outputs apart.
type PortClass uint8

const (
	DataInput PortClass = iota + 1
	ControlInput
	Output
)

func (c PortClass) String() string {
	switch c {
	case DataInput:
		return "data"
	case ControlInput:
		return "control"
	case Output:
		return "output"
	default:
		return "unknown"
	}
}

// PortSpec declares one port of an operator.
type PortSpec struct {
	Name  string
	Class PortClass
	Type  kmessage.Kind

	// Capacity bounds the queue of an input port; pushing into a full queue
	// evicts the oldest message. Zero means unbounded.
	Capacity int

	// Eager ports do not gate synchronization in a join. They supply their
	// most recent value instead.
	Eager bool
}

func (p PortSpec) IsInput() bool {
	return p.Class == DataInput || p.Class == ControlInput
}

func DataPort(name string, typ kmessage.Kind, capacity int) PortSpec {
	return PortSpec{Name: name, Class: DataInput, Type: typ, Capacity: capacity}
}

func ControlPort(name string, typ kmessage.Kind, capacity int) PortSpec {
	return PortSpec{Name: name, Class: ControlInput, Type: typ, Capacity: capacity}
}

func OutputPort(name string, typ kmessage.Kind) PortSpec {
	return PortSpec{Name: name, Class: Output, Type: typ}
}

// DataPortName returns the conventional name of the i-th data input, "i1"
// for i == 1.
func DataPortName(i int) string { return "i" + strconv.Itoa(i) }

// ControlPortName returns "c1" for i == 1.
func ControlPortName(i int) string { return "c" + strconv.Itoa(i) }

// OutputPortName returns "o1" for i == 1.
func OutputPortName(i int) string { return "o" + strconv.Itoa(i) }
