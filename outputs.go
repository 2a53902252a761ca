package kflow

import (
	"slices"

	"github.com/birdayz/kflow/kmessage"
)

// Outputs maps operator id to output port to the messages emitted there, in
// emission order.
type Outputs map[string]map[string][]kmessage.Message

// Input is one message of a batch, addressed to a data port of the entry
// operator.
type Input struct {
	Port    string
	Message kmessage.Message
}

func (o Outputs) add(op, port string, m kmessage.Message) {
	ports, ok := o[op]
	if !ok {
		ports = make(map[string][]kmessage.Message)
		o[op] = ports
	}
	ports[port] = append(ports[port], m)
}

// Get returns the messages emitted on one port.
func (o Outputs) Get(op, port string) []kmessage.Message {
	return o[op][port]
}

// Len counts all messages.
func (o Outputs) Len() int {
	n := 0
	for _, ports := range o {
		for _, msgs := range ports {
			n += len(msgs)
		}
	}
	return n
}

// Merge appends the messages of other after those already in o.
func (o Outputs) Merge(other Outputs) {
	for op, ports := range other {
		for port, msgs := range ports {
			for _, m := range msgs {
				o.add(op, port, m)
			}
		}
	}
}

// filter keeps the ports listed in keep. A nil keep returns o unchanged.
func (o Outputs) filter(keep map[string][]string) Outputs {
	if keep == nil {
		return o
	}
	res := make(Outputs, len(keep))
	for op, ports := range keep {
		for _, port := range ports {
			if msgs, ok := o[op][port]; ok {
				for _, m := range msgs {
					res.add(op, port, m)
				}
			}
		}
	}
	return res
}

// Operators returns the ids present in o, sorted.
func (o Outputs) Operators() []string {
	ids := make([]string, 0, len(o))
	for id := range o {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}
