package operators

import (
	"fmt"

	"github.com/birdayz/kflow/kmessage"
	"github.com/birdayz/kflow/koperator"
	"github.com/birdayz/kflow/kserde"
)

type streamParams struct {
	NumPorts  int      `json:"numPorts" validate:"min=1"`
	PortTypes []string `json:"portTypes"`
}

func streamPorts(p streamParams) ([]koperator.PortSpec, error) {
	kinds, err := portKinds(p.PortTypes, p.NumPorts, kmessage.KindNumber)
	if err != nil {
		return nil, err
	}
	ports := make([]koperator.PortSpec, 0, 2*len(kinds))
	for i, k := range kinds {
		ports = append(ports, koperator.DataPort(koperator.DataPortName(i+1), k, 0))
	}
	return append(ports, outputPorts(kinds...)...), nil
}

// Input is the usual entry operator. Each input iK forwards to oK only
// messages strictly newer than the last one it forwarded, so duplicates and
// out-of-order messages never enter the program.
type Input struct {
	*koperator.Base
	inputs   []*koperator.Queue
	lastSent []int64
	sent     []bool
}

func NewInput(id string, params koperator.Params) (koperator.Operator, error) {
	p := streamParams{NumPorts: 1}
	if err := params.Decode(&p); err != nil {
		return nil, err
	}
	ports, err := streamPorts(p)
	if err != nil {
		return nil, err
	}
	b, err := koperator.NewBase(TypeInput, id, ports...)
	if err != nil {
		return nil, err
	}
	return &Input{
		Base:     b,
		inputs:   b.Queues(koperator.DataInput),
		lastSent: make([]int64, p.NumPorts),
		sent:     make([]bool, p.NumPorts),
	}, nil
}

func (in *Input) Process() ([]koperator.Emission, error) {
	var out []koperator.Emission
	for i, q := range in.inputs {
		for q.Len() > 0 {
			m, _ := q.PopFront()
			if in.sent[i] && m.Time <= in.lastSent[i] {
				continue
			}
			in.sent[i] = true
			in.lastSent[i] = m.Time
			out = append(out, koperator.Emit(koperator.OutputPortName(i+1), m))
		}
	}
	return out, nil
}

func (in *Input) Collect(enc *kserde.Encoder) {
	in.Base.Collect(enc)
	for i := range in.inputs {
		enc.WriteBool(in.sent[i])
		enc.WriteInt64(in.lastSent[i])
	}
}

func (in *Input) Restore(dec *kserde.Decoder) error {
	if err := in.Base.Restore(dec); err != nil {
		return err
	}
	for i := range in.inputs {
		sent, err := dec.ReadBool()
		if err != nil {
			return fmt.Errorf("%s: %w", in.ID(), err)
		}
		last, err := dec.ReadInt64()
		if err != nil {
			return fmt.Errorf("%s: %w", in.ID(), err)
		}
		in.sent[i], in.lastSent[i] = sent, last
	}
	return nil
}

// passthrough forwards every message of iK to oK unchanged.
type passthrough struct {
	*koperator.Base
	inputs []*koperator.Queue
}

func newPassthrough(typeName, id string, ports []koperator.PortSpec) (*passthrough, error) {
	b, err := koperator.NewBase(typeName, id, ports...)
	if err != nil {
		return nil, err
	}
	return &passthrough{Base: b, inputs: b.Queues(koperator.DataInput)}, nil
}

func (p *passthrough) Process() ([]koperator.Emission, error) {
	var out []koperator.Emission
	for i, q := range p.inputs {
		for q.Len() > 0 {
			m, _ := q.PopFront()
			out = append(out, koperator.Emit(koperator.OutputPortName(i+1), m))
		}
	}
	return out, nil
}

// NewOutput builds an Output operator, a passthrough that marks the results
// a program exposes.
func NewOutput(id string, params koperator.Params) (koperator.Operator, error) {
	p := streamParams{NumPorts: 1}
	if err := params.Decode(&p); err != nil {
		return nil, err
	}
	ports, err := streamPorts(p)
	if err != nil {
		return nil, err
	}
	return operator(newPassthrough(TypeOutput, id, ports))
}

type identityParams struct {
	PortType string `json:"portType"`
}

func NewIdentity(id string, params koperator.Params) (koperator.Operator, error) {
	var p identityParams
	if err := params.Decode(&p); err != nil {
		return nil, err
	}
	var types []string
	if p.PortType != "" {
		types = []string{p.PortType}
	}
	ports, err := streamPorts(streamParams{NumPorts: 1, PortTypes: types})
	if err != nil {
		return nil, err
	}
	return operator(newPassthrough(TypeIdentity, id, ports))
}
