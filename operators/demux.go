package operators

import (
	"github.com/birdayz/kflow/kmessage"
	"github.com/birdayz/kflow/koperator"
)

type demuxParams struct {
	NumPorts int `json:"numPorts" validate:"min=1"`
}

// Demultiplexer routes each data message to the outputs whose boolean
// control port is true at the same time: i1 goes to oK when cK is true.
//
// A data message waits until every control port holds a message at or after
// its time. Control messages older than the data front are discarded. When a
// control port skips the data time, the data message is dropped without
// output.
type Demultiplexer struct {
	*koperator.Base
	data     *koperator.Queue
	controls []*koperator.Queue
}

func NewDemultiplexer(id string, params koperator.Params) (koperator.Operator, error) {
	p := demuxParams{NumPorts: 1}
	if err := params.Decode(&p); err != nil {
		return nil, err
	}
	ports := []koperator.PortSpec{koperator.DataPort("i1", kmessage.KindNumber, 0)}
	for i := 1; i <= p.NumPorts; i++ {
		ports = append(ports,
			koperator.ControlPort(koperator.ControlPortName(i), kmessage.KindBoolean, 0),
			koperator.OutputPort(koperator.OutputPortName(i), kmessage.KindNumber),
		)
	}
	b, err := koperator.NewBase(TypeDemultiplexer, id, ports...)
	if err != nil {
		return nil, err
	}
	d := &Demultiplexer{Base: b, data: b.Queue("i1")}
	for i := 1; i <= p.NumPorts; i++ {
		d.controls = append(d.controls, b.Queue(koperator.ControlPortName(i)))
	}
	return d, nil
}

func (d *Demultiplexer) Process() ([]koperator.Emission, error) {
	var out []koperator.Emission
	for d.data.Len() > 0 {
		front, _ := d.data.Front()
		ready, aligned := true, true
		for _, c := range d.controls {
			for c.Len() > 0 && c.At(0).Time < front.Time {
				c.PopFront()
			}
			if c.Len() == 0 {
				ready = false
			} else if c.At(0).Time != front.Time {
				aligned = false
			}
		}
		if !ready {
			break
		}
		d.data.PopFront()
		if !aligned {
			continue
		}
		for i, c := range d.controls {
			ctl, _ := c.PopFront()
			if ctl.Bool() {
				out = append(out, koperator.Emit(koperator.OutputPortName(i+1), front.Clone()))
			}
		}
	}
	return out, nil
}
