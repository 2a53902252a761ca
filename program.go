package kflow

import (
	"context"
	"fmt"
	"time"

	"github.com/birdayz/kflow/internal/telemetry"
	"github.com/birdayz/kflow/kdag"
	"github.com/birdayz/kflow/kmessage"
	"github.com/birdayz/kflow/koperator"
)

const entryPort = "i1"

// Program is a running operator graph built from a description. A Program
// is not safe for concurrent use; Manager serializes access to the programs
// it hosts.
type Program struct {
	cfg  config
	desc *Description

	ops    map[string]koperator.Operator
	order  []string
	dag    *kdag.DAG
	entry  string
	output map[string][]string
}

// New parses description and builds the program. Every operator type must be
// registered in reg. Errors are *ValidationError values combined with
// multierr.
func New(description []byte, reg *koperator.Registry, opts ...Option) (*Program, error) {
	d, err := Parse(description)
	if err != nil {
		return nil, err
	}
	return build(d, reg, newConfig(opts))
}

func build(d *Description, reg *koperator.Registry, cfg config) (*Program, error) {
	g, err := compile(d, reg)
	if err != nil {
		return nil, err
	}
	p := &Program{
		cfg:    cfg,
		desc:   d,
		ops:    g.ops,
		order:  g.order,
		dag:    g.dag,
		entry:  d.EntryOperator,
		output: g.output,
	}

	log := cfg.log.WithValues("program", cfg.name)
	if orphans := g.dag.GetGraph().Unreachable(kdag.NodeID(p.entry)); len(orphans) > 0 {
		log.Info("Operators unreachable from entry operator", "entry", p.entry, "operators", orphans)
	}
	log.V(1).Info("Program built", "operators", len(p.order), "connections", len(d.Connections), "entry", p.entry)
	return p, nil
}

// Description returns the description the program was built from.
func (p *Program) Description() *Description {
	return p.desc
}

// Operator returns the operator with the given id.
func (p *Program) Operator(id string) (koperator.Operator, bool) {
	op, ok := p.ops[id]
	return op, ok
}

// Receive feeds m to the entry operator's "i1" port and returns the filtered
// outputs of the whole cascade.
func (p *Program) Receive(m kmessage.Message) (Outputs, error) {
	return p.ReceiveOn(entryPort, m)
}

// ReceiveOn feeds m to a data port of the entry operator.
func (p *Program) ReceiveOn(port string, m kmessage.Message) (Outputs, error) {
	out, err := p.tick(port, m)
	if err != nil {
		return nil, err
	}
	return out.filter(p.output), nil
}

// ReceiveDebug is ReceiveOn without the output filter: every emission of
// every operator is returned.
func (p *Program) ReceiveDebug(port string, m kmessage.Message) (Outputs, error) {
	return p.tick(port, m)
}

// Batch applies inputs in order and merges their filtered outputs. It stops
// at the first failing input; inputs before it stay applied.
func (p *Program) Batch(inputs []Input) (Outputs, error) {
	return p.batch(inputs, p.ReceiveOn)
}

// BatchDebug is Batch with unfiltered outputs.
func (p *Program) BatchDebug(inputs []Input) (Outputs, error) {
	return p.batch(inputs, p.ReceiveDebug)
}

func (p *Program) batch(inputs []Input, receive func(string, kmessage.Message) (Outputs, error)) (Outputs, error) {
	res := Outputs{}
	for i, in := range inputs {
		port := in.Port
		if port == "" {
			port = entryPort
		}
		out, err := receive(port, in.Message)
		if err != nil {
			return res, fmt.Errorf("input %d: %w", i, err)
		}
		res.Merge(out)
	}
	return res, nil
}

type delivery struct {
	op    string
	port  string
	class koperator.PortClass
	msg   kmessage.Message
}

// tick delivers one external message and drains the resulting cascade
// depth-first. Every delivery is a receive followed by Process on the
// target.
func (p *Program) tick(port string, m kmessage.Message) (out Outputs, err error) {
	start := time.Now()
	_, span := telemetry.StartTick(context.Background(), p.cfg.tracer, p.cfg.name, p.entry, port, m.Time)
	defer func() {
		p.cfg.metrics.ObserveTick(p.cfg.name, out.Len(), time.Since(start), err)
		telemetry.End(span, err)
		if err != nil {
			p.cfg.log.Error(err, "Tick failed", "program", p.cfg.name, "port", port, "time", m.Time)
		}
	}()

	node, _ := p.dag.Node(kdag.NodeID(p.entry))
	if spec, ok := node.Port(port); !ok || spec.Class != koperator.DataInput {
		return nil, fmt.Errorf("%w: entry operator %s has no data input %q", koperator.ErrUnknownPort, p.entry, port)
	}

	out = Outputs{}
	stack := []delivery{{op: p.entry, port: port, class: koperator.DataInput, msg: m.Clone()}}
	steps := 0
	for len(stack) > 0 {
		d := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if steps++; steps > p.cfg.maxSteps {
			return nil, fmt.Errorf("%w: more than %d deliveries", ErrTickLimit, p.cfg.maxSteps)
		}

		op := p.ops[d.op]
		if d.class == koperator.ControlInput {
			err = op.ReceiveControl(d.port, d.msg)
		} else {
			err = op.ReceiveData(d.port, d.msg)
		}
		if err != nil {
			return nil, fmt.Errorf("deliver to %s.%s: %w", d.op, d.port, err)
		}

		var emissions []koperator.Emission
		if emissions, err = op.Process(); err != nil {
			return nil, fmt.Errorf("process %s: %w", d.op, err)
		}
		for _, e := range emissions {
			out.add(d.op, e.Port, e.Message)
		}

		// Pushed in reverse so the first emission's first edge runs next.
		for i := len(emissions) - 1; i >= 0; i-- {
			e := emissions[i]
			edges := p.dag.Downstream(kdag.NodeID(d.op), e.Port)
			for j := len(edges) - 1; j >= 0; j-- {
				stack = append(stack, p.deliveryFor(edges[j], e.Message))
			}
		}
	}
	return out, nil
}

func (p *Program) deliveryFor(e kdag.Edge, m kmessage.Message) delivery {
	node, _ := p.dag.Node(e.To)
	spec, _ := node.Port(e.ToPort)
	return delivery{op: string(e.To), port: e.ToPort, class: spec.Class, msg: m.Clone()}
}
