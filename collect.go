package kflow

import (
	"context"
	"fmt"

	"github.com/birdayz/kflow/internal/telemetry"
	"github.com/birdayz/kflow/koperator"
	"github.com/birdayz/kflow/kserde"
)

// Collect serializes the program: the description it was built from, then
// every operator's state in declaration order, each prefixed with its id.
//
//	[u64 len][description] ([u64 len][id][state])*
//
// Collect does not modify the program.
func (p *Program) Collect() []byte {
	enc := kserde.NewEncoder()
	enc.WriteBytes(p.desc.Source())
	for _, id := range p.order {
		enc.WriteString(id)
		p.ops[id].Collect(enc)
	}
	return enc.Data()
}

// Restore rebuilds a program from the output of Collect. The description is
// parsed and validated again, so reg must know every operator type it uses.
// Any mismatch between the snapshot and the rebuilt program, including
// trailing bytes, fails with kserde.ErrSerializationMismatch.
func Restore(data []byte, reg *koperator.Registry, opts ...Option) (p *Program, err error) {
	cfg := newConfig(opts)
	_, span := telemetry.StartRestore(context.Background(), cfg.tracer, len(data))
	defer func() {
		cfg.metrics.ObserveRestore(err)
		telemetry.End(span, err)
	}()

	dec := kserde.NewDecoder(data)
	src, err := dec.ReadBytes()
	if err != nil {
		return nil, fmt.Errorf("read description: %w", err)
	}
	d, err := Parse(src)
	if err != nil {
		return nil, err
	}
	p, err = build(d, reg, cfg)
	if err != nil {
		return nil, err
	}

	for _, id := range p.order {
		got, err := dec.ReadString()
		if err != nil {
			return nil, fmt.Errorf("read id of %s: %w", id, err)
		}
		if got != id {
			return nil, fmt.Errorf("%w: expected operator %q, found %q", kserde.ErrSerializationMismatch, id, got)
		}
		if err := p.ops[id].Restore(dec); err != nil {
			return nil, fmt.Errorf("restore %s: %w", id, err)
		}
	}
	if err := dec.Done(); err != nil {
		return nil, err
	}

	cfg.log.V(1).Info("Program restored", "program", cfg.name, "bytes", len(data))
	return p, nil
}
