package kflow

import (
	"errors"
	"fmt"
	"slices"

	"go.uber.org/multierr"

	"github.com/birdayz/kflow/kdag"
	"github.com/birdayz/kflow/koperator"
)

// Validate parses a description and checks it against reg without keeping
// the program. It reports every finding it can reach as a *ValidationError,
// combined with multierr; use multierr.Errors to list them.
func Validate(description []byte, reg *koperator.Registry) error {
	d, err := Parse(description)
	if err != nil {
		return &ValidationError{Err: err}
	}
	_, err = compile(d, reg)
	return err
}

// ValidateOperator checks a single operator object, as it would appear in
// the operators list.
func ValidateOperator(operator []byte, reg *koperator.Registry) error {
	var od OperatorDescription
	if err := od.UnmarshalJSON(operator); err != nil {
		return &ValidationError{Err: fmt.Errorf("%w: %v", ErrMalformedDescription, err)}
	}
	if err := tagErrors("", koperator.Validate(od)); err != nil {
		return err
	}
	_, err := buildOperator("", od, reg)
	return err
}

// graph is the checked, wired form of a description.
type graph struct {
	ops    map[string]koperator.Operator
	order  []string
	dag    *kdag.DAG
	output map[string][]string
}

// compile builds every operator and the graph, collecting all findings.
// Checks that depend on an earlier failure are skipped.
func compile(d *Description, reg *koperator.Registry) (*graph, error) {
	errs := tagErrors("", koperator.Validate(d))

	g := &graph{ops: make(map[string]koperator.Operator, len(d.Operators))}
	b := kdag.NewBuilder()
	for i, od := range d.Operators {
		loc := fmt.Sprintf("operators[%d]", i)
		if od.ID == "" || od.Type == "" {
			continue
		}
		op, err := buildOperator(loc, od, reg)
		if err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		if err := b.AddOperator(od.ID, od.Type, op.Ports()); err != nil {
			errs = multierr.Append(errs, &ValidationError{Location: loc + ".id", Err: err})
			continue
		}
		g.ops[od.ID] = op
		g.order = append(g.order, od.ID)
	}
	if len(g.ops) < countNamed(d) {
		// Wiring against missing operators would only repeat the errors.
		return nil, errs
	}

	for i, c := range d.Connections {
		if err := connect(b, c); err != nil {
			errs = multierr.Append(errs, locate(fmt.Sprintf("connections[%d]", i), err))
		}
	}
	if errs != nil {
		return nil, errs
	}

	dag, err := b.Build()
	if err != nil {
		return nil, &ValidationError{Location: "connections", Err: err}
	}
	g.dag = dag

	errs = multierr.Append(errs, checkEntry(dag, d.EntryOperator))

	output, err := resolveOutput(dag, d.Output)
	errs = multierr.Append(errs, err)
	if errs != nil {
		return nil, errs
	}
	g.output = output
	return g, nil
}

func countNamed(d *Description) int {
	n := 0
	for _, od := range d.Operators {
		if od.ID != "" && od.Type != "" {
			n++
		}
	}
	return n
}

// buildOperator runs the factory of od's type. Parameter errors are located
// at the parameter, for example "operators[2].window_size".
func buildOperator(loc string, od OperatorDescription, reg *koperator.Registry) (koperator.Operator, error) {
	f, err := reg.Lookup(od.Type)
	if err != nil {
		return nil, &ValidationError{Location: join(loc, "type"), Err: err}
	}
	op, err := f(od.ID, od.Params())
	if err == nil {
		return op, nil
	}
	var errs error
	for _, e := range multierr.Errors(err) {
		var pe *koperator.ParamError
		if errors.As(e, &pe) && pe.Field != "" {
			errs = multierr.Append(errs, &ValidationError{Location: join(loc, pe.Field), Err: e})
			continue
		}
		errs = multierr.Append(errs, &ValidationError{
			Location: loc,
			Err:      fmt.Errorf("%s %q: %w", od.Type, od.ID, e),
		})
	}
	return nil, errs
}

// connection failures carry the member they are about.
type fieldError struct {
	field string
	err   error
}

func (e *fieldError) Error() string { return e.err.Error() }
func (e *fieldError) Unwrap() error { return e.err }

func locate(loc string, err error) error {
	var fe *fieldError
	if errors.As(err, &fe) {
		return &ValidationError{Location: loc + "." + fe.field, Err: fe.err}
	}
	return &ValidationError{Location: loc, Err: err}
}

func connect(b *kdag.Builder, c Connection) error {
	from, ok := b.GetNode(kdag.NodeID(c.From))
	if !ok {
		return &fieldError{"from", fmt.Errorf("%w: %q", ErrUnknownOperator, c.From)}
	}
	to, ok := b.GetNode(kdag.NodeID(c.To))
	if !ok {
		return &fieldError{"to", fmt.Errorf("%w: %q", ErrUnknownOperator, c.To)}
	}
	if p, ok := from.Port(c.FromPort); !ok || p.Class != koperator.Output {
		return &fieldError{"fromPort", fmt.Errorf("%w: %s has no output %q", koperator.ErrUnknownPort, c.From, c.FromPort)}
	}
	p, ok := to.Port(c.ToPort)
	if !ok || !p.IsInput() {
		return &fieldError{"toPort", fmt.Errorf("%w: %s has no input %q", koperator.ErrUnknownPort, c.To, c.ToPort)}
	}
	if want := classOf(c.ToPortType); want != 0 && p.Class != want {
		return &fieldError{"toPortType", fmt.Errorf("%w: %s.%s is a %s input, not %s",
			ErrConnectionTypeMismatch, c.To, c.ToPort, p.Class, c.ToPortType)}
	}
	return b.Connect(c.From, c.FromPort, c.To, c.ToPort)
}

func classOf(portType string) koperator.PortClass {
	switch portType {
	case portTypeControl:
		return koperator.ControlInput
	case portTypeData:
		return koperator.DataInput
	default:
		return 0
	}
}

func checkEntry(dag *kdag.DAG, id string) error {
	if id == "" {
		// Reported by the struct tags.
		return nil
	}
	node, ok := dag.Node(kdag.NodeID(id))
	if !ok {
		return &ValidationError{Location: "entryOperator", Err: fmt.Errorf("%w: %w: %q", ErrEntryOperatorInvalid, ErrUnknownOperator, id)}
	}
	if node.HasControlInputs() {
		return &ValidationError{Location: "entryOperator", Err: fmt.Errorf("%w: %s has control inputs", ErrEntryOperatorInvalid, id)}
	}
	if !slices.ContainsFunc(node.Ports, func(p koperator.PortSpec) bool { return p.Class == koperator.DataInput }) {
		return &ValidationError{Location: "entryOperator", Err: fmt.Errorf("%w: %s has no data input", ErrEntryOperatorInvalid, id)}
	}
	return nil
}

// resolveOutput checks the output filter. A nil result means no filtering.
func resolveOutput(dag *kdag.DAG, output map[string][]string) (map[string][]string, error) {
	if output == nil {
		return nil, nil
	}
	ids := make([]string, 0, len(output))
	for id := range output {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	var errs error
	resolved := make(map[string][]string, len(output))
	for _, id := range ids {
		node, ok := dag.Node(kdag.NodeID(id))
		if !ok {
			errs = multierr.Append(errs, &ValidationError{Location: "output." + id, Err: fmt.Errorf("%w: %q", ErrUnknownOperator, id)})
			continue
		}
		for k, port := range output[id] {
			if p, ok := node.Port(port); !ok || p.Class != koperator.Output {
				errs = multierr.Append(errs, &ValidationError{
					Location: fmt.Sprintf("output.%s[%d]", id, k),
					Err:      fmt.Errorf("%w: %s has no output %q", koperator.ErrUnknownPort, id, port),
				})
			}
		}
		resolved[id] = slices.Clone(output[id])
	}
	return resolved, errs
}

// tagErrors turns struct tag findings into located validation errors.
func tagErrors(prefix string, err error) error {
	var errs error
	for _, e := range multierr.Errors(err) {
		var pe *koperator.ParamError
		if errors.As(e, &pe) {
			errs = multierr.Append(errs, &ValidationError{
				Location: join(prefix, pe.Field),
				Err:      fmt.Errorf("%w: %s", ErrMalformedDescription, pe.Reason),
			})
			continue
		}
		errs = multierr.Append(errs, &ValidationError{Location: prefix, Err: e})
	}
	return errs
}

func join(prefix, field string) string {
	switch {
	case prefix == "":
		return field
	case field == "":
		return prefix
	default:
		return prefix + "." + field
	}
}
