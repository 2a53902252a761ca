package kflow

import (
	"bytes"
	"fmt"

	"github.com/go-json-experiment/json"
	"github.com/go-json-experiment/json/jsontext"
	"gopkg.in/yaml.v3"

	"github.com/birdayz/kflow/koperator"
)

const (
	defaultFromPort = "o1"
	defaultToPort   = "i1"

	portTypeData    = "data"
	portTypeControl = "control"
)

// Description is a parsed program description.
type Description struct {
	Title       string `json:"title,omitzero"`
	Description string `json:"description,omitzero"`
	Author      string `json:"author,omitzero"`
	Version     string `json:"version,omitzero"`

	Operators     []OperatorDescription `json:"operators" validate:"required,min=1,dive"`
	Connections   []Connection          `json:"connections,omitzero" validate:"dive"`
	EntryOperator string                `json:"entryOperator" validate:"required"`

	// Output restricts what Receive returns to the listed output ports of
	// the listed operators. Without it everything that fired is returned.
	Output map[string][]string `json:"output,omitzero"`

	source []byte
}

// OperatorDescription is one entry of the operators list: the id and type
// members plus whatever parameters the type accepts.
type OperatorDescription struct {
	ID   string `json:"id" validate:"required"`
	Type string `json:"type" validate:"required"`

	raw jsontext.Value
}

func (o *OperatorDescription) UnmarshalJSON(b []byte) error {
	if jsontext.Value(b).Kind() != '{' {
		return fmt.Errorf("operator must be an object, got %s", jsontext.Value(b).Kind())
	}
	var head struct {
		ID   string `json:"id"`
		Type string `json:"type"`
	}
	if err := json.Unmarshal(b, &head); err != nil {
		return err
	}
	o.ID, o.Type = head.ID, head.Type
	o.raw = jsontext.Value(bytes.Clone(b))
	return nil
}

func (o OperatorDescription) MarshalJSON() ([]byte, error) {
	if len(o.raw) == 0 {
		return json.Marshal(struct {
			ID   string `json:"id"`
			Type string `json:"type"`
		}{o.ID, o.Type})
	}
	return o.raw, nil
}

// Params returns the operator object for the type's factory.
func (o OperatorDescription) Params() koperator.Params {
	return koperator.NewParams(o.raw)
}

// Connection wires an output port to an input port. Empty ports default to
// "o1" and "i1".
type Connection struct {
	From     string `json:"from" validate:"required"`
	FromPort string `json:"fromPort,omitzero"`
	To       string `json:"to" validate:"required"`
	ToPort   string `json:"toPort,omitzero"`

	// ToPortType "control" asserts that ToPort is a control input.
	ToPortType string `json:"toPortType,omitzero" validate:"omitempty,oneof=data control"`
}

// Parse reads a JSON or YAML description. Anything not starting with "{" is
// treated as YAML and converted to JSON first.
func Parse(data []byte) (*Description, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("%w: empty description", ErrMalformedDescription)
	}

	js := trimmed
	if trimmed[0] != '{' {
		var err error
		if js, err = yamlToJSON(trimmed); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedDescription, err)
		}
	}

	var d Description
	if err := json.Unmarshal(js, &d, json.RejectUnknownMembers(true)); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedDescription, err)
	}
	for i := range d.Connections {
		c := &d.Connections[i]
		if c.FromPort == "" {
			c.FromPort = defaultFromPort
		}
		if c.ToPort == "" {
			c.ToPort = defaultToPort
		}
	}
	d.source = bytes.Clone(data)
	return &d, nil
}

func yamlToJSON(data []byte) ([]byte, error) {
	var v any
	if err := yaml.Unmarshal(data, &v); err != nil {
		return nil, err
	}
	if _, ok := v.(map[string]any); !ok {
		return nil, fmt.Errorf("description must be a mapping, got %T", v)
	}
	return json.Marshal(v, json.Deterministic(true))
}

// Source returns the bytes the description was parsed from.
func (d *Description) Source() []byte {
	return d.source
}

// Operator returns the declaration index of the operator with the given id.
func (d *Description) Operator(id string) (int, bool) {
	for i, op := range d.Operators {
		if op.ID == id {
			return i, true
		}
	}
	return -1, false
}
