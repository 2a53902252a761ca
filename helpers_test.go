package kflow

import (
	"errors"
	"testing"

	"github.com/alecthomas/assert/v2"
	"go.uber.org/multierr"

	"github.com/birdayz/kflow/kmessage"
	"github.com/birdayz/kflow/operators"
)

var registry = operators.NewRegistry()

const averageProgram = `{
	"title": "average",
	"operators": [
		{"id": "in", "type": "Input"},
		{"id": "avg", "type": "MovingAverage", "window_size": 2},
		{"id": "sum", "type": "CumulativeSum"}
	],
	"connections": [
		{"from": "in", "to": "avg"},
		{"from": "avg", "to": "sum"}
	],
	"entryOperator": "in",
	"output": {"avg": ["o1"]}
}`

func newProgram(t *testing.T, description string, opts ...Option) *Program {
	t.Helper()
	p, err := New([]byte(description), registry, opts...)
	assert.NoError(t, err)
	return p
}

// locations lists where each combined validation error points.
func locations(err error) []string {
	var locs []string
	for _, e := range multierr.Errors(err) {
		var ve *ValidationError
		if errors.As(e, &ve) {
			locs = append(locs, ve.Location)
		}
	}
	return locs
}

func number(t int64, v float64) kmessage.Message {
	return kmessage.NewNumber(t, v)
}

func numbers(pairs ...float64) []kmessage.Message {
	out := make([]kmessage.Message, 0, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		out = append(out, kmessage.NewNumber(int64(pairs[i]), pairs[i+1]))
	}
	return out
}
