// Package kflow runs streaming dataflow programs: graphs of stateful
// operators that transform timestamped messages one at a time.
//
// A program is built from a JSON or YAML description:
//
//	{
//	  "operators": [
//	    {"id": "in", "type": "Input"},
//	    {"id": "avg", "type": "MovingAverage", "window_size": 5}
//	  ],
//	  "connections": [{"from": "in", "to": "avg"}],
//	  "entryOperator": "in",
//	  "output": {"avg": ["o1"]}
//	}
//
// Operator types come from an explicit koperator.Registry, usually
// operators.NewRegistry(). Every call to Receive processes one message and
// its whole cascade before returning; a Program is single-threaded. The
// complete state of a program, description included, is captured by Collect
// and rebuilt by Restore.
//
// Manager hosts many programs by id, buffers inputs per program and saves
// snapshots to a kstore.Store.
package kflow
