package kbridge

import (
	"fmt"
	"slices"

	"github.com/twmb/franz-go/pkg/kgo"

	"github.com/birdayz/kflow"
	"github.com/birdayz/kflow/kmessage"
)

// Record headers understood and written by the bridge.
const (
	HeaderPort     = "kflow-port"
	HeaderProgram  = "kflow-program"
	HeaderOperator = "kflow-operator"
)

// DecodeRecord turns a record into an input for the entry operator. The
// value is a JSON message {"time": t, "data": payload}; without "time" the
// record timestamp in milliseconds is used. The target port comes from the
// kflow-port header and defaults to "i1". kindOf reports the payload kind
// the port accepts.
func DecodeRecord(r *kgo.Record, kindOf func(port string) (kmessage.Kind, error)) (kflow.Input, error) {
	port := "i1"
	for _, h := range r.Headers {
		if h.Key == HeaderPort {
			port = string(h.Value)
		}
	}
	kind, err := kindOf(port)
	if err != nil {
		return kflow.Input{}, err
	}
	m, hasTime, err := kmessage.DecodeJSON(r.Value, kind)
	if err != nil {
		return kflow.Input{}, fmt.Errorf("record %s/%d@%d: %w", r.Topic, r.Partition, r.Offset, err)
	}
	if !hasTime {
		m.Time = r.Timestamp.UnixMilli()
	}
	return kflow.Input{Port: port, Message: m}, nil
}

// EncodeOutputs renders outputs as records for topic, one per message,
// ordered by operator id, then port, then emission. The key is
// "operator.port" so all messages of one port land in one partition.
func EncodeOutputs(topic, program string, out kflow.Outputs) ([]*kgo.Record, error) {
	var records []*kgo.Record
	for _, op := range out.Operators() {
		ports := make([]string, 0, len(out[op]))
		for port := range out[op] {
			ports = append(ports, port)
		}
		slices.Sort(ports)

		for _, port := range ports {
			for _, m := range out[op][port] {
				value, err := m.MarshalJSON()
				if err != nil {
					return nil, fmt.Errorf("encode %s.%s: %w", op, port, err)
				}
				records = append(records, &kgo.Record{
					Topic: topic,
					Key:   []byte(op + "." + port),
					Value: value,
					Headers: []kgo.RecordHeader{
						{Key: HeaderProgram, Value: []byte(program)},
						{Key: HeaderOperator, Value: []byte(op)},
						{Key: HeaderPort, Value: []byte(port)},
					},
				})
			}
		}
	}
	return records, nil
}
