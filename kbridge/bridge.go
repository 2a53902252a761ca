// Package kbridge feeds a hosted kflow program from a Kafka topic and
// produces its outputs to another topic.
package kbridge

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-logr/logr"
	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"
	"go.uber.org/multierr"

	"github.com/birdayz/kflow"
	"github.com/birdayz/kflow/koperator"
	"github.com/birdayz/kflow/kmessage"
)

var ErrClientClosed = errors.New("kafka client closed")

// Client is the part of *kgo.Client the bridge uses.
type Client interface {
	PollRecords(ctx context.Context, maxPollRecords int) kgo.Fetches
	ProduceSync(ctx context.Context, rs ...*kgo.Record) kgo.ProduceResults
	CommitUncommittedOffsets(ctx context.Context) error
}

// Bridge moves records through one program of a Manager. Records that cannot
// be decoded are logged and skipped; every other failure stops the bridge.
type Bridge struct {
	client      Client
	manager     *kflow.Manager
	program     string
	outputTopic string

	log            logr.Logger
	maxPollRecords int
}

type Option func(*Bridge)

var WithLogr = func(log logr.Logger) Option {
	return func(b *Bridge) {
		b.log = log
	}
}

var WithMaxPollRecords = func(n int) Option {
	return func(b *Bridge) {
		b.maxPollRecords = n
	}
}

func New(client Client, manager *kflow.Manager, program, outputTopic string, opts ...Option) *Bridge {
	b := &Bridge{
		client:         client,
		manager:        manager,
		program:        program,
		outputTopic:    outputTopic,
		log:            logr.Discard(),
		maxPollRecords: 1000,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Run calls Step until ctx is done or a step fails.
func (b *Bridge) Run(ctx context.Context) error {
	for {
		if _, err := b.Step(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
	}
}

// Step polls once, feeds the records to the program as one batch, produces
// the outputs and commits the consumed offsets. It returns the number of
// records fed.
func (b *Bridge) Step(ctx context.Context) (int, error) {
	f := b.client.PollRecords(ctx, b.maxPollRecords)
	if f.IsClientClosed() {
		return 0, ErrClientClosed
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	var errs error
	for _, fe := range f.Errors() {
		if errors.Is(fe.Err, context.DeadlineExceeded) || errors.Is(fe.Err, context.Canceled) {
			continue
		}
		b.log.Error(fe.Err, "Fetch error", "topic", fe.Topic, "partition", fe.Partition)
		errs = multierr.Append(errs, fmt.Errorf("fetch error on topic %s, partition %d: %w", fe.Topic, fe.Partition, fe.Err))
	}
	if errs != nil {
		return 0, errs
	}

	kindOf, err := b.portKinds()
	if err != nil {
		return 0, err
	}

	fed := 0
	var inputs []kflow.Input
	f.EachRecord(func(r *kgo.Record) {
		in, err := DecodeRecord(r, kindOf)
		if err != nil {
			b.log.Error(err, "Skipping record", "topic", r.Topic, "partition", r.Partition, "offset", r.Offset)
			return
		}
		inputs = append(inputs, in)
	})
	if len(inputs) > 0 {
		if err := b.manager.Enqueue(b.program, inputs...); err != nil {
			return 0, err
		}
		fed = len(inputs)

		out, err := b.manager.Flush(b.program)
		if err != nil {
			return 0, err
		}
		records, err := EncodeOutputs(b.outputTopic, b.program, out)
		if err != nil {
			return 0, err
		}
		if len(records) > 0 {
			if err := b.client.ProduceSync(ctx, records...).FirstErr(); err != nil {
				return 0, fmt.Errorf("produce outputs: %w", err)
			}
		}
		b.log.V(1).Info("Processed", "records", fed, "outputs", len(records))
	}

	if err := b.client.CommitUncommittedOffsets(ctx); err != nil {
		return fed, fmt.Errorf("commit offsets: %w", err)
	}
	return fed, nil
}

// portKinds resolves payload kinds of the entry operator's data ports.
func (b *Bridge) portKinds() (func(string) (kmessage.Kind, error), error) {
	p, err := b.manager.Get(b.program)
	if err != nil {
		return nil, err
	}
	entry := p.Description().EntryOperator
	op, _ := p.Operator(entry)
	kinds := make(map[string]kmessage.Kind)
	for _, spec := range op.Ports() {
		if spec.Class == koperator.DataInput {
			kinds[spec.Name] = spec.Type
		}
	}
	return func(port string) (kmessage.Kind, error) {
		k, ok := kinds[port]
		if !ok {
			return 0, fmt.Errorf("%w: entry operator %s has no data input %q", koperator.ErrUnknownPort, entry, port)
		}
		return k, nil
	}, nil
}

// EnsureTopics creates the topics that do not exist yet.
func EnsureTopics(ctx context.Context, adm *kadm.Client, partitions int32, replicationFactor int16, topics ...string) error {
	resp, err := adm.CreateTopics(ctx, partitions, replicationFactor, nil, topics...)
	if err != nil {
		return fmt.Errorf("create topics: %w", err)
	}
	var errs error
	for _, r := range resp.Sorted() {
		if r.Err != nil && !errors.Is(r.Err, kerr.TopicAlreadyExists) {
			errs = multierr.Append(errs, fmt.Errorf("create topic %s: %w", r.Topic, r.Err))
		}
	}
	return errs
}

var _ Client = (*kgo.Client)(nil)
