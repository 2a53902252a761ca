package kflow

import (
	"github.com/go-logr/logr"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/trace"

	"github.com/birdayz/kflow/internal/telemetry"
)

// DefaultMaxSteps bounds the deliveries of a single tick.
const DefaultMaxSteps = 1_000_000

type config struct {
	log      logr.Logger
	metrics  *telemetry.Metrics
	tracer   trace.Tracer
	maxSteps int
	name     string
}

func newConfig(opts []Option) config {
	c := config{
		log:      logr.Discard(),
		maxSteps: DefaultMaxSteps,
	}
	for _, opt := range opts {
		opt(&c)
	}
	if c.tracer == nil {
		c.tracer = telemetry.Tracer(nil)
	}
	return c
}

// Option configures a Program or a Manager.
type Option func(*config)

var WithLogr = func(log logr.Logger) Option {
	return func(c *config) {
		c.log = log
	}
}

// WithMetrics records tick counters and latencies.
var WithMetrics = func(m *Metrics) Option {
	return func(c *config) {
		c.metrics = m
	}
}

// WithTracer sets the provider for tick and restore spans. The global
// provider is used by default.
var WithTracer = func(tp trace.TracerProvider) Option {
	return func(c *config) {
		c.tracer = telemetry.Tracer(tp)
	}
}

// WithMaxSteps sets how many deliveries one external message may cause
// before the tick fails with ErrTickLimit.
var WithMaxSteps = func(n int) Option {
	return func(c *config) {
		if n > 0 {
			c.maxSteps = n
		}
	}
}

// WithName labels logs, metrics and spans of a program. A Manager names its
// programs after their ids.
var WithName = func(name string) Option {
	return func(c *config) {
		c.name = name
	}
}

// Metrics are the Prometheus collectors shared by programs and managers.
type Metrics = telemetry.Metrics

// NewMetrics registers the engine's collectors with reg. Calling it again
// with the same registry returns collectors bound to the same series.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	return telemetry.NewMetrics(reg)
}
