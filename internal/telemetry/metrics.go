package telemetry

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/multierr"
)

const namespace = "kflow"

// Metrics holds the Prometheus collectors of the engine. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	received     *prometheus.CounterVec
	emitted      *prometheus.CounterVec
	errors       *prometheus.CounterVec
	tickDuration *prometheus.HistogramVec
	restores     *prometheus.CounterVec
	programs     prometheus.Gauge
}

// NewMetrics creates the collectors and registers them with reg. Collectors
// that are already registered are reused, so several programs may share one
// registry.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		received: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "messages_received_total",
				Help:      "Messages fed into a program",
			},
			[]string{"program"},
		),
		emitted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "messages_emitted_total",
				Help:      "Messages returned from a program after output filtering",
			},
			[]string{"program"},
		),
		errors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "tick_errors_total",
				Help:      "Ticks aborted with an error",
			},
			[]string{"program"},
		),
		tickDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "tick_duration_seconds",
				Help:      "Time to process one external message including its cascade",
				Buckets:   []float64{0.00001, 0.00005, 0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1},
			},
			[]string{"program"},
		),
		restores: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "restores_total",
				Help:      "Programs restored from a snapshot",
			},
			[]string{"status"},
		),
		programs: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "programs",
				Help:      "Programs hosted by a manager",
			},
		),
	}

	var errs error
	m.received = register(reg, m.received, &errs)
	m.emitted = register(reg, m.emitted, &errs)
	m.errors = register(reg, m.errors, &errs)
	m.tickDuration = register(reg, m.tickDuration, &errs)
	m.restores = register(reg, m.restores, &errs)
	m.programs = register(reg, m.programs, &errs)
	if errs != nil {
		return nil, errs
	}
	return m, nil
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C, errs *error) C {
	err := reg.Register(c)
	if err == nil {
		return c
	}
	var are prometheus.AlreadyRegisteredError
	if errors.As(err, &are) {
		if existing, ok := are.ExistingCollector.(C); ok {
			return existing
		}
	}
	*errs = multierr.Append(*errs, err)
	return c
}

// ObserveTick records one external message, the number of messages it
// produced and how long the cascade took.
func (m *Metrics) ObserveTick(program string, emitted int, d time.Duration, err error) {
	if m == nil {
		return
	}
	m.received.WithLabelValues(program).Inc()
	m.tickDuration.WithLabelValues(program).Observe(d.Seconds())
	if err != nil {
		m.errors.WithLabelValues(program).Inc()
		return
	}
	m.emitted.WithLabelValues(program).Add(float64(emitted))
}

func (m *Metrics) ObserveRestore(err error) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.restores.WithLabelValues(status).Inc()
}

func (m *Metrics) SetPrograms(n int) {
	if m == nil {
		return
	}
	m.programs.Set(float64(n))
}

// Forget drops the series of a deleted program.
func (m *Metrics) Forget(program string) {
	if m == nil {
		return
	}
	m.received.DeleteLabelValues(program)
	m.emitted.DeleteLabelValues(program)
	m.errors.DeleteLabelValues(program)
	m.tickDuration.DeleteLabelValues(program)
}
