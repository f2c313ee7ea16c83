// Package metrics exposes the supervisor/router/workerrt counters the
// spec's Health component reports: total, active, succeeded, failed,
// timed-out, and cancelled invocations, plus process uptime (spec.md
// §2, §6.3 Health).
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Registry is the process-wide metrics set. The supervisor daemon
// creates one and serves it at /metrics. Neither the router nor
// workerrt calls Begin or ObserveOutcome, so the request counters stay
// at zero unless a caller records into them.
type Registry struct {
	startedAt time.Time

	Total     prometheus.Counter
	Active    prometheus.Gauge
	Succeeded prometheus.Counter
	Failed    prometheus.Counter
	TimedOut  prometheus.Counter
	Cancelled prometheus.Counter

	reg *prometheus.Registry
}

const namespace = "splice"

// NewRegistry builds a fresh, unregistered-with-the-default-registry
// metric set bound under subsystem (e.g. "supervisor", "worker"), so
// multiple Registries in one process don't collide on metric names.
func NewRegistry(subsystem string) *Registry {
	reg := prometheus.NewRegistry()
	m := &Registry{
		startedAt: time.Now(),
		reg:       reg,
		Total: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: subsystem, Name: "requests_total",
			Help: "Total invocations submitted.",
		}),
		Active: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: subsystem, Name: "requests_active",
			Help: "Invocations currently in flight.",
		}),
		Succeeded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: subsystem, Name: "requests_succeeded_total",
			Help: "Invocations that completed with a result.",
		}),
		Failed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: subsystem, Name: "requests_failed_total",
			Help: "Invocations that completed with an error.",
		}),
		TimedOut: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: subsystem, Name: "requests_timed_out_total",
			Help: "Invocations that exceeded their deadline.",
		}),
		Cancelled: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: subsystem, Name: "requests_cancelled_total",
			Help: "Invocations cancelled by their caller.",
		}),
	}
	reg.MustRegister(m.Total, m.Active, m.Succeeded, m.Failed, m.TimedOut, m.Cancelled)
	reg.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace, Subsystem: subsystem, Name: "uptime_seconds",
		Help: "Seconds since this process's metrics registry was created.",
	}, func() float64 { return time.Since(m.startedAt).Seconds() }))
	return m
}

// Gatherer exposes the underlying *prometheus.Registry for wiring into
// an HTTP handler (promhttp.HandlerFor).
func (m *Registry) Gatherer() prometheus.Gatherer { return m.reg }

// ObserveOutcome records one terminal invocation outcome against the
// succeeded/failed/timed-out/cancelled counters, given the error kind
// the router or workerrt produced (spec.md §7's error taxonomy).
func (m *Registry) ObserveOutcome(kind OutcomeKind) {
	switch kind {
	case OutcomeSucceeded:
		m.Succeeded.Inc()
	case OutcomeFailed:
		m.Failed.Inc()
	case OutcomeTimedOut:
		m.TimedOut.Inc()
	case OutcomeCancelled:
		m.Cancelled.Inc()
	}
}

// OutcomeKind classifies a terminal invocation outcome for metrics
// purposes, independent of the wire-level ErrorKind taxonomy (several
// ErrorKinds — e.g. a System-kind infra failure vs. a User-kind
// rejection — both count as "failed" here).
type OutcomeKind int

const (
	OutcomeSucceeded OutcomeKind = iota
	OutcomeFailed
	OutcomeTimedOut
	OutcomeCancelled
)

// Begin marks the start of one invocation: increments Total and Active.
// The returned func must be deferred to decrement Active and record the
// terminal outcome.
func (m *Registry) Begin() func(OutcomeKind) {
	m.Total.Inc()
	m.Active.Inc()
	return func(k OutcomeKind) {
		m.Active.Dec()
		m.ObserveOutcome(k)
	}
}
