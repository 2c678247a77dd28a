// Package metrics exposes Prometheus collectors for the graphkernel read path.
//
// All methods are safe on a nil *Metrics, so components can treat metrics as
// optional without branching at every call site.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// DefaultNamespace prefixes every metric name.
const DefaultNamespace = "graphkernel"

// Metrics holds the read-path collectors.
type Metrics struct {
	Seeks         *prometheus.CounterVec
	Errors        *prometheus.CounterVec
	DegreeQueries *prometheus.CounterVec
	Positions     *prometheus.CounterVec
}

// New creates the collectors and registers them on reg. A nil reg leaves
// them unregistered, which is handy in tests.
func New(namespace string, reg prometheus.Registerer) *Metrics {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	m := &Metrics{
		Seeks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "read",
			Name:      "seeks_total",
			Help:      "Index seeks dispatched, by predicate kind.",
		}, []string{"predicate"}),
		Errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "read",
			Name:      "errors_total",
			Help:      "Read operation failures, by error kind.",
		}, []string{"kind"}),
		DegreeQueries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "read",
			Name:      "degree_queries_total",
			Help:      "Degree and relationship type queries, by aggregation strategy.",
		}, []string{"strategy"}),
		Positions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "read",
			Name:      "cursor_positions_total",
			Help:      "Cursor positioning attempts, by entity kind and outcome.",
		}, []string{"entity", "outcome"}),
	}
	if reg != nil {
		reg.MustRegister(m.Seeks, m.Errors, m.DegreeQueries, m.Positions)
	}
	return m
}

// ObserveSeek counts one dispatched seek.
func (m *Metrics) ObserveSeek(predicate string) {
	if m == nil {
		return
	}
	m.Seeks.WithLabelValues(predicate).Inc()
}

// ObserveError counts one failed operation.
func (m *Metrics) ObserveError(kind string) {
	if m == nil {
		return
	}
	m.Errors.WithLabelValues(kind).Inc()
}

// ObserveDegree counts one adjacency aggregation.
func (m *Metrics) ObserveDegree(strategy string) {
	if m == nil {
		return
	}
	m.DegreeQueries.WithLabelValues(strategy).Inc()
}

// ObservePosition counts one cursor positioning attempt.
func (m *Metrics) ObservePosition(entity string, found bool) {
	if m == nil {
		return
	}
	outcome := "found"
	if !found {
		outcome = "not_found"
	}
	m.Positions.WithLabelValues(entity, outcome).Inc()
}
