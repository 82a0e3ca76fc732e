// Package telemetry exposes Prometheus metrics for query execution and
// document ingestion.
package telemetry

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Telemetry holds the service metric instruments. A nil *Telemetry is valid
// and records nothing.
type Telemetry struct {
	registry *prometheus.Registry

	queriesTotal    *prometheus.CounterVec
	stageDuration   *prometheus.HistogramVec
	documentsTotal  *prometheus.CounterVec
	fragmentsStored prometheus.Counter
}

// New registers the service instruments on a fresh registry.
func New() *Telemetry {
	reg := prometheus.NewRegistry()
	t := &Telemetry{
		registry: reg,
		queriesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "grounded",
			Name:      "queries_total",
			Help:      "Query executions by final interaction status.",
		}, []string{"status"}),
		stageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "grounded",
			Name:      "query_stage_duration_seconds",
			Help:      "Latency per query pipeline stage.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"stage"}),
		documentsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "grounded",
			Name:      "documents_ingested_total",
			Help:      "Documents ingested by outcome.",
		}, []string{"outcome"}),
		fragmentsStored: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "grounded",
			Name:      "fragments_stored_total",
			Help:      "Fragments written to the vector index.",
		}),
	}
	reg.MustRegister(t.queriesTotal, t.stageDuration, t.documentsTotal, t.fragmentsStored)
	return t
}

// Handler serves the registry in Prometheus exposition format.
func (t *Telemetry) Handler() http.Handler {
	if t == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(t.registry, promhttp.HandlerOpts{})
}

// RecordQuery counts one completed query execution.
func (t *Telemetry) RecordQuery(status string) {
	if t == nil {
		return
	}
	t.queriesTotal.WithLabelValues(status).Inc()
}

// ObserveStage records the duration of one pipeline stage.
func (t *Telemetry) ObserveStage(stage string, d time.Duration) {
	if t == nil {
		return
	}
	t.stageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

// RecordIngest counts one document ingestion attempt.
func (t *Telemetry) RecordIngest(outcome string, fragments int) {
	if t == nil {
		return
	}
	t.documentsTotal.WithLabelValues(outcome).Inc()
	if fragments > 0 {
		t.fragmentsStored.Add(float64(fragments))
	}
}
