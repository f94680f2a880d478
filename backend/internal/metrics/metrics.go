// Package metrics provides Prometheus metrics for the API server.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "codesherpa"

// Metrics holds all Prometheus metrics for the service.
type Metrics struct {
	reg *prometheus.Registry

	// Request metrics
	RequestsTotal      *prometheus.CounterVec
	ValidationFailures *prometheus.CounterVec

	// Execution metrics
	ExecutionsTotal   *prometheus.CounterVec
	ExecutionDuration *prometheus.HistogramVec
	OutputTruncated   *prometheus.CounterVec

	// Workspace metrics
	UploadsTotal     prometheus.Counter
	UploadBytesTotal prometheus.Counter

	// Event publishing metrics
	EventsPublished *prometheus.CounterVec
}

// New creates all metrics on a fresh registry that also carries the Go
// runtime and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	f := promauto.With(reg)
	return &Metrics{
		reg: reg,
		RequestsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests by route and status code",
		}, []string{"route", "code"}),
		ValidationFailures: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "validation_failures_total",
			Help:      "Total number of request payloads rejected by validation",
		}, []string{"kind"}),
		ExecutionsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "executions_total",
			Help:      "Total number of executions by kind and outcome",
		}, []string{"kind", "outcome"}),
		ExecutionDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "execution_duration_seconds",
			Help:      "Wall time of executions in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60},
		}, []string{"kind"}),
		OutputTruncated: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "output_truncated_total",
			Help:      "Total number of executions whose output was truncated",
		}, []string{"kind"}),
		UploadsTotal: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "uploads_total",
			Help:      "Total number of files uploaded",
		}),
		UploadBytesTotal: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upload_bytes_total",
			Help:      "Total bytes uploaded",
		}),
		EventsPublished: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_published_total",
			Help:      "Total number of execution events handed to the publisher",
		}, []string{"result"}),
	}
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{Registry: m.reg})
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.reg
}

// RecordRequest records one served HTTP request.
func (m *Metrics) RecordRequest(route, code string) {
	m.RequestsTotal.WithLabelValues(route, code).Inc()
}

// RecordValidationFailure records a payload rejected by validation.
func (m *Metrics) RecordValidationFailure(kind string) {
	m.ValidationFailures.WithLabelValues(kind).Inc()
}

// RecordExecution records a finished execution. outcome is "ok", "exit",
// "timeout" or "error".
func (m *Metrics) RecordExecution(kind, outcome string, d time.Duration, truncated bool) {
	m.ExecutionsTotal.WithLabelValues(kind, outcome).Inc()
	m.ExecutionDuration.WithLabelValues(kind).Observe(d.Seconds())
	if truncated {
		m.OutputTruncated.WithLabelValues(kind).Inc()
	}
}

// RecordUpload records a stored upload.
func (m *Metrics) RecordUpload(size int64) {
	m.UploadsTotal.Inc()
	m.UploadBytesTotal.Add(float64(size))
}

// RecordEventPublish records a publish attempt.
func (m *Metrics) RecordEventPublish(err error) {
	if err != nil {
		m.EventsPublished.WithLabelValues("error").Inc()
		return
	}
	m.EventsPublished.WithLabelValues("ok").Inc()
}
