package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "instanti8"

// Metrics holds the engine's Prometheus collectors. A nil *Metrics, or one
// built with enabled=false, records nothing.
type Metrics struct {
	generationAttempts *prometheus.CounterVec
	generationDuration *prometheus.HistogramVec

	validations        *prometheus.CounterVec
	validationDuration prometheus.Histogram

	deployments        *prometheus.CounterVec
	deploymentDuration *prometheus.HistogramVec
	progressEvents     *prometheus.CounterVec
	activeDeployments  prometheus.Gauge

	registry *prometheus.Registry
}

// New builds the collectors on a private registry.
func New(enabled bool) *Metrics {
	if !enabled {
		return &Metrics{}
	}
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,

		generationAttempts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "generation_attempts_total",
				Help:      "Code generation attempts by backend and outcome",
			},
			[]string{"backend", "outcome"},
		),
		generationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "generation_duration_seconds",
				Help:      "Duration of code generation calls",
				Buckets:   []float64{0.5, 1, 2.5, 5, 10, 20, 40, 80},
			},
			[]string{"backend"},
		),

		validations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "validations_total",
				Help:      "Sandbox dry runs by result",
			},
			[]string{"result"},
		),
		validationDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "validation_duration_seconds",
				Help:      "Duration of sandbox dry runs including dependency install",
				Buckets:   []float64{5, 15, 30, 60, 120, 300},
			},
		),

		deployments: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "deployments_total",
				Help:      "Finished deployments by provider and status",
			},
			[]string{"provider", "status"},
		),
		deploymentDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "deployment_duration_seconds",
				Help:      "Duration of engine up operations",
				Buckets:   []float64{10, 30, 60, 120, 300, 600, 1200, 1800},
			},
			[]string{"provider"},
		),
		progressEvents: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "deployment_progress_events_total",
				Help:      "Progress lines received from the engine by persistence outcome",
			},
			[]string{"outcome"},
		),
		activeDeployments: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "deployments_active",
				Help:      "Deployments currently holding a lease in this process",
			},
		),
	}

	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.generationAttempts,
		m.generationDuration,
		m.validations,
		m.validationDuration,
		m.deployments,
		m.deploymentDuration,
		m.progressEvents,
		m.activeDeployments,
	)
	return m
}

// RecordGeneration counts one backend attempt.
func (m *Metrics) RecordGeneration(backend, outcome string, d time.Duration) {
	if m == nil || m.generationAttempts == nil {
		return
	}
	m.generationAttempts.WithLabelValues(backend, outcome).Inc()
	m.generationDuration.WithLabelValues(backend).Observe(d.Seconds())
}

func (m *Metrics) RecordValidation(valid bool, d time.Duration) {
	if m == nil || m.validations == nil {
		return
	}
	result := "invalid"
	if valid {
		result = "valid"
	}
	m.validations.WithLabelValues(result).Inc()
	m.validationDuration.Observe(d.Seconds())
}

func (m *Metrics) DeploymentStarted() {
	if m == nil || m.activeDeployments == nil {
		return
	}
	m.activeDeployments.Inc()
}

func (m *Metrics) DeploymentFinished(provider, status string, d time.Duration) {
	if m == nil || m.deployments == nil {
		return
	}
	m.activeDeployments.Dec()
	m.deployments.WithLabelValues(provider, status).Inc()
	m.deploymentDuration.WithLabelValues(provider).Observe(d.Seconds())
}

// RecordProgress counts a progress line; outcome is saved, stale or error.
func (m *Metrics) RecordProgress(outcome string) {
	if m == nil || m.progressEvents == nil {
		return
	}
	m.progressEvents.WithLabelValues(outcome).Inc()
}

// Handler serves the registry. Disabled metrics answer 404.
func (m *Metrics) Handler() http.Handler {
	if m == nil || m.registry == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{EnableOpenMetrics: true})
}
