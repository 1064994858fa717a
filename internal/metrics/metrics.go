// Package metrics exposes Prometheus metrics for assembly, simulation and
// market data refreshes.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "exposure"

// Registry holds all Prometheus metrics. A nil *Registry is valid and
// records nothing.
type Registry struct {
	registry *prometheus.Registry

	rowsSkipped         prometheus.Counter
	groupsFailed        prometheus.Counter
	assemblyDuration    prometheus.Histogram
	simulationDuration  *prometheus.HistogramVec
	simulationScenarios prometheus.Counter
	priceResolutions    *prometheus.CounterVec
	jobRuns             *prometheus.CounterVec
}

// NewRegistry creates a registry with process and Go runtime collectors.
func NewRegistry() *Registry {
	r := &Registry{
		registry: prometheus.NewRegistry(),

		rowsSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_skipped_total",
			Help:      "Broker rows skipped during assembly",
		}),
		groupsFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "groups_failed_total",
			Help:      "Portfolio groups dropped because their metrics could not be computed",
		}),
		assemblyDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "assembly_duration_seconds",
			Help:      "Time to turn broker rows into a portfolio summary",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0},
		}),
		simulationDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "simulation_duration_seconds",
			Help:      "Time to run a price-shock sweep",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0},
		}, []string{"size"}),
		simulationScenarios: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "simulation_scenarios_total",
			Help:      "Price-shock scenarios evaluated",
		}),
		priceResolutions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "price_resolutions_total",
			Help:      "Underlying price lookups by outcome",
		}, []string{"state"}),
		jobRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "job_runs_total",
			Help:      "Scheduled job runs by job and result",
		}, []string{"job", "result"}),
	}

	r.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		r.rowsSkipped,
		r.groupsFailed,
		r.assemblyDuration,
		r.simulationDuration,
		r.simulationScenarios,
		r.priceResolutions,
		r.jobRuns,
	)
	return r
}

// Handler serves the registry in the Prometheus text format.
func (r *Registry) Handler() http.Handler {
	if r == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// Gatherer exposes the underlying registry for tests and exporters.
func (r *Registry) Gatherer() prometheus.Gatherer {
	return r.registry
}

// RowsSkipped implements portfolio.MetricsRecorder.
func (r *Registry) RowsSkipped(n int) {
	if r == nil || n <= 0 {
		return
	}
	r.rowsSkipped.Add(float64(n))
}

// GroupsFailed implements portfolio.MetricsRecorder.
func (r *Registry) GroupsFailed(n int) {
	if r == nil || n <= 0 {
		return
	}
	r.groupsFailed.Add(float64(n))
}

// AssemblyDuration implements portfolio.MetricsRecorder.
func (r *Registry) AssemblyDuration(d time.Duration) {
	if r == nil {
		return
	}
	r.assemblyDuration.Observe(d.Seconds())
}

// SimulationDuration implements simulator.MetricsRecorder.
func (r *Registry) SimulationDuration(scenarios int, d time.Duration) {
	if r == nil {
		return
	}
	r.simulationDuration.WithLabelValues(sizeLabel(scenarios)).Observe(d.Seconds())
	r.simulationScenarios.Add(float64(scenarios))
}

// PriceResolved counts one price lookup outcome.
func (r *Registry) PriceResolved(state string) {
	if r == nil {
		return
	}
	r.priceResolutions.WithLabelValues(state).Inc()
}

// JobRun counts one scheduled job run.
func (r *Registry) JobRun(job string, err error) {
	if r == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	r.jobRuns.WithLabelValues(job, result).Inc()
}

func sizeLabel(n int) string {
	switch {
	case n <= 16:
		return "small"
	case n <= 128:
		return "medium"
	default:
		return "large"
	}
}
