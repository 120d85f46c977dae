package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type EvaluatorMetrics struct {
	registry *prometheus.Registry

	runTotal      *prometheus.CounterVec
	runDuration   *prometheus.HistogramVec
	runAccuracy   *prometheus.HistogramVec
	caseTotal     *prometheus.CounterVec
	caseInFlight  prometheus.Gauge
	caseLatencyMs *prometheus.HistogramVec
}

func NewEvaluatorMetrics(service string) *EvaluatorMetrics {
	registry := prometheus.NewRegistry()

	runTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "plano",
			Subsystem: "evaluator",
			Name:      "runs_total",
			Help:      "Total finished evaluation runs by model and status.",
		},
		[]string{"service", "model", "status"},
	)
	runDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "plano",
			Subsystem: "evaluator",
			Name:      "run_duration_seconds",
			Help:      "Wall clock duration of one model run.",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600, 1200},
		},
		[]string{"service", "model"},
	)
	runAccuracy := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "plano",
			Subsystem: "evaluator",
			Name:      "run_accuracy",
			Help:      "Distribution of overall accuracy per finished run.",
			Buckets:   []float64{0, 0.2, 0.4, 0.6, 0.7, 0.8, 0.9, 1},
		},
		[]string{"service", "model"},
	)
	caseTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "plano",
			Subsystem: "evaluator",
			Name:      "cases_total",
			Help:      "Total executed test cases by outcome.",
		},
		[]string{"service", "model", "outcome"},
	)
	caseInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "plano",
			Subsystem: "evaluator",
			Name:      "cases_in_flight",
			Help:      "Number of test cases currently executing.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	caseLatencyMs := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "plano",
			Subsystem: "evaluator",
			Name:      "case_latency_ms",
			Help:      "Answer latency per test case in milliseconds.",
			Buckets:   []float64{50, 100, 250, 500, 1000, 2500, 5000, 10000, 30000, 60000},
		},
		[]string{"service", "model"},
	)

	registry.MustRegister(runTotal, runDuration, runAccuracy, caseTotal, caseInFlight, caseLatencyMs)

	return &EvaluatorMetrics{
		registry:      registry,
		runTotal:      runTotal,
		runDuration:   runDuration,
		runAccuracy:   runAccuracy,
		caseTotal:     caseTotal,
		caseInFlight:  caseInFlight,
		caseLatencyMs: caseLatencyMs,
	}
}

func (m *EvaluatorMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *EvaluatorMetrics) StartCase() {
	m.caseInFlight.Inc()
}

func (m *EvaluatorMetrics) FinishCase(service, model string, latencyMs int64, passed bool, errorKind string) {
	m.caseInFlight.Dec()

	outcome := "failed"
	switch {
	case errorKind != "":
		outcome = "errored"
	case passed:
		outcome = "passed"
	}

	m.caseTotal.WithLabelValues(service, model, outcome).Inc()
	m.caseLatencyMs.WithLabelValues(service, model).Observe(float64(latencyMs))
}

func (m *EvaluatorMetrics) FinishRun(service, model, status string, accuracy float64, duration time.Duration) {
	if status == "" {
		status = "unknown"
	}
	m.runTotal.WithLabelValues(service, model, status).Inc()
	m.runDuration.WithLabelValues(service, model).Observe(duration.Seconds())
	if status == "completed" {
		m.runAccuracy.WithLabelValues(service, model).Observe(accuracy)
	}
}
