package metrics

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type HTTPServerMetrics struct {
	registry *prometheus.Registry

	requestTotal    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	requestInFlight prometheus.Gauge

	answersTotal      *prometheus.CounterVec
	answerConfidence  *prometheus.HistogramVec
	answerDuration    *prometheus.HistogramVec
	cacheHitsTotal    *prometheus.CounterVec
	noEvidenceTotal   *prometheus.CounterVec
	retrievedSources  *prometheus.HistogramVec
	cacheCleanupTotal *prometheus.CounterVec
}

func NewHTTPServerMetrics(service string) *HTTPServerMetrics {
	registry := prometheus.NewRegistry()

	requestTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "plano",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests processed.",
		},
		[]string{"service", "method", "path", "status"},
	)
	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "plano",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "method", "path"},
	)
	requestInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "plano",
			Subsystem: "http",
			Name:      "in_flight_requests",
			Help:      "Number of in-flight HTTP requests.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	answersTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "plano",
			Subsystem: "answers",
			Name:      "total",
			Help:      "Total answered questions by retrieval strategy.",
		},
		[]string{"service", "strategy"},
	)
	answerConfidence := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "plano",
			Subsystem: "answers",
			Name:      "confidence",
			Help:      "Distribution of answer confidence scores.",
			Buckets:   []float64{0, 0.25, 0.45, 0.55, 0.65, 0.75, 0.85, 0.95, 1},
		},
		[]string{"service"},
	)
	answerDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "plano",
			Subsystem: "answers",
			Name:      "duration_seconds",
			Help:      "End to end answer duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "strategy"},
	)
	cacheHitsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "plano",
			Subsystem: "answers",
			Name:      "cache_hits_total",
			Help:      "Total answers served from the response cache.",
		},
		[]string{"service"},
	)
	noEvidenceTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "plano",
			Subsystem: "answers",
			Name:      "no_evidence_total",
			Help:      "Total questions where every retrieval strategy came back empty.",
		},
		[]string{"service"},
	)
	retrievedSources := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "plano",
			Subsystem: "answers",
			Name:      "retrieved_sources",
			Help:      "Distribution of retrieved sources per answered question.",
			Buckets:   []float64{0, 1, 2, 3, 5, 8, 13, 21},
		},
		[]string{"service"},
	)
	cacheCleanupTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "plano",
			Subsystem: "cache",
			Name:      "cleanup_removed_total",
			Help:      "Total cache entries removed by cleanup requests.",
		},
		[]string{"service"},
	)

	registry.MustRegister(
		requestTotal,
		requestDuration,
		requestInFlight,
		answersTotal,
		answerConfidence,
		answerDuration,
		cacheHitsTotal,
		noEvidenceTotal,
		retrievedSources,
		cacheCleanupTotal,
	)

	return &HTTPServerMetrics{
		registry:          registry,
		requestTotal:      requestTotal,
		requestDuration:   requestDuration,
		requestInFlight:   requestInFlight,
		answersTotal:      answersTotal,
		answerConfidence:  answerConfidence,
		answerDuration:    answerDuration,
		cacheHitsTotal:    cacheHitsTotal,
		noEvidenceTotal:   noEvidenceTotal,
		retrievedSources:  retrievedSources,
		cacheCleanupTotal: cacheCleanupTotal,
	}
}

func (m *HTTPServerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *HTTPServerMetrics) Middleware(service string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		path := normalizePath(r.URL.Path)
		recorder := &statusRecorder{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		m.requestInFlight.Inc()
		defer m.requestInFlight.Dec()

		next.ServeHTTP(recorder, r)

		m.requestTotal.WithLabelValues(
			service,
			r.Method,
			path,
			strconv.Itoa(recorder.statusCode),
		).Inc()
		m.requestDuration.WithLabelValues(service, r.Method, path).Observe(time.Since(start).Seconds())
	})
}

func normalizePath(path string) string {
	switch {
	case strings.HasPrefix(path, "/v1/evaluations/"):
		return "/v1/evaluations/{run_id}"
	default:
		return path
	}
}

func (m *HTTPServerMetrics) RecordAnswer(service, strategy string, confidence float64, sourceCount int, fromCache bool, duration time.Duration) {
	if strategy == "" {
		strategy = "unknown"
	}
	m.answersTotal.WithLabelValues(service, strategy).Inc()
	m.answerConfidence.WithLabelValues(service).Observe(confidence)
	m.answerDuration.WithLabelValues(service, strategy).Observe(duration.Seconds())
	m.retrievedSources.WithLabelValues(service).Observe(float64(sourceCount))

	if fromCache {
		m.cacheHitsTotal.WithLabelValues(service).Inc()
	}
	if strategy == "none" {
		m.noEvidenceTotal.WithLabelValues(service).Inc()
	}
}

func (m *HTTPServerMetrics) RecordCacheCleanup(service string, removed int64) {
	if removed <= 0 {
		return
	}
	m.cacheCleanupTotal.WithLabelValues(service).Add(float64(removed))
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (w *statusRecorder) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *statusRecorder) Flush() {
	flusher, ok := w.ResponseWriter.(http.Flusher)
	if ok {
		flusher.Flush()
	}
}

func (w *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hijacker, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not implement http.Hijacker")
	}
	return hijacker.Hijack()
}

func (w *statusRecorder) Push(target string, opts *http.PushOptions) error {
	pusher, ok := w.ResponseWriter.(http.Pusher)
	if !ok {
		return http.ErrNotSupported
	}
	return pusher.Push(target, opts)
}
