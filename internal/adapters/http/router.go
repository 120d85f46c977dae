package httpadapter

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/urbcode/plan-assistant/internal/core/domain"
	"github.com/urbcode/plan-assistant/internal/core/ports"
	"github.com/urbcode/plan-assistant/internal/observability/metrics"
)

const serviceName = "api"

type Router struct {
	answers ports.AnswerService
	queue   ports.EvaluationQueue
	runs    ports.EvaluationStore
	cache   ports.ResponseCache
	catalog ports.ModelCatalog
	metrics *metrics.HTTPServerMetrics
	traffic TrafficControl
}

type TrafficControl struct {
	RequestsPerSecond float64
	Burst             int
	MaxInFlight       int
	AcquireTimeout    time.Duration
}

func NewRouter(
	answers ports.AnswerService,
	queue ports.EvaluationQueue,
	runs ports.EvaluationStore,
	cache ports.ResponseCache,
	catalog ports.ModelCatalog,
	m *metrics.HTTPServerMetrics,
	traffic TrafficControl,
) *Router {
	return &Router{
		answers: answers,
		queue:   queue,
		runs:    runs,
		cache:   cache,
		catalog: catalog,
		metrics: m,
		traffic: traffic,
	}
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", rt.healthz)
	mux.HandleFunc("/v1/answers", rt.postAnswer)
	mux.HandleFunc("/v1/evaluations", rt.postEvaluation)
	mux.HandleFunc("/v1/evaluations/", rt.getEvaluation)
	mux.HandleFunc("/v1/cache/cleanup", rt.postCacheCleanup)
	if rt.metrics != nil {
		mux.Handle("/metrics", rt.metrics.Handler())
	}

	var handler http.Handler = mux
	if rt.traffic.MaxInFlight > 0 {
		handler = backpressureMiddleware(handler, rt.traffic.MaxInFlight, rt.traffic.AcquireTimeout)
	}
	if rt.traffic.RequestsPerSecond > 0 {
		handler = rateLimitMiddleware(handler, rt.traffic.RequestsPerSecond, rt.traffic.Burst)
	}
	if rt.metrics != nil {
		handler = rt.metrics.Middleware(serviceName, handler)
	}
	return requestIDMiddleware(accessLogMiddleware(handler))
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (rt *Router) postAnswer(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	var req struct {
		Question     string `json:"question"`
		DocumentType string `json:"document_type"`
		BypassCache  bool   `json:"bypass_cache"`
		Model        string `json:"model"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if strings.TrimSpace(req.Question) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "question is required"})
		return
	}

	model := rt.catalog.Default()
	if req.Model != "" {
		resolved, err := rt.catalog.Resolve([]string{req.Model})
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		}
		model = resolved[0]
	}

	start := time.Now()
	answer, err := rt.answers.Answer(r.Context(), ports.AnswerRequest{
		Question:     req.Question,
		DocumentType: req.DocumentType,
		BypassCache:  req.BypassCache,
		Model:        model,
	})
	if err != nil {
		writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": err.Error()})
		return
	}

	if rt.metrics != nil {
		rt.metrics.RecordAnswer(
			serviceName,
			answer.Strategy,
			answer.Confidence,
			answer.SourceCounts.Total(),
			answer.FromCache,
			time.Since(start),
		)
	}
	writeJSON(w, http.StatusOK, answer)
}

func (rt *Router) postEvaluation(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	var req struct {
		Selector domain.TestCaseSelector `json:"selector"`
		ModelIDs []string                `json:"model_ids"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if _, err := rt.catalog.Resolve(req.ModelIDs); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	request := domain.EvaluationRequest{
		ID:       uuid.NewString(),
		Selector: req.Selector,
		ModelIDs: req.ModelIDs,
	}
	if err := rt.queue.PublishEvaluationRequested(r.Context(), request); err != nil {
		writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": err.Error()})
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]string{"request_id": request.ID})
}

func (rt *Router) getEvaluation(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	runID := strings.TrimPrefix(r.URL.Path, "/v1/evaluations/")
	if runID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "run id is required"})
		return
	}

	run, err := rt.runs.GetRun(r.Context(), runID)
	if err != nil {
		writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": err.Error()})
		return
	}
	results, err := rt.runs.ListResults(r.Context(), runID)
	if err != nil {
		writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"run":     run,
		"results": results,
	})
}

func (rt *Router) postCacheCleanup(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	var req struct {
		MaxAgeHours int  `json:"max_age_hours"`
		MinHitCount int  `json:"min_hit_count"`
		Force       bool `json:"force"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if req.MaxAgeHours <= 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "max_age_hours must be positive"})
		return
	}

	removed, err := rt.cache.Cleanup(r.Context(), req.MaxAgeHours, req.MinHitCount, req.Force)
	if err != nil {
		writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": err.Error()})
		return
	}

	if rt.metrics != nil {
		rt.metrics.RecordCacheCleanup(serviceName, removed)
	}
	writeJSON(w, http.StatusOK, map[string]int64{"removed": removed})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
