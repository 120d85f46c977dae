package httpadapter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/urbcode/plan-assistant/internal/core/domain"
	"github.com/urbcode/plan-assistant/internal/core/ports"
)

type answerFake struct {
	err      error
	lastReq  ports.AnswerRequest
	response ports.AnswerResponse
}

func (f *answerFake) Answer(_ context.Context, req ports.AnswerRequest) (*ports.AnswerResponse, error) {
	f.lastReq = req
	if f.err != nil {
		return nil, f.err
	}
	resp := f.response
	return &resp, nil
}

type queueFake struct {
	err       error
	published []domain.EvaluationRequest
}

func (f *queueFake) PublishEvaluationRequested(_ context.Context, request domain.EvaluationRequest) error {
	if f.err != nil {
		return f.err
	}
	f.published = append(f.published, request)
	return nil
}

func (f *queueFake) SubscribeEvaluationRequested(context.Context, func(context.Context, domain.EvaluationRequest) error) error {
	return nil
}

type runStoreFake struct {
	run     *domain.ValidationRun
	results []domain.ValidationResult
}

func (f *runStoreFake) CreateRun(context.Context, *domain.ValidationRun) error       { return nil }
func (f *runStoreFake) AppendResult(context.Context, domain.ValidationResult) error  { return nil }
func (f *runStoreFake) FinishRun(context.Context, *domain.ValidationRun) error       { return nil }
func (f *runStoreFake) ListRunsByRequest(context.Context, string) ([]domain.ValidationRun, error) {
	return nil, nil
}

func (f *runStoreFake) GetRun(_ context.Context, runID string) (*domain.ValidationRun, error) {
	if f.run == nil {
		return nil, domain.WrapError(domain.ErrRunNotFound, "get run", fmt.Errorf("id %s", runID))
	}
	return f.run, nil
}

func (f *runStoreFake) ListResults(context.Context, string) ([]domain.ValidationResult, error) {
	return f.results, nil
}

type cacheCleanupFake struct {
	removed  int64
	lastArgs [3]any
}

func (f *cacheCleanupFake) Get(context.Context, string) (domain.CacheEntry, bool, error) {
	return domain.CacheEntry{}, false, nil
}
func (f *cacheCleanupFake) Put(context.Context, domain.CacheEntry) error { return nil }

func (f *cacheCleanupFake) Cleanup(_ context.Context, maxAgeHours, minHitCount int, force bool) (int64, error) {
	f.lastArgs = [3]any{maxAgeHours, minHitCount, force}
	return f.removed, nil
}

type catalogFake struct{}

func (catalogFake) All() []domain.ModelConfig {
	return []domain.ModelConfig{{ID: "llama3.1:8b"}, {ID: "qwen2.5:14b"}}
}

func (c catalogFake) Resolve(ids []string) ([]domain.ModelConfig, error) {
	if len(ids) == 0 {
		return c.All(), nil
	}
	out := make([]domain.ModelConfig, 0, len(ids))
	for _, id := range ids {
		switch id {
		case "llama3.1:8b", "qwen2.5:14b":
			out = append(out, domain.ModelConfig{ID: id})
		default:
			return nil, fmt.Errorf("model %q not in catalog", id)
		}
	}
	return out, nil
}

func (catalogFake) Default() domain.ModelConfig { return domain.ModelConfig{ID: "llama3.1:8b"} }

func newTestRouter(answers *answerFake, queue *queueFake, runs *runStoreFake, cache *cacheCleanupFake) http.Handler {
	return NewRouter(answers, queue, runs, cache, catalogFake{}, nil, TrafficControl{}).Handler()
}

func postJSONRequest(t *testing.T, handler http.Handler, path string, payload any) *httptest.ResponseRecorder {
	t.Helper()
	body, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	return res
}

func TestPostAnswerReturnsResponse(t *testing.T) {
	answers := &answerFake{response: ports.AnswerResponse{
		Response:   "Art. 5 define recuo frontal de 4 metros.",
		Confidence: 0.92,
		Strategy:   "exact_key",
	}}
	handler := newTestRouter(answers, &queueFake{}, &runStoreFake{}, &cacheCleanupFake{})

	res := postJSONRequest(t, handler, "/v1/answers", map[string]any{
		"question":      "O que diz o artigo 5 da LUOS?",
		"document_type": "luos",
	})

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", res.Code, res.Body.String())
	}
	if answers.lastReq.Model.ID != "llama3.1:8b" {
		t.Fatalf("expected default model, got %q", answers.lastReq.Model.ID)
	}
	if answers.lastReq.DocumentType != "luos" {
		t.Fatalf("document type not forwarded: %q", answers.lastReq.DocumentType)
	}

	var resp ports.AnswerResponse
	if err := json.NewDecoder(res.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Strategy != "exact_key" || resp.Confidence != 0.92 {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if res.Header().Get("X-Request-Id") == "" {
		t.Fatal("expected request id header")
	}
}

func TestPostAnswerResolvesExplicitModel(t *testing.T) {
	answers := &answerFake{}
	handler := newTestRouter(answers, &queueFake{}, &runStoreFake{}, &cacheCleanupFake{})

	res := postJSONRequest(t, handler, "/v1/answers", map[string]any{
		"question": "zoneamento do bairro Centro",
		"model":    "qwen2.5:14b",
	})
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	if answers.lastReq.Model.ID != "qwen2.5:14b" {
		t.Fatalf("explicit model not forwarded: %q", answers.lastReq.Model.ID)
	}
}

func TestPostAnswerRejectsUnknownModel(t *testing.T) {
	handler := newTestRouter(&answerFake{}, &queueFake{}, &runStoreFake{}, &cacheCleanupFake{})

	res := postJSONRequest(t, handler, "/v1/answers", map[string]any{
		"question": "altura máxima",
		"model":    "mistral:7b",
	})
	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown model, got %d", res.Code)
	}
}

func TestPostAnswerMapsDomainInvalidInputTo400(t *testing.T) {
	answers := &answerFake{err: domain.WrapError(domain.ErrInvalidInput, "answer", errors.New("empty question"))}
	handler := newTestRouter(answers, &queueFake{}, &runStoreFake{}, &cacheCleanupFake{})

	res := postJSONRequest(t, handler, "/v1/answers", map[string]any{"question": "x"})
	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}
}

func TestPostAnswerMapsTemporaryErrorTo503(t *testing.T) {
	answers := &answerFake{err: domain.WrapError(domain.ErrTemporary, "answer", errors.New("broker down"))}
	handler := newTestRouter(answers, &queueFake{}, &runStoreFake{}, &cacheCleanupFake{})

	res := postJSONRequest(t, handler, "/v1/answers", map[string]any{"question": "x"})
	if res.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", res.Code)
	}
}

func TestPostEvaluationPublishesAndReturns202(t *testing.T) {
	queue := &queueFake{}
	handler := newTestRouter(&answerFake{}, queue, &runStoreFake{}, &cacheCleanupFake{})

	res := postJSONRequest(t, handler, "/v1/evaluations", map[string]any{
		"selector":  map[string]any{"category": "artigos"},
		"model_ids": []string{"llama3.1:8b"},
	})

	if res.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", res.Code, res.Body.String())
	}
	if len(queue.published) != 1 {
		t.Fatalf("expected one published request, got %d", len(queue.published))
	}
	published := queue.published[0]
	if published.ID == "" || published.Selector.Category != "artigos" {
		t.Fatalf("unexpected published request: %+v", published)
	}

	var resp map[string]string
	if err := json.NewDecoder(res.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp["request_id"] != published.ID {
		t.Fatalf("request id mismatch: %q vs %q", resp["request_id"], published.ID)
	}
}

func TestPostEvaluationRejectsUnknownModels(t *testing.T) {
	queue := &queueFake{}
	handler := newTestRouter(&answerFake{}, queue, &runStoreFake{}, &cacheCleanupFake{})

	res := postJSONRequest(t, handler, "/v1/evaluations", map[string]any{
		"model_ids": []string{"mistral:7b"},
	})
	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}
	if len(queue.published) != 0 {
		t.Fatal("nothing should be published for unknown models")
	}
}

func TestGetEvaluationReturnsRunWithResults(t *testing.T) {
	runs := &runStoreFake{
		run: &domain.ValidationRun{ID: "run-1", ModelID: "llama3.1:8b", Status: domain.RunStatusCompleted},
		results: []domain.ValidationResult{
			{RunID: "run-1", TestCaseID: "tc-1", Score: 1, IsCorrect: true},
		},
	}
	handler := newTestRouter(&answerFake{}, &queueFake{}, runs, &cacheCleanupFake{})

	req := httptest.NewRequest(http.MethodGet, "/v1/evaluations/run-1", nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	var resp struct {
		Run     domain.ValidationRun      `json:"run"`
		Results []domain.ValidationResult `json:"results"`
	}
	if err := json.NewDecoder(res.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Run.ID != "run-1" || len(resp.Results) != 1 {
		t.Fatalf("unexpected payload: %+v", resp)
	}
}

func TestGetEvaluationReturns404ForUnknownRun(t *testing.T) {
	handler := newTestRouter(&answerFake{}, &queueFake{}, &runStoreFake{}, &cacheCleanupFake{})

	req := httptest.NewRequest(http.MethodGet, "/v1/evaluations/missing", nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", res.Code)
	}
}

func TestPostCacheCleanupForwardsArguments(t *testing.T) {
	cache := &cacheCleanupFake{removed: 17}
	handler := newTestRouter(&answerFake{}, &queueFake{}, &runStoreFake{}, cache)

	res := postJSONRequest(t, handler, "/v1/cache/cleanup", map[string]any{
		"max_age_hours": 168,
		"min_hit_count": 2,
		"force":         true,
	})

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	if cache.lastArgs != [3]any{168, 2, true} {
		t.Fatalf("unexpected cleanup args: %v", cache.lastArgs)
	}
	var resp map[string]int64
	if err := json.NewDecoder(res.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp["removed"] != 17 {
		t.Fatalf("removed = %d, want 17", resp["removed"])
	}
}

func TestPostCacheCleanupRejectsNonPositiveAge(t *testing.T) {
	handler := newTestRouter(&answerFake{}, &queueFake{}, &runStoreFake{}, &cacheCleanupFake{})

	res := postJSONRequest(t, handler, "/v1/cache/cleanup", map[string]any{"max_age_hours": 0})
	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}
}
