package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/urbcode/plan-assistant/internal/core/domain"
	"github.com/urbcode/plan-assistant/internal/core/ports"
)

// Fixed user-facing messages. "Nothing relevant in the corpus" and "system
// could not process this request" must never share phrasing; the evaluation
// harness and quality dashboards tell regressions apart by these strings.
const (
	NoEvidenceMessage = "Não encontrei dispositivos sobre essa pergunta no plano urbanístico. " +
		"A base cobre os artigos da LUOS e do PDUS, a estrutura dos documentos e os parâmetros de zoneamento por bairro."
	SynthesisFailureMessage = "Desculpe, não consegui processar sua pergunta neste momento. Tente novamente em instantes."
)

const synthesisSystemPrompt = `Você é um assistente especializado no código de planejamento urbano municipal.
Responda somente com base no contexto fornecido, citando os artigos quando possível.
Se o contexto não cobrir a pergunta, diga isso diretamente.`

type AnswerConfig struct {
	CacheTTL          time.Duration
	ContextCharBudget int
	SynthesisTimeout  time.Duration
	AuditTimeout      time.Duration
	EmbeddingModel    string
	DefaultModel      domain.ModelConfig
}

func (c AnswerConfig) normalize() AnswerConfig {
	if c.CacheTTL <= 0 {
		c.CacheTTL = 72 * time.Hour
	}
	if c.ContextCharBudget <= 0 {
		c.ContextCharBudget = 6000
	}
	if c.SynthesisTimeout <= 0 {
		c.SynthesisTimeout = 60 * time.Second
	}
	if c.AuditTimeout <= 0 {
		c.AuditTimeout = 5 * time.Second
	}
	return c
}

// AnswerUseCase is the retrieval orchestrator: normalize, consult the cache,
// run the fallback chain, assemble context, synthesize, write back.
type AnswerUseCase struct {
	chain       *FallbackChain
	cache       ports.ResponseCache
	synthesizer ports.Synthesizer
	audit       ports.AuditSink
	cfg         AnswerConfig
}

func NewAnswerUseCase(
	chain *FallbackChain,
	cache ports.ResponseCache,
	synthesizer ports.Synthesizer,
	audit ports.AuditSink,
	cfg AnswerConfig,
) *AnswerUseCase {
	return &AnswerUseCase{
		chain:       chain,
		cache:       cache,
		synthesizer: synthesizer,
		audit:       audit,
		cfg:         cfg.normalize(),
	}
}

func (uc *AnswerUseCase) Answer(ctx context.Context, req ports.AnswerRequest) (*ports.AnswerResponse, error) {
	started := time.Now()

	if strings.TrimSpace(req.Question) == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "answer", fmt.Errorf("question is required"))
	}

	model := req.Model
	if model.ID == "" {
		model = uc.cfg.DefaultModel
	}

	query := domain.NewQuery(req.Question, req.DocumentType)

	if !req.BypassCache {
		if entry, found := uc.cacheGet(ctx, query.CacheKey()); found {
			return &ports.AnswerResponse{
				Response:        entry.Answer,
				Confidence:      entry.Confidence,
				SourceCounts:    entry.SourceCounts,
				Strategy:        "cache",
				FromCache:       true,
				ExecutionTimeMs: time.Since(started).Milliseconds(),
			}, nil
		}
	}

	result := uc.chain.Retrieve(ctx, query)
	if result.IsEmpty() {
		response := &ports.AnswerResponse{
			Response:        NoEvidenceMessage,
			Confidence:      0,
			Strategy:        domain.StrategyNone,
			ExecutionTimeMs: time.Since(started).Milliseconds(),
		}
		uc.appendAudit(ctx, query, response, model)
		return response, nil
	}

	answerText, err := uc.synthesize(ctx, model, query, result)
	if err != nil {
		slog.Error("synthesis_failed", "model", model.ID, "strategy", result.Strategy, "error", err)
		response := &ports.AnswerResponse{
			Response:        SynthesisFailureMessage,
			Confidence:      0,
			SourceCounts:    domain.CountSources(result.Records),
			Strategy:        result.Strategy,
			ExecutionTimeMs: time.Since(started).Milliseconds(),
		}
		uc.appendAudit(ctx, query, response, model)
		return response, nil
	}

	response := &ports.AnswerResponse{
		Response:        answerText,
		Confidence:      result.Confidence,
		SourceCounts:    domain.CountSources(result.Records),
		Strategy:        result.Strategy,
		ExecutionTimeMs: time.Since(started).Milliseconds(),
	}

	uc.cachePut(ctx, domain.CacheEntry{
		Key:            query.CacheKey(),
		Answer:         answerText,
		Confidence:     result.Confidence,
		SourceCounts:   response.SourceCounts,
		EmbeddingModel: uc.cfg.EmbeddingModel,
		CreatedAt:      time.Now().UTC(),
	})
	uc.appendAudit(ctx, query, response, model)

	return response, nil
}

func (uc *AnswerUseCase) synthesize(
	ctx context.Context,
	model domain.ModelConfig,
	query domain.Query,
	result domain.RetrievalResult,
) (string, error) {
	assembled := AssembleContext(result.Records, uc.cfg.ContextCharBudget)

	callCtx, cancel := context.WithTimeout(ctx, uc.cfg.SynthesisTimeout)
	defer cancel()

	userText := fmt.Sprintf("Pergunta:\n%s\n\nContexto:\n%s\n", query.RawText, assembled)
	answer, err := uc.synthesizer.Complete(callCtx, model, synthesisSystemPrompt, userText)
	if err != nil {
		if callCtx.Err() != nil {
			return "", domain.WrapError(domain.ErrSynthesisFailure, "complete", domain.WrapError(domain.ErrUpstreamTimeout, "complete", err))
		}
		return "", domain.WrapError(domain.ErrSynthesisFailure, "complete", err)
	}
	if strings.TrimSpace(answer) == "" {
		return "", domain.WrapError(domain.ErrSynthesisFailure, "complete", fmt.Errorf("empty completion"))
	}
	return answer, nil
}

func (uc *AnswerUseCase) cacheGet(ctx context.Context, key string) (domain.CacheEntry, bool) {
	entry, found, err := uc.cache.Get(ctx, key)
	if err != nil {
		// Cache trouble degrades to a miss, never to a failed request.
		slog.Warn("cache_get_failed", "key", key, "error", err)
		return domain.CacheEntry{}, false
	}
	return entry, found
}

func (uc *AnswerUseCase) cachePut(ctx context.Context, entry domain.CacheEntry) {
	if err := uc.cache.Put(ctx, entry); err != nil {
		slog.Warn("cache_put_failed", "key", entry.Key, "error", err)
	}
}

// appendAudit records query history without ever blocking the answer path.
func (uc *AnswerUseCase) appendAudit(ctx context.Context, query domain.Query, response *ports.AnswerResponse, model domain.ModelConfig) {
	if uc.audit == nil {
		return
	}

	audit := domain.QueryAudit{
		Question:   query.RawText,
		Answer:     response.Response,
		Confidence: response.Confidence,
		Strategy:   response.Strategy,
		ModelID:    model.ID,
		LatencyMs:  response.ExecutionTimeMs,
		CreatedAt:  time.Now().UTC(),
	}

	go func() {
		auditCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), uc.cfg.AuditTimeout)
		defer cancel()
		if err := uc.audit.Append(auditCtx, audit); err != nil {
			slog.Warn("audit_append_failed", "error", err)
		}
	}()
}
