// Package deadline_llm is the language-model fallback of the extraction
// pipeline. It prompts a ChatModel for a deadline, validates the JSON it
// returns and maps it onto a deadline.Result.
package deadline_llm

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"github.com/turtacn/deadline-agent/internal/domain/calendar"
	"github.com/turtacn/deadline-agent/internal/domain/deadline"
	"github.com/turtacn/deadline-agent/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/deadline-agent/internal/intelligence/common"
	"github.com/turtacn/deadline-agent/pkg/errors"
)

const cacheKeyPrefix = "deadline:ai:"

// ResultCache stores inferred results between calls.
type ResultCache interface {
	Get(ctx context.Context, key string) (*deadline.Result, bool, error)
	Set(ctx context.Context, key string, r *deadline.Result, ttl time.Duration) error
}

// Inferrer is the port the orchestrator depends on.
type Inferrer interface {
	Infer(ctx context.Context, text string, reference calendar.Date) (*deadline.Result, error)
	Provider() string
}

// Adapter calls the model once per request: no retries, bounded by a
// timeout and a token-bucket limiter.
type Adapter struct {
	model   common.ChatModel
	cfg     Config
	prompt  *promptBuilder
	limiter *rate.Limiter
	cache   ResultCache
	metrics common.InferenceMetrics
	logger  logging.Logger
	group   singleflight.Group
}

// Option customizes an Adapter.
type Option func(*Adapter)

// WithCache enables result caching for cfg.CacheTTL.
func WithCache(c ResultCache) Option {
	return func(a *Adapter) { a.cache = c }
}

func WithMetrics(m common.InferenceMetrics) Option {
	return func(a *Adapter) {
		if m != nil {
			a.metrics = m
		}
	}
}

func WithLogger(l logging.Logger) Option {
	return func(a *Adapter) {
		if l != nil {
			a.logger = l
		}
	}
}

// NewAdapter wires model with cfg. cfg is defaulted but not validated;
// callers validate configuration at load time.
func NewAdapter(model common.ChatModel, cfg Config, opts ...Option) (*Adapter, error) {
	if model == nil {
		return nil, errors.InvalidParam("chat model is required")
	}
	cfg.ApplyDefaults()
	pb, err := newPromptBuilder(cfg.PromptTemplate, cfg.MaxInputChars)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeValidation, "invalid ai prompt template")
	}
	a := &Adapter{
		model:   model,
		cfg:     cfg,
		prompt:  pb,
		limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.Burst),
		metrics: common.NewNoopInferenceMetrics(),
		logger:  logging.NewNopLogger(),
	}
	for _, opt := range opts {
		opt(a)
	}
	a.logger = a.logger.Named("deadline_llm")
	return a, nil
}

// Provider returns the display label of the underlying model.
func (a *Adapter) Provider() string { return a.model.Provider() }

// RuleLabel is the rule text used when the model does not name one.
func (a *Adapter) RuleLabel() string { return a.model.Provider() + " AI analysis" }

// Infer asks the model for the deadline in text relative to reference. The
// returned Result has a zero ProcessedAt.
func (a *Adapter) Infer(ctx context.Context, text string, reference calendar.Date) (*deadline.Result, error) {
	if strings.TrimSpace(text) == "" {
		return nil, errors.New(errors.ErrCodeAIInputInvalid, "text is empty")
	}
	if reference.IsZero() {
		return nil, errors.New(errors.ErrCodeAIInputInvalid, "reference date is required")
	}
	log := a.logger.WithContext(ctx)
	key := a.cacheKey(text, reference)

	if r, ok := a.cached(ctx, log, key); ok {
		return r, nil
	}

	// Concurrent callers share one flight. It runs detached from any single
	// caller, bounded by cfg.Timeout, and each caller waits on its own ctx.
	ch := a.group.DoChan(key, func() (interface{}, error) {
		fctx := context.WithoutCancel(ctx)
		r, err := a.infer(fctx, log, text, reference)
		if err != nil {
			return nil, err
		}
		a.store(fctx, log, key, r)
		return r, nil
	})

	select {
	case <-ctx.Done():
		code := errors.ErrCodeAIModelNotAvailable
		if ctx.Err() == context.DeadlineExceeded {
			code = errors.CodeTimeout
		}
		return nil, errors.Wrap(ctx.Err(), code, "model error").WithDetail("caller stopped waiting")
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		if res.Shared {
			log.Debug("shared in-flight inference", logging.String("key", key))
		}
		r := *res.Val.(*deadline.Result)
		return &r, nil
	}
}

func (a *Adapter) store(ctx context.Context, log logging.Logger, key string, r *deadline.Result) {
	if a.cache == nil || a.cfg.CacheTTL <= 0 {
		return
	}
	if err := a.cache.Set(ctx, key, r, a.cfg.CacheTTL); err != nil {
		log.Warn("ai cache write failed", logging.Err(err))
	}
}

func (a *Adapter) cached(ctx context.Context, log logging.Logger, key string) (*deadline.Result, bool) {
	if a.cache == nil || a.cfg.CacheTTL <= 0 {
		return nil, false
	}
	r, ok, err := a.cache.Get(ctx, key)
	if err != nil {
		log.Warn("ai cache read failed", logging.Err(err))
		return nil, false
	}
	if !ok || r == nil || r.Deadline == nil {
		return nil, false
	}
	return r, true
}

func (a *Adapter) infer(ctx context.Context, log logging.Logger, text string, reference calendar.Date) (*deadline.Result, error) {
	provider := a.model.Provider()
	waitCtx, cancelWait := context.WithTimeout(ctx, a.cfg.Timeout)
	defer cancelWait()
	if err := a.limiter.Wait(waitCtx); err != nil {
		a.metrics.ObserveInference(provider, common.StatusLimited, 0)
		return nil, errors.Wrap(err, errors.ErrCodeAIRateLimited, "model error").WithDetail("rate limiter wait aborted")
	}

	prompt, err := a.prompt.build(text, reference)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeAIInputInvalid, "failed to render prompt")
	}

	callCtx, cancel := context.WithTimeout(ctx, a.cfg.Timeout)
	defer cancel()

	start := time.Now()
	raw, err := a.model.Generate(callCtx, prompt)
	elapsed := time.Since(start)
	if err != nil {
		status := common.StatusError
		code := errors.ErrCodeAIModelNotAvailable
		if callCtx.Err() == context.DeadlineExceeded || errors.IsCode(err, errors.CodeTimeout) {
			status = common.StatusTimeout
			code = errors.CodeTimeout
		}
		a.metrics.ObserveInference(provider, status, elapsed)
		log.Warn("model call failed",
			logging.String("provider", provider),
			logging.Duration("elapsed", elapsed),
			logging.Err(err))
		if errors.IsCode(err, errors.ErrCodeAIRateLimited) {
			return nil, err
		}
		return nil, errors.Wrap(err, code, "model error")
	}

	r, err := parseResponse(raw, a.RuleLabel())
	if err != nil {
		a.metrics.ObserveInference(provider, common.StatusInvalid, elapsed)
		log.Info("model response rejected",
			logging.String("provider", provider),
			logging.String("reason", errors.Message(err)))
		return nil, err
	}
	a.metrics.ObserveInference(provider, common.StatusSuccess, elapsed)
	log.Debug("model inferred deadline",
		logging.String("provider", provider),
		logging.String("deadline", r.DeadlineString()),
		logging.Duration("elapsed", elapsed))
	return r, nil
}

func (a *Adapter) cacheKey(text string, reference calendar.Date) string {
	h := sha256.New()
	h.Write([]byte(a.model.Provider()))
	h.Write([]byte{0})
	h.Write([]byte(a.model.Model()))
	h.Write([]byte{0})
	h.Write([]byte(reference.String()))
	h.Write([]byte{0})
	h.Write([]byte(text))
	return cacheKeyPrefix + hex.EncodeToString(h.Sum(nil))
}

var _ Inferrer = (*Adapter)(nil)
