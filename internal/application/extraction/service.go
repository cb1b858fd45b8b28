// Package extraction orchestrates the deadline pipeline: the rule engine,
// then explicit date mentions, then the language-model fallback. It also
// hosts the document, folder and batch entry points built on top of it.
package extraction

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/turtacn/deadline-agent/internal/domain/calendar"
	"github.com/turtacn/deadline-agent/internal/domain/deadline"
	"github.com/turtacn/deadline-agent/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/deadline-agent/pkg/errors"
)

// ---------------------------------------------------------------------------
// DTOs
// ---------------------------------------------------------------------------

// Options tune a single extraction. Nil switches fall back to the service
// defaults.
type Options struct {
	Reference     calendar.Date `json:"reference_date"`
	UseAIFallback *bool         `json:"use_ai_fallback,omitempty"`
	UseDateParser *bool         `json:"use_date_parser,omitempty"`
}

// ProcessRequest is one text to resolve.
type ProcessRequest struct {
	Text string `json:"text"`
	// Source names where the text came from, e.g. a file name.
	Source string `json:"source,omitempty"`
	Options
}

// Config holds the orchestrator defaults.
type Config struct {
	DateParserEnabled bool `mapstructure:"date_parser_enabled" json:"date_parser_enabled"`
	AIFallbackEnabled bool `mapstructure:"ai_fallback_enabled" json:"ai_fallback_enabled"`
	BatchConcurrency  int  `mapstructure:"batch_concurrency" json:"batch_concurrency"`
	MaxBatchSize      int  `mapstructure:"max_batch_size" json:"max_batch_size"`
	PreviewChars      int  `mapstructure:"preview_chars" json:"preview_chars"`
}

// DefaultConfig enables every stage.
func DefaultConfig() Config {
	return Config{
		DateParserEnabled: true,
		AIFallbackEnabled: true,
		BatchConcurrency:  4,
		MaxBatchSize:      100,
		PreviewChars:      500,
	}
}

func (c *Config) applyDefaults() {
	d := DefaultConfig()
	if c.BatchConcurrency <= 0 {
		c.BatchConcurrency = d.BatchConcurrency
	}
	if c.MaxBatchSize <= 0 {
		c.MaxBatchSize = d.MaxBatchSize
	}
	if c.PreviewChars <= 0 {
		c.PreviewChars = d.PreviewChars
	}
}

// ---------------------------------------------------------------------------
// Service interface
// ---------------------------------------------------------------------------

// Service is the application-level contract of the deadline agent.
type Service interface {
	// Process resolves one text. It never fails; unresolved texts yield a
	// result with the failed method.
	Process(ctx context.Context, req ProcessRequest) *deadline.Result

	// ProcessBatch resolves reqs concurrently and returns results in input order.
	ProcessBatch(ctx context.Context, reqs []ProcessRequest) ([]*deadline.Result, error)

	// ProcessDocument extracts the text of doc and resolves it.
	ProcessDocument(ctx context.Context, doc Document, opts Options) (*DocumentResult, error)

	// ProcessFolder resolves every supported file directly inside dir.
	ProcessFolder(ctx context.Context, dir string, opts Options) (*BatchSummary, error)

	// Rules lists the rule table in evaluation order.
	Rules() []deadline.RuleInfo

	// Calendar returns the business-day calendar in use.
	Calendar() *calendar.Calendar
}

// ---------------------------------------------------------------------------
// Implementation
// ---------------------------------------------------------------------------

type serviceImpl struct {
	engine    *deadline.Engine
	ai        Inferrer
	extractor TextExtractor
	publisher EventPublisher
	metrics   Metrics
	logger    logging.Logger
	clock     func() time.Time
	cfg       Config
}

// Option customizes the service.
type Option func(*serviceImpl)

// WithInferrer enables the language-model fallback.
func WithInferrer(ai Inferrer) Option {
	return func(s *serviceImpl) { s.ai = ai }
}

// WithTextExtractor enables document processing.
func WithTextExtractor(x TextExtractor) Option {
	return func(s *serviceImpl) { s.extractor = x }
}

// WithEventPublisher publishes every result.
func WithEventPublisher(p EventPublisher) Option {
	return func(s *serviceImpl) { s.publisher = p }
}

func WithMetrics(m Metrics) Option {
	return func(s *serviceImpl) {
		if m != nil {
			s.metrics = m
		}
	}
}

func WithLogger(l logging.Logger) Option {
	return func(s *serviceImpl) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithClock replaces time.Now.
func WithClock(clock func() time.Time) Option {
	return func(s *serviceImpl) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// NewService builds the orchestrator around engine.
func NewService(engine *deadline.Engine, cfg Config, opts ...Option) (Service, error) {
	if engine == nil {
		return nil, errors.InvalidParam("rule engine is required")
	}
	cfg.applyDefaults()
	s := &serviceImpl{
		engine:  engine,
		metrics: noopMetrics{},
		logger:  logging.NewNopLogger(),
		clock:   time.Now,
		cfg:     cfg,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.Named("extraction")
	return s, nil
}

func (s *serviceImpl) Rules() []deadline.RuleInfo    { return s.engine.Rules() }
func (s *serviceImpl) Calendar() *calendar.Calendar { return s.engine.Calendar() }

func boolOr(p *bool, def bool) bool {
	if p == nil {
		return def
	}
	return *p
}

// Process runs the stages in order and stops at the first that resolves.
func (s *serviceImpl) Process(ctx context.Context, req ProcessRequest) *deadline.Result {
	start := time.Now()
	now := s.clock()
	ref := req.Reference
	if ref.IsZero() {
		ref = calendar.DateOf(now)
	}
	log := s.logger.WithContext(ctx)

	r := s.resolve(ctx, log, req, ref)
	if r.Succeeded() {
		r.Stamp(r.ProcessingMethod, now)
	} else {
		r = deadline.NewFailure(deadline.NoDeadlineMessage, now)
	}

	s.metrics.ObserveExtraction(string(r.ProcessingMethod), metricRule(r), time.Since(start))
	log.Debug("extraction processed",
		logging.String("method", string(r.ProcessingMethod)),
		logging.String("rule", r.Rule),
		logging.String("deadline", r.DeadlineString()),
		logging.String("reference", ref.String()))
	s.publish(ctx, log, req, ref, r)
	return r
}

func (s *serviceImpl) resolve(ctx context.Context, log logging.Logger, req ProcessRequest, ref calendar.Date) *deadline.Result {
	if r, ok := s.engine.Apply(req.Text, ref); ok {
		r.ProcessingMethod = deadline.MethodRuleBased
		return r
	}

	if boolOr(req.UseDateParser, s.cfg.DateParserEnabled) {
		if m, ok := deadline.FindDateMention(req.Text, ref); ok {
			return deadline.ExplicitDateResult(m)
		}
	}

	if s.ai != nil && boolOr(req.UseAIFallback, s.cfg.AIFallbackEnabled) {
		r, err := s.ai.Infer(ctx, req.Text, ref)
		if err != nil {
			log.Warn("ai fallback did not resolve a deadline",
				logging.String("provider", s.ai.Provider()),
				logging.String("code", errors.GetCode(err).String()),
				logging.Err(err))
			return nil
		}
		r.ProcessingMethod = deadline.MethodAIInference
		return r
	}
	return nil
}

func metricRule(r *deadline.Result) string {
	switch {
	case r.RuleID != "":
		return r.RuleID
	case r.ProcessingMethod == deadline.MethodAIInference:
		return string(deadline.MethodAIInference)
	default:
		return "none"
	}
}

func (s *serviceImpl) publish(ctx context.Context, log logging.Logger, req ProcessRequest, ref calendar.Date, r *deadline.Result) {
	if s.publisher == nil {
		return
	}
	event := &ExtractionEvent{
		EventID:    uuid.NewString(),
		RequestID:  logging.RequestIDFromContext(ctx),
		Source:     req.Source,
		Reference:  ref,
		TextLength: len([]rune(req.Text)),
		Result:     r,
		OccurredAt: r.ProcessedAt,
	}
	if err := s.publisher.PublishExtraction(ctx, event); err != nil {
		log.Warn("failed to publish extraction event", logging.String("event_id", event.EventID), logging.Err(err))
	}
}

// ProcessBatch fans out over an errgroup bounded by the batch concurrency.
func (s *serviceImpl) ProcessBatch(ctx context.Context, reqs []ProcessRequest) ([]*deadline.Result, error) {
	if len(reqs) > s.cfg.MaxBatchSize {
		return nil, errors.InvalidParam("batch too large").
			WithDetail(fmt.Sprintf("%d requests exceeds the limit of %d", len(reqs), s.cfg.MaxBatchSize))
	}
	out := make([]*deadline.Result, len(reqs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.BatchConcurrency)
	for i := range reqs {
		i := i
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			out[i] = s.Process(gctx, reqs[i])
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, contextError(err, "batch processing interrupted")
	}
	return out, nil
}

func contextError(err error, msg string) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return errors.Wrap(err, errors.CodeTimeout, msg)
	}
	return errors.Wrap(err, errors.ErrCodeServiceUnavailable, msg)
}
