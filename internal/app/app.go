// Package app assembles the extraction pipeline and its infrastructure from a
// loaded configuration. Every binary builds one App and tears it down with
// Close.
package app

import (
	"context"
	"net/http"

	"github.com/turtacn/deadline-agent/internal/application/extraction"
	"github.com/turtacn/deadline-agent/internal/config"
	"github.com/turtacn/deadline-agent/internal/domain/calendar"
	"github.com/turtacn/deadline-agent/internal/domain/deadline"
	redisinfra "github.com/turtacn/deadline-agent/internal/infrastructure/database/redis"
	"github.com/turtacn/deadline-agent/internal/infrastructure/document"
	"github.com/turtacn/deadline-agent/internal/infrastructure/messaging/kafka"
	"github.com/turtacn/deadline-agent/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/deadline-agent/internal/infrastructure/monitoring/prometheus"
	"github.com/turtacn/deadline-agent/internal/intelligence/common"
	"github.com/turtacn/deadline-agent/internal/intelligence/deadline_llm"
	"github.com/turtacn/deadline-agent/pkg/errors"
)

// HealthChecker is a named dependency probe used by readiness endpoints.
type HealthChecker interface {
	Name() string
	Check(ctx context.Context) error
}

// App is the assembled object graph.
type App struct {
	Config    *config.Config
	Logger    logging.Logger
	Collector prometheus.MetricsCollector
	Metrics   *prometheus.AppMetrics
	Engine    *deadline.Engine
	Service   extraction.Service
	Redis     *redisinfra.Client
	Producer  *kafka.Producer

	checkers []HealthChecker
	closers  []func() error
}

// Option customizes assembly.
type Option func(*builder)

type builder struct {
	registry    *common.Registry
	httpClient  *http.Client
	producerOps []kafka.ProducerOption
	skipAI      bool
}

// WithRegistry replaces the model registry, mainly to register test providers.
func WithRegistry(r *common.Registry) Option {
	return func(b *builder) { b.registry = r }
}

// WithHTTPClient sets the client used by hosted model providers.
func WithHTTPClient(c *http.Client) Option {
	return func(b *builder) { b.httpClient = c }
}

// WithProducerOptions forwards options to the Kafka producer.
func WithProducerOptions(opts ...kafka.ProducerOption) Option {
	return func(b *builder) { b.producerOps = append(b.producerOps, opts...) }
}

// WithoutAI builds the service with no model fallback regardless of cfg.
func WithoutAI() Option {
	return func(b *builder) { b.skipAI = true }
}

// New builds the App. On error everything opened so far is closed.
func New(cfg *config.Config, logger logging.Logger, opts ...Option) (a *App, err error) {
	if cfg == nil {
		return nil, errors.InvalidParam("config is required")
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	b := &builder{registry: common.NewRegistry()}
	for _, opt := range opts {
		opt(b)
	}

	a = &App{Config: cfg, Logger: logger}
	defer func() {
		if err != nil {
			_ = a.Close()
			a = nil
		}
	}()

	a.Collector, err = prometheus.NewMetricsCollector(cfg.Metrics, logger.Named("metrics"))
	if err != nil {
		return nil, err
	}
	a.Metrics = prometheus.NewAppMetrics(a.Collector)

	a.Engine, err = NewEngine(cfg.Engine)
	if err != nil {
		return nil, err
	}

	svcOpts := []extraction.Option{
		extraction.WithMetrics(a.Metrics),
		extraction.WithLogger(logger),
		extraction.WithTextExtractor(document.NewExtractor(document.WithMaxBytes(cfg.Document.MaxBytes))),
	}

	if cfg.AI.Enabled && !b.skipAI {
		inferrer, err := a.buildInferrer(b)
		if err != nil {
			return nil, err
		}
		svcOpts = append(svcOpts, extraction.WithInferrer(inferrer))
	}

	if cfg.Messaging.Enabled {
		pcfg := cfg.Messaging.ProducerConfig()
		popts := append([]kafka.ProducerOption{kafka.WithProducerMetrics(a.Metrics)}, b.producerOps...)
		a.Producer, err = kafka.NewProducer(pcfg, logger, popts...)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, a.Producer.Close)
		svcOpts = append(svcOpts, extraction.WithEventPublisher(
			kafka.NewEventPublisher(a.Producer, cfg.Messaging.Topics.Completed)))
	}

	a.Service, err = extraction.NewService(a.Engine, cfg.Extraction, svcOpts...)
	if err != nil {
		return nil, err
	}

	logger.Info("extraction pipeline assembled",
		logging.Int("rules", len(a.Engine.Rules())),
		logging.Bool("ai_fallback", cfg.AI.Enabled && !b.skipAI),
		logging.Bool("cache", a.Redis != nil),
		logging.Bool("events", a.Producer != nil))
	return a, nil
}

// NewEngine builds the calendar and rule engine described by cfg.
func NewEngine(cfg config.EngineConfig) (*deadline.Engine, error) {
	holidays, err := cfg.HolidaySet()
	if err != nil {
		return nil, err
	}
	return deadline.NewEngine(calendar.New(holidays),
		deadline.WithMaxRelativeDays(cfg.MaxRelativeDays),
		deadline.WithCustomRules(cfg.CustomRules...))
}

func (a *App) buildInferrer(b *builder) (extraction.Inferrer, error) {
	cfg := a.Config
	model, err := b.registry.Build(cfg.AI.Model, b.httpClient)
	if err != nil {
		return nil, err
	}

	adapterOpts := []deadline_llm.Option{
		deadline_llm.WithMetrics(a.Metrics),
		deadline_llm.WithLogger(a.Logger),
	}
	if cfg.Cache.Enabled {
		rc := cfg.Cache.Redis
		a.Redis, err = redisinfra.NewClient(&rc, a.Logger)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, a.Redis.Close)
		a.checkers = append(a.checkers, RedisChecker(a.Redis))
		cache := redisinfra.NewRedisCache(a.Redis, a.Logger,
			redisinfra.WithPrefix(cfg.Cache.Prefix),
			redisinfra.WithDefaultTTL(cfg.Cache.TTL),
			redisinfra.WithCacheMetrics(a.Metrics))
		adapterOpts = append(adapterOpts, deadline_llm.WithCache(redisinfra.NewResultCache(cache)))
	}
	return deadline_llm.NewAdapter(model, cfg.AI, adapterOpts...)
}

// HealthCheckers lists the probes for the dependencies this App opened.
func (a *App) HealthCheckers() []HealthChecker {
	out := make([]HealthChecker, len(a.checkers))
	copy(out, a.checkers)
	return out
}

// Close releases resources in reverse order of acquisition.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	_ = a.Logger.Sync()
	return errors.Join(errs...)
}

type redisChecker struct {
	client *redisinfra.Client
}

// RedisChecker probes client with PING.
func RedisChecker(client *redisinfra.Client) HealthChecker {
	return redisChecker{client: client}
}

func (redisChecker) Name() string { return "redis" }

func (r redisChecker) Check(ctx context.Context) error {
	return r.client.Ping(ctx)
}
