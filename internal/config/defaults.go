package config

import (
	"time"

	"github.com/turtacn/deadline-agent/internal/application/extraction"
	"github.com/turtacn/deadline-agent/internal/domain/deadline"
	"github.com/turtacn/deadline-agent/internal/infrastructure/document"
)

// ─────────────────────────────────────────────────────────────────────────────
// Default value constants
// ─────────────────────────────────────────────────────────────────────────────

const (
	DefaultHTTPHost            = "0.0.0.0"
	DefaultHTTPPort            = 8080
	DefaultHTTPReadTimeout     = 30 * time.Second
	DefaultHTTPWriteTimeout    = 60 * time.Second
	DefaultHTTPIdleTimeout     = 120 * time.Second
	DefaultHTTPShutdownTimeout = 15 * time.Second
	DefaultMaxBodyBytes        = 20 << 20
	DefaultRateLimitBurst      = 20

	DefaultGRPCHost = "0.0.0.0"
	DefaultGRPCPort = 9090

	DefaultCacheTTL    = 24 * time.Hour
	DefaultCachePrefix = "deadline:"
	DefaultRedisAddr   = "localhost:6379"

	DefaultMetricsNamespace = "deadline"
	DefaultMetricsPath      = "/metrics"

	DefaultLogLevel  = "info"
	DefaultLogFormat = "json"

	DefaultWorkerHealthAddr = ":8081"
)

// ApplyDefaults fills every zero-value field in cfg. Values already set are
// left unchanged so explicit configuration always wins.
func ApplyDefaults(cfg *Config) {
	if cfg == nil {
		return
	}

	// ── Server ────────────────────────────────────────────────────────────────
	h := &cfg.Server.HTTP
	if h.Host == "" {
		h.Host = DefaultHTTPHost
	}
	if h.Port == 0 {
		h.Port = DefaultHTTPPort
	}
	if h.ReadTimeout == 0 {
		h.ReadTimeout = DefaultHTTPReadTimeout
	}
	if h.WriteTimeout == 0 {
		h.WriteTimeout = DefaultHTTPWriteTimeout
	}
	if h.IdleTimeout == 0 {
		h.IdleTimeout = DefaultHTTPIdleTimeout
	}
	if h.ShutdownTimeout == 0 {
		h.ShutdownTimeout = DefaultHTTPShutdownTimeout
	}
	if h.MaxBodyBytes == 0 {
		h.MaxBodyBytes = DefaultMaxBodyBytes
	}
	if h.RateLimitRPS > 0 && h.RateLimitBurst == 0 {
		h.RateLimitBurst = DefaultRateLimitBurst
	}
	if cfg.Server.GRPC.Host == "" {
		cfg.Server.GRPC.Host = DefaultGRPCHost
	}
	if cfg.Server.GRPC.Port == 0 {
		cfg.Server.GRPC.Port = DefaultGRPCPort
	}

	// ── Engine ────────────────────────────────────────────────────────────────
	if cfg.Engine.MaxRelativeDays == 0 {
		cfg.Engine.MaxRelativeDays = deadline.DefaultMaxRelativeDays
	}

	// ── Extraction ────────────────────────────────────────────────────────────
	d := extraction.DefaultConfig()
	if cfg.Extraction.BatchConcurrency == 0 {
		cfg.Extraction.BatchConcurrency = d.BatchConcurrency
	}
	if cfg.Extraction.MaxBatchSize == 0 {
		cfg.Extraction.MaxBatchSize = d.MaxBatchSize
	}
	if cfg.Extraction.PreviewChars == 0 {
		cfg.Extraction.PreviewChars = d.PreviewChars
	}

	// ── AI ────────────────────────────────────────────────────────────────────
	cfg.AI.ApplyDefaults()

	// ── Cache ─────────────────────────────────────────────────────────────────
	if cfg.Cache.TTL == 0 {
		cfg.Cache.TTL = DefaultCacheTTL
	}
	if cfg.Cache.Prefix == "" {
		cfg.Cache.Prefix = DefaultCachePrefix
	}
	if cfg.Cache.Redis.Addr == "" && len(cfg.Cache.Redis.SentinelAddrs) == 0 && len(cfg.Cache.Redis.ClusterAddrs) == 0 {
		cfg.Cache.Redis.Addr = DefaultRedisAddr
	}
	cfg.Cache.Redis.ApplyDefaults()

	// ── Messaging ─────────────────────────────────────────────────────────────
	cfg.Messaging.ApplyDefaults()

	// ── Metrics ───────────────────────────────────────────────────────────────
	if cfg.Metrics.Namespace == "" {
		cfg.Metrics.Namespace = DefaultMetricsNamespace
	}
	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = DefaultMetricsPath
	}

	// ── Logging ───────────────────────────────────────────────────────────────
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = DefaultLogLevel
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = DefaultLogFormat
	}

	// ── Document ──────────────────────────────────────────────────────────────
	if cfg.Document.MaxBytes == 0 {
		cfg.Document.MaxBytes = document.DefaultMaxBytes
	}

	// ── Business ──────────────────────────────────────────────────────────────
	b := extraction.DefaultMetricsAssumptions()
	if cfg.Business.ManualMinutesPerDoc == 0 {
		cfg.Business.ManualMinutesPerDoc = b.ManualMinutesPerDoc
	}
	if cfg.Business.AIMinutesPerDoc == 0 {
		cfg.Business.AIMinutesPerDoc = b.AIMinutesPerDoc
	}
	if cfg.Business.HourlyRate == 0 {
		cfg.Business.HourlyRate = b.HourlyRate
	}
	if cfg.Business.MissedDeadlineRate == 0 {
		cfg.Business.MissedDeadlineRate = b.MissedDeadlineRate
	}
	if cfg.Business.PenaltyPerMiss == 0 {
		cfg.Business.PenaltyPerMiss = b.PenaltyPerMiss
	}
	if cfg.Business.WeeksPerYear == 0 {
		cfg.Business.WeeksPerYear = b.WeeksPerYear
	}

	// ── Worker ────────────────────────────────────────────────────────────────
	if cfg.Worker.HealthAddr == "" {
		cfg.Worker.HealthAddr = DefaultWorkerHealthAddr
	}
}

// Default returns a fully defaulted Config, as used when no file is given.
func Default() *Config {
	cfg := &Config{Extraction: extraction.DefaultConfig()}
	cfg.Metrics.Enabled = true
	ApplyDefaults(cfg)
	return cfg
}
