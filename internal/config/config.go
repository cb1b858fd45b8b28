// Package config defines the configuration of the deadline agent binaries.
// The structs here only hold data and validation; loading lives in loader.go.
package config

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/turtacn/deadline-agent/internal/application/extraction"
	"github.com/turtacn/deadline-agent/internal/domain/calendar"
	"github.com/turtacn/deadline-agent/internal/domain/deadline"
	redisinfra "github.com/turtacn/deadline-agent/internal/infrastructure/database/redis"
	"github.com/turtacn/deadline-agent/internal/infrastructure/messaging/kafka"
	"github.com/turtacn/deadline-agent/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/deadline-agent/internal/infrastructure/monitoring/prometheus"
	"github.com/turtacn/deadline-agent/internal/intelligence/deadline_llm"
	"github.com/turtacn/deadline-agent/pkg/errors"
)

// ─────────────────────────────────────────────────────────────────────────────
// Sub-configuration structs
// ─────────────────────────────────────────────────────────────────────────────

// HTTPConfig holds the REST listener tunables.
type HTTPConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	MaxBodyBytes    int64         `mapstructure:"max_body_bytes"`
	// RateLimitRPS and RateLimitBurst size the per-client token bucket; a
	// zero RPS disables limiting.
	RateLimitRPS   float64 `mapstructure:"rate_limit_rps"`
	RateLimitBurst int     `mapstructure:"rate_limit_burst"`
}

// Addr returns host:port.
func (h HTTPConfig) Addr() string { return fmt.Sprintf("%s:%d", h.Host, h.Port) }

// GRPCConfig holds the gRPC listener tunables.
type GRPCConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Host    string `mapstructure:"host"`
	Port    int    `mapstructure:"port"`
}

func (g GRPCConfig) Addr() string { return fmt.Sprintf("%s:%d", g.Host, g.Port) }

// ServerConfig groups the network listeners.
type ServerConfig struct {
	HTTP HTTPConfig `mapstructure:"http"`
	GRPC GRPCConfig `mapstructure:"grpc"`
}

// HolidayEntry is an extra non-working day given as YYYY-MM-DD.
type HolidayEntry struct {
	Date string `mapstructure:"date"`
	Name string `mapstructure:"name"`
}

// EngineConfig configures the calendar and the rule table.
type EngineConfig struct {
	HolidayFromYear int                       `mapstructure:"holiday_from_year"`
	HolidayToYear   int                       `mapstructure:"holiday_to_year"`
	ExtraHolidays   []HolidayEntry            `mapstructure:"extra_holidays"`
	MaxRelativeDays int                       `mapstructure:"max_relative_days"`
	CustomRules     []deadline.CustomRuleSpec `mapstructure:"custom_rules"`
}

// HolidaySet builds the national holidays plus the extra entries. A zero
// holiday_from_year or holiday_to_year leaves that side of the range open.
func (e EngineConfig) HolidaySet() (*calendar.HolidaySet, error) {
	set := calendar.AllPortugueseHolidays()
	if e.HolidayFromYear != 0 || e.HolidayToYear != 0 {
		to := e.HolidayToYear
		if to == 0 {
			to = math.MaxInt
		}
		set = calendar.PortugueseHolidays(e.HolidayFromYear, to)
	}
	extra := make([]calendar.Holiday, 0, len(e.ExtraHolidays))
	for _, h := range e.ExtraHolidays {
		d, err := calendar.ParseDate(strings.TrimSpace(h.Date))
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeValidation, "invalid engine.extra_holidays date").WithDetail(h.Date)
		}
		name := h.Name
		if name == "" {
			name = "Holiday"
		}
		extra = append(extra, calendar.Holiday{Date: d, Name: name})
	}
	return set.With(extra...), nil
}

// CacheConfig configures the AI result cache.
type CacheConfig struct {
	Enabled bool              `mapstructure:"enabled"`
	Prefix  string            `mapstructure:"prefix"`
	TTL     time.Duration     `mapstructure:"ttl"`
	Redis   redisinfra.Config `mapstructure:"redis"`
}

// DocumentConfig configures document intake.
type DocumentConfig struct {
	MaxBytes int64 `mapstructure:"max_bytes"`
}

// WorkerConfig configures cmd/worker.
type WorkerConfig struct {
	HealthAddr   string `mapstructure:"health_addr"`
	EnsureTopics bool   `mapstructure:"ensure_topics"`
}

// ─────────────────────────────────────────────────────────────────────────────
// Root
// ─────────────────────────────────────────────────────────────────────────────

// Config is the root configuration object.
type Config struct {
	Server     ServerConfig                  `mapstructure:"server"`
	Engine     EngineConfig                  `mapstructure:"engine"`
	Extraction extraction.Config             `mapstructure:"extraction"`
	AI         deadline_llm.Config           `mapstructure:"ai"`
	Cache      CacheConfig                   `mapstructure:"cache"`
	Messaging  kafka.Config                  `mapstructure:"messaging"`
	Metrics    prometheus.CollectorConfig    `mapstructure:"metrics"`
	Logging    logging.LogConfig             `mapstructure:"logging"`
	Document   DocumentConfig                `mapstructure:"document"`
	Business   extraction.MetricsAssumptions `mapstructure:"business"`
	Worker     WorkerConfig                  `mapstructure:"worker"`
}

// ─────────────────────────────────────────────────────────────────────────────
// Validation
// ─────────────────────────────────────────────────────────────────────────────

func validationError(format string, args ...interface{}) error {
	return errors.Newf(errors.ErrCodeValidation, format, args...)
}

// Validate performs semantic validation of a defaulted Config and returns the
// first problem found.
func (c *Config) Validate() error {
	h := c.Server.HTTP
	if h.Port < 1 || h.Port > 65535 {
		return validationError("server.http.port %d is out of range [1, 65535]", h.Port)
	}
	if h.MaxBodyBytes <= 0 {
		return validationError("server.http.max_body_bytes must be positive")
	}
	if h.RateLimitRPS < 0 || h.RateLimitBurst < 0 {
		return validationError("server.http rate limit must not be negative")
	}
	if c.Server.GRPC.Enabled {
		if c.Server.GRPC.Port < 1 || c.Server.GRPC.Port > 65535 {
			return validationError("server.grpc.port %d is out of range [1, 65535]", c.Server.GRPC.Port)
		}
		if c.Server.GRPC.Port == h.Port && c.Server.GRPC.Host == h.Host {
			return validationError("server.grpc.port must differ from server.http.port")
		}
	}

	e := c.Engine
	if e.HolidayFromYear < 0 || e.HolidayToYear < 0 {
		return validationError("engine holiday years must not be negative")
	}
	if e.HolidayToYear != 0 && e.HolidayFromYear > e.HolidayToYear {
		return validationError("engine.holiday_from_year %d is after holiday_to_year %d", e.HolidayFromYear, e.HolidayToYear)
	}
	if e.MaxRelativeDays <= 0 {
		return validationError("engine.max_relative_days must be positive")
	}
	if _, err := e.HolidaySet(); err != nil {
		return err
	}
	seen := make(map[string]bool, len(e.CustomRules))
	for _, r := range e.CustomRules {
		if err := r.Validate(); err != nil {
			return err
		}
		if seen[r.ID] {
			return validationError("engine.custom_rules: duplicate id %q", r.ID)
		}
		seen[r.ID] = true
		if err := deadline.CheckExpression(r.Expression); err != nil {
			return err
		}
	}

	if c.Extraction.MaxBatchSize <= 0 || c.Extraction.BatchConcurrency <= 0 {
		return validationError("extraction batch limits must be positive")
	}

	if err := c.AI.Validate(); err != nil {
		return err
	}

	if c.Cache.Enabled {
		if c.Cache.TTL <= 0 {
			return validationError("cache.ttl must be positive")
		}
		if err := c.Cache.Redis.Validate(); err != nil {
			return err
		}
	}

	if err := c.Messaging.Validate(); err != nil {
		return err
	}

	if c.Metrics.Enabled && c.Metrics.Namespace == "" {
		return validationError("metrics.namespace is required when metrics are enabled")
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return validationError("logging.level %q is invalid; expected debug|info|warn|error", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "json", "console":
	default:
		return validationError("logging.format %q is invalid; expected json|console", c.Logging.Format)
	}

	if c.Document.MaxBytes <= 0 {
		return validationError("document.max_bytes must be positive")
	}

	b := c.Business
	if b.ManualMinutesPerDoc < 0 || b.AIMinutesPerDoc < 0 || b.HourlyRate < 0 ||
		b.MissedDeadlineRate < 0 || b.PenaltyPerMiss < 0 || b.WeeksPerYear < 0 {
		return validationError("business assumptions must not be negative")
	}
	return nil
}
