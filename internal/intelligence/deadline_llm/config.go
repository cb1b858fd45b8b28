package deadline_llm

import (
	"time"

	"github.com/turtacn/deadline-agent/internal/intelligence/common"
	"github.com/turtacn/deadline-agent/pkg/errors"
)

// Defaults for the fallback adapter.
const (
	DefaultTimeout           = 20 * time.Second
	DefaultRequestsPerSecond = 1.0
	DefaultBurst             = 2
	DefaultCacheTTL          = 24 * time.Hour
	DefaultLegalBasis        = "AI inference"
	DefaultMaxInputChars     = 8000
)

// Config is the ai section of the application configuration.
type Config struct {
	Enabled bool               `mapstructure:"enabled" json:"enabled"`
	Model   common.ModelConfig `mapstructure:"model" json:"model"`

	// Timeout bounds one model call including the HTTP round trip.
	Timeout time.Duration `mapstructure:"timeout" json:"timeout"`

	// RequestsPerSecond and Burst size the outbound token bucket.
	RequestsPerSecond float64 `mapstructure:"requests_per_second" json:"requests_per_second"`
	Burst             int     `mapstructure:"burst" json:"burst"`

	// CacheTTL is how long inferred results are kept; zero disables caching.
	CacheTTL time.Duration `mapstructure:"cache_ttl" json:"cache_ttl"`

	// MaxInputChars truncates the text embedded in the prompt.
	MaxInputChars int `mapstructure:"max_input_chars" json:"max_input_chars"`

	// PromptTemplate overrides the built-in prompt. It is a text/template
	// receiving .Reference and .Text.
	PromptTemplate string `mapstructure:"prompt_template" json:"prompt_template,omitempty"`
}

// NewConfig returns a Config with defaults applied and the Gemini provider.
func NewConfig() Config {
	var c Config
	c.ApplyDefaults()
	return c
}

func (c *Config) ApplyDefaults() {
	c.Model.ApplyDefaults()
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.RequestsPerSecond <= 0 {
		c.RequestsPerSecond = DefaultRequestsPerSecond
	}
	if c.Burst <= 0 {
		c.Burst = DefaultBurst
	}
	if c.MaxInputChars <= 0 {
		c.MaxInputChars = DefaultMaxInputChars
	}
}

// Validate checks the adapter settings. The model section is only checked
// when the fallback is enabled.
func (c *Config) Validate() error {
	if c.Timeout <= 0 {
		return errors.InvalidParam("ai timeout must be positive")
	}
	if c.RequestsPerSecond <= 0 || c.Burst <= 0 {
		return errors.InvalidParam("ai rate limit must be positive")
	}
	if c.CacheTTL < 0 {
		return errors.InvalidParam("ai cache ttl must not be negative")
	}
	if c.PromptTemplate != "" {
		if _, err := parsePrompt(c.PromptTemplate); err != nil {
			return errors.Wrap(err, errors.ErrCodeValidation, "invalid ai prompt template")
		}
	}
	if !c.Enabled {
		return nil
	}
	return c.Model.Validate()
}
