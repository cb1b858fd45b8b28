// Package common holds the language-model clients shared by the
// intelligence layer: the ChatModel port, HTTP clients for hosted
// providers, a static model for tests and offline runs, and the provider
// registry that builds them from configuration.
package common

import (
	"context"
	"strings"
	"time"

	"github.com/turtacn/deadline-agent/pkg/errors"
)

// ─────────────────────────────────────────────────────────────────────────────
// ChatModel port
// ─────────────────────────────────────────────────────────────────────────────

// ChatModel sends a single prompt and returns the raw text completion.
type ChatModel interface {
	Generate(ctx context.Context, prompt string) (string, error)
	// Provider returns the label used in rule text and metrics, e.g. "Gemini".
	Provider() string
	// Model returns the configured model identifier.
	Model() string
}

// Provider names accepted in configuration.
const (
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"
	ProviderStatic = "static"
)

// Default endpoints and models.
const (
	DefaultGeminiBaseURL = "https://generativelanguage.googleapis.com"
	DefaultGeminiModel   = "gemini-pro"
	DefaultOpenAIBaseURL = "https://api.openai.com"
	DefaultOpenAIModel   = "gpt-4o-mini"
	DefaultHTTPTimeout   = 30 * time.Second
)

// ModelConfig selects and parameterizes a ChatModel.
type ModelConfig struct {
	Provider    string        `mapstructure:"provider" json:"provider"`
	Model       string        `mapstructure:"model" json:"model"`
	APIKey      string        `mapstructure:"api_key" json:"-"`
	BaseURL     string        `mapstructure:"base_url" json:"base_url"`
	Temperature float64       `mapstructure:"temperature" json:"temperature"`
	MaxTokens   int           `mapstructure:"max_tokens" json:"max_tokens"`
	HTTPTimeout time.Duration `mapstructure:"http_timeout" json:"http_timeout"`

	// StaticResponse is returned verbatim by the static provider.
	StaticResponse string `mapstructure:"static_response" json:"static_response,omitempty"`
}

// ApplyDefaults fills provider-specific endpoint and model defaults.
func (c *ModelConfig) ApplyDefaults() {
	c.Provider = strings.ToLower(strings.TrimSpace(c.Provider))
	if c.Provider == "" {
		c.Provider = ProviderGemini
	}
	switch c.Provider {
	case ProviderGemini:
		if c.BaseURL == "" {
			c.BaseURL = DefaultGeminiBaseURL
		}
		if c.Model == "" {
			c.Model = DefaultGeminiModel
		}
	case ProviderOpenAI:
		if c.BaseURL == "" {
			c.BaseURL = DefaultOpenAIBaseURL
		}
		if c.Model == "" {
			c.Model = DefaultOpenAIModel
		}
	case ProviderStatic:
		if c.Model == "" {
			c.Model = "static"
		}
	}
	if c.HTTPTimeout <= 0 {
		c.HTTPTimeout = DefaultHTTPTimeout
	}
}

// Validate checks the fields a hosted provider needs.
func (c *ModelConfig) Validate() error {
	switch c.Provider {
	case ProviderGemini, ProviderOpenAI:
		if c.APIKey == "" {
			return errors.InvalidParam("api key is required").WithDetail(c.Provider)
		}
		if c.BaseURL == "" {
			return errors.InvalidParam("base url is required").WithDetail(c.Provider)
		}
	case ProviderStatic:
	default:
		return errors.Newf(errors.ErrCodeValidation, "unknown model provider %q", c.Provider)
	}
	if c.Temperature < 0 || c.Temperature > 2.0 {
		return errors.InvalidParam("temperature must be between 0 and 2.0")
	}
	if c.MaxTokens < 0 {
		return errors.InvalidParam("max tokens must not be negative")
	}
	return nil
}

// ProviderLabel returns the display form of a provider name ("Gemini").
func ProviderLabel(provider string) string {
	switch strings.ToLower(provider) {
	case ProviderGemini:
		return "Gemini"
	case ProviderOpenAI:
		return "OpenAI"
	case ProviderStatic:
		return "Static"
	case "":
		return "Unknown"
	}
	return strings.ToUpper(provider[:1]) + provider[1:]
}
