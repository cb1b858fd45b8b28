package common

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/deadline-agent/pkg/errors"
)

func TestModelConfig_ApplyDefaults(t *testing.T) {
	cfg := ModelConfig{}
	cfg.ApplyDefaults()
	assert.Equal(t, ProviderGemini, cfg.Provider)
	assert.Equal(t, DefaultGeminiBaseURL, cfg.BaseURL)
	assert.Equal(t, DefaultGeminiModel, cfg.Model)
	assert.Equal(t, DefaultHTTPTimeout, cfg.HTTPTimeout)

	cfg = ModelConfig{Provider: " OpenAI "}
	cfg.ApplyDefaults()
	assert.Equal(t, ProviderOpenAI, cfg.Provider)
	assert.Equal(t, DefaultOpenAIModel, cfg.Model)
}

func TestModelConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     ModelConfig
		wantErr bool
	}{
		{"gemini ok", ModelConfig{Provider: ProviderGemini, APIKey: "k", BaseURL: "http://x"}, false},
		{"missing key", ModelConfig{Provider: ProviderOpenAI, BaseURL: "http://x"}, true},
		{"missing url", ModelConfig{Provider: ProviderOpenAI, APIKey: "k"}, true},
		{"static without key", ModelConfig{Provider: ProviderStatic}, false},
		{"unknown provider", ModelConfig{Provider: "mystery"}, true},
		{"temperature", ModelConfig{Provider: ProviderStatic, Temperature: 3}, true},
		{"max tokens", ModelConfig{Provider: ProviderStatic, MaxTokens: -1}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestRegistry_Build(t *testing.T) {
	r := NewRegistry()
	assert.Equal(t, []string{ProviderGemini, ProviderOpenAI, ProviderStatic}, r.Providers())

	m, err := r.Build(ModelConfig{Provider: "gemini", APIKey: "k"}, nil)
	require.NoError(t, err)
	assert.IsType(t, &GeminiModel{}, m)

	m, err = r.Build(ModelConfig{Provider: "static", StaticResponse: `{"deadline":"2025-01-01"}`}, nil)
	require.NoError(t, err)
	out, err := m.Generate(context.Background(), "x")
	require.NoError(t, err)
	assert.Equal(t, `{"deadline":"2025-01-01"}`, out)

	_, err = r.Build(ModelConfig{Provider: "openai"}, nil)
	assert.Error(t, err)

	_, err = r.Build(ModelConfig{Provider: "ollama"}, nil)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeAIModelNotAvailable))
}

func TestRegistry_CustomProvider(t *testing.T) {
	r := &Registry{}
	r.Register("local", func(cfg ModelConfig, _ *http.Client) (ChatModel, error) {
		return &StaticModel{Response: "local:" + cfg.Model, Label: "Local"}, nil
	})
	m, err := r.Build(ModelConfig{Provider: "local", Model: "tiny"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "Local", m.Provider())
	out, _ := m.Generate(context.Background(), "x")
	assert.Equal(t, "local:tiny", out)
}

func TestNewChatModel_Default(t *testing.T) {
	m, err := NewChatModel(ModelConfig{Provider: ProviderStatic})
	require.NoError(t, err)
	assert.Equal(t, "Static", m.Provider())
}

func TestStaticModel(t *testing.T) {
	m := NewStaticModel("resp")
	_, _ = m.Generate(context.Background(), "a")
	_, _ = m.Generate(context.Background(), "b")
	assert.Equal(t, []string{"a", "b"}, m.Prompts())
	assert.Equal(t, 2, m.Calls())

	m.Err = errors.New(errors.ErrCodeAIModelNotAvailable, "model error")
	_, err := m.Generate(context.Background(), "c")
	assert.Error(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	m.Err = nil
	_, err = m.Generate(ctx, "d")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestProviderLabel(t *testing.T) {
	assert.Equal(t, "Gemini", ProviderLabel("gemini"))
	assert.Equal(t, "OpenAI", ProviderLabel("OPENAI"))
	assert.Equal(t, "Ollama", ProviderLabel("ollama"))
	assert.Equal(t, "Unknown", ProviderLabel(""))
}
