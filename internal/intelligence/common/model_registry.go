package common

import (
	"net/http"
	"sort"
	"sync"

	"github.com/turtacn/deadline-agent/pkg/errors"
)

// Factory builds a ChatModel from a defaulted, validated configuration.
type Factory func(cfg ModelConfig, client *http.Client) (ChatModel, error)

// Registry maps provider names onto factories. The zero value is empty;
// NewRegistry returns one with the built-in providers.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry returns a registry holding the gemini, openai and static providers.
func NewRegistry() *Registry {
	r := &Registry{factories: make(map[string]Factory)}
	r.Register(ProviderGemini, func(cfg ModelConfig, c *http.Client) (ChatModel, error) {
		return NewGeminiModel(cfg, c), nil
	})
	r.Register(ProviderOpenAI, func(cfg ModelConfig, c *http.Client) (ChatModel, error) {
		return NewOpenAIModel(cfg, c), nil
	})
	r.Register(ProviderStatic, func(cfg ModelConfig, _ *http.Client) (ChatModel, error) {
		return NewStaticModel(cfg.StaticResponse), nil
	})
	return r
}

// Register adds or replaces the factory for provider.
func (r *Registry) Register(provider string, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.factories == nil {
		r.factories = make(map[string]Factory)
	}
	r.factories[provider] = f
}

// Providers lists the registered provider names in sorted order.
func (r *Registry) Providers() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.factories))
	for name := range r.factories {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Build applies defaults, validates cfg and constructs the model.
func (r *Registry) Build(cfg ModelConfig, client *http.Client) (ChatModel, error) {
	cfg.ApplyDefaults()
	r.mu.RLock()
	f, ok := r.factories[cfg.Provider]
	r.mu.RUnlock()
	if !ok {
		return nil, errors.Newf(errors.ErrCodeAIModelNotAvailable, "no factory registered for provider %q", cfg.Provider)
	}
	if isBuiltin(cfg.Provider) {
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}
	return f(cfg, client)
}

func isBuiltin(provider string) bool {
	switch provider {
	case ProviderGemini, ProviderOpenAI, ProviderStatic:
		return true
	}
	return false
}

var defaultRegistry = NewRegistry()

// NewChatModel builds a model through the default registry.
func NewChatModel(cfg ModelConfig) (ChatModel, error) {
	return defaultRegistry.Build(cfg, nil)
}
