package common

import (
	"context"
	"sync"
)

// StaticModel answers every prompt with a fixed response or error. It backs
// offline mode and tests, and keeps the prompts it received.
type StaticModel struct {
	Response string
	Err      error
	// Label overrides the provider label; defaults to "Static".
	Label string

	// GenerateFunc, when set, takes precedence over Response and Err.
	GenerateFunc func(ctx context.Context, prompt string) (string, error)

	mu      sync.Mutex
	prompts []string
}

func NewStaticModel(response string) *StaticModel {
	return &StaticModel{Response: response}
}

func (m *StaticModel) Generate(ctx context.Context, prompt string) (string, error) {
	m.mu.Lock()
	m.prompts = append(m.prompts, prompt)
	m.mu.Unlock()

	if m.GenerateFunc != nil {
		return m.GenerateFunc(ctx, prompt)
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if m.Err != nil {
		return "", m.Err
	}
	return m.Response, nil
}

func (m *StaticModel) Provider() string {
	if m.Label != "" {
		return m.Label
	}
	return ProviderLabel(ProviderStatic)
}

func (m *StaticModel) Model() string { return ProviderStatic }

// Prompts returns a copy of every prompt received so far.
func (m *StaticModel) Prompts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.prompts))
	copy(out, m.prompts)
	return out
}

// Calls returns the number of Generate invocations.
func (m *StaticModel) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.prompts)
}

var _ ChatModel = (*StaticModel)(nil)
