package common

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/turtacn/deadline-agent/pkg/errors"
)

// maxErrorBody bounds how much of a failed response body ends up in errors.
const maxErrorBody = 512

// httpTransport posts JSON and decodes JSON for the hosted providers.
type httpTransport struct {
	client *http.Client
}

func newHTTPTransport(cfg ModelConfig, client *http.Client) httpTransport {
	if client == nil {
		client = &http.Client{Timeout: cfg.HTTPTimeout}
	}
	return httpTransport{client: client}
}

func (t httpTransport) postJSON(ctx context.Context, endpoint string, headers map[string]string, in, out interface{}) error {
	body, err := json.Marshal(in)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeSerialization, "failed to encode model request")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeAIModelNotAvailable, "model error")
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := t.client.Do(req)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return errors.Wrap(err, errors.CodeTimeout, "model error")
		}
		return errors.Wrap(err, errors.ErrCodeAIModelNotAvailable, "model error")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		code := errors.ErrCodeAIModelNotAvailable
		if resp.StatusCode == http.StatusTooManyRequests {
			code = errors.ErrCodeAIRateLimited
		}
		return errors.New(code, "model error").
			WithDetail(fmt.Sprintf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet))))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.Wrap(err, errors.ErrCodeAIModelNotAvailable, "model error").WithDetail("undecodable response envelope")
	}
	return nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Gemini
// ─────────────────────────────────────────────────────────────────────────────

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiGenerationConfig struct {
	Temperature     float64 `json:"temperature,omitempty"`
	MaxOutputTokens int     `json:"maxOutputTokens,omitempty"`
}

type geminiRequest struct {
	Contents         []geminiContent         `json:"contents"`
	GenerationConfig *geminiGenerationConfig `json:"generationConfig,omitempty"`
}

type geminiResponse struct {
	Candidates []struct {
		Content      geminiContent `json:"content"`
		FinishReason string        `json:"finishReason"`
	} `json:"candidates"`
}

// GeminiModel calls the generateContent endpoint of the Generative Language API.
type GeminiModel struct {
	cfg       ModelConfig
	transport httpTransport
}

// NewGeminiModel builds a Gemini client. A nil client gets one with
// cfg.HTTPTimeout.
func NewGeminiModel(cfg ModelConfig, client *http.Client) *GeminiModel {
	cfg.Provider = ProviderGemini
	cfg.ApplyDefaults()
	return &GeminiModel{cfg: cfg, transport: newHTTPTransport(cfg, client)}
}

func (m *GeminiModel) Provider() string { return ProviderLabel(ProviderGemini) }
func (m *GeminiModel) Model() string    { return m.cfg.Model }

func (m *GeminiModel) Generate(ctx context.Context, prompt string) (string, error) {
	endpoint := fmt.Sprintf("%s/v1beta/models/%s:generateContent",
		strings.TrimRight(m.cfg.BaseURL, "/"), url.PathEscape(m.cfg.Model))
	// The key travels in a header so transport errors, which quote the URL,
	// never carry it.
	headers := map[string]string{"x-goog-api-key": m.cfg.APIKey}

	req := geminiRequest{
		Contents: []geminiContent{{Role: "user", Parts: []geminiPart{{Text: prompt}}}},
	}
	if m.cfg.Temperature > 0 || m.cfg.MaxTokens > 0 {
		req.GenerationConfig = &geminiGenerationConfig{
			Temperature:     m.cfg.Temperature,
			MaxOutputTokens: m.cfg.MaxTokens,
		}
	}

	var resp geminiResponse
	if err := m.transport.postJSON(ctx, endpoint, headers, req, &resp); err != nil {
		return "", err
	}
	if len(resp.Candidates) == 0 {
		return "", errors.New(errors.ErrCodeAIModelNotAvailable, "model error").WithDetail("empty candidates in response")
	}
	var sb strings.Builder
	for _, p := range resp.Candidates[0].Content.Parts {
		sb.WriteString(p.Text)
	}
	return sb.String(), nil
}

// ─────────────────────────────────────────────────────────────────────────────
// OpenAI
// ─────────────────────────────────────────────────────────────────────────────

type openAIMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIRequest struct {
	Model       string          `json:"model"`
	Messages    []openAIMessage `json:"messages"`
	Temperature float64         `json:"temperature,omitempty"`
	MaxTokens   int             `json:"max_tokens,omitempty"`
}

type openAIResponse struct {
	Choices []struct {
		Message openAIMessage `json:"message"`
	} `json:"choices"`
}

// OpenAIModel calls an OpenAI-compatible chat completions endpoint.
type OpenAIModel struct {
	cfg       ModelConfig
	transport httpTransport
}

func NewOpenAIModel(cfg ModelConfig, client *http.Client) *OpenAIModel {
	cfg.Provider = ProviderOpenAI
	cfg.ApplyDefaults()
	return &OpenAIModel{cfg: cfg, transport: newHTTPTransport(cfg, client)}
}

func (m *OpenAIModel) Provider() string { return ProviderLabel(ProviderOpenAI) }
func (m *OpenAIModel) Model() string    { return m.cfg.Model }

func (m *OpenAIModel) Generate(ctx context.Context, prompt string) (string, error) {
	endpoint := strings.TrimRight(m.cfg.BaseURL, "/") + "/v1/chat/completions"
	req := openAIRequest{
		Model:       m.cfg.Model,
		Messages:    []openAIMessage{{Role: "user", Content: prompt}},
		Temperature: m.cfg.Temperature,
		MaxTokens:   m.cfg.MaxTokens,
	}
	headers := map[string]string{"Authorization": "Bearer " + m.cfg.APIKey}

	var resp openAIResponse
	if err := m.transport.postJSON(ctx, endpoint, headers, req, &resp); err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", errors.New(errors.ErrCodeAIModelNotAvailable, "model error").WithDetail("empty choices in response")
	}
	return resp.Choices[0].Message.Content, nil
}
