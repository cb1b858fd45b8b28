package extraction

import (
	"context"
	"time"

	"github.com/turtacn/deadline-agent/internal/domain/calendar"
	"github.com/turtacn/deadline-agent/internal/domain/deadline"
)

// Inferrer is the language-model fallback port.
type Inferrer interface {
	Infer(ctx context.Context, text string, reference calendar.Date) (*deadline.Result, error)
	Provider() string
}

// TextExtractor reads the text out of an uploaded document.
type TextExtractor interface {
	Extract(ctx context.Context, name string, content []byte) (string, error)
}

// EventPublisher receives every orchestrated result.
type EventPublisher interface {
	PublishExtraction(ctx context.Context, event *ExtractionEvent) error
}

// Metrics observes orchestrated results.
type Metrics interface {
	ObserveExtraction(method, rule string, d time.Duration)
}

type noopMetrics struct{}

func (noopMetrics) ObserveExtraction(string, string, time.Duration) {}

// ExtractionEvent is the payload published for each processed request.
type ExtractionEvent struct {
	EventID    string           `json:"event_id"`
	RequestID  string           `json:"request_id,omitempty"`
	Source     string           `json:"source,omitempty"`
	Reference  calendar.Date    `json:"reference_date"`
	TextLength int              `json:"text_length"`
	Result     *deadline.Result `json:"result"`
	OccurredAt time.Time        `json:"occurred_at"`
}
