package kafka

import (
	"context"
	"time"

	"github.com/turtacn/deadline-agent/internal/application/extraction"
	"github.com/turtacn/deadline-agent/internal/domain/deadline"
	"github.com/turtacn/deadline-agent/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/deadline-agent/pkg/errors"
)

const eventSource = "deadline-agent"

// ExtractRequest is the payload of an extraction request event.
type ExtractRequest struct {
	RequestID string `json:"request_id,omitempty"`
	extraction.ProcessRequest
}

// EventPublisher publishes orchestrated results to the completed topic.
type EventPublisher struct {
	publisher Publisher
	topic     string
}

// NewEventPublisher returns an extraction.EventPublisher backed by p.
func NewEventPublisher(p Publisher, topic string) *EventPublisher {
	if topic == "" {
		topic = TopicExtractCompleted
	}
	return &EventPublisher{publisher: p, topic: topic}
}

// PublishExtraction wraps event in an envelope and publishes it.
func (e *EventPublisher) PublishExtraction(ctx context.Context, event *extraction.ExtractionEvent) error {
	if event == nil {
		return errors.InvalidParam("event is required")
	}
	env, err := NewEventEnvelope(EventTypeExtractCompleted, eventSource, event)
	if err != nil {
		return err
	}
	if event.EventID != "" {
		env.EventID = event.EventID
	}
	if !event.OccurredAt.IsZero() {
		env.Timestamp = event.OccurredAt.UTC()
	}
	env.TraceID = event.RequestID
	msg, err := env.ToMessage(e.topic)
	if err != nil {
		return err
	}
	return e.publisher.Publish(ctx, msg)
}

// Processor is the part of extraction.Service the request handler needs.
type Processor interface {
	Process(ctx context.Context, req extraction.ProcessRequest) *deadline.Result
}

// NewExtractRequestHandler decodes extraction request events and runs them
// through svc. Results reach the completed topic through the service's own
// event publisher. Malformed events fail so they end up dead-lettered.
func NewExtractRequestHandler(svc Processor, timeout time.Duration, logger logging.Logger) MessageHandler {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	log := logger.Named("worker")
	return func(ctx context.Context, msg *Message) error {
		env, err := MessageToEventEnvelope(msg)
		if err != nil {
			return err
		}
		if env.EventType != "" && env.EventType != EventTypeExtractRequested {
			return errors.New(errors.ErrCodeValidation, "unexpected event type").WithDetail(env.EventType)
		}
		var req ExtractRequest
		if err := env.DecodePayload(&req); err != nil {
			return err
		}
		if req.Text == "" {
			return errors.New(errors.ErrCodeValidation, "extraction request has no text").WithDetail(env.EventID)
		}

		requestID := req.RequestID
		if requestID == "" {
			requestID = env.TraceID
		}
		if requestID == "" {
			requestID = env.EventID
		}
		ctx = logging.ContextWithRequestID(ctx, requestID)
		if timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, timeout)
			defer cancel()
		}

		r := svc.Process(ctx, req.ProcessRequest)
		log.WithContext(ctx).Info("extraction request processed",
			logging.String("event_id", env.EventID),
			logging.String("method", string(r.ProcessingMethod)),
			logging.String("deadline", r.DeadlineString()))
		return nil
	}
}
