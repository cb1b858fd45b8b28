package kafka

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/deadline-agent/internal/application/extraction"
	"github.com/turtacn/deadline-agent/internal/domain/calendar"
	"github.com/turtacn/deadline-agent/internal/domain/deadline"
	"github.com/turtacn/deadline-agent/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/deadline-agent/internal/testutil"
)

var testRef = calendar.NewDate(2025, time.May, 29)

func newWorkerService(t *testing.T, pub extraction.EventPublisher) extraction.Service {
	t.Helper()
	engine, err := deadline.NewEngine(calendar.New(calendar.PortugueseHolidays(2020, 2030)))
	require.NoError(t, err)
	svc, err := extraction.NewService(engine, extraction.DefaultConfig(),
		extraction.WithEventPublisher(pub),
		extraction.WithClock(func() time.Time { return time.Date(2025, 5, 29, 10, 30, 0, 0, time.UTC) }))
	require.NoError(t, err)
	return svc
}

func requestMessage(t *testing.T, req ExtractRequest) *Message {
	t.Helper()
	env, err := NewEventEnvelope(EventTypeExtractRequested, "test", req)
	require.NoError(t, err)
	pm, err := env.ToMessage(TopicExtractRequested)
	require.NoError(t, err)
	return &Message{Topic: pm.Topic, Key: pm.Key, Value: pm.Value, Headers: pm.Headers}
}

func decodeCompleted(t *testing.T, msg *ProducerMessage) (*EventEnvelope, map[string]interface{}) {
	t.Helper()
	env, err := MessageToEventEnvelope(&Message{Value: msg.Value})
	require.NoError(t, err)
	var payload map[string]interface{}
	require.NoError(t, json.Unmarshal(env.Payload, &payload))
	return env, payload
}

func TestEventPublisher_PublishExtraction(t *testing.T) {
	pub := &capturePublisher{}
	ep := NewEventPublisher(pub, "")

	d := calendar.NewDate(2025, time.June, 23)
	occurred := time.Date(2025, 5, 29, 10, 30, 0, 0, time.UTC)
	err := ep.PublishExtraction(context.Background(), &extraction.ExtractionEvent{
		EventID:    "evt-1",
		RequestID:  "req-1",
		Reference:  testRef,
		TextLength: 42,
		Result: &deadline.Result{
			Deadline:         &d,
			Rule:             "15 business days",
			ProcessingMethod: deadline.MethodRuleBased,
		},
		OccurredAt: occurred,
	})
	require.NoError(t, err)

	msgs := pub.published()
	require.Len(t, msgs, 1)
	assert.Equal(t, TopicExtractCompleted, msgs[0].Topic)
	assert.Equal(t, "evt-1", string(msgs[0].Key))
	assert.Equal(t, "req-1", msgs[0].Headers["trace_id"])

	env, payload := decodeCompleted(t, msgs[0])
	assert.Equal(t, "evt-1", env.EventID)
	assert.Equal(t, EventTypeExtractCompleted, env.EventType)
	assert.True(t, occurred.Equal(env.Timestamp))
	assert.Equal(t, "2025-05-29", payload["reference_date"])
	result := payload["result"].(map[string]interface{})
	assert.Equal(t, "2025-06-23", result["deadline"])
	assert.Equal(t, "rule_based", result["processing_method"])
}

func TestEventPublisher_Errors(t *testing.T) {
	ep := NewEventPublisher(&capturePublisher{err: stderrors.New("down")}, "custom.topic")
	assert.Error(t, ep.PublishExtraction(context.Background(), nil))
	assert.Error(t, ep.PublishExtraction(context.Background(), &extraction.ExtractionEvent{EventID: "x"}))
}

func TestExtractRequestHandler_ProcessesAndPublishes(t *testing.T) {
	pub := &capturePublisher{}
	svc := newWorkerService(t, NewEventPublisher(pub, TopicExtractCompleted))
	log := testutil.NewMockLogger()
	handler := NewExtractRequestHandler(svc, time.Second, log)

	req := ExtractRequest{RequestID: "req-9"}
	req.Text = "Deve responder no prazo de 15 dias úteis a partir desta notificação"
	req.Source = "notice.txt"
	req.Reference = testRef

	require.NoError(t, handler(context.Background(), requestMessage(t, req)))

	msgs := pub.published()
	require.Len(t, msgs, 1)
	assert.Equal(t, "req-9", msgs[0].Headers["trace_id"])
	_, payload := decodeCompleted(t, msgs[0])
	assert.Equal(t, "notice.txt", payload["source"])
	assert.Equal(t, "req-9", payload["request_id"])
	result := payload["result"].(map[string]interface{})
	assert.Equal(t, "2025-06-23", result["deadline"])

	assert.True(t, log.HasMessage("info", "extraction request processed"))
}

func TestExtractRequestHandler_NoDeadlineIsNotAnError(t *testing.T) {
	pub := &capturePublisher{}
	handler := NewExtractRequestHandler(newWorkerService(t, NewEventPublisher(pub, "")), 0, nil)

	req := ExtractRequest{}
	req.Text = "Random text with no deadline information"
	require.NoError(t, handler(context.Background(), requestMessage(t, req)))

	msgs := pub.published()
	require.Len(t, msgs, 1)
	_, payload := decodeCompleted(t, msgs[0])
	result := payload["result"].(map[string]interface{})
	assert.Equal(t, "failed", result["processing_method"])
}

func TestExtractRequestHandler_RejectsMalformedEvents(t *testing.T) {
	handler := NewExtractRequestHandler(newWorkerService(t, nil), 0, logging.NewNopLogger())
	ctx := context.Background()

	assert.Error(t, handler(ctx, &Message{Value: []byte("not json")}))
	assert.Error(t, handler(ctx, requestMessage(t, ExtractRequest{})))

	env, err := NewEventEnvelope("something.else", "test", map[string]string{"text": "x"})
	require.NoError(t, err)
	pm, err := env.ToMessage(TopicExtractRequested)
	require.NoError(t, err)
	assert.Error(t, handler(ctx, &Message{Value: pm.Value}))
}
