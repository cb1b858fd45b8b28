package kafka

import (
	"context"
	stderrors "errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/deadline-agent/internal/testutil"
)

// mockKafkaReader serves queued messages and then blocks until cancelled.
type mockKafkaReader struct {
	mu        sync.Mutex
	queue     []kafka.Message
	committed []kafka.Message
	commitCh  chan kafka.Message
	closed    bool
}

func newMockKafkaReader(msgs ...kafka.Message) *mockKafkaReader {
	return &mockKafkaReader{queue: msgs, commitCh: make(chan kafka.Message, len(msgs)+1)}
}

func (m *mockKafkaReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	m.mu.Lock()
	if len(m.queue) > 0 {
		msg := m.queue[0]
		m.queue = m.queue[1:]
		m.mu.Unlock()
		return msg, nil
	}
	m.mu.Unlock()
	<-ctx.Done()
	return kafka.Message{}, ctx.Err()
}

func (m *mockKafkaReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	m.mu.Lock()
	m.committed = append(m.committed, msgs...)
	m.mu.Unlock()
	for _, msg := range msgs {
		m.commitCh <- msg
	}
	return nil
}

func (m *mockKafkaReader) Close() error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	return nil
}

func (m *mockKafkaReader) Stats() kafka.ReaderStats { return kafka.ReaderStats{} }

func (m *mockKafkaReader) waitCommits(t *testing.T, n int) []kafka.Message {
	t.Helper()
	out := make([]kafka.Message, 0, n)
	for len(out) < n {
		select {
		case msg := <-m.commitCh:
			out = append(out, msg)
		case <-time.After(3 * time.Second):
			t.Fatalf("expected %d commits, got %d", n, len(out))
		}
	}
	return out
}

type capturePublisher struct {
	mu   sync.Mutex
	msgs []*ProducerMessage
	err  error
}

func (c *capturePublisher) Publish(_ context.Context, msg *ProducerMessage) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	c.msgs = append(c.msgs, msg)
	return nil
}

func (c *capturePublisher) published() []*ProducerMessage {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*ProducerMessage(nil), c.msgs...)
}

func testConsumerConfig() ConsumerConfig {
	return ConsumerConfig{
		Brokers: []string{"localhost:9092"},
		GroupID: "deadline-worker",
		Topics:  []string{TopicExtractRequested},
		RetryConfig: RetryConfig{
			MaxRetries:      2,
			RetryBackoff:    time.Millisecond,
			MaxRetryBackoff: 2 * time.Millisecond,
			DeadLetterTopic: TopicExtractRequestedDLQ,
		},
	}
}

func newTestConsumer(t *testing.T, r ReaderInterface, opts ...ConsumerOption) *Consumer {
	t.Helper()
	opts = append([]ConsumerOption{WithReader(r)}, opts...)
	c, err := NewConsumer(testConsumerConfig(), testutil.NewMockLogger(), opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestValidateConsumerConfig(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*ConsumerConfig)
		wantErr bool
	}{
		{"valid", func(*ConsumerConfig) {}, false},
		{"no brokers", func(c *ConsumerConfig) { c.Brokers = nil }, true},
		{"no group", func(c *ConsumerConfig) { c.GroupID = "" }, true},
		{"no topics", func(c *ConsumerConfig) { c.Topics = nil }, true},
		{"bad offset reset", func(c *ConsumerConfig) { c.AutoOffsetReset = "middle" }, true},
		{"negative retries", func(c *ConsumerConfig) { c.RetryConfig.MaxRetries = -1 }, true},
		{"sasl without credentials", func(c *ConsumerConfig) {
			c.Security = SecurityConfig{SASLEnabled: true, SASLMechanism: "PLAIN"}
		}, true},
		{"tls without ca", func(c *ConsumerConfig) { c.Security = SecurityConfig{TLSEnabled: true} }, true},
		{"insecure tls", func(c *ConsumerConfig) {
			c.Security = SecurityConfig{TLSEnabled: true, TLSInsecure: true}
		}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConsumerConfig()
			tt.mutate(&cfg)
			err := ValidateConsumerConfig(cfg)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestSubscribe(t *testing.T) {
	c := newTestConsumer(t, newMockKafkaReader())
	require.NoError(t, c.Subscribe("topic", func(context.Context, *Message) error { return nil }))
	assert.Len(t, c.handlers, 1)
	assert.Error(t, c.Subscribe("", func(context.Context, *Message) error { return nil }))
	assert.Error(t, c.Subscribe("topic", nil))

	c.Unsubscribe("topic")
	assert.Empty(t, c.handlers)
}

func TestStart_AlreadyRunning(t *testing.T) {
	c := newTestConsumer(t, newMockKafkaReader())
	require.NoError(t, c.Start(context.Background()))
	assert.ErrorIs(t, c.Start(context.Background()), ErrAlreadyRunning)
}

func TestConsumeLoop_DeliversAndCommits(t *testing.T) {
	reader := newMockKafkaReader(
		kafka.Message{Topic: TopicExtractRequested, Offset: 7, Value: []byte("a"),
			Headers: []kafka.Header{{Key: "trace_id", Value: []byte("t-1")}}},
		kafka.Message{Topic: TopicExtractRequested, Offset: 8, Value: []byte("b")},
	)
	metrics := &fakeMessageMetrics{}
	c := newTestConsumer(t, reader, WithConsumerMetrics(metrics))

	var mu sync.Mutex
	var got []*Message
	require.NoError(t, c.Subscribe(TopicExtractRequested, func(_ context.Context, msg *Message) error {
		mu.Lock()
		got = append(got, msg)
		mu.Unlock()
		return nil
	}))
	require.NoError(t, c.Start(context.Background()))

	commits := reader.waitCommits(t, 2)
	assert.EqualValues(t, 7, commits[0].Offset)
	assert.EqualValues(t, 8, commits[1].Offset)

	mu.Lock()
	require.Len(t, got, 2)
	assert.Equal(t, "t-1", got[0].Headers["trace_id"])
	assert.Equal(t, "b", string(got[1].Value))
	mu.Unlock()

	require.NoError(t, c.Close())
	stats := c.Stats()
	assert.EqualValues(t, 2, stats.MessagesConsumed)
	assert.EqualValues(t, 2, stats.MessagesProcessed)
	assert.Equal(t, []string{StatusProcessed, StatusProcessed}, metrics.statuses())
	assert.True(t, reader.closed)
}

func TestConsumeLoop_UnknownTopicIsCommitted(t *testing.T) {
	reader := newMockKafkaReader(kafka.Message{Topic: "other", Offset: 1, Value: []byte("x")})
	c := newTestConsumer(t, reader)
	require.NoError(t, c.Start(context.Background()))

	reader.waitCommits(t, 1)
	assert.EqualValues(t, 0, c.Stats().MessagesProcessed)
}

func TestConsumeLoop_RetryThenSucceed(t *testing.T) {
	reader := newMockKafkaReader(kafka.Message{Topic: TopicExtractRequested, Value: []byte("x")})
	dlq := &capturePublisher{}
	c := newTestConsumer(t, reader, WithDeadLetterPublisher(dlq))

	var calls atomic.Int32
	require.NoError(t, c.Subscribe(TopicExtractRequested, func(context.Context, *Message) error {
		if calls.Add(1) < 2 {
			return stderrors.New("transient")
		}
		return nil
	}))
	require.NoError(t, c.Start(context.Background()))

	reader.waitCommits(t, 1)
	assert.EqualValues(t, 2, calls.Load())
	assert.EqualValues(t, 1, c.Stats().MessagesRetried)
	assert.Empty(t, dlq.published())
}

func TestConsumeLoop_ExhaustedGoesToDeadLetter(t *testing.T) {
	reader := newMockKafkaReader(kafka.Message{
		Topic:   TopicExtractRequested,
		Key:     []byte("key-1"),
		Value:   []byte("payload"),
		Headers: []kafka.Header{{Key: "event_type", Value: []byte(EventTypeExtractRequested)}},
	})
	dlq := &capturePublisher{}
	metrics := &fakeMessageMetrics{}
	c := newTestConsumer(t, reader, WithDeadLetterPublisher(dlq), WithConsumerMetrics(metrics))

	var calls atomic.Int32
	require.NoError(t, c.Subscribe(TopicExtractRequested, func(context.Context, *Message) error {
		calls.Add(1)
		return stderrors.New("permanent")
	}))
	require.NoError(t, c.Start(context.Background()))

	reader.waitCommits(t, 1)
	assert.EqualValues(t, 3, calls.Load())

	published := dlq.published()
	require.Len(t, published, 1)
	dl := published[0]
	assert.Equal(t, TopicExtractRequestedDLQ, dl.Topic)
	assert.Equal(t, "key-1", string(dl.Key))
	assert.Equal(t, "payload", string(dl.Value))
	assert.Equal(t, TopicExtractRequested, dl.Headers[HeaderOriginalTopic])
	assert.Equal(t, "permanent", dl.Headers[HeaderErrorMessage])
	assert.Equal(t, "3", dl.Headers[HeaderAttempts])
	assert.Equal(t, EventTypeExtractRequested, dl.Headers["event_type"])

	stats := c.Stats()
	assert.EqualValues(t, 1, stats.MessagesFailed)
	assert.EqualValues(t, 1, stats.MessagesDeadLettered)
	assert.Equal(t, []string{StatusRetried, StatusRetried, StatusDeadLettered}, metrics.statuses())
}

func TestConsumeLoop_DeadLetterFailureStillCommits(t *testing.T) {
	reader := newMockKafkaReader(kafka.Message{Topic: TopicExtractRequested, Value: []byte("x")})
	log := testutil.NewMockLogger()
	c, err := NewConsumer(testConsumerConfig(), log,
		WithReader(reader),
		WithDeadLetterPublisher(&capturePublisher{err: stderrors.New("dlq down")}))
	require.NoError(t, err)
	defer c.Close()

	require.NoError(t, c.Subscribe(TopicExtractRequested, func(context.Context, *Message) error {
		return stderrors.New("permanent")
	}))
	require.NoError(t, c.Start(context.Background()))

	reader.waitCommits(t, 1)
	assert.True(t, log.HasMessage("error", "failed to send to dead letter queue"))
	assert.EqualValues(t, 0, c.Stats().MessagesDeadLettered)
}

func TestClose_Idempotent(t *testing.T) {
	reader := newMockKafkaReader()
	c := newTestConsumer(t, reader)
	require.NoError(t, c.Start(context.Background()))
	require.NoError(t, c.Close())
	require.NoError(t, c.Close())
	assert.True(t, reader.closed)
}
