package kafka

import (
	"context"
	"time"
)

// ProducerMessage is a record handed to the producer.
type ProducerMessage struct {
	Topic     string
	Key       []byte
	Value     []byte
	Headers   map[string]string
	Timestamp time.Time
	Partition int
}

// Message is a record delivered to a MessageHandler.
type Message struct {
	Topic     string
	Partition int
	Offset    int64
	Key       []byte
	Value     []byte
	Headers   map[string]string
	Timestamp time.Time
}

// MessageHandler processes one consumed message. A non-nil error triggers the
// consumer's retry policy.
type MessageHandler func(ctx context.Context, msg *Message) error

// TopicConfig describes a topic for TopicManager.
type TopicConfig struct {
	Name              string
	NumPartitions     int
	ReplicationFactor int
	RetentionMs       int64
	CleanupPolicy     string
	MaxMessageBytes   int
	Configs           map[string]string
}

// BatchItemError reports one failed record of a batch publish.
type BatchItemError struct {
	Index int
	Topic string
	Error error
}

// BatchPublishResult summarises PublishBatch.
type BatchPublishResult struct {
	Succeeded int
	Failed    int
	Errors    []BatchItemError
}

// Publisher is the subset of Producer used by the consumer's dead-letter path
// and by EventPublisher.
type Publisher interface {
	Publish(ctx context.Context, msg *ProducerMessage) error
}

// MessageMetrics observes consumed and produced messages.
type MessageMetrics interface {
	ObserveMessage(topic, status string, d time.Duration)
}

// Message statuses reported to MessageMetrics.
const (
	StatusPublished    = "published"
	StatusPublishError = "publish_error"
	StatusProcessed    = "processed"
	StatusRetried      = "retried"
	StatusDeadLettered = "dead_lettered"
	StatusDropped      = "dropped"
)

type noopMessageMetrics struct{}

func (noopMessageMetrics) ObserveMessage(string, string, time.Duration) {}
