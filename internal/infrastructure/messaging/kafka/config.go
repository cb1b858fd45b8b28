package kafka

import (
	"time"

	"github.com/turtacn/deadline-agent/pkg/errors"
)

// Topics names the three topics the deadline agent uses.
type Topics struct {
	Requested  string `mapstructure:"requested" json:"requested"`
	Completed  string `mapstructure:"completed" json:"completed"`
	DeadLetter string `mapstructure:"dead_letter" json:"dead_letter"`
}

// Config is the messaging section of the application configuration.
type Config struct {
	Enabled  bool           `mapstructure:"enabled" json:"enabled"`
	Brokers  []string       `mapstructure:"brokers" json:"brokers"`
	GroupID  string         `mapstructure:"group_id" json:"group_id"`
	Topics   Topics         `mapstructure:"topics" json:"topics"`
	Security SecurityConfig `mapstructure:"security" json:"security"`

	Acks            string        `mapstructure:"acks" json:"acks"`
	Compression     string        `mapstructure:"compression" json:"compression"`
	BatchTimeout    time.Duration `mapstructure:"batch_timeout" json:"batch_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout" json:"write_timeout"`
	MaxMessageBytes int           `mapstructure:"max_message_bytes" json:"max_message_bytes"`

	AutoOffsetReset string        `mapstructure:"auto_offset_reset" json:"auto_offset_reset"`
	MaxRetries      int           `mapstructure:"max_retries" json:"max_retries"`
	RetryBackoff    time.Duration `mapstructure:"retry_backoff" json:"retry_backoff"`
	MaxRetryBackoff time.Duration `mapstructure:"max_retry_backoff" json:"max_retry_backoff"`
	HandlerTimeout  time.Duration `mapstructure:"handler_timeout" json:"handler_timeout"`

	// ReplicationFactor is used when the worker creates missing topics.
	ReplicationFactor int `mapstructure:"replication_factor" json:"replication_factor"`
}

// ApplyDefaults fills zero fields.
func (c *Config) ApplyDefaults() {
	if len(c.Brokers) == 0 {
		c.Brokers = []string{"localhost:9092"}
	}
	if c.GroupID == "" {
		c.GroupID = "deadline-worker"
	}
	if c.Topics.Requested == "" {
		c.Topics.Requested = TopicExtractRequested
	}
	if c.Topics.Completed == "" {
		c.Topics.Completed = TopicExtractCompleted
	}
	if c.Topics.DeadLetter == "" {
		c.Topics.DeadLetter = TopicExtractRequestedDLQ
	}
	if c.Acks == "" {
		c.Acks = "all"
	}
	if c.BatchTimeout == 0 {
		c.BatchTimeout = 50 * time.Millisecond
	}
	if c.WriteTimeout == 0 {
		c.WriteTimeout = 10 * time.Second
	}
	if c.MaxMessageBytes == 0 {
		c.MaxMessageBytes = 1024 * 1024
	}
	if c.AutoOffsetReset == "" {
		c.AutoOffsetReset = "earliest"
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = 3
	}
	if c.RetryBackoff == 0 {
		c.RetryBackoff = time.Second
	}
	if c.MaxRetryBackoff == 0 {
		c.MaxRetryBackoff = 30 * time.Second
	}
	if c.HandlerTimeout == 0 {
		c.HandlerTimeout = time.Minute
	}
	if c.ReplicationFactor == 0 {
		c.ReplicationFactor = 1
	}
}

// Validate checks the section. A disabled section is always valid.
func (c Config) Validate() error {
	if !c.Enabled {
		return nil
	}
	if len(c.Brokers) == 0 {
		return errors.New(errors.ErrCodeValidation, "messaging.brokers required")
	}
	if c.MaxRetries < 0 {
		return errors.New(errors.ErrCodeValidation, "messaging.max_retries must be >= 0")
	}
	return c.Security.validate()
}

// ProducerConfig derives the producer settings.
func (c Config) ProducerConfig() ProducerConfig {
	return ProducerConfig{
		Brokers:          c.Brokers,
		Acks:             c.Acks,
		MaxRetries:       c.MaxRetries,
		BatchTimeout:     c.BatchTimeout,
		WriteTimeout:     c.WriteTimeout,
		MaxMessageBytes:  c.MaxMessageBytes,
		CompressionCodec: c.Compression,
		Security:         c.Security,
	}
}

// ConsumerConfig derives the consumer settings for the requested topic.
func (c Config) ConsumerConfig() ConsumerConfig {
	return ConsumerConfig{
		Brokers:         c.Brokers,
		GroupID:         c.GroupID,
		Topics:          []string{c.Topics.Requested},
		AutoOffsetReset: c.AutoOffsetReset,
		Security:        c.Security,
		RetryConfig: RetryConfig{
			MaxRetries:      c.MaxRetries,
			RetryBackoff:    c.RetryBackoff,
			MaxRetryBackoff: c.MaxRetryBackoff,
			DeadLetterTopic: c.Topics.DeadLetter,
		},
	}
}
