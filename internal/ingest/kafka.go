package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/rewired-gh/venuepulse/internal/logger"
	"github.com/rewired-gh/venuepulse/internal/metrics"
	"github.com/rewired-gh/venuepulse/internal/models"
)

// KafkaConfig holds consumer settings. Brokers, Topic and GroupID are
// required; PollTimeout defaults to five seconds.
type KafkaConfig struct {
	Brokers     []string
	Topic       string
	GroupID     string
	PollTimeout time.Duration
}

// messageReader is the part of *kafka.Reader the consumer uses.
type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaConsumer stores device messages forwarded to a Kafka topic. The
// message key, when set, is the venue ID used for payloads that omit one.
type KafkaConsumer struct {
	reader messageReader
	proc   *processor
	poll   time.Duration
	topic  string

	retryBase time.Duration
	retryMax  time.Duration
}

// NewKafkaConsumer builds a consumer-group reader for cfg.
func NewKafkaConsumer(cfg KafkaConfig, sink ReadingSink, m *metrics.Metrics) (*KafkaConsumer, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("at least one kafka broker is required")
	}
	if cfg.Topic == "" {
		return nil, errors.New("kafka topic must not be empty")
	}
	if cfg.GroupID == "" {
		return nil, errors.New("kafka group ID must not be empty")
	}

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     cfg.Brokers,
		GroupID:     cfg.GroupID,
		Topic:       cfg.Topic,
		StartOffset: kafka.FirstOffset,
		MinBytes:    1,
		MaxBytes:    10e6,
	})
	return newKafkaConsumer(reader, cfg.Topic, cfg.PollTimeout, sink, m), nil
}

func newKafkaConsumer(reader messageReader, topic string, poll time.Duration, sink ReadingSink, m *metrics.Metrics) *KafkaConsumer {
	if poll <= 0 {
		poll = 5 * time.Second
	}
	return &KafkaConsumer{
		reader: reader,
		proc: &processor{
			source:  SourceKafka,
			sink:    sink,
			metrics: m,
			now:     time.Now,
		},
		poll:      poll,
		topic:     topic,
		retryBase: 500 * time.Millisecond,
		retryMax:  30 * time.Second,
	}
}

// Run consumes messages until ctx is cancelled. A message is committed once
// it has been stored or found undecodable. Group offsets are positional, so
// a failed store is retried for the same message with backoff and nothing
// after it is fetched meanwhile; if ctx ends first the message stays
// uncommitted and is redelivered after a restart or rebalance.
func (c *KafkaConsumer) Run(ctx context.Context) error {
	logger.Info("Kafka consumer started on topic %s", c.topic)
	for {
		if ctx.Err() != nil {
			return nil
		}

		pollCtx, cancel := context.WithTimeout(ctx, c.poll)
		msg, err := c.reader.FetchMessage(pollCtx)
		cancel()
		if err != nil {
			switch {
			case errors.Is(err, context.Canceled) && ctx.Err() != nil:
				return nil
			case errors.Is(err, context.DeadlineExceeded):
				continue
			default:
				return fmt.Errorf("failed to fetch kafka message: %w", err)
			}
		}

		r, err := c.proc.decode(string(msg.Key), msg.Value)
		if err != nil {
			logger.Warn("Dropping undecodable kafka message at offset %d: %v", msg.Offset, err)
		} else if !c.storeWithRetry(ctx, msg.Offset, r) {
			return nil
		}

		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("failed to commit kafka offset %d: %w", msg.Offset, err)
		}
	}
}

// storeWithRetry saves r until it succeeds, backing off exponentially up to
// retryMax between attempts. It returns false when ctx ends first.
func (c *KafkaConsumer) storeWithRetry(ctx context.Context, offset int64, r models.Reading) bool {
	delay := c.retryBase
	for attempt := 1; ; attempt++ {
		err := c.proc.save(ctx, r)
		if err == nil {
			return true
		}
		if ctx.Err() != nil {
			logger.Warn("Kafka message at offset %d left uncommitted: %v", offset, err)
			return false
		}
		logger.Error("Kafka message at offset %d not stored (attempt %d, retrying in %v): %v", offset, attempt, delay, err)

		t := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			t.Stop()
			logger.Warn("Kafka message at offset %d left uncommitted: %v", offset, ctx.Err())
			return false
		case <-t.C:
		}
		delay = min(delay*2, c.retryMax)
	}
}

// Close releases the underlying reader.
func (c *KafkaConsumer) Close() error {
	return c.reader.Close()
}
