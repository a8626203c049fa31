package kafka

import (
	"context"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/rzzdr/option-greeks-engine/pkg/utils/logger"
)

// MessageHandler processes one Kafka message. A returned error makes the
// consumer retry the same message after a backoff.
type MessageHandler func(context.Context, *Message) error

// messageReader is the part of *kafka.Reader the consumer uses
type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Retry backoff bounds for failed handlers
const (
	minRetryBackoff = 500 * time.Millisecond
	maxRetryBackoff = 30 * time.Second
)

// Consumer wraps a Kafka group reader with explicit commits
type Consumer struct {
	reader     messageReader
	topic      string
	minBackoff time.Duration
	maxBackoff time.Duration
	log        *logger.Logger
}

func newConsumer(r messageReader, topic string) *Consumer {
	return &Consumer{
		reader:     r,
		topic:      topic,
		minBackoff: minRetryBackoff,
		maxBackoff: maxRetryBackoff,
		log:        logger.GetLogger("kafka.consumer"),
	}
}

// Topic returns the consumed topic
func (c *Consumer) Topic() string {
	return c.topic
}

// ConsumeMessages passes messages to handler one at a time until ctx is done.
// A message is committed only after handler succeeds; a failing message is
// retried with exponential backoff and blocks the ones behind it.
func (c *Consumer) ConsumeMessages(ctx context.Context, handler MessageHandler) error {
	c.log.Infof("Starting consumer for topic: %s", c.topic)

	for {
		m, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				c.log.Infof("Context cancelled, stopping consumer for topic: %s", c.topic)
				return nil
			}
			return fmt.Errorf("failed to fetch message from %s: %w", c.topic, err)
		}

		if !c.handleWithRetry(ctx, handler, m) {
			c.log.Infof("Context cancelled, stopping consumer for topic: %s", c.topic)
			return nil
		}

		if err := c.reader.CommitMessages(ctx, m); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			c.log.Errorf("Error committing offset %d: %v", m.Offset, err)
		}
	}
}

// handleWithRetry returns false when ctx ended before handler succeeded
func (c *Consumer) handleWithRetry(ctx context.Context, handler MessageHandler, m kafka.Message) bool {
	backoff := c.minBackoff
	for {
		err := handler(ctx, fromKafka(m))
		if err == nil {
			return true
		}
		c.log.Errorf("Error processing message at %s/%d/%d, retrying in %v: %v",
			m.Topic, m.Partition, m.Offset, backoff, err)

		select {
		case <-ctx.Done():
			return false
		case <-time.After(backoff):
		}
		backoff = min(2*backoff, c.maxBackoff)
	}
}

// Close closes the reader and leaves the group
func (c *Consumer) Close() error {
	c.log.Infof("Closing consumer for topic %s", c.topic)
	return c.reader.Close()
}
