package kafka

import (
	"context"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/rzzdr/option-greeks-engine/pkg/utils/circuit"
	"github.com/rzzdr/option-greeks-engine/pkg/utils/logger"
)

// messageWriter is the part of *kafka.Writer the producer uses
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Producer is a wrapper around the Kafka writer for one topic. Writes go
// through a circuit breaker so an unreachable cluster fails fast.
type Producer struct {
	writer  messageWriter
	topic   string
	breaker *circuit.CircuitBreaker
	log     *logger.Logger
}

func newProducer(w messageWriter, topic string) *Producer {
	return &Producer{
		writer:  w,
		topic:   topic,
		breaker: circuit.NewCircuitBreaker("kafka.producer."+topic, circuit.DefaultConfig()),
		log:     logger.GetLogger("kafka.producer"),
	}
}

// Topic returns the topic the producer writes to
func (p *Producer) Topic() string {
	return p.topic
}

// ProduceMessage writes one message and waits for the configured acknowledgements
func (p *Producer) ProduceMessage(ctx context.Context, key, value []byte, headers []MessageHeader) error {
	msg := kafka.Message{
		Key:     key,
		Value:   value,
		Headers: toKafkaHeaders(headers),
	}
	err := p.breaker.Execute(ctx, func(ctx context.Context) error {
		return p.writer.WriteMessages(ctx, msg)
	})
	if err != nil {
		p.log.Errorf("Failed to produce message to %s (breaker %s %s): %v",
			p.topic, p.breaker.Name(), p.breaker.State(), err)
		return fmt.Errorf("failed to produce message: %w", err)
	}

	p.log.Debugf("Message with key %s produced to %s", key, p.topic)
	return nil
}

// RetryAfter is how long writes keep failing fast after repeated errors
func (p *Producer) RetryAfter() time.Duration {
	return p.breaker.RetryAfter()
}

// Close flushes pending messages and closes the writer
func (p *Producer) Close() error {
	p.log.Infof("Closing producer for topic %s", p.topic)
	return p.writer.Close()
}
