package kafka

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/rzzdr/option-greeks-engine/pkg/utils/logger"
)

// Client configuration options
type Config struct {
	Brokers        []string
	GroupID        string
	StartOffset    string
	SessionTimeout time.Duration
	MaxWait        time.Duration
	RequiredAcks   string
	Compression    string
	BatchSize      int
	BatchTimeout   time.Duration
	MaxAttempts    int
}

// Message represents a Kafka message
type Message struct {
	Key       []byte
	Value     []byte
	Topic     string
	Partition int
	Offset    int64
	Timestamp time.Time
	Headers   []MessageHeader
}

// MessageHeader represents a Kafka message header
type MessageHeader struct {
	Key   string
	Value []byte
}

// Header returns the value of the first header named key
func (m *Message) Header(key string) string {
	for _, h := range m.Headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}

func fromKafka(m kafka.Message) *Message {
	msg := &Message{
		Key:       m.Key,
		Value:     m.Value,
		Topic:     m.Topic,
		Partition: m.Partition,
		Offset:    m.Offset,
		Timestamp: m.Time,
	}
	if len(m.Headers) > 0 {
		msg.Headers = make([]MessageHeader, len(m.Headers))
		for i, h := range m.Headers {
			msg.Headers[i] = MessageHeader{Key: h.Key, Value: h.Value}
		}
	}
	return msg
}

func toKafkaHeaders(headers []MessageHeader) []kafka.Header {
	if len(headers) == 0 {
		return nil
	}
	out := make([]kafka.Header, len(headers))
	for i, h := range headers {
		out[i] = kafka.Header{Key: h.Key, Value: h.Value}
	}
	return out
}

// Client creates readers and writers against one cluster
type Client struct {
	config *Config
	log    *logger.Logger
}

// NewClient creates a new Kafka client
func NewClient(config *Config) (*Client, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if len(config.Brokers) == 0 {
		return nil, fmt.Errorf("kafka: at least one broker is required")
	}
	if _, err := parseRequiredAcks(config.RequiredAcks); err != nil {
		return nil, err
	}
	if _, err := parseCompression(config.Compression); err != nil {
		return nil, err
	}
	if _, err := parseStartOffset(config.StartOffset); err != nil {
		return nil, err
	}

	return &Client{
		config: config,
		log:    logger.GetLogger("kafka.client"),
	}, nil
}

// DefaultConfig returns a default configuration
func DefaultConfig() *Config {
	return &Config{
		Brokers:        []string{"localhost:9092"},
		GroupID:        "greeks-worker",
		StartOffset:    "earliest",
		SessionTimeout: 30 * time.Second,
		MaxWait:        500 * time.Millisecond,
		RequiredAcks:   "all",
		Compression:    "snappy",
		BatchSize:      100,
		BatchTimeout:   10 * time.Millisecond,
		MaxAttempts:    3,
	}
}

// NewProducer creates a new Kafka producer writing to topic
func (c *Client) NewProducer(topic string) *Producer {
	acks, _ := parseRequiredAcks(c.config.RequiredAcks)
	codec, _ := parseCompression(c.config.Compression)

	writer := &kafka.Writer{
		Addr:                   kafka.TCP(c.config.Brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           acks,
		Compression:            codec,
		BatchSize:              c.config.BatchSize,
		BatchTimeout:           c.config.BatchTimeout,
		MaxAttempts:            c.config.MaxAttempts,
		AllowAutoTopicCreation: true,
	}

	c.log.Infof("Kafka producer created for topic %s on %v", topic, c.config.Brokers)
	return newProducer(writer, topic)
}

// NewConsumer creates a group consumer for topic
func (c *Client) NewConsumer(topic string) *Consumer {
	offset, _ := parseStartOffset(c.config.StartOffset)

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        c.config.Brokers,
		GroupID:        c.config.GroupID,
		Topic:          topic,
		StartOffset:    offset,
		SessionTimeout: c.config.SessionTimeout,
		MaxWait:        c.config.MaxWait,
		MaxBytes:       10e6, // 10MB
	})

	c.log.Infof("Kafka consumer created for topic %s in group %s", topic, c.config.GroupID)
	return newConsumer(reader, topic)
}

// EnsureTopicExists creates topic on the controller unless it already exists
func (c *Client) EnsureTopicExists(ctx context.Context, topic string, partitions, replicationFactor int) error {
	conn, err := kafka.DialContext(ctx, "tcp", c.config.Brokers[0])
	if err != nil {
		return fmt.Errorf("failed to dial kafka: %w", err)
	}
	defer conn.Close()

	existing, err := conn.ReadPartitions()
	if err != nil {
		return fmt.Errorf("failed to list topics: %w", err)
	}
	for _, p := range existing {
		if p.Topic == topic {
			c.log.Infof("Topic %s already exists", topic)
			return nil
		}
	}

	controller, err := conn.Controller()
	if err != nil {
		return fmt.Errorf("failed to find controller: %w", err)
	}
	ctrl, err := kafka.DialContext(ctx, "tcp", net.JoinHostPort(controller.Host, strconv.Itoa(controller.Port)))
	if err != nil {
		return fmt.Errorf("failed to dial controller: %w", err)
	}
	defer ctrl.Close()

	c.log.Infof("Creating topic %s with %d partitions and replication factor %d", topic, partitions, replicationFactor)
	err = ctrl.CreateTopics(kafka.TopicConfig{
		Topic:             topic,
		NumPartitions:     partitions,
		ReplicationFactor: replicationFactor,
	})
	if err != nil {
		return fmt.Errorf("failed to create topic %s: %w", topic, err)
	}
	return nil
}

func parseRequiredAcks(s string) (kafka.RequiredAcks, error) {
	switch strings.ToLower(s) {
	case "", "all", "-1":
		return kafka.RequireAll, nil
	case "one", "1":
		return kafka.RequireOne, nil
	case "none", "0":
		return kafka.RequireNone, nil
	}
	return 0, fmt.Errorf("kafka: unknown required_acks %q", s)
}

func parseCompression(s string) (kafka.Compression, error) {
	switch strings.ToLower(s) {
	case "", "none":
		return 0, nil
	case "gzip":
		return kafka.Gzip, nil
	case "snappy":
		return kafka.Snappy, nil
	case "lz4":
		return kafka.Lz4, nil
	case "zstd":
		return kafka.Zstd, nil
	}
	return 0, fmt.Errorf("kafka: unknown compression_type %q", s)
}

func parseStartOffset(s string) (int64, error) {
	switch strings.ToLower(s) {
	case "", "earliest":
		return kafka.FirstOffset, nil
	case "latest":
		return kafka.LastOffset, nil
	}
	return 0, fmt.Errorf("kafka: unknown start_offset %q", s)
}
