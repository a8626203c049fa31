package kafka

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rzzdr/option-greeks-engine/pkg/models"
	"github.com/rzzdr/option-greeks-engine/pkg/utils/backpressure"
	"github.com/rzzdr/option-greeks-engine/pkg/utils/errors"
	"github.com/rzzdr/option-greeks-engine/pkg/utils/logger"
)

// Comparer computes the analytic and simulated Greeks table
type Comparer interface {
	Compare(ctx context.Context, p models.OptionParams, numSimulations int) (*models.GreeksComparison, error)
}

// MessageRecorder counts handled messages
type MessageRecorder interface {
	RecordKafkaMessage(topic, status string)
}

// WorkerConfig configures a Worker
type WorkerConfig struct {
	// MaxSimulations caps num_simulations in requests; zero means no cap
	MaxSimulations int
	// Decimals rounds published tables; negative publishes full precision
	Decimals int
	// Throttle paces requests when set; each one waits for a token
	Throttle backpressure.RateLimiter
}

// Worker answers parameter records from the requests topic with comparison
// tables on the results topic
type Worker struct {
	consumer *Consumer
	producer *Producer
	comparer Comparer
	codec    Codec
	config   WorkerConfig
	metrics  MessageRecorder
	log      *logger.Logger
}

// NewWorker creates a worker; metrics may be nil
func NewWorker(consumer *Consumer, producer *Producer, comparer Comparer, codec Codec, config WorkerConfig, metrics MessageRecorder) *Worker {
	return &Worker{
		consumer: consumer,
		producer: producer,
		comparer: comparer,
		codec:    codec,
		config:   config,
		metrics:  metrics,
		log:      logger.GetLogger("kafka.worker"),
	}
}

// Run consumes until ctx is done
func (w *Worker) Run(ctx context.Context) error {
	w.log.Infof("Greeks worker consuming %s, publishing %s as %s",
		w.consumer.Topic(), w.producer.Topic(), w.codec.ContentType())
	return w.consumer.ConsumeMessages(ctx, w.Handle)
}

// Handle evaluates one request. Bad requests are answered with an error reply;
// only a failure to publish is returned.
func (w *Worker) Handle(ctx context.Context, msg *Message) error {
	if w.config.Throttle != nil {
		if err := w.config.Throttle.WaitN(ctx, 1); err != nil {
			return err
		}
	}

	reply := w.evaluate(ctx, msg)
	if ctx.Err() != nil && reply.Comparison == nil {
		// shutting down mid-calculation; leave the request for redelivery
		return ctx.Err()
	}
	w.record(msg.Topic, reply.statusLabel())

	value, err := w.codec.Encode(reply)
	if err != nil {
		return fmt.Errorf("failed to encode reply: %w", err)
	}

	err = w.producer.ProduceMessage(ctx, msg.Key, value, []MessageHeader{
		{Key: ContentTypeHeader, Value: []byte(w.codec.ContentType())},
	})
	w.record(w.producer.Topic(), statusOf(err))
	return err
}

func (w *Worker) evaluate(ctx context.Context, msg *Message) *Reply {
	record := models.DefaultParameterRecord()
	if err := json.Unmarshal(msg.Value, &record); err != nil {
		return errorReply(errors.InvalidArgument("invalid parameter record: " + err.Error()))
	}

	p, err := record.OptionParams()
	if err != nil {
		return errorReply(err)
	}
	if w.config.MaxSimulations > 0 && record.NumSimulations > w.config.MaxSimulations {
		return errorReply(errors.InvalidArgument(
			fmt.Sprintf("num_simulations %d exceeds the limit of %d", record.NumSimulations, w.config.MaxSimulations)))
	}

	comparison, err := w.comparer.Compare(ctx, p, record.NumSimulations)
	if err != nil {
		w.log.Warnf("Request %s rejected: %v", msg.Key, err)
		return errorReply(err)
	}
	return &Reply{Comparison: comparison.Rounded(w.config.Decimals)}
}

func (w *Worker) record(topic, status string) {
	if w.metrics != nil {
		w.metrics.RecordKafkaMessage(topic, status)
	}
}

func errorReply(err error) *Reply {
	return &Reply{Error: err.Error(), Kind: errors.TypeOf(err).String()}
}

func (r *Reply) statusLabel() string {
	if r.Kind != "" {
		return r.Kind
	}
	return "ok"
}

func statusOf(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
