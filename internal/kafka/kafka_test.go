package kafka

import (
	"context"
	stderrors "errors"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rzzdr/option-greeks-engine/internal/risk"
	"github.com/rzzdr/option-greeks-engine/pkg/models"
	"github.com/rzzdr/option-greeks-engine/pkg/utils/backpressure"
	"github.com/rzzdr/option-greeks-engine/pkg/utils/errors"
)

// fakeReader hands out queued messages, then cancels the consuming context
type fakeReader struct {
	queue     []kafka.Message
	committed []int64
	cancel    context.CancelFunc
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	if len(r.queue) == 0 {
		r.cancel()
		return kafka.Message{}, ctx.Err()
	}
	m := r.queue[0]
	r.queue = r.queue[1:]
	return m, nil
}

func (r *fakeReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	for _, m := range msgs {
		r.committed = append(r.committed, m.Offset)
	}
	return nil
}

func (r *fakeReader) Close() error { return nil }

// fakeWriter fails the first failures writes, or every write when failures is negative
type fakeWriter struct {
	mu       sync.Mutex
	written  []kafka.Message
	calls    int
	failures int
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.calls++
	if w.failures < 0 || w.calls <= w.failures {
		return stderrors.New("broker unavailable")
	}
	w.written = append(w.written, msgs...)
	return nil
}

func (w *fakeWriter) Close() error { return nil }

type countingRecorder struct {
	counts map[string]int
}

func (c *countingRecorder) RecordKafkaMessage(topic, status string) {
	c.counts[topic+"/"+status]++
}

func testComparator() *risk.Comparator {
	analytic := risk.NewAnalyticGreeks(risk.NewBlackScholesPricer())
	mc := risk.NewMonteCarloPricer(risk.MonteCarloConfig{TimeSteps: 12}, risk.NewSource(1))
	return risk.NewComparator(analytic, risk.NewSimulatedGreeks(mc, risk.NewSource(2)))
}

func sampleComparison() *models.GreeksComparison {
	p, _ := models.DefaultParameterRecord().OptionParams()
	analytic := &models.GreeksResult{Model: "analytic", Price: 10.45,
		First:  models.FirstOrderGreeks{Delta: 0.64, Gamma: 0.019, Theta: 6.4, Vega: 37.5, Rho: 53.2},
		Second: models.SecondOrderGreeks{Charm: -0.1, Speed: 0.019, Color: -0.1, Zomma: -0.03, Veta: 6.4, Volga: 1e-7}}
	simulated := &models.GreeksResult{Model: "simulated", Price: 10.51,
		First: models.FirstOrderGreeks{Delta: 0.65, Gamma: 0.02, Theta: 6.1, Vega: 38.0, Rho: 53.9}}
	return models.NewGreeksComparison(p, 2000, analytic, simulated)
}

func TestCodecsRoundTrip(t *testing.T) {
	for _, name := range []string{"json", "proto"} {
		t.Run(name, func(t *testing.T) {
			codec, err := NewCodec(name)
			require.NoError(t, err)

			want := &Reply{Comparison: sampleComparison()}
			data, err := codec.Encode(want)
			require.NoError(t, err)
			got, err := codec.Decode(data)
			require.NoError(t, err)
			assert.Equal(t, want, got)

			errReply := &Reply{Error: "spot must be positive", Kind: "invalid_parameter"}
			data, err = codec.Encode(errReply)
			require.NoError(t, err)
			got, err = codec.Decode(data)
			require.NoError(t, err)
			assert.Equal(t, errReply, got)
		})
	}

	_, err := NewCodec("avro")
	assert.Error(t, err)
}

func TestConfigParsing(t *testing.T) {
	acks, err := parseRequiredAcks("one")
	require.NoError(t, err)
	assert.Equal(t, kafka.RequireOne, acks)

	codec, err := parseCompression("LZ4")
	require.NoError(t, err)
	assert.Equal(t, kafka.Lz4, codec)

	offset, err := parseStartOffset("latest")
	require.NoError(t, err)
	assert.Equal(t, kafka.LastOffset, offset)

	cfg := DefaultConfig()
	cfg.Compression = "brotli"
	_, err = NewClient(cfg)
	assert.Error(t, err)

	_, err = NewClient(&Config{})
	assert.Error(t, err)

	_, err = NewClient(nil)
	assert.NoError(t, err)
}

func TestWorkerAnswersEveryRequest(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reader := &fakeReader{cancel: cancel, queue: []kafka.Message{
		{Topic: "greeks.requests", Offset: 1, Key: []byte("ok"), Value: []byte(`{"num_simulations":500}`)},
		{Topic: "greeks.requests", Offset: 2, Key: []byte("bad-type"), Value: []byte(`{"option_type":"Binary"}`)},
		{Topic: "greeks.requests", Offset: 3, Key: []byte("garbage"), Value: []byte(`not json`)},
		{Topic: "greeks.requests", Offset: 4, Key: []byte("too-many"), Value: []byte(`{"num_simulations":5000}`)},
	}}
	writer := &fakeWriter{}
	rec := &countingRecorder{counts: map[string]int{}}

	w := NewWorker(newConsumer(reader, "greeks.requests"), newProducer(writer, "greeks.results"),
		testComparator(), ProtoCodec{}, WorkerConfig{MaxSimulations: 1000, Decimals: 2}, rec)
	require.NoError(t, w.Run(ctx))

	assert.Equal(t, []int64{1, 2, 3, 4}, reader.committed)
	require.Len(t, writer.written, 4)

	replies := map[string]*Reply{}
	for _, m := range writer.written {
		require.Len(t, m.Headers, 1)
		assert.Equal(t, "application/x-protobuf", string(m.Headers[0].Value))
		r, err := ProtoCodec{}.Decode(m.Value)
		require.NoError(t, err)
		replies[string(m.Key)] = r
	}

	ok := replies["ok"]
	require.NotNil(t, ok.Comparison)
	assert.Empty(t, ok.Error)
	assert.Equal(t, 500, ok.Comparison.NumSimulations)
	assert.Equal(t, models.Round(ok.Comparison.AnalyticPrice, 2), ok.Comparison.AnalyticPrice)

	assert.Equal(t, "invalid_option_type", replies["bad-type"].Kind)
	assert.Equal(t, "invalid_argument", replies["garbage"].Kind)
	assert.Equal(t, "invalid_argument", replies["too-many"].Kind)

	assert.Equal(t, 1, rec.counts["greeks.requests/ok"])
	assert.Equal(t, 2, rec.counts["greeks.requests/invalid_argument"])
	assert.Equal(t, 4, rec.counts["greeks.results/ok"])
}

func fastConsumer(r messageReader) *Consumer {
	c := newConsumer(r, "greeks.requests")
	c.minBackoff = time.Millisecond
	c.maxBackoff = 5 * time.Millisecond
	return c
}

func TestWorkerRetriesUntilPublished(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reader := &fakeReader{cancel: cancel, queue: []kafka.Message{
		{Topic: "greeks.requests", Offset: 7, Key: []byte("k"), Value: []byte(`{"option_type":"Binary"}`)},
		{Topic: "greeks.requests", Offset: 8, Key: []byte("k2"), Value: []byte(`{"option_type":"Binary"}`)},
	}}
	writer := &fakeWriter{failures: 2}

	w := NewWorker(fastConsumer(reader), newProducer(writer, "greeks.results"),
		testComparator(), JSONCodec{}, WorkerConfig{Decimals: 2}, nil)
	require.NoError(t, w.Run(ctx))

	assert.Equal(t, []int64{7, 8}, reader.committed)
	assert.Equal(t, 4, writer.calls)
	require.Len(t, writer.written, 2)
	assert.Equal(t, "k", string(writer.written[0].Key))
}

func TestWorkerStopsWritingWhileBreakerIsOpen(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	reader := &fakeReader{cancel: cancel, queue: []kafka.Message{
		{Topic: "greeks.requests", Offset: 9, Value: []byte(`{"option_type":"Binary"}`)},
	}}
	writer := &fakeWriter{failures: -1}
	producer := newProducer(writer, "greeks.results")

	w := NewWorker(fastConsumer(reader), producer, testComparator(), JSONCodec{}, WorkerConfig{Decimals: 2}, nil)
	require.NoError(t, w.Run(ctx))

	assert.Empty(t, reader.committed)
	// the breaker opens after five failures and rejects the remaining retries itself
	assert.Equal(t, 5, writer.calls)
	assert.Greater(t, producer.RetryAfter(), time.Duration(0))
}

func TestConsumerSurfacesFetchErrors(t *testing.T) {
	reader := &failingReader{err: stderrors.New("connection reset")}
	c := newConsumer(reader, "greeks.requests")

	err := c.ConsumeMessages(context.Background(), func(context.Context, *Message) error { return nil })
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection reset")
}

type failingReader struct{ err error }

func (r *failingReader) FetchMessage(context.Context) (kafka.Message, error) {
	return kafka.Message{}, r.err
}
func (r *failingReader) CommitMessages(context.Context, ...kafka.Message) error { return nil }
func (r *failingReader) Close() error                                           { return nil }

func TestErrorReplyKeepsKind(t *testing.T) {
	r := errorReply(errors.Wrap(errors.ShapeMismatch(2, 3, 4, 5), "simulating"))
	assert.Equal(t, "shape_mismatch", r.Kind)
	assert.Contains(t, r.Error, "(2, 3)")
}

func TestWorkerThrottleHoldsBackRequests(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	reader := &fakeReader{cancel: cancel, queue: []kafka.Message{
		{Topic: "greeks.requests", Offset: 1, Value: []byte(`{"option_type":"Binary"}`)},
		{Topic: "greeks.requests", Offset: 2, Value: []byte(`{"option_type":"Binary"}`)},
	}}
	writer := &fakeWriter{}

	// one request up front, the next only after about a thousand seconds
	throttle := backpressure.NewTokenBucketLimiter(0.001, 1)
	w := NewWorker(fastConsumer(reader), newProducer(writer, "greeks.results"), testComparator(), JSONCodec{},
		WorkerConfig{Decimals: 2, Throttle: throttle}, nil)
	require.NoError(t, w.Run(ctx))

	assert.Equal(t, []int64{1}, reader.committed)
	assert.Len(t, writer.written, 1)
}
