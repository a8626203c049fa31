package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/rzzdr/option-greeks-engine/config"
	"github.com/rzzdr/option-greeks-engine/internal/adapters"
	"github.com/rzzdr/option-greeks-engine/internal/kafka"
	"github.com/rzzdr/option-greeks-engine/pkg/metrics"
	"github.com/rzzdr/option-greeks-engine/pkg/utils/backpressure"
	"github.com/rzzdr/option-greeks-engine/pkg/utils/logger"
)

var (
	configFile   = flag.String("config", config.GetConfigPath(), "Path to configuration file")
	createTopics = flag.Bool("create-topics", false, "Create the request and result topics when missing")
)

func main() {
	// Parse command line flags
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configFile)
	if err != nil {
		logger.GetLogger("worker.main").Fatalf("Failed to load configuration: %v", err)
	}

	logger.Init(cfg.App.LogLevel, cfg.App.Environment)
	log := logger.GetLogger("worker.main")
	log.Info("Starting Option Greeks Kafka Worker")

	// Create a context that will be canceled on program termination
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize metrics recorder
	registry := prometheus.NewRegistry()
	recorder := metrics.NewRecorder(cfg.Metrics.Prometheus.Namespace, registry)

	engines, err := adapters.NewEngines(cfg.Pricing, adapters.NewMetricsAdapter(recorder))
	if err != nil {
		log.Fatalf("Failed to create pricing engines: %v", err)
	}

	codec, err := kafka.NewCodec(cfg.Kafka.Encoding)
	if err != nil {
		log.Fatalf("Failed to create codec: %v", err)
	}

	// Create Kafka client
	kafkaClient, err := kafka.NewClient(&kafka.Config{
		Brokers:        cfg.Kafka.Brokers,
		GroupID:        cfg.Kafka.Consumer.GroupID,
		StartOffset:    cfg.Kafka.Consumer.StartOffset,
		SessionTimeout: cfg.Kafka.Consumer.SessionTimeout,
		MaxWait:        cfg.Kafka.Consumer.MaxWait,
		RequiredAcks:   cfg.Kafka.Producer.RequiredAcks,
		Compression:    cfg.Kafka.Producer.CompressionType,
		BatchSize:      cfg.Kafka.Producer.BatchSize,
		BatchTimeout:   cfg.Kafka.Producer.BatchTimeout,
		MaxAttempts:    cfg.Kafka.Producer.MaxAttempts,
	})
	if err != nil {
		log.Fatalf("Failed to create Kafka client: %v", err)
	}

	if *createTopics {
		for _, topic := range []string{cfg.Kafka.Topics.GreeksRequests, cfg.Kafka.Topics.GreeksResults} {
			if err := kafkaClient.EnsureTopicExists(ctx, topic, 1, 1); err != nil {
				log.Fatalf("Failed to ensure topic %s: %v", topic, err)
			}
		}
	}

	consumer := kafkaClient.NewConsumer(cfg.Kafka.Topics.GreeksRequests)
	producer := kafkaClient.NewProducer(cfg.Kafka.Topics.GreeksResults)

	workerConfig := kafka.WorkerConfig{
		MaxSimulations: cfg.Pricing.MaxSimulations,
		Decimals:       cfg.Pricing.DisplayDecimals,
	}
	if cfg.Kafka.Consumer.RateLimit > 0 {
		workerConfig.Throttle = backpressure.NewTokenBucketLimiter(cfg.Kafka.Consumer.RateLimit, cfg.Kafka.Consumer.RateBurst)
	}
	worker := kafka.NewWorker(consumer, producer, engines.Comparator, codec, workerConfig, recorder)

	// Start metrics server
	var promServer *metrics.PrometheusServer
	if cfg.Metrics.Prometheus.Enabled {
		promServer = metrics.NewPrometheusServer(cfg.Metrics.Prometheus.Port, registry)
		go func() {
			if err := promServer.Start(); err != nil {
				log.Errorf("Prometheus server error: %v", err)
			}
		}()
	}

	// Setup signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		log.Infof("Received signal %v, initiating shutdown", sig)
		cancel()
	}()

	if err := worker.Run(ctx); err != nil {
		log.Errorf("Worker stopped: %v", err)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.API.ShutdownTimeout)
	defer shutdownCancel()

	if err := consumer.Close(); err != nil {
		log.Errorf("Consumer shutdown error: %v", err)
	}
	if err := producer.Close(); err != nil {
		log.Errorf("Producer shutdown error: %v", err)
	}
	if promServer != nil {
		if err := promServer.Stop(shutdownCtx); err != nil {
			log.Errorf("Prometheus server shutdown error: %v", err)
		}
	}

	log.Info("Shutdown complete")
}
