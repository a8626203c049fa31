package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/rzzdr/option-greeks-engine/config"
	"github.com/rzzdr/option-greeks-engine/internal/adapters"
	"github.com/rzzdr/option-greeks-engine/internal/websocket"
	"github.com/rzzdr/option-greeks-engine/pkg/api"
	"github.com/rzzdr/option-greeks-engine/pkg/metrics"
	"github.com/rzzdr/option-greeks-engine/pkg/utils/logger"
)

var (
	configFile = flag.String("config", config.GetConfigPath(), "Path to configuration file")
)

func main() {
	// Parse command line flags
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configFile)
	if err != nil {
		logger.GetLogger("api.main").Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize logger
	logger.Init(cfg.App.LogLevel, cfg.App.Environment)
	log := logger.GetLogger("api.main")
	log.Info("Starting Option Greeks API Service")

	if cfg.App.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	// Create a context that will be canceled on program termination
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize metrics recorder
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	recorder := metrics.NewRecorder(cfg.Metrics.Prometheus.Namespace, registry)
	go metrics.CollectSystemMetrics(ctx, recorder, 15*time.Second)

	engines, err := adapters.NewEngines(cfg.Pricing, adapters.NewMetricsAdapter(recorder))
	if err != nil {
		log.Fatalf("Failed to create pricing engines: %v", err)
	}

	// Websocket hub streams every result to subscribed clients
	hub := websocket.NewHub()
	hub.OnClientCountChange(recorder.RecordWebsocketClients)
	hubStopped := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(hubStopped)
	}()

	apiServer := api.NewServer(
		api.Config{
			Host:            cfg.API.Host,
			Port:            cfg.API.Port,
			ReadTimeout:     cfg.API.ReadTimeout,
			WriteTimeout:    cfg.API.WriteTimeout,
			MaxSimulations:  cfg.Pricing.MaxSimulations,
			DisplayDecimals: cfg.Pricing.DisplayDecimals,
			RateLimit:       float64(cfg.API.RateLimit),
			RateBurst:       cfg.API.RateBurst,
			AllowedOrigins:  cfg.API.CORS.AllowedOrigins,
			AllowedMethods:  cfg.API.CORS.AllowedMethods,
			AllowedHeaders:  cfg.API.CORS.AllowedHeaders,
		},
		engines,
		api.WithMetrics(recorder, registry),
		api.WithPublisher(hub),
		api.WithWebsocket(hub),
	)

	// Start API server
	go func() {
		if err := apiServer.Start(); err != nil {
			log.Errorf("API server error: %v", err)
			cancel() // Cancel context to signal shutdown
		}
	}()

	// Prometheus scrape endpoint on its own port
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

	select {
	case sig := <-sigChan:
		log.Infof("Received signal %v, initiating shutdown", sig)
	case <-ctx.Done():
		log.Info("Server stopped, initiating shutdown")
	}

	// Create a context with timeout for shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.API.ShutdownTimeout)
	defer shutdownCancel()

	if err := apiServer.Stop(shutdownCtx); err != nil {
		log.Errorf("API server shutdown error: %v", err)
	}
	if promServer != nil {
		if err := promServer.Stop(shutdownCtx); err != nil {
			log.Errorf("Prometheus server shutdown error: %v", err)
		}
	}
	cancel()

	// hijacked websocket connections outlive the HTTP server
	<-hubStopped
	hub.Wait()

	log.Info("Shutdown complete")
}
