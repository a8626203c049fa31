package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/rzzdr/option-greeks-engine/internal/risk"
	"github.com/rzzdr/option-greeks-engine/pkg/metrics"
	"github.com/rzzdr/option-greeks-engine/pkg/utils/backpressure"
	"github.com/rzzdr/option-greeks-engine/pkg/utils/logger"
)

// Config holds the configuration for the API server
type Config struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	// MaxSimulations caps num_simulations in requests; zero means no cap
	MaxSimulations int
	// DisplayDecimals is the default rounding of comparison tables
	DisplayDecimals int

	// RateLimit is simulation requests per second per client; zero disables limiting
	RateLimit float64
	RateBurst int

	AllowedOrigins []string
	AllowedMethods []string
	AllowedHeaders []string
}

// Engines are the pricers and Greeks engines served over HTTP
type Engines struct {
	Pricer     *risk.BlackScholesPricer
	Simulator  *risk.MonteCarloPricer
	Analytic   *risk.AnalyticGreeks
	Simulated  *risk.SimulatedGreeks
	Comparator *risk.Comparator
}

// Publisher receives every computed result, e.g. the websocket hub
type Publisher interface {
	Publish(feed string, payload interface{})
}

// WebsocketHandler upgrades /ws connections
type WebsocketHandler interface {
	HandleWebSocket(w http.ResponseWriter, r *http.Request)
}

// Server represents the API server
type Server struct {
	config     Config
	router     *gin.Engine
	httpServer *http.Server
	handlers   *Handlers
	limiters   *backpressure.RateLimiterManager
	recorder   *metrics.Recorder
	gatherer   prometheus.Gatherer
	ws         WebsocketHandler
	log        *logger.Logger
}

// Option customises a Server
type Option func(*Server)

// WithMetrics records request metrics with recorder and serves gatherer on /metrics
func WithMetrics(recorder *metrics.Recorder, gatherer prometheus.Gatherer) Option {
	return func(s *Server) {
		s.recorder = recorder
		s.gatherer = gatherer
	}
}

// WithPublisher pushes results to p
func WithPublisher(p Publisher) Option {
	return func(s *Server) {
		s.handlers.publisher = p
	}
}

// WithWebsocket serves the result stream on /api/v1/ws
func WithWebsocket(ws WebsocketHandler) Option {
	return func(s *Server) {
		s.ws = ws
	}
}

// NewServer creates a new API server
func NewServer(config Config, engines Engines, opts ...Option) *Server {
	// Apply defaults if needed
	if config.ReadTimeout <= 0 {
		config.ReadTimeout = 10 * time.Second
	}
	if config.WriteTimeout <= 0 {
		config.WriteTimeout = 60 * time.Second
	}

	server := &Server{
		config:   config,
		router:   gin.New(),
		handlers: NewHandlers(engines, config.MaxSimulations, config.DisplayDecimals),
		log:      logger.GetLogger("api.server"),
	}
	if config.RateLimit > 0 {
		server.limiters = backpressure.NewRateLimiterManager(config.RateLimit, config.RateBurst)
	}

	for _, opt := range opts {
		opt(server)
	}

	// Setup routes
	server.setupRoutes()

	return server
}

// Handler returns the router, mostly for tests
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start starts the API server; it blocks until Stop
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}

	s.log.Infof("Starting API server on %s", addr)

	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop stops the API server gracefully
func (s *Server) Stop(ctx context.Context) error {
	if s.httpServer != nil {
		s.log.Info("Stopping API server")
		return s.httpServer.Shutdown(ctx)
	}

	return nil
}

// setupRoutes configures the API routes
func (s *Server) setupRoutes() {
	// Apply common middleware
	s.router.Use(ErrorMiddleware())
	s.router.Use(LoggingMiddleware())
	if s.recorder != nil {
		s.router.Use(MetricsMiddleware(s.recorder))
	}
	s.router.Use(CORSMiddleware(s.config.AllowedOrigins, s.config.AllowedMethods, s.config.AllowedHeaders))

	// API version prefix
	api := s.router.Group("/api/v1")

	api.GET("/health", s.handlers.HealthCheckHandler)
	api.GET("/metrics", gin.WrapH(metrics.Handler(s.gatherer)))
	if s.ws != nil {
		api.GET("/ws", gin.WrapF(s.ws.HandleWebSocket))
	}

	// Closed-form endpoints are cheap and never limited
	api.POST("/price/analytic", s.handlers.PriceAnalyticHandler)
	api.POST("/greeks/analytic", s.handlers.AnalyticGreeksHandler)
	api.POST("/implied-volatility", s.handlers.ImpliedVolatilityHandler)

	simulated := api.Group("")
	if s.limiters != nil {
		simulated.Use(RateLimitMiddleware(s.limiters))
	}
	simulated.POST("/price/simulated", s.handlers.PriceSimulatedHandler)
	simulated.POST("/greeks/simulated", s.handlers.SimulatedGreeksHandler)
	simulated.POST("/greeks/compare", s.handlers.CompareHandler)
}
