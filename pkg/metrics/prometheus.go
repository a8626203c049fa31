package metrics

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rzzdr/option-greeks-engine/pkg/utils/logger"
)

// PrometheusServer is a server that exposes Prometheus metrics
type PrometheusServer struct {
	server *http.Server
	log    *logger.Logger
}

// Handler returns the exposition handler for gatherer; nil means the default registry
func Handler(gatherer prometheus.Gatherer) http.Handler {
	if gatherer == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// NewPrometheusServer creates a new Prometheus metrics server
func NewPrometheusServer(port int, gatherer prometheus.Gatherer) *PrometheusServer {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler(gatherer))

	return &PrometheusServer{
		server: &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		},
		log: logger.GetLogger("metrics.prometheus"),
	}
}

// Start starts the Prometheus metrics server; it blocks until Stop
func (p *PrometheusServer) Start() error {
	p.log.Infof("Starting Prometheus metrics server on %s", p.server.Addr)
	if err := p.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop stops the Prometheus metrics server
func (p *PrometheusServer) Stop(ctx context.Context) error {
	p.log.Info("Stopping Prometheus metrics server")
	return p.server.Shutdown(ctx)
}

// CollectSystemMetrics samples goroutine count and heap usage every interval until ctx ends
func CollectSystemMetrics(ctx context.Context, r *Recorder, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var mem runtime.MemStats
	for {
		runtime.ReadMemStats(&mem)
		r.RecordMemoryUsage(mem.HeapAlloc)
		r.RecordGoroutineCount(runtime.NumGoroutine())

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
