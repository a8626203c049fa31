package risk

import "time"

// Model labels used in results and metrics
const (
	ModelAnalytic  = "analytic"
	ModelSimulated = "simulated"
)

// MetricsRecorder receives timings from pricers and Greeks engines
type MetricsRecorder interface {
	RecordPricing(model string, duration time.Duration, err error)
	RecordGreeks(model string, pricerCalls int, duration time.Duration, err error)
}

type noopMetrics struct{}

func (noopMetrics) RecordPricing(string, time.Duration, error)     {}
func (noopMetrics) RecordGreeks(string, int, time.Duration, error) {}
