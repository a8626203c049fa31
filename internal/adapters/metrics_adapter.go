package adapters

import (
	"time"

	"github.com/rzzdr/option-greeks-engine/internal/risk"
	"github.com/rzzdr/option-greeks-engine/pkg/metrics"
	"github.com/rzzdr/option-greeks-engine/pkg/utils/errors"
)

// MetricsAdapter adapts *metrics.Recorder to satisfy the MetricsRecorder interface
// that the pricers and Greeks engines expect
type MetricsAdapter struct {
	recorder *metrics.Recorder
}

var _ risk.MetricsRecorder = (*MetricsAdapter)(nil) // Ensure MetricsAdapter implements risk.MetricsRecorder

// NewMetricsAdapter creates a new MetricsAdapter
func NewMetricsAdapter(recorder *metrics.Recorder) *MetricsAdapter {
	return &MetricsAdapter{
		recorder: recorder,
	}
}

// RecordPricing implements risk.MetricsRecorder
func (a *MetricsAdapter) RecordPricing(model string, duration time.Duration, err error) {
	if a.recorder != nil {
		a.recorder.RecordPricing(model, Status(err), duration)
	}
}

// RecordGreeks implements risk.MetricsRecorder
func (a *MetricsAdapter) RecordGreeks(model string, pricerCalls int, duration time.Duration, err error) {
	if a.recorder != nil {
		a.recorder.RecordGreeks(model, Status(err), pricerCalls, duration)
	}
}

// Status turns an error into a low-cardinality metrics label
func Status(err error) string {
	if err == nil {
		return "ok"
	}
	return errors.TypeOf(err).String()
}
