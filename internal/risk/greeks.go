package risk

import (
	"context"
	"strings"
	"time"

	"github.com/rzzdr/option-greeks-engine/pkg/models"
	"github.com/rzzdr/option-greeks-engine/pkg/utils/errors"
	"github.com/rzzdr/option-greeks-engine/pkg/utils/logger"
)

// SecondOrderMode selects the second-order finite-difference formulas
type SecondOrderMode string

const (
	// SecondOrderLegacy keeps the historical formulas, including the analytic
	// engine's Speed==Gamma, Color==Charm and Volga==Zomma collapses
	SecondOrderLegacy SecondOrderMode = "legacy"
	// SecondOrderTextbook uses true cross derivatives with respect to S, sigma
	// and time to expiry T
	SecondOrderTextbook SecondOrderMode = "textbook"
)

// ParseSecondOrderMode parses "legacy" or "textbook"; empty means legacy
func ParseSecondOrderMode(s string) (SecondOrderMode, error) {
	switch SecondOrderMode(strings.ToLower(strings.TrimSpace(s))) {
	case "", SecondOrderLegacy:
		return SecondOrderLegacy, nil
	case SecondOrderTextbook:
		return SecondOrderTextbook, nil
	}
	return "", errors.InvalidArgument("second order mode must be 'legacy' or 'textbook', got " + s)
}

// Fixed absolute steps of the analytic engine
const (
	AnalyticSpotStep       = 0.01
	AnalyticVolatilityStep = 0.01
	AnalyticRateStep       = 0.01
	AnalyticTimeStep       = 1.0 / 365
)

// greekStencils names the stencil behind every Greek
type greekStencils struct {
	delta, gamma, theta, vega, rho            Stencil
	charm, speed, color, zomma, veta, volga Stencil
}

func (g greekStencils) all() []Stencil {
	return []Stencil{
		g.delta, g.gamma, g.theta, g.vega, g.rho,
		g.charm, g.speed, g.color, g.zomma, g.veta, g.volga,
	}
}

// evaluate prices the base point first, since every Greek depends on it, then
// the remaining bumps, then combines them
func (g greekStencils) evaluate(ctx context.Context, s *Surface) (*models.GreeksResult, error) {
	price, err := s.At(Shift{})
	if err != nil {
		return nil, err
	}
	if err := s.Prefetch(ctx, g.all()...); err != nil {
		return nil, err
	}

	res := &models.GreeksResult{Price: price}
	targets := []struct {
		st  Stencil
		out *float64
	}{
		{g.delta, &res.First.Delta},
		{g.gamma, &res.First.Gamma},
		{g.theta, &res.First.Theta},
		{g.vega, &res.First.Vega},
		{g.rho, &res.First.Rho},
		{g.charm, &res.Second.Charm},
		{g.speed, &res.Second.Speed},
		{g.color, &res.Second.Color},
		{g.zomma, &res.Second.Zomma},
		{g.veta, &res.Second.Veta},
		{g.volga, &res.Second.Volga},
	}
	for _, t := range targets {
		v, err := s.Eval(t.st)
		if err != nil {
			return nil, err
		}
		*t.out = v
	}
	return res, nil
}

// AnalyticGreeks computes finite-difference Greeks of the Black-Scholes price
type AnalyticGreeks struct {
	price   PriceFunc
	mode    SecondOrderMode
	workers int
	metrics MetricsRecorder
	log     *logger.Logger
}

// NewAnalyticGreeks creates an analytic Greeks engine on top of pricer
func NewAnalyticGreeks(pricer *BlackScholesPricer) *AnalyticGreeks {
	return &AnalyticGreeks{
		price:   pricer.Price,
		mode:    SecondOrderLegacy,
		workers: 1,
		metrics: noopMetrics{},
		log:     logger.GetLogger("risk.greeks.analytic"),
	}
}

// SetSecondOrderMode selects legacy or textbook second-order formulas
func (g *AnalyticGreeks) SetSecondOrderMode(mode SecondOrderMode) {
	g.mode = mode
}

// SetWorkers bounds the concurrent pricer calls of one calculation
func (g *AnalyticGreeks) SetWorkers(workers int) {
	if workers > 0 {
		g.workers = workers
	}
}

// SetMetricsRecorder sets the recorder notified after every calculation
func (g *AnalyticGreeks) SetMetricsRecorder(m MetricsRecorder) {
	if m != nil {
		g.metrics = m
	}
}

// Steps returns the fixed step sizes
func (g *AnalyticGreeks) Steps() Steps {
	var h Steps
	h[AxisSpot] = AnalyticSpotStep
	h[AxisVolatility] = AnalyticVolatilityStep
	h[AxisRate] = AnalyticRateStep
	h[AxisTime] = AnalyticTimeStep
	return h
}

// Calculate returns first- and second-order Greeks for p. Pricer errors,
// including those of perturbed points such as sigma-0.01<0 or T-1/365<=0,
// abort the calculation and are returned unchanged.
func (g *AnalyticGreeks) Calculate(ctx context.Context, p models.OptionParams) (*models.GreeksResult, error) {
	start := time.Now()
	surface := NewSurface(p, g.Steps(), g.price, g.workers)

	res, err := g.stencils().evaluate(ctx, surface)
	g.metrics.RecordGreeks(ModelAnalytic, surface.Calls(), time.Since(start), err)
	if err != nil {
		g.log.Debugf("Analytic Greeks failed for %s S=%v K=%v T=%v sigma=%v: %v",
			p.Type, p.Spot, p.Strike, p.Expiry, p.Volatility, err)
		return nil, err
	}

	res.Model = ModelAnalytic
	return res, nil
}

func (g *AnalyticGreeks) stencils() greekStencils {
	set := greekStencils{
		delta: Central1(AxisSpot),
		gamma: Central2(AxisSpot),
		// (V(T+h)-V(T))/h with h=1/365: annualised, and positive when the option
		// gains value with more time to expiry (opposite of the usual decay sign)
		theta: Forward1(AxisTime),
		vega:  Central1(AxisVolatility),
		rho:   Central1(AxisRate),
	}

	if g.mode == SecondOrderTextbook {
		set.charm = Central1(AxisSpot).Then(Forward1(AxisTime))
		set.speed = Central1(AxisSpot).Then(Central2(AxisSpot))
		set.color = Central2(AxisSpot).Then(Forward1(AxisTime))
		set.zomma = Central2(AxisSpot).Then(Central1(AxisVolatility))
		set.veta = Central1(AxisVolatility).Then(Forward1(AxisTime))
		set.volga = Central2(AxisVolatility)
		return set
	}

	// (V(T-h)-V(T))/h, one step back in time to expiry
	backInTime := Diff(AxisTime, map[int]float64{-1: 1, 0: -1}, 1, 1)

	set.charm = backInTime
	// Known defect kept for compatibility: Speed is the Gamma stencil, not a third derivative
	set.speed = Central2(AxisSpot)
	// Known defect kept for compatibility: Color is the Charm stencil
	set.color = backInTime
	set.zomma = Central2(AxisVolatility)
	set.veta = Forward1(AxisTime)
	// Known defect kept for compatibility: Volga is the Zomma stencil
	set.volga = Central2(AxisVolatility)
	return set
}
