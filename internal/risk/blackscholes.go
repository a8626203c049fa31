package risk

import (
	"math"
	"time"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/rzzdr/option-greeks-engine/pkg/models"
	"github.com/rzzdr/option-greeks-engine/pkg/utils/errors"
	"github.com/rzzdr/option-greeks-engine/pkg/utils/logger"
)

// BlackScholesPricer implements the closed-form Black-Scholes-Merton price of a
// European option on an asset paying a continuous dividend yield
type BlackScholesPricer struct {
	metrics MetricsRecorder
	log     *logger.Logger
}

// NewBlackScholesPricer creates a new Black-Scholes pricer
func NewBlackScholesPricer() *BlackScholesPricer {
	return &BlackScholesPricer{
		metrics: noopMetrics{},
		log:     logger.GetLogger("risk.blackscholes"),
	}
}

// SetMetricsRecorder sets the recorder notified after every price
func (bs *BlackScholesPricer) SetMetricsRecorder(m MetricsRecorder) {
	if m != nil {
		bs.metrics = m
	}
}

// Price calculates the price of an option
func (bs *BlackScholesPricer) Price(p models.OptionParams) (float64, error) {
	start := time.Now()
	price, err := blackScholes(p)
	bs.metrics.RecordPricing(ModelAnalytic, time.Since(start), err)
	return price, err
}

func blackScholes(p models.OptionParams) (float64, error) {
	if err := validateParams(p); err != nil {
		return 0, err
	}

	S, K, T, r, sigma, q := p.Spot, p.Strike, p.Expiry, p.Rate, p.Volatility, p.DividendYield
	discountedSpot := S * math.Exp(-q*T)
	discountedStrike := K * math.Exp(-r*T)

	// d1 is undefined without volatility; the price collapses to discounted intrinsic value
	if sigma == 0 {
		if p.Type == models.OptionTypeCall {
			return math.Max(discountedSpot-discountedStrike, 0), nil
		}
		return math.Max(discountedStrike-discountedSpot, 0), nil
	}

	d1, d2 := calculateD1D2(S, K, T, r, sigma, q)

	if p.Type == models.OptionTypeCall {
		return discountedSpot*normalCDF(d1) - discountedStrike*normalCDF(d2), nil
	}
	return discountedStrike*normalCDF(-d2) - discountedSpot*normalCDF(-d1), nil
}

func calculateD1D2(S, K, T, r, sigma, q float64) (float64, float64) {
	volSqrtT := sigma * math.Sqrt(T)
	d1 := (math.Log(S/K) + (r-q+0.5*sigma*sigma)*T) / volSqrtT
	return d1, d1 - volSqrtT
}

// validateParams enforces S>0, K>0, T>0, sigma>=0 and a known option type
func validateParams(p models.OptionParams) error {
	switch {
	case !(p.Spot > 0):
		return errors.InvalidParameterf("underlying asset price (S) must be greater than zero, got %v", p.Spot)
	case !(p.Strike > 0):
		return errors.InvalidParameterf("strike price (K) must be greater than zero, got %v", p.Strike)
	case !(p.Expiry > 0):
		return errors.InvalidParameterf("time to expiration (T) must be greater than zero, got %v", p.Expiry)
	case !(p.Volatility >= 0):
		return errors.InvalidParameterf("volatility (sigma) must be non-negative, got %v", p.Volatility)
	case math.IsNaN(p.Rate) || math.IsNaN(p.DividendYield):
		return errors.InvalidParameter("rate and dividend yield must be real numbers")
	}
	if !p.Type.Valid() {
		return errors.InvalidOptionType(string(p.Type))
	}
	return nil
}

// ImpliedVolatility solves for the volatility that reproduces marketPrice
// using Newton-Raphson on the analytic price
func (bs *BlackScholesPricer) ImpliedVolatility(p models.OptionParams, marketPrice float64) (float64, error) {
	if !(marketPrice > 0) {
		return 0, errors.InvalidParameterf("market price must be greater than zero, got %v", marketPrice)
	}

	const (
		precision     = 1e-8
		maxIterations = 100
		minSigma      = 0.001
		maxSigma      = 5.0
	)

	p.Volatility = 0.2
	for i := 0; i < maxIterations; i++ {
		price, err := blackScholes(p)
		if err != nil {
			return 0, err
		}

		diff := price - marketPrice
		if math.Abs(diff) < precision {
			return p.Volatility, nil
		}

		d1, _ := calculateD1D2(p.Spot, p.Strike, p.Expiry, p.Rate, p.Volatility, p.DividendYield)
		vega := p.Spot * math.Exp(-p.DividendYield*p.Expiry) * normalPDF(d1) * math.Sqrt(p.Expiry)
		if vega < 1e-12 {
			break
		}

		p.Volatility -= diff / vega
		if p.Volatility <= minSigma {
			p.Volatility = minSigma
		} else if p.Volatility > maxSigma {
			return 0, errors.InvalidParameterf("no implied volatility below %v reproduces price %v", maxSigma, marketPrice)
		}
	}

	bs.log.Warnf("Implied volatility did not converge for %s S=%v K=%v T=%v price=%v",
		p.Type, p.Spot, p.Strike, p.Expiry, marketPrice)
	return 0, errors.Internal("implied volatility calculation did not converge")
}

// normalCDF returns the cumulative distribution function of the standard normal distribution
func normalCDF(x float64) float64 {
	return distuv.UnitNormal.CDF(x)
}

// normalPDF returns the probability density function of the standard normal distribution
func normalPDF(x float64) float64 {
	return distuv.UnitNormal.Prob(x)
}
