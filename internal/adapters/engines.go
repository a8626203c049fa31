package adapters

import (
	"github.com/rzzdr/option-greeks-engine/config"
	"github.com/rzzdr/option-greeks-engine/internal/risk"
	"github.com/rzzdr/option-greeks-engine/pkg/api"
	"github.com/rzzdr/option-greeks-engine/pkg/utils/errors"
)

// NewEngines wires the pricers and Greeks engines from the pricing section.
// A nonzero seed makes every simulation reproducible across restarts.
func NewEngines(cfg config.PricingConfig, recorder risk.MetricsRecorder) (api.Engines, error) {
	mode, err := risk.ParseSecondOrderMode(cfg.SecondOrderMode)
	if err != nil {
		return api.Engines{}, errors.Wrap(err, "pricing.second_order_mode")
	}

	pricer := risk.NewBlackScholesPricer()
	pricer.SetMetricsRecorder(recorder)

	simulator := risk.NewMonteCarloPricer(risk.MonteCarloConfig{
		TimeSteps: cfg.TimeSteps,
		Workers:   cfg.Workers,
	}, risk.NewSource(cfg.Seed))
	simulator.SetMetricsRecorder(recorder)

	analytic := risk.NewAnalyticGreeks(pricer)
	analytic.SetSecondOrderMode(mode)
	analytic.SetWorkers(cfg.Workers)
	analytic.SetMetricsRecorder(recorder)

	greeksSeed := cfg.Seed
	if greeksSeed != 0 {
		greeksSeed++
	}
	simulated := risk.NewSimulatedGreeks(simulator, risk.NewSource(greeksSeed))
	simulated.SetSecondOrderMode(mode)
	simulated.SetWorkers(cfg.Workers)
	simulated.SetMetricsRecorder(recorder)

	return api.Engines{
		Pricer:     pricer,
		Simulator:  simulator,
		Analytic:   analytic,
		Simulated:  simulated,
		Comparator: risk.NewComparator(analytic, simulated),
	}, nil
}
