package risk

import (
	"math"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/rzzdr/option-greeks-engine/pkg/models"
	"github.com/rzzdr/option-greeks-engine/pkg/utils/errors"
	"github.com/rzzdr/option-greeks-engine/pkg/utils/logger"
	"github.com/rzzdr/option-greeks-engine/pkg/utils/pools"
)

// DefaultNumSimulations is the path count used when a caller does not choose one
const DefaultNumSimulations = 10000

// MonteCarloConfig configures a MonteCarloPricer
type MonteCarloConfig struct {
	// TimeSteps is the number of equal steps per path; zero means DefaultTimeSteps
	TimeSteps int
	// Workers bounds the goroutines used to evaluate paths of a supplied draw; <=1 is sequential
	Workers int
}

// SimulationConfig selects the path population of one Simulate call
type SimulationConfig struct {
	NumSimulations int
	// Draws, when set, must be NumSimulations x TimeSteps and makes the result reproducible.
	// When nil a fresh draw is streamed from the pricer's random source.
	Draws *Draws
}

// MonteCarloPricer prices European options by averaging discounted payoffs over
// simulated risk-neutral geometric Brownian motion paths
type MonteCarloPricer struct {
	timeSteps int
	workers   int

	mu  sync.Mutex
	rng *rand.Rand

	payoffs *pools.Float64SlicePool
	metrics MetricsRecorder
	log     *logger.Logger
}

// NewMonteCarloPricer creates a pricer that streams fresh draws from src
func NewMonteCarloPricer(config MonteCarloConfig, src rand.Source) *MonteCarloPricer {
	if config.TimeSteps <= 0 {
		config.TimeSteps = DefaultTimeSteps
	}
	if config.Workers <= 0 {
		config.Workers = 1
	}
	if src == nil {
		src = NewSource(0)
	}

	return &MonteCarloPricer{
		timeSteps: config.TimeSteps,
		workers:   config.Workers,
		rng:       rand.New(src),
		payoffs:   pools.NewFloat64SlicePool(DefaultNumSimulations),
		metrics:   noopMetrics{},
		log:       logger.GetLogger("risk.montecarlo"),
	}
}

// SetMetricsRecorder sets the recorder notified after every simulation
func (mc *MonteCarloPricer) SetMetricsRecorder(m MetricsRecorder) {
	if m != nil {
		mc.metrics = m
	}
}

// TimeSteps returns the number of steps per simulated path
func (mc *MonteCarloPricer) TimeSteps() int {
	return mc.timeSteps
}

// Simulate returns the Monte Carlo estimate of the option price
func (mc *MonteCarloPricer) Simulate(p models.OptionParams, config SimulationConfig) (float64, error) {
	start := time.Now()
	price, err := mc.simulate(p, config)
	mc.metrics.RecordPricing(ModelSimulated, time.Since(start), err)
	return price, err
}

func (mc *MonteCarloPricer) simulate(p models.OptionParams, config SimulationConfig) (float64, error) {
	if err := validateParams(p); err != nil {
		return 0, err
	}

	n := config.NumSimulations
	if n <= 0 {
		return 0, errors.InvalidParameterf("number of simulations must be a positive integer, got %d", n)
	}
	if config.Draws != nil {
		rows, cols := config.Draws.Dims()
		if rows != n || cols != mc.timeSteps {
			return 0, errors.ShapeMismatch(n, mc.timeSteps, rows, cols)
		}
	}

	path := newPathModel(p, mc.timeSteps)
	payoffs := mc.payoffs.GetN(n)
	defer mc.payoffs.Put(payoffs)

	if config.Draws == nil {
		mc.streamPayoffs(path, payoffs)
	} else {
		mc.drawPayoffs(path, config.Draws, payoffs)
	}

	// summed in path order so the estimate does not depend on scheduling
	var sum float64
	for _, v := range payoffs {
		sum += v
	}
	return math.Exp(-p.Rate*p.Expiry) * (sum / float64(n)), nil
}

// streamPayoffs consumes the pricer's source in the same row-major order NewDraws
// fills a matrix, so a stream and a matrix built from equal seeds price identically
func (mc *MonteCarloPricer) streamPayoffs(path pathModel, payoffs []float64) {
	z := make([]float64, mc.timeSteps)

	mc.mu.Lock()
	defer mc.mu.Unlock()

	for i := range payoffs {
		for t := range z {
			z[t] = mc.rng.NormFloat64()
		}
		payoffs[i] = path.payoff(z)
	}
}

func (mc *MonteCarloPricer) drawPayoffs(path pathModel, draws *Draws, payoffs []float64) {
	n := len(payoffs)
	if mc.workers <= 1 || n < 2*mc.workers {
		for i := range payoffs {
			payoffs[i] = path.payoff(draws.Path(i))
		}
		return
	}

	chunk := (n + mc.workers - 1) / mc.workers
	var wg sync.WaitGroup
	for lo := 0; lo < n; lo += chunk {
		hi := min(lo+chunk, n)
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := lo; i < hi; i++ {
				payoffs[i] = path.payoff(draws.Path(i))
			}
		}()
	}
	wg.Wait()
}

// pathModel holds the per-step constants of one simulation
type pathModel struct {
	spot      float64
	strike    float64
	drift     float64 // (r - q - sigma^2/2) * dt
	diffusion float64 // sigma * sqrt(dt)
	call      bool
}

func newPathModel(p models.OptionParams, steps int) pathModel {
	dt := p.Expiry / float64(steps)
	return pathModel{
		spot:      p.Spot,
		strike:    p.Strike,
		drift:     (p.Rate - p.DividendYield - 0.5*p.Volatility*p.Volatility) * dt,
		diffusion: p.Volatility * math.Sqrt(dt),
		call:      p.Type == models.OptionTypeCall,
	}
}

// terminal accumulates the daily log returns of one path
func (m pathModel) terminal(z []float64) float64 {
	var logReturn float64
	for _, zt := range z {
		logReturn += m.drift + m.diffusion*zt
	}
	return m.spot * math.Exp(logReturn)
}

func (m pathModel) payoff(z []float64) float64 {
	st := m.terminal(z)
	if m.call {
		return math.Max(st-m.strike, 0)
	}
	return math.Max(m.strike-st, 0)
}
