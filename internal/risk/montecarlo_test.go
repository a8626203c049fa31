package risk

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/rzzdr/option-greeks-engine/pkg/models"
	"github.com/rzzdr/option-greeks-engine/pkg/utils/errors"
)

func TestNewDrawsShape(t *testing.T) {
	d, err := NewDraws(10, 365, NewSource(1))
	require.NoError(t, err)

	rows, cols := d.Dims()
	assert.Equal(t, 10, rows)
	assert.Equal(t, 365, cols)
	assert.Len(t, d.Path(9), 365)

	_, err = NewDraws(0, 365, NewSource(1))
	assert.ErrorIs(t, err, errors.ErrInvalidParameter)
}

func TestSimulateRejectsWrongShapeDraws(t *testing.T) {
	mc := NewMonteCarloPricer(MonteCarloConfig{}, NewSource(1))

	d, err := NewDraws(10, 5, NewSource(1))
	require.NoError(t, err)

	_, err = mc.Simulate(atTheMoney(models.OptionTypeCall), SimulationConfig{NumSimulations: 10, Draws: d})
	assert.ErrorIs(t, err, errors.ErrShapeMismatch)
	assert.Contains(t, err.Error(), "(10, 365)")

	_, err = mc.Simulate(atTheMoney(models.OptionTypeCall), SimulationConfig{NumSimulations: 11, Draws: d})
	assert.ErrorIs(t, err, errors.ErrShapeMismatch)
}

func TestSimulateRejectsInvalidInputs(t *testing.T) {
	mc := NewMonteCarloPricer(MonteCarloConfig{TimeSteps: 4}, NewSource(1))

	p := atTheMoney(models.OptionTypeCall)
	p.Spot = 0
	_, err := mc.Simulate(p, SimulationConfig{NumSimulations: 100})
	assert.ErrorIs(t, err, errors.ErrInvalidParameter)

	_, err = mc.Simulate(atTheMoney(models.OptionTypeCall), SimulationConfig{NumSimulations: 0})
	assert.ErrorIs(t, err, errors.ErrInvalidParameter)

	_, err = mc.Simulate(atTheMoney("Binary"), SimulationConfig{NumSimulations: 100})
	assert.ErrorIs(t, err, errors.ErrInvalidOptionType)
}

func TestSimulateIsReproducibleWithSuppliedDraws(t *testing.T) {
	mc := NewMonteCarloPricer(MonteCarloConfig{}, NewSource(3))

	first, err := NewDraws(1000, DefaultTimeSteps, NewSource(42))
	require.NoError(t, err)
	second, err := NewDraws(1000, DefaultTimeSteps, NewSource(42))
	require.NoError(t, err)

	p := atTheMoney(models.OptionTypeCall)
	a, err := mc.Simulate(p, SimulationConfig{NumSimulations: 1000, Draws: first})
	require.NoError(t, err)
	b, err := mc.Simulate(p, SimulationConfig{NumSimulations: 1000, Draws: second})
	require.NoError(t, err)
	again, err := mc.Simulate(p, SimulationConfig{NumSimulations: 1000, Draws: first})
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.Equal(t, a, again)
}

func TestSimulateStreamMatchesMatrix(t *testing.T) {
	const n = 500
	p := atTheMoney(models.OptionTypePut)

	streamed, err := NewMonteCarloPricer(MonteCarloConfig{}, NewSource(7)).
		Simulate(p, SimulationConfig{NumSimulations: n})
	require.NoError(t, err)

	d, err := NewDraws(n, DefaultTimeSteps, NewSource(7))
	require.NoError(t, err)
	fromMatrix, err := NewMonteCarloPricer(MonteCarloConfig{}, NewSource(99)).
		Simulate(p, SimulationConfig{NumSimulations: n, Draws: d})
	require.NoError(t, err)

	assert.Equal(t, streamed, fromMatrix)
}

func TestSimulateWorkersDoNotChangeResult(t *testing.T) {
	d, err := NewDraws(2000, 50, NewSource(5))
	require.NoError(t, err)
	config := SimulationConfig{NumSimulations: 2000, Draws: d}
	p := atTheMoney(models.OptionTypeCall)

	sequential, err := NewMonteCarloPricer(MonteCarloConfig{TimeSteps: 50, Workers: 1}, nil).Simulate(p, config)
	require.NoError(t, err)
	parallel, err := NewMonteCarloPricer(MonteCarloConfig{TimeSteps: 50, Workers: 8}, nil).Simulate(p, config)
	require.NoError(t, err)

	assert.Equal(t, sequential, parallel)
}

func TestSimulateAcceptsDenseMatrix(t *testing.T) {
	// all-zero innovations leave only the drift: S_T = S*exp((r-q-sigma^2/2)T)
	d := DrawsFromDense(mat.NewDense(3, 4, nil))
	mc := NewMonteCarloPricer(MonteCarloConfig{TimeSteps: 4}, nil)

	p := models.OptionParams{Type: models.OptionTypeCall, Spot: 100, Strike: 90, Expiry: 1, Rate: 0.05, Volatility: 0.2}
	price, err := mc.Simulate(p, SimulationConfig{NumSimulations: 3, Draws: d})
	require.NoError(t, err)

	terminal := newPathModel(p, 4).terminal(make([]float64, 4))
	assert.InDelta(t, 100*1.03045453395352, terminal, 1e-9)
	assert.InDelta(t, (terminal-90)*0.951229424500714, price, 1e-9)
}

func TestSimulateConverges(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping convergence test in short mode")
	}

	// the terminal distribution is exact for any step count, so few steps suffice
	mc := NewMonteCarloPricer(MonteCarloConfig{TimeSteps: 12}, NewSource(2024))

	call, err := mc.Simulate(atTheMoney(models.OptionTypeCall), SimulationConfig{NumSimulations: 400000})
	require.NoError(t, err)
	assert.InDelta(t, 10.45, call, 0.10)

	put, err := mc.Simulate(atTheMoney(models.OptionTypePut), SimulationConfig{NumSimulations: 400000})
	require.NoError(t, err)
	assert.InDelta(t, 5.573526022256971, put, 0.10)
}

func TestSimulateMonotoneInSpotWithSharedDraws(t *testing.T) {
	d, err := NewDraws(1000, 12, NewSource(8))
	require.NoError(t, err)
	mc := NewMonteCarloPricer(MonteCarloConfig{TimeSteps: 12}, nil)
	config := SimulationConfig{NumSimulations: 1000, Draws: d}

	low, high := atTheMoney(models.OptionTypeCall), atTheMoney(models.OptionTypeCall)
	low.Spot, high.Spot = 95, 105

	lowPrice, err := mc.Simulate(low, config)
	require.NoError(t, err)
	highPrice, err := mc.Simulate(high, config)
	require.NoError(t, err)
	assert.Less(t, lowPrice, highPrice)
}
