package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rzzdr/option-greeks-engine/pkg/utils/errors"
)

func TestParseOptionType(t *testing.T) {
	for _, in := range []string{"Call", "call", " CALL "} {
		got, err := ParseOptionType(in)
		require.NoError(t, err)
		assert.Equal(t, OptionTypeCall, got)
	}

	got, err := ParseOptionType("Put")
	require.NoError(t, err)
	assert.Equal(t, OptionTypePut, got)

	_, err = ParseOptionType("Straddle")
	assert.True(t, errors.Is(err, errors.ErrInvalidOptionType))
}

func TestParameterRecordConvertsPercentages(t *testing.T) {
	p, err := DefaultParameterRecord().OptionParams()
	require.NoError(t, err)

	assert.Equal(t, OptionTypeCall, p.Type)
	assert.Equal(t, 105.0, p.Spot)
	assert.Equal(t, 100.0, p.Strike)
	assert.Equal(t, 1.0, p.Expiry)
	assert.InDelta(t, 0.05, p.Rate, 1e-15)
	assert.InDelta(t, 0.20, p.Volatility, 1e-15)
	assert.InDelta(t, 0.015, p.DividendYield, 1e-15)
}

func TestParameterRecordRejectsUnknownType(t *testing.T) {
	rec := DefaultParameterRecord()
	rec.OptionType = "Binary"
	_, err := rec.OptionParams()
	assert.True(t, errors.IsType(err, errors.ErrorTypeInvalidOptionType))
}

func TestComparisonOrderAndRounding(t *testing.T) {
	analytic := &GreeksResult{
		First:  FirstOrderGreeks{Delta: 0.63683, Gamma: 0.018762, Theta: 6.414, Vega: 37.524, Rho: 53.232},
		Second: SecondOrderGreeks{Charm: -6.4, Speed: 0.018762, Color: -6.4, Zomma: 1.2, Veta: 6.4, Volga: 1.2},
	}
	simulated := &GreeksResult{
		First: FirstOrderGreeks{Delta: 0.6401, Gamma: 0.0191, Theta: 6.3, Vega: 37.9, Rho: 53.5},
	}

	c := NewGreeksComparison(OptionParams{Type: OptionTypeCall}, 10000, analytic, simulated)
	require.Len(t, c.FirstOrder, 5)
	require.Len(t, c.SecondOrder, 6)
	assert.Equal(t, "Delta", c.FirstOrder[0].Greek)
	assert.Equal(t, "Volga", c.SecondOrder[5].Greek)

	r := c.Rounded(2)
	assert.Equal(t, 0.64, r.FirstOrder[0].Analytic)
	assert.Equal(t, 0.02, r.FirstOrder[1].Analytic)
	assert.Equal(t, 37.9, r.FirstOrder[3].Simulated)
	// original untouched
	assert.Equal(t, 0.63683, c.FirstOrder[0].Analytic)
}

func TestRound(t *testing.T) {
	assert.Equal(t, 1.24, Round(1.235000001, 2))
	assert.Equal(t, -1.24, Round(-1.235000001, 2))
	assert.Equal(t, 10.0, Round(10.4, 0))
}
