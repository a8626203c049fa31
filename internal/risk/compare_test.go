package risk

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rzzdr/option-greeks-engine/pkg/models"
	"github.com/rzzdr/option-greeks-engine/pkg/utils/errors"
)

func TestCompare(t *testing.T) {
	c := NewComparator(NewAnalyticGreeks(NewBlackScholesPricer()), newTestSimulatedGreeks(12, 9))
	p := atTheMoney(models.OptionTypeCall)

	cmp, err := c.Compare(context.Background(), p, 4000)
	require.NoError(t, err)

	assert.Equal(t, p, cmp.Params)
	assert.Equal(t, 4000, cmp.NumSimulations)
	assert.InDelta(t, 10.450583572185565, cmp.AnalyticPrice, 1e-9)
	assert.Greater(t, cmp.SimulatedPrice, 0.0)

	require.Len(t, cmp.FirstOrder, len(models.FirstOrderNames))
	require.Len(t, cmp.SecondOrder, len(models.SecondOrderNames))
	for i, name := range models.FirstOrderNames {
		assert.Equal(t, name, cmp.FirstOrder[i].Greek)
	}
	for i, name := range models.SecondOrderNames {
		assert.Equal(t, name, cmp.SecondOrder[i].Greek)
	}
}

func TestCompareFailsWhenEitherEngineFails(t *testing.T) {
	c := NewComparator(NewAnalyticGreeks(NewBlackScholesPricer()), newTestSimulatedGreeks(12, 9))

	p := atTheMoney(models.OptionTypeCall)
	p.Spot = 0
	_, err := c.Compare(context.Background(), p, 1000)
	assert.ErrorIs(t, err, errors.ErrInvalidParameter)

	_, err = c.Compare(context.Background(), atTheMoney(models.OptionTypeCall), -5)
	assert.ErrorIs(t, err, errors.ErrInvalidParameter)
}
