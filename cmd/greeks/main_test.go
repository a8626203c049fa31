package main

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rzzdr/option-greeks-engine/config"
	"github.com/rzzdr/option-greeks-engine/pkg/models"
	"github.com/rzzdr/option-greeks-engine/pkg/utils/errors"
)

func testPricing() config.PricingConfig {
	return config.PricingConfig{TimeSteps: 12, Seed: 3, Workers: 1, SecondOrderMode: "legacy"}
}

func TestRunPrintsBothTables(t *testing.T) {
	record := models.DefaultParameterRecord()
	record.NumSimulations = 1000

	var out bytes.Buffer
	require.NoError(t, run(testPricing(), record, 2, false, &out))

	text := out.String()
	assert.True(t, strings.HasPrefix(text, "Call option S=105 K=100 T=1"))
	for _, name := range append(append([]string{"Price"}, models.FirstOrderNames...), models.SecondOrderNames...) {
		assert.Contains(t, text, name)
	}
	assert.Contains(t, text, "Second order")
}

func TestRunJSON(t *testing.T) {
	record := models.DefaultParameterRecord()
	record.OptionType = "put"
	record.NumSimulations = 1000

	var out bytes.Buffer
	require.NoError(t, run(testPricing(), record, 2, true, &out))

	var c models.GreeksComparison
	require.NoError(t, json.Unmarshal(out.Bytes(), &c))
	assert.Equal(t, models.OptionTypePut, c.Params.Type)
	assert.Less(t, c.FirstOrder[0].Analytic, 0.0)
	assert.Equal(t, models.Round(c.SimulatedPrice, 2), c.SimulatedPrice)
}

func TestRunRejectsBadInput(t *testing.T) {
	record := models.DefaultParameterRecord()
	record.OptionType = "Forward"
	err := run(testPricing(), record, 2, false, &bytes.Buffer{})
	assert.ErrorIs(t, err, errors.ErrInvalidOptionType)

	record = models.DefaultParameterRecord()
	record.StrikePrice = 0
	err = run(testPricing(), record, 2, false, &bytes.Buffer{})
	assert.ErrorIs(t, err, errors.ErrInvalidParameter)
}
