package models

import (
	"strings"

	"github.com/rzzdr/option-greeks-engine/pkg/utils/errors"
)

// OptionType is the right carried by a European vanilla option
type OptionType string

const (
	OptionTypeCall OptionType = "Call"
	OptionTypePut  OptionType = "Put"
)

// ParseOptionType accepts "Call" or "Put" in any letter case
func ParseOptionType(s string) (OptionType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "call":
		return OptionTypeCall, nil
	case "put":
		return OptionTypePut, nil
	}
	return "", errors.InvalidOptionType(s)
}

// Valid reports whether t is exactly one of the two option types
func (t OptionType) Valid() bool {
	return t == OptionTypeCall || t == OptionTypePut
}

// OptionParams are the contract and market inputs of one pricer evaluation.
// Rates, volatility and dividend yield are decimals, time is in years.
// The struct is passed by value so every evaluation owns its copy.
type OptionParams struct {
	Type          OptionType `json:"option_type"`
	Spot          float64    `json:"spot"`
	Strike        float64    `json:"strike"`
	Expiry        float64    `json:"expiry"`
	Rate          float64    `json:"rate"`
	Volatility    float64    `json:"volatility"`
	DividendYield float64    `json:"dividend_yield"`
}

// ParameterRecord is the record handed over by the parameter collection front end.
// Rate, volatility and dividend yield arrive as percentages.
type ParameterRecord struct {
	OptionType       string  `json:"option_type"`
	UnderlyingPrice  float64 `json:"underlying_price"`
	StrikePrice      float64 `json:"strike_price"`
	TimeToExpiration float64 `json:"time_to_expiration"`
	RiskFreeRate     float64 `json:"risk_free_rate"`
	Volatility       float64 `json:"volatility"`
	DividendYield    float64 `json:"dividend_yield"`
	NumSimulations   int     `json:"num_simulations"`
}

// DefaultParameterRecord returns the values the input form starts with
func DefaultParameterRecord() ParameterRecord {
	return ParameterRecord{
		OptionType:       string(OptionTypeCall),
		UnderlyingPrice:  105,
		StrikePrice:      100,
		TimeToExpiration: 1,
		RiskFreeRate:     5,
		Volatility:       20,
		DividendYield:    1.5,
		NumSimulations:   10000,
	}
}

// OptionParams converts the record into pricer inputs, turning percentages into decimals.
// Domain checks on the numbers are left to the pricers.
func (r ParameterRecord) OptionParams() (OptionParams, error) {
	optionType, err := ParseOptionType(r.OptionType)
	if err != nil {
		return OptionParams{}, err
	}

	return OptionParams{
		Type:          optionType,
		Spot:          r.UnderlyingPrice,
		Strike:        r.StrikePrice,
		Expiry:        r.TimeToExpiration,
		Rate:          r.RiskFreeRate / 100,
		Volatility:    r.Volatility / 100,
		DividendYield: r.DividendYield / 100,
	}, nil
}
