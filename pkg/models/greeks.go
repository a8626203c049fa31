package models

import "math"

// Greek names, in display order
var (
	FirstOrderNames  = []string{"Delta", "Gamma", "Theta", "Vega", "Rho"}
	SecondOrderNames = []string{"Charm", "Speed", "Color", "Zomma", "Veta", "Volga"}
)

// FirstOrderGreeks holds the first-order sensitivities
type FirstOrderGreeks struct {
	Delta float64 `json:"Delta"`
	Gamma float64 `json:"Gamma"`
	Theta float64 `json:"Theta"`
	Vega  float64 `json:"Vega"`
	Rho   float64 `json:"Rho"`
}

// SecondOrderGreeks holds the second-order cross sensitivities
type SecondOrderGreeks struct {
	Charm float64 `json:"Charm"`
	Speed float64 `json:"Speed"`
	Color float64 `json:"Color"`
	Zomma float64 `json:"Zomma"`
	Veta  float64 `json:"Veta"`
	Volga float64 `json:"Volga"`
}

// GreeksResult is the output of one Greeks engine invocation
type GreeksResult struct {
	Model  string            `json:"model"`
	Price  float64           `json:"price"`
	First  FirstOrderGreeks  `json:"first_order"`
	Second SecondOrderGreeks `json:"second_order"`
}

// AsMap returns the first-order mapping
func (g FirstOrderGreeks) AsMap() map[string]float64 {
	return map[string]float64{
		"Delta": g.Delta,
		"Gamma": g.Gamma,
		"Theta": g.Theta,
		"Vega":  g.Vega,
		"Rho":   g.Rho,
	}
}

// AsMap returns the second-order mapping
func (g SecondOrderGreeks) AsMap() map[string]float64 {
	return map[string]float64{
		"Charm": g.Charm,
		"Speed": g.Speed,
		"Color": g.Color,
		"Zomma": g.Zomma,
		"Veta":  g.Veta,
		"Volga": g.Volga,
	}
}

// AsMaps returns the two mappings (first-order, second-order)
func (r *GreeksResult) AsMaps() (map[string]float64, map[string]float64) {
	return r.First.AsMap(), r.Second.AsMap()
}

// ComparisonRow is one line of a side-by-side table
type ComparisonRow struct {
	Greek     string  `json:"greek"`
	Analytic  float64 `json:"analytic"`
	Simulated float64 `json:"simulated"`
}

// GreeksComparison tabulates the analytic and simulated engines side by side
type GreeksComparison struct {
	Params         OptionParams    `json:"params"`
	NumSimulations int             `json:"num_simulations"`
	AnalyticPrice  float64         `json:"analytic_price"`
	SimulatedPrice float64         `json:"simulated_price"`
	FirstOrder     []ComparisonRow `json:"first_order"`
	SecondOrder    []ComparisonRow `json:"second_order"`
}

// NewGreeksComparison lays out two results in display order
func NewGreeksComparison(params OptionParams, numSimulations int, analytic, simulated *GreeksResult) *GreeksComparison {
	c := &GreeksComparison{
		Params:         params,
		NumSimulations: numSimulations,
		AnalyticPrice:  analytic.Price,
		SimulatedPrice: simulated.Price,
	}

	af, as := analytic.AsMaps()
	sf, ss := simulated.AsMaps()
	for _, name := range FirstOrderNames {
		c.FirstOrder = append(c.FirstOrder, ComparisonRow{Greek: name, Analytic: af[name], Simulated: sf[name]})
	}
	for _, name := range SecondOrderNames {
		c.SecondOrder = append(c.SecondOrder, ComparisonRow{Greek: name, Analytic: as[name], Simulated: ss[name]})
	}
	return c
}

// Rounded returns a copy with every number rounded to the given decimals.
// Used for display only; negative decimals return an unmodified copy.
func (c *GreeksComparison) Rounded(decimals int) *GreeksComparison {
	out := *c
	out.FirstOrder = append([]ComparisonRow(nil), c.FirstOrder...)
	out.SecondOrder = append([]ComparisonRow(nil), c.SecondOrder...)
	if decimals < 0 {
		return &out
	}

	out.AnalyticPrice = Round(c.AnalyticPrice, decimals)
	out.SimulatedPrice = Round(c.SimulatedPrice, decimals)
	for i := range out.FirstOrder {
		out.FirstOrder[i].Analytic = Round(out.FirstOrder[i].Analytic, decimals)
		out.FirstOrder[i].Simulated = Round(out.FirstOrder[i].Simulated, decimals)
	}
	for i := range out.SecondOrder {
		out.SecondOrder[i].Analytic = Round(out.SecondOrder[i].Analytic, decimals)
		out.SecondOrder[i].Simulated = Round(out.SecondOrder[i].Simulated, decimals)
	}
	return &out
}

// Round rounds half away from zero
func Round(x float64, decimals int) float64 {
	if math.IsNaN(x) || math.IsInf(x, 0) {
		return x
	}
	pow := math.Pow(10, float64(decimals))
	return math.Round(x*pow) / pow
}
