package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/rzzdr/option-greeks-engine/config"
	"github.com/rzzdr/option-greeks-engine/internal/adapters"
	"github.com/rzzdr/option-greeks-engine/pkg/models"
	"github.com/rzzdr/option-greeks-engine/pkg/utils/logger"
)

func main() {
	defaults := models.DefaultParameterRecord()
	record := defaults

	configFile := flag.String("config", config.GetConfigPath(), "Path to configuration file")
	flag.StringVar(&record.OptionType, "type", defaults.OptionType, "Option type: Call or Put")
	flag.Float64Var(&record.UnderlyingPrice, "spot", defaults.UnderlyingPrice, "Underlying asset price")
	flag.Float64Var(&record.StrikePrice, "strike", defaults.StrikePrice, "Strike price")
	flag.Float64Var(&record.TimeToExpiration, "expiry", defaults.TimeToExpiration, "Time to expiration in years")
	flag.Float64Var(&record.RiskFreeRate, "rate", defaults.RiskFreeRate, "Risk-free rate in percent")
	flag.Float64Var(&record.Volatility, "vol", defaults.Volatility, "Volatility in percent")
	flag.Float64Var(&record.DividendYield, "div", defaults.DividendYield, "Dividend yield in percent")
	flag.IntVar(&record.NumSimulations, "sims", defaults.NumSimulations, "Number of simulated paths")
	mode := flag.String("mode", "", "Second-order mode override: legacy or textbook")
	seed := flag.Uint64("seed", 0, "Random seed override; 0 keeps the configured seed")
	decimals := flag.Int("decimals", -2, "Display decimals; default is the configured value, -1 for full precision")
	asJSON := flag.Bool("json", false, "Print the comparison as JSON")
	flag.Parse()

	cfg, err := config.Load(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	// results go to stdout, so keep the log quiet unless asked
	logLevel := cfg.App.LogLevel
	if logLevel == "info" {
		logLevel = "warn"
	}
	logger.Init(logLevel, cfg.App.Environment)

	if *mode != "" {
		cfg.Pricing.SecondOrderMode = *mode
	}
	if *seed != 0 {
		cfg.Pricing.Seed = *seed
	}
	if *decimals == -2 {
		*decimals = cfg.Pricing.DisplayDecimals
	}

	if err := run(cfg.Pricing, record, *decimals, *asJSON, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(pricing config.PricingConfig, record models.ParameterRecord, decimals int, asJSON bool, out io.Writer) error {
	p, err := record.OptionParams()
	if err != nil {
		return err
	}

	engines, err := adapters.NewEngines(pricing, nil)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	comparison, err := engines.Comparator.Compare(ctx, p, record.NumSimulations)
	if err != nil {
		return err
	}
	comparison = comparison.Rounded(decimals)

	if asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(comparison)
	}
	return render(out, comparison)
}

// render prints the comparison as two aligned tables
func render(out io.Writer, c *models.GreeksComparison) error {
	fmt.Fprintf(out, "%s option S=%g K=%g T=%g r=%g sigma=%g q=%g paths=%d\n\n",
		c.Params.Type, c.Params.Spot, c.Params.Strike, c.Params.Expiry,
		c.Params.Rate, c.Params.Volatility, c.Params.DividendYield, c.NumSimulations)

	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "Greek\tAnalytic\tSimulated\t")
	fmt.Fprintf(tw, "Price\t%v\t%v\t\n", c.AnalyticPrice, c.SimulatedPrice)
	fmt.Fprintln(tw, "\t\t\t")
	fmt.Fprintln(tw, "First order\t\t\t")
	for _, row := range c.FirstOrder {
		fmt.Fprintf(tw, "%s\t%v\t%v\t\n", row.Greek, row.Analytic, row.Simulated)
	}
	fmt.Fprintln(tw, "\t\t\t")
	fmt.Fprintln(tw, "Second order\t\t\t")
	for _, row := range c.SecondOrder {
		fmt.Fprintf(tw, "%s\t%v\t%v\t\n", row.Greek, row.Analytic, row.Simulated)
	}
	return tw.Flush()
}
