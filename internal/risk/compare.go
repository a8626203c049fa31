package risk

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/rzzdr/option-greeks-engine/pkg/models"
)

// Comparator runs both Greeks engines on the same parameters
type Comparator struct {
	analytic  *AnalyticGreeks
	simulated *SimulatedGreeks
}

// NewComparator creates a comparator over the two engines
func NewComparator(analytic *AnalyticGreeks, simulated *SimulatedGreeks) *Comparator {
	return &Comparator{analytic: analytic, simulated: simulated}
}

// Compare computes analytic and simulated Greeks concurrently and pairs them by name
func (c *Comparator) Compare(ctx context.Context, p models.OptionParams, numSimulations int) (*models.GreeksComparison, error) {
	var analytic, simulated *models.GreeksResult

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		analytic, err = c.analytic.Calculate(gctx, p)
		return err
	})
	g.Go(func() error {
		var err error
		simulated, err = c.simulated.Calculate(gctx, p, numSimulations)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return models.NewGreeksComparison(p, numSimulations, analytic, simulated), nil
}
