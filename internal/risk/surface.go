package risk

import (
	"context"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/rzzdr/option-greeks-engine/pkg/models"
)

// PriceFunc prices one parameter set
type PriceFunc func(models.OptionParams) (float64, error)

// Surface memoises prices around a base parameter set so every distinct bump is
// priced exactly once per Greeks calculation, however many stencils use it
type Surface struct {
	base    models.OptionParams
	steps   Steps
	price   PriceFunc
	workers int

	mu     sync.Mutex
	values map[Shift]float64
}

// NewSurface creates a surface; workers bounds concurrent pricer calls in Prefetch
func NewSurface(base models.OptionParams, steps Steps, price PriceFunc, workers int) *Surface {
	if workers <= 0 {
		workers = 1
	}
	return &Surface{
		base:    base,
		steps:   steps,
		price:   price,
		workers: workers,
		values:  make(map[Shift]float64),
	}
}

// Steps returns the step sizes of the surface
func (s *Surface) Steps() Steps {
	return s.steps
}

// Calls returns the number of distinct points priced so far
func (s *Surface) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.values)
}

// At prices the surface at shift, reusing an earlier result when there is one
func (s *Surface) At(shift Shift) (float64, error) {
	s.mu.Lock()
	v, ok := s.values[shift]
	s.mu.Unlock()
	if ok {
		return v, nil
	}

	v, err := s.price(s.steps.Apply(s.base, shift))
	if err != nil {
		return 0, err
	}

	s.mu.Lock()
	s.values[shift] = v
	s.mu.Unlock()
	return v, nil
}

// Prefetch prices every point the stencils need that is not cached yet.
// The first pricer error aborts the remaining calls and is returned as is.
func (s *Surface) Prefetch(ctx context.Context, stencils ...Stencil) error {
	pending := s.missing(stencils)

	if s.workers == 1 {
		for _, shift := range pending {
			if err := ctx.Err(); err != nil {
				return err
			}
			if _, err := s.At(shift); err != nil {
				return err
			}
		}
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for _, shift := range pending {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			_, err := s.At(shift)
			return err
		})
	}
	return g.Wait()
}

// Eval applies a stencil, pricing any point that is still missing
func (s *Surface) Eval(st Stencil) (float64, error) {
	values := make(map[Shift]float64, len(st.nodes))
	for _, shift := range st.Shifts() {
		v, err := s.At(shift)
		if err != nil {
			return 0, err
		}
		values[shift] = v
	}
	return st.Combine(s.steps, func(sh Shift) float64 { return values[sh] }), nil
}

func (s *Surface) missing(stencils []Stencil) []Shift {
	s.mu.Lock()
	defer s.mu.Unlock()

	seen := make(map[Shift]bool)
	var out []Shift
	for _, st := range stencils {
		for _, shift := range st.Shifts() {
			if _, cached := s.values[shift]; cached || seen[shift] {
				continue
			}
			seen[shift] = true
			out = append(out, shift)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].less(out[j]) })
	return out
}
