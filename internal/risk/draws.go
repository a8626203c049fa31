package risk

import (
	"math/rand/v2"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/rzzdr/option-greeks-engine/pkg/utils/errors"
)

// DefaultTimeSteps is the number of equal steps a simulated path takes over the
// option's life. One step is always T/DefaultTimeSteps years, not a calendar day.
const DefaultTimeSteps = 365

// NewSource returns a PCG random source for the given seed. A zero seed is
// replaced with the current time, giving a non-reproducible stream.
func NewSource(seed uint64) rand.Source {
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	return rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)
}

// Draws is a fixed [paths x steps] matrix of independent standard-normal
// innovations. It is never modified after construction, so one instance can be
// read by any number of concurrent simulations.
type Draws struct {
	m *mat.Dense
}

// NewDraws fills a paths x steps matrix row by row from src
func NewDraws(paths, steps int, src rand.Source) (*Draws, error) {
	if paths <= 0 || steps <= 0 {
		return nil, errors.InvalidParameterf("random draws need positive dimensions, got (%d, %d)", paths, steps)
	}

	rng := rand.New(src)
	data := make([]float64, paths*steps)
	for i := range data {
		data[i] = rng.NormFloat64()
	}
	return &Draws{m: mat.NewDense(paths, steps, data)}, nil
}

// DrawsFromDense wraps an existing matrix. The caller must not modify m afterwards.
func DrawsFromDense(m *mat.Dense) *Draws {
	return &Draws{m: m}
}

// Dims returns (paths, steps)
func (d *Draws) Dims() (int, int) {
	if d == nil || d.m == nil {
		return 0, 0
	}
	return d.m.Dims()
}

// Path returns the innovations of path i. The slice aliases the matrix and is read-only.
func (d *Draws) Path(i int) []float64 {
	return d.m.RawRowView(i)
}
