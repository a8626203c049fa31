package risk

import (
	"fmt"
	"sort"
	"strings"

	"github.com/rzzdr/option-greeks-engine/pkg/models"
)

// Axis is a pricing input that finite differences perturb
type Axis int

const (
	AxisSpot Axis = iota
	AxisVolatility
	AxisRate
	AxisTime
	numAxes
)

var axisNames = [numAxes]string{"S", "sigma", "r", "T"}

func (a Axis) String() string {
	if a < 0 || a >= numAxes {
		return fmt.Sprintf("axis(%d)", int(a))
	}
	return axisNames[a]
}

// Shift is a perturbation expressed in whole steps along each axis
type Shift [numAxes]int

// Along returns a shift of n steps on a single axis
func Along(a Axis, n int) Shift {
	var s Shift
	s[a] = n
	return s
}

func (s Shift) add(o Shift) Shift {
	for i := range s {
		s[i] += o[i]
	}
	return s
}

func (s Shift) less(o Shift) bool {
	for i := range s {
		if s[i] != o[i] {
			return s[i] < o[i]
		}
	}
	return false
}

func (s Shift) String() string {
	var parts []string
	for a, n := range s {
		if n != 0 {
			parts = append(parts, fmt.Sprintf("%s%+d", Axis(a), n))
		}
	}
	if len(parts) == 0 {
		return "base"
	}
	return strings.Join(parts, ",")
}

// Steps are the absolute step sizes per axis
type Steps [numAxes]float64

// Apply returns a copy of p moved by shift
func (h Steps) Apply(p models.OptionParams, shift Shift) models.OptionParams {
	if n := shift[AxisSpot]; n != 0 {
		p.Spot += float64(n) * h[AxisSpot]
	}
	if n := shift[AxisVolatility]; n != 0 {
		p.Volatility += float64(n) * h[AxisVolatility]
	}
	if n := shift[AxisRate]; n != 0 {
		p.Rate += float64(n) * h[AxisRate]
	}
	if n := shift[AxisTime]; n != 0 {
		p.Expiry += float64(n) * h[AxisTime]
	}
	return p
}

type node struct {
	shift  Shift
	weight float64
}

// Stencil is a finite-difference rule: a weighted sum of prices at shifted
// points divided by scale * prod(h_axis ^ order_axis).
type Stencil struct {
	nodes  []node
	scale  float64
	orders [numAxes]int
}

// Diff builds a one-axis stencil from weights keyed by step offset
func Diff(axis Axis, weights map[int]float64, scale float64, order int) Stencil {
	acc := make(map[Shift]float64, len(weights))
	for offset, w := range weights {
		acc[Along(axis, offset)] += w
	}
	st := Stencil{scale: scale}
	st.orders[axis] = order
	st.nodes = sortedNodes(acc)
	return st
}

// Standard one-axis stencils
func Central1(a Axis) Stencil { return Diff(a, map[int]float64{-1: -1, 1: 1}, 2, 1) }
func Central2(a Axis) Stencil { return Diff(a, map[int]float64{-1: 1, 0: -2, 1: 1}, 1, 2) }
func Forward1(a Axis) Stencil { return Diff(a, map[int]float64{0: -1, 1: 1}, 1, 1) }

// Then composes two stencils: the result applies s to the values produced by o
// (or vice versa, composition commutes). Same-axis composition convolves the
// weights, so Central1(S).Then(Central2(S)) is the five-point third derivative.
func (s Stencil) Then(o Stencil) Stencil {
	acc := make(map[Shift]float64, len(s.nodes)*len(o.nodes))
	for _, a := range s.nodes {
		for _, b := range o.nodes {
			acc[a.shift.add(b.shift)] += a.weight * b.weight
		}
	}

	out := Stencil{scale: s.scale * o.scale, nodes: sortedNodes(acc)}
	for i := range out.orders {
		out.orders[i] = s.orders[i] + o.orders[i]
	}
	return out
}

// Shifts returns the points the stencil needs, in evaluation order
func (s Stencil) Shifts() []Shift {
	out := make([]Shift, len(s.nodes))
	for i, n := range s.nodes {
		out[i] = n.shift
	}
	return out
}

// Denominator returns scale * prod(h^order) for the given steps
func (s Stencil) Denominator(h Steps) float64 {
	d := s.scale
	for a, order := range s.orders {
		for i := 0; i < order; i++ {
			d *= h[a]
		}
	}
	return d
}

// Combine applies the stencil to already computed values
func (s Stencil) Combine(h Steps, value func(Shift) float64) float64 {
	var sum float64
	for _, n := range s.nodes {
		sum += n.weight * value(n.shift)
	}
	return sum / s.Denominator(h)
}

func sortedNodes(acc map[Shift]float64) []node {
	nodes := make([]node, 0, len(acc))
	for shift, w := range acc {
		// cancelled points (e.g. the centre of a third derivative) need no pricer call
		if w != 0 {
			nodes = append(nodes, node{shift: shift, weight: w})
		}
	}
	sort.Slice(nodes, func(i, j int) bool { return nodes[i].shift.less(nodes[j].shift) })
	return nodes
}
