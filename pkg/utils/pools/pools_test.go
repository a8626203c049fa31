package pools

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFloat64SlicePoolGetN(t *testing.T) {
	p := NewFloat64SlicePool(8)

	s := p.GetN(4)
	assert.Len(t, s, 4)
	for i := range s {
		s[i] = float64(i + 1)
	}
	p.Put(s)

	again := p.GetN(4)
	assert.Equal(t, []float64{0, 0, 0, 0}, again)

	big := p.GetN(100)
	assert.Len(t, big, 100)
}

func TestFloat64SlicePoolDropsSmallSlices(t *testing.T) {
	p := NewFloat64SlicePool(16)
	p.Put(make([]float64, 2))
	assert.GreaterOrEqual(t, cap(p.Get()), 0)
}
