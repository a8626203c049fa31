package pools

import (
	"sync"
)

// Float64SlicePool is a pool of float64 slices
type Float64SlicePool struct {
	pool sync.Pool
	size int
}

// NewFloat64SlicePool creates a new Float64SlicePool whose fresh slices have capacity size
func NewFloat64SlicePool(size int) *Float64SlicePool {
	if size < 0 {
		size = 0
	}
	return &Float64SlicePool{
		pool: sync.Pool{
			New: func() interface{} {
				s := make([]float64, 0, size)
				return &s
			},
		},
		size: size,
	}
}

// Get retrieves an empty float64 slice from the pool
func (p *Float64SlicePool) Get() []float64 {
	return (*p.pool.Get().(*[]float64))[:0]
}

// GetN retrieves a zeroed slice of length n, growing it when the pooled one is too small
func (p *Float64SlicePool) GetN(n int) []float64 {
	s := p.Get()
	if cap(s) < n {
		return make([]float64, n)
	}
	s = s[:n]
	clear(s)
	return s
}

// Put returns a float64 slice to the pool
func (p *Float64SlicePool) Put(f []float64) {
	// Undersized slices are left to the GC
	if cap(f) >= p.size {
		f = f[:0]
		p.pool.Put(&f)
	}
}
