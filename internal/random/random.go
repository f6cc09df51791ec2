// Package random provides the injectable randomness used by the scheduler and
// the activity handlers. Sources are safe for concurrent use.
package random

import (
	"math/rand/v2"
	"sync"
	"time"
)

// Source is the subset of *rand.Rand the engine draws from.
type Source interface {
	Float64() float64
	IntN(n int) int
}

type locked struct {
	mu sync.Mutex
	r  *rand.Rand
}

// NewSeeded returns a deterministic source.
func NewSeeded(seed uint64) Source {
	return &locked{r: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

// New returns a source seeded from seed, or from the clock when seed is 0.
func New(seed uint64) Source {
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	return NewSeeded(seed)
}

func (l *locked) Float64() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.r.Float64()
}

func (l *locked) IntN(n int) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.r.IntN(n)
}

// Between returns a uniform integer in [min, max].
func Between(src Source, min, max int) int {
	if max <= min {
		return min
	}
	return min + src.IntN(max-min+1)
}

// Pick returns a uniformly chosen index into a slice of length n, or -1 when n is 0.
func Pick(src Source, n int) int {
	if n <= 0 {
		return -1
	}
	return src.IntN(n)
}
