package scoring

import (
	"math/rand/v2"
	"sync"
)

// VariationPolicy supplies the market-variation factor applied to a payout.
type VariationPolicy interface {
	Factor() float64
}

// IdentityVariation always returns 1.0, keeping payouts deterministic.
type IdentityVariation struct{}

// Factor implements VariationPolicy.
func (IdentityVariation) Factor() float64 { return 1.0 }

// BoundedVariation returns a factor uniformly drawn from [1-spread, 1+spread].
// Only used in demo mode.
type BoundedVariation struct {
	spread float64

	mu  sync.Mutex
	rng *rand.Rand
}

// NewBoundedVariation creates a seeded bounded variation policy.
func NewBoundedVariation(spread float64, seed uint64) *BoundedVariation {
	return &BoundedVariation{
		spread: spread,
		rng:    rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
	}
}

// Factor implements VariationPolicy.
func (v *BoundedVariation) Factor() float64 {
	v.mu.Lock()
	r := v.rng.Float64()
	v.mu.Unlock()
	return 1 + (r-0.5)*2*v.spread
}
