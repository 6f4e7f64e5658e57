package wallet

import (
	"context"
	"math/rand/v2"
	"sync"
	"time"
)

// Latency is an awaited suspension before a ledger operation touches the
// account. Implementations must honour ctx cancellation.
type Latency interface {
	Wait(ctx context.Context) error
}

// NoLatency returns immediately.
type NoLatency struct{}

// Wait implements Latency.
func (NoLatency) Wait(ctx context.Context) error { return ctx.Err() }

// JitterLatency sleeps a uniformly random duration in [min, max].
type JitterLatency struct {
	min, max time.Duration

	mu  sync.Mutex
	rng *rand.Rand
}

// NewJitterLatency creates a seeded jitter latency.
func NewJitterLatency(min, max time.Duration, seed uint64) *JitterLatency {
	if max < min {
		max = min
	}
	return &JitterLatency{
		min: min,
		max: max,
		rng: rand.New(rand.NewPCG(seed, seed+1)),
	}
}

// Wait implements Latency.
func (j *JitterLatency) Wait(ctx context.Context) error {
	d := j.min
	if span := j.max - j.min; span > 0 {
		j.mu.Lock()
		d += time.Duration(j.rng.Int64N(int64(span) + 1))
		j.mu.Unlock()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
