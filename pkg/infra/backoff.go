package infra

import (
	"math/rand/v2"
	"sync"
	"time"
)

type Backoff struct {
	minDelay   time.Duration
	maxDelay   time.Duration
	multiplier float64
	current    time.Duration
	attempts   int
	mu         sync.Mutex
}

func NewBackoff(min, max time.Duration, mult float64) *Backoff {
	return &Backoff{
		minDelay:   min,
		maxDelay:   max,
		multiplier: mult,
		current:    min,
	}
}

func (b *Backoff) Next() time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.attempts++

	wait := b.jitter(b.current)
	b.current = min(time.Duration(float64(b.current)*b.multiplier), b.maxDelay)

	return wait
}

// For returns the delay for an entry that has already failed attempts times.
// Zero attempts means no delay. It does not touch the internal Next/Reset state.
func (b *Backoff) For(attempts int) time.Duration {
	if attempts <= 0 {
		return 0
	}

	delay := b.minDelay
	for i := 1; i < attempts && delay < b.maxDelay; i++ {
		delay = time.Duration(float64(delay) * b.multiplier)
	}
	delay = min(delay, b.maxDelay)

	return min(b.jitter(delay), b.maxDelay)
}

// jitter spreads d by +/-20% and never returns less than minDelay.
func (b *Backoff) jitter(d time.Duration) time.Duration {
	jitterFactor := rand.Float64()*0.4 - 0.2
	return max(d+time.Duration(jitterFactor*float64(d)), b.minDelay)
}

func (b *Backoff) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.current = b.minDelay
	b.attempts = 0
}

func (b *Backoff) Attempts() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.attempts
}
