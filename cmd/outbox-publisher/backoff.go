package main

import (
	"math/rand/v2"
	"time"
)

const jitterWindow = 250 * time.Millisecond

// backoff doubles from base up to ceiling on each call to next.
type backoff struct {
	base, ceiling, current time.Duration
}

func newBackoff(base, ceiling time.Duration) *backoff {
	return &backoff{base: base, ceiling: ceiling, current: base}
}

func (b *backoff) next() time.Duration {
	b.current = min(b.current*2, b.ceiling)
	return b.current
}

func (b *backoff) reset() {
	b.current = b.base
}

func withJitter(d time.Duration) time.Duration {
	if d <= 0 {
		return 0
	}
	return d + rand.N(jitterWindow)
}
