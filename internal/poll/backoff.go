package poll

import (
	"math/rand/v2"
	"time"
)

// Default backoff parameters. The initial delay matches the pacing the
// creative APIs expect for async job status checks.
const (
	DefaultInitialDelay = 5 * time.Second
	DefaultMaxDelay     = 30 * time.Second
	DefaultFactor       = 2.0
	DefaultJitter       = 0.1
)

// Backoff computes the wait before each poll attempt: exponential growth
// capped at Max, with an optional fraction of random jitter. The same policy
// applies to every surface.
type Backoff struct {
	// Initial is the delay before the first attempt.
	Initial time.Duration
	// Max caps the grown delay.
	Max time.Duration
	// Factor multiplies the delay on each successive attempt.
	Factor float64
	// Jitter is the fraction of the delay randomized per attempt (0 disables).
	Jitter float64
}

// DefaultBackoff returns the polling backoff used across all surfaces.
func DefaultBackoff() Backoff {
	return Backoff{
		Initial: DefaultInitialDelay,
		Max:     DefaultMaxDelay,
		Factor:  DefaultFactor,
		Jitter:  DefaultJitter,
	}
}

// Delay returns the wait before poll attempt n (0-based). It is a pure
// function of n, so concurrent polls never share counter state.
func (b Backoff) Delay(attempt int) time.Duration {
	initial := b.Initial
	if initial <= 0 {
		initial = DefaultInitialDelay
	}
	factor := b.Factor
	if factor < 1 {
		factor = DefaultFactor
	}
	ceiling := b.Max
	if ceiling <= 0 {
		ceiling = DefaultMaxDelay
	}

	delay := initial
	for i := 0; i < attempt; i++ {
		delay = time.Duration(float64(delay) * factor)
		if delay >= ceiling {
			delay = ceiling
			break
		}
	}
	if delay > ceiling {
		delay = ceiling
	}

	if b.Jitter > 0 {
		spread := b.Jitter * float64(delay)
		delay += time.Duration((rand.Float64()*2 - 1) * spread)
	}

	return delay
}
