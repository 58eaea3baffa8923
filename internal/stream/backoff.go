package stream

import "time"

// backoffFactor is the growth rate of the reconnect delay.
const backoffFactor = 1.5

// backoff yields exponentially growing delays capped at max.
type backoff struct {
	initial time.Duration
	max     time.Duration
	current time.Duration
}

func newBackoff(initial, maxDelay time.Duration) *backoff {
	if maxDelay < initial {
		maxDelay = initial
	}
	return &backoff{initial: initial, max: maxDelay, current: initial}
}

// next returns the delay to wait now and grows the following one.
func (b *backoff) next() time.Duration {
	d := b.current
	b.current = min(time.Duration(float64(b.current)*backoffFactor), b.max)
	return d
}

func (b *backoff) reset() {
	b.current = b.initial
}
