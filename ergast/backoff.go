package ergast

import (
	"time"

	"github.com/cenkalti/backoff/v4"
)

const (
	DefaultBackoffInitial = 500 * time.Millisecond
	DefaultBackoffMax     = 10 * time.Second
)

// retryBackOff is an exponential backoff with ±20% jitter that also honours
// the Retry-After of the last answer, capped at max, when it asks for a
// longer wait.
type retryBackOff struct {
	*backoff.ExponentialBackOff
	max        time.Duration
	retryAfter time.Duration
}

func newRetryBackOff(initial, max time.Duration) *retryBackOff {
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = initial
	exp.MaxInterval = max
	exp.RandomizationFactor = 0.2
	exp.Multiplier = 2
	exp.MaxElapsedTime = 0
	exp.Reset()
	return &retryBackOff{ExponentialBackOff: exp, max: max}
}

func (b *retryBackOff) NextBackOff() time.Duration {
	next := b.ExponentialBackOff.NextBackOff()
	hint := b.retryAfter
	b.retryAfter = 0
	if next == backoff.Stop || hint <= next {
		return next
	}
	return min(hint, b.max)
}

func (b *retryBackOff) Reset() {
	b.retryAfter = 0
	b.ExponentialBackOff.Reset()
}
