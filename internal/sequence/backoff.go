package sequence

import (
	"time"

	"github.com/cenkalti/backoff/v5"
)

// retryDelay is the wait before attempt+1 after attempt consecutive
// transient failures: exponential from base, capped at max, with jitter.
func retryDelay(base, max time.Duration, attempt int32) time.Duration {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = base
	b.MaxInterval = max
	b.Multiplier = 2
	b.RandomizationFactor = 0.2
	b.Reset()

	d := base
	for i := int32(0); i < attempt; i++ {
		d = b.NextBackOff()
	}
	return d
}
