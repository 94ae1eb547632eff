package retry

import (
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Strategy describes how long to wait between attempts.
type Strategy interface {
	newBackOff() backoff.BackOff
}

// ExponentialStrategy doubles the delay after every attempt, starting at Min and capped at Max.
// Each delay is randomized by up to Jitter (a factor in [0, 1]).
type ExponentialStrategy struct {
	Min    time.Duration
	Max    time.Duration
	Jitter float64
}

func (e *ExponentialStrategy) newBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = e.Min
	b.MaxInterval = e.Max
	b.RandomizationFactor = e.Jitter
	b.Multiplier = 2
	// attempts are bounded by the caller, not by elapsed time
	b.MaxElapsedTime = 0
	b.Reset()
	return b
}

// Exponential is the default strategy for backend requests.
func Exponential() Strategy {
	return &ExponentialStrategy{
		Min:    250 * time.Millisecond,
		Max:    10 * time.Second,
		Jitter: 0.25,
	}
}

// FixedStrategy waits the same duration between every attempt.
type FixedStrategy struct {
	Dur time.Duration
}

func (f *FixedStrategy) newBackOff() backoff.BackOff {
	return backoff.NewConstantBackOff(f.Dur)
}

func Fixed(dur time.Duration) Strategy {
	return &FixedStrategy{Dur: dur}
}
