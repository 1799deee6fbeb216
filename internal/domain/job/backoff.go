package job

import (
	"errors"
	"math"
	"math/rand/v2"
	"time"
)

// ErrInvalidBackoffBase indicates the configured base delay is not positive.
var ErrInvalidBackoffBase = errors.New("backoff base must be positive")

// BackoffPolicy computes retry delays for failed jobs: exponential in the
// attempt count, with uniform jitter, capped at a maximum delay.
type BackoffPolicy struct {
	base   time.Duration
	cap    time.Duration
	jitter time.Duration
	rand   func() float64
}

// BackoffOptions contains the knobs for creating a BackoffPolicy.
type BackoffOptions struct {
	// Base is the delay before the first retry.
	Base time.Duration
	// Cap bounds the computed delay. Zero or negative means no cap.
	Cap time.Duration
	// Jitter is the width of the uniform random window added to each delay.
	// Zero disables jitter.
	Jitter time.Duration
	// Rand supplies values in [0, 1) for jitter. Defaults to math/rand/v2.
	Rand func() float64
}

// DefaultBackoffOptions returns the standard retry schedule: 30s base,
// doubling per attempt, up to 10s of jitter, capped at one hour.
func DefaultBackoffOptions() BackoffOptions {
	return BackoffOptions{
		Base:   30 * time.Second,
		Cap:    time.Hour,
		Jitter: 10 * time.Second,
	}
}

// NewBackoffPolicy constructs a BackoffPolicy from the provided options.
func NewBackoffPolicy(opts BackoffOptions) (*BackoffPolicy, error) {
	if opts.Base <= 0 {
		return nil, ErrInvalidBackoffBase
	}
	r := opts.Rand
	if r == nil {
		r = rand.Float64
	}
	return &BackoffPolicy{
		base:   opts.Base,
		cap:    opts.Cap,
		jitter: opts.Jitter,
		rand:   r,
	}, nil
}

// MustNewBackoffPolicy constructs a BackoffPolicy and panics on invalid options.
func MustNewBackoffPolicy(opts BackoffOptions) *BackoffPolicy {
	p, err := NewBackoffPolicy(opts)
	if err != nil {
		panic(err)
	}
	return p
}

// Delay returns the wait before the next attempt, given how many attempts
// have already failed: base * 2^attempts + random(0, jitter), capped.
func (p *BackoffPolicy) Delay(attempts int) time.Duration {
	if attempts < 0 {
		attempts = 0
	}

	delay := p.base
	// Shift in float space so large attempt counts saturate instead of
	// overflowing the duration.
	scaled := float64(p.base) * math.Pow(2, float64(attempts))
	if scaled > float64(math.MaxInt64) {
		delay = time.Duration(math.MaxInt64)
	} else {
		delay = time.Duration(scaled)
	}

	if p.jitter > 0 {
		delay += time.Duration(p.rand() * float64(p.jitter))
	}
	if p.cap > 0 && delay > p.cap {
		delay = p.cap
	}
	return delay
}

// NextRunAt returns the absolute retry time for a failure observed at now.
func (p *BackoffPolicy) NextRunAt(now time.Time, attempts int) time.Time {
	return now.Add(p.Delay(attempts))
}
