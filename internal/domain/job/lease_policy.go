package job

import (
	"errors"
	"math"
	"time"
)

// ErrInvalidDefaultLease reports a non-positive default lease duration.
var ErrInvalidDefaultLease = errors.New("default lease must be positive")

// LeaseSource records how a lease duration was chosen.
type LeaseSource string

const (
	LeaseSourceExplicit LeaseSource = "explicit"
	LeaseSourceDefault  LeaseSource = "default"
	LeaseSourceClamped  LeaseSource = "clamped"
)

// LeasePolicy turns caller-requested lease durations into the whole-second
// values the jobs table stores. Zero means "use the default"; anything under
// a second is raised to one so a claim never expires instantly.
type LeasePolicy struct {
	defaultLease time.Duration
}

func NewLeasePolicy(defaultLease time.Duration) (*LeasePolicy, error) {
	if defaultLease <= 0 {
		return nil, ErrInvalidDefaultLease
	}
	return &LeasePolicy{defaultLease: defaultLease}, nil
}

// Default returns the fallback lease duration.
func (p *LeasePolicy) Default() time.Duration {
	if p == nil {
		return 0
	}
	return p.defaultLease
}

// LeaseDecision is the resolved lease plus how it was arrived at, so the
// caller can log clamps without re-deriving them.
type LeaseDecision struct {
	Seconds   int
	Source    LeaseSource
	Requested time.Duration
}

func (d LeaseDecision) UsedDefault() bool { return d.Source == LeaseSourceDefault }

func (d LeaseDecision) Clamped() bool { return d.Source == LeaseSourceClamped }

// Resolve maps a requested duration onto whole seconds. Negative requests
// clamp to one second rather than erroring: the worker already holds the
// job, so refusing the lease would strand it.
func (p *LeasePolicy) Resolve(request time.Duration) LeaseDecision {
	if p == nil {
		return LeaseDecision{Source: LeaseSourceDefault, Requested: request}
	}

	switch {
	case request > 0:
		seconds, clamped := wholeSeconds(request)
		source := LeaseSourceExplicit
		if clamped {
			source = LeaseSourceClamped
		}
		return LeaseDecision{Seconds: seconds, Source: source, Requested: request}
	case request == 0:
		seconds, _ := wholeSeconds(p.defaultLease)
		return LeaseDecision{Seconds: seconds, Source: LeaseSourceDefault, Requested: request}
	default:
		return LeaseDecision{Seconds: 1, Source: LeaseSourceClamped, Requested: request}
	}
}

func wholeSeconds(d time.Duration) (int, bool) {
	seconds := int64(d / time.Second)
	if seconds < 1 {
		return 1, true
	}
	if seconds > int64(math.MaxInt) {
		return math.MaxInt, true
	}
	return int(seconds), false
}
