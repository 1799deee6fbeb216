package data

import "time"

// TimeProvider abstracts the clock repositories stamp rows with. Every
// created_at/updated_at and lease deadline in this package flows through it,
// which is what lets the staleness and backoff tests move time instead of
// sleeping.
type TimeProvider interface {
	Now() time.Time
}

// RealTimeProvider is the production clock.
type RealTimeProvider struct{}

func (r *RealTimeProvider) Now() time.Time { return time.Now() }

// FixedTimeProvider is a settable clock for tests.
type FixedTimeProvider struct {
	fixedTime time.Time
}

// NewFixedTimeProvider creates a FixedTimeProvider pinned to t.
func NewFixedTimeProvider(t time.Time) *FixedTimeProvider {
	return &FixedTimeProvider{fixedTime: t}
}

func (f *FixedTimeProvider) Now() time.Time { return f.fixedTime }

// AddTime advances the clock by d.
func (f *FixedTimeProvider) AddTime(d time.Duration) {
	f.fixedTime = f.fixedTime.Add(d)
}
