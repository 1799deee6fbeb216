// Package domain holds entities shared between the scheduler service and the
// scheduled_jobs repository.
package domain

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// ScheduledTask is a recurring enqueue instruction. The re-ingestion
// scheduler stores one per creator profile that opted into periodic
// refreshes, with the profile ID carried in the payload.
type ScheduledTask struct {
	ID       string          `json:"id"`
	TaskName string          `json:"task_name"`
	Payload  json.RawMessage `json:"payload"`
	// Interval is the cadence between fires. encoding/json renders
	// time.Duration as nanoseconds; the admin API exposes it as a string
	// form instead.
	Interval     time.Duration `json:"interval"`
	LastQueuedAt *time.Time    `json:"last_queued_at,omitempty"`
	UpdatedAt    time.Time     `json:"updated_at"`
	// OverrunPolicy, when set, overrides the scheduler-wide default for
	// this task alone.
	OverrunPolicy *OverrunPolicy `json:"overrun_policy,omitempty"`
	// OverrunStates picks which outstanding job states block a new fire.
	OverrunStates *OverrunStateMask `json:"overrun_states,omitempty"`
	// ActiveFireKey is the fire key of the job currently in flight for
	// this task, if any.
	ActiveFireKey *string `json:"active_fire_key,omitempty"`
}

// OverrunPolicy decides what happens when a task comes due while its
// previous job is still outstanding.
type OverrunPolicy string

const (
	// OverrunPolicySkip holds the fire while a blocking job exists. Jobs
	// whose lease has expired never block; a wedged worker must not stall
	// re-ingestion forever.
	OverrunPolicySkip OverrunPolicy = "skip"

	// OverrunPolicyQueue enqueues unconditionally.
	OverrunPolicyQueue OverrunPolicy = "queue"

	// OverrunPolicyReschedule advances last_queued_at without enqueueing,
	// effectively dropping the missed fire.
	OverrunPolicyReschedule OverrunPolicy = "reschedule"
)

func (p *OverrunPolicy) UnmarshalText(text []byte) error {
	v := strings.ToLower(strings.TrimSpace(string(text)))
	switch OverrunPolicy(v) {
	case OverrunPolicySkip, OverrunPolicyQueue, OverrunPolicyReschedule:
		*p = OverrunPolicy(v)
		return nil
	}
	return fmt.Errorf("invalid OverrunPolicy: %q", v)
}

// OverrunStateMask selects the job states that count as "still outstanding"
// under OverrunPolicySkip.
type OverrunStateMask uint8

const (
	// OverrunStateRunning blocks on a processing job with a live lease.
	OverrunStateRunning OverrunStateMask = 1 << iota
	// OverrunStatePending blocks on any pending job for the task.
	OverrunStatePending
	// OverrunStateRetrying blocks on a pending job that has already
	// failed at least once.
	OverrunStateRetrying
)

// OverrunStatesDefault blocks only on running jobs.
const OverrunStatesDefault = OverrunStateRunning

// overrunStateNames is ordered. String output and parse errors both rely on
// a stable ordering.
var overrunStateNames = []struct {
	name string
	flag OverrunStateMask
}{
	{"running", OverrunStateRunning},
	{"pending", OverrunStatePending},
	{"retrying", OverrunStateRetrying},
}

// Has reports whether the mask includes flag. A nil mask has nothing.
func (m *OverrunStateMask) Has(flag OverrunStateMask) bool {
	return m != nil && *m&flag != 0
}

// String renders the mask as a comma-separated list, e.g. "running,pending".
func (m *OverrunStateMask) String() string {
	if m == nil || *m == 0 {
		return ""
	}
	var parts []string
	for _, entry := range overrunStateNames {
		if *m&entry.flag != 0 {
			parts = append(parts, entry.name)
		}
	}
	return strings.Join(parts, ",")
}

func (m *OverrunStateMask) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

func (m *OverrunStateMask) UnmarshalText(text []byte) error {
	mask, err := ParseOverrunStateMask(string(text))
	if err != nil {
		return err
	}
	*m = mask
	return nil
}

// ParseOverrunStateMask parses a comma-separated list of state names. An
// empty string parses to the zero mask.
func ParseOverrunStateMask(v string) (OverrunStateMask, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0, nil
	}
	var mask OverrunStateMask
	for _, part := range strings.Split(v, ",") {
		name := strings.ToLower(strings.TrimSpace(part))
		flag, ok := overrunStateByName(name)
		if !ok {
			return 0, fmt.Errorf("invalid overrun state: %q", name)
		}
		mask |= flag
	}
	return mask, nil
}

func overrunStateByName(name string) (OverrunStateMask, bool) {
	for _, entry := range overrunStateNames {
		if entry.name == name {
			return entry.flag, true
		}
	}
	return 0, false
}

// StrategyOptions is the scheduler-wide overrun default that individual
// tasks may override.
type StrategyOptions struct {
	Overrun       OverrunPolicy    `json:"overrun"`
	OverrunStates OverrunStateMask `json:"overrun_states"`
}

// FindDueParams bounds one scheduler sweep.
type FindDueParams struct {
	Now   time.Time
	Limit int
}

// MarkQueuedParams records that a task fired, optionally stamping the fire
// key of the job it produced.
type MarkQueuedParams struct {
	ID                 string
	Now                time.Time
	ActiveFireKey      *string
	ActiveFireKeySetAt *time.Time
}

// UpdateActiveFireKeyParams sets or clears (FireKey == nil) the outstanding
// fire key on a task.
type UpdateActiveFireKeyParams struct {
	ID      string
	FireKey *string
	SetAt   time.Time
}

// UpsertTaskParams is the admin-facing upsert-by-name shape for
// scheduled_jobs rows.
type UpsertTaskParams struct {
	TaskName string
	Payload  json.RawMessage
	Interval time.Duration
	// Nil overrides fall back to the scheduler defaults.
	OverrunPolicy *OverrunPolicy
	OverrunStates *OverrunStateMask
}
