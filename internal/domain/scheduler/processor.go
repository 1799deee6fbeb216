// Package scheduler contains the overrun-policy state machine for scheduled
// re-ingestion tasks. It is pure coordination logic: persistence and job
// creation arrive as interfaces so the whole flow runs inside the caller's
// transaction.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/linkhound/ingest/internal/domain"
)

// TaskStore persists scheduler bookkeeping inside the ambient transaction.
type TaskStore interface {
	MarkQueued(ctx context.Context, params domain.MarkQueuedParams) (bool, error)
	UpdateActiveFireKey(ctx context.Context, params domain.UpdateActiveFireKeyParams) error
}

// JobStateReader reports which overrun states currently hold for a task.
type JobStateReader interface {
	JobStatesByTaskName(ctx context.Context, taskName string, now time.Time) (domain.OverrunStateMask, error)
}

// JobEnqueuer creates the job for a fire. Returns false when the fire key
// deduplicated against an existing job.
type JobEnqueuer interface {
	Enqueue(ctx context.Context, task domain.ScheduledTask, fireKey string) (bool, error)
}

// TaskProcessorOptions sets the scheduler-wide defaults that tasks may
// override row by row.
type TaskProcessorOptions struct {
	DefaultPolicy domain.OverrunPolicy
	DefaultStates domain.OverrunStateMask
	StateReader   JobStateReader
}

// TaskProcessor applies the overrun policy to one due task at a time.
type TaskProcessor struct {
	defaultPolicy domain.OverrunPolicy
	defaultStates domain.OverrunStateMask
	stateReader   JobStateReader
}

func NewTaskProcessor(opts TaskProcessorOptions) *TaskProcessor {
	policy := opts.DefaultPolicy
	if policy == "" {
		policy = domain.OverrunPolicySkip
	}
	states := opts.DefaultStates
	if states == 0 {
		states = domain.OverrunStatesDefault
	}
	return &TaskProcessor{
		defaultPolicy: policy,
		defaultStates: states,
		stateReader:   opts.StateReader,
	}
}

// ProcessParams carries one task plus the transaction-scoped collaborators.
type ProcessParams struct {
	Task     domain.ScheduledTask
	Now      time.Time
	Store    TaskStore
	Enqueuer JobEnqueuer
}

// ProcessResult describes what Process actually did.
type ProcessResult struct {
	// Worked is true when this invocation changed something: stamped
	// last_queued_at or created a job.
	Worked        bool
	Enqueued      bool
	MarkedQueued  bool
	FireKey       string
	ShouldEnqueue bool
}

// Process runs one task through the overrun flow. A task that is not yet due
// returns an empty result. For a due task the order is fixed: resolve the
// strategy, decide whether to enqueue, stamp last_queued_at (except under
// the queue policy, which stamps after the enqueue), then enqueue and record
// the fire key.
func (p *TaskProcessor) Process(ctx context.Context, params ProcessParams) (*ProcessResult, error) {
	if params.Store == nil {
		return nil, errors.New("task store is required")
	}

	now := params.Now
	if now.IsZero() {
		now = time.Now()
	}

	result := &ProcessResult{}
	if !isTaskDue(params.Task, now) {
		return result, nil
	}

	strategy := p.resolveStrategy(params.Task)
	fireKey := ComputeFireKey(params.Task, now)
	result.FireKey = fireKey

	shouldEnqueue, err := p.shouldEnqueue(ctx, params.Task, strategy, fireKey, now)
	if err != nil {
		return nil, fmt.Errorf("check overrun policy: %w", err)
	}
	result.ShouldEnqueue = shouldEnqueue

	// Skip and reschedule stamp last_queued_at up front so a blocked task
	// does not come due again on the next sweep. Queue defers the stamp
	// until the job exists.
	if strategy.policy != domain.OverrunPolicyQueue {
		marked, err := params.Store.MarkQueued(ctx, domain.MarkQueuedParams{ID: params.Task.ID, Now: now})
		if err != nil {
			return nil, fmt.Errorf("mark task queued: %w", err)
		}
		if marked {
			result.MarkedQueued = true
			result.Worked = true
		}
	}

	if !shouldEnqueue {
		return result, nil
	}
	if params.Enqueuer == nil {
		return nil, errors.New("job enqueuer is required")
	}

	created, err := params.Enqueuer.Enqueue(ctx, params.Task, fireKey)
	if err != nil {
		return nil, fmt.Errorf("enqueue job: %w", err)
	}
	if !created {
		return result, nil
	}
	result.Enqueued = true
	result.Worked = true

	if err := p.recordFire(ctx, params.Store, strategy.policy, params.Task.ID, fireKey, now); err != nil {
		return nil, err
	}
	return result, nil
}

type taskStrategy struct {
	policy domain.OverrunPolicy
	states domain.OverrunStateMask
}

// resolveStrategy layers the task's own overrides on top of the defaults. A
// zero state mask is never used; it would make skip a no-op.
func (p *TaskProcessor) resolveStrategy(task domain.ScheduledTask) taskStrategy {
	policy := p.defaultPolicy
	states := p.defaultStates

	if task.OverrunPolicy != nil {
		policy = *task.OverrunPolicy
	}
	if task.OverrunStates != nil && *task.OverrunStates != 0 {
		states = *task.OverrunStates
	}
	if states == 0 {
		states = domain.OverrunStatesDefault
	}
	return taskStrategy{policy: policy, states: states}
}

func (p *TaskProcessor) shouldEnqueue(
	ctx context.Context,
	task domain.ScheduledTask,
	strategy taskStrategy,
	fireKey string,
	now time.Time,
) (bool, error) {
	switch strategy.policy {
	case domain.OverrunPolicyQueue:
		return true, nil
	case domain.OverrunPolicyReschedule:
		return false, nil
	case domain.OverrunPolicySkip:
		if p.stateReader == nil {
			return false, errors.New("job state reader is not configured")
		}
		states, err := p.stateReader.JobStatesByTaskName(ctx, task.TaskName, now)
		if err != nil {
			return false, fmt.Errorf("check job states: %w", err)
		}
		if states&strategy.states != 0 {
			return false, nil
		}
		// The same fire key already produced a job; enqueueing again
		// would just dedup against it.
		if task.ActiveFireKey != nil && *task.ActiveFireKey == fireKey && fireKey != "" {
			return false, nil
		}
		return true, nil
	default:
		return false, fmt.Errorf("unknown overrun policy: %s", strategy.policy)
	}
}

// recordFire persists the fire key after a successful enqueue. Under the
// queue policy this doubles as the deferred last_queued_at stamp.
func (p *TaskProcessor) recordFire(
	ctx context.Context,
	store TaskStore,
	policy domain.OverrunPolicy,
	taskID, fireKey string,
	now time.Time,
) error {
	switch policy {
	case domain.OverrunPolicyQueue:
		setAt := now
		if _, err := store.MarkQueued(ctx, domain.MarkQueuedParams{
			ID:                 taskID,
			Now:                now,
			ActiveFireKey:      &fireKey,
			ActiveFireKeySetAt: &setAt,
		}); err != nil {
			return fmt.Errorf("mark task queued after enqueue: %w", err)
		}
	case domain.OverrunPolicySkip, domain.OverrunPolicyReschedule:
		if err := store.UpdateActiveFireKey(ctx, domain.UpdateActiveFireKeyParams{
			ID:      taskID,
			FireKey: &fireKey,
			SetAt:   now,
		}); err != nil {
			return fmt.Errorf("set active fire key: %w", err)
		}
	default:
		return fmt.Errorf("unknown overrun policy: %s", policy)
	}
	return nil
}

func isTaskDue(task domain.ScheduledTask, now time.Time) bool {
	if task.LastQueuedAt == nil {
		return true
	}
	return !task.LastQueuedAt.Add(task.Interval).After(now)
}

// ComputeFireKey buckets time into interval-sized slots so every replica
// that sees the same fire derives the same key. Tasks without a positive
// interval fall back to second granularity.
func ComputeFireKey(task domain.ScheduledTask, now time.Time) string {
	intervalSec := int64(task.Interval / time.Second)
	if intervalSec <= 0 {
		return fmt.Sprintf("%s:%d", task.ID, now.Unix())
	}
	return fmt.Sprintf("%s:%d", task.ID, now.Unix()/intervalSec)
}
