package core

import (
	"context"
	"database/sql"
	"time"

	"github.com/linkhound/ingest/internal/domain"
	"github.com/linkhound/ingest/internal/domain/model"
)

// ScheduledJobsRepository is the tick loop's view of scheduled_jobs. Due
// tasks are found under FOR UPDATE SKIP LOCKED so concurrent schedulers
// never pick up the same row; a task is due when last_queued_at is null or
// last_queued_at + interval has passed.
type ScheduledJobsRepository interface {
	FindDue(ctx context.Context, now time.Time, limit int) ([]domain.ScheduledTask, error)

	// FindDueTx keeps the returned rows locked until tx ends.
	FindDueTx(ctx context.Context, tx *sql.Tx, p domain.FindDueParams) ([]domain.ScheduledTask, error)

	// MarkQueued stamps last_queued_at. Reports (false, nil) when the task
	// no longer exists.
	MarkQueued(ctx context.Context, id string, now time.Time) (bool, error)
	MarkQueuedTx(ctx context.Context, tx *sql.Tx, p domain.MarkQueuedParams) (bool, error)

	// UpdateActiveFireKeyTx sets or clears the task's active fire key inside
	// the given transaction.
	UpdateActiveFireKeyTx(ctx context.Context, tx *sql.Tx, p domain.UpdateActiveFireKeyParams) error

	// TryWithTaskLock runs fn inside a transaction holding the task's
	// advisory lock (FNV-1a hash of the task name). Reports (false, nil)
	// when another scheduler holds the lock; fn does not run in that case.
	TryWithTaskLock(
		ctx context.Context,
		taskName string,
		fn func(context.Context, *sql.Tx) error,
	) (bool, error)
}

// ScheduledJobsAdminRepository is the admin-facing slice: create, replace or
// remove a task's schedule by name.
type ScheduledJobsAdminRepository interface {
	UpsertByTaskName(ctx context.Context, req domain.UpsertTaskParams) error
	// DeleteByTaskName reports whether a row was deleted.
	DeleteByTaskName(ctx context.Context, taskName string) (bool, error)
}

// JobIntrospector answers whether a scheduled task's previous run is still
// in the queue, which is what the overrun policies decide on.
type JobIntrospector interface {
	// RunningJobExistsByTaskName reports whether a processing job with an
	// unexpired lease carries this task name in its metadata.
	RunningJobExistsByTaskName(ctx context.Context, taskName string, now time.Time) (bool, error)
	// JobStatesByTaskName returns a bitmask of the overrun states the
	// task's jobs currently occupy.
	JobStatesByTaskName(ctx context.Context, taskName string, now time.Time) (domain.OverrunStateMask, error)
}

// JobScheduler drives one scheduling pass.
type JobScheduler interface {
	// Tick fires due tasks and returns how many were processed.
	Tick(ctx context.Context, now time.Time) (int, error)
}

// SchedulerConfig holds tick batch size and the defaults applied to jobs the
// scheduler enqueues.
type SchedulerConfig struct {
	BatchSize       int                    `json:"batch_size"`
	DefaultJobType  model.JobType          `json:"default_job_type"`
	DefaultPriority int                    `json:"default_priority"`
	MaxRetries      int                    `json:"max_retries"`
	Strategy        domain.StrategyOptions `json:"strategy"`
}

func DefaultSchedulerConfig() SchedulerConfig {
	return SchedulerConfig{
		BatchSize:       25,
		DefaultJobType:  model.JobTypeLinkPage,
		DefaultPriority: 0,
		MaxRetries:      3,
		Strategy: domain.StrategyOptions{
			Overrun:       domain.OverrunPolicySkip,
			OverrunStates: domain.OverrunStatesDefault,
		},
	}
}
