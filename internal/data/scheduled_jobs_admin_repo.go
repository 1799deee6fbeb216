package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/linkhound/ingest/internal/domain"
)

// ScheduledJobsAdminRepo covers the admin surface of scheduled_jobs: upsert
// and delete by task name, as driven by the schedules API and the CLI. The
// tick loop reads through the separate ScheduledJobsRepo, which carries the
// row-locking machinery this repo does not need.
type ScheduledJobsAdminRepo struct {
	DB           *sql.DB
	timeProvider TimeProvider
}

func NewScheduledJobsAdminRepo(db *sql.DB) *ScheduledJobsAdminRepo {
	return &ScheduledJobsAdminRepo{DB: db, timeProvider: &RealTimeProvider{}}
}

// NewScheduledJobsAdminRepoWithTimeProvider injects a fake clock for tests.
func NewScheduledJobsAdminRepoWithTimeProvider(db *sql.DB, tp TimeProvider) *ScheduledJobsAdminRepo {
	return &ScheduledJobsAdminRepo{DB: db, timeProvider: tp}
}

const upsertScheduledTaskSQL = `
	INSERT INTO scheduled_jobs (task_name, payload, scheduled_interval, overrun_policy, overrun_state_mask, created_at, updated_at)
	VALUES ($1, $2, ($3::int * interval '1 second'), $4, $5, $6, $6)
	ON CONFLICT (task_name) DO UPDATE
	SET payload = EXCLUDED.payload,
	    scheduled_interval = EXCLUDED.scheduled_interval,
	    overrun_policy = COALESCE(EXCLUDED.overrun_policy, scheduled_jobs.overrun_policy),
	    overrun_state_mask = COALESCE(EXCLUDED.overrun_state_mask, scheduled_jobs.overrun_state_mask),
	    updated_at = EXCLUDED.updated_at`

// UpsertByTaskName creates or reconfigures the schedule for a task. Omitted
// overrun settings keep whatever the row already has; last_queued_at is
// never touched, so reconfiguring a schedule does not make it fire early.
func (r *ScheduledJobsAdminRepo) UpsertByTaskName(ctx context.Context, req domain.UpsertTaskParams) error {
	if req.TaskName == "" {
		return errors.New("task name is required")
	}
	seconds := int64(req.Interval / time.Second)
	if seconds <= 0 {
		return errors.New("interval must be positive")
	}

	var policy, states any
	if req.OverrunPolicy != nil {
		policy = string(*req.OverrunPolicy)
	}
	if req.OverrunStates != nil {
		states = int16(*req.OverrunStates)
	}

	now := r.timeProvider.Now().UTC()
	if _, err := r.DB.ExecContext(ctx, upsertScheduledTaskSQL,
		req.TaskName, req.Payload, seconds, policy, states, now); err != nil {
		return fmt.Errorf("upsert scheduled_job: %w", err)
	}
	return nil
}

// DeleteByTaskName removes a task's schedule, reporting whether a row
// existed.
func (r *ScheduledJobsAdminRepo) DeleteByTaskName(ctx context.Context, taskName string) (bool, error) {
	if taskName == "" {
		return false, errors.New("task name is required")
	}

	res, err := r.DB.ExecContext(ctx, `DELETE FROM scheduled_jobs WHERE task_name = $1`, taskName)
	if err != nil {
		return false, fmt.Errorf("delete scheduled_job: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n > 0, nil
}
