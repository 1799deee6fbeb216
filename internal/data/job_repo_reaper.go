package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/linkhound/ingest/internal/core"
	"github.com/linkhound/ingest/internal/data/pgxutil"
)

// Reaper sweeps take a two-part advisory lock so that overlapping reaper
// replicas skip instead of contending. Major key 1000 is the reaper
// namespace; minors identify the individual sweep.
const (
	reaperLockMajor int64 = 1000

	reaperLockFailPending   int64 = 1
	reaperLockDeleteJobs    int64 = 2
	reaperLockDeleteResults int64 = 3
)

// withReaperLock runs sweep inside a transaction holding the reaper advisory
// lock for the given minor key. If another replica holds the lock the sweep
// is skipped and zero rows are reported.
func (r *JobRepo) withReaperLock(ctx context.Context, minor int64, sweep func(tx *sql.Tx) (sql.Result, error)) (int64, error) {
	var affected int64
	err := pgxutil.WithSQLTx(ctx, r.DB, pgxutil.SQLTxConfig{
		Fn: func(tx *sql.Tx) error {
			locked, lockErr := tryAdvisoryXactLock(ctx, tx, reaperLockMajor, minor)
			if lockErr != nil || !locked {
				return lockErr
			}

			res, err := sweep(tx)
			if err != nil {
				return err
			}
			affected, err = res.RowsAffected()
			if err != nil {
				return fmt.Errorf("rows affected: %w", err)
			}
			return nil
		},
	})
	if err != nil {
		return 0, err
	}
	return affected, nil
}

// FailStalePendingJobs fails pending jobs that sat unclaimed longer than
// maxAge, at most batchSize per call to keep each transaction short. Returns
// the number of jobs failed.
func (r *JobRepo) FailStalePendingJobs(ctx context.Context, maxAge time.Duration, batchSize int) (int64, error) {
	return r.withReaperLock(ctx, reaperLockFailPending, func(tx *sql.Tx) (sql.Result, error) {
		now := r.timeProvider.Now()
		cutoff := now.Add(-maxAge)

		res, err := tx.ExecContext(ctx, `
			UPDATE jobs
			SET status = 'failed',
				last_error = 'Job timed out in pending status',
				completed_at = $1,
				updated_at = $1
			WHERE id IN (
				SELECT id FROM jobs
				WHERE status = 'pending'
				  AND created_at < $2
				ORDER BY created_at
				LIMIT $3
			)
		`, now.UTC(), cutoff.UTC(), batchSize)
		if err != nil {
			return nil, fmt.Errorf("fail stale pending jobs: %w", err)
		}
		return res, nil
	})
}

// DeleteOldJobs removes terminal jobs of the given status older than MaxAge,
// at most BatchSize per call. Jobs that never completed fall back to
// updated_at for the age check.
func (r *JobRepo) DeleteOldJobs(ctx context.Context, params core.DeleteOldJobsParams) (int64, error) {
	if !params.Status.Valid() {
		return 0, fmt.Errorf("invalid job status: %s", params.Status)
	}

	return r.withReaperLock(ctx, reaperLockDeleteJobs, func(tx *sql.Tx) (sql.Result, error) {
		cutoff := r.timeProvider.Now().Add(-params.MaxAge).UTC()

		res, err := tx.ExecContext(ctx, `
			DELETE FROM jobs
			WHERE id IN (
				SELECT id FROM jobs
				WHERE status = $1
				  AND (completed_at < $2 OR (completed_at IS NULL AND updated_at < $2))
				ORDER BY COALESCE(completed_at, updated_at)
				LIMIT $3
			)
		`, params.Status, cutoff, params.BatchSize)
		if err != nil {
			return nil, fmt.Errorf("delete old jobs: %w", err)
		}
		return res, nil
	})
}

// DeleteOldJobResults removes persisted extraction results for the given job
// type older than MaxAge, at most BatchSize rows per call. job_results has
// no surrogate key, so the batch is addressed by ctid.
func (r *JobRepo) DeleteOldJobResults(ctx context.Context, params core.DeleteOldJobResultsParams) (int64, error) {
	if !params.JobType.Valid() {
		return 0, fmt.Errorf("invalid job type: %s", params.JobType)
	}
	if params.BatchSize <= 0 {
		return 0, errors.New("batch size must be greater than zero")
	}
	if params.MaxAge <= 0 {
		return 0, errors.New("max age must be greater than zero")
	}

	return r.withReaperLock(ctx, reaperLockDeleteResults, func(tx *sql.Tx) (sql.Result, error) {
		cutoff := r.timeProvider.Now().Add(-params.MaxAge).UTC()

		res, err := tx.ExecContext(ctx, `
			DELETE FROM job_results
			USING (
				SELECT ctid
				FROM job_results
				WHERE job_type = $1
				  AND updated_at < $2
				ORDER BY updated_at
				LIMIT $3
			) sub
			WHERE job_results.ctid = sub.ctid
		`, params.JobType, cutoff, params.BatchSize)
		if err != nil {
			return nil, fmt.Errorf("delete old job_results: %w", err)
		}
		return res, nil
	})
}
