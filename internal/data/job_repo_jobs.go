package data

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"hash/fnv"
	"math"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"

	"github.com/linkhound/ingest/internal/core"
	"github.com/linkhound/ingest/internal/data/pgxutil"
	"github.com/linkhound/ingest/internal/domain"
	"github.com/linkhound/ingest/internal/domain/model"
	"github.com/linkhound/ingest/internal/domain/platform"
)

const defaultMaxAttempts = 3

// The conflict target matches the partial unique index on dedup_key over
// non-terminal statuses.
const insertJobSQL = `
  INSERT INTO jobs(type, status, priority, payload, metadata, dedup_key, creator_profile_id, run_at, max_attempts)
  VALUES ($1,'pending',$2,$3,$4,$5,$6,$7,$8)
  ON CONFLICT (dedup_key) WHERE status IN ('pending','processing') DO NOTHING
  RETURNING ` + jobColumns

// SQL used by ClaimNext to atomically claim the next eligible job.
const claimNextUpdateSQL = `
  WITH cte AS (
    SELECT id FROM jobs
    WHERE type = $1 AND status = 'pending' AND run_at <= $2
    ORDER BY priority DESC, run_at ASC, created_at ASC
    LIMIT 1
    FOR UPDATE SKIP LOCKED
  )
  UPDATE jobs j
  SET
    status = 'processing',
    started_at = COALESCE(j.started_at, $3),
    claimed_by = $4,
    lease_expires_at = $5,
    updated_at = $6
  FROM cte
  WHERE j.id = cte.id
  RETURNING j.id, j.type, j.status, j.priority, j.payload, j.metadata, j.dedup_key, j.creator_profile_id, j.attempts, j.max_attempts, j.run_at, j.started_at, j.completed_at, j.last_error, j.error_class, j.claimed_by, j.lease_expires_at, j.created_at, j.updated_at`

// preparedJob is a CreateJobRequest normalized for insertion.
type preparedJob struct {
	req         *model.CreateJobRequest
	payload     []byte
	metadata    []byte
	dedupKey    string
	runAt       time.Time
	maxAttempts int
}

// Create enqueues a new job. Enqueueing is idempotent over the dedup key:
// when a non-terminal job already exists for the same (type, profile,
// canonical target), the existing row is returned unchanged instead of
// inserting a duplicate.
func (r *JobRepo) Create(
	ctx context.Context,
	req *model.CreateJobRequest,
) (*model.Job, error) {
	if req == nil {
		return nil, errors.New("create job request is required")
	}
	if validateErr := req.Validate(); validateErr != nil {
		return nil, validateErr
	}

	prepared, err := r.prepareInsert(req)
	if err != nil {
		return nil, err
	}

	var job *model.Job
	if txErr := pgxutil.WithPgxTx(ctx, r.DB, pgxutil.TxConfig{
		Fn: func(tx pgx.Tx) error {
			var insertErr error
			job, insertErr = r.insertJobInTx(ctx, tx, prepared)
			return insertErr
		},
	}); txErr != nil {
		return nil, txErr
	}

	return job, nil
}

// prepareInsert normalizes the request into insert parameters. The dedup key
// is derived from the canonicalized target URL so that cosmetic URL variants
// schedule exactly one job.
func (r *JobRepo) prepareInsert(req *model.CreateJobRequest) (preparedJob, error) {
	canonical, err := platform.Canonicalize(req.Payload.SourceURL)
	if err != nil {
		return preparedJob{}, fmt.Errorf("canonicalize source url: %w", err)
	}

	payload, err := json.Marshal(req.Payload)
	if err != nil {
		return preparedJob{}, fmt.Errorf("marshal job payload: %w", err)
	}
	metadata := []byte(`{}`)
	if req.Metadata != nil {
		if metadata, err = json.Marshal(req.Metadata); err != nil {
			return preparedJob{}, fmt.Errorf("marshal job metadata: %w", err)
		}
	}

	runAt := r.timeProvider.Now().UTC()
	if req.RunAt != nil {
		runAt = req.RunAt.UTC()
	}
	maxAttempts := req.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxAttempts
	}

	return preparedJob{
		req:         req,
		payload:     payload,
		metadata:    metadata,
		dedupKey:    model.DedupKey(req.Type, req.Payload.CreatorProfileID, canonical),
		runAt:       runAt,
		maxAttempts: maxAttempts,
	}, nil
}

// insertJobInTx inserts a job and emits the NOTIFY that wakes idle workers.
// When the dedup constraint already holds it returns the existing
// non-terminal job instead.
func (r *JobRepo) insertJobInTx(ctx context.Context, tx pgx.Tx, prepared preparedJob) (*model.Job, error) {
	rows, err := tx.Query(ctx, insertJobSQL,
		prepared.req.Type,
		prepared.req.Priority,
		prepared.payload,
		prepared.metadata,
		prepared.dedupKey,
		prepared.req.Payload.CreatorProfileID,
		prepared.runAt,
		prepared.maxAttempts,
	)
	if err != nil {
		return nil, fmt.Errorf("insert job: %w", err)
	}
	job, collectErr := collectJobFromRows(rows)
	rows.Close()
	if errors.Is(collectErr, pgx.ErrNoRows) {
		// ON CONFLICT DO NOTHING fired: an equivalent non-terminal job
		// exists. Return it so enqueueing stays a no-op.
		existing, findErr := findNonTerminalByDedupKeyInTx(ctx, tx, prepared.dedupKey)
		if findErr != nil {
			return nil, fmt.Errorf("find deduplicated job: %w", findErr)
		}
		return existing, nil
	}
	if collectErr != nil {
		return nil, fmt.Errorf("collect job: %w", collectErr)
	}

	channel := "job_added_" + string(prepared.req.Type)
	if _, execErr := tx.Exec(ctx, `SELECT pg_notify($1::text, $2::text)`, channel, job.ID); execErr != nil {
		return nil, fmt.Errorf("send job notification: %w", execErr)
	}
	return job, nil
}

func findNonTerminalByDedupKeyInTx(ctx context.Context, tx pgx.Tx, dedupKey string) (*model.Job, error) {
	rows, err := tx.Query(ctx, `
		SELECT `+jobColumns+`
		FROM jobs
		WHERE dedup_key = $1 AND status IN ('pending','processing')
		LIMIT 1
	`, dedupKey)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectJobFromRows(rows)
}

// collectJobFromRows reads exactly one job from rows, or pgx.ErrNoRows.
func collectJobFromRows(rows pgx.Rows) (*model.Job, error) {
	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, err
		}
		return nil, pgx.ErrNoRows
	}
	job, err := scanJobFromRow(rows)
	if err != nil {
		return nil, err
	}
	return job, rows.Err()
}

type jobRowScanner interface {
	Scan(dest ...any) error
}

type jobRowData struct {
	payload, metadata                      []byte
	lastError, errorClass, claimedBy       sql.NullString
	startedAt, completedAt, leaseExpiresAt sql.NullTime
}

func (d *jobRowData) scanInto(scanner jobRowScanner, job *model.Job) error {
	return scanner.Scan(
		&job.ID,
		&job.Type,
		&job.Status,
		&job.Priority,
		&d.payload,
		&d.metadata,
		&job.DedupKey,
		&job.CreatorProfileID,
		&job.Attempts,
		&job.MaxAttempts,
		&job.RunAt,
		&d.startedAt,
		&d.completedAt,
		&d.lastError,
		&d.errorClass,
		&d.claimedBy,
		&d.leaseExpiresAt,
		&job.CreatedAt,
		&job.UpdatedAt,
	)
}

func (d *jobRowData) apply(job *model.Job) {
	job.Payload = cloneJSON(d.payload)
	job.Metadata = cloneJSON(d.metadata)
	job.LastError = cloneNullableString(d.lastError)
	job.ErrorClass = cloneNullableString(d.errorClass)
	job.ClaimedBy = cloneNullableString(d.claimedBy)
	job.StartedAt = cloneNullableTime(d.startedAt)
	job.CompletedAt = cloneNullableTime(d.completedAt)
	job.LeaseExpiresAt = cloneNullableTime(d.leaseExpiresAt)
}

func scanJobFromRow(scanner jobRowScanner) (*model.Job, error) {
	job := &model.Job{}
	var data jobRowData
	if err := data.scanInto(scanner, job); err != nil {
		return nil, err
	}
	data.apply(job)
	return job, nil
}

func cloneJSON(raw []byte) json.RawMessage {
	if len(raw) == 0 {
		return json.RawMessage(`{}`)
	}
	return append(json.RawMessage(nil), raw...)
}

func cloneNullableString(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

func cloneNullableTime(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time.UTC()
	return &t
}

// tryAdvisoryXactLock attempts a two-part transaction-scoped advisory lock.
// The lock releases with the transaction; false means another holder has it.
func tryAdvisoryXactLock(ctx context.Context, tx *sql.Tx, major, minor int64) (bool, error) {
	var locked bool
	if err := tx.QueryRowContext(ctx,
		"SELECT pg_try_advisory_xact_lock($1::integer, $2::integer)", major, minor).Scan(&locked); err != nil {
		return false, fmt.Errorf("acquire advisory lock: %w", err)
	}
	return locked, nil
}

// Lease requeues are namespaced per job type under major key 1001 so claim
// paths for different types never contend on the lock.
const requeueLockMajor int64 = 1001

func requeueLockMinor(jobType model.JobType) int64 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(jobType))
	return int64(h.Sum32() & math.MaxInt32)
}

// requeueExpired returns processing jobs with expired leases to pending so
// the next claim can pick them up. A skipped lock means another worker is
// already sweeping the type; that is not an error.
func (r *JobRepo) requeueExpired(ctx context.Context, jobType model.JobType) (int64, error) {
	var requeued int64
	err := pgxutil.WithSQLTx(ctx, r.DB, pgxutil.SQLTxConfig{
		Fn: func(tx *sql.Tx) error {
			locked, lockErr := tryAdvisoryXactLock(ctx, tx, requeueLockMajor, requeueLockMinor(jobType))
			if lockErr != nil || !locked {
				return lockErr
			}

			res, execErr := tx.ExecContext(ctx, `
				UPDATE jobs
				SET status = 'pending', claimed_by = NULL, lease_expires_at = NULL
				WHERE type = $1 AND status = 'processing'
				  AND lease_expires_at IS NOT NULL
				  AND lease_expires_at < $2
			`, jobType, r.timeProvider.Now().UTC())
			if execErr != nil {
				return fmt.Errorf("requeue expired: %w", execErr)
			}
			var raErr error
			requeued, raErr = res.RowsAffected()
			if raErr != nil {
				return fmt.Errorf("rows affected: %w", raErr)
			}
			return nil
		},
	})
	if err != nil {
		return 0, err
	}
	return requeued, nil
}

// ClaimNext claims the next eligible job of the given type for a worker.
// Eligible means pending with run_at due; candidates are ordered by priority
// then run_at, and the flip to processing is a single atomic statement.
func (r *JobRepo) ClaimNext(
	ctx context.Context,
	jobType model.JobType,
	workerID string,
	leaseSeconds int,
) (*model.Job, error) {
	if !jobType.Valid() {
		return nil, fmt.Errorf("invalid job type: %s", jobType)
	}

	if _, err := r.requeueExpired(ctx, jobType); err != nil {
		return nil, fmt.Errorf("requeue expired jobs: %w", err)
	}

	var job *model.Job
	err := pgxutil.WithPgxTx(ctx, r.DB, pgxutil.TxConfig{
		Opts: &sql.TxOptions{
			Isolation: sql.LevelReadCommitted,
			ReadOnly:  false,
		},
		Fn: func(tx pgx.Tx) error {
			now := r.timeProvider.Now().UTC()
			lease := now.Add(time.Duration(leaseSeconds) * time.Second)

			rows, qerr := tx.Query(ctx, claimNextUpdateSQL, jobType, now, now, workerID, lease, now)
			if qerr != nil {
				return fmt.Errorf("claim job: %w", qerr)
			}
			defer rows.Close()

			j, cerr := collectJobFromRows(rows)
			if errors.Is(cerr, pgx.ErrNoRows) {
				return model.ErrNoJobsAvailable
			}
			if cerr != nil {
				return fmt.Errorf("claim job: %w", cerr)
			}
			job = j
			return nil
		},
	})
	if err != nil {
		if errors.Is(err, model.ErrNoJobsAvailable) {
			return nil, model.ErrNoJobsAvailable
		}
		return nil, err
	}
	return job, nil
}

// Heartbeat refreshes the lease on a processing job. False means the job is
// no longer processing and the worker should stop.
func (r *JobRepo) Heartbeat(ctx context.Context, jobID string, leaseSeconds int) (bool, error) {
	if leaseSeconds <= 0 {
		return false, errors.New("leaseSeconds must be positive")
	}

	now := r.timeProvider.Now().UTC()
	res, err := r.DB.ExecContext(ctx, `
		UPDATE jobs
		SET lease_expires_at = $2,
		    updated_at = $3
		WHERE id = $1 AND status = 'processing'
	`, jobID, now.Add(time.Duration(leaseSeconds)*time.Second), now)
	if err != nil {
		return false, fmt.Errorf("heartbeat job: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("heartbeat rows affected: %w", err)
	}
	return affected > 0, nil
}

// Complete marks a job as succeeded and releases any scheduler fire key it
// carried.
func (r *JobRepo) Complete(ctx context.Context, id string) (bool, error) {
	now := r.timeProvider.Now().UTC()

	query := `
		UPDATE jobs
		SET status = 'succeeded',
		    completed_at = $2,
		    updated_at = $3,
		    claimed_by = NULL,
		    lease_expires_at = NULL,
		    last_error = NULL,
		    error_class = NULL
		WHERE id = $1 AND status = 'processing'
		RETURNING metadata->>'scheduler.task_name', metadata->>'scheduler.fire_key'
	`

	var taskName, fireKey sql.NullString
	if err := r.DB.QueryRowContext(ctx, query, id, now, now).Scan(&taskName, &fireKey); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("failed to complete job: %w", err)
	}

	r.releaseFireKey(ctx, taskName, fireKey)
	return true, nil
}

// Fail records a failed attempt. Retryable failures are requeued with
// exponential backoff until attempts reach max_attempts; non-retryable
// failures (content, policy) go terminal on the spot.
func (r *JobRepo) Fail(ctx context.Context, params core.FailParams) (core.FailResult, error) {
	now := r.timeProvider.Now()

	query := `
      UPDATE jobs
      SET
        last_error = $2,
        error_class = $3,
        attempts = attempts + 1,
        status = CASE WHEN NOT $4 OR attempts + 1 >= max_attempts THEN 'failed' ELSE 'pending' END,
        completed_at = CASE WHEN NOT $4 OR attempts + 1 >= max_attempts THEN $5::timestamptz ELSE NULL END,
        claimed_by = NULL,
        lease_expires_at = NULL,
        run_at = CASE WHEN NOT $4 OR attempts + 1 >= max_attempts THEN run_at
                      ELSE $6::timestamptz END,
        updated_at = $7
      WHERE id = $1 AND status = 'processing'
      RETURNING status, attempts, run_at, metadata->>'scheduler.task_name', metadata->>'scheduler.fire_key'
    `

	// Backoff is computed for the worst case (current attempt count); the
	// CASE keeps run_at untouched on terminal failure. The claimed job is
	// exclusively ours, so peeking attempts outside the UPDATE is safe.
	retryAt := r.backoff.NextRunAt(now, r.peekAttempts(ctx, params.ID))

	var (
		status            string
		attempts          int
		runAt             time.Time
		taskName, fireKey sql.NullString
	)
	if err := r.DB.QueryRowContext(ctx, query,
		params.ID,
		params.ErrMsg,
		nullableString(params.ErrorClass),
		params.Retryable,
		now.UTC(),
		retryAt.UTC(),
		now.UTC(),
	).Scan(&status, &attempts, &runAt, &taskName, &fireKey); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.FailResult{}, nil
		}
		return core.FailResult{}, fmt.Errorf("fail job: %w", err)
	}

	result := core.FailResult{
		Found:  true,
		Status: model.JobStatus(status),
	}
	if result.Status == model.JobStatusPending {
		next := runAt.UTC()
		result.NextRunAt = &next
	}
	if result.Status == model.JobStatusFailed {
		r.releaseFireKey(ctx, taskName, fireKey)
	}
	return result, nil
}

// peekAttempts reads a job's current attempt count for backoff computation.
// A missing row reads as zero; the subsequent UPDATE decides whether the job
// exists at all.
func (r *JobRepo) peekAttempts(ctx context.Context, id string) int {
	var attempts int
	if err := r.DB.QueryRowContext(ctx, `SELECT attempts FROM jobs WHERE id = $1`, id).Scan(&attempts); err != nil {
		return 0
	}
	return attempts
}

func nullableString(s string) any {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return s
}

// releaseFireKey clears the scheduler fire key a terminal job carried, if
// any. A failed clear is logged rather than returned: the job itself is
// already terminal, and the key is recoverable through the fire key
// timestamp on the task row.
func (r *JobRepo) releaseFireKey(ctx context.Context, taskName, fireKey sql.NullString) {
	if !taskName.Valid || !fireKey.Valid {
		return
	}
	if err := r.clearActiveFireKey(ctx, taskName.String, fireKey.String); err != nil && r.logger != nil {
		r.logger.ErrorContext(ctx, "clear active fire key failed",
			"task_name", taskName.String,
			"fire_key", fireKey.String,
			"error", err,
		)
	}
}

func (r *JobRepo) clearActiveFireKey(ctx context.Context, taskName, fireKey string) error {
	if strings.TrimSpace(taskName) == "" || strings.TrimSpace(fireKey) == "" {
		return nil
	}

	query := `
		UPDATE scheduled_jobs
		SET active_fire_key = NULL,
		    active_fire_key_set_at = NULL,
		    updated_at = $3
		WHERE task_name = $1
		  AND active_fire_key = $2
	`
	if _, err := r.DB.ExecContext(ctx, query, taskName, fireKey, r.timeProvider.Now().UTC()); err != nil {
		return fmt.Errorf("clear active fire key: %w", err)
	}
	return nil
}

// Stats returns per-status job counts for the given type.
func (r *JobRepo) Stats(ctx context.Context, jobType model.JobType) (*model.JobStats, error) {
	var s model.JobStats
	err := r.DB.QueryRowContext(ctx, `
  SELECT
    count(*) FILTER (WHERE status = 'pending')    AS pending,
    count(*) FILTER (WHERE status = 'processing') AS processing,
    count(*) FILTER (WHERE status = 'succeeded')  AS succeeded,
    count(*) FILTER (WHERE status = 'failed')     AS failed
  FROM jobs
  WHERE type = $1
  `, jobType).Scan(&s.Pending, &s.Processing, &s.Succeeded, &s.Failed)
	if err != nil {
		return nil, fmt.Errorf("failed to get job stats: %w", err)
	}
	return &s, nil
}

// WaitForNotification blocks until a NOTIFY for the job type's channel
// arrives or the context ends. It pins a pool connection for the duration
// and reaches through the stdlib bridge for the underlying pgx conn.
func (r *JobRepo) WaitForNotification(ctx context.Context, jobType model.JobType) error {
	conn, err := r.DB.Conn(ctx)
	if err != nil {
		return fmt.Errorf("get conn from pool: %w", err)
	}
	defer func() {
		_ = conn.Close()
	}()

	channel := "job_added_" + string(jobType)
	quoted := pgx.Identifier{channel}.Sanitize()

	if _, execErr := conn.ExecContext(ctx, "LISTEN "+quoted); execErr != nil {
		return fmt.Errorf("listen %s: %w", channel, execErr)
	}
	defer func() {
		// Fresh context: the wait context is typically expired by now.
		_, _ = conn.ExecContext(context.Background(), "UNLISTEN "+quoted)
	}()

	return conn.Raw(func(dc any) error {
		sc, ok := dc.(*stdlib.Conn)
		if !ok {
			return errors.New("unexpected driver connection type; expected *stdlib.Conn")
		}
		_, notifyErr := sc.Conn().WaitForNotification(ctx)
		return notifyErr
	})
}

// GetByID retrieves a job by its ID.
func (r *JobRepo) GetByID(ctx context.Context, id string) (*model.Job, error) {
	var job *model.Job
	err := pgxutil.WithPgxConn(ctx, r.DB, func(pgxConn *pgx.Conn) error {
		rows, err := pgxConn.Query(ctx, `
			SELECT `+jobColumns+`
			FROM jobs
			WHERE id = $1
		`, id)
		if err != nil {
			return err
		}
		defer rows.Close()
		job, err = collectJobFromRows(rows)
		return err
	})

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrJobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get job: %w", err)
	}
	return job, nil
}

// HasActiveOrSucceededByDedupKey reports whether any non-terminal or
// previously succeeded job exists for the dedup key. The crawl controller
// uses this to avoid re-enqueueing targets that are queued, running, or
// already crawled successfully.
func (r *JobRepo) HasActiveOrSucceededByDedupKey(ctx context.Context, dedupKey string) (bool, error) {
	var exists bool
	err := r.DB.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM jobs
			WHERE dedup_key = $1
			  AND status IN ('pending', 'processing', 'succeeded')
		)
	`, dedupKey).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check dedup key: %w", err)
	}
	return exists, nil
}

// Delete removes a terminal or unclaimed pending job. Processing jobs and
// pending jobs under an unexpired lease are refused.
func (r *JobRepo) Delete(ctx context.Context, id string) error {
	now := r.timeProvider.Now()
	res, err := r.DB.ExecContext(ctx, `
		DELETE FROM jobs
		WHERE id = $1
		  AND status IN ('pending', 'succeeded', 'failed')
		  AND (lease_expires_at IS NULL OR lease_expires_at <= $2)
	`, id, now.UTC())
	if err != nil {
		return fmt.Errorf("failed to delete job: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected > 0 {
		return nil
	}
	return r.explainDeleteRefusal(ctx, id, now)
}

// explainDeleteRefusal turns a zero-row delete into the specific refusal
// reason by re-reading the job.
func (r *JobRepo) explainDeleteRefusal(ctx context.Context, id string, now time.Time) error {
	job, err := r.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrJobNotFound) {
			return ErrJobNotFound
		}
		return fmt.Errorf("failed to re-check job after delete attempt: %w", err)
	}

	if job.Status == model.JobStatusProcessing {
		return ErrJobNotDeletable
	}
	if job.LeaseExpiresAt != nil && now.Before(*job.LeaseExpiresAt) {
		return ErrJobClaimed
	}
	return errors.New("unexpected state: job is in deletable state but delete failed")
}

// RunningJobExistsByTaskName checks whether a processing job with an unexpired lease
// exists for a scheduler task.
func (r *JobRepo) RunningJobExistsByTaskName(
	ctx context.Context,
	taskName string,
	now time.Time,
) (bool, error) {
	mask, err := r.JobStatesByTaskName(ctx, taskName, now)
	if err != nil {
		return false, err
	}
	return mask.Has(domain.OverrunStateRunning), nil
}

// JobStatesByTaskName returns a bitmask describing which overrun states currently exist for a scheduler task.
func (r *JobRepo) JobStatesByTaskName(
	ctx context.Context,
	taskName string,
	now time.Time,
) (domain.OverrunStateMask, error) {
	query := `
		SELECT
			COALESCE(bool_or(status = 'processing' AND lease_expires_at > $1), FALSE) AS has_running,
			COALESCE(bool_or(status = 'pending'), FALSE) AS has_pending,
			COALESCE(bool_or(status = 'pending' AND attempts > 0), FALSE) AS has_retrying
		FROM jobs
		WHERE metadata->>'scheduler.task_name' = $2
		  AND status IN ('processing', 'pending')
	`

	var hasRunning, hasPending, hasRetrying bool
	if err := r.DB.QueryRowContext(ctx, query, now.UTC(), taskName).Scan(&hasRunning, &hasPending, &hasRetrying); err != nil {
		return 0, fmt.Errorf("check job states by task name: %w", err)
	}

	var mask domain.OverrunStateMask
	if hasRunning {
		mask |= domain.OverrunStateRunning
	}
	if hasPending {
		mask |= domain.OverrunStatePending
	}
	if hasRetrying {
		mask |= domain.OverrunStateRetrying
	}
	return mask, nil
}
