package data

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"math"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/linkhound/ingest/internal/data/pgxutil"
	"github.com/linkhound/ingest/internal/domain"
)

// ScheduledJobsRepo reads and updates the scheduled_jobs table that drives
// periodic re-ingestion. Scheduler replicas coordinate through two database
// mechanisms: FOR UPDATE SKIP LOCKED on the due-task sweep and a per-task
// advisory lock while a task is being processed.
type ScheduledJobsRepo struct {
	DB           *sql.DB
	timeProvider TimeProvider
}

func NewScheduledJobsRepo(db *sql.DB) *ScheduledJobsRepo {
	return &ScheduledJobsRepo{DB: db, timeProvider: &RealTimeProvider{}}
}

// NewScheduledJobsRepoWithTimeProvider injects a clock for tests.
func NewScheduledJobsRepoWithTimeProvider(db *sql.DB, timeProvider TimeProvider) *ScheduledJobsRepo {
	return &ScheduledJobsRepo{DB: db, timeProvider: timeProvider}
}

// taskLockKey hashes a task name into the advisory lock keyspace. Advisory
// locks take a BIGINT, so the unsigned FNV-1a value is folded into int64
// range first.
func taskLockKey(taskName string) int64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(taskName))
	u := h.Sum64()
	if u > uint64(math.MaxInt64) {
		u %= uint64(math.MaxInt64)
	}
	return int64(u) // #nosec G115 -- bounded to MaxInt64 above
}

const scheduledJobColumns = `
  id,
  task_name,
  payload,
  EXTRACT(EPOCH FROM scheduled_interval)::bigint AS interval_seconds,
  last_queued_at,
  updated_at,
  overrun_policy,
  overrun_state_mask,
  active_fire_key
`

// dueTasksQuery selects tasks whose interval has elapsed (or that have never
// fired), never-fired tasks first. SKIP LOCKED keeps two scheduler replicas
// from sweeping the same rows.
const dueTasksQuery = `
	SELECT ` + scheduledJobColumns + `
	FROM scheduled_jobs
	WHERE (last_queued_at IS NULL OR last_queued_at + scheduled_interval <= $1)
	ORDER BY
		CASE WHEN last_queued_at IS NULL THEN 0 ELSE 1 END,
		last_queued_at ASC,
		created_at ASC
	LIMIT $2
	FOR UPDATE SKIP LOCKED
`

// FindDue returns up to limit due tasks.
func (r *ScheduledJobsRepo) FindDue(ctx context.Context, now time.Time, limit int) ([]domain.ScheduledTask, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be positive, got %d", limit)
	}

	var tasks []domain.ScheduledTask
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, dueTasksQuery, now.UTC(), limit)
		if err != nil {
			return err
		}
		defer rows.Close()

		collected, err := pgx.CollectRows(rows, rowToScheduledTask)
		if err != nil {
			return err
		}
		tasks = collected
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("query due scheduled tasks: %w", err)
	}
	return tasks, nil
}

// FindDueTx is the transactional variant. The caller must apply its updates
// (MarkQueuedTx and friends) inside the same transaction, otherwise the row
// locks taken here protect nothing.
func (r *ScheduledJobsRepo) FindDueTx(ctx context.Context, tx *sql.Tx, p domain.FindDueParams) ([]domain.ScheduledTask, error) {
	if p.Limit <= 0 {
		return nil, fmt.Errorf("limit must be positive, got %d", p.Limit)
	}

	rows, err := tx.QueryContext(ctx, dueTasksQuery, p.Now.UTC(), p.Limit)
	if err != nil {
		return nil, fmt.Errorf("query due scheduled tasks: %w", err)
	}
	defer rows.Close()

	var tasks []domain.ScheduledTask
	for rows.Next() {
		task, err := scanScheduledTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan scheduled task: %w", err)
		}
		tasks = append(tasks, task)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate scheduled tasks: %w", err)
	}
	return tasks, nil
}

// markQueuedUpdate builds the UPDATE that stamps last_queued_at and sets or
// clears the active fire key in the same statement.
func (r *ScheduledJobsRepo) markQueuedUpdate(p domain.MarkQueuedParams) (string, []any) {
	now := r.timeProvider.Now().UTC()

	clauses := []string{"last_queued_at = $2", "updated_at = $3"}
	args := []any{p.ID, p.Now.UTC(), now}
	clauses, args = appendFireKeyClauses(clauses, args, p.ActiveFireKey, p.ActiveFireKeySetAt, now)

	return "UPDATE scheduled_jobs SET " + strings.Join(clauses, ", ") + " WHERE id = $1", args
}

// MarkQueued stamps last_queued_at outside a transaction. False means the
// task row no longer exists. The fire key is cleared; callers that need to
// keep one use MarkQueuedTx with ActiveFireKey set.
func (r *ScheduledJobsRepo) MarkQueued(ctx context.Context, id string, now time.Time) (bool, error) {
	query, args := r.markQueuedUpdate(domain.MarkQueuedParams{ID: id, Now: now})

	res, err := r.DB.ExecContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("update scheduled task: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("get rows affected: %w", err)
	}
	return affected > 0, nil
}

// MarkQueuedTx stamps last_queued_at inside the sweep transaction, under the
// row lock FindDueTx took.
func (r *ScheduledJobsRepo) MarkQueuedTx(ctx context.Context, tx *sql.Tx, p domain.MarkQueuedParams) (bool, error) {
	query, args := r.markQueuedUpdate(p)

	res, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("update scheduled task (tx): %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("get rows affected (tx): %w", err)
	}
	return affected > 0, nil
}

// UpdateActiveFireKeyTx sets or clears (FireKey == nil) the task's
// outstanding fire key.
func (r *ScheduledJobsRepo) UpdateActiveFireKeyTx(ctx context.Context, tx *sql.Tx, p domain.UpdateActiveFireKeyParams) error {
	now := r.timeProvider.Now().UTC()
	fallback := now
	if !p.SetAt.IsZero() {
		fallback = p.SetAt.UTC()
	}

	clauses := []string{"updated_at = $2"}
	args := []any{p.ID, now}
	clauses, args = appendFireKeyClauses(clauses, args, p.FireKey, &p.SetAt, fallback)

	query := "UPDATE scheduled_jobs SET " + strings.Join(clauses, ", ") + " WHERE id = $1"
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("update active fire key: %w", err)
	}
	return nil
}

// TryWithTaskLock runs fn in a transaction holding the task's advisory lock.
// Return semantics:
//   - (false, nil): another replica holds the lock; fn never ran
//   - (true, nil): fn ran and succeeded
//   - (true, err): fn ran and failed
//
// The transaction commits even when fn errors; fn is expected to keep its
// own writes consistent.
func (r *ScheduledJobsRepo) TryWithTaskLock(
	ctx context.Context,
	taskName string,
	fn func(context.Context, *sql.Tx) error,
) (bool, error) {
	var locked bool
	var fnErr error

	err := pgxutil.WithSQLTx(ctx, r.DB, pgxutil.SQLTxConfig{
		Fn: func(tx *sql.Tx) error {
			if err := tx.QueryRowContext(ctx, "SELECT pg_try_advisory_xact_lock($1)", taskLockKey(taskName)).Scan(&locked); err != nil {
				return fmt.Errorf("acquire advisory lock for task %s: %w", taskName, err)
			}
			if !locked {
				return nil
			}
			fnErr = fn(ctx, tx)
			return nil
		},
	})
	if err != nil {
		return false, err
	}
	return locked, fnErr
}

// appendFireKeyClauses extends an UPDATE with the active_fire_key columns.
// A nil or blank key clears both columns.
func appendFireKeyClauses(clauses []string, args []any, key *string, setAt *time.Time, fallback time.Time) ([]string, []any) {
	trimmed := ""
	if key != nil {
		trimmed = strings.TrimSpace(*key)
	}
	if trimmed == "" {
		return append(clauses, "active_fire_key = NULL", "active_fire_key_set_at = NULL"), args
	}

	args = append(args, trimmed)
	clauses = append(clauses, fmt.Sprintf("active_fire_key = $%d", len(args)))

	ts := fallback
	if setAt != nil && !setAt.IsZero() {
		ts = setAt.UTC()
	}
	args = append(args, ts)
	clauses = append(clauses, fmt.Sprintf("active_fire_key_set_at = $%d", len(args)))

	return clauses, args
}

// scheduledTaskRow mirrors the scheduled_jobs schema for scanning.
type scheduledTaskRow struct {
	ID               string         `db:"id"`
	TaskName         string         `db:"task_name"`
	Payload          []byte         `db:"payload"`
	IntervalSeconds  sql.NullInt64  `db:"interval_seconds"`
	LastQueuedAt     sql.NullTime   `db:"last_queued_at"`
	UpdatedAt        time.Time      `db:"updated_at"`
	OverrunPolicy    sql.NullString `db:"overrun_policy"`
	OverrunStateMask sql.NullInt64  `db:"overrun_state_mask"`
	ActiveFireKey    sql.NullString `db:"active_fire_key"`
}

func (row *scheduledTaskRow) toDomain() domain.ScheduledTask {
	if row == nil {
		return domain.ScheduledTask{}
	}

	task := domain.ScheduledTask{
		ID:        row.ID,
		TaskName:  row.TaskName,
		UpdatedAt: row.UpdatedAt,
	}
	if row.IntervalSeconds.Valid {
		task.Interval = time.Duration(row.IntervalSeconds.Int64) * time.Second
	}
	if row.Payload != nil {
		task.Payload = json.RawMessage(row.Payload)
	}
	if row.LastQueuedAt.Valid {
		task.LastQueuedAt = &row.LastQueuedAt.Time
	}
	if row.OverrunPolicy.Valid {
		p := domain.OverrunPolicy(row.OverrunPolicy.String)
		task.OverrunPolicy = &p
	}
	// Out-of-range masks are dropped rather than truncated.
	if row.OverrunStateMask.Valid && row.OverrunStateMask.Int64 >= 0 && row.OverrunStateMask.Int64 <= math.MaxUint8 {
		mask := domain.OverrunStateMask(row.OverrunStateMask.Int64)
		task.OverrunStates = &mask
	}
	if row.ActiveFireKey.Valid {
		if key := strings.TrimSpace(row.ActiveFireKey.String); key != "" {
			task.ActiveFireKey = &key
		}
	}
	return task
}

func rowToScheduledTask(row pgx.CollectableRow) (domain.ScheduledTask, error) {
	dbRow, err := pgx.RowToStructByName[scheduledTaskRow](row)
	if err != nil {
		return domain.ScheduledTask{}, fmt.Errorf("scan scheduled task row: %w", err)
	}
	return dbRow.toDomain(), nil
}

func scanScheduledTask(rows *sql.Rows) (domain.ScheduledTask, error) {
	var dbRow scheduledTaskRow
	err := rows.Scan(
		&dbRow.ID,
		&dbRow.TaskName,
		&dbRow.Payload,
		&dbRow.IntervalSeconds,
		&dbRow.LastQueuedAt,
		&dbRow.UpdatedAt,
		&dbRow.OverrunPolicy,
		&dbRow.OverrunStateMask,
		&dbRow.ActiveFireKey,
	)
	if err != nil {
		return domain.ScheduledTask{}, fmt.Errorf("scan scheduled task row: %w", err)
	}
	return dbRow.toDomain(), nil
}
