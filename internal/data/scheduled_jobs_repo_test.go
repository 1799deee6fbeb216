package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/linkhound/ingest/internal/domain"
	"github.com/linkhound/ingest/internal/testutil"
)

func insertScheduledTask(t *testing.T, db *sql.DB, taskName, interval string, lastQueuedAt any) string {
	t.Helper()

	var id string
	err := db.QueryRowContext(context.Background(), `
		INSERT INTO scheduled_jobs (task_name, payload, scheduled_interval, last_queued_at)
		VALUES ($1, '{"profileId": "p1"}', $2::interval, $3)
		RETURNING id
	`, taskName, interval, lastQueuedAt).Scan(&id)
	require.NoError(t, err)
	return id
}

func TestFindDueSelectsElapsedAndNeverFired(t *testing.T) {
	testutil.SkipIfNoTestDB(t)

	testutil.WithAutoDB(t, func(db *sql.DB) {
		repo := NewScheduledJobsRepo(db)
		ctx := context.Background()
		now := time.Now()
		prefix := fmt.Sprintf("reingest:due_%d:", now.UnixNano())

		insertScheduledTask(t, db, prefix+"never-fired", "5 minutes", nil)
		insertScheduledTask(t, db, prefix+"elapsed", "1 hour", now.Add(-2*time.Hour))
		insertScheduledTask(t, db, prefix+"fresh", "10 minutes", now.Add(-5*time.Minute))
		insertScheduledTask(t, db, prefix+"just-fired", "30 minutes", now.Add(-time.Minute))

		all, err := repo.FindDue(ctx, now, 500)
		require.NoError(t, err)

		var mine []string
		for _, task := range all {
			if strings.HasPrefix(task.TaskName, prefix) {
				mine = append(mine, strings.TrimPrefix(task.TaskName, prefix))
			}
		}

		assert.ElementsMatch(t, []string{"never-fired", "elapsed"}, mine)
	})
}

func TestFindDueHonorsLimit(t *testing.T) {
	testutil.SkipIfNoTestDB(t)

	testutil.WithAutoDB(t, func(db *sql.DB) {
		repo := NewScheduledJobsRepo(db)
		prefix := fmt.Sprintf("reingest:limit_%d:", time.Now().UnixNano())
		for i := range 5 {
			insertScheduledTask(t, db, fmt.Sprintf("%s%d", prefix, i), "5 minutes", nil)
		}

		tasks, err := repo.FindDue(context.Background(), time.Now(), 3)
		require.NoError(t, err)
		assert.Len(t, tasks, 3)
	})
}

func TestFindDueRejectsNonPositiveLimit(t *testing.T) {
	testutil.SkipIfNoTestDB(t)

	testutil.WithAutoDB(t, func(db *sql.DB) {
		repo := NewScheduledJobsRepo(db)

		for _, limit := range []int{0, -1} {
			_, err := repo.FindDue(context.Background(), time.Now(), limit)
			require.Error(t, err)
			assert.Contains(t, err.Error(), "limit must be positive")
		}
	})
}

func TestMarkQueuedStampsAndClearsFireKey(t *testing.T) {
	testutil.SkipIfNoTestDB(t)

	testutil.WithAutoDB(t, func(db *sql.DB) {
		repo := NewScheduledJobsRepoWithTimeProvider(db, NewFixedTimeProvider(time.Now()))
		ctx := context.Background()
		now := time.Now()

		taskName := fmt.Sprintf("reingest:mark_%d", now.UnixNano())
		id := insertScheduledTask(t, db, taskName, "5 minutes", nil)

		// Seed a stale fire key to prove MarkQueued clears it.
		_, err := db.ExecContext(ctx,
			`UPDATE scheduled_jobs SET active_fire_key = 'stale:1', active_fire_key_set_at = now() WHERE id = $1`, id)
		require.NoError(t, err)

		found, err := repo.MarkQueued(ctx, id, now)
		require.NoError(t, err)
		assert.True(t, found)

		var lastQueued sql.NullTime
		var fireKey sql.NullString
		err = db.QueryRowContext(ctx,
			"SELECT last_queued_at, active_fire_key FROM scheduled_jobs WHERE id = $1", id).
			Scan(&lastQueued, &fireKey)
		require.NoError(t, err)
		require.True(t, lastQueued.Valid)
		assert.WithinDuration(t, now, lastQueued.Time, time.Second)
		assert.False(t, fireKey.Valid, "MarkQueued must clear the fire key")
	})
}

func TestMarkQueuedMissingTask(t *testing.T) {
	testutil.SkipIfNoTestDB(t)

	testutil.WithAutoDB(t, func(db *sql.DB) {
		repo := NewScheduledJobsRepo(db)

		found, err := repo.MarkQueued(context.Background(), "99999999-9999-9999-9999-999999999999", time.Now())
		require.NoError(t, err)
		assert.False(t, found)
	})
}

func TestMarkQueuedTxRecordsFireKey(t *testing.T) {
	testutil.SkipIfNoTestDB(t)

	testutil.WithAutoDB(t, func(db *sql.DB) {
		repo := NewScheduledJobsRepo(db)
		ctx := context.Background()
		now := time.Now()

		taskName := fmt.Sprintf("reingest:firekey_%d", now.UnixNano())
		id := insertScheduledTask(t, db, taskName, "5 minutes", nil)

		tx, err := db.BeginTx(ctx, nil)
		require.NoError(t, err)
		defer tx.Rollback() //nolint:errcheck

		key := id + ":42"
		setAt := now
		found, err := repo.MarkQueuedTx(ctx, tx, domain.MarkQueuedParams{
			ID:                 id,
			Now:                now,
			ActiveFireKey:      &key,
			ActiveFireKeySetAt: &setAt,
		})
		require.NoError(t, err)
		require.True(t, found)
		require.NoError(t, tx.Commit())

		var fireKey sql.NullString
		err = db.QueryRowContext(ctx, "SELECT active_fire_key FROM scheduled_jobs WHERE id = $1", id).Scan(&fireKey)
		require.NoError(t, err)
		require.True(t, fireKey.Valid)
		assert.Equal(t, key, fireKey.String)
	})
}

func TestTryWithTaskLockRunsFunction(t *testing.T) {
	testutil.SkipIfNoTestDB(t)

	testutil.WithAutoDB(t, func(db *sql.DB) {
		repo := NewScheduledJobsRepo(db)

		executed := false
		locked, err := repo.TryWithTaskLock(context.Background(), "reingest:lock-run",
			func(_ context.Context, _ *sql.Tx) error {
				executed = true
				return nil
			})
		require.NoError(t, err)
		assert.True(t, locked)
		assert.True(t, executed)
	})
}

func TestTryWithTaskLockReturnsFunctionError(t *testing.T) {
	testutil.SkipIfNoTestDB(t)

	testutil.WithAutoDB(t, func(db *sql.DB) {
		repo := NewScheduledJobsRepo(db)
		wantErr := errors.New("enqueue failed")

		locked, err := repo.TryWithTaskLock(context.Background(), "reingest:lock-err",
			func(_ context.Context, _ *sql.Tx) error {
				return wantErr
			})
		assert.True(t, locked, "lock should be acquired")
		require.Error(t, err)
		assert.Equal(t, wantErr, err)
	})
}

func TestTryWithTaskLockExcludesConcurrentHolders(t *testing.T) {
	testutil.SkipIfNoTestDB(t)

	testutil.WithAutoDB(t, func(db *sql.DB) {
		repo := NewScheduledJobsRepo(db)
		ctx := context.Background()

		ready := make(chan struct{})
		results := make(chan bool, 2)
		for range 2 {
			go func() {
				<-ready
				locked, err := repo.TryWithTaskLock(ctx, "reingest:lock-race",
					func(_ context.Context, _ *sql.Tx) error {
						time.Sleep(100 * time.Millisecond)
						return nil
					})
				assert.NoError(t, err)
				results <- locked
			}()
		}
		close(ready)

		lockedCount := 0
		for range 2 {
			if <-results {
				lockedCount++
			}
		}
		assert.Equal(t, 1, lockedCount, "exactly one replica should hold the task lock")
	})
}

func TestTaskLockKeyIsStable(t *testing.T) {
	assert.Equal(t, taskLockKey("reingest:p1"), taskLockKey("reingest:p1"))
	assert.NotEqual(t, taskLockKey("reingest:p1"), taskLockKey("reingest:p2"))
	assert.GreaterOrEqual(t, taskLockKey("reingest:p1"), int64(0))
}

func TestAppendFireKeyClauses(t *testing.T) {
	now := time.Now().UTC()

	t.Run("nil key clears both columns", func(t *testing.T) {
		clauses, args := appendFireKeyClauses([]string{"updated_at = $2"}, []any{"id", now}, nil, nil, now)
		assert.Contains(t, clauses, "active_fire_key = NULL")
		assert.Contains(t, clauses, "active_fire_key_set_at = NULL")
		assert.Len(t, args, 2)
	})

	t.Run("blank key clears both columns", func(t *testing.T) {
		blank := "   "
		clauses, _ := appendFireKeyClauses(nil, nil, &blank, nil, now)
		assert.Contains(t, clauses, "active_fire_key = NULL")
	})

	t.Run("key appends trimmed value and timestamp", func(t *testing.T) {
		key := " task:7 "
		setAt := now.Add(-time.Minute)
		clauses, args := appendFireKeyClauses([]string{"updated_at = $2"}, []any{"id", now}, &key, &setAt, now)

		assert.Contains(t, clauses, "active_fire_key = $3")
		assert.Contains(t, clauses, "active_fire_key_set_at = $4")
		require.Len(t, args, 4)
		assert.Equal(t, "task:7", args[2])
		assert.Equal(t, setAt.UTC(), args[3])
	})

	t.Run("zero setAt falls back", func(t *testing.T) {
		key := "task:8"
		clauses, args := appendFireKeyClauses(nil, nil, &key, &time.Time{}, now)
		require.Len(t, args, 2)
		assert.Equal(t, now, args[1])
		assert.Len(t, clauses, 2)
	})
}
