package data

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/linkhound/ingest/internal/core"
	"github.com/linkhound/ingest/internal/domain/model"
	"github.com/linkhound/ingest/internal/testutil"
)

// backdateJobCreation ages a job so pending-timeout sweeps see it as stale.
func backdateJobCreation(t *testing.T, db *sql.DB, jobID string, age time.Duration) {
	t.Helper()
	_, err := db.ExecContext(context.Background(),
		`UPDATE jobs SET created_at = $1 WHERE id = $2`,
		time.Now().Add(-age), jobID)
	require.NoError(t, err)
}

// backdateJobCompletion ages a terminal job past a retention cutoff.
func backdateJobCompletion(t *testing.T, db *sql.DB, jobID string, age time.Duration) {
	t.Helper()
	old := time.Now().Add(-age)
	_, err := db.ExecContext(context.Background(),
		`UPDATE jobs SET completed_at = $1, updated_at = $1 WHERE id = $2`,
		old, jobID)
	require.NoError(t, err)
}

// finishJob drives a freshly created job through claim and into the given
// terminal status.
func finishJob(t *testing.T, repo *JobRepo, profileID string, status model.JobStatus) string {
	t.Helper()
	ctx := context.Background()

	job, err := repo.Create(ctx, testutil.NewJobRequest().
		WithProfileID(profileID).
		WithMaxAttempts(1).
		Build())
	require.NoError(t, err)

	claimed, err := repo.ClaimNext(ctx, model.JobTypeLinkPage, "reaper-test-worker", 30)
	require.NoError(t, err)
	require.Equal(t, model.JobStatusProcessing, claimed.Status)

	switch status {
	case model.JobStatusSucceeded:
		ok, completeErr := repo.Complete(ctx, job.ID)
		require.NoError(t, completeErr)
		require.True(t, ok)
	case model.JobStatusFailed:
		result, failErr := repo.Fail(ctx, core.FailParams{ID: job.ID, ErrMsg: "boom", Retryable: true})
		require.NoError(t, failErr)
		require.True(t, result.Found)
		require.Equal(t, model.JobStatusFailed, result.Status)
	default:
		t.Fatalf("finishJob does not support status %q", status)
	}
	return job.ID
}

func TestJobRepo_FailStalePendingJobs(t *testing.T) {
	testutil.SkipIfNoTestDB(t)

	t.Run("fails only pending jobs past the cutoff", func(t *testing.T) {
		testutil.WithAutoDB(t, func(db *sql.DB) {
			repo := NewJobRepo(db, RepoConfig{})
			ctx := context.Background()
			profile := createTestProfile(t, db, "reaper-stale")

			stale, err := repo.Create(ctx, testutil.NewJobRequest().
				WithProfileID(profile.ID).
				WithSourceURL("https://linktr.ee/stale").
				Build())
			require.NoError(t, err)
			backdateJobCreation(t, db, stale.ID, 2*time.Hour)

			fresh, err := repo.Create(ctx, testutil.NewJobRequest().
				WithProfileID(profile.ID).
				WithSourceURL("https://linktr.ee/fresh").
				Build())
			require.NoError(t, err)

			count, err := repo.FailStalePendingJobs(ctx, time.Hour, 1000)
			require.NoError(t, err)
			assert.Equal(t, int64(1), count)

			staleAfter, err := repo.GetByID(ctx, stale.ID)
			require.NoError(t, err)
			assert.Equal(t, model.JobStatusFailed, staleAfter.Status)
			require.NotNil(t, staleAfter.LastError)
			assert.Contains(t, *staleAfter.LastError, "timed out in pending status")
			assert.NotNil(t, staleAfter.CompletedAt)

			freshAfter, err := repo.GetByID(ctx, fresh.ID)
			require.NoError(t, err)
			assert.Equal(t, model.JobStatusPending, freshAfter.Status)
		})
	})

	t.Run("claimed jobs are not pending-stale", func(t *testing.T) {
		testutil.WithAutoDB(t, func(db *sql.DB) {
			repo := NewJobRepo(db, RepoConfig{})
			ctx := context.Background()
			profile := createTestProfile(t, db, "reaper-processing")

			job, err := repo.Create(ctx, testutil.NewJobRequest().WithProfileID(profile.ID).Build())
			require.NoError(t, err)

			_, err = repo.ClaimNext(ctx, model.JobTypeLinkPage, "reaper-test-worker", 30)
			require.NoError(t, err)
			backdateJobCreation(t, db, job.ID, 2*time.Hour)

			count, err := repo.FailStalePendingJobs(ctx, time.Hour, 1000)
			require.NoError(t, err)
			assert.Equal(t, int64(0), count)

			after, err := repo.GetByID(ctx, job.ID)
			require.NoError(t, err)
			assert.Equal(t, model.JobStatusProcessing, after.Status)
		})
	})
}

func TestJobRepo_DeleteOldJobs(t *testing.T) {
	testutil.SkipIfNoTestDB(t)

	retention := 7 * 24 * time.Hour

	tests := []struct {
		name        string
		finishAs    model.JobStatus
		age         time.Duration
		sweepStatus model.JobStatus
		wantDeleted bool
	}{
		{
			name:        "old succeeded job is deleted",
			finishAs:    model.JobStatusSucceeded,
			age:         8 * 24 * time.Hour,
			sweepStatus: model.JobStatusSucceeded,
			wantDeleted: true,
		},
		{
			name:        "old failed job is deleted",
			finishAs:    model.JobStatusFailed,
			age:         8 * 24 * time.Hour,
			sweepStatus: model.JobStatusFailed,
			wantDeleted: true,
		},
		{
			name:        "recent job survives",
			finishAs:    model.JobStatusSucceeded,
			sweepStatus: model.JobStatusSucceeded,
		},
		{
			name:        "other terminal status survives",
			finishAs:    model.JobStatusSucceeded,
			age:         8 * 24 * time.Hour,
			sweepStatus: model.JobStatusFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			testutil.WithAutoDB(t, func(db *sql.DB) {
				repo := NewJobRepo(db, RepoConfig{})
				ctx := context.Background()
				profile := createTestProfile(t, db, "reaper-delete")

				jobID := finishJob(t, repo, profile.ID, tt.finishAs)
				if tt.age > 0 {
					backdateJobCompletion(t, db, jobID, tt.age)
				}

				count, err := repo.DeleteOldJobs(ctx, core.DeleteOldJobsParams{
					Status:    tt.sweepStatus,
					MaxAge:    retention,
					BatchSize: 1000,
				})
				require.NoError(t, err)

				if tt.wantDeleted {
					assert.Equal(t, int64(1), count)
					_, err = repo.GetByID(ctx, jobID)
					assert.ErrorIs(t, err, ErrJobNotFound)
					return
				}
				assert.Equal(t, int64(0), count)
				_, err = repo.GetByID(ctx, jobID)
				require.NoError(t, err)
			})
		})
	}

	t.Run("honors batch size", func(t *testing.T) {
		testutil.WithAutoDB(t, func(db *sql.DB) {
			repo := NewJobRepo(db, RepoConfig{})
			ctx := context.Background()
			profile := createTestProfile(t, db, "reaper-batch")

			for range 3 {
				jobID := finishJob(t, repo, profile.ID, model.JobStatusSucceeded)
				backdateJobCompletion(t, db, jobID, 8*24*time.Hour)
			}

			params := core.DeleteOldJobsParams{
				Status:    model.JobStatusSucceeded,
				MaxAge:    retention,
				BatchSize: 2,
			}

			count, err := repo.DeleteOldJobs(ctx, params)
			require.NoError(t, err)
			assert.Equal(t, int64(2), count)

			count, err = repo.DeleteOldJobs(ctx, params)
			require.NoError(t, err)
			assert.Equal(t, int64(1), count)
		})
	})

	t.Run("rejects unknown status", func(t *testing.T) {
		testutil.WithAutoDB(t, func(db *sql.DB) {
			repo := NewJobRepo(db, RepoConfig{})

			_, err := repo.DeleteOldJobs(context.Background(), core.DeleteOldJobsParams{
				Status:    model.JobStatus("invalid"),
				MaxAge:    retention,
				BatchSize: 1000,
			})
			require.Error(t, err)
			assert.Contains(t, err.Error(), "invalid job status")
		})
	})
}
