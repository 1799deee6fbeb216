package data

import (
	"context"
	"database/sql"
	"encoding/json"
	"testing"
	"time"

	"github.com/linkhound/ingest/internal/core"
	"github.com/linkhound/ingest/internal/domain/model"
	"github.com/linkhound/ingest/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJobRepo_DeleteOldJobResults(t *testing.T) {
	testutil.SkipIfNoTestDB(t)

	t.Run("deletes old rows", func(t *testing.T) {
		testutil.WithAutoDB(t, func(db *sql.DB) {
			jobRepo := NewJobRepo(db, RepoConfig{})
			resultsRepo := NewJobResultRepo(db)
			ctx := context.Background()
			profile := createTestProfile(t, db, "job-results-old")

			job, err := jobRepo.Create(ctx, testutil.NewJobRequest().WithProfileID(profile.ID).Build())
			require.NoError(t, err)

			err = resultsRepo.Upsert(ctx, core.UpsertJobResultParams{
				JobID:   job.ID,
				JobType: model.JobTypeLinkPage,
				Result:  json.RawMessage(`{"candidates_found": 5}`),
			})
			require.NoError(t, err)

			oldTime := time.Now().Add(-120 * 24 * time.Hour)
			_, err = db.ExecContext(ctx, `
				UPDATE job_results
				SET updated_at = $1, created_at = $1
				WHERE job_id = $2
			`, oldTime, job.ID)
			require.NoError(t, err)

			count, err := jobRepo.DeleteOldJobResults(ctx, core.DeleteOldJobResultsParams{
				JobType:   model.JobTypeLinkPage,
				MaxAge:    90 * 24 * time.Hour,
				BatchSize: 1000,
			})
			require.NoError(t, err)
			assert.Equal(t, int64(1), count)

			_, err = resultsRepo.GetByJobID(ctx, job.ID)
			assert.ErrorIs(t, err, ErrJobResultsNotFound)
		})
	})

	t.Run("skips recent rows", func(t *testing.T) {
		testutil.WithAutoDB(t, func(db *sql.DB) {
			jobRepo := NewJobRepo(db, RepoConfig{})
			resultsRepo := NewJobResultRepo(db)
			ctx := context.Background()
			profile := createTestProfile(t, db, "job-results-recent")

			job, err := jobRepo.Create(ctx, testutil.NewJobRequest().WithProfileID(profile.ID).Build())
			require.NoError(t, err)

			err = resultsRepo.Upsert(ctx, core.UpsertJobResultParams{
				JobID:   job.ID,
				JobType: model.JobTypeLinkPage,
				Result:  json.RawMessage(`{"candidates_found": 2}`),
			})
			require.NoError(t, err)

			count, err := jobRepo.DeleteOldJobResults(ctx, core.DeleteOldJobResultsParams{
				JobType:   model.JobTypeLinkPage,
				MaxAge:    90 * 24 * time.Hour,
				BatchSize: 1000,
			})
			require.NoError(t, err)
			assert.Equal(t, int64(0), count)

			result, err := resultsRepo.GetByJobID(ctx, job.ID)
			require.NoError(t, err)
			require.NotNil(t, result.JobID, "JobID should not be nil for recent result")
			assert.Equal(t, job.ID, *result.JobID)
		})
	})

	t.Run("run summaries persist after parent job is deleted", func(t *testing.T) {
		testutil.WithAutoDB(t, func(db *sql.DB) {
			jobRepo := NewJobRepo(db, RepoConfig{})
			resultsRepo := NewJobResultRepo(db)
			ctx := context.Background()
			profile := createTestProfile(t, db, "job-results-orphan")

			job, err := jobRepo.Create(ctx, testutil.NewJobRequest().WithProfileID(profile.ID).Build())
			require.NoError(t, err)

			err = resultsRepo.Upsert(ctx, core.UpsertJobResultParams{
				JobID:   job.ID,
				JobType: model.JobTypeLinkPage,
				Result:  json.RawMessage(`{"candidates_found": 7, "links_created": 3}`),
			})
			require.NoError(t, err)

			// finish the job so it can be deleted
			_, err = jobRepo.ClaimNext(ctx, model.JobTypeLinkPage, "worker-1", 30)
			require.NoError(t, err)
			ok, err := jobRepo.Complete(ctx, job.ID)
			require.NoError(t, err)
			require.True(t, ok)

			err = jobRepo.Delete(ctx, job.ID)
			require.NoError(t, err)

			_, err = jobRepo.GetByID(ctx, job.ID)
			require.ErrorIs(t, err, ErrJobNotFound)

			// the summary survives with job_id nulled out
			var count int
			err = db.QueryRowContext(ctx, `
				SELECT COUNT(*) FROM job_results WHERE job_type = $1
			`, model.JobTypeLinkPage).Scan(&count)
			require.NoError(t, err)
			assert.Equal(t, 1, count, "run summary should still exist after parent job deletion")

			var jobID sql.NullString
			err = db.QueryRowContext(ctx, `
				SELECT job_id FROM job_results WHERE job_type = $1
			`, model.JobTypeLinkPage).Scan(&jobID)
			require.NoError(t, err)
			assert.False(t, jobID.Valid, "job_id should be NULL after parent job deletion")
		})
	})
}

func TestJobResultRepo_ListRecentByProfile(t *testing.T) {
	testutil.SkipIfNoTestDB(t)

	testutil.WithAutoDB(t, func(db *sql.DB) {
		jobRepo := NewJobRepo(db, RepoConfig{})
		resultsRepo := NewJobResultRepo(db)
		ctx := context.Background()
		profileA := createTestProfile(t, db, "job-results-list-a")
		profileB := createTestProfile(t, db, "job-results-list-b")

		urls := []string{"https://linktr.ee/one", "https://linktr.ee/two"}
		for _, url := range urls {
			job, err := jobRepo.Create(ctx, testutil.NewJobRequest().
				WithProfileID(profileA.ID).
				WithSourceURL(url).
				Build())
			require.NoError(t, err)
			err = resultsRepo.Upsert(ctx, core.UpsertJobResultParams{
				JobID:   job.ID,
				JobType: job.Type,
				Result:  json.RawMessage(`{"candidates_found": 1}`),
			})
			require.NoError(t, err)
		}

		otherJob, err := jobRepo.Create(ctx, testutil.NewJobRequest().WithProfileID(profileB.ID).Build())
		require.NoError(t, err)
		err = resultsRepo.Upsert(ctx, core.UpsertJobResultParams{
			JobID:   otherJob.ID,
			JobType: otherJob.Type,
			Result:  json.RawMessage(`{"candidates_found": 9}`),
		})
		require.NoError(t, err)

		results, err := resultsRepo.ListRecentByProfile(ctx, profileA.ID, 10)
		require.NoError(t, err)
		assert.Len(t, results, 2)

		limited, err := resultsRepo.ListRecentByProfile(ctx, profileA.ID, 1)
		require.NoError(t, err)
		assert.Len(t, limited, 1)

		none, err := resultsRepo.ListRecentByProfile(ctx, "550e8400-e29b-41d4-a716-446655440000", 10)
		require.NoError(t, err)
		assert.Empty(t, none)
	})
}
