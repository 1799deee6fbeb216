package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/linkhound/ingest/internal/data"
	"github.com/linkhound/ingest/internal/domain"
	"github.com/linkhound/ingest/internal/domain/model"
	"github.com/linkhound/ingest/internal/testutil"
)

// upsertReingestTask registers a scheduled re-ingestion task for the profile.
func upsertReingestTask(t *testing.T, db *sql.DB, profileID, sourceURL string) string {
	t.Helper()
	payload, err := json.Marshal(model.JobPayload{
		SourceURL:        sourceURL,
		CreatorProfileID: profileID,
	})
	require.NoError(t, err)

	taskName := "reingest:" + profileID
	admin := data.NewScheduledJobsAdminRepo(db)
	require.NoError(t, admin.UpsertByTaskName(context.Background(), domain.UpsertTaskParams{
		TaskName: taskName,
		Payload:  payload,
		Interval: time.Hour,
	}))
	return taskName
}

func newIntegrationScheduler(db *sql.DB) *SchedulerService {
	jobs := data.NewJobRepo(db, data.RepoConfig{})
	return NewSchedulerService(SchedulerServiceOptions{
		Repo:            data.NewScheduledJobsRepo(db),
		Jobs:            jobs,
		JobIntrospector: jobs,
	})
}

func listLinkPageJobs(t *testing.T, db *sql.DB) []*model.Job {
	t.Helper()
	jobs := data.NewJobRepo(db, data.RepoConfig{})
	jobType := model.JobTypeLinkPage
	listed, err := jobs.List(context.Background(), &model.JobListOptions{Type: &jobType, Limit: 10})
	require.NoError(t, err)
	return listed
}

func TestSchedulerService_Integration_TickEnqueuesReingestJob(t *testing.T) {
	testutil.SkipIfNoTestDB(t)

	testutil.WithAutoDB(t, func(db *sql.DB) {
		ctx := context.Background()
		profiles := data.NewProfileRepo(db)
		profile, err := profiles.Create(ctx, &model.CreateCreatorProfileRequest{
			DisplayName: "Example Creator",
			Handle:      "examplecreator",
		})
		require.NoError(t, err)

		taskName := upsertReingestTask(t, db, profile.ID, "https://linktr.ee/examplecreator")
		svc := newIntegrationScheduler(db)

		processed, err := svc.Tick(ctx, time.Now())
		require.NoError(t, err)
		assert.Equal(t, 1, processed)

		listed := listLinkPageJobs(t, db)
		require.Len(t, listed, 1)

		job := listed[0]
		assert.Equal(t, model.JobStatusPending, job.Status)
		assert.Equal(t, profile.ID, job.CreatorProfileID)

		payload, err := job.ParsedPayload()
		require.NoError(t, err)
		assert.Equal(t, "https://linktr.ee/examplecreator", payload.SourceURL)
		assert.Equal(t, 0, payload.Depth)

		var meta map[string]string
		require.NoError(t, json.Unmarshal(job.Metadata, &meta))
		assert.Equal(t, taskName, meta["scheduler.task_name"])
		assert.NotEmpty(t, meta["scheduler.fire_key"])
	})
}

func TestSchedulerService_Integration_RepeatTickDoesNotDuplicate(t *testing.T) {
	testutil.SkipIfNoTestDB(t)

	testutil.WithAutoDB(t, func(db *sql.DB) {
		ctx := context.Background()
		profiles := data.NewProfileRepo(db)
		profile, err := profiles.Create(ctx, &model.CreateCreatorProfileRequest{
			DisplayName: "Example Creator",
			Handle:      "examplecreator",
		})
		require.NoError(t, err)

		upsertReingestTask(t, db, profile.ID, "https://linktr.ee/examplecreator")
		svc := newIntegrationScheduler(db)

		now := time.Now()
		processed, err := svc.Tick(ctx, now)
		require.NoError(t, err)
		assert.Equal(t, 1, processed)

		// The task just fired, so a second tick inside the interval finds
		// nothing due and enqueues nothing.
		processed, err = svc.Tick(ctx, now.Add(time.Second))
		require.NoError(t, err)
		assert.Equal(t, 0, processed)

		assert.Len(t, listLinkPageJobs(t, db), 1)
	})
}
