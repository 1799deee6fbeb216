package workflowtest

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/linkhound/ingest/internal/domain/model"
)

// TestWorkflowTestOptions tests the option builders.
func TestWorkflowTestOptions(t *testing.T) {
	opts := DefaultWorkflowOptions()
	assert.False(t, opts.EnableRedis)
	assert.Equal(t, 30*time.Second, opts.JobLease)
	assert.NotEmpty(t, opts.WorkerID)

	redisOpts := RedisWorkflowOptions()
	assert.True(t, redisOpts.EnableRedis)
	assert.Equal(t, 30*time.Second, redisOpts.JobLease)
}

func TestCompleteIngestionWorkflow(t *testing.T) {
	WithWorkflowHarness(t, DefaultWorkflowOptions(), func(h *WorkflowTestHarness) {
		profile, job := h.RunCompleteWorkflow("https://linktr.ee/workflowcreator")

		status := h.JobStatus(job.ID)
		require.Equal(t, model.JobStatusSucceeded, status.Status)
		require.NotNil(t, status.CompletedAt)

		assert.Equal(t, model.JobTypeLinkPage, job.Type)
		assert.Equal(t, profile.ID, job.CreatorProfileID)
	})
}

func TestFailedJobIsRescheduled(t *testing.T) {
	WithWorkflowHarness(t, DefaultWorkflowOptions(), func(h *WorkflowTestHarness) {
		profile := h.CreateTestProfile("Retry Creator")
		job := h.EnqueueIngestion(profile.ID, "https://linktr.ee/"+profile.Handle)

		claimed := h.ClaimNext(job.Type)
		require.Equal(t, job.ID, claimed.ID)

		result := h.FailJob(claimed.ID, "upstream returned 503")
		require.True(t, result.Found)
		assert.False(t, result.Terminal())
		assert.NotNil(t, result.NextRunAt)

		status := h.JobStatus(job.ID)
		assert.Equal(t, model.JobStatusPending, status.Status)
		assert.Equal(t, 1, status.Attempts)
	})
}
