// Package workflowtest provides an end-to-end harness for exercising the
// ingestion job queue against a real database: enqueue through the profile
// service, claim like a runner, and finish the job's lifecycle.
package workflowtest

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/linkhound/ingest/internal/core"
	"github.com/linkhound/ingest/internal/data"
	"github.com/linkhound/ingest/internal/domain/model"
	"github.com/linkhound/ingest/internal/service"
	"github.com/linkhound/ingest/internal/testutil"
)

// WorkflowTestHarness wires repositories and services over a test database so
// tests can drive the full enqueue, claim, and completion cycle.
//
//nolint:revive // WorkflowTestHarness is intentionally verbose for clarity in test code.
type WorkflowTestHarness struct {
	t        testutil.TestingTB
	db       *sql.DB
	workerID string
	lease    time.Duration

	// Repositories
	JobRepo     *data.JobRepo
	ProfileRepo *data.ProfileRepo
	LinkRepo    *data.LinkRepo

	// Services
	JobSvc     *service.JobService
	ProfileSvc *service.ProfileService
	LinkSvc    *service.LinkService

	// Optional Redis components
	RedisClient *redis.Client
	CacheRepo   core.CacheRepository
}

// WorkflowTestOptions configures the workflow test harness.
//
//nolint:revive // WorkflowTestOptions is intentionally verbose for clarity in test code.
type WorkflowTestOptions struct {
	// EnableRedis wires a cache repository backed by the test Redis instance.
	EnableRedis bool
	// JobLease sets the default job lease duration.
	JobLease time.Duration
	// WorkerID identifies the simulated runner when claiming jobs.
	WorkerID string
}

// DefaultWorkflowOptions returns default options for workflow testing.
func DefaultWorkflowOptions() WorkflowTestOptions {
	return WorkflowTestOptions{
		EnableRedis: false,
		JobLease:    30 * time.Second,
		WorkerID:    "workflow-test-worker",
	}
}

// RedisWorkflowOptions returns options for workflow testing with Redis enabled.
func RedisWorkflowOptions() WorkflowTestOptions {
	opts := DefaultWorkflowOptions()
	opts.EnableRedis = true
	return opts
}

// NewWorkflowTestHarness creates a new workflow test harness with all components wired up.
func NewWorkflowTestHarness(t testutil.TestingTB, db *sql.DB, opts WorkflowTestOptions) *WorkflowTestHarness {
	t.Helper()

	if opts.JobLease == 0 {
		opts.JobLease = 30 * time.Second
	}
	if opts.WorkerID == "" {
		opts.WorkerID = "workflow-test-worker"
	}

	h := &WorkflowTestHarness{
		t:        t,
		db:       db,
		workerID: opts.WorkerID,
		lease:    opts.JobLease,
	}

	h.JobRepo = data.NewJobRepo(db, data.RepoConfig{})
	h.ProfileRepo = data.NewProfileRepo(db)
	h.LinkRepo = data.NewLinkRepo(db)

	h.JobSvc = service.MustNewJobService(service.JobServiceOptions{
		Repo:         h.JobRepo,
		DefaultLease: opts.JobLease,
	})

	profileSvc, err := service.NewProfileService(service.ProfileServiceOptions{
		Profiles: h.ProfileRepo,
		Jobs:     h.JobRepo,
	})
	if err != nil {
		t.Fatalf("build profile service: %v", err)
	}
	h.ProfileSvc = profileSvc

	linkSvc, err := service.NewLinkService(service.LinkServiceOptions{Links: h.LinkRepo})
	if err != nil {
		t.Fatalf("build link service: %v", err)
	}
	h.LinkSvc = linkSvc

	if opts.EnableRedis {
		h.setupRedis()
	}

	return h
}

// setupRedis initializes Redis-backed caching components.
func (h *WorkflowTestHarness) setupRedis() {
	h.t.Helper()

	client := testutil.SetupTestRedis(h.t)
	h.RedisClient = client
	h.CacheRepo = data.NewRedisCacheRepo(client)
}

// Close cleans up all resources.
func (h *WorkflowTestHarness) Close() {
	h.t.Helper()

	h.JobSvc.StopAllListeners()
	if h.RedisClient != nil {
		if err := h.RedisClient.Close(); err != nil {
			h.t.Logf("warning: failed to close redis client: %v", err)
		}
	}
}

// CreateTestProfile creates a creator profile with a unique handle.
func (h *WorkflowTestHarness) CreateTestProfile(displayName string) *model.CreatorProfile {
	h.t.Helper()

	handle := fmt.Sprintf("wf%d", time.Now().UnixNano())
	profile, err := h.ProfileSvc.Create(context.Background(), &model.CreateCreatorProfileRequest{
		DisplayName: displayName,
		Handle:      handle,
	})
	if err != nil {
		h.t.Fatalf("create profile: %v", err)
	}
	return profile
}

// EnqueueIngestion enqueues a depth-0 ingestion job for the profile.
func (h *WorkflowTestHarness) EnqueueIngestion(profileID, sourceURL string) *model.Job {
	h.t.Helper()

	job, err := h.ProfileSvc.EnqueueIngestion(context.Background(), service.EnqueueIngestionParams{
		ProfileID: profileID,
		SourceURL: sourceURL,
	})
	if err != nil {
		h.t.Fatalf("enqueue ingestion: %v", err)
	}
	return job
}

// ClaimNext claims the next pending job of the given type like a runner would.
func (h *WorkflowTestHarness) ClaimNext(jobType model.JobType) *model.Job {
	h.t.Helper()

	job, err := h.JobSvc.ClaimNext(context.Background(), jobType, h.workerID, h.lease)
	if err != nil {
		h.t.Fatalf("claim next %s job: %v", jobType, err)
	}
	return job
}

// CompleteJob marks a claimed job as succeeded.
func (h *WorkflowTestHarness) CompleteJob(jobID string) {
	h.t.Helper()

	completed, err := h.JobSvc.Complete(context.Background(), jobID)
	if err != nil {
		h.t.Fatalf("complete job %s: %v", jobID, err)
	}
	if !completed {
		h.t.Fatalf("job %s was not in a completable state", jobID)
	}
}

// FailJob records a retryable failure for a claimed job.
func (h *WorkflowTestHarness) FailJob(jobID, errMsg string) core.FailResult {
	h.t.Helper()

	result, err := h.JobSvc.Fail(context.Background(), core.FailParams{
		ID:         jobID,
		ErrMsg:     errMsg,
		ErrorClass: "retryable",
		Retryable:  true,
	})
	if err != nil {
		h.t.Fatalf("fail job %s: %v", jobID, err)
	}
	return result
}

// JobStatus fetches the current status of a job.
func (h *WorkflowTestHarness) JobStatus(jobID string) *model.JobStatusResponse {
	h.t.Helper()

	status, err := h.JobSvc.GetStatus(context.Background(), jobID)
	if err != nil {
		h.t.Fatalf("get job status %s: %v", jobID, err)
	}
	return status
}

// RecordLink stores a manually sourced link for a profile, the way merge
// results land after a successful run.
func (h *WorkflowTestHarness) RecordLink(profileID, platform, url string) *model.SocialLink {
	h.t.Helper()

	link, err := h.LinkRepo.Create(context.Background(), &model.CreateLinkRequest{
		CreatorProfileID: profileID,
		Platform:         platform,
		URL:              url,
		State:            model.LinkStateActive,
		Confidence:       1.0,
		SourceType:       model.SourceTypeManual,
	})
	if err != nil {
		h.t.Fatalf("record link: %v", err)
	}
	return link
}

// RunCompleteWorkflow runs the whole cycle: create a profile, enqueue an
// ingestion job, claim it, record a discovered link, and complete the job.
func (h *WorkflowTestHarness) RunCompleteWorkflow(sourceURL string) (*model.CreatorProfile, *model.Job) {
	h.t.Helper()

	profile := h.CreateTestProfile("Workflow Test Creator")
	job := h.EnqueueIngestion(profile.ID, sourceURL)

	claimed := h.ClaimNext(job.Type)
	if claimed.ID != job.ID {
		h.t.Fatalf("expected claimed job ID %s, got %s", job.ID, claimed.ID)
	}

	h.RecordLink(profile.ID, "instagram", "https://instagram.com/"+profile.Handle)
	h.CompleteJob(claimed.ID)

	links, err := h.LinkSvc.ListByProfile(context.Background(), model.LinkListOptions{
		CreatorProfileID: profile.ID,
		Limit:            10,
	})
	if err != nil {
		h.t.Fatalf("list links: %v", err)
	}
	if len(links) == 0 {
		h.t.Fatalf("expected at least one link for profile %s", profile.ID)
	}

	return profile, claimed
}

// skipIfRedisUnavailable skips the test if Redis is required but unavailable.
func skipIfRedisUnavailable(t testutil.TestingTB, opts WorkflowTestOptions) {
	t.Helper()

	if !opts.EnableRedis {
		return
	}
	if _, ok := testutil.GetTestRedisAddr(t); !ok {
		t.Skip("redis test instance unavailable; run docker-compose profile 'test'")
	}
}

// WithWorkflowHarness is a helper that sets up and tears down a workflow test harness.
func WithWorkflowHarness(t testutil.TestingTB, opts WorkflowTestOptions, fn func(*WorkflowTestHarness)) {
	t.Helper()

	testutil.SkipIfNoTestDB(t)
	skipIfRedisUnavailable(t, opts)

	testutil.WithAutoDB(t, func(db *sql.DB) {
		harness := NewWorkflowTestHarness(t, db, opts)
		defer harness.Close()
		fn(harness)
	})
}
