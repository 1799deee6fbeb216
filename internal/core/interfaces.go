// Package core holds the interfaces the service layer is written against.
// The data layer satisfies them; services never import concrete repository
// types.
package core

import (
	"context"
	"time"

	"github.com/linkhound/ingest/internal/domain/model"
)

// FailParams groups parameters for failing a job.
type FailParams struct {
	// ID is the job to fail.
	ID string
	// ErrMsg is the failure description recorded on the row.
	ErrMsg string
	// ErrorClass tags the failure taxonomy: retryable, content, policy.
	ErrorClass string
	// Retryable controls requeueing. Non-retryable failures go terminal
	// immediately regardless of remaining attempts.
	Retryable bool
}

// FailResult reports what Fail did with the job.
type FailResult struct {
	// Found is false when no processing job matched the id.
	Found bool
	// Status is the job's status after the update.
	Status model.JobStatus
	// NextRunAt is set when the job was requeued for another attempt.
	NextRunAt *time.Time
}

// Terminal reports whether the job ended in a terminal failure.
func (fr FailResult) Terminal() bool {
	return fr.Found && fr.Status == model.JobStatusFailed
}

// JobRepository defines the interface for job queue operations.
type JobRepository interface {
	Create(ctx context.Context, req *model.CreateJobRequest) (*model.Job, error)
	GetByID(ctx context.Context, id string) (*model.Job, error)
	ClaimNext(ctx context.Context, jobType model.JobType, workerID string, leaseSeconds int) (*model.Job, error)
	WaitForNotification(ctx context.Context, jobType model.JobType) error
	Heartbeat(ctx context.Context, jobID string, leaseSeconds int) (bool, error)
	Complete(ctx context.Context, id string) (bool, error)
	Fail(ctx context.Context, params FailParams) (FailResult, error)
	Stats(ctx context.Context, jobType model.JobType) (*model.JobStats, error)
	List(ctx context.Context, opts *model.JobListOptions) ([]*model.Job, error)
	ListByProfile(ctx context.Context, opts model.JobListByProfileOptions) ([]*model.Job, error)
	// HasActiveOrSucceededByDedupKey reports whether a job for the dedup key
	// is queued, running, or already finished successfully.
	HasActiveOrSucceededByDedupKey(ctx context.Context, dedupKey string) (bool, error)
	Delete(ctx context.Context, id string) error
}

// UpsertJobResultParams groups parameters for JobResultRepository.Upsert.
type UpsertJobResultParams struct {
	JobID   string
	JobType model.JobType
	Result  []byte
}

// JobResultRepository defines the interface for persisted run summary data.
type JobResultRepository interface {
	Upsert(ctx context.Context, params UpsertJobResultParams) error
	GetByJobID(ctx context.Context, jobID string) (*model.JobResult, error)
	ListRecentByProfile(ctx context.Context, creatorProfileID string, limit int) ([]*model.JobResult, error)
}

// UpdateLinkMergeParams carries one merge decision to the link store. The
// update is guarded by ExpectedUpdatedAt so a concurrent merge pass forces a
// re-read instead of silently overwriting.
type UpdateLinkMergeParams struct {
	ID                string
	State             model.LinkState
	Confidence        float64
	Handle            *string
	AppendEvidence    []model.Evidence
	ExpectedUpdatedAt time.Time
}

// LinkRepository defines the interface for social link data operations.
type LinkRepository interface {
	Create(ctx context.Context, req *model.CreateLinkRequest) (*model.SocialLink, error)
	GetByID(ctx context.Context, id string) (*model.SocialLink, error)
	// FindByNaturalKey looks up the single row for a canonical identity.
	FindByNaturalKey(ctx context.Context, key model.LinkNaturalKey) (*model.SocialLink, error)
	ListByProfile(ctx context.Context, opts model.LinkListOptions) ([]*model.SocialLink, error)
	// UpdateMerge applies a merge decision. Returns nil with no error when
	// the optimistic guard missed and the caller should retry.
	UpdateMerge(ctx context.Context, params UpdateLinkMergeParams) (*model.SocialLink, error)
	// UpdateState applies a user or admin state change; the only write path
	// that may set or clear rejected.
	UpdateState(ctx context.Context, id string, req *model.UpdateLinkStateRequest) (*model.SocialLink, error)
	Delete(ctx context.Context, id string) (bool, error)
	// InTransaction runs fn against a repository view whose writes commit or
	// roll back together. A merge pass runs through this so an abort midway
	// leaves no half-updated link set.
	InTransaction(ctx context.Context, fn func(LinkRepository) error) error
}

// ReleaseIngestionParams groups parameters for ProfileRepository.ReleaseIngestion.
type ReleaseIngestionParams struct {
	ProfileID  string
	Status     model.IngestionStatus
	ErrMsg     *string
	IngestedAt *time.Time
}

// ProfileRepository defines the interface for creator profile data operations.
type ProfileRepository interface {
	Create(ctx context.Context, req *model.CreateCreatorProfileRequest) (*model.CreatorProfile, error)
	GetByID(ctx context.Context, id string) (*model.CreatorProfile, error)
	GetByHandle(ctx context.Context, handle string) (*model.CreatorProfile, error)
	List(ctx context.Context, limit, offset int) ([]*model.CreatorProfile, error)
	Update(ctx context.Context, id string, req model.UpdateCreatorProfileRequest) (*model.CreatorProfile, error)
	Delete(ctx context.Context, id string) (bool, error)

	// AcquireIngestion flips ingestion_status to processing. Returns false
	// when another worker already holds the profile. A stale processing
	// status left by a crashed worker is stolen rather than honored.
	AcquireIngestion(ctx context.Context, id string) (bool, error)

	// ReleaseIngestion records the outcome of an ingestion run and returns
	// the profile to idle or failed.
	ReleaseIngestion(ctx context.Context, params ReleaseIngestionParams) error
}

// DeleteOldJobsParams selects which terminal jobs DeleteOldJobs sweeps.
type DeleteOldJobsParams struct {
	Status    model.JobStatus
	MaxAge    time.Duration
	BatchSize int
}

// DeleteOldJobResultsParams groups parameters for DeleteOldJobResults.
type DeleteOldJobResultsParams struct {
	JobType   model.JobType
	MaxAge    time.Duration
	BatchSize int
}

// ReaperRepository defines the interface for job cleanup operations.
type ReaperRepository interface {
	// FailStalePendingJobs marks pending jobs older than maxAge as failed.
	// Processes up to batchSize jobs per call to prevent long locks.
	// Returns the number of jobs marked as failed.
	FailStalePendingJobs(ctx context.Context, maxAge time.Duration, batchSize int) (int64, error)

	// DeleteOldJobs deletes jobs with the given status older than maxAge.
	// Processes up to batchSize jobs per call to prevent long locks.
	// Returns the number of jobs deleted.
	DeleteOldJobs(ctx context.Context, params DeleteOldJobsParams) (int64, error)

	// DeleteOldJobResults deletes persisted job_results rows for the given job type
	// that are older than maxAge. Processes up to batchSize rows per call.
	DeleteOldJobResults(ctx context.Context, params DeleteOldJobResultsParams) (int64, error)
}
