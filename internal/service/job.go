package service

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/linkhound/ingest/internal/core"
	domainjob "github.com/linkhound/ingest/internal/domain/job"
	"github.com/linkhound/ingest/internal/domain/model"
	"github.com/linkhound/ingest/internal/observability/notify"
	"github.com/linkhound/ingest/internal/service/failurenotifier"
)

// JobServiceOptions groups dependencies for JobService.
type JobServiceOptions struct {
	Repo            core.JobRepository        // Required: job repository
	DefaultLease    time.Duration             // Required: default lease duration for jobs
	Logger          *slog.Logger              // Optional: structured logger
	FailureNotifier *failurenotifier.Service  // Optional: failure notification fan-out
	LeasePolicy     *domainjob.LeasePolicy    // Optional: override default lease policy
	Notifier        domainjob.Notifier        // Optional: custom job availability notifier
	NotifierOptions domainjob.NotifierOptions // Optional: configure default notifier behaviour
}

// JobService owns the queue lifecycle: enqueue, claim, lease upkeep, terminal
// transitions, and the wakeup subscriptions idle workers block on.
type JobService struct {
	repo            core.JobRepository
	leasePolicy     *domainjob.LeasePolicy
	notifier        domainjob.Notifier
	logger          *slog.Logger
	failureNotifier *failurenotifier.Service
}

// NewJobService constructs a new JobService.
func NewJobService(opts JobServiceOptions) (*JobService, error) {
	if opts.Repo == nil {
		return nil, errors.New("JobRepository is required")
	}

	leasePolicy := opts.LeasePolicy
	if leasePolicy == nil {
		if opts.DefaultLease <= 0 {
			return nil, errors.New("DefaultLease must be positive")
		}
		var err error
		leasePolicy, err = domainjob.NewLeasePolicy(opts.DefaultLease)
		if err != nil {
			return nil, fmt.Errorf("create lease policy: %w", err)
		}
	}

	notifier := opts.Notifier
	if notifier == nil {
		options := opts.NotifierOptions
		if options.Waiter == nil {
			options.Waiter = opts.Repo
		}
		var err error
		notifier, err = domainjob.NewNotifier(options)
		if err != nil {
			return nil, fmt.Errorf("create job notifier: %w", err)
		}
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	return &JobService{
		repo:            opts.Repo,
		leasePolicy:     leasePolicy,
		notifier:        notifier,
		logger:          logger.With("component", "job_service"),
		failureNotifier: opts.FailureNotifier,
	}, nil
}

// MustNewJobService constructs a new JobService and panics on error.
// Use this when you're certain the options are valid (e.g., in main.go).
func MustNewJobService(opts JobServiceOptions) *JobService {
	svc, err := NewJobService(opts)
	if err != nil {
		//nolint:forbidigo // Must constructor fails fast when dependencies are invalid during startup
		panic(fmt.Sprintf("failed to create JobService: %v", err))
	}
	return svc
}

// Create enqueues a new job. Duplicate requests for a live (type, profile,
// target) triple collapse onto the existing job instead of creating a second
// row.
func (s *JobService) Create(ctx context.Context, req *model.CreateJobRequest) (*model.Job, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("validate job request: %w", err)
	}

	job, err := s.repo.Create(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("create job: %w", err)
	}

	s.logger.DebugContext(ctx, "job created", "id", job.ID, "type", job.Type, "status", job.Status)
	return job, nil
}

// ClaimNext claims the next runnable job of the given type for workerID.
func (s *JobService) ClaimNext(
	ctx context.Context,
	jobType model.JobType,
	workerID string,
	lease time.Duration,
) (*model.Job, error) {
	decision := s.leasePolicy.Resolve(lease)
	if decision.Clamped() {
		s.logger.DebugContext(ctx, "clamped sub-second lease duration to 1 second",
			"requested_duration", decision.Requested, "job_type", jobType)
	}

	job, err := s.repo.ClaimNext(ctx, jobType, workerID, decision.Seconds)
	if err != nil {
		if errors.Is(err, model.ErrNoJobsAvailable) {
			return nil, err
		}
		return nil, fmt.Errorf("claim next job: %w", err)
	}

	if job != nil {
		s.logger.DebugContext(ctx, "job claimed",
			"id", job.ID, "type", jobType, "worker_id", workerID, "lease_seconds", decision.Seconds)
	}
	return job, nil
}

// Subscribe creates a subscription for job notifications of the given type.
// Returns an unsubscribe function and a channel that receives notifications.
func (s *JobService) Subscribe(jobType model.JobType) (func(), <-chan struct{}) {
	if s.notifier == nil {
		ch := make(chan struct{})
		close(ch)
		return func() {}, ch
	}
	return s.notifier.Subscribe(jobType)
}

// WaitForNotification waits for a notification indicating new jobs are available.
func (s *JobService) WaitForNotification(ctx context.Context, jobType model.JobType) error {
	return s.repo.WaitForNotification(ctx, jobType)
}

// Heartbeat extends the lease on a job to indicate it's still being processed.
func (s *JobService) Heartbeat(ctx context.Context, id string, extend time.Duration) (bool, error) {
	decision := s.leasePolicy.Resolve(extend)
	if decision.Clamped() {
		s.logger.DebugContext(ctx, "clamped sub-second heartbeat duration to 1 second",
			"requested_duration", decision.Requested, "job_id", id)
	}

	updated, err := s.repo.Heartbeat(ctx, id, decision.Seconds)
	if err != nil {
		return false, fmt.Errorf("heartbeat job %s: %w", id, err)
	}

	if updated {
		s.logger.DebugContext(ctx, "job heartbeat updated", "id", id, "extend_seconds", decision.Seconds)
	}
	return updated, nil
}

// Complete marks a job as completed successfully.
func (s *JobService) Complete(ctx context.Context, id string) (bool, error) {
	completed, err := s.repo.Complete(ctx, id)
	if err != nil {
		return false, fmt.Errorf("complete job %s: %w", id, err)
	}

	if completed {
		s.logger.DebugContext(ctx, "job completed", "id", id)
	}
	return completed, nil
}

// Fail records a failure for the job. Retryable failures with attempts left
// requeue with backoff; everything else goes terminal.
func (s *JobService) Fail(ctx context.Context, params core.FailParams) (core.FailResult, error) {
	return s.FailWithDetails(ctx, params, JobFailureDetails{})
}

// JobFailureDetails captures optional context for failure notifications.
type JobFailureDetails struct {
	Metadata   map[string]string
	Severity   string
	OccurredAt time.Time
}

// FailWithDetails records a failure and, when the job goes terminal,
// propagates a notification with the given metadata.
func (s *JobService) FailWithDetails(
	ctx context.Context,
	params core.FailParams,
	details JobFailureDetails,
) (core.FailResult, error) {
	if params.ErrMsg == "" {
		return core.FailResult{}, errors.New("error message required")
	}

	// Load the job before failing it: a terminal Fail may race the reaper,
	// and the notification wants payload context either way.
	var job *model.Job
	if s.failureNotifier != nil {
		var err error
		job, err = s.repo.GetByID(ctx, params.ID)
		if err != nil {
			s.logger.WarnContext(ctx, "failed to load job for failure notification",
				"job_id", params.ID, "error", err)
		}
	}

	result, err := s.repo.Fail(ctx, params)
	if err != nil {
		return core.FailResult{}, fmt.Errorf("fail job %s: %w", params.ID, err)
	}

	if result.Found {
		s.logger.DebugContext(ctx, "job failed",
			"id", params.ID, "error", params.ErrMsg, "status", result.Status)
	}

	if result.Terminal() && s.failureNotifier != nil {
		s.failureNotifier.NotifyJobFailure(ctx, buildJobFailurePayload(params, job, details))
	}
	return result, nil
}

// buildJobFailurePayload assembles the notification for a terminally failed
// job. Caller metadata comes first so job-derived keys win on collision.
func buildJobFailurePayload(params core.FailParams, job *model.Job, details JobFailureDetails) notify.JobFailurePayload {
	payload := notify.JobFailurePayload{
		JobID:      params.ID,
		Error:      params.ErrMsg,
		ErrorClass: params.ErrorClass,
		Severity:   cmp.Or(details.Severity, notify.SeverityCritical),
		OccurredAt: details.OccurredAt,
		Metadata:   make(map[string]string, len(details.Metadata)+4),
	}
	if payload.OccurredAt.IsZero() {
		payload.OccurredAt = time.Now()
	}

	for k, v := range details.Metadata {
		if k != "" && v != "" {
			payload.Metadata[k] = v
		}
	}

	if job != nil {
		payload.JobType = string(job.Type)
		payload.CreatorProfileID = job.CreatorProfileID
		if parsed, err := job.ParsedPayload(); err == nil {
			payload.SourceURL = parsed.SourceURL
		}
		payload.Metadata["attempts"] = strconv.Itoa(job.Attempts)
		payload.Metadata["max_attempts"] = strconv.Itoa(job.MaxAttempts)
		payload.Metadata["priority"] = strconv.Itoa(job.Priority)
	}
	if payload.ErrorClass != "" {
		payload.Metadata["error_class"] = payload.ErrorClass
	}
	if len(payload.Metadata) == 0 {
		payload.Metadata = nil
	}
	return payload
}

// Stats returns statistics about jobs of the given type in different states.
func (s *JobService) Stats(ctx context.Context, jobType model.JobType) (*model.JobStats, error) {
	stats, err := s.repo.Stats(ctx, jobType)
	if err != nil {
		return nil, fmt.Errorf("get job stats for type %s: %w", jobType, err)
	}
	return stats, nil
}

// GetStatus returns the status information for a specific job.
func (s *JobService) GetStatus(ctx context.Context, id string) (*model.JobStatusResponse, error) {
	job, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get job %s: %w", id, err)
	}

	return &model.JobStatusResponse{
		Status:      job.Status,
		Attempts:    job.Attempts,
		CompletedAt: job.CompletedAt,
		LastError:   job.LastError,
		ErrorClass:  job.ErrorClass,
	}, nil
}

// GetByID returns a job by its ID.
func (s *JobService) GetByID(ctx context.Context, id string) (*model.Job, error) {
	job, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get job by id %s: %w", id, err)
	}
	return job, nil
}

const (
	defaultListLimit = 50
	maxListLimit     = 1000
)

// normalizePagination clamps pagination parameters to safe defaults so
// limits cannot drift between handler and repository layers.
func normalizePagination(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	return min(limit, maxListLimit), max(offset, 0)
}

// List returns jobs with optional type and status filters for the admin view.
func (s *JobService) List(
	ctx context.Context,
	opts *model.JobListOptions,
) ([]*model.Job, error) {
	opts.Limit, opts.Offset = normalizePagination(opts.Limit, opts.Offset)

	jobs, err := s.repo.List(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	return jobs, nil
}

// ListByProfile returns jobs for a given creator profile with pagination.
func (s *JobService) ListByProfile(
	ctx context.Context,
	opts model.JobListByProfileOptions,
) ([]*model.Job, error) {
	if opts.CreatorProfileID == "" {
		return nil, errors.New("creator profile id is required")
	}

	opts.Limit, opts.Offset = normalizePagination(opts.Limit, opts.Offset)

	jobs, err := s.repo.ListByProfile(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("list jobs by profile %s: %w", opts.CreatorProfileID, err)
	}
	return jobs, nil
}

// Delete removes a job that is terminal or pending without an active lease.
func (s *JobService) Delete(ctx context.Context, id string) error {
	if id == "" {
		return errors.New("job id is required")
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		s.logger.DebugContext(ctx, "failed to delete job", "id", id, "error", err)
		return fmt.Errorf("delete job %s: %w", id, err)
	}

	s.logger.InfoContext(ctx, "job deleted", "id", id)
	return nil
}

// StopAllListeners stops all active job notification listeners.
// This should be called during graceful shutdown to clean up goroutines.
func (s *JobService) StopAllListeners() {
	s.logger.Info("stopping all job listeners")
	if s.notifier != nil {
		s.notifier.StopAll()
	}
}
