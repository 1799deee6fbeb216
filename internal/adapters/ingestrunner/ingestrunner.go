// Package ingestrunner pulls ingestion jobs off the queue for a single job
// type and drives each one through the ingest pipeline, keeping the profile's
// ingestion status in step with the job lifecycle.
package ingestrunner

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/linkhound/ingest/internal/core"
	"github.com/linkhound/ingest/internal/data"
	"github.com/linkhound/ingest/internal/domain/model"
	"github.com/linkhound/ingest/internal/domain/scoring"
	apperrors "github.com/linkhound/ingest/internal/errors"
	obserrors "github.com/linkhound/ingest/internal/observability/errors"
	"github.com/linkhound/ingest/internal/observability/metrics"
	"github.com/linkhound/ingest/internal/observability/statsd"
	"github.com/linkhound/ingest/internal/service"
	"github.com/linkhound/ingest/internal/service/failurenotifier"
	"github.com/linkhound/ingest/internal/strategy"
)

// RunnerOptions configures the ingest runner adapter.
type RunnerOptions struct {
	DB     *sql.DB
	Logger *slog.Logger

	// Job processing settings
	Lease       time.Duration // per-job lease duration; defaults to 30s
	Heartbeat   time.Duration // lease extension interval; 0 disables heartbeats
	Concurrency int           // number of worker goroutines; defaults to 1
	JobType     model.JobType // which job type to process; defaults to linkpage
	WorkerID    string        // claim attribution; defaults to hostname plus a short id

	// Strategy and scoring knobs used when the pipeline is built here.
	Strategy strategy.ClientConfig
	Scoring  scoring.Config

	// Cache backs the page body cache and the crawl dedup pre-filter.
	// Optional: without it strategies always fetch and dedup is DB-only.
	Cache           core.CacheRepository
	PageCacheTTL    time.Duration
	RecentTargetTTL time.Duration

	// Optional dependency injections (useful for tests/decoupling)
	JobsRepo        core.JobRepository
	ProfilesRepo    core.ProfileRepository
	LinksRepo       core.LinkRepository
	JobResultRepo   core.JobResultRepository
	Registry        *strategy.Registry
	Ingest          *service.IngestService
	Metrics         statsd.Sink
	FailureNotifier *failurenotifier.Service
}

// Runner claims jobs of one type and executes them through the ingest service.
type Runner struct {
	jobs      *service.JobService
	profiles  core.ProfileRepository
	ingest    *service.IngestService
	logger    *slog.Logger
	lease     time.Duration
	heartbeat time.Duration
	jobType   model.JobType
	workerID  string
	workers   int
	metrics   statsd.Sink
}

// internal wiring helpers to keep NewRunner small

type runnerDeps struct {
	jobsRepo     core.JobRepository
	profilesRepo core.ProfileRepository
	jobSvc       *service.JobService
	ingestSvc    *service.IngestService
}

func resolveLogger(l *slog.Logger) *slog.Logger {
	if l != nil {
		return l
	}
	return slog.Default()
}

func resolveWorkerID(id string) string {
	if id != "" {
		return id
	}
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "worker"
	}
	return host + "-" + uuid.NewString()[:8]
}

func buildRegistry(opts RunnerOptions, logger *slog.Logger) *strategy.Registry {
	if opts.Registry != nil {
		return opts.Registry
	}
	var pageCache *core.PageCacheService
	if opts.Cache != nil {
		pageCache = core.NewPageCacheService(core.PageCacheServiceOptions{
			Cache:  opts.Cache,
			Config: core.PageCacheConfig{TTL: opts.PageCacheTTL},
		})
	}
	client := strategy.NewClient(strategy.ClientOptions{
		Config: opts.Strategy,
		Cache:  pageCache,
		Logger: logger,
	})
	return strategy.DefaultRegistry(client)
}

func buildRunnerDeps(opts RunnerOptions, lease time.Duration, logger *slog.Logger) (runnerDeps, error) {
	deps := runnerDeps{}

	if opts.JobsRepo != nil {
		deps.jobsRepo = opts.JobsRepo
	} else {
		deps.jobsRepo = data.NewJobRepo(opts.DB, data.RepoConfig{})
	}
	deps.jobSvc = service.MustNewJobService(service.JobServiceOptions{
		Repo:            deps.jobsRepo,
		DefaultLease:    lease,
		FailureNotifier: opts.FailureNotifier,
	})

	if opts.ProfilesRepo != nil {
		deps.profilesRepo = opts.ProfilesRepo
	} else {
		deps.profilesRepo = data.NewProfileRepo(opts.DB)
	}

	if opts.Ingest != nil {
		deps.ingestSvc = opts.Ingest
		return deps, nil
	}

	links := opts.LinksRepo
	if links == nil {
		links = data.NewLinkRepo(opts.DB)
	}
	results := opts.JobResultRepo
	if results == nil && opts.DB != nil {
		results = data.NewJobResultRepo(opts.DB)
	}

	registry := buildRegistry(opts, logger)

	merge, err := service.NewMergeService(service.MergeServiceOptions{
		Links:  links,
		Scorer: scoring.NewScorer(scoring.ScorerOptions{Config: opts.Scoring}),
		Logger: logger,
	})
	if err != nil {
		return deps, fmt.Errorf("build merge service: %w", err)
	}

	crawl, err := service.NewCrawlService(service.CrawlServiceOptions{
		Jobs:            deps.jobsRepo,
		Registry:        registry,
		Cache:           opts.Cache,
		RecentTargetTTL: opts.RecentTargetTTL,
		Logger:          logger,
	})
	if err != nil {
		return deps, fmt.Errorf("build crawl service: %w", err)
	}

	deps.ingestSvc, err = service.NewIngestService(service.IngestServiceOptions{
		Registry: registry,
		Profiles: deps.profilesRepo,
		Merge:    merge,
		Crawl:    crawl,
		Results:  results,
		Logger:   logger,
	})
	if err != nil {
		return deps, fmt.Errorf("build ingest service: %w", err)
	}
	return deps, nil
}

// NewRunner wires repositories/services and constructs an ingest runner for a
// single job type.
func NewRunner(opts RunnerOptions) (*Runner, error) {
	if opts.DB == nil && (opts.JobsRepo == nil || opts.ProfilesRepo == nil) {
		return nil, errors.New("either DB or both JobsRepo and ProfilesRepo must be provided")
	}
	if opts.DB == nil && opts.Ingest == nil && opts.LinksRepo == nil {
		return nil, errors.New("either DB, Ingest, or LinksRepo must be provided")
	}

	logger := resolveLogger(opts.Logger)

	lease := opts.Lease
	if lease <= 0 {
		lease = 30 * time.Second
	}
	heartbeat := opts.Heartbeat
	if heartbeat >= lease {
		heartbeat = lease / 2
	}
	workers := opts.Concurrency
	if workers <= 0 {
		workers = 1
	}
	jt := opts.JobType
	if !jt.Valid() {
		jt = model.JobTypeLinkPage
	}

	deps, err := buildRunnerDeps(opts, lease, logger)
	if err != nil {
		return nil, err
	}

	return &Runner{
		jobs:      deps.jobSvc,
		profiles:  deps.profilesRepo,
		ingest:    deps.ingestSvc,
		logger:    logger,
		lease:     lease,
		heartbeat: heartbeat,
		jobType:   jt,
		workerID:  resolveWorkerID(opts.WorkerID),
		workers:   workers,
		metrics:   opts.Metrics,
	}, nil
}

// Run starts worker goroutines and processes jobs until the context is cancelled.
func (r *Runner) Run(ctx context.Context) error {
	r.logger.InfoContext(ctx, "starting ingest runner",
		"type", r.jobType, "workers", r.workers, "lease", r.lease, "worker_id", r.workerID)

	// Derive a cancellable context that we can signal on first fatal error
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Subscribe for notifications for the job type we process
	unsub, ch := r.jobs.Subscribe(r.jobType)
	defer unsub()

	var wg sync.WaitGroup
	errCh := make(chan error, 1)

	for range r.workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := r.workerLoop(ctx, ch); err != nil {
				// first error wins, cancels all workers
				select {
				case errCh <- err:
					cancel()
				default:
				}
			}
		}()
	}

	wg.Wait()

	select {
	case err := <-errCh:
		return err
	default:
		return ctx.Err()
	}
}

func (r *Runner) workerLoop(ctx context.Context, notify <-chan struct{}) error {
	for ctx.Err() == nil {
		job, err := r.jobs.ClaimNext(ctx, r.jobType, r.workerID, r.lease)
		switch {
		case err == nil:
			if job != nil {
				r.processJob(ctx, job)
			}
		case errors.Is(err, model.ErrNoJobsAvailable):
			if !r.waitForNotify(ctx, notify) {
				return nil
			}
		default:
			return fmt.Errorf("claim next: %w", err)
		}
	}
	return ctx.Err()
}

func (r *Runner) waitForNotify(ctx context.Context, notify <-chan struct{}) bool {
	select {
	case <-ctx.Done():
		return false
	case <-notify:
		return true
	}
}

func (r *Runner) processJob(ctx context.Context, job *model.Job) {
	start := time.Now()
	emit := func(transition, result string, err error) {
		metrics.EmitJobLifecycle(r.metrics, metrics.JobMetric{
			JobType:    string(job.Type),
			Transition: transition,
			Result:     result,
			Duration:   time.Since(start),
			Err:        err,
		})
	}

	payload, err := job.ParsedPayload()
	if err != nil {
		perr := apperrors.Contentf("job %s: %v", job.ID, err)
		r.failJob(ctx, job, perr)
		emit("failed", metrics.ResultError, perr)
		return
	}

	acquired, err := r.profiles.AcquireIngestion(ctx, payload.CreatorProfileID)
	if err != nil {
		aerr := fmt.Errorf("acquire profile %s: %w", payload.CreatorProfileID, err)
		r.failJob(ctx, job, aerr)
		emit("failed", metrics.ResultError, aerr)
		return
	}
	if !acquired {
		// Another worker holds the profile. Requeue with backoff rather than
		// running two ingestions against the same link set.
		berr := apperrors.Retryablef("profile %s is already ingesting", payload.CreatorProfileID)
		res := r.failJob(ctx, job, berr)
		if res.Terminal() {
			// Attempts ran out while the profile stayed busy. Record the
			// failure on the profile so it does not read as processing
			// after its last job went terminal.
			msg := berr.Error()
			r.release(ctx, core.ReleaseIngestionParams{
				ProfileID: payload.CreatorProfileID,
				Status:    model.IngestionStatusFailed,
				ErrMsg:    &msg,
			})
		}
		emit("failed", metrics.ResultError, berr)
		return
	}

	stopHeartbeat := r.startHeartbeat(ctx, job.ID)
	summary, runErr := r.runPipeline(ctx, job)
	stopHeartbeat()

	if runErr != nil {
		res := r.failJob(ctx, job, runErr)
		r.releaseAfterFailure(ctx, payload.CreatorProfileID, runErr, res)
		emit("failed", metrics.ResultError, runErr)
		return
	}

	now := time.Now()
	r.release(ctx, core.ReleaseIngestionParams{
		ProfileID:  payload.CreatorProfileID,
		Status:     model.IngestionStatusIdle,
		IngestedAt: &now,
	})

	if completed, err := r.jobs.Complete(ctx, job.ID); err != nil {
		r.logger.ErrorContext(ctx, "complete job error", "job_id", job.ID, "error", err)
		emit("completed", metrics.ResultError, err)
	} else {
		result := metrics.ResultNoop
		if completed {
			result = metrics.ResultSuccess
		}
		if summary != nil {
			r.logger.InfoContext(ctx, "ingest run finished",
				"job_id", job.ID,
				"source_url", summary.SourceURL,
				"candidates", summary.CandidatesFound,
				"created", summary.LinksCreated,
				"updated", summary.LinksUpdated,
				"follow_ups", summary.FollowUps)
		}
		emit("completed", result, nil)
	}
}

// runPipeline executes the ingest pipeline for one job, converting a panic in
// a strategy or parser into a content failure. The job must reach its terminal
// update and the profile its release no matter what the page did to us.
func (r *Runner) runPipeline(ctx context.Context, job *model.Job) (summary *model.IngestRunSummary, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.ErrorContext(ctx, "ingest run panic",
				"job_id", job.ID, "panic", rec, "stack", string(debug.Stack()))
			summary = nil
			err = apperrors.Contentf("job %s: panic during ingest: %v", job.ID, rec)
		}
	}()
	return r.ingest.Run(ctx, job)
}

// startHeartbeat extends the job lease periodically while the pipeline runs.
// The returned stop function waits for the heartbeat goroutine to exit so a
// late extension can never race with the job's terminal update.
func (r *Runner) startHeartbeat(ctx context.Context, jobID string) func() {
	if r.heartbeat <= 0 {
		return func() {}
	}
	hbCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		ticker := time.NewTicker(r.heartbeat)
		defer ticker.Stop()
		for {
			select {
			case <-hbCtx.Done():
				return
			case <-ticker.C:
				ok, err := r.jobs.Heartbeat(hbCtx, jobID, r.lease)
				if err != nil {
					if hbCtx.Err() != nil {
						return
					}
					r.logger.WarnContext(hbCtx, "heartbeat error", "job_id", jobID, "error", err)
					continue
				}
				if !ok {
					// Lease already expired or job was reassigned. Keep
					// working; the terminal update will report not-found.
					r.logger.WarnContext(hbCtx, "heartbeat lost job lease", "job_id", jobID)
					return
				}
			}
		}
	}()
	return func() {
		cancel()
		<-done
	}
}

func (r *Runner) failJob(ctx context.Context, job *model.Job, cause error) core.FailResult {
	res, err := r.jobs.FailWithDetails(ctx, core.FailParams{
		ID:         job.ID,
		ErrMsg:     cause.Error(),
		ErrorClass: errorClass(cause),
		Retryable:  isCauseRetryable(cause),
	}, service.JobFailureDetails{
		Metadata: map[string]string{
			"component": r.componentLabel(),
			"worker_id": r.workerID,
		},
	})
	if err != nil {
		r.logger.ErrorContext(ctx, "fail job error", "job_id", job.ID, "error", err, "original_error", cause)
	}
	return res
}

// releaseAfterFailure returns the profile to idle so a retry can claim it
// again, unless the job went terminal, in which case the failure sticks to
// the profile until the next manual or scheduled run.
func (r *Runner) releaseAfterFailure(ctx context.Context, profileID string, cause error, res core.FailResult) {
	params := core.ReleaseIngestionParams{
		ProfileID: profileID,
		Status:    model.IngestionStatusIdle,
	}
	if res.Terminal() {
		msg := cause.Error()
		params.Status = model.IngestionStatusFailed
		params.ErrMsg = &msg
	}
	r.release(ctx, params)
}

func (r *Runner) release(ctx context.Context, params core.ReleaseIngestionParams) {
	if err := r.profiles.ReleaseIngestion(ctx, params); err != nil {
		r.logger.ErrorContext(ctx, "release profile error",
			"profile_id", params.ProfileID, "status", params.Status, "error", err)
	}
}

func (r *Runner) componentLabel() string {
	switch r.jobType {
	case model.JobTypeLinkPage:
		return "linkpage_runner"
	case model.JobTypeDropPage:
		return "droppage_runner"
	case model.JobTypeVideoChannel:
		return "videochannel_runner"
	default:
		return "ingest_runner"
	}
}

// isCauseRetryable maps the error taxonomy onto the queue's retry decision.
// Content and policy failures will not improve on a rerun; anything else,
// including unclassified errors, gets another attempt.
func isCauseRetryable(err error) bool {
	return !apperrors.IsContent(err) && !apperrors.IsPolicy(err)
}

func errorClass(err error) string {
	switch {
	case apperrors.IsRetryable(err):
		return string(apperrors.ErrCodeRetryable)
	case apperrors.IsContent(err):
		return string(apperrors.ErrCodeContent)
	case apperrors.IsPolicy(err):
		return string(apperrors.ErrCodePolicy)
	default:
		return obserrors.Classify(err)
	}
}
