// Package service provides business logic services for the linkhound ingestion system.
package service

import (
	"cmp"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/linkhound/ingest/internal/core"
	"github.com/linkhound/ingest/internal/data"
	"github.com/linkhound/ingest/internal/domain"
	"github.com/linkhound/ingest/internal/domain/model"
	"github.com/linkhound/ingest/internal/domain/platform"
	domainscheduler "github.com/linkhound/ingest/internal/domain/scheduler"
)

// SchedulerService turns due scheduled tasks into re-ingestion jobs. Each
// fire runs under a per-task advisory lock, so replicas can tick the same
// table without double-enqueueing.
type SchedulerService struct {
	repo         core.ScheduledJobsRepository
	jobs         core.JobRepository
	jobq         core.JobIntrospector
	cfg          core.SchedulerConfig
	timeProvider data.TimeProvider
	logger       *slog.Logger
	processor    *domainscheduler.TaskProcessor
}

// SchedulerServiceOptions holds the dependencies for creating a SchedulerService.
type SchedulerServiceOptions struct {
	Repo            core.ScheduledJobsRepository
	Jobs            core.JobRepository
	JobIntrospector core.JobIntrospector
	Config          *core.SchedulerConfig
	TimeProvider    data.TimeProvider
	Logger          *slog.Logger
}

// NewSchedulerService creates a new SchedulerService with the given dependencies.
func NewSchedulerService(opts SchedulerServiceOptions) *SchedulerService {
	cfg := core.DefaultSchedulerConfig()
	if opts.Config != nil {
		cfg = *opts.Config
	}
	var tp data.TimeProvider = &data.RealTimeProvider{}
	if opts.TimeProvider != nil {
		tp = opts.TimeProvider
	}

	return &SchedulerService{
		repo:         opts.Repo,
		jobs:         opts.Jobs,
		jobq:         opts.JobIntrospector,
		cfg:          cfg,
		timeProvider: tp,
		logger:       cmp.Or(opts.Logger, slog.Default()),
		processor: domainscheduler.NewTaskProcessor(domainscheduler.TaskProcessorOptions{
			DefaultPolicy: cfg.Strategy.Overrun,
			DefaultStates: cfg.Strategy.OverrunStates,
			StateReader:   opts.JobIntrospector,
		}),
	}
}

// Tick runs one scheduler pass: it loads due tasks up to the batch size and
// fires each one that it can lock. Returns how many tasks actually changed
// state this pass.
//
// Two layers keep concurrent replicas from double-firing a task. FindDue
// claims its batch with FOR UPDATE SKIP LOCKED, and each fire then holds a
// per-task advisory lock for the duration of its transaction.
func (s *SchedulerService) Tick(ctx context.Context, now time.Time) (int, error) {
	due, err := s.repo.FindDue(ctx, now, s.cfg.BatchSize)
	if err != nil {
		return 0, fmt.Errorf("find due tasks: %w", err)
	}

	processed := 0
	for _, task := range due {
		worked, err := s.fireTask(ctx, task)
		if err != nil {
			return processed, fmt.Errorf("process task %s: %w", task.TaskName, err)
		}
		if worked {
			processed++
		}
	}
	return processed, nil
}

// fireTask runs one task through the overrun flow inside its advisory-lock
// transaction. Losing the lock race means another replica owns the fire,
// which counts as no work here.
func (s *SchedulerService) fireTask(ctx context.Context, task domain.ScheduledTask) (bool, error) {
	worked := false
	lockOK, err := s.repo.TryWithTaskLock(ctx, task.TaskName, func(ctx context.Context, tx *sql.Tx) error {
		result, processErr := s.processor.Process(ctx, domainscheduler.ProcessParams{
			Task:     task,
			Now:      s.timeProvider.Now(),
			Store:    txTaskStore{repo: s.repo, tx: tx},
			Enqueuer: enqueueFunc(s.enqueueJob),
		})
		if processErr != nil {
			return processErr
		}
		worked = result != nil && result.Worked
		return nil
	})
	if err != nil {
		return false, err
	}
	return lockOK && worked, nil
}

// txTaskStore binds the scheduled-jobs repository to the fire's transaction.
type txTaskStore struct {
	repo core.ScheduledJobsRepository
	tx   *sql.Tx
}

func (s txTaskStore) MarkQueued(ctx context.Context, params domain.MarkQueuedParams) (bool, error) {
	return s.repo.MarkQueuedTx(ctx, s.tx, params)
}

func (s txTaskStore) UpdateActiveFireKey(ctx context.Context, params domain.UpdateActiveFireKeyParams) error {
	return s.repo.UpdateActiveFireKeyTx(ctx, s.tx, params)
}

type enqueueFunc func(ctx context.Context, task domain.ScheduledTask, fireKey string) (bool, error)

func (f enqueueFunc) Enqueue(ctx context.Context, task domain.ScheduledTask, fireKey string) (bool, error) {
	return f(ctx, task, fireKey)
}

// enqueueJob creates the re-ingestion job for a fire. The insert is
// idempotent: the dedup key allows one non-terminal row per (type, profile,
// target), so re-running a fire after a crash hands back the existing job.
// Whether this fire created the row is read off the returned job's fire key.
func (s *SchedulerService) enqueueJob(ctx context.Context, task domain.ScheduledTask, fireKey string) (bool, error) {
	req, err := s.buildJobRequest(task, fireKey)
	if err != nil {
		return false, err
	}

	job, err := s.jobs.Create(ctx, req)
	if err != nil {
		return false, fmt.Errorf("create job: %w", err)
	}
	return jobCarriesFireKey(job, fireKey), nil
}

// buildJobRequest assembles the enqueue request from the task's stored
// payload. The job type follows the source URL's platform; sources on a
// platform without a crawl strategy fall back to the configured default.
func (s *SchedulerService) buildJobRequest(task domain.ScheduledTask, fireKey string) (*model.CreateJobRequest, error) {
	var payload model.JobPayload
	if err := json.Unmarshal(task.Payload, &payload); err != nil {
		return nil, fmt.Errorf("parse task payload: %w", err)
	}
	// Scheduled tasks always fire top-level runs.
	payload.Depth = 0
	if err := payload.Validate(); err != nil {
		return nil, fmt.Errorf("parse task payload: %w", err)
	}

	identity, err := platform.Detect(payload.SourceURL)
	if err != nil {
		return nil, fmt.Errorf("detect source platform: %w", err)
	}
	jobType := s.cfg.DefaultJobType
	if kind, ok := strategyKindFor(identity.Platform); ok {
		jobType = kind
	}
	payload.SourceURL = identity.CanonicalURL

	meta, err := json.Marshal(map[string]any{
		"scheduler.task_name": task.TaskName,
		"scheduler.interval":  task.Interval.String(),
		"scheduler.fire_key":  fireKey,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal metadata: %w", err)
	}

	return &model.CreateJobRequest{
		Type:        jobType,
		Payload:     payload,
		Metadata:    meta,
		Priority:    s.cfg.DefaultPriority,
		MaxAttempts: s.cfg.MaxRetries,
	}, nil
}

// jobCarriesFireKey reports whether the returned job row was inserted by
// this fire. A dedup hit returns the live job from an earlier fire, whose
// metadata carries that fire's key.
func jobCarriesFireKey(job *model.Job, fireKey string) bool {
	if job == nil || len(job.Metadata) == 0 {
		return false
	}
	var meta struct {
		FireKey string `json:"scheduler.fire_key"`
	}
	if err := json.Unmarshal(job.Metadata, &meta); err != nil {
		return false
	}
	return meta.FireKey == fireKey
}
