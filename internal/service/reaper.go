package service

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/linkhound/ingest/config"
	"github.com/linkhound/ingest/internal/core"
	"github.com/linkhound/ingest/internal/domain/model"
	obserrors "github.com/linkhound/ingest/internal/observability/errors"
	"github.com/linkhound/ingest/internal/observability/metrics"
	"github.com/linkhound/ingest/internal/observability/statsd"
)

// ReaperServiceOptions groups dependencies for ReaperService.
type ReaperServiceOptions struct {
	Repo    core.ReaperRepository
	Config  config.ReaperConfig
	Logger  *slog.Logger
	Metrics statsd.Sink
}

// ReaperService keeps the jobs tables from growing without bound. Each cycle
// it fails pending jobs nothing ever claimed, deletes terminal jobs past
// their retention window, and prunes persisted extraction results.
type ReaperService struct {
	repo    core.ReaperRepository
	config  config.ReaperConfig
	logger  *slog.Logger
	metrics statsd.Sink
}

func NewReaperService(opts ReaperServiceOptions) (*ReaperService, error) {
	if opts.Repo == nil {
		return nil, errors.New("ReaperRepository is required")
	}

	var logger *slog.Logger
	if opts.Logger != nil {
		logger = opts.Logger.With("component", "reaper_service")
		logger.Debug("ReaperService initialized",
			"interval", opts.Config.Interval,
			"pending_max_age", opts.Config.PendingMaxAge,
			"completed_max_age", opts.Config.CompletedMaxAge,
			"failed_max_age", opts.Config.FailedMaxAge,
		)
	}

	return &ReaperService{
		repo:    opts.Repo,
		config:  opts.Config,
		logger:  logger,
		metrics: opts.Metrics,
	}, nil
}

// Run executes cleanup cycles at the configured interval until the context
// ends. Returns nil on graceful shutdown.
func (s *ReaperService) Run(ctx context.Context) error {
	if s.logger != nil {
		s.logger.InfoContext(ctx, "starting reaper service", "interval", s.config.Interval)
	}

	// Jitter keeps replicas started together from sweeping in lockstep.
	s.waitWithJitter(ctx)

	if err := s.runCleanup(ctx); err != nil {
		s.logCleanupError(err, "initial cleanup")
	}

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			if s.logger != nil {
				s.logger.InfoContext(ctx, "reaper service stopping", "reason", ctx.Err())
			}
			if errors.Is(ctx.Err(), context.Canceled) {
				return nil
			}
			return ctx.Err()

		case <-ticker.C:
			if err := s.runCleanup(ctx); err != nil {
				// Keep cycling; a failed sweep retries next tick.
				s.logCleanupError(err, "cleanup")
			}
		}
	}
}

// waitWithJitter sleeps a random duration up to 10% of the interval.
func (s *ReaperService) waitWithJitter(ctx context.Context) {
	maxJitter := int64(s.config.Interval / 10)
	if maxJitter <= 0 {
		return
	}

	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		if s.logger != nil {
			s.logger.WarnContext(ctx, "failed to generate jitter, skipping", "error", err)
		}
		return
	}
	jitter := time.Duration(int64(binary.BigEndian.Uint64(buf[:]) % uint64(maxJitter))) // #nosec G115 -- bounded by maxJitter

	select {
	case <-time.After(jitter):
	case <-ctx.Done():
	}
}

// sweepResult records one sweep's outcome for logging and metrics.
type sweepResult struct {
	operation string
	count     int64
	err       error
}

// runCleanup performs all sweeps, even when earlier ones fail, and reports
// the joined error.
func (s *ReaperService) runCleanup(ctx context.Context) error {
	start := time.Now()

	sweeps := []struct {
		operation string
		label     string
		fn        func(context.Context) (int64, error)
	}{
		{"fail_pending", "fail stale pending jobs", s.failStalePendingJobs},
		{"delete_succeeded", "delete old succeeded jobs", s.deleteOldSucceededJobs},
		{"delete_failed", "delete old failed jobs", s.deleteOldFailedJobs},
		{"delete_job_results", "delete old job results", s.deleteOldJobResults},
	}

	results := make([]sweepResult, 0, len(sweeps))
	var errs []error
	allCanceled := true
	for _, sweep := range sweeps {
		count, err := sweep.fn(ctx)
		results = append(results, sweepResult{
			operation: sweep.operation,
			count:     count,
			err:       suppressContextCancellation(err),
		})
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", sweep.label, err))
			allCanceled = allCanceled && isContextCancellation(err)
		}
	}

	s.emitCleanupMetrics(results, time.Since(start))

	if len(errs) > 0 {
		joined := errors.Join(errs...)
		if allCanceled && isContextCancellation(joined) {
			return context.Canceled
		}
		return fmt.Errorf("cleanup failed: %w", joined)
	}
	return nil
}

// drainBatches repeats fn until it reports zero rows, checking the context
// between batches so shutdown does not wait out a large backlog.
func drainBatches(ctx context.Context, fn func() (int64, error)) (int64, error) {
	var total int64
	for {
		count, err := fn()
		total += count
		if err != nil {
			return total, err
		}
		if count == 0 {
			return total, nil
		}
		if ctx.Err() != nil {
			return total, ctx.Err()
		}
	}
}

func (s *ReaperService) failStalePendingJobs(ctx context.Context) (int64, error) {
	total, err := drainBatches(ctx, func() (int64, error) {
		return s.repo.FailStalePendingJobs(ctx, s.config.PendingMaxAge, s.config.BatchSize)
	})
	if err != nil {
		return total, err
	}

	if total > 0 && s.logger != nil {
		s.logger.InfoContext(ctx, "failed stale pending jobs",
			"count", total, "max_age", s.config.PendingMaxAge)
	}
	return total, nil
}

func (s *ReaperService) deleteOldSucceededJobs(ctx context.Context) (int64, error) {
	return s.deleteTerminalJobs(ctx, model.JobStatusSucceeded, s.config.CompletedMaxAge, "deleted old succeeded jobs")
}

func (s *ReaperService) deleteOldFailedJobs(ctx context.Context) (int64, error) {
	return s.deleteTerminalJobs(ctx, model.JobStatusFailed, s.config.FailedMaxAge, "deleted old failed jobs")
}

func (s *ReaperService) deleteTerminalJobs(ctx context.Context, status model.JobStatus, maxAge time.Duration, logMsg string) (int64, error) {
	total, err := drainBatches(ctx, func() (int64, error) {
		return s.repo.DeleteOldJobs(ctx, core.DeleteOldJobsParams{
			Status:    status,
			MaxAge:    maxAge,
			BatchSize: s.config.BatchSize,
		})
	})
	if err != nil {
		return total, err
	}

	if total > 0 && s.logger != nil {
		s.logger.InfoContext(ctx, logMsg, "count", total, "max_age", maxAge)
	}
	return total, nil
}

// deleteOldJobResults prunes persisted extraction summaries for every job
// type that writes them.
func (s *ReaperService) deleteOldJobResults(ctx context.Context) (int64, error) {
	jobTypes := []model.JobType{
		model.JobTypeLinkPage,
		model.JobTypeDropPage,
		model.JobTypeVideoChannel,
	}

	var total int64
	for _, jobType := range jobTypes {
		typeCount, err := drainBatches(ctx, func() (int64, error) {
			return s.repo.DeleteOldJobResults(ctx, core.DeleteOldJobResultsParams{
				JobType:   jobType,
				MaxAge:    s.config.JobResultsMaxAge,
				BatchSize: s.config.BatchSize,
			})
		})
		total += typeCount
		if err != nil {
			return total, err
		}

		if typeCount > 0 && s.logger != nil {
			s.logger.InfoContext(ctx, "deleted old job results",
				"job_type", jobType, "count", typeCount, "max_age", s.config.JobResultsMaxAge)
		}
	}
	return total, nil
}

func (s *ReaperService) emitCleanupMetrics(results []sweepResult, elapsed time.Duration) {
	if s.metrics == nil {
		return
	}

	var total int64
	var firstErr error
	for _, r := range results {
		total += r.count
		if firstErr == nil {
			firstErr = r.err
		}
	}

	tags := map[string]string{"result": sweepOutcome(total, firstErr)}
	if firstErr != nil {
		if class := obserrors.Classify(firstErr); class != "" {
			tags["error_class"] = class
		}
	}

	s.metrics.Count("reaper.cleanup", 1, tags)
	if elapsed > 0 {
		s.metrics.Timing("reaper.cleanup_duration", elapsed, metrics.CloneTags(tags))
	}

	for _, r := range results {
		opTags := map[string]string{
			"operation": r.operation,
			"result":    sweepOutcome(r.count, r.err),
		}
		if r.err != nil {
			if class := obserrors.Classify(r.err); class != "" {
				opTags["error_class"] = class
			}
		}
		s.metrics.Count("reaper.cleanup_operation", 1, opTags)
		if r.err == nil && r.count > 0 {
			s.metrics.Count("reaper.jobs_processed", r.count, metrics.CloneTags(opTags))
		}
	}

	if firstErr == nil {
		s.metrics.Gauge("reaper.last_success_epoch", float64(time.Now().Unix()), nil)
	}
}

func sweepOutcome(count int64, err error) string {
	switch {
	case err != nil:
		return metrics.ResultError
	case count == 0:
		return metrics.ResultNoop
	default:
		return metrics.ResultSuccess
	}
}

func (s *ReaperService) logCleanupError(err error, label string) {
	if err == nil || s.logger == nil {
		return
	}
	if isContextCancellation(err) {
		s.logger.Debug(label+" cancelled by context", "error", err)
		return
	}
	s.logger.Error(label+" failed", "error", err)
}

func isContextCancellation(err error) bool {
	return err != nil && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded))
}

func suppressContextCancellation(err error) error {
	if isContextCancellation(err) {
		return nil
	}
	return err
}
