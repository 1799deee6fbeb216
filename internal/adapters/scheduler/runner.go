// Package scheduler runs the re-ingestion scheduler as a ticker loop over
// the scheduler service.
package scheduler

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"time"

	"github.com/linkhound/ingest/internal/core"
	"github.com/linkhound/ingest/internal/data"
	obserrors "github.com/linkhound/ingest/internal/observability/errors"
	"github.com/linkhound/ingest/internal/observability/metrics"
	"github.com/linkhound/ingest/internal/observability/statsd"
	"github.com/linkhound/ingest/internal/service"
)

const defaultTickInterval = time.Second

// Runner drives core.JobScheduler.Tick at a fixed interval.
type Runner struct {
	scheduler core.JobScheduler
	interval  time.Duration
	logger    *slog.Logger
	metrics   statsd.Sink
}

// RunnerOptions holds the dependencies for creating a Runner.
type RunnerOptions struct {
	DB       *sql.DB
	Config   *core.SchedulerConfig
	Interval time.Duration
	Logger   *slog.Logger
	Metrics  statsd.Sink

	// Test seams; nil fields fall back to database-backed repositories.
	Jobs            core.JobRepository
	Scheduled       core.ScheduledJobsRepository
	JobIntrospector core.JobIntrospector
}

// NewRunner builds the scheduler service and its runner from opts.
func NewRunner(opts RunnerOptions) (*Runner, error) {
	if opts.DB == nil && (opts.Jobs == nil || opts.Scheduled == nil) {
		return nil, errors.New("database connection is required")
	}
	if opts.Interval <= 0 {
		opts.Interval = defaultTickInterval
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	jobs := opts.Jobs
	if jobs == nil {
		jobs = data.NewJobRepo(opts.DB, data.RepoConfig{Logger: opts.Logger})
	}
	scheduled := opts.Scheduled
	if scheduled == nil {
		scheduled = data.NewScheduledJobsRepo(opts.DB)
	}
	introspector := opts.JobIntrospector
	if introspector == nil {
		// The production job repository doubles as the introspector used
		// for overrun checks.
		introspector, _ = jobs.(core.JobIntrospector)
	}
	if introspector == nil {
		if opts.DB == nil {
			return nil, errors.New("job introspector is required")
		}
		introspector = data.NewJobRepo(opts.DB, data.RepoConfig{Logger: opts.Logger})
	}

	return &Runner{
		scheduler: service.NewSchedulerService(service.SchedulerServiceOptions{
			Repo:            scheduled,
			Jobs:            jobs,
			JobIntrospector: introspector,
			Config:          opts.Config,
			Logger:          opts.Logger,
		}),
		interval: opts.Interval,
		logger:   opts.Logger,
		metrics:  opts.Metrics,
	}, nil
}

// Run ticks the scheduler until the context ends. Context cancellation is a
// clean stop, not an error.
func (r *Runner) Run(ctx context.Context) error {
	r.logger.InfoContext(ctx, "starting scheduler runner", "interval", r.interval)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.InfoContext(ctx, "scheduler runner stopping", "reason", ctx.Err())
			if errors.Is(ctx.Err(), context.Canceled) {
				return nil
			}
			return ctx.Err()

		case now := <-ticker.C:
			r.tick(ctx, now)
		}
	}
}

func (r *Runner) tick(ctx context.Context, now time.Time) {
	start := time.Now()
	processed, err := r.scheduler.Tick(ctx, now)
	r.observeTick(processed, time.Since(start), err)

	switch {
	case err != nil:
		// Keep ticking; transient database errors clear on a later tick.
		r.logger.ErrorContext(ctx, "scheduler tick failed", "error", err)
	case processed > 0:
		r.logger.InfoContext(ctx, "scheduler enqueued due tasks", "count", processed)
	}
}

func (r *Runner) observeTick(processed int, elapsed time.Duration, err error) {
	if r.metrics == nil {
		return
	}

	tags := map[string]string{"result": tickResult(processed, err)}
	if err != nil {
		if class := obserrors.Classify(err); class != "" {
			tags["error_class"] = class
		}
	}

	r.metrics.Count("scheduler.tick", 1, tags)
	if processed > 0 {
		r.metrics.Count("scheduler.tasks_enqueued", int64(processed), tags)
	}
	if elapsed > 0 {
		r.metrics.Timing("scheduler.tick_duration", elapsed, metrics.CloneTags(tags))
	}
	if err == nil {
		r.metrics.Gauge("scheduler.last_success_epoch", float64(time.Now().Unix()), nil)
	}
}

func tickResult(processed int, err error) string {
	switch {
	case err != nil:
		return metrics.ResultError
	case processed == 0:
		return metrics.ResultNoop
	default:
		return metrics.ResultSuccess
	}
}
