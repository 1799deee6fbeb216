package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
	"github.com/linkhound/ingest/config"
	"github.com/linkhound/ingest/internal/adapters/ingestrunner"
	"github.com/linkhound/ingest/internal/adapters/reaper"
	schedrunner "github.com/linkhound/ingest/internal/adapters/scheduler"
	"github.com/linkhound/ingest/internal/core"
	"github.com/linkhound/ingest/internal/domain"
	"github.com/linkhound/ingest/internal/domain/model"
	"github.com/linkhound/ingest/internal/domain/scoring"
	"github.com/linkhound/ingest/internal/observability/statsd"
	"github.com/linkhound/ingest/internal/service/failurenotifier"
	"github.com/linkhound/ingest/internal/strategy"
)

// ingestJobTypes are the job types the ingest runner service processes.
// One runner instance is started per type so a flood of one strategy's jobs
// cannot starve the others.
var ingestJobTypes = []model.JobType{
	model.JobTypeLinkPage,
	model.JobTypeDropPage,
	model.JobTypeVideoChannel,
}

// IngestRunnersConfig contains configuration for the ingestion runners.
type IngestRunnersConfig struct {
	DB              *sql.DB
	Logger          *slog.Logger
	Lease           time.Duration
	Heartbeat       time.Duration
	Concurrency     int
	Strategy        strategy.ClientConfig
	Scoring         scoring.Config
	Cache           core.CacheRepository
	PageCacheTTL    time.Duration
	RecentTargetTTL time.Duration
	Metrics         statsd.Sink
	FailureNotifier *failurenotifier.Service
}

// RunIngestRunners starts one ingestion runner per job type and blocks until
// all of them stop. The first runner error cancels the rest.
func RunIngestRunners(ctx context.Context, cfg IngestRunnersConfig) error {
	g, gctx := errgroup.WithContext(ctx)

	for _, jobType := range ingestJobTypes {
		runner, err := ingestrunner.NewRunner(ingestrunner.RunnerOptions{
			DB:              cfg.DB,
			Logger:          cfg.Logger,
			Lease:           cfg.Lease,
			Heartbeat:       cfg.Heartbeat,
			Concurrency:     cfg.Concurrency,
			JobType:         jobType,
			Strategy:        cfg.Strategy,
			Scoring:         cfg.Scoring,
			Cache:           cfg.Cache,
			PageCacheTTL:    cfg.PageCacheTTL,
			RecentTargetTTL: cfg.RecentTargetTTL,
			Metrics:         cfg.Metrics,
			FailureNotifier: cfg.FailureNotifier,
		})
		if err != nil {
			return fmt.Errorf("create %s runner: %w", runnerLabel(jobType), err)
		}

		label := runnerLabel(jobType)
		g.Go(func() error {
			if runErr := runner.Run(gctx); runErr != nil {
				return fmt.Errorf("run %s runner: %w", label, runErr)
			}
			return nil
		})
	}

	return g.Wait()
}

func runnerLabel(jobType model.JobType) string {
	switch jobType {
	case model.JobTypeLinkPage:
		return "link page"
	case model.JobTypeDropPage:
		return "drop page"
	case model.JobTypeVideoChannel:
		return "video channel"
	}

	if jobType == "" {
		return "ingest"
	}
	return strings.ToLower(strings.ReplaceAll(string(jobType), "_", " "))
}

// SchedulerConfig contains configuration for the re-ingestion scheduler.
type SchedulerConfig struct {
	DB              *sql.DB
	Logger          *slog.Logger
	BatchSize       int
	DefaultJobType  model.JobType
	DefaultPriority int
	MaxRetries      int
	OverrunPolicy   domain.OverrunPolicy
	OverrunStates   domain.OverrunStateMask
	Interval        time.Duration
	Metrics         statsd.Sink
}

// RunScheduler starts the scheduler service.
func RunScheduler(ctx context.Context, cfg SchedulerConfig) error {
	schedulerCfg := core.SchedulerConfig{
		BatchSize:       cfg.BatchSize,
		DefaultJobType:  cfg.DefaultJobType,
		DefaultPriority: cfg.DefaultPriority,
		MaxRetries:      cfg.MaxRetries,
		Strategy: domain.StrategyOptions{
			Overrun:       cfg.OverrunPolicy,
			OverrunStates: cfg.OverrunStates,
		},
	}

	runner, err := schedrunner.NewRunner(schedrunner.RunnerOptions{
		DB:       cfg.DB,
		Config:   &schedulerCfg,
		Interval: cfg.Interval,
		Logger:   cfg.Logger,
		Metrics:  cfg.Metrics,
	})
	if err != nil {
		return fmt.Errorf("create scheduler runner: %w", err)
	}

	return runner.Run(ctx)
}

// ReaperConfig contains configuration for reaper.
type ReaperConfig struct {
	DB      *sql.DB
	Logger  *slog.Logger
	Config  config.ReaperConfig
	Metrics statsd.Sink
}

// RunReaper starts the reaper service.
func RunReaper(ctx context.Context, cfg ReaperConfig) error {
	runner, err := reaper.NewRunner(reaper.RunnerOptions{
		DB:      cfg.DB,
		Config:  cfg.Config,
		Logger:  cfg.Logger,
		Metrics: cfg.Metrics,
	})
	if err != nil {
		return fmt.Errorf("create reaper runner: %w", err)
	}

	return runner.Run(ctx)
}

