package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/linkhound/ingest/config"
	"github.com/linkhound/ingest/internal/core"
	"github.com/linkhound/ingest/internal/data"
	domainjob "github.com/linkhound/ingest/internal/domain/job"
	"github.com/linkhound/ingest/internal/observability/notify"
	"github.com/linkhound/ingest/internal/observability/notify/pagerduty"
	"github.com/linkhound/ingest/internal/observability/notify/slack"
	"github.com/linkhound/ingest/internal/observability/statsd"
	"github.com/linkhound/ingest/internal/service"
	"github.com/linkhound/ingest/internal/service/failurenotifier"
)

// shutdownWaitTimeout bounds how long shutdown waits on each service.
const shutdownWaitTimeout = 15 * time.Second

// ServiceContainer holds the wired application services shared by the HTTP
// API and the background runners.
type ServiceContainer struct {
	Jobs      *service.JobService
	Profiles  *service.ProfileService
	Links     *service.LinkService
	Schedules *service.ScheduleService
	Cache     core.CacheRepository

	Metrics         *statsd.Client
	FailureNotifier *failurenotifier.Service
}

// ServiceDeps groups dependencies for service initialization.
type ServiceDeps struct {
	Config      *config.AppConfig
	DB          *sql.DB
	RedisClient redis.UniversalClient
	Logger      *slog.Logger
}

// NewServices builds the service container from config and shared connections.
// Wiring only; all business rules live in the service layer.
func NewServices(deps *ServiceDeps) ServiceContainer {
	if deps == nil {
		return ServiceContainer{}
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	var appCfg config.AppConfig
	if deps.Config != nil {
		appCfg = *deps.Config
	}

	jobRepo := data.NewJobRepo(deps.DB, jobRepoConfig(deps.Config, logger))
	profileRepo := data.NewProfileRepo(deps.DB)

	notifier := newFailureNotifier(logger, appCfg.Observability.Notifications)

	lease := 30 * time.Second
	if appCfg.IngestRunner.JobLease > 0 {
		lease = appCfg.IngestRunner.JobLease
	}
	jobs := service.MustNewJobService(service.JobServiceOptions{
		Repo:            jobRepo,
		DefaultLease:    lease,
		FailureNotifier: notifier,
	})

	profiles, err := service.NewProfileService(service.ProfileServiceOptions{
		Profiles: profileRepo,
		Jobs:     jobRepo,
		Logger:   logger,
	})
	if err != nil {
		// Constructors only fail on nil repositories, which is a wiring bug.
		panic(fmt.Sprintf("build profile service: %v", err))
	}

	links, err := service.NewLinkService(service.LinkServiceOptions{
		Links: data.NewLinkRepo(deps.DB),
	})
	if err != nil {
		panic(fmt.Sprintf("build link service: %v", err))
	}

	container := ServiceContainer{
		Jobs:     jobs,
		Profiles: profiles,
		Links:    links,
		Schedules: service.NewScheduleService(service.ScheduleServiceOptions{
			Profiles: profileRepo,
			Admin:    data.NewScheduledJobsAdminRepo(deps.DB),
		}),
		Metrics:         newMetricsSink(logger, appCfg.Observability.Metrics),
		FailureNotifier: notifier,
	}
	if deps.RedisClient != nil {
		container.Cache = data.NewRedisCacheRepo(deps.RedisClient)
	}
	return container
}

// jobRepoConfig translates queue config into repository retry behavior. An
// invalid backoff config falls back to the repository defaults rather than
// refusing to start.
func jobRepoConfig(cfg *config.AppConfig, logger *slog.Logger) data.RepoConfig {
	repoCfg := data.RepoConfig{Logger: logger}
	if cfg == nil {
		return repoCfg
	}
	policy, err := domainjob.NewBackoffPolicy(domainjob.BackoffOptions{
		Base:   cfg.Queue.BackoffBase,
		Cap:    cfg.Queue.BackoffCap,
		Jitter: cfg.Queue.BackoffJitter,
	})
	if err != nil {
		logger.Warn("invalid queue backoff config, using defaults", "error", err)
		return repoCfg
	}
	repoCfg.Backoff = policy
	return repoCfg
}

func newMetricsSink(logger *slog.Logger, cfg config.ObservabilityMetricsConfig) *statsd.Client {
	if !cfg.IsEnabled() {
		return nil
	}
	client, err := statsd.NewClient(statsd.Config{
		Enabled: true,
		Address: cfg.StatsdAddress,
		Prefix:  "linkhound",
		Logger:  logger,
	})
	if err != nil {
		logger.Error("statsd client unavailable, metrics disabled", "error", err)
		return nil
	}
	return client
}

// newFailureNotifier always returns a service; with no sinks configured it
// degrades to logging failures.
func newFailureNotifier(logger *slog.Logger, cfg config.ObservabilityNotificationsConfig) *failurenotifier.Service {
	var sinks []failurenotifier.SinkRegistration
	register := func(name string, sink notify.Sink, err error) {
		if err != nil {
			logger.Error("failure notifier sink unavailable", "sink", name, "error", err)
			return
		}
		sinks = append(sinks, failurenotifier.SinkRegistration{Name: name, Sink: sink})
	}

	if cfg.Enabled {
		if cfg.Slack.Enabled {
			client, err := slack.NewClient(slack.Config{
				WebhookURL:       cfg.Slack.WebhookURL,
				Channel:          cfg.Slack.Channel,
				Username:         cfg.Slack.Username,
				Timeout:          cfg.Timeout,
				RetryLimit:       cfg.RetryLimit,
				ProfileURLPrefix: cfg.Slack.SiteURLPrefix,
			})
			register("slack", client, err)
		}
		if cfg.PagerDuty.Enabled {
			client, err := pagerduty.NewClient(pagerduty.Config{
				RoutingKey: cfg.PagerDuty.RoutingKey,
				Source:     cfg.PagerDuty.Source,
				Component:  cfg.PagerDuty.Component,
				Timeout:    cfg.Timeout,
				RetryLimit: cfg.RetryLimit,
			})
			register("pagerduty", client, err)
		}
	}

	return failurenotifier.NewService(failurenotifier.Options{
		Logger: logger.With("component", "failure_notifier"),
		Sinks:  sinks,
	})
}

// ServiceOrchestrationConfig contains configuration for service orchestration.
type ServiceOrchestrationConfig struct {
	Config   *config.AppConfig
	Services ServiceContainer
	DB       *sql.DB
	Logger   *slog.Logger
}

// runningService tracks a background component for coordinated shutdown.
type runningService struct {
	name string
	done <-chan struct{}
}

// runtime owns the lifecycle of every enabled service mode in this process.
type runtime struct {
	cfg        *ServiceOrchestrationConfig
	logger     *slog.Logger
	errCh      chan error
	httpServer *http.Server
	background []runningService
}

// RunServicesWithShutdown starts all enabled services and blocks until a
// shutdown signal arrives or one of them fails.
func RunServicesWithShutdown(cfg *ServiceOrchestrationConfig) error {
	if cfg == nil {
		return errors.New("service orchestration config is required")
	}
	if cfg.Config == nil {
		return errors.New("service orchestration config missing AppConfig")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	enabled, err := cfg.Config.GetEnabledServices()
	if err != nil {
		return fmt.Errorf("determine enabled services: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rt := &runtime{
		cfg:    cfg,
		logger: logger,
		errCh:  make(chan error, errorBufferSize(enabled)),
	}
	rt.start(ctx, enabled)
	return rt.wait(cancel)
}

// errorBufferSize sizes the error channel so every enabled service can report
// one failure without blocking, plus slack for a late report during shutdown.
func errorBufferSize(enabled map[config.ServiceMode]bool) int {
	size := 1
	for _, on := range enabled {
		if on {
			size++
		}
	}
	return size
}

func (rt *runtime) start(ctx context.Context, enabled map[config.ServiceMode]bool) {
	if enabled[config.ServiceModeHTTP] {
		rt.httpServer = startHTTPServer(rt.cfg.Config, rt.cfg.Services, rt.logger)
	}
	if enabled[config.ServiceModeIngestRunner] {
		rt.spawn(ctx, "ingest runner", rt.runIngestRunners)
	}
	if enabled[config.ServiceModeScheduler] {
		rt.spawn(ctx, "scheduler", rt.runScheduler)
	}
	if enabled[config.ServiceModeReaper] {
		rt.spawn(ctx, "reaper", rt.runReaper)
	}
}

// spawn launches run in a goroutine and records its completion channel so
// shutdown can wait for it.
func (rt *runtime) spawn(ctx context.Context, name string, run func(context.Context) error) {
	done := make(chan struct{})
	go func() {
		defer close(done)
		err := run(ctx)
		if err == nil {
			return
		}
		select {
		case rt.errCh <- fmt.Errorf("%s failed: %w", name, err):
		case <-ctx.Done():
		default:
			// Buffer sizing makes this unreachable unless a service fails
			// more than once; keep the evidence either way.
			rt.logger.WarnContext(ctx, "dropping background service error", "service", name, "error", err)
		}
	}()

	rt.logger.InfoContext(ctx, "background service started", "service", name)
	rt.background = append(rt.background, runningService{name: name, done: done})
}

func (rt *runtime) runIngestRunners(ctx context.Context) error {
	appCfg := rt.cfg.Config
	return RunIngestRunners(ctx, IngestRunnersConfig{
		DB:              rt.cfg.DB,
		Logger:          rt.logger,
		Cache:           rt.cfg.Services.Cache,
		Metrics:         rt.cfg.Services.Metrics,
		FailureNotifier: rt.cfg.Services.FailureNotifier,
		Lease:           appCfg.IngestRunner.JobLease,
		Heartbeat:       appCfg.IngestRunner.HeartbeatInterval,
		Concurrency:     appCfg.IngestRunner.Concurrency,
		Strategy:        appCfg.Strategy,
		Scoring:         appCfg.Scoring,
		PageCacheTTL:    appCfg.Cache.PageTTL,
		RecentTargetTTL: appCfg.Cache.CrawlSeenTTL,
	})
}

func (rt *runtime) runScheduler(ctx context.Context) error {
	schedulerCfg := rt.cfg.Config.Scheduler
	return RunScheduler(ctx, SchedulerConfig{
		DB:              rt.cfg.DB,
		Logger:          rt.logger,
		BatchSize:       schedulerCfg.BatchSize,
		DefaultJobType:  schedulerCfg.DefaultJobType,
		DefaultPriority: schedulerCfg.DefaultPriority,
		MaxRetries:      schedulerCfg.MaxRetries,
		OverrunPolicy:   schedulerCfg.OverrunPolicy,
		OverrunStates:   schedulerCfg.OverrunStates,
		Interval:        schedulerCfg.Interval,
		Metrics:         rt.cfg.Services.Metrics,
	})
}

func (rt *runtime) runReaper(ctx context.Context) error {
	return RunReaper(ctx, ReaperConfig{
		DB:      rt.cfg.DB,
		Logger:  rt.logger,
		Config:  rt.cfg.Config.Reaper,
		Metrics: rt.cfg.Services.Metrics,
	})
}

// wait blocks until a termination signal or the first service error, then
// stops everything. A service error is returned even when shutdown succeeds.
func (rt *runtime) wait(cancel context.CancelFunc) error {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case sig := <-quit:
		rt.logger.Info("shutdown signal received", "signal", sig.String())
		cancel()
		return rt.stop()
	case err := <-rt.errCh:
		rt.logger.Error("service error", "error", err)
		cancel()
		if stopErr := rt.stop(); stopErr != nil {
			rt.logger.Error("graceful stop failed", "error", stopErr)
		}
		return err
	}
}

// stop drains the HTTP server first so no new work arrives while the
// background services finish their current batches.
func (rt *runtime) stop() error {
	if rt.httpServer != nil {
		// The service context is already canceled; give the drain its own
		// deadline.
		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), shutdownWaitTimeout)
		defer cancelShutdown()

		if err := stopHTTPServer(shutdownCtx, rt.httpServer, rt.cfg.Services.Jobs, rt.logger); err != nil {
			return err
		}
	}

	for _, svc := range rt.background {
		select {
		case <-svc.done:
			rt.logger.Info(svc.name + " stopped")
		case <-time.After(shutdownWaitTimeout):
			rt.logger.Warn("timeout waiting for " + svc.name + " to stop")
		}
	}
	return nil
}
