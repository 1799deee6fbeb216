package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/linkhound/ingest/internal/domain"
	"github.com/linkhound/ingest/internal/domain/model"
)

// ServiceMode represents the available service modes.
type ServiceMode string

const (
	// ServiceModeHTTP runs the admin HTTP server.
	ServiceModeHTTP ServiceMode = "http"
	// ServiceModeScheduler runs the re-ingestion scheduler.
	ServiceModeScheduler ServiceMode = "scheduler"
	// ServiceModeReaper runs the job reaper for cleanup.
	ServiceModeReaper ServiceMode = "reaper"
	// ServiceModeIngestRunner runs the ingestion job runners.
	ServiceModeIngestRunner ServiceMode = "ingest-runner"
)

// ValidServiceModes returns all valid service mode names.
func ValidServiceModes() []ServiceMode {
	return []ServiceMode{
		ServiceModeHTTP,
		ServiceModeScheduler,
		ServiceModeReaper,
		ServiceModeIngestRunner,
	}
}

func serviceModeList() string {
	modes := ValidServiceModes()
	names := make([]string, len(modes))
	for i, mode := range modes {
		names[i] = string(mode)
	}
	return strings.Join(names, ", ")
}

// ParseServices parses a comma-delimited list of service names into the set
// of enabled modes. Unknown names are an error rather than being ignored so a
// typo cannot silently disable a service.
func ParseServices(servicesStr string) (map[ServiceMode]bool, error) {
	if strings.TrimSpace(servicesStr) == "" {
		return nil, errors.New("at least one service must be specified")
	}

	valid := make(map[ServiceMode]bool, len(ValidServiceModes()))
	for _, mode := range ValidServiceModes() {
		valid[mode] = true
	}

	enabled := make(map[ServiceMode]bool)
	for _, part := range strings.Split(servicesStr, ",") {
		name := strings.TrimSpace(part)
		if name == "" {
			continue
		}
		mode := ServiceMode(name)
		if !valid[mode] {
			return nil, fmt.Errorf("invalid service name: %q (valid options: %s)", name, serviceModeList())
		}
		enabled[mode] = true
	}

	if len(enabled) == 0 {
		return nil, errors.New("at least one valid service must be specified")
	}
	return enabled, nil
}

// SchedulerConfig contains scheduler service configuration.
type SchedulerConfig struct {
	// BatchSize caps how many due tasks one tick enqueues.
	BatchSize int `env:"SCHEDULER_BATCH_SIZE" envDefault:"25"`

	// DefaultJobType is the job type used when a task's source platform
	// does not map to a specific strategy.
	DefaultJobType model.JobType `env:"SCHEDULER_DEFAULT_JOB_TYPE" envDefault:"linkpage"`

	// DefaultPriority is the priority assigned to scheduled jobs.
	DefaultPriority int `env:"SCHEDULER_DEFAULT_PRIORITY" envDefault:"0"`

	// MaxRetries is the attempt budget given to scheduled jobs.
	MaxRetries int `env:"SCHEDULER_MAX_RETRIES" envDefault:"3"`

	// OverrunPolicy determines what happens when a task comes due while its
	// previous run is still in flight. Valid values: skip, queue, reschedule.
	OverrunPolicy domain.OverrunPolicy `env:"SCHEDULER_OVERRUN" envDefault:"skip"`

	// OverrunStates defines which job states block new enqueue attempts when
	// OverrunPolicy=skip. Comma-separated: running, pending, retrying.
	OverrunStates domain.OverrunStateMask `env:"SCHEDULER_OVERRUN_STATES" envDefault:"running"`

	// Interval is the scheduler tick interval.
	Interval time.Duration `env:"SCHEDULER_INTERVAL" envDefault:"1s"`
}

// Sanitize applies guardrails to scheduler configuration values.
func (s *SchedulerConfig) Sanitize() {
	s.BatchSize = max(s.BatchSize, 1)
	if s.OverrunStates == 0 {
		s.OverrunStates = domain.OverrunStatesDefault
	}
}

// QueueConfig contains retry backoff configuration for the job queue.
type QueueConfig struct {
	// BackoffBase is the delay before the first retry.
	BackoffBase time.Duration `env:"QUEUE_BACKOFF_BASE" envDefault:"30s"`

	// BackoffCap bounds the exponential delay growth.
	BackoffCap time.Duration `env:"QUEUE_BACKOFF_CAP" envDefault:"1h"`

	// BackoffJitter is the width of the random window added to each delay.
	BackoffJitter time.Duration `env:"QUEUE_BACKOFF_JITTER" envDefault:"10s"`
}

// Sanitize applies guardrails to queue configuration values.
func (q *QueueConfig) Sanitize() {
	q.BackoffBase = max(q.BackoffBase, time.Second)
	q.BackoffCap = max(q.BackoffCap, q.BackoffBase)
	q.BackoffJitter = max(q.BackoffJitter, 0)
}

// IngestRunnerConfig contains ingestion runner service configuration.
// One runner instance is started per job type; they share these settings.
type IngestRunnerConfig struct {
	// Concurrency is the number of worker goroutines per job type.
	Concurrency int `env:"INGEST_RUNNER_CONCURRENCY" envDefault:"2"`

	// JobLease is the duration to lease an ingestion job.
	JobLease time.Duration `env:"INGEST_RUNNER_JOB_LEASE" envDefault:"30s"`

	// HeartbeatInterval is how often a worker extends the lease on a
	// long-running job. Zero disables heartbeating.
	HeartbeatInterval time.Duration `env:"INGEST_RUNNER_HEARTBEAT_INTERVAL" envDefault:"10s"`
}

// Sanitize applies guardrails to ingest runner configuration values.
func (c *IngestRunnerConfig) Sanitize() {
	c.Concurrency = max(c.Concurrency, 1)
	c.JobLease = max(c.JobLease, 5*time.Second)
	c.HeartbeatInterval = max(c.HeartbeatInterval, 0)
	if c.HeartbeatInterval >= c.JobLease {
		// A heartbeat slower than the lease cannot keep the job alive.
		c.HeartbeatInterval = c.JobLease / 2
	}
}

// ReaperConfig contains job reaper service configuration.
type ReaperConfig struct {
	// Interval is the reaper tick interval.
	Interval time.Duration `env:"REAPER_INTERVAL" envDefault:"5m"`

	// PendingMaxAge is how long a job may sit unclaimed before the reaper
	// fails it as timed out.
	PendingMaxAge time.Duration `env:"REAPER_PENDING_MAX_AGE" envDefault:"1h"`

	// CompletedMaxAge is the retention window for succeeded jobs.
	CompletedMaxAge time.Duration `env:"REAPER_COMPLETED_MAX_AGE" envDefault:"168h"` // 7 days

	// FailedMaxAge is the retention window for failed jobs.
	FailedMaxAge time.Duration `env:"REAPER_FAILED_MAX_AGE" envDefault:"168h"` // 7 days

	// JobResultsMaxAge is the retention window for persisted job_results
	// rows. These keep run history after their jobs are reaped, so they
	// outlive the job retention windows.
	JobResultsMaxAge time.Duration `env:"REAPER_JOB_RESULTS_MAX_AGE" envDefault:"2160h"` // 90 days

	// BatchSize is the maximum number of rows to process per operation.
	// Batching prevents long locks and I/O spikes on large tables.
	BatchSize int `env:"REAPER_BATCH_SIZE" envDefault:"1000"`
}

// Sanitize applies guardrails to reaper configuration values. The floors
// keep a misconfigured reaper from hammering the database.
func (r *ReaperConfig) Sanitize() {
	r.Interval = max(r.Interval, time.Minute)
	r.PendingMaxAge = max(r.PendingMaxAge, 5*time.Minute)
	r.CompletedMaxAge = max(r.CompletedMaxAge, time.Hour)
	r.FailedMaxAge = max(r.FailedMaxAge, time.Hour)
	r.JobResultsMaxAge = max(r.JobResultsMaxAge, 24*time.Hour)
	r.BatchSize = min(max(r.BatchSize, 1), 10000)
}
