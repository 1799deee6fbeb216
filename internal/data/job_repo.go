package data

import (
	"database/sql"
	"errors"
	"log/slog"

	domainjob "github.com/linkhound/ingest/internal/domain/job"
)

var (
	// ErrJobNotFound is returned when a job is not found.
	ErrJobNotFound = errors.New("job not found")
	// ErrJobNotDeletable is returned when attempting to delete a job that is not in a deletable state.
	ErrJobNotDeletable = errors.New("job cannot be deleted (must be in pending, succeeded, or failed status)")
	// ErrJobClaimed is returned when attempting to delete a job that has an active lease.
	ErrJobClaimed = errors.New("job is claimed and cannot be deleted")
)

// RepoConfig holds configuration options for the job repository.
type RepoConfig struct {
	// Backoff computes retry delays. Nil falls back to a 30s/1h/10s policy.
	Backoff      *domainjob.BackoffPolicy
	Logger       *slog.Logger
	TimeProvider TimeProvider
}

// JobRepo provides database operations for the ingestion job queue.
type JobRepo struct {
	DB           *sql.DB
	cfg          RepoConfig
	backoff      *domainjob.BackoffPolicy
	timeProvider TimeProvider
	logger       *slog.Logger
}

// NewJobRepo creates a new JobRepo instance with the given database connection and configuration.
func NewJobRepo(db *sql.DB, cfg RepoConfig) *JobRepo {
	tp := cfg.TimeProvider
	if tp == nil {
		tp = &RealTimeProvider{}
	}
	backoff := cfg.Backoff
	if backoff == nil {
		backoff = domainjob.MustNewBackoffPolicy(domainjob.DefaultBackoffOptions())
	}

	return &JobRepo{
		DB:           db,
		cfg:          cfg,
		backoff:      backoff,
		timeProvider: tp,
		logger:       cfg.Logger,
	}
}

const jobColumns = `
  id,
  type,
  status,
  priority,
  payload,
  metadata,
  dedup_key,
  creator_profile_id,
  attempts,
  max_attempts,
  run_at,
  started_at,
  completed_at,
  last_error,
  error_class,
  claimed_by,
  lease_expires_at,
  created_at,
  updated_at
`
