package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/linkhound/ingest/internal/core"
	"github.com/linkhound/ingest/internal/domain/model"
	"github.com/linkhound/ingest/internal/domain/platform"
)

// ProfileServiceOptions groups dependencies for ProfileService.
type ProfileServiceOptions struct {
	Profiles core.ProfileRepository // Required: creator profile repository
	Jobs     core.JobRepository     // Required: job queue for ingestion enqueues
	Logger   *slog.Logger           // Optional: structured logger
}

// ProfileService provides creator profile CRUD plus the admin-facing
// ingestion triggers: enqueue a top-level job for a source URL, and rerun a
// profile after a failure. Reruns reuse the same dedup key scheme as first
// runs, so repeating one is a no-op while the original job is still live.
type ProfileService struct {
	profiles core.ProfileRepository
	jobs     core.JobRepository
	log      *slog.Logger
}

// NewProfileService constructs a new ProfileService.
func NewProfileService(opts ProfileServiceOptions) (*ProfileService, error) {
	if opts.Profiles == nil {
		return nil, errors.New("profile repository is required")
	}
	if opts.Jobs == nil {
		return nil, errors.New("job repository is required")
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	return &ProfileService{profiles: opts.Profiles, jobs: opts.Jobs, log: log}, nil
}

// Create creates a creator profile.
func (s *ProfileService) Create(ctx context.Context, req *model.CreateCreatorProfileRequest) (*model.CreatorProfile, error) {
	return s.profiles.Create(ctx, req)
}

// GetByID returns a profile by id.
func (s *ProfileService) GetByID(ctx context.Context, id string) (*model.CreatorProfile, error) {
	return s.profiles.GetByID(ctx, id)
}

// GetByHandle returns a profile by its handle.
func (s *ProfileService) GetByHandle(ctx context.Context, handle string) (*model.CreatorProfile, error) {
	return s.profiles.GetByHandle(ctx, handle)
}

// List returns profiles with pagination.
func (s *ProfileService) List(ctx context.Context, limit, offset int) ([]*model.CreatorProfile, error) {
	limit, offset = normalizePagination(limit, offset)
	return s.profiles.List(ctx, limit, offset)
}

// Update updates a profile.
func (s *ProfileService) Update(ctx context.Context, id string, req model.UpdateCreatorProfileRequest) (*model.CreatorProfile, error) {
	if id == "" {
		return nil, errors.New("profile id is required")
	}
	return s.profiles.Update(ctx, id, req)
}

// Delete deletes a profile by id.
func (s *ProfileService) Delete(ctx context.Context, id string) (bool, error) {
	if id == "" {
		return false, errors.New("profile id is required")
	}
	return s.profiles.Delete(ctx, id)
}

// EnqueueIngestionParams describes one requested top-level ingestion run.
type EnqueueIngestionParams struct {
	ProfileID string
	SourceURL string
	Priority  int
}

// EnqueueIngestion enqueues a depth-0 ingestion job for a profile and source
// URL. The source must detect as a crawlable platform; detection-only
// platforms have no strategy to run. Enqueueing is idempotent over the
// (type, profile, canonical url) dedup key.
func (s *ProfileService) EnqueueIngestion(ctx context.Context, params EnqueueIngestionParams) (*model.Job, error) {
	if params.ProfileID == "" {
		return nil, errors.New("profile id is required")
	}

	profile, err := s.profiles.GetByID(ctx, params.ProfileID)
	if err != nil {
		return nil, fmt.Errorf("load profile %s: %w", params.ProfileID, err)
	}

	identity, err := platform.Detect(params.SourceURL)
	if err != nil {
		return nil, fmt.Errorf("source url %q: %w", params.SourceURL, err)
	}
	kind, eligible := strategyKindFor(identity.Platform)
	if !eligible {
		return nil, fmt.Errorf("source url %q is not on a crawlable platform", params.SourceURL)
	}

	job, err := s.jobs.Create(ctx, &model.CreateJobRequest{
		Type: kind,
		Payload: model.JobPayload{
			SourceURL:        identity.CanonicalURL,
			CreatorProfileID: profile.ID,
			Depth:            0,
		},
		Priority: params.Priority,
	})
	if err != nil {
		return nil, fmt.Errorf("enqueue ingestion job: %w", err)
	}
	return job, nil
}

// Rerun clears a profile's failure state and enqueues a fresh ingestion run.
// The dedup key scheme makes reruns idempotent: while an equivalent job is
// still live the existing job is returned instead of a duplicate.
func (s *ProfileService) Rerun(ctx context.Context, params EnqueueIngestionParams) (*model.Job, error) {
	if params.ProfileID == "" {
		return nil, errors.New("profile id is required")
	}

	if err := s.profiles.ReleaseIngestion(ctx, core.ReleaseIngestionParams{
		ProfileID: params.ProfileID,
		Status:    model.IngestionStatusIdle,
	}); err != nil {
		return nil, fmt.Errorf("reset ingestion status: %w", err)
	}

	return s.EnqueueIngestion(ctx, params)
}
