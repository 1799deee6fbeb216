package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/linkhound/ingest/internal/core"
	"github.com/linkhound/ingest/internal/domain"
	"github.com/linkhound/ingest/internal/domain/model"
	"github.com/linkhound/ingest/internal/domain/platform"
)

// minReingestInterval is the floor for recurring re-ingestion intervals.
const minReingestInterval = time.Minute

// ScheduleServiceOptions groups dependencies for ScheduleService.
type ScheduleServiceOptions struct {
	Profiles core.ProfileRepository
	Admin    core.ScheduledJobsAdminRepository
}

// ScheduleService reconciles per-profile re-ingestion tasks with the scheduler.
type ScheduleService struct {
	profiles core.ProfileRepository
	adm      core.ScheduledJobsAdminRepository
}

// NewScheduleService constructs a new ScheduleService.
func NewScheduleService(opts ScheduleServiceOptions) *ScheduleService {
	return &ScheduleService{profiles: opts.Profiles, adm: opts.Admin}
}

// SetReingestParams holds parameters for SetReingest.
type SetReingestParams struct {
	ProfileID string
	SourceURL string
	Interval  time.Duration
}

// SetReingest creates or updates the recurring re-ingestion task for a profile.
// The source URL must be on a crawlable platform; it is canonicalized before
// being stored in the task payload so repeated fires dedup against each other.
func (s *ScheduleService) SetReingest(ctx context.Context, p SetReingestParams) error {
	profile, err := s.profiles.GetByID(ctx, p.ProfileID)
	if err != nil {
		return fmt.Errorf("load profile %s: %w", p.ProfileID, err)
	}

	identity, err := platform.Detect(p.SourceURL)
	if err != nil {
		return fmt.Errorf("detect source platform: %w", err)
	}
	if _, ok := strategyKindFor(identity.Platform); !ok {
		return fmt.Errorf("source url %q is not on a crawlable platform", p.SourceURL)
	}

	interval := p.Interval
	if interval < minReingestInterval {
		interval = minReingestInterval
	}

	payload, err := json.Marshal(model.JobPayload{
		SourceURL:        identity.CanonicalURL,
		CreatorProfileID: profile.ID,
	})
	if err != nil {
		return fmt.Errorf("marshal task payload: %w", err)
	}

	return s.adm.UpsertByTaskName(ctx, domain.UpsertTaskParams{
		TaskName: reingestTaskName(profile.ID),
		Payload:  payload,
		Interval: interval,
	})
}

// RemoveReingest deletes the recurring re-ingestion task for a profile.
// Returns true if a task existed. Call this when a profile is deleted so
// the scheduler does not keep firing jobs for a missing profile.
func (s *ScheduleService) RemoveReingest(ctx context.Context, profileID string) (bool, error) {
	ok, err := s.adm.DeleteByTaskName(ctx, reingestTaskName(profileID))
	if err != nil {
		return false, fmt.Errorf("delete schedule: %w", err)
	}
	return ok, nil
}

func reingestTaskName(profileID string) string { return "reingest:" + profileID }
