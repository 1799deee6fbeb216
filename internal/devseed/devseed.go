// Package devseed populates a development database with creator profiles,
// baseline links, and re-ingestion schedules so the pipeline has real work
// to do out of the box. Seeding is idempotent; re-running updates nothing
// that already exists.
package devseed

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/linkhound/ingest/internal/data"
	"github.com/linkhound/ingest/internal/domain/model"
	"github.com/linkhound/ingest/internal/service"
)

// Services bundles the dependencies needed for development seeding.
type Services struct {
	DB        *sql.DB
	profiles  *service.ProfileService
	schedules *service.ScheduleService
	links     *data.LinkRepo
}

// NewServices constructs all required services for seeding using the provided DB.
func NewServices(db *sql.DB) Services {
	profileRepo := data.NewProfileRepo(db)
	jobRepo := data.NewJobRepo(db, data.RepoConfig{})
	linkRepo := data.NewLinkRepo(db)
	scheduledAdmin := data.NewScheduledJobsAdminRepo(db)

	profileService, err := service.NewProfileService(service.ProfileServiceOptions{
		Profiles: profileRepo,
		Jobs:     jobRepo,
	})
	if err != nil {
		// Constructors only fail on nil repositories, which is a wiring bug.
		panic(fmt.Sprintf("devseed: build profile service: %v", err))
	}

	scheduleService := service.NewScheduleService(service.ScheduleServiceOptions{
		Profiles: profileRepo,
		Admin:    scheduledAdmin,
	})

	return Services{
		DB:        db,
		profiles:  profileService,
		schedules: scheduleService,
		links:     linkRepo,
	}
}

// Run executes the full development seeding workflow against the provided DB.
func Run(ctx context.Context, svcs Services, logger *slog.Logger) error {
	failures := 0

	profileIDs, profileFailures := seedProfiles(ctx, svcs.profiles, logger)
	failures += profileFailures

	failures += seedLinks(ctx, svcs.links, profileIDs, logger)
	failures += seedSchedules(ctx, svcs.schedules, profileIDs, logger)
	failures += seedIngestionJobs(ctx, svcs.profiles, profileIDs, logger)

	if failures > 0 {
		return fmt.Errorf("%d seed errors; check logs", failures)
	}
	return nil
}

type profileSeedSpec struct {
	displayName string
	handle      string
	sourceURL   string
	// reingestEvery is zero for profiles that should not be on a schedule.
	reingestEvery time.Duration
	// enqueue controls whether an initial depth-0 ingestion job is created.
	enqueue bool
}

func defaultProfileSeeds() []profileSeedSpec {
	return []profileSeedSpec{
		{
			displayName:   "Ayla Rivers",
			handle:        "aylarivers",
			sourceURL:     "https://linktr.ee/aylarivers",
			reingestEvery: 6 * time.Hour,
			enqueue:       true,
		},
		{
			displayName:   "Marcus Vale",
			handle:        "marcusvale",
			sourceURL:     "https://beacons.ai/marcusvale",
			reingestEvery: 12 * time.Hour,
			enqueue:       true,
		},
		{
			displayName: "Nina Sol",
			handle:      "ninasol",
			sourceURL:   "https://laylo.com/ninasol",
			enqueue:     true,
		},
		{
			displayName: "Drift Collective",
			handle:      "driftcollective",
			sourceURL:   "https://www.youtube.com/@driftcollective",
		},
	}
}

// seedProfiles creates the seed profiles and returns handle -> profile ID for
// the ones that exist after the pass, whether freshly created or not.
func seedProfiles(
	ctx context.Context,
	svc *service.ProfileService,
	logger *slog.Logger,
) (map[string]string, int) {
	ids := make(map[string]string, len(defaultProfileSeeds()))
	failures := 0

	for _, spec := range defaultProfileSeeds() {
		profile, created, err := createProfile(ctx, svc, spec)
		if err != nil {
			if logger != nil {
				logger.ErrorContext(ctx, "failed to create profile", "handle", spec.handle, "error", err)
			}
			failures++
			continue
		}
		ids[spec.handle] = profile.ID
		if logger != nil {
			msg := "profile already exists"
			if created {
				msg = "created profile"
			}
			logger.InfoContext(ctx, msg, "handle", spec.handle, "id", profile.ID)
		}
	}

	return ids, failures
}

func createProfile(
	ctx context.Context,
	svc *service.ProfileService,
	spec profileSeedSpec,
) (*model.CreatorProfile, bool, error) {
	profile, err := svc.Create(ctx, &model.CreateCreatorProfileRequest{
		DisplayName: spec.displayName,
		Handle:      spec.handle,
	})
	if err == nil {
		return profile, true, nil
	}
	if !errors.Is(err, data.ErrProfileHandleExists) {
		return nil, false, err
	}

	existing, getErr := svc.GetByHandle(ctx, spec.handle)
	if getErr != nil {
		return nil, false, fmt.Errorf("load existing profile %q: %w", spec.handle, getErr)
	}
	return existing, false, nil
}

type linkSeedSpec struct {
	profileHandle string
	platform      string
	url           string
	handle        string
	state         model.LinkState
}

func defaultLinkSeeds() []linkSeedSpec {
	return []linkSeedSpec{
		{
			profileHandle: "aylarivers",
			platform:      "instagram",
			url:           "https://instagram.com/aylarivers",
			handle:        "aylarivers",
			state:         model.LinkStateActive,
		},
		{
			profileHandle: "aylarivers",
			platform:      "tiktok",
			url:           "https://tiktok.com/@aylarivers",
			handle:        "aylarivers",
			state:         model.LinkStateActive,
		},
		{
			profileHandle: "marcusvale",
			platform:      "youtube",
			url:           "https://youtube.com/@marcusvale",
			handle:        "marcusvale",
			state:         model.LinkStateActive,
		},
		{
			profileHandle: "ninasol",
			platform:      "twitter",
			url:           "https://twitter.com/ninasol",
			handle:        "ninasol",
			state:         model.LinkStateActive,
		},
	}
}

func seedLinks(
	ctx context.Context,
	repo *data.LinkRepo,
	profileIDs map[string]string,
	logger *slog.Logger,
) int {
	failures := 0
	for _, spec := range defaultLinkSeeds() {
		profileID, ok := profileIDs[spec.profileHandle]
		if !ok {
			continue
		}

		created, err := createLink(ctx, repo, profileID, spec)
		if err != nil {
			if logger != nil {
				logger.ErrorContext(ctx, "failed to create link", "url", spec.url, "error", err)
			}
			failures++
			continue
		}
		if logger != nil {
			msg := "link already exists"
			if created {
				msg = "created link"
			}
			logger.InfoContext(ctx, msg, "profile", spec.profileHandle, "url", spec.url)
		}
	}
	return failures
}

func createLink(
	ctx context.Context,
	repo *data.LinkRepo,
	profileID string,
	spec linkSeedSpec,
) (bool, error) {
	handle := spec.handle
	_, err := repo.Create(ctx, &model.CreateLinkRequest{
		CreatorProfileID: profileID,
		Platform:         spec.platform,
		URL:              spec.url,
		Handle:           &handle,
		State:            spec.state,
		Confidence:       1.0,
		SourceType:       model.SourceTypeManual,
		Evidence: []model.Evidence{
			{
				Signal:     "base_manual",
				Source:     "devseed",
				ObservedAt: time.Now().UTC(),
			},
		},
	})
	if err != nil {
		if errors.Is(err, data.ErrLinkExists) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func seedSchedules(
	ctx context.Context,
	svc *service.ScheduleService,
	profileIDs map[string]string,
	logger *slog.Logger,
) int {
	failures := 0
	for _, spec := range defaultProfileSeeds() {
		if spec.reingestEvery <= 0 {
			continue
		}
		profileID, ok := profileIDs[spec.handle]
		if !ok {
			continue
		}

		err := svc.SetReingest(ctx, service.SetReingestParams{
			ProfileID: profileID,
			SourceURL: spec.sourceURL,
			Interval:  spec.reingestEvery,
		})
		if err != nil {
			if logger != nil {
				logger.ErrorContext(ctx, "failed to set reingest schedule", "handle", spec.handle, "error", err)
			}
			failures++
			continue
		}
		if logger != nil {
			logger.InfoContext(ctx, "reingest schedule set",
				"handle", spec.handle, "interval", spec.reingestEvery.String())
		}
	}
	return failures
}

// seedIngestionJobs enqueues an initial depth-0 job per profile. Enqueueing
// dedups on (type, profile, canonical url), so reruns are no-ops while a
// prior job is still active or succeeded.
func seedIngestionJobs(
	ctx context.Context,
	svc *service.ProfileService,
	profileIDs map[string]string,
	logger *slog.Logger,
) int {
	failures := 0
	for _, spec := range defaultProfileSeeds() {
		if !spec.enqueue {
			continue
		}
		profileID, ok := profileIDs[spec.handle]
		if !ok {
			continue
		}

		job, err := svc.EnqueueIngestion(ctx, service.EnqueueIngestionParams{
			ProfileID: profileID,
			SourceURL: spec.sourceURL,
		})
		if err != nil {
			if logger != nil {
				logger.ErrorContext(ctx, "failed to enqueue ingestion", "handle", spec.handle, "error", err)
			}
			failures++
			continue
		}
		if logger != nil {
			logger.InfoContext(ctx, "ingestion job enqueued",
				"handle", spec.handle, "job_id", job.ID, "type", string(job.Type))
		}
	}
	return failures
}
