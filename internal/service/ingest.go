package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/linkhound/ingest/internal/core"
	"github.com/linkhound/ingest/internal/domain/model"
	"github.com/linkhound/ingest/internal/domain/platform"
	apperrors "github.com/linkhound/ingest/internal/errors"
	"github.com/linkhound/ingest/internal/strategy"
)

// IngestServiceOptions groups dependencies for IngestService.
type IngestServiceOptions struct {
	Registry *strategy.Registry       // Required: strategy dispatch
	Profiles core.ProfileRepository   // Required: creator profile store
	Merge    *MergeService            // Required: merge engine
	Crawl    *CrawlService            // Optional: follow-up planning
	Results  core.JobResultRepository // Optional: per-run summary store
	Logger   *slog.Logger             // Optional: structured logger
}

// IngestService runs one claimed job end to end: dispatch to the strategy,
// normalize its discoveries through the platform detector, merge them into
// the link set, plan follow-up crawls, and record the run summary. Errors
// keep their taxonomy so the runner can classify retryable against terminal.
type IngestService struct {
	registry *strategy.Registry
	profiles core.ProfileRepository
	merge    *MergeService
	crawl    *CrawlService
	results  core.JobResultRepository
	log      *slog.Logger
}

// NewIngestService constructs a new IngestService.
func NewIngestService(opts IngestServiceOptions) (*IngestService, error) {
	if opts.Registry == nil {
		return nil, errors.New("strategy registry is required")
	}
	if opts.Profiles == nil {
		return nil, errors.New("profile repository is required")
	}
	if opts.Merge == nil {
		return nil, errors.New("merge service is required")
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	return &IngestService{
		registry: opts.Registry,
		profiles: opts.Profiles,
		merge:    opts.Merge,
		crawl:    opts.Crawl,
		results:  opts.Results,
		log:      log,
	}, nil
}

// Run executes one claimed job and returns its run summary.
func (s *IngestService) Run(ctx context.Context, job *model.Job) (*model.IngestRunSummary, error) {
	if job == nil {
		return nil, errors.New("job is required")
	}

	payload, err := job.ParsedPayload()
	if err != nil {
		return nil, apperrors.Contentf("job %s: %v", job.ID, err)
	}

	strat, ok := s.registry.Get(job.Type)
	if !ok {
		return nil, apperrors.Contentf("no strategy registered for job type %q", job.Type)
	}

	profile, err := s.profiles.GetByID(ctx, payload.CreatorProfileID)
	if err != nil {
		return nil, fmt.Errorf("load profile %s: %w", payload.CreatorProfileID, err)
	}

	source, err := platform.Detect(payload.SourceURL)
	if err != nil {
		return nil, apperrors.Contentf("source url %q: %v", payload.SourceURL, err)
	}

	extracted, err := strat.FetchAndExtract(ctx, strategy.Input{
		SourceURL: source.CanonicalURL,
		Handle:    source.Handle,
		Options:   payload.StrategyOptions,
	})
	if err != nil {
		return nil, err
	}

	candidates := s.buildCandidates(job, profile.ID, source, extracted.Candidates)
	merged, err := s.merge.Merge(ctx, MergeInput{
		CreatorProfileID: profile.ID,
		CreatorHandle:    profile.Handle,
		Candidates:       candidates,
	})
	if err != nil {
		return nil, fmt.Errorf("merge candidates: %w", err)
	}

	followUps := 0
	if s.crawl != nil {
		followUps, err = s.crawl.PlanFollowUps(ctx, PlanInput{
			CreatorProfileID: profile.ID,
			ParentType:       job.Type,
			ParentDepth:      payload.Depth,
			Priority:         job.Priority,
			Targets:          extracted.CrawlTargets,
		})
		if err != nil {
			return nil, fmt.Errorf("plan follow-ups: %w", err)
		}
	}

	s.applyProfileHints(ctx, profile, extracted.Hints)

	summary := &model.IngestRunSummary{
		SourceURL:       source.CanonicalURL,
		CandidatesFound: len(candidates),
		LinksCreated:    merged.Created,
		LinksUpdated:    merged.Updated,
		LinksUnchanged:  merged.Unchanged,
		FollowUps:       followUps,
		Depth:           payload.Depth,
	}
	s.recordRunSummary(ctx, job, summary)
	return summary, nil
}

// buildCandidates runs each discovery through the platform detector and
// keeps the ones on supported platforms. Unknowns are dropped, not failed:
// a linkpage full of personal-website links is normal content.
func (s *IngestService) buildCandidates(job *model.Job, profileID string, source platform.Identity, discoveries []strategy.Discovery) []model.Candidate {
	sourceTag := source.Platform.String()
	if !source.Platform.Known() {
		sourceTag = string(job.Type)
	}

	candidates := make([]model.Candidate, 0, len(discoveries))
	for _, d := range discoveries {
		identity, err := platform.Detect(d.URL)
		if err != nil || !identity.Known() {
			continue
		}
		// A page linking to itself is provenance, not a discovery.
		if identity.CanonicalURL == source.CanonicalURL {
			continue
		}
		candidates = append(candidates, model.Candidate{
			CreatorProfileID: profileID,
			Platform:         identity.Platform.String(),
			URL:              identity.CanonicalURL,
			Handle:           identity.Handle,
			SourcePlatform:   sourceTag,
			SourceURL:        source.CanonicalURL,
		})
	}
	return candidates
}

// applyProfileHints fills display metadata the profile is missing. Hints
// never overwrite values a creator or operator already set, and a hint
// failure never fails the run.
func (s *IngestService) applyProfileHints(ctx context.Context, profile *model.CreatorProfile, hints strategy.ProfileHints) {
	req := model.UpdateCreatorProfileRequest{}
	if hints.AvatarURL != "" && (profile.AvatarURL == nil || *profile.AvatarURL == "") {
		avatar := hints.AvatarURL
		req.AvatarURL = &avatar
	}
	if !req.HasUpdates() {
		return
	}
	if _, err := s.profiles.Update(ctx, profile.ID, req); err != nil {
		s.log.Warn("failed to apply profile hints", "profile_id", profile.ID, "error", err)
	}
}

// recordRunSummary persists the run document. Run history is best-effort;
// losing a summary never fails a job that already merged its links.
func (s *IngestService) recordRunSummary(ctx context.Context, job *model.Job, summary *model.IngestRunSummary) {
	if s.results == nil {
		return
	}
	doc, err := json.Marshal(summary)
	if err != nil {
		s.log.Warn("failed to encode run summary", "job_id", job.ID, "error", err)
		return
	}
	if err := s.results.Upsert(ctx, core.UpsertJobResultParams{
		JobID:   job.ID,
		JobType: job.Type,
		Result:  doc,
	}); err != nil {
		s.log.Warn("failed to record run summary", "job_id", job.ID, "error", err)
	}
}
