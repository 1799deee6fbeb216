package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/linkhound/ingest/internal/core"
	"github.com/linkhound/ingest/internal/domain/model"
	"github.com/linkhound/ingest/internal/domain/scoring"
)

// mergeRetryLimit bounds retries when an optimistic update or insert loses a
// race with a concurrent merge pass for the same identity.
const mergeRetryLimit = 3

// MergeServiceOptions groups dependencies for MergeService.
type MergeServiceOptions struct {
	Links  core.LinkRepository // Required: social link repository
	Scorer *scoring.Scorer     // Required: confidence scorer
	Logger *slog.Logger        // Optional: structured logger
}

// MergeService folds scored candidates into the consolidated link set. The
// (creator_profile_id, platform, url) uniqueness constraint is the only
// concurrency guard: insert conflicts and optimistic-update misses are
// expected races and resolve by re-reading the row, never by failing the job.
type MergeService struct {
	links  core.LinkRepository
	scorer *scoring.Scorer
	log    *slog.Logger
}

// NewMergeService constructs a new MergeService.
func NewMergeService(opts MergeServiceOptions) (*MergeService, error) {
	if opts.Links == nil {
		return nil, errors.New("link repository is required")
	}
	if opts.Scorer == nil {
		return nil, errors.New("scorer is required")
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	return &MergeService{links: opts.Links, scorer: opts.Scorer, log: log}, nil
}

// MergeInput is one merge pass: every candidate a single extraction run
// discovered for one profile.
type MergeInput struct {
	CreatorProfileID string
	// CreatorHandle is the profile's known handle, used for similarity
	// scoring. Empty disables the handle bonus.
	CreatorHandle string
	Candidates    []model.Candidate
}

// Merge applies one pass of candidates to the stored link set and reports
// what changed. Candidates on the same platform but with different URLs are
// ambiguous for this pass and never derive the active state. The whole pass
// runs in one transaction: an abort at candidate N rolls back candidates
// 1..N-1 instead of leaving the link set half-updated.
func (s *MergeService) Merge(ctx context.Context, in MergeInput) (model.MergeOutcome, error) {
	var outcome model.MergeOutcome
	if in.CreatorProfileID == "" {
		return outcome, errors.New("creator profile id is required")
	}

	ambiguous := ambiguousPlatforms(in.Candidates)
	for i := range in.Candidates {
		cand := in.Candidates[i]
		if err := cand.Validate(); err != nil {
			return outcome, fmt.Errorf("merge candidate %q: %w", cand.URL, err)
		}
		if cand.CreatorProfileID != in.CreatorProfileID {
			return outcome, fmt.Errorf("merge candidate %q: profile mismatch", cand.URL)
		}
	}
	if len(in.Candidates) == 0 {
		return outcome, nil
	}

	err := s.links.InTransaction(ctx, func(links core.LinkRepository) error {
		for i := range in.Candidates {
			cand := in.Candidates[i]
			result, err := s.mergeOne(ctx, links, in, cand, ambiguous[cand.Platform])
			if err != nil {
				return err
			}
			switch result {
			case mergeCreated:
				outcome.Created++
			case mergeUpdated:
				outcome.Updated++
			case mergeUnchanged:
				outcome.Unchanged++
			}
		}
		return nil
	})
	if err != nil {
		return model.MergeOutcome{}, err
	}
	return outcome, nil
}

type mergeResult int

const (
	mergeCreated mergeResult = iota
	mergeUpdated
	mergeUnchanged
)

// mergeOne applies one candidate through the pass's transaction-scoped
// repository, retrying bounded on insert conflicts and optimistic-update
// misses.
func (s *MergeService) mergeOne(ctx context.Context, links core.LinkRepository, in MergeInput, cand model.Candidate, ambiguous bool) (mergeResult, error) {
	key := model.LinkNaturalKey{
		CreatorProfileID: cand.CreatorProfileID,
		Platform:         cand.Platform,
		URL:              cand.URL,
	}

	var lastErr error
	for attempt := 0; attempt < mergeRetryLimit; attempt++ {
		existing, err := links.FindByNaturalKey(ctx, key)
		if err != nil {
			return 0, fmt.Errorf("find link by natural key: %w", err)
		}

		if existing == nil {
			created, createErr := s.createLink(ctx, links, in, cand, ambiguous)
			if createErr != nil {
				// A concurrent pass may have inserted the identity
				// between the read and the insert. Re-read and merge
				// into the winner's row instead.
				s.log.Debug("link insert conflicted, re-reading",
					"platform", cand.Platform, "url", cand.URL, "error", createErr)
				lastErr = createErr
				continue
			}
			if created {
				return mergeCreated, nil
			}
			continue
		}

		updated, ok, updateErr := s.updateLink(ctx, links, in, cand, existing, ambiguous)
		if updateErr != nil {
			return 0, updateErr
		}
		if !ok {
			// Optimistic guard missed; another pass updated the row first.
			continue
		}
		if updated {
			return mergeUpdated, nil
		}
		return mergeUnchanged, nil
	}
	if lastErr != nil {
		return 0, fmt.Errorf("merge link %s/%s: retry limit exceeded: %w", cand.Platform, cand.URL, lastErr)
	}
	return 0, fmt.Errorf("merge link %s/%s: retry limit exceeded", cand.Platform, cand.URL)
}

// createLink inserts a fresh row for a first-seen identity. Returns false
// without error when the caller should retry from a re-read.
func (s *MergeService) createLink(ctx context.Context, links core.LinkRepository, in MergeInput, cand model.Candidate, ambiguous bool) (bool, error) {
	scored := s.scorer.Score(scoring.Input{
		Candidate:     cand,
		SourceType:    model.SourceTypeIngested,
		CreatorHandle: in.CreatorHandle,
	})

	req := &model.CreateLinkRequest{
		CreatorProfileID: cand.CreatorProfileID,
		Platform:         cand.Platform,
		URL:              cand.URL,
		State:            s.scorer.DeriveState(scored.Confidence, ambiguous),
		Confidence:       scored.Confidence,
		SourceType:       model.SourceTypeIngested,
		SourcePlatform:   optionalString(cand.SourcePlatform),
		Evidence:         scored.Evidence,
	}
	if cand.Handle != "" {
		req.Handle = &cand.Handle
	}

	link, err := links.Create(ctx, req)
	if err != nil || link == nil {
		return false, err
	}
	return true, nil
}

// updateLink merges a candidate into an existing row. Authority rules:
// manual and admin rows keep their state and confidence, and an explicit
// rejection is sticky. Ingestion still appends its evidence either way, so
// the trail records every sighting. The middle return is false when the
// optimistic guard missed and the row must be re-read.
func (s *MergeService) updateLink(ctx context.Context, links core.LinkRepository, in MergeInput, cand model.Candidate, existing *model.SocialLink, ambiguous bool) (changed, ok bool, err error) {
	scored := s.scorer.Score(scoring.Input{
		Candidate:     cand,
		SourceType:    model.SourceTypeIngested,
		CreatorHandle: in.CreatorHandle,
		Existing:      existing,
	})

	state := existing.State
	confidence := existing.Confidence
	if !existing.SourceType.Authoritative() && existing.State != model.LinkStateRejected {
		confidence = scored.Confidence
		state = s.scorer.DeriveState(confidence, ambiguous)
		// Re-derivation never demotes: confidence is monotonic, so a row
		// that crossed the active threshold stays active.
		if existing.State == model.LinkStateActive {
			state = model.LinkStateActive
		}
	}

	handle := existing.Handle
	if handle == nil && cand.Handle != "" {
		handle = &cand.Handle
	}

	params := core.UpdateLinkMergeParams{
		ID:                existing.ID,
		State:             state,
		Confidence:        confidence,
		Handle:            handle,
		AppendEvidence:    scored.Evidence,
		ExpectedUpdatedAt: existing.UpdatedAt,
	}
	link, err := links.UpdateMerge(ctx, params)
	if err != nil {
		return false, false, fmt.Errorf("update link %s: %w", existing.ID, err)
	}
	if link == nil {
		return false, false, nil
	}

	changed = state != existing.State || confidence != existing.Confidence
	return changed, true, nil
}

// ambiguousPlatforms lists platforms asserted by more than one distinct URL
// within a single pass. Competing candidates for one platform keep each
// other out of the active state.
func ambiguousPlatforms(candidates []model.Candidate) map[string]bool {
	urls := make(map[string]map[string]struct{})
	for _, c := range candidates {
		if urls[c.Platform] == nil {
			urls[c.Platform] = make(map[string]struct{})
		}
		urls[c.Platform][c.URL] = struct{}{}
	}
	ambiguous := make(map[string]bool, len(urls))
	for p, set := range urls {
		ambiguous[p] = len(set) > 1
	}
	return ambiguous
}

func optionalString(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}
