package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/linkhound/ingest/internal/core"
	"github.com/linkhound/ingest/internal/domain/model"
	"github.com/linkhound/ingest/internal/domain/platform"
	"github.com/linkhound/ingest/internal/strategy"
)

// defaultRecentTargetTTL bounds how long the cache pre-filter remembers a
// planned target. The database dedup check stays authoritative; the cache
// only saves round-trips on hot crawl fan-out.
const defaultRecentTargetTTL = 30 * time.Minute

// CrawlServiceOptions groups dependencies for CrawlService.
type CrawlServiceOptions struct {
	Jobs     core.JobRepository   // Required: job queue for follow-up enqueues
	Registry *strategy.Registry   // Required: depth budgets per strategy kind
	Cache    core.CacheRepository // Optional: recently-seen target pre-filter
	// RecentTargetTTL overrides the pre-filter TTL. Zero uses the default.
	RecentTargetTTL time.Duration
	Logger          *slog.Logger // Optional: structured logger
}

// CrawlService decides which discovered URLs become follow-up jobs. Every
// rejection happens here, before enqueue: a target that fails detection,
// depth, or dedup is simply never scheduled.
type CrawlService struct {
	jobs     core.JobRepository
	registry *strategy.Registry
	cache    core.CacheRepository
	ttl      time.Duration
	log      *slog.Logger
}

// NewCrawlService constructs a new CrawlService.
func NewCrawlService(opts CrawlServiceOptions) (*CrawlService, error) {
	if opts.Jobs == nil {
		return nil, errors.New("job repository is required")
	}
	if opts.Registry == nil {
		return nil, errors.New("strategy registry is required")
	}
	ttl := opts.RecentTargetTTL
	if ttl <= 0 {
		ttl = defaultRecentTargetTTL
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	return &CrawlService{
		jobs:     opts.Jobs,
		registry: opts.Registry,
		cache:    opts.Cache,
		ttl:      ttl,
		log:      log,
	}, nil
}

// PlanInput describes the originating job whose page nominated crawl targets.
type PlanInput struct {
	CreatorProfileID string
	// ParentType is the strategy kind of the originating job.
	ParentType model.JobType
	// ParentDepth is the originating job's depth; children run at +1.
	ParentDepth int
	// Priority is inherited by follow-up jobs.
	Priority int
	// Targets are the raw URLs the strategy nominated.
	Targets []string
}

// PlanFollowUps filters crawl targets and enqueues the survivors, returning
// how many jobs were enqueued. A target survives when the platform detector
// maps it to a recursion-eligible strategy, the child depth fits both the
// parent's and the child strategy's depth budget, and no equivalent job is
// already queued, running, or succeeded.
func (s *CrawlService) PlanFollowUps(ctx context.Context, in PlanInput) (int, error) {
	if in.CreatorProfileID == "" {
		return 0, errors.New("creator profile id is required")
	}

	parent, ok := s.registry.Get(in.ParentType)
	if !ok {
		return 0, nil
	}
	childDepth := in.ParentDepth + 1
	if childDepth > parent.MaxDepth() {
		return 0, nil
	}

	enqueued := 0
	for _, target := range in.Targets {
		identity, err := platform.Detect(target)
		if err != nil || !identity.Known() {
			continue
		}
		kind, eligible := strategyKindFor(identity.Platform)
		if !eligible {
			continue
		}
		child, ok := s.registry.Get(kind)
		if !ok || childDepth > child.MaxDepth() {
			continue
		}

		dedupKey := model.DedupKey(kind, in.CreatorProfileID, identity.CanonicalURL)
		if s.recentlySeen(ctx, dedupKey) {
			continue
		}
		exists, err := s.jobs.HasActiveOrSucceededByDedupKey(ctx, dedupKey)
		if err != nil {
			return enqueued, err
		}
		if exists {
			s.markSeen(ctx, dedupKey)
			continue
		}

		if _, err := s.jobs.Create(ctx, &model.CreateJobRequest{
			Type: kind,
			Payload: model.JobPayload{
				SourceURL:        identity.CanonicalURL,
				CreatorProfileID: in.CreatorProfileID,
				Depth:            childDepth,
			},
			Priority: in.Priority,
		}); err != nil {
			return enqueued, err
		}
		s.markSeen(ctx, dedupKey)
		enqueued++
	}
	return enqueued, nil
}

// recentlySeen consults the cache pre-filter. Cache failures never block a
// target; the database dedup check decides.
func (s *CrawlService) recentlySeen(ctx context.Context, dedupKey string) bool {
	if s.cache == nil {
		return false
	}
	seen, err := s.cache.Exists(ctx, "crawl:seen:"+dedupKey)
	if err != nil {
		s.log.Debug("crawl seen-set unavailable, falling through to db check", "error", err)
		return false
	}
	return seen
}

// markSeen records a target in the pre-filter. The marker only lands once
// the job row exists (or already existed), so a failed enqueue stays
// eligible when a retried pass nominates the target again.
func (s *CrawlService) markSeen(ctx context.Context, dedupKey string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Set(ctx, "crawl:seen:"+dedupKey, []byte("1"), s.ttl); err != nil {
		s.log.Debug("crawl seen-set write failed", "error", err)
	}
}

// strategyKindFor maps a detected platform to the strategy that can crawl
// it. Platforms outside the map are detection-only and never recursed into.
func strategyKindFor(p platform.Platform) (model.JobType, bool) {
	switch p {
	case platform.Linktree, platform.Beacons:
		return model.JobTypeLinkPage, true
	case platform.Laylo:
		return model.JobTypeDropPage, true
	case platform.YouTube:
		return model.JobTypeVideoChannel, true
	default:
		return "", false
	}
}
