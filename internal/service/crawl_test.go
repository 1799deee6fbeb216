package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/linkhound/ingest/internal/core"
	"github.com/linkhound/ingest/internal/domain/model"
	"github.com/linkhound/ingest/internal/mocks"
	"github.com/linkhound/ingest/internal/strategy"
)

func newTestCrawlService(t *testing.T, jobs *mocks.MockJobRepository, cache core.CacheRepository) *CrawlService {
	t.Helper()
	svc, err := NewCrawlService(CrawlServiceOptions{
		Jobs:     jobs,
		Registry: strategy.DefaultRegistry(nil),
		Cache:    cache,
	})
	require.NoError(t, err)
	return svc
}

func TestNewCrawlService(t *testing.T) {
	t.Run("requires job repository", func(t *testing.T) {
		_, err := NewCrawlService(CrawlServiceOptions{
			Registry: strategy.DefaultRegistry(nil),
		})
		require.Error(t, err)
	})

	t.Run("requires registry", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		_, err := NewCrawlService(CrawlServiceOptions{
			Jobs: mocks.NewMockJobRepository(ctrl),
		})
		require.Error(t, err)
	})
}

func TestPlanFollowUpsEnqueuesEligibleTarget(t *testing.T) {
	ctrl := gomock.NewController(t)
	jobs := mocks.NewMockJobRepository(ctrl)
	svc := newTestCrawlService(t, jobs, nil)

	wantKey := model.DedupKey(model.JobTypeLinkPage, "profile-1", "https://linktr.ee/examplecreator")
	jobs.EXPECT().HasActiveOrSucceededByDedupKey(gomock.Any(), wantKey).Return(false, nil)
	jobs.EXPECT().
		Create(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, req *model.CreateJobRequest) (*model.Job, error) {
			assert.Equal(t, model.JobTypeLinkPage, req.Type)
			assert.Equal(t, "https://linktr.ee/examplecreator", req.Payload.SourceURL)
			assert.Equal(t, "profile-1", req.Payload.CreatorProfileID)
			assert.Equal(t, 1, req.Payload.Depth)
			assert.Equal(t, 10, req.Priority)
			return &model.Job{ID: "job-2"}, nil
		})

	enqueued, err := svc.PlanFollowUps(context.Background(), PlanInput{
		CreatorProfileID: "profile-1",
		ParentType:       model.JobTypeDropPage,
		ParentDepth:      0,
		Priority:         10,
		Targets:          []string{"https://WWW.Linktr.ee/examplecreator/"},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, enqueued)
}

func TestPlanFollowUpsSkipsIneligibleTargets(t *testing.T) {
	ctrl := gomock.NewController(t)
	jobs := mocks.NewMockJobRepository(ctrl)
	svc := newTestCrawlService(t, jobs, nil)

	// Detection-only platforms and undetectable URLs never reach the queue.
	enqueued, err := svc.PlanFollowUps(context.Background(), PlanInput{
		CreatorProfileID: "profile-1",
		ParentType:       model.JobTypeLinkPage,
		Targets: []string{
			"https://instagram.com/examplecreator",
			"https://example.com/blog",
			"not a url",
			"",
		},
	})
	require.NoError(t, err)
	assert.Equal(t, 0, enqueued)
}

func TestPlanFollowUpsEnforcesParentDepthBudget(t *testing.T) {
	ctrl := gomock.NewController(t)
	jobs := mocks.NewMockJobRepository(ctrl)
	svc := newTestCrawlService(t, jobs, nil)

	// A videochannel page may not recurse past depth 1, no matter how
	// many crawlable targets it nominates.
	enqueued, err := svc.PlanFollowUps(context.Background(), PlanInput{
		CreatorProfileID: "profile-1",
		ParentType:       model.JobTypeVideoChannel,
		ParentDepth:      1,
		Targets: []string{
			"https://linktr.ee/examplecreator",
			"https://laylo.com/examplecreator",
		},
	})
	require.NoError(t, err)
	assert.Equal(t, 0, enqueued)
}

func TestPlanFollowUpsEnforcesChildDepthBudget(t *testing.T) {
	ctrl := gomock.NewController(t)
	jobs := mocks.NewMockJobRepository(ctrl)
	svc := newTestCrawlService(t, jobs, nil)

	// At depth 2 a linkpage may still spawn linkpage children, but a
	// youtube target exceeds the videochannel strategy's own budget.
	wantKey := model.DedupKey(model.JobTypeLinkPage, "profile-1", "https://beacons.ai/examplecreator")
	jobs.EXPECT().HasActiveOrSucceededByDedupKey(gomock.Any(), wantKey).Return(false, nil)
	jobs.EXPECT().Create(gomock.Any(), gomock.Any()).Return(&model.Job{ID: "job-2"}, nil)

	enqueued, err := svc.PlanFollowUps(context.Background(), PlanInput{
		CreatorProfileID: "profile-1",
		ParentType:       model.JobTypeLinkPage,
		ParentDepth:      1,
		Targets: []string{
			"https://beacons.ai/examplecreator",
			"https://youtube.com/@examplecreator",
		},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, enqueued)
}

func TestPlanFollowUpsSuppressesDuplicateWork(t *testing.T) {
	ctrl := gomock.NewController(t)
	jobs := mocks.NewMockJobRepository(ctrl)
	svc := newTestCrawlService(t, jobs, nil)

	jobs.EXPECT().HasActiveOrSucceededByDedupKey(gomock.Any(), gomock.Any()).Return(true, nil)

	enqueued, err := svc.PlanFollowUps(context.Background(), PlanInput{
		CreatorProfileID: "profile-1",
		ParentType:       model.JobTypeLinkPage,
		Targets:          []string{"https://linktr.ee/examplecreator"},
	})
	require.NoError(t, err)
	assert.Equal(t, 0, enqueued)
}

func TestPlanFollowUpsCachePreFilter(t *testing.T) {
	t.Run("recently seen target skips the db check", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		jobs := mocks.NewMockJobRepository(ctrl)
		cache := core.NewMockCacheRepository(ctrl)
		svc := newTestCrawlService(t, jobs, cache)

		cache.EXPECT().
			Exists(gomock.Any(), gomock.Any()).
			Return(true, nil)

		enqueued, err := svc.PlanFollowUps(context.Background(), PlanInput{
			CreatorProfileID: "profile-1",
			ParentType:       model.JobTypeLinkPage,
			Targets:          []string{"https://linktr.ee/examplecreator"},
		})
		require.NoError(t, err)
		assert.Equal(t, 0, enqueued)
	})

	t.Run("enqueued target is marked for later passes", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		jobs := mocks.NewMockJobRepository(ctrl)
		cache := core.NewMockCacheRepository(ctrl)
		svc := newTestCrawlService(t, jobs, cache)

		gomock.InOrder(
			cache.EXPECT().Exists(gomock.Any(), gomock.Any()).Return(false, nil),
			jobs.EXPECT().HasActiveOrSucceededByDedupKey(gomock.Any(), gomock.Any()).Return(false, nil),
			jobs.EXPECT().Create(gomock.Any(), gomock.Any()).Return(&model.Job{ID: "job-2"}, nil),
			cache.EXPECT().
				Set(gomock.Any(), gomock.Any(), gomock.Any(), defaultRecentTargetTTL).
				Return(nil),
		)

		enqueued, err := svc.PlanFollowUps(context.Background(), PlanInput{
			CreatorProfileID: "profile-1",
			ParentType:       model.JobTypeLinkPage,
			Targets:          []string{"https://linktr.ee/examplecreator"},
		})
		require.NoError(t, err)
		assert.Equal(t, 1, enqueued)
	})

	t.Run("cache failure falls through to the db check", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		jobs := mocks.NewMockJobRepository(ctrl)
		cache := core.NewMockCacheRepository(ctrl)
		svc := newTestCrawlService(t, jobs, cache)

		cache.EXPECT().
			Exists(gomock.Any(), gomock.Any()).
			Return(false, errors.New("redis down"))
		jobs.EXPECT().HasActiveOrSucceededByDedupKey(gomock.Any(), gomock.Any()).Return(false, nil)
		jobs.EXPECT().Create(gomock.Any(), gomock.Any()).Return(&model.Job{ID: "job-2"}, nil)
		cache.EXPECT().Set(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(nil)

		enqueued, err := svc.PlanFollowUps(context.Background(), PlanInput{
			CreatorProfileID: "profile-1",
			ParentType:       model.JobTypeLinkPage,
			Targets:          []string{"https://linktr.ee/examplecreator"},
		})
		require.NoError(t, err)
		assert.Equal(t, 1, enqueued)
	})

	t.Run("failed enqueue leaves no marker behind", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		jobs := mocks.NewMockJobRepository(ctrl)
		cache := core.NewMockCacheRepository(ctrl)
		svc := newTestCrawlService(t, jobs, cache)

		// First pass: the insert fails and, critically, nothing marks the
		// target as seen. No Set expectation keeps the mock honest.
		cache.EXPECT().Exists(gomock.Any(), gomock.Any()).Return(false, nil)
		jobs.EXPECT().HasActiveOrSucceededByDedupKey(gomock.Any(), gomock.Any()).Return(false, nil)
		jobs.EXPECT().Create(gomock.Any(), gomock.Any()).Return(nil, errors.New("db down"))

		in := PlanInput{
			CreatorProfileID: "profile-1",
			ParentType:       model.JobTypeLinkPage,
			Targets:          []string{"https://linktr.ee/examplecreator"},
		}
		_, err := svc.PlanFollowUps(context.Background(), in)
		require.Error(t, err)

		// The retried pass still sees the target as fresh and enqueues it.
		cache.EXPECT().Exists(gomock.Any(), gomock.Any()).Return(false, nil)
		jobs.EXPECT().HasActiveOrSucceededByDedupKey(gomock.Any(), gomock.Any()).Return(false, nil)
		jobs.EXPECT().Create(gomock.Any(), gomock.Any()).Return(&model.Job{ID: "job-2"}, nil)
		cache.EXPECT().Set(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(nil)

		enqueued, err := svc.PlanFollowUps(context.Background(), in)
		require.NoError(t, err)
		assert.Equal(t, 1, enqueued)
	})

	t.Run("already queued work backfills the marker", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		jobs := mocks.NewMockJobRepository(ctrl)
		cache := core.NewMockCacheRepository(ctrl)
		svc := newTestCrawlService(t, jobs, cache)

		cache.EXPECT().Exists(gomock.Any(), gomock.Any()).Return(false, nil)
		jobs.EXPECT().HasActiveOrSucceededByDedupKey(gomock.Any(), gomock.Any()).Return(true, nil)
		cache.EXPECT().Set(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(nil)

		enqueued, err := svc.PlanFollowUps(context.Background(), PlanInput{
			CreatorProfileID: "profile-1",
			ParentType:       model.JobTypeLinkPage,
			Targets:          []string{"https://linktr.ee/examplecreator"},
		})
		require.NoError(t, err)
		assert.Equal(t, 0, enqueued)
	})
}

func TestPlanFollowUpsPropagatesEnqueueError(t *testing.T) {
	ctrl := gomock.NewController(t)
	jobs := mocks.NewMockJobRepository(ctrl)
	svc := newTestCrawlService(t, jobs, nil)

	jobs.EXPECT().HasActiveOrSucceededByDedupKey(gomock.Any(), gomock.Any()).Return(false, nil)
	jobs.EXPECT().Create(gomock.Any(), gomock.Any()).Return(nil, errors.New("db down"))

	_, err := svc.PlanFollowUps(context.Background(), PlanInput{
		CreatorProfileID: "profile-1",
		ParentType:       model.JobTypeLinkPage,
		Targets:          []string{"https://linktr.ee/examplecreator"},
	})
	require.Error(t, err)
}
