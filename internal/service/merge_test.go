package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/linkhound/ingest/internal/core"
	"github.com/linkhound/ingest/internal/domain/model"
	"github.com/linkhound/ingest/internal/domain/scoring"
	"github.com/linkhound/ingest/internal/mocks"
)

func newTestMergeService(t *testing.T, links *mocks.MockLinkRepository) *MergeService {
	t.Helper()
	svc, err := NewMergeService(MergeServiceOptions{
		Links:  links,
		Scorer: scoring.NewScorer(scoring.ScorerOptions{}),
	})
	require.NoError(t, err)

	// The pass opens one transaction and works through the scoped repository
	// it yields; the mock plays both roles.
	links.EXPECT().
		InTransaction(gomock.Any(), gomock.Any()).
		DoAndReturn(func(ctx context.Context, fn func(core.LinkRepository) error) error {
			return fn(links)
		}).
		AnyTimes()
	return svc
}

func ingestedCandidate(profileID, plat, url, handle, sourcePlatform string) model.Candidate {
	return model.Candidate{
		CreatorProfileID: profileID,
		Platform:         plat,
		URL:              url,
		Handle:           handle,
		SourcePlatform:   sourcePlatform,
		SourceURL:        "https://linktr.ee/examplecreator",
	}
}

func TestNewMergeService(t *testing.T) {
	t.Run("requires link repository", func(t *testing.T) {
		_, err := NewMergeService(MergeServiceOptions{
			Scorer: scoring.NewScorer(scoring.ScorerOptions{}),
		})
		require.Error(t, err)
	})

	t.Run("requires scorer", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		_, err := NewMergeService(MergeServiceOptions{
			Links: mocks.NewMockLinkRepository(ctrl),
		})
		require.Error(t, err)
	})
}

func TestMergeCreatesNewLink(t *testing.T) {
	ctrl := gomock.NewController(t)
	links := mocks.NewMockLinkRepository(ctrl)
	svc := newTestMergeService(t, links)

	cand := ingestedCandidate("profile-1", "instagram",
		"https://instagram.com/examplecreator", "examplecreator", "linktree")

	links.EXPECT().
		FindByNaturalKey(gomock.Any(), model.LinkNaturalKey{
			CreatorProfileID: "profile-1",
			Platform:         "instagram",
			URL:              "https://instagram.com/examplecreator",
		}).
		Return(nil, nil)
	links.EXPECT().
		Create(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, req *model.CreateLinkRequest) (*model.SocialLink, error) {
			assert.Equal(t, "profile-1", req.CreatorProfileID)
			assert.Equal(t, model.SourceTypeIngested, req.SourceType)
			require.NotNil(t, req.Handle)
			assert.Equal(t, "examplecreator", *req.Handle)
			require.NotNil(t, req.SourcePlatform)
			assert.Equal(t, "linktree", *req.SourcePlatform)
			// base 0.20 plus exact-handle bonus 0.20, below the active threshold
			assert.InDelta(t, 0.40, req.Confidence, 0.001)
			assert.Equal(t, model.LinkStateSuggested, req.State)
			assert.NotEmpty(t, req.Evidence)
			return &model.SocialLink{ID: "link-1"}, nil
		})

	outcome, err := svc.Merge(context.Background(), MergeInput{
		CreatorProfileID: "profile-1",
		CreatorHandle:    "examplecreator",
		Candidates:       []model.Candidate{cand},
	})
	require.NoError(t, err)
	assert.Equal(t, model.MergeOutcome{Created: 1}, outcome)
}

func TestMergeManualAuthorityPreserved(t *testing.T) {
	ctrl := gomock.NewController(t)
	links := mocks.NewMockLinkRepository(ctrl)
	svc := newTestMergeService(t, links)

	handle := "examplecreator"
	existing := &model.SocialLink{
		ID:               "link-1",
		CreatorProfileID: "profile-1",
		Platform:         "instagram",
		URL:              "https://instagram.com/examplecreator",
		Handle:           &handle,
		State:            model.LinkStateActive,
		Confidence:       0.60,
		SourceType:       model.SourceTypeManual,
		UpdatedAt:        time.Now(),
	}

	links.EXPECT().FindByNaturalKey(gomock.Any(), gomock.Any()).Return(existing, nil)
	links.EXPECT().
		UpdateMerge(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, params core.UpdateLinkMergeParams) (*model.SocialLink, error) {
			assert.Equal(t, model.LinkStateActive, params.State)
			assert.Equal(t, 0.60, params.Confidence)
			assert.NotEmpty(t, params.AppendEvidence)
			assert.Equal(t, existing.UpdatedAt, params.ExpectedUpdatedAt)
			return existing, nil
		})

	outcome, err := svc.Merge(context.Background(), MergeInput{
		CreatorProfileID: "profile-1",
		Candidates: []model.Candidate{
			ingestedCandidate("profile-1", "instagram",
				"https://instagram.com/examplecreator", "examplecreator", "linktree"),
		},
	})
	require.NoError(t, err)
	assert.Equal(t, model.MergeOutcome{Unchanged: 1}, outcome)
}

func TestMergeRejectedStateIsSticky(t *testing.T) {
	ctrl := gomock.NewController(t)
	links := mocks.NewMockLinkRepository(ctrl)
	svc := newTestMergeService(t, links)

	existing := &model.SocialLink{
		ID:               "link-1",
		CreatorProfileID: "profile-1",
		Platform:         "instagram",
		URL:              "https://instagram.com/examplecreator",
		State:            model.LinkStateRejected,
		Confidence:       0.40,
		SourceType:       model.SourceTypeIngested,
	}

	links.EXPECT().FindByNaturalKey(gomock.Any(), gomock.Any()).Return(existing, nil)
	links.EXPECT().
		UpdateMerge(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, params core.UpdateLinkMergeParams) (*model.SocialLink, error) {
			assert.Equal(t, model.LinkStateRejected, params.State)
			assert.Equal(t, 0.40, params.Confidence)
			assert.NotEmpty(t, params.AppendEvidence)
			return existing, nil
		})

	outcome, err := svc.Merge(context.Background(), MergeInput{
		CreatorProfileID: "profile-1",
		CreatorHandle:    "examplecreator",
		Candidates: []model.Candidate{
			ingestedCandidate("profile-1", "instagram",
				"https://instagram.com/examplecreator", "examplecreator", "linktree"),
		},
	})
	require.NoError(t, err)
	assert.Equal(t, model.MergeOutcome{Unchanged: 1}, outcome)
}

func TestMergeCorroborationRaisesConfidence(t *testing.T) {
	ctrl := gomock.NewController(t)
	links := mocks.NewMockLinkRepository(ctrl)
	svc := newTestMergeService(t, links)

	existing := &model.SocialLink{
		ID:               "link-1",
		CreatorProfileID: "profile-1",
		Platform:         "instagram",
		URL:              "https://instagram.com/examplecreator",
		State:            model.LinkStateSuggested,
		Confidence:       0.20,
		SourceType:       model.SourceTypeIngested,
		Evidence: []model.Evidence{
			{Signal: scoring.SignalBaseIngested, Source: "linktree"},
		},
	}

	links.EXPECT().FindByNaturalKey(gomock.Any(), gomock.Any()).Return(existing, nil)
	links.EXPECT().
		UpdateMerge(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, params core.UpdateLinkMergeParams) (*model.SocialLink, error) {
			// base 0.20 plus one corroborating source 0.15
			assert.InDelta(t, 0.35, params.Confidence, 0.001)
			assert.Equal(t, model.LinkStateSuggested, params.State)
			assert.Len(t, params.AppendEvidence, 2)
			return existing, nil
		})

	outcome, err := svc.Merge(context.Background(), MergeInput{
		CreatorProfileID: "profile-1",
		Candidates: []model.Candidate{
			ingestedCandidate("profile-1", "instagram",
				"https://instagram.com/examplecreator", "", "laylo"),
		},
	})
	require.NoError(t, err)
	assert.Equal(t, model.MergeOutcome{Updated: 1}, outcome)
}

func TestMergeAmbiguousPlatformNeverActivates(t *testing.T) {
	ctrl := gomock.NewController(t)
	links := mocks.NewMockLinkRepository(ctrl)
	svc := newTestMergeService(t, links)

	// Three independent prior sources push the rescore past the active
	// threshold, but a second candidate on the same platform makes the
	// pass ambiguous.
	existing := &model.SocialLink{
		ID:               "link-1",
		CreatorProfileID: "profile-1",
		Platform:         "instagram",
		URL:              "https://instagram.com/examplecreator",
		State:            model.LinkStateSuggested,
		Confidence:       0.70,
		SourceType:       model.SourceTypeIngested,
		Evidence: []model.Evidence{
			{Signal: scoring.SignalBaseIngested, Source: "linktree"},
			{Signal: scoring.SignalCorroboratingSource, Source: "laylo"},
			{Signal: scoring.SignalCorroboratingSource, Source: "youtube"},
		},
	}

	links.EXPECT().FindByNaturalKey(gomock.Any(), model.LinkNaturalKey{
		CreatorProfileID: "profile-1",
		Platform:         "instagram",
		URL:              "https://instagram.com/examplecreator",
	}).Return(existing, nil)
	links.EXPECT().
		UpdateMerge(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, params core.UpdateLinkMergeParams) (*model.SocialLink, error) {
			assert.Greater(t, params.Confidence, 0.75)
			assert.Equal(t, model.LinkStateSuggested, params.State)
			return existing, nil
		})
	links.EXPECT().FindByNaturalKey(gomock.Any(), model.LinkNaturalKey{
		CreatorProfileID: "profile-1",
		Platform:         "instagram",
		URL:              "https://instagram.com/othercreator",
	}).Return(nil, nil)
	links.EXPECT().
		Create(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, req *model.CreateLinkRequest) (*model.SocialLink, error) {
			assert.Equal(t, model.LinkStateSuggested, req.State)
			return &model.SocialLink{ID: "link-2"}, nil
		})

	outcome, err := svc.Merge(context.Background(), MergeInput{
		CreatorProfileID: "profile-1",
		CreatorHandle:    "examplecreator",
		Candidates: []model.Candidate{
			ingestedCandidate("profile-1", "instagram",
				"https://instagram.com/examplecreator", "examplecreator", "beacons"),
			ingestedCandidate("profile-1", "instagram",
				"https://instagram.com/othercreator", "othercreator", "beacons"),
		},
	})
	require.NoError(t, err)
	assert.Equal(t, model.MergeOutcome{Created: 1, Updated: 1}, outcome)
}

func TestMergeActiveStateNeverDemoted(t *testing.T) {
	ctrl := gomock.NewController(t)
	links := mocks.NewMockLinkRepository(ctrl)
	svc := newTestMergeService(t, links)

	existing := &model.SocialLink{
		ID:               "link-1",
		CreatorProfileID: "profile-1",
		Platform:         "instagram",
		URL:              "https://instagram.com/examplecreator",
		State:            model.LinkStateActive,
		Confidence:       0.80,
		SourceType:       model.SourceTypeIngested,
	}

	links.EXPECT().FindByNaturalKey(gomock.Any(), gomock.Any()).Return(existing, nil)
	links.EXPECT().
		UpdateMerge(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, params core.UpdateLinkMergeParams) (*model.SocialLink, error) {
			assert.Equal(t, model.LinkStateActive, params.State)
			assert.Equal(t, 0.80, params.Confidence)
			return existing, nil
		})

	outcome, err := svc.Merge(context.Background(), MergeInput{
		CreatorProfileID: "profile-1",
		Candidates: []model.Candidate{
			ingestedCandidate("profile-1", "instagram",
				"https://instagram.com/examplecreator", "", "linktree"),
		},
	})
	require.NoError(t, err)
	assert.Equal(t, model.MergeOutcome{Unchanged: 1}, outcome)
}

func TestMergeRetriesOptimisticMiss(t *testing.T) {
	ctrl := gomock.NewController(t)
	links := mocks.NewMockLinkRepository(ctrl)
	svc := newTestMergeService(t, links)

	existing := &model.SocialLink{
		ID:               "link-1",
		CreatorProfileID: "profile-1",
		Platform:         "instagram",
		URL:              "https://instagram.com/examplecreator",
		State:            model.LinkStateSuggested,
		Confidence:       0.20,
		SourceType:       model.SourceTypeIngested,
	}

	gomock.InOrder(
		links.EXPECT().FindByNaturalKey(gomock.Any(), gomock.Any()).Return(existing, nil),
		links.EXPECT().UpdateMerge(gomock.Any(), gomock.Any()).Return(nil, nil),
		links.EXPECT().FindByNaturalKey(gomock.Any(), gomock.Any()).Return(existing, nil),
		links.EXPECT().UpdateMerge(gomock.Any(), gomock.Any()).Return(existing, nil),
	)

	outcome, err := svc.Merge(context.Background(), MergeInput{
		CreatorProfileID: "profile-1",
		Candidates: []model.Candidate{
			ingestedCandidate("profile-1", "instagram",
				"https://instagram.com/examplecreator", "", "linktree"),
		},
	})
	require.NoError(t, err)
	assert.Equal(t, model.MergeOutcome{Unchanged: 1}, outcome)
}

func TestMergeInsertRaceFallsBackToUpdate(t *testing.T) {
	ctrl := gomock.NewController(t)
	links := mocks.NewMockLinkRepository(ctrl)
	svc := newTestMergeService(t, links)

	existing := &model.SocialLink{
		ID:               "link-1",
		CreatorProfileID: "profile-1",
		Platform:         "instagram",
		URL:              "https://instagram.com/examplecreator",
		State:            model.LinkStateSuggested,
		Confidence:       0.20,
		SourceType:       model.SourceTypeIngested,
	}

	gomock.InOrder(
		links.EXPECT().FindByNaturalKey(gomock.Any(), gomock.Any()).Return(nil, nil),
		links.EXPECT().Create(gomock.Any(), gomock.Any()).
			Return(nil, errors.New("social link already exists")),
		links.EXPECT().FindByNaturalKey(gomock.Any(), gomock.Any()).Return(existing, nil),
		links.EXPECT().UpdateMerge(gomock.Any(), gomock.Any()).Return(existing, nil),
	)

	outcome, err := svc.Merge(context.Background(), MergeInput{
		CreatorProfileID: "profile-1",
		Candidates: []model.Candidate{
			ingestedCandidate("profile-1", "instagram",
				"https://instagram.com/examplecreator", "", "linktree"),
		},
	})
	require.NoError(t, err)
	assert.Equal(t, model.MergeOutcome{Unchanged: 1}, outcome)
}

func TestMergeRetryLimitExceeded(t *testing.T) {
	ctrl := gomock.NewController(t)
	links := mocks.NewMockLinkRepository(ctrl)
	svc := newTestMergeService(t, links)

	existing := &model.SocialLink{
		ID:               "link-1",
		CreatorProfileID: "profile-1",
		Platform:         "instagram",
		URL:              "https://instagram.com/examplecreator",
		State:            model.LinkStateSuggested,
		Confidence:       0.20,
		SourceType:       model.SourceTypeIngested,
	}

	links.EXPECT().FindByNaturalKey(gomock.Any(), gomock.Any()).
		Return(existing, nil).Times(mergeRetryLimit)
	links.EXPECT().UpdateMerge(gomock.Any(), gomock.Any()).
		Return(nil, nil).Times(mergeRetryLimit)

	_, err := svc.Merge(context.Background(), MergeInput{
		CreatorProfileID: "profile-1",
		Candidates: []model.Candidate{
			ingestedCandidate("profile-1", "instagram",
				"https://instagram.com/examplecreator", "", "linktree"),
		},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "retry limit exceeded")
}

func TestMergeRejectsProfileMismatch(t *testing.T) {
	ctrl := gomock.NewController(t)
	links := mocks.NewMockLinkRepository(ctrl)
	svc := newTestMergeService(t, links)

	_, err := svc.Merge(context.Background(), MergeInput{
		CreatorProfileID: "profile-1",
		Candidates: []model.Candidate{
			ingestedCandidate("profile-2", "instagram",
				"https://instagram.com/examplecreator", "", "linktree"),
		},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "profile mismatch")
}

func TestMergeIdempotentSecondPass(t *testing.T) {
	ctrl := gomock.NewController(t)
	links := mocks.NewMockLinkRepository(ctrl)
	svc := newTestMergeService(t, links)

	existing := &model.SocialLink{
		ID:               "link-1",
		CreatorProfileID: "profile-1",
		Platform:         "instagram",
		URL:              "https://instagram.com/examplecreator",
		State:            model.LinkStateSuggested,
		Confidence:       0.20,
		SourceType:       model.SourceTypeIngested,
		Evidence: []model.Evidence{
			{Signal: scoring.SignalBaseIngested, Source: "linktree"},
		},
	}

	// Re-discovery from the same source adds no bonus and changes nothing.
	links.EXPECT().FindByNaturalKey(gomock.Any(), gomock.Any()).Return(existing, nil)
	links.EXPECT().
		UpdateMerge(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, params core.UpdateLinkMergeParams) (*model.SocialLink, error) {
			assert.Equal(t, existing.Confidence, params.Confidence)
			assert.Equal(t, existing.State, params.State)
			return existing, nil
		})

	outcome, err := svc.Merge(context.Background(), MergeInput{
		CreatorProfileID: "profile-1",
		Candidates: []model.Candidate{
			ingestedCandidate("profile-1", "instagram",
				"https://instagram.com/examplecreator", "", "linktree"),
		},
	})
	require.NoError(t, err)
	assert.Equal(t, model.MergeOutcome{Unchanged: 1}, outcome)
}

func TestMergePassAbortRunsInsideOneTransaction(t *testing.T) {
	ctrl := gomock.NewController(t)
	links := mocks.NewMockLinkRepository(ctrl)
	svc := newTestMergeService(t, links)

	gomock.InOrder(
		links.EXPECT().FindByNaturalKey(gomock.Any(), model.LinkNaturalKey{
			CreatorProfileID: "profile-1",
			Platform:         "instagram",
			URL:              "https://instagram.com/examplecreator",
		}).Return(nil, nil),
		links.EXPECT().Create(gomock.Any(), gomock.Any()).
			Return(&model.SocialLink{ID: "link-1"}, nil),
		// Candidate two aborts the pass; the transaction rolls the first
		// candidate's insert back with it.
		links.EXPECT().FindByNaturalKey(gomock.Any(), gomock.Any()).
			Return(nil, errors.New("connection reset")),
	)

	outcome, err := svc.Merge(context.Background(), MergeInput{
		CreatorProfileID: "profile-1",
		Candidates: []model.Candidate{
			ingestedCandidate("profile-1", "instagram",
				"https://instagram.com/examplecreator", "", "linktree"),
			ingestedCandidate("profile-1", "spotify",
				"https://open.spotify.com/artist/abc123", "", "linktree"),
		},
	})
	require.Error(t, err)
	assert.Equal(t, model.MergeOutcome{}, outcome, "an aborted pass reports no partial counts")
}

func TestMergeEmptyPassSkipsTransaction(t *testing.T) {
	ctrl := gomock.NewController(t)
	links := mocks.NewMockLinkRepository(ctrl)
	svc, err := NewMergeService(MergeServiceOptions{
		Links:  links,
		Scorer: scoring.NewScorer(scoring.ScorerOptions{}),
	})
	require.NoError(t, err)

	// No expectations on the mock: zero candidates never open a transaction.
	outcome, err := svc.Merge(context.Background(), MergeInput{CreatorProfileID: "profile-1"})
	require.NoError(t, err)
	assert.Equal(t, model.MergeOutcome{}, outcome)
}

func TestAmbiguousPlatforms(t *testing.T) {
	candidates := []model.Candidate{
		{Platform: "instagram", URL: "https://instagram.com/a"},
		{Platform: "instagram", URL: "https://instagram.com/b"},
		{Platform: "spotify", URL: "https://open.spotify.com/artist/x"},
		{Platform: "spotify", URL: "https://open.spotify.com/artist/x"},
	}

	ambiguous := ambiguousPlatforms(candidates)
	assert.True(t, ambiguous["instagram"])
	assert.False(t, ambiguous["spotify"])
}
