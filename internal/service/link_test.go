package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/linkhound/ingest/internal/domain/model"
	"github.com/linkhound/ingest/internal/mocks"
)

func newTestLinkService(t *testing.T, links *mocks.MockLinkRepository) *LinkService {
	t.Helper()
	svc, err := NewLinkService(LinkServiceOptions{Links: links})
	require.NoError(t, err)
	return svc
}

func TestNewLinkServiceRequiresRepository(t *testing.T) {
	_, err := NewLinkService(LinkServiceOptions{})
	require.Error(t, err)
}

func TestLinkListByProfile(t *testing.T) {
	ctrl := gomock.NewController(t)
	links := mocks.NewMockLinkRepository(ctrl)
	svc := newTestLinkService(t, links)

	t.Run("requires profile id", func(t *testing.T) {
		_, err := svc.ListByProfile(context.Background(), model.LinkListOptions{})
		require.Error(t, err)
	})

	t.Run("normalizes pagination", func(t *testing.T) {
		state := model.LinkStateActive
		links.EXPECT().
			ListByProfile(gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, opts model.LinkListOptions) ([]*model.SocialLink, error) {
				assert.Equal(t, "profile-1", opts.CreatorProfileID)
				assert.Equal(t, 1000, opts.Limit)
				assert.Equal(t, 0, opts.Offset)
				require.NotNil(t, opts.State)
				assert.Equal(t, model.LinkStateActive, *opts.State)
				return []*model.SocialLink{}, nil
			})

		_, err := svc.ListByProfile(context.Background(), model.LinkListOptions{
			CreatorProfileID: "profile-1",
			State:            &state,
			Limit:            5000,
			Offset:           -1,
		})
		require.NoError(t, err)
	})
}

func TestLinkSetState(t *testing.T) {
	ctrl := gomock.NewController(t)
	links := mocks.NewMockLinkRepository(ctrl)
	svc := newTestLinkService(t, links)

	t.Run("requires link id", func(t *testing.T) {
		_, err := svc.SetState(context.Background(), "", &model.UpdateLinkStateRequest{
			State: model.LinkStateRejected,
			Actor: model.SourceTypeAdmin,
		})
		require.Error(t, err)
	})

	t.Run("rejects ingestion as actor", func(t *testing.T) {
		_, err := svc.SetState(context.Background(), "link-1", &model.UpdateLinkStateRequest{
			State: model.LinkStateActive,
			Actor: model.SourceTypeIngested,
		})
		require.Error(t, err)
	})

	t.Run("admin may reverse a rejection", func(t *testing.T) {
		req := &model.UpdateLinkStateRequest{
			State: model.LinkStateSuggested,
			Actor: model.SourceTypeAdmin,
		}
		links.EXPECT().
			UpdateState(gomock.Any(), "link-1", req).
			Return(&model.SocialLink{ID: "link-1", State: model.LinkStateSuggested}, nil)

		link, err := svc.SetState(context.Background(), "link-1", req)
		require.NoError(t, err)
		assert.Equal(t, model.LinkStateSuggested, link.State)
	})
}

func TestLinkDelete(t *testing.T) {
	ctrl := gomock.NewController(t)
	links := mocks.NewMockLinkRepository(ctrl)
	svc := newTestLinkService(t, links)

	t.Run("requires link id", func(t *testing.T) {
		_, err := svc.Delete(context.Background(), "")
		require.Error(t, err)
	})

	t.Run("forwards to repository", func(t *testing.T) {
		links.EXPECT().Delete(gomock.Any(), "link-1").Return(true, nil)
		deleted, err := svc.Delete(context.Background(), "link-1")
		require.NoError(t, err)
		assert.True(t, deleted)
	})
}
