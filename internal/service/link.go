package service

import (
	"context"
	"errors"

	"github.com/linkhound/ingest/internal/core"
	"github.com/linkhound/ingest/internal/domain/model"
)

// LinkServiceOptions groups dependencies for LinkService.
type LinkServiceOptions struct {
	Links core.LinkRepository // Required: social link repository
}

// LinkService is the read and manual-override surface over the consolidated
// link set. Ingestion writes go through MergeService; this service carries
// the human paths, including the only one that may set or clear rejected.
type LinkService struct {
	links core.LinkRepository
}

// NewLinkService constructs a new LinkService.
func NewLinkService(opts LinkServiceOptions) (*LinkService, error) {
	if opts.Links == nil {
		return nil, errors.New("link repository is required")
	}
	return &LinkService{links: opts.Links}, nil
}

// GetByID returns a link by id.
func (s *LinkService) GetByID(ctx context.Context, id string) (*model.SocialLink, error) {
	return s.links.GetByID(ctx, id)
}

// ListByProfile returns a profile's links with optional state and platform
// filters, for the profile-rendering and dashboard collaborators.
func (s *LinkService) ListByProfile(ctx context.Context, opts model.LinkListOptions) ([]*model.SocialLink, error) {
	if opts.CreatorProfileID == "" {
		return nil, errors.New("creator profile id is required")
	}
	opts.Limit, opts.Offset = normalizePagination(opts.Limit, opts.Offset)
	return s.links.ListByProfile(ctx, opts)
}

// SetState applies a manual or admin state override. This is the explicit
// human action that rejection stickiness defers to: only calls through here
// may set rejected, and only calls through here may reverse it.
func (s *LinkService) SetState(ctx context.Context, id string, req *model.UpdateLinkStateRequest) (*model.SocialLink, error) {
	if id == "" {
		return nil, errors.New("link id is required")
	}
	if req == nil {
		return nil, errors.New("update request is required")
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}
	return s.links.UpdateState(ctx, id, req)
}

// Delete removes a link by id.
func (s *LinkService) Delete(ctx context.Context, id string) (bool, error) {
	if id == "" {
		return false, errors.New("link id is required")
	}
	return s.links.Delete(ctx, id)
}
