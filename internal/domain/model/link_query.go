//revive:disable-next-line:var-naming // legacy package name widely used across the project
package model

import "errors"

// LinkNaturalKey identifies the single social_links row for a canonical
// identity. The table carries a unique constraint over these three columns.
type LinkNaturalKey struct {
	CreatorProfileID string
	Platform         string
	URL              string
}

// CreateLinkRequest represents a request to insert a new social link.
type CreateLinkRequest struct {
	CreatorProfileID string     `json:"creator_profile_id"`
	Platform         string     `json:"platform"`
	URL              string     `json:"url"`
	Handle           *string    `json:"handle,omitempty"`
	State            LinkState  `json:"state"`
	Confidence       float64    `json:"confidence"`
	SourceType       SourceType `json:"source_type"`
	SourcePlatform   *string    `json:"source_platform,omitempty"`
	Evidence         []Evidence `json:"evidence,omitempty"`
}

// Validate validates the CreateLinkRequest fields.
func (r *CreateLinkRequest) Validate() error {
	if r.CreatorProfileID == "" {
		return errors.New("creator profile id is required")
	}
	if r.Platform == "" {
		return errors.New("platform is required")
	}
	if r.URL == "" {
		return errors.New("url is required")
	}
	if !r.State.Valid() {
		return errors.New("invalid link state")
	}
	if r.Confidence < 0 || r.Confidence > 1 {
		return errors.New("confidence must be between 0 and 1")
	}
	if !r.SourceType.Valid() {
		return errors.New("invalid source type")
	}
	return nil
}

// LinkListOptions groups parameters for listing social links.
type LinkListOptions struct {
	CreatorProfileID string
	State            *LinkState // Optional filter by state (active, suggested, rejected)
	Platform         *string    // Optional filter by platform tag
	Limit            int
	Offset           int
}
