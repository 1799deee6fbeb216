// Package model defines the core data types and structures used throughout the linkhound ingestion system.
package model

import (
	"errors"
	"time"
)

// LinkState is the visibility state of a social link.
type LinkState string

const (
	// LinkStateActive marks a high-confidence link shown on the public profile.
	LinkStateActive LinkState = "active"
	// LinkStateSuggested marks a mid-confidence link awaiting confirmation.
	LinkStateSuggested LinkState = "suggested"
	// LinkStateRejected marks a link explicitly rejected by a user or admin.
	// Ingestion never sets this state and never clears it.
	LinkStateRejected LinkState = "rejected"
)

// Valid returns true if the LinkState is valid.
func (s LinkState) Valid() bool {
	return s == LinkStateActive || s == LinkStateSuggested || s == LinkStateRejected
}

// SourceType records who asserted a link first.
type SourceType string

const (
	// SourceTypeManual marks a link the creator added themselves.
	SourceTypeManual SourceType = "manual"
	// SourceTypeAdmin marks a link added by an operator.
	SourceTypeAdmin SourceType = "admin"
	// SourceTypeIngested marks a link discovered by the ingestion pipeline.
	SourceTypeIngested SourceType = "ingested"
)

// Valid returns true if the SourceType is valid.
func (s SourceType) Valid() bool {
	return s == SourceTypeManual || s == SourceTypeAdmin || s == SourceTypeIngested
}

// Authoritative reports whether the source type outranks ingestion: links
// asserted by a person keep their state and confidence no matter what the
// merge engine later discovers.
func (s SourceType) Authoritative() bool {
	return s == SourceTypeManual || s == SourceTypeAdmin
}

// Evidence is one immutable signal contributing to a link's confidence.
// Evidence accumulates append-only; merge passes add records and never
// rewrite earlier ones, which keeps the confidence trail auditable.
type Evidence struct {
	// Signal names the kind of contribution: base_manual, base_admin,
	// base_ingested, handle_similarity, corroborating_source.
	Signal string `json:"signal"`
	// Source identifies where the signal came from, usually a source
	// platform tag or the canonical URL of the page that mentioned it.
	Source string `json:"source"`
	// Detail is a human-readable note, e.g. the similarity value.
	Detail string `json:"detail,omitempty"`
	// ObservedAt is when the signal was recorded.
	ObservedAt time.Time `json:"observed_at"`
}

// SocialLink is one consolidated link in a creator's canonical link set.
// Uniqueness over (creator_profile_id, platform, url) is the dedup boundary:
// the merge engine never creates two rows for one canonical identity.
type SocialLink struct {
	ID               string     `json:"id"                        db:"id"`
	CreatorProfileID string     `json:"creator_profile_id"        db:"creator_profile_id"`
	Platform         string     `json:"platform"                  db:"platform"`
	URL              string     `json:"url"                       db:"url"`
	Handle           *string    `json:"handle,omitempty"          db:"handle"`
	State            LinkState  `json:"state"                     db:"state"`
	Confidence       float64    `json:"confidence"                db:"confidence"`
	SourceType       SourceType `json:"source_type"               db:"source_type"`
	SourcePlatform   *string    `json:"source_platform,omitempty" db:"source_platform"`
	Evidence         []Evidence `json:"evidence"                  db:"evidence"`
	CreatedAt        time.Time  `json:"created_at"                db:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"                db:"updated_at"`
}

// Candidate is a link discovered by an extraction strategy, normalized and
// ready for the merge engine. URL and Platform come from the platform
// detector, so they are already canonical.
type Candidate struct {
	// CreatorProfileID is the profile the candidate belongs to.
	CreatorProfileID string `json:"creator_profile_id"`
	// Platform is the detected platform tag.
	Platform string `json:"platform"`
	// URL is the canonical URL.
	URL string `json:"url"`
	// Handle is the profile handle extracted from the URL, if any.
	Handle string `json:"handle,omitempty"`
	// SourcePlatform tags which strategy discovered the candidate.
	SourcePlatform string `json:"source_platform"`
	// SourceURL is the canonical URL of the page the candidate was found on.
	SourceURL string `json:"source_url"`
}

// Validate validates the Candidate fields.
func (c *Candidate) Validate() error {
	if c.CreatorProfileID == "" {
		return errors.New("creator profile id is required")
	}
	if c.Platform == "" {
		return errors.New("platform is required")
	}
	if c.URL == "" {
		return errors.New("url is required")
	}
	if c.SourcePlatform == "" {
		return errors.New("source platform is required")
	}
	return nil
}

// MergeOutcome summarizes one merge pass.
type MergeOutcome struct {
	Created   int `json:"created"`
	Updated   int `json:"updated"`
	Unchanged int `json:"unchanged"`
}

// Total returns the number of candidates the pass considered.
func (o MergeOutcome) Total() int {
	return o.Created + o.Updated + o.Unchanged
}

// UpdateLinkStateRequest represents a user or admin changing a link's
// visibility state, the only path that may set or clear rejected.
type UpdateLinkStateRequest struct {
	State LinkState  `json:"state"`
	Actor SourceType `json:"actor"`
}

// Validate validates the UpdateLinkStateRequest fields.
func (r *UpdateLinkStateRequest) Validate() error {
	if !r.State.Valid() {
		return errors.New("invalid link state")
	}
	if !r.Actor.Authoritative() {
		return errors.New("actor must be manual or admin")
	}
	return nil
}
