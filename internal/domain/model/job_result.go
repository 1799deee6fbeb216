//revive:disable-next-line:var-naming // legacy package name widely used across the project
package model

import (
	"encoding/json"
	"time"
)

// JobResult represents persisted per-run extraction details.
// JobID may be nil if the parent job has been pruned while preserving run history.
type JobResult struct {
	JobID     *string         `json:"job_id"     db:"job_id"`
	JobType   JobType         `json:"job_type"   db:"job_type"`
	Result    json.RawMessage `json:"result"     db:"result"`
	CreatedAt time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt time.Time       `json:"updated_at" db:"updated_at"`
}

// IngestRunSummary is the result document recorded after each job run.
type IngestRunSummary struct {
	SourceURL       string `json:"source_url"`
	CandidatesFound int    `json:"candidates_found"`
	LinksCreated    int    `json:"links_created"`
	LinksUpdated    int    `json:"links_updated"`
	LinksUnchanged  int    `json:"links_unchanged"`
	FollowUps       int    `json:"follow_ups"`
	Depth           int    `json:"depth"`
}
