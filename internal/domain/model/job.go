// Package model defines the core data types and structures used throughout the linkhound ingestion system.
package model

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// JobType represents the extraction strategy a job dispatches to.
//
//nolint:recvcheck // UnmarshalText needs pointer receiver, Valid needs value receiver
type JobType string

// JobStatus represents the current status of a job.
type JobStatus string

const (
	// JobTypeLinkPage represents a link-aggregator page scrape (linktr.ee, beacons.ai).
	JobTypeLinkPage JobType = "linkpage"
	// JobTypeDropPage represents a drop-page JSON API fetch (laylo.com).
	JobTypeDropPage JobType = "droppage"
	// JobTypeVideoChannel represents a video channel about-page scrape.
	JobTypeVideoChannel JobType = "videochannel"

	// JobStatusPending indicates a job is waiting to be claimed.
	JobStatusPending JobStatus = "pending"
	// JobStatusProcessing indicates a job is claimed by a worker.
	JobStatusProcessing JobStatus = "processing"
	// JobStatusSucceeded indicates a job finished successfully.
	JobStatusSucceeded JobStatus = "succeeded"
	// JobStatusFailed indicates a job exhausted its attempts or hit a
	// non-retryable error.
	JobStatusFailed JobStatus = "failed"
)

// UnmarshalText implements encoding.TextUnmarshaler for JobType to allow env parsing.
func (t *JobType) UnmarshalText(text []byte) error {
	v := strings.ToLower(strings.TrimSpace(string(text)))
	jt := JobType(v)
	if jt.Valid() {
		*t = jt
		return nil
	}
	return fmt.Errorf("invalid JobType: %q", v)
}

// ErrNoJobsAvailable is returned when no jobs are available for claiming.
var ErrNoJobsAvailable = errors.New("no jobs available")

// Valid returns true if the JobType is valid.
func (t JobType) Valid() bool {
	return t == JobTypeLinkPage || t == JobTypeDropPage || t == JobTypeVideoChannel
}

// Valid returns true if the JobStatus is valid.
func (s JobStatus) Valid() bool {
	return s == JobStatusPending || s == JobStatusProcessing || s == JobStatusSucceeded ||
		s == JobStatusFailed
}

// Terminal returns true for statuses that end a job's lifecycle. The dedup
// uniqueness constraint only covers non-terminal rows, so a new job for the
// same target may be enqueued once the previous one is terminal.
func (s JobStatus) Terminal() bool {
	return s == JobStatusSucceeded || s == JobStatusFailed
}

// JobPayload is the strategy input serialized into a job's payload column.
// Field names are part of the wire contract with the admin collaborator.
type JobPayload struct {
	SourceURL        string          `json:"sourceUrl"`
	CreatorProfileID string          `json:"creatorProfileId"`
	Depth            int             `json:"depth"`
	StrategyOptions  json.RawMessage `json:"strategyOptions,omitempty"`
}

// Validate validates the JobPayload fields.
func (p *JobPayload) Validate() error {
	if strings.TrimSpace(p.SourceURL) == "" {
		return errors.New("sourceUrl is required")
	}
	if strings.TrimSpace(p.CreatorProfileID) == "" {
		return errors.New("creatorProfileId is required")
	}
	if p.Depth < 0 {
		return errors.New("depth must be >= 0")
	}
	return nil
}

// DedupKey derives the deterministic scheduling key for a job targeting
// canonicalURL. Identical (type, profile, target) triples always produce the
// same key, which the jobs table constrains to one non-terminal row.
func DedupKey(jobType JobType, creatorProfileID, canonicalURL string) string {
	sum := sha256.Sum256([]byte(string(jobType) + "\x00" + creatorProfileID + "\x00" + canonicalURL))
	return hex.EncodeToString(sum[:])
}

// Job represents an ingestion job with all its scheduling metadata.
type Job struct {
	ID               string          `json:"id"                         db:"id"`
	Type             JobType         `json:"type"                       db:"type"`
	Status           JobStatus       `json:"status"                     db:"status"`
	Priority         int             `json:"priority"                   db:"priority"`
	Payload          json.RawMessage `json:"payload"                    db:"payload"`
	Metadata         json.RawMessage `json:"metadata,omitempty"         db:"metadata"`
	DedupKey         string          `json:"dedup_key"                  db:"dedup_key"`
	CreatorProfileID string          `json:"creator_profile_id"         db:"creator_profile_id"`
	Attempts         int             `json:"attempts"                   db:"attempts"`
	MaxAttempts      int             `json:"max_attempts"               db:"max_attempts"`
	RunAt            time.Time       `json:"run_at"                     db:"run_at"`
	StartedAt        *time.Time      `json:"started_at,omitempty"       db:"started_at"`
	CompletedAt      *time.Time      `json:"completed_at,omitempty"     db:"completed_at"`
	LastError        *string         `json:"last_error,omitempty"       db:"last_error"`
	ErrorClass       *string         `json:"error_class,omitempty"      db:"error_class"`
	ClaimedBy        *string         `json:"claimed_by,omitempty"       db:"claimed_by"`
	LeaseExpiresAt   *time.Time      `json:"lease_expires_at,omitempty" db:"lease_expires_at"`
	CreatedAt        time.Time       `json:"created_at"                 db:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"                 db:"updated_at"`
}

// ParsedPayload decodes the job's payload column.
func (j *Job) ParsedPayload() (*JobPayload, error) {
	var p JobPayload
	if err := json.Unmarshal(j.Payload, &p); err != nil {
		return nil, fmt.Errorf("decode job payload: %w", err)
	}
	return &p, nil
}

// CreateJobRequest represents a request to enqueue a new ingestion job.
// Metadata carries internal scheduling annotations (task name, fire key) and
// is never part of the strategy input.
type CreateJobRequest struct {
	Type        JobType         `json:"type"`
	Payload     JobPayload      `json:"payload"`
	Metadata    json.RawMessage `json:"metadata,omitempty"`
	Priority    int             `json:"priority,omitempty"`
	RunAt       *time.Time      `json:"run_at,omitempty"`
	MaxAttempts int             `json:"max_attempts,omitempty"`
}

// Validate validates the CreateJobRequest fields.
func (r *CreateJobRequest) Validate() error {
	if !r.Type.Valid() {
		return errors.New("invalid job type")
	}
	if err := r.Payload.Validate(); err != nil {
		return err
	}
	if r.Priority < 0 || r.Priority > 100 {
		return errors.New("priority must be between 0 and 100")
	}
	if r.MaxAttempts < 0 {
		return errors.New("max attempts must be >= 0")
	}
	return nil
}

// JobStats represents counts of jobs in each state for one job type.
type JobStats struct {
	Pending    int `json:"pending"`
	Processing int `json:"processing"`
	Succeeded  int `json:"succeeded"`
	Failed     int `json:"failed"`
}

// JobStatusResponse represents the status information for a specific job.
type JobStatusResponse struct {
	Status      JobStatus  `json:"status"`
	Attempts    int        `json:"attempts"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	LastError   *string    `json:"last_error,omitempty"`
	ErrorClass  *string    `json:"error_class,omitempty"`
}
