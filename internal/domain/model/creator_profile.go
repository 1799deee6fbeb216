// Package model defines the core data types and structures used throughout the linkhound ingestion system.
package model

import (
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

const (
	// maxDisplayNameLen is the maximum allowed length for creator display names in characters.
	maxDisplayNameLen = 255
	// maxHandleLen is the maximum allowed length for creator handles.
	maxHandleLen = 64
)

// IngestionStatus reflects whether ingestion work is currently running for a
// profile. It is owned by the job runner: every transition to processing has
// a matching transition back on success, retry, and terminal failure.
type IngestionStatus string

const (
	// IngestionStatusIdle means no ingestion job is running for the profile.
	IngestionStatusIdle IngestionStatus = "idle"
	// IngestionStatusProcessing means a worker currently holds a job for the profile.
	IngestionStatusProcessing IngestionStatus = "processing"
	// IngestionStatusFailed means the most recent job failed terminally.
	IngestionStatusFailed IngestionStatus = "failed"
)

// Valid returns true if the IngestionStatus is valid.
func (s IngestionStatus) Valid() bool {
	return s == IngestionStatusIdle || s == IngestionStatusProcessing || s == IngestionStatusFailed
}

// CreatorProfile represents a creator whose public links are ingested.
type CreatorProfile struct {
	ID                 string          `json:"id"                             db:"id"`
	DisplayName        string          `json:"display_name"                   db:"display_name"`
	Handle             string          `json:"handle"                         db:"handle"`
	AvatarURL          *string         `json:"avatar_url,omitempty"           db:"avatar_url"`
	IngestionStatus    IngestionStatus `json:"ingestion_status"               db:"ingestion_status"`
	LastIngestionError *string         `json:"last_ingestion_error,omitempty" db:"last_ingestion_error"`
	LastIngestedAt     *time.Time      `json:"last_ingested_at,omitempty"     db:"last_ingested_at"`
	CreatedAt          time.Time       `json:"created_at"                     db:"created_at"`
	UpdatedAt          time.Time       `json:"updated_at"                     db:"updated_at"`
}

// CreateCreatorProfileRequest represents a request to create a new creator profile.
type CreateCreatorProfileRequest struct {
	DisplayName string  `json:"display_name"`
	Handle      string  `json:"handle"`
	AvatarURL   *string `json:"avatar_url,omitempty"`
}

// Validate validates the CreateCreatorProfileRequest fields.
func (r *CreateCreatorProfileRequest) Validate() error {
	if strings.TrimSpace(r.DisplayName) == "" {
		return errors.New("display name is required and cannot be empty")
	}
	if utf8.RuneCountInString(r.DisplayName) > maxDisplayNameLen {
		return fmt.Errorf("display name cannot exceed %d characters", maxDisplayNameLen)
	}
	return validateHandle(r.Handle)
}

// UpdateCreatorProfileRequest represents a request to update an existing creator profile.
type UpdateCreatorProfileRequest struct {
	DisplayName *string `json:"display_name,omitempty"`
	Handle      *string `json:"handle,omitempty"`
	AvatarURL   *string `json:"avatar_url,omitempty"`
}

// Validate validates the UpdateCreatorProfileRequest fields and ensures at least one field is being updated.
func (r *UpdateCreatorProfileRequest) Validate() error {
	if !r.HasUpdates() {
		return errors.New("at least one field must be updated")
	}
	if r.DisplayName != nil {
		if strings.TrimSpace(*r.DisplayName) == "" {
			return errors.New("display name cannot be empty")
		}
		if utf8.RuneCountInString(*r.DisplayName) > maxDisplayNameLen {
			return fmt.Errorf("display name cannot exceed %d characters", maxDisplayNameLen)
		}
	}
	if r.Handle != nil {
		if err := validateHandle(*r.Handle); err != nil {
			return err
		}
	}
	return nil
}

// HasUpdates returns true if the UpdateCreatorProfileRequest has any fields to update.
func (r *UpdateCreatorProfileRequest) HasUpdates() bool {
	return r.DisplayName != nil || r.Handle != nil || r.AvatarURL != nil
}

func validateHandle(handle string) error {
	trimmed := strings.TrimSpace(handle)
	if trimmed == "" {
		return errors.New("handle is required and cannot be empty")
	}
	if len(trimmed) > maxHandleLen {
		return fmt.Errorf("handle cannot exceed %d characters", maxHandleLen)
	}
	for _, r := range trimmed {
		valid := (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') ||
			r == '.' || r == '_' || r == '-'
		if !valid {
			return errors.New("handle may only contain lowercase letters, digits, '.', '_' and '-'")
		}
	}
	return nil
}
