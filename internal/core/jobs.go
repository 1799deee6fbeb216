package core

import (
	"github.com/linkhound/ingest/internal/domain/model"
)

// JobType represents the type of job to be executed (re-exported from types package).
// This is re-exported here for use in HTTP handlers to avoid direct coupling to the types package.
type JobType = model.JobType

// CreateJobRequest represents a request to create a new job (re-exported from types package).
// This is re-exported here for use in HTTP handlers to avoid direct coupling to the types package.
type CreateJobRequest = model.CreateJobRequest
