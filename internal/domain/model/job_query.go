//revive:disable-next-line:var-naming // legacy package name widely used across the project
package model

// JobListByProfileOptions groups parameters for listing jobs by creator profile.
type JobListByProfileOptions struct {
	CreatorProfileID string
	Limit            int
	Offset           int
}

// JobListOptions groups parameters for listing all jobs with optional filters (admin view).
type JobListOptions struct {
	Status           *JobStatus // Optional filter by status (pending, processing, succeeded, failed)
	Type             *JobType   // Optional filter by type (linkpage, droppage, videochannel)
	CreatorProfileID *string    // Optional filter by creator_profile_id
	SortBy           string     // Sort field: "created_at", "run_at", "status", "type" (default: "created_at")
	SortOrder        string     // Sort order: "asc", "desc" (default: "desc")
	Limit            int        // Pagination limit
	Offset           int        // Pagination offset
}
