// Package httpx provides the JSON admin API for the link ingestion pipeline.
package httpx

import (
	"errors"
	"net/http"

	"github.com/linkhound/ingest/internal/data"
	"github.com/linkhound/ingest/internal/domain/model"
	"github.com/linkhound/ingest/internal/service"
)

// JobHandlers provides HTTP handlers for ingestion job operations.
type JobHandlers struct {
	Jobs     *service.JobService
	Profiles *service.ProfileService
}

// enqueueRequest is the body for enqueueing a top-level ingestion job.
type enqueueRequest struct {
	CreatorProfileID string `json:"creatorProfileId"`
	SourceURL        string `json:"sourceUrl"`
	Priority         int    `json:"priority,omitempty"`
}

// Enqueue handles requests to enqueue a depth-0 ingestion job for a profile
// source URL. The dedup key makes this idempotent: while an equivalent job is
// live, the existing job comes back instead of a duplicate.
func (h *JobHandlers) Enqueue(w http.ResponseWriter, r *http.Request) {
	var req enqueueRequest
	if !DecodeJSON(w, r, &req) {
		return
	}

	job, err := h.Profiles.EnqueueIngestion(r.Context(), service.EnqueueIngestionParams{
		ProfileID: req.CreatorProfileID,
		SourceURL: req.SourceURL,
		Priority:  req.Priority,
	})
	if err != nil {
		switch {
		case errors.Is(err, data.ErrProfileNotFound):
			WriteError(w, ErrorParams{Code: http.StatusNotFound, ErrCode: "profile_not_found", Err: err})
		default:
			WriteError(w, ErrorParams{Code: http.StatusBadRequest, ErrCode: "enqueue_failed", Err: err})
		}
		return
	}

	WriteJSON(w, http.StatusOK, job)
}

// GetJob handles requests to fetch a single job by id.
func (h *JobHandlers) GetJob(w http.ResponseWriter, r *http.Request) {
	jobID := r.PathValue("id")
	if jobID == "" {
		WriteError(
			w,
			ErrorParams{Code: http.StatusBadRequest, ErrCode: "invalid_path", Err: errors.New("job id is required")},
		)
		return
	}

	job, err := h.Jobs.GetByID(r.Context(), jobID)
	if err != nil {
		if errors.Is(err, data.ErrJobNotFound) {
			WriteError(
				w,
				ErrorParams{Code: http.StatusNotFound, ErrCode: "job_not_found", Err: errors.New("job not found")},
			)
		} else {
			WriteError(w, ErrorParams{Code: http.StatusInternalServerError, ErrCode: "get_job_failed", Err: errors.New("failed to get job")})
		}
		return
	}
	WriteJSON(w, http.StatusOK, job)
}

// GetStatus handles requests to retrieve the status of a specific job.
func (h *JobHandlers) GetStatus(w http.ResponseWriter, r *http.Request) {
	jobID := r.PathValue("id")
	if jobID == "" {
		WriteError(
			w,
			ErrorParams{Code: http.StatusBadRequest, ErrCode: "invalid_path", Err: errors.New("job id is required")},
		)
		return
	}

	status, err := h.Jobs.GetStatus(r.Context(), jobID)
	if err != nil {
		if errors.Is(err, data.ErrJobNotFound) {
			WriteError(
				w,
				ErrorParams{Code: http.StatusNotFound, ErrCode: "job_not_found", Err: errors.New("job not found")},
			)
		} else {
			WriteError(w, ErrorParams{Code: http.StatusInternalServerError, ErrCode: "get_status_failed", Err: errors.New("failed to get job status")})
		}
		return
	}
	WriteJSON(w, http.StatusOK, status)
}

const (
	defaultListLimit = 50
	maxListLimit     = 200
)

// ListJobs handles requests to list jobs with optional type/status/profile
// filters for the admin view.
func (h *JobHandlers) ListJobs(w http.ResponseWriter, r *http.Request) {
	opts := &model.JobListOptions{}
	opts.Limit, opts.Offset = ParseLimitOffset(r, defaultListLimit, maxListLimit)

	q := r.URL.Query()
	if v := q.Get("type"); v != "" {
		jt := model.JobType(v)
		if !jt.Valid() {
			WriteError(
				w,
				ErrorParams{Code: http.StatusBadRequest, ErrCode: "invalid_filter", Err: errors.New("invalid job type")},
			)
			return
		}
		opts.Type = &jt
	}
	if v := q.Get("status"); v != "" {
		st := model.JobStatus(v)
		if !st.Valid() {
			WriteError(
				w,
				ErrorParams{Code: http.StatusBadRequest, ErrCode: "invalid_filter", Err: errors.New("invalid job status")},
			)
			return
		}
		opts.Status = &st
	}
	if v := q.Get("profile"); v != "" {
		opts.CreatorProfileID = &v
	}

	jobs, err := h.Jobs.List(r.Context(), opts)
	if err != nil {
		WriteError(w, ErrorParams{Code: http.StatusInternalServerError, ErrCode: "list_failed", Err: errors.New("failed to list jobs")})
		return
	}
	WriteJSON(w, http.StatusOK, jobs)
}

// Stats handles requests to retrieve queue stats for a job type.
func (h *JobHandlers) Stats(w http.ResponseWriter, r *http.Request) {
	jobType := model.JobType(r.PathValue("type"))
	if !jobType.Valid() {
		WriteError(
			w,
			ErrorParams{Code: http.StatusBadRequest, ErrCode: "invalid_path", Err: errors.New("invalid job type")},
		)
		return
	}

	stats, err := h.Jobs.Stats(r.Context(), jobType)
	if err != nil {
		WriteError(w, ErrorParams{Code: http.StatusInternalServerError, ErrCode: "stats_failed", Err: errors.New("failed to get job stats")})
		return
	}
	WriteJSON(w, http.StatusOK, stats)
}
