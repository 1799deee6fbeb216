package httpx

import (
	"errors"
	"net/http"

	"github.com/linkhound/ingest/internal/data"
	"github.com/linkhound/ingest/internal/domain/model"
	"github.com/linkhound/ingest/internal/service"
)

// ProfileHandlers provides HTTP handlers for creator profile operations.
type ProfileHandlers struct {
	Svc *service.ProfileService
	// Schedules is optional; when set, deleting a profile also drops its
	// re-ingestion schedule.
	Schedules *service.ScheduleService
}

// Create handles requests to create a creator profile.
func (h *ProfileHandlers) Create(w http.ResponseWriter, r *http.Request) {
	var req *model.CreateCreatorProfileRequest
	if !DecodeJSON(w, r, &req) {
		return
	}

	profile, err := h.Svc.Create(r.Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, data.ErrProfileHandleExists):
			WriteError(w, ErrorParams{Code: http.StatusConflict, ErrCode: "handle_conflict", Err: err})
		case isValidationError(err):
			WriteError(w, ErrorParams{Code: http.StatusBadRequest, ErrCode: "validation_failed", Err: err})
		default:
			WriteError(w, ErrorParams{Code: http.StatusInternalServerError, ErrCode: "create_failed", Err: err})
		}
		return
	}

	WriteJSON(w, http.StatusCreated, profile)
}

// GetByID handles requests to fetch a profile by id.
func (h *ProfileHandlers) GetByID(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		WriteError(
			w,
			ErrorParams{Code: http.StatusBadRequest, ErrCode: "invalid_path", Err: errors.New("profile id is required")},
		)
		return
	}

	profile, err := h.Svc.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, data.ErrProfileNotFound) {
			WriteError(w, ErrorParams{Code: http.StatusNotFound, ErrCode: "profile_not_found", Err: err})
		} else {
			WriteError(w, ErrorParams{Code: http.StatusInternalServerError, ErrCode: "get_failed", Err: errors.New("failed to get profile")})
		}
		return
	}
	WriteJSON(w, http.StatusOK, profile)
}

// List handles requests to list profiles with pagination.
func (h *ProfileHandlers) List(w http.ResponseWriter, r *http.Request) {
	limit, offset := ParseLimitOffset(r, defaultListLimit, maxListLimit)
	profiles, err := h.Svc.List(r.Context(), limit, offset)
	if err != nil {
		WriteError(w, ErrorParams{Code: http.StatusInternalServerError, ErrCode: "list_failed", Err: errors.New("failed to list profiles")})
		return
	}
	WriteJSON(w, http.StatusOK, profiles)
}

// Delete handles requests to delete a profile. Its re-ingestion schedule, if
// any, goes with it so the scheduler stops firing jobs for a missing profile.
func (h *ProfileHandlers) Delete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		WriteError(
			w,
			ErrorParams{Code: http.StatusBadRequest, ErrCode: "invalid_path", Err: errors.New("profile id is required")},
		)
		return
	}

	found, err := h.Svc.Delete(r.Context(), id)
	if err != nil {
		WriteError(w, ErrorParams{Code: http.StatusInternalServerError, ErrCode: "delete_failed", Err: errors.New("failed to delete profile")})
		return
	}
	if !found {
		WriteError(w, ErrorParams{Code: http.StatusNotFound, ErrCode: "profile_not_found", Err: errors.New("creator profile not found")})
		return
	}
	if h.Schedules != nil {
		if _, err := h.Schedules.RemoveReingest(r.Context(), id); err != nil {
			WriteError(w, ErrorParams{Code: http.StatusInternalServerError, ErrCode: "delete_schedule_failed", Err: errors.New("profile deleted but schedule cleanup failed")})
			return
		}
	}
	WriteJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// rerunRequest is the body for a manual re-ingestion of a profile.
type rerunRequest struct {
	SourceURL string `json:"sourceUrl"`
	Priority  int    `json:"priority,omitempty"`
}

// Rerun handles requests to clear a profile's failure state and enqueue a
// fresh ingestion run.
func (h *ProfileHandlers) Rerun(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		WriteError(
			w,
			ErrorParams{Code: http.StatusBadRequest, ErrCode: "invalid_path", Err: errors.New("profile id is required")},
		)
		return
	}

	var req rerunRequest
	if !DecodeJSON(w, r, &req) {
		return
	}

	job, err := h.Svc.Rerun(r.Context(), service.EnqueueIngestionParams{
		ProfileID: id,
		SourceURL: req.SourceURL,
		Priority:  req.Priority,
	})
	if err != nil {
		switch {
		case errors.Is(err, data.ErrProfileNotFound):
			WriteError(w, ErrorParams{Code: http.StatusNotFound, ErrCode: "profile_not_found", Err: err})
		default:
			WriteError(w, ErrorParams{Code: http.StatusBadRequest, ErrCode: "rerun_failed", Err: err})
		}
		return
	}

	WriteJSON(w, http.StatusOK, job)
}
