package httpx

import (
	"errors"
	"net/http"
	"time"

	"github.com/linkhound/ingest/internal/data"
	"github.com/linkhound/ingest/internal/service"
)

// ScheduleHandlers provides HTTP handlers for re-ingestion schedules.
type ScheduleHandlers struct {
	Svc *service.ScheduleService
}

// setScheduleRequest is the body for installing a re-ingestion schedule.
// Interval uses Go duration syntax, e.g. "6h" or "24h".
type setScheduleRequest struct {
	SourceURL string `json:"sourceUrl"`
	Interval  string `json:"interval"`
}

// Set handles requests to install or replace a profile's re-ingestion
// schedule.
func (h *ScheduleHandlers) Set(w http.ResponseWriter, r *http.Request) {
	profileID := r.PathValue("id")
	if profileID == "" {
		WriteError(
			w,
			ErrorParams{Code: http.StatusBadRequest, ErrCode: "invalid_path", Err: errors.New("profile id is required")},
		)
		return
	}

	var req setScheduleRequest
	if !DecodeJSON(w, r, &req) {
		return
	}

	interval, err := time.ParseDuration(req.Interval)
	if err != nil || interval <= 0 {
		WriteError(
			w,
			ErrorParams{Code: http.StatusBadRequest, ErrCode: "invalid_interval", Err: errors.New("interval must be a positive duration, e.g. \"6h\"")},
		)
		return
	}

	if err := h.Svc.SetReingest(r.Context(), service.SetReingestParams{
		ProfileID: profileID,
		SourceURL: req.SourceURL,
		Interval:  interval,
	}); err != nil {
		switch {
		case errors.Is(err, data.ErrProfileNotFound):
			WriteError(w, ErrorParams{Code: http.StatusNotFound, ErrCode: "profile_not_found", Err: err})
		default:
			WriteError(w, ErrorParams{Code: http.StatusBadRequest, ErrCode: "set_schedule_failed", Err: err})
		}
		return
	}
	WriteJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// Remove handles requests to drop a profile's re-ingestion schedule.
func (h *ScheduleHandlers) Remove(w http.ResponseWriter, r *http.Request) {
	profileID := r.PathValue("id")
	if profileID == "" {
		WriteError(
			w,
			ErrorParams{Code: http.StatusBadRequest, ErrCode: "invalid_path", Err: errors.New("profile id is required")},
		)
		return
	}

	found, err := h.Svc.RemoveReingest(r.Context(), profileID)
	if err != nil {
		WriteError(w, ErrorParams{Code: http.StatusInternalServerError, ErrCode: "delete_schedule_failed", Err: errors.New("failed to delete schedule")})
		return
	}
	if !found {
		WriteError(w, ErrorParams{Code: http.StatusNotFound, ErrCode: "schedule_not_found", Err: errors.New("no schedule for profile")})
		return
	}
	WriteJSON(w, http.StatusOK, map[string]bool{"ok": true})
}
