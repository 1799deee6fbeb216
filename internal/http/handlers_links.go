package httpx

import (
	"errors"
	"net/http"

	"github.com/linkhound/ingest/internal/data"
	"github.com/linkhound/ingest/internal/domain/model"
	"github.com/linkhound/ingest/internal/service"
)

// LinkHandlers provides HTTP handlers for social link operations.
type LinkHandlers struct {
	Svc *service.LinkService
}

// ListByProfile handles requests for a profile's links with optional state
// and platform filters. This is the read path collaborators consume.
func (h *LinkHandlers) ListByProfile(w http.ResponseWriter, r *http.Request) {
	profileID := r.PathValue("id")
	if profileID == "" {
		WriteError(
			w,
			ErrorParams{Code: http.StatusBadRequest, ErrCode: "invalid_path", Err: errors.New("profile id is required")},
		)
		return
	}

	opts := model.LinkListOptions{CreatorProfileID: profileID}
	opts.Limit, opts.Offset = ParseLimitOffset(r, defaultListLimit, maxListLimit)

	q := r.URL.Query()
	if v := q.Get("state"); v != "" {
		st := model.LinkState(v)
		if !st.Valid() {
			WriteError(
				w,
				ErrorParams{Code: http.StatusBadRequest, ErrCode: "invalid_filter", Err: errors.New("invalid link state")},
			)
			return
		}
		opts.State = &st
	}
	if v := q.Get("platform"); v != "" {
		opts.Platform = &v
	}

	links, err := h.Svc.ListByProfile(r.Context(), opts)
	if err != nil {
		WriteError(w, ErrorParams{Code: http.StatusInternalServerError, ErrCode: "list_failed", Err: errors.New("failed to list links")})
		return
	}
	WriteJSON(w, http.StatusOK, links)
}

// SetState handles manual and admin state overrides. This endpoint is the
// only write path that may set or clear a link's rejected state.
func (h *LinkHandlers) SetState(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		WriteError(
			w,
			ErrorParams{Code: http.StatusBadRequest, ErrCode: "invalid_path", Err: errors.New("link id is required")},
		)
		return
	}

	var req *model.UpdateLinkStateRequest
	if !DecodeJSON(w, r, &req) {
		return
	}

	link, err := h.Svc.SetState(r.Context(), id, req)
	if err != nil {
		switch {
		case errors.Is(err, data.ErrLinkNotFound):
			WriteError(w, ErrorParams{Code: http.StatusNotFound, ErrCode: "link_not_found", Err: err})
		case isValidationError(err):
			WriteError(w, ErrorParams{Code: http.StatusBadRequest, ErrCode: "validation_failed", Err: err})
		default:
			WriteError(w, ErrorParams{Code: http.StatusBadRequest, ErrCode: "set_state_failed", Err: err})
		}
		return
	}
	WriteJSON(w, http.StatusOK, link)
}
