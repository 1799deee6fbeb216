package httpx

import (
	"net/http"

	"github.com/linkhound/ingest/internal/service"
)

// RouterServices holds all the services needed by the HTTP router.
type RouterServices struct {
	Jobs     *service.JobService
	Profiles *service.ProfileService
	Links    *service.LinkService
	// Schedules is optional; schedule routes are registered only when set.
	Schedules *service.ScheduleService
}

// NewRouter creates and configures the admin API router.
func NewRouter(services RouterServices) http.Handler {
	mux := http.NewServeMux()

	jobHandlers := &JobHandlers{Jobs: services.Jobs, Profiles: services.Profiles}
	profileHandlers := &ProfileHandlers{Svc: services.Profiles, Schedules: services.Schedules}
	linkHandlers := &LinkHandlers{Svc: services.Links}

	registerJobRoutes(mux, jobHandlers)
	registerProfileRoutes(mux, profileHandlers)
	registerLinkRoutes(mux, linkHandlers)
	if services.Schedules != nil {
		registerScheduleRoutes(mux, &ScheduleHandlers{Svc: services.Schedules})
	}
	mux.Handle("GET /healthz", http.HandlerFunc(healthHandler))
	mux.Handle("HEAD /healthz", http.HandlerFunc(healthHandler))

	return mux
}

func registerJobRoutes(mux *http.ServeMux, h *JobHandlers) {
	mux.HandleFunc("POST /api/ingest/jobs", h.Enqueue)
	mux.HandleFunc("GET /api/ingest/jobs", h.ListJobs)
	mux.HandleFunc("GET /api/ingest/jobs/{id}", h.GetJob)
	mux.HandleFunc("GET /api/ingest/jobs/{id}/status", h.GetStatus)
	mux.HandleFunc("GET /api/ingest/stats/{type}", h.Stats)
}

func registerProfileRoutes(mux *http.ServeMux, h *ProfileHandlers) {
	mux.HandleFunc("POST /api/profiles", h.Create)
	mux.HandleFunc("GET /api/profiles", h.List)
	mux.HandleFunc("GET /api/profiles/{id}", h.GetByID)
	mux.HandleFunc("DELETE /api/profiles/{id}", h.Delete)
	mux.HandleFunc("POST /api/ingest/profiles/{id}/rerun", h.Rerun)
}

func registerLinkRoutes(mux *http.ServeMux, h *LinkHandlers) {
	mux.HandleFunc("GET /api/profiles/{id}/links", h.ListByProfile)
	mux.HandleFunc("PATCH /api/links/{id}/state", h.SetState)
}

func registerScheduleRoutes(mux *http.ServeMux, h *ScheduleHandlers) {
	mux.HandleFunc("PUT /api/profiles/{id}/schedule", h.Set)
	mux.HandleFunc("DELETE /api/profiles/{id}/schedule", h.Remove)
}
