package httpx

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/linkhound/ingest/internal/data"
	"github.com/linkhound/ingest/internal/domain"
	"github.com/linkhound/ingest/internal/domain/model"
	"github.com/linkhound/ingest/internal/mocks"
	"github.com/linkhound/ingest/internal/service"
	"go.uber.org/mock/gomock"
)

type scheduleHandlerMocks struct {
	profiles *mocks.MockProfileRepository
	admin    *mocks.MockScheduledJobsAdminRepository
}

func newScheduleHandlersWithMocks(t *testing.T) (*ScheduleHandlers, scheduleHandlerMocks) {
	t.Helper()
	ctrl := gomock.NewController(t)
	profilesRepo := mocks.NewMockProfileRepository(ctrl)
	adminRepo := mocks.NewMockScheduledJobsAdminRepository(ctrl)

	svc := service.NewScheduleService(service.ScheduleServiceOptions{
		Profiles: profilesRepo,
		Admin:    adminRepo,
	})
	return &ScheduleHandlers{Svc: svc}, scheduleHandlerMocks{profiles: profilesRepo, admin: adminRepo}
}

func TestSetSchedule_Success(t *testing.T) {
	h, m := newScheduleHandlersWithMocks(t)

	profile := &model.CreatorProfile{ID: "profile-1", Handle: "examplecreator"}
	m.profiles.EXPECT().GetByID(gomock.Any(), "profile-1").Return(profile, nil)
	m.admin.EXPECT().
		UpsertByTaskName(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ any, params domain.UpsertTaskParams) error {
			assert.Equal(t, "reingest:profile-1", params.TaskName)
			assert.Equal(t, 6*time.Hour, params.Interval)

			var payload model.JobPayload
			require.NoError(t, json.Unmarshal(params.Payload, &payload))
			assert.Equal(t, "https://linktr.ee/examplecreator", payload.SourceURL)
			assert.Equal(t, "profile-1", payload.CreatorProfileID)
			return nil
		})

	body := setScheduleRequest{SourceURL: "https://linktr.ee/examplecreator", Interval: "6h"}
	b, _ := json.Marshal(body)
	r := httptest.NewRequest(http.MethodPut, "/api/profiles/profile-1/schedule", bytes.NewReader(b))
	r.SetPathValue("id", "profile-1")
	w := httptest.NewRecorder()

	h.Set(w, r)

	resp := w.Result()
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestSetSchedule_InvalidInterval(t *testing.T) {
	tests := []struct {
		name     string
		interval string
	}{
		{"not a duration", "tomorrow"},
		{"zero", "0s"},
		{"negative", "-1h"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, _ := newScheduleHandlersWithMocks(t)

			body := setScheduleRequest{SourceURL: "https://linktr.ee/examplecreator", Interval: tt.interval}
			b, _ := json.Marshal(body)
			r := httptest.NewRequest(http.MethodPut, "/api/profiles/profile-1/schedule", bytes.NewReader(b))
			r.SetPathValue("id", "profile-1")
			w := httptest.NewRecorder()

			h.Set(w, r)

			resp := w.Result()
			defer resp.Body.Close()
			require.Equal(t, http.StatusBadRequest, resp.StatusCode)

			var response map[string]any
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&response))
			assert.Equal(t, "invalid_interval", response["error"])
		})
	}
}

func TestSetSchedule_ProfileNotFound(t *testing.T) {
	h, m := newScheduleHandlersWithMocks(t)

	m.profiles.EXPECT().GetByID(gomock.Any(), "missing").Return(nil, data.ErrProfileNotFound)

	body := setScheduleRequest{SourceURL: "https://linktr.ee/whoever", Interval: "12h"}
	b, _ := json.Marshal(body)
	r := httptest.NewRequest(http.MethodPut, "/api/profiles/missing/schedule", bytes.NewReader(b))
	r.SetPathValue("id", "missing")
	w := httptest.NewRecorder()

	h.Set(w, r)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSetSchedule_NonCrawlableSource(t *testing.T) {
	h, m := newScheduleHandlersWithMocks(t)

	profile := &model.CreatorProfile{ID: "profile-1", Handle: "examplecreator"}
	m.profiles.EXPECT().GetByID(gomock.Any(), "profile-1").Return(profile, nil)

	body := setScheduleRequest{SourceURL: "https://instagram.com/examplecreator", Interval: "6h"}
	b, _ := json.Marshal(body)
	r := httptest.NewRequest(http.MethodPut, "/api/profiles/profile-1/schedule", bytes.NewReader(b))
	r.SetPathValue("id", "profile-1")
	w := httptest.NewRecorder()

	h.Set(w, r)

	resp := w.Result()
	defer resp.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	var response map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&response))
	assert.Equal(t, "set_schedule_failed", response["error"])
}

func TestRemoveSchedule_NotFound(t *testing.T) {
	h, m := newScheduleHandlersWithMocks(t)

	m.admin.EXPECT().DeleteByTaskName(gomock.Any(), "reingest:profile-1").Return(false, nil)

	r := httptest.NewRequest(http.MethodDelete, "/api/profiles/profile-1/schedule", nil)
	r.SetPathValue("id", "profile-1")
	w := httptest.NewRecorder()

	h.Remove(w, r)

	assert.Equal(t, http.StatusNotFound, w.Code)

	var response map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(t, "schedule_not_found", response["error"])
}

func TestRemoveSchedule_Success(t *testing.T) {
	h, m := newScheduleHandlersWithMocks(t)

	m.admin.EXPECT().DeleteByTaskName(gomock.Any(), "reingest:profile-1").Return(true, nil)

	r := httptest.NewRequest(http.MethodDelete, "/api/profiles/profile-1/schedule", nil)
	r.SetPathValue("id", "profile-1")
	w := httptest.NewRecorder()

	h.Remove(w, r)

	require.Equal(t, http.StatusOK, w.Code)

	var response map[string]bool
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.True(t, response["ok"])
}
