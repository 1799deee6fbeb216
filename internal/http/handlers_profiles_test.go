package httpx

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/linkhound/ingest/internal/core"
	"github.com/linkhound/ingest/internal/data"
	"github.com/linkhound/ingest/internal/domain/model"
	"github.com/linkhound/ingest/internal/mocks"
	"github.com/linkhound/ingest/internal/service"
	"go.uber.org/mock/gomock"
)

type profileHandlerMocks struct {
	profiles *mocks.MockProfileRepository
	jobs     *mocks.MockJobRepository
	admin    *mocks.MockScheduledJobsAdminRepository
}

func newProfileHandlersWithMocks(t *testing.T) (*ProfileHandlers, profileHandlerMocks) {
	t.Helper()
	ctrl := gomock.NewController(t)
	profilesRepo := mocks.NewMockProfileRepository(ctrl)
	jobsRepo := mocks.NewMockJobRepository(ctrl)
	adminRepo := mocks.NewMockScheduledJobsAdminRepository(ctrl)

	svc, err := service.NewProfileService(service.ProfileServiceOptions{
		Profiles: profilesRepo,
		Jobs:     jobsRepo,
	})
	require.NoError(t, err)
	schedules := service.NewScheduleService(service.ScheduleServiceOptions{
		Profiles: profilesRepo,
		Admin:    adminRepo,
	})

	h := &ProfileHandlers{Svc: svc, Schedules: schedules}
	return h, profileHandlerMocks{profiles: profilesRepo, jobs: jobsRepo, admin: adminRepo}
}

func TestProfileCreate_Success(t *testing.T) {
	h, m := newProfileHandlersWithMocks(t)

	expected := &model.CreatorProfile{
		ID:          "profile-1",
		DisplayName: "Example Creator",
		Handle:      "examplecreator",
	}
	m.profiles.EXPECT().Create(gomock.Any(), gomock.Any()).Return(expected, nil)

	body := model.CreateCreatorProfileRequest{DisplayName: "Example Creator", Handle: "examplecreator"}
	b, _ := json.Marshal(body)
	r := httptest.NewRequest(http.MethodPost, "/api/profiles", bytes.NewReader(b))
	w := httptest.NewRecorder()

	h.Create(w, r)

	resp := w.Result()
	defer resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var got model.CreatorProfile
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	assert.Equal(t, expected.ID, got.ID)
}

func TestProfileCreate_HandleConflict(t *testing.T) {
	h, m := newProfileHandlersWithMocks(t)

	m.profiles.EXPECT().Create(gomock.Any(), gomock.Any()).Return(nil, data.ErrProfileHandleExists)

	body := model.CreateCreatorProfileRequest{DisplayName: "Example Creator", Handle: "examplecreator"}
	b, _ := json.Marshal(body)
	r := httptest.NewRequest(http.MethodPost, "/api/profiles", bytes.NewReader(b))
	w := httptest.NewRecorder()

	h.Create(w, r)

	resp := w.Result()
	defer resp.Body.Close()
	require.Equal(t, http.StatusConflict, resp.StatusCode)

	var response map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&response))
	assert.Equal(t, "handle_conflict", response["error"])
}

func TestProfileGetByID_NotFound(t *testing.T) {
	h, m := newProfileHandlersWithMocks(t)

	m.profiles.EXPECT().GetByID(gomock.Any(), "missing").Return(nil, data.ErrProfileNotFound)

	r := httptest.NewRequest(http.MethodGet, "/api/profiles/missing", nil)
	r.SetPathValue("id", "missing")
	w := httptest.NewRecorder()

	h.GetByID(w, r)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestProfileList_Success(t *testing.T) {
	h, m := newProfileHandlersWithMocks(t)

	profiles := []*model.CreatorProfile{
		{ID: "profile-1", Handle: "one"},
		{ID: "profile-2", Handle: "two"},
	}
	m.profiles.EXPECT().List(gomock.Any(), 10, 0).Return(profiles, nil)

	r := httptest.NewRequest(http.MethodGet, "/api/profiles?limit=10", nil)
	w := httptest.NewRecorder()

	h.List(w, r)

	resp := w.Result()
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var got []*model.CreatorProfile
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	assert.Len(t, got, 2)
}

func TestProfileDelete_RemovesSchedule(t *testing.T) {
	h, m := newProfileHandlersWithMocks(t)

	m.profiles.EXPECT().Delete(gomock.Any(), "profile-1").Return(true, nil)
	m.admin.EXPECT().DeleteByTaskName(gomock.Any(), "reingest:profile-1").Return(true, nil)

	r := httptest.NewRequest(http.MethodDelete, "/api/profiles/profile-1", nil)
	r.SetPathValue("id", "profile-1")
	w := httptest.NewRecorder()

	h.Delete(w, r)

	resp := w.Result()
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var response map[string]bool
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&response))
	assert.True(t, response["ok"])
}

func TestProfileDelete_NotFound(t *testing.T) {
	h, m := newProfileHandlersWithMocks(t)

	m.profiles.EXPECT().Delete(gomock.Any(), "missing").Return(false, nil)

	r := httptest.NewRequest(http.MethodDelete, "/api/profiles/missing", nil)
	r.SetPathValue("id", "missing")
	w := httptest.NewRecorder()

	h.Delete(w, r)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestProfileRerun_Success(t *testing.T) {
	h, m := newProfileHandlersWithMocks(t)

	profile := &model.CreatorProfile{ID: "profile-1", Handle: "examplecreator"}
	m.profiles.EXPECT().
		ReleaseIngestion(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ any, params core.ReleaseIngestionParams) error {
			assert.Equal(t, "profile-1", params.ProfileID)
			assert.Equal(t, model.IngestionStatusIdle, params.Status)
			return nil
		})
	m.profiles.EXPECT().GetByID(gomock.Any(), "profile-1").Return(profile, nil)

	expected := &model.Job{ID: "job-1", Type: model.JobTypeLinkPage, Status: model.JobStatusPending}
	m.jobs.EXPECT().Create(gomock.Any(), gomock.Any()).Return(expected, nil)

	body := rerunRequest{SourceURL: "https://linktr.ee/examplecreator"}
	b, _ := json.Marshal(body)
	r := httptest.NewRequest(http.MethodPost, "/api/ingest/profiles/profile-1/rerun", bytes.NewReader(b))
	r.SetPathValue("id", "profile-1")
	w := httptest.NewRecorder()

	h.Rerun(w, r)

	resp := w.Result()
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var got model.Job
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	assert.Equal(t, expected.ID, got.ID)
}

func TestProfileRerun_ProfileNotFound(t *testing.T) {
	h, m := newProfileHandlersWithMocks(t)

	m.profiles.EXPECT().ReleaseIngestion(gomock.Any(), gomock.Any()).Return(data.ErrProfileNotFound)

	body := rerunRequest{SourceURL: "https://linktr.ee/whoever"}
	b, _ := json.Marshal(body)
	r := httptest.NewRequest(http.MethodPost, "/api/ingest/profiles/missing/rerun", bytes.NewReader(b))
	r.SetPathValue("id", "missing")
	w := httptest.NewRecorder()

	h.Rerun(w, r)

	assert.Equal(t, http.StatusNotFound, w.Code)
}
