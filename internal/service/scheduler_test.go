package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/linkhound/ingest/internal/core"
	"github.com/linkhound/ingest/internal/data"
	"github.com/linkhound/ingest/internal/domain"
	"github.com/linkhound/ingest/internal/domain/model"
	"github.com/linkhound/ingest/internal/mocks"
)

type schedulerTestEnv struct {
	svc   *SchedulerService
	repo  *mocks.MockScheduledJobsRepository
	jobs  *mocks.MockJobRepository
	intro *mocks.MockJobIntrospector
	now   time.Time
}

func newSchedulerTestEnv(t *testing.T) *schedulerTestEnv {
	t.Helper()
	ctrl := gomock.NewController(t)
	env := &schedulerTestEnv{
		repo:  mocks.NewMockScheduledJobsRepository(ctrl),
		jobs:  mocks.NewMockJobRepository(ctrl),
		intro: mocks.NewMockJobIntrospector(ctrl),
		now:   time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}
	env.svc = NewSchedulerService(SchedulerServiceOptions{
		Repo:            env.repo,
		Jobs:            env.jobs,
		JobIntrospector: env.intro,
		TimeProvider:    data.NewFixedTimeProvider(env.now),
	})
	return env
}

func reingestTask(t *testing.T, name string) domain.ScheduledTask {
	t.Helper()
	payload, err := json.Marshal(model.JobPayload{
		SourceURL:        "https://linktr.ee/examplecreator",
		CreatorProfileID: "profile-1",
	})
	require.NoError(t, err)
	return domain.ScheduledTask{
		ID:       "task-1",
		TaskName: name,
		Payload:  payload,
		Interval: time.Hour,
	}
}

// expectLock arranges TryWithTaskLock to run the callback with a nil tx.
func (env *schedulerTestEnv) expectLock(taskName string, acquired bool) {
	env.repo.EXPECT().
		TryWithTaskLock(gomock.Any(), taskName, gomock.Any()).
		DoAndReturn(func(ctx context.Context, _ string, fn func(context.Context, *sql.Tx) error) (bool, error) {
			if !acquired {
				return false, nil
			}
			return true, fn(ctx, nil)
		})
}

func TestSchedulerTickEnqueuesDueTask(t *testing.T) {
	env := newSchedulerTestEnv(t)
	task := reingestTask(t, "reingest:profile-1")

	env.repo.EXPECT().FindDue(gomock.Any(), env.now, 25).Return([]domain.ScheduledTask{task}, nil)
	env.expectLock(task.TaskName, true)
	env.intro.EXPECT().
		JobStatesByTaskName(gomock.Any(), task.TaskName, env.now).
		Return(domain.OverrunStateMask(0), nil)
	env.repo.EXPECT().MarkQueuedTx(gomock.Any(), gomock.Nil(), gomock.Any()).Return(true, nil)
	env.jobs.EXPECT().
		Create(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, req *model.CreateJobRequest) (*model.Job, error) {
			assert.Equal(t, model.JobTypeLinkPage, req.Type)
			assert.Equal(t, "https://linktr.ee/examplecreator", req.Payload.SourceURL)
			assert.Equal(t, "profile-1", req.Payload.CreatorProfileID)
			assert.Equal(t, 0, req.Payload.Depth)
			assert.Equal(t, 3, req.MaxAttempts)

			var meta map[string]string
			require.NoError(t, json.Unmarshal(req.Metadata, &meta))
			assert.Equal(t, task.TaskName, meta["scheduler.task_name"])
			assert.NotEmpty(t, meta["scheduler.fire_key"])

			return &model.Job{ID: "job-1", Metadata: req.Metadata}, nil
		})
	env.repo.EXPECT().UpdateActiveFireKeyTx(gomock.Any(), gomock.Nil(), gomock.Any()).Return(nil)

	processed, err := env.svc.Tick(context.Background(), env.now)
	require.NoError(t, err)
	assert.Equal(t, 1, processed)
}

func TestSchedulerTickMapsSourcePlatformToJobType(t *testing.T) {
	env := newSchedulerTestEnv(t)
	payload, err := json.Marshal(model.JobPayload{
		SourceURL:        "https://laylo.com/ExampleCreator/",
		CreatorProfileID: "profile-1",
	})
	require.NoError(t, err)
	task := domain.ScheduledTask{ID: "task-1", TaskName: "reingest:profile-1", Payload: payload, Interval: time.Hour}

	env.repo.EXPECT().FindDue(gomock.Any(), env.now, 25).Return([]domain.ScheduledTask{task}, nil)
	env.expectLock(task.TaskName, true)
	env.intro.EXPECT().JobStatesByTaskName(gomock.Any(), task.TaskName, env.now).
		Return(domain.OverrunStateMask(0), nil)
	env.repo.EXPECT().MarkQueuedTx(gomock.Any(), gomock.Nil(), gomock.Any()).Return(true, nil)
	env.jobs.EXPECT().
		Create(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, req *model.CreateJobRequest) (*model.Job, error) {
			assert.Equal(t, model.JobTypeDropPage, req.Type)
			assert.Equal(t, "https://laylo.com/examplecreator", req.Payload.SourceURL)
			return &model.Job{ID: "job-1", Metadata: req.Metadata}, nil
		})
	env.repo.EXPECT().UpdateActiveFireKeyTx(gomock.Any(), gomock.Nil(), gomock.Any()).Return(nil)

	_, err = env.svc.Tick(context.Background(), env.now)
	require.NoError(t, err)
}

func TestSchedulerTickSkipsWhenOverrunStateBlocks(t *testing.T) {
	env := newSchedulerTestEnv(t)
	task := reingestTask(t, "reingest:profile-1")

	env.repo.EXPECT().FindDue(gomock.Any(), env.now, 25).Return([]domain.ScheduledTask{task}, nil)
	env.expectLock(task.TaskName, true)
	env.intro.EXPECT().
		JobStatesByTaskName(gomock.Any(), task.TaskName, env.now).
		Return(domain.OverrunStateRunning, nil)
	// The task still marks queued so the next fire waits a full interval.
	env.repo.EXPECT().MarkQueuedTx(gomock.Any(), gomock.Nil(), gomock.Any()).Return(true, nil)

	processed, err := env.svc.Tick(context.Background(), env.now)
	require.NoError(t, err)
	assert.Equal(t, 1, processed)
}

func TestSchedulerTickDedupHitSkipsFinalize(t *testing.T) {
	env := newSchedulerTestEnv(t)
	task := reingestTask(t, "reingest:profile-1")

	env.repo.EXPECT().FindDue(gomock.Any(), env.now, 25).Return([]domain.ScheduledTask{task}, nil)
	env.expectLock(task.TaskName, true)
	env.intro.EXPECT().JobStatesByTaskName(gomock.Any(), task.TaskName, env.now).
		Return(domain.OverrunStateMask(0), nil)
	env.repo.EXPECT().MarkQueuedTx(gomock.Any(), gomock.Nil(), gomock.Any()).Return(true, nil)
	// The queue returns a live job from an earlier fire; its metadata
	// carries that fire's key, so no new row was inserted.
	env.jobs.EXPECT().
		Create(gomock.Any(), gomock.Any()).
		Return(&model.Job{
			ID:       "job-0",
			Metadata: json.RawMessage(`{"scheduler.fire_key":"older-fire"}`),
		}, nil)

	processed, err := env.svc.Tick(context.Background(), env.now)
	require.NoError(t, err)
	assert.Equal(t, 1, processed)
}

func TestSchedulerTickSkipsTaskNotDueYet(t *testing.T) {
	env := newSchedulerTestEnv(t)
	task := reingestTask(t, "reingest:profile-1")
	queuedAt := env.now.Add(-time.Minute)
	task.LastQueuedAt = &queuedAt

	env.repo.EXPECT().FindDue(gomock.Any(), env.now, 25).Return([]domain.ScheduledTask{task}, nil)
	env.expectLock(task.TaskName, true)

	processed, err := env.svc.Tick(context.Background(), env.now)
	require.NoError(t, err)
	assert.Equal(t, 0, processed)
}

func TestSchedulerTickSkipsContendedLock(t *testing.T) {
	env := newSchedulerTestEnv(t)
	task := reingestTask(t, "reingest:profile-1")

	env.repo.EXPECT().FindDue(gomock.Any(), env.now, 25).Return([]domain.ScheduledTask{task}, nil)
	env.expectLock(task.TaskName, false)

	processed, err := env.svc.Tick(context.Background(), env.now)
	require.NoError(t, err)
	assert.Equal(t, 0, processed)
}

func TestSchedulerTickRejectsMalformedTaskPayload(t *testing.T) {
	env := newSchedulerTestEnv(t)
	task := domain.ScheduledTask{
		ID:       "task-1",
		TaskName: "reingest:profile-1",
		Payload:  json.RawMessage(`{"sourceUrl":""}`),
		Interval: time.Hour,
	}

	env.repo.EXPECT().FindDue(gomock.Any(), env.now, 25).Return([]domain.ScheduledTask{task}, nil)
	env.expectLock(task.TaskName, true)
	env.intro.EXPECT().JobStatesByTaskName(gomock.Any(), task.TaskName, env.now).
		Return(domain.OverrunStateMask(0), nil)
	env.repo.EXPECT().MarkQueuedTx(gomock.Any(), gomock.Nil(), gomock.Any()).Return(true, nil)

	_, err := env.svc.Tick(context.Background(), env.now)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse task payload")
}

func TestSchedulerTickPropagatesFindDueError(t *testing.T) {
	env := newSchedulerTestEnv(t)

	env.repo.EXPECT().FindDue(gomock.Any(), env.now, 25).
		Return(nil, errors.New("db down"))

	_, err := env.svc.Tick(context.Background(), env.now)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "find due tasks")
}

func TestSchedulerDefaultConfig(t *testing.T) {
	cfg := core.DefaultSchedulerConfig()
	assert.Equal(t, 25, cfg.BatchSize)
	assert.Equal(t, model.JobTypeLinkPage, cfg.DefaultJobType)
	assert.Equal(t, domain.OverrunPolicySkip, cfg.Strategy.Overrun)
}

func TestJobCarriesFireKey(t *testing.T) {
	tests := []struct {
		name string
		job  *model.Job
		want bool
	}{
		{
			name: "matching fire key",
			job:  &model.Job{Metadata: json.RawMessage(`{"scheduler.fire_key":"fire-1"}`)},
			want: true,
		},
		{
			name: "different fire key",
			job:  &model.Job{Metadata: json.RawMessage(`{"scheduler.fire_key":"fire-0"}`)},
			want: false,
		},
		{
			name: "no metadata",
			job:  &model.Job{},
			want: false,
		},
		{
			name: "nil job",
			job:  nil,
			want: false,
		},
		{
			name: "malformed metadata",
			job:  &model.Job{Metadata: json.RawMessage(`{`)},
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, jobCarriesFireKey(tt.job, "fire-1"))
		})
	}
}
