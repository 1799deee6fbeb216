// Package mocks provides mock implementations for testing the linkhound ingestion system.
//
// This package uses go.uber.org/mock (gomock) to generate type-safe mocks for our repository interfaces.
// The mocks are generated using go:generate directives and provide a fluent API for setting up test expectations.
//
// To regenerate mocks after interface changes, run:
//
//	go generate ./internal/mocks
//
// Usage in tests:
//
//	ctrl := gomock.NewController(t)
//	defer ctrl.Finish()
//	mockRepo := mocks.NewMockJobRepository(ctrl)
//	mockRepo.EXPECT().Create(gomock.Any(), gomock.Any()).Return(job, nil)
package mocks

// Generate mock for JobRepository interface from internal/core package.
// This creates MockJobRepository with methods for all JobRepository interface methods:
// Create, GetByID, ClaimNext, WaitForNotification, Heartbeat, Complete, Fail, Stats,
// List, ListByProfile, HasActiveOrSucceededByDedupKey, Delete
//go:generate go run go.uber.org/mock/mockgen -package=mocks -destination=job_repository_mock.go github.com/linkhound/ingest/internal/core JobRepository

// Generate mock for JobResultRepository interface from internal/core package.
// This creates MockJobResultRepository with methods for all JobResultRepository interface methods:
// Upsert, GetByJobID, ListRecentByProfile
//go:generate go run go.uber.org/mock/mockgen -package=mocks -destination=job_result_repository_mock.go github.com/linkhound/ingest/internal/core JobResultRepository

// Generate mock for LinkRepository interface from internal/core package.
// This creates MockLinkRepository with methods for all LinkRepository interface methods:
// Create, GetByID, FindByNaturalKey, ListByProfile, UpdateMerge, UpdateState, Delete
//go:generate go run go.uber.org/mock/mockgen -package=mocks -destination=link_repository_mock.go github.com/linkhound/ingest/internal/core LinkRepository

// Generate mock for ProfileRepository interface from internal/core package.
// This creates MockProfileRepository with methods for all ProfileRepository interface methods:
// Create, GetByID, GetByHandle, List, Update, Delete, AcquireIngestion, ReleaseIngestion
//go:generate go run go.uber.org/mock/mockgen -package=mocks -destination=profile_repository_mock.go github.com/linkhound/ingest/internal/core ProfileRepository

// Generate mock for ScheduledJobsRepository interface from internal/core package.
// This creates MockScheduledJobsRepository with methods for all ScheduledJobsRepository interface methods:
// FindDue, FindDueTx, MarkQueued, MarkQueuedTx, UpdateActiveFireKeyTx, TryWithTaskLock
//go:generate go run go.uber.org/mock/mockgen -package=mocks -destination=scheduled_jobs_repository_mock.go github.com/linkhound/ingest/internal/core ScheduledJobsRepository

// Generate mock for JobIntrospector interface from internal/core package.
// This creates MockJobIntrospector with methods for all JobIntrospector interface methods:
// RunningJobExistsByTaskName, JobStatesByTaskName
//go:generate go run go.uber.org/mock/mockgen -package=mocks -destination=job_introspector_mock.go github.com/linkhound/ingest/internal/core JobIntrospector

// Generate mock for ScheduledJobsAdminRepository interface from internal/core package.
// This creates MockScheduledJobsAdminRepository with methods for all ScheduledJobsAdminRepository interface methods:
// UpsertByTaskName, DeleteByTaskName
//go:generate go run go.uber.org/mock/mockgen -package=mocks -destination=scheduled_jobs_admin_repository_mock.go github.com/linkhound/ingest/internal/core ScheduledJobsAdminRepository

// Generate mock for ReaperRepository interface from internal/core package.
// This creates MockReaperRepository with methods for all ReaperRepository interface methods:
// FailStalePendingJobs, DeleteOldJobs, DeleteOldJobResults
//go:generate go run go.uber.org/mock/mockgen -package=mocks -destination=reaper_repository_mock.go github.com/linkhound/ingest/internal/core ReaperRepository
