package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/linkhound/ingest/internal/core"
	"github.com/linkhound/ingest/internal/data/pgxutil"
	"github.com/linkhound/ingest/internal/domain/model"
)

// JobResultRepo persists per-run ingestion summaries keyed by job id.
type JobResultRepo struct {
	DB *sql.DB
}

func NewJobResultRepo(db *sql.DB) *JobResultRepo {
	return &JobResultRepo{DB: db}
}

// Upsert stores or replaces the run summary for a job. A re-run of the same
// job overwrites the previous summary rather than accumulating rows.
func (r *JobResultRepo) Upsert(ctx context.Context, params core.UpsertJobResultParams) error {
	if r == nil || r.DB == nil {
		return ErrJobResultsNotConfigured
	}
	if params.JobID == "" {
		return ErrJobIDRequired
	}

	const query = `
		INSERT INTO job_results (job_id, job_type, result, created_at, updated_at)
		VALUES ($1, $2, $3, now(), now())
		ON CONFLICT (job_id)
		DO UPDATE SET
			job_type = EXCLUDED.job_type,
			result = EXCLUDED.result,
			updated_at = now();`
	if _, err := r.DB.ExecContext(ctx, query, params.JobID, params.JobType, params.Result); err != nil {
		return fmt.Errorf("upsert job_results: %w", err)
	}
	return nil
}

// GetByJobID retrieves the run summary for a job.
func (r *JobResultRepo) GetByJobID(ctx context.Context, jobID string) (*model.JobResult, error) {
	if r == nil || r.DB == nil {
		return nil, ErrJobResultsNotConfigured
	}
	if jobID == "" {
		return nil, ErrJobIDRequired
	}

	results, err := r.collectResults(ctx, `
		SELECT job_id, job_type, result, created_at, updated_at
		FROM job_results
		WHERE job_id = $1`, jobID)
	if err != nil {
		return nil, fmt.Errorf("get job_results: %w", err)
	}
	if len(results) == 0 {
		return nil, ErrJobResultsNotFound
	}
	return results[0], nil
}

// ListRecentByProfile retrieves the most recent run summaries for a creator
// profile, joined through the owning jobs.
func (r *JobResultRepo) ListRecentByProfile(
	ctx context.Context,
	creatorProfileID string,
	limit int,
) ([]*model.JobResult, error) {
	if r == nil || r.DB == nil {
		return nil, ErrJobResultsNotConfigured
	}
	if strings.TrimSpace(creatorProfileID) == "" {
		return nil, ErrProfileIDRequired
	}
	if limit <= 0 {
		limit = 20
	}
	limit = min(limit, 500)

	results, err := r.collectResults(ctx, `
		SELECT jr.job_id, jr.job_type, jr.result, jr.created_at, jr.updated_at
		FROM job_results jr
		JOIN jobs j ON j.id = jr.job_id
		WHERE j.creator_profile_id = $1
		ORDER BY jr.updated_at DESC
		LIMIT $2`, creatorProfileID, limit)
	if err != nil {
		return nil, fmt.Errorf("list job_results: %w", err)
	}
	return results, nil
}

func (r *JobResultRepo) collectResults(ctx context.Context, query string, args ...any) ([]*model.JobResult, error) {
	var results []*model.JobResult
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, query, args...)
		if err != nil {
			return err
		}
		defer rows.Close()

		results, err = pgx.CollectRows(rows, pgx.RowToAddrOfStructByName[model.JobResult])
		return err
	})
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return results, err
}
