package data

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/linkhound/ingest/internal/data/database"
	"github.com/linkhound/ingest/internal/data/pgxutil"
	"github.com/linkhound/ingest/internal/domain/model"
)

const maxListRows = 1000

// clampListRange bounds limit and offset for the list queries. A non-positive
// limit falls back to fallback rather than an unbounded scan.
func clampListRange(limit, offset, fallback int) (int, int) {
	if limit <= 0 {
		limit = fallback
	}
	return min(limit, maxListRows), max(offset, 0)
}

// collectJobs runs a jobColumns select on a pgx connection and maps the rows
// into model.Job values by column name.
func (r *JobRepo) collectJobs(ctx context.Context, query string, args ...any) ([]*model.Job, error) {
	var result []*model.Job
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, query, args...)
		if err != nil {
			return fmt.Errorf("query jobs: %w", err)
		}
		defer rows.Close()

		result, err = pgx.CollectRows(rows, pgx.RowToAddrOfStructByName[model.Job])
		if err != nil {
			return fmt.Errorf("collect jobs: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// ListByProfile returns jobs for a creator profile, ordered by created_at DESC.
func (r *JobRepo) ListByProfile(ctx context.Context, params model.JobListByProfileOptions) ([]*model.Job, error) {
	if params.CreatorProfileID == "" {
		return nil, errors.New("creator profile id is required")
	}
	limit, offset := clampListRange(params.Limit, params.Offset, 50)

	return r.collectJobs(ctx, `
		SELECT `+jobColumns+`
		FROM jobs
		WHERE creator_profile_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2 OFFSET $3
	`, params.CreatorProfileID, limit, offset)
}

// ListRecentByType returns the most recent jobs of a given type. Used by the
// dashboard, hence the small default limit.
func (r *JobRepo) ListRecentByType(ctx context.Context, jobType model.JobType, limit int) ([]*model.Job, error) {
	limit, _ = clampListRange(limit, 0, 5)

	return r.collectJobs(ctx, `
		SELECT `+jobColumns+`
		FROM jobs
		WHERE type = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2
	`, string(jobType), limit)
}

// CountByProfile returns the total number of jobs for a given creator profile.
func (r *JobRepo) CountByProfile(ctx context.Context, creatorProfileID string) (int, error) {
	var n int
	row := r.DB.QueryRowContext(ctx, `
		SELECT COUNT(*)
		FROM jobs
		WHERE creator_profile_id = $1
	`, creatorProfileID)
	if err := row.Scan(&n); err != nil {
		return 0, fmt.Errorf("count jobs by profile: %w", err)
	}
	return n, nil
}

// jobListFilters maps the admin list options onto builder predicates.
func jobListFilters(opts *model.JobListOptions) []database.Filter {
	var filters []database.Filter
	if opts.Status != nil {
		filters = append(filters, database.Where("status", database.OpEq, string(*opts.Status)))
	}
	if opts.Type != nil {
		filters = append(filters, database.Where("type", database.OpEq, string(*opts.Type)))
	}
	if opts.CreatorProfileID != nil && *opts.CreatorProfileID != "" {
		filters = append(filters, database.Where("creator_profile_id", database.OpEq, *opts.CreatorProfileID))
	}
	return filters
}

// jobListSortFields whitelists sortable columns for the admin list.
var jobListSortFields = map[string]string{
	"created_at": "created_at",
	"run_at":     "run_at",
	"status":     "status",
	"type":       "type",
}

// buildJobListQuery constructs the SQL query and args for the global job
// list. Sorting always tie-breaks on id so pagination stays stable.
func buildJobListQuery(opts *model.JobListOptions) (string, []any) {
	query, args := database.Build(database.NewSelect("jobs",
		database.Filters(jobListFilters(opts)...),
	))
	// The builder emits SELECT *; the job row mapping needs the canonical
	// column set in declaration order.
	query = "SELECT " + jobColumns + " " + strings.TrimPrefix(query, "SELECT * ")

	dbField, ok := jobListSortFields[opts.SortBy]
	if !ok {
		dbField = "created_at"
	}
	dir := "DESC"
	if opts.SortOrder == "asc" {
		dir = "ASC"
	}
	return fmt.Sprintf("%s ORDER BY %s %s, id %s", query, dbField, dir, dir), args
}

// List returns all jobs with optional filtering for the admin view.
func (r *JobRepo) List(ctx context.Context, opts *model.JobListOptions) ([]*model.Job, error) {
	if opts == nil {
		opts = &model.JobListOptions{}
	}
	limit, offset := clampListRange(opts.Limit, opts.Offset, 50)

	query, args := buildJobListQuery(opts)
	argIdx := len(args) + 1
	query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", argIdx, argIdx+1)
	args = append(args, limit, offset)

	return r.collectJobs(ctx, query, args...)
}
