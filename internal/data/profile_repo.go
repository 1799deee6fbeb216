package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/linkhound/ingest/internal/core"
	"github.com/linkhound/ingest/internal/data/pgxutil"
	"github.com/linkhound/ingest/internal/domain/model"
	apperrors "github.com/linkhound/ingest/internal/errors"
)

var (
	// ErrProfileNotFound is returned when a creator profile is not found.
	ErrProfileNotFound = errors.New("creator profile not found")
	// ErrProfileHandleExists is returned when attempting to create a profile with a handle that already exists.
	ErrProfileHandleExists = errors.New("creator profile handle already exists")
)

// ProfileRepo provides database operations for creator profile management.
type ProfileRepo struct {
	DB           *sql.DB
	timeProvider TimeProvider
}

// NewProfileRepo creates a new ProfileRepo instance with the given database connection.
func NewProfileRepo(db *sql.DB) *ProfileRepo {
	return &ProfileRepo{
		DB:           db,
		timeProvider: &RealTimeProvider{},
	}
}

// NewProfileRepoWithTimeProvider creates a ProfileRepo with a custom TimeProvider (useful for testing).
func NewProfileRepoWithTimeProvider(db *sql.DB, timeProvider TimeProvider) *ProfileRepo {
	return &ProfileRepo{
		DB:           db,
		timeProvider: timeProvider,
	}
}

// SQL query constants for static queries (no dynamic WHERE/ORDER BY).
const (
	profileColumns = `
		id, display_name, handle, avatar_url, ingestion_status,
		last_ingestion_error, last_ingested_at, created_at, updated_at`

	profileGetByIDQuery = `
		SELECT ` + profileColumns + `
		FROM creator_profiles
		WHERE id = $1`

	profileGetByHandleQuery = `
		SELECT ` + profileColumns + `
		FROM creator_profiles
		WHERE handle = $1`

	profileListQuery = `
		SELECT ` + profileColumns + `
		FROM creator_profiles
		ORDER BY created_at DESC, id DESC
		LIMIT $1 OFFSET $2`

	profileListByHandleQuery = `
		SELECT ` + profileColumns + `
		FROM creator_profiles
		WHERE handle ILIKE $1 OR display_name ILIKE $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2 OFFSET $3`
)

// Create creates a new creator profile. New profiles start idle; ingestion
// status only moves once jobs run for them.
func (r *ProfileRepo) Create(
	ctx context.Context,
	req *model.CreateCreatorProfileRequest,
) (*model.CreatorProfile, error) {
	if req == nil {
		return nil, errors.New("create creator profile request is required")
	}

	if err := req.Validate(); err != nil {
		return nil, err
	}

	now := r.timeProvider.Now().UTC()
	handle := strings.TrimSpace(req.Handle)

	var profile model.CreatorProfile
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, qerr := conn.Query(ctx, `
			INSERT INTO creator_profiles (display_name, handle, avatar_url, ingestion_status, created_at, updated_at)
			VALUES ($1, $2, $3, 'idle', $4, $4)
			RETURNING `+profileColumns,
			strings.TrimSpace(req.DisplayName), handle, req.AvatarURL, now)
		if qerr != nil {
			return qerr
		}
		defer rows.Close()
		profile, qerr = pgx.CollectOneRow(rows, pgx.RowToStructByName[model.CreatorProfile])
		return qerr
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create creator profile: %w", r.mapProfileWriteErr(err, false))
	}

	return &profile, nil
}

// getProfileByQuery executes a query expected to return a single profile.
func (r *ProfileRepo) getProfileByQuery(
	ctx context.Context,
	q string,
	errMsg string,
	args ...any,
) (*model.CreatorProfile, error) {
	var profile model.CreatorProfile
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, qerr := conn.Query(ctx, q, args...)
		if qerr != nil {
			return qerr
		}
		defer rows.Close()
		profile, qerr = pgx.CollectOneRow(rows, pgx.RowToStructByName[model.CreatorProfile])
		return qerr
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrProfileNotFound
		}
		return nil, fmt.Errorf("%s: %w", errMsg, err)
	}
	return &profile, nil
}

// GetByID retrieves a creator profile by its ID.
func (r *ProfileRepo) GetByID(ctx context.Context, id string) (*model.CreatorProfile, error) {
	return r.getProfileByQuery(ctx, profileGetByIDQuery, "failed to get creator profile by ID", id)
}

// GetByHandle retrieves a creator profile by its handle.
func (r *ProfileRepo) GetByHandle(ctx context.Context, handle string) (*model.CreatorProfile, error) {
	return r.getProfileByQuery(ctx, profileGetByHandleQuery, "failed to get creator profile by handle", handle)
}

// List retrieves a list of creator profiles with pagination.
func (r *ProfileRepo) List(ctx context.Context, limit, offset int) ([]*model.CreatorProfile, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	var profiles []model.CreatorProfile
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, qerr := conn.Query(ctx, profileListQuery, limit, offset)
		if qerr != nil {
			return qerr
		}
		defer rows.Close()
		profiles, qerr = pgx.CollectRows(rows, pgx.RowToStructByName[model.CreatorProfile])
		return qerr
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list creator profiles: %w", err)
	}

	result := make([]*model.CreatorProfile, len(profiles))
	for i := range profiles {
		result[i] = &profiles[i]
	}

	return result, nil
}

// ListByNameContains retrieves profiles whose handle or display name contains
// the query, case-insensitively, with pagination.
func (r *ProfileRepo) ListByNameContains(ctx context.Context, q string, limit, offset int) ([]*model.CreatorProfile, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	searchPattern := "%" + q + "%"

	var profiles []model.CreatorProfile
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, qerr := conn.Query(ctx, profileListByHandleQuery, searchPattern, limit, offset)
		if qerr != nil {
			return qerr
		}
		defer rows.Close()
		profiles, qerr = pgx.CollectRows(rows, pgx.RowToStructByName[model.CreatorProfile])
		return qerr
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list creator profiles by name: %w", err)
	}
	result := make([]*model.CreatorProfile, len(profiles))
	for i := range profiles {
		result[i] = &profiles[i]
	}
	return result, nil
}

// Update updates an existing creator profile.
func (r *ProfileRepo) Update(
	ctx context.Context,
	id string,
	req model.UpdateCreatorProfileRequest,
) (*model.CreatorProfile, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	setParts := make([]string, 0, 4)
	args := make([]any, 0, 5)
	argIdx := 1
	if req.DisplayName != nil {
		setParts = append(setParts, fmt.Sprintf("display_name = $%d", argIdx))
		args = append(args, strings.TrimSpace(*req.DisplayName))
		argIdx++
	}
	if req.Handle != nil {
		setParts = append(setParts, fmt.Sprintf("handle = $%d", argIdx))
		args = append(args, strings.TrimSpace(*req.Handle))
		argIdx++
	}
	if req.AvatarURL != nil {
		setParts = append(setParts, fmt.Sprintf("avatar_url = $%d", argIdx))
		args = append(args, *req.AvatarURL)
		argIdx++
	}
	setParts = append(setParts, fmt.Sprintf("updated_at = $%d", argIdx))
	args = append(args, r.timeProvider.Now().UTC())
	argIdx++
	args = append(args, id)

	query := "UPDATE creator_profiles SET " + strings.Join(setParts, ", ") +
		fmt.Sprintf(" WHERE id = $%d RETURNING ", argIdx) + profileColumns

	var profile model.CreatorProfile
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, qerr := conn.Query(ctx, query, args...)
		if qerr != nil {
			return qerr
		}
		defer rows.Close()
		profile, qerr = pgx.CollectOneRow(rows, pgx.RowToStructByName[model.CreatorProfile])
		return qerr
	})
	if err != nil {
		return nil, fmt.Errorf("failed to update creator profile: %w", r.mapProfileWriteErr(err, true))
	}

	return &profile, nil
}

// mapProfileWriteErr maps database errors on profile writes to sentinels.
func (r *ProfileRepo) mapProfileWriteErr(err error, includeNotFound bool) error {
	if err == nil {
		return nil
	}
	if includeNotFound && errors.Is(err, pgx.ErrNoRows) {
		return ErrProfileNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return ErrProfileHandleExists
	}
	return apperrors.MapDBError(err)
}

// Delete deletes a creator profile by its ID. Links and jobs for the profile
// cascade at the schema level.
func (r *ProfileRepo) Delete(ctx context.Context, id string) (bool, error) {
	query := `DELETE FROM creator_profiles WHERE id = $1`

	result, err := r.DB.ExecContext(ctx, query, id)
	if err != nil {
		return false, fmt.Errorf("failed to delete creator profile: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return rowsAffected > 0, nil
}

// staleProcessingAfter bounds how long a profile may sit in processing before
// AcquireIngestion treats the holder as dead and takes over. Kept well above
// the job lease so a live worker never loses its profile mid-run.
const staleProcessingAfter = 10 * time.Minute

// AcquireIngestion flips the profile's ingestion status to processing.
// Returns false without error when another worker already holds it. A
// processing status whose updated_at has gone stale counts as abandoned
// (worker crashed between acquire and release) and is stolen, mirroring how
// the reaper recovers the crashed worker's job.
func (r *ProfileRepo) AcquireIngestion(ctx context.Context, id string) (bool, error) {
	now := r.timeProvider.Now().UTC()
	result, err := r.DB.ExecContext(ctx, `
		UPDATE creator_profiles
		SET ingestion_status = 'processing', updated_at = $2
		WHERE id = $1
		  AND (ingestion_status <> 'processing' OR updated_at < $3)
	`, id, now, now.Add(-staleProcessingAfter))
	if err != nil {
		return false, fmt.Errorf("failed to acquire ingestion: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected > 0 {
		return true, nil
	}

	// Distinguish contention from a missing profile.
	if _, getErr := r.GetByID(ctx, id); getErr != nil {
		return false, getErr
	}
	return false, nil
}

// ReleaseIngestion records the outcome of an ingestion run. A success clears
// the last error and stamps last_ingested_at; a terminal failure records the
// error message alongside the failed status.
func (r *ProfileRepo) ReleaseIngestion(ctx context.Context, params core.ReleaseIngestionParams) error {
	if !params.Status.Valid() {
		return fmt.Errorf("invalid ingestion status: %s", params.Status)
	}

	now := r.timeProvider.Now().UTC()
	result, err := r.DB.ExecContext(ctx, `
		UPDATE creator_profiles
		SET ingestion_status = $2,
		    last_ingestion_error = $3,
		    last_ingested_at = COALESCE($4, last_ingested_at),
		    updated_at = $5
		WHERE id = $1
	`, params.ProfileID, params.Status, params.ErrMsg, params.IngestedAt, now)
	if err != nil {
		return fmt.Errorf("failed to release ingestion: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrProfileNotFound
	}
	return nil
}
