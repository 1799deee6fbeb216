package data

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/linkhound/ingest/internal/core"
	"github.com/linkhound/ingest/internal/data/pgxutil"
	"github.com/linkhound/ingest/internal/domain/model"
	apperrors "github.com/linkhound/ingest/internal/errors"
)

var (
	// ErrLinkNotFound is returned when a social link is not found.
	ErrLinkNotFound = errors.New("social link not found")
	// ErrLinkExists is returned when inserting a link whose
	// (creator_profile_id, platform, url) identity already exists.
	ErrLinkExists = errors.New("social link already exists")
)

// linkQuerier is the statement surface shared by pooled connections and open
// transactions. Repo methods run against whichever the repo is bound to.
type linkQuerier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// LinkRepo provides database operations for the consolidated social link set.
// A zero tx binds each statement to its own pooled connection; InTransaction
// hands callers a variant bound to one pgx transaction.
type LinkRepo struct {
	DB           *sql.DB
	timeProvider TimeProvider
	tx           pgx.Tx
}

// NewLinkRepo creates a new LinkRepo instance with the given database connection.
func NewLinkRepo(db *sql.DB) *LinkRepo {
	return &LinkRepo{
		DB:           db,
		timeProvider: &RealTimeProvider{},
	}
}

// NewLinkRepoWithTimeProvider creates a LinkRepo with a custom TimeProvider (useful for testing).
func NewLinkRepoWithTimeProvider(db *sql.DB, timeProvider TimeProvider) *LinkRepo {
	return &LinkRepo{
		DB:           db,
		timeProvider: timeProvider,
	}
}

const linkColumns = `
	id, creator_profile_id, platform, url, handle, state, confidence,
	source_type, source_platform, evidence, created_at, updated_at`

// run executes fn against the bound transaction, or a pooled connection when
// the repo is not transaction-scoped.
func (r *LinkRepo) run(ctx context.Context, fn func(q linkQuerier) error) error {
	if r.tx != nil {
		return fn(r.tx)
	}
	return pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		return fn(conn)
	})
}

// InTransaction runs fn against a LinkRepo bound to a single pgx transaction.
// Everything fn writes through that repo commits or rolls back as a unit; a
// merge pass that aborts midway leaves no links updated. Nested calls reuse
// the already-open transaction.
func (r *LinkRepo) InTransaction(ctx context.Context, fn func(core.LinkRepository) error) error {
	if r.tx != nil {
		return fn(r)
	}
	return pgxutil.WithPgxTx(ctx, r.DB, pgxutil.TxConfig{Fn: func(tx pgx.Tx) error {
		return fn(&LinkRepo{DB: r.DB, timeProvider: r.timeProvider, tx: tx})
	}})
}

// Create inserts a new social link row. The unique constraint over
// (creator_profile_id, platform, url) surfaces as ErrLinkExists so callers
// can re-read and merge instead of duplicating.
func (r *LinkRepo) Create(ctx context.Context, req *model.CreateLinkRequest) (*model.SocialLink, error) {
	if req == nil {
		return nil, errors.New("create link request is required")
	}

	if err := req.Validate(); err != nil {
		return nil, err
	}

	evidence, err := marshalEvidence(req.Evidence)
	if err != nil {
		return nil, err
	}

	now := r.timeProvider.Now().UTC()

	var link model.SocialLink
	err = r.insert(ctx, &link,
		req.CreatorProfileID,
		req.Platform,
		req.URL,
		req.Handle,
		req.State,
		req.Confidence,
		req.SourceType,
		req.SourcePlatform,
		evidence,
		now,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create link: %w", r.mapLinkWriteErr(err, false))
	}

	return &link, nil
}

// insert runs the Create statement. Inside a transaction the insert runs
// under a savepoint; a unique-constraint conflict would otherwise poison the
// surrounding merge transaction and break the re-read retry.
func (r *LinkRepo) insert(ctx context.Context, link *model.SocialLink, args ...any) error {
	if r.tx == nil {
		return r.run(ctx, func(q linkQuerier) error {
			return insertLinkOn(ctx, q, link, args...)
		})
	}
	sp, err := r.tx.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin savepoint: %w", err)
	}
	if err := insertLinkOn(ctx, sp, link, args...); err != nil {
		_ = sp.Rollback(ctx)
		return err
	}
	return sp.Commit(ctx)
}

func insertLinkOn(ctx context.Context, q linkQuerier, link *model.SocialLink, args ...any) error {
	rows, err := q.Query(ctx, `
		INSERT INTO social_links (
			creator_profile_id, platform, url, handle, state, confidence,
			source_type, source_platform, evidence, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $10)
		RETURNING `+linkColumns, args...)
	if err != nil {
		return err
	}
	defer rows.Close()
	*link, err = pgx.CollectOneRow(rows, pgx.RowToStructByName[model.SocialLink])
	return err
}

// getLinkByQuery executes a query expected to return a single link.
func (r *LinkRepo) getLinkByQuery(
	ctx context.Context,
	query string,
	errMsg string,
	args ...any,
) (*model.SocialLink, error) {
	var link model.SocialLink
	err := r.run(ctx, func(q linkQuerier) error {
		rows, qerr := q.Query(ctx, query, args...)
		if qerr != nil {
			return qerr
		}
		defer rows.Close()
		link, qerr = pgx.CollectOneRow(rows, pgx.RowToStructByName[model.SocialLink])
		return qerr
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrLinkNotFound
		}
		return nil, fmt.Errorf("%s: %w", errMsg, err)
	}
	return &link, nil
}

// GetByID retrieves a social link by its ID.
func (r *LinkRepo) GetByID(ctx context.Context, id string) (*model.SocialLink, error) {
	return r.getLinkByQuery(ctx, `
		SELECT `+linkColumns+`
		FROM social_links
		WHERE id = $1`, "failed to get link by ID", id)
}

// FindByNaturalKey looks up the row for a canonical identity. Returns nil
// without error when no row exists; merge treats that as "create".
func (r *LinkRepo) FindByNaturalKey(ctx context.Context, key model.LinkNaturalKey) (*model.SocialLink, error) {
	link, err := r.getLinkByQuery(ctx, `
		SELECT `+linkColumns+`
		FROM social_links
		WHERE creator_profile_id = $1 AND platform = $2 AND url = $3`,
		"failed to find link", key.CreatorProfileID, key.Platform, key.URL)
	if errors.Is(err, ErrLinkNotFound) {
		return nil, nil
	}
	return link, err
}

// ListByProfile retrieves a profile's links with optional state and platform filters.
func (r *LinkRepo) ListByProfile(ctx context.Context, opts model.LinkListOptions) ([]*model.SocialLink, error) {
	if opts.CreatorProfileID == "" {
		return nil, errors.New("creator profile id is required")
	}
	limit := opts.Limit
	if limit <= 0 {
		limit = 100
	}
	offset := opts.Offset
	if offset < 0 {
		offset = 0
	}

	conditions := []string{"creator_profile_id = $1"}
	args := []any{opts.CreatorProfileID}
	if opts.State != nil {
		args = append(args, *opts.State)
		conditions = append(conditions, fmt.Sprintf("state = $%d", len(args)))
	}
	if opts.Platform != nil {
		args = append(args, *opts.Platform)
		conditions = append(conditions, fmt.Sprintf("platform = $%d", len(args)))
	}
	args = append(args, limit, offset)

	query := `
		SELECT ` + linkColumns + `
		FROM social_links
		WHERE ` + strings.Join(conditions, " AND ") + `
		ORDER BY confidence DESC, created_at ASC, id ASC` +
		fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	var links []model.SocialLink
	err := r.run(ctx, func(q linkQuerier) error {
		rows, qerr := q.Query(ctx, query, args...)
		if qerr != nil {
			return qerr
		}
		defer rows.Close()
		links, qerr = pgx.CollectRows(rows, pgx.RowToStructByName[model.SocialLink])
		return qerr
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list links: %w", err)
	}

	result := make([]*model.SocialLink, len(links))
	for i := range links {
		result[i] = &links[i]
	}
	return result, nil
}

// UpdateMerge applies a merge decision to an existing row. The update only
// lands when updated_at still matches the snapshot the decision was computed
// from; a nil result with no error tells the caller to re-read and retry.
// Evidence is appended, never rewritten.
func (r *LinkRepo) UpdateMerge(ctx context.Context, params core.UpdateLinkMergeParams) (*model.SocialLink, error) {
	if params.ID == "" {
		return nil, errors.New("link id is required")
	}

	evidence, err := marshalEvidence(params.AppendEvidence)
	if err != nil {
		return nil, err
	}

	now := r.timeProvider.Now().UTC()

	var link model.SocialLink
	err = r.run(ctx, func(q linkQuerier) error {
		rows, qerr := q.Query(ctx, `
			UPDATE social_links
			SET state = $2,
			    confidence = $3,
			    handle = COALESCE($4, handle),
			    evidence = evidence || $5::jsonb,
			    updated_at = $6
			WHERE id = $1 AND updated_at = $7
			RETURNING `+linkColumns,
			params.ID,
			params.State,
			params.Confidence,
			params.Handle,
			evidence,
			now,
			params.ExpectedUpdatedAt.UTC(),
		)
		if qerr != nil {
			return qerr
		}
		defer rows.Close()
		link, qerr = pgx.CollectOneRow(rows, pgx.RowToStructByName[model.SocialLink])
		return qerr
	})
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to merge link: %w", err)
	}

	return &link, nil
}

// UpdateState applies a user or admin state change. The actor's assertion
// promotes ingested rows to the actor's source type so later merge passes
// treat the row as authoritative; setting or clearing rejected only happens
// here.
func (r *LinkRepo) UpdateState(
	ctx context.Context,
	id string,
	req *model.UpdateLinkStateRequest,
) (*model.SocialLink, error) {
	if req == nil {
		return nil, errors.New("update link state request is required")
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}

	now := r.timeProvider.Now().UTC()
	evidence, err := marshalEvidence([]model.Evidence{{
		Signal:     "state_override",
		Source:     string(req.Actor),
		Detail:     "state set to " + string(req.State),
		ObservedAt: now,
	}})
	if err != nil {
		return nil, err
	}

	var link model.SocialLink
	err = r.run(ctx, func(q linkQuerier) error {
		rows, qerr := q.Query(ctx, `
			UPDATE social_links
			SET state = $2,
			    source_type = CASE WHEN source_type = 'ingested' THEN $3 ELSE source_type END,
			    evidence = evidence || $4::jsonb,
			    updated_at = $5
			WHERE id = $1
			RETURNING `+linkColumns,
			id, req.State, req.Actor, evidence, now)
		if qerr != nil {
			return qerr
		}
		defer rows.Close()
		link, qerr = pgx.CollectOneRow(rows, pgx.RowToStructByName[model.SocialLink])
		return qerr
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrLinkNotFound
		}
		return nil, fmt.Errorf("failed to update link state: %w", err)
	}

	return &link, nil
}

// mapLinkWriteErr maps database errors on link writes to sentinels.
func (r *LinkRepo) mapLinkWriteErr(err error, includeNotFound bool) error {
	if err == nil {
		return nil
	}
	if includeNotFound && errors.Is(err, pgx.ErrNoRows) {
		return ErrLinkNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return ErrLinkExists
	}
	return apperrors.MapDBError(err)
}

// Delete deletes a social link by its ID.
func (r *LinkRepo) Delete(ctx context.Context, id string) (bool, error) {
	var affected int64
	err := r.run(ctx, func(q linkQuerier) error {
		tag, execErr := q.Exec(ctx, `DELETE FROM social_links WHERE id = $1`, id)
		if execErr != nil {
			return execErr
		}
		affected = tag.RowsAffected()
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("failed to delete link: %w", err)
	}
	return affected > 0, nil
}

// marshalEvidence serializes evidence records for a jsonb column. Nil and
// empty both serialize as an empty array so jsonb concatenation stays a no-op.
func marshalEvidence(evidence []model.Evidence) ([]byte, error) {
	if len(evidence) == 0 {
		return []byte(`[]`), nil
	}
	raw, err := json.Marshal(evidence)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal evidence: %w", err)
	}
	return raw, nil
}
