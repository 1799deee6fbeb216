package errors

import (
	"context"
	"errors"
	"regexp"
	"strings"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Detail-message patterns emitted by Postgres for constraint violations.
var (
	// "Key (handle)=(acme) already exists."
	reDetailKey = regexp.MustCompile(`Key \(([^)]+)\)=`)
	// "... is still referenced from table "social_links"."
	reDetailReferenced = regexp.MustCompile(`is still referenced from table "?([^"]+)"?`)
	// "... is not present in table "creator_profiles"."
	reDetailMissing = regexp.MustCompile(`is not present in table "?([^"]+)"?`)
)

// entityNames maps schema tables to the names operators see in error
// messages and in the admin API.
var entityNames = map[string]string{
	"creator_profiles": "creator profile",
	"social_links":     "social link",
	"jobs":             "job",
	"job_results":      "job result",
	"scheduled_jobs":   "scheduled task",
}

// MapDBError translates low-level database failures into AppErrors so the
// repositories' callers never have to inspect pgconn internals. It covers
// context deadline/cancellation, pgx.ErrNoRows, and the constraint
// violations our schema can raise (unique, foreign key, check, not null).
// Anything else passes through unchanged.
func MapDBError(err error) error {
	if err == nil {
		return nil
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return &AppError{Code: ErrCodeTimeout, Message: "database query timed out", Cause: err}
	case errors.Is(err, context.Canceled):
		return &AppError{Code: ErrCodeCanceled, Message: "database query canceled", Cause: err}
	case errors.Is(err, pgx.ErrNoRows):
		return &AppError{Code: ErrCodeNotFound, Message: "record not found", Cause: err}
	}

	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}

	switch pgErr.Code {
	case pgerrcode.UniqueViolation:
		return uniqueViolation(pgErr)
	case pgerrcode.ForeignKeyViolation:
		return foreignKeyViolation(pgErr)
	case pgerrcode.CheckViolation, pgerrcode.NotNullViolation:
		return constraintViolation(pgErr)
	}
	return &AppError{Code: ErrCodeInternal, Message: "database error", Cause: pgErr}
}

// uniqueViolation reports a conflict, naming the offending column when the
// server tells us which one it was.
func uniqueViolation(pgErr *pgconn.PgError) error {
	field := pgErr.ColumnName
	if field == "" {
		// The detail line carries the key for multi-column and expression
		// indexes where ColumnName is empty.
		if m := reDetailKey.FindStringSubmatch(pgErr.Detail); len(m) == 2 {
			field = m[1]
		}
	}
	if field == "" {
		field = columnFromConstraint(pgErr.ConstraintName)
	}

	appErr := &AppError{
		Code:    ErrCodeConflict,
		Message: "value already exists",
		Cause:   pgErr,
	}
	if field != "" {
		appErr.Field = field
		appErr.Message = field + " already exists"
	}
	return appErr
}

// foreignKeyViolation distinguishes deleting a row something still points at
// from inserting a row that points at nothing.
func foreignKeyViolation(pgErr *pgconn.PgError) error {
	message := "operation violates a reference between records"

	if m := reDetailReferenced.FindStringSubmatch(pgErr.Detail); len(m) == 2 {
		message = "cannot delete while " + entityName(m[1]) + " records still reference it"
	} else if m := reDetailMissing.FindStringSubmatch(pgErr.Detail); len(m) == 2 {
		message = "referenced " + entityName(m[1]) + " does not exist"
	} else if pgErr.TableName != "" {
		message = "operation conflicts with existing " + entityName(pgErr.TableName) + " records"
	}

	return &AppError{
		Code:    ErrCodeForeignKey,
		Message: message,
		Cause:   pgErr,
	}
}

// constraintViolation covers CHECK and NOT NULL failures, both of which mean
// the input was invalid.
func constraintViolation(pgErr *pgconn.PgError) error {
	appErr := &AppError{
		Code:    ErrCodeValidation,
		Message: "invalid value",
		Cause:   pgErr,
	}
	if pgErr.Code == pgerrcode.NotNullViolation {
		appErr.Message = "required value is missing"
	}
	if pgErr.ColumnName != "" {
		appErr.Field = pgErr.ColumnName
		appErr.Message = pgErr.ColumnName + ": " + appErr.Message
	}
	return appErr
}

func entityName(table string) string {
	table = strings.ToLower(strings.TrimSpace(table))
	if name, ok := entityNames[table]; ok {
		return name
	}
	return strings.ReplaceAll(table, "_", " ")
}

// columnFromConstraint guesses the column from a conventionally named
// constraint like "creator_profiles_handle_key". Multi-segment tables make
// this ambiguous, so it only answers when the leading segments spell out a
// known table and exactly one column segment remains before the suffix.
func columnFromConstraint(constraint string) string {
	if constraint == "" {
		return ""
	}
	for table := range entityNames {
		prefix := table + "_"
		if !strings.HasPrefix(constraint, prefix) {
			continue
		}
		rest := strings.TrimPrefix(constraint, prefix)
		parts := strings.Split(rest, "_")
		if len(parts) != 2 {
			return ""
		}
		switch parts[1] {
		case "key", "unique", "idx", "fkey":
			return parts[0]
		}
		return ""
	}
	return ""
}
