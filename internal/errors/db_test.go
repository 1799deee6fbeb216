package errors

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

func TestMapDBErrorNil(t *testing.T) {
	if err := MapDBError(nil); err != nil {
		t.Fatalf("MapDBError(nil) = %v, want nil", err)
	}
}

func TestMapDBErrorContext(t *testing.T) {
	if err := MapDBError(context.DeadlineExceeded); !IsTimeout(err) {
		t.Errorf("deadline exceeded mapped to %v, want timeout", GetCode(err))
	}
	if err := MapDBError(context.Canceled); !IsCanceled(err) {
		t.Errorf("canceled mapped to %v, want canceled", GetCode(err))
	}
	// The original context error must survive wrapping.
	if err := MapDBError(context.Canceled); !errors.Is(err, context.Canceled) {
		t.Error("errors.Is(err, context.Canceled) = false after mapping")
	}
}

func TestMapDBErrorNoRows(t *testing.T) {
	err := MapDBError(pgx.ErrNoRows)
	if !IsNotFound(err) {
		t.Errorf("pgx.ErrNoRows mapped to %v, want not_found", GetCode(err))
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		t.Error("errors.Is(err, pgx.ErrNoRows) = false after mapping")
	}
}

func TestMapDBErrorPassthrough(t *testing.T) {
	plain := errors.New("connection refused")
	if got := MapDBError(plain); got != plain {
		t.Errorf("unrecognized error rewritten to %v", got)
	}
}

func TestMapDBErrorUniqueViolation(t *testing.T) {
	tests := []struct {
		name      string
		pgErr     *pgconn.PgError
		wantField string
	}{
		{
			name: "column name from server metadata",
			pgErr: &pgconn.PgError{
				Code:       pgerrcode.UniqueViolation,
				ColumnName: "handle",
			},
			wantField: "handle",
		},
		{
			name: "column name parsed from detail",
			pgErr: &pgconn.PgError{
				Code:   pgerrcode.UniqueViolation,
				Detail: "Key (canonical_url)=(https://instagram.com/acme) already exists.",
			},
			wantField: "canonical_url",
		},
		{
			name: "column name inferred from constraint",
			pgErr: &pgconn.PgError{
				Code:           pgerrcode.UniqueViolation,
				ConstraintName: "creator_profiles_handle_key",
			},
			wantField: "handle",
		},
		{
			name: "multi column constraint stays unattributed",
			pgErr: &pgconn.PgError{
				Code:           pgerrcode.UniqueViolation,
				ConstraintName: "social_links_profile_id_canonical_url_key",
			},
			wantField: "",
		},
		{
			name: "unknown table constraint stays unattributed",
			pgErr: &pgconn.PgError{
				Code:           pgerrcode.UniqueViolation,
				ConstraintName: "mystery_handle_key",
			},
			wantField: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := MapDBError(tt.pgErr)
			if !IsConflict(err) {
				t.Fatalf("code = %v, want conflict", GetCode(err))
			}
			if got := GetField(err); got != tt.wantField {
				t.Errorf("field = %q, want %q", got, tt.wantField)
			}
			if !errors.Is(err, tt.pgErr) {
				t.Error("cause lost during mapping")
			}
		})
	}
}

func TestMapDBErrorForeignKeyViolation(t *testing.T) {
	tests := []struct {
		name        string
		pgErr       *pgconn.PgError
		wantMessage string
	}{
		{
			name: "deleting a profile links still reference",
			pgErr: &pgconn.PgError{
				Code:   pgerrcode.ForeignKeyViolation,
				Detail: `Key (id)=(p1) is still referenced from table "social_links".`,
			},
			wantMessage: "social link",
		},
		{
			name: "inserting a link for a missing profile",
			pgErr: &pgconn.PgError{
				Code:   pgerrcode.ForeignKeyViolation,
				Detail: `Key (creator_profile_id)=(p1) is not present in table "creator_profiles".`,
			},
			wantMessage: "creator profile does not exist",
		},
		{
			name: "table metadata only",
			pgErr: &pgconn.PgError{
				Code:      pgerrcode.ForeignKeyViolation,
				TableName: "jobs",
			},
			wantMessage: "job",
		},
		{
			name: "unmapped table falls back to schema name",
			pgErr: &pgconn.PgError{
				Code:   pgerrcode.ForeignKeyViolation,
				Detail: `Key (id)=(x) is still referenced from table "audit_entries".`,
			},
			wantMessage: "audit entries",
		},
		{
			name:        "no metadata at all",
			pgErr:       &pgconn.PgError{Code: pgerrcode.ForeignKeyViolation},
			wantMessage: "reference between records",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := MapDBError(tt.pgErr)
			if !IsForeignKey(err) {
				t.Fatalf("code = %v, want foreign_key", GetCode(err))
			}
			var appErr *AppError
			if !errors.As(err, &appErr) {
				t.Fatal("not an AppError")
			}
			if !strings.Contains(appErr.Message, tt.wantMessage) {
				t.Errorf("message %q missing %q", appErr.Message, tt.wantMessage)
			}
		})
	}
}

func TestMapDBErrorCheckViolation(t *testing.T) {
	err := MapDBError(&pgconn.PgError{
		Code:       pgerrcode.CheckViolation,
		ColumnName: "confidence",
	})
	if !IsValidation(err) {
		t.Fatalf("code = %v, want validation", GetCode(err))
	}
	if GetField(err) != "confidence" {
		t.Errorf("field = %q, want confidence", GetField(err))
	}
}

func TestMapDBErrorNotNullViolation(t *testing.T) {
	err := MapDBError(&pgconn.PgError{
		Code:       pgerrcode.NotNullViolation,
		ColumnName: "canonical_url",
	})
	if !IsValidation(err) {
		t.Fatalf("code = %v, want validation", GetCode(err))
	}
	var appErr *AppError
	if !errors.As(err, &appErr) {
		t.Fatal("not an AppError")
	}
	if !strings.Contains(appErr.Message, "required") {
		t.Errorf("message %q should mention the value is required", appErr.Message)
	}
}

func TestMapDBErrorUnknownPgCode(t *testing.T) {
	err := MapDBError(&pgconn.PgError{Code: pgerrcode.SerializationFailure})
	if !IsInternal(err) {
		t.Errorf("code = %v, want internal", GetCode(err))
	}
}

func TestColumnFromConstraint(t *testing.T) {
	tests := []struct {
		constraint string
		want       string
	}{
		{"creator_profiles_handle_key", "handle"},
		{"social_links_canonical_url_key", ""}, // two column segments, ambiguous
		{"jobs_type_idx", "type"},
		{"scheduled_jobs_task_name_key", ""},
		{"jobs_status_check", ""}, // unknown suffix
		{"", ""},
	}
	for _, tt := range tests {
		if got := columnFromConstraint(tt.constraint); got != tt.want {
			t.Errorf("columnFromConstraint(%q) = %q, want %q", tt.constraint, got, tt.want)
		}
	}
}
