// Package database builds parameterized list queries for the admin read
// paths. Identifiers are sanitized with pgx; values always travel as
// positional parameters.
package database

import (
	"fmt"
	"reflect"
	"regexp"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
)

// Op is a SQL comparison operator accepted by Where.
type Op string

const (
	OpEq    Op = "="
	OpNe    Op = "!="
	OpGt    Op = ">"
	OpLt    Op = "<"
	OpLte   Op = "<="
	OpGte   Op = ">="
	OpLike  Op = "LIKE"
	OpILike Op = "ILIKE"
	OpIn    Op = "IN"
	OpAny   Op = "ANY"
	opRaw   Op = "RAW"
)

const (
	unsetLimit  = -1
	unsetOffset = -1
)

// Filter is one WHERE predicate. Build with Where or WhereRaw.
type Filter struct {
	Column string
	Op     Op
	Value  any
	raw    *string
}

// Where builds a predicate comparing a sanitized column against a value.
func Where(column string, op Op, value any) Filter {
	return Filter{Column: column, Op: op, Value: value}
}

// WhereRaw builds a predicate from a raw SQL fragment with $n placeholders.
// The fragment is not sanitized; never interpolate caller input into it.
func WhereRaw(fragment string, params ...any) Filter {
	var value any = params
	if len(params) == 0 {
		value = nil
	} else if len(params) == 1 {
		value = params[0]
	}
	return Filter{Op: opRaw, raw: &fragment, Value: value}
}

// SelectOptions describes a list query over a single table.
type SelectOptions struct {
	Table     string
	Columns   []string
	CountOnly bool
	Filters   []Filter
	OrderBy   string
	OrderDir  string
	Limit     int
	Offset    int
}

// SelectOption mutates SelectOptions.
type SelectOption func(*SelectOptions)

// NewSelect returns options for a list query over table.
func NewSelect(table string, opts ...SelectOption) *SelectOptions {
	options := &SelectOptions{
		Table:   table,
		Columns: []string{},
		Filters: []Filter{},
		Limit:   unsetLimit,
		Offset:  unsetOffset,
	}
	for _, opt := range opts {
		opt(options)
	}
	return options
}

// Columns sets the select list; defaults to * when empty.
func Columns(cols ...string) SelectOption {
	return func(o *SelectOptions) { o.Columns = cols }
}

// Filters appends predicates joined with AND.
func Filters(filters ...Filter) SelectOption {
	return func(o *SelectOptions) { o.Filters = append(o.Filters, filters...) }
}

// OrderBy sets the ordering column and direction ("ASC"/"DESC").
func OrderBy(column, direction string) SelectOption {
	return func(o *SelectOptions) {
		o.OrderBy = column
		o.OrderDir = direction
	}
}

// Limit sets the row limit; zero is a valid explicit limit.
func Limit(limit int) SelectOption {
	return func(o *SelectOptions) {
		if limit >= 0 {
			o.Limit = limit
		}
	}
}

// Offset sets the row offset; zero is a valid explicit offset.
func Offset(offset int) SelectOption {
	return func(o *SelectOptions) {
		if offset >= 0 {
			o.Offset = offset
		}
	}
}

// CountOnly turns the query into SELECT COUNT(*).
func CountOnly() SelectOption {
	return func(o *SelectOptions) { o.CountOnly = true }
}

func sanitizeIdent(ident string) string {
	return pgx.Identifier{ident}.Sanitize()
}

// sanitizeQualifiedIdent quotes each dot-separated part of an identifier
// like "jobs.created_at" or "public.jobs.id".
func sanitizeQualifiedIdent(ident string) string {
	return pgx.Identifier(strings.Split(ident, ".")).Sanitize()
}

// JSONText builds a ->> text extraction select expression, for pulling
// fields like payload->>'sourceUrl' out of the jobs table.
func JSONText(column, path, alias string) string {
	return fmt.Sprintf("%s->>'%s' AS %s",
		sanitizeQualifiedIdent(column), sanitizeJSONKey(path), sanitizeIdent(alias))
}

// JSONPath builds a nested extraction expression: intermediate keys use ->,
// the final key uses ->> so the result is text.
func JSONPath(column, path, alias string) string {
	parts := strings.Split(path, "->")
	if len(parts) == 1 {
		return JSONText(column, path, alias)
	}

	var b strings.Builder
	b.WriteString(sanitizeQualifiedIdent(column))
	for i, part := range parts {
		if i == len(parts)-1 {
			fmt.Fprintf(&b, "->>'%s'", sanitizeJSONKey(part))
		} else {
			fmt.Fprintf(&b, "->'%s'", sanitizeJSONKey(part))
		}
	}
	b.WriteString(" AS ")
	b.WriteString(sanitizeIdent(alias))
	return b.String()
}

// sanitizeJSONKey strips everything except [A-Za-z0-9_-] so a JSON key can
// never break out of its quoted literal.
func sanitizeJSONKey(key string) string {
	var b strings.Builder
	for _, r := range key {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') ||
			(r >= '0' && r <= '9') || r == '_' || r == '-' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

var (
	aliasRe    = regexp.MustCompile(`(?i)\s+AS\s+`)
	jsonExprRe = regexp.MustCompile(`^([a-zA-Z_][a-zA-Z0-9_.]*)((?:->>'[^']*'|(?:->'[^']*'))+)$`)
	jsonStepRe = regexp.MustCompile(`(->>'[a-zA-Z0-9_-]*'|(?:->'[a-zA-Z0-9_-]*'))`)
	paramRe    = regexp.MustCompile(`\$(\d+)`)
)

// renderColumn sanitizes one select-list entry: a bare column, a qualified
// column, a JSON extraction, or any of those with an AS alias.
func renderColumn(spec string) string {
	if loc := aliasRe.FindStringIndex(spec); loc != nil {
		expr := strings.TrimSpace(spec[:loc[0]])
		alias := strings.TrimSpace(spec[loc[1]:])
		return renderColumnExpr(expr) + " AS " + sanitizeIdent(alias)
	}
	return renderColumnExpr(spec)
}

func renderColumnExpr(expr string) string {
	if strings.Contains(expr, "->") {
		return renderJSONExpr(expr)
	}
	if strings.Contains(expr, ".") {
		return sanitizeQualifiedIdent(expr)
	}
	return sanitizeIdent(expr)
}

// renderJSONExpr validates a JSON extraction like payload->>'sourceUrl' or
// jobs.metadata->'scheduler'->>'task_name'. Expressions that do not match
// the expected shape render as empty and are dropped from the select list.
func renderJSONExpr(expr string) string {
	m := jsonExprRe.FindStringSubmatch(expr)
	if len(m) != 3 {
		return ""
	}
	column, path := m[1], m[2]

	sanitized := sanitizeIdent(column)
	if strings.Contains(column, ".") {
		sanitized = sanitizeQualifiedIdent(column)
	}
	return sanitized + strings.Join(jsonStepRe.FindAllString(path, -1), "")
}

func selectClause(o *SelectOptions) string {
	if o.CountOnly {
		return "SELECT COUNT(*) "
	}
	if len(o.Columns) == 0 {
		return "SELECT * "
	}
	rendered := make([]string, len(o.Columns))
	for i, col := range o.Columns {
		rendered[i] = renderColumn(col)
	}
	return "SELECT " + strings.Join(rendered, ", ") + " "
}

// orderAndPageClause renders ORDER BY / LIMIT / OFFSET. Limit and offset
// only appear when explicitly set, so callers control unbounded scans.
func orderAndPageClause(o *SelectOptions, nextParam int, args []any) (string, []any) {
	var clause strings.Builder

	if o.OrderBy != "" {
		clause.WriteString(" ORDER BY ")
		clause.WriteString(sanitizeQualifiedIdent(o.OrderBy))
		if dir := strings.ToUpper(o.OrderDir); dir == "ASC" || dir == "DESC" {
			clause.WriteString(" ")
			clause.WriteString(dir)
		}
	}

	if o.Limit != unsetLimit {
		fmt.Fprintf(&clause, " LIMIT $%d", nextParam)
		args = append(args, o.Limit)
		nextParam++
	}
	if o.Offset != unsetOffset {
		fmt.Fprintf(&clause, " OFFSET $%d", nextParam)
		args = append(args, o.Offset)
	}
	return clause.String(), args
}

// Build renders the query and its positional arguments.
//
//	opts := database.NewSelect("jobs",
//		database.Filters(
//			database.Where("status", database.OpEq, "pending"),
//			database.Where("type", database.OpIn, []string{"linkpage", "droppage"}),
//		),
//		database.OrderBy("created_at", "DESC"),
//		database.Limit(50),
//	)
//	query, args := database.Build(opts)
func Build(o *SelectOptions) (string, []any) {
	if o == nil {
		return "", nil
	}

	var query strings.Builder
	query.WriteString(selectClause(o))
	query.WriteString("FROM ")
	query.WriteString(sanitizeIdent(o.Table))

	whereClause, args, nextParam := whereClause(o.Filters, 1)
	if whereClause != "" {
		query.WriteString(" ")
		query.WriteString(whereClause)
	}

	if o.CountOnly {
		return query.String(), args
	}

	pageClause, args := orderAndPageClause(o, nextParam, args)
	query.WriteString(pageClause)
	return query.String(), args
}

func renderComparison(f Filter, column string, nextParam int) (string, []any, int) {
	return fmt.Sprintf("%s %s $%d", column, f.Op, nextParam), []any{f.Value}, nextParam + 1
}

// renderMembership expands a slice value into one placeholder per element,
// as either IN (...) or = ANY (ARRAY[...]).
func renderMembership(f Filter, column string, nextParam int) (string, []any, int) {
	rv := reflect.ValueOf(f.Value)
	if rv.Kind() != reflect.Slice || rv.Len() == 0 {
		return "", nil, nextParam
	}

	placeholders := make([]string, rv.Len())
	args := make([]any, rv.Len())
	for i := range rv.Len() {
		placeholders[i] = fmt.Sprintf("$%d", nextParam)
		args[i] = rv.Index(i).Interface()
		nextParam++
	}

	if f.Op == OpAny {
		return fmt.Sprintf("%s = ANY (ARRAY[%s])", column, strings.Join(placeholders, ", ")), args, nextParam
	}
	return fmt.Sprintf("%s IN (%s)", column, strings.Join(placeholders, ", ")), args, nextParam
}

// renderRaw renumbers the fragment's $n placeholders into the query's
// parameter sequence. A placeholder that repeats reuses its argument.
func renderRaw(f Filter, nextParam int) (string, []any, int) {
	if f.raw == nil || *f.raw == "" {
		return "", nil, nextParam
	}
	fragment := *f.raw

	var params []any
	switch v := f.Value.(type) {
	case nil:
		return fragment, nil, nextParam
	case []any:
		params = v
	default:
		params = []any{f.Value}
	}

	args := []any{}
	renumbered := make(map[int]int)
	fragment = paramRe.ReplaceAllStringFunc(fragment, func(m string) string {
		n, err := strconv.Atoi(m[1:])
		if err != nil {
			return m
		}
		if _, ok := renumbered[n]; !ok {
			if n < 1 || n > len(params) {
				return m
			}
			renumbered[n] = nextParam
			args = append(args, params[n-1])
			nextParam++
		}
		return fmt.Sprintf("$%d", renumbered[n])
	})
	return fragment, args, nextParam
}

func renderFilter(f Filter, nextParam int) (string, []any, int) {
	if f.Op == opRaw {
		return renderRaw(f, nextParam)
	}
	if f.Column == "" {
		return "", nil, nextParam
	}
	column := sanitizeIdent(f.Column)

	switch f.Op {
	case OpIn, OpAny:
		return renderMembership(f, column, nextParam)
	case OpEq, OpNe, OpGt, OpLt, OpLte, OpGte, OpLike, OpILike:
		return renderComparison(f, column, nextParam)
	}
	return "", nil, nextParam
}

func whereClause(filters []Filter, startParam int) (string, []any, int) {
	rendered := make([]string, 0, len(filters))
	args := []any{}
	nextParam := startParam

	for _, f := range filters {
		clause, filterArgs, np := renderFilter(f, nextParam)
		if clause != "" {
			rendered = append(rendered, clause)
			args = append(args, filterArgs...)
			nextParam = np
		}
	}

	if len(rendered) == 0 {
		return "", args, nextParam
	}
	return "WHERE " + strings.Join(rendered, " AND "), args, nextParam
}
