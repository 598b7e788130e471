// Package engine executes logical query plans against the internal store.
// Each logical table is one physical Postgres table whose row data lives in
// a JSONB attribute map; translation produces parameterized SQL where the
// only interpolated tokens are physical names resolved from trusted
// metadata.
package engine

import (
	"fmt"
	"strings"

	"github.com/spf13/cast"

	dalerrors "github.com/thunder-source/live-tables-backend/internal/errors"
	"github.com/thunder-source/live-tables-backend/internal/lqp"
	"github.com/thunder-source/live-tables-backend/internal/store"
)

const rowColumns = "id, data, version, created_at, created_by, updated_at, updated_by"

// statements holds the two queries built for one plan. Count and page share
// the filter parameters; the page statement appends limit and offset.
type statements struct {
	countSQL string
	pageSQL  string
	args     []any
	limit    int
	offset   int
}

type builderOptions struct {
	defaultLimit int
	strictFields bool
}

// buildStatements translates a plan into a count statement and a paged data
// statement for the table's physical storage. Soft-deleted rows are always
// excluded.
func buildStatements(table *store.Table, plan lqp.Plan, opts builderOptions) (*statements, error) {
	var (
		where = []string{"deleted_at IS NULL"}
		args  []any
	)

	for _, f := range plan.Filters {
		clause, ok, err := renderFilter(table, f, &args, opts)
		if err != nil {
			return nil, err
		}
		if ok {
			where = append(where, clause)
		}
	}

	orderBy, err := renderOrderBy(table, plan.Sorts, opts)
	if err != nil {
		return nil, err
	}

	physical := quoteIdent(table.PhysicalTableName)
	whereClause := strings.Join(where, " AND ")

	st := &statements{
		countSQL: fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE %s", physical, whereClause),
		args:     args,
		limit:    plan.Pagination.LimitOr(opts.defaultLimit),
		offset:   plan.Pagination.OffsetOr(0),
	}
	st.pageSQL = fmt.Sprintf("SELECT %s FROM %s WHERE %s ORDER BY %s LIMIT $%d OFFSET $%d",
		rowColumns, physical, whereClause, orderBy, len(args)+1, len(args)+2)

	return st, nil
}

// renderFilter renders one filter node. The second return is false when the
// node resolves to nothing (unknown field in lenient mode, or a group whose
// conditions all resolved to nothing).
func renderFilter(table *store.Table, f lqp.Filter, args *[]any, opts builderOptions) (string, bool, error) {
	if err := lqp.ValidateFilter(f); err != nil {
		return "", false, err
	}
	return renderFilterNode(table, f, args, opts)
}

func renderFilterNode(table *store.Table, f lqp.Filter, args *[]any, opts builderOptions) (string, bool, error) {
	if f.IsGroup() {
		var parts []string
		for _, c := range f.Conditions {
			clause, ok, err := renderFilterNode(table, c, args, opts)
			if err != nil {
				return "", false, err
			}
			if ok {
				parts = append(parts, clause)
			}
		}
		if len(parts) == 0 {
			return "", false, nil
		}
		joiner := " AND "
		if f.Operator == lqp.OpOr {
			joiner = " OR "
		}
		return "(" + strings.Join(parts, joiner) + ")", true, nil
	}

	col, ok := table.ColumnByName(f.Field)
	if !ok {
		if opts.strictFields {
			return "", false, dalerrors.Newf(dalerrors.CategoryValidation, dalerrors.CodeInvalidFilter,
				"unknown filter field %q", f.Field)
		}
		// Lenient policy: a filter on a removed column is dropped so stored
		// views keep working.
		return "", false, nil
	}

	op := lqp.NormalizeOperator(f.Operator)
	expr := attrExpr(col, comparisonNeedsCast(op))

	switch op {
	case lqp.OpEq:
		*args = append(*args, bindValue(col, false, f.Value))
		return fmt.Sprintf("%s = $%d", expr, len(*args)), true, nil
	case lqp.OpNeq:
		*args = append(*args, bindValue(col, false, f.Value))
		return fmt.Sprintf("%s <> $%d", expr, len(*args)), true, nil
	case lqp.OpGt, lqp.OpGte, lqp.OpLt, lqp.OpLte:
		*args = append(*args, bindValue(col, true, f.Value))
		return fmt.Sprintf("%s %s $%d", expr, sqlComparison(op), len(*args)), true, nil
	case lqp.OpLike:
		*args = append(*args, cast.ToString(f.Value))
		return fmt.Sprintf("%s ILIKE $%d", expr, len(*args)), true, nil
	case lqp.OpIn, lqp.OpNin:
		vals, _ := lqp.ValueSlice(f.Value)
		placeholders := make([]string, len(vals))
		for i, v := range vals {
			*args = append(*args, bindValue(col, false, v))
			placeholders[i] = fmt.Sprintf("$%d", len(*args))
		}
		not := ""
		if op == lqp.OpNin {
			not = "NOT "
		}
		return fmt.Sprintf("%s %sIN (%s)", expr, not, strings.Join(placeholders, ", ")), true, nil
	case lqp.OpBetween:
		vals, _ := lqp.ValueSlice(f.Value)
		*args = append(*args, bindValue(col, true, vals[0]), bindValue(col, true, vals[1]))
		return fmt.Sprintf("%s BETWEEN $%d AND $%d", expr, len(*args)-1, len(*args)), true, nil
	case lqp.OpIsNull:
		return fmt.Sprintf("%s IS NULL", attrExpr(col, false)), true, nil
	case lqp.OpIsNotNull:
		return fmt.Sprintf("%s IS NOT NULL", attrExpr(col, false)), true, nil
	default:
		return "", false, dalerrors.Newf(dalerrors.CategoryValidation, dalerrors.CodeInvalidFilter,
			"unsupported operator %q", f.Operator)
	}
}

func renderOrderBy(table *store.Table, sorts []lqp.Sort, opts builderOptions) (string, error) {
	var parts []string
	for _, s := range sorts {
		col, ok := table.ColumnByName(s.Field)
		if !ok {
			if opts.strictFields {
				return "", dalerrors.Newf(dalerrors.CategoryValidation, dalerrors.CodeInvalidFilter,
					"unknown sort field %q", s.Field)
			}
			continue
		}
		dir := "ASC"
		if s.Direction == lqp.SortDesc {
			dir = "DESC"
		}
		parts = append(parts, attrExpr(col, true)+" "+dir)
	}
	if len(parts) == 0 {
		// Backend default: newest first.
		return "created_at DESC", nil
	}
	return strings.Join(parts, ", "), nil
}

// attrExpr renders the SQL expression extracting one attribute, casting by
// declared column type when the comparison is ordered.
func attrExpr(col store.Column, ordered bool) string {
	base := fmt.Sprintf("data->>'%s'", col.PhysicalName)
	if !ordered {
		return base
	}
	switch {
	case col.Type.IsNumeric():
		return "(" + base + ")::numeric"
	case col.Type.IsTemporal():
		return "(" + base + ")::timestamptz"
	default:
		return base
	}
}

// comparisonNeedsCast reports whether the operator compares with ordering
// semantics, which drives type-aware casting.
func comparisonNeedsCast(op lqp.Operator) bool {
	switch op {
	case lqp.OpGt, lqp.OpGte, lqp.OpLt, lqp.OpLte, lqp.OpBetween:
		return true
	}
	return false
}

// bindValue prepares a filter value for binding. Ordered comparisons on
// numeric/temporal columns keep the native value for the cast expression;
// everything else compares against the text extraction, so the value is
// stringified.
func bindValue(col store.Column, ordered bool, v any) any {
	if ordered && (col.Type.IsNumeric() || col.Type.IsTemporal()) {
		return v
	}
	return cast.ToString(v)
}

func sqlComparison(op lqp.Operator) string {
	switch op {
	case lqp.OpGt:
		return ">"
	case lqp.OpGte:
		return ">="
	case lqp.OpLt:
		return "<"
	default:
		return "<="
	}
}

// quoteIdent double-quotes a metadata-resolved identifier. Physical names
// are generated by the schema layer, never attacker-controlled; quoting
// guards against reserved words, not injection.
func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
