package adapter

import (
	"fmt"
	"strings"

	dalerrors "github.com/thunder-source/live-tables-backend/internal/errors"
	"github.com/thunder-source/live-tables-backend/internal/lqp"
)

// Dialect captures the two ways the relational backends differ: identifier
// quoting and parameter placeholder syntax. Everything else about the
// LQP-to-SQL translation is shared.
type Dialect struct {
	// QuoteIdent quotes a single identifier (not a dotted path).
	QuoteIdent func(string) string
	// Placeholder renders the n-th (1-based) bound parameter.
	Placeholder func(n int) string
}

// PostgresDialect uses double-quoted identifiers and $n placeholders.
var PostgresDialect = Dialect{
	QuoteIdent: func(s string) string {
		return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
	},
	Placeholder: func(n int) string { return fmt.Sprintf("$%d", n) },
}

// MySQLDialect uses backtick identifiers and ? placeholders.
var MySQLDialect = Dialect{
	QuoteIdent: func(s string) string {
		return "`" + strings.ReplaceAll(s, "`", "``") + "`"
	},
	Placeholder: func(n int) string { return "?" },
}

// BuildSelect translates a plan into one SELECT statement with positional
// bound parameters for every filter value and the pagination window. Field
// names pass through the dialect's identifier quoting; values never appear
// in the SQL text.
func BuildSelect(plan lqp.Plan, d Dialect) (string, []any, error) {
	var sb strings.Builder
	var args []any

	sb.WriteString("SELECT ")
	if len(plan.Fields) == 0 {
		sb.WriteString("*")
	} else {
		quoted := make([]string, len(plan.Fields))
		for i, f := range plan.Fields {
			quoted[i] = quotePath(f, d)
		}
		sb.WriteString(strings.Join(quoted, ", "))
	}

	sb.WriteString(" FROM ")
	sb.WriteString(quotePath(plan.Source.TableID, d))

	for _, j := range plan.Joins {
		clause, err := renderJoin(plan.Source.TableID, j, d)
		if err != nil {
			return "", nil, err
		}
		sb.WriteString(" ")
		sb.WriteString(clause)
	}

	if len(plan.Filters) > 0 {
		where, err := renderWhere(plan.Filters, d, &args)
		if err != nil {
			return "", nil, err
		}
		if where != "" {
			sb.WriteString(" WHERE ")
			sb.WriteString(where)
		}
	}

	if len(plan.Sorts) > 0 {
		parts := make([]string, len(plan.Sorts))
		for i, s := range plan.Sorts {
			dir := "ASC"
			if s.Direction == lqp.SortDesc {
				dir = "DESC"
			}
			parts[i] = quotePath(s.Field, d) + " " + dir
		}
		sb.WriteString(" ORDER BY ")
		sb.WriteString(strings.Join(parts, ", "))
	}

	if plan.Pagination.Limit != nil {
		args = append(args, *plan.Pagination.Limit)
		sb.WriteString(" LIMIT ")
		sb.WriteString(d.Placeholder(len(args)))
	}
	if plan.Pagination.Offset != nil {
		args = append(args, *plan.Pagination.Offset)
		sb.WriteString(" OFFSET ")
		sb.WriteString(d.Placeholder(len(args)))
	}

	return sb.String(), args, nil
}

func renderJoin(sourceTable string, j lqp.Join, d Dialect) (string, error) {
	var kind string
	switch j.Type {
	case lqp.JoinInner:
		kind = "INNER JOIN"
	case lqp.JoinLeft:
		kind = "LEFT JOIN"
	case lqp.JoinRight:
		kind = "RIGHT JOIN"
	case lqp.JoinFull:
		kind = "FULL OUTER JOIN"
	default:
		return "", dalerrors.Newf(dalerrors.CategoryValidation, dalerrors.CodeInvalidFilter,
			"unsupported join type %q", j.Type)
	}

	target := quotePath(j.TargetTable, d)
	rightSide := j.TargetTable
	if j.Alias != "" {
		target += " AS " + d.QuoteIdent(j.Alias)
		rightSide = j.Alias
	}

	return fmt.Sprintf("%s %s ON %s.%s = %s.%s",
		kind, target,
		quotePath(sourceTable, d), d.QuoteIdent(j.SourceField),
		quotePath(rightSide, d), d.QuoteIdent(j.TargetField)), nil
}

// renderWhere AND-combines the top-level filters, rendering each node
// recursively.
func renderWhere(filters []lqp.Filter, d Dialect, args *[]any) (string, error) {
	var parts []string
	for _, f := range filters {
		if err := lqp.ValidateFilter(f); err != nil {
			return "", err
		}
		clause, err := renderCondition(f, d, args)
		if err != nil {
			return "", err
		}
		parts = append(parts, clause)
	}
	return strings.Join(parts, " AND "), nil
}

func renderCondition(f lqp.Filter, d Dialect, args *[]any) (string, error) {
	if f.IsGroup() {
		joiner := " AND "
		if f.Operator == lqp.OpOr {
			joiner = " OR "
		}
		parts := make([]string, len(f.Conditions))
		for i, c := range f.Conditions {
			clause, err := renderCondition(c, d, args)
			if err != nil {
				return "", err
			}
			parts[i] = clause
		}
		return "(" + strings.Join(parts, joiner) + ")", nil
	}

	field := quotePath(f.Field, d)

	switch lqp.NormalizeOperator(f.Operator) {
	case lqp.OpEq:
		*args = append(*args, f.Value)
		return field + " = " + d.Placeholder(len(*args)), nil
	case lqp.OpNeq:
		*args = append(*args, f.Value)
		return field + " <> " + d.Placeholder(len(*args)), nil
	case lqp.OpGt:
		*args = append(*args, f.Value)
		return field + " > " + d.Placeholder(len(*args)), nil
	case lqp.OpGte:
		*args = append(*args, f.Value)
		return field + " >= " + d.Placeholder(len(*args)), nil
	case lqp.OpLt:
		*args = append(*args, f.Value)
		return field + " < " + d.Placeholder(len(*args)), nil
	case lqp.OpLte:
		*args = append(*args, f.Value)
		return field + " <= " + d.Placeholder(len(*args)), nil
	case lqp.OpLike:
		*args = append(*args, f.Value)
		return field + " LIKE " + d.Placeholder(len(*args)), nil
	case lqp.OpIn, lqp.OpNin:
		vals, _ := lqp.ValueSlice(f.Value)
		placeholders := make([]string, len(vals))
		for i, v := range vals {
			*args = append(*args, v)
			placeholders[i] = d.Placeholder(len(*args))
		}
		op := " IN "
		if lqp.NormalizeOperator(f.Operator) == lqp.OpNin {
			op = " NOT IN "
		}
		return field + op + "(" + strings.Join(placeholders, ", ") + ")", nil
	case lqp.OpBetween:
		vals, _ := lqp.ValueSlice(f.Value)
		*args = append(*args, vals[0], vals[1])
		return fmt.Sprintf("%s BETWEEN %s AND %s",
			field, d.Placeholder(len(*args)-1), d.Placeholder(len(*args))), nil
	case lqp.OpIsNull:
		return field + " IS NULL", nil
	case lqp.OpIsNotNull:
		return field + " IS NOT NULL", nil
	default:
		return "", dalerrors.Newf(dalerrors.CategoryValidation, dalerrors.CodeInvalidFilter,
			"unsupported operator %q", f.Operator)
	}
}

// quotePath quotes a possibly dotted identifier path (alias.column)
// segment by segment.
func quotePath(path string, d Dialect) string {
	segments := strings.Split(path, ".")
	for i, s := range segments {
		segments[i] = d.QuoteIdent(s)
	}
	return strings.Join(segments, ".")
}
