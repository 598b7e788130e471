// Package lqp defines the Logical Query Plan: the backend-agnostic
// intermediate representation shared by the internal execution engine and
// every external database adapter. A plan is pure data; translation to a
// native query form is each executor's job.
package lqp

import (
	dalerrors "github.com/thunder-source/live-tables-backend/internal/errors"
)

// SourceKind discriminates where a plan executes.
type SourceKind string

const (
	SourceInternal SourceKind = "internal"
	SourceExternal SourceKind = "external"
)

// Source identifies the table a plan reads from. ConnectionID is required
// when Kind is external.
type Source struct {
	Kind         SourceKind `json:"kind"`
	ConnectionID string     `json:"connectionId,omitempty"`
	TableID      string     `json:"tableId"`
}

// Operator is a filter comparison or logical combinator.
type Operator string

const (
	OpEq        Operator = "eq"
	OpNeq       Operator = "neq"
	OpNe        Operator = "ne" // accepted alias for neq
	OpGt        Operator = "gt"
	OpGte       Operator = "gte"
	OpLt        Operator = "lt"
	OpLte       Operator = "lte"
	OpLike      Operator = "like"
	OpIn        Operator = "in"
	OpNin       Operator = "nin"
	OpBetween   Operator = "between"
	OpIsNull    Operator = "is_null"
	OpIsNotNull Operator = "is_not_null"

	OpAnd Operator = "and"
	OpOr  Operator = "or"
)

// Filter is a recursive filter expression: either a leaf comparison
// (Field/Operator/Value) or a logical group (Operator and/or with
// Conditions). A group ignores Field and Value.
type Filter struct {
	Field      string   `json:"field,omitempty"`
	Operator   Operator `json:"operator"`
	Value      any      `json:"value,omitempty"`
	Conditions []Filter `json:"conditions,omitempty"`
}

// IsGroup reports whether the filter is a logical and/or group.
func (f Filter) IsGroup() bool {
	return f.Operator == OpAnd || f.Operator == OpOr
}

// SortDirection is asc or desc.
type SortDirection string

const (
	SortAsc  SortDirection = "asc"
	SortDesc SortDirection = "desc"
)

// Sort orders results by one field.
type Sort struct {
	Field     string        `json:"field"`
	Direction SortDirection `json:"direction"`
}

// JoinType is the SQL join flavor; the document adapter approximates every
// flavor with a $lookup.
type JoinType string

const (
	JoinInner JoinType = "inner"
	JoinLeft  JoinType = "left"
	JoinRight JoinType = "right"
	JoinFull  JoinType = "full"
)

// Join relates the source table to a target table on field equality.
type Join struct {
	Type        JoinType `json:"joinType"`
	TargetTable string   `json:"targetTable"`
	SourceField string   `json:"sourceField"`
	TargetField string   `json:"targetField"`
	Alias       string   `json:"alias,omitempty"`
}

// ComputedColumn derives a value per row at read time by evaluating Formula
// against the row's attributes. Never persisted.
type ComputedColumn struct {
	Name    string `json:"name"`
	Formula string `json:"formula"`
	Type    string `json:"type"`
}

// Pagination bounds the result window. A nil Limit defaults at execution
// time (10 for the internal engine).
type Pagination struct {
	Limit  *int   `json:"limit,omitempty"`
	Offset *int   `json:"offset,omitempty"`
	Cursor string `json:"cursor,omitempty"`
}

// Plan is a complete logical query description. Plans are transient: built
// per request, never persisted, never cached.
type Plan struct {
	Source          Source           `json:"source"`
	Fields          []string         `json:"fields,omitempty"`
	Filters         []Filter         `json:"filters,omitempty"`
	Sorts           []Sort           `json:"sorts,omitempty"`
	Joins           []Join           `json:"joins,omitempty"`
	ComputedColumns []ComputedColumn `json:"computedColumns,omitempty"`
	Pagination      Pagination       `json:"pagination"`
}

// Limit returns the effective limit, falling back to def when unset.
func (p Pagination) LimitOr(def int) int {
	if p.Limit != nil && *p.Limit > 0 {
		return *p.Limit
	}
	return def
}

// OffsetOr returns the effective offset, falling back to def when unset.
func (p Pagination) OffsetOr(def int) int {
	if p.Offset != nil && *p.Offset >= 0 {
		return *p.Offset
	}
	return def
}

// NormalizeOperator folds accepted aliases onto their canonical form.
func NormalizeOperator(op Operator) Operator {
	if op == OpNe {
		return OpNeq
	}
	return op
}

// ValidateFilter checks the structural invariants of a filter tree: a leaf
// requires a field, a group requires non-empty conditions, and in/nin/
// between require array values (between exactly two elements). Executors
// call this before translating; unknown field names are a separate,
// executor-level concern.
func ValidateFilter(f Filter) error {
	if f.IsGroup() {
		if len(f.Conditions) == 0 {
			return dalerrors.InvalidFilter("logical group requires at least one condition")
		}
		for _, c := range f.Conditions {
			if err := ValidateFilter(c); err != nil {
				return err
			}
		}
		return nil
	}
	if f.Field == "" {
		return dalerrors.InvalidFilter("filter condition requires a field")
	}
	switch NormalizeOperator(f.Operator) {
	case OpIn, OpNin:
		vals, ok := asSlice(f.Value)
		if !ok || len(vals) == 0 {
			return dalerrors.Newf(dalerrors.CategoryValidation, dalerrors.CodeInvalidFilter,
				"operator %q requires a non-empty array value", f.Operator)
		}
	case OpBetween:
		vals, ok := asSlice(f.Value)
		if !ok || len(vals) != 2 {
			return dalerrors.InvalidFilter("operator \"between\" requires exactly two values")
		}
	}
	return nil
}

// ValueSlice exposes an in/nin/between value as a []any regardless of the
// concrete slice type it arrived as (JSON decoding yields []any, builders
// often pass typed slices).
func ValueSlice(v any) ([]any, bool) {
	return asSlice(v)
}

func asSlice(v any) ([]any, bool) {
	switch vals := v.(type) {
	case []any:
		return vals, true
	case []string:
		out := make([]any, len(vals))
		for i, s := range vals {
			out[i] = s
		}
		return out, true
	case []int:
		out := make([]any, len(vals))
		for i, n := range vals {
			out[i] = n
		}
		return out, true
	case []float64:
		out := make([]any, len(vals))
		for i, n := range vals {
			out[i] = n
		}
		return out, true
	default:
		return nil, false
	}
}
