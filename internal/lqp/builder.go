package lqp

// Builder assembles a Plan through a fluent API. The builder itself is
// mutable; Build returns a deep, independent snapshot, so a builder can be
// mutated or reused after Build without affecting plans it already produced.
//
// The builder performs no validation. Consumers validate against their own
// schema knowledge (column existence, formula syntax) at execution time.
type Builder struct {
	plan Plan
}

// NewBuilder returns an empty builder. Callers normally start with
// FromInternalTable or FromExternalConnection, which reset state.
func NewBuilder() *Builder {
	return &Builder{}
}

// FromInternalTable resets the builder and targets a table in the internal
// store.
func (b *Builder) FromInternalTable(tableID string) *Builder {
	b.plan = Plan{Source: Source{Kind: SourceInternal, TableID: tableID}}
	return b
}

// FromExternalConnection resets the builder and targets a table reached
// through a stored external connection.
func (b *Builder) FromExternalConnection(connectionID, tableID string) *Builder {
	b.plan = Plan{Source: Source{Kind: SourceExternal, ConnectionID: connectionID, TableID: tableID}}
	return b
}

// Select sets the projected fields. Nil or empty means all columns.
func (b *Builder) Select(fields []string) *Builder {
	b.plan.Fields = append([]string(nil), fields...)
	return b
}

// Filter appends a filter expression. Top-level filters are AND-combined.
func (b *Builder) Filter(f Filter) *Builder {
	b.plan.Filters = append(b.plan.Filters, f)
	return b
}

// Sort appends a sort expression.
func (b *Builder) Sort(s Sort) *Builder {
	b.plan.Sorts = append(b.plan.Sorts, s)
	return b
}

// Join appends a join.
func (b *Builder) Join(j Join) *Builder {
	b.plan.Joins = append(b.plan.Joins, j)
	return b
}

// Compute appends a computed column.
func (b *Builder) Compute(c ComputedColumn) *Builder {
	b.plan.ComputedColumns = append(b.plan.ComputedColumns, c)
	return b
}

// Paginate replaces the pagination settings.
func (b *Builder) Paginate(p Pagination) *Builder {
	b.plan.Pagination = p
	return b
}

// Build returns a deep copy of the pending plan.
func (b *Builder) Build() Plan {
	return clonePlan(b.plan)
}

func clonePlan(p Plan) Plan {
	out := p
	out.Fields = append([]string(nil), p.Fields...)
	if p.Filters != nil {
		out.Filters = make([]Filter, len(p.Filters))
		for i, f := range p.Filters {
			out.Filters[i] = cloneFilter(f)
		}
	}
	out.Sorts = append([]Sort(nil), p.Sorts...)
	out.Joins = append([]Join(nil), p.Joins...)
	out.ComputedColumns = append([]ComputedColumn(nil), p.ComputedColumns...)
	if p.Pagination.Limit != nil {
		limit := *p.Pagination.Limit
		out.Pagination.Limit = &limit
	}
	if p.Pagination.Offset != nil {
		offset := *p.Pagination.Offset
		out.Pagination.Offset = &offset
	}
	return out
}

func cloneFilter(f Filter) Filter {
	out := f
	if vals, ok := asSlice(f.Value); ok {
		out.Value = append([]any(nil), vals...)
	}
	if f.Conditions != nil {
		out.Conditions = make([]Filter, len(f.Conditions))
		for i, c := range f.Conditions {
			out.Conditions[i] = cloneFilter(c)
		}
	}
	return out
}
