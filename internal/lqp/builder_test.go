package lqp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuilderRoundTrip(t *testing.T) {
	plan := NewBuilder().
		FromInternalTable("t1").
		Select([]string{"x"}).
		Filter(Filter{Field: "x", Operator: OpEq, Value: 5}).
		Build()

	assert.Equal(t, SourceInternal, plan.Source.Kind)
	assert.Equal(t, "t1", plan.Source.TableID)
	assert.Equal(t, []string{"x"}, plan.Fields)
	require.Len(t, plan.Filters, 1)
	assert.Equal(t, OpEq, plan.Filters[0].Operator)
}

func TestBuilderSnapshotIsIndependent(t *testing.T) {
	b := NewBuilder().
		FromInternalTable("t1").
		Filter(Filter{Field: "a", Operator: OpEq, Value: 1})

	first := b.Build()

	// Mutating the builder after Build must not leak into the snapshot.
	b.Select([]string{"y"}).
		Filter(Filter{Field: "b", Operator: OpGt, Value: 2}).
		Sort(Sort{Field: "b", Direction: SortDesc})

	second := b.Build()

	assert.Nil(t, first.Fields)
	assert.Len(t, first.Filters, 1)
	assert.Empty(t, first.Sorts)

	assert.Equal(t, []string{"y"}, second.Fields)
	assert.Len(t, second.Filters, 2)

	// Deep copy: mutating nested state of one snapshot must not affect the other.
	second.Filters[0].Value = 99
	assert.Equal(t, 1, first.Filters[0].Value)
}

func TestBuilderResetOnFrom(t *testing.T) {
	b := NewBuilder().
		FromInternalTable("t1").
		Select([]string{"x"}).
		Filter(Filter{Field: "x", Operator: OpEq, Value: 5})

	plan := b.FromExternalConnection("conn-1", "orders").Build()

	assert.Equal(t, SourceExternal, plan.Source.Kind)
	assert.Equal(t, "conn-1", plan.Source.ConnectionID)
	assert.Equal(t, "orders", plan.Source.TableID)
	assert.Empty(t, plan.Fields)
	assert.Empty(t, plan.Filters)
}

func TestBuilderPaginateReplaces(t *testing.T) {
	ten, twenty := 10, 20
	b := NewBuilder().
		FromInternalTable("t1").
		Paginate(Pagination{Limit: &ten}).
		Paginate(Pagination{Limit: &twenty})

	plan := b.Build()
	require.NotNil(t, plan.Pagination.Limit)
	assert.Equal(t, 20, *plan.Pagination.Limit)
	assert.Nil(t, plan.Pagination.Offset)
}

func TestValidateFilter(t *testing.T) {
	cases := []struct {
		name    string
		filter  Filter
		wantErr bool
	}{
		{"valid leaf", Filter{Field: "x", Operator: OpEq, Value: 1}, false},
		{"leaf missing field", Filter{Operator: OpEq, Value: 1}, true},
		{"empty group", Filter{Operator: OpAnd}, true},
		{"valid group", Filter{Operator: OpOr, Conditions: []Filter{
			{Field: "a", Operator: OpEq, Value: 1},
			{Field: "b", Operator: OpNeq, Value: 2},
		}}, false},
		{"nested invalid leaf", Filter{Operator: OpAnd, Conditions: []Filter{
			{Operator: OpEq, Value: 1},
		}}, true},
		{"in requires array", Filter{Field: "x", Operator: OpIn, Value: 5}, true},
		{"in with array", Filter{Field: "x", Operator: OpIn, Value: []any{1, 2}}, false},
		{"in with typed slice", Filter{Field: "x", Operator: OpIn, Value: []string{"a"}}, false},
		{"between needs two", Filter{Field: "x", Operator: OpBetween, Value: []any{1}}, true},
		{"between with two", Filter{Field: "x", Operator: OpBetween, Value: []any{1, 10}}, false},
		{"is_null without value", Filter{Field: "x", Operator: OpIsNull}, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateFilter(tc.filter)
			if tc.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestNormalizeOperator(t *testing.T) {
	assert.Equal(t, OpNeq, NormalizeOperator(OpNe))
	assert.Equal(t, OpEq, NormalizeOperator(OpEq))
}
